// Package search ranks pre-embedded document chunks against a query using
// a hybrid of vector similarity and Postgres full-text matching.
//
// Chunk ingestion and embedding happen upstream; this package only reads
// document_chunks. Candidate rows are fetched with the lexical match flag
// and ts_rank computed by Postgres, then scored and ordered in Go so the
// ranking is deterministic and unit-testable without a database.
//
// Two scoring modes exist. Single-document queries default to a flat
// lexical bonus on top of similarity; multi-document queries default to a
// weighted blend of similarity and text rank. Callers may override the
// mode per request.
package search
