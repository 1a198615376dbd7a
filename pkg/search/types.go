package search

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ScoreMode selects the combined-score formula
type ScoreMode string

const (
	// ModeBonus scores similarity plus a flat bonus on lexical match.
	// Default for single-document queries.
	ModeBonus ScoreMode = "bonus"
	// ModeWeighted blends similarity and the continuous text rank.
	// Default for multi-document queries.
	ModeWeighted ScoreMode = "weighted"
)

const (
	// LexicalBonus is added to similarity in bonus mode when the
	// full-text match fires
	LexicalBonus = 0.1

	// Weighted mode coefficients
	SimilarityWeight = 0.7
	TextRankWeight   = 0.3
)

// Chunk is a candidate row from document_chunks. LexicalMatch and TextRank
// come from Postgres full-text matching against the query text.
type Chunk struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	Content      string
	ChunkIndex   int
	Embedding    pgvector.Vector
	LexicalMatch bool
	TextRank     float64
	Metadata     map[string]interface{}
}

// Result is one ranked chunk
type Result struct {
	ChunkID       uuid.UUID              `json:"chunk_id"`
	DocumentID    uuid.UUID              `json:"document_id"`
	Content       string                 `json:"content"`
	ChunkIndex    int                    `json:"chunk_index"`
	Similarity    float64                `json:"similarity"`
	CombinedScore float64                `json:"combined_score"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Options controls eligibility and ordering for one ranking pass
type Options struct {
	// SimilarityThreshold gates eligibility; a chunk below it still
	// qualifies when its lexical match fires
	SimilarityThreshold float64
	// MatchCountPerDoc caps results per document. Zero means uncapped.
	MatchCountPerDoc int
	// MaxResults caps the overall result count. Zero means uncapped.
	MaxResults int
	// Mode selects the scoring formula. Empty lets the service pick a
	// default from the query shape.
	Mode ScoreMode
}

// ValidationError indicates a malformed search request
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
