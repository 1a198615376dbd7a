package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hivedocs/hivedocs/pkg/config"
	"github.com/hivedocs/hivedocs/pkg/observability"
)

var searchTracer = otel.Tracer("hivedocs/search")

// Service fetches chunk candidates from Postgres and ranks them in Go
type Service struct {
	db      *sql.DB
	config  config.SearchConfig
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewService creates a search service. metrics may be nil.
func NewService(db *sql.DB, cfg config.SearchConfig, metrics *observability.Metrics, logger *observability.Logger) *Service {
	return &Service{
		db:      db,
		config:  cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// Request is one search invocation over a fixed document scope
type Request struct {
	QueryText      string      `json:"query_text"`
	QueryEmbedding []float32   `json:"query_embedding"`
	DocumentIDs    []uuid.UUID `json:"document_ids"`

	// Optional overrides; zero values fall back to configured defaults
	Mode                ScoreMode `json:"mode,omitempty"`
	SimilarityThreshold *float64  `json:"similarity_threshold,omitempty"`
	MatchCountPerDoc    int       `json:"match_count_per_doc,omitempty"`
	MaxResults          int       `json:"max_results,omitempty"`
}

// Response carries the ranked results plus the resolved scoring mode
type Response struct {
	Results []Result  `json:"results"`
	Mode    ScoreMode `json:"mode"`
}

// Search fetches candidates for the requested documents and ranks them.
// Results are recomputed per call; there is no cursor state.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	ctx, span := searchTracer.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.Int("document_count", len(req.DocumentIDs)),
			attribute.Int("embedding_dim", len(req.QueryEmbedding)),
		),
	)
	defer span.End()

	if err := validateRequest(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}

	opts := s.resolveOptions(req)
	span.SetAttributes(attribute.String("mode", string(opts.Mode)))

	start := time.Now()
	chunks, err := s.fetchCandidates(ctx, req.QueryText, req.DocumentIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch candidates")
		s.observe(opts.Mode, start, 0)
		return nil, err
	}

	results := Rank(chunks, req.QueryEmbedding, opts)

	span.SetAttributes(
		attribute.Int("candidate_count", len(chunks)),
		attribute.Int("result_count", len(results)),
	)
	span.SetStatus(codes.Ok, "search completed")
	s.observe(opts.Mode, start, len(chunks))

	return &Response{Results: results, Mode: opts.Mode}, nil
}

func validateRequest(req Request) error {
	if len(req.QueryEmbedding) == 0 {
		return &ValidationError{Field: "query_embedding", Reason: "query embedding is required"}
	}
	if len(req.DocumentIDs) == 0 {
		return &ValidationError{Field: "document_ids", Reason: "at least one document is required"}
	}
	if req.Mode != "" && req.Mode != ModeBonus && req.Mode != ModeWeighted {
		return &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown score mode %q", req.Mode)}
	}
	if req.SimilarityThreshold != nil && (*req.SimilarityThreshold < 0 || *req.SimilarityThreshold > 1) {
		return &ValidationError{Field: "similarity_threshold", Reason: "threshold must be between 0 and 1"}
	}
	return nil
}

// resolveOptions merges request overrides over the configured defaults.
// Single-document queries score with the flat lexical bonus; document
// sets use the weighted blend, unless the caller forces a mode.
func (s *Service) resolveOptions(req Request) Options {
	opts := Options{
		SimilarityThreshold: s.config.SimilarityThreshold,
		MatchCountPerDoc:    s.config.PerDocumentCap,
		MaxResults:          s.config.MaxResults,
		Mode:                req.Mode,
	}

	if opts.Mode == "" {
		if len(req.DocumentIDs) == 1 {
			opts.Mode = ModeBonus
		} else {
			opts.Mode = ModeWeighted
		}
	}
	if req.SimilarityThreshold != nil {
		opts.SimilarityThreshold = *req.SimilarityThreshold
	}
	if req.MatchCountPerDoc > 0 {
		opts.MatchCountPerDoc = req.MatchCountPerDoc
	}
	if req.MaxResults > 0 {
		opts.MaxResults = req.MaxResults
	}

	return opts
}

// fetchCandidates pulls every chunk for the requested documents along with
// the lexical match flag and ts_rank computed by Postgres against the
// query text. An empty query text matches nothing lexically and ranks 0.
func (s *Service) fetchCandidates(ctx context.Context, queryText string, documentIDs []uuid.UUID) ([]Chunk, error) {
	ids := make([]string, len(documentIDs))
	for i, id := range documentIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT
			c.id,
			c.document_id,
			c.content,
			c.chunk_index,
			c.embedding,
			c.search_vector @@ plainto_tsquery('english', $1) AS lexical_match,
			ts_rank(c.search_vector, plainto_tsquery('english', $1)) AS text_rank,
			c.metadata
		FROM document_chunks c
		WHERE c.document_id = ANY($2)
	`

	rows, err := s.db.QueryContext(ctx, query, queryText, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunk candidates: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var metadataJSON []byte

		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Content,
			&chunk.ChunkIndex,
			&chunk.Embedding,
			&chunk.LexicalMatch,
			&chunk.TextRank,
			&metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
			}
		}

		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

func (s *Service) observe(mode ScoreMode, start time.Time, candidates int) {
	if s.metrics == nil {
		return
	}
	s.metrics.SearchRequestsTotal.WithLabelValues(string(mode)).Inc()
	s.metrics.SearchDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	if candidates > 0 {
		s.metrics.SearchCandidateCount.Observe(float64(candidates))
	}
}
