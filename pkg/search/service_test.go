package search

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedocs/hivedocs/pkg/config"
)

func searchServiceUnderTest(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.SearchConfig{
		SimilarityThreshold: 0.3,
		MaxResults:          20,
		PerDocumentCap:      5,
	}

	return NewService(db, cfg, nil, nil), mock
}

func candidateRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "document_id", "content", "chunk_index", "embedding",
		"lexical_match", "text_rank", "metadata",
	})
}

func TestSearchSingleDocumentDefaultsToBonusMode(t *testing.T) {
	svc, mock := searchServiceUnderTest(t)

	doc := uuid.New()
	mock.ExpectQuery("FROM document_chunks").
		WillReturnRows(candidateRows().
			AddRow(uuid.New().String(), doc.String(), "intro text", 0, "[1,0]", false, 0.0, []byte("{}")).
			AddRow(uuid.New().String(), doc.String(), "keyword hit", 1, "[0.15,0.989]", true, 0.4, []byte("{}")))

	resp, err := svc.Search(context.Background(), Request{
		QueryText:      "keyword",
		QueryEmbedding: []float32{1, 0},
		DocumentIDs:    []uuid.UUID{doc},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeBonus, resp.Mode)
	require.Len(t, resp.Results, 2, "weak-similarity lexical hit stays eligible")
	assert.Equal(t, "intro text", resp.Results[0].Content)
	assert.InDelta(t, 1.0, resp.Results[0].CombinedScore, 1e-6)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchMultiDocumentDefaultsToWeightedMode(t *testing.T) {
	svc, mock := searchServiceUnderTest(t)

	docA := uuid.New()
	docB := uuid.New()
	mock.ExpectQuery("FROM document_chunks").
		WillReturnRows(candidateRows().
			AddRow(uuid.New().String(), docA.String(), "a", 0, "[1,0]", false, 0.2, []byte("{}")).
			AddRow(uuid.New().String(), docB.String(), "b", 0, "[0.8,0.6]", false, 0.9, []byte("{}")))

	resp, err := svc.Search(context.Background(), Request{
		QueryText:      "billing",
		QueryEmbedding: []float32{1, 0},
		DocumentIDs:    []uuid.UUID{docA, docB},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeWeighted, resp.Mode)
	require.Len(t, resp.Results, 2)
	// docB: 0.7*0.8 + 0.3*0.9 = 0.83 beats docA: 0.7*1.0 + 0.3*0.2 = 0.76
	assert.Equal(t, docB, resp.Results[0].DocumentID)
	assert.InDelta(t, 0.83, resp.Results[0].CombinedScore, 1e-6)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchCallerMayForceMode(t *testing.T) {
	svc, mock := searchServiceUnderTest(t)

	doc := uuid.New()
	mock.ExpectQuery("FROM document_chunks").
		WillReturnRows(candidateRows().
			AddRow(uuid.New().String(), doc.String(), "a", 0, "[1,0]", false, 0.5, []byte("{}")))

	resp, err := svc.Search(context.Background(), Request{
		QueryText:      "q",
		QueryEmbedding: []float32{1, 0},
		DocumentIDs:    []uuid.UUID{doc},
		Mode:           ModeWeighted,
	})
	require.NoError(t, err)

	assert.Equal(t, ModeWeighted, resp.Mode)
	assert.InDelta(t, 0.7*1.0+0.3*0.5, resp.Results[0].CombinedScore, 1e-6)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchValidatesRequest(t *testing.T) {
	svc, _ := searchServiceUnderTest(t)

	_, err := svc.Search(context.Background(), Request{
		QueryText:   "q",
		DocumentIDs: []uuid.UUID{uuid.New()},
	})
	assert.True(t, IsValidationError(err), "missing embedding")

	_, err = svc.Search(context.Background(), Request{
		QueryText:      "q",
		QueryEmbedding: []float32{1, 0},
	})
	assert.True(t, IsValidationError(err), "missing document scope")

	_, err = svc.Search(context.Background(), Request{
		QueryText:      "q",
		QueryEmbedding: []float32{1, 0},
		DocumentIDs:    []uuid.UUID{uuid.New()},
		Mode:           ScoreMode("fuzzy"),
	})
	assert.True(t, IsValidationError(err), "unknown mode")
}
