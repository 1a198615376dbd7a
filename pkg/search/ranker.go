package search

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// CosineSimilarity computes 1 minus the cosine distance between two
// vectors. Mismatched dimensions or a zero-norm vector yield 0, which can
// never pass an eligibility threshold.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores candidates against the query embedding and returns the
// ordered eligible results.
//
// A chunk is eligible when its similarity exceeds the threshold OR its
// lexical match fires; the OR is deliberate so that pure keyword hits
// with weak embeddings still surface. Results order by combined score
// descending, then document ID, then chunk index, so identical inputs
// always produce identical output. Each document's partition is capped at
// MatchCountPerDoc, keeping the highest-scoring chunks and breaking score
// ties by ascending chunk index.
func Rank(chunks []Chunk, queryEmbedding []float32, opts Options) []Result {
	mode := opts.Mode
	if mode == "" {
		mode = ModeBonus
	}

	results := make([]Result, 0, len(chunks))
	for _, chunk := range chunks {
		similarity := CosineSimilarity(chunk.Embedding.Slice(), queryEmbedding)
		if similarity <= opts.SimilarityThreshold && !chunk.LexicalMatch {
			continue
		}

		results = append(results, Result{
			ChunkID:       chunk.ID,
			DocumentID:    chunk.DocumentID,
			Content:       chunk.Content,
			ChunkIndex:    chunk.ChunkIndex,
			Similarity:    similarity,
			CombinedScore: combinedScore(mode, similarity, chunk),
			Metadata:      chunk.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID.String() < results[j].DocumentID.String()
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})

	if opts.MatchCountPerDoc > 0 {
		results = capPerDocument(results, opts.MatchCountPerDoc)
	}
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}

	return results
}

func combinedScore(mode ScoreMode, similarity float64, chunk Chunk) float64 {
	if mode == ModeWeighted {
		return SimilarityWeight*similarity + TextRankWeight*chunk.TextRank
	}
	if chunk.LexicalMatch {
		return similarity + LexicalBonus
	}
	return similarity
}

// capPerDocument keeps the first n results per document. The input is
// already ordered by score desc then chunk index asc within a document,
// so walking it front to back yields each partition's top n.
func capPerDocument(results []Result, n int) []Result {
	kept := results[:0]
	counts := make(map[uuid.UUID]int, 8)

	for _, r := range results {
		if counts[r.DocumentID] >= n {
			continue
		}
		counts[r.DocumentID]++
		kept = append(kept, r)
	}

	return kept
}
