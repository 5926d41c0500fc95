package services

import (
	"math"
	"sort"

	"avatar-chat-backend/models"
)

// CosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched lengths or a zero-magnitude vector yield 0 rather than an
// error, so a chunk with a degenerate embedding simply ranks last.
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

// TopChunks ranks a document's chunks against a query vector and returns at
// most limit results, best first. Chunks whose embedding was never computed
// are skipped. Ties are broken by ascending chunk index so repeated queries
// over the same entry produce identical orderings.
func TopChunks(chunks []models.Chunk, query []float32, limit int) []models.SearchResult {
	if limit <= 0 {
		return []models.SearchResult{}
	}

	results := make([]models.SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		if !chunk.Processed {
			continue
		}
		results = append(results, models.SearchResult{
			Text:       chunk.Text,
			Similarity: CosineSimilarity(query, chunk.Embedding),
			ChunkIndex: chunk.Index,
			ChunkID:    chunk.ChunkID,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
