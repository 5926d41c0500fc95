package services

import (
	"testing"

	"avatar-chat-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilaritySelf(t *testing.T) {
	v := []float32{0.5, -1.2, 3.3, 0.1}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	v := []float32{1, 2, 3}
	zero := []float32{0, 0, 0}

	assert.Equal(t, 0.0, CosineSimilarity(v, zero))
	assert.Equal(t, 0.0, CosineSimilarity(zero, v))
	assert.Equal(t, 0.0, CosineSimilarity(zero, zero))
}

func TestCosineSimilarityLengthMismatch(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, []float32{1}))
}

func TestCosineSimilarityOpposite(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	assert.InDelta(t, -1.0, CosineSimilarity(a, b), 1e-9)
}

func chunkWithVec(index int, vec []float32, processed bool) models.Chunk {
	return models.Chunk{
		ChunkID:   "chunk-" + string(rune('a'+index)),
		Index:     index,
		Text:      "text",
		Embedding: vec,
		Processed: processed,
	}
}

func TestTopChunksRankingAndLimit(t *testing.T) {
	query := []float32{1, 0}
	chunks := []models.Chunk{
		chunkWithVec(0, []float32{0, 1}, true),   // orthogonal
		chunkWithVec(1, []float32{1, 0}, true),   // identical
		chunkWithVec(2, []float32{1, 1}, true),   // 45 degrees
		chunkWithVec(3, []float32{-1, 0}, true),  // opposite
	}

	results := TopChunks(chunks, query, 3)
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.Equal(t, 2, results[1].ChunkIndex)
	assert.Equal(t, 0, results[2].ChunkIndex)
	assert.True(t, results[0].Similarity >= results[1].Similarity)
	assert.True(t, results[1].Similarity >= results[2].Similarity)
}

func TestTopChunksExcludesUnprocessed(t *testing.T) {
	query := []float32{1, 0}
	chunks := []models.Chunk{
		chunkWithVec(0, []float32{1, 0}, false),
		chunkWithVec(1, []float32{0.5, 0}, true),
	}

	results := TopChunks(chunks, query, 10)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ChunkIndex)
}

func TestTopChunksTieBreakByIndex(t *testing.T) {
	query := []float32{1, 0}
	// Identical vectors produce exactly equal scores.
	chunks := []models.Chunk{
		chunkWithVec(2, []float32{1, 0}, true),
		chunkWithVec(0, []float32{1, 0}, true),
		chunkWithVec(1, []float32{1, 0}, true),
	}

	results := TopChunks(chunks, query, 3)
	require.Len(t, results, 3)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.Equal(t, 1, results[1].ChunkIndex)
	assert.Equal(t, 2, results[2].ChunkIndex)
}

func TestTopChunksZeroLimit(t *testing.T) {
	chunks := []models.Chunk{chunkWithVec(0, []float32{1}, true)}
	assert.Empty(t, TopChunks(chunks, []float32{1}, 0))
}
