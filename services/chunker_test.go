package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSentencesThreeSentencesOneChunk(t *testing.T) {
	chunker := NewChunker(1000, 0)

	text := "The first sentence sets the scene. The second sentence adds detail! Does the third sentence ask a question?"
	chunks := chunker.ChunkSentences(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Contains(t, chunks[0].Text, "first sentence")
	assert.Contains(t, chunks[0].Text, "third sentence")
}

func TestChunkSentencesLossless(t *testing.T) {
	chunker := NewChunker(50, 0)

	text := "Alpha is first. Bravo comes second. Charlie is third. Delta closes the set."
	chunks := chunker.ChunkSentences(text)
	require.NotEmpty(t, chunks)

	// Every sentence appears in exactly one chunk.
	joined := ""
	for _, c := range chunks {
		joined += " " + c.Text
	}
	for _, sentence := range []string{"Alpha is first.", "Bravo comes second.", "Charlie is third.", "Delta closes the set."} {
		assert.Equal(t, 1, strings.Count(joined, sentence), "sentence: %q", sentence)
	}
}

func TestChunkSentencesRespectsSizeLimit(t *testing.T) {
	chunker := NewChunker(40, 0)

	text := "Short one here. Another short one here. And a third short one here."
	chunks := chunker.ChunkSentences(text)
	require.True(t, len(chunks) > 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, c.CharCount, 40)
		assert.NotEmpty(t, c.Text)
	}
}

func TestChunkSentencesOversizedSentenceKeptWhole(t *testing.T) {
	chunker := NewChunker(30, 0)

	long := "This single sentence is deliberately much longer than the configured size limit."
	chunks := chunker.ChunkSentences(long)

	require.Len(t, chunks, 1)
	assert.Equal(t, long, chunks[0].Text)
}

func TestChunkSentencesEmptyInput(t *testing.T) {
	chunker := NewChunker(1000, 0)

	assert.Nil(t, chunker.ChunkSentences(""))
	assert.Nil(t, chunker.ChunkSentences("   \n\t  "))
}

func TestChunkSentencesIndicesAndIDs(t *testing.T) {
	chunker := NewChunker(30, 0)

	chunks := chunker.ChunkSentences("One sentence goes here. Two sentences go here. Three sentences go here.")
	require.True(t, len(chunks) > 1)

	seen := make(map[string]bool)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.False(t, seen[c.ChunkID], "duplicate chunk id")
		seen[c.ChunkID] = true
		assert.Equal(t, len(c.Text), c.CharCount)
		assert.Equal(t, len(strings.Fields(c.Text)), c.WordCount)
	}
}

func TestChunkFixedWindowOverlap(t *testing.T) {
	chunker := NewChunker(10, 4)

	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := chunker.ChunkFixed(text)
	require.True(t, len(chunks) > 1)

	// Step is size minus overlap, so consecutive windows share a suffix.
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, "ghijklmnop", chunks[1].Text)
}

func TestChunkFixedCoversAllText(t *testing.T) {
	chunker := NewChunker(10, 0)

	text := "abcdefghijklmnopqrstuvwxy"
	chunks := chunker.ChunkFixed(text)

	var rebuilt strings.Builder
	for _, c := range chunks {
		rebuilt.WriteString(c.Text)
	}
	assert.Equal(t, text, rebuilt.String())
}
