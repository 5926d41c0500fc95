package services

import (
	"strings"

	"avatar-chat-backend/models"

	"github.com/google/uuid"
)

// Chunker splits extracted text into bounded segments for embedding.
//
// Two strategies are available. ChunkSentences is sentence-aware: it packs
// whole sentences greedily up to the size limit with no overlap, so every
// sentence lands in exactly one chunk. ChunkFixed is a sliding window with
// configurable overlap for raw text that has no sentence structure worth
// preserving. A single document is always chunked with one strategy, never
// a mix.
type Chunker struct {
	maxChunkSize int
	overlap      int
}

// NewChunker creates a chunker. maxChunkSize must be positive and overlap
// must be smaller than maxChunkSize; config validation enforces both.
func NewChunker(maxChunkSize, overlap int) *Chunker {
	return &Chunker{
		maxChunkSize: maxChunkSize,
		overlap:      overlap,
	}
}

// ChunkSentences splits text on sentence boundaries and packs consecutive
// sentences into chunks no longer than the size limit. A sentence longer
// than the limit becomes its own oversized chunk rather than being split
// mid-sentence.
func (c *Chunker) ChunkSentences(text string) []models.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return c.buildChunks([]string{text})
	}

	var packed []string
	var current strings.Builder

	for _, sentence := range sentences {
		// +1 for the joining space.
		if current.Len() > 0 && current.Len()+len(sentence)+1 > c.maxChunkSize {
			packed = append(packed, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		packed = append(packed, current.String())
	}

	return c.buildChunks(packed)
}

// ChunkFixed slides a window of maxChunkSize over the text, stepping by
// maxChunkSize minus overlap. Window boundaries are byte offsets; text with
// multibyte runes can be cut mid-rune, so this mode is reserved for plain
// ASCII input.
func (c *Chunker) ChunkFixed(text string) []models.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	step := c.maxChunkSize - c.overlap
	if step <= 0 {
		step = c.maxChunkSize
	}

	var windows []string
	for start := 0; start < len(text); start += step {
		end := start + c.maxChunkSize
		if end > len(text) {
			end = len(text)
		}
		window := strings.TrimSpace(text[start:end])
		if window != "" {
			windows = append(windows, window)
		}
		if end == len(text) {
			break
		}
	}

	return c.buildChunks(windows)
}

func (c *Chunker) buildChunks(texts []string) []models.Chunk {
	chunks := make([]models.Chunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, models.Chunk{
			ChunkID:   uuid.New().String(),
			Index:     i,
			Text:      t,
			CharCount: len(t),
			WordCount: len(strings.Fields(t)),
		})
	}
	return chunks
}

// splitSentences breaks text on terminal punctuation followed by whitespace.
// Abbreviations like "e.g." split incorrectly; the greedy packing above
// reassembles neighbors into the same chunk often enough that this stays
// tolerable.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			atEnd := i == len(runes)-1
			followedBySpace := !atEnd && (runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' || runes[i+1] == '\r')
			if atEnd || followedBySpace {
				sentence := strings.TrimSpace(current.String())
				if sentence != "" {
					sentences = append(sentences, sentence)
				}
				current.Reset()
			}
		}
	}

	// Trailing text without terminal punctuation is still a sentence.
	if tail := strings.TrimSpace(current.String()); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}
