package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"avatar-chat-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(filename string, chunkCount int) *models.KnowledgeEntry {
	chunks := make([]models.Chunk, chunkCount)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ChunkID:   filename + "-chunk",
			Index:     i,
			Text:      "chunk text",
			Embedding: []float32{0.1, 0.2, 0.3},
			Processed: true,
		}
	}
	return &models.KnowledgeEntry{
		Document: models.Document{
			Filename:   filename,
			ChunkCount: chunkCount,
			TextLength: 42,
		},
		Chunks:      chunks,
		ProcessedAt: time.Now().UTC(),
	}
}

func TestStorePutThenGet(t *testing.T) {
	store, err := NewKnowledgeStore(t.TempDir(), 8)
	require.NoError(t, err)

	entry := testEntry("report.pdf", 3)
	store.Put("report.pdf", entry)

	got, ok := store.Get("report.pdf")
	require.True(t, ok)
	assert.Equal(t, entry, got)
	assert.Len(t, got.Chunks, 3)
	assert.Equal(t, entry.Chunks[0].Embedding, got.Chunks[0].Embedding)
}

func TestStoreGetMissingReturnsFalse(t *testing.T) {
	store, err := NewKnowledgeStore(t.TempDir(), 8)
	require.NoError(t, err)

	_, ok := store.Get("nope.pdf")
	assert.False(t, ok)
}

func TestStoreDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store, err := NewKnowledgeStore(dir, 8)
	require.NoError(t, err)

	entry := testEntry("durable.pdf", 2)
	store.Put("durable.pdf", entry)

	// Persistence is asynchronous; wait for the file to land.
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "durable.pdf.json"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	// A fresh store over the same directory must load from disk.
	reopened, err := NewKnowledgeStore(dir, 8)
	require.NoError(t, err)

	got, ok := reopened.Get("durable.pdf")
	require.True(t, ok)
	assert.Equal(t, entry.Document.Filename, got.Document.Filename)
	assert.Len(t, got.Chunks, 2)
	assert.Equal(t, entry.Chunks[1].Embedding, got.Chunks[1].Embedding)
}

func TestStoreListMergesTiersDeduplicated(t *testing.T) {
	dir := t.TempDir()

	store, err := NewKnowledgeStore(dir, 8)
	require.NoError(t, err)

	store.Put("a.pdf", testEntry("a.pdf", 1))
	store.Put("b.pdf", testEntry("b.pdf", 2))

	require.Eventually(t, func() bool {
		files, _ := os.ReadDir(dir)
		return len(files) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Cached and on-disk copies of the same document count once.
	summaries := store.List()
	require.Len(t, summaries, 2)

	names := map[string]int{}
	for _, s := range summaries {
		names[s.Filename] = s.ChunkCount
	}
	assert.Equal(t, 1, names["a.pdf"])
	assert.Equal(t, 2, names["b.pdf"])
}

func TestStoreDelete(t *testing.T) {
	dir := t.TempDir()

	store, err := NewKnowledgeStore(dir, 8)
	require.NoError(t, err)

	store.Put("gone.pdf", testEntry("gone.pdf", 1))
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "gone.pdf.json"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, store.Delete("gone.pdf"))

	_, ok := store.Get("gone.pdf")
	assert.False(t, ok)

	assert.False(t, store.Delete("gone.pdf"))
}

func TestStoreGetIgnoresFileOfDeletedEntry(t *testing.T) {
	dir := t.TempDir()

	store, err := NewKnowledgeStore(dir, 8)
	require.NoError(t, err)

	store.Put("racy.pdf", testEntry("racy.pdf", 1))
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "racy.pdf.json"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, store.Delete("racy.pdf"))

	// Simulate a disk load racing the delete: the file reappears, but the
	// deletion marker must keep the entry out of both tiers.
	data, err := json.Marshal(testEntry("racy.pdf", 1))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "racy.pdf.json"), data, 0o644))

	_, ok := store.Get("racy.pdf")
	assert.False(t, ok)

	_, ok = store.Get("racy.pdf")
	assert.False(t, ok, "repeated lookups must not repopulate the cache")
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"simple.pdf":          "simple.pdf",
		"../../etc/passwd":    "passwd",
		"dir/inner/file.pdf":  "file.pdf",
		"":                    "unnamed",
		"..":                  "unnamed",
	}

	for input, want := range cases {
		assert.Equal(t, want, sanitizeFilename(input), "input: %q", input)
	}
}
