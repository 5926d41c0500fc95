package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"avatar-chat-backend/internal/logger"
	"avatar-chat-backend/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

// KnowledgeStore keeps knowledge base entries in two tiers: a bounded
// in-process LRU cache over one JSON file per document on disk. The cache
// copy is authoritative for the process lifetime; disk is the durable tier
// and the source for entries evicted from the cache or written by a
// previous run.
type KnowledgeStore struct {
	cache *lru.Cache[string, *models.KnowledgeEntry]
	dir   string

	// mu guards deleted, cache membership changes and disk writes.
	// Concurrent Put calls for the same filename are last-writer-wins.
	// deleted marks keys whose in-flight persist or disk load must be
	// dropped instead of resurrecting the entry.
	mu      sync.Mutex
	deleted map[string]bool
}

// NewKnowledgeStore creates the store, its on-disk directory, and the LRU
// cache tier.
func NewKnowledgeStore(dir string, cacheSize int) (*KnowledgeStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create knowledge directory: %w", err)
	}

	if cacheSize <= 0 {
		cacheSize = 64
	}
	cache, err := lru.New[string, *models.KnowledgeEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge cache: %w", err)
	}

	return &KnowledgeStore{cache: cache, dir: dir, deleted: make(map[string]bool)}, nil
}

// Put stores an entry under its filename. The cache insert is synchronous,
// so a Get immediately after Put always succeeds; the disk write happens on
// a background goroutine and a persistence failure only costs durability
// across restarts.
func (s *KnowledgeStore) Put(filename string, entry *models.KnowledgeEntry) {
	key := sanitizeFilename(filename)

	s.mu.Lock()
	delete(s.deleted, key)
	s.cache.Add(key, entry)
	s.mu.Unlock()

	go func() {
		if err := s.persist(key, entry); err != nil {
			logger.Error("failed to persist knowledge entry", "filename", filename, "error", err)
		}
	}()
}

// Get returns the entry for a filename, loading from disk on a cache miss
// and repopulating the cache. The second return is false when the entry
// exists in neither tier.
func (s *KnowledgeStore) Get(filename string) (*models.KnowledgeEntry, bool) {
	key := sanitizeFilename(filename)

	if entry, ok := s.cache.Get(key); ok {
		return entry, true
	}

	entry, err := s.load(key)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("failed to load knowledge entry", "filename", filename, "error", err)
		}
		return nil, false
	}

	// A concurrent Delete may have removed the file after we read it; the
	// marker check keeps the deleted entry out of the cache tier.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted[key] {
		return nil, false
	}
	s.cache.Add(key, entry)
	return entry, true
}

// List returns summaries of every stored document, merging the cache and
// the on-disk directory and deduplicating by filename. Vectors are not
// loaded for disk-only entries; the summary comes from a full decode, which
// is acceptable at the document counts this store serves.
func (s *KnowledgeStore) List() []models.DocumentSummary {
	seen := make(map[string]models.DocumentSummary)

	for _, key := range s.cache.Keys() {
		if entry, ok := s.cache.Peek(key); ok {
			seen[key] = summarize(entry)
		}
	}

	files, err := os.ReadDir(s.dir)
	if err != nil {
		logger.Error("failed to read knowledge directory", "dir", s.dir, "error", err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		key := strings.TrimSuffix(f.Name(), ".json")
		if _, ok := seen[key]; ok {
			continue
		}
		entry, err := s.load(key)
		if err != nil {
			logger.Warn("skipping unreadable knowledge file", "file", f.Name(), "error", err)
			continue
		}
		seen[key] = summarize(entry)
	}

	summaries := make([]models.DocumentSummary, 0, len(seen))
	for _, summary := range seen {
		summaries = append(summaries, summary)
	}
	return summaries
}

// Delete removes an entry from both tiers. It reports whether the entry
// existed in either.
func (s *KnowledgeStore) Delete(filename string) bool {
	key := sanitizeFilename(filename)

	s.mu.Lock()
	defer s.mu.Unlock()
	existed := s.cache.Remove(key)
	s.deleted[key] = true
	err := os.Remove(s.path(key))
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		logger.Error("failed to delete knowledge file", "filename", filename, "error", err)
	}
	return existed
}

func (s *KnowledgeStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// persist writes the entry JSON to a temp file and renames it into place so
// readers never observe a partial file.
func (s *KnowledgeStore) persist(key string, entry *models.KnowledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted[key] {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *KnowledgeStore) load(key string) (*models.KnowledgeEntry, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, err
	}

	var entry models.KnowledgeEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

func summarize(entry *models.KnowledgeEntry) models.DocumentSummary {
	return models.DocumentSummary{
		Filename:    entry.Document.Filename,
		ChunkCount:  len(entry.Chunks),
		TextLength:  entry.Document.TextLength,
		ProcessedAt: entry.ProcessedAt,
	}
}

// sanitizeFilename reduces an upload filename to a safe storage key: its
// basename with path separators and parent references stripped.
func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = strings.TrimSuffix(name, ".json")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
