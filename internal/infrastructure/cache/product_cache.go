package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropsync/backend/internal/domain/integration"
)

// entryFileExt is the extension of cache entry files
const entryFileExt = ".json"

// FileProductCache implements integration.ProductCache with one JSON file per
// entity under a cache directory. Entries expire by time only; there is no
// size-based eviction.
//
// Writes go to a temp file first and are renamed into place, so a half-written
// file is never picked up as a valid entry. Decode failures on read are
// treated as a miss, never as a hard failure.
type FileProductCache struct {
	dir     string
	ttl     time.Duration
	logger  *zap.Logger
	nowFunc func() time.Time
}

// cacheEntry is the on-disk shape of a cache file
type cacheEntry struct {
	EntityID  string          `json:"entity_id"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// NewFileProductCache creates a file cache rooted at dir with the given TTL.
func NewFileProductCache(dir string, ttl time.Duration, logger *zap.Logger) (*FileProductCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	return &FileProductCache{
		dir:     dir,
		ttl:     ttl,
		logger:  logger.Named("cache"),
		nowFunc: time.Now,
	}, nil
}

// Get returns the cached payload for an entity, or ErrCacheMiss when the
// entry is absent, expired, or unreadable.
func (c *FileProductCache) Get(_ context.Context, entityID string) ([]byte, error) {
	data, err := os.ReadFile(c.entryPath(entityID))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("cache read failed, treating as miss",
				zap.String("entity_id", entityID),
				zap.Error(err))
		}
		return nil, integration.ErrCacheMiss
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("malformed cache entry, treating as miss",
			zap.String("entity_id", entityID),
			zap.Error(err))
		return nil, integration.ErrCacheMiss
	}

	if !c.nowFunc().Before(entry.ExpiresAt) {
		return nil, integration.ErrCacheMiss
	}

	return entry.Payload, nil
}

// Put writes the payload for an entity, replacing any previous entry.
func (c *FileProductCache) Put(_ context.Context, entityID string, payload []byte) error {
	now := c.nowFunc()
	entry := cacheEntry{
		EntityID:  entityID,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
		Payload:   json.RawMessage(payload),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}

	// Write-then-rename keeps readers from ever seeing a partial file.
	tmp, err := os.CreateTemp(c.dir, "."+sanitizeEntityID(entityID)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, c.entryPath(entityID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: replace entry: %w", err)
	}

	return nil
}

// Invalidate removes a single entry. Removing an absent entry is not an error.
func (c *FileProductCache) Invalidate(_ context.Context, entityID string) error {
	if err := os.Remove(c.entryPath(entityID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cache: invalidate entry: %w", err)
	}
	return nil
}

// InvalidateAll removes every entry in the cache directory.
func (c *FileProductCache) InvalidateAll(_ context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("cache: list entries: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), entryFileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cache: invalidate entry %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// entryPath returns the file path for an entity ID
func (c *FileProductCache) entryPath(entityID string) string {
	return filepath.Join(c.dir, sanitizeEntityID(entityID)+entryFileExt)
}

// sanitizeEntityID keeps entity IDs safe as file names
func sanitizeEntityID(entityID string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	return replacer.Replace(entityID)
}

// Ensure FileProductCache implements the ProductCache port
var _ integration.ProductCache = (*FileProductCache)(nil)
