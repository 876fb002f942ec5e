package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aellingwood/glaze/internal/imagetype"
)

// Entry describes one stored transformation result. All metadata lives in
// the filename: {maxAge}.{expireAt}.{etag}.{extension}.
type Entry struct {
	MaxAge      int    // origin-reported max-age, seconds
	ExpireAt    int64  // absolute expiry, epoch milliseconds
	ETag        string // content hash of the payload
	ContentType string // reconstructed from the filename extension
	Path        string // filesystem path of the payload
}

// Store is the on-disk image cache rooted at {root}/cache/images. The
// directory tree may be shared with other processes; every operation
// tolerates entries appearing or vanishing underneath it.
type Store struct {
	root string
}

// NewStore creates a Store rooted at root. The cache directory itself is
// created lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Dir returns the directory holding entries for the given fingerprint.
func (s *Store) Dir(fingerprint string) string {
	return filepath.Join(s.root, "cache", "images", fingerprint)
}

// Lookup scans the fingerprint's directory for a fresh entry. Expired and
// malformed entries are deleted in passing; the first fresh entry wins.
// A missing directory is an ordinary miss.
func (s *Store) Lookup(fingerprint string, now int64) (*Entry, error) {
	dir := s.Dir(fingerprint)
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		path := filepath.Join(dir, f.Name())
		entry, ok := parseEntryName(f.Name())
		if !ok {
			// Not a cache entry we understand; remove it so the
			// directory converges to the current format.
			_ = os.Remove(path)
			continue
		}
		if now >= entry.ExpireAt {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("evicting expired entry: %w", err)
			}
			continue
		}
		entry.Path = path
		return entry, nil
	}
	return nil, nil
}

// Write persists payload as the entry for fingerprint. Directory creation
// is idempotent so concurrent writers (other processes sharing the cache
// root) cannot trip each other.
func (s *Store) Write(fingerprint, contentType string, maxAge int, expireAt int64, payload []byte) error {
	dir := s.Dir(fingerprint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	ext := imagetype.Extension(contentType)
	if ext == "" {
		return fmt.Errorf("no extension for content type %q", contentType)
	}

	name := fmt.Sprintf("%d.%d.%s.%s", maxAge, expireAt, ETag(payload), ext)
	if err := os.WriteFile(filepath.Join(dir, name), payload, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Purge removes the entire image cache. Used by the purge command and the
// dev-mode watcher; a missing cache is not an error.
func (s *Store) Purge() error {
	dir := filepath.Join(s.root, "cache", "images")
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}
	return nil
}

// parseEntryName decodes {maxAge}.{expireAt}.{etag}.{extension}. Strict:
// anything that does not parse exactly is rejected.
func parseEntryName(name string) (*Entry, bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 4 {
		return nil, false
	}
	// Origins may report a negative max-age; the value is served back
	// as-is, so it round-trips through the filename too.
	maxAge, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, false
	}
	expireAt, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, false
	}
	contentType := imagetype.ByExtension(parts[3])
	if parts[2] == "" || contentType == "" {
		return nil, false
	}
	return &Entry{
		MaxAge:      maxAge,
		ExpireAt:    expireAt,
		ETag:        parts[2],
		ContentType: contentType,
	}, true
}
