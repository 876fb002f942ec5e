package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aellingwood/glaze/internal/imagetype"
)

// ---------------------------------------------------------------
// Fingerprint tests
// ---------------------------------------------------------------

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint(Version, "/logo.png", 640, 75, "image/webp")
	b := Fingerprint(Version, "/logo.png", 640, 75, "image/webp")
	if a != b {
		t.Errorf("identical inputs: got %q and %q", a, b)
	}
}

func TestFingerprint_DistinguishesInputs(t *testing.T) {
	base := Fingerprint(Version, "/logo.png", 640, 75, "image/webp")
	variants := []string{
		Fingerprint(Version+1, "/logo.png", 640, 75, "image/webp"),
		Fingerprint(Version, "/logo2.png", 640, 75, "image/webp"),
		Fingerprint(Version, "/logo.png", 750, 75, "image/webp"),
		Fingerprint(Version, "/logo.png", 640, 80, "image/webp"),
		Fingerprint(Version, "/logo.png", 640, 75, "image/avif"),
		Fingerprint(Version, "/logo.png", 640, 75, ""),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base fingerprint", i)
		}
	}
}

func TestFingerprint_FilesystemSafe(t *testing.T) {
	fp := Fingerprint(Version, "https://example.com/a/b.png?x=1", 640, 75, "image/webp")
	if strings.ContainsAny(fp, "/.") {
		t.Errorf("fingerprint %q contains path separators or dots", fp)
	}
}

func TestETag_TracksContent(t *testing.T) {
	if ETag([]byte("a")) == ETag([]byte("b")) {
		t.Error("different payloads share an etag")
	}
	if ETag([]byte("a")) != ETag([]byte("a")) {
		t.Error("identical payloads disagree on etag")
	}
}

// ---------------------------------------------------------------
// Store tests
// ---------------------------------------------------------------

func TestStore_LookupMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	entry, err := s.Lookup("nope", 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry != nil {
		t.Errorf("got entry %+v, want nil", entry)
	}
}

func TestStore_WriteThenLookup(t *testing.T) {
	s := NewStore(t.TempDir())
	payload := []byte("image bytes")
	now := int64(1_000_000)
	expireAt := now + 60_000

	if err := s.Write("fp1", imagetype.WEBP, 60, expireAt, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entry, err := s.Lookup("fp1", now)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry == nil {
		t.Fatal("got nil entry, want fresh hit")
	}
	if entry.MaxAge != 60 {
		t.Errorf("MaxAge: got %d, want 60", entry.MaxAge)
	}
	if entry.ExpireAt != expireAt {
		t.Errorf("ExpireAt: got %d, want %d", entry.ExpireAt, expireAt)
	}
	if entry.ContentType != imagetype.WEBP {
		t.Errorf("ContentType: got %q, want %q", entry.ContentType, imagetype.WEBP)
	}
	if entry.ETag != ETag(payload) {
		t.Errorf("ETag: got %q, want %q", entry.ETag, ETag(payload))
	}

	got, err := os.ReadFile(entry.Path)
	if err != nil {
		t.Fatalf("reading entry payload: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("payload: got %q, want %q", got, payload)
	}
}

func TestStore_FilenameEncodesMetadata(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	payload := []byte("png-ish")

	if err := s.Write("fp2", imagetype.PNG, 75, 1234567, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	files, err := os.ReadDir(s.Dir("fp2"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	want := fmt.Sprintf("75.1234567.%s.png", ETag(payload))
	if files[0].Name() != want {
		t.Errorf("filename: got %q, want %q", files[0].Name(), want)
	}
}

func TestStore_NegativeMaxAgeRoundTrips(t *testing.T) {
	s := NewStore(t.TempDir())
	payload := []byte("stubborn origin")
	now := int64(1_000_000)
	expireAt := now + 60_000

	// Origins can send Cache-Control: max-age=-1; the entry must survive
	// its own Lookup, not be swept as malformed.
	if err := s.Write("fpneg", imagetype.PNG, -1, expireAt, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entry, err := s.Lookup("fpneg", now)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry == nil {
		t.Fatal("got nil entry, want fresh hit")
	}
	if entry.MaxAge != -1 {
		t.Errorf("MaxAge: got %d, want -1", entry.MaxAge)
	}

	files, _ := os.ReadDir(s.Dir("fpneg"))
	if len(files) != 1 {
		t.Errorf("got %d files after Lookup, want 1", len(files))
	}
}

func TestStore_FreshnessBoundary(t *testing.T) {
	s := NewStore(t.TempDir())
	now := int64(5_000_000)
	expireAt := now + 60_000

	if err := s.Write("fp3", imagetype.JPEG, 60, expireAt, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Any instant strictly before expiry is fresh.
	if entry, _ := s.Lookup("fp3", expireAt-1); entry == nil {
		t.Error("at expireAt-1: got miss, want fresh entry")
	}
	// At expiry the entry is stale, deleted, and the lookup misses.
	if entry, _ := s.Lookup("fp3", expireAt); entry != nil {
		t.Error("at expireAt: got entry, want miss")
	}
	files, _ := os.ReadDir(s.Dir("fp3"))
	if len(files) != 0 {
		t.Errorf("expired entry not deleted: %d files remain", len(files))
	}
}

func TestStore_SkipsAndDeletesMalformed(t *testing.T) {
	s := NewStore(t.TempDir())
	dir := s.Dir("fp4")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"garbage", "a.b.c", "60.notanumber.etag.png", "60.99.etag.exe"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entry, err := s.Lookup("fp4", 0)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry != nil {
		t.Errorf("got entry %+v, want nil", entry)
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 0 {
		t.Errorf("malformed entries not cleaned up: %d files remain", len(files))
	}
}

func TestStore_FirstFreshEntryWins(t *testing.T) {
	s := NewStore(t.TempDir())
	now := int64(1_000)

	// A stale entry and a fresh one in the same directory; the stale one
	// is evicted in passing and the fresh one is served.
	if err := s.Write("fp5", imagetype.WEBP, 10, now-1, []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("fp5", imagetype.WEBP, 60, now+60_000, []byte("new")); err != nil {
		t.Fatal(err)
	}

	entry, err := s.Lookup("fp5", now)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry == nil {
		t.Fatal("got nil entry, want the fresh one")
	}
	if entry.ExpireAt != now+60_000 {
		t.Errorf("served the wrong entry: ExpireAt %d", entry.ExpireAt)
	}
	files, _ := os.ReadDir(s.Dir("fp5"))
	if len(files) != 1 {
		t.Errorf("stale sibling not evicted: %d files remain", len(files))
	}
}

func TestStore_WriteRejectsUnknownContentType(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Write("fp6", "application/pdf", 60, 1, []byte("x")); err == nil {
		t.Error("got nil error, want rejection for unknown content type")
	}
}

func TestStore_Purge(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	if err := s.Write("fp7", imagetype.PNG, 60, 1_000_000, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "cache", "images")); !os.IsNotExist(err) {
		t.Error("cache directory still exists after purge")
	}
	// Purging an already-empty cache is fine.
	if err := s.Purge(); err != nil {
		t.Fatalf("second Purge: %v", err)
	}
}
