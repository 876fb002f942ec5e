package optimizer

import (
	"net/http"
	"testing"
	"time"
)

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestFresh_Unconditional(t *testing.T) {
	if fresh(headers(), `"abc"`, time.Time{}) {
		t.Error("no conditional headers: got fresh, want stale")
	}
}

func TestFresh_ETagMatch(t *testing.T) {
	etag := `"abc"`
	cases := []struct {
		noneMatch string
		want      bool
	}{
		{`"abc"`, true},
		{`"xyz"`, false},
		{`"xyz", "abc"`, true},
		{`W/"abc"`, true}, // weak form matches strong candidate
		{`"abc", "def"`, true},
		{`*`, true}, // wildcard never forces a full response here
	}
	for _, c := range cases {
		got := fresh(headers("If-None-Match", c.noneMatch), etag, time.Time{})
		if got != c.want {
			t.Errorf("If-None-Match %q: got %v, want %v", c.noneMatch, got, c.want)
		}
	}
}

func TestFresh_WeakCandidate(t *testing.T) {
	if !fresh(headers("If-None-Match", `"abc"`), `W/"abc"`, time.Time{}) {
		t.Error("strong match against weak candidate: got stale, want fresh")
	}
}

func TestFresh_NoCacheForcesRevalidation(t *testing.T) {
	h := headers("If-None-Match", `"abc"`, "Cache-Control", "no-cache")
	if fresh(h, `"abc"`, time.Time{}) {
		t.Error("no-cache: got fresh, want stale")
	}
	// no-cache must match as a token, not a substring.
	h = headers("If-None-Match", `"abc"`, "Cache-Control", "max-age=0")
	if !fresh(h, `"abc"`, time.Time{}) {
		t.Error("max-age=0 only: got stale, want fresh")
	}
}

func TestFresh_EmptyETag(t *testing.T) {
	if fresh(headers("If-None-Match", `"abc"`), "", time.Time{}) {
		t.Error("no candidate etag: got fresh, want stale")
	}
}

func TestFresh_IfModifiedSince(t *testing.T) {
	since := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h := headers("If-Modified-Since", since.Format(http.TimeFormat))

	// No last-modified available: always stale.
	if fresh(h, "", time.Time{}) {
		t.Error("no last-modified: got fresh, want stale")
	}
	// Modified before the client's copy: fresh.
	if !fresh(h, "", since.Add(-time.Hour)) {
		t.Error("older last-modified: got stale, want fresh")
	}
	// Modified after: stale.
	if fresh(h, "", since.Add(time.Hour)) {
		t.Error("newer last-modified: got fresh, want stale")
	}
	// Malformed date: stale.
	if fresh(headers("If-Modified-Since", "not a date"), "", since) {
		t.Error("malformed If-Modified-Since: got fresh, want stale")
	}
}

func TestFresh_ETagTakesPrecedence(t *testing.T) {
	since := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h := headers(
		"If-None-Match", `"abc"`,
		"If-Modified-Since", since.Format(http.TimeFormat),
	)
	// Matching etag decides even though no last-modified exists.
	if !fresh(h, `"abc"`, time.Time{}) {
		t.Error("matching etag with If-Modified-Since present: got stale, want fresh")
	}
}
