// Package fetch obtains source image bytes for the optimizer, either from
// a remote origin over HTTP or from the local static root for
// site-relative references.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUpstream marks a fetch that completed but returned a non-success
// status; Result.Status carries the upstream code so the caller can
// mirror it.
var ErrUpstream = errors.New("upstream response invalid")

// Result is the outcome of acquiring source bytes for one reference.
type Result struct {
	Body         []byte
	ContentType  string // as declared by the origin; may be empty or wrong
	CacheControl string
	Status       int
}

// Fetcher obtains the bytes behind a source reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (*Result, error)
}

// Remote fetches absolute URLs with a plain GET.
type Remote struct {
	client *http.Client
}

// NewRemote returns a Remote with the given request timeout. A zero
// timeout means no limit, which leaves followers of a hung fetch blocked;
// callers should pass one.
func NewRemote(timeout time.Duration) *Remote {
	return &Remote{client: &http.Client{Timeout: timeout}}
}

// Fetch performs a GET against href and buffers the full response.
func (r *Remote) Fetch(ctx context.Context, href string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", href, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Result{Status: resp.StatusCode}, ErrUpstream
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upstream body: %w", err)
	}

	return &Result{
		Body:         body,
		ContentType:  resp.Header.Get("Content-Type"),
		CacheControl: resp.Header.Get("Cache-Control"),
		Status:       resp.StatusCode,
	}, nil
}
