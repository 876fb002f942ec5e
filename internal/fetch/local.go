package fetch

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Local resolves site-relative references against a static root directory,
// so internal images are read straight from disk instead of looping back
// through the network.
type Local struct {
	root   string
	maxAge int // advertised Cache-Control max-age for static files, seconds
}

// NewLocal returns a Local serving files under root.
func NewLocal(root string, maxAge int) *Local {
	return &Local{root: root, maxAge: maxAge}
}

// Fetch reads the file behind the site-relative ref. Query strings are
// ignored; paths containing traversal components never resolve.
func (l *Local) Fetch(ctx context.Context, ref string) (*Result, error) {
	path, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{Status: 404}, ErrUpstream
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))

	return &Result{
		Body:         body,
		ContentType:  contentType,
		CacheControl: fmt.Sprintf("public, max-age=%d", l.maxAge),
		Status:       200,
	}, nil
}

// resolve maps a site-relative reference to a path under the static root,
// rejecting anything that would escape it.
func (l *Local) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing reference %q: %w", ref, err)
	}

	cleaned := filepath.Clean(u.Path)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("reference %q escapes the static root", ref)
	}

	return filepath.Join(l.root, filepath.FromSlash(cleaned)), nil
}
