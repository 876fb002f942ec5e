package optimizer

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aellingwood/glaze/internal/config"
	"github.com/munnerz/goautoneg"
)

// request is the validated, immutable form of one transformation request.
type request struct {
	href       string // canonical source reference
	isAbsolute bool
	width      int
	quality    int
	mimeType   string // negotiated output MIME type, "" when nothing matched
}

// badRequest carries the rejection status and the plain-text reason sent
// to the client.
type badRequest struct {
	status  int
	message string
}

func (e *badRequest) Error() string { return e.message }

func reject(message string) *badRequest {
	return &badRequest{status: http.StatusBadRequest, message: message}
}

// parseRequest validates the query parameters in order; the first failure
// wins. Format negotiation never fails: no Accept match just leaves
// mimeType empty and the pipeline falls back later.
func parseRequest(r *http.Request, cfg *config.Config) (*request, *badRequest) {
	query := r.URL.Query()

	urls, ok := query["url"]
	if !ok || urls[0] == "" {
		return nil, reject(`"url" parameter is required`)
	}
	if len(urls) > 1 {
		return nil, reject(`"url" parameter cannot be an array`)
	}
	rawURL := urls[0]

	var href string
	var isAbsolute bool

	if strings.HasPrefix(rawURL, "/") {
		href = rawURL
	} else {
		parsed, err := url.Parse(rawURL)
		if err != nil || parsed.Hostname() == "" {
			return nil, reject(`"url" parameter is invalid`)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, reject(`"url" parameter is invalid`)
		}
		if !containsString(cfg.Images.Domains, parsed.Hostname()) {
			return nil, reject(`"url" parameter is not allowed`)
		}
		href = parsed.String()
		isAbsolute = true
	}

	ws, ok := query["w"]
	if !ok || ws[0] == "" {
		return nil, reject(`"w" parameter (width) is required`)
	}
	if len(ws) > 1 {
		return nil, reject(`"w" parameter (width) cannot be an array`)
	}

	qs, ok := query["q"]
	if !ok || qs[0] == "" {
		return nil, reject(`"q" parameter (quality) is required`)
	}
	if len(qs) > 1 {
		return nil, reject(`"q" parameter (quality) cannot be an array`)
	}

	width, err := strconv.Atoi(ws[0])
	if err != nil || width == 0 {
		return nil, reject(`"w" parameter (width) must be a number greater than 0`)
	}
	if !containsInt(cfg.AllowedSizes(), width) {
		return nil, reject(fmt.Sprintf(`"w" parameter (width) of %d is not allowed`, width))
	}

	quality, err := strconv.Atoi(qs[0])
	if err != nil || quality < 1 || quality > 100 {
		return nil, reject(`"q" parameter (quality) must be a number between 1 and 100`)
	}

	return &request{
		href:       href,
		isAbsolute: isAbsolute,
		width:      width,
		quality:    quality,
		mimeType:   negotiateMimeType(cfg.Images.Formats, r.Header.Get("Accept")),
	}, nil
}

// negotiateMimeType picks the preferred supported output type for the
// client's Accept header. The chosen type must appear literally in the
// header; wildcard-only matches fall through to the default format
// decision instead.
func negotiateMimeType(formats []string, accept string) string {
	mimeType := goautoneg.Negotiate(accept, formats)
	if mimeType == "" || !strings.Contains(accept, mimeType) {
		return ""
	}
	return mimeType
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}
