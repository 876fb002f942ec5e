// Package optimizer implements the on-demand image transformation
// pipeline: validate the request, coalesce concurrent work per
// fingerprint, consult the disk cache, fetch the source, decide
// pass-through versus transcode, persist, and respond with correct HTTP
// caching semantics.
package optimizer

import (
	"errors"
	"log"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/aellingwood/glaze/internal/cache"
	"github.com/aellingwood/glaze/internal/codec"
	"github.com/aellingwood/glaze/internal/config"
	"github.com/aellingwood/glaze/internal/fetch"
	"github.com/aellingwood/glaze/internal/imagetype"
	"github.com/aellingwood/glaze/internal/inflight"
)

// Events receives cache activity notifications. Used by the dev server's
// event feed; the default implementation discards everything.
type Events interface {
	Publish(msg string)
}

type nopEvents struct{}

func (nopEvents) Publish(string) {}

// Options contains the optional settings for an Optimizer.
type Options struct {
	Dev    bool   // dev mode: Cache-Control max-age forced to 0
	Events Events // cache activity sink; nil discards
}

// Optimizer handles the /_image endpoint.
type Optimizer struct {
	cfg    *config.Config
	store  *cache.Store
	flight *inflight.Map
	remote fetch.Fetcher
	local  fetch.Fetcher
	engine codec.Engine
	events Events
	dev    bool
}

// New creates an Optimizer. The config must not be mutated afterwards.
func New(cfg *config.Config, store *cache.Store, remote, local fetch.Fetcher, engine codec.Engine, opts Options) *Optimizer {
	events := opts.Events
	if events == nil {
		events = nopEvents{}
	}
	return &Optimizer{
		cfg:    cfg,
		store:  store,
		flight: inflight.NewMap(),
		remote: remote,
		local:  local,
		engine: engine,
		events: events,
		dev:    opts.Dev,
	}
}

// SetEvents replaces the cache activity sink. Call before serving.
func (o *Optimizer) SetEvents(events Events) {
	if events == nil {
		events = nopEvents{}
	}
	o.events = events
}

// ServeHTTP runs the pipeline for one request. Rejections before
// deduplication never touch the in-flight map; once Begin has run, the
// deferred Complete releases the marker on every exit path.
func (o *Optimizer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if o.cfg.Images.Loader != "default" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	req, bad := parseRequest(r, o.cfg)
	if bad != nil {
		http.Error(w, bad.message, bad.status)
		return
	}

	fp := cache.Fingerprint(cache.Version, req.href, req.width, req.quality, req.mimeType)

	// If the same transformation is already running, wait for it; the
	// cache check below then usually hits. If the owner failed, the
	// re-check misses and this request becomes the new owner.
	if err := o.flight.Await(r.Context(), fp); err != nil {
		return // client gave up while queued
	}
	o.flight.Begin(fp)
	defer o.flight.Complete(fp)

	if err := o.serve(w, r, req, fp); err != nil {
		log.Printf("image optimizer: %s: %v", req.href, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// serve runs the pipeline after deduplication. A returned error means
// nothing has been written yet and the caller responds 500.
func (o *Optimizer) serve(w http.ResponseWriter, r *http.Request, req *request, fp string) error {
	now := time.Now().UnixMilli()

	served, err := o.serveCached(w, r, req, fp, now)
	if err != nil {
		return err
	}
	if served {
		return nil
	}
	o.events.Publish("miss " + fp)

	fetcher := o.local
	if req.isAbsolute {
		fetcher = o.remote
	}
	upstream, err := fetcher.Fetch(r.Context(), req.href)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fetch.ErrUpstream) && upstream.Status != 0 {
			status = upstream.Status
		}
		http.Error(w, `"url" parameter is valid but upstream response is invalid`, status)
		return nil
	}

	age := maxAge(upstream.CacheControl)
	ttl := age
	if ttl < o.cfg.Images.MinimumCacheTTL {
		ttl = o.cfg.Images.MinimumCacheTTL
	}
	expireAt := now + int64(ttl)*1000

	// The sniffed type always beats the declared one; origins lie.
	upstreamType := imagetype.Detect(upstream.Body)
	if upstreamType == "" {
		upstreamType = declaredMediaType(upstream.ContentType)
	}

	if upstreamType != "" {
		vector := imagetype.IsVector(upstreamType)
		animated := imagetype.IsAnimatable(upstreamType) && imagetype.IsAnimated(upstream.Body)
		if vector || animated {
			// Transcoding would flatten animation or rasterise
			// vectors; serve the original bytes verbatim.
			return o.persistAndSend(w, r, req, fp, upstreamType, age, expireAt, upstream.Body)
		}
		if !imagetype.IsImage(upstreamType) {
			http.Error(w, "The requested resource isn't a valid image.", http.StatusBadRequest)
			return nil
		}
	}

	contentType := req.mimeType
	if contentType == "" && imagetype.Extension(upstreamType) != "" {
		contentType = upstreamType
	}
	if contentType == "" {
		contentType = imagetype.JPEG
	}

	optimized, err := o.engine.Transform(upstream.Body, codec.Options{
		Width:   req.width,
		Quality: req.quality,
		Format:  contentType,
	})
	if err != nil {
		// Degrade to the original bytes rather than failing the
		// request; the entry is still cached so followers don't
		// repeat the failing transform.
		log.Printf("image optimizer: codec failed for %s, serving original: %v", req.href, err)
		if imagetype.Extension(upstreamType) == "" {
			o.send(w, r, req.href, age, upstreamType, upstream.Body)
			return nil
		}
		return o.persistAndSend(w, r, req, fp, upstreamType, age, expireAt, upstream.Body)
	}

	// The fallback engine may have downgraded the target format; trust
	// the bytes that were actually produced.
	if got := imagetype.Detect(optimized); got != "" {
		contentType = got
	}

	return o.persistAndSend(w, r, req, fp, contentType, age, expireAt, optimized)
}

// serveCached serves a fresh cache entry if one exists. The bool result
// reports whether a response was written.
func (o *Optimizer) serveCached(w http.ResponseWriter, r *http.Request, req *request, fp string, now int64) (bool, error) {
	entry, err := o.store.Lookup(fp, now)
	if err != nil || entry == nil {
		return false, err
	}

	payload, err := os.ReadFile(entry.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// Raced with an eviction; treat as a miss.
			return false, nil
		}
		return false, err
	}

	o.events.Publish("hit " + fp)
	if finished := writeHeaders(w, r, req.href, entry.ETag, entry.MaxAge, entry.ContentType, o.dev); !finished {
		_, _ = w.Write(payload)
	}
	return true, nil
}

// persistAndSend writes the payload to the cache, then serves it.
func (o *Optimizer) persistAndSend(w http.ResponseWriter, r *http.Request, req *request, fp, contentType string, age int, expireAt int64, payload []byte) error {
	if err := o.store.Write(fp, contentType, age, expireAt, payload); err != nil {
		return err
	}
	o.events.Publish("write " + fp)
	o.send(w, r, req.href, age, contentType, payload)
	return nil
}

// send writes a full response (or a 304) for payload.
func (o *Optimizer) send(w http.ResponseWriter, r *http.Request, srcURL string, age int, contentType string, payload []byte) {
	etag := cache.ETag(payload)
	if finished := writeHeaders(w, r, srcURL, etag, age, contentType, o.dev); !finished {
		_, _ = w.Write(payload)
	}
}

// declaredMediaType extracts the bare media type from a Content-Type
// header value, tolerating parameters and malformed input.
func declaredMediaType(header string) string {
	if header == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return header
	}
	return mediaType
}
