// Package server hosts the image optimization endpoint alongside the
// static file root it optimizes from. In dev mode it also runs a
// filesystem watcher that purges the image cache when source files change,
// and a websocket feed of cache activity.
package server

import (
	"context"
	"fmt"
	"log"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aellingwood/glaze/internal/config"
)

// ServeOptions contains the configurable settings for the server.
type ServeOptions struct {
	Dev     bool
	Verbose bool
}

// Server is the HTTP server exposing /_image, the static root, and (in
// dev mode) the /_glaze/events feed.
type Server struct {
	cfg       *config.Config
	opts      ServeOptions
	optimizer http.Handler
	hub       *Hub
	watcher   *Watcher
	server    *http.Server
}

// NewServer creates a Server routing /_image to the given handler.
func NewServer(cfg *config.Config, optimizer http.Handler, opts ServeOptions) *Server {
	return &Server{
		cfg:       cfg,
		opts:      opts,
		optimizer: optimizer,
		hub:       NewHub(),
	}
}

// Hub returns the server's event hub, for wiring into the optimizer and
// the watcher.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetWatcher configures the file watcher for the server.
func (s *Server) SetWatcher(w *Watcher) {
	s.watcher = w
}

// Start starts the HTTP server and, in dev mode, the event hub and file
// watcher. It blocks until the provided context is cancelled or the
// server is stopped.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/_image", s.optimizer)
	if s.opts.Dev {
		go s.hub.Run()
		mux.HandleFunc("/_glaze/events", s.hub.HandleWS)
	}
	mux.HandleFunc("/", s.handleStatic)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Bind, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	if s.watcher != nil {
		go func() {
			if err := s.watcher.Start(); err != nil {
				log.Printf("watcher error: %v", err)
			}
		}()
	}

	fmt.Printf("Serving at http://%s\n", addr)

	// Listen for context cancellation to trigger graceful shutdown.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server, watcher, and hub.
func (s *Server) Stop() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.opts.Dev {
		s.hub.Stop()
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleStatic serves files from the static root. Image references the
// optimizer resolves internally go through the same resolution, so what
// the optimizer caches is exactly what this handler would serve.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	filePath := s.resolveFilePath(r.URL.Path)
	if filePath == "" {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	if s.opts.Dev {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	} else {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.cfg.Static.MaxAge))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// resolveFilePath maps a URL path to a file in the static root, rejecting
// traversal attempts and directories.
func (s *Server) resolveFilePath(urlPath string) string {
	cleaned := filepath.Clean(urlPath)
	if strings.Contains(cleaned, "..") {
		return ""
	}

	fullPath := filepath.Join(s.cfg.Static.Root, filepath.FromSlash(cleaned))
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return ""
	}
	return fullPath
}
