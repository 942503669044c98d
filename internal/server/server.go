// Package server exposes the wiki store over a small JSON API: the image and
// page endpoints the link resolver consumes, and the canonical image link
// target /api/images/{id}.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/wikisync/internal/wiki"
)

// DefaultEditor is recorded on versions created through the API when the
// request names no editor.
const DefaultEditor = "api"

// Store is the persistence the API serves.
type Store interface {
	Ping(ctx context.Context) error
	ListImages(ctx context.Context) ([]wiki.Image, error)
	GetImage(ctx context.Context, id int64) (wiki.Image, error)
	FindImageByFilename(ctx context.Context, filename string) (wiki.Image, error)
	ReadImageData(ctx context.Context, id int64) ([]byte, error)
	ListPages(ctx context.Context) ([]wiki.Page, error)
	GetPage(ctx context.Context, id int64) (wiki.Page, error)
	UpdatePageContent(ctx context.Context, id int64, content, editedBy, summary string) (wiki.Page, wiki.PageVersion, error)
}

// Options configures the API.
type Options struct {
	// APIKey, when set, is required as a bearer token on every route except
	// the health check.
	APIKey string

	// Logger receives one line per request. Nil means slog.Default().
	Logger *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	store Store
	opts  Options
	log   *slog.Logger
}

// New creates a Server.
func New(store Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{store: store, opts: opts, log: opts.Logger}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.Health)
		// Canonical image links are embedded in page content, so image
		// bytes are readable without a key. Listing still needs one.
		r.Get("/images/{ref}", s.GetImage)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)
			r.Get("/images", s.ListImages)
			r.Get("/pages", s.ListPages)
			r.Get("/pages/{id}", s.GetPage)
			r.Put("/pages/{id}", s.UpdatePage)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("api shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.APIKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "missing or invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
