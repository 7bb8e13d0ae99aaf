// Package webapi serves the transcript service over a small JSON HTTP API.
package webapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/anatolykoptev/go_transcript/internal/toolutil"
)

const (
	transcriptBodyLimit = 64 << 10
	// Explanations use at most 4000 runes of transcript; 4 bytes each plus JSON overhead.
	explainBodyLimit = 32 << 10
)

// Options configures the HTTP API.
type Options struct {
	CORSOrigins        []string
	RateLimitPerMinute int
	Version            string
}

// NewRouter builds the chi router for svc.
func NewRouter(svc *toolutil.Service, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(cors.Handler(corsOptions(opts.CORSOrigins)))

	h := &handler{svc: svc, version: opts.Version}
	limiter := newIPLimiter(opts.RateLimitPerMinute)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/models", h.models)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)
			r.With(maxBodySize(transcriptBodyLimit)).Post("/transcripts", h.createTranscript)
			r.With(maxBodySize(explainBodyLimit)).Post("/explain", h.explain)
		})

		r.Get("/transcripts", h.listTranscripts)
		r.Get("/transcripts/{id}", h.getTranscript)
		r.Get("/transcripts/{id}/download", h.downloadTranscript)
	})
	return r
}

// Serve runs the API on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Speech recognition can take many minutes; the per-step timeouts bound it.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("webapi: shutdown", slog.Any("error", err))
		}
	}()

	slog.Info("webapi: listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
