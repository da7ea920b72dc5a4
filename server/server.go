// Package server exposes the feature store over HTTP: online feature
// retrieval, pushes and materialization triggers.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/banquet-labs/banquet/featurestore"
	"github.com/banquet-labs/banquet/lib/config"
)

type Server struct {
	fs  *featurestore.FeatureStore
	cfg config.FeatureServer
}

func NewServer(fs *featurestore.FeatureStore, cfg config.FeatureServer) *Server {
	return &Server{fs: fs, cfg: cfg}
}

// Router assembles the HTTP routes with auth and rate limiting applied to the
// serving endpoints. The health check stays open.
func (s *Server) Router() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.JWTSecret != "" {
			r.Use(jwtAuth(s.cfg.JWTSecret))
		}
		if s.cfg.RequestsPerSecond > 0 {
			r.Use(rateLimit(s.cfg.RequestsPerSecond))
		}

		r.Post("/get-online-features", s.handleGetOnlineFeatures)
		r.Post("/push", s.handlePush)
		r.Post("/write-to-online-store", s.handleWriteToOnlineStore)
		r.Post("/materialize", s.handleMaterialize)
		r.Post("/materialize-incremental", s.handleMaterializeIncremental)
	})

	return r
}

// Serve runs the server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
