// Package server wires the HTTP surface: health probes and the speak
// websocket endpoint, wrapped in the middleware chain.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/voxgate/voxgate/pkg/core/segment"
	"github.com/voxgate/voxgate/pkg/core/voice/tts"
	"github.com/voxgate/voxgate/pkg/gateway/config"
	"github.com/voxgate/voxgate/pkg/gateway/handlers"
	"github.com/voxgate/voxgate/pkg/gateway/live/sessions"
	"github.com/voxgate/voxgate/pkg/gateway/mw"
)

type Dependencies struct {
	Logger    *slog.Logger
	TTS       tts.Provider
	Segmenter segment.Segmenter
}

type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	sessions *sessions.Tracker
	httpSrv  *http.Server
}

func New(cfg config.Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracker := sessions.NewTracker()

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.HealthHandler{})
	mux.Handle("/readyz", handlers.ReadyHandler{Config: cfg})
	mux.Handle("/v1/speak", handlers.SpeakHandler{
		Config:    cfg,
		Logger:    logger,
		TTS:       deps.TTS,
		Segmenter: deps.Segmenter,
		Sessions:  tracker,
	})
	mux.Handle("/", handlers.NotFoundHandler{})

	handler := mw.RequestID(mw.Recover(logger, mw.AccessLog(logger, mux)))

	return &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: tracker,
		httpSrv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
	}
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe blocks until the listener fails or Shutdown runs.
func (s *Server) ListenAndServe() error {
	s.logger.Info("gateway listening", "addr", s.cfg.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the listener, cancels open speak sessions, and waits
// for them to drain within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	canceled := s.sessions.CancelAll()
	if canceled > 0 {
		s.logger.Info("canceled live sessions", "count", canceled)
	}
	if !s.sessions.Wait(ctx) {
		s.logger.Warn("shutdown grace period expired with sessions open", "remaining", s.sessions.Count())
	}
	return err
}
