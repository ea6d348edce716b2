package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"pricestream/config"
	"pricestream/internal/cache"
	"pricestream/internal/feed"
	"pricestream/internal/hub"

	"go.uber.org/zap"
)

// Server owns the HTTP surface: REST quote endpoints, the streaming
// WebSocket, health/readiness probes, and the metrics endpoint.
type Server struct {
	cfg      config.ServerConfig
	registry *feed.Registry
	cache    *cache.QuoteCache
	fetcher  hub.Fetcher
	subs     *hub.Subscriptions
	history  History // nil disables the history routes
	logger   *zap.Logger

	sendBuffer int
	ready      atomic.Bool

	streamMu sync.Mutex
	streams  map[*wsConn]struct{}
}

func New(
	cfg config.ServerConfig,
	registry *feed.Registry,
	qc *cache.QuoteCache,
	fetcher hub.Fetcher,
	subs *hub.Subscriptions,
	history History,
	sendBuffer int,
	logger *zap.Logger,
) *Server {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Server{
		cfg:        cfg,
		registry:   registry,
		cache:      qc,
		fetcher:    fetcher,
		subs:       subs,
		history:    history,
		sendBuffer: sendBuffer,
		logger:     logger,
		streams:    make(map[*wsConn]struct{}),
	}
}

// SetReady flips the readiness probe. Called once the feed registry is
// loaded and the broadcast loop is running.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler builds the full route tree. /health, /ready and /metrics are
// always unauthenticated; everything under /v1 goes through bearer auth
// when an API key is configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", metricsHandler())

	api := http.NewServeMux()
	api.HandleFunc("GET /v1/prices/{symbol}", s.handlePrice)
	api.HandleFunc("GET /v1/prices", s.handlePrices)
	api.HandleFunc("GET /v1/symbols", s.handleSymbols)
	api.HandleFunc("GET /v1/stream", s.handleStream)
	if s.history != nil {
		api.HandleFunc("GET /v1/history/{symbol}", s.handleHistory)
		api.HandleFunc("GET /v1/history/{symbol}/latest", s.handleHistoryLatest)
	}
	mux.Handle("/v1/", s.requireAPIKey(api))

	return trackMetrics(mux)
}

// ListenAndServe runs the HTTP server until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Shutdown ignores hijacked connections, so streaming clients get an
	// explicit close frame first.
	s.CloseStreams()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// CloseStreams signals every open streaming connection to shut down. Each
// client receives a normal-closure frame before its socket is closed.
func (s *Server) CloseStreams() {
	s.streamMu.Lock()
	conns := make([]*wsConn, 0, len(s.streams))
	for c := range s.streams {
		conns = append(conns, c)
	}
	s.streamMu.Unlock()

	for _, c := range conns {
		c.drop()
	}
}

func (s *Server) trackStream(c *wsConn) {
	s.streamMu.Lock()
	s.streams[c] = struct{}{}
	s.streamMu.Unlock()
}

func (s *Server) untrackStream(c *wsConn) {
	s.streamMu.Lock()
	delete(s.streams, c)
	s.streamMu.Unlock()
}
