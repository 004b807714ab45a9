package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Pinger is the store connectivity check the readiness probe depends on.
// *sql.DB satisfies this.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthServer provides HTTP endpoints for health checks across the three
// pipelines (fetch, enrich, brief).
//   - /health: Liveness probe. Fails if any registered pipeline's scheduler
//     hasn't completed a tick within its staleness window, which signals a
//     wedged scheduler goroutine rather than a merely-busy one.
//   - /health/ready: Readiness probe. Fails until SetReady(true) is called
//     at the end of startup, and fails again if the store is unreachable.
//
// The server supports graceful shutdown via context cancellation.
type HealthServer struct {
	addr       string
	logger     *slog.Logger
	isReady    *atomic.Bool
	db         Pinger
	staleAfter time.Duration
	server     *http.Server

	mu       sync.Mutex
	lastTick map[string]time.Time
}

// healthResponse is the JSON response format for health check endpoints.
type healthResponse struct {
	Status    string           `json:"status"`
	Pipelines map[string]string `json:"pipelines,omitempty"`
}

// NewHealthServer creates a new health check server.
//
// db is used for the readiness probe's store-connectivity check; pass nil
// to skip it (e.g. in tests). staleAfter bounds how long a pipeline may go
// without a scheduler tick before liveness fails for it.
func NewHealthServer(addr string, logger *slog.Logger, db Pinger, staleAfter time.Duration) *HealthServer {
	isReady := &atomic.Bool{}
	isReady.Store(false)

	return &HealthServer{
		addr:       addr,
		logger:     logger,
		isReady:    isReady,
		db:         db,
		staleAfter: staleAfter,
		lastTick:   make(map[string]time.Time),
	}
}

// ReportTick records that a pipeline's scheduler started a cycle just
// now, resetting its staleness clock for the liveness probe. Schedulers
// call this (through their OnTick callback) at the start of every cycle,
// before any work — the probe cares that the loop is still turning, not
// that the tick found work.
func (h *HealthServer) ReportTick(pipeline string) {
	h.mu.Lock()
	h.lastTick[pipeline] = time.Now()
	h.mu.Unlock()
}

// Start starts the health check HTTP server.
// This is a blocking call that runs until the context is cancelled or an error occurs.
// It supports graceful shutdown with a 5-second timeout.
func (h *HealthServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if err == http.ErrServerClosed {
			return err
		}
		h.logger.Error("health server failed", slog.Any("error", err))
		return err
	}
}

// SetReady sets the readiness state of the server.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// handleLiveness handles the /health endpoint (liveness probe).
// Returns 503 if any reported pipeline has gone quiet past staleAfter;
// a restart is the right remedy for a genuinely wedged scheduler loop.
func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h.mu.Lock()
	pipelines := make(map[string]string, len(h.lastTick))
	stuck := false
	now := time.Now()
	for name, ts := range h.lastTick {
		if h.staleAfter > 0 && now.Sub(ts) > h.staleAfter {
			pipelines[name] = "stale"
			stuck = true
		} else {
			pipelines[name] = "ok"
		}
	}
	h.mu.Unlock()

	resp := healthResponse{Status: "ok", Pipelines: pipelines}
	if stuck {
		resp.Status = "stale"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode liveness response", slog.Any("error", err))
	}
}

// handleReadiness handles the /health/ready endpoint (readiness probe).
// Returns 200 OK only once SetReady(true) has been called and the store
// responds to a ping.
func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !h.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "not ready"})
		return
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn("readiness check: store unreachable", slog.Any("error", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(healthResponse{Status: "store unreachable"})
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok"}); err != nil {
		h.logger.Error("failed to encode readiness response", slog.Any("error", err))
	}
}
