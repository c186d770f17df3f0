// Package net exposes the inspection surface: health, diagnostics, Prometheus
// metrics and the editor websocket.
package net

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tilesuite/server/internal/journal"
	"tilesuite/server/internal/observability"
	"tilesuite/server/internal/sim"
	"tilesuite/server/internal/telemetry"
	"tilesuite/server/logging"
)

const defaultRecentLimit = 50

// StateSource returns the current simulation view.
type StateSource interface {
	Snapshot() sim.Snapshot
}

// JournalReader returns the newest persisted variable changes.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// LoggingStats reports router counters.
type LoggingStats interface {
	Stats() logging.RouterStats
}

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	State         StateSource
	Journal       JournalReader
	Logging       LoggingStats
	Gatherer      prometheus.Gatherer
	WebSocket     nethttp.HandlerFunc
	Subscribers   func() int
	Pending       func() int
	TickRate      int
	Now           func() time.Time
	Observability observability.Config
}

func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		limit := defaultRecentLimit
		if raw := r.URL.Query().Get("recent"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				httpError(w, "invalid recent", nethttp.StatusBadRequest)
				return
			}
			limit = parsed
		}

		payload := struct {
			Status      string               `json:"status"`
			ServerTime  int64                `json:"serverTime"`
			TickRate    int                  `json:"tickRate"`
			Subscribers int                  `json:"subscribers"`
			Pending     int                  `json:"pendingCommands"`
			State       *sim.Snapshot        `json:"state,omitempty"`
			Logging     *logging.RouterStats `json:"logging,omitempty"`
			Recent      []journal.Entry      `json:"recentChanges,omitempty"`
		}{
			Status:     "ok",
			ServerTime: now().UnixMilli(),
			TickRate:   cfg.TickRate,
		}
		if cfg.Subscribers != nil {
			payload.Subscribers = cfg.Subscribers()
		}
		if cfg.Pending != nil {
			payload.Pending = cfg.Pending()
		}
		if cfg.State != nil {
			snap := cfg.State.Snapshot()
			payload.State = &snap
		}
		if cfg.Logging != nil {
			stats := cfg.Logging.Stats()
			payload.Logging = &stats
		}
		if cfg.Journal != nil && limit > 0 {
			recent, err := cfg.Journal.Recent(r.Context(), limit)
			if err != nil {
				logger.Printf("diagnostics: recent changes: %v", err)
			} else {
				payload.Recent = recent
			}
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	if cfg.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	if cfg.WebSocket != nil {
		mux.HandleFunc("/ws", cfg.WebSocket)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
