package net

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/journal"
	"tilesuite/server/internal/observability"
	"tilesuite/server/internal/sim"
	"tilesuite/server/logging"
)

type staticState sim.Snapshot

func (s staticState) Snapshot() sim.Snapshot { return sim.Snapshot(s) }

type stubJournal struct {
	entries []journal.Entry
	err     error
	limit   int
}

func (j *stubJournal) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	j.limit = limit
	return j.entries, j.err
}

type stubStats logging.RouterStats

func (s stubStats) Stats() logging.RouterStats { return logging.RouterStats(s) }

func TestHealth(t *testing.T) {
	handler := NewHTTPHandler(HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.Code, resp.Body.String())
	}
}

func TestDiagnosticsPayload(t *testing.T) {
	j := &stubJournal{entries: []journal.Entry{{Seq: 3, Tick: 9, Region: "demo", ChangedVariable: behavior.ChangedVariable{Instance: 1, Graph: 2, Node: 3, Value: 4}}}}
	handler := NewHTTPHandler(HTTPHandlerConfig{
		State:       staticState{Region: "demo", Tick: 9},
		Journal:     j,
		Logging:     stubStats{EventsTotal: 12, DroppedTotal: 1},
		Subscribers: func() int { return 2 },
		Pending:     func() int { return 5 },
		TickRate:    15,
		Now:         func() time.Time { return time.UnixMilli(42) },
	})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics?recent=10", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}

	var payload struct {
		Status      string              `json:"status"`
		ServerTime  int64               `json:"serverTime"`
		TickRate    int                 `json:"tickRate"`
		Subscribers int                 `json:"subscribers"`
		Pending     int                 `json:"pendingCommands"`
		State       sim.Snapshot        `json:"state"`
		Logging     logging.RouterStats `json:"logging"`
		Recent      []journal.Entry     `json:"recentChanges"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.Status != "ok" || payload.ServerTime != 42 || payload.TickRate != 15 || payload.Subscribers != 2 || payload.Pending != 5 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.State.Region != "demo" || payload.State.Tick != 9 {
		t.Fatalf("unexpected state %+v", payload.State)
	}
	if payload.Logging.EventsTotal != 12 || payload.Logging.DroppedTotal != 1 {
		t.Fatalf("unexpected logging stats %+v", payload.Logging)
	}
	if j.limit != 10 || len(payload.Recent) != 1 || payload.Recent[0].Value != 4 {
		t.Fatalf("unexpected recent changes %+v (limit %d)", payload.Recent, j.limit)
	}
}

func TestDiagnosticsToleratesJournalErrors(t *testing.T) {
	handler := NewHTTPHandler(HTTPHandlerConfig{Journal: &stubJournal{err: errors.New("boom")}})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "recentChanges") {
		t.Fatalf("expected recent changes to be omitted, got %s", resp.Body.String())
	}
}

func TestDiagnosticsRejectsBadInput(t *testing.T) {
	handler := NewHTTPHandler(HTTPHandlerConfig{})
	for _, tc := range []struct {
		method string
		target string
		want   int
	}{
		{method: http.MethodPost, target: "/diagnostics", want: http.StatusMethodNotAllowed},
		{method: http.MethodGet, target: "/diagnostics?recent=abc", want: http.StatusBadRequest},
		{method: http.MethodGet, target: "/diagnostics?recent=-1", want: http.StatusBadRequest},
	} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.target, nil))
		if resp.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.target, tc.want, resp.Code)
		}
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "tilesuite_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Add(3)

	handler := NewHTTPHandler(HTTPHandlerConfig{Gatherer: registry})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "tilesuite_test_total 3") {
		t.Fatalf("expected counter in exposition, got %s", resp.Body.String())
	}
}

func TestWebSocketRouteIsOptional(t *testing.T) {
	handler := NewHTTPHandler(HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a websocket handler, got %d", resp.Code)
	}

	called := false
	handler = NewHTTPHandler(HTTPHandlerConfig{WebSocket: func(w http.ResponseWriter, r *http.Request) { called = true }})
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws", nil))
	if !called {
		t.Fatalf("expected websocket handler to be invoked")
	}
}

func TestPprofRoutesFollowToggle(t *testing.T) {
	resp := httptest.NewRecorder()
	NewHTTPHandler(HTTPHandlerConfig{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected pprof to be disabled by default, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler := NewHTTPHandler(HTTPHandlerConfig{Observability: observability.Config{EnablePprofTrace: true}})
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pprof index, got %d", resp.Code)
	}
}
