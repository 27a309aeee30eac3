// Package api exposes the daemon's HTTP surface: current quotas, history,
// provider availability, health, and Prometheus metrics.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmax-ai/usagelord/pkg/provider"
	"github.com/rmax-ai/usagelord/pkg/store"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// StoreInterface is the slice of the store the API needs, split out so
// handlers can be tested against a mock.
type StoreInterface interface {
	LatestSnapshots(ctx context.Context) ([]provider.UsageSnapshot, error)
	History(ctx context.Context, providerID provider.ProviderID, since time.Time, limit int) ([]provider.UsageSnapshot, error)
	RecentFailures(ctx context.Context, providerID provider.ProviderID, limit int) ([]store.ProbeFailure, error)
}

// ProviderInfo describes one registered provider for the /v1/providers list.
type ProviderInfo struct {
	ID        provider.ProviderID `json:"id"`
	Available bool                `json:"available"`
}

// Server encapsulates the HTTP API server
type Server struct {
	store     StoreInterface
	providers []provider.Provider
	server    *http.Server
}

// NewServer creates a new API server instance
func NewServer(st StoreInterface, providers []provider.Provider, addr string) *Server {
	s := &Server{store: st, providers: providers}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", handleHealth)
	mux.HandleFunc("/v1/quotas", s.handleQuotas)
	mux.HandleFunc("/v1/quotas/", s.handleQuotaDetail)
	mux.HandleFunc("/v1/providers", s.handleProviders)
	mux.Handle("/metrics", promhttp.Handler())

	handler := withRecovery(withLogging(mux))

	// Use default port if addr is empty
	if addr == "" {
		addr = ":8095"
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped handler, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the server until Stop or a listener error.
func (s *Server) Start() error {
	fmt.Printf(`{"level":"info","msg":"server_starting","addr":"%s"}`+"\n", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println(`{"level":"info","msg":"server_stopping"}`)
	return s.server.Shutdown(ctx)
}

// handleQuotas returns the latest snapshot per provider.
func (s *Server) handleQuotas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	snaps, err := s.store.LatestSnapshots(r.Context())
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_read_snapshots","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	if snaps == nil {
		snaps = []provider.UsageSnapshot{}
	}

	writeJSON(w, r, snaps)
}

// handleQuotaDetail serves /v1/quotas/{provider}/history and
// /v1/quotas/{provider}/failures.
func (s *Server) handleQuotaDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/quotas/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	pid := provider.ProviderID(parts[0])

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	switch parts[1] {
	case "history":
		since := time.Now().Add(-24 * time.Hour)
		if h := r.URL.Query().Get("since_hours"); h != "" {
			if val, err := strconv.Atoi(h); err == nil && val > 0 {
				since = time.Now().Add(-time.Duration(val) * time.Hour)
			}
		}
		snaps, err := s.store.History(r.Context(), pid, since, limit)
		if err != nil {
			fmt.Printf(`{"level":"error","msg":"failed_to_read_history","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
			http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			return
		}
		if snaps == nil {
			snaps = []provider.UsageSnapshot{}
		}
		writeJSON(w, r, snaps)
	case "failures":
		failures, err := s.store.RecentFailures(r.Context(), pid, limit)
		if err != nil {
			fmt.Printf(`{"level":"error","msg":"failed_to_read_failures","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
			http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			return
		}
		if failures == nil {
			failures = []store.ProbeFailure{}
		}
		writeJSON(w, r, failures)
	default:
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
	}
}

// handleProviders lists registered providers and whether their binary is
// installed. Availability is a pure path lookup, so this stays cheap.
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	infos := make([]ProviderInfo, 0, len(s.providers))
	for _, p := range s.providers {
		infos = append(infos, ProviderInfo{ID: p.ID(), Available: p.Available()})
	}
	writeJSON(w, r, infos)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_response","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

// Middleware: Panic Recovery
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Printf(`{"level":"error","msg":"panic_recovered","error":"%v","path":"%s"}`+"\n", err, r.URL.Path)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		fmt.Printf(`{"level":"info","msg":"http_request","trace_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`+"\n",
			traceID, r.Method, r.URL.Path, ww.status, duration.Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func generateTraceID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}
