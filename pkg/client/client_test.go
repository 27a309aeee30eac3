package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rmax-ai/usagelord/pkg/provider"
)

func TestQuotas(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/quotas" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]provider.UsageSnapshot{
			{ProviderID: "codex", CapturedAt: time.Now().UTC()},
		})
	}))
	defer ts.Close()

	snaps, err := NewClient(ts.URL).Quotas(context.Background())
	if err != nil {
		t.Fatalf("Quotas failed: %v", err)
	}
	if len(snaps) != 1 || snaps[0].ProviderID != "codex" {
		t.Errorf("unexpected snapshots: %+v", snaps)
	}
}

func TestHistory_QueryParams(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/quotas/claude/history" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("since_hours") != "6" || q.Get("limit") != "10" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]provider.UsageSnapshot{})
	}))
	defer ts.Close()

	if _, err := NewClient(ts.URL).History(context.Background(), "claude", 6, 10); err != nil {
		t.Fatalf("History failed: %v", err)
	}
}

func TestProviders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]ProviderInfo{
			{ID: "codex", Available: true},
			{ID: "claude", Available: false},
		})
	}))
	defer ts.Close()

	infos, err := NewClient(ts.URL).Providers(context.Background())
	if err != nil {
		t.Fatalf("Providers failed: %v", err)
	}
	if len(infos) != 2 || !infos[0].Available || infos[1].Available {
		t.Errorf("unexpected providers: %+v", infos)
	}
}

func TestGet_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
	}))
	defer ts.Close()

	if _, err := NewClient(ts.URL).Quotas(context.Background()); err == nil {
		t.Error("expected an error on 500")
	}
}

func TestHealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	if !c.Healthy(context.Background()) {
		t.Error("expected healthy")
	}

	ts.Close()
	if c.Healthy(context.Background()) {
		t.Error("expected unhealthy after server shutdown")
	}
}
