package store

import (
	"context"
	"testing"
	"time"

	"github.com/rmax-ai/usagelord/pkg/provider"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func snapshot(pid provider.ProviderID, capturedAt time.Time, remaining float64) provider.UsageSnapshot {
	return provider.UsageSnapshot{
		ProviderID: pid,
		CapturedAt: capturedAt,
		Quotas: []provider.UsageQuota{
			{ProviderID: pid, QuotaType: provider.QuotaSession, PercentRemaining: remaining},
		},
	}
}

func TestAppendAndLatestSnapshots(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i, snap := range []provider.UsageSnapshot{
		snapshot("codex", now.Add(-2*time.Minute), 90),
		snapshot("codex", now, 70),
		snapshot("claude", now, 55),
	} {
		if err := s.AppendSnapshot(ctx, snap); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	latest, err := s.LatestSnapshots(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshots failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected one snapshot per provider, got %d", len(latest))
	}
	byProvider := map[provider.ProviderID]provider.UsageSnapshot{}
	for _, snap := range latest {
		byProvider[snap.ProviderID] = snap
	}
	if got := byProvider["codex"].Quotas[0].PercentRemaining; got != 70 {
		t.Errorf("expected the newer codex snapshot (70), got %v", got)
	}
	if got := byProvider["claude"].Quotas[0].PercentRemaining; got != 55 {
		t.Errorf("expected claude at 55, got %v", got)
	}
}

func TestHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		snap := snapshot("codex", now.Add(-time.Duration(i)*time.Hour), float64(100-i*10))
		if err := s.AppendSnapshot(ctx, snap); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, err := s.History(ctx, "codex", now.Add(-2*time.Hour), 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots in window, got %d", len(got))
	}
	if !got[0].CapturedAt.After(got[1].CapturedAt) {
		t.Error("expected newest-first ordering")
	}

	limited, err := s.History(ctx, "codex", now.Add(-24*time.Hour), 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit to cap results at 2, got %d", len(limited))
	}
}

func TestHistory_OtherProviderExcluded(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.AppendSnapshot(ctx, snapshot("claude", now, 50)); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	got, err := s.History(ctx, "codex", now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no codex history, got %d", len(got))
	}
}

func TestFailures(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, f := range []ProbeFailure{
		{ProviderID: "codex", Kind: "timeout"},
		{ProviderID: "codex", Kind: "parse_failed", Message: "no usage figures"},
		{ProviderID: "claude", Kind: "cli_not_found"},
	} {
		if err := s.AppendFailure(ctx, f); err != nil {
			t.Fatalf("AppendFailure failed: %v", err)
		}
	}

	got, err := s.RecentFailures(ctx, "codex", 10)
	if err != nil {
		t.Fatalf("RecentFailures failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 codex failures, got %d", len(got))
	}
	// Newest first.
	if got[0].Kind != "parse_failed" || got[0].Message != "no usage figures" {
		t.Errorf("unexpected first failure: %+v", got[0])
	}
	if got[0].OccurredAt.IsZero() {
		t.Error("expected occurred_at to be filled in")
	}
}
