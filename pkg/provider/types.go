package provider

import (
	"context"
	"time"
)

// ProviderID identifies a specific CLI integration (e.g., "codex", "claude")
type ProviderID string

// QuotaType names the window a quota applies to.
type QuotaType string

const (
	QuotaSession QuotaType = "session"
	QuotaWeekly  QuotaType = "weekly"
)

// UsageQuota is one remaining-usage budget reported by a CLI tool.
type UsageQuota struct {
	ProviderID       ProviderID `json:"provider_id"`
	QuotaType        QuotaType  `json:"quota_type"`
	PercentRemaining float64    `json:"percent_remaining"` // clamped to [0, 100]
	ResetText        string     `json:"reset_text,omitempty"`
}

// UsageSnapshot is a point-in-time capture of all quotas for a provider.
// Snapshots are immutable once constructed; a later probe supersedes the
// previous one rather than mutating it.
type UsageSnapshot struct {
	ProviderID ProviderID   `json:"provider_id"`
	Quotas     []UsageQuota `json:"quotas"`
	CapturedAt time.Time    `json:"captured_at"`
}

// Provider defines the interface for CLI usage-quota sources.
type Provider interface {
	// ID returns the unique identifier for this provider
	ID() ProviderID

	// Available reports whether the provider's CLI binary is installed.
	// It only resolves the binary on the search path and never spawns a
	// process, so callers can use it to skip probing entirely.
	Available() bool

	// Probe retrieves the current quota state from the provider's CLI.
	Probe(ctx context.Context) (UsageSnapshot, error)
}

// ClampPercent floors a remaining percentage at 0 and caps it at 100.
// Upstream usedPercent values can exceed 100, which would otherwise
// produce a negative remainder.
func ClampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
