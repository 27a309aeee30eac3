package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rmax-ai/usagelord/pkg/provider"
	"github.com/rmax-ai/usagelord/pkg/stdiorpc"
)

// rateLimitsResult is the typed shape of the account/rateLimits/read reply.
// Decoded once at the boundary; downstream logic never digs through raw maps.
type rateLimitsResult struct {
	RateLimits *rateLimits `json:"rateLimits"`
	PlanType   string      `json:"planType"`
}

type rateLimits struct {
	Primary   *rateLimitWindow `json:"primary"`
	Secondary *rateLimitWindow `json:"secondary"`
}

type rateLimitWindow struct {
	UsedPercent float64 `json:"usedPercent"`
	// ResetsAt is epoch seconds; zero means the server did not report one.
	ResetsAt int64 `json:"resetsAt"`
}

// quotasViaRPC runs the structured path: start the tool in server mode,
// handshake, read rate limits, convert to quotas.
func (p *CLIProbe) quotasViaRPC(ctx context.Context) ([]provider.UsageQuota, error) {
	session, err := stdiorpc.Start(p.spec.Binary, p.spec.ServerArgs, p.spec.Timeout)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if err := session.Initialize(ctx); err != nil {
		return nil, err
	}

	raw, err := session.Request(ctx, "account/rateLimits/read", nil)
	if err != nil {
		return nil, err
	}

	var result rateLimitsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode rate limits: %w", err)
	}
	return p.quotasFromRateLimits(result, time.Now())
}

// quotasFromRateLimits converts the RPC result into quotas. A free plan with
// no windows is a legitimate "unlimited" state, not a failure.
func (p *CLIProbe) quotasFromRateLimits(result rateLimitsResult, now time.Time) ([]provider.UsageQuota, error) {
	var quotas []provider.UsageQuota
	if rl := result.RateLimits; rl != nil {
		if rl.Primary != nil {
			quotas = append(quotas, p.quota(provider.QuotaSession, 100-rl.Primary.UsedPercent, formatReset(rl.Primary.ResetsAt, now)))
		}
		if rl.Secondary != nil {
			quotas = append(quotas, p.quota(provider.QuotaWeekly, 100-rl.Secondary.UsedPercent, formatReset(rl.Secondary.ResetsAt, now)))
		}
	}
	if len(quotas) > 0 {
		return quotas, nil
	}
	if strings.EqualFold(result.PlanType, "free") {
		return []provider.UsageQuota{p.quota(provider.QuotaSession, 100, "No usage limits")}, nil
	}
	return nil, provider.NewParseFailed("no rate limits available yet")
}

// formatReset renders an epoch-seconds reset time as a short human string.
func formatReset(resetsAt int64, now time.Time) string {
	if resetsAt <= 0 {
		return ""
	}
	d := time.Unix(resetsAt, 0).Sub(now)
	if d <= 0 {
		return "Resets soon"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("Resets in %dh %dm", h, m)
}
