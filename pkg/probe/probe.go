// Package probe orchestrates one usage probe per CLI tool: the structured
// JSON-RPC path is tried first, and on any failure the interactive PTY path
// takes over. The text UI of these tools has proven more stable across
// releases than their RPC surface, so the PTY path is the last word on
// failure reporting; RPC errors are logged but never surfaced once a
// fallback ran.
package probe

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/rmax-ai/usagelord/pkg/provider"
	"github.com/rmax-ai/usagelord/pkg/termrun"
	"github.com/rmax-ai/usagelord/pkg/textscan"
)

// Spec describes how to interrogate one CLI tool.
type Spec struct {
	Provider provider.ProviderID

	// Binary is resolved on the augmented search path at probe time.
	Binary string

	// SandboxArgs are passed on every invocation to keep the probed tool
	// from touching the workspace (read-only / plan-mode style flags).
	SandboxArgs []string

	// ServerArgs switch the tool into its JSON-RPC-over-stdio server mode.
	// Empty means the tool has no RPC surface and only the PTY path runs.
	ServerArgs []string

	// StatusInput is the line typed into the PTY session, e.g. "/status".
	StatusInput string

	// SessionLabel and WeeklyLabel anchor percent extraction in the
	// scraped status text. Empty labels skip that quota type.
	SessionLabel string
	WeeklyLabel  string

	// Timeout bounds each path of the probe. Zero means the PTY runner's
	// default.
	Timeout time.Duration
}

// CLIProbe implements provider.Provider for one CLI tool. The two probe
// paths are injectable so orchestration is testable without spawning
// processes.
type CLIProbe struct {
	spec      Spec
	runTTY    func(ctx context.Context, binary, input string, opts termrun.Options) (termrun.Result, error)
	rpcQuotas func(ctx context.Context) ([]provider.UsageQuota, error)
	logf      func(format string, args ...any)
}

// New builds a probe for the given spec.
func New(spec Spec) *CLIProbe {
	p := &CLIProbe{
		spec:   spec,
		runTTY: termrun.Run,
		logf:   log.Printf,
	}
	if len(spec.ServerArgs) > 0 {
		p.rpcQuotas = p.quotasViaRPC
	}
	return p
}

// ID returns the provider identifier this probe reports under.
func (p *CLIProbe) ID() provider.ProviderID {
	return p.spec.Provider
}

// Available reports whether the binary resolves on the search path. Pure
// lookup, no process spawn.
func (p *CLIProbe) Available() bool {
	return termrun.Which(p.spec.Binary) != ""
}

// Probe runs the RPC path, falling back to the PTY path on any RPC failure.
// Only the final path's error reaches the caller.
func (p *CLIProbe) Probe(ctx context.Context) (provider.UsageSnapshot, error) {
	if p.rpcQuotas != nil {
		quotas, err := p.rpcQuotas(ctx)
		if err == nil {
			return p.snapshot(quotas), nil
		}
		p.logf("probe %s: RPC path failed, falling back to terminal: %v", p.spec.Provider, err)
	}

	quotas, err := p.quotasViaTerminal(ctx)
	if err != nil {
		return provider.UsageSnapshot{}, err
	}
	return p.snapshot(quotas), nil
}

func (p *CLIProbe) snapshot(quotas []provider.UsageQuota) provider.UsageSnapshot {
	return provider.UsageSnapshot{
		ProviderID: p.spec.Provider,
		Quotas:     quotas,
		CapturedAt: time.Now().UTC(),
	}
}

// quotasViaTerminal drives an interactive session, strips terminal control
// sequences, and extracts quota percentages near the configured labels.
func (p *CLIProbe) quotasViaTerminal(ctx context.Context) ([]provider.UsageQuota, error) {
	res, err := p.runTTY(ctx, p.spec.Binary, p.spec.StatusInput, termrun.Options{
		Timeout:   p.spec.Timeout,
		ExtraArgs: p.spec.SandboxArgs,
	})
	if err != nil {
		return nil, mapRunError(err)
	}

	text := textscan.StripControlSequences(res.Text)

	// Known error phrases win over any salvageable numbers.
	switch textscan.ExtractKnownError(p.spec.Binary, text) {
	case textscan.ErrDataNotReady:
		return nil, provider.NewParseFailed("usage data not available yet")
	case textscan.ErrUpdateAvailable:
		return nil, provider.NewUpdateRequired()
	}

	var quotas []provider.UsageQuota
	if p.spec.SessionLabel != "" {
		if pct, ok := textscan.ExtractPercent(p.spec.SessionLabel, text); ok {
			quotas = append(quotas, p.quota(provider.QuotaSession, float64(pct), ""))
		}
	}
	if p.spec.WeeklyLabel != "" {
		if pct, ok := textscan.ExtractPercent(p.spec.WeeklyLabel, text); ok {
			quotas = append(quotas, p.quota(provider.QuotaWeekly, float64(pct), ""))
		}
	}
	if len(quotas) == 0 {
		return nil, provider.NewParseFailed("no usage figures found in status output")
	}
	return quotas, nil
}

func (p *CLIProbe) quota(qt provider.QuotaType, remaining float64, resetText string) provider.UsageQuota {
	return provider.UsageQuota{
		ProviderID:       p.spec.Provider,
		QuotaType:        qt,
		PercentRemaining: provider.ClampPercent(remaining),
		ResetText:        resetText,
	}
}

// mapRunError translates terminal-runner errors 1:1 into the probe taxonomy.
// Callers above this layer never see raw OS or process errors.
func mapRunError(err error) *provider.ProbeError {
	var runErr *termrun.RunError
	if errors.As(err, &runErr) {
		switch runErr.Kind {
		case termrun.ErrBinaryNotFound:
			return provider.NewCLINotFound(runErr.Binary)
		case termrun.ErrTimedOut:
			return provider.NewTimeout()
		case termrun.ErrLaunchFailed:
			return provider.NewExecutionFailed(runErr.Msg)
		}
	}
	return provider.NewExecutionFailed(err.Error())
}
