package probe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rmax-ai/usagelord/pkg/provider"
	"github.com/rmax-ai/usagelord/pkg/termrun"
)

func testSpec() Spec {
	return Spec{
		Provider:     "codex",
		Binary:       "codex",
		ServerArgs:   []string{"app-server"},
		StatusInput:  "/status",
		SessionLabel: "5h limit",
		WeeklyLabel:  "weekly limit",
	}
}

func quietProbe(spec Spec) *CLIProbe {
	p := New(spec)
	p.logf = func(string, ...any) {}
	return p
}

func TestProbe_RPCSuccessSkipsTerminal(t *testing.T) {
	p := quietProbe(testSpec())
	p.rpcQuotas = func(context.Context) ([]provider.UsageQuota, error) {
		return []provider.UsageQuota{
			{ProviderID: "codex", QuotaType: provider.QuotaSession, PercentRemaining: 70},
		}, nil
	}
	ttyRan := false
	p.runTTY = func(context.Context, string, string, termrun.Options) (termrun.Result, error) {
		ttyRan = true
		return termrun.Result{}, nil
	}

	snap, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if ttyRan {
		t.Error("terminal path must not run when RPC succeeds")
	}
	if len(snap.Quotas) != 1 || snap.Quotas[0].PercentRemaining != 70 {
		t.Errorf("unexpected quotas: %+v", snap.Quotas)
	}
	if snap.CapturedAt.IsZero() {
		t.Error("snapshot missing capture time")
	}
}

func TestProbe_FallsBackToTerminalOnRPCFailure(t *testing.T) {
	p := quietProbe(testSpec())
	p.rpcQuotas = func(context.Context) ([]provider.UsageQuota, error) {
		return nil, errors.New("launch failed: no such server mode")
	}
	p.runTTY = func(_ context.Context, binary, input string, _ termrun.Options) (termrun.Result, error) {
		if binary != "codex" || input != "/status" {
			t.Errorf("unexpected terminal invocation: %s %s", binary, input)
		}
		return termrun.Result{Text: "Weekly limit\n  37% left\n"}, nil
	}

	snap, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if len(snap.Quotas) != 1 {
		t.Fatalf("expected 1 quota, got %d", len(snap.Quotas))
	}
	q := snap.Quotas[0]
	if q.QuotaType != provider.QuotaWeekly || q.PercentRemaining != 37 {
		t.Errorf("unexpected quota: %+v", q)
	}
}

func TestProbe_TerminalErrorShadowsRPCError(t *testing.T) {
	p := quietProbe(testSpec())
	p.rpcQuotas = func(context.Context) ([]provider.UsageQuota, error) {
		return nil, errors.New("rpc is broken")
	}
	p.runTTY = func(context.Context, string, string, termrun.Options) (termrun.Result, error) {
		return termrun.Result{}, &termrun.RunError{Kind: termrun.ErrTimedOut, Binary: "codex"}
	}

	_, err := p.Probe(context.Background())
	var pe *provider.ProbeError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProbeError, got %v", err)
	}
	if pe.Kind != provider.ErrTimeout {
		t.Errorf("expected timeout from the terminal path, got %v", pe.Kind)
	}
	if strings.Contains(err.Error(), "rpc is broken") {
		t.Error("RPC error must not leak into the surfaced error")
	}
}

func TestProbe_NoRPCPathGoesStraightToTerminal(t *testing.T) {
	spec := testSpec()
	spec.ServerArgs = nil
	p := quietProbe(spec)
	if p.rpcQuotas != nil {
		t.Fatal("expected no RPC path without server args")
	}
	p.runTTY = func(context.Context, string, string, termrun.Options) (termrun.Result, error) {
		return termrun.Result{Text: "5h limit\n42% left\nWeekly limit\n80% left\n"}, nil
	}

	snap, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if len(snap.Quotas) != 2 {
		t.Fatalf("expected 2 quotas, got %+v", snap.Quotas)
	}
	if snap.Quotas[0].QuotaType != provider.QuotaSession || snap.Quotas[0].PercentRemaining != 42 {
		t.Errorf("unexpected session quota: %+v", snap.Quotas[0])
	}
	if snap.Quotas[1].QuotaType != provider.QuotaWeekly || snap.Quotas[1].PercentRemaining != 80 {
		t.Errorf("unexpected weekly quota: %+v", snap.Quotas[1])
	}
}

func TestProbe_AnsiColoredStatusOutput(t *testing.T) {
	spec := testSpec()
	spec.ServerArgs = nil
	p := quietProbe(spec)
	p.runTTY = func(context.Context, string, string, termrun.Options) (termrun.Result, error) {
		return termrun.Result{Text: "\x1b[1m5h limit\x1b[0m\n\x1b[32m42% left\x1b[0m\n"}, nil
	}

	snap, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if len(snap.Quotas) != 1 || snap.Quotas[0].PercentRemaining != 42 {
		t.Errorf("unexpected quotas: %+v", snap.Quotas)
	}
}

func TestProbe_KnownErrorPhrases(t *testing.T) {
	tests := []struct {
		name string
		text string
		want provider.ErrorKind
	}{
		{"data not ready", "Usage data not available yet\n5h limit\n42% left", provider.ErrParseFailed},
		{"update required", "Update available: 2.0.0 - run codex upgrade", provider.ErrUpdateRequired},
		{"no figures at all", "Account: user@example.com\nPlan: pro", provider.ErrParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			spec.ServerArgs = nil
			p := quietProbe(spec)
			p.runTTY = func(context.Context, string, string, termrun.Options) (termrun.Result, error) {
				return termrun.Result{Text: tt.text}, nil
			}
			_, err := p.Probe(context.Background())
			var pe *provider.ProbeError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProbeError, got %v", err)
			}
			if pe.Kind != tt.want {
				t.Errorf("got %v, want %v", pe.Kind, tt.want)
			}
		})
	}
}

func TestMapRunError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want provider.ErrorKind
	}{
		{"not found", &termrun.RunError{Kind: termrun.ErrBinaryNotFound, Binary: "codex"}, provider.ErrCLINotFound},
		{"timeout", &termrun.RunError{Kind: termrun.ErrTimedOut, Binary: "codex"}, provider.ErrTimeout},
		{"launch", &termrun.RunError{Kind: termrun.ErrLaunchFailed, Binary: "codex", Msg: "fork failed"}, provider.ErrExecutionFailed},
		{"unknown error type", errors.New("boom"), provider.ErrExecutionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapRunError(tt.in); got.Kind != tt.want {
				t.Errorf("got %v, want %v", got.Kind, tt.want)
			}
		})
	}
}

func TestAvailable_UnknownBinary(t *testing.T) {
	spec := testSpec()
	spec.Binary = "definitely-not-a-real-binary"
	if quietProbe(spec).Available() {
		t.Error("expected unavailable for a nonexistent binary")
	}
}
