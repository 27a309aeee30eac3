// Package codex probes the Codex CLI. Codex exposes an app-server mode
// speaking JSON-RPC over stdio, so the structured path is preferred; the
// interactive /status screen serves as the fallback.
package codex

import (
	"time"

	"github.com/rmax-ai/usagelord/pkg/probe"
	"github.com/rmax-ai/usagelord/pkg/provider"
)

const ProviderID provider.ProviderID = "codex"

// New builds the Codex provider. The sandbox flags keep the probed session
// read-only so a probe can never touch the workspace it happens to run in.
func New(timeout time.Duration) provider.Provider {
	return probe.New(probe.Spec{
		Provider:     ProviderID,
		Binary:       "codex",
		SandboxArgs:  []string{"--sandbox", "read-only", "--skip-git-repo-check"},
		ServerArgs:   []string{"app-server"},
		StatusInput:  "/status",
		SessionLabel: "5h limit",
		WeeklyLabel:  "weekly limit",
		Timeout:      timeout,
	})
}
