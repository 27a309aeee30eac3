// Package claude probes the Claude Code CLI. Claude has no stdio RPC server
// mode, so usage is scraped from the interactive /usage screen only.
package claude

import (
	"time"

	"github.com/rmax-ai/usagelord/pkg/probe"
	"github.com/rmax-ai/usagelord/pkg/provider"
)

const ProviderID provider.ProviderID = "claude"

// New builds the Claude provider. Plan mode keeps the probed session from
// making any edits while the status screen is scraped.
func New(timeout time.Duration) provider.Provider {
	return probe.New(probe.Spec{
		Provider:     ProviderID,
		Binary:       "claude",
		SandboxArgs:  []string{"--permission-mode", "plan"},
		StatusInput:  "/usage",
		SessionLabel: "current session",
		WeeklyLabel:  "current week",
		Timeout:      timeout,
	})
}
