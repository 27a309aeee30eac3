package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/usagelord/pkg/client"
	"github.com/rmax-ai/usagelord/pkg/mcp"
	"github.com/rmax-ai/usagelord/pkg/provider"
	"github.com/rmax-ai/usagelord/pkg/provider/claude"
	"github.com/rmax-ai/usagelord/pkg/provider/codex"
)

var (
	Version = "v1.0.0"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	critStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func main() {
	cmd := "probe"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "probe":
		only := ""
		if len(os.Args) > 2 {
			only = strings.ToLower(os.Args[2])
		}
		os.Exit(runProbe(only))
	case "quotas":
		os.Exit(runQuotas())
	case "mcp":
		s := mcp.NewServer(os.Getenv("USAGELORD_API_URL"))
		if err := s.Serve(); err != nil {
			fmt.Fprintf(os.Stderr, "MCP server failed: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println("usagelord", Version)
	default:
		fmt.Println("Usage: usagelord [probe [provider]|quotas|mcp|version]")
		fmt.Println("  probe   probe installed CLIs directly (default)")
		fmt.Println("  quotas  read the latest snapshots from usagelord-d")
		fmt.Println("  mcp     serve the Model Context Protocol over stdio")
		os.Exit(1)
	}
}

// runProbe interrogates each installed CLI directly, without the daemon.
// An optional provider name restricts the run to that one CLI.
func runProbe(only string) int {
	timeout := 30 * time.Second
	if v := os.Getenv("USAGELORD_PROBE_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			timeout = parsed
		}
	}

	providers := []provider.Provider{
		codex.New(timeout),
		claude.New(timeout),
	}

	exit := 0
	matched := false
	for _, prov := range providers {
		if only != "" && string(prov.ID()) != only {
			continue
		}
		matched = true
		if !prov.Available() {
			fmt.Printf("%s %s\n", titleStyle.Render(string(prov.ID())), dimStyle.Render("not installed"))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
		snap, err := prov.Probe(ctx)
		cancel()
		if err != nil {
			fmt.Printf("%s %s\n", titleStyle.Render(string(prov.ID())), errStyle.Render(err.Error()))
			exit = 1
			continue
		}
		printSnapshot(snap)
	}
	if !matched {
		fmt.Fprintf(os.Stderr, "Unknown provider %q (known: codex, claude)\n", only)
		return 1
	}
	return exit
}

// runQuotas reads the latest snapshots from a running daemon.
func runQuotas() int {
	c := client.NewClient(os.Getenv("USAGELORD_API_URL"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snaps, err := c.Quotas(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error contacting daemon: %v\n", err)
		fmt.Fprintln(os.Stderr, "Is usagelord-d running?")
		return 1
	}
	if len(snaps) == 0 {
		fmt.Println(dimStyle.Render("no snapshots recorded yet"))
		return 0
	}
	for _, snap := range snaps {
		printSnapshot(snap)
	}
	return 0
}

func printSnapshot(snap provider.UsageSnapshot) {
	fmt.Println(titleStyle.Render(string(snap.ProviderID)))
	for _, q := range snap.Quotas {
		line := fmt.Sprintf("  %-8s %s %3.0f%% left", q.QuotaType, bar(q.PercentRemaining), q.PercentRemaining)
		if q.ResetText != "" {
			line += "  " + dimStyle.Render(q.ResetText)
		}
		fmt.Println(line)
	}
	fmt.Println(dimStyle.Render("  captured " + snap.CapturedAt.Local().Format("15:04:05")))
}

// bar renders a 20-cell usage bar colored by how much remains.
func bar(remaining float64) string {
	const width = 20
	filled := int(remaining / 100 * width)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	style := okStyle
	switch {
	case remaining < 10:
		style = critStyle
	case remaining < 30:
		style = warnStyle
	}
	return style.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}
