package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Config
const (
	defaultDaemonURL = "http://127.0.0.1:8095"
	pollRate         = 2 * time.Second
	maxFailures      = 20
	viewportHeight   = 10
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(80)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(80)

	failTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(20)
	failKindStyle = lipgloss.NewStyle().Width(18).Bold(true).Foreground(lipgloss.Color("196"))
)

// API Types (mirrored from pkg/provider and pkg/store to avoid CGO deps)

type UsageQuota struct {
	ProviderID       string  `json:"provider_id"`
	QuotaType        string  `json:"quota_type"`
	PercentRemaining float64 `json:"percent_remaining"`
	ResetText        string  `json:"reset_text,omitempty"`
}

type UsageSnapshot struct {
	ProviderID string       `json:"provider_id"`
	Quotas     []UsageQuota `json:"quotas"`
	CapturedAt time.Time    `json:"captured_at"`
}

type ProbeFailure struct {
	ProviderID string    `json:"provider_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ProviderInfo struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
}

type tickMsg time.Time

type dataMsg struct {
	snapshots []UsageSnapshot
	providers []ProviderInfo
	failures  []ProbeFailure
	err       error
}

type model struct {
	spinner   spinner.Model
	viewport  viewport.Model
	snapshots []UsageSnapshot
	providers []ProviderInfo
	failures  []ProbeFailure
	err       error
	ready     bool
}

func daemonURL() string {
	if url := os.Getenv("USAGELORD_API_URL"); url != "" {
		return url
	}
	return defaultDaemonURL
}

func initialModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{spinner: s}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.snapshots = msg.snapshots
			m.providers = msg.providers
			m.failures = msg.failures
			m.updateViewportContent()
		}
		if !m.ready {
			m.viewport = viewport.New(80, viewportHeight)
			m.ready = true
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder
	for _, f := range m.failures {
		line := fmt.Sprintf("%s %s %s\n",
			failTimeStyle.Render(f.OccurredAt.Local().Format("15:04:05")),
			failKindStyle.Render(f.Kind),
			subtleStyle.Render(fmt.Sprintf("%s %s", f.ProviderID, f.Message)),
		)
		sb.WriteString(line)
	}
	if len(m.failures) == 0 {
		sb.WriteString(subtleStyle.Render("No recent probe failures."))
	}
	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	// Top pane: one block per provider with usage bars.
	var quotas strings.Builder
	quotas.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Usage Quotas") + "\n\n")

	if len(m.snapshots) == 0 {
		quotas.WriteString(subtleStyle.Render("No snapshots recorded yet."))
	} else {
		for _, snap := range m.snapshots {
			quotas.WriteString(statusStyle.Render(snap.ProviderID) + "\n")
			for _, q := range snap.Quotas {
				line := fmt.Sprintf("  %-8s %s %3.0f%% left", q.QuotaType, renderBar(q.PercentRemaining), q.PercentRemaining)
				if q.ResetText != "" {
					line += "  " + subtleStyle.Render(q.ResetText)
				}
				quotas.WriteString(line + "\n")
			}
			quotas.WriteString(subtleStyle.Render("  captured "+snap.CapturedAt.Local().Format("15:04:05")) + "\n")
		}
	}

	for _, p := range m.providers {
		if !p.Available {
			quotas.WriteString(subtleStyle.Render(fmt.Sprintf("%s: not installed", p.ID)) + "\n")
		}
	}

	topPane := paneStyle.Render(quotas.String())

	header := headerStyle.Render(fmt.Sprintf("%s Probe Failures", m.spinner.View()))
	bottomPane := m.viewport.View()

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Providers • %d Snapshots", len(m.providers), len(m.snapshots)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

func renderBar(remaining float64) string {
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
		style = errorStyle
	case remaining < 30:
		style = warnStyle
	}
	return style.Render(strings.Repeat("█", filled)) + subtleStyle.Render(strings.Repeat("░", width-filled))
}

// Commands

func fetchData() tea.Cmd {
	return func() tea.Msg {
		snapshots, err := getJSON[[]UsageSnapshot]("/v1/quotas")
		if err != nil {
			return dataMsg{err: err}
		}

		providers, err := getJSON[[]ProviderInfo]("/v1/providers")
		if err != nil {
			return dataMsg{err: err}
		}

		var failures []ProbeFailure
		for _, p := range providers {
			fs, err := getJSON[[]ProbeFailure](fmt.Sprintf("/v1/quotas/%s/failures?limit=%d", p.ID, maxFailures))
			if err != nil {
				return dataMsg{err: err}
			}
			failures = append(failures, fs...)
		}

		return dataMsg{
			snapshots: snapshots,
			providers: providers,
			failures:  failures,
		}
	}
}

func getJSON[T any](path string) (T, error) {
	var out T
	c := &http.Client{Timeout: time.Second}
	resp, err := c.Get(daemonURL() + path)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("%s status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
