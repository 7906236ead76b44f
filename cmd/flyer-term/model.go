package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"flyer-vessel-viz/integration"
)

type (
	// dashboardMsg carries a frame received from the server.
	dashboardMsg struct {
		Dashboard integration.Dashboard
	}

	// connMsg reports a change of the stream connection.
	connMsg struct {
		Connected bool
		Err       error
	}
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#0B3D5C")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7FB3D5"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	valueStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))
)

type model struct {
	server    string
	dashboard integration.Dashboard
	received  bool
	connected bool
	err       error
	width     int
}

func newModel(server string) model {
	return model{server: server}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case dashboardMsg:
		m.dashboard = msg.Dashboard
		m.received = true
	case connMsg:
		m.connected = msg.Connected
		m.err = msg.Err
	}
	return m, nil
}

func (m model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Flyer"))
	sb.WriteString(" ")
	switch {
	case m.connected:
		sb.WriteString(dimStyle.Render("live from " + m.server))
	case m.err != nil:
		sb.WriteString(errorStyle.Render("reconnecting: " + m.err.Error()))
	default:
		sb.WriteString(dimStyle.Render("connecting to " + m.server))
	}
	sb.WriteString("\n\n")

	if !m.received {
		sb.WriteString(dimStyle.Render("Waiting for data..."))
		sb.WriteString("\n")
		return sb.String()
	}

	d := m.dashboard
	if d.Status != "" {
		sb.WriteString(statusStyle.Render(d.Status))
		sb.WriteString("\n\n")
	}
	sb.WriteString(m.renderTable())
	sb.WriteString("\n")
	sb.WriteString(m.renderNav())
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("q: quit"))
	sb.WriteString("\n")
	return sb.String()
}

func (m model) renderTable() string {
	rows := m.dashboard.Rows
	labelWidth, valueWidth := len("Quantity"), len("Value")
	for _, r := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(r.Label))
		valueWidth = max(valueWidth, lipgloss.Width(r.Value))
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-*s  %*s  %s", labelWidth, "Quantity", valueWidth, "Value", "Last update")))
	sb.WriteString("\n")
	if len(rows) == 0 {
		sb.WriteString(dimStyle.Render("no values yet"))
		sb.WriteString("\n")
	}
	for _, r := range rows {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", labelWidth, r.Label)))
		sb.WriteString("  ")
		sb.WriteString(valueStyle.Render(fmt.Sprintf("%*s", valueWidth, r.Value)))
		sb.WriteString("  ")
		sb.WriteString(dimStyle.Render(r.LastUpdate))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m model) renderNav() string {
	d := m.dashboard
	var lines []string
	if d.Position != nil {
		lines = append(lines, fmt.Sprintf("Position   %.5f, %.5f", d.Position.Lat, d.Position.Lng))
	}
	if d.COG != nil {
		lines = append(lines, fmt.Sprintf("Course     %.0f° to %.5f, %.5f in %s (%.0f m)",
			d.COG.Bearing, d.COG.To.Lat, d.COG.To.Lng, d.COG.Horizon.Round(time.Second), d.COG.Distance))
	}
	if d.Wind != nil {
		src := "true"
		if d.Wind.Derived {
			src = "derived"
		}
		lines = append(lines, fmt.Sprintf("Wind       %.1f kn from %.0f° (%s)", d.Wind.SpeedKnots, d.Wind.DirectionDeg, src))
	}
	if len(lines) == 0 {
		return ""
	}
	return labelStyle.Render(strings.Join(lines, "\n")) + "\n"
}
