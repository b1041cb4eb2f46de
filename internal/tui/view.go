package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	statusLineHeight = 1
	topRowHeight     = 10
	midRowHeight     = 9
	minBottomHeight  = 6
)

// layout returns the outer heights of the three panel rows.
func (m *DashboardModel) layout() (top, mid, bottom int) {
	usable := m.height - statusLineHeight
	top, mid = topRowHeight, midRowHeight
	bottom = usable - top - mid
	if bottom < minBottomHeight {
		bottom = minBottomHeight
	}
	return top, mid, bottom
}

func (m *DashboardModel) resizeLog() {
	_, _, bottom := m.layout()
	w := m.width - m.width/2 - 4
	h := bottom - 3
	m.logView.Width = max(w, 10)
	m.logView.Height = max(h, 1)
	m.logView.SetContent(m.renderLogLines(m.logView.Width))
}

// View renders the dashboard page.
func (m *DashboardModel) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Initializing dashboard..."
	}
	if width != m.width || height != m.height {
		m.width, m.height = width, height
		m.resizeLog()
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if !m.hasData {
		body := m.spinner.View() + " Waiting for " + m.dataSource + "..."
		if m.lastError != "" {
			body += "\n" + helpStyle.Render(m.lastError)
		}
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, body)
	}

	top, mid, bottom := m.layout()
	left := width / 2
	right := width - left
	third := width / 3

	stats := m.snapshot.Stats
	topRow := lipgloss.JoinHorizontal(lipgloss.Top,
		renderPanel("Stats", renderStats(stats, m.snapshot.TotalCount, m.peakPPS, left-4), left, top, m.activePanel == PanelStats),
		renderPanel(bandwidthTitle(stats.BandwidthHistory), renderBandwidth(stats.BandwidthHistory, right-4, top-3), right, top, m.activePanel == PanelBandwidth),
	)
	midRow := lipgloss.JoinHorizontal(lipgloss.Top,
		renderPanel("Protocols", renderDistribution(stats.ProtocolDistribution, mid-3, third-4, nil), third, mid, false),
		renderPanel("Countries", renderDistribution(stats.CountryDistribution, mid-3, third-4, countryName), third, mid, false),
		renderPanel("Threat Types", renderDistribution(stats.ThreatsByType, mid-3, width-2*third-4, nil), width-2*third, mid, false),
	)
	bottomRow := lipgloss.JoinHorizontal(lipgloss.Top,
		renderPanel(fmt.Sprintf("Threats (%d)", len(m.snapshot.Threats)), renderThreats(m.snapshot.Threats, m.threatsOffset, bottom-3, left-4, m.clock), left, bottom, m.activePanel == PanelThreats),
		renderPanel("Event Log", m.logView.View(), right, bottom, m.activePanel == PanelLog),
	)

	return lipgloss.JoinVertical(lipgloss.Left, topRow, midRow, bottomRow, m.renderStatusLine())
}

// renderPanel boxes body under a title so the result is exactly w x h cells.
func renderPanel(title, body string, w, h int, active bool) string {
	style := sectionStyle
	if active {
		style = activeSectionStyle
	}
	content := lipgloss.JoinVertical(lipgloss.Left, chartTitleStyle.Render(title), body)
	return style.Width(max(w-2, 0)).Height(max(h-2, 0)).MaxHeight(h).Render(content)
}

func (m *DashboardModel) renderLogLines(width int) string {
	if len(m.snapshot.Log) == 0 {
		return helpStyle.Render("No events yet")
	}
	lines := make([]string, 0, len(m.snapshot.Log))
	for _, e := range m.snapshot.Log {
		lines = append(lines, formatEventLine(e, m.clock, width))
	}
	return strings.Join(lines, "\n")
}

func (m *DashboardModel) renderStatusLine() string {
	left := fmt.Sprintf(" netglobe │ %s", m.activePanel)
	if m.paused {
		left += " │ PAUSED"
	}

	var dot string
	stale := m.now().Sub(m.lastTickAt) > 3*m.updateInterval
	switch {
	case !m.lastTickOK:
		dot = statusStyle.Foreground(lipgloss.Color("#FF4444")).Render("●")
	case stale:
		dot = statusStyle.Foreground(lipgloss.Color("#FFAA00")).Render("●")
	default:
		dot = statusStyle.Foreground(lipgloss.Color("#44FF44")).Render("●")
	}

	right := fmt.Sprintf("%s │ every %s │ ? help ", m.dataSource, m.updateInterval)
	if m.lastError != "" && m.now().Sub(m.lastErrorAt) < 30*time.Second {
		right = fmt.Sprintf("error x%d │ ", m.consecutiveErrors) + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return statusStyle.Render(left+strings.Repeat(" ", gap)) + dot + statusStyle.Render(" "+right)
}

func (m *DashboardModel) renderHelp() string {
	var b strings.Builder
	b.WriteString(chartTitleStyle.Render("Keys") + "\n\n")
	for _, binding := range m.keys.helpBindings() {
		h := binding.Help()
		fmt.Fprintf(&b, "  %-12s %s\n", h.Key, h.Desc)
	}
	b.WriteString("\n" + helpStyle.Render("press ? or esc to close"))
	box := activeSectionStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
