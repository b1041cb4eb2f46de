package tui

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/biter777/countries"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/severity"
	"github.com/tinytelemetry/netglobe/internal/timefmt"
)

func renderStats(s model.StatsSnapshot, total int64, peakPPS, width int) string {
	avg := severity.Label(int(s.AvgThreatLevel + 0.5))
	rows := [][2]string{
		{"Events seen", fmt.Sprintf("%d", total)},
		{"In window", fmt.Sprintf("%d", s.TotalPackets)},
		{"Bandwidth", timefmt.Bytes(s.TotalBandwidth)},
		{"Packets/s", fmt.Sprintf("%d (peak %d)", s.PacketsPerSecond, peakPPS)},
		{"Threats", fmt.Sprintf("%d", s.ThreatCount)},
		{"Avg level", fmt.Sprintf("%.1f %s", s.AvgThreatLevel, avg)},
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		line := truncate(fmt.Sprintf("%-12s %s", r[0], r[1]), width)
		if r[0] == "Threats" && s.ThreatCount > 0 {
			line = threatStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func bandwidthTitle(history []int64) string {
	if len(history) == 0 {
		return "Bandwidth"
	}
	return fmt.Sprintf("Bandwidth (last %s)", timefmt.Bytes(history[len(history)-1]))
}

// renderBandwidth draws the histogram oldest bucket first.
func renderBandwidth(history []int64, width, height int) string {
	if len(history) == 0 {
		return helpStyle.Render("No data available")
	}
	if width < len(history) || height < 2 {
		return helpStyle.Render("Too small")
	}

	barWidth := max((width-(len(history)-1))/len(history), 1)
	bc := barchart.New(width, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(barWidth),
		barchart.WithNoAxis(),
	)
	style := lipgloss.NewStyle().Foreground(ColorAccent).Background(ColorAccent)
	for _, v := range history {
		bc.Push(barchart.BarData{
			Values: []barchart.BarValue{{Name: "bytes", Value: float64(v), Style: style}},
		})
	}
	bc.Draw()
	return bc.View()
}

type distEntry struct {
	key   string
	count int
}

// sortedDistribution orders entries by count descending, then key.
func sortedDistribution(dist map[string]int) []distEntry {
	entries := make([]distEntry, 0, len(dist))
	for k, v := range dist {
		entries = append(entries, distEntry{k, v})
	}
	slices.SortFunc(entries, func(a, b distEntry) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	return entries
}

func renderDistribution(dist map[string]int, rows, width int, label func(string) string) string {
	if len(dist) == 0 {
		return helpStyle.Render("None")
	}
	entries := sortedDistribution(dist)
	if len(entries) > rows {
		entries = entries[:rows]
	}
	top := entries[0].count

	const labelWidth = 14
	barSpace := max(width-labelWidth-7, 1)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.key
		if label != nil {
			name = label(e.key)
		}
		n := e.count * barSpace / max(top, 1)
		bar := lipgloss.NewStyle().Foreground(ColorAccent).Render(strings.Repeat("█", n))
		lines = append(lines, fmt.Sprintf("%-*s %5d %s", labelWidth, truncate(name, labelWidth), e.count, bar))
	}
	return strings.Join(lines, "\n")
}

// countryName resolves an ISO code to its English name, or returns the code.
func countryName(code string) string {
	if c := countries.ByName(code); c != countries.Unknown {
		return c.String()
	}
	return code
}

func renderThreats(threats []model.TrafficEvent, offset, rows, width int, clock *timefmt.Formatter) string {
	if len(threats) == 0 {
		return benignStyle.Render("No active threats")
	}
	if offset > len(threats) {
		offset = len(threats)
	}
	visible := threats[offset:]
	if len(visible) > rows {
		visible = visible[:rows]
	}
	lines := make([]string, 0, len(visible))
	for _, e := range visible {
		lvl := levelStyle(e.ThreatLevel).Render(fmt.Sprintf("%-8s", severity.Label(e.ThreatLevel)))
		rest := fmt.Sprintf(" %s %s→%s %s", clock.Clock(e.CreatedAt), e.SrcCountryCode, e.DstCountryCode, e.ThreatType)
		lines = append(lines, lvl+truncate(rest, width-8))
	}
	return strings.Join(lines, "\n")
}

func formatEventLine(e model.TrafficEvent, clock *timefmt.Formatter, width int) string {
	port := "-"
	if e.Port != nil {
		port = fmt.Sprintf("%d", *e.Port)
	}
	line := fmt.Sprintf("%s %-15s → %-15s %-5s %5s %8s %s",
		clock.Clock(e.CreatedAt), e.SrcIP, e.DstIP, e.Protocol, port, timefmt.Bytes(int64(e.PacketSize)), e.Status)
	line = truncate(line, width)
	if e.ThreatLevel > severity.None {
		return levelStyle(e.ThreatLevel).Render(line)
	}
	return line
}

// truncate cuts s to at most width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
