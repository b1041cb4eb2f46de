package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/timefmt"
)

// RouteSource aggregates the mirrored window by country pair.
type RouteSource interface {
	Routes(limit int) ([]model.RouteCount, error)
}

const defaultRouteLimit = 20

type routesTickMsg struct{ gen int }

type routesLoadedMsg struct {
	routes []model.RouteCount
	err    error
}

// RoutesPage lists the busiest source/destination country pairs.
type RoutesPage struct {
	source   RouteSource
	keys     KeyMap
	interval time.Duration
	limit    int

	routes  []model.RouteCount
	err     error
	loaded  bool
	tickGen int
}

// NewRoutesPage creates the routes page, refreshing every interval.
func NewRoutesPage(source RouteSource, interval time.Duration) *RoutesPage {
	if interval <= 0 {
		interval = model.DefaultUpdateInterval
	}
	return &RoutesPage{
		source:   source,
		keys:     DefaultKeyMap(),
		interval: interval,
		limit:    defaultRouteLimit,
	}
}

func (p *RoutesPage) ID() string { return "routes" }

func (p *RoutesPage) Init() tea.Cmd {
	p.tickGen++
	return tea.Batch(p.fetchCmd(), p.scheduleTick())
}

func (p *RoutesPage) scheduleTick() tea.Cmd {
	gen := p.tickGen
	return tea.Tick(p.interval, func(time.Time) tea.Msg {
		return routesTickMsg{gen: gen}
	})
}

func (p *RoutesPage) fetchCmd() tea.Cmd {
	source, limit := p.source, p.limit
	return func() tea.Msg {
		routes, err := source.Routes(limit)
		return routesLoadedMsg{routes: routes, err: err}
	}
}

func (p *RoutesPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Quit):
			return tea.Quit, nil
		case key.Matches(msg, p.keys.Escape, p.keys.Routes):
			return nil, &PageNav{PageID: "dashboard"}
		case key.Matches(msg, p.keys.Refresh):
			return p.fetchCmd(), nil
		}
	case routesTickMsg:
		if msg.gen != p.tickGen {
			return nil, nil
		}
		return tea.Batch(p.fetchCmd(), p.scheduleTick()), nil
	case routesLoadedMsg:
		p.loaded = true
		p.err = msg.err
		if msg.err == nil {
			p.routes = msg.routes
		}
	}
	return nil, nil
}

func (p *RoutesPage) View(width, height int) string {
	var b strings.Builder
	b.WriteString(chartTitleStyle.Render("Top Routes") + "\n\n")

	switch {
	case !p.loaded:
		b.WriteString(helpStyle.Render("Loading..."))
	case p.err != nil:
		b.WriteString(threatStyle.Render("Routes unavailable: " + p.err.Error()))
	case len(p.routes) == 0:
		b.WriteString(helpStyle.Render("No traffic in window"))
	default:
		header := fmt.Sprintf("%-22s %-22s %7s %10s %7s", "Source", "Destination", "Events", "Bytes", "Threats")
		b.WriteString(lipgloss.NewStyle().Foreground(ColorWhite).Bold(true).Render(header) + "\n")
		for _, r := range p.routes {
			line := fmt.Sprintf("%-22s %-22s %7d %10s %7d",
				truncate(countryName(r.Src), 22), truncate(countryName(r.Dst), 22),
				r.Events, timefmt.Bytes(r.Bytes), r.Threats)
			if r.Threats > 0 {
				line = threatStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("esc back • ctrl+r refresh • q quit"))

	box := sectionStyle.Width(max(width-2, 0)).Height(max(height-2, 0)).MaxHeight(max(height, 0))
	return box.Render(b.String())
}
