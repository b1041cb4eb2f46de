package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/netglobe/internal/model"
	"github.com/tinytelemetry/netglobe/internal/timefmt"
)

// DataSource supplies pipeline snapshots to the dashboard.
type DataSource interface {
	Snapshot() (model.Snapshot, error)
}

// Panel identifies a focusable dashboard panel.
type Panel int

const (
	PanelStats Panel = iota
	PanelBandwidth
	PanelThreats
	PanelLog
	panelCount
)

func (p Panel) String() string {
	switch p {
	case PanelStats:
		return "Stats"
	case PanelBandwidth:
		return "Bandwidth"
	case PanelThreats:
		return "Threats"
	case PanelLog:
		return "Event Log"
	}
	return "?"
}

// TickMsg fires every update interval. Gen discards ticks from a polling
// loop that was restarted.
type TickMsg struct {
	At  time.Time
	Gen int
}

type snapshotLoadedMsg struct {
	snapshot model.Snapshot
	err      error
	at       time.Time
}

// DashboardModel is the live traffic dashboard page.
type DashboardModel struct {
	source     DataSource
	dataSource string // shown in the status line, e.g. "Socket"
	keys       KeyMap
	clock      *timefmt.Formatter
	now        func() time.Time

	width  int
	height int

	snapshot model.Snapshot
	hasData  bool

	updateInterval     time.Duration
	availableIntervals []time.Duration
	currentIntervalIdx int
	paused             bool
	tickInFlight       bool
	tickGen            int

	lastTickOK        bool
	lastTickAt        time.Time
	lastError         string
	lastErrorAt       time.Time
	consecutiveErrors int
	peakPPS           int

	activePanel   Panel
	showHelp      bool
	threatsOffset int
	logView       viewport.Model
	spinner       spinner.Model
}

// NewDashboardModel creates a dashboard polling source every updateInterval.
func NewDashboardModel(source DataSource, updateInterval time.Duration, dataSource string) *DashboardModel {
	if updateInterval <= 0 {
		updateInterval = model.DefaultUpdateInterval
	}
	intervals := []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		5 * time.Second,
	}
	idx := -1
	for i, d := range intervals {
		if d == updateInterval {
			idx = i
			break
		}
	}
	if idx < 0 {
		intervals = append(intervals, updateInterval)
		idx = len(intervals) - 1
	}

	s := spinner.New()
	s.Spinner = spinner.Dot

	return &DashboardModel{
		source:             source,
		dataSource:         dataSource,
		keys:               DefaultKeyMap(),
		clock:              timefmt.New(time.Local),
		now:                time.Now,
		updateInterval:     updateInterval,
		availableIntervals: intervals,
		currentIntervalIdx: idx,
		activePanel:        PanelLog,
		logView:            viewport.New(80, 10),
		spinner:            s,
	}
}

func (m *DashboardModel) ID() string { return "dashboard" }

// Init starts a fresh polling loop and fetches immediately.
func (m *DashboardModel) Init() tea.Cmd {
	m.tickGen++
	m.tickInFlight = true
	return tea.Batch(m.fetchCmd(), m.scheduleTick(), m.spinner.Tick)
}

func (m *DashboardModel) scheduleTick() tea.Cmd {
	gen := m.tickGen
	return tea.Tick(m.updateInterval, func(t time.Time) tea.Msg {
		return TickMsg{At: t, Gen: gen}
	})
}

func (m *DashboardModel) fetchCmd() tea.Cmd {
	source := m.source
	now := m.now
	return func() tea.Msg {
		snap, err := source.Snapshot()
		return snapshotLoadedMsg{snapshot: snap, err: err, at: now()}
	}
}

// Update handles messages for the dashboard page.
func (m *DashboardModel) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLog()
		return nil, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.activePanel == PanelLog {
			switch msg.Button {
			case tea.MouseButtonWheelUp:
				m.logView.ScrollUp(1)
			case tea.MouseButtonWheelDown:
				m.logView.ScrollDown(1)
			}
		}
		return nil, nil

	case spinner.TickMsg:
		if m.hasData {
			return nil, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd, nil

	case TickMsg:
		if msg.Gen != m.tickGen {
			return nil, nil
		}
		if m.paused || m.tickInFlight {
			return m.scheduleTick(), nil
		}
		m.tickInFlight = true
		return tea.Batch(m.fetchCmd(), m.scheduleTick()), nil

	case snapshotLoadedMsg:
		m.tickInFlight = false
		m.applySnapshot(msg)
		return nil, nil
	}
	return nil, nil
}

func (m *DashboardModel) applySnapshot(msg snapshotLoadedMsg) {
	if msg.err != nil {
		m.lastTickOK = false
		m.lastError = msg.err.Error()
		m.lastErrorAt = msg.at
		m.consecutiveErrors++
		return
	}
	m.lastTickOK = true
	m.lastTickAt = msg.at
	m.consecutiveErrors = 0
	if m.paused {
		return
	}
	m.snapshot = msg.snapshot
	m.hasData = true
	if pps := msg.snapshot.Stats.PacketsPerSecond; pps > m.peakPPS {
		m.peakPPS = pps
	}
	if last := len(m.snapshot.Threats) - 1; m.threatsOffset > last {
		m.threatsOffset = max(last, 0)
	}
	// Newest events render first; stay pinned to them unless scrolled away.
	following := m.logView.AtTop()
	m.logView.SetContent(m.renderLogLines(m.logView.Width))
	if following {
		m.logView.GotoTop()
	}
}

func (m *DashboardModel) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Escape, m.keys.Quit) {
			m.showHelp = false
		}
		return nil, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit, m.keys.ForceQuit):
		return tea.Quit, nil
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.NextPanel):
		m.activePanel = (m.activePanel + 1) % panelCount
	case key.Matches(msg, m.keys.PrevPanel):
		m.activePanel = (m.activePanel + panelCount - 1) % panelCount
	case key.Matches(msg, m.keys.Up):
		m.scroll(-1)
	case key.Matches(msg, m.keys.Down):
		m.scroll(1)
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
	case key.Matches(msg, m.keys.IntervalUp):
		m.setInterval(m.currentIntervalIdx + 1)
	case key.Matches(msg, m.keys.IntervalDown):
		m.setInterval(m.currentIntervalIdx - 1)
	case key.Matches(msg, m.keys.Refresh):
		if !m.tickInFlight {
			m.tickInFlight = true
			return m.fetchCmd(), nil
		}
	case key.Matches(msg, m.keys.Routes):
		return nil, &PageNav{PageID: "routes"}
	}
	return nil, nil
}

func (m *DashboardModel) scroll(delta int) {
	switch m.activePanel {
	case PanelLog:
		if delta < 0 {
			m.logView.ScrollUp(-delta)
		} else {
			m.logView.ScrollDown(delta)
		}
	case PanelThreats:
		m.threatsOffset += delta
		if m.threatsOffset < 0 {
			m.threatsOffset = 0
		}
		if last := len(m.snapshot.Threats) - 1; m.threatsOffset > last {
			m.threatsOffset = max(last, 0)
		}
	}
}

func (m *DashboardModel) setInterval(idx int) {
	if idx < 0 || idx >= len(m.availableIntervals) {
		return
	}
	m.currentIntervalIdx = idx
	m.updateInterval = m.availableIntervals[idx]
}

// IsPaused reports whether live updates are frozen.
func (m *DashboardModel) IsPaused() bool { return m.paused }
