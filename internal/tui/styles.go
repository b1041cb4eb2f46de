package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/netglobe/internal/severity"
)

// Palette colors. InitializeSkin may override them.
var (
	ColorNavy   = lipgloss.Color("#0B1A33")
	ColorWhite  = lipgloss.Color("#F5F7FA")
	ColorGray   = lipgloss.Color("244")
	ColorBorder = lipgloss.Color("#2A4A7F")
	ColorAccent = lipgloss.Color("#00CAC7")
	ColorThreat = lipgloss.Color("#FF0040")
	ColorBenign = lipgloss.Color("#00FFC8")
)

var levelColors = map[int]lipgloss.Color{
	severity.None:     lipgloss.Color("244"),
	severity.Low:      lipgloss.Color("39"),
	severity.Guarded:  lipgloss.Color("45"),
	severity.Elevated: lipgloss.Color("208"),
	severity.High:     lipgloss.Color("196"),
	severity.Severe:   lipgloss.Color("201"),
}

var (
	sectionStyle       lipgloss.Style
	activeSectionStyle lipgloss.Style
	chartTitleStyle    lipgloss.Style
	helpStyle          lipgloss.Style
	statusStyle        lipgloss.Style
	threatStyle        lipgloss.Style
	benignStyle        lipgloss.Style
)

func init() { buildStyles() }

func buildStyles() {
	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)
	activeSectionStyle = sectionStyle.BorderForeground(ColorAccent)
	chartTitleStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	helpStyle = lipgloss.NewStyle().Foreground(ColorGray).Italic(true)
	statusStyle = lipgloss.NewStyle().Background(ColorNavy).Foreground(ColorWhite)
	threatStyle = lipgloss.NewStyle().Foreground(ColorThreat).Bold(true)
	benignStyle = lipgloss.NewStyle().Foreground(ColorBenign)
}

// levelStyle colors text by threat level.
func levelStyle(level int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(levelColors[severity.Clamp(level)])
}

// Skin overrides the palette. Empty fields keep the built-in color.
type Skin struct {
	Background string            `yaml:"background"`
	Foreground string            `yaml:"foreground"`
	Muted      string            `yaml:"muted"`
	Border     string            `yaml:"border"`
	Accent     string            `yaml:"accent"`
	Threat     string            `yaml:"threat"`
	Benign     string            `yaml:"benign"`
	Levels     map[string]string `yaml:"levels"` // keyed by level label, e.g. HIGH
}

// InitializeSkin loads <configDir>/skins/<name>.yaml and applies it.
// The "default" skin, or an empty name, uses the built-in palette.
func InitializeSkin(name, configDir string) error {
	if name == "" || name == "default" {
		return nil
	}
	path := filepath.Join(configDir, "skins", name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("skin %q not found at %s", name, path)
		}
		return err
	}
	var skin Skin
	if err := yaml.Unmarshal(data, &skin); err != nil {
		return fmt.Errorf("parse skin %s: %w", path, err)
	}
	applySkin(skin)
	return nil
}

func applySkin(s Skin) {
	set := func(dst *lipgloss.Color, v string) {
		if v != "" {
			*dst = lipgloss.Color(v)
		}
	}
	set(&ColorNavy, s.Background)
	set(&ColorWhite, s.Foreground)
	set(&ColorGray, s.Muted)
	set(&ColorBorder, s.Border)
	set(&ColorAccent, s.Accent)
	set(&ColorThreat, s.Threat)
	set(&ColorBenign, s.Benign)
	for level := severity.None; level <= severity.Severe; level++ {
		if v := s.Levels[severity.Label(level)]; v != "" {
			levelColors[level] = lipgloss.Color(v)
		}
	}
	buildStyles()
}
