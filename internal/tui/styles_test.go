package tui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/netglobe/internal/severity"
)

func TestInitializeSkin_Default(t *testing.T) {
	if err := InitializeSkin("default", t.TempDir()); err != nil {
		t.Fatalf("default skin: %v", err)
	}
	if err := InitializeSkin("", t.TempDir()); err != nil {
		t.Fatalf("empty skin: %v", err)
	}
}

func TestInitializeSkin_Missing(t *testing.T) {
	if err := InitializeSkin("nope", t.TempDir()); err == nil {
		t.Fatal("expected an error for a missing skin")
	}
}

func TestInitializeSkin_AppliesOverrides(t *testing.T) {
	oldAccent, oldHigh, oldThreat := ColorAccent, levelColors[severity.High], ColorThreat
	t.Cleanup(func() {
		ColorAccent, ColorThreat = oldAccent, oldThreat
		levelColors[severity.High] = oldHigh
		buildStyles()
	})

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "skins"), 0o755); err != nil {
		t.Fatal(err)
	}
	skin := "accent: \"#123456\"\nlevels:\n  HIGH: \"#ABCDEF\"\n"
	if err := os.WriteFile(filepath.Join(dir, "skins", "ocean.yaml"), []byte(skin), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := InitializeSkin("ocean", dir); err != nil {
		t.Fatalf("InitializeSkin: %v", err)
	}
	if ColorAccent != lipgloss.Color("#123456") {
		t.Fatalf("accent = %v", ColorAccent)
	}
	if levelColors[severity.High] != lipgloss.Color("#ABCDEF") {
		t.Fatalf("HIGH color = %v", levelColors[severity.High])
	}
	if ColorThreat != oldThreat {
		t.Fatal("unset fields must keep the built-in color")
	}
}

func TestInitializeSkin_BadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "skins"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skins", "broken.yaml"), []byte("accent: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := InitializeSkin("broken", dir); err == nil {
		t.Fatal("expected a parse error")
	}
}
