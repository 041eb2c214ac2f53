// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// SPINNER CONFIG TESTS
// =============================================================================

func TestSpinnerConfigs(t *testing.T) {
	spinners := []struct {
		name   string
		config SpinnerConfig
	}{
		{"BrailleSpinner", BrailleSpinner},
		{"DotsSpinner", DotsSpinner},
	}

	for _, s := range spinners {
		t.Run(s.name, func(t *testing.T) {
			if len(s.config.Frames) == 0 {
				t.Errorf("%s should have frames", s.name)
			}
			if s.config.FPS <= 0 {
				t.Errorf("%s FPS should be positive", s.name)
			}
			sp := s.config.Bubbles()
			if len(sp.Frames) != len(s.config.Frames) || sp.FPS != s.config.Duration() {
				t.Errorf("Bubbles() = %+v, does not match config", sp)
			}
		})
	}
}

func TestSpinnerDuration(t *testing.T) {
	if got := (SpinnerConfig{FPS: 10}).Duration(); got != 100*time.Millisecond {
		t.Errorf("Duration() = %v, want 100ms", got)
	}
	if got := (SpinnerConfig{}).Duration(); got != time.Second {
		t.Errorf("zero FPS Duration() = %v, want 1s", got)
	}
}

func TestSpinnerFrame(t *testing.T) {
	s := SpinnerConfig{Frames: []string{"a", "b", "c"}}
	for n, want := range map[int]string{0: "a", 1: "b", 3: "a", 5: "c", -1: "b"} {
		if got := s.Frame(n); got != want {
			t.Errorf("Frame(%d) = %q, want %q", n, got, want)
		}
	}
	if got := (SpinnerConfig{}).Frame(3); got != "" {
		t.Errorf("empty Frame() = %q", got)
	}
}

// =============================================================================
// STATUS HELPER TESTS
// =============================================================================

func TestRenderStatusIndicators(t *testing.T) {
	tests := []struct {
		name      string
		render    func(string) string
		indicator string
	}{
		{"success", RenderSuccess, StatusIndicators.Success},
		{"error", RenderError, StatusIndicators.Error},
		{"warning", RenderWarning, StatusIndicators.Warning},
		{"info", RenderInfo, StatusIndicators.Info},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.render("saved")
			if !strings.Contains(out, tt.indicator) || !strings.Contains(out, "saved") {
				t.Errorf("render = %q, want indicator %q and message", out, tt.indicator)
			}
		})
	}

	if !strings.Contains(RenderStatus(true, "x"), StatusIndicators.Success) {
		t.Error("RenderStatus(true) should use the success indicator")
	}
	if !strings.Contains(RenderStatus(false, "x"), StatusIndicators.Error) {
		t.Error("RenderStatus(false) should use the error indicator")
	}
}

// =============================================================================
// THEME TESTS
// =============================================================================

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"UserText", theme.UserText},
		{"AssistantText", theme.AssistantText},
		{"ToolRunning", theme.ToolRunning},
		{"InputContainer", theme.InputContainer},
		{"StatusBar", theme.StatusBar},
		{"HelpBox", theme.HelpBox},
	}
	for _, s := range styles {
		if !strings.Contains(s.style.Render("test"), "test") {
			t.Errorf("%s style lost its content", s.name)
		}
	}
}

func TestThemeLayoutMode(t *testing.T) {
	theme := NewTheme()
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: GetLayoutMode() = %v, want %v", tt.width, got, tt.want)
		}
	}
}
