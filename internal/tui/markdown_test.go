package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/glamour/styles"
)

func TestMarkdownStyle_RespectsTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")

	t.Setenv("HEMO_TUI_THEME", "light")
	if got := markdownStyle(); got != "light" {
		t.Fatalf("expected light; got %q", got)
	}
	t.Setenv("HEMO_TUI_THEME", "dark")
	if got := markdownStyle(); got != "dark" {
		t.Fatalf("expected dark; got %q", got)
	}
}

func TestMarkdownStyle_ColorFGBG(t *testing.T) {
	t.Setenv("HEMO_TUI_THEME", "")
	t.Setenv("COLORFGBG", "0;15")
	if got := markdownStyle(); got != "light" {
		t.Fatalf("expected light for bg 15; got %q", got)
	}
	t.Setenv("COLORFGBG", "15;0")
	if got := markdownStyle(); got != "dark" {
		t.Fatalf("expected dark for bg 0; got %q", got)
	}
}

func TestMarkdownStyleConfig_DoesNotMutateBase(t *testing.T) {
	before := styles.DarkStyleConfig.Text.Color
	_ = markdownStyleConfig("dark")
	if styles.DarkStyleConfig.Text.Color != before {
		t.Fatalf("base style config was mutated")
	}
}

func TestRenderMarkdown_Basic(t *testing.T) {
	t.Setenv("HEMO_TUI_THEME", "dark")
	out := renderMarkdown("**Día:** 2025-03-03", 40)
	if !strings.Contains(out, "2025-03-03") {
		t.Fatalf("expected rendered text to contain the day; got %q", out)
	}
	if renderMarkdown("   ", 40) != "" {
		t.Fatalf("expected blank markdown to render empty")
	}
}
