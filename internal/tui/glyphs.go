package tui

import (
	"os"
	"strings"
	"sync"
)

// The TUI cannot change the user's font, so it picks between Unicode and
// ASCII glyphs for marks and separators.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

func applyGlyphPreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("HEMO_TUI_GLYPHS"))) {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	default:
		// Unknown value: ignore.
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	defer glyphsMu.RUnlock()
	return currentGlyphs
}

func pick(unicode, ascii string) string {
	if glyphs() == glyphSetASCII {
		return ascii
	}
	return unicode
}

func glyphDone() string      { return pick("✓", "x") }
func glyphPending() string   { return pick("▫", "-") }
func glyphEmptyCell() string { return pick("·", ".") }
func glyphRule() string      { return pick("─", "-") }
func glyphFocus() string     { return pick("▸", ">") }
func glyphEllipsis() string  { return pick("…", "...") }
