package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"hemo-board/internal/board"
	"hemo-board/internal/identity"
)

type Options struct {
	// Loop feeds the board; the caller runs it.
	Loop     Feed
	Service  *board.Service
	Identity identity.Provider
	Now      func() time.Time
}

// Run shows the weekly board until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	if opts.Loop == nil || opts.Service == nil {
		return errors.New("tui: loop and service are required")
	}
	applyGlyphPreference()
	applyThemePreference()
	applyColorProfilePreference()

	m := newBoardModel(ctx, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
