package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"hemo-board/internal/board"
	"hemo-board/internal/identity"
	"hemo-board/internal/model"
	"hemo-board/internal/syncloop"
)

// Feed is the part of syncloop.Loop the board needs.
type Feed interface {
	Updates() <-chan syncloop.Snapshot
	SetWeek(start time.Time)
	SetSearch(s string)
	Refresh()
}

type viewMode int

const (
	modeBoard viewMode = iota
	modeSearch
	modeDetail
	modeConfirmDelete
	modeAdd
	modeHelp
)

type snapshotMsg syncloop.Snapshot

type actorMsg struct {
	actor board.Actor
	err   error
}

type actionMsg struct {
	status string
	focus  string
	err    error
}

type flashDoneMsg struct{ seq int }

type boardModel struct {
	ctx   context.Context
	loop  Feed
	svc   *board.Service
	ident identity.Provider
	now   func() time.Time

	snap   syncloop.Snapshot
	loaded bool
	actor  board.Actor

	width  int
	height int
	mode   viewMode

	// Cursor: day column, row band and position inside the cell. selID follows
	// the selected card across reloads.
	dayIdx int
	rowIdx int
	pos    int
	selID  string

	search textinput.Model
	form   addForm

	status    string
	statusErr bool
	flashSeq  int
}

func newBoardModel(ctx context.Context, opts Options) boardModel {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "buscar nombre, habitación, diagnóstico o procedimiento"
	ti.CharLimit = 80

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return boardModel{
		ctx:    ctx,
		loop:   opts.Loop,
		svc:    opts.Service,
		ident:  opts.Identity,
		now:    now,
		search: ti,
		actor:  board.Actor{Role: model.RoleUnknown},
	}
}

func (m boardModel) Init() tea.Cmd {
	return tea.Batch(m.waitSnapshot(), m.resolveActor())
}

func (m boardModel) waitSnapshot() tea.Cmd {
	updates := m.loop.Updates()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case s := <-updates:
			return snapshotMsg(s)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m boardModel) resolveActor() tea.Cmd {
	ident := m.ident
	ctx := m.ctx
	return func() tea.Msg {
		if ident == nil {
			return actorMsg{actor: board.Actor{Role: model.RoleUnknown}}
		}
		u, role, err := identity.Resolve(ctx, ident)
		return actorMsg{actor: board.Actor{User: u, Role: role}, err: err}
	}
}

func (m *boardModel) applySnapshot(s syncloop.Snapshot) tea.Cmd {
	m.snap = s
	m.loaded = true
	m.followSelection()
	if s.Err != nil {
		return m.setStatus("error al recargar: "+s.Err.Error(), true)
	}
	return nil
}

// followSelection moves the cursor to wherever the selected card is now.
func (m *boardModel) followSelection() {
	s := m.snap
	if m.selID != "" {
		if key, pos, ok := s.Grid.Position(m.selID); ok {
			m.dayIdx = indexOf(s.Grid.Days, key.Day)
			m.rowIdx = model.RowIndex(key.Row)
			m.pos = pos - 1
			return
		}
	}
	m.clampCursor()
}

// clampCursor keeps the cursor inside the grid and re-derives selID.
func (m *boardModel) clampCursor() {
	days := m.snap.Grid.Days
	m.dayIdx = clamp(m.dayIdx, 0, len(days)-1)
	m.rowIdx = clamp(m.rowIdx, 0, len(model.Rows)-1)
	cell := m.currentCell()
	m.pos = clamp(m.pos, 0, len(cell)-1)
	if len(cell) == 0 {
		m.pos = 0
		m.selID = ""
		return
	}
	m.selID = cell[m.pos].ID
}

func (m boardModel) currentDay() string {
	days := m.snap.Grid.Days
	if m.dayIdx < 0 || m.dayIdx >= len(days) {
		return ""
	}
	return days[m.dayIdx]
}

func (m boardModel) currentRow() model.Row {
	if m.rowIdx < 0 || m.rowIdx >= len(model.Rows) {
		return model.Rows[0]
	}
	return model.Rows[m.rowIdx]
}

func (m boardModel) currentCell() []model.Card {
	return m.snap.Grid.Cell(m.currentDay(), m.currentRow())
}

func (m boardModel) selected() (model.Card, bool) {
	if m.selID == "" {
		return model.Card{}, false
	}
	return m.snap.Grid.Find(m.selID)
}

func (m *boardModel) setStatus(s string, isErr bool) tea.Cmd {
	m.status = s
	m.statusErr = isErr
	m.flashSeq++
	seq := m.flashSeq
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg { return flashDoneMsg{seq: seq} })
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return 0
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
