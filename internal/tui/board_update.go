package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"hemo-board/internal/board"
	"hemo-board/internal/model"
	"hemo-board/internal/syncloop"
)

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case snapshotMsg:
		cmd := m.applySnapshot(syncloop.Snapshot(msg))
		return m, tea.Batch(cmd, m.waitSnapshot())

	case actorMsg:
		if msg.err != nil {
			return m, m.setStatus("identidad: "+msg.err.Error(), true)
		}
		m.actor = msg.actor
		return m, nil

	case actionMsg:
		if msg.focus != "" {
			m.selID = msg.focus
			m.followSelection()
		}
		if msg.err != nil {
			return m, m.setStatus(msg.err.Error(), true)
		}
		if msg.status != "" {
			return m, m.setStatus(msg.status, false)
		}
		return m, nil

	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.status = ""
			m.statusErr = false
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeDetail, modeHelp:
			switch msg.String() {
			case "esc", "enter", "q", "?":
				m.mode = modeBoard
			}
			return m, nil
		case modeConfirmDelete:
			m.mode = modeBoard
			if msg.String() == "y" || msg.String() == "s" {
				return m, m.deleteSelected()
			}
			return m, m.setStatus("borrado cancelado", false)
		case modeAdd:
			return m.updateAdd(msg)
		}
		return m.updateBoard(msg)
	}
	return m, nil
}

func (m boardModel) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "left", "h":
		m.dayIdx--
		m.clampCursor()
	case "right", "l":
		m.dayIdx++
		m.clampCursor()
	case "up", "k":
		m.cursorUp()
	case "down", "j":
		m.cursorDown()

	case "K", "shift+up":
		return m, m.move("subir", func(ctx context.Context, a board.Actor, id string) (board.MoveResult, error) {
			return m.svc.MoveUp(ctx, a, id)
		})
	case "J", "shift+down":
		return m, m.move("bajar", func(ctx context.Context, a board.Actor, id string) (board.MoveResult, error) {
			return m.svc.MoveDown(ctx, a, id)
		})
	case "H", "shift+left":
		week := m.snap.Week
		return m, m.move("día anterior", func(ctx context.Context, a board.Actor, id string) (board.MoveResult, error) {
			return m.svc.MoveDay(ctx, a, week, id, -1)
		})
	case "L", "shift+right":
		week := m.snap.Week
		return m, m.move("día siguiente", func(ctx context.Context, a board.Actor, id string) (board.MoveResult, error) {
			return m.svc.MoveDay(ctx, a, week, id, 1)
		})
	case "{":
		return m, m.move("sala anterior", func(ctx context.Context, a board.Actor, id string) (board.MoveResult, error) {
			return m.svc.MoveRow(ctx, a, id, -1)
		})
	case "}":
		return m, m.move("sala siguiente", func(ctx context.Context, a board.Actor, id string) (board.MoveResult, error) {
			return m.svc.MoveRow(ctx, a, id, 1)
		})
	case "f":
		return m, m.move("al principio", func(ctx context.Context, a board.Actor, id string) (board.MoveResult, error) {
			return m.svc.MoveToFront(ctx, a, id)
		})

	case " ", "x":
		return m, m.toggleDone()
	case "d", "delete":
		if _, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
		}
	case "a":
		m.form = newAddForm(m.currentDay(), m.currentRow())
		m.mode = modeAdd
		return m, m.form.focusCmd()
	case "enter":
		if _, ok := m.selected(); ok {
			m.mode = modeDetail
		}

	case "?":
		m.mode = modeHelp
	case "/":
		m.mode = modeSearch
		return m, m.search.Focus()
	case "esc":
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.loop.SetSearch("")
		}

	case "n":
		m.loop.SetWeek(m.snap.Week.AddDate(0, 0, 7))
	case "p":
		m.loop.SetWeek(m.snap.Week.AddDate(0, 0, -7))
	case "t":
		m.loop.SetWeek(board.WeekStart(m.now()))
	case "r":
		m.loop.Refresh()
		return m, m.setStatus("recargando…", false)
	}
	return m, nil
}

func (m *boardModel) cursorUp() {
	if m.pos > 0 {
		m.pos--
		m.clampCursor()
		return
	}
	for r := m.rowIdx - 1; r >= 0; r-- {
		cell := m.snap.Grid.Cell(m.currentDay(), model.Rows[r])
		if len(cell) > 0 || r == 0 {
			m.rowIdx = r
			m.pos = len(cell) - 1
			m.clampCursor()
			return
		}
	}
}

func (m *boardModel) cursorDown() {
	if m.pos < len(m.currentCell())-1 {
		m.pos++
		m.clampCursor()
		return
	}
	for r := m.rowIdx + 1; r < len(model.Rows); r++ {
		cell := m.snap.Grid.Cell(m.currentDay(), model.Rows[r])
		if len(cell) > 0 || r == len(model.Rows)-1 {
			m.rowIdx = r
			m.pos = 0
			m.clampCursor()
			return
		}
	}
}

func (m boardModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeBoard
		m.search.Blur()
		return m, nil
	case "esc":
		m.mode = modeBoard
		m.search.Blur()
		m.search.SetValue("")
		m.loop.SetSearch("")
		return m, nil
	}
	var cmd tea.Cmd
	before := m.search.Value()
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.loop.SetSearch(v)
	}
	return m, cmd
}

func (m boardModel) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBoard
		return m, nil
	case "tab", "down":
		return m, m.form.next(1)
	case "shift+tab", "up":
		return m, m.form.next(-1)
	case "enter":
		draft, err := m.form.draft()
		if err != nil {
			return m, m.setStatus(err.Error(), true)
		}
		m.mode = modeBoard
		return m, m.add(draft)
	}
	cmd := m.form.update(msg)
	return m, cmd
}

type moveFunc func(ctx context.Context, a board.Actor, id string) (board.MoveResult, error)

func (m boardModel) move(label string, fn moveFunc) tea.Cmd {
	c, ok := m.selected()
	if !ok {
		return nil
	}
	ctx, a := m.ctx, m.actor
	return func() tea.Msg {
		res, err := fn(ctx, a, c.ID)
		if err != nil {
			return actionMsg{focus: c.ID, err: err}
		}
		if !res.Moved {
			return actionMsg{focus: c.ID, status: "sin cambios (" + label + ")"}
		}
		return actionMsg{focus: c.ID, status: fmt.Sprintf("%s: %s", label, displayName(c))}
	}
}

func (m boardModel) toggleDone() tea.Cmd {
	c, ok := m.selected()
	if !ok {
		return nil
	}
	ctx, a := m.ctx, m.actor
	return func() tea.Msg {
		out, err := m.svc.ToggleDone(ctx, a, c.ID)
		if err != nil {
			return actionMsg{err: err}
		}
		status := "pendiente"
		if out.Done {
			status = "finalizado"
		}
		return actionMsg{focus: c.ID, status: displayName(c) + ": " + status}
	}
}

func (m boardModel) deleteSelected() tea.Cmd {
	c, ok := m.selected()
	if !ok {
		return nil
	}
	ctx, a := m.ctx, m.actor
	return func() tea.Msg {
		if err := m.svc.Delete(ctx, a, c.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "borrado: " + displayName(c)}
	}
}

func (m boardModel) add(d model.CardDraft) tea.Cmd {
	ctx, a := m.ctx, m.actor
	return func() tea.Msg {
		c, err := m.svc.Add(ctx, a, d)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{focus: c.ID, status: "añadido: " + displayName(c)}
	}
}

func displayName(c model.Card) string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return "(sin nombre)"
}
