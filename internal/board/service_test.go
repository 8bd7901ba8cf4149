package board

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hemo-board/internal/metrics"
	"hemo-board/internal/model"
	"hemo-board/internal/order"
	"hemo-board/internal/perm"
	"hemo-board/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	editor = Actor{User: &model.User{ID: "u-ed"}, Role: model.RoleEditor}
	viewer = Actor{User: &model.User{ID: "u-view"}, Role: model.RoleViewer}
	nobody = Actor{Role: model.RoleUnknown}
)

type actionRecorder struct {
	metrics.Nop
	mu      sync.Mutex
	actions []string
	writes  int
}

func (r *actionRecorder) RecordAction(action, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action+"="+result)
}

func (r *actionRecorder) RecordStoreWrite(string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
}

func newService(t *testing.T) (*Service, *store.Memory, *actionRecorder) {
	t.Helper()
	mem := store.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })
	rec := &actionRecorder{}
	return NewService(mem, Options{Increment: 10, Metrics: rec}), mem, rec
}

func add(t *testing.T, s *Service, name, day string, row model.Row) model.Card {
	t.Helper()
	c, err := s.Add(context.Background(), editor, model.CardDraft{Name: name, Proc: "icp", Day: day, Row: row})
	require.NoError(t, err)
	return c
}

func cellIDs(t *testing.T, s *Service, day string, row model.Row) []string {
	t.Helper()
	g, err := s.Grid(context.Background(), week, "")
	require.NoError(t, err)
	return ids(g.Cell(day, row))
}

func TestAddAppendsWithIncrement(t *testing.T) {
	s, _, rec := newService(t)
	a := add(t, s, "A", "2025-03-03", model.RowSala1)
	b := add(t, s, "B", "2025-03-03", model.RowSala1)
	assert.Equal(t, int64(10), a.Ord)
	assert.Equal(t, int64(20), b.Ord)
	assert.Equal(t, model.ProcICP, a.Proc)
	require.NotNil(t, a.CreatedBy)
	assert.Equal(t, "u-ed", *a.CreatedBy)
	assert.Equal(t, []string{"add=ok", "add=ok"}, rec.actions)
	assert.Equal(t, 2, rec.writes)
}

func TestAddRejectsUnknownLabels(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	_, err := s.Add(ctx, editor, model.CardDraft{Proc: "Bypass", Day: "2025-03-03", Row: model.RowSala1})
	assert.ErrorIs(t, err, model.ErrUnknownProcedure)
	_, err = s.Add(ctx, editor, model.CardDraft{Proc: model.ProcICP, Day: "2025-03-03", Row: "Sala 9"})
	assert.ErrorIs(t, err, model.ErrUnknownRow)
	_, err = s.Add(ctx, editor, model.CardDraft{Proc: model.ProcICP, Day: "03/03/2025", Row: model.RowSala1})
	assert.Error(t, err)
}

func TestActionsAreRoleGated(t *testing.T) {
	s, mem, rec := newService(t)
	ctx := context.Background()
	c := add(t, s, "A", "2025-03-03", model.RowSala1)
	rec.actions = nil

	_, err := s.MoveDown(ctx, viewer, c.ID)
	assert.ErrorIs(t, err, perm.ErrForbidden)
	_, err = s.Add(ctx, nobody, model.CardDraft{Proc: model.ProcICP, Day: "2025-03-03", Row: model.RowSala1})
	assert.ErrorIs(t, err, perm.ErrNotSignedIn)
	assert.ErrorIs(t, s.Delete(ctx, viewer, c.ID), perm.ErrForbidden)
	_, err = s.ToggleDone(ctx, viewer, c.ID)
	assert.ErrorIs(t, err, perm.ErrForbidden)

	got, err := mem.Card(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, []string{"move_down=forbidden", "add=forbidden", "delete=forbidden", "toggle_done=forbidden"}, rec.actions)
}

func TestMoveUpScenarioAndAppend(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	a := add(t, s, "A", "2025-03-03", model.RowSala1)
	b := add(t, s, "B", "2025-03-03", model.RowSala1)
	c := add(t, s, "C", "2025-03-03", model.RowSala1)

	res, err := s.MoveUp(ctx, editor, b.ID)
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, 3, res.Writes)
	assert.Equal(t, int64(10), res.Card.Ord)
	assert.Equal(t, []string{b.ID, a.ID, c.ID}, cellIDs(t, s, "2025-03-03", model.RowSala1))

	d := add(t, s, "D", "2025-03-03", model.RowSala1)
	assert.Equal(t, int64(40), d.Ord)
	assert.Equal(t, []string{b.ID, a.ID, c.ID, d.ID}, cellIDs(t, s, "2025-03-03", model.RowSala1))
}

func TestMoveAtBoundaryIsNoop(t *testing.T) {
	s, _, rec := newService(t)
	ctx := context.Background()
	a := add(t, s, "A", "2025-03-03", model.RowSala1)
	rec.writes = 0

	res, err := s.MoveUp(ctx, editor, a.ID)
	require.NoError(t, err)
	assert.False(t, res.Moved)
	assert.Zero(t, res.Writes)
	assert.Zero(t, rec.writes)
	assert.Equal(t, int64(10), res.Card.Ord)
}

func TestMoveDayWrapsBothWays(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	fri := add(t, s, "F", "2025-03-07", model.RowSala2)
	add(t, s, "M", "2025-03-03", model.RowSala2)

	res, err := s.MoveDay(ctx, editor, week, fri.ID, 1)
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, "2025-03-03", res.Card.Day)
	assert.Equal(t, int64(20), res.Card.Ord, "appended after the existing card")

	res, err = s.MoveDay(ctx, editor, week, fri.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-07", res.Card.Day)
	assert.Equal(t, model.RowSala2, res.Card.Row)
}

func TestMoveDayOutsideWindow(t *testing.T) {
	s, _, _ := newService(t)
	c := add(t, s, "X", "2025-03-10", model.RowSala1)
	_, err := s.MoveDay(context.Background(), editor, week, c.ID, 1)
	assert.ErrorIs(t, err, ErrOutsideWindow)
}

func TestMoveDayZeroWeekUsesCardWeek(t *testing.T) {
	s, _, _ := newService(t)
	c := add(t, s, "X", "2025-03-10", model.RowSala1)
	res, err := s.MoveDay(context.Background(), editor, time.Time{}, c.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", res.Card.Day)
}

func TestMoveDayGatesBeforeLookup(t *testing.T) {
	s, _, _ := newService(t)
	viewer := Actor{User: &model.User{ID: "u-v"}, Role: model.RoleViewer}
	_, err := s.MoveDay(context.Background(), viewer, time.Time{}, "missing", 1)
	assert.ErrorIs(t, err, perm.ErrForbidden)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

func TestMoveRowDoesNotWrap(t *testing.T) {
	s, _, rec := newService(t)
	ctx := context.Background()
	top := add(t, s, "T", "2025-03-04", model.RowSala1)
	bottom := add(t, s, "B", "2025-03-04", model.RowTarde)
	rec.writes = 0

	res, err := s.MoveRow(ctx, editor, top.ID, -1)
	require.NoError(t, err)
	assert.False(t, res.Moved)
	res, err = s.MoveRow(ctx, editor, bottom.ID, 1)
	require.NoError(t, err)
	assert.False(t, res.Moved)
	assert.Zero(t, rec.writes)

	res, err = s.MoveRow(ctx, editor, top.ID, 1)
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, model.RowSala2, res.Card.Row)
	assert.Equal(t, int64(10), res.Card.Ord)
}

func TestMoveToFront(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	a := add(t, s, "A", "2025-03-03", model.RowSala3)
	b := add(t, s, "B", "2025-03-03", model.RowSala3)

	res, err := s.MoveToFront(ctx, editor, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.Card.Ord)
	assert.Equal(t, []string{b.ID, a.ID}, cellIDs(t, s, "2025-03-03", model.RowSala3))
}

func TestEditToggleDelete(t *testing.T) {
	s, mem, _ := newService(t)
	ctx := context.Background()
	c := add(t, s, "A", "2025-03-03", model.RowSala1)

	name := "Ana"
	proc := model.Procedure("oclusion cronica")
	got, err := s.Edit(ctx, editor, c.ID, model.CardPatch{Name: &name, Proc: &proc})
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, model.ProcOclusionCron, got.Proc)
	assert.Equal(t, c.Ord, got.Ord)

	day := "2025-03-04"
	_, err = s.Edit(ctx, editor, c.ID, model.CardPatch{Day: &day})
	assert.ErrorIs(t, err, ErrPlacementField)

	got, err = s.ToggleDone(ctx, editor, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Done)
	got, err = s.ToggleDone(ctx, editor, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Done)

	require.NoError(t, s.Delete(ctx, editor, c.ID))
	_, err = mem.Card(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, editor, c.ID), store.ErrNotFound)
}

type failingUpdates struct {
	*store.Memory
	after int
	n     int
}

func (f *failingUpdates) Update(ctx context.Context, id string, p model.CardPatch) (model.Card, error) {
	f.n++
	if f.n > f.after {
		return model.Card{}, errors.New("network down")
	}
	return f.Memory.Update(ctx, id, p)
}

func TestSwapFailureIsReportedWithStep(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()
	fs := &failingUpdates{Memory: mem, after: 1}
	s := NewService(fs, Options{})
	ctx := context.Background()
	a := add(t, s, "A", "2025-03-03", model.RowSala1)
	b := add(t, s, "B", "2025-03-03", model.RowSala1)

	res, err := s.MoveUp(ctx, editor, b.ID)
	var se *order.SwapError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, order.StepNeighbor, se.Step)
	assert.Contains(t, err.Error(), "move_up")
	assert.Equal(t, 1, res.Writes)

	parked, err := mem.Card(ctx, b.ID)
	require.NoError(t, err)
	assert.Less(t, parked.Ord, a.Ord)
}

func TestExportIgnoresSearch(t *testing.T) {
	s, _, _ := newService(t)
	add(t, s, "A", "2025-03-03", model.RowSala1)
	cards, err := s.Week(context.Background(), week)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, cards, week))
	assert.Contains(t, buf.String(), ",A,")
}
