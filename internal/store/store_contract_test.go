package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hemo-board/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sq, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "board.sqlite"), SQLiteOptions{})
	require.NoError(t, err)
	mem := NewMemory()
	t.Cleanup(func() {
		_ = sq.Close()
		_ = mem.Close()
	})
	return map[string]Backend{"memory": mem, "sqlite": sq}
}

func insert(t *testing.T, s Store, name, day string, row model.Row, ord int64) model.Card {
	t.Helper()
	c, err := s.Insert(context.Background(), model.Card{Name: name, Proc: model.ProcICP, Day: day, Row: row, Ord: ord})
	require.NoError(t, err)
	return c
}

func TestStoreOrdBoundsOnEmptyCell(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			max, err := s.MaxOrd(ctx, "2025-03-03", model.RowSala1)
			require.NoError(t, err)
			assert.Equal(t, int64(0), max)
			min, err := s.MinOrd(ctx, "2025-03-03", model.RowSala1)
			require.NoError(t, err)
			assert.Equal(t, int64(1), min)
		})
	}
}

func TestStoreOrdBoundsAreCellScoped(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			insert(t, s, "a", "2025-03-03", model.RowSala1, 10)
			insert(t, s, "b", "2025-03-03", model.RowSala1, -5)
			insert(t, s, "c", "2025-03-03", model.RowSala2, 500)
			insert(t, s, "d", "2025-03-04", model.RowSala1, 900)

			max, err := s.MaxOrd(ctx, "2025-03-03", model.RowSala1)
			require.NoError(t, err)
			assert.Equal(t, int64(10), max)
			min, err := s.MinOrd(ctx, "2025-03-03", model.RowSala1)
			require.NoError(t, err)
			assert.Equal(t, int64(-5), min)
		})
	}
}

func TestStoreFetchWeekWindowAndOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			insert(t, s, "fri-tarde", "2025-03-07", model.RowTarde, 1)
			insert(t, s, "mon-s2", "2025-03-03", model.RowSala2, 1)
			insert(t, s, "mon-s1-late", "2025-03-03", model.RowSala1, 20)
			insert(t, s, "mon-s1-early", "2025-03-03", model.RowSala1, 10)
			insert(t, s, "prev-sunday", "2025-03-02", model.RowSala1, 1)
			insert(t, s, "next-monday", "2025-03-10", model.RowSala1, 1)

			cards, err := s.FetchWeek(context.Background(), monday)
			require.NoError(t, err)
			var names []string
			for _, c := range cards {
				names = append(names, c.Name)
			}
			assert.Equal(t, []string{"mon-s1-early", "mon-s1-late", "mon-s2", "fri-tarde"}, names)
		})
	}
}

func TestStoreInsertAssignsIdentity(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			by := "usr-1"
			c, err := s.Insert(context.Background(), model.Card{Name: "x", Proc: model.ProcTAVI, Day: "2025-03-03", Row: model.RowSala3, Ord: 7, CreatedBy: &by})
			require.NoError(t, err)
			assert.NotEmpty(t, c.ID)
			assert.False(t, c.CreatedAt.IsZero())

			got, err := s.Card(context.Background(), c.ID)
			require.NoError(t, err)
			assert.Equal(t, "x", got.Name)
			assert.Equal(t, model.RowSala3, got.Row)
			require.NotNil(t, got.CreatedBy)
			assert.Equal(t, "usr-1", *got.CreatedBy)
		})
	}
}

func TestStoreUpdatePartialFields(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := insert(t, s, "x", "2025-03-03", model.RowSala1, 10)
			day := "2025-03-05"
			row := model.RowTarde
			done := true
			got, err := s.Update(ctx, c.ID, model.CardPatch{Day: &day, Row: &row, Done: &done})
			require.NoError(t, err)
			assert.Equal(t, "x", got.Name)
			assert.Equal(t, day, got.Day)
			assert.Equal(t, row, got.Row)
			assert.Equal(t, int64(10), got.Ord)
			assert.True(t, got.Done)

			got, err = s.Update(ctx, c.ID, model.OrdPatch(-3))
			require.NoError(t, err)
			assert.Equal(t, int64(-3), got.Ord)
			assert.True(t, got.Done)
		})
	}
}

func TestStoreUnknownIDIsNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Update(ctx, "missing", model.OrdPatch(1))
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Remove(ctx, "missing"), ErrNotFound)
			_, err = s.Card(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreSubscribeSeesEveryWrite(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var mu sync.Mutex
			var kinds []model.ChangeKind
			unsub := s.Subscribe(func(c model.Change) {
				mu.Lock()
				kinds = append(kinds, c.Kind)
				mu.Unlock()
			})

			c := insert(t, s, "x", "2025-03-03", model.RowSala1, 1)
			_, err := s.Update(ctx, c.ID, model.OrdPatch(2))
			require.NoError(t, err)
			require.NoError(t, s.Remove(ctx, c.ID))

			require.Eventually(t, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(kinds) == 3
			}, time.Second, 5*time.Millisecond)
			unsub()

			mu.Lock()
			assert.Equal(t, []model.ChangeKind{model.ChangeInsert, model.ChangeUpdate, model.ChangeDelete}, kinds)
			mu.Unlock()

			insert(t, s, "after", "2025-03-03", model.RowSala1, 3)
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			assert.Len(t, kinds, 3, "no delivery after unsubscribe")
			mu.Unlock()
		})
	}
}

func TestStoreProfiles(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.UpsertProfile(ctx, model.Profile{UserID: "u2", Email: "B@Example.org", Role: model.RoleViewer}))
			require.NoError(t, s.UpsertProfile(ctx, model.Profile{UserID: "u1", Email: "a@example.org", Role: model.RoleViewer}))
			require.NoError(t, s.UpsertProfile(ctx, model.Profile{UserID: "u1", Email: "a@example.org", Role: model.RoleEditor}))

			p, ok, err := s.Profile(ctx, "u1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, model.RoleEditor, p.Role)

			p, ok, err = s.ProfileByEmail(ctx, " b@example.ORG ")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "u2", p.UserID)

			_, ok, err = s.Profile(ctx, "nobody")
			require.NoError(t, err)
			assert.False(t, ok)

			all, err := s.ListProfiles(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "u1", all[0].UserID)
		})
	}
}
