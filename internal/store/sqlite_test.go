package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hemo-board/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.sqlite")
	require.NoError(t, Migrate(path))
	require.NoError(t, Migrate(path))

	v, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), v)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "board.sqlite")

	s, err := OpenSQLite(ctx, path, SQLiteOptions{})
	require.NoError(t, err)
	c := insert(t, s, "persist", "2025-03-04", model.RowSala2, 30)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, SQLiteOptions{})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Card(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.Ord)
	assert.Equal(t, c.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())
}

func TestSQLiteWatchLoopSeesOtherProcessWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "board.sqlite")

	watcher, err := OpenSQLite(ctx, path, SQLiteOptions{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer watcher.Close()
	writer, err := OpenSQLite(ctx, path, SQLiteOptions{})
	require.NoError(t, err)
	defer writer.Close()

	got := make(chan model.Change, 16)
	unsub := watcher.Subscribe(func(c model.Change) { got <- c })
	defer unsub()

	// Let the watch loop record its baseline version.
	time.Sleep(50 * time.Millisecond)
	insert(t, writer, "remote", "2025-03-03", model.RowSala1, 1)

	select {
	case c := <-got:
		assert.Equal(t, model.ChangeExternal, c.Kind)
		assert.Equal(t, watcher.Origin(), c.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an external change notification")
	}
}

func TestOpErrorUnwraps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().FetchWeek(ctx, monday)
	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "fetch week", oe.Op)
	assert.ErrorIs(t, err, context.Canceled)
}
