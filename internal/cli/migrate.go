package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"hemo-board/internal/store"
)

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the SQLite store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfg.Store.Backend != "sqlite" {
				return writeErr(cmd, errors.New("migrate: only the sqlite store has a schema"))
			}
			path := app.cfg.Store.Path
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return writeErr(cmd, err)
			}
			if err := store.Migrate(path); err != nil {
				return writeErr(cmd, err)
			}
			version, dirty, err := store.SchemaVersion(path)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"path":    path,
				"version": version,
				"dirty":   dirty,
			}})
		},
	}
}
