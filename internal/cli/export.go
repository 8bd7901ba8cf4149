package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"hemo-board/internal/board"
)

func newExportCmd(app *App) *cobra.Command {
	var week string
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the week as CSV",
		Long: strings.TrimSpace(`
Export every card of the week as CSV (UTF-8 with BOM), day by day and row by
row with each card's position in its cell. Search filters never apply.

Without --out the CSV is written to stdout. With --out pointing at a directory
the file is named pizarra_<monday>_a_<friday>.csv.
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := app.week(week)
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			cards, err := app.service(s, nil).Week(cmd.Context(), start)
			if err != nil {
				return writeErr(cmd, err)
			}
			var buf bytes.Buffer
			if err := board.WriteCSV(&buf, cards, start); err != nil {
				return writeErr(cmd, err)
			}

			out = strings.TrimSpace(out)
			if out == "" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if fi, err := os.Stat(out); err == nil && fi.IsDir() {
				out = filepath.Join(out, board.ExportFileName(start))
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": out, "cards": len(cards)}})
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "Any day of the week to export (default: this week)")
	cmd.Flags().StringVar(&out, "out", "", "Output file or directory (default: stdout)")
	return cmd
}
