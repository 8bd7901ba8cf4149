package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hemo-board/internal/board"
	"hemo-board/internal/model"
	"hemo-board/internal/syncloop"
)

type snapshotOutput struct {
	Week    string     `json:"week"`
	Search  string     `json:"search,omitempty"`
	Reloads int        `json:"reloads"`
	Total   int        `json:"total"`
	Grid    board.Grid `json:"grid"`
	Error   string     `json:"error,omitempty"`
}

func newWatchCmd(app *App) *cobra.Command {
	var week string
	var search string
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the week's board every time it changes",
		Long: strings.TrimSpace(`
Print one JSON line per board state. The week is reloaded in full whenever a
change is noticed: local writes, writes by other processes sharing the SQLite
file, and (with mqtt.broker configured) changes from other instances.
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := app.week(week)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			s, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			bridge, err := app.connectFeed(s)
			if err != nil {
				return writeErr(cmd, err)
			}
			if bridge != nil {
				defer bridge.Close()
			}

			loop := syncloop.New(s, start, syncloop.Options{Logger: app.logger("sync")})
			loop.SetSearch(search)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return loop.Run(gctx) })
			g.Go(func() error {
				seen := 0
				for {
					select {
					case <-gctx.Done():
						return gctx.Err()
					case snap := <-loop.Updates():
						if err := writeOut(cmd, app, map[string]any{"data": toSnapshotOutput(snap)}); err != nil {
							return err
						}
						seen++
						if count > 0 && seen >= count {
							cancel()
							return nil
						}
					}
				}
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "Any day of the week to watch (default: this week)")
	cmd.Flags().StringVar(&search, "search", "", "Search filter applied to every snapshot")
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many snapshots (0: run until interrupted)")
	return cmd
}

func toSnapshotOutput(s syncloop.Snapshot) snapshotOutput {
	out := snapshotOutput{
		Week:    s.Week.Format(model.DayLayout),
		Search:  s.Search,
		Reloads: s.Reloads,
		Total:   len(s.Cards),
		Grid:    s.Grid,
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}
