package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hemo-board/internal/syncloop"
	"hemo-board/internal/tui"
)

func newTUICmd(app *App) *cobra.Command {
	var week string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive weekly board",
		Long:  "Interactive weekly board. Viewers can browse and search; editors can also move, add, finish and delete cards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app, week)
		},
	}
	cmd.Flags().StringVar(&week, "week", "", "Any day of the week to open (default: this week)")
	return cmd
}

func runTUI(cmd *cobra.Command, app *App, week string) error {
	start, err := app.week(week)
	if err != nil {
		return writeErr(cmd, err)
	}
	app.quiet = true

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
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, tui.Options{
			Loop:     loop,
			Service:  app.service(s, nil),
			Identity: app.session(s),
			Now:      app.now,
		})
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return writeErr(cmd, err)
	}
	return nil
}
