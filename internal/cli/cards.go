package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hemo-board/internal/board"
	"hemo-board/internal/model"
)

func newCardsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Card commands",
	}
	cmd.AddCommand(newCardsAddCmd(app))
	cmd.AddCommand(newCardsShowCmd(app))
	cmd.AddCommand(newCardsEditCmd(app))
	cmd.AddCommand(newCardsMoveCmd(app, "up", "Swap a card with the one above it", func(ctx context.Context, svc *board.Service, a board.Actor, id, _ string) (board.MoveResult, error) {
		return svc.MoveUp(ctx, a, id)
	}))
	cmd.AddCommand(newCardsMoveCmd(app, "down", "Swap a card with the one below it", func(ctx context.Context, svc *board.Service, a board.Actor, id, _ string) (board.MoveResult, error) {
		return svc.MoveDown(ctx, a, id)
	}))
	cmd.AddCommand(newCardsMoveCmd(app, "left", "Move a card to the previous day (Monday wraps to Friday)", func(ctx context.Context, svc *board.Service, a board.Actor, id, week string) (board.MoveResult, error) {
		return moveDay(ctx, app, svc, a, id, week, -1)
	}))
	cmd.AddCommand(newCardsMoveCmd(app, "right", "Move a card to the next day (Friday wraps to Monday)", func(ctx context.Context, svc *board.Service, a board.Actor, id, week string) (board.MoveResult, error) {
		return moveDay(ctx, app, svc, a, id, week, 1)
	}))
	cmd.AddCommand(newCardsMoveCmd(app, "row-up", "Move a card to the row above", func(ctx context.Context, svc *board.Service, a board.Actor, id, _ string) (board.MoveResult, error) {
		return svc.MoveRow(ctx, a, id, -1)
	}))
	cmd.AddCommand(newCardsMoveCmd(app, "row-down", "Move a card to the row below", func(ctx context.Context, svc *board.Service, a board.Actor, id, _ string) (board.MoveResult, error) {
		return svc.MoveRow(ctx, a, id, 1)
	}))
	cmd.AddCommand(newCardsMoveCmd(app, "front", "Move a card to the top of its cell", func(ctx context.Context, svc *board.Service, a board.Actor, id, _ string) (board.MoveResult, error) {
		return svc.MoveToFront(ctx, a, id)
	}))
	cmd.AddCommand(newCardsDoneCmd(app))
	cmd.AddCommand(newCardsRmCmd(app))
	return cmd
}

// withService opens the store and resolves the acting user for one command.
func withService(cmd *cobra.Command, app *App, fn func(ctx context.Context, svc *board.Service, a board.Actor) error) error {
	ctx := cmd.Context()
	s, err := app.openStore(ctx)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.Close()
	a, err := app.actor(ctx, s)
	if err != nil {
		return writeErr(cmd, err)
	}
	if err := fn(ctx, app.service(s, nil), a); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}

func newCardsAddCmd(app *App) *cobra.Command {
	var d model.CardDraft
	var proc, row string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a card to a cell",
		Example: strings.TrimSpace(`
hemoboard cards add --name "Cama 12" --room 412 --dx "SCASEST" --proc ICP --day 2025-03-03 --row "Sala 1"
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			d.Proc = model.Procedure(proc)
			d.Row = model.Row(row)
			if strings.TrimSpace(d.Day) == "" {
				d.Day = app.now().UTC().Format(model.DayLayout)
			}
			return withService(cmd, app, func(ctx context.Context, svc *board.Service, a board.Actor) error {
				c, err := svc.Add(ctx, a, d)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": c})
			})
		},
	}

	cmd.Flags().StringVar(&d.Name, "name", "", "Patient name or identifier")
	cmd.Flags().StringVar(&d.Room, "room", "", "Ward room")
	cmd.Flags().StringVar(&d.Dx, "dx", "", "Diagnosis")
	cmd.Flags().StringVar(&proc, "proc", string(model.ProcCoronaria), "Procedure")
	cmd.Flags().StringVar(&d.Day, "day", "", "Day (YYYY-MM-DD; default: today)")
	cmd.Flags().StringVar(&row, "row", string(model.RowSala1), "Room or shift (Sala 1|Sala 2|Sala 3|Tarde)")
	return cmd
}

type cardOutput struct {
	Data model.Card `json:"data"`
}

func (o cardOutput) Text() string { return board.CardMarkdown(o.Data) }

func newCardsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <card-id>",
		Short: "Show one card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()
			c, err := s.Card(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, cardOutput{Data: c})
		},
	}
}

func newCardsEditCmd(app *App) *cobra.Command {
	var name, room, dx, proc string

	cmd := &cobra.Command{
		Use:   "edit <card-id>",
		Short: "Edit the descriptive fields of a card",
		Long:  "Placement (day, row, order) changes only through the move commands.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p model.CardPatch
			f := cmd.Flags()
			if f.Changed("name") {
				p.Name = &name
			}
			if f.Changed("room") {
				p.Room = &room
			}
			if f.Changed("dx") {
				p.Dx = &dx
			}
			if f.Changed("proc") {
				pp := model.Procedure(proc)
				p.Proc = &pp
			}
			return withService(cmd, app, func(ctx context.Context, svc *board.Service, a board.Actor) error {
				c, err := svc.Edit(ctx, a, args[0], p)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": c})
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Patient name or identifier")
	cmd.Flags().StringVar(&room, "room", "", "Ward room")
	cmd.Flags().StringVar(&dx, "dx", "", "Diagnosis")
	cmd.Flags().StringVar(&proc, "proc", "", "Procedure")
	return cmd
}

type moveAction func(ctx context.Context, svc *board.Service, a board.Actor, id, week string) (board.MoveResult, error)

func newCardsMoveCmd(app *App, use, short string, fn moveAction) *cobra.Command {
	var week string

	cmd := &cobra.Command{
		Use:   use + " <card-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *board.Service, a board.Actor) error {
				res, err := fn(ctx, svc, a, args[0], week)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": res})
			})
		},
	}
	if use == "left" || use == "right" {
		cmd.Flags().StringVar(&week, "week", "", "Week whose five days wrap (default: the card's week)")
	}
	return cmd
}

func moveDay(ctx context.Context, app *App, svc *board.Service, a board.Actor, id, week string, delta int) (board.MoveResult, error) {
	if strings.TrimSpace(week) == "" {
		return svc.MoveDay(ctx, a, time.Time{}, id, delta)
	}
	start, err := app.week(week)
	if err != nil {
		return board.MoveResult{}, err
	}
	return svc.MoveDay(ctx, a, start, id, delta)
}

func newCardsDoneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <card-id>",
		Short: "Toggle the finished flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *board.Service, a board.Actor) error {
				c, err := svc.ToggleDone(ctx, a, args[0])
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": c})
			})
		},
	}
}

func newCardsRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <card-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a card",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *board.Service, a board.Actor) error {
				if err := svc.Delete(ctx, a, args[0]); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": args[0], "deleted": true}})
			})
		},
	}
}
