package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hemo-board/internal/board"
	"hemo-board/internal/model"
)

// weekOutput is the board command payload.
type weekOutput struct {
	Data board.Grid `json:"data"`
	// Total counts the cards of the week before the search filter.
	Total int `json:"total"`
}

func (o weekOutput) Text() string {
	var b strings.Builder
	g := o.Data
	if len(g.Days) > 0 {
		fmt.Fprintf(&b, "Semana %s – %s", g.Days[0], g.Days[len(g.Days)-1])
	}
	if g.Search != "" {
		fmt.Fprintf(&b, " · búsqueda %q: %d de %d", g.Search, g.Len(), o.Total)
	}
	b.WriteString("\n")
	for _, d := range g.Days {
		fmt.Fprintf(&b, "\n%s\n", d)
		for _, r := range g.Rows {
			cards := g.Cell(d, r)
			if len(cards) == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %s\n", r)
			for i, c := range cards {
				fmt.Fprintf(&b, "    %d. %s\n", i+1, cardLine(c))
			}
		}
	}
	return b.String()
}

func cardLine(c model.Card) string {
	done := " "
	if c.Done {
		done = "x"
	}
	parts := []string{fmt.Sprintf("[%s] %s", done, c.Name), string(c.Proc)}
	if c.Room != "" {
		parts = append(parts, c.Room)
	}
	if c.Dx != "" {
		parts = append(parts, c.Dx)
	}
	return strings.Join(parts, " · ") + fmt.Sprintf("  (%s)", c.ID)
}

func newBoardCmd(app *App) *cobra.Command {
	var week string
	var search string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the week's board",
		Example: strings.TrimSpace(`
hemoboard board
hemoboard board --week 2025-03-05 --search tavi --format text
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
			return writeOut(cmd, app, weekOutput{Data: board.Project(cards, start, search), Total: len(cards)})
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "Any day of the week to show (YYYY-MM-DD; default: this week)")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive filter over name, room, diagnosis and procedure")
	return cmd
}
