package board

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"hemo-board/internal/model"
)

var csvHeader = []string{"Día", "Sala/Turno", "Orden", "Nombre/ID", "Habitación", "Diagnóstico", "Procedimiento", "Finalizado"}

// ExportFileName is the suggested download name for the week starting at start.
func ExportFileName(start time.Time) string {
	days := Days(start)
	return fmt.Sprintf("pizarra_%s_a_%s.csv", days[0], days[len(days)-1])
}

// WriteCSV writes every card of the week, day by day then row by row, with
// its 1-based position in the cell. The search filter never applies.
func WriteCSV(w io.Writer, cards []model.Card, start time.Time) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	g := Project(cards, start, "")
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, d := range g.Days {
		for _, r := range g.Rows {
			for i, c := range g.Cell(d, r) {
				done := "No"
				if c.Done {
					done = "Sí"
				}
				rec := []string{d, string(r), strconv.Itoa(i + 1), c.Name, c.Room, c.Dx, string(c.Proc), done}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
