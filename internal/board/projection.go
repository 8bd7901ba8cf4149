package board

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"hemo-board/internal/model"
	"hemo-board/internal/store"
)

// Grid is the per-cell view of one week. It is derived data: building it
// never changes a card.
type Grid struct {
	Start  time.Time
	Days   []string
	Rows   []model.Row
	Search string

	cells map[model.CellKey][]model.Card
}

// Project groups cards into the week's cells, sorts each cell by ord and, when
// search is not blank, keeps the cards whose name, room, diagnosis or
// procedure contains it case-insensitively. Cards outside the window are
// ignored.
func Project(cards []model.Card, start time.Time, search string) Grid {
	g := Grid{
		Start:  start,
		Days:   Days(start),
		Rows:   append([]model.Row(nil), model.Rows...),
		Search: search,
		cells:  map[model.CellKey][]model.Card{},
	}
	needle := strings.ToLower(strings.TrimSpace(search))
	inWindow := map[string]bool{}
	for _, d := range g.Days {
		inWindow[d] = true
	}
	for _, c := range cards {
		if !inWindow[c.Day] || model.RowIndex(c.Row) < 0 {
			continue
		}
		g.cells[c.Cell()] = append(g.cells[c.Cell()], c)
	}
	for k, cell := range g.cells {
		sort.SliceStable(cell, func(i, j int) bool { return store.CompareInCell(cell[i], cell[j]) < 0 })
		if needle != "" {
			kept := cell[:0]
			for _, c := range cell {
				if Matches(c, needle) {
					kept = append(kept, c)
				}
			}
			cell = kept
		}
		g.cells[k] = cell
	}
	return g
}

// Matches reports whether needle (already lower-cased) occurs in one of the
// searchable fields of c.
func Matches(c model.Card, needle string) bool {
	for _, f := range []string{c.Name, c.Room, c.Dx, string(c.Proc)} {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// Cell returns the visible cards of one (day, row), ordered.
func (g Grid) Cell(day string, row model.Row) []model.Card {
	return g.cells[model.CellKey{Day: day, Row: row}]
}

// Len returns the number of visible cards.
func (g Grid) Len() int {
	n := 0
	for _, c := range g.cells {
		n += len(c)
	}
	return n
}

// Position returns the 1-based display index of the card in its cell.
func (g Grid) Position(id string) (model.CellKey, int, bool) {
	for k, cell := range g.cells {
		for i, c := range cell {
			if c.ID == id {
				return k, i + 1, true
			}
		}
	}
	return model.CellKey{}, 0, false
}

// Find returns the visible card with the given id.
func (g Grid) Find(id string) (model.Card, bool) {
	for _, cell := range g.cells {
		for _, c := range cell {
			if c.ID == id {
				return c, true
			}
		}
	}
	return model.Card{}, false
}

type gridCell struct {
	Day   string       `json:"day"`
	Row   model.Row    `json:"row"`
	Cards []model.Card `json:"cards"`
}

type gridJSON struct {
	Start  string      `json:"start"`
	Days   []string    `json:"days"`
	Rows   []model.Row `json:"rows"`
	Search string      `json:"search,omitempty"`
	Cells  []gridCell  `json:"cells"`
}

// MarshalJSON renders every cell, empty ones included, day-major.
func (g Grid) MarshalJSON() ([]byte, error) {
	out := gridJSON{
		Start:  g.Start.Format(model.DayLayout),
		Days:   g.Days,
		Rows:   g.Rows,
		Search: g.Search,
		Cells:  make([]gridCell, 0, len(g.Days)*len(g.Rows)),
	}
	for _, d := range g.Days {
		for _, r := range g.Rows {
			cards := g.Cell(d, r)
			if cards == nil {
				cards = []model.Card{}
			}
			out.Cells = append(out.Cells, gridCell{Day: d, Row: r, Cards: cards})
		}
	}
	return json.Marshal(out)
}
