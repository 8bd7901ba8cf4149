package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"hemo-board/internal/model"
	"hemo-board/internal/store"
)

// ErrNotInCell means the card was no longer in the cell when it was re-read.
var ErrNotInCell = errors.New("card is no longer in its cell")

// Swap steps, in the order they are written.
const (
	StepPark     = 1
	StepNeighbor = 2
	StepSettle   = 3
)

// SwapError reports the write that failed. Earlier writes are not undone.
type SwapError struct {
	Step   int
	CardID string
	Err    error
}

func (e *SwapError) Error() string {
	name := map[int]string{StepPark: "park", StepNeighbor: "neighbor", StepSettle: "settle"}[e.Step]
	return fmt.Sprintf("swap step %d (%s) on card %s: %v", e.Step, name, e.CardID, e.Err)
}

func (e *SwapError) Unwrap() error { return e.Err }

type SwapResult struct {
	Moved      bool   `json:"moved"`
	Writes     int    `json:"writes"`
	NeighborID string `json:"neighborId,omitempty"`
	// Final ords when Moved.
	Ord         int64 `json:"ord,omitempty"`
	NeighborOrd int64 `json:"neighborOrd,omitempty"`
	Park        int64 `json:"park,omitempty"`
}

// Swapper exchanges a card with its immediate neighbour using three
// sequential single-row writes: park the card outside the cell's range,
// move the neighbour into the card's slot, then settle the card into the
// neighbour's old slot. No two cards share an ord at any point.
type Swapper struct {
	Store      store.Store
	ParkOffset int64
}

func NewSwapper(s store.Store, parkOffset int64) *Swapper {
	return &Swapper{Store: s, ParkOffset: parkOffset}
}

// Swap re-reads card's cell from the store and swaps it one place in dir.
func (s *Swapper) Swap(ctx context.Context, card model.Card, dir Dir) (SwapResult, error) {
	cell, err := s.readCell(ctx, card.Day, card.Row)
	if err != nil {
		return SwapResult{}, err
	}
	return s.SwapInCell(ctx, cell, card.ID, dir)
}

// SwapInCell swaps using an already-read cell. cell must hold every card of
// one (day, row); it is sorted here and not modified.
func (s *Swapper) SwapInCell(ctx context.Context, cell []model.Card, id string, dir Dir) (SwapResult, error) {
	sorted := append([]model.Card(nil), cell...)
	sort.SliceStable(sorted, func(i, j int) bool { return store.CompareInCell(sorted[i], sorted[j]) < 0 })

	i := -1
	for k, c := range sorted {
		if c.ID == id {
			i = k
			break
		}
	}
	if i < 0 {
		return SwapResult{}, fmt.Errorf("swap %s: %w", id, ErrNotInCell)
	}

	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j < 0 || j >= len(sorted) {
		return SwapResult{Moved: false}, nil
	}
	if err := ctx.Err(); err != nil {
		return SwapResult{}, err
	}

	self, neighbor := sorted[i], sorted[j]
	park := ParkValue(sorted, dir, s.ParkOffset)
	res := SwapResult{NeighborID: neighbor.ID, Park: park}

	// Once the first write is issued the sequence runs to completion or failure.
	wctx := context.WithoutCancel(ctx)
	if _, err := s.Store.Update(wctx, self.ID, model.OrdPatch(park)); err != nil {
		return res, &SwapError{Step: StepPark, CardID: self.ID, Err: err}
	}
	res.Writes++
	if _, err := s.Store.Update(wctx, neighbor.ID, model.OrdPatch(self.Ord)); err != nil {
		return res, &SwapError{Step: StepNeighbor, CardID: neighbor.ID, Err: err}
	}
	res.Writes++
	if _, err := s.Store.Update(wctx, self.ID, model.OrdPatch(neighbor.Ord)); err != nil {
		return res, &SwapError{Step: StepSettle, CardID: self.ID, Err: err}
	}
	res.Writes++

	res.Moved = true
	res.Ord = neighbor.Ord
	res.NeighborOrd = self.Ord
	return res, nil
}

func (s *Swapper) readCell(ctx context.Context, day string, row model.Row) ([]model.Card, error) {
	start, err := time.Parse(model.DayLayout, day)
	if err != nil {
		return nil, fmt.Errorf("read cell: invalid day %q: %w", day, err)
	}
	cards, err := s.Store.FetchWeek(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("read cell %s/%s: %w", day, row, err)
	}
	return CellOf(cards, day, row), nil
}

// CellOf returns the cards of one (day, row), in store order.
func CellOf(cards []model.Card, day string, row model.Row) []model.Card {
	var out []model.Card
	for _, c := range cards {
		if c.Day == day && c.Row == row {
			out = append(out, c)
		}
	}
	return out
}
