// Package order assigns and rewrites the sparse ord keys that define the
// order of cards inside a (day, row) cell.
package order

import (
	"context"
	"fmt"

	"hemo-board/internal/model"
	"hemo-board/internal/store"
)

// DefaultIncrement is the gap left between appended cards.
const DefaultIncrement int64 = 10

// Allocator computes ord values for cards entering a cell. It only reads;
// the caller performs the write.
type Allocator struct {
	Store     store.Store
	Increment int64
}

func NewAllocator(s store.Store, increment int64) *Allocator {
	return &Allocator{Store: s, Increment: increment}
}

func (a *Allocator) increment() int64 {
	if a.Increment <= 0 {
		return DefaultIncrement
	}
	return a.Increment
}

// Append returns an ord that sorts after every card currently in the cell.
func (a *Allocator) Append(ctx context.Context, day string, row model.Row) (int64, error) {
	max, err := a.Store.MaxOrd(ctx, day, row)
	if err != nil {
		return 0, fmt.Errorf("append ord for %s/%s: %w", day, row, err)
	}
	return max + a.increment(), nil
}

// Prepend returns an ord that sorts before every card currently in the cell.
func (a *Allocator) Prepend(ctx context.Context, day string, row model.Row) (int64, error) {
	min, err := a.Store.MinOrd(ctx, day, row)
	if err != nil {
		return 0, fmt.Errorf("prepend ord for %s/%s: %w", day, row, err)
	}
	return min - 1, nil
}
