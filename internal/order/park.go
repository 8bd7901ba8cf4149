package order

import "hemo-board/internal/model"

// DefaultParkOffset is the minimum distance between a parked card and the
// nearest end of its cell.
const DefaultParkOffset int64 = 100000

// Dir is the direction of an adjacent swap.
type Dir int

const (
	Up Dir = iota
	Down
)

func (d Dir) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// ParkValue returns a temporary ord strictly outside [min, max] of cell: below
// the minimum for Up, above the maximum for Down. The distance is at least
// offset and always larger than the cell's span.
func ParkValue(cell []model.Card, dir Dir, offset int64) int64 {
	if offset <= 0 {
		offset = DefaultParkOffset
	}
	if len(cell) == 0 {
		if dir == Up {
			return -offset
		}
		return offset
	}
	min, max := cell[0].Ord, cell[0].Ord
	for _, c := range cell[1:] {
		if c.Ord < min {
			min = c.Ord
		}
		if c.Ord > max {
			max = c.Ord
		}
	}
	dist := offset
	if span := max - min + 1; span > dist {
		dist = span
	}
	if dir == Up {
		return min - dist
	}
	return max + dist
}
