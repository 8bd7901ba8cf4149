package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hemo-board/internal/model"

	"github.com/oklog/ulid/v2"
)

// WindowDays is the number of consecutive days returned by FetchWeek.
const WindowDays = 5

var ErrNotFound = errors.New("card not found")

// Store is the persisted card collection shared by every client. It offers
// single-row writes only; there is no multi-row transaction.
type Store interface {
	// FetchWeek returns every card whose day falls in [start, start+4 days],
	// ordered by day, row, then ord.
	FetchWeek(ctx context.Context, start time.Time) ([]model.Card, error)
	// MaxOrd returns the highest ord in the cell, or 0 if it is empty.
	MaxOrd(ctx context.Context, day string, row model.Row) (int64, error)
	// MinOrd returns the lowest ord in the cell, or 1 if it is empty.
	MinOrd(ctx context.Context, day string, row model.Row) (int64, error)
	// Insert stores a new card, assigning ID and CreatedAt.
	Insert(ctx context.Context, c model.Card) (model.Card, error)
	// Update applies patch to one card and returns the result.
	Update(ctx context.Context, id string, patch model.CardPatch) (model.Card, error)
	Remove(ctx context.Context, id string) error
	// Subscribe calls fn for every insert, update and delete until the
	// returned function is called. fn must not call unsubscribe itself.
	Subscribe(fn func(model.Change)) (unsubscribe func())
}

// Profiles maps users to board roles.
type Profiles interface {
	Profile(ctx context.Context, userID string) (model.Profile, bool, error)
	ProfileByEmail(ctx context.Context, email string) (model.Profile, bool, error)
	UpsertProfile(ctx context.Context, p model.Profile) error
	ListProfiles(ctx context.Context) ([]model.Profile, error)
}

// Backend is what the CLI and servers open: cards plus profiles.
type Backend interface {
	Store
	Profiles
	// Card looks one card up by id.
	Card(ctx context.Context, id string) (model.Card, error)
	// Origin identifies this process on the change stream.
	Origin() string
	// Publish injects a change that happened elsewhere (e.g. received from
	// the MQTT feed) into the local change stream.
	Publish(model.Change)
	Close() error
}

// OpError wraps a failure talking to the underlying database.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *OpError) Unwrap() error { return e.Err }

func opErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &OpError{Op: op, Err: err}
}

// WindowBounds returns the first and last day keys of the fetch window.
func WindowBounds(start time.Time) (string, string) {
	first := start.Format(model.DayLayout)
	last := start.AddDate(0, 0, WindowDays-1).Format(model.DayLayout)
	return first, last
}

// SortCards orders cards by day, row position, ord, then CreatedAt and ID so
// that equal ords still sort deterministically.
func SortCards(cards []model.Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if ra, rb := model.RowIndex(a.Row), model.RowIndex(b.Row); ra != rb {
			return ra < rb
		}
		return CompareInCell(a, b) < 0
	})
}

// CompareInCell orders two cards of the same cell.
func CompareInCell(a, b model.Card) int {
	if a.Ord != b.Ord {
		if a.Ord < b.Ord {
			return -1
		}
		return 1
	}
	if a.CreatedAt.Before(b.CreatedAt) {
		return -1
	}
	if a.CreatedAt.After(b.CreatedAt) {
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

func newChange(kind model.ChangeKind, cardID, origin string) model.Change {
	return model.Change{
		ID:     ulid.Make().String(),
		Kind:   kind,
		CardID: cardID,
		Origin: origin,
		At:     time.Now().UTC(),
	}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func sortProfiles(ps []model.Profile) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].UserID < ps[j].UserID })
}
