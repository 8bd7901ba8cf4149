// Package board turns user intents into store writes and store contents into
// the weekly grid.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hemo-board/internal/logger"
	"hemo-board/internal/metrics"
	"hemo-board/internal/model"
	"hemo-board/internal/order"
	"hemo-board/internal/perm"
	"hemo-board/internal/store"
)

// ErrPlacementField is returned when an edit tries to change day, row or ord;
// those only change through the move actions.
var ErrPlacementField = errors.New("placement fields change through move actions")

// Store is what the service needs: the card contract plus lookup by id.
type Store interface {
	store.Store
	Card(ctx context.Context, id string) (model.Card, error)
}

// Actor is who is acting. A nil User means nobody is signed in.
type Actor struct {
	User *model.User
	Role model.Role
}

type Options struct {
	Increment  int64
	ParkOffset int64
	Logger     logger.Logger
	Metrics    metrics.Sink
}

// MoveResult describes the outcome of a reorder or relocation.
type MoveResult struct {
	Moved bool       `json:"moved"`
	Card  model.Card `json:"card"`
	// Writes is the number of store writes issued.
	Writes int `json:"writes"`
}

// Service exposes the board actions. Every action checks the actor's role
// before touching the store.
type Service struct {
	store   Store
	alloc   *order.Allocator
	swap    *order.Swapper
	log     logger.Logger
	metrics metrics.Sink
}

func NewService(s Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logger.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	counted := &countingStore{Store: s, sink: opts.Metrics}
	return &Service{
		store:   counted,
		alloc:   order.NewAllocator(counted, opts.Increment),
		swap:    order.NewSwapper(counted, opts.ParkOffset),
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// Week reads the window starting at start. Reads are not role gated.
func (s *Service) Week(ctx context.Context, start time.Time) ([]model.Card, error) {
	cards, err := s.store.FetchWeek(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("load week %s: %w", start.Format(model.DayLayout), err)
	}
	return cards, nil
}

// Grid reads and projects the week starting at start.
func (s *Service) Grid(ctx context.Context, start time.Time, search string) (Grid, error) {
	cards, err := s.Week(ctx, start)
	if err != nil {
		return Grid{}, err
	}
	return Project(cards, start, search), nil
}

func (s *Service) Card(ctx context.Context, id string) (model.Card, error) {
	return s.store.Card(ctx, id)
}

// Add creates a card at the end of its cell.
func (s *Service) Add(ctx context.Context, a Actor, d model.CardDraft) (model.Card, error) {
	var out model.Card
	err := s.run(ctx, a, "add", func() (string, error) {
		card, err := s.validateDraft(d)
		if err != nil {
			return metrics.ResultError, err
		}
		ord, err := s.alloc.Append(ctx, card.Day, card.Row)
		if err != nil {
			return metrics.ResultError, err
		}
		card.Ord = ord
		if a.User != nil {
			id := a.User.ID
			card.CreatedBy = &id
		}
		out, err = s.store.Insert(context.WithoutCancel(ctx), card)
		if err != nil {
			return metrics.ResultError, err
		}
		s.log.Infof("card %s added to %s/%s ord=%d", out.ID, out.Day, out.Row, out.Ord)
		return metrics.ResultOK, nil
	})
	return out, err
}

// Edit changes the descriptive fields of a card.
func (s *Service) Edit(ctx context.Context, a Actor, id string, p model.CardPatch) (model.Card, error) {
	var out model.Card
	err := s.run(ctx, a, "edit", func() (string, error) {
		if p.Day != nil || p.Row != nil || p.Ord != nil {
			return metrics.ResultError, ErrPlacementField
		}
		if p.Proc != nil {
			proc, err := model.ParseProcedure(string(*p.Proc))
			if err != nil {
				return metrics.ResultError, err
			}
			p.Proc = &proc
		}
		if p.IsEmpty() {
			c, err := s.store.Card(ctx, id)
			out = c
			return metrics.ResultNoop, err
		}
		var err error
		out, err = s.store.Update(ctx, id, p)
		if err != nil {
			return metrics.ResultError, err
		}
		return metrics.ResultOK, nil
	})
	return out, err
}

// MoveUp swaps the card with the one above it in its cell.
func (s *Service) MoveUp(ctx context.Context, a Actor, id string) (MoveResult, error) {
	return s.swapOne(ctx, a, "move_up", id, order.Up)
}

// MoveDown swaps the card with the one below it in its cell.
func (s *Service) MoveDown(ctx context.Context, a Actor, id string) (MoveResult, error) {
	return s.swapOne(ctx, a, "move_down", id, order.Down)
}

func (s *Service) swapOne(ctx context.Context, a Actor, action, id string, dir order.Dir) (MoveResult, error) {
	var out MoveResult
	err := s.run(ctx, a, action, func() (string, error) {
		card, err := s.store.Card(ctx, id)
		if err != nil {
			return metrics.ResultError, err
		}
		res, err := s.swap.Swap(ctx, card, dir)
		out.Writes = res.Writes
		if err != nil {
			return metrics.ResultError, err
		}
		out.Moved = res.Moved
		out.Card = card
		if !res.Moved {
			return metrics.ResultNoop, nil
		}
		out.Card.Ord = res.Ord
		s.log.Debugw("card swapped", map[string]any{
			"card": id, "neighbor": res.NeighborID, "dir": dir.String(), "park": res.Park,
		})
		return metrics.ResultOK, nil
	})
	return out, err
}

// MoveDay moves the card delta days inside the week starting at week,
// wrapping around the five-day window, and appends it to the destination cell.
// A zero week means the week the card is on.
func (s *Service) MoveDay(ctx context.Context, a Actor, week time.Time, id string, delta int) (MoveResult, error) {
	action := "move_right"
	if delta < 0 {
		action = "move_left"
	}
	var out MoveResult
	err := s.run(ctx, a, action, func() (string, error) {
		card, err := s.store.Card(ctx, id)
		if err != nil {
			return metrics.ResultError, err
		}
		if week.IsZero() {
			day, err := time.Parse(model.DayLayout, card.Day)
			if err != nil {
				return metrics.ResultError, fmt.Errorf("card %s has invalid day %q", id, card.Day)
			}
			week = WeekStart(day)
		}
		dest, err := ShiftDay(Days(week), card.Day, delta)
		if err != nil {
			return metrics.ResultError, err
		}
		out.Card = card
		if dest == card.Day {
			return metrics.ResultNoop, nil
		}
		return s.relocate(ctx, &out, card, dest, card.Row)
	})
	return out, err
}

// MoveRow moves the card delta rows. Moving past the first or last row is a
// no-op.
func (s *Service) MoveRow(ctx context.Context, a Actor, id string, delta int) (MoveResult, error) {
	action := "row_down"
	if delta < 0 {
		action = "row_up"
	}
	var out MoveResult
	err := s.run(ctx, a, action, func() (string, error) {
		card, err := s.store.Card(ctx, id)
		if err != nil {
			return metrics.ResultError, err
		}
		out.Card = card
		dest, ok := ShiftRow(card.Row, delta)
		if !ok || dest == card.Row {
			return metrics.ResultNoop, nil
		}
		return s.relocate(ctx, &out, card, card.Day, dest)
	})
	return out, err
}

func (s *Service) relocate(ctx context.Context, out *MoveResult, card model.Card, day string, row model.Row) (string, error) {
	ord, err := s.alloc.Append(ctx, day, row)
	if err != nil {
		return metrics.ResultError, err
	}
	updated, err := s.store.Update(context.WithoutCancel(ctx), card.ID, model.CardPatch{Day: &day, Row: &row, Ord: &ord})
	if err != nil {
		return metrics.ResultError, err
	}
	out.Moved = true
	out.Writes = 1
	out.Card = updated
	s.log.Infof("card %s moved to %s/%s ord=%d", card.ID, day, row, ord)
	return metrics.ResultOK, nil
}

// MoveToFront gives the card an ord below every other card in its cell.
func (s *Service) MoveToFront(ctx context.Context, a Actor, id string) (MoveResult, error) {
	var out MoveResult
	err := s.run(ctx, a, "move_front", func() (string, error) {
		card, err := s.store.Card(ctx, id)
		if err != nil {
			return metrics.ResultError, err
		}
		ord, err := s.alloc.Prepend(ctx, card.Day, card.Row)
		if err != nil {
			return metrics.ResultError, err
		}
		updated, err := s.store.Update(context.WithoutCancel(ctx), id, model.OrdPatch(ord))
		if err != nil {
			return metrics.ResultError, err
		}
		out = MoveResult{Moved: true, Card: updated, Writes: 1}
		return metrics.ResultOK, nil
	})
	return out, err
}

// ToggleDone flips the done flag.
func (s *Service) ToggleDone(ctx context.Context, a Actor, id string) (model.Card, error) {
	var out model.Card
	err := s.run(ctx, a, "toggle_done", func() (string, error) {
		card, err := s.store.Card(ctx, id)
		if err != nil {
			return metrics.ResultError, err
		}
		done := !card.Done
		out, err = s.store.Update(ctx, id, model.CardPatch{Done: &done})
		if err != nil {
			return metrics.ResultError, err
		}
		return metrics.ResultOK, nil
	})
	return out, err
}

func (s *Service) Delete(ctx context.Context, a Actor, id string) error {
	return s.run(ctx, a, "delete", func() (string, error) {
		if err := s.store.Remove(ctx, id); err != nil {
			return metrics.ResultError, err
		}
		s.log.Infof("card %s deleted", id)
		return metrics.ResultOK, nil
	})
}

// run gates fn on the actor's role, records the outcome and wraps any error
// with the action name.
func (s *Service) run(ctx context.Context, a Actor, action string, fn func() (string, error)) error {
	start := time.Now()
	if err := perm.RequireEditor(a.Role); err != nil {
		s.metrics.RecordAction(action, metrics.ResultForbidden, time.Since(start))
		return fmt.Errorf("%s: %w", action, err)
	}
	result, err := fn()
	s.metrics.RecordAction(action, result, time.Since(start))
	if err != nil {
		s.log.Warnf("%s failed: %v", action, err)
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

func (s *Service) validateDraft(d model.CardDraft) (model.Card, error) {
	proc, err := model.ParseProcedure(string(d.Proc))
	if err != nil {
		return model.Card{}, err
	}
	row, err := model.ParseRow(string(d.Row))
	if err != nil {
		return model.Card{}, err
	}
	day := strings.TrimSpace(d.Day)
	if _, err := time.Parse(model.DayLayout, day); err != nil {
		return model.Card{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", d.Day)
	}
	return model.Card{
		Name: strings.TrimSpace(d.Name),
		Room: strings.TrimSpace(d.Room),
		Dx:   strings.TrimSpace(d.Dx),
		Proc: proc,
		Day:  day,
		Row:  row,
	}, nil
}

// countingStore reports every single-row write to the metrics sink.
type countingStore struct {
	Store
	sink metrics.Sink
}

func (c *countingStore) Insert(ctx context.Context, card model.Card) (model.Card, error) {
	out, err := c.Store.Insert(ctx, card)
	c.sink.RecordStoreWrite("insert", err)
	return out, err
}

func (c *countingStore) Update(ctx context.Context, id string, p model.CardPatch) (model.Card, error) {
	out, err := c.Store.Update(ctx, id, p)
	c.sink.RecordStoreWrite("update", err)
	return out, err
}

func (c *countingStore) Remove(ctx context.Context, id string) error {
	err := c.Store.Remove(ctx, id)
	c.sink.RecordStoreWrite("remove", err)
	return err
}
