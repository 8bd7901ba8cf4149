package store

import (
	"context"
	"sync"
	"time"

	"hemo-board/internal/model"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Memory is an in-process Backend. It has the same single-row write semantics
// as the SQLite store and is used by tests and `--store memory`.
type Memory struct {
	mu       sync.RWMutex
	cards    map[string]model.Card
	profiles map[string]model.Profile
	now      func() time.Time

	origin string
	bus    changeBus
}

func NewMemory() *Memory {
	return &Memory{
		cards:    map[string]model.Card{},
		profiles: map[string]model.Profile{},
		now:      func() time.Time { return time.Now().UTC() },
		origin:   ulid.Make().String(),
	}
}

func (m *Memory) Origin() string { return m.origin }

func (m *Memory) FetchWeek(ctx context.Context, start time.Time) ([]model.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, opErr("fetch week", err)
	}
	first, last := WindowBounds(start)
	m.mu.RLock()
	out := make([]model.Card, 0, len(m.cards))
	for _, c := range m.cards {
		if c.Day >= first && c.Day <= last {
			out = append(out, c)
		}
	}
	m.mu.RUnlock()
	SortCards(out)
	return out, nil
}

func (m *Memory) MaxOrd(ctx context.Context, day string, row model.Row) (int64, error) {
	return m.extremeOrd(ctx, day, row, true)
}

func (m *Memory) MinOrd(ctx context.Context, day string, row model.Row) (int64, error) {
	return m.extremeOrd(ctx, day, row, false)
}

func (m *Memory) extremeOrd(ctx context.Context, day string, row model.Row, wantMax bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, opErr("ord bounds", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := false
	var v int64
	for _, c := range m.cards {
		if c.Day != day || c.Row != row {
			continue
		}
		if !found || (wantMax && c.Ord > v) || (!wantMax && c.Ord < v) {
			v = c.Ord
			found = true
		}
	}
	if !found {
		if wantMax {
			return 0, nil
		}
		return 1, nil
	}
	return v, nil
}

func (m *Memory) Insert(ctx context.Context, c model.Card) (model.Card, error) {
	if err := ctx.Err(); err != nil {
		return model.Card{}, opErr("insert", err)
	}
	c.ID = uuid.NewString()
	c.CreatedAt = m.now()
	m.mu.Lock()
	m.cards[c.ID] = c
	m.mu.Unlock()
	m.bus.publish(newChange(model.ChangeInsert, c.ID, m.origin))
	return c, nil
}

func (m *Memory) Update(ctx context.Context, id string, patch model.CardPatch) (model.Card, error) {
	if err := ctx.Err(); err != nil {
		return model.Card{}, opErr("update", err)
	}
	m.mu.Lock()
	c, ok := m.cards[id]
	if !ok {
		m.mu.Unlock()
		return model.Card{}, ErrNotFound
	}
	c = patch.Apply(c)
	m.cards[id] = c
	m.mu.Unlock()
	m.bus.publish(newChange(model.ChangeUpdate, id, m.origin))
	return c, nil
}

func (m *Memory) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return opErr("remove", err)
	}
	m.mu.Lock()
	if _, ok := m.cards[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.cards, id)
	m.mu.Unlock()
	m.bus.publish(newChange(model.ChangeDelete, id, m.origin))
	return nil
}

func (m *Memory) Subscribe(fn func(model.Change)) func() {
	return m.bus.subscribeFunc(fn)
}

func (m *Memory) Publish(c model.Change) { m.bus.publish(c) }

func (m *Memory) Close() error {
	m.bus.close()
	return nil
}

// Card returns one card by id.
func (m *Memory) Card(ctx context.Context, id string) (model.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[id]
	if !ok {
		return model.Card{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) Profile(ctx context.Context, userID string) (model.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	return p, ok, nil
}

func (m *Memory) ProfileByEmail(ctx context.Context, email string) (model.Profile, bool, error) {
	email = normalizeEmail(email)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if p.Email == email {
			return p, true, nil
		}
	}
	return model.Profile{}, false, nil
}

func (m *Memory) UpsertProfile(ctx context.Context, p model.Profile) error {
	p.Email = normalizeEmail(p.Email)
	m.mu.Lock()
	m.profiles[p.UserID] = p
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sortProfiles(out)
	return out, nil
}
