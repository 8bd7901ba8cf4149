// Package syncloop keeps a client's view of one week in step with the store.
// Any change notification triggers a full reload of the week; nothing is
// patched incrementally.
package syncloop

import (
	"context"
	"sync"
	"time"

	"hemo-board/internal/board"
	"hemo-board/internal/logger"
	"hemo-board/internal/metrics"
	"hemo-board/internal/model"
	"hemo-board/internal/store"
)

// Snapshot is the state after a reload or a search change.
type Snapshot struct {
	Week   time.Time
	Search string
	Cards  []model.Card
	Grid   board.Grid
	// Err is the last reload failure. Cards then still hold the previous set.
	Err error
	// Reloads counts completed fetches since Run started.
	Reloads int
}

type Options struct {
	Logger  logger.Logger
	Metrics metrics.Sink
	// SeenLimit bounds the duplicate-notification memory.
	SeenLimit int
}

// Loop owns the cached card set of the selected week. All fetching happens on
// the goroutine running Run.
type Loop struct {
	store   store.Store
	log     logger.Logger
	metrics metrics.Sink
	seen    *seenSet

	mu      sync.Mutex
	week    time.Time
	search  string
	cards   []model.Card
	lastErr error
	reloads int

	kick      chan struct{}
	weekSet   chan struct{}
	searchSet chan struct{}
	updates   chan Snapshot
}

func New(s store.Store, week time.Time, opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = logger.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.SeenLimit <= 0 {
		opts.SeenLimit = 1000
	}
	return &Loop{
		store:     s,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		seen:      newSeenSet(opts.SeenLimit),
		week:      week,
		kick:      make(chan struct{}, 1),
		weekSet:   make(chan struct{}, 1),
		searchSet: make(chan struct{}, 1),
		updates:   make(chan Snapshot, 1),
	}
}

// Updates delivers snapshots. Only the most recent undelivered one is kept.
func (l *Loop) Updates() <-chan Snapshot { return l.updates }

// SetWeek selects another week. The loop re-subscribes and reloads.
func (l *Loop) SetWeek(start time.Time) {
	l.mu.Lock()
	l.week = start
	l.mu.Unlock()
	signal(l.weekSet)
}

// SetSearch changes the filter. Only the projection is recomputed.
func (l *Loop) SetSearch(s string) {
	l.mu.Lock()
	l.search = s
	l.mu.Unlock()
	signal(l.searchSet)
}

// Refresh asks for a reload as if a change had been notified.
func (l *Loop) Refresh() { signal(l.kick) }

// Snapshot returns the current state without waiting.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Run subscribes, loads the week and then reloads on every notification until
// ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	unsubscribe := l.subscribe()
	defer func() { unsubscribe() }()
	l.reload(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.kick:
			l.reload(ctx)
		case <-l.weekSet:
			unsubscribe()
			unsubscribe = l.subscribe()
			// Notifications queued for the previous week are moot.
			drain(l.kick)
			l.reload(ctx)
		case <-l.searchSet:
			l.mu.Lock()
			snap := l.snapshotLocked()
			l.mu.Unlock()
			l.publish(snap)
		}
	}
}

func (l *Loop) subscribe() func() {
	return l.store.Subscribe(func(c model.Change) {
		if !l.seen.note(c.ID) {
			return
		}
		signal(l.kick)
	})
}

func (l *Loop) reload(ctx context.Context) {
	l.mu.Lock()
	week := l.week
	l.mu.Unlock()

	started := time.Now()
	cards, err := l.store.FetchWeek(ctx, week)
	l.metrics.RecordReload(len(cards), err, time.Since(started))
	if err != nil && ctx.Err() != nil {
		return
	}

	l.mu.Lock()
	if !l.week.Equal(week) {
		// The week changed while fetching; the pending weekSet signal reloads.
		l.mu.Unlock()
		return
	}
	l.reloads++
	if err != nil {
		l.lastErr = err
		l.log.Warnf("reload week %s: %v", week.Format(model.DayLayout), err)
	} else {
		l.cards = cards
		l.lastErr = nil
	}
	snap := l.snapshotLocked()
	l.mu.Unlock()
	l.publish(snap)
}

func (l *Loop) snapshotLocked() Snapshot {
	return Snapshot{
		Week:    l.week,
		Search:  l.search,
		Cards:   l.cards,
		Grid:    board.Project(l.cards, l.week, l.search),
		Err:     l.lastErr,
		Reloads: l.reloads,
	}
}

// publish replaces any undelivered snapshot. Only the Run goroutine sends.
func (l *Loop) publish(s Snapshot) {
	for {
		select {
		case l.updates <- s:
			return
		default:
		}
		select {
		case <-l.updates:
		default:
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
