package store

import (
	"sync"

	"hemo-board/internal/model"
)

// changeBus fans changes out to subscribers. Publish never blocks; a
// subscriber that falls behind by more than its buffer misses changes, which
// is harmless for consumers that reload everything on any change.
type changeBus struct {
	mu     sync.RWMutex
	subs   []chan model.Change
	closed bool
}

func (b *changeBus) publish(c model.Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (b *changeBus) subscribe() chan model.Change {
	ch := make(chan model.Change, 64)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

func (b *changeBus) unsubscribe(sub chan model.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

func (b *changeBus) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}

// subscribeFunc runs fn on its own goroutine for every change until the
// returned function is called or the bus is closed.
func (b *changeBus) subscribeFunc(fn func(model.Change)) func() {
	ch := b.subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range ch {
			fn(c)
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(ch)
			<-done
		})
	}
}
