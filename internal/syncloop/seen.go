package syncloop

import "sync"

// seenSet remembers the most recent change ids so redelivered notifications
// are dropped.
type seenSet struct {
	mu    sync.Mutex
	limit int
	ids   map[string]struct{}
	order []string
}

func newSeenSet(limit int) *seenSet {
	return &seenSet{limit: limit, ids: map[string]struct{}{}}
}

// note returns false if id was already seen. Empty ids are always new.
func (s *seenSet) note(id string) bool {
	if id == "" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		evict := s.order[:len(s.order)-s.limit]
		s.order = s.order[len(s.order)-s.limit:]
		for _, old := range evict {
			delete(s.ids, old)
		}
	}
	return true
}
