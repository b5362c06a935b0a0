package memory

import (
	"sort"
	"sync"
)

// shortTerm holds each session's in-session items, capped per session at
// limit (oldest dropped first). Items are evicted when the session closes
// unless they were promoted to the durable layer.
type shortTerm struct {
	mu    sync.RWMutex
	limit int
	items map[string][]Item
}

func newShortTerm(limit int) *shortTerm {
	return &shortTerm{limit: limit, items: make(map[string][]Item)}
}

func (s *shortTerm) append(sessionID string, item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := append(s.items[sessionID], item)
	if s.limit > 0 && len(items) > s.limit {
		items = items[len(items)-s.limit:]
	}
	s.items[sessionID] = items
}

// recent returns the session's items newest first.
func (s *shortTerm) recent(sessionID string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.items[sessionID]
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *shortTerm) evict(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
}
