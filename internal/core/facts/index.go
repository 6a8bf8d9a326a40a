package facts

import (
	"sort"
	"sync"
)

type factRef struct {
	factType string
	factKey  string
}

// knowerIndex maps (scope, factType, factKey) to every entity that has ever
// recorded that key. It only narrows candidates; the as-of check still runs
// against the ledger.
type knowerIndex struct {
	mu     sync.RWMutex
	scopes map[string]*scopeKnowers
}

type scopeKnowers struct {
	warmed   bool
	entities map[factRef]map[string]struct{}
}

func newKnowerIndex() *knowerIndex {
	return &knowerIndex{scopes: make(map[string]*scopeKnowers)}
}

func (x *knowerIndex) scope(scopeID string) *scopeKnowers {
	s, ok := x.scopes[scopeID]
	if !ok {
		s = &scopeKnowers{entities: make(map[factRef]map[string]struct{})}
		x.scopes[scopeID] = s
	}
	return s
}

func (x *knowerIndex) add(scopeID string, ref factRef, entityID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.scope(scopeID).addLocked(ref, entityID)
}

func (s *scopeKnowers) addLocked(ref factRef, entityID string) {
	set, ok := s.entities[ref]
	if !ok {
		set = make(map[string]struct{})
		s.entities[ref] = set
	}
	set[entityID] = struct{}{}
}

func (x *knowerIndex) isWarm(scopeID string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.scopes[scopeID]
	return ok && s.warmed
}

// warm merges entries found by a full scan of a scope. Entries added
// concurrently by appends are kept; the index is a set.
func (x *knowerIndex) warm(scopeID string, entries map[factRef][]string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	s := x.scope(scopeID)
	for ref, ids := range entries {
		for _, id := range ids {
			s.addLocked(ref, id)
		}
	}
	s.warmed = true
}

func (x *knowerIndex) candidates(scopeID string, ref factRef) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	s, ok := x.scopes[scopeID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s.entities[ref]))
	for id := range s.entities[ref] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
