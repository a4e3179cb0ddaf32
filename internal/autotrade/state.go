package autotrade

import (
	"sort"
	"sync"
)

// State is the per-coin auto-trading on/off map. Mutated only by explicit
// enable/disable requests; read on every controller tick.
type State struct {
	mu      sync.RWMutex
	enabled map[string]bool
}

// NewState creates an empty state with everything disabled.
func NewState() *State {
	return &State{enabled: make(map[string]bool)}
}

// Enabled reports whether a (normalized) coin is enabled.
func (s *State) Enabled(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled[symbol]
}

// Set records the enabled flag for a coin. Disabled coins are removed from
// the map so the status view only lists coins that were ever enabled as on.
func (s *State) Set(symbol string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.enabled[symbol] = true
	} else {
		delete(s.enabled, symbol)
	}
}

// EnabledCoins returns the enabled coins in deterministic order.
func (s *State) EnabledCoins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.enabled))
	for symbol := range s.enabled {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// All returns a copy of the enabled map.
func (s *State) All() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.enabled))
	for symbol, on := range s.enabled {
		out[symbol] = on
	}
	return out
}
