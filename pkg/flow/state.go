package flow

import "sync"

// State is the run-scoped mutable data bag shared by every method of a
// run. Individual reads and writes are serialized by an internal mutex;
// coordinating multi-step read-modify-write sequences across concurrently
// executing methods is the caller's responsibility (use Update for a
// single atomic sequence).
type State struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewState creates an empty State.
func NewState() *State {
	return &State{data: make(map[string]any)}
}

// Get returns the value stored under key, and whether it was present.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes key.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Merge copies every entry of m into the state, overwriting existing keys.
func (s *State) Merge(m map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range m {
		s.data[k] = v
	}
}

// Update runs fn with exclusive access to the underlying map. The map
// must not be retained after fn returns.
func (s *State) Update(fn func(data map[string]any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// Snapshot returns a shallow copy of the current contents.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Len returns the number of stored keys.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
