package canvas

import "sync"

// State is the host-owned state of the drawing surface: which image is being
// edited and a redraw key. Clients reset their canvas whenever the key
// changes, which happens on Clear and when a different image is selected.
type State struct {
	mu       sync.Mutex
	selected string
	key      int
}

// Select makes name the edited image. The key is bumped when the selection
// actually changes; re-selecting the current image keeps the drawing.
func (s *State) Select(name string) (key int, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == name {
		return s.key, false
	}
	if s.selected != "" {
		s.key++
	}
	s.selected = name
	return s.key, true
}

// Clear bumps the key so the client discards its strokes.
func (s *State) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key++
	return s.key
}

func (s *State) Key() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

func (s *State) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}
