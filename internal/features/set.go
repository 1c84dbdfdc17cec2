package features

import "sync"

// Set holds the features of the most recent frame for concurrent readers.
type Set struct {
	mu       sync.RWMutex
	frame    int64
	features []Feature
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{}
}

// Replace swaps in the features of a new frame.
func (s *Set) Replace(frame int64, fs []Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.features = append([]Feature(nil), fs...)
}

// Frame returns the number of the frame the set was built from.
func (s *Set) Frame() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Len returns the number of features.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.features)
}

// Count returns the number of features of kind k.
func (s *Set) Count(k Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, f := range s.features {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// HitTest finds the first feature at the given coordinates. Markers are
// checked before larger features.
func (s *Set) HitTest(x, y float64) (Feature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range []Kind{KindMarker, KindScreen, KindSurface} {
		for _, f := range s.features {
			if f.Kind == k && f.HitTest(x, y) {
				return f, true
			}
		}
	}
	return Feature{}, false
}
