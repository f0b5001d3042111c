package params

import "sync/atomic"

// Source supplies the current protocol parameter snapshot. Implementations
// must be safe for concurrent use; callers read a fresh snapshot at every
// estimation and never cache it.
type Source interface {
	Current() FeeParameters
}

// Static is a Source whose parameter set can be hot-swapped at runtime.
// Updates are published atomically, so readers always observe either the
// old snapshot or the new one, never a torn mix.
type Static struct {
	p atomic.Pointer[FeeParameters]
}

// Compile-time interface check.
var _ Source = (*Static)(nil)

// NewStatic returns a Static source seeded with p. Invalid parameter sets
// are rejected.
func NewStatic(p FeeParameters) (*Static, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	s := &Static{}
	s.p.Store(&p)
	return s, nil
}

// Current returns the most recently published parameter snapshot.
func (s *Static) Current() FeeParameters {
	return *s.p.Load()
}

// Update validates and publishes a new parameter snapshot. In-flight
// estimations keep the snapshot they already loaded.
func (s *Static) Update(p FeeParameters) error {
	if err := Validate(p); err != nil {
		return err
	}
	s.p.Store(&p)
	return nil
}
