package index

import "sync/atomic"

// Handle is a swappable reference to the live index. An embedding refresh
// builds a complete replacement and swaps it in; in-flight searches keep
// using whichever index they resolved.
type Handle struct {
	current atomic.Pointer[Flat]
}

// NewHandle creates a handle pointing at the given index.
func NewHandle(f *Flat) *Handle {
	h := &Handle{}
	h.current.Store(f)
	return h
}

// Get returns the live index.
func (h *Handle) Get() *Flat {
	return h.current.Load()
}

// Swap replaces the live index wholesale.
func (h *Handle) Swap(f *Flat) {
	h.current.Store(f)
}
