package fence

import "fmt"

// SyncPoint is a target value on a specific fence. The zero value has no
// fence and is always complete.
type SyncPoint struct {
	fence *Fence
	value uint64
}

// NewSyncPoint returns a sync point for value on f.
func NewSyncPoint(f *Fence, value uint64) SyncPoint {
	return SyncPoint{fence: f, value: value}
}

// Fence returns the fence, or nil for the zero value.
func (s SyncPoint) Fence() *Fence { return s.fence }

// Value returns the target value.
func (s SyncPoint) Value() uint64 { return s.value }

// IsZero reports whether s refers to no work.
func (s SyncPoint) IsZero() bool { return s.fence == nil }

// IsComplete reports whether the work this sync point names finished.
// Once true it stays true.
func (s SyncPoint) IsComplete() bool {
	if s.fence == nil {
		return true
	}
	return s.fence.HasBeenSignaled(s.value)
}

// Wait blocks until the sync point is complete.
func (s SyncPoint) Wait() {
	if s.fence == nil {
		return
	}
	s.fence.WaitForSignal(s.value)
}

// Later returns whichever of s and o is further along. Both must be zero or
// share a fence.
func (s SyncPoint) Later(o SyncPoint) SyncPoint {
	switch {
	case s.fence == nil:
		return o
	case o.fence == nil:
		return s
	case o.value > s.value:
		return o
	default:
		return s
	}
}

// String returns "name@value".
func (s SyncPoint) String() string {
	if s.fence == nil {
		return "none"
	}
	return fmt.Sprintf("%s@%d", s.fence.name, s.value)
}
