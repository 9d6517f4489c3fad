// Package fence provides CPU/GPU synchronization primitives.
//
// A Fence wraps a native monotonic counter. The CPU side bumps the target
// value each time it asks the queue to signal; the GPU writes the value once
// all previously submitted work completed. A SyncPoint names one such value
// and is the handle pooled objects use to answer "has the work recorded
// into me finished".
package fence

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loov/hrtime"

	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/logging"
	"github.com/gogpu/rendercore/internal/verify"
)

// ErrNilDevice is returned when creating a fence without a device.
var ErrNilDevice = errors.New("fence: device is nil")

// slowWait is the blocked duration above which a wait is logged.
const slowWait = 100 * time.Millisecond

// Signaler is the part of a native queue a fence needs.
type Signaler interface {
	Signal(f driver.Fence, value uint64) error
}

// Fence is a monotonically increasing completion counter.
//
// Signal and Clear are expected to be called from the submission goroutine.
// HasBeenSignaled and WaitForSignal are safe for concurrent use.
type Fence struct {
	native driver.Fence
	name   string

	// mu serializes CPU-side value updates with their native calls.
	mu    sync.Mutex
	value uint64

	// completed caches the highest value observed as reached.
	completed atomic.Uint64

	waits   atomic.Uint64
	blocked atomic.Int64
}

// New creates a fence whose value and completed value start at initial.
func New(device driver.Device, initial uint64, name string) (*Fence, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	native, err := device.CreateFence(initial)
	if err != nil {
		return nil, fmt.Errorf("fence: create %q: %w", name, err)
	}
	f := &Fence{native: native, name: name, value: initial}
	f.completed.Store(initial)
	return f, nil
}

// Name returns the debug name.
func (f *Fence) Name() string { return f.name }

// Value returns the last value handed out by Signal or Clear.
func (f *Fence) Value() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Signal advances the target value and asks q to write it once all work
// submitted before this call completed.
func (f *Fence) Signal(q Signaler) (SyncPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.value + 1
	if err := q.Signal(f.native, next); err != nil {
		return SyncPoint{}, fmt.Errorf("fence: signal %q to %d: %w", f.name, next, err)
	}
	f.value = next
	return SyncPoint{fence: f, value: next}, nil
}

// Clear sets the fence to value from the CPU side. The value must not be
// lower than the current one.
func (f *Fence) Clear(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	verify.That(value >= f.value, "fence: clear %q to %d below current value %d", f.name, value, f.value)
	verify.NoError(f.native.Signal(value), "fence signal from CPU")
	f.value = value
	f.observe(value)
}

// CompletedValue returns the highest value known to be reached.
func (f *Fence) CompletedValue() uint64 {
	f.observe(f.native.CompletedValue())
	return f.completed.Load()
}

// HasBeenSignaled reports whether the fence reached value. It never blocks.
func (f *Fence) HasBeenSignaled(value uint64) bool {
	if f.completed.Load() >= value {
		return true
	}
	ok, err := f.native.Wait(value, 0)
	verify.NoError(err, "fence poll")
	if ok {
		f.observe(value)
	}
	return ok
}

// WaitForSignal blocks until the fence reached value. The wait is unbounded:
// a hung device is not a recoverable condition.
func (f *Fence) WaitForSignal(value uint64) {
	if f.HasBeenSignaled(value) {
		return
	}

	start := hrtime.Now()
	ok, err := f.native.Wait(value, driver.Infinite)
	verify.NoError(err, "fence wait")
	verify.That(ok, "fence: infinite wait on %q for %d returned early", f.name, value)
	elapsed := hrtime.Since(start)

	f.waits.Add(1)
	f.blocked.Add(int64(elapsed))
	f.observe(value)

	if elapsed > slowWait {
		logging.Logger().Warn("fence: slow wait", "fence", f.name, "value", value, "blocked", elapsed)
	}
}

// Stats returns how many waits blocked and for how long in total.
func (f *Fence) Stats() (waits uint64, blocked time.Duration) {
	return f.waits.Load(), time.Duration(f.blocked.Load())
}

// Destroy releases the native fence.
func (f *Fence) Destroy() {
	f.native.Destroy()
}

// observe raises the cached completed value to v if it is higher.
func (f *Fence) observe(v uint64) {
	for {
		cur := f.completed.Load()
		if v <= cur || f.completed.CompareAndSwap(cur, v) {
			return
		}
	}
}
