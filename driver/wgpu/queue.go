package wgpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore/driver"
)

// maxPollInterval caps the sleep between completion polls of a bounded wait.
const maxPollInterval = time.Millisecond

// Queue submits to the device's hal queue.
type Queue struct {
	dev  *Device
	kind driver.ListKind
}

// ExecuteCommandLists implements driver.Queue.
func (q *Queue) ExecuteCommandLists(lists []driver.CommandList) error {
	bufs := make([]hal.CommandBuffer, 0, len(lists))
	for _, cl := range lists {
		l, ok := cl.(*List)
		if !ok {
			return fmt.Errorf("wgpu: list %T does not belong to this driver", cl)
		}
		if l.buf == nil {
			return fmt.Errorf("wgpu: list %q is not closed", l.name)
		}
		bufs = append(bufs, l.buf)
	}
	if len(bufs) == 0 {
		return nil
	}
	index, err := q.dev.queue.Submit(bufs)
	if err != nil {
		return fmt.Errorf("wgpu: submit %d command buffers: %w", len(bufs), err)
	}
	storeMax(&q.dev.submitted, index)
	return nil
}

// Signal implements driver.Queue. hal has no queue-side fence writes: the
// value is reached once the GPU completed the last submission made so far.
func (q *Queue) Signal(f driver.Fence, value uint64) error {
	hf, ok := f.(*Fence)
	if !ok {
		return fmt.Errorf("wgpu: fence %T does not belong to this driver", f)
	}
	hf.enqueue(value, q.dev.submitted.Load())
	return nil
}

// Destroy implements driver.Queue. The hal queue belongs to the device.
func (q *Queue) Destroy() {}

// pendingSignal is a fence value waiting for a submission index.
type pendingSignal struct {
	value      uint64
	submission uint64
}

// Fence is a fence over hal submission indices.
//
// Queue.Signal ties a value to the current submission index, and the value
// is reached when hal's PollCompleted passes that index. Values set from
// the CPU are kept as a floor below which every wait succeeds.
type Fence struct {
	dev *Device

	mu      sync.Mutex
	pending []pendingSignal // in signal order

	cpu     atomic.Uint64
	reached atomic.Uint64
}

// enqueue ties value to submission.
func (f *Fence) enqueue(value, submission uint64) {
	f.mu.Lock()
	f.pending = append(f.pending, pendingSignal{value: value, submission: submission})
	f.mu.Unlock()
	f.poll()
}

// poll retires every pending signal whose submission completed and returns
// the highest value reached.
func (f *Fence) poll() uint64 {
	completed := f.dev.queue.PollCompleted()

	f.mu.Lock()
	n := 0
	for _, p := range f.pending {
		if p.submission > completed {
			break
		}
		storeMax(&f.reached, p.value)
		n++
	}
	f.pending = append(f.pending[:0], f.pending[n:]...)
	f.mu.Unlock()

	return max(f.reached.Load(), f.cpu.Load())
}

// signaled reports whether value is reached or pending.
func (f *Fence) signaled(value uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pending {
		if p.value >= value {
			return true
		}
	}
	return false
}

// CompletedValue implements driver.Fence.
func (f *Fence) CompletedValue() uint64 { return f.poll() }

// Signal implements driver.Fence.
func (f *Fence) Signal(value uint64) error {
	storeMax(&f.cpu, value)
	return nil
}

// Wait implements driver.Fence. An unbounded wait drains the hal device.
func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	if f.poll() >= value {
		return true, nil
	}
	if !f.signaled(value) {
		if timeout == driver.Infinite {
			return false, fmt.Errorf("wgpu: wait for fence value %d that was never signaled", value)
		}
		return false, nil
	}

	if timeout == driver.Infinite {
		if err := f.dev.hal.WaitIdle(); err != nil {
			return false, fmt.Errorf("wgpu: wait for fence value %d: %w", value, err)
		}
		if f.poll() >= value {
			return true, nil
		}
	}

	start := time.Now()
	interval := time.Microsecond
	for {
		if f.poll() >= value {
			return true, nil
		}
		left := timeout - time.Since(start)
		if left <= 0 {
			return false, nil
		}
		time.Sleep(min(interval, left))
		interval = min(2*interval, maxPollInterval)
	}
}

// Destroy implements driver.Fence.
func (f *Fence) Destroy() {
	f.mu.Lock()
	f.pending = nil
	f.mu.Unlock()
}

// storeMax raises a to v if v is larger.
func storeMax(a *atomic.Uint64, v uint64) {
	for {
		cur := a.Load()
		if v <= cur || a.CompareAndSwap(cur, v) {
			return
		}
	}
}
