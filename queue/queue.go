// Package queue submits command lists and inserts the transition barriers
// they need.
//
// ExecuteCommandLists is the only place where tracked resource states change.
// For a batch it:
//
//  1. resolves the required states of every list, in submission order;
//  2. records the barriers each list needs into a barrier list taken from
//     the list pool, backed by the caller's barrier allocator;
//  3. splices each barrier list right before the list it prepares;
//  4. submits everything in one native call;
//  5. returns the barrier lists to the pool.
//
// If the native submission fails, tracked states are rolled back to what
// they were before the batch.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loov/hrtime"

	"github.com/gogpu/rendercore/command"
	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/fence"
	"github.com/gogpu/rendercore/internal/logging"
	"github.com/gogpu/rendercore/internal/verify"
	"github.com/gogpu/rendercore/transition"
)

// ErrNilDevice is returned when creating a queue without a device.
var ErrNilDevice = errors.New("queue: device is nil")

// Option configures a CommandQueue.
type Option func(*options)

type options struct {
	name  string
	lists *command.ListPool
}

// WithName sets the debug name used for the queue's fence and logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithListPool makes the queue take barrier lists from p instead of a pool
// of its own. The caller keeps ownership of p.
func WithListPool(p *command.ListPool) Option {
	return func(o *options) { o.lists = p }
}

// CommandQueue executes command lists of one kind in submission order.
//
// A CommandQueue is driven from one goroutine.
type CommandQueue struct {
	native    driver.Queue
	kind      driver.ListKind
	name      string
	fence     *fence.Fence
	lists     *command.ListPool
	ownsLists bool
	resolver  transition.Resolver

	// dirty is set when work was submitted after the last Signal.
	dirty bool

	stats Stats
}

// New creates a native queue of the given kind and its fence.
func New(device driver.Device, kind driver.ListKind, opts ...Option) (*CommandQueue, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	o := options{name: kind.String()}
	for _, opt := range opts {
		opt(&o)
	}

	native, err := device.CreateCommandQueue(kind)
	if err != nil {
		return nil, fmt.Errorf("queue: create %v queue: %w", kind, err)
	}
	f, err := fence.New(device, 0, o.name)
	if err != nil {
		native.Destroy()
		return nil, fmt.Errorf("queue: %w", err)
	}

	q := &CommandQueue{native: native, kind: kind, name: o.name, fence: f, lists: o.lists}
	if q.lists == nil {
		q.lists, err = command.NewListPool(device, kind)
		if err != nil {
			f.Destroy()
			native.Destroy()
			return nil, fmt.Errorf("queue: %w", err)
		}
		q.ownsLists = true
	}
	return q, nil
}

// Name returns the debug name.
func (q *CommandQueue) Name() string { return q.name }

// Kind returns the list kind the queue executes.
func (q *CommandQueue) Kind() driver.ListKind { return q.kind }

// Native returns the driver queue.
func (q *CommandQueue) Native() driver.Queue { return q.native }

// Fence returns the queue's fence.
func (q *CommandQueue) Fence() *fence.Fence { return q.fence }

// ListPool returns the pool barrier lists are taken from.
func (q *CommandQueue) ListPool() *command.ListPool { return q.lists }

// ExecuteCommandLists submits lists in order, preceded by whatever barriers
// bring their resources into the declared states. Every list must be
// closed. barrierAlloc backs the barrier lists and may be nil only if no
// barrier turns out to be needed; the caller must attach a sync point
// covering this batch to it before releasing it.
//
// An error from the driver, or a panic while recording barriers, leaves
// every tracked state as it was before the call.
func (q *CommandQueue) ExecuteCommandLists(barrierAlloc *command.Allocator, lists ...*command.List) error {
	start := hrtime.Now()

	required := make([]*transition.RequiredStateList, len(lists))
	for i, l := range lists {
		verify.That(l != nil, "queue: nil command list at %d", i)
		verify.That(l.Closed(), "queue: list %q submitted while recording", l.Name())
		verify.That(l.Kind() == q.kind, "queue: %v list %q submitted to %v queue", l.Kind(), l.Name(), q.kind)
		required[i] = l.RequiredStates()
	}

	before := q.resolver.Stats()
	barriers := q.resolver.Resolve(required)

	var (
		natives   = make([]driver.CommandList, 0, len(lists)*2)
		recorded  []*command.List
		committed bool
	)
	// A contract panic before Commit must not leave the resolver open.
	defer func() {
		if v := recover(); v != nil {
			if committed {
				panic(v)
			}
			q.abort(recorded)
			panic(v)
		}
	}()
	for i, l := range lists {
		if bs := barriers[i]; len(bs) > 0 {
			bl, err := q.recordBarriers(barrierAlloc, l.Name(), bs)
			if err != nil {
				q.abort(recorded)
				return err
			}
			recorded = append(recorded, bl)
			natives = append(natives, bl.Native())
		}
		natives = append(natives, l.Native())
	}

	if err := q.native.ExecuteCommandLists(natives); err != nil {
		q.abort(recorded)
		return fmt.Errorf("queue: execute %d lists on %q: %w", len(natives), q.name, err)
	}
	q.resolver.Commit()
	committed = true
	q.dirty = true

	// Barrier lists are done once the next signal is reached.
	next := q.NextSyncPoint()
	for _, bl := range recorded {
		bl.SetSyncPoint(next)
		q.lists.Release(bl)
	}

	after := q.resolver.Stats()
	q.stats.Batches++
	q.stats.Lists += uint64(len(lists))
	q.stats.BarrierLists += uint64(len(recorded))
	q.stats.Barriers += after.Barriers - before.Barriers
	q.stats.Skipped += after.Skipped - before.Skipped
	q.stats.SubmitTime += hrtime.Since(start)
	return nil
}

// recordBarriers records bs into a closed barrier list for the list named for.
func (q *CommandQueue) recordBarriers(alloc *command.Allocator, forList string, bs []driver.Barrier) (*command.List, error) {
	verify.That(alloc != nil, "queue: %q needs %d barriers but no barrier allocator was given", forList, len(bs))

	bl, err := q.lists.Create(alloc, "barriers:"+forList)
	if err != nil {
		return nil, fmt.Errorf("queue: barrier list for %q: %w", forList, err)
	}
	bl.Native().ResourceBarrier(bs)
	if err := bl.Close(); err != nil {
		q.lists.Discard(bl)
		return nil, fmt.Errorf("queue: barrier list for %q: %w", forList, err)
	}

	if log := logging.Logger(); log.Enabled(context.Background(), slog.LevelDebug) {
		for _, b := range bs {
			log.Debug("queue: barrier", "queue", q.name, "list", forList, "before", b.Before, "after", b.After)
		}
	}
	return bl, nil
}

// abort undoes a batch that was not submitted.
func (q *CommandQueue) abort(recorded []*command.List) {
	q.resolver.Rollback()
	q.stats.Rollbacks++
	for _, bl := range recorded {
		q.lists.Release(bl)
	}
}

// Signal asks the GPU to signal the queue's fence once all work submitted
// so far completed.
func (q *CommandQueue) Signal() (fence.SyncPoint, error) {
	sp, err := q.fence.Signal(q.native)
	if err != nil {
		return fence.SyncPoint{}, fmt.Errorf("queue: %w", err)
	}
	q.dirty = false
	return sp, nil
}

// NextSyncPoint returns the sync point the next Signal will produce.
func (q *CommandQueue) NextSyncPoint() fence.SyncPoint {
	return fence.NewSyncPoint(q.fence, q.fence.Value()+1)
}

// WaitIdle blocks until the GPU finished all work submitted so far.
func (q *CommandQueue) WaitIdle() error {
	if !q.dirty {
		q.fence.WaitForSignal(q.fence.Value())
		return nil
	}
	sp, err := q.Signal()
	if err != nil {
		return err
	}
	sp.Wait()
	return nil
}

// Destroy waits for the queue to go idle and releases it.
func (q *CommandQueue) Destroy() error {
	if err := q.WaitIdle(); err != nil {
		return err
	}
	if q.ownsLists {
		q.lists.Destroy()
	}
	q.fence.Destroy()
	q.native.Destroy()
	return nil
}

// Stats returns cumulative counters.
func (q *CommandQueue) Stats() Stats { return q.stats }

// Stats counts queue activity.
type Stats struct {
	// Batches is the number of successful ExecuteCommandLists calls.
	Batches uint64

	// Lists is the number of submitted caller lists.
	Lists uint64

	// BarrierLists is the number of inserted barrier lists.
	BarrierLists uint64

	// Barriers is the number of inserted barriers.
	Barriers uint64

	// Skipped is the number of declared states already in place.
	Skipped uint64

	// Rollbacks is the number of batches that failed and were undone.
	Rollbacks uint64

	// SubmitTime is the CPU time spent in successful ExecuteCommandLists calls.
	SubmitTime time.Duration
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Queue[%d batches, %d lists, %d barrier lists, %d barriers, %d skipped, %d rollbacks, %v]",
		s.Batches, s.Lists, s.BarrierLists, s.Barriers, s.Skipped, s.Rollbacks, s.SubmitTime)
}
