package frame

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/rendercore/command"
	"github.com/gogpu/rendercore/descriptor"
	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/fence"
	"github.com/gogpu/rendercore/internal/verify"
	"github.com/gogpu/rendercore/resource"
)

// Pass records one command list of a frame.
type Pass interface {
	// Name identifies the pass in list names and logs.
	Name() string

	// Record declares the states the pass needs and records its commands
	// into rc.List. It runs concurrently with the other passes of the frame
	// and must not close the list.
	Record(ctx context.Context, rc *RecordContext) error
}

// PassFunc adapts a function to a Pass.
func PassFunc(name string, fn func(ctx context.Context, rc *RecordContext) error) Pass {
	return funcPass{name: name, fn: fn}
}

type funcPass struct {
	name string
	fn   func(context.Context, *RecordContext) error
}

func (p funcPass) Name() string { return p.name }

func (p funcPass) Record(ctx context.Context, rc *RecordContext) error { return p.fn(ctx, rc) }

// RecordContext is what a pass records with.
type RecordContext struct {
	// Frame is the frame number.
	Frame uint64

	// List is the pass's own command list.
	List *command.List

	// Table is the frame's shader-visible descriptor heap. It is safe for
	// concurrent allocation.
	Table *descriptor.Heap

	// BackBuffer is the image the frame presents, or nil.
	BackBuffer *resource.Resource
}

type recorded struct {
	alloc *command.Allocator
	list  *command.List
}

// Frame is one frame in flight.
type Frame struct {
	ring       *Ring
	number     uint64
	slot       *slot
	backBuffer *resource.Resource

	passes    []recorded
	submitted bool
}

// Number returns the frame number, starting at zero.
func (f *Frame) Number() uint64 { return f.number }

// BackBuffer returns the image the frame presents, or nil.
func (f *Frame) BackBuffer() *resource.Resource { return f.backBuffer }

// Table returns the frame's shader-visible descriptor heap.
func (f *Frame) Table() *descriptor.Heap { return f.slot.table }

// Record runs passes in parallel, each into a fresh list. Their lists are
// submitted in the order given, after the lists of earlier Record calls.
// If any pass fails, the lists of this call are dropped and the first
// error is returned.
func (f *Frame) Record(ctx context.Context, passes ...Pass) error {
	verify.That(!f.submitted, "frame: Record on submitted frame %d", f.number)
	env := f.ring.env

	batch := make([]recorded, 0, len(passes))
	for _, p := range passes {
		name := fmt.Sprintf("frame%d/%s", f.number, p.Name())
		alloc, err := env.Allocators().Create(name)
		if err != nil {
			f.drop(batch)
			return fmt.Errorf("frame: %w", err)
		}
		list, err := env.Lists().Create(alloc, name)
		if err != nil {
			env.Allocators().Release(alloc)
			f.drop(batch)
			return fmt.Errorf("frame: %w", err)
		}
		batch = append(batch, recorded{alloc: alloc, list: list})
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range passes {
		rc := &RecordContext{
			Frame:      f.number,
			List:       batch[i].list,
			Table:      f.slot.table,
			BackBuffer: f.backBuffer,
		}
		g.Go(func() error {
			if err := p.Record(gctx, rc); err != nil {
				return fmt.Errorf("frame: pass %q: %w", p.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.drop(batch)
		return err
	}

	f.passes = append(f.passes, batch...)
	f.ring.stats.Passes += uint64(len(passes))
	return nil
}

// Submit closes every list, executes them in recording order followed by
// a list that moves the back buffer to the present state, and signals the
// queue. The frame's allocators and lists go back to the pools tagged with
// the returned sync point.
func (f *Frame) Submit() (fence.SyncPoint, error) {
	verify.That(!f.submitted, "frame: frame %d submitted twice", f.number)
	env := f.ring.env
	f.submitted = true
	f.ring.current = nil

	barriers, err := env.Allocators().Create(fmt.Sprintf("frame%d/barriers", f.number))
	if err != nil {
		f.drop(f.passes)
		return fence.SyncPoint{}, fmt.Errorf("frame: %w", err)
	}
	all := append(f.passes, recorded{alloc: barriers})

	lists := make([]*command.List, 0, len(f.passes)+1)
	for _, p := range f.passes {
		if err := p.list.Close(); err != nil {
			f.drop(all)
			return fence.SyncPoint{}, fmt.Errorf("frame: %w", err)
		}
		lists = append(lists, p.list)
	}

	if bb := f.backBuffer; bb != nil {
		present, err := env.Lists().Create(barriers, fmt.Sprintf("frame%d/present", f.number))
		if err != nil {
			f.drop(all)
			return fence.SyncPoint{}, fmt.Errorf("frame: %w", err)
		}
		all[len(all)-1].list = present
		present.Require(bb, driver.StatePresent)
		if err := present.Close(); err != nil {
			f.drop(all)
			return fence.SyncPoint{}, fmt.Errorf("frame: %w", err)
		}
		lists = append(lists, present)
	}

	q := env.Queue()
	if err := q.ExecuteCommandLists(barriers, lists...); err != nil {
		f.drop(all)
		return fence.SyncPoint{}, fmt.Errorf("frame: submit frame %d: %w", f.number, err)
	}
	sp, err := q.Signal()
	if err != nil {
		// The lists were submitted: keep them tagged with the next signal.
		sp = q.NextSyncPoint()
		f.release(all, sp)
		return fence.SyncPoint{}, fmt.Errorf("frame: signal frame %d: %w", f.number, err)
	}

	f.release(all, sp)
	f.slot.sync = sp
	f.ring.stats.Frames++
	return sp, nil
}

// release returns submitted objects to the pools.
func (f *Frame) release(all []recorded, sp fence.SyncPoint) {
	env := f.ring.env
	for _, r := range all {
		if r.list != nil {
			r.list.SetSyncPoint(sp)
			env.Lists().Release(r.list)
		}
		r.alloc.SetSyncPoint(sp)
		env.Allocators().Release(r.alloc)
	}
}

// drop returns objects that never reached the GPU to the pools.
func (f *Frame) drop(batch []recorded) {
	env := f.ring.env
	for _, r := range batch {
		switch {
		case r.list == nil:
		case r.list.Closed() || r.list.Close() == nil:
			env.Lists().Release(r.list)
		default:
			env.Lists().Discard(r.list)
		}
		env.Allocators().Release(r.alloc)
	}
}

// Abort drops every recorded list without submitting. The frame's slot
// keeps the sync point of its previous frame.
func (f *Frame) Abort() {
	verify.That(!f.submitted, "frame: Abort on submitted frame %d", f.number)
	f.submitted = true
	f.ring.current = nil
	f.drop(f.passes)
	f.passes = nil
}
