package command

import (
	"fmt"

	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/fence"
	"github.com/gogpu/rendercore/internal/verify"
	"github.com/gogpu/rendercore/resource"
	"github.com/gogpu/rendercore/transition"
)

// listState is the recording state of a List.
type listState uint8

const (
	listRecording listState = iota
	listClosed
)

// List is a command list together with the resource states it requires.
//
// A list is recorded by one goroutine. Recording only declares intent: the
// tracked state of a resource never changes before the list is submitted.
type List struct {
	native driver.CommandList
	kind   driver.ListKind
	name   string
	alloc  *Allocator
	state  listState
	inUse  bool
	sync   fence.SyncPoint

	required *transition.RequiredStateList
}

// Name returns the debug name.
func (l *List) Name() string { return l.name }

// Kind returns the list kind.
func (l *List) Kind() driver.ListKind { return l.kind }

// Native returns the driver list for recording commands the core does not
// wrap. Resource states must still be declared through Require.
func (l *List) Native() driver.CommandList { return l.native }

// Allocator returns the allocator the list records into.
func (l *List) Allocator() *Allocator { return l.alloc }

// Closed reports whether Close was called since the last reset.
func (l *List) Closed() bool { return l.state == listClosed }

// SetSyncPoint marks the last GPU work that executed the list.
func (l *List) SetSyncPoint(sp fence.SyncPoint) { l.sync = sp }

// SyncPoint returns the attached sync point.
func (l *List) SyncPoint() fence.SyncPoint { return l.sync }

// SetRequiredStates attaches the states the list needs before it runs,
// replacing any earlier declaration. A nil list means no requirement.
func (l *List) SetRequiredStates(states *transition.RequiredStateList) {
	l.mustRecord("SetRequiredStates")
	l.required = states
}

// RequiredStates returns the attached declaration, or nil.
func (l *List) RequiredStates() *transition.RequiredStateList { return l.required }

// Require declares that r must be in state s before the list runs.
func (l *List) Require(r *resource.Resource, s driver.ResourceState) {
	l.mustRecord("Require")
	if l.required == nil {
		l.required = transition.NewRequiredStateList(4)
	}
	l.required.Add(r, s)
}

// ResourceBarrier transitions r inside the list, from the state the list
// has it in at this point to after. The resource must have been declared
// with Require first. The tracked state follows once the list is submitted.
func (l *List) ResourceBarrier(r *resource.Resource, after driver.ResourceState) {
	l.mustRecord("ResourceBarrier")
	before, ok := l.required.Current(r)
	verify.That(ok, "command: %q transitions %q without requiring a state for it", l.name, r.Name())
	if before == after {
		return
	}
	l.native.ResourceBarrier([]driver.Barrier{{
		Resource:    r.Native(),
		Subresource: driver.AllSubresources,
		Before:      before,
		After:       after,
	}})
	l.required.Leave(r, after)
}

// CopyBufferRegion copies size bytes from src to dst. The list must hold dst
// in CopyDest and src in a state including CopySource.
func (l *List) CopyBufferRegion(dst *resource.Resource, dstOffset uint64, src *resource.Resource, srcOffset, size uint64) {
	l.mustRecord("CopyBufferRegion")
	verify.That(dst.Desc().IsBuffer() && src.Desc().IsBuffer(), "command: %q copies between non-buffers", l.name)
	verify.That(dstOffset+size <= dst.Desc().Width, "command: %q copy overflows %q", l.name, dst.Name())
	verify.That(srcOffset+size <= src.Desc().Width, "command: %q copy overruns %q", l.name, src.Name())

	ds, ok := l.required.Current(dst)
	verify.That(ok && ds == driver.StateCopyDest, "command: %q copies into %q without requiring CopyDest", l.name, dst.Name())
	ss, ok := l.required.Current(src)
	verify.That(ok && ss.Contains(driver.StateCopySource), "command: %q copies from %q without requiring CopySource", l.name, src.Name())

	l.native.CopyBufferRegion(dst.Native(), dstOffset, src.Native(), srcOffset, size)
}

// Close ends recording.
func (l *List) Close() error {
	verify.That(l.state == listRecording, "command: %q closed twice", l.name)
	if err := l.native.Close(); err != nil {
		return fmt.Errorf("command: close %q: %w", l.name, err)
	}
	l.state = listClosed
	return nil
}

func (l *List) mustRecord(op string) {
	verify.That(l.state == listRecording, "command: %s on closed list %q", op, l.name)
}

// ListPool recycles command lists of one kind.
type ListPool struct {
	device driver.Device
	fifo   fifo[*List]
}

// NewListPool returns an empty pool.
func NewListPool(device driver.Device, kind driver.ListKind, opts ...PoolOption) (*ListPool, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	return &ListPool{
		device: device,
		fifo:   newFIFO("list", kind, (*List).SyncPoint, opts),
	}, nil
}

// Create returns a list recording into alloc. The front pooled list is
// reused if the GPU finished with it; otherwise a new one is created.
func (p *ListPool) Create(alloc *Allocator, name string) (*List, error) {
	verify.That(alloc != nil && alloc.inUse, "command: list %q needs an allocator in use", name)
	verify.That(alloc.kind == p.fifo.kind, "command: %v list %q on %v allocator", p.fifo.kind, name, alloc.kind)

	if l, ok := p.fifo.take(); ok {
		if err := l.native.Reset(alloc.native, name); err != nil {
			p.fifo.stats.Outstanding--
			l.native.Destroy()
			return nil, fmt.Errorf("command: reset list %q: %w", l.name, err)
		}
		l.name = name
		l.alloc = alloc
		l.state = listRecording
		l.inUse = true
		l.sync = fence.SyncPoint{}
		l.required = nil
		return l, nil
	}

	native, err := p.device.CreateCommandList(p.fifo.kind, alloc.native, name)
	if err != nil {
		return nil, fmt.Errorf("command: create %v list %q: %w", p.fifo.kind, name, err)
	}
	p.fifo.created()
	return &List{native: native, kind: p.fifo.kind, name: name, alloc: alloc, inUse: true}, nil
}

// Release returns l to the pool. It must be closed, and its sync point
// attached if it was submitted.
func (p *ListPool) Release(l *List) {
	verify.That(l != nil, "command: release of nil list")
	verify.That(l.inUse, "command: list %q released twice", l.name)
	verify.That(l.state == listClosed, "command: list %q released while recording", l.name)
	l.inUse = false
	l.alloc = nil
	p.fifo.put(l)
}

// Discard destroys an unreleased list instead of pooling it. It is used
// when a list cannot be closed, and must not be called on a list the GPU
// may still execute.
func (p *ListPool) Discard(l *List) {
	verify.That(l != nil && l.inUse, "command: discard of a list not in use")
	l.inUse = false
	l.alloc = nil
	p.fifo.stats.Outstanding--
	l.native.Destroy()
}

// Destroy waits until the GPU finished with every pooled list, then
// destroys them. Every list must have been released.
func (p *ListPool) Destroy() {
	verify.That(p.fifo.stats.Outstanding == 0, "command: destroying list pool with %d lists in use", p.fifo.stats.Outstanding)
	for _, l := range p.fifo.drain() {
		l.native.Destroy()
	}
}

// Stats returns a snapshot of pool activity.
func (p *ListPool) Stats() Stats { return p.fifo.snapshot() }
