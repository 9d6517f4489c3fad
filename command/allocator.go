package command

import (
	"errors"
	"fmt"

	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/fence"
	"github.com/gogpu/rendercore/internal/verify"
)

// ErrNilDevice is returned when creating a pool without a device.
var ErrNilDevice = errors.New("command: device is nil")

// Allocator is the backing memory of recorded command lists.
type Allocator struct {
	native driver.CommandAllocator
	kind   driver.ListKind
	name   string
	sync   fence.SyncPoint
	inUse  bool
}

// Name returns the debug name.
func (a *Allocator) Name() string { return a.name }

// Kind returns the list kind the allocator records.
func (a *Allocator) Kind() driver.ListKind { return a.kind }

// Native returns the driver allocator.
func (a *Allocator) Native() driver.CommandAllocator { return a.native }

// SetSyncPoint marks the last GPU work recorded into a. It must be called
// before Release whenever a list recorded into a was submitted.
func (a *Allocator) SetSyncPoint(sp fence.SyncPoint) { a.sync = sp }

// SyncPoint returns the attached sync point.
func (a *Allocator) SyncPoint() fence.SyncPoint { return a.sync }

// AllocatorPool recycles command allocators of one kind.
type AllocatorPool struct {
	device driver.Device
	fifo   fifo[*Allocator]
}

// NewAllocatorPool returns an empty pool.
func NewAllocatorPool(device driver.Device, kind driver.ListKind, opts ...PoolOption) (*AllocatorPool, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	return &AllocatorPool{
		device: device,
		fifo:   newFIFO("allocator", kind, (*Allocator).SyncPoint, opts),
	}, nil
}

// Create returns an allocator ready for recording. The front pooled
// allocator is reused if the GPU finished with it; otherwise a new one is
// created.
func (p *AllocatorPool) Create(name string) (*Allocator, error) {
	if a, ok := p.fifo.take(); ok {
		if err := a.native.Reset(); err != nil {
			p.fifo.stats.Outstanding--
			a.native.Destroy()
			return nil, fmt.Errorf("command: reset allocator %q: %w", a.name, err)
		}
		a.native.SetName(name)
		a.name = name
		a.sync = fence.SyncPoint{}
		a.inUse = true
		return a, nil
	}

	native, err := p.device.CreateCommandAllocator(p.fifo.kind)
	if err != nil {
		return nil, fmt.Errorf("command: create %v allocator %q: %w", p.fifo.kind, name, err)
	}
	native.SetName(name)
	p.fifo.created()
	return &Allocator{native: native, kind: p.fifo.kind, name: name, inUse: true}, nil
}

// Release returns a to the pool. Its sync point must already be attached.
func (p *AllocatorPool) Release(a *Allocator) {
	verify.That(a != nil, "command: release of nil allocator")
	verify.That(a.inUse, "command: allocator %q released twice", a.name)
	verify.That(a.kind == p.fifo.kind, "command: %v allocator %q released to %v pool", a.kind, a.name, p.fifo.kind)
	a.inUse = false
	p.fifo.put(a)
}

// Discard destroys an unreleased allocator instead of pooling it. It must
// not be called while the GPU may still execute lists recorded into a.
func (p *AllocatorPool) Discard(a *Allocator) {
	verify.That(a != nil && a.inUse, "command: discard of an allocator not in use")
	a.inUse = false
	p.fifo.stats.Outstanding--
	a.native.Destroy()
}

// Destroy waits until the GPU finished with every pooled allocator, then
// destroys them. Every allocator must have been released.
func (p *AllocatorPool) Destroy() {
	verify.That(p.fifo.stats.Outstanding == 0, "command: destroying allocator pool with %d allocators in use", p.fifo.stats.Outstanding)
	for _, a := range p.fifo.drain() {
		a.native.Destroy()
	}
}

// Stats returns a snapshot of pool activity.
func (p *AllocatorPool) Stats() Stats { return p.fifo.snapshot() }
