// Package descriptor provides bump allocators over fixed-size descriptor heaps.
//
// A Heap hands out contiguous ranges of descriptor slots and never frees
// them individually. The whole heap is reset at a boundary the caller picks
// (typically a frame, after waiting on that frame's sync point). Running out
// of slots is a programming error and panics; a heap never grows.
package descriptor

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/verify"
)

// Heap errors.
var (
	// ErrNilDevice is returned when creating a heap without a device.
	ErrNilDevice = errors.New("descriptor: device is nil")

	// ErrZeroCapacity is returned when creating a heap with no slots.
	ErrZeroCapacity = errors.New("descriptor: heap capacity must be positive")
)

// Handle addresses one descriptor slot.
type Handle struct {
	// CPU is the CPU handle used to write the descriptor.
	CPU uint64

	// GPU is the GPU handle used to bind the descriptor table. It is zero
	// for heaps that are not shader visible.
	GPU uint64

	// Index is the slot index inside its heap.
	Index uint32

	increment uint32
}

// IsZero reports whether h was never allocated.
func (h Handle) IsZero() bool { return h.CPU == 0 }

// Offset returns the handle i slots after h.
func (h Handle) Offset(i uint32) Handle {
	step := uint64(i) * uint64(h.increment)
	out := h
	out.CPU += step
	if out.GPU != 0 {
		out.GPU += step
	}
	out.Index += i
	return out
}

// Heap is a bump allocator over a native descriptor heap.
//
// Allocate and AllocateRange are safe for concurrent use, so passes
// recording in parallel may allocate tables. Reset is not: it must only be
// called when no allocation is in flight and the GPU no longer reads any
// previously returned slot.
type Heap struct {
	device    driver.Device
	native    driver.DescriptorHeap
	desc      driver.HeapDesc
	cpuStart  uint64
	gpuStart  uint64
	increment uint32

	used      atomic.Uint32
	highWater atomic.Uint32
	resets    atomic.Uint64
}

// NewHeap creates a heap of capacity slots of type t.
func NewHeap(device driver.Device, t driver.HeapType, capacity uint32, shaderVisible bool) (*Heap, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if capacity == 0 {
		return nil, ErrZeroCapacity
	}

	desc := driver.HeapDesc{Type: t, Capacity: capacity, ShaderVisible: shaderVisible}
	native, err := device.CreateDescriptorHeap(desc)
	if err != nil {
		return nil, fmt.Errorf("descriptor: create %v heap (%d slots): %w", t, capacity, err)
	}

	return &Heap{
		device:    device,
		native:    native,
		desc:      desc,
		cpuStart:  native.CPUStart(),
		gpuStart:  native.GPUStart(),
		increment: device.DescriptorIncrement(t),
	}, nil
}

// Type returns the heap type.
func (h *Heap) Type() driver.HeapType { return h.desc.Type }

// Capacity returns the number of reserved slots.
func (h *Heap) Capacity() uint32 { return h.desc.Capacity }

// ShaderVisible reports whether the heap can be bound to the pipeline.
func (h *Heap) ShaderVisible() bool { return h.desc.ShaderVisible }

// Used returns the number of allocated slots.
func (h *Heap) Used() uint32 { return h.used.Load() }

// Native returns the underlying driver heap.
func (h *Heap) Native() driver.DescriptorHeap { return h.native }

// Allocate returns one slot.
func (h *Heap) Allocate() Handle {
	return h.AllocateRange(1)
}

// AllocateRange returns the first of n contiguous slots. It panics if
// fewer than n slots are left.
func (h *Heap) AllocateRange(n uint32) Handle {
	verify.That(n > 0, "descriptor: AllocateRange(0) on %v heap", h.desc.Type)
	for {
		used := h.used.Load()
		verify.That(uint64(used)+uint64(n) <= uint64(h.desc.Capacity),
			"descriptor: %v heap exhausted: %d used + %d requested > %d reserved",
			h.desc.Type, used, n, h.desc.Capacity)
		if h.used.CompareAndSwap(used, used+n) {
			h.raiseHighWater(used + n)
			return h.handle(used)
		}
	}
}

// Reset makes every slot available again. New allocations overwrite the
// slots handed out before, so the caller must guarantee the GPU finished
// reading them.
func (h *Heap) Reset() {
	h.used.Store(0)
	h.resets.Add(1)
}

// Handle returns the handle of slot i without allocating it.
func (h *Heap) Handle(i uint32) Handle {
	verify.That(i < h.desc.Capacity, "descriptor: slot %d outside %v heap of %d", i, h.desc.Type, h.desc.Capacity)
	return h.handle(i)
}

// Destroy releases the native heap.
func (h *Heap) Destroy() {
	h.native.Destroy()
}

func (h *Heap) handle(i uint32) Handle {
	step := uint64(i) * uint64(h.increment)
	out := Handle{CPU: h.cpuStart + step, Index: i, increment: h.increment}
	if h.gpuStart != 0 {
		out.GPU = h.gpuStart + step
	}
	return out
}

func (h *Heap) raiseHighWater(v uint32) {
	for {
		cur := h.highWater.Load()
		if v <= cur || h.highWater.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Stats is a snapshot of a heap's usage.
type Stats struct {
	Type          driver.HeapType
	ShaderVisible bool
	Capacity      uint32
	Used          uint32
	HighWater     uint32
	Resets        uint64
}

// String returns a human-readable summary.
func (s Stats) String() string {
	vis := "cpu"
	if s.ShaderVisible {
		vis = "gpu"
	}
	return fmt.Sprintf("Heap[%v/%s %d/%d used, peak %d, %d resets]",
		s.Type, vis, s.Used, s.Capacity, s.HighWater, s.Resets)
}

// Stats returns a usage snapshot.
func (h *Heap) Stats() Stats {
	return Stats{
		Type:          h.desc.Type,
		ShaderVisible: h.desc.ShaderVisible,
		Capacity:      h.desc.Capacity,
		Used:          h.used.Load(),
		HighWater:     h.highWater.Load(),
		Resets:        h.resets.Load(),
	}
}
