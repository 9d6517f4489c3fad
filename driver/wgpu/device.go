// Package wgpu implements the driver seam over gogpu/wgpu's hal layer, so
// the core runs on any hal backend: Vulkan, DX12, Metal, GLES or noop.
//
// hal has no command allocators and no descriptor heaps. An Allocator owns
// the command buffers ended from the lists recorded into it and frees them
// on Reset. Descriptor heaps are host-side tables of views; a handle is an
// address inside the table, resolved with Device.Descriptor when bind
// groups are built. hal fences are not used either: a Fence value is tied
// to a submission index and reached once the hal queue reports it
// completed.
//
// Resource states map onto hal usages: a barrier from state A to state B
// becomes a texture or buffer usage transition between the usages A and B
// imply.
package wgpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore/driver"
)

// descriptorSize is the distance between two descriptor handles.
const descriptorSize = 64

// heapBase is the address of the first descriptor heap. Address zero is the
// null handle.
const heapBase uint64 = 1 << 16

// gpuBit marks handles of the shader-visible side of a heap.
const gpuBit uint64 = 1 << 48

// ErrDestroyed is returned when creating objects on a destroyed device.
var ErrDestroyed = errors.New("wgpu: device destroyed")

// Device adapts a hal device and queue to driver.Device. It does not own
// them: Destroy releases only what the adapter created.
type Device struct {
	hal   hal.Device
	queue hal.Queue

	// submitted is the highest hal submission index returned so far.
	submitted atomic.Uint64

	mu        sync.Mutex
	heaps     []*Heap
	next      uint64
	destroyed bool
}

// New wraps a hal device and its queue.
func New(device hal.Device, queue hal.Queue) *Device {
	return &Device{hal: device, queue: queue, next: heapBase}
}

// HAL returns the wrapped hal device.
func (d *Device) HAL() hal.Device { return d.hal }

// HALQueue returns the wrapped hal queue.
func (d *Device) HALQueue() hal.Queue { return d.queue }

// CreateCommandQueue implements driver.Device. Every kind shares the hal
// queue, which executes in submission order.
func (d *Device) CreateCommandQueue(kind driver.ListKind) (driver.Queue, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	return &Queue{dev: d, kind: kind}, nil
}

// CreateCommandAllocator implements driver.Device.
func (d *Device) CreateCommandAllocator(kind driver.ListKind) (driver.CommandAllocator, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	return &Allocator{dev: d, kind: kind}, nil
}

// CreateCommandList implements driver.Device.
func (d *Device) CreateCommandList(kind driver.ListKind, alloc driver.CommandAllocator, name string) (driver.CommandList, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	a, ok := alloc.(*Allocator)
	if !ok {
		return nil, fmt.Errorf("wgpu: allocator %T does not belong to this driver", alloc)
	}
	enc, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: name})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder %q: %w", name, err)
	}
	l := &List{dev: d, kind: kind, encoder: enc}
	if err := l.begin(a, name); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateFence implements driver.Device.
func (d *Device) CreateFence(initial uint64) (driver.Fence, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	f := &Fence{dev: d}
	f.cpu.Store(initial)
	return f, nil
}

// CreateDescriptorHeap implements driver.Device.
func (d *Device) CreateDescriptorHeap(desc driver.HeapDesc) (driver.DescriptorHeap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, ErrDestroyed
	}

	h := &Heap{dev: d, desc: desc, base: d.next, slots: make([]Descriptor, desc.Capacity)}
	// Leave a gap so an overrun never lands in the next heap.
	d.next += uint64(desc.Capacity+1) * descriptorSize
	d.heaps = append(d.heaps, h)
	return h, nil
}

// DescriptorIncrement implements driver.Device.
func (d *Device) DescriptorIncrement(driver.HeapType) uint32 { return descriptorSize }

// CreateResource implements driver.Device. hal tracks no initial state;
// the first barrier transitions from whatever usage initial implies.
func (d *Device) CreateResource(desc *driver.ResourceDesc, _ driver.ResourceState, name string) (driver.Resource, error) {
	if err := d.alive(); err != nil {
		return nil, err
	}
	if desc.IsBuffer() {
		buf, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
			Label: name,
			Size:  desc.Width,
			Usage: bufferUsage(desc.Usage),
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu: create buffer %q: %w", name, err)
		}
		return &Buffer{dev: d, native: buf, desc: *desc}, nil
	}

	tex, err := d.hal.CreateTexture(&hal.TextureDescriptor{
		Label: name,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),
			Height:             desc.Height,
			DepthOrArrayLayers: desc.DepthOrArraySize,
		},
		MipLevelCount: desc.MipLevels,
		SampleCount:   desc.SampleCount,
		Dimension:     textureDimension(desc.Dimension),
		Format:        desc.Format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture %q: %w", name, err)
	}
	return &Texture{dev: d, native: tex, desc: *desc}, nil
}

// CreateView implements driver.Device.
func (d *Device) CreateView(res driver.Resource, view *driver.ViewDesc, dst uint64) error {
	h, i, err := d.locate(dst)
	if err != nil {
		return err
	}

	var slot Descriptor
	switch r := res.(type) {
	case *Texture:
		tv, err := d.hal.CreateTextureView(r.native, &hal.TextureViewDescriptor{
			Label:     view.Kind.String(),
			Format:    view.Format,
			Dimension: view.Dimension,
		})
		if err != nil {
			return fmt.Errorf("wgpu: create %v view: %w", view.Kind, err)
		}
		slot = Descriptor{Kind: view.Kind, Texture: r.native, View: tv}
	case *Buffer:
		slot = Descriptor{Kind: view.Kind, Buffer: r.native}
		if view.Kind == driver.ViewCBV {
			slot.Size = uint64(view.SizeBytes)
		} else {
			slot.Offset = view.FirstElement * uint64(view.StrideBytes)
			slot.Size = uint64(view.NumElements) * uint64(view.StrideBytes)
		}
	case nil:
		return fmt.Errorf("wgpu: %v view of a nil resource", view.Kind)
	default:
		return fmt.Errorf("wgpu: resource %T does not belong to this driver", res)
	}

	h.store(i, slot, true)
	return nil
}

// CopyDescriptors implements driver.Device.
func (d *Device) CopyDescriptors(dst, src uint64, count uint32, _ driver.HeapType) {
	for n := range uint64(count) {
		sh, si, err := d.locate(src + n*descriptorSize)
		if err != nil {
			panic(err)
		}
		dh, di, err := d.locate(dst + n*descriptorSize)
		if err != nil {
			panic(err)
		}
		dh.store(di, sh.load(si), false)
	}
}

// Descriptor returns what the descriptor at handle h refers to. h may be a
// CPU or a GPU handle.
func (d *Device) Descriptor(h uint64) (Descriptor, error) {
	heap, i, err := d.locate(h)
	if err != nil {
		return Descriptor{}, err
	}
	return heap.load(i), nil
}

// locate returns the heap and slot index of a handle.
func (d *Device) locate(h uint64) (*Heap, uint32, error) {
	h &^= gpuBit
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, heap := range d.heaps {
		if h < heap.base || heap.destroyed.Load() {
			continue
		}
		off := h - heap.base
		if off%descriptorSize == 0 && off/descriptorSize < uint64(heap.desc.Capacity) {
			return heap, uint32(off / descriptorSize), nil
		}
	}
	return nil, 0, fmt.Errorf("wgpu: handle %#x is not in a live descriptor heap", h)
}

// Destroy implements driver.Device. The hal device stays alive.
func (d *Device) Destroy() {
	d.mu.Lock()
	heaps := d.heaps
	d.heaps = nil
	d.destroyed = true
	d.mu.Unlock()

	for _, h := range heaps {
		h.Destroy()
	}
}

func (d *Device) alive() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}
	return nil
}
