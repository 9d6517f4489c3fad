package wgpu

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendercore/driver"
)

// Descriptor is the content of one descriptor slot.
type Descriptor struct {
	Kind driver.ViewKind

	// Texture and View are set for texture views.
	Texture hal.Texture
	View    hal.TextureView

	// Buffer, Offset and Size are set for buffer views.
	Buffer hal.Buffer
	Offset uint64
	Size   uint64
}

// IsZero reports whether the slot holds no descriptor.
func (d Descriptor) IsZero() bool { return d.View == nil && d.Buffer == nil }

// Heap is a host-side descriptor table.
//
// Views written with CreateView belong to the heap and are destroyed when
// their slot is overwritten or the heap is destroyed. Slots filled by
// CopyDescriptors only reference views owned elsewhere.
type Heap struct {
	dev  *Device
	desc driver.HeapDesc
	base uint64

	mu        sync.Mutex
	slots     []Descriptor
	owned     []bool
	destroyed atomic.Bool
}

// Desc implements driver.DescriptorHeap.
func (h *Heap) Desc() driver.HeapDesc { return h.desc }

// CPUStart implements driver.DescriptorHeap.
func (h *Heap) CPUStart() uint64 { return h.base }

// GPUStart implements driver.DescriptorHeap.
func (h *Heap) GPUStart() uint64 {
	if !h.desc.ShaderVisible {
		return 0
	}
	return h.base | gpuBit
}

func (h *Heap) load(i uint32) Descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slots[i]
}

func (h *Heap) store(i uint32, d Descriptor, owned bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owned == nil {
		h.owned = make([]bool, len(h.slots))
	}
	if h.owned[i] {
		h.release(h.slots[i])
	}
	h.slots[i] = d
	h.owned[i] = owned
}

func (h *Heap) release(d Descriptor) {
	if d.View != nil {
		h.dev.hal.DestroyTextureView(d.View)
	}
}

// Destroy implements driver.DescriptorHeap.
func (h *Heap) Destroy() {
	if h.destroyed.Swap(true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, own := range h.owned {
		if own {
			h.release(h.slots[i])
		}
	}
	h.slots = nil
	h.owned = nil
}
