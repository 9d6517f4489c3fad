package descriptor

import "github.com/gogpu/rendercore/internal/verify"

// Stage allocates len(src) contiguous slots from h and copies the CPU
// descriptors src into them, in order. It returns the first slot, which is
// what a descriptor table binding points at.
//
// The source handles usually live in CPU-only heaps that hold the stable
// views of long-lived resources; h is usually a per-frame shader-visible
// heap.
func (h *Heap) Stage(src ...Handle) Handle {
	verify.That(len(src) > 0, "descriptor: staging an empty table")
	first := h.AllocateRange(uint32(len(src)))
	for i, s := range src {
		verify.That(!s.IsZero(), "descriptor: staging unallocated handle at table slot %d", i)
		h.device.CopyDescriptors(first.Offset(uint32(i)).CPU, s.CPU, 1, h.desc.Type)
	}
	return first
}
