// Package driver defines the native GPU seam used by rendercore.
//
// The interfaces are deliberately close to an explicit, D3D12-style API:
// separate command allocators and command lists, explicit transition
// barriers, monotonic fences and fixed-size descriptor heaps. Every method
// maps to one native call. Implementations live in sub-packages
// (see driver/wgpu); tests use internal/drivertest.
//
// Nothing in this package tracks state. Resource states are tracked by the
// resource and transition packages, and only passed down to the driver as
// explicit Barrier values.
package driver

import (
	"errors"
	"time"

	"github.com/gogpu/gputypes"
)

// Driver errors.
var (
	// ErrUnsupported is returned when a backend cannot express an operation.
	ErrUnsupported = errors.New("driver: operation not supported by backend")

	// ErrDeviceLost is returned when the device stopped accepting work.
	ErrDeviceLost = errors.New("driver: device lost")
)

// Infinite is the timeout used for unbounded fence waits.
const Infinite time.Duration = 1<<63 - 1

// Device creates native objects.
type Device interface {
	// CreateCommandQueue creates a queue that executes lists of the given kind.
	CreateCommandQueue(kind ListKind) (Queue, error)

	// CreateCommandAllocator creates the backing memory for recorded commands.
	CreateCommandAllocator(kind ListKind) (CommandAllocator, error)

	// CreateCommandList creates a list in the recording state, backed by alloc.
	CreateCommandList(kind ListKind, alloc CommandAllocator, name string) (CommandList, error)

	// CreateFence creates a fence whose completed value starts at initial.
	CreateFence(initial uint64) (Fence, error)

	// CreateDescriptorHeap creates a fixed-size descriptor table.
	CreateDescriptorHeap(desc HeapDesc) (DescriptorHeap, error)

	// DescriptorIncrement returns the distance between two consecutive
	// handles of a heap type.
	DescriptorIncrement(t HeapType) uint32

	// CreateResource allocates a buffer or texture in the initial state.
	CreateResource(desc *ResourceDesc, initial ResourceState, name string) (Resource, error)

	// CreateView writes a view of res into the CPU descriptor slot dst.
	CreateView(res Resource, view *ViewDesc, dst uint64) error

	// CopyDescriptors copies count consecutive CPU descriptors from src to dst.
	CopyDescriptors(dst, src uint64, count uint32, t HeapType)

	// Destroy releases the device.
	Destroy()
}

// Queue executes closed command lists in submission order.
type Queue interface {
	// ExecuteCommandLists submits lists in order in one native call.
	ExecuteCommandLists(lists []CommandList) error

	// Signal enqueues a GPU-side write of value into f after all previously
	// submitted work.
	Signal(f Fence, value uint64) error

	// Destroy releases the queue.
	Destroy()
}

// Fence is a monotonically increasing counter written by the GPU.
type Fence interface {
	// CompletedValue returns the last value known to be reached.
	CompletedValue() uint64

	// Signal sets the fence value from the CPU side.
	Signal(value uint64) error

	// Wait blocks until the fence reaches value or timeout elapses.
	// It reports whether the value was reached. A zero timeout polls.
	Wait(value uint64, timeout time.Duration) (bool, error)

	// Destroy releases the fence.
	Destroy()
}

// CommandAllocator is the backing memory of recorded commands.
// It may only be reset once the GPU finished every list recorded into it.
type CommandAllocator interface {
	// Reset reclaims the memory of every list recorded into the allocator.
	Reset() error

	// SetName sets a debug name.
	SetName(name string)

	// Destroy releases the allocator.
	Destroy()
}

// CommandList is a stream of recorded commands.
type CommandList interface {
	// Reset starts recording again, backed by alloc.
	Reset(alloc CommandAllocator, name string) error

	// ResourceBarrier records transition barriers.
	ResourceBarrier(barriers []Barrier)

	// CopyBufferRegion copies size bytes between two buffers.
	CopyBufferRegion(dst Resource, dstOffset uint64, src Resource, srcOffset, size uint64)

	// Close ends recording. A closed list may be executed.
	Close() error

	// SetName sets a debug name.
	SetName(name string)

	// Destroy releases the list.
	Destroy()
}

// Resource is an allocated buffer or texture.
type Resource interface {
	// Desc returns the description the resource was created with.
	Desc() *ResourceDesc

	// Destroy releases the GPU memory.
	Destroy()
}

// DescriptorHeap is a fixed-size table of descriptor slots.
type DescriptorHeap interface {
	// Desc returns the description the heap was created with.
	Desc() HeapDesc

	// CPUStart returns the CPU handle of slot 0.
	CPUStart() uint64

	// GPUStart returns the GPU handle of slot 0. It is zero for heaps
	// that are not shader visible.
	GPUStart() uint64

	// Destroy releases the heap.
	Destroy()
}

// ListKind selects the engine a command list targets.
type ListKind uint8

// List kinds.
const (
	ListDirect ListKind = iota
	ListCompute
	ListCopy
)

// String returns the list kind name.
func (k ListKind) String() string {
	switch k {
	case ListDirect:
		return "Direct"
	case ListCompute:
		return "Compute"
	case ListCopy:
		return "Copy"
	default:
		return "Unknown"
	}
}

// AllSubresources selects every subresource of a resource in a Barrier.
const AllSubresources = ^uint32(0)

// Barrier is a transition barrier for one resource.
type Barrier struct {
	Resource    Resource
	Subresource uint32
	Before      ResourceState
	After       ResourceState
}

// Dimension is the shape of a resource.
type Dimension uint8

// Resource dimensions.
const (
	DimensionUnknown Dimension = iota
	DimensionBuffer
	DimensionTexture1D
	DimensionTexture2D
	DimensionTexture3D
)

// String returns the dimension name.
func (d Dimension) String() string {
	switch d {
	case DimensionBuffer:
		return "Buffer"
	case DimensionTexture1D:
		return "Texture1D"
	case DimensionTexture2D:
		return "Texture2D"
	case DimensionTexture3D:
		return "Texture3D"
	default:
		return "Unknown"
	}
}

// Usage declares how a resource is going to be used. It both drives native
// allocation and decides the legal read and write states of the resource.
type Usage uint32

// Usage flags.
const (
	UsageRenderTarget Usage = 1 << iota
	UsageDepthStencil
	UsageShaderRead
	UsageUnorderedAccess
	UsageVertex
	UsageIndex
	UsageConstant
	UsageIndirect
	UsageCopySrc
	UsageCopyDst
)

// Has reports whether every flag of f is set in u.
func (u Usage) Has(f Usage) bool { return u&f == f }

// ResourceDesc describes a buffer or texture allocation.
type ResourceDesc struct {
	Dimension Dimension

	// Width is the byte size for buffers and the texel width for textures.
	Width uint64

	Height           uint32
	DepthOrArraySize uint32
	MipLevels        uint32
	SampleCount      uint32

	// Format is the texel format. It is TextureFormatUndefined for buffers.
	Format gputypes.TextureFormat

	Usage Usage
}

// IsBuffer reports whether the description is a buffer.
func (d *ResourceDesc) IsBuffer() bool { return d.Dimension == DimensionBuffer }

// HeapType selects the kind of descriptors a heap stores.
type HeapType uint8

// Heap types.
const (
	HeapCBVSRVUAV HeapType = iota
	HeapSampler
	HeapRTV
	HeapDSV
)

// String returns the heap type name.
func (t HeapType) String() string {
	switch t {
	case HeapCBVSRVUAV:
		return "CBV_SRV_UAV"
	case HeapSampler:
		return "Sampler"
	case HeapRTV:
		return "RTV"
	case HeapDSV:
		return "DSV"
	default:
		return "Unknown"
	}
}

// HeapDesc describes a descriptor heap.
type HeapDesc struct {
	Type          HeapType
	Capacity      uint32
	ShaderVisible bool
}

// ViewKind is the kind of a descriptor.
type ViewKind uint8

// View kinds.
const (
	ViewSRV ViewKind = iota
	ViewUAV
	ViewCBV
	ViewRTV
	ViewDSV
)

// String returns the view kind name.
func (k ViewKind) String() string {
	switch k {
	case ViewSRV:
		return "SRV"
	case ViewUAV:
		return "UAV"
	case ViewCBV:
		return "CBV"
	case ViewRTV:
		return "RTV"
	case ViewDSV:
		return "DSV"
	default:
		return "Unknown"
	}
}

// HeapType returns the heap type views of kind k are written into.
func (k ViewKind) HeapType() HeapType {
	switch k {
	case ViewRTV:
		return HeapRTV
	case ViewDSV:
		return HeapDSV
	default:
		return HeapCBVSRVUAV
	}
}

// ViewDesc describes a descriptor.
type ViewDesc struct {
	Kind   ViewKind
	Format gputypes.TextureFormat

	// Dimension is the view dimension for texture views.
	Dimension gputypes.TextureViewDimension

	// Buffer views.
	FirstElement uint64
	NumElements  uint32
	StrideBytes  uint32

	// SizeBytes is the byte size of a constant buffer view.
	SizeBytes uint32
}
