package resource

import (
	"fmt"

	"github.com/gogpu/rendercore/descriptor"
	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/verify"
)

// ConstantAlignment is the byte alignment of constant buffer views.
const ConstantAlignment = 256

// rawStride is the element size of buffer views without a structure stride.
const rawStride = 4

// IndexFormat is the element type of an index buffer.
type IndexFormat uint8

// Index formats.
const (
	IndexUint16 IndexFormat = iota
	IndexUint32
)

// Size returns the byte size of one index.
func (f IndexFormat) Size() uint32 {
	if f == IndexUint16 {
		return 2
	}
	return 4
}

// BufferOption configures buffer views.
type BufferOption func(*bufferOptions)

type bufferOptions struct {
	stride uint32
}

// WithStride sets the element stride of shader resource and unordered
// access views. Without it views address 32-bit elements.
func WithStride(n uint32) BufferOption {
	return func(o *bufferOptions) { o.stride = n }
}

// VertexView describes a buffer bound as vertex input.
type VertexView struct {
	Resource *Resource
	Offset   uint64
	Size     uint64
	Stride   uint32
}

// IndexView describes a buffer bound as index input.
type IndexView struct {
	Resource *Resource
	Offset   uint64
	Size     uint64
	Format   IndexFormat
}

// Buffer is a buffer with its shader resource, unordered access and
// constant buffer views.
type Buffer struct {
	*Resource

	stride uint32
	srv    descriptor.Handle
	uav    descriptor.Handle
	cbv    descriptor.Handle
}

// NewBuffer creates a buffer and the views its usage calls for.
func NewBuffer(device driver.Device, heaps ViewHeaps, desc *driver.ResourceDesc, initial driver.ResourceState, name string, opts ...BufferOption) (*Buffer, error) {
	verify.That(desc != nil && desc.IsBuffer(), "resource: buffer %q needs a buffer description", name)

	o := bufferOptions{stride: rawStride}
	for _, opt := range opts {
		opt(&o)
	}
	verify.That(o.stride > 0 && desc.Width%uint64(o.stride) == 0,
		"resource: buffer %q of %d bytes is not a multiple of stride %d", name, desc.Width, o.stride)

	r, err := New(device, desc, initial, name)
	if err != nil {
		return nil, err
	}
	b := &Buffer{Resource: r, stride: o.stride}

	elements := desc.Width / uint64(o.stride)
	verify.That(elements <= 1<<32-1, "resource: buffer %q has too many elements for a view", name)

	if desc.Usage.Has(driver.UsageShaderRead) {
		if b.srv, err = heaps.createView(device, r, &driver.ViewDesc{
			Kind:        driver.ViewSRV,
			NumElements: uint32(elements),
			StrideBytes: o.stride,
		}); err != nil {
			r.Release()
			return nil, wrapView(name, driver.ViewSRV, err)
		}
	}
	if desc.Usage.Has(driver.UsageUnorderedAccess) {
		if b.uav, err = heaps.createView(device, r, &driver.ViewDesc{
			Kind:        driver.ViewUAV,
			NumElements: uint32(elements),
			StrideBytes: o.stride,
		}); err != nil {
			r.Release()
			return nil, wrapView(name, driver.ViewUAV, err)
		}
	}
	if desc.Usage.Has(driver.UsageConstant) {
		size := alignUp(desc.Width, ConstantAlignment)
		verify.That(size <= 1<<16, "resource: constant buffer %q of %d bytes exceeds 64KiB", name, desc.Width)
		if b.cbv, err = heaps.createView(device, r, &driver.ViewDesc{
			Kind:      driver.ViewCBV,
			SizeBytes: uint32(size),
		}); err != nil {
			r.Release()
			return nil, wrapView(name, driver.ViewCBV, err)
		}
	}
	return b, nil
}

// Size returns the byte size.
func (b *Buffer) Size() uint64 { return b.desc.Width }

// Stride returns the view element stride.
func (b *Buffer) Stride() uint32 { return b.stride }

// SRV returns the shader resource view. It panics without shader read usage.
func (b *Buffer) SRV() descriptor.Handle {
	verify.That(!b.srv.IsZero(), "resource: %q has no shader resource view", b.name)
	return b.srv
}

// UAV returns the unordered access view. It panics without unordered access usage.
func (b *Buffer) UAV() descriptor.Handle {
	verify.That(!b.uav.IsZero(), "resource: %q has no unordered access view", b.name)
	return b.uav
}

// CBV returns the constant buffer view. It panics without constant usage.
func (b *Buffer) CBV() descriptor.Handle {
	verify.That(!b.cbv.IsZero(), "resource: %q has no constant buffer view", b.name)
	return b.cbv
}

// VertexView returns the whole buffer viewed as vertices of stride bytes.
func (b *Buffer) VertexView(stride uint32) VertexView {
	verify.That(b.desc.Usage.Has(driver.UsageVertex), "resource: %q has no vertex usage", b.name)
	verify.That(stride > 0, "resource: vertex view of %q with zero stride", b.name)
	return VertexView{Resource: b.Resource, Size: b.desc.Width, Stride: stride}
}

// IndexView returns the whole buffer viewed as indices of format f.
func (b *Buffer) IndexView(f IndexFormat) IndexView {
	verify.That(b.desc.Usage.Has(driver.UsageIndex), "resource: %q has no index usage", b.name)
	return IndexView{Resource: b.Resource, Size: b.desc.Width, Format: f}
}

// Count returns the number of indices in the view.
func (v IndexView) Count() uint32 {
	return uint32(v.Size / uint64(v.Format.Size()))
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

func wrapView(name string, kind driver.ViewKind, err error) error {
	return fmt.Errorf("resource: create %v for %q: %w", kind, name, err)
}
