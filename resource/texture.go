package resource

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/descriptor"
	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/verify"
)

// ViewHeaps are the CPU-only heaps views are written into at creation.
// Only the heaps a resource's usage needs must be set.
type ViewHeaps struct {
	RTV       *descriptor.Heap
	DSV       *descriptor.Heap
	CBVSRVUAV *descriptor.Heap
}

// heap returns the heap for views of kind k.
func (h ViewHeaps) heap(k driver.ViewKind) *descriptor.Heap {
	switch k.HeapType() {
	case driver.HeapRTV:
		return h.RTV
	case driver.HeapDSV:
		return h.DSV
	default:
		return h.CBVSRVUAV
	}
}

// createView allocates a slot for view and writes it.
func (h ViewHeaps) createView(device driver.Device, r *Resource, view *driver.ViewDesc) (descriptor.Handle, error) {
	heap := h.heap(view.Kind)
	if heap == nil {
		return descriptor.Handle{}, ErrMissingHeap
	}
	verify.That(!heap.ShaderVisible(), "resource: %v views of %q must go into a CPU-only heap", view.Kind, r.name)
	slot := heap.Allocate()
	if err := device.CreateView(r.native, view, slot.CPU); err != nil {
		return descriptor.Handle{}, err
	}
	return slot, nil
}

// ColorTexture is a 2D color texture with its render target, shader
// resource and unordered access views.
type ColorTexture struct {
	*Resource

	rtv descriptor.Handle
	srv descriptor.Handle
	uav descriptor.Handle
}

// NewColorTexture creates a color texture and the views its usage calls for.
func NewColorTexture(device driver.Device, heaps ViewHeaps, desc *driver.ResourceDesc, initial driver.ResourceState, name string) (*ColorTexture, error) {
	verify.That(desc != nil && !desc.IsBuffer(), "resource: color texture %q needs a texture description", name)
	verify.That(!desc.Format.IsDepthStencil(), "resource: color texture %q with depth format %v", name, desc.Format)

	r, err := New(device, desc, initial, name)
	if err != nil {
		return nil, err
	}
	t := &ColorTexture{Resource: r}

	views := []struct {
		usage driver.Usage
		kind  driver.ViewKind
		dst   *descriptor.Handle
	}{
		{driver.UsageRenderTarget, driver.ViewRTV, &t.rtv},
		{driver.UsageShaderRead, driver.ViewSRV, &t.srv},
		{driver.UsageUnorderedAccess, driver.ViewUAV, &t.uav},
	}
	for _, v := range views {
		if !desc.Usage.Has(v.usage) {
			continue
		}
		requireSimpleView(desc, v.kind)
		h, err := heaps.createView(device, r, &driver.ViewDesc{
			Kind:      v.kind,
			Format:    desc.Format,
			Dimension: gputypes.TextureViewDimension2D,
		})
		if err != nil {
			r.Release()
			return nil, wrapView(name, v.kind, err)
		}
		*v.dst = h
	}
	return t, nil
}

// RTV returns the render target view. It panics without render target usage.
func (t *ColorTexture) RTV() descriptor.Handle {
	verify.That(!t.rtv.IsZero(), "resource: %q has no render target view", t.name)
	return t.rtv
}

// SRV returns the shader resource view. It panics without shader read usage.
func (t *ColorTexture) SRV() descriptor.Handle {
	verify.That(!t.srv.IsZero(), "resource: %q has no shader resource view", t.name)
	return t.srv
}

// UAV returns the unordered access view. It panics without unordered access usage.
func (t *ColorTexture) UAV() descriptor.Handle {
	verify.That(!t.uav.IsZero(), "resource: %q has no unordered access view", t.name)
	return t.uav
}

// DepthTexture is a 2D depth/stencil texture with its depth stencil and
// shader resource views.
type DepthTexture struct {
	*Resource

	dsv descriptor.Handle
	srv descriptor.Handle
}

// NewDepthTexture creates a depth texture and its views. The description
// must carry the depth stencil usage.
func NewDepthTexture(device driver.Device, heaps ViewHeaps, desc *driver.ResourceDesc, initial driver.ResourceState, name string) (*DepthTexture, error) {
	verify.That(desc != nil && !desc.IsBuffer(), "resource: depth texture %q needs a texture description", name)
	verify.That(desc.Usage.Has(driver.UsageDepthStencil), "resource: depth texture %q without depth stencil usage", name)

	r, err := New(device, desc, initial, name)
	if err != nil {
		return nil, err
	}
	t := &DepthTexture{Resource: r}

	requireSimpleView(desc, driver.ViewDSV)
	t.dsv, err = heaps.createView(device, r, &driver.ViewDesc{
		Kind:      driver.ViewDSV,
		Format:    desc.Format,
		Dimension: gputypes.TextureViewDimension2D,
	})
	if err != nil {
		r.Release()
		return nil, wrapView(name, driver.ViewDSV, err)
	}

	if desc.Usage.Has(driver.UsageShaderRead) {
		requireSimpleView(desc, driver.ViewSRV)
		t.srv, err = heaps.createView(device, r, &driver.ViewDesc{
			Kind:      driver.ViewSRV,
			Format:    desc.Format,
			Dimension: gputypes.TextureViewDimension2D,
		})
		if err != nil {
			r.Release()
			return nil, wrapView(name, driver.ViewSRV, err)
		}
	}
	return t, nil
}

// DSV returns the depth stencil view.
func (t *DepthTexture) DSV() descriptor.Handle { return t.dsv }

// SRV returns the shader resource view. It panics without shader read usage.
func (t *DepthTexture) SRV() descriptor.Handle {
	verify.That(!t.srv.IsZero(), "resource: %q has no shader resource view", t.name)
	return t.srv
}
