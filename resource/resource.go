// Package resource wraps GPU buffers and textures together with their
// tracked hardware state.
//
// Every Resource caches the set of read states and write states its usage
// flags allow. Both sets are derived once at creation and never change. The
// current state is a plain field: it is read while passes declare what they
// need, and written only by transition resolution at submission time.
//
// Typed wrappers (ColorTexture, DepthTexture, Buffer) create the views the
// usage flags call for into CPU-only descriptor heaps at construction.
package resource

import (
	"errors"
	"fmt"

	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/verify"
)

// Resource errors.
var (
	// ErrNilDevice is returned when creating a resource without a device.
	ErrNilDevice = errors.New("resource: device is nil")

	// ErrMissingHeap is returned when a view is requested but the heap it
	// goes into was not provided.
	ErrMissingHeap = errors.New("resource: descriptor heap for view is nil")
)

// Resource is an allocated buffer or texture and its tracked state.
type Resource struct {
	native driver.Resource
	desc   driver.ResourceDesc
	name   string

	state      driver.ResourceState
	readState  driver.ResourceState
	writeState driver.ResourceState
}

// New allocates a resource in the initial state. An invalid description or
// an initial state the usage does not allow is a contract violation.
func New(device driver.Device, desc *driver.ResourceDesc, initial driver.ResourceState, name string) (*Resource, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	validate(desc)

	r := &Resource{desc: *desc, name: name}
	r.readState, r.writeState = LegalStates(desc.Usage)
	verify.That(r.IsLegal(initial), "resource: %q cannot start in %v (read %v, write %v)",
		name, initial, r.readState, r.writeState)

	native, err := device.CreateResource(&r.desc, initial, name)
	if err != nil {
		return nil, fmt.Errorf("resource: create %v %q: %w", desc.Dimension, name, err)
	}
	r.native = native
	r.state = initial
	return r, nil
}

// Wrap tracks a native resource created elsewhere, typically a swap-chain
// back buffer. The caller keeps ownership of the native object.
func Wrap(native driver.Resource, initial driver.ResourceState, name string) *Resource {
	desc := native.Desc()
	r := &Resource{native: native, desc: *desc, name: name}
	r.readState, r.writeState = LegalStates(desc.Usage)
	verify.That(r.IsLegal(initial), "resource: wrapped %q cannot be in %v", name, initial)
	r.state = initial
	return r
}

// LegalStates returns the read and write states implied by usage.
func LegalStates(usage driver.Usage) (read, write driver.ResourceState) {
	if usage.Has(driver.UsageShaderRead) {
		read |= driver.StateShaderResource
	}
	if usage.Has(driver.UsageDepthStencil) {
		read |= driver.StateDepthRead
		write |= driver.StateDepthWrite
	}
	if usage.Has(driver.UsageVertex) || usage.Has(driver.UsageConstant) {
		read |= driver.StateVertexAndConstantBuffer
	}
	if usage.Has(driver.UsageIndex) {
		read |= driver.StateIndexBuffer
	}
	if usage.Has(driver.UsageIndirect) {
		read |= driver.StateIndirectArgument
	}
	if usage.Has(driver.UsageCopySrc) {
		read |= driver.StateCopySource
	}
	if usage.Has(driver.UsageRenderTarget) {
		write |= driver.StateRenderTarget
	}
	if usage.Has(driver.UsageUnorderedAccess) {
		write |= driver.StateUnorderedAccess
	}
	if usage.Has(driver.UsageCopyDst) {
		write |= driver.StateCopyDest
	}
	return read, write
}

// Name returns the debug name.
func (r *Resource) Name() string { return r.name }

// Desc returns the creation description.
func (r *Resource) Desc() *driver.ResourceDesc { return &r.desc }

// Native returns the driver resource.
func (r *Resource) Native() driver.Resource { return r.native }

// LegalReadState returns every read state the resource supports.
func (r *Resource) LegalReadState() driver.ResourceState { return r.readState }

// LegalWriteState returns every write state the resource supports.
func (r *Resource) LegalWriteState() driver.ResourceState { return r.writeState }

// IsLegal reports whether s is a state the resource may be transitioned into.
// Common is always legal; any other state must be well formed and within the
// resource's read and write states.
func (r *Resource) IsLegal(s driver.ResourceState) bool {
	if s == driver.StateCommon {
		return true
	}
	return s.Valid() && s&^(r.readState|r.writeState) == 0
}

// State returns the tracked hardware state.
//
// The value is only meaningful between submissions: transition resolution
// updates it on the submitting goroutine.
func (r *Resource) State() driver.ResourceState { return r.state }

// SetState sets the tracked hardware state. It is reserved for transition
// resolution and the frame ring's present handling.
func (r *Resource) SetState(s driver.ResourceState) {
	verify.That(r.IsLegal(s), "resource: %q cannot be in %v (read %v, write %v)",
		r.name, s, r.readState, r.writeState)
	r.state = s
}

// Release destroys the native resource.
func (r *Resource) Release() {
	if r.native == nil {
		return
	}
	r.native.Destroy()
	r.native = nil
}

// String returns "name(state)".
func (r *Resource) String() string {
	return fmt.Sprintf("%s(%v)", r.name, r.state)
}
