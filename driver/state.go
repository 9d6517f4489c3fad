package driver

import (
	"fmt"
	"math/bits"
	"strings"
)

// ResourceState is the hardware-visible mode a GPU resource is usable in.
//
// The bit values follow the D3D12_RESOURCE_STATES layout so a native
// backend can pass them through untouched. Read states may be combined;
// a write state must always appear on its own.
type ResourceState uint32

// Resource states.
const (
	// StateCommon is the state every resource may decay to. It is also the
	// state required for presentation.
	StateCommon ResourceState = 0

	// StateVertexAndConstantBuffer is used when a buffer is read as vertex
	// or constant data.
	StateVertexAndConstantBuffer ResourceState = 0x1

	// StateIndexBuffer is used when a buffer is read as index data.
	StateIndexBuffer ResourceState = 0x2

	// StateRenderTarget is used when a texture is written as a color attachment.
	StateRenderTarget ResourceState = 0x4

	// StateUnorderedAccess is used for shader read/write access.
	StateUnorderedAccess ResourceState = 0x8

	// StateDepthWrite is used when depth/stencil is written.
	StateDepthWrite ResourceState = 0x10

	// StateDepthRead is used when depth/stencil is tested but not written.
	StateDepthRead ResourceState = 0x20

	// StateNonPixelShaderResource is used for reads from non-pixel stages.
	StateNonPixelShaderResource ResourceState = 0x40

	// StatePixelShaderResource is used for reads from the pixel stage.
	StatePixelShaderResource ResourceState = 0x80

	// StateIndirectArgument is used when a buffer feeds indirect draws or dispatches.
	StateIndirectArgument ResourceState = 0x200

	// StateCopyDest is used when a resource is the destination of a copy.
	StateCopyDest ResourceState = 0x400

	// StateCopySource is used when a resource is the source of a copy.
	StateCopySource ResourceState = 0x800

	// StatePresent is an alias of StateCommon.
	StatePresent = StateCommon

	// StateShaderResource is the union of both shader read states.
	StateShaderResource = StateNonPixelShaderResource | StatePixelShaderResource

	// StateGenericRead is the union of all buffer-friendly read states.
	StateGenericRead = StateVertexAndConstantBuffer | StateIndexBuffer |
		StateNonPixelShaderResource | StatePixelShaderResource |
		StateIndirectArgument | StateCopySource
)

// writeStates contains every state that implies a GPU write.
const writeStates = StateRenderTarget | StateUnorderedAccess | StateDepthWrite | StateCopyDest

// readStates contains every state that implies a GPU read.
const readStates = StateGenericRead | StateDepthRead

// IsWrite reports whether s contains a write state.
func (s ResourceState) IsWrite() bool {
	return s&writeStates != 0
}

// IsRead reports whether s is a non-empty combination of read states only.
func (s ResourceState) IsRead() bool {
	return s != 0 && s&^readStates == 0
}

// Valid reports whether s is a combination the hardware accepts: either
// StateCommon, any union of read states, or exactly one write state.
func (s ResourceState) Valid() bool {
	switch {
	case s == StateCommon:
		return true
	case s.IsWrite():
		return bits.OnesCount32(uint32(s)) == 1
	default:
		return s.IsRead()
	}
}

// Contains reports whether every bit of other is set in s.
func (s ResourceState) Contains(other ResourceState) bool {
	return s&other == other
}

var stateNames = []struct {
	state ResourceState
	name  string
}{
	{StateVertexAndConstantBuffer, "VertexAndConstantBuffer"},
	{StateIndexBuffer, "IndexBuffer"},
	{StateRenderTarget, "RenderTarget"},
	{StateUnorderedAccess, "UnorderedAccess"},
	{StateDepthWrite, "DepthWrite"},
	{StateDepthRead, "DepthRead"},
	{StateNonPixelShaderResource, "NonPixelShaderResource"},
	{StatePixelShaderResource, "PixelShaderResource"},
	{StateIndirectArgument, "IndirectArgument"},
	{StateCopyDest, "CopyDest"},
	{StateCopySource, "CopySource"},
}

// String returns the state as a '|' separated list of names.
func (s ResourceState) String() string {
	if s == StateCommon {
		return "Common"
	}
	var parts []string
	rest := s
	for _, n := range stateNames {
		if s&n.state != 0 {
			parts = append(parts, n.name)
			rest &^= n.state
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}
