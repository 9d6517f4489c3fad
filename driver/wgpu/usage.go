package wgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/driver"
)

// textureUsage returns the hal allocation usage for a texture.
func textureUsage(u driver.Usage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u&(driver.UsageRenderTarget|driver.UsageDepthStencil) != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	if u.Has(driver.UsageShaderRead) {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u.Has(driver.UsageUnorderedAccess) {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u.Has(driver.UsageCopySrc) {
		out |= gputypes.TextureUsageCopySrc
	}
	if u.Has(driver.UsageCopyDst) {
		out |= gputypes.TextureUsageCopyDst
	}
	return out
}

// bufferUsage returns the hal allocation usage for a buffer.
func bufferUsage(u driver.Usage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u.Has(driver.UsageVertex) {
		out |= gputypes.BufferUsageVertex
	}
	if u.Has(driver.UsageIndex) {
		out |= gputypes.BufferUsageIndex
	}
	if u.Has(driver.UsageConstant) {
		out |= gputypes.BufferUsageUniform
	}
	if u.Has(driver.UsageIndirect) {
		out |= gputypes.BufferUsageIndirect
	}
	if u&(driver.UsageShaderRead|driver.UsageUnorderedAccess) != 0 {
		out |= gputypes.BufferUsageStorage
	}
	if u.Has(driver.UsageCopySrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if u.Has(driver.UsageCopyDst) {
		out |= gputypes.BufferUsageCopyDst
	}
	return out
}

// textureStateUsage maps a resource state to the hal usage a texture
// barrier transitions from or to. StateCommon maps to no usage, which hal
// treats as undefined contents or presentation.
func textureStateUsage(s driver.ResourceState) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if s.Contains(driver.StateRenderTarget) || s.Contains(driver.StateDepthWrite) || s.Contains(driver.StateDepthRead) {
		out |= gputypes.TextureUsageRenderAttachment
	}
	if s&driver.StateShaderResource != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if s.Contains(driver.StateUnorderedAccess) {
		out |= gputypes.TextureUsageStorageBinding
	}
	if s.Contains(driver.StateCopySource) {
		out |= gputypes.TextureUsageCopySrc
	}
	if s.Contains(driver.StateCopyDest) {
		out |= gputypes.TextureUsageCopyDst
	}
	return out
}

// bufferStateUsage maps a resource state to a hal buffer usage.
func bufferStateUsage(s driver.ResourceState) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if s.Contains(driver.StateVertexAndConstantBuffer) {
		out |= gputypes.BufferUsageVertex | gputypes.BufferUsageUniform
	}
	if s.Contains(driver.StateIndexBuffer) {
		out |= gputypes.BufferUsageIndex
	}
	if s.Contains(driver.StateIndirectArgument) {
		out |= gputypes.BufferUsageIndirect
	}
	if s&driver.StateShaderResource != 0 || s.Contains(driver.StateUnorderedAccess) {
		out |= gputypes.BufferUsageStorage
	}
	if s.Contains(driver.StateCopySource) {
		out |= gputypes.BufferUsageCopySrc
	}
	if s.Contains(driver.StateCopyDest) {
		out |= gputypes.BufferUsageCopyDst
	}
	return out
}

// textureDimension maps a resource dimension to a hal texture dimension.
func textureDimension(d driver.Dimension) gputypes.TextureDimension {
	switch d {
	case driver.DimensionTexture1D:
		return gputypes.TextureDimension1D
	case driver.DimensionTexture3D:
		return gputypes.TextureDimension3D
	default:
		return gputypes.TextureDimension2D
	}
}
