package wgpu

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/driver"
)

func TestTextureStateUsage(t *testing.T) {
	tests := []struct {
		state driver.ResourceState
		want  gputypes.TextureUsage
	}{
		{driver.StateCommon, 0},
		{driver.StateRenderTarget, gputypes.TextureUsageRenderAttachment},
		{driver.StateDepthWrite, gputypes.TextureUsageRenderAttachment},
		{driver.StateDepthRead | driver.StatePixelShaderResource, gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding},
		{driver.StateShaderResource, gputypes.TextureUsageTextureBinding},
		{driver.StateNonPixelShaderResource, gputypes.TextureUsageTextureBinding},
		{driver.StateUnorderedAccess, gputypes.TextureUsageStorageBinding},
		{driver.StateCopySource, gputypes.TextureUsageCopySrc},
		{driver.StateCopyDest, gputypes.TextureUsageCopyDst},
	}
	for _, tt := range tests {
		if got := textureStateUsage(tt.state); got != tt.want {
			t.Errorf("textureStateUsage(%v) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestBufferStateUsage(t *testing.T) {
	tests := []struct {
		state driver.ResourceState
		want  gputypes.BufferUsage
	}{
		{driver.StateCommon, 0},
		{driver.StateVertexAndConstantBuffer, gputypes.BufferUsageVertex | gputypes.BufferUsageUniform},
		{driver.StateIndexBuffer, gputypes.BufferUsageIndex},
		{driver.StateIndirectArgument, gputypes.BufferUsageIndirect},
		{driver.StateShaderResource, gputypes.BufferUsageStorage},
		{driver.StateUnorderedAccess, gputypes.BufferUsageStorage},
		{driver.StateCopySource | driver.StateIndexBuffer, gputypes.BufferUsageCopySrc | gputypes.BufferUsageIndex},
		{driver.StateCopyDest, gputypes.BufferUsageCopyDst},
	}
	for _, tt := range tests {
		if got := bufferStateUsage(tt.state); got != tt.want {
			t.Errorf("bufferStateUsage(%v) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestAllocationUsage(t *testing.T) {
	if got, want := textureUsage(driver.UsageDepthStencil|driver.UsageShaderRead),
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding; got != want {
		t.Errorf("textureUsage(depth|read) = %v, want %v", got, want)
	}
	if got, want := textureUsage(driver.UsageUnorderedAccess|driver.UsageCopyDst),
		gputypes.TextureUsageStorageBinding|gputypes.TextureUsageCopyDst; got != want {
		t.Errorf("textureUsage(uav|copydst) = %v, want %v", got, want)
	}
	if got, want := bufferUsage(driver.UsageConstant|driver.UsageIndex|driver.UsageUnorderedAccess),
		gputypes.BufferUsageUniform|gputypes.BufferUsageIndex|gputypes.BufferUsageStorage; got != want {
		t.Errorf("bufferUsage(cbv|index|uav) = %v, want %v", got, want)
	}
	if got := bufferUsage(driver.UsageIndirect | driver.UsageVertex); got != gputypes.BufferUsageIndirect|gputypes.BufferUsageVertex {
		t.Errorf("bufferUsage(indirect|vertex) = %v", got)
	}
}

func TestTextureDimension(t *testing.T) {
	tests := map[driver.Dimension]gputypes.TextureDimension{
		driver.DimensionTexture1D: gputypes.TextureDimension1D,
		driver.DimensionTexture2D: gputypes.TextureDimension2D,
		driver.DimensionTexture3D: gputypes.TextureDimension3D,
	}
	for d, want := range tests {
		if got := textureDimension(d); got != want {
			t.Errorf("textureDimension(%v) = %v, want %v", d, got, want)
		}
	}
}
