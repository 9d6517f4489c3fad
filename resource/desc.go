package resource

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/verify"
)

// TexOption configures a texture description.
type TexOption func(*driver.ResourceDesc)

// WithMips sets the mip level count.
func WithMips(n uint32) TexOption {
	return func(d *driver.ResourceDesc) { d.MipLevels = n }
}

// WithArraySize sets the array layer count.
func WithArraySize(n uint32) TexOption {
	return func(d *driver.ResourceDesc) { d.DepthOrArraySize = n }
}

// WithSamples sets the sample count.
func WithSamples(n uint32) TexOption {
	return func(d *driver.ResourceDesc) { d.SampleCount = n }
}

// Tex2D describes a single-level, single-sample 2D texture.
func Tex2D(format gputypes.TextureFormat, width, height uint32, usage driver.Usage, opts ...TexOption) driver.ResourceDesc {
	d := driver.ResourceDesc{
		Dimension:        driver.DimensionTexture2D,
		Width:            uint64(width),
		Height:           height,
		DepthOrArraySize: 1,
		MipLevels:        1,
		SampleCount:      1,
		Format:           format,
		Usage:            usage,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Tex3D describes a single-level 3D texture.
func Tex3D(format gputypes.TextureFormat, width, height, depth uint32, usage driver.Usage, opts ...TexOption) driver.ResourceDesc {
	d := Tex2D(format, width, height, usage, opts...)
	d.Dimension = driver.DimensionTexture3D
	d.DepthOrArraySize = depth
	return d
}

// BufferDesc describes a buffer of size bytes.
func BufferDesc(size uint64, usage driver.Usage) driver.ResourceDesc {
	return driver.ResourceDesc{
		Dimension:        driver.DimensionBuffer,
		Width:            size,
		Height:           1,
		DepthOrArraySize: 1,
		MipLevels:        1,
		SampleCount:      1,
		Format:           gputypes.TextureFormatUndefined,
		Usage:            usage,
	}
}

// textureOnly lists usages that only make sense on textures.
const textureOnly = driver.UsageRenderTarget | driver.UsageDepthStencil

// bufferOnly lists usages that only make sense on buffers.
const bufferOnly = driver.UsageVertex | driver.UsageIndex | driver.UsageConstant | driver.UsageIndirect

// validate panics when d cannot describe a real allocation.
func validate(d *driver.ResourceDesc) {
	verify.That(d != nil, "resource: nil description")
	verify.That(d.Width > 0, "resource: %v with zero width", d.Dimension)

	if d.IsBuffer() {
		verify.That(d.Format == gputypes.TextureFormatUndefined, "resource: buffer with texel format %v", d.Format)
		verify.That(d.Usage&textureOnly == 0, "resource: buffer with texture-only usage 0x%x", uint32(d.Usage&textureOnly))
		return
	}

	switch d.Dimension {
	case driver.DimensionTexture1D, driver.DimensionTexture2D, driver.DimensionTexture3D:
	default:
		verify.Fail("resource: unknown dimension %v", d.Dimension)
	}
	verify.That(d.Height > 0 && d.DepthOrArraySize > 0, "resource: %v with zero height or depth", d.Dimension)
	verify.That(d.MipLevels > 0, "resource: %v with zero mip levels", d.Dimension)
	verify.That(d.SampleCount > 0, "resource: %v with zero samples", d.Dimension)
	verify.That(d.Format != gputypes.TextureFormatUndefined, "resource: %v without a format", d.Dimension)
	verify.That(d.Usage&bufferOnly == 0, "resource: texture with buffer-only usage 0x%x", uint32(d.Usage&bufferOnly))

	depth := d.Format.IsDepthStencil()
	verify.That(!d.Usage.Has(driver.UsageDepthStencil) || depth, "resource: depth usage on color format %v", d.Format)
	verify.That(!d.Usage.Has(driver.UsageRenderTarget) || !depth, "resource: render target usage on depth format %v", d.Format)
	verify.That(!d.Usage.Has(driver.UsageUnorderedAccess) || d.SampleCount == 1, "resource: unordered access on multisampled texture")
}

// requireSimpleView panics for textures whose views are not implemented.
func requireSimpleView(d *driver.ResourceDesc, kind driver.ViewKind) {
	verify.That(d.Dimension == driver.DimensionTexture2D, "resource: %v view of %v texture is not implemented", kind, d.Dimension)
	verify.That(d.DepthOrArraySize == 1, "resource: %v view of texture array is not implemented", kind)
	verify.That(d.MipLevels == 1, "resource: %v view of mipped texture is not implemented", kind)
	verify.That(d.SampleCount == 1, "resource: %v view of multisampled texture is not implemented", kind)
}
