package resource

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/drivertest"
)

func slotKind(t *testing.T, dev *drivertest.Device, cpu uint64) driver.ViewKind {
	t.Helper()
	slot, err := dev.Descriptor(cpu)
	if err != nil {
		t.Fatal(err)
	}
	if !slot.Written {
		t.Fatalf("slot 0x%x was never written", cpu)
	}
	return slot.View.Kind
}

func TestColorTextureViews(t *testing.T) {
	dev := drivertest.New()
	heaps := newHeaps(t, dev)
	desc := Tex2D(gputypes.TextureFormatRGBA8Unorm, 128, 128,
		driver.UsageRenderTarget|driver.UsageShaderRead|driver.UsageUnorderedAccess)

	tex, err := NewColorTexture(dev, heaps, &desc, driver.StateCommon, "hdr")
	if err != nil {
		t.Fatal(err)
	}
	if got := slotKind(t, dev, tex.RTV().CPU); got != driver.ViewRTV {
		t.Errorf("RTV slot kind = %v", got)
	}
	if got := slotKind(t, dev, tex.SRV().CPU); got != driver.ViewSRV {
		t.Errorf("SRV slot kind = %v", got)
	}
	if got := slotKind(t, dev, tex.UAV().CPU); got != driver.ViewUAV {
		t.Errorf("UAV slot kind = %v", got)
	}
	if heaps.RTV.Used() != 1 || heaps.CBVSRVUAV.Used() != 2 {
		t.Errorf("heap usage rtv=%d view=%d, want 1 and 2", heaps.RTV.Used(), heaps.CBVSRVUAV.Used())
	}
}

func TestColorTextureOnlyRequestedViews(t *testing.T) {
	dev := drivertest.New()
	heaps := newHeaps(t, dev)
	desc := Tex2D(gputypes.TextureFormatRGBA8Unorm, 16, 16, driver.UsageShaderRead|driver.UsageCopyDst)

	tex, err := NewColorTexture(dev, heaps, &desc, driver.StateCopyDest, "albedo")
	if err != nil {
		t.Fatal(err)
	}
	if heaps.RTV.Used() != 0 {
		t.Error("render target view created without render target usage")
	}
	mustPanic(t, "RTV() without usage", func() { tex.RTV() })
}

func TestColorTextureMissingHeap(t *testing.T) {
	dev := drivertest.New()
	desc := Tex2D(gputypes.TextureFormatRGBA8Unorm, 16, 16, driver.UsageRenderTarget)

	_, err := NewColorTexture(dev, ViewHeaps{}, &desc, driver.StateCommon, "rt")
	if !errors.Is(err, ErrMissingHeap) {
		t.Fatalf("error = %v, want ErrMissingHeap", err)
	}
	if !dev.Resources()[0].Destroyed {
		t.Error("resource leaked after failed view creation")
	}
}

func TestUnimplementedViewsPanic(t *testing.T) {
	tests := []struct {
		name string
		desc driver.ResourceDesc
	}{
		{"3d", Tex3D(gputypes.TextureFormatRGBA8Unorm, 8, 8, 8, driver.UsageShaderRead)},
		{"array", Tex2D(gputypes.TextureFormatRGBA8Unorm, 8, 8, driver.UsageShaderRead, WithArraySize(6))},
		{"mipped", Tex2D(gputypes.TextureFormatRGBA8Unorm, 8, 8, driver.UsageShaderRead, WithMips(4))},
		{"msaa", Tex2D(gputypes.TextureFormatRGBA8Unorm, 8, 8, driver.UsageRenderTarget, WithSamples(4))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := drivertest.New()
			heaps := newHeaps(t, dev)
			mustPanic(t, tt.name, func() {
				_, _ = NewColorTexture(dev, heaps, &tt.desc, driver.StateCommon, tt.name)
			})
		})
	}
}

func TestViewlessMippedTextureIsAllowed(t *testing.T) {
	dev := drivertest.New()
	desc := Tex2D(gputypes.TextureFormatRGBA8Unorm, 8, 8, driver.UsageCopyDst, WithMips(4))
	if _, err := NewColorTexture(dev, ViewHeaps{}, &desc, driver.StateCommon, "staging"); err != nil {
		t.Fatal(err)
	}
}

func TestDepthTexture(t *testing.T) {
	dev := drivertest.New()
	heaps := newHeaps(t, dev)
	desc := Tex2D(gputypes.TextureFormatDepth24PlusStencil8, 64, 64,
		driver.UsageDepthStencil|driver.UsageShaderRead)

	tex, err := NewDepthTexture(dev, heaps, &desc, driver.StateDepthWrite, "shadow")
	if err != nil {
		t.Fatal(err)
	}
	if got := slotKind(t, dev, tex.DSV().CPU); got != driver.ViewDSV {
		t.Errorf("DSV slot kind = %v", got)
	}
	if got := slotKind(t, dev, tex.SRV().CPU); got != driver.ViewSRV {
		t.Errorf("SRV slot kind = %v", got)
	}
	if !tex.IsLegal(driver.StateDepthRead | driver.StatePixelShaderResource) {
		t.Error("combined depth read and shader read should be legal")
	}
}

func TestDepthTextureWithoutDepthUsagePanics(t *testing.T) {
	dev := drivertest.New()
	desc := Tex2D(gputypes.TextureFormatDepth24PlusStencil8, 64, 64, driver.UsageShaderRead)
	mustPanic(t, "depth texture without depth usage", func() {
		_, _ = NewDepthTexture(dev, newHeaps(t, dev), &desc, driver.StateCommon, "d")
	})
}

func TestDepthFormats(t *testing.T) {
	formats := []gputypes.TextureFormat{
		gputypes.TextureFormatStencil8,
		gputypes.TextureFormatDepth16Unorm,
		gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth32Float,
		gputypes.TextureFormatDepth32FloatStencil8,
	}
	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			dev := drivertest.New()
			heaps := newHeaps(t, dev)

			desc := Tex2D(f, 32, 32, driver.UsageDepthStencil|driver.UsageShaderRead)
			tex, err := NewDepthTexture(dev, heaps, &desc, driver.StateDepthWrite, "depth")
			if err != nil {
				t.Fatal(err)
			}
			if got := slotKind(t, dev, tex.DSV().CPU); got != driver.ViewDSV {
				t.Errorf("DSV slot kind = %v", got)
			}

			color := Tex2D(f, 32, 32, driver.UsageShaderRead)
			mustPanic(t, "color texture with depth format", func() {
				_, _ = NewColorTexture(dev, heaps, &color, driver.StateCommon, "color")
			})
			rt := Tex2D(f, 32, 32, driver.UsageRenderTarget)
			mustPanic(t, "render target usage on depth format", func() {
				_, _ = New(dev, &rt, driver.StateCommon, "rt")
			})
		})
	}
}

func TestBufferViews(t *testing.T) {
	dev := drivertest.New()
	heaps := newHeaps(t, dev)
	desc := BufferDesc(1024, driver.UsageShaderRead|driver.UsageUnorderedAccess|driver.UsageConstant)

	buf, err := NewBuffer(dev, heaps, &desc, driver.StateCommon, "lights", WithStride(16))
	if err != nil {
		t.Fatal(err)
	}

	srv, err := dev.Descriptor(buf.SRV().CPU)
	if err != nil {
		t.Fatal(err)
	}
	if srv.View.NumElements != 64 || srv.View.StrideBytes != 16 {
		t.Errorf("SRV = %+v, want 64 elements of 16 bytes", srv.View)
	}
	if got := slotKind(t, dev, buf.UAV().CPU); got != driver.ViewUAV {
		t.Errorf("UAV slot kind = %v", got)
	}
	cbv, err := dev.Descriptor(buf.CBV().CPU)
	if err != nil {
		t.Fatal(err)
	}
	if cbv.View.SizeBytes != 1024 {
		t.Errorf("CBV size = %d, want 1024", cbv.View.SizeBytes)
	}
}

func TestConstantBufferSizeIsAligned(t *testing.T) {
	dev := drivertest.New()
	heaps := newHeaps(t, dev)
	desc := BufferDesc(100, driver.UsageConstant)

	buf, err := NewBuffer(dev, heaps, &desc, driver.StateCommon, "cb")
	if err != nil {
		t.Fatal(err)
	}
	cbv, _ := dev.Descriptor(buf.CBV().CPU)
	if cbv.View.SizeBytes != ConstantAlignment {
		t.Errorf("CBV size = %d, want %d", cbv.View.SizeBytes, ConstantAlignment)
	}
}

func TestBufferInputViews(t *testing.T) {
	dev := drivertest.New()
	desc := BufferDesc(600, driver.UsageVertex|driver.UsageIndex)
	buf, err := NewBuffer(dev, ViewHeaps{}, &desc, driver.StateCommon, "mesh")
	if err != nil {
		t.Fatal(err)
	}

	vv := buf.VertexView(24)
	if vv.Size != 600 || vv.Stride != 24 || vv.Resource != buf.Resource {
		t.Errorf("VertexView = %+v", vv)
	}
	if n := buf.IndexView(IndexUint16).Count(); n != 300 {
		t.Errorf("16-bit index count = %d, want 300", n)
	}
	if n := buf.IndexView(IndexUint32).Count(); n != 150 {
		t.Errorf("32-bit index count = %d, want 150", n)
	}
}

func TestBufferStrideMismatchPanics(t *testing.T) {
	dev := drivertest.New()
	desc := BufferDesc(100, driver.UsageShaderRead)
	mustPanic(t, "stride mismatch", func() {
		_, _ = NewBuffer(dev, newHeaps(t, dev), &desc, driver.StateCommon, "b", WithStride(16))
	})
}
