// Command rcdemo runs a few frames through rendercore on a hal device and
// prints what the core did.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/driver/wgpu"
	"github.com/gogpu/rendercore/frame"
	"github.com/gogpu/rendercore/resource"
)

func main() {
	var (
		frames   = flag.Int("frames", 8, "number of frames to run")
		inFlight = flag.Int("inflight", 2, "frames in flight")
		width    = flag.Int("width", 1280, "back buffer width")
		height   = flag.Int("height", 720, "back buffer height")
		debug    = flag.Bool("debug", false, "log every barrier")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	rendercore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		log.Fatalf("Failed to create instance: %v", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		log.Fatal("No adapter")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer open.Device.Destroy()

	device := wgpu.New(open.Device, open.Queue)
	defer device.Destroy()

	if err := run(device, *frames, *inFlight, uint32(*width), uint32(*height)); err != nil {
		log.Fatal(err)
	}
}

func run(device driver.Device, frames, inFlight int, w, h uint32) error {
	env, err := rendercore.NewEnv(device)
	if err != nil {
		return err
	}
	defer env.Close()

	var backBuffers []*resource.Resource
	for _, name := range []string{"backbuffer0", "backbuffer1"} {
		desc := resource.Tex2D(gputypes.TextureFormatBGRA8Unorm, w, h, driver.UsageRenderTarget)
		bb, err := resource.New(device, &desc, driver.StatePresent, name)
		if err != nil {
			return err
		}
		defer bb.Release()
		backBuffers = append(backBuffers, bb)
	}

	gbufDesc := resource.Tex2D(gputypes.TextureFormatRGBA8Unorm, w, h,
		driver.UsageRenderTarget|driver.UsageShaderRead|driver.UsageUnorderedAccess)
	gbuffer, err := env.NewColorTexture(&gbufDesc, driver.StateCommon, "gbuffer")
	if err != nil {
		return err
	}
	defer gbuffer.Release()

	depthDesc := resource.Tex2D(gputypes.TextureFormatDepth24PlusStencil8, w, h, driver.UsageDepthStencil|driver.UsageShaderRead)
	depth, err := env.NewDepthTexture(&depthDesc, driver.StateDepthWrite, "depth")
	if err != nil {
		return err
	}
	defer depth.Release()

	ring, err := env.NewRing(frame.RingConfig{FramesInFlight: inFlight, BackBuffers: backBuffers})
	if err != nil {
		return err
	}
	defer ring.Close()

	passes := []frame.Pass{
		frame.PassFunc("geometry", func(_ context.Context, rc *frame.RecordContext) error {
			rc.List.Require(gbuffer.Resource, driver.StateRenderTarget)
			rc.List.Require(depth.Resource, driver.StateDepthWrite)
			return nil
		}),
		frame.PassFunc("blur", func(_ context.Context, rc *frame.RecordContext) error {
			rc.List.Require(gbuffer.Resource, driver.StateUnorderedAccess)
			rc.Table.Stage(gbuffer.UAV())
			return nil
		}),
		frame.PassFunc("composite", func(_ context.Context, rc *frame.RecordContext) error {
			rc.List.Require(gbuffer.Resource, driver.StatePixelShaderResource)
			rc.List.Require(depth.Resource, driver.StateDepthRead|driver.StatePixelShaderResource)
			rc.List.Require(rc.BackBuffer, driver.StateRenderTarget)
			rc.Table.Stage(gbuffer.SRV(), depth.SRV())
			return nil
		}),
	}

	ctx := context.Background()
	for range frames {
		f, err := ring.Begin()
		if err != nil {
			return err
		}
		if err := f.Record(ctx, passes...); err != nil {
			f.Abort()
			return err
		}
		if _, err := f.Submit(); err != nil {
			return err
		}
	}

	log.Printf("%v", ring.Stats())
	log.Printf("%v", env.Stats())
	return nil
}
