// Package rendercore is the resource-state and command-submission core of a
// renderer built on an explicit GPU API.
//
// # Overview
//
// The core tracks the current state of every GPU resource across frames and
// inserts the minimal set of transition barriers when command lists are
// submitted. Command lists only declare the state each resource must be in;
// they never change the tracked state themselves. Command allocators, command
// lists and descriptor slots are pooled and recycled once the GPU finished
// with them.
//
// # Quick Start
//
//	env, err := rendercore.NewEnv(device)
//	if err != nil {
//		return err
//	}
//	defer env.Close()
//
//	ring, err := env.NewRing(frame.RingConfig{BackBuffers: backBuffers})
//	if err != nil {
//		return err
//	}
//	defer ring.Close()
//
//	f, _ := ring.Begin()
//	_ = f.Record(ctx, shadowPass, opaquePass)
//	_, _ = f.Submit()
//
// # Architecture
//
// The module is organized into:
//   - driver: the native seam, with driver/wgpu over gogpu/wgpu's hal
//   - resource: buffers and textures with their legal states and views
//   - descriptor: bump-allocated descriptor heaps
//   - transition: declared states and the barrier resolver
//   - command: command allocators, command lists and their pools
//   - queue: submission with automatic barrier insertion
//   - fence: fences and sync points
//   - frame: frames in flight and parallel pass recording
//
// # Logging
//
// rendercore produces no log output by default. Call SetLogger to enable it.
package rendercore

// Version is the current version of the module.
const Version = "0.1.0"
