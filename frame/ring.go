// Package frame runs frames in flight on top of the core.
//
// A Ring owns one slot per frame in flight. Each slot remembers the sync
// point of the last frame that used it and owns a shader-visible descriptor
// heap for that frame's tables. Begin waits on the slot before handing it
// out, which is the only ordering between frames: resources, allocators
// and descriptor slots used by frame N are safe to reuse in frame N+k once
// Begin returned for it.
//
// Within a frame, passes record in parallel. Each pass gets its own
// allocator and list, taken from the pools before any goroutine starts.
// Passes only declare the states they need; transitions are resolved when
// the frame is submitted.
package frame

import (
	"errors"
	"fmt"
	"time"

	"github.com/loov/hrtime"

	"github.com/gogpu/rendercore/command"
	"github.com/gogpu/rendercore/descriptor"
	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/fence"
	"github.com/gogpu/rendercore/internal/logging"
	"github.com/gogpu/rendercore/internal/verify"
	"github.com/gogpu/rendercore/queue"
	"github.com/gogpu/rendercore/resource"
)

// Defaults for RingConfig.
const (
	DefaultFramesInFlight = 2
	DefaultTableCapacity  = 1024
)

// ErrNilEnv is returned when creating a ring without an environment.
var ErrNilEnv = errors.New("frame: environment is nil")

// Env is what a ring needs from the render environment.
type Env interface {
	Device() driver.Device
	Queue() *queue.CommandQueue
	Allocators() *command.AllocatorPool
	Lists() *command.ListPool
}

// RingConfig configures a Ring.
type RingConfig struct {
	// FramesInFlight is the number of frames the CPU may run ahead of the
	// GPU. Default: DefaultFramesInFlight.
	FramesInFlight int

	// BackBuffers are the presentable images, used in turn. When empty,
	// frames are not presented.
	BackBuffers []*resource.Resource

	// TableCapacity is the number of shader-visible descriptor slots each
	// frame may allocate. Default: DefaultTableCapacity.
	TableCapacity uint32
}

func (c RingConfig) withDefaults() RingConfig {
	if c.FramesInFlight <= 0 {
		c.FramesInFlight = DefaultFramesInFlight
	}
	if c.TableCapacity == 0 {
		c.TableCapacity = DefaultTableCapacity
	}
	return c
}

type slot struct {
	sync  fence.SyncPoint
	table *descriptor.Heap
}

// Ring hands out frames in flight. It is driven from one goroutine.
type Ring struct {
	env   Env
	cfg   RingConfig
	slots []slot

	next    uint64
	current *Frame

	stats Stats
}

// NewRing creates a ring and its per-frame descriptor heaps.
func NewRing(env Env, cfg RingConfig) (*Ring, error) {
	if env == nil {
		return nil, ErrNilEnv
	}
	cfg = cfg.withDefaults()

	r := &Ring{env: env, cfg: cfg, slots: make([]slot, cfg.FramesInFlight)}
	for i := range r.slots {
		table, err := descriptor.NewHeap(env.Device(), driver.HeapCBVSRVUAV, cfg.TableCapacity, true)
		if err != nil {
			r.destroyTables()
			return nil, fmt.Errorf("frame: table heap for slot %d: %w", i, err)
		}
		r.slots[i].table = table
	}

	logging.Logger().Info("frame: ring created",
		"frames_in_flight", cfg.FramesInFlight, "back_buffers", len(cfg.BackBuffers), "table_capacity", cfg.TableCapacity)
	return r, nil
}

// FramesInFlight returns the number of slots.
func (r *Ring) FramesInFlight() int { return len(r.slots) }

// Begin waits until the GPU finished the frame that last used the next
// slot, then returns a new frame on it. The previous frame must have been
// submitted.
func (r *Ring) Begin() (*Frame, error) {
	verify.That(r.current == nil, "frame: Begin while frame %d is open", r.next-1)

	n := r.next
	s := &r.slots[n%uint64(len(r.slots))]

	start := hrtime.Now()
	s.sync.Wait()
	r.stats.WaitTime += hrtime.Since(start)
	s.table.Reset()

	f := &Frame{ring: r, number: n, slot: s}
	if bb := r.cfg.BackBuffers; len(bb) > 0 {
		f.backBuffer = bb[n%uint64(len(bb))]
	}
	r.next++
	r.current = f
	return f, nil
}

// Close waits for every frame in flight and releases the ring's heaps. An
// open frame must have been submitted.
func (r *Ring) Close() error {
	verify.That(r.current == nil, "frame: Close while frame %d is open", r.next-1)
	for i := range r.slots {
		r.slots[i].sync.Wait()
	}
	r.destroyTables()
	return nil
}

func (r *Ring) destroyTables() {
	for i := range r.slots {
		if t := r.slots[i].table; t != nil {
			t.Destroy()
			r.slots[i].table = nil
		}
	}
}

// Stats returns cumulative counters.
func (r *Ring) Stats() Stats { return r.stats }

// Stats counts ring activity.
type Stats struct {
	// Frames is the number of submitted frames.
	Frames uint64

	// Passes is the number of recorded passes.
	Passes uint64

	// WaitTime is the time Begin spent waiting for the GPU.
	WaitTime time.Duration
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Ring[%d frames, %d passes, waited %v]", s.Frames, s.Passes, s.WaitTime)
}
