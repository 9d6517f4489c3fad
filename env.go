package rendercore

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gogpu/rendercore/command"
	"github.com/gogpu/rendercore/descriptor"
	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/frame"
	"github.com/gogpu/rendercore/internal/logging"
	"github.com/gogpu/rendercore/queue"
	"github.com/gogpu/rendercore/resource"
)

// Env is a render environment: a device with its direct queue, the pools
// command lists come from, and the CPU descriptor heaps views are written
// into. Every object that needs the device is created from an Env; there is
// no global device.
//
// An Env is driven from one goroutine, except where a package documents
// otherwise.
type Env struct {
	id     uuid.UUID
	log    *slog.Logger
	device driver.Device

	queue  *queue.CommandQueue
	allocs *command.AllocatorPool
	lists  *command.ListPool
	heaps  resource.ViewHeaps

	// ownsDevice is set when the environment wrapped a host device itself.
	ownsDevice bool
	closed     bool
}

// NewEnv creates an environment on device. The caller keeps ownership of
// the device and must destroy it after Close.
func NewEnv(device driver.Device, opts ...EnvOption) (*Env, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}

	e := &Env{id: uuid.New(), device: device}
	e.log = logging.Logger().With("env", e.id.String())

	if err := e.init(o); err != nil {
		e.release()
		return nil, err
	}

	e.log.Info("rendercore: environment created",
		"rtv", o.rtvCapacity, "dsv", o.dsvCapacity, "views", o.viewCapacity)
	return e, nil
}

func (e *Env) init(o envOptions) error {
	poolOpts := []command.PoolOption{command.WithWarnThreshold(o.warnThreshold)}

	var err error
	if e.lists, err = command.NewListPool(e.device, driver.ListDirect, poolOpts...); err != nil {
		return fmt.Errorf("rendercore: %w", err)
	}
	if e.allocs, err = command.NewAllocatorPool(e.device, driver.ListDirect, poolOpts...); err != nil {
		return fmt.Errorf("rendercore: %w", err)
	}
	if e.queue, err = queue.New(e.device, driver.ListDirect, queue.WithName("direct"), queue.WithListPool(e.lists)); err != nil {
		return fmt.Errorf("rendercore: %w", err)
	}

	heaps := []struct {
		dst      **descriptor.Heap
		t        driver.HeapType
		capacity uint32
	}{
		{&e.heaps.RTV, driver.HeapRTV, o.rtvCapacity},
		{&e.heaps.DSV, driver.HeapDSV, o.dsvCapacity},
		{&e.heaps.CBVSRVUAV, driver.HeapCBVSRVUAV, o.viewCapacity},
	}
	for _, h := range heaps {
		heap, err := descriptor.NewHeap(e.device, h.t, h.capacity, false)
		if err != nil {
			return fmt.Errorf("rendercore: %w", err)
		}
		*h.dst = heap
	}
	return nil
}

// ID returns the environment's identity, also attached to its log records.
func (e *Env) ID() uuid.UUID { return e.id }

// Device returns the device.
func (e *Env) Device() driver.Device { return e.device }

// Queue returns the direct queue.
func (e *Env) Queue() *queue.CommandQueue { return e.queue }

// Allocators returns the direct command allocator pool.
func (e *Env) Allocators() *command.AllocatorPool { return e.allocs }

// Lists returns the direct command list pool. The queue takes its barrier
// lists from it too.
func (e *Env) Lists() *command.ListPool { return e.lists }

// Heaps returns the CPU descriptor heaps views are created in.
func (e *Env) Heaps() resource.ViewHeaps { return e.heaps }

// NewRing creates a frame ring on the environment.
func (e *Env) NewRing(cfg frame.RingConfig) (*frame.Ring, error) {
	if e.closed {
		return nil, ErrClosed
	}
	return frame.NewRing(e, cfg)
}

// NewColorTexture creates a color texture with views in the environment's
// heaps.
func (e *Env) NewColorTexture(desc *driver.ResourceDesc, initial driver.ResourceState, name string) (*resource.ColorTexture, error) {
	if e.closed {
		return nil, ErrClosed
	}
	return resource.NewColorTexture(e.device, e.heaps, desc, initial, name)
}

// NewDepthTexture creates a depth texture with views in the environment's
// heaps.
func (e *Env) NewDepthTexture(desc *driver.ResourceDesc, initial driver.ResourceState, name string) (*resource.DepthTexture, error) {
	if e.closed {
		return nil, ErrClosed
	}
	return resource.NewDepthTexture(e.device, e.heaps, desc, initial, name)
}

// NewBuffer creates a buffer with views in the environment's heaps.
func (e *Env) NewBuffer(desc *driver.ResourceDesc, initial driver.ResourceState, name string, opts ...resource.BufferOption) (*resource.Buffer, error) {
	if e.closed {
		return nil, ErrClosed
	}
	return resource.NewBuffer(e.device, e.heaps, desc, initial, name, opts...)
}

// Stats returns the queue and pool counters.
func (e *Env) Stats() Stats {
	return Stats{
		Queue:      e.queue.Stats(),
		Allocators: e.allocs.Stats(),
		Lists:      e.lists.Stats(),
	}
}

// Stats groups the counters of an environment.
type Stats struct {
	Queue      queue.Stats
	Allocators command.Stats
	Lists      command.Stats
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("%v %v %v", s.Queue, s.Allocators, s.Lists)
}

// Close waits for the GPU to finish all submitted work and releases the
// queue, the pools and the heaps. Every allocator and list must have been
// released. Close is idempotent.
func (e *Env) Close() error {
	if e.closed {
		return nil
	}
	if err := e.queue.WaitIdle(); err != nil {
		return fmt.Errorf("rendercore: close: %w", err)
	}
	e.closed = true
	e.release()
	e.log.Info("rendercore: environment closed")
	return nil
}

// release destroys whatever init created.
func (e *Env) release() {
	if e.allocs != nil {
		e.allocs.Destroy()
	}
	if e.lists != nil {
		e.lists.Destroy()
	}
	if e.queue != nil {
		// The queue is idle, so Destroy does not wait.
		_ = e.queue.Destroy()
	}
	for _, h := range []*descriptor.Heap{e.heaps.RTV, e.heaps.DSV, e.heaps.CBVSRVUAV} {
		if h != nil {
			h.Destroy()
		}
	}
	e.heaps = resource.ViewHeaps{}
	if e.ownsDevice {
		e.device.Destroy()
	}
}
