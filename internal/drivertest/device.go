// Package drivertest provides an in-memory driver.Device for tests.
//
// The device records every submission together with the barriers recorded
// into each list, and simulates the hardware resource state in execution
// order. A barrier whose Before state does not match the simulated state is
// recorded as a violation, the way a debug layer would report it.
//
// GPU progress is manual: signaled fence values stay pending until Complete
// is called, unless AutoComplete is set. Blocking waits complete pending
// values on demand when CompleteOnWait is set (the default), so teardown
// paths never hang.
package drivertest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/rendercore/driver"
)

// ErrListNotClosed is returned when an open list is executed.
var ErrListNotClosed = errors.New("drivertest: executing a list that is not closed")

// descriptorIncrement is the handle stride used for every heap type.
const descriptorIncrement = 32

// Device is an in-memory driver.Device.
type Device struct {
	mu sync.Mutex

	// AutoComplete makes every GPU signal complete immediately.
	AutoComplete bool

	// CompleteOnWait makes blocking fence waits complete the awaited value.
	CompleteOnWait bool

	// FailExecute, when set, is returned by the next ExecuteCommandLists.
	FailExecute error

	// FailCreateList, when set, is returned by every CreateCommandList.
	FailCreateList error

	resources   []*Resource
	allocators  []*Allocator
	lists       []*List
	fences      []*Fence
	heaps       []*Heap
	submissions []Submission
	violations  []string
	hwState     map[*Resource]driver.ResourceState

	nextHeapBase uint64
	destroyed    bool
}

// New returns a device with CompleteOnWait enabled.
func New() *Device {
	return &Device{
		CompleteOnWait: true,
		hwState:        make(map[*Resource]driver.ResourceState),
		nextHeapBase:   1 << 20,
	}
}

// Submission is a snapshot of one ExecuteCommandLists call.
type Submission struct {
	Lists []ListRecord
}

// ListRecord is a snapshot of one executed list.
type ListRecord struct {
	Name     string
	List     *List
	Barriers []driver.Barrier
}

// Names returns the list names of the submission in execution order.
func (s Submission) Names() []string {
	names := make([]string, len(s.Lists))
	for i, l := range s.Lists {
		names[i] = l.Name
	}
	return names
}

// Submissions returns every submission so far.
func (d *Device) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Submission, len(d.submissions))
	copy(out, d.submissions)
	return out
}

// Violations returns every barrier that did not match the simulated state.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.violations))
	copy(out, d.violations)
	return out
}

// HardwareState returns the simulated state of res after all executed work.
func (d *Device) HardwareState(res driver.Resource) driver.ResourceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hwState[res.(*Resource)]
}

// Allocators returns every allocator created so far.
func (d *Device) Allocators() []*Allocator {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Allocator, len(d.allocators))
	copy(out, d.allocators)
	return out
}

// Lists returns every list created so far.
func (d *Device) Lists() []*List {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*List, len(d.lists))
	copy(out, d.lists)
	return out
}

// Resources returns every resource created so far.
func (d *Device) Resources() []*Resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Resource, len(d.resources))
	copy(out, d.resources)
	return out
}

// Complete completes every pending signal on every fence.
func (d *Device) Complete() {
	d.mu.Lock()
	fences := make([]*Fence, len(d.fences))
	copy(fences, d.fences)
	d.mu.Unlock()
	for _, f := range fences {
		f.CompleteAll()
	}
}

// CompleteThrough completes pending signals up to and including value on
// every fence.
func (d *Device) CompleteThrough(value uint64) {
	d.mu.Lock()
	fences := make([]*Fence, len(d.fences))
	copy(fences, d.fences)
	d.mu.Unlock()
	for _, f := range fences {
		f.Complete(value)
	}
}

// Destroyed reports whether Destroy was called.
func (d *Device) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// CreateCommandQueue implements driver.Device.
func (d *Device) CreateCommandQueue(kind driver.ListKind) (driver.Queue, error) {
	return &Queue{dev: d, Kind: kind}, nil
}

// CreateCommandAllocator implements driver.Device.
func (d *Device) CreateCommandAllocator(kind driver.ListKind) (driver.CommandAllocator, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := &Allocator{Kind: kind, ID: len(d.allocators)}
	d.allocators = append(d.allocators, a)
	return a, nil
}

// CreateCommandList implements driver.Device.
func (d *Device) CreateCommandList(kind driver.ListKind, alloc driver.CommandAllocator, name string) (driver.CommandList, error) {
	if d.FailCreateList != nil {
		return nil, d.FailCreateList
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	l := &List{Kind: kind, ID: len(d.lists), name: name, alloc: alloc.(*Allocator)}
	d.lists = append(d.lists, l)
	return l, nil
}

// CreateFence implements driver.Device.
func (d *Device) CreateFence(initial uint64) (driver.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := &Fence{dev: d, completed: initial}
	f.cond = sync.NewCond(&f.mu)
	d.fences = append(d.fences, f)
	return f, nil
}

// CreateDescriptorHeap implements driver.Device.
func (d *Device) CreateDescriptorHeap(desc driver.HeapDesc) (driver.DescriptorHeap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := &Heap{
		desc:     desc,
		cpuStart: d.nextHeapBase,
		slots:    make([]Slot, desc.Capacity),
	}
	if desc.ShaderVisible {
		h.gpuStart = d.nextHeapBase | 1<<62
	}
	d.nextHeapBase += uint64(desc.Capacity+1) * descriptorIncrement
	d.heaps = append(d.heaps, h)
	return h, nil
}

// DescriptorIncrement implements driver.Device.
func (d *Device) DescriptorIncrement(driver.HeapType) uint32 { return descriptorIncrement }

// CreateResource implements driver.Device.
func (d *Device) CreateResource(desc *driver.ResourceDesc, initial driver.ResourceState, name string) (driver.Resource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := &Resource{desc: *desc, Name: name, Initial: initial}
	d.resources = append(d.resources, r)
	d.hwState[r] = initial
	return r, nil
}

// CreateView implements driver.Device.
func (d *Device) CreateView(res driver.Resource, view *driver.ViewDesc, dst uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot, err := d.slotLocked(dst)
	if err != nil {
		return err
	}
	*slot = Slot{Resource: res.(*Resource), View: *view, Written: true}
	return nil
}

// CopyDescriptors implements driver.Device.
func (d *Device) CopyDescriptors(dst, src uint64, count uint32, _ driver.HeapType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range uint64(count) {
		from, err := d.slotLocked(src + i*descriptorIncrement)
		if err != nil {
			panic(err)
		}
		to, err := d.slotLocked(dst + i*descriptorIncrement)
		if err != nil {
			panic(err)
		}
		*to = *from
	}
}

// Descriptor returns the slot at a CPU handle.
func (d *Device) Descriptor(cpu uint64) (Slot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot, err := d.slotLocked(cpu)
	if err != nil {
		return Slot{}, err
	}
	return *slot, nil
}

func (d *Device) slotLocked(cpu uint64) (*Slot, error) {
	for _, h := range d.heaps {
		end := h.cpuStart + uint64(len(h.slots))*descriptorIncrement
		if cpu >= h.cpuStart && cpu < end {
			off := cpu - h.cpuStart
			if off%descriptorIncrement != 0 {
				return nil, fmt.Errorf("drivertest: misaligned descriptor handle 0x%x", cpu)
			}
			return &h.slots[off/descriptorIncrement], nil
		}
	}
	return nil, fmt.Errorf("drivertest: descriptor handle 0x%x outside every heap", cpu)
}

// Destroy implements driver.Device.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
}

// execute snapshots a submission and advances the simulated state.
func (d *Device) execute(lists []driver.CommandList) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.FailExecute; err != nil {
		d.FailExecute = nil
		return err
	}

	var sub Submission
	for _, cl := range lists {
		l := cl.(*List)
		if !l.closed {
			return fmt.Errorf("%w: %q", ErrListNotClosed, l.name)
		}
		rec := ListRecord{Name: l.name, List: l}
		for _, b := range l.barriers {
			res := b.Resource.(*Resource)
			if cur := d.hwState[res]; cur != b.Before {
				d.violations = append(d.violations, fmt.Sprintf(
					"%s: barrier on %q expects %v, resource is %v", l.name, res.Name, b.Before, cur))
			}
			d.hwState[res] = b.After
			rec.Barriers = append(rec.Barriers, b)
		}
		l.executions++
		sub.Lists = append(sub.Lists, rec)
	}
	d.submissions = append(d.submissions, sub)
	return nil
}

// Queue is an in-memory driver.Queue.
type Queue struct {
	dev       *Device
	Kind      driver.ListKind
	destroyed bool
}

// ExecuteCommandLists implements driver.Queue.
func (q *Queue) ExecuteCommandLists(lists []driver.CommandList) error {
	return q.dev.execute(lists)
}

// Signal implements driver.Queue.
func (q *Queue) Signal(f driver.Fence, value uint64) error {
	fence := f.(*Fence)
	if q.dev.AutoComplete {
		return fence.Signal(value)
	}
	fence.mu.Lock()
	fence.pending = append(fence.pending, value)
	fence.mu.Unlock()
	return nil
}

// Destroy implements driver.Queue.
func (q *Queue) Destroy() { q.destroyed = true }

// Destroyed reports whether Destroy was called.
func (q *Queue) Destroyed() bool { return q.destroyed }

// Fence is an in-memory driver.Fence.
type Fence struct {
	dev *Device

	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
	pending   []uint64
	destroyed bool
}

// CompletedValue implements driver.Fence.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Signal implements driver.Fence.
func (f *Fence) Signal(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
	f.cond.Broadcast()
	return nil
}

// Complete completes pending GPU signals up to and including value.
func (f *Fence) Complete(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeLocked(value)
}

// CompleteAll completes every pending GPU signal.
func (f *Fence) CompleteAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.pending {
		if v > f.completed {
			f.completed = v
		}
	}
	f.pending = f.pending[:0]
	f.cond.Broadcast()
}

// Pending returns the signaled values not yet completed.
func (f *Fence) Pending() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, len(f.pending))
	copy(out, f.pending)
	return out
}

func (f *Fence) completeLocked(value uint64) {
	keep := f.pending[:0]
	for _, v := range f.pending {
		if v <= value {
			if v > f.completed {
				f.completed = v
			}
			continue
		}
		keep = append(keep, v)
	}
	f.pending = keep
	f.cond.Broadcast()
}

// Wait implements driver.Fence.
func (f *Fence) Wait(value uint64, timeout time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed >= value {
		return true, nil
	}
	if timeout == 0 {
		return false, nil
	}
	if f.dev.CompleteOnWait {
		f.completeLocked(value)
		return f.completed >= value, nil
	}
	for f.completed < value {
		f.cond.Wait()
	}
	return true, nil
}

// Destroy implements driver.Fence.
func (f *Fence) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
}

// Allocator is an in-memory driver.CommandAllocator.
type Allocator struct {
	Kind driver.ListKind
	ID   int

	Name      string
	Resets    int
	Destroyed bool
}

// Reset implements driver.CommandAllocator.
func (a *Allocator) Reset() error {
	a.Resets++
	return nil
}

// SetName implements driver.CommandAllocator.
func (a *Allocator) SetName(name string) { a.Name = name }

// Destroy implements driver.CommandAllocator.
func (a *Allocator) Destroy() { a.Destroyed = true }

// Copy is a recorded buffer copy.
type Copy struct {
	Dst    driver.Resource
	Src    driver.Resource
	DstOff uint64
	SrcOff uint64
	Size   uint64
}

// List is an in-memory driver.CommandList.
type List struct {
	Kind driver.ListKind
	ID   int

	name       string
	alloc      *Allocator
	barriers   []driver.Barrier
	copies     []Copy
	closed     bool
	resets     int
	executions int
	destroyed  bool
}

// Name returns the current debug name.
func (l *List) Name() string { return l.name }

// Allocator returns the allocator the list currently records into.
func (l *List) Allocator() *Allocator { return l.alloc }

// Barriers returns the barriers recorded since the last reset.
func (l *List) Barriers() []driver.Barrier { return l.barriers }

// Copies returns the copies recorded since the last reset.
func (l *List) Copies() []Copy { return l.copies }

// Closed reports whether the list is closed.
func (l *List) Closed() bool { return l.closed }

// Resets returns how many times the list was reset.
func (l *List) Resets() int { return l.resets }

// Destroyed reports whether Destroy was called.
func (l *List) Destroyed() bool { return l.destroyed }

// Reset implements driver.CommandList.
func (l *List) Reset(alloc driver.CommandAllocator, name string) error {
	l.alloc = alloc.(*Allocator)
	l.name = name
	l.barriers = nil
	l.copies = nil
	l.closed = false
	l.resets++
	return nil
}

// ResourceBarrier implements driver.CommandList.
func (l *List) ResourceBarrier(barriers []driver.Barrier) {
	l.barriers = append(l.barriers, barriers...)
}

// CopyBufferRegion implements driver.CommandList.
func (l *List) CopyBufferRegion(dst driver.Resource, dstOffset uint64, src driver.Resource, srcOffset, size uint64) {
	l.copies = append(l.copies, Copy{Dst: dst, Src: src, DstOff: dstOffset, SrcOff: srcOffset, Size: size})
}

// Close implements driver.CommandList.
func (l *List) Close() error {
	if l.closed {
		return fmt.Errorf("drivertest: list %q closed twice", l.name)
	}
	l.closed = true
	return nil
}

// SetName implements driver.CommandList.
func (l *List) SetName(name string) { l.name = name }

// Destroy implements driver.CommandList.
func (l *List) Destroy() { l.destroyed = true }

// Resource is an in-memory driver.Resource.
type Resource struct {
	desc      driver.ResourceDesc
	Name      string
	Initial   driver.ResourceState
	Destroyed bool
}

// Desc implements driver.Resource.
func (r *Resource) Desc() *driver.ResourceDesc { return &r.desc }

// Destroy implements driver.Resource.
func (r *Resource) Destroy() { r.Destroyed = true }

// Slot is one descriptor slot.
type Slot struct {
	Resource *Resource
	View     driver.ViewDesc
	Written  bool
}

// Heap is an in-memory driver.DescriptorHeap.
type Heap struct {
	desc      driver.HeapDesc
	cpuStart  uint64
	gpuStart  uint64
	slots     []Slot
	Destroyed bool
}

// Desc implements driver.DescriptorHeap.
func (h *Heap) Desc() driver.HeapDesc { return h.desc }

// CPUStart implements driver.DescriptorHeap.
func (h *Heap) CPUStart() uint64 { return h.cpuStart }

// GPUStart implements driver.DescriptorHeap.
func (h *Heap) GPUStart() uint64 { return h.gpuStart }

// Destroy implements driver.DescriptorHeap.
func (h *Heap) Destroy() { h.Destroyed = true }
