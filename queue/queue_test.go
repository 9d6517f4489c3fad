package queue

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/command"
	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/drivertest"
	"github.com/gogpu/rendercore/internal/verify"
	"github.com/gogpu/rendercore/resource"
)

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		v := recover()
		if v == nil {
			t.Fatalf("%s: expected panic", name)
		}
		if !verify.IsViolation(v) {
			t.Fatalf("%s: panic %v is not a contract violation", name, v)
		}
	}()
	fn()
}

type env struct {
	dev    *drivertest.Device
	queue  *CommandQueue
	allocs *command.AllocatorPool
	lists  *command.ListPool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dev := drivertest.New()
	lists, err := command.NewListPool(dev, driver.ListDirect)
	if err != nil {
		t.Fatal(err)
	}
	q, err := New(dev, driver.ListDirect, WithName("direct"), WithListPool(lists))
	if err != nil {
		t.Fatal(err)
	}
	allocs, err := command.NewAllocatorPool(dev, driver.ListDirect)
	if err != nil {
		t.Fatal(err)
	}
	return &env{dev: dev, queue: q, allocs: allocs, lists: lists}
}

func (e *env) texture(t *testing.T, name string, initial driver.ResourceState) *resource.Resource {
	t.Helper()
	desc := resource.Tex2D(gputypes.TextureFormatRGBA8Unorm, 16, 16,
		driver.UsageRenderTarget|driver.UsageShaderRead|driver.UsageUnorderedAccess)
	r, err := resource.New(e.dev, &desc, initial, name)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func (e *env) allocator(t *testing.T) *command.Allocator {
	t.Helper()
	a, err := e.allocs.Create("frame")
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// closedList records a list requiring the given states and closes it.
func (e *env) closedList(t *testing.T, alloc *command.Allocator, name string, reqs ...any) *command.List {
	t.Helper()
	l, err := e.lists.Create(alloc, name)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(reqs); i += 2 {
		l.Require(reqs[i].(*resource.Resource), reqs[i+1].(driver.ResourceState))
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestNewNilDevice(t *testing.T) {
	if _, err := New(nil, driver.ListDirect); !errors.Is(err, ErrNilDevice) {
		t.Errorf("New(nil) error = %v", err)
	}
}

func TestExecuteExampleScenario(t *testing.T) {
	e := newEnv(t)
	rt := e.texture(t, "rt", driver.StateCommon)
	alloc := e.allocator(t)

	l1 := e.closedList(t, alloc, "L1", rt, driver.StateRenderTarget)
	l2 := e.closedList(t, alloc, "L2", rt, driver.StateShaderResource)

	if err := e.queue.ExecuteCommandLists(alloc, l1, l2); err != nil {
		t.Fatal(err)
	}

	subs := e.dev.Submissions()
	if len(subs) != 1 {
		t.Fatalf("%d submissions, want 1", len(subs))
	}
	wantNames := []string{"barriers:L1", "L1", "barriers:L2", "L2"}
	if got := subs[0].Names(); !slices.Equal(got, wantNames) {
		t.Errorf("submission order = %v, want %v", got, wantNames)
	}

	lists := subs[0].Lists
	if b := lists[0].Barriers; len(b) != 1 || b[0].Before != driver.StateCommon || b[0].After != driver.StateRenderTarget {
		t.Errorf("barriers before L1 = %+v", b)
	}
	if b := lists[2].Barriers; len(b) != 1 || b[0].Before != driver.StateRenderTarget || b[0].After != driver.StateShaderResource {
		t.Errorf("barriers before L2 = %+v", b)
	}
	if rt.State() != driver.StateShaderResource {
		t.Errorf("tracked state = %v, want ShaderResource", rt.State())
	}
	if hw := e.dev.HardwareState(rt.Native()); hw != driver.StateShaderResource {
		t.Errorf("hardware state = %v, want ShaderResource", hw)
	}
	if v := e.dev.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}

	s := e.queue.Stats()
	if s.Batches != 1 || s.Lists != 2 || s.BarrierLists != 2 || s.Barriers != 2 {
		t.Errorf("Stats() = %v", s)
	}
}

func TestExecuteSatisfiedStatesInsertsNothing(t *testing.T) {
	e := newEnv(t)
	rt := e.texture(t, "rt", driver.StateRenderTarget)
	alloc := e.allocator(t)

	l := e.closedList(t, alloc, "draw", rt, driver.StateRenderTarget)
	plain := e.closedList(t, alloc, "plain")

	// No barrier is needed, so no barrier allocator is needed either.
	if err := e.queue.ExecuteCommandLists(nil, l, plain); err != nil {
		t.Fatal(err)
	}
	if got := e.dev.Submissions()[0].Names(); !slices.Equal(got, []string{"draw", "plain"}) {
		t.Errorf("submission = %v", got)
	}
	if s := e.queue.Stats(); s.Skipped != 1 || s.BarrierLists != 0 {
		t.Errorf("Stats() = %v", s)
	}
}

func TestStatesCarryAcrossBatches(t *testing.T) {
	e := newEnv(t)
	tex := e.texture(t, "tex", driver.StateCommon)
	alloc := e.allocator(t)

	for i, s := range []driver.ResourceState{
		driver.StateUnorderedAccess,
		driver.StateShaderResource,
		driver.StateShaderResource,
		driver.StateRenderTarget,
	} {
		l := e.closedList(t, alloc, "pass", tex, s)
		if err := e.queue.ExecuteCommandLists(alloc, l); err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
	}
	if v := e.dev.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
	if s := e.queue.Stats(); s.Barriers != 3 || s.Skipped != 1 {
		t.Errorf("Stats() = %v", s)
	}
}

func TestExecuteFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	rt := e.texture(t, "rt", driver.StateCommon)
	alloc := e.allocator(t)
	l := e.closedList(t, alloc, "draw", rt, driver.StateRenderTarget)

	cause := errors.New("device removed")
	e.dev.FailExecute = cause
	if err := e.queue.ExecuteCommandLists(alloc, l); !errors.Is(err, cause) {
		t.Fatalf("error = %v, want wrapped cause", err)
	}
	if rt.State() != driver.StateCommon {
		t.Errorf("tracked state after failure = %v, want Common", rt.State())
	}
	if s := e.lists.Stats(); s.Pooled != 1 {
		t.Errorf("barrier list not returned to pool: %v", s)
	}

	// A retry inserts the same barrier again.
	if err := e.queue.ExecuteCommandLists(alloc, l); err != nil {
		t.Fatal(err)
	}
	if v := e.dev.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
	if s := e.queue.Stats(); s.Rollbacks != 1 || s.Batches != 1 {
		t.Errorf("Stats() = %v", s)
	}
}

func TestBarrierListsRecycledAfterSignal(t *testing.T) {
	e := newEnv(t)
	rt := e.texture(t, "rt", driver.StateCommon)
	alloc := e.allocator(t)

	l := e.closedList(t, alloc, "a", rt, driver.StateRenderTarget)
	if err := e.queue.ExecuteCommandLists(alloc, l); err != nil {
		t.Fatal(err)
	}
	if _, err := e.queue.Signal(); err != nil {
		t.Fatal(err)
	}
	e.dev.Complete()

	// The barrier list is at the front of the pool and now reusable.
	l2, err := e.lists.Create(alloc, "b")
	if err != nil {
		t.Fatal(err)
	}
	if s := e.lists.Stats(); s.Reused != 1 || l2.Name() != "b" {
		t.Errorf("Stats() = %v, want the barrier list reused", s)
	}
}

func TestExecuteContract(t *testing.T) {
	e := newEnv(t)
	alloc := e.allocator(t)

	open, err := e.lists.Create(alloc, "open")
	if err != nil {
		t.Fatal(err)
	}
	mustPanic(t, "open list", func() { _ = e.queue.ExecuteCommandLists(alloc, open) })
	mustPanic(t, "nil list", func() { _ = e.queue.ExecuteCommandLists(alloc, nil) })

	e2 := newEnv(t)
	needs := e2.closedList(t, e2.allocator(t), "needs", e2.texture(t, "x", driver.StateCommon), driver.StateRenderTarget)
	mustPanic(t, "missing barrier allocator", func() { _ = e2.queue.ExecuteCommandLists(nil, needs) })
}

func TestContractPanicRollsBack(t *testing.T) {
	e := newEnv(t)
	rt := e.texture(t, "rt", driver.StateCommon)
	l := e.closedList(t, e.allocator(t), "draw", rt, driver.StateRenderTarget)

	mustPanic(t, "missing barrier allocator", func() { _ = e.queue.ExecuteCommandLists(nil, l) })
	if rt.State() != driver.StateCommon {
		t.Errorf("tracked state after panic = %v, want Common", rt.State())
	}

	// The resolver is closed again, so the batch can be retried.
	if err := e.queue.ExecuteCommandLists(e.allocator(t), l); err != nil {
		t.Fatal(err)
	}
	if rt.State() != driver.StateRenderTarget {
		t.Errorf("tracked state = %v, want RenderTarget", rt.State())
	}
	if v := e.dev.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
	if s := e.queue.Stats(); s.Rollbacks != 1 || s.Batches != 1 {
		t.Errorf("Stats() = %v", s)
	}
}

func TestWaitIdle(t *testing.T) {
	e := newEnv(t)
	alloc := e.allocator(t)
	l := e.closedList(t, alloc, "work")
	if err := e.queue.ExecuteCommandLists(alloc, l); err != nil {
		t.Fatal(err)
	}
	if err := e.queue.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	f := e.queue.Fence()
	if f.Value() != 1 || !f.HasBeenSignaled(1) {
		t.Errorf("fence value %d, completed %d", f.Value(), f.CompletedValue())
	}

	// Nothing new was submitted, so no new signal is needed.
	if err := e.queue.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if f.Value() != 1 {
		t.Errorf("idle WaitIdle signaled again: value %d", f.Value())
	}
}

func TestNextSyncPoint(t *testing.T) {
	e := newEnv(t)
	next := e.queue.NextSyncPoint()
	sp, err := e.queue.Signal()
	if err != nil {
		t.Fatal(err)
	}
	if next != sp {
		t.Errorf("NextSyncPoint() = %v, Signal() = %v", next, sp)
	}
}

func TestDestroyOwnsPool(t *testing.T) {
	dev := drivertest.New()
	q, err := New(dev, driver.ListCopy)
	if err != nil {
		t.Fatal(err)
	}
	if q.Name() != "Copy" || q.Kind() != driver.ListCopy {
		t.Errorf("Name() = %q, Kind() = %v", q.Name(), q.Kind())
	}
	if err := q.Destroy(); err != nil {
		t.Fatal(err)
	}
	if !q.Native().(*drivertest.Queue).Destroyed() {
		t.Error("native queue not destroyed")
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{Batches: 2, Lists: 5, BarrierLists: 3, Barriers: 4, Skipped: 1}
	want := "Queue[2 batches, 5 lists, 3 barrier lists, 4 barriers, 1 skipped, 0 rollbacks, 0s]"
	if s.String() != want {
		t.Errorf("String() = %q, want %q", s.String(), want)
	}
}
