package command

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/drivertest"
	"github.com/gogpu/rendercore/resource"
	"github.com/gogpu/rendercore/transition"
)

func (h *harness) newList(t *testing.T, name string) (*Allocator, *List) {
	t.Helper()
	a, err := h.allocs.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	l, err := h.lists.Create(a, name)
	if err != nil {
		t.Fatal(err)
	}
	return a, l
}

func (h *harness) newBuffer(t *testing.T, name string, size uint64) *resource.Resource {
	t.Helper()
	desc := resource.BufferDesc(size, driver.UsageCopySrc|driver.UsageCopyDst)
	r, err := resource.New(h.dev, &desc, driver.StateCommon, name)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestListStateMachine(t *testing.T) {
	h := newHarness(t)
	_, l := h.newList(t, "pass")

	if l.Closed() {
		t.Fatal("new list is closed")
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if !l.Closed() {
		t.Fatal("list not closed after Close")
	}
	mustPanic(t, "second Close", func() { _ = l.Close() })

	rt := h.newBuffer(t, "b", 64)
	mustPanic(t, "Require on closed list", func() { l.Require(rt, driver.StateCopyDest) })
	mustPanic(t, "SetRequiredStates on closed list", func() { l.SetRequiredStates(nil) })
}

func TestListReuseResetsOntoNewAllocator(t *testing.T) {
	h := newHarness(t)
	a1, l := h.newList(t, "first")
	l.Require(h.newBuffer(t, "b", 64), driver.StateCopyDest)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	h.lists.Release(l)
	h.allocs.Release(a1)

	a2, err := h.allocs.Create("second")
	if err != nil {
		t.Fatal(err)
	}
	l2, err := h.lists.Create(a2, "second")
	if err != nil {
		t.Fatal(err)
	}
	if l2 != l {
		t.Fatal("free list was not reused")
	}
	native := l2.Native().(*drivertest.List)
	if native.Resets() != 1 || native.Name() != "second" || native.Allocator() != a2.Native() {
		t.Errorf("reused list not reset onto the new allocator: resets=%d name=%q", native.Resets(), native.Name())
	}
	if l2.Closed() || l2.RequiredStates() != nil {
		t.Error("reused list kept its recording state or declarations")
	}
}

func TestListNotReusedWhileBusy(t *testing.T) {
	h := newHarness(t)
	a, l := h.newList(t, "pass")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	l.SetSyncPoint(h.signal(t))
	h.lists.Release(l)

	l2, err := h.lists.Create(a, "next")
	if err != nil {
		t.Fatal(err)
	}
	if l2 == l {
		t.Fatal("list reused before its sync point completed")
	}
	if s := h.lists.Stats(); s.Busy != 1 || s.Created != 2 {
		t.Errorf("Stats() = %v", s)
	}
}

func TestListReleaseWhileRecordingPanics(t *testing.T) {
	h := newHarness(t)
	_, l := h.newList(t, "pass")
	mustPanic(t, "Release while recording", func() { h.lists.Release(l) })

	h.lists.Discard(l)
	if !l.Native().(*drivertest.List).Destroyed() {
		t.Error("discarded list not destroyed")
	}
}

func TestListCreateNeedsAllocatorInUse(t *testing.T) {
	h := newHarness(t)
	a, _ := h.allocs.Create("a")
	h.allocs.Release(a)
	mustPanic(t, "Create on released allocator", func() { _, _ = h.lists.Create(a, "l") })
	mustPanic(t, "Create on nil allocator", func() { _, _ = h.lists.Create(nil, "l") })
}

func TestListCreateError(t *testing.T) {
	h := newHarness(t)
	cause := errors.New("out of memory")
	h.dev.FailCreateList = cause

	a, _ := h.allocs.Create("a")
	if _, err := h.lists.Create(a, "l"); !errors.Is(err, cause) {
		t.Fatalf("Create error = %v, want wrapped cause", err)
	}
	if s := h.lists.Stats(); s.Outstanding != 0 {
		t.Errorf("failed Create left %d outstanding", s.Outstanding)
	}
}

func TestRequireCollectsStates(t *testing.T) {
	h := newHarness(t)
	_, l := h.newList(t, "pass")
	a := h.newBuffer(t, "a", 64)
	b := h.newBuffer(t, "b", 64)

	l.Require(a, driver.StateCopyDest)
	l.Require(b, driver.StateCopySource)
	l.Require(a, driver.StateCopySource)

	req := l.RequiredStates()
	if req.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", req.Len())
	}
	if s, _ := req.Lookup(a); s != driver.StateCopySource {
		t.Errorf("a required %v, want CopySource", s)
	}
}

func TestSetRequiredStatesAttachesList(t *testing.T) {
	h := newHarness(t)
	_, l := h.newList(t, "pass")
	states := transition.NewRequiredStateList(1).Add(h.newBuffer(t, "a", 64), driver.StateCopyDest)

	l.SetRequiredStates(states)
	if l.RequiredStates() != states {
		t.Error("attached list not returned")
	}
}

func TestCopyBufferRegion(t *testing.T) {
	h := newHarness(t)
	_, l := h.newList(t, "upload")
	src := h.newBuffer(t, "staging", 256)
	dst := h.newBuffer(t, "vertices", 256)

	l.Require(src, driver.StateCopySource)
	l.Require(dst, driver.StateCopyDest)
	l.CopyBufferRegion(dst, 64, src, 0, 128)

	copies := l.Native().(*drivertest.List).Copies()
	want := drivertest.Copy{Dst: dst.Native(), Src: src.Native(), DstOff: 64, SrcOff: 0, Size: 128}
	if len(copies) != 1 || copies[0] != want {
		t.Errorf("Copies() = %+v, want %+v", copies, want)
	}
}

func TestCopyBufferRegionContract(t *testing.T) {
	h := newHarness(t)
	_, l := h.newList(t, "upload")
	src := h.newBuffer(t, "src", 256)
	dst := h.newBuffer(t, "dst", 256)

	mustPanic(t, "undeclared copy", func() { l.CopyBufferRegion(dst, 0, src, 0, 16) })

	l.Require(src, driver.StateCopySource)
	l.Require(dst, driver.StateCopyDest)
	mustPanic(t, "overflowing copy", func() { l.CopyBufferRegion(dst, 200, src, 0, 100) })
	mustPanic(t, "overrunning copy", func() { l.CopyBufferRegion(dst, 0, src, 200, 100) })

	desc := resource.Tex2D(gputypes.TextureFormatRGBA8Unorm, 4, 4, driver.UsageCopyDst)
	tex, err := resource.New(h.dev, &desc, driver.StateCopyDest, "tex")
	if err != nil {
		t.Fatal(err)
	}
	l.Require(tex, driver.StateCopyDest)
	mustPanic(t, "copy into texture", func() { l.CopyBufferRegion(tex, 0, src, 0, 16) })
}

func TestResourceBarrierRecordsExitState(t *testing.T) {
	h := newHarness(t)
	_, l := h.newList(t, "pass")
	b := h.newBuffer(t, "b", 64)

	l.Require(b, driver.StateCopyDest)
	l.ResourceBarrier(b, driver.StateCopySource)
	l.ResourceBarrier(b, driver.StateCopySource)

	barriers := l.Native().(*drivertest.List).Barriers()
	if len(barriers) != 1 {
		t.Fatalf("recorded %d barriers, want 1", len(barriers))
	}
	if barriers[0].Before != driver.StateCopyDest || barriers[0].After != driver.StateCopySource {
		t.Errorf("barrier = %+v", barriers[0])
	}
	if s, _ := l.RequiredStates().Current(b); s != driver.StateCopySource {
		t.Errorf("Current() = %v, want CopySource", s)
	}
	if b.State() != driver.StateCommon {
		t.Errorf("tracked state changed during recording: %v", b.State())
	}
}

func TestResourceBarrierWithoutDeclarationPanics(t *testing.T) {
	h := newHarness(t)
	_, l := h.newList(t, "pass")
	b := h.newBuffer(t, "b", 64)
	mustPanic(t, "undeclared barrier", func() { l.ResourceBarrier(b, driver.StateCopyDest) })
}

func TestRequireAfterResourceBarrierPanics(t *testing.T) {
	h := newHarness(t)
	_, l := h.newList(t, "pass")
	b := h.newBuffer(t, "b", 64)

	l.Require(b, driver.StateCopyDest)
	l.ResourceBarrier(b, driver.StateCopySource)
	mustPanic(t, "Require after ResourceBarrier", func() { l.Require(b, driver.StateCommon) })

	if s, _ := l.RequiredStates().Lookup(b); s != driver.StateCopyDest {
		t.Errorf("entry state = %v, want CopyDest", s)
	}
}
