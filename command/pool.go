// Package command pools command allocators and command lists.
//
// Both pools are FIFO queues of objects the GPU may still be reading. An
// object is pushed to the back on Release, after the caller attached the
// sync point of the last work recorded into it. Create looks only at the
// front entry: if it has no sync point or a completed one, it is popped and
// reset; otherwise a fresh object is allocated. Create never blocks. Since
// work completes in submission order, a busy front means every entry behind
// it is most likely busy too.
//
// Object lifecycle:
//
//	Free --Create--> InUse --Release--> Pending --sync point done--> Free
//
// Pools are driven from one goroutine. Destroy blocks until every pooled
// object's sync point completed.
package command

import (
	"fmt"

	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/fence"
	"github.com/gogpu/rendercore/internal/logging"
)

// DefaultWarnThreshold is the pool size above which growth is logged.
const DefaultWarnThreshold = 64

// PoolOption configures a pool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	warnThreshold int
}

func defaultPoolOptions() poolOptions {
	return poolOptions{warnThreshold: DefaultWarnThreshold}
}

// WithWarnThreshold sets how many objects a pool may create before each
// further creation is logged at warning level. Zero disables the warning.
func WithWarnThreshold(n int) PoolOption {
	return func(o *poolOptions) { o.warnThreshold = n }
}

// Stats is a snapshot of pool activity.
type Stats struct {
	Kind driver.ListKind

	// Created is the number of native objects allocated.
	Created uint64

	// Reused is the number of Create calls served from the pool.
	Reused uint64

	// Busy is the number of Create calls that found a busy front entry.
	Busy uint64

	// Pooled is the number of objects waiting in the pool.
	Pooled int

	// Outstanding is the number of objects handed out and not released.
	Outstanding int
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Pool[%v: %d created, %d reused, %d busy, %d pooled, %d out]",
		s.Kind, s.Created, s.Reused, s.Busy, s.Pooled, s.Outstanding)
}

// fifo is the queue shared by both pools.
type fifo[T any] struct {
	what     string
	kind     driver.ListKind
	opts     poolOptions
	items    []T
	syncOf   func(T) fence.SyncPoint
	stats    Stats
	warnedAt uint64
}

func newFIFO[T any](what string, kind driver.ListKind, syncOf func(T) fence.SyncPoint, opts []PoolOption) fifo[T] {
	o := defaultPoolOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return fifo[T]{what: what, kind: kind, opts: o, syncOf: syncOf, stats: Stats{Kind: kind}}
}

// take pops the front entry if the GPU is done with it.
func (p *fifo[T]) take() (T, bool) {
	var zero T
	if len(p.items) == 0 {
		return zero, false
	}
	front := p.items[0]
	if sp := p.syncOf(front); !sp.IsComplete() {
		p.stats.Busy++
		logging.Logger().Debug("command: pool front busy", "pool", p.what, "kind", p.kind, "sync", sp.String())
		return zero, false
	}
	p.items[0] = zero
	p.items = p.items[1:]
	p.stats.Reused++
	p.stats.Outstanding++
	return front, true
}

// created records a fresh allocation.
func (p *fifo[T]) created() {
	p.stats.Created++
	p.stats.Outstanding++
	if t := p.opts.warnThreshold; t > 0 && p.stats.Created > uint64(t) && p.stats.Created > p.warnedAt {
		// Warn again once the pool doubled.
		p.warnedAt = p.stats.Created * 2
		logging.Logger().Warn("command: pool growing",
			"pool", p.what, "kind", p.kind, "created", p.stats.Created, "pooled", len(p.items))
	}
}

func (p *fifo[T]) put(v T) {
	p.items = append(p.items, v)
	p.stats.Outstanding--
}

// drain waits for every pooled entry and returns them, emptying the pool.
func (p *fifo[T]) drain() []T {
	items := p.items
	p.items = nil
	for _, v := range items {
		p.syncOf(v).Wait()
	}
	return items
}

func (p *fifo[T]) snapshot() Stats {
	s := p.stats
	s.Pooled = len(p.items)
	return s
}
