package transition

import (
	"fmt"

	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/verify"
	"github.com/gogpu/rendercore/resource"
)

// Resolver turns the required states of a batch into barriers.
//
// A Resolver is owned by one queue and used only from the goroutine
// submitting to it. Between Resolve and Commit or Rollback it holds an undo
// log of every resource it touched.
type Resolver struct {
	undo    []saved
	touched map[*resource.Resource]struct{}
	open    bool

	stats Stats
}

type saved struct {
	res   *resource.Resource
	state driver.ResourceState
}

// NewResolver returns a resolver with an empty undo log.
func NewResolver() *Resolver {
	return &Resolver{touched: make(map[*resource.Resource]struct{})}
}

// Resolve computes the barriers for lists, in order, and moves every
// touched resource to its final state. The result has one entry per list;
// an entry is nil when the list needs no barrier, including when the list
// itself is nil.
//
// The previous batch must have been committed or rolled back.
func (r *Resolver) Resolve(lists []*RequiredStateList) [][]driver.Barrier {
	verify.That(!r.open, "transition: Resolve with %d uncommitted transitions", len(r.undo))
	r.open = true
	r.stats.Batches++
	if r.touched == nil {
		r.touched = make(map[*resource.Resource]struct{})
	}

	out := make([][]driver.Barrier, len(lists))
	for i, l := range lists {
		for _, req := range l.Entries() {
			res := req.Resource
			cur := res.State()
			if cur == req.State {
				r.stats.Skipped++
				continue
			}
			native := res.Native()
			verify.That(native != nil, "transition: %q was released", res.Name())

			r.save(res)
			out[i] = append(out[i], driver.Barrier{
				Resource:    native,
				Subresource: driver.AllSubresources,
				Before:      cur,
				After:       req.State,
			})
			res.SetState(req.State)
			r.stats.Barriers++
		}
		for _, exit := range l.Exits() {
			r.save(exit.Resource)
			exit.Resource.SetState(exit.State)
		}
	}
	return out
}

// save records the state of res before the batch touched it.
func (r *Resolver) save(res *resource.Resource) {
	if _, ok := r.touched[res]; ok {
		return
	}
	r.touched[res] = struct{}{}
	r.undo = append(r.undo, saved{res: res, state: res.State()})
}

// Rollback restores every resource touched by the open batch to the state
// it had before Resolve.
func (r *Resolver) Rollback() {
	for i := len(r.undo) - 1; i >= 0; i-- {
		r.undo[i].res.SetState(r.undo[i].state)
	}
	r.stats.Rollbacks++
	r.close()
}

// Commit keeps the states computed by the open batch.
func (r *Resolver) Commit() {
	r.close()
}

// Pending returns how many resources the open batch changed.
func (r *Resolver) Pending() int { return len(r.undo) }

func (r *Resolver) close() {
	clear(r.undo)
	r.undo = r.undo[:0]
	clear(r.touched)
	r.open = false
}

// Stats returns cumulative counters.
func (r *Resolver) Stats() Stats { return r.stats }

// Stats counts resolver work.
type Stats struct {
	// Batches is the number of Resolve calls.
	Batches uint64

	// Barriers is the number of emitted barriers.
	Barriers uint64

	// Skipped is the number of declarations already satisfied.
	Skipped uint64

	// Rollbacks is the number of rolled back batches.
	Rollbacks uint64
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Transitions[%d batches, %d barriers, %d skipped, %d rollbacks]",
		s.Batches, s.Barriers, s.Skipped, s.Rollbacks)
}
