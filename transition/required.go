// Package transition resolves declared resource states into transition
// barriers.
//
// Passes declare, while recording, the state every resource they touch must
// be in before their command list runs. Nothing is resolved at that point:
// a RequiredStateList is pure intent. At submission the Resolver walks the
// lists of one batch in submission order, compares every declaration with
// the resource's tracked state, emits a barrier wherever they differ and
// updates the tracked state right away, so a later list in the same batch
// sees the state an earlier one left behind.
//
// The sequence for one batch is:
//
//	barriers := resolver.Resolve(lists) // tracked states now final
//	if err := submit(...); err != nil {
//		resolver.Rollback() // tracked states as before Resolve
//	} else {
//		resolver.Commit()
//	}
package transition

import (
	"github.com/gogpu/rendercore/driver"
	"github.com/gogpu/rendercore/internal/verify"
	"github.com/gogpu/rendercore/resource"
)

// RequiredState is the state a resource must be in before a list runs.
type RequiredState struct {
	Resource *resource.Resource
	State    driver.ResourceState
}

// RequiredStateList is the set of required states of one command list.
// Each resource appears at most once; declaring it again replaces the
// earlier state.
//
// A list is built by one recorder and must not be modified once the command
// list it is attached to was submitted.
//
// A list may also record exit states: the state a resource is left in when
// the list itself transitions it mid-list. Resolution applies exit states
// after the list's barriers without emitting new ones.
type RequiredStateList struct {
	entries []RequiredState
	index   map[*resource.Resource]int

	exits     []RequiredState
	exitIndex map[*resource.Resource]int
}

// NewRequiredStateList returns an empty list with room for n resources.
func NewRequiredStateList(n int) *RequiredStateList {
	return &RequiredStateList{
		entries: make([]RequiredState, 0, n),
		index:   make(map[*resource.Resource]int, n),
	}
}

// Add declares that r must be in state s. The state must be legal for r,
// and r must not have been transitioned by the list already: its entry
// state is fixed once a barrier was recorded from it.
// It returns l so declarations can be chained.
func (l *RequiredStateList) Add(r *resource.Resource, s driver.ResourceState) *RequiredStateList {
	verify.That(r != nil, "transition: required state %v for nil resource", s)
	verify.That(s.Valid(), "transition: %q required in malformed state %v", r.Name(), s)
	verify.That(r.IsLegal(s), "transition: %q required in %v (read %v, write %v)",
		r.Name(), s, r.LegalReadState(), r.LegalWriteState())
	_, exited := l.exitIndex[r]
	verify.That(!exited, "transition: %q required in %v after the list transitioned it", r.Name(), s)

	if l.index == nil {
		l.index = make(map[*resource.Resource]int)
	}
	if i, ok := l.index[r]; ok {
		l.entries[i].State = s
		return l
	}
	l.index[r] = len(l.entries)
	l.entries = append(l.entries, RequiredState{Resource: r, State: s})
	return l
}

// Len returns the number of declared resources.
func (l *RequiredStateList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Entries returns the declarations in the order resources were first added.
// The slice must not be modified.
func (l *RequiredStateList) Entries() []RequiredState {
	if l == nil {
		return nil
	}
	return l.entries
}

// Lookup returns the state declared for r.
func (l *RequiredStateList) Lookup(r *resource.Resource) (driver.ResourceState, bool) {
	if l == nil {
		return 0, false
	}
	i, ok := l.index[r]
	if !ok {
		return 0, false
	}
	return l.entries[i].State, true
}

// Leave records that the list's own commands leave r in state s.
func (l *RequiredStateList) Leave(r *resource.Resource, s driver.ResourceState) {
	verify.That(r != nil, "transition: exit state %v for nil resource", s)
	verify.That(r.IsLegal(s), "transition: %q left in %v (read %v, write %v)",
		r.Name(), s, r.LegalReadState(), r.LegalWriteState())

	if l.exitIndex == nil {
		l.exitIndex = make(map[*resource.Resource]int)
	}
	if i, ok := l.exitIndex[r]; ok {
		l.exits[i].State = s
		return
	}
	l.exitIndex[r] = len(l.exits)
	l.exits = append(l.exits, RequiredState{Resource: r, State: s})
}

// Exits returns the recorded exit states.
func (l *RequiredStateList) Exits() []RequiredState {
	if l == nil {
		return nil
	}
	return l.exits
}

// Current returns the state r is in at the current recording position:
// its exit state if the list transitioned it, otherwise its required state.
func (l *RequiredStateList) Current(r *resource.Resource) (driver.ResourceState, bool) {
	if l == nil {
		return 0, false
	}
	if i, ok := l.exitIndex[r]; ok {
		return l.exits[i].State, true
	}
	return l.Lookup(r)
}

// Reset empties the list, keeping its storage.
func (l *RequiredStateList) Reset() {
	l.entries = l.entries[:0]
	clear(l.index)
	l.exits = l.exits[:0]
	clear(l.exitIndex)
}
