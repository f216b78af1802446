package engine

import (
	"fmt"

	"github.com/roach88/derive/internal/record"
)

// State is the lifecycle state of a derived property node.
//
//	Uninitialized → Evaluating → Cached → Dirty → Evaluating → Cached
//
// A failed evaluation leaves the node Dirty with no value.
type State int

const (
	StateUninitialized State = iota
	StateCached
	StateDirty
	StateEvaluating
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCached:
		return "cached"
	case StateDirty:
		return "dirty"
	case StateEvaluating:
		return "evaluating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type node struct {
	slot     Slot
	rec      *record.Record
	comp     *record.Computed
	state    State
	value    any
	revision int64
	// invalidated is set when a dependency changes while the node is
	// evaluating; the result is then stored as Dirty.
	invalidated bool
}

// frame is one entry of the evaluation stack.
type frame struct {
	slot Slot
	// declaring is true while the node's dependency keys are resolved.
	declaring bool
	// covered holds the slots reached through the dependency keys.
	covered slotSet
}

func (e *Engine) top() *frame {
	if len(e.frames) == 0 {
		return nil
	}
	return e.frames[len(e.frames)-1]
}

// subscribe attributes a read of slot to f and flags reads the dependency
// keys did not reach.
func (e *Engine) subscribe(f *frame, slot Slot) {
	e.tracker.Track(f.slot, slot)
	if f.declaring {
		f.covered[slot] = struct{}{}
		return
	}
	if _, ok := f.covered[slot]; ok {
		return
	}
	key := staleKey{observer: f.slot, read: slot}
	if e.warned[key] {
		return
	}
	e.warned[key] = true
	w := &StaleReadWarning{Observer: f.slot, Read: slot}
	e.diagnostics = append(e.diagnostics, w)
	e.logger.Warn("read outside dependency keys", "observer", f.slot.String(), "read", slot.String())
	e.record(EventStaleRead, f.slot, map[string]any{"read": slot.String()})
}

// State returns the state of rec's derived property name.
func (e *Engine) State(rec *record.Record, name string) State {
	if n, ok := e.nodes[SlotOf(rec, name)]; ok {
		return n.state
	}
	return StateUninitialized
}

// Revision returns how many times rec's derived property name has been
// successfully computed.
func (e *Engine) Revision(rec *record.Record, name string) int64 {
	if n, ok := e.nodes[SlotOf(rec, name)]; ok {
		return n.revision
	}
	return 0
}
