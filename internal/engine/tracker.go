package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/derive/internal/deppath"
	"github.com/roach88/derive/internal/record"
)

// Slot identifies one field of one record: an attribute, a relationship or
// a derived property.
type Slot struct {
	Key   record.Key
	Field string
}

// SlotOf returns the slot for rec's field.
func SlotOf(rec *record.Record, field string) Slot {
	return Slot{Key: rec.Key(), Field: field}
}

func (s Slot) String() string {
	return s.Key.String() + "." + s.Field
}

func compareSlots(a, b Slot) int {
	return cmp.Or(
		cmp.Compare(a.Key.Type, b.Key.Type),
		cmp.Compare(a.Key.ID, b.Key.ID),
		cmp.Compare(a.Field, b.Field),
	)
}

type slotSet map[Slot]struct{}

func (s slotSet) sorted() []Slot {
	out := make([]Slot, 0, len(s))
	for slot := range s {
		out = append(out, slot)
	}
	slices.SortFunc(out, compareSlots)
	return out
}

// Tracker records which slots each derived property depends on.
//
// Declared paths are the parsed dependency keys of an observer. Resolved
// subscriptions are the concrete slots the observer touched during its last
// evaluation, and are what invalidation follows.
type Tracker struct {
	declared map[Slot][]deppath.Path
	deps     map[Slot]slotSet // observer -> slots it read
	rdeps    map[Slot]slotSet // slot -> observers that read it
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		declared: make(map[Slot][]deppath.Path),
		deps:     make(map[Slot]slotSet),
		rdeps:    make(map[Slot]slotSet),
	}
}

// Declare records observer's declared dependency paths.
func (t *Tracker) Declare(observer Slot, paths []deppath.Path) {
	t.declared[observer] = paths
}

// PathsOf returns observer's declared dependency paths.
func (t *Tracker) PathsOf(observer Slot) []deppath.Path {
	return t.declared[observer]
}

// Track subscribes observer to slot. Reports whether the subscription is new.
func (t *Tracker) Track(observer, slot Slot) bool {
	if observer == slot {
		return false
	}
	deps := t.deps[observer]
	if deps == nil {
		deps = make(slotSet)
		t.deps[observer] = deps
	}
	if _, ok := deps[slot]; ok {
		return false
	}
	deps[slot] = struct{}{}

	obs := t.rdeps[slot]
	if obs == nil {
		obs = make(slotSet)
		t.rdeps[slot] = obs
	}
	obs[observer] = struct{}{}
	return true
}

// SlotsOf returns the slots observer is subscribed to, sorted.
func (t *Tracker) SlotsOf(observer Slot) []Slot {
	return t.deps[observer].sorted()
}

// ObserversOf returns the observers subscribed to slot, sorted.
func (t *Tracker) ObserversOf(slot Slot) []Slot {
	return t.rdeps[slot].sorted()
}

// Reset drops observer's resolved subscriptions. Declared paths are kept.
func (t *Tracker) Reset(observer Slot) {
	for slot := range t.deps[observer] {
		obs := t.rdeps[slot]
		delete(obs, observer)
		if len(obs) == 0 {
			delete(t.rdeps, slot)
		}
	}
	delete(t.deps, observer)
}

// Forget drops everything involving the record with the given key and
// returns the other observers that were subscribed to its slots.
func (t *Tracker) Forget(key record.Key) []Slot {
	affected := make(slotSet)
	var own []Slot
	for slot, obs := range t.rdeps {
		if slot.Key != key {
			continue
		}
		own = append(own, slot)
		for o := range obs {
			if o.Key != key {
				affected[o] = struct{}{}
			}
		}
	}
	for observer := range t.deps {
		if observer.Key == key {
			t.Reset(observer)
		}
	}
	for _, slot := range own {
		for o := range t.rdeps[slot] {
			delete(t.deps[o], slot)
		}
		delete(t.rdeps, slot)
	}
	for observer := range t.declared {
		if observer.Key == key {
			delete(t.declared, observer)
		}
	}
	return affected.sorted()
}

// Len returns the number of observers with resolved subscriptions.
func (t *Tracker) Len() int {
	return len(t.deps)
}
