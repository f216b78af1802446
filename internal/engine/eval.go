package engine

import (
	"fmt"
	"maps"
	"slices"
	"unicode/utf16"

	"github.com/roach88/derive/internal/deppath"
	"github.com/roach88/derive/internal/ir"
	"github.com/roach88/derive/internal/record"
)

// ComputeFunc computes a derived property of self. Reads made through self,
// other records or s.Get are tracked automatically.
type ComputeFunc func(s *Scope, self *record.Record) (any, error)

// Funcs maps compute function names, as referenced by ir.ComputedSpec.Fn,
// to implementations.
type Funcs map[string]ComputeFunc

// Scope is handed to a compute function for the duration of one evaluation.
type Scope struct {
	e    *Engine
	self *record.Record
}

// Self returns the record being computed.
func (s *Scope) Self() *record.Record {
	return s.self
}

// Get walks path from rec, like Engine.Get.
func (s *Scope) Get(rec *record.Record, path string) (any, error) {
	return s.e.Get(rec, path)
}

// Derive implements record.Deriver. It returns the cached value of rec's
// derived property name, recomputing it first when it is not cached.
//
// Called while another derived property evaluates, the caller subscribes to
// this property's slot, which is how invalidation chains between derived
// properties.
func (e *Engine) Derive(rec *record.Record, name string) (any, error) {
	if rec.Deleted() {
		return nil, &record.UnknownRecordError{Type: rec.Type(), ID: rec.ID()}
	}
	comp, ok := rec.Model().Computed(name)
	if !ok {
		return nil, &record.UnknownFieldError{Type: rec.Type(), Field: name}
	}
	slot := SlotOf(rec, name)
	if f := e.top(); f != nil {
		e.subscribe(f, slot)
	}

	n, ok := e.nodes[slot]
	if !ok {
		n = &node{slot: slot, rec: rec, comp: comp}
		e.nodes[slot] = n
		e.tracker.Declare(slot, comp.Paths)
	}
	if n.state == StateCached {
		return n.value, nil
	}
	if e.stack.contains(slot) {
		err := e.stack.cycle(slot)
		e.record(EventCycle, slot, map[string]any{"path": slotStrings(err.Path)})
		return nil, err
	}
	return e.evaluate(n)
}

func (e *Engine) evaluate(n *node) (any, error) {
	n.state = StateEvaluating
	n.invalidated = false
	e.tracker.Reset(n.slot)

	f := &frame{slot: n.slot, declaring: true, covered: make(slotSet)}
	e.frames = append(e.frames, f)
	e.stack.push(n.slot)
	value, err := e.run(n, f)
	e.stack.pop()
	e.frames = e.frames[:len(e.frames)-1]

	if err != nil {
		n.state = StateDirty
		n.value = nil
		e.logger.Debug("compute failed", "slot", n.slot.String(), "error", err)
		e.record(EventFailed, n.slot, map[string]any{"error": err.Error()})
		return nil, &ComputeError{Slot: n.slot, Err: err}
	}

	n.value = value
	n.revision++
	n.state = StateCached
	if n.invalidated {
		n.state = StateDirty
		e.schedule(n)
	}
	e.logger.Debug("recomputed", "slot", n.slot.String(), "revision", n.revision)
	e.record(EventRecomputed, n.slot, map[string]any{
		"revision": n.revision,
		"value":    describe(value),
	})
	return value, nil
}

func (e *Engine) run(n *node, f *frame) (any, error) {
	for _, p := range n.comp.Paths {
		if err := e.resolve(n.rec, p); err != nil {
			return nil, fmt.Errorf("dependency %s: %w", p, err)
		}
	}
	f.declaring = false

	fn := e.funcs[n.comp.Fn]
	return fn(&Scope{e: e, self: n.rec}, n.rec)
}

// resolve walks a declared dependency path from cur, reading every slot it
// passes through so the evaluating node subscribes to it.
func (e *Engine) resolve(cur any, p deppath.Path) error {
	if p.Len() == 0 || cur == nil {
		return nil
	}
	seg := p.Head()
	switch seg.Kind {
	case deppath.Field:
		rec, ok := cur.(*record.Record)
		if !ok {
			return nil
		}
		v, err := rec.Get(seg.Name)
		if err != nil {
			return err
		}
		return e.resolve(v, p.Rest())
	case deppath.Each:
		items, ok := elements(cur)
		if !ok {
			return nil
		}
		for _, item := range items {
			if err := e.resolve(item, p.Rest()); err != nil {
				return err
			}
		}
		return nil
	default:
		// Members: the collection read that got us here subscribed to
		// membership already.
		return nil
	}
}

// Get walks path from rec and returns the value at its end. Paths use the
// dependency-key grammar: "group.people.length", "groupMembers.@each.roles".
// An unlinked relationship along the way yields nil. "length" counts
// collections, derived lists and maps, IR arrays and objects, and the
// UTF-16 code units of strings.
//
// Inside a compute function every read Get makes is tracked.
func (e *Engine) Get(rec *record.Record, path string) (any, error) {
	paths, err := deppath.Parse(path)
	if err != nil {
		return nil, err
	}
	if len(paths) != 1 {
		return nil, fmt.Errorf("path %q expands to %d paths", path, len(paths))
	}
	return walk(rec, paths[0].Segments)
}

func walk(cur any, segs []deppath.Segment) (any, error) {
	for i, seg := range segs {
		if cur == nil {
			return nil, nil
		}
		switch seg.Kind {
		case deppath.Field:
			v, err := field(cur, seg.Name)
			if err != nil {
				return nil, err
			}
			cur = v
		case deppath.Each:
			items, ok := elements(cur)
			if !ok {
				return nil, fmt.Errorf("@each over %T", cur)
			}
			out := make([]any, 0, len(items))
			for _, item := range items {
				v, err := walk(item, segs[i+1:])
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		case deppath.Members:
			if seg.Name == "length" {
				return length(cur)
			}
			if c, ok := cur.(*record.Collection); ok {
				return c.Records(), nil
			}
			return cur, nil
		}
	}
	return cur, nil
}

func field(cur any, name string) (any, error) {
	switch v := cur.(type) {
	case *record.Record:
		return v.Get(name)
	case ir.IRObject:
		if f, ok := v[name]; ok {
			return f, nil
		}
		return nil, nil
	case map[string]*record.Record:
		if r, ok := v[name]; ok {
			return r, nil
		}
		return nil, nil
	case map[string]any:
		return v[name], nil
	default:
		return nil, fmt.Errorf("cannot read %q of %T", name, cur)
	}
}

// elements lists the members of anything collection-shaped. Maps yield
// their values in key order.
func elements(cur any) ([]any, bool) {
	var out []any
	switch v := cur.(type) {
	case *record.Collection:
		for _, r := range v.Records() {
			out = append(out, r)
		}
	case []*record.Record:
		for _, r := range v {
			out = append(out, r)
		}
	case map[string]*record.Record:
		for _, k := range slices.Sorted(maps.Keys(v)) {
			out = append(out, v[k])
		}
	case []any:
		out = append(out, v...)
	case ir.IRArray:
		for _, item := range v {
			out = append(out, item)
		}
	case ir.IRObject:
		for _, k := range v.SortedKeys() {
			out = append(out, v[k])
		}
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(v)) {
			out = append(out, v[k])
		}
	default:
		return nil, false
	}
	return out, true
}

func length(cur any) (any, error) {
	switch v := cur.(type) {
	case *record.Collection:
		return v.Len(), nil
	case ir.IRString:
		return len(utf16.Encode([]rune(string(v)))), nil
	case string:
		return len(utf16.Encode([]rune(v))), nil
	}
	items, ok := elements(cur)
	if !ok {
		return nil, fmt.Errorf("length of %T", cur)
	}
	return len(items), nil
}

// describe renders a derived value for the journal: records become their
// keys, anything else IR-compatible passes through.
func describe(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case *record.Record:
		return val.Key().String()
	case []*record.Record:
		out := make([]any, len(val))
		for i, r := range val {
			out[i] = r.Key().String()
		}
		return out
	case map[string]*record.Record:
		out := make(map[string]any, len(val))
		for k, r := range val {
			out[k] = r.Key().String()
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = describe(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = describe(item)
		}
		return out
	case ir.IRValue, string, bool, int, int64, []string:
		return val
	default:
		return fmt.Sprintf("%T", v)
	}
}
