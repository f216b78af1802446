package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/derive/internal/record"
)

// DefaultMaxSteps is the default per-batch settle quota.
const DefaultMaxSteps = 1000

// Policy selects when dirty derived properties are recomputed.
type Policy int

const (
	// PolicyLazy recomputes a dirty node on its next read.
	PolicyLazy Policy = iota
	// PolicyEager queues dirty nodes and recomputes them during Settle.
	PolicyEager
)

func (p Policy) String() string {
	switch p {
	case PolicyLazy:
		return "lazy"
	case PolicyEager:
		return "eager"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "lazy" or "eager".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "lazy":
		return PolicyLazy, nil
	case "eager":
		return PolicyEager, nil
	default:
		return 0, fmt.Errorf("unknown policy %q (want lazy or eager)", s)
	}
}

// Engine evaluates and invalidates the derived properties of one store.
type Engine struct {
	store    *record.Store
	funcs    Funcs
	policy   Policy
	logger   *slog.Logger
	recorder Recorder
	batchGen BatchGenerator
	clock    *Clock
	maxSteps int

	tracker  *Tracker
	nodes    map[Slot]*node
	stack    *slotStack
	frames   []*frame
	queue    *workQueue
	watchers map[Slot][]*watcher
	nextWID  int

	warned      map[staleKey]bool
	diagnostics []*StaleReadWarning

	batch string
}

type staleKey struct {
	observer Slot
	read     Slot
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPolicy selects lazy (default) or eager recomputation.
func WithPolicy(p Policy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMaxSteps sets the per-batch settle quota.
//
// Default: 1000 steps (DefaultMaxSteps)
// Use WithMaxSteps(10) for testing quota enforcement.
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithRecorder journals engine events through r.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithBatchGenerator overrides the UUIDv7 batch token generator.
func WithBatchGenerator(g BatchGenerator) EngineOption {
	return func(e *Engine) {
		e.batchGen = g
	}
}

// WithClock sets the logical clock, e.g. one resumed from a journal.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// New attaches an engine to s. Every derived property in the store's
// schema must name a function in funcs.
//
// The engine becomes the store's Observer and Deriver: from here on reads
// through the store are tracked and derived fields resolve through Derive.
func New(s *record.Store, funcs Funcs, opts ...EngineOption) (*Engine, error) {
	for _, m := range s.Schema().Models() {
		for _, c := range m.ComputedProperties() {
			if _, ok := funcs[c.Fn]; !ok {
				return nil, &UnknownFunctionError{Model: m.Name(), Property: c.Name, Fn: c.Fn}
			}
		}
	}

	e := &Engine{
		store:    s,
		funcs:    funcs,
		policy:   PolicyLazy,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder: nopRecorder{},
		batchGen: UUIDv7Generator{},
		clock:    NewClock(),
		maxSteps: DefaultMaxSteps,
		tracker:  NewTracker(),
		nodes:    make(map[Slot]*node),
		stack:    newSlotStack(),
		queue:    newWorkQueue(),
		watchers: make(map[Slot][]*watcher),
		warned:   make(map[staleKey]bool),
	}
	for _, opt := range opts {
		opt(e)
	}

	s.Attach(e)
	s.SetDeriver(e)
	return e, nil
}

// Store returns the store the engine is attached to.
func (e *Engine) Store() *record.Store {
	return e.store
}

// Policy returns the recomputation policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Tracker exposes the dependency tracker for inspection.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// Diagnostics returns the stale-read warnings raised so far, in order.
func (e *Engine) Diagnostics() []*StaleReadWarning {
	out := make([]*StaleReadWarning, len(e.diagnostics))
	copy(out, e.diagnostics)
	return out
}

// Pending returns the number of queued settle items.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// FieldRead implements record.Observer. The read is attributed to the
// innermost evaluating derived property, if any.
func (e *Engine) FieldRead(rec *record.Record, field string) {
	if f := e.top(); f != nil {
		e.subscribe(f, SlotOf(rec, field))
	}
}

// FieldChanged implements record.Observer.
func (e *Engine) FieldChanged(rec *record.Record, field string) error {
	slot := SlotOf(rec, field)
	e.record(EventChanged, slot, nil)
	return e.Notify(slot)
}

// RecordCreated implements record.Observer.
func (e *Engine) RecordCreated(rec *record.Record) error {
	e.record(EventCreated, Slot{Key: rec.Key()}, map[string]any{"fields": rec.Snapshot()})
	return nil
}

// RecordDeleted implements record.Observer. Nodes and watchers of the
// record are dropped; anything outside it that read its fields is dirtied.
func (e *Engine) RecordDeleted(rec *record.Record) error {
	key := rec.Key()
	e.record(EventDeleted, Slot{Key: key}, nil)

	affected := e.tracker.Forget(key)
	for slot := range e.nodes {
		if slot.Key == key {
			delete(e.nodes, slot)
			delete(e.watchers, slot)
		}
	}

	var errs []error
	for _, obs := range affected {
		if err := e.Notify(obs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notify dirties every derived property that transitively depends on slot,
// and slot itself when it is a cached derived property.
//
// The walk is depth-first over resolved subscriptions. Meeting a slot that
// is already on the walk's path is a subscription cycle and fails with
// CyclicDependencyError after the rest of the walk completes.
func (e *Engine) Notify(slot Slot) error {
	p := &propagation{path: newSlotStack(), visited: make(map[Slot]bool)}
	if n, ok := e.nodes[slot]; ok && e.dirty(n) {
		e.schedule(n)
	}
	e.propagate(p, slot)
	return p.err
}

type propagation struct {
	path    *slotStack
	visited map[Slot]bool
	err     error
}

func (e *Engine) propagate(p *propagation, slot Slot) {
	p.path.push(slot)
	defer p.path.pop()

	for _, obs := range e.tracker.ObserversOf(slot) {
		if p.path.contains(obs) {
			if p.err == nil {
				cerr := p.path.cycle(obs)
				p.err = cerr
				e.record(EventCycle, obs, map[string]any{"path": slotStrings(cerr.Path)})
				e.logger.Warn("subscription cycle", "slot", obs.String(), "error", cerr)
			}
			continue
		}
		if p.visited[obs] {
			continue
		}
		p.visited[obs] = true

		if n, ok := e.nodes[obs]; ok && e.dirty(n) {
			e.schedule(n)
		}
		e.propagate(p, obs)
	}
}

// dirty marks n Dirty. Reports whether the state changed.
func (e *Engine) dirty(n *node) bool {
	switch n.state {
	case StateCached:
		n.state = StateDirty
		e.logger.Debug("invalidated", "slot", n.slot.String())
		e.record(EventInvalidated, n.slot, nil)
		return true
	case StateEvaluating:
		n.invalidated = true
		return false
	default:
		return false
	}
}

// schedule queues follow-up work for a node that just became dirty.
func (e *Engine) schedule(n *node) {
	if e.policy == PolicyEager {
		e.queue.Enqueue(work{kind: workRecompute, slot: n.slot})
	}
	if len(e.watchers[n.slot]) > 0 {
		e.queue.Enqueue(work{kind: workWatch, slot: n.slot})
	}
}

// Invalidate forces rec's derived property name Dirty and dirties its
// dependents. The next read recomputes it.
func (e *Engine) Invalidate(rec *record.Record, name string) error {
	slot := SlotOf(rec, name)
	n, ok := e.nodes[slot]
	if !ok || n.state != StateCached {
		return nil
	}
	return e.Notify(slot)
}

func (e *Engine) currentBatch() string {
	if e.batch == "" {
		e.batch = e.batchGen.Generate()
	}
	return e.batch
}

func (e *Engine) record(kind EventKind, slot Slot, detail map[string]any) {
	ev := TraceEvent{
		Seq:    e.clock.Next(),
		Batch:  e.currentBatch(),
		Kind:   kind,
		Slot:   slot,
		Detail: detail,
	}
	if err := e.recorder.Record(ev); err != nil {
		e.logger.Error("journal write failed", "kind", string(kind), "slot", slot.String(), "error", err)
	}
}

func slotStrings(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}
