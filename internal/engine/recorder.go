package engine

import "sync"

// EventKind names a journaled engine event.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventDeleted     EventKind = "deleted"
	EventChanged     EventKind = "changed"
	EventInvalidated EventKind = "invalidated"
	EventRecomputed  EventKind = "recomputed"
	EventFailed      EventKind = "failed"
	EventStaleRead   EventKind = "stale-read"
	EventCycle       EventKind = "cycle"
	EventWatch       EventKind = "watch"
	EventSettled     EventKind = "settled"
)

// TraceEvent is one entry of the engine's activity trace.
//
// Slot.Field is empty for record-level events and Slot is zero for
// batch-level ones. Detail holds IR-compatible values only.
type TraceEvent struct {
	Seq    int64
	Batch  string
	Kind   EventKind
	Slot   Slot
	Detail map[string]any
}

// Recorder persists trace events. Write failures are logged by the engine
// and never fail the operation that produced the event.
type Recorder interface {
	Record(ev TraceEvent) error
}

type nopRecorder struct{}

func (nopRecorder) Record(TraceEvent) error { return nil }

// MemoryRecorder keeps trace events in memory.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

// Record appends ev.
func (m *MemoryRecorder) Record(ev TraceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of everything recorded.
func (m *MemoryRecorder) Events() []TraceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TraceEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Kinds returns the recorded event kinds in order.
func (m *MemoryRecorder) Kinds() []EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventKind, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Kind
	}
	return out
}
