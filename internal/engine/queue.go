package engine

import "sync"

// workKind distinguishes queued settle work.
type workKind int

const (
	// workRecompute re-evaluates a dirty node (eager policy).
	workRecompute workKind = iota + 1
	// workWatch delivers a watched property's new value.
	workWatch
)

func (k workKind) String() string {
	switch k {
	case workRecompute:
		return "recompute"
	case workWatch:
		return "watch"
	default:
		return "unknown"
	}
}

type work struct {
	kind workKind
	slot Slot
}

// workQueue is the FIFO of pending settle work. An item already waiting is
// not queued twice.
//
// The mutex allows watch callbacks running on other goroutines to mutate
// the store and enqueue, although the engine itself never starts any.
type workQueue struct {
	mu      sync.Mutex
	items   []work
	pending map[work]bool
}

func newWorkQueue() *workQueue {
	return &workQueue{
		items:   make([]work, 0, 16),
		pending: make(map[work]bool),
	}
}

// Enqueue adds w unless an identical item is still pending.
// Reports whether w was added.
func (q *workQueue) Enqueue(w work) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending[w] {
		return false
	}
	q.pending[w] = true
	q.items = append(q.items, w)
	return true
}

// TryDequeue removes and returns the front item.
func (q *workQueue) TryDequeue() (work, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return work{}, false
	}
	w := q.items[0]
	q.items[0] = work{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	delete(q.pending, w)
	return w, true
}

// Len returns the number of pending items.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every pending item.
func (q *workQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
	q.pending = make(map[work]bool)
}
