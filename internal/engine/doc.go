// Package engine evaluates derived properties over a record.Store and keeps
// them consistent with the graph they read.
//
// ARCHITECTURE:
//
// Every derived property of every record is a node identified by a Slot
// (record key + field name). Nodes are created on first read.
//
// Dependency tracking:
// A node's subscriptions are rebuilt on every evaluation. Before the compute
// function runs, the node's declared dependency keys are resolved against
// the current graph, subscribing to each slot they traverse. The compute
// function then runs with the node on the evaluation stack; every field read
// reported by the store is attributed to the innermost evaluating node. A
// node that reads another derived property subscribes to that node's slot,
// so invalidation chains across derived-property boundaries.
//
// Invalidation:
// The engine is the store's Observer. A changed field dirties its observers
// synchronously, walking transitively through derived slots. Reads after a
// mutation therefore never observe a stale cached value, whatever the
// policy.
//
// Policy:
//   - PolicyLazy (default): dirty nodes recompute on their next read.
//   - PolicyEager: dirty nodes are queued and recomputed by Settle.
//
// Settlement:
// Settle drains the work queue (eager recomputation and Watch callbacks) in
// FIFO order under a per-batch step quota. Everything between two Settle
// calls belongs to one batch, identified by a token from the batch
// generator and journaled through the Recorder with logical-clock sequence
// numbers.
//
// Cycles:
//   - evaluation: a node that re-enters itself fails with CyclicDependencyError
//   - propagation: a subscription loop found while dirtying fails the same way
//
// The engine is single-threaded. It starts no goroutines.
package engine
