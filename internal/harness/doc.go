// Package harness runs YAML scenarios against a bundle's record store and
// derivation engine.
//
// # Scenario Format
//
//	name: group_join
//	description: "A second viewer joins the group"
//	bundle: messaging        # default
//	policy: lazy             # or eager
//	steps:
//	  - create: {type: group, id: group-1, fields: {groupName: "group 1"}}
//	  - create: {type: person, id: person-1, fields: {name: Alice}}
//	  - add: {type: group, id: group-1, field: groupMembers, member: group-member-1}
//	  - set: {type: person, id: person-1, field: name, value: Alicia}
//	  - settle: true
//	  - expect: {type: message, id: message-1, path: people.length, equals: 2}
//	  - delete: {type: recipient, id: gen-1}
//	    error: "unknown record"
//	assertions:
//	  - type: trace_contains
//	    kind: recomputed
//	    slot: message:message-1.people
//	  - type: no_stale_reads
//
// Expect steps compare by canonical JSON. Records are written as their id,
// record lists and collections as id arrays.
//
// # Assertion Types
//
//   - trace_contains: an event of the given kind (and slot) was journaled
//   - trace_order: events appear in the given order
//   - trace_count: an event appears exactly N times
//   - no_stale_reads: no compute function read outside its dependency keys
//
// # Determinism
//
// Record ids without an explicit id come from a "gen-N" sequence and batch
// tokens from a "<name>/batch-N" sequence. The trace is read back from an
// in-memory SQLite journal, or from the journal passed with WithJournal.
// Golden snapshots hold the checks only, so they survive changes to the
// engine's internal event stream.
package harness
