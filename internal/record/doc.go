// Package record implements the record store and relationship resolver.
//
// A Store holds records by (type, id) under a schema resolved once at
// construction. Records carry attributes, belongs-to links and has-many
// collections. Collections are live views: a link made anywhere in the
// store shows up in every collection that observes it, because the store
// maintains both sides of every relationship that declares (or infers) an
// inverse.
//
// The store knows nothing about derived properties. It reports every field
// read and every field change to an attached Observer, and delegates reads
// of computed fields to an attached Deriver. The engine package implements
// both.
//
// A Store is not safe for concurrent use.
package record
