// Package deppath parses the dependency keys attached to derived properties.
//
// A key is a dot-separated route from the owning record:
//
//	groupName                       plain attribute
//	group.people                    through a belongs-to into a derived property
//	recipients.[]                   membership of a has-many (also: recipients.length)
//	groupMembers.@each.roles        membership plus the roles of every member
//	groupMembers.@each.{roles,person}  brace expansion into two paths
//
// Keys are parsed once, when a schema is resolved, and the engine walks the
// resulting segments directly.
package deppath
