// Package messaging bundles the messaging models with their compute
// functions.
//
// A message's people are the union of its direct recipients and the
// viewing members of every group it was sent to:
//
//	group.people           members of groupMembers whose roles include "view"
//	message.recipientsById person id -> person, expanding group recipients
//	message.people         recipientsById values sorted by name
//
// message.people therefore depends on group.people through two derived
// property boundaries. Adding a viewing member to a group must show up in
// the message's people without any explicit refresh.
package messaging
