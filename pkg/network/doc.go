// Package network owns the pool of consensus nodes a client talks to. It
// picks nodes for each outgoing call, dispatches already serialized and
// signed payloads over a Channel, and fails over to the next node when a
// node cannot be reached.
//
// The pool is fixed when the Client is constructed. Health marks on nodes
// are best-effort hints shared by every caller; concurrent callers may race
// to set or clear them and the client tolerates that.
//
// Protocol-level status codes inside responses are never interpreted here.
// Callers that need to treat some responses as transient pass a predicate to
// Submit.
package network
