// Package runninghash recomputes and verifies the running hash chain that
// links every consensus message on a topic to all messages before it.
//
// A Verifier consumes messages strictly in sequence order. It never buffers,
// skips or resynchronizes: a message that does not extend the chain is
// reported as a *ChainIntegrityError and the verifier keeps its last good
// state, leaving the recovery policy to the caller.
package runninghash
