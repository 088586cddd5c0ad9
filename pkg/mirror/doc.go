// Package mirror reads consensus topic data from a mirror node, both as
// REST history and as a live gRPC stream, and runs every message through a
// running hash verifier before handing it to the caller.
//
// The REST Client pages through topic messages and transactions and can
// produce verifier checkpoints. The Subscriber opens a server-streaming
// subscribeTopic call and delivers verified messages in arrival order.
//
// # Subscriptions
//
// A chain violation is reported to the error handler and the stream keeps
// going; the verifier does not advance past the bad message. A broken stream
// is reported once as a *StreamDisconnectedError and the subscription ends.
// There is no automatic reconnect: resubscribe with Handle.ResumeOptions.
//
//	handle, err := subscriber.Subscribe(ctx, topicID, mirror.SubscribeOptions{},
//		func(message mirror.ConsensusMessage) { fmt.Println(string(message.Contents)) },
//		func(err error) { log.Println(err) },
//	)
//	defer handle.Cancel()
package mirror
