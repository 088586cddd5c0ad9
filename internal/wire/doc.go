// Package wire holds the small amount of protobuf envelope encoding the client
// needs to talk to consensus and mirror nodes: timestamps, entity identifiers,
// transaction identifiers and a pass-through gRPC codec that moves already
// serialized messages as raw bytes.
//
// Operation bodies are never interpreted here. They are carried as opaque
// length-delimited fields.
package wire
