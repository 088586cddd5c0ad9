package wire

import (
	"fmt"
)

// Frame carries an already serialized protobuf message through gRPC.
type Frame struct {
	Payload []byte
}

// Codec is a gRPC codec that passes Frame payloads through untouched. It
// reports itself as "proto" so nodes see the content type they expect.
type Codec struct{}

// Marshal returns the frame payload.
func (Codec) Marshal(value any) ([]byte, error) {
	frame, ok := value.(*Frame)
	if !ok {
		return nil, fmt.Errorf("wire codec cannot marshal %T", value)
	}
	return frame.Payload, nil
}

// Unmarshal copies data into the frame.
func (Codec) Unmarshal(data []byte, value any) error {
	frame, ok := value.(*Frame)
	if !ok {
		return fmt.Errorf("wire codec cannot unmarshal into %T", value)
	}
	frame.Payload = append([]byte(nil), data...)
	return nil
}

// Name returns the codec content subtype.
func (Codec) Name() string {
	return "proto"
}
