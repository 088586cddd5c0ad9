package mirror

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/hashgraph-online/ledger-client-go/internal/wire"
	"github.com/hashgraph-online/ledger-client-go/pkg/runninghash"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protowire"
)

const SubscribeTopicMethod = "/com.hedera.mirror.api.proto.ConsensusService/subscribeTopic"

const (
	queryTopicIDField   protowire.Number = 1
	queryStartTimeField protowire.Number = 2
	queryEndTimeField   protowire.Number = 3
	queryLimitField     protowire.Number = 4

	responseTimestampField   protowire.Number = 1
	responseMessageField     protowire.Number = 2
	responseRunningHashField protowire.Number = 3
	responseSequenceField    protowire.Number = 4
	responseVersionField     protowire.Number = 5
	responseChunkInfoField   protowire.Number = 6

	chunkTotalField  protowire.Number = 2
	chunkNumberField protowire.Number = 3
)

// ConsensusMessage is one message pushed by the mirror node stream.
type ConsensusMessage struct {
	TopicID            hedera.TopicID
	ConsensusTimestamp time.Time
	SequenceNumber     uint64
	Contents           []byte
	RunningHash        []byte
	RunningHashVersion uint64
	ChunkNumber        int32
	ChunkTotal         int32
}

func (m ConsensusMessage) Verifiable() runninghash.Message {
	return runninghash.Message{
		TopicID:            m.TopicID,
		ConsensusTimestamp: m.ConsensusTimestamp,
		SequenceNumber:     m.SequenceNumber,
		Contents:           m.Contents,
		RunningHash:        m.RunningHash,
		RunningHashVersion: m.RunningHashVersion,
	}
}

// EncodeTopicQuery encodes a ConsensusTopicQuery.
func EncodeTopicQuery(topicID hedera.TopicID, options SubscribeOptions) []byte {
	start := options.StartTime
	if start.IsZero() {
		start = time.Unix(0, 0)
	}

	var query []byte
	query = wire.AppendMessageField(query, queryTopicIDField, wire.EncodeTopicID(topicID))
	query = wire.AppendMessageField(query, queryStartTimeField, wire.EncodeTimestamp(start))
	if !options.EndTime.IsZero() {
		query = wire.AppendMessageField(query, queryEndTimeField, wire.EncodeTimestamp(options.EndTime))
	}
	query = wire.AppendVarintField(query, queryLimitField, options.Limit)
	return query
}

// DecodeTopicQuery decodes a ConsensusTopicQuery.
func DecodeTopicQuery(data []byte) (hedera.TopicID, SubscribeOptions, error) {
	var topicID hedera.TopicID
	var options SubscribeOptions
	err := wire.Walk(data, func(field wire.Field) error {
		var fieldErr error
		switch field.Number {
		case queryTopicIDField:
			topicID, fieldErr = wire.DecodeTopicID(field.Bytes)
		case queryStartTimeField:
			options.StartTime, fieldErr = wire.DecodeTimestamp(field.Bytes)
		case queryEndTimeField:
			options.EndTime, fieldErr = wire.DecodeTimestamp(field.Bytes)
		case queryLimitField:
			options.Limit = field.Varint
		}
		return fieldErr
	})
	if err != nil {
		return hedera.TopicID{}, SubscribeOptions{}, fmt.Errorf("failed to decode topic query: %w", err)
	}
	return topicID, options, nil
}

// EncodeTopicResponse encodes a ConsensusTopicResponse. The topic is implied
// by the subscription and not part of the message.
func EncodeTopicResponse(message ConsensusMessage) []byte {
	var data []byte
	data = wire.AppendMessageField(data, responseTimestampField, wire.EncodeTimestamp(message.ConsensusTimestamp))
	data = wire.AppendBytesField(data, responseMessageField, message.Contents)
	data = wire.AppendBytesField(data, responseRunningHashField, message.RunningHash)
	data = wire.AppendVarintField(data, responseSequenceField, message.SequenceNumber)
	data = wire.AppendVarintField(data, responseVersionField, message.RunningHashVersion)
	if message.ChunkTotal > 0 {
		var chunk []byte
		chunk = wire.AppendVarintField(chunk, chunkTotalField, uint64(message.ChunkTotal))
		chunk = wire.AppendVarintField(chunk, chunkNumberField, uint64(message.ChunkNumber))
		data = wire.AppendMessageField(data, responseChunkInfoField, chunk)
	}
	return data
}

// DecodeTopicResponse decodes a ConsensusTopicResponse received on a
// subscription to topicID.
func DecodeTopicResponse(topicID hedera.TopicID, data []byte) (ConsensusMessage, error) {
	message := ConsensusMessage{TopicID: topicID}
	err := wire.Walk(data, func(field wire.Field) error {
		var fieldErr error
		switch field.Number {
		case responseTimestampField:
			message.ConsensusTimestamp, fieldErr = wire.DecodeTimestamp(field.Bytes)
		case responseMessageField:
			message.Contents = append([]byte(nil), field.Bytes...)
		case responseRunningHashField:
			message.RunningHash = append([]byte(nil), field.Bytes...)
		case responseSequenceField:
			message.SequenceNumber = field.Varint
		case responseVersionField:
			message.RunningHashVersion = field.Varint
		case responseChunkInfoField:
			fieldErr = wire.Walk(field.Bytes, func(chunkField wire.Field) error {
				switch chunkField.Number {
				case chunkTotalField:
					message.ChunkTotal = int32(chunkField.Varint)
				case chunkNumberField:
					message.ChunkNumber = int32(chunkField.Varint)
				}
				return nil
			})
		}
		return fieldErr
	})
	if err != nil {
		return ConsensusMessage{}, fmt.Errorf("failed to decode topic response: %w", err)
	}
	return message, nil
}

// Stream yields the raw responses of one subscription. Recv returns io.EOF
// when the server ends the stream cleanly.
type Stream interface {
	Recv() ([]byte, error)
	Close() error
}

// StreamOpener starts a subscribeTopic call for an encoded query.
type StreamOpener interface {
	OpenTopicStream(ctx context.Context, query []byte) (Stream, error)
}

// GRPCStreamOpener opens subscriptions on a mirror node gRPC connection.
type GRPCStreamOpener struct {
	conn *grpc.ClientConn
}

// NewGRPCStreamOpener creates a new GRPCStreamOpener.
func NewGRPCStreamOpener(conn *grpc.ClientConn) *GRPCStreamOpener {
	return &GRPCStreamOpener{conn: conn}
}

// DialMirror creates a connection to a mirror node. Port 443 uses TLS,
// anything else plaintext, unless options are given.
func DialMirror(address string, options ...grpc.DialOption) (*grpc.ClientConn, error) {
	if len(options) == 0 {
		transport := insecure.NewCredentials()
		if _, port, err := net.SplitHostPort(address); err == nil && port == "443" {
			transport = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		}
		options = []grpc.DialOption{grpc.WithTransportCredentials(transport)}
	}
	conn, err := grpc.NewClient(address, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror connection to %s: %w", address, err)
	}
	return conn, nil
}

func (o *GRPCStreamOpener) OpenTopicStream(ctx context.Context, query []byte) (Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	description := &grpc.StreamDesc{StreamName: "subscribeTopic", ServerStreams: true}
	clientStream, err := o.conn.NewStream(streamCtx, description, SubscribeTopicMethod, grpc.ForceCodec(wire.Codec{}))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open topic stream: %w", err)
	}
	if err := clientStream.SendMsg(&wire.Frame{Payload: query}); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to send topic query: %w", err)
	}
	if err := clientStream.CloseSend(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to send topic query: %w", err)
	}
	return &grpcStream{stream: clientStream, cancel: cancel}, nil
}

type grpcStream struct {
	stream grpc.ClientStream
	cancel context.CancelFunc
}

func (s *grpcStream) Recv() ([]byte, error) {
	frame := &wire.Frame{}
	if err := s.stream.RecvMsg(frame); err != nil {
		return nil, err
	}
	return frame.Payload, nil
}

func (s *grpcStream) Close() error {
	s.cancel()
	return nil
}
