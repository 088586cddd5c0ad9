package network

import (
	"context"
	"fmt"

	"github.com/hashgraph-online/ledger-client-go/internal/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	MethodCryptoCreateAccount   = "/proto.CryptoService/createAccount"
	MethodCryptoTransfer        = "/proto.CryptoService/cryptoTransfer"
	MethodCryptoUpdateAccount   = "/proto.CryptoService/updateAccount"
	MethodGetTransactionReceipt = "/proto.CryptoService/getTransactionReceipts"
	MethodFileDelete            = "/proto.FileService/deleteFile"
	MethodConsensusCreateTopic  = "/proto.ConsensusService/createTopic"
	MethodConsensusSubmit       = "/proto.ConsensusService/submitMessage"
)

type grpcChannel struct {
	conn *grpc.ClientConn
}

// GRPCDialer returns a Dialer that opens plaintext gRPC channels unless
// options are given, in which case they replace the defaults.
func GRPCDialer(options ...grpc.DialOption) Dialer {
	return func(_ context.Context, node Node) (Channel, error) {
		dialOptions := options
		if len(dialOptions) == 0 {
			dialOptions = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
		}
		conn, err := grpc.NewClient(node.Address, dialOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC channel to %s: %w", node.Address, err)
		}
		return &grpcChannel{conn: conn}, nil
	}
}

// NewGRPCChannel wraps an existing connection as a Channel.
func NewGRPCChannel(conn *grpc.ClientConn) Channel {
	return &grpcChannel{conn: conn}
}

func (c *grpcChannel) Invoke(ctx context.Context, method string, request []byte) ([]byte, error) {
	response := &wire.Frame{}
	err := c.conn.Invoke(
		ctx,
		method,
		&wire.Frame{Payload: request},
		response,
		grpc.ForceCodec(wire.Codec{}),
	)
	if err != nil {
		return nil, err
	}
	return response.Payload, nil
}

func (c *grpcChannel) Close() error {
	return c.conn.Close()
}
