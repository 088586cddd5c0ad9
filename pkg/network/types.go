package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/rs/zerolog"
)

var (
	ErrNoNodes            = errors.New("network has no nodes")
	ErrUnknownNode        = errors.New("node is not part of the network")
	ErrNodeUnavailable    = errors.New("node unavailable")
	ErrNetworkUnavailable = errors.New("network unavailable")
)

// Node is one consensus node: the account that identifies it and the
// address its gRPC endpoint listens on.
type Node struct {
	AccountID hedera.AccountID
	Address   string
}

func (n Node) String() string {
	return fmt.Sprintf("%s@%s", n.AccountID.String(), n.Address)
}

// NodePayload is a request bound to one specific node.
type NodePayload struct {
	Node    hedera.AccountID
	Payload []byte
}

// Channel sends one unary request to a node.
type Channel interface {
	Invoke(ctx context.Context, method string, request []byte) ([]byte, error)
	Close() error
}

// Dialer opens a Channel to a node.
type Dialer func(ctx context.Context, node Node) (Channel, error)

// TransientResponse reports whether a node's response should be treated like
// a busy node: the call moves to the next node without marking this one
// unhealthy.
type TransientResponse func(response []byte) bool

type Config struct {
	Nodes               []Node
	Dialer              Dialer
	MaxNodeAttempts     int
	UnhealthyBackoff    time.Duration
	MaxUnhealthyBackoff time.Duration
	RequestTimeout      time.Duration
	Logger              *zerolog.Logger
}

const (
	defaultMaxNodeAttempts     = 3
	defaultUnhealthyBackoff    = 8 * time.Second
	defaultMaxUnhealthyBackoff = time.Minute
	defaultRequestTimeout      = 10 * time.Second
)

// NodesFromAddressBook converts an address -> account map into a node list
// ordered by account number.
func NodesFromAddressBook(book map[string]hedera.AccountID) []Node {
	nodes := make([]Node, 0, len(book))
	for address, accountID := range book {
		nodes = append(nodes, Node{AccountID: accountID, Address: address})
	}
	sort.Slice(nodes, func(left, right int) bool {
		a, b := nodes[left].AccountID, nodes[right].AccountID
		if a.Shard != b.Shard {
			return a.Shard < b.Shard
		}
		if a.Realm != b.Realm {
			return a.Realm < b.Realm
		}
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		return nodes[left].Address < nodes[right].Address
	})
	return nodes
}
