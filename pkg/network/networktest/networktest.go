// Package networktest provides an in-memory consensus network for tests:
// programmable nodes that can be taken down and a record of every call the
// network received.
package networktest

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashgraph-online/ledger-client-go/pkg/network"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Handler answers one request sent to a node.
type Handler func(method string, request []byte) ([]byte, error)

type Call struct {
	Node    hedera.AccountID
	Method  string
	Request []byte
}

type Network struct {
	mutex    sync.Mutex
	nodes    map[string]network.Node
	handlers map[string]Handler
	down     map[string]bool
	calls    []Call
}

// New creates an empty in-memory network.
func New() *Network {
	return &Network{
		nodes:    map[string]network.Node{},
		handlers: map[string]Handler{},
		down:     map[string]bool{},
	}
}

// AddNode registers a node with the given account number and handler.
func (n *Network) AddNode(account uint64, handler Handler) network.Node {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	node := network.Node{
		AccountID: hedera.AccountID{Account: account},
		Address:   fmt.Sprintf("memory://node-%d", account),
	}
	n.nodes[node.Address] = node
	n.handlers[node.Address] = handler
	return node
}

// SetHandler replaces the handler of node.
func (n *Network) SetHandler(node network.Node, handler Handler) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.handlers[node.Address] = handler
}

// SetDown makes node unreachable (or reachable again).
func (n *Network) SetDown(node network.Node, down bool) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.down[node.Address] = down
}

// Calls returns every call that reached a live node.
func (n *Network) Calls() []Call {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]Call(nil), n.calls...)
}

// CallCount returns how many calls with method reached a live node.
func (n *Network) CallCount(method string) int {
	count := 0
	for _, call := range n.Calls() {
		if call.Method == method {
			count++
		}
	}
	return count
}

// Dialer returns a network.Dialer connected to this network.
func (n *Network) Dialer() network.Dialer {
	return func(ctx context.Context, node network.Node) (network.Channel, error) {
		n.mutex.Lock()
		defer n.mutex.Unlock()
		if _, ok := n.nodes[node.Address]; !ok {
			return nil, fmt.Errorf("no node listening on %s", node.Address)
		}
		return &channel{network: n, address: node.Address}, nil
	}
}

type channel struct {
	network *Network
	address string
}

func (c *channel) Invoke(ctx context.Context, method string, request []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	c.network.mutex.Lock()
	if c.network.down[c.address] {
		c.network.mutex.Unlock()
		return nil, status.Error(codes.Unavailable, "connection refused")
	}
	handler := c.network.handlers[c.address]
	c.network.calls = append(c.network.calls, Call{
		Node:    c.network.nodes[c.address].AccountID,
		Method:  method,
		Request: append([]byte(nil), request...),
	})
	c.network.mutex.Unlock()

	if handler == nil {
		return nil, status.Error(codes.Unimplemented, "no handler")
	}
	return handler(method, request)
}

func (c *channel) Close() error {
	return nil
}
