package network_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashgraph-online/ledger-client-go/pkg/network"
	"github.com/hashgraph-online/ledger-client-go/pkg/network/networktest"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func echo(name string) networktest.Handler {
	return func(method string, request []byte) ([]byte, error) {
		return append([]byte(name+":"), request...), nil
	}
}

func newClient(t *testing.T, memory *networktest.Network, nodes ...network.Node) *network.Client {
	t.Helper()
	client, err := network.NewClient(network.Config{
		Nodes:  nodes,
		Dialer: memory.Dialer(),
	})
	if err != nil {
		t.Fatalf("failed to create network client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewClientValidation(t *testing.T) {
	memory := networktest.New()
	node := memory.AddNode(3, echo("n3"))

	if _, err := network.NewClient(network.Config{Dialer: memory.Dialer()}); !errors.Is(err, network.ErrNoNodes) {
		t.Fatalf("expected ErrNoNodes, got %v", err)
	}
	if _, err := network.NewClient(network.Config{Nodes: []network.Node{node}}); err == nil {
		t.Fatal("expected error for missing dialer")
	}
	if _, err := network.NewClient(network.Config{Nodes: []network.Node{node, node}, Dialer: memory.Dialer()}); err == nil {
		t.Fatal("expected error for duplicate node")
	}
	noAddress := network.Node{AccountID: hedera.AccountID{Account: 9}}
	if _, err := network.NewClient(network.Config{Nodes: []network.Node{noAddress}, Dialer: memory.Dialer()}); err == nil {
		t.Fatal("expected error for node without address")
	}
}

func TestQueryFailsOverToNextNode(t *testing.T) {
	memory := networktest.New()
	first := memory.AddNode(3, echo("n3"))
	second := memory.AddNode(4, echo("n4"))
	client := newClient(t, memory, first, second)
	memory.SetDown(first, true)

	node, response, err := client.Query(context.Background(), network.MethodGetTransactionReceipt, []byte("q"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.AccountID.Account != 4 {
		t.Fatalf("expected node 0.0.4 to answer, got %s", node.AccountID.String())
	}
	if string(response) != "n4:q" {
		t.Fatalf("unexpected response %q", string(response))
	}
	if client.Healthy(first.AccountID) {
		t.Fatal("expected the refusing node to be marked unhealthy")
	}
}

func TestQueryMarksUnreachableNodeUnhealthy(t *testing.T) {
	memory := networktest.New()
	first := memory.AddNode(3, echo("n3"))
	second := memory.AddNode(4, echo("n4"))
	client := newClient(t, memory, first, second)
	memory.SetDown(first, true)

	for attempt := 0; attempt < 2; attempt++ {
		if _, _, err := client.Query(context.Background(), "/svc/m", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if client.Healthy(first.AccountID) {
		t.Fatal("expected node 0.0.3 to be unhealthy")
	}
	if !client.Healthy(second.AccountID) {
		t.Fatal("expected node 0.0.4 to stay healthy")
	}

	selected := client.SelectNodes(2)
	if selected[0].AccountID.Account != 4 {
		t.Fatalf("expected healthy node first, got %s", selected[0].AccountID.String())
	}
}

func TestQueryAllNodesDown(t *testing.T) {
	memory := networktest.New()
	first := memory.AddNode(3, echo("n3"))
	second := memory.AddNode(4, echo("n4"))
	client := newClient(t, memory, first, second)
	memory.SetDown(first, true)
	memory.SetDown(second, true)

	_, _, err := client.Query(context.Background(), "/svc/m", nil)
	if !errors.Is(err, network.ErrNetworkUnavailable) {
		t.Fatalf("expected ErrNetworkUnavailable, got %v", err)
	}
}

func TestQueryDoesNotRetryApplicationErrors(t *testing.T) {
	memory := networktest.New()
	calls := 0
	failing := func(method string, request []byte) ([]byte, error) {
		calls++
		return nil, status.Error(codes.InvalidArgument, "bad query")
	}
	first := memory.AddNode(3, failing)
	second := memory.AddNode(4, failing)
	client := newClient(t, memory, first, second)

	_, _, err := client.Query(context.Background(), "/svc/m", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, network.ErrNetworkUnavailable) {
		t.Fatal("application errors must not be reported as network unavailability")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestQueryRespectsCancellation(t *testing.T) {
	memory := networktest.New()
	first := memory.AddNode(3, echo("n3"))
	client := newClient(t, memory, first)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := client.Query(ctx, "/svc/m", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !client.Healthy(first.AccountID) {
		t.Fatal("cancellation must not mark the node unhealthy")
	}
}

func TestSubmitFailsOverBetweenBoundPayloads(t *testing.T) {
	memory := networktest.New()
	first := memory.AddNode(3, echo("n3"))
	second := memory.AddNode(4, echo("n4"))
	client := newClient(t, memory, first, second)
	memory.SetDown(first, true)

	node, response, err := client.Submit(context.Background(), network.MethodCryptoTransfer, []network.NodePayload{
		{Node: first.AccountID, Payload: []byte("for-3")},
		{Node: second.AccountID, Payload: []byte("for-4")},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.AccountID.Account != 4 || string(response) != "n4:for-4" {
		t.Fatalf("expected node 4 to receive its own payload, got %s %q", node.AccountID.String(), response)
	}
}

func TestSubmitTransientResponseMovesOn(t *testing.T) {
	memory := networktest.New()
	first := memory.AddNode(3, func(string, []byte) ([]byte, error) { return []byte("busy"), nil })
	second := memory.AddNode(4, echo("n4"))
	client := newClient(t, memory, first, second)

	isBusy := func(response []byte) bool { return string(response) == "busy" }
	node, _, err := client.Submit(context.Background(), "/svc/m", []network.NodePayload{
		{Node: first.AccountID, Payload: []byte("a")},
		{Node: second.AccountID, Payload: []byte("b")},
	}, isBusy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.AccountID.Account != 4 {
		t.Fatalf("expected node 4, got %s", node.AccountID.String())
	}
	if !client.Healthy(first.AccountID) {
		t.Fatal("a busy node must not be marked unhealthy")
	}
}

func TestSubmitUnknownNodeAndExhaustion(t *testing.T) {
	memory := networktest.New()
	first := memory.AddNode(3, echo("n3"))
	client := newClient(t, memory, first)

	_, _, err := client.Submit(context.Background(), "/svc/m", []network.NodePayload{
		{Node: hedera.AccountID{Account: 99}, Payload: []byte("x")},
	}, nil)
	if !errors.Is(err, network.ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}

	memory.SetDown(first, true)
	_, _, err = client.Submit(context.Background(), "/svc/m", []network.NodePayload{
		{Node: first.AccountID, Payload: []byte("x")},
	}, nil)
	if !errors.Is(err, network.ErrNodeUnavailable) {
		t.Fatalf("expected ErrNodeUnavailable, got %v", err)
	}
}

func TestUnhealthyNodeRecovers(t *testing.T) {
	memory := networktest.New()
	first := memory.AddNode(3, echo("n3"))
	client, err := network.NewClient(network.Config{
		Nodes:            []network.Node{first},
		Dialer:           memory.Dialer(),
		UnhealthyBackoff: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create network client: %v", err)
	}
	defer client.Close()

	memory.SetDown(first, true)
	if _, _, err := client.Query(context.Background(), "/svc/m", nil); err == nil {
		t.Fatal("expected failure while node is down")
	}
	if client.Healthy(first.AccountID) {
		t.Fatal("expected node to be unhealthy")
	}

	time.Sleep(20 * time.Millisecond)
	if !client.Healthy(first.AccountID) {
		t.Fatal("expected health mark to expire")
	}
	memory.SetDown(first, false)
	if _, _, err := client.Query(context.Background(), "/svc/m", nil); err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
}

func TestNodesFromAddressBook(t *testing.T) {
	nodes := network.NodesFromAddressBook(map[string]hedera.AccountID{
		"10.0.0.5:50211": {Account: 5},
		"10.0.0.3:50211": {Account: 3},
		"10.0.0.4:50211": {Account: 4},
	})
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	for index, expected := range []uint64{3, 4, 5} {
		if nodes[index].AccountID.Account != expected {
			t.Fatalf("expected node %d at position %d, got %d", expected, index, nodes[index].AccountID.Account)
		}
	}
}
