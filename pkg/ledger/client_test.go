package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hashgraph-online/ledger-client-go/internal/wire"
	"github.com/hashgraph-online/ledger-client-go/pkg/keys"
	"github.com/hashgraph-online/ledger-client-go/pkg/ledger"
	"github.com/hashgraph-online/ledger-client-go/pkg/mirror"
	"github.com/hashgraph-online/ledger-client-go/pkg/network"
	"github.com/hashgraph-online/ledger-client-go/pkg/network/networktest"
	"github.com/hashgraph-online/ledger-client-go/pkg/receipt"
	"github.com/hashgraph-online/ledger-client-go/pkg/runninghash"
	"github.com/hashgraph-online/ledger-client-go/pkg/transaction"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

var (
	operatorID = hedera.AccountID{Account: 1001}
	recipient  = hedera.AccountID{Account: 2002}
	newTopic   = hedera.TopicID{Topic: 7007}
)

// fakeNode accepts submissions with precheck and answers receipt queries
// with UNKNOWN pending times before the final receipt.
type fakeNode struct {
	mutex     sync.Mutex
	precheck  hedera.Status
	pending   int
	final     transaction.Receipt
	submitted [][]byte
	queries   int
	queriedID transaction.TransactionID
}

func (n *fakeNode) handle(method string, request []byte) ([]byte, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if method != network.MethodGetTransactionReceipt {
		n.submitted = append(n.submitted, request)
		return transaction.EncodeTransactionResponse(n.precheck), nil
	}

	id, err := receipt.DecodeQuery(request)
	if err != nil {
		return nil, err
	}
	n.queriedID = id
	n.queries++
	answer := receipt.Answer{Precheck: hedera.StatusOk, Receipt: n.final}
	if n.queries <= n.pending {
		answer.Receipt = transaction.Receipt{Status: hedera.StatusUnknown}
	}
	return receipt.EncodeResponse(answer), nil
}

func (n *fakeNode) lastSubmitted(t *testing.T) *transaction.Transaction {
	t.Helper()
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if len(n.submitted) == 0 {
		t.Fatalf("node received no submission")
	}
	restored, err := transaction.FromBytes(wire.AppendMessageField(nil, 1, n.submitted[len(n.submitted)-1]))
	if err != nil {
		t.Fatalf("failed to decode submitted transaction: %v", err)
	}
	return restored
}

type frameOpener struct {
	frames [][]byte
}

func (o *frameOpener) OpenTopicStream(ctx context.Context, query []byte) (mirror.Stream, error) {
	return &frameStream{ctx: ctx, frames: o.frames}, nil
}

type frameStream struct {
	ctx    context.Context
	frames [][]byte
}

func (s *frameStream) Recv() ([]byte, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return frame, nil
}

func (s *frameStream) Close() error {
	return nil
}

type testLedger struct {
	client   *ledger.Client
	memory   *networktest.Network
	nodes    []network.Node
	operator hedera.PrivateKey
}

func generateKey(t *testing.T) hedera.PrivateKey {
	t.Helper()
	key, err := hedera.PrivateKeyGenerateEd25519()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func newTestLedger(t *testing.T, opener mirror.StreamOpener, mirrorURL string, handlers ...networktest.Handler) *testLedger {
	t.Helper()
	memory := networktest.New()
	nodes := make([]network.Node, 0, len(handlers))
	for index, handler := range handlers {
		nodes = append(nodes, memory.AddNode(uint64(3+index), handler))
	}
	if opener == nil {
		opener = &frameOpener{}
	}
	if mirrorURL == "" {
		mirrorURL = "http://127.0.0.1:1"
	}

	operator := generateKey(t)
	client, err := ledger.NewClient(ledger.ClientConfig{
		OperatorAccountID:  operatorID.String(),
		OperatorPrivateKey: operator.String(),
		Network:            "testnet",
		Nodes:              nodes,
		MirrorBaseURL:      mirrorURL,
		Poller: receipt.Config{
			InitialDelay: time.Millisecond,
			MaxDelay:     4 * time.Millisecond,
			MaxElapsed:   5 * time.Second,
		},
		Dialer:       memory.Dialer(),
		StreamOpener: opener,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return &testLedger{client: client, memory: memory, nodes: nodes, operator: operator}
}

func hasKey(signers []hedera.PublicKey, key hedera.PublicKey) bool {
	for _, signer := range signers {
		if keys.SameKey(signer, key) {
			return true
		}
	}
	return false
}

func TestExecuteTransferFailsOverAndPolls(t *testing.T) {
	first := &fakeNode{precheck: hedera.StatusOk, final: transaction.Receipt{Status: hedera.StatusSuccess}}
	second := &fakeNode{precheck: hedera.StatusOk, pending: 1, final: transaction.Receipt{Status: hedera.StatusSuccess}}
	env := newTestLedger(t, nil, "", first.handle, second.handle)
	env.memory.SetDown(env.nodes[0], true)

	op, err := transaction.HbarTransfer(
		transaction.AccountAmount{AccountID: operatorID, Amount: -100},
		transaction.AccountAmount{AccountID: recipient, Amount: 100},
	)
	if err != nil {
		t.Fatalf("failed to build transfer: %v", err)
	}
	tx, err := env.client.NewTransaction(op)
	if err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}
	if err := tx.SetMemo("transfer test"); err != nil {
		t.Fatalf("failed to set memo: %v", err)
	}
	if err := tx.SetNodes(env.nodes[0].AccountID, env.nodes[1].AccountID); err != nil {
		t.Fatalf("failed to set nodes: %v", err)
	}

	result, err := env.client.Execute(context.Background(), tx)
	if err != nil {
		t.Fatalf("failed to execute: %v", err)
	}
	if result.Status != hedera.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", result.Status)
	}
	if tx.State() != transaction.StateFinalized {
		t.Fatalf("expected finalized transaction, got %s", tx.State())
	}
	response, _ := tx.Response()
	if response.NodeID.String() != env.nodes[1].AccountID.String() {
		t.Fatalf("expected node %s to accept, got %s", env.nodes[1].AccountID, response.NodeID)
	}

	if len(first.submitted) != 0 {
		t.Fatalf("down node must not receive the submission")
	}
	submitted := second.lastSubmitted(t)
	if submitted.Memo() != "transfer test" {
		t.Fatalf("unexpected memo %q", submitted.Memo())
	}
	if !hasKey(submitted.SigningKeys(), env.operator.PublicKey()) {
		t.Fatalf("expected operator signature on the submitted body")
	}
	if !second.queriedID.Equal(tx.TransactionID()) || second.queries != 2 {
		t.Fatalf("expected 2 receipt queries for %s, got %d for %s", tx.TransactionID(), second.queries, second.queriedID)
	}
}

func TestExecuteCollectsExtraSignatures(t *testing.T) {
	node := &fakeNode{precheck: hedera.StatusOk, final: transaction.Receipt{Status: hedera.StatusSuccess}}
	env := newTestLedger(t, nil, "", node.handle)
	cosigner := generateKey(t)

	op, err := transaction.HbarTransfer(
		transaction.AccountAmount{AccountID: recipient, Amount: -5},
		transaction.AccountAmount{AccountID: operatorID, Amount: 5},
	)
	if err != nil {
		t.Fatalf("failed to build transfer: %v", err)
	}
	tx, err := env.client.NewTransaction(op)
	if err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}
	if _, err := env.client.Execute(context.Background(), tx, cosigner); err != nil {
		t.Fatalf("failed to execute: %v", err)
	}

	signers := node.lastSubmitted(t).SigningKeys()
	if len(signers) != 2 || !hasKey(signers, cosigner.PublicKey()) || !hasKey(signers, env.operator.PublicKey()) {
		t.Fatalf("expected operator and cosigner signatures, got %d keys", len(signers))
	}
}

func TestExecuteReportsFailedReceipt(t *testing.T) {
	node := &fakeNode{precheck: hedera.StatusOk, final: transaction.Receipt{Status: hedera.StatusInsufficientPayerBalance}}
	env := newTestLedger(t, nil, "", node.handle)

	result, err := env.client.SubmitTopicMessage(context.Background(), newTopic, []byte("hello"))
	var statusErr *transaction.ReceiptStatusError
	if !errors.As(err, &statusErr) || statusErr.Status != hedera.StatusInsufficientPayerBalance {
		t.Fatalf("expected ReceiptStatusError, got %v", err)
	}
	if result.Status != hedera.StatusInsufficientPayerBalance {
		t.Fatalf("expected the terminal receipt to be returned, got %s", result.Status)
	}
}

func TestExecuteDuplicateStillPolls(t *testing.T) {
	node := &fakeNode{precheck: hedera.StatusDuplicateTransaction, final: transaction.Receipt{Status: hedera.StatusSuccess}}
	env := newTestLedger(t, nil, "", node.handle)

	result, err := env.client.SubmitTopicMessage(context.Background(), newTopic, []byte("again"))
	if err != nil {
		t.Fatalf("expected duplicate to resolve through its receipt, got %v", err)
	}
	if result.Status != hedera.StatusSuccess || node.queries != 1 {
		t.Fatalf("unexpected result %s after %d queries", result.Status, node.queries)
	}
}

func TestExecutePrecheckRejection(t *testing.T) {
	node := &fakeNode{precheck: hedera.StatusInvalidSignature}
	env := newTestLedger(t, nil, "", node.handle)

	_, err := env.client.SubmitTopicMessage(context.Background(), newTopic, []byte("hello"))
	var precheckErr *transaction.PrecheckError
	if !errors.As(err, &precheckErr) || precheckErr.Status != hedera.StatusInvalidSignature {
		t.Fatalf("expected PrecheckError, got %v", err)
	}
	if node.queries != 0 {
		t.Fatalf("a rejected transaction must not be polled")
	}
}

func TestCreateTopicThenSubscribe(t *testing.T) {
	node := &fakeNode{
		precheck: hedera.StatusOk,
		final:    transaction.Receipt{Status: hedera.StatusSuccess, TopicID: &newTopic},
	}

	timestamps := []time.Time{time.Unix(1_700_000_001, 0), time.Unix(1_700_000_002, 0)}
	chain, err := runninghash.Chain(newTopic, runninghash.Genesis(), runninghash.Version3, timestamps,
		[][]byte{[]byte("first"), []byte("second")})
	if err != nil {
		t.Fatalf("failed to build chain: %v", err)
	}
	opener := &frameOpener{}
	for _, message := range chain {
		opener.frames = append(opener.frames, mirror.EncodeTopicResponse(mirror.ConsensusMessage{
			ConsensusTimestamp: message.ConsensusTimestamp,
			SequenceNumber:     message.SequenceNumber,
			Contents:           message.Contents,
			RunningHash:        message.RunningHash,
			RunningHashVersion: message.RunningHashVersion,
		}))
	}
	env := newTestLedger(t, opener, "", node.handle)

	topicID, err := env.client.CreateTopic(context.Background(), transaction.TopicCreateOptions{Memo: "pubsub"})
	if err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}
	if topicID.String() != newTopic.String() {
		t.Fatalf("unexpected topic %s", topicID)
	}

	var mutex sync.Mutex
	var received []string
	handle, err := env.client.SubscribeTopic(context.Background(), topicID, mirror.SubscribeOptions{},
		func(message mirror.ConsensusMessage) {
			mutex.Lock()
			received = append(received, string(message.Contents))
			mutex.Unlock()
		},
		func(err error) { t.Errorf("unexpected subscription error: %v", err) },
	)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	if err := handle.Wait(); err != nil {
		t.Fatalf("unexpected terminal error: %v", err)
	}

	mutex.Lock()
	defer mutex.Unlock()
	if len(received) != 2 || received[0] != "first" || received[1] != "second" {
		t.Fatalf("unexpected deliveries %v", received)
	}
}

func TestMirrorLookups(t *testing.T) {
	id := transaction.NewTransactionID(operatorID, time.Unix(1_700_000_000, 7))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/transactions/" + id.MirrorString():
			json.NewEncoder(w).Encode(map[string]any{
				"transactions": []map[string]any{{"transaction_id": id.MirrorString(), "result": "SUCCESS"}},
			})
		case "/api/v1/topics/" + newTopic.String():
			json.NewEncoder(w).Encode(map[string]any{"topic_id": newTopic.String(), "memo": "pubsub"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	env := newTestLedger(t, nil, server.URL, (&fakeNode{}).handle)

	record, err := env.client.MirrorTransaction(context.Background(), id)
	if err != nil || record == nil || record.Result != "SUCCESS" {
		t.Fatalf("unexpected mirror transaction %+v %v", record, err)
	}
	info, err := env.client.TopicInfo(context.Background(), newTopic)
	if err != nil || info.Memo != "pubsub" {
		t.Fatalf("unexpected topic info %+v %v", info, err)
	}
}

func TestReadOnlyClient(t *testing.T) {
	memory := networktest.New()
	node := memory.AddNode(3, (&fakeNode{}).handle)
	client, err := ledger.NewClient(ledger.ClientConfig{
		Nodes:         []network.Node{node},
		Dialer:        memory.Dialer(),
		MirrorBaseURL: "http://127.0.0.1:1",
		StreamOpener:  &frameOpener{},
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	if _, ok := client.OperatorPublicKey(); ok {
		t.Fatalf("expected no operator")
	}
	if client.NetworkName() != "testnet" {
		t.Fatalf("expected default network testnet, got %s", client.NetworkName())
	}
	if _, err := client.NewTransaction(transaction.TopicMessageSubmit(newTopic, nil)); !errors.Is(err, ledger.ErrNoOperator) {
		t.Fatalf("expected ErrNoOperator, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	memory := networktest.New()
	node := memory.AddNode(3, nil)
	base := ledger.ClientConfig{
		Nodes:         []network.Node{node},
		Dialer:        memory.Dialer(),
		MirrorBaseURL: "http://127.0.0.1:1",
		StreamOpener:  &frameOpener{},
	}

	onlyAccount := base
	onlyAccount.OperatorAccountID = "0.0.1001"
	if _, err := ledger.NewClient(onlyAccount); err == nil {
		t.Fatalf("expected error for missing private key")
	}

	badKey := onlyAccount
	badKey.OperatorPrivateKey = "not-a-key"
	if _, err := ledger.NewClient(badKey); err == nil {
		t.Fatalf("expected error for invalid private key")
	}

	badNetwork := base
	badNetwork.Network = "badnet"
	if _, err := ledger.NewClient(badNetwork); err == nil {
		t.Fatalf("expected error for unsupported network")
	}

	missingFile := base
	missingFile.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := ledger.NewClient(missingFile); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestNewClientFromConfigFile(t *testing.T) {
	operator := generateKey(t)
	memory := networktest.New()
	memory.AddNode(3, nil)
	memory.AddNode(4, nil)

	path := filepath.Join(t.TempDir(), "network.yaml")
	content := `
networkName: previewnet
network:
  "memory://node-3": "0.0.3"
  "memory://node-4": "0.0.4"
mirrorBaseURL: "http://mirror.local:5551"
operator:
  accountId: "0.0.1001"
  privateKey: "` + operator.String() + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	client, err := ledger.NewClient(ledger.ClientConfig{
		ConfigFile:   path,
		Dialer:       memory.Dialer(),
		StreamOpener: &frameOpener{},
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	if client.NetworkName() != "previewnet" {
		t.Fatalf("unexpected network %s", client.NetworkName())
	}
	if nodes := client.Network().Nodes(); len(nodes) != 2 || nodes[1].Address != "memory://node-4" {
		t.Fatalf("unexpected nodes %v", nodes)
	}
	if client.MirrorClient().BaseURL() != "http://mirror.local:5551" {
		t.Fatalf("unexpected mirror URL %s", client.MirrorClient().BaseURL())
	}
	if client.OperatorAccountID().String() != operatorID.String() {
		t.Fatalf("unexpected operator %s", client.OperatorAccountID())
	}
	publicKey, ok := client.OperatorPublicKey()
	if !ok || !keys.SameKey(publicKey, operator.PublicKey()) {
		t.Fatalf("expected operator key from the config file")
	}
}
