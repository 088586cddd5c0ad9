package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashgraph-online/ledger-client-go/pkg/keys"
	"github.com/hashgraph-online/ledger-client-go/pkg/network"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

const (
	DefaultValidDuration = 120 * time.Second
	DefaultMaxFee        = uint64(200_000_000)
	DefaultMaxNodes      = 3
	MaxMemoBytes         = 100
)

type State int

const (
	StateBuilding State = iota
	StateFrozen
	StateSubmitted
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "Building"
	case StateFrozen:
		return "Frozen"
	case StateSubmitted:
		return "Submitted"
	case StateFinalized:
		return "Finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// NodeSelector picks the nodes a transaction is frozen against.
type NodeSelector interface {
	SelectNodes(count int) []network.Node
}

// Submitter delivers node-bound payloads. *network.Client implements it.
type Submitter interface {
	NodeSelector
	Submit(
		ctx context.Context,
		method string,
		payloads []network.NodePayload,
		transient network.TransientResponse,
	) (network.Node, []byte, error)
}

// Response is the acknowledgment of an accepted submission.
type Response struct {
	TransactionID TransactionID
	NodeID        hedera.AccountID
	Precheck      hedera.Status
}

// Transaction is a mutable-until-frozen builder around one Operation. It is
// safe for concurrent use.
type Transaction struct {
	mutex sync.Mutex

	state         State
	operation     Operation
	payer         hedera.AccountID
	hasPayer      bool
	id            TransactionID
	maxFee        uint64
	validDuration time.Duration
	memo          string
	presetNodes   []hedera.AccountID
	maxNodes      int

	nodes      []hedera.AccountID
	bodies     [][]byte
	signatures []*keys.SignatureMap

	response *Response
	receipt  *Receipt
}

// New creates a new Transaction in the Building state.
func New(operation Operation) *Transaction {
	tx := newEmpty()
	tx.operation = operation
	return tx
}

func newEmpty() *Transaction {
	return &Transaction{
		state:         StateBuilding,
		maxFee:        DefaultMaxFee,
		validDuration: DefaultValidDuration,
		maxNodes:      DefaultMaxNodes,
	}
}

func (t *Transaction) mutate(apply func() error) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state != StateBuilding {
		return ErrTransactionFrozen
	}
	return apply()
}

// SetOperation replaces the operation payload.
func (t *Transaction) SetOperation(operation Operation) error {
	return t.mutate(func() error {
		t.operation = operation
		return nil
	})
}

// SetPayer sets the paying account. The transaction ID is generated from it
// at freeze time unless one was set explicitly.
func (t *Transaction) SetPayer(payer hedera.AccountID) error {
	return t.mutate(func() error {
		t.payer = payer
		t.hasPayer = true
		return nil
	})
}

func (t *Transaction) SetTransactionID(id TransactionID) error {
	return t.mutate(func() error {
		if id.IsZero() {
			return fmt.Errorf("transaction ID is empty")
		}
		t.id = id
		return nil
	})
}

// SetMaxFee sets the most the payer is willing to pay, in tinybars.
func (t *Transaction) SetMaxFee(maxFee uint64) error {
	return t.mutate(func() error {
		t.maxFee = maxFee
		return nil
	})
}

func (t *Transaction) SetMemo(memo string) error {
	return t.mutate(func() error {
		if len(memo) > MaxMemoBytes {
			return ErrMemoTooLong
		}
		t.memo = memo
		return nil
	})
}

func (t *Transaction) SetValidDuration(duration time.Duration) error {
	return t.mutate(func() error {
		if duration <= 0 {
			return fmt.Errorf("valid duration must be positive")
		}
		t.validDuration = duration
		return nil
	})
}

// SetNodes fixes the candidate nodes. The first node is the assigned node.
func (t *Transaction) SetNodes(nodes ...hedera.AccountID) error {
	return t.mutate(func() error {
		t.presetNodes = append([]hedera.AccountID(nil), nodes...)
		return nil
	})
}

// SetMaxNodes bounds how many bodies Freeze produces when the nodes come from
// a selector.
func (t *Transaction) SetMaxNodes(count int) error {
	return t.mutate(func() error {
		if count <= 0 {
			return fmt.Errorf("max nodes must be positive")
		}
		t.maxNodes = count
		return nil
	})
}

// Freeze fixes the body against the preset nodes, or against nodes chosen by
// selector when none were preset.
func (t *Transaction) Freeze(selector NodeSelector) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.freezeLocked(selector)
}

// FreezeWith fixes the body against the given nodes, ignoring preset ones.
func (t *Transaction) FreezeWith(nodes ...hedera.AccountID) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state != StateBuilding {
		return ErrTransactionFrozen
	}
	return t.freezeAgainst(nodes)
}

func (t *Transaction) freezeLocked(selector NodeSelector) error {
	if t.state != StateBuilding {
		return ErrTransactionFrozen
	}

	nodes := t.presetNodes
	if len(nodes) == 0 && selector != nil {
		for _, node := range selector.SelectNodes(t.maxNodes) {
			nodes = append(nodes, node.AccountID)
		}
	}
	return t.freezeAgainst(nodes)
}

func (t *Transaction) freezeAgainst(nodes []hedera.AccountID) error {
	if t.operation.Kind.BodyField == 0 {
		return ErrMissingOperation
	}
	if len(nodes) == 0 {
		return ErrNodesRequired
	}

	id := t.id
	if id.IsZero() {
		if !t.hasPayer {
			return ErrMissingPayer
		}
		id = GenerateTransactionID(t.payer)
	}

	bodies := make([][]byte, 0, len(nodes))
	signatures := make([]*keys.SignatureMap, 0, len(nodes))
	seen := make(map[string]struct{}, len(nodes))
	frozenNodes := make([]hedera.AccountID, 0, len(nodes))
	for _, node := range nodes {
		if _, duplicate := seen[node.String()]; duplicate {
			continue
		}
		seen[node.String()] = struct{}{}
		frozenNodes = append(frozenNodes, node)
		bodies = append(bodies, encodeBody(bodyFields{
			id:            id,
			node:          node,
			maxFee:        t.maxFee,
			validDuration: t.validDuration,
			memo:          t.memo,
			operation:     t.operation,
		}))
		signatures = append(signatures, keys.NewSignatureMap())
	}

	t.id = id
	t.nodes = frozenNodes
	t.bodies = bodies
	t.signatures = signatures
	t.state = StateFrozen
	return nil
}

// Sign signs every frozen body with signer. Signing again with the same key
// replaces the earlier signature.
func (t *Transaction) Sign(signer keys.Signer) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state >= StateSubmitted {
		return ErrAlreadySubmitted
	}
	if t.state == StateBuilding {
		if err := t.freezeLocked(nil); err != nil {
			return err
		}
	}

	for index, body := range t.bodies {
		t.signatures[index].Add(keys.SignWith(signer, body))
	}
	return nil
}

// AddSignature attaches signatures produced out of band, one per body in
// node order. Every signature is verified before any is attached.
func (t *Transaction) AddSignature(publicKey hedera.PublicKey, signatures [][]byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state >= StateSubmitted {
		return ErrAlreadySubmitted
	}
	if t.state == StateBuilding {
		return ErrNotFrozen
	}
	if len(signatures) != len(t.bodies) {
		return fmt.Errorf("%w: got %d, want %d", ErrSignatureCount, len(signatures), len(t.bodies))
	}

	pairs := make([]keys.SignaturePair, len(signatures))
	for index, signature := range signatures {
		pair := keys.SignaturePair{PublicKey: publicKey, Signature: append([]byte(nil), signature...)}
		if !keys.Verify(pair, t.bodies[index]) {
			return fmt.Errorf("%w: body %d for node %s", ErrInvalidSignature, index, t.nodes[index].String())
		}
		pairs[index] = pair
	}
	for index, pair := range pairs {
		t.signatures[index].Add(pair)
	}
	return nil
}

// BodyBytes returns the signing input of every frozen body, in node order.
func (t *Transaction) BodyBytes() ([][]byte, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state == StateBuilding {
		return nil, ErrNotFrozen
	}
	bodies := make([][]byte, len(t.bodies))
	for index, body := range t.bodies {
		bodies[index] = append([]byte(nil), body...)
	}
	return bodies, nil
}

// Signatures returns the signatures collected for the body bound to node.
func (t *Transaction) Signatures(node hedera.AccountID) ([]keys.SignaturePair, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	index, err := t.nodeIndex(node)
	if err != nil {
		return nil, err
	}
	return t.signatures[index].Pairs(), nil
}

// Submit sends the transaction through submitter, failing over across the
// frozen nodes. It freezes against the submitter's node selection when still
// building.
func (t *Transaction) Submit(ctx context.Context, submitter Submitter) (*Response, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state >= StateSubmitted {
		return nil, ErrAlreadySubmitted
	}
	if t.state == StateBuilding {
		if err := t.freezeLocked(submitter); err != nil {
			return nil, err
		}
	}

	payloads := make([]network.NodePayload, len(t.bodies))
	for index := range t.bodies {
		payload, err := encodeSignedTransaction(t.bodies[index], t.signatures[index])
		if err != nil {
			return nil, fmt.Errorf("failed to encode transaction: %w", err)
		}
		payloads[index] = network.NodePayload{Node: t.nodes[index], Payload: payload}
	}
	return t.submitLocked(ctx, submitter, payloads)
}

// SubmitTo sends the transaction to exactly one node, which must be one of the
// nodes it was frozen against.
func (t *Transaction) SubmitTo(ctx context.Context, submitter Submitter, node hedera.AccountID) (*Response, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state >= StateSubmitted {
		return nil, ErrAlreadySubmitted
	}
	if t.state == StateBuilding {
		return nil, ErrNotFrozen
	}

	index, err := t.nodeIndex(node)
	if err != nil {
		return nil, err
	}
	payload, err := encodeSignedTransaction(t.bodies[index], t.signatures[index])
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return t.submitLocked(ctx, submitter, []network.NodePayload{{Node: node, Payload: payload}})
}

func (t *Transaction) submitLocked(
	ctx context.Context,
	submitter Submitter,
	payloads []network.NodePayload,
) (*Response, error) {
	node, raw, err := submitter.Submit(ctx, t.operation.Kind.Method, payloads, isTransientPrecheck)
	if err != nil {
		return nil, fmt.Errorf("failed to submit transaction %s: %w", t.id.String(), err)
	}

	precheck, err := decodePrecheck(raw)
	if err != nil {
		return nil, err
	}

	response := &Response{TransactionID: t.id, NodeID: node.AccountID, Precheck: precheck}
	switch precheck {
	case hedera.StatusOk:
		t.state = StateSubmitted
		t.response = response
		return response, nil
	case hedera.StatusDuplicateTransaction:
		t.state = StateSubmitted
		t.response = response
		return response, ErrDuplicateTransaction
	default:
		return nil, &PrecheckError{Status: precheck, TransactionID: t.id, Node: node.AccountID}
	}
}

// Finalize records the terminal receipt. Only a receipt poller calls it.
func (t *Transaction) Finalize(receipt Receipt) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	switch t.state {
	case StateSubmitted:
	case StateFinalized:
		return fmt.Errorf("transaction %s is already finalized", t.id.String())
	default:
		return ErrNotSubmitted
	}
	t.receipt = &receipt
	t.state = StateFinalized
	return nil
}

func (t *Transaction) nodeIndex(node hedera.AccountID) (int, error) {
	if t.state == StateBuilding {
		return 0, ErrNotFrozen
	}
	for index, frozen := range t.nodes {
		if frozen.String() == node.String() {
			return index, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNodeMismatch, node.String())
}

func (t *Transaction) State() State {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.state
}

// TransactionID returns the ID. It is zero until the transaction is frozen
// unless it was set explicitly.
func (t *Transaction) TransactionID() TransactionID {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.id
}

// Nodes returns the frozen nodes; the first is the assigned node.
func (t *Transaction) Nodes() []hedera.AccountID {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]hedera.AccountID(nil), t.nodes...)
}

// AssignedNode returns the node the transaction was primarily frozen against.
func (t *Transaction) AssignedNode() (hedera.AccountID, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if len(t.nodes) == 0 {
		return hedera.AccountID{}, false
	}
	return t.nodes[0], true
}

func (t *Transaction) Operation() Operation {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.operation
}

func (t *Transaction) Memo() string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.memo
}

func (t *Transaction) MaxFee() uint64 {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.maxFee
}

func (t *Transaction) ValidDuration() time.Duration {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.validDuration
}

// Response returns the accepted submission, if any.
func (t *Transaction) Response() (Response, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.response == nil {
		return Response{}, false
	}
	return *t.response, true
}

// Receipt returns the receipt recorded by Finalize, if any.
func (t *Transaction) Receipt() (Receipt, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.receipt == nil {
		return Receipt{}, false
	}
	return *t.receipt, true
}

// IsMisuse reports whether err is a caller-misuse error that must not be
// retried.
func IsMisuse(err error) bool {
	return errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrTransactionFrozen) ||
		errors.Is(err, ErrNotFrozen) ||
		errors.Is(err, ErrNodeMismatch) ||
		errors.Is(err, ErrNotSubmitted)
}
