package transaction

import (
	"errors"
	"fmt"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

var (
	ErrTransactionFrozen    = errors.New("transaction is frozen and can no longer be modified")
	ErrNotFrozen            = errors.New("transaction is not frozen")
	ErrAlreadySubmitted     = errors.New("transaction was already submitted")
	ErrNotSubmitted         = errors.New("transaction has not been submitted")
	ErrDuplicateTransaction = errors.New("network reported a duplicate transaction")
	ErrNodeMismatch         = errors.New("transaction was not frozen for this node")
	ErrNodesRequired        = errors.New("no nodes available to freeze the transaction against")
	ErrMissingOperation     = errors.New("transaction operation is required")
	ErrMissingPayer         = errors.New("transaction payer or transaction ID is required")
	ErrMemoTooLong          = errors.New("transaction memo exceeds 100 bytes")
	ErrSignatureCount       = errors.New("signature count does not match frozen body count")
	ErrInvalidSignature     = errors.New("signature does not verify against the frozen body")
	ErrEntityMissing        = errors.New("receipt does not contain the requested entity ID")
)

// PrecheckError is returned when a node rejects a transaction before it
// reaches consensus.
type PrecheckError struct {
	Status        hedera.Status
	TransactionID TransactionID
	Node          hedera.AccountID
}

func (e *PrecheckError) Error() string {
	return fmt.Sprintf(
		"transaction %s failed precheck on node %s with status %s",
		e.TransactionID.String(),
		e.Node.String(),
		e.Status.String(),
	)
}

// ReceiptStatusError reports a terminal, non-success receipt status. It is a
// business outcome, not a transport failure, and is never retried.
type ReceiptStatusError struct {
	Status        hedera.Status
	TransactionID TransactionID
}

func (e *ReceiptStatusError) Error() string {
	if e.TransactionID.IsZero() {
		return fmt.Sprintf("receipt reported status %s", e.Status.String())
	}
	return fmt.Sprintf("transaction %s reached consensus with status %s", e.TransactionID.String(), e.Status.String())
}
