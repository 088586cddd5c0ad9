package transaction

import (
	"bytes"
	"fmt"

	"github.com/hashgraph-online/ledger-client-go/internal/wire"
	"github.com/hashgraph-online/ledger-client-go/pkg/keys"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// ToBytes encodes a frozen transaction as a TransactionList holding one
// signed transaction per node, so it can be handed to another party.
func (t *Transaction) ToBytes() ([]byte, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state == StateBuilding {
		return nil, ErrNotFrozen
	}

	var list []byte
	for index, body := range t.bodies {
		encoded, err := encodeSignedTransaction(body, t.signatures[index])
		if err != nil {
			return nil, fmt.Errorf("failed to encode transaction: %w", err)
		}
		list = wire.AppendMessageField(list, transactionListField, encoded)
	}
	return list, nil
}

// FromBytes restores a frozen transaction from ToBytes output. Every carried
// signature is verified against its body.
func FromBytes(data []byte) (*Transaction, error) {
	var entries [][]byte
	err := wire.Walk(data, func(field wire.Field) error {
		if field.Number == transactionListField {
			entries = append(entries, field.Bytes)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction list: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("failed to decode transaction list: no transactions")
	}

	tx := newEmpty()
	for index, entry := range entries {
		body, signatures, err := decodeSignedTransaction(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to decode transaction %d: %w", index, err)
		}
		fields, err := decodeBody(body)
		if err != nil {
			return nil, err
		}

		if index == 0 {
			tx.id = fields.id
			tx.payer = fields.id.Payer
			tx.hasPayer = true
			tx.maxFee = fields.maxFee
			tx.validDuration = fields.validDuration
			tx.memo = fields.memo
			tx.operation = fields.operation
		} else if err := sameTransaction(tx, fields); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %d: %w", index, err)
		}

		for _, pair := range signatures.Pairs() {
			if !keys.Verify(pair, body) {
				return nil, fmt.Errorf("failed to decode transaction %d: %w", index, ErrInvalidSignature)
			}
		}

		tx.nodes = append(tx.nodes, fields.node)
		tx.bodies = append(tx.bodies, body)
		tx.signatures = append(tx.signatures, signatures)
	}

	tx.state = StateFrozen
	return tx, nil
}

func sameTransaction(tx *Transaction, fields bodyFields) error {
	switch {
	case !tx.id.Equal(fields.id):
		return fmt.Errorf("transaction ID %s differs from %s", fields.id.String(), tx.id.String())
	case tx.memo != fields.memo,
		tx.maxFee != fields.maxFee,
		tx.validDuration != fields.validDuration,
		tx.operation.Kind != fields.operation.Kind,
		!bytes.Equal(tx.operation.Payload, fields.operation.Payload):
		return fmt.Errorf("node bodies describe different transactions")
	}
	for _, node := range tx.nodes {
		if node.String() == fields.node.String() {
			return fmt.Errorf("node %s appears twice", node.String())
		}
	}
	return nil
}

// SigningKeys returns the public keys that signed every node body.
func (t *Transaction) SigningKeys() []hedera.PublicKey {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if len(t.signatures) == 0 {
		return nil
	}
	var result []hedera.PublicKey
	for _, pair := range t.signatures[0].Pairs() {
		signedAll := true
		for _, signatures := range t.signatures[1:] {
			if !signatures.Has(pair.PublicKey) {
				signedAll = false
				break
			}
		}
		if signedAll {
			result = append(result, pair.PublicKey)
		}
	}
	return result
}
