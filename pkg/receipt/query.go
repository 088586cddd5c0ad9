package receipt

import (
	"fmt"

	"github.com/hashgraph-online/ledger-client-go/internal/wire"
	"github.com/hashgraph-online/ledger-client-go/pkg/transaction"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	queryReceiptField       protowire.Number = 14
	receiptQueryHeaderField protowire.Number = 1
	receiptQueryTxIDField   protowire.Number = 2
	responseHeaderField     protowire.Number = 1
	responseReceiptField    protowire.Number = 2
	headerPrecheckField     protowire.Number = 1
)

// EncodeQuery encodes a Query carrying a TransactionGetReceiptQuery for id.
// Receipt queries are free, so the header carries no payment.
func EncodeQuery(id transaction.TransactionID) []byte {
	var receiptQuery []byte
	receiptQuery = wire.AppendMessageField(receiptQuery, receiptQueryHeaderField, nil)
	receiptQuery = wire.AppendMessageField(receiptQuery, receiptQueryTxIDField, wire.EncodeTransactionID(id.Payer, id.ValidStart))

	return wire.AppendMessageField(nil, queryReceiptField, receiptQuery)
}

// DecodeQuery returns the transaction ID asked for by an encoded receipt
// query.
func DecodeQuery(data []byte) (transaction.TransactionID, error) {
	var id transaction.TransactionID
	found := false
	err := wire.Walk(data, func(field wire.Field) error {
		if field.Number != queryReceiptField {
			return nil
		}
		return wire.Walk(field.Bytes, func(inner wire.Field) error {
			if inner.Number != receiptQueryTxIDField {
				return nil
			}
			payer, validStart, err := wire.DecodeTransactionID(inner.Bytes)
			if err != nil {
				return err
			}
			id = transaction.NewTransactionID(payer, validStart)
			found = true
			return nil
		})
	})
	if err != nil {
		return transaction.TransactionID{}, fmt.Errorf("failed to decode receipt query: %w", err)
	}
	if !found {
		return transaction.TransactionID{}, fmt.Errorf("failed to decode receipt query: no transaction ID")
	}
	return id, nil
}

// Answer is one decoded receipt query response.
type Answer struct {
	Precheck hedera.Status
	Receipt  transaction.Receipt
}

// EncodeResponse encodes a Response carrying a TransactionGetReceiptResponse.
func EncodeResponse(answer Answer) []byte {
	header := wire.AppendVarintField(nil, headerPrecheckField, uint64(answer.Precheck))

	var receiptResponse []byte
	receiptResponse = wire.AppendMessageField(receiptResponse, responseHeaderField, header)
	receiptResponse = wire.AppendMessageField(receiptResponse, responseReceiptField, answer.Receipt.Encode())

	return wire.AppendMessageField(nil, queryReceiptField, receiptResponse)
}

// DecodeResponse decodes a Response carrying a TransactionGetReceiptResponse.
func DecodeResponse(data []byte) (Answer, error) {
	var answer Answer
	found := false
	err := wire.Walk(data, func(field wire.Field) error {
		if field.Number != queryReceiptField {
			return nil
		}
		found = true
		return wire.Walk(field.Bytes, func(inner wire.Field) error {
			switch inner.Number {
			case responseHeaderField:
				return wire.Walk(inner.Bytes, func(headerField wire.Field) error {
					if headerField.Number == headerPrecheckField {
						answer.Precheck = hedera.Status(uint32(headerField.Varint))
					}
					return nil
				})
			case responseReceiptField:
				receipt, err := transaction.DecodeReceipt(inner.Bytes)
				if err != nil {
					return err
				}
				answer.Receipt = receipt
			}
			return nil
		})
	})
	if err != nil {
		return Answer{}, fmt.Errorf("failed to decode receipt response: %w", err)
	}
	if !found {
		return Answer{}, fmt.Errorf("failed to decode receipt response: not a receipt response")
	}
	return answer, nil
}
