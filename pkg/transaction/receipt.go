package transaction

import (
	"bytes"
	"fmt"

	"github.com/hashgraph-online/ledger-client-go/internal/wire"
	"github.com/hashgraph-online/ledger-client-go/pkg/runninghash"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	receiptStatusField                  protowire.Number = 1
	receiptAccountIDField               protowire.Number = 2
	receiptFileIDField                  protowire.Number = 3
	receiptContractIDField              protowire.Number = 4
	receiptTopicIDField                 protowire.Number = 6
	receiptTopicSequenceNumberField     protowire.Number = 7
	receiptTopicRunningHashField        protowire.Number = 8
	receiptTopicRunningHashVersionField protowire.Number = 9
)

// Receipt is the terminal outcome of a transaction. Entity IDs are set only
// when the operation created one.
type Receipt struct {
	Status                  hedera.Status
	AccountID               *hedera.AccountID
	FileID                  *hedera.FileID
	ContractID              *hedera.ContractID
	TopicID                 *hedera.TopicID
	TopicSequenceNumber     uint64
	TopicRunningHash        []byte
	TopicRunningHashVersion uint64
}

// DecodeReceipt decodes a TransactionReceipt message.
func DecodeReceipt(data []byte) (Receipt, error) {
	var receipt Receipt
	err := wire.Walk(data, func(field wire.Field) error {
		switch field.Number {
		case receiptStatusField:
			receipt.Status = hedera.Status(uint32(field.Varint))
		case receiptAccountIDField:
			accountID, err := wire.DecodeAccountID(field.Bytes)
			if err != nil {
				return err
			}
			receipt.AccountID = &accountID
		case receiptFileIDField:
			fileID, err := wire.DecodeFileID(field.Bytes)
			if err != nil {
				return err
			}
			receipt.FileID = &fileID
		case receiptContractIDField:
			contractID, err := wire.DecodeContractID(field.Bytes)
			if err != nil {
				return err
			}
			receipt.ContractID = &contractID
		case receiptTopicIDField:
			topicID, err := wire.DecodeTopicID(field.Bytes)
			if err != nil {
				return err
			}
			receipt.TopicID = &topicID
		case receiptTopicSequenceNumberField:
			receipt.TopicSequenceNumber = field.Varint
		case receiptTopicRunningHashField:
			receipt.TopicRunningHash = bytes.Clone(field.Bytes)
		case receiptTopicRunningHashVersionField:
			receipt.TopicRunningHashVersion = field.Varint
		}
		return nil
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return receipt, nil
}

// Encode returns the TransactionReceipt wire form.
func (r Receipt) Encode() []byte {
	var data []byte
	data = wire.AppendVarintField(data, receiptStatusField, uint64(r.Status))
	if r.AccountID != nil {
		data = wire.AppendMessageField(data, receiptAccountIDField, wire.EncodeAccountID(*r.AccountID))
	}
	if r.FileID != nil {
		data = wire.AppendMessageField(data, receiptFileIDField, wire.EncodeFileID(*r.FileID))
	}
	if r.ContractID != nil {
		data = wire.AppendMessageField(data, receiptContractIDField, wire.EncodeContractID(*r.ContractID))
	}
	if r.TopicID != nil {
		data = wire.AppendMessageField(data, receiptTopicIDField, wire.EncodeTopicID(*r.TopicID))
	}
	data = wire.AppendVarintField(data, receiptTopicSequenceNumberField, r.TopicSequenceNumber)
	data = wire.AppendBytesField(data, receiptTopicRunningHashField, r.TopicRunningHash)
	data = wire.AppendVarintField(data, receiptTopicRunningHashVersionField, r.TopicRunningHashVersion)
	return data
}

func (r Receipt) GetAccountID() (hedera.AccountID, error) {
	if r.AccountID == nil {
		return hedera.AccountID{}, fmt.Errorf("%w: account", ErrEntityMissing)
	}
	return *r.AccountID, nil
}

func (r Receipt) GetFileID() (hedera.FileID, error) {
	if r.FileID == nil {
		return hedera.FileID{}, fmt.Errorf("%w: file", ErrEntityMissing)
	}
	return *r.FileID, nil
}

func (r Receipt) GetContractID() (hedera.ContractID, error) {
	if r.ContractID == nil {
		return hedera.ContractID{}, fmt.Errorf("%w: contract", ErrEntityMissing)
	}
	return *r.ContractID, nil
}

func (r Receipt) GetTopicID() (hedera.TopicID, error) {
	if r.TopicID == nil {
		return hedera.TopicID{}, fmt.Errorf("%w: topic", ErrEntityMissing)
	}
	return *r.TopicID, nil
}

// Validate returns a *ReceiptStatusError unless the status is SUCCESS.
func (r Receipt) Validate(id TransactionID) error {
	if r.Status == hedera.StatusSuccess {
		return nil
	}
	return &ReceiptStatusError{Status: r.Status, TransactionID: id}
}

// TopicCheckpoint returns the chain position a topic message submission
// produced, for anchoring a running hash verifier.
func (r Receipt) TopicCheckpoint() (runninghash.Checkpoint, bool) {
	if r.TopicSequenceNumber == 0 || len(r.TopicRunningHash) != runninghash.HashSize {
		return runninghash.Checkpoint{}, false
	}
	return runninghash.Checkpoint{
		SequenceNumber: r.TopicSequenceNumber,
		RunningHash:    bytes.Clone(r.TopicRunningHash),
	}, true
}
