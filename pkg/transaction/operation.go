package transaction

import (
	"fmt"
	"time"

	"github.com/hashgraph-online/ledger-client-go/internal/wire"
	"github.com/hashgraph-online/ledger-client-go/pkg/keys"
	"github.com/hashgraph-online/ledger-client-go/pkg/network"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"google.golang.org/protobuf/encoding/protowire"
)

// OperationKind names where an operation payload lives in the transaction
// body and which node method accepts it.
type OperationKind struct {
	Name      string
	BodyField protowire.Number
	Method    string
}

var (
	KindCryptoCreateAccount    = OperationKind{Name: "CryptoCreateAccount", BodyField: 11, Method: network.MethodCryptoCreateAccount}
	KindCryptoTransfer         = OperationKind{Name: "CryptoTransfer", BodyField: 14, Method: network.MethodCryptoTransfer}
	KindCryptoUpdateAccount    = OperationKind{Name: "CryptoUpdateAccount", BodyField: 15, Method: network.MethodCryptoUpdateAccount}
	KindFileDelete             = OperationKind{Name: "FileDelete", BodyField: 18, Method: network.MethodFileDelete}
	KindConsensusCreateTopic   = OperationKind{Name: "ConsensusCreateTopic", BodyField: 24, Method: network.MethodConsensusCreateTopic}
	KindConsensusSubmitMessage = OperationKind{Name: "ConsensusSubmitMessage", BodyField: 27, Method: network.MethodConsensusSubmit}
)

var knownKinds = []OperationKind{
	KindCryptoCreateAccount,
	KindCryptoTransfer,
	KindCryptoUpdateAccount,
	KindFileDelete,
	KindConsensusCreateTopic,
	KindConsensusSubmitMessage,
}

func kindForField(field protowire.Number) (OperationKind, bool) {
	for _, kind := range knownKinds {
		if kind.BodyField == field {
			return kind, true
		}
	}
	return OperationKind{}, false
}

// Operation is an opaque, already encoded operation body together with its
// kind. The transaction never looks inside Payload.
type Operation struct {
	Kind    OperationKind
	Payload []byte
}

// NewOperation creates a new Operation.
func NewOperation(kind OperationKind, payload []byte) Operation {
	return Operation{Kind: kind, Payload: append([]byte(nil), payload...)}
}

// TopicMessageSubmit encodes a consensus message submission for topicID.
func TopicMessageSubmit(topicID hedera.TopicID, message []byte) Operation {
	var payload []byte
	payload = wire.AppendMessageField(payload, 1, wire.EncodeTopicID(topicID))
	payload = wire.AppendBytesField(payload, 2, message)
	return Operation{Kind: KindConsensusSubmitMessage, Payload: payload}
}

type AccountAmount struct {
	AccountID hedera.AccountID
	Amount    int64
}

// HbarTransfer encodes a transfer list. Amounts are in tinybars and must sum
// to zero.
func HbarTransfer(amounts ...AccountAmount) (Operation, error) {
	if len(amounts) == 0 {
		return Operation{}, fmt.Errorf("transfer list is empty")
	}

	var total int64
	var transferList []byte
	for _, amount := range amounts {
		total += amount.Amount
		var entry []byte
		entry = wire.AppendMessageField(entry, 1, wire.EncodeAccountID(amount.AccountID))
		entry = wire.AppendVarintField(entry, 2, protowire.EncodeZigZag(amount.Amount))
		transferList = wire.AppendMessageField(transferList, 1, entry)
	}
	if total != 0 {
		return Operation{}, fmt.Errorf("transfer amounts must sum to zero, got %d", total)
	}

	payload := wire.AppendMessageField(nil, 1, transferList)
	return Operation{Kind: KindCryptoTransfer, Payload: payload}, nil
}

type TopicCreateOptions struct {
	Memo             string
	AdminKey         *hedera.PublicKey
	SubmitKey        *hedera.PublicKey
	AutoRenewPeriod  time.Duration
	AutoRenewAccount *hedera.AccountID
}

// TopicCreate encodes a topic creation. A topic without a submit key accepts
// messages from anyone.
func TopicCreate(options TopicCreateOptions) (Operation, error) {
	if len(options.Memo) > MaxMemoBytes {
		return Operation{}, fmt.Errorf("topic memo exceeds %d bytes", MaxMemoBytes)
	}

	var payload []byte
	payload = wire.AppendStringField(payload, 1, options.Memo)
	if options.AdminKey != nil {
		key, err := encodeKey(*options.AdminKey)
		if err != nil {
			return Operation{}, fmt.Errorf("invalid admin key: %w", err)
		}
		payload = wire.AppendMessageField(payload, 2, key)
	}
	if options.SubmitKey != nil {
		key, err := encodeKey(*options.SubmitKey)
		if err != nil {
			return Operation{}, fmt.Errorf("invalid submit key: %w", err)
		}
		payload = wire.AppendMessageField(payload, 3, key)
	}
	if options.AutoRenewPeriod > 0 {
		payload = wire.AppendMessageField(payload, 6, wire.EncodeDuration(options.AutoRenewPeriod))
	}
	if options.AutoRenewAccount != nil {
		payload = wire.AppendMessageField(payload, 7, wire.EncodeAccountID(*options.AutoRenewAccount))
	}
	return Operation{Kind: KindConsensusCreateTopic, Payload: payload}, nil
}

func encodeKey(publicKey hedera.PublicKey) ([]byte, error) {
	keyType, err := keys.ClassifyPublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	switch keyType {
	case keys.KeyTypeED25519:
		return wire.AppendBytesField(nil, 2, publicKey.BytesRaw()), nil
	case keys.KeyTypeECDSASecp256k1:
		return wire.AppendBytesField(nil, 7, publicKey.BytesRaw()), nil
	default:
		return nil, fmt.Errorf("unsupported key type %s", keyType)
	}
}

type AccountCreateOptions struct {
	Key                       hedera.PublicKey
	InitialBalance            uint64
	ReceiverSignatureRequired bool
	AutoRenewPeriod           time.Duration
	Memo                      string
}

// AccountCreate encodes an account creation. InitialBalance is in tinybars.
func AccountCreate(options AccountCreateOptions) (Operation, error) {
	key, err := encodeKey(options.Key)
	if err != nil {
		return Operation{}, fmt.Errorf("invalid account key: %w", err)
	}
	if len(options.Memo) > MaxMemoBytes {
		return Operation{}, fmt.Errorf("account memo exceeds %d bytes", MaxMemoBytes)
	}

	var payload []byte
	payload = wire.AppendMessageField(payload, 1, key)
	payload = wire.AppendVarintField(payload, 2, options.InitialBalance)
	payload = wire.AppendBoolField(payload, 8, options.ReceiverSignatureRequired)
	if options.AutoRenewPeriod > 0 {
		payload = wire.AppendMessageField(payload, 9, wire.EncodeDuration(options.AutoRenewPeriod))
	}
	payload = wire.AppendStringField(payload, 13, options.Memo)
	return Operation{Kind: KindCryptoCreateAccount, Payload: payload}, nil
}

// AccountKeyUpdate encodes a key rotation. The old and the new key must both
// sign it.
func AccountKeyUpdate(accountID hedera.AccountID, newKey hedera.PublicKey) (Operation, error) {
	key, err := encodeKey(newKey)
	if err != nil {
		return Operation{}, fmt.Errorf("invalid account key: %w", err)
	}
	var payload []byte
	payload = wire.AppendMessageField(payload, 2, wire.EncodeAccountID(accountID))
	payload = wire.AppendMessageField(payload, 3, key)
	return Operation{Kind: KindCryptoUpdateAccount, Payload: payload}, nil
}

// FileDelete encodes a file deletion.
func FileDelete(fileID hedera.FileID) Operation {
	payload := wire.AppendMessageField(nil, 2, wire.EncodeFileID(fileID))
	return Operation{Kind: KindFileDelete, Payload: payload}
}
