package wire

import (
	"fmt"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"google.golang.org/protobuf/encoding/protowire"
)

// entity ids share the layout {shard=1, realm=2, num=3}
func appendEntity(shard, realm, num uint64) []byte {
	var buffer []byte
	buffer = AppendVarintField(buffer, 1, shard)
	buffer = AppendVarintField(buffer, 2, realm)
	buffer = AppendVarintField(buffer, 3, num)
	return buffer
}

func decodeEntity(data []byte) (uint64, uint64, uint64, error) {
	var shard, realm, num uint64
	err := Walk(data, func(field Field) error {
		switch field.Number {
		case 1:
			shard = field.Varint
		case 2:
			realm = field.Varint
		case 3:
			num = field.Varint
		}
		return nil
	})
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to decode entity id: %w", err)
	}
	return shard, realm, num, nil
}

// EncodeAccountID encodes an AccountID message.
func EncodeAccountID(accountID hedera.AccountID) []byte {
	return appendEntity(accountID.Shard, accountID.Realm, accountID.Account)
}

// DecodeAccountID decodes an AccountID message.
func DecodeAccountID(data []byte) (hedera.AccountID, error) {
	shard, realm, num, err := decodeEntity(data)
	if err != nil {
		return hedera.AccountID{}, err
	}
	return hedera.AccountID{Shard: shard, Realm: realm, Account: num}, nil
}

// EncodeTopicID encodes a TopicID message.
func EncodeTopicID(topicID hedera.TopicID) []byte {
	return appendEntity(topicID.Shard, topicID.Realm, topicID.Topic)
}

// DecodeTopicID decodes a TopicID message.
func DecodeTopicID(data []byte) (hedera.TopicID, error) {
	shard, realm, num, err := decodeEntity(data)
	if err != nil {
		return hedera.TopicID{}, err
	}
	return hedera.TopicID{Shard: shard, Realm: realm, Topic: num}, nil
}

// EncodeFileID encodes a FileID message.
func EncodeFileID(fileID hedera.FileID) []byte {
	return appendEntity(fileID.Shard, fileID.Realm, fileID.File)
}

// DecodeFileID decodes a FileID message.
func DecodeFileID(data []byte) (hedera.FileID, error) {
	shard, realm, num, err := decodeEntity(data)
	if err != nil {
		return hedera.FileID{}, err
	}
	return hedera.FileID{Shard: shard, Realm: realm, File: num}, nil
}

// EncodeContractID encodes a ContractID message.
func EncodeContractID(contractID hedera.ContractID) []byte {
	return appendEntity(contractID.Shard, contractID.Realm, contractID.Contract)
}

// DecodeContractID decodes a ContractID message.
func DecodeContractID(data []byte) (hedera.ContractID, error) {
	shard, realm, num, err := decodeEntity(data)
	if err != nil {
		return hedera.ContractID{}, err
	}
	return hedera.ContractID{Shard: shard, Realm: realm, Contract: num}, nil
}

// EncodeTimestamp encodes a Timestamp message {seconds=1, nanos=2}.
func EncodeTimestamp(value time.Time) []byte {
	var buffer []byte
	buffer = AppendVarintField(buffer, 1, uint64(value.Unix()))
	buffer = AppendVarintField(buffer, 2, uint64(int64(value.Nanosecond())))
	return buffer
}

// DecodeTimestamp decodes a Timestamp message.
func DecodeTimestamp(data []byte) (time.Time, error) {
	var seconds int64
	var nanos int32
	err := Walk(data, func(field Field) error {
		switch field.Number {
		case 1:
			seconds = int64(field.Varint)
		case 2:
			nanos = int32(field.Varint)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode timestamp: %w", err)
	}
	return time.Unix(seconds, int64(nanos)).UTC(), nil
}

// EncodeDuration encodes a Duration message with whole seconds.
func EncodeDuration(value time.Duration) []byte {
	return AppendVarintField(nil, 1, uint64(int64(value/time.Second)))
}

// DecodeDuration decodes a Duration message.
func DecodeDuration(data []byte) (time.Duration, error) {
	var seconds int64
	err := Walk(data, func(field Field) error {
		if field.Number == 1 {
			seconds = int64(field.Varint)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to decode duration: %w", err)
	}
	return time.Duration(seconds) * time.Second, nil
}

const (
	transactionIDValidStartField protowire.Number = 1
	transactionIDAccountField    protowire.Number = 2
)

// EncodeTransactionID encodes a TransactionID message
// {transactionValidStart=1, accountID=2}.
func EncodeTransactionID(payer hedera.AccountID, validStart time.Time) []byte {
	var buffer []byte
	buffer = AppendMessageField(buffer, transactionIDValidStartField, EncodeTimestamp(validStart))
	buffer = AppendMessageField(buffer, transactionIDAccountField, EncodeAccountID(payer))
	return buffer
}

// DecodeTransactionID decodes a TransactionID message.
func DecodeTransactionID(data []byte) (hedera.AccountID, time.Time, error) {
	var payer hedera.AccountID
	var validStart time.Time
	err := Walk(data, func(field Field) error {
		var fieldErr error
		switch field.Number {
		case transactionIDValidStartField:
			validStart, fieldErr = DecodeTimestamp(field.Bytes)
		case transactionIDAccountField:
			payer, fieldErr = DecodeAccountID(field.Bytes)
		}
		return fieldErr
	})
	if err != nil {
		return hedera.AccountID{}, time.Time{}, fmt.Errorf("failed to decode transaction id: %w", err)
	}
	return payer, validStart, nil
}
