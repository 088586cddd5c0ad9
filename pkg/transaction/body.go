package transaction

import (
	"fmt"
	"time"

	"github.com/hashgraph-online/ledger-client-go/internal/wire"
	"github.com/hashgraph-online/ledger-client-go/pkg/keys"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	bodyTransactionIDField protowire.Number = 1
	bodyNodeAccountField   protowire.Number = 2
	bodyFeeField           protowire.Number = 3
	bodyValidDurationField protowire.Number = 4
	bodyMemoField          protowire.Number = 6

	signedBodyBytesField protowire.Number = 1
	signedSigMapField    protowire.Number = 2

	sigMapPairField        protowire.Number = 1
	sigPairPrefixField     protowire.Number = 1
	sigPairEd25519Field    protowire.Number = 3
	sigPairECDSAField      protowire.Number = 6
	transactionSignedField protowire.Number = 5
	transactionListField   protowire.Number = 1

	responsePrecheckField protowire.Number = 1
)

type bodyFields struct {
	id            TransactionID
	node          hedera.AccountID
	maxFee        uint64
	validDuration time.Duration
	memo          string
	operation     Operation
}

func encodeBody(fields bodyFields) []byte {
	var body []byte
	body = wire.AppendMessageField(body, bodyTransactionIDField, wire.EncodeTransactionID(fields.id.Payer, fields.id.ValidStart))
	body = wire.AppendMessageField(body, bodyNodeAccountField, wire.EncodeAccountID(fields.node))
	body = wire.AppendVarintField(body, bodyFeeField, fields.maxFee)
	body = wire.AppendMessageField(body, bodyValidDurationField, wire.EncodeDuration(fields.validDuration))
	body = wire.AppendStringField(body, bodyMemoField, fields.memo)
	body = wire.AppendMessageField(body, fields.operation.Kind.BodyField, fields.operation.Payload)
	return body
}

func decodeBody(body []byte) (bodyFields, error) {
	var fields bodyFields
	foundOperation := false
	err := wire.Walk(body, func(field wire.Field) error {
		var fieldErr error
		switch field.Number {
		case bodyTransactionIDField:
			var payer hedera.AccountID
			var validStart time.Time
			payer, validStart, fieldErr = wire.DecodeTransactionID(field.Bytes)
			fields.id = NewTransactionID(payer, validStart)
		case bodyNodeAccountField:
			fields.node, fieldErr = wire.DecodeAccountID(field.Bytes)
		case bodyFeeField:
			fields.maxFee = field.Varint
		case bodyValidDurationField:
			fields.validDuration, fieldErr = wire.DecodeDuration(field.Bytes)
		case bodyMemoField:
			fields.memo = string(field.Bytes)
		default:
			kind, ok := kindForField(field.Number)
			if !ok {
				return fmt.Errorf("unsupported operation field %d", field.Number)
			}
			if foundOperation {
				return fmt.Errorf("transaction body has more than one operation")
			}
			foundOperation = true
			fields.operation = NewOperation(kind, field.Bytes)
		}
		return fieldErr
	})
	if err != nil {
		return bodyFields{}, fmt.Errorf("failed to decode transaction body: %w", err)
	}
	if !foundOperation {
		return bodyFields{}, fmt.Errorf("failed to decode transaction body: %w", ErrMissingOperation)
	}
	return fields, nil
}

// encodeSignedTransaction returns the wire Transaction message
// {signedTransactionBytes=5} for one node body.
func encodeSignedTransaction(body []byte, signatures *keys.SignatureMap) ([]byte, error) {
	var sigMap []byte
	for _, pair := range signatures.Pairs() {
		keyType, err := pair.Type()
		if err != nil {
			return nil, err
		}
		var encoded []byte
		encoded = wire.AppendBytesField(encoded, sigPairPrefixField, pair.PublicKey.BytesRaw())
		if keyType == keys.KeyTypeED25519 {
			encoded = wire.AppendBytesField(encoded, sigPairEd25519Field, pair.Signature)
		} else {
			encoded = wire.AppendBytesField(encoded, sigPairECDSAField, pair.Signature)
		}
		sigMap = wire.AppendMessageField(sigMap, sigMapPairField, encoded)
	}

	var signed []byte
	signed = wire.AppendMessageField(signed, signedBodyBytesField, body)
	signed = wire.AppendMessageField(signed, signedSigMapField, sigMap)

	return wire.AppendMessageField(nil, transactionSignedField, signed), nil
}

func decodeSignedTransaction(data []byte) ([]byte, *keys.SignatureMap, error) {
	var signed []byte
	err := wire.Walk(data, func(field wire.Field) error {
		if field.Number == transactionSignedField {
			signed = field.Bytes
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if signed == nil {
		return nil, nil, fmt.Errorf("transaction has no signed transaction bytes")
	}

	var body []byte
	signatures := keys.NewSignatureMap()
	err = wire.Walk(signed, func(field wire.Field) error {
		switch field.Number {
		case signedBodyBytesField:
			body = append([]byte(nil), field.Bytes...)
		case signedSigMapField:
			return wire.Walk(field.Bytes, func(pairField wire.Field) error {
				if pairField.Number != sigMapPairField {
					return nil
				}
				pair, pairErr := decodeSignaturePair(pairField.Bytes)
				if pairErr != nil {
					return pairErr
				}
				signatures.Add(pair)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if body == nil {
		return nil, nil, fmt.Errorf("signed transaction has no body")
	}
	return body, signatures, nil
}

func decodeSignaturePair(data []byte) (keys.SignaturePair, error) {
	var prefix, signature []byte
	var keyType keys.KeyType
	err := wire.Walk(data, func(field wire.Field) error {
		switch field.Number {
		case sigPairPrefixField:
			prefix = field.Bytes
		case sigPairEd25519Field:
			signature = field.Bytes
			keyType = keys.KeyTypeED25519
		case sigPairECDSAField:
			signature = field.Bytes
			keyType = keys.KeyTypeECDSASecp256k1
		}
		return nil
	})
	if err != nil {
		return keys.SignaturePair{}, err
	}

	var publicKey hedera.PublicKey
	switch keyType {
	case keys.KeyTypeED25519:
		publicKey, err = hedera.PublicKeyFromBytesEd25519(prefix)
	case keys.KeyTypeECDSASecp256k1:
		publicKey, err = hedera.PublicKeyFromBytesECDSA(prefix)
	default:
		return keys.SignaturePair{}, fmt.Errorf("signature pair has no supported signature")
	}
	if err != nil {
		return keys.SignaturePair{}, fmt.Errorf("invalid signature pair public key: %w", err)
	}
	return keys.SignaturePair{PublicKey: publicKey, Signature: signature}, nil
}

func decodePrecheck(response []byte) (hedera.Status, error) {
	status := hedera.StatusOk
	err := wire.Walk(response, func(field wire.Field) error {
		if field.Number == responsePrecheckField {
			status = hedera.Status(uint32(field.Varint))
		}
		return nil
	})
	if err != nil {
		return status, fmt.Errorf("failed to decode transaction response: %w", err)
	}
	return status, nil
}

// EncodeTransactionResponse encodes a TransactionResponse with the given
// precheck code. Nodes and test doubles use it to answer a submission.
func EncodeTransactionResponse(precheck hedera.Status) []byte {
	return wire.AppendVarintField(nil, responsePrecheckField, uint64(precheck))
}

func isTransientPrecheck(response []byte) bool {
	status, err := decodePrecheck(response)
	if err != nil {
		return false
	}
	switch status {
	case hedera.StatusBusy, hedera.StatusPlatformNotActive, hedera.StatusPlatformTransactionNotCreated:
		return true
	default:
		return false
	}
}
