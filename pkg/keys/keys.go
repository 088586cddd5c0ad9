package keys

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// Signer produces signatures over arbitrary byte payloads.
type Signer interface {
	PublicKey() hedera.PublicKey
	Sign(message []byte) []byte
}

type KeyType int

const (
	KeyTypeUnknown KeyType = iota
	KeyTypeED25519
	KeyTypeECDSASecp256k1
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeED25519:
		return "ED25519"
	case KeyTypeECDSASecp256k1:
		return "ECDSA_SECP256K1"
	default:
		return "UNKNOWN"
	}
}

var ErrUnsupportedKey = errors.New("unsupported public key type")

// ClassifyPublicKey reports the algorithm of a public key from its raw bytes.
func ClassifyPublicKey(publicKey hedera.PublicKey) (KeyType, error) {
	raw := publicKey.BytesRaw()
	if len(raw) == 32 {
		return KeyTypeED25519, nil
	}
	if _, err := btcec.ParsePubKey(raw); err == nil {
		return KeyTypeECDSASecp256k1, nil
	}
	return KeyTypeUnknown, fmt.Errorf("%w: %d raw bytes", ErrUnsupportedKey, len(raw))
}

// SignaturePair is one signature together with the key that produced it.
type SignaturePair struct {
	PublicKey hedera.PublicKey
	Signature []byte
}

// Type returns the algorithm of the pair's public key.
func (p SignaturePair) Type() (KeyType, error) {
	return ClassifyPublicKey(p.PublicKey)
}

// Verify checks that pair.Signature was produced by pair.PublicKey over message.
func Verify(pair SignaturePair, message []byte) bool {
	if len(pair.Signature) == 0 {
		return false
	}
	return pair.PublicKey.Verify(message, pair.Signature)
}

// SignWith signs message and returns the resulting pair.
func SignWith(signer Signer, message []byte) SignaturePair {
	return SignaturePair{
		PublicKey: signer.PublicKey(),
		Signature: signer.Sign(message),
	}
}

// SameKey reports whether two public keys have identical raw bytes.
func SameKey(left hedera.PublicKey, right hedera.PublicKey) bool {
	return bytes.Equal(left.BytesRaw(), right.BytesRaw())
}
