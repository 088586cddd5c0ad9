package keys

import (
	"encoding/hex"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// SignatureMap holds at most one signature per public key, ordered by the
// first time each key was added. Adding a key that is already present
// replaces its signature in place.
type SignatureMap struct {
	pairs []SignaturePair
	index map[string]int
}

// NewSignatureMap creates an empty SignatureMap.
func NewSignatureMap() *SignatureMap {
	return &SignatureMap{index: map[string]int{}}
}

func keyOf(publicKey hedera.PublicKey) string {
	return hex.EncodeToString(publicKey.BytesRaw())
}

// Add inserts or replaces the signature for pair.PublicKey. It reports
// whether the key was new.
func (m *SignatureMap) Add(pair SignaturePair) bool {
	if m.index == nil {
		m.index = map[string]int{}
	}
	key := keyOf(pair.PublicKey)
	stored := SignaturePair{
		PublicKey: pair.PublicKey,
		Signature: append([]byte(nil), pair.Signature...),
	}
	if position, ok := m.index[key]; ok {
		m.pairs[position] = stored
		return false
	}
	m.index[key] = len(m.pairs)
	m.pairs = append(m.pairs, stored)
	return true
}

// Has reports whether publicKey has a signature in the map.
func (m *SignatureMap) Has(publicKey hedera.PublicKey) bool {
	if m == nil {
		return false
	}
	_, ok := m.index[keyOf(publicKey)]
	return ok
}

// Get returns the signature for publicKey.
func (m *SignatureMap) Get(publicKey hedera.PublicKey) ([]byte, bool) {
	if m == nil {
		return nil, false
	}
	position, ok := m.index[keyOf(publicKey)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), m.pairs[position].Signature...), true
}

// Len returns the number of distinct keys.
func (m *SignatureMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// Pairs returns a copy of the pairs in insertion order.
func (m *SignatureMap) Pairs() []SignaturePair {
	if m == nil {
		return nil
	}
	result := make([]SignaturePair, len(m.pairs))
	for position, pair := range m.pairs {
		result[position] = SignaturePair{
			PublicKey: pair.PublicKey,
			Signature: append([]byte(nil), pair.Signature...),
		}
	}
	return result
}

// Clone returns a deep copy of the map.
func (m *SignatureMap) Clone() *SignatureMap {
	clone := NewSignatureMap()
	for _, pair := range m.Pairs() {
		clone.Add(pair)
	}
	return clone
}
