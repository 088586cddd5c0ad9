// Package keys provides the key material used to authorize ledger
// transactions: the Signer abstraction, signature pairs and the ordered,
// de-duplicating signature map attached to every frozen transaction body.
//
// Any hedera.PrivateKey (ED25519 or ECDSA secp256k1) is a Signer. Signers
// that live in another process or device only need to implement the two
// Signer methods.
package keys
