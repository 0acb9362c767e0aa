// Package pubkey wraps the 32-byte x-only secp256k1 public keys that
// identify accounts throughout the pool, and the BIP-340 Schnorr
// signatures used to authorize actions and withdrawals.
//
// Grounded on github.com/btcsuite/btcd/btcec/v2 and its schnorr
// sub-package, the same dependency _examples/ethereum-go-ethereum and
// _examples/AKJUS-bsc-erigon pull in for secp256k1 key handling.
package pubkey

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Size is the length in bytes of a serialized x-only public key.
const Size = 32

// SignatureSize is the length in bytes of a BIP-340 Schnorr signature.
const SignatureSize = schnorr.SignatureSize

// XOnly is a 32-byte x-only secp256k1 public key, the account identifier
// used throughout the module.
type XOnly [Size]byte

// String renders the key as lowercase hex, the form used in API requests
// and log lines.
func (k XOnly) String() string {
	return hex.EncodeToString(k[:])
}

// Bytes returns the raw 32-byte encoding.
func (k XOnly) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, k[:])
	return out
}

// Less gives XOnly a total order, used for deterministic tie-breaking in
// the matching algorithm and for stable iteration of account maps.
func (k XOnly) Less(other XOnly) bool {
	for i := range k {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return false
}

// FromBytes parses a 32-byte slice into an XOnly key, without validating
// that it lies on the curve (callers that need a verifying key should use
// ParsePublicKey).
func FromBytes(b []byte) (XOnly, error) {
	var k XOnly
	if len(b) != Size {
		return k, fmt.Errorf("pubkey: want %d bytes, got %d", Size, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// FromHex parses a hex-encoded x-only public key.
func FromHex(s string) (XOnly, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return XOnly{}, fmt.Errorf("pubkey: invalid hex: %w", err)
	}
	return FromBytes(b)
}

// ParsePublicKey decodes the key as an on-curve secp256k1 x-only point,
// suitable for Schnorr verification.
func (k XOnly) ParsePublicKey() (*btcec.PublicKey, error) {
	return schnorr.ParsePubKey(k[:])
}

// Signature is a detached BIP-340 Schnorr signature.
type Signature [SignatureSize]byte

// Bytes returns the raw 64-byte encoding.
func (s Signature) Bytes() []byte {
	out := make([]byte, SignatureSize)
	copy(out, s[:])
	return out
}

// SignatureFromBytes parses a 64-byte slice into a Signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != SignatureSize {
		return s, fmt.Errorf("pubkey: want %d signature bytes, got %d", SignatureSize, len(b))
	}
	copy(s[:], b)
	return s, nil
}

// ErrInvalidSignature is returned by Verify when the signature does not
// validate against the message hash and account key.
var ErrInvalidSignature = errors.New("pubkey: invalid schnorr signature")

// Verify checks sig as a BIP-340 Schnorr signature over msgHash (expected
// to be the SHA-256 of the canonical encoding being authorized) under the
// account key k.
func (k XOnly) Verify(msgHash []byte, sig Signature) error {
	pub, err := k.ParsePublicKey()
	if err != nil {
		return fmt.Errorf("pubkey: %w", err)
	}
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return fmt.Errorf("pubkey: %w", err)
	}
	if !parsed.Verify(msgHash, pub) {
		return ErrInvalidSignature
	}
	return nil
}
