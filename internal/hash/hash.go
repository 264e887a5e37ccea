// Package hash provides the canonical BLAKE3 primitives used throughout the
// ledger: plain content hashing, keyed hashing for commitments and nonces,
// and extendable-output address derivation.
package hash

import (
	"encoding/hex"
	"fmt"

	blake3 "lukechampine.com/blake3"
)

// Size is the length in bytes of a Hash.
const Size = 32

// Hash is a 32-byte BLAKE3 digest.
type Hash [Size]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) IsZero() bool { return h == Hash{} }

// FromHex parses a hex-encoded hash.
func FromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("hash: %w", err)
	}
	return FromBytes(b)
}

// FromBytes copies b into a Hash, requiring an exact length match.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, fmt.Errorf("hash: expected %d bytes, got %d", Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Sum returns the plain BLAKE3 digest of data.
func Sum(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// DeriveKey folds an arbitrary-length key into the fixed 32-byte key BLAKE3
// keyed hashing requires.
func DeriveKey(key []byte) [Size]byte {
	return blake3.Sum256(key)
}

// Keyed computes the keyed BLAKE3 digest of data under key. Used for
// reservation commitments (key = nonce) and nonces (key = owner signing key).
func Keyed(key [Size]byte, data []byte) Hash {
	hasher := blake3.New(Size, key[:])
	hasher.Write(data)
	var out Hash
	copy(out[:], hasher.Sum(nil))
	return out
}

// AddressSize is the length in bytes of a sidechain Address.
const AddressSize = 20

// Address is a sidechain account identifier.
type Address [AddressSize]byte

func (a Address) String() string { return hex.EncodeToString(a[:]) }

func (a Address) IsZero() bool { return a == Address{} }

// AddressFromVerifyingKey derives a sidechain address as the leading 20
// bytes of the BLAKE3 extendable-output hash of the verifying key bytes.
func AddressFromVerifyingKey(vk []byte) Address {
	xof := blake3.New(AddressSize, nil)
	xof.Write(vk)
	var addr Address
	copy(addr[:], xof.Sum(nil))
	return addr
}
