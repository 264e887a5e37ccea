package hash_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
)

func TestSumDeterministic(t *testing.T) {
	a := hash.Sum([]byte("acme"))
	b := hash.Sum([]byte("acme"))
	require.Equal(t, a, b)

	c := hash.Sum([]byte("acme2"))
	require.NotEqual(t, a, c)
}

func TestKeyedDiffersByKey(t *testing.T) {
	nameHash := hash.Sum([]byte("acme"))
	key1 := hash.DeriveKey([]byte("owner-one"))
	key2 := hash.DeriveKey([]byte("owner-two"))

	n1 := hash.Keyed(key1, nameHash[:])
	n2 := hash.Keyed(key2, nameHash[:])
	require.NotEqual(t, n1, n2)

	again := hash.Keyed(key1, nameHash[:])
	require.Equal(t, n1, again)
}

func TestAddressFromVerifyingKeyLength(t *testing.T) {
	addr := hash.AddressFromVerifyingKey([]byte("some-verifying-key-bytes"))
	require.Len(t, addr[:], hash.AddressSize)
}

func TestFromBytesRoundTrip(t *testing.T) {
	h := hash.Sum([]byte("round-trip"))
	parsed, err := hash.FromBytes(h[:])
	require.NoError(t, err)
	require.Equal(t, h, parsed)

	_, err = hash.FromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}
