package rollback_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/rollback"
)

func TestPushPopRoundTrip(t *testing.T) {
	txid1 := hash.Sum([]byte("tx1"))
	txid2 := hash.Sum([]byte("tx2"))

	r := rollback.New[uint64](100, txid1, 1)
	require.NoError(t, r.Push(200, txid2, 2))

	latest, ok := r.Latest()
	require.True(t, ok)
	require.Equal(t, uint64(200), latest.Value)

	popped, err := rollback.PopAssertTxid(r, txid2)
	require.NoError(t, err)
	require.Equal(t, uint64(200), popped)

	latest, ok = r.Latest()
	require.True(t, ok)
	require.Equal(t, uint64(100), latest.Value)
}

func TestPushRejectsNonMonotoneHeight(t *testing.T) {
	txid := hash.Sum([]byte("tx"))
	r := rollback.New[uint64](1, txid, 10)
	err := r.Push(2, txid, 9)
	require.ErrorIs(t, err, rollback.ErrHeightNotMonotone)
}

func TestAtBlockHeight(t *testing.T) {
	txid := hash.Sum([]byte("tx"))
	r := rollback.New[uint64](1, txid, 0)
	require.NoError(t, r.Push(2, txid, 10))
	require.NoError(t, r.Push(3, txid, 20))

	v, ok := r.AtBlockHeight(15)
	require.True(t, ok)
	require.Equal(t, uint64(2), v.Value)

	v, ok = r.AtBlockHeight(0)
	require.True(t, ok)
	require.Equal(t, uint64(1), v.Value)
}

func TestPopAssertTxidMismatch(t *testing.T) {
	txid1 := hash.Sum([]byte("tx1"))
	txid2 := hash.Sum([]byte("tx2"))
	r := rollback.New[uint64](1, txid1, 0)
	_, err := rollback.PopAssertTxid(r, txid2)
	require.ErrorIs(t, err, rollback.ErrWrongTxid)
}
