package mempool_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/mempool"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

func authTx(inputs []types.OutPoint, selfTxidSeed string) *types.AuthorizedTransaction {
	tx := &types.Transaction{
		Inputs:  inputs,
		Outputs: []types.Output{{Content: types.OutputContent{Kind: types.ContentBitcoin, BitcoinValue: 1}}},
		Memo:    []byte(selfTxidSeed),
	}
	return &types.AuthorizedTransaction{Transaction: tx}
}

func TestPutRejectsDoubleSpend(t *testing.T) {
	m := mempool.New()
	u := types.OutPoint{Kind: types.OutPointRegular, Txid: hash.Sum([]byte("u")), Vout: 0}

	t1 := authTx([]types.OutPoint{u}, "t1")
	require.NoError(t, m.Put(t1))

	t2 := authTx([]types.OutPoint{u}, "t2")
	err := m.Put(t2)
	require.ErrorIs(t, err, mempool.ErrUtxoDoubleSpent)
}

func TestDeleteCascadesToChildren(t *testing.T) {
	m := mempool.New()
	u := types.OutPoint{Kind: types.OutPointRegular, Txid: hash.Sum([]byte("u")), Vout: 0}

	t1 := authTx([]types.OutPoint{u}, "t1")
	require.NoError(t, m.Put(t1))
	t1id := t1.Transaction.Txid()

	t2Input := types.OutPoint{Kind: types.OutPointRegular, Txid: t1id, Vout: 0}
	t2 := authTx([]types.OutPoint{t2Input}, "t2")
	require.NoError(t, m.Put(t2))
	t2id := t2.Transaction.Txid()

	t3Input := types.OutPoint{Kind: types.OutPointRegular, Txid: t2id, Vout: 0}
	t3 := authTx([]types.OutPoint{t3Input}, "t3")
	require.NoError(t, m.Put(t3))

	require.Equal(t, 3, m.Len())
	require.NoError(t, m.Delete(t1id))
	require.Equal(t, 0, m.Len())

	_, ok := m.Get(t1id)
	require.False(t, ok)
	_, ok = m.Get(t2id)
	require.False(t, ok)
}

func TestPutRejectsWhenFull(t *testing.T) {
	m := mempool.New()
	m.SetMaxSize(1)

	u1 := types.OutPoint{Kind: types.OutPointRegular, Txid: hash.Sum([]byte("u1")), Vout: 0}
	require.NoError(t, m.Put(authTx([]types.OutPoint{u1}, "t1")))

	u2 := types.OutPoint{Kind: types.OutPointRegular, Txid: hash.Sum([]byte("u2")), Vout: 0}
	require.ErrorIs(t, m.Put(authTx([]types.OutPoint{u2}, "t2")), mempool.ErrFull)
}

func TestMempoolPersistsAcrossReload(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	defer s.Close()

	m, err := mempool.Load(s)
	require.NoError(t, err)

	u := types.OutPoint{Kind: types.OutPointRegular, Txid: hash.Sum([]byte("u")), Vout: 0}
	t1 := authTx([]types.OutPoint{u}, "t1")
	require.NoError(t, m.Put(t1))
	t1id := t1.Transaction.Txid()

	t2 := authTx([]types.OutPoint{{Kind: types.OutPointRegular, Txid: t1id, Vout: 0}}, "t2")
	require.NoError(t, m.Put(t2))

	reloaded, err := mempool.Load(s)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Len())

	// The double-spend guard survives the reload.
	conflict := authTx([]types.OutPoint{u}, "t3")
	require.ErrorIs(t, reloaded.Put(conflict), mempool.ErrUtxoDoubleSpent)

	// Cascading delete cleans the persisted rows too.
	require.NoError(t, reloaded.Delete(t1id))
	require.Equal(t, 0, reloaded.Len())
	emptied, err := mempool.Load(s)
	require.NoError(t, err)
	require.Equal(t, 0, emptied.Len())
}

func TestTakeReturnsAdmissionOrder(t *testing.T) {
	m := mempool.New()
	var admitted []*types.AuthorizedTransaction
	for i := 0; i < 5; i++ {
		u := types.OutPoint{Kind: types.OutPointRegular, Txid: hash.Sum([]byte{byte(i)}), Vout: 0}
		tx := authTx([]types.OutPoint{u}, string(rune('a'+i)))
		require.NoError(t, m.Put(tx))
		admitted = append(admitted, tx)
	}
	require.Len(t, m.Take(3), 3)
	require.Equal(t, admitted[:3], m.Take(3))
	require.Len(t, m.TakeAll(), 5)
	require.Equal(t, admitted, m.TakeAll())
}
