package peg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/peg"
	"github.com/LayerTwo-Labs/bitassetsd/internal/state"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

func withdrawalUtxo(addr hash.Address, value, fee types.Amount, mainAddr string, txid hash.Hash, vout uint32) (types.OutPoint, types.FilledOutput) {
	op := types.OutPoint{Kind: types.OutPointRegular, Txid: txid, Vout: vout}
	o := types.FilledOutput{Address: addr, Content: types.FilledOutputContent{
		Kind:                  types.ContentWithdrawal,
		WithdrawalValue:       value,
		WithdrawalMainFee:     fee,
		WithdrawalMainAddress: mainAddr,
	}}
	return op, o
}

func TestAssembleBundleAggregatesByDestination(t *testing.T) {
	utxos := state.NewUtxoSet()
	ledger := peg.NewLedger(utxos)

	addr := hash.AddressFromVerifyingKey([]byte("owner"))
	txid1 := hash.Sum([]byte("t1"))
	txid2 := hash.Sum([]byte("t2"))

	op1, o1 := withdrawalUtxo(addr, 1000, 10, "bc1qdest", txid1, 0)
	op2, o2 := withdrawalUtxo(addr, 500, 5, "bc1qdest", txid2, 0)
	utxos.Put(op1, o1)
	utxos.Put(op2, o2)

	candidates := map[types.OutPoint]types.FilledOutput{op1: o1, op2: o2}
	mainTxid := hash.Sum([]byte("bundle-tx"))
	info, err := ledger.AssembleBundle(100, candidates, mainTxid)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Len(t, info.Outpoints, 2)

	_, stillLive := utxos.Get(op1)
	require.False(t, stillLive)
	spent, ok := utxos.GetStxo(op1)
	require.True(t, ok)
	require.Equal(t, types.InPointWithdrawal, spent.InPoint.Kind)
}

func TestFailBundleRestoresStxosAndSetsGap(t *testing.T) {
	utxos := state.NewUtxoSet()
	ledger := peg.NewLedger(utxos)

	addr := hash.AddressFromVerifyingKey([]byte("owner"))
	txid := hash.Sum([]byte("t1"))
	op, o := withdrawalUtxo(addr, 1000, 10, "bc1qdest", txid, 0)
	utxos.Put(op, o)

	mainTxid := hash.Sum([]byte("bundle-tx"))
	_, err := ledger.AssembleBundle(100, map[types.OutPoint]types.FilledOutput{op: o}, mainTxid)
	require.NoError(t, err)

	require.NoError(t, ledger.FailBundle(mainTxid, 100))

	restored, ok := utxos.Get(op)
	require.True(t, ok)
	require.Equal(t, o, restored)

	// A new bundle attempt immediately after is suppressed until the gap elapses.
	secondMainTxid := hash.Sum([]byte("bundle-tx-2"))
	info, err := ledger.AssembleBundle(101, map[types.OutPoint]types.FilledOutput{op: o}, secondMainTxid)
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestBuildBundleCommitmentIsDeterministic(t *testing.T) {
	ops := []types.OutPoint{
		{Kind: types.OutPointRegular, Txid: hash.Sum([]byte("a")), Vout: 0},
		{Kind: types.OutPointRegular, Txid: hash.Sum([]byte("b")), Vout: 1},
	}
	c1 := peg.BuildBundleCommitment(ops, 42)
	c2 := peg.BuildBundleCommitment(ops, 42)
	require.Equal(t, c1, c2)

	c3 := peg.BuildBundleCommitment(ops, 43)
	require.NotEqual(t, c1, c3)
}
