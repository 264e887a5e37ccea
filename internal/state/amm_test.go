package state_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/state"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

func testPoolKey() state.PoolKey {
	a := types.AssetId{Kind: types.AssetBitAsset, Id: types.BitAssetId(hash.Sum([]byte("A")))}
	b := types.AssetId{Kind: types.AssetBitAsset, Id: types.BitAssetId(hash.Sum([]byte("B")))}
	return state.NewPoolKey(a, b)
}

func TestAmmMintSwapBurnRoundTrip(t *testing.T) {
	pools := state.NewAmmPools()
	key := testPoolKey()
	mintTxid := hash.Sum([]byte("mint"))

	require.NoError(t, pools.ApplyMint(key, 10000, 10000, 10000, mintTxid))
	pool, ok := pools.Get(key)
	require.True(t, ok)
	require.Equal(t, uint64(10000), pool.Reserve0)
	require.Equal(t, uint64(10000), pool.OutstandingLpTokens)

	require.NoError(t, pools.ApplySwap0For1(key, 1000, 903))
	pool, _ = pools.Get(key)
	require.Equal(t, uint64(11000), pool.Reserve0)
	require.Equal(t, uint64(9097), pool.Reserve1)

	require.Error(t, pools.ApplySwap0For1(key, 1000, 999))

	require.NoError(t, pools.ApplyBurn(key, 11000, 9097, 10000))
	pool, ok = pools.Get(key)
	require.True(t, ok)
	require.Equal(t, uint64(0), pool.Reserve0)
	require.Equal(t, uint64(0), pool.Reserve1)
	require.Equal(t, uint64(0), pool.OutstandingLpTokens)
}

func TestAmmMintRejectsWrongLpTokenClaim(t *testing.T) {
	pools := state.NewAmmPools()
	key := testPoolKey()
	err := pools.ApplyMint(key, 10000, 10000, 9999, hash.Sum([]byte("mint")))
	require.ErrorIs(t, err, state.ErrInvalidMint)
}

func TestAmmSwapOnEmptyPoolIsInsufficientLiquidity(t *testing.T) {
	pools := state.NewAmmPools()
	key := testPoolKey()
	require.NoError(t, pools.ApplyMint(key, 100, 100, 100, hash.Sum([]byte("mint"))))
	require.NoError(t, pools.ApplyBurn(key, 100, 100, 100))
	err := pools.ApplySwap0For1(key, 10, 1)
	require.ErrorIs(t, err, state.ErrInsufficientLiquidity)
}

func TestAmmRevertMintDeletesPoolOnlyForCreator(t *testing.T) {
	pools := state.NewAmmPools()
	key := testPoolKey()
	createTxid := hash.Sum([]byte("create"))
	require.NoError(t, pools.ApplyMint(key, 10000, 10000, 10000, createTxid))

	secondTxid := hash.Sum([]byte("second-mint"))
	require.NoError(t, pools.ApplyMint(key, 1000, 1000, 1000, secondTxid))

	require.NoError(t, pools.RevertMint(key, 1000, 1000, 1000, secondTxid))
	pool, ok := pools.Get(key)
	require.True(t, ok)
	require.Equal(t, uint64(10000), pool.Reserve0)

	require.NoError(t, pools.RevertMint(key, 10000, 10000, 10000, createTxid))
	_, ok = pools.Get(key)
	require.False(t, ok)
}
