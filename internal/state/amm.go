package state

import (
	"fmt"
	"math/big"

	"github.com/LayerTwo-Labs/bitassetsd/internal/codec"
	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// swapFeeNumerator/swapFeeDenominator implement the documented 0.3%
// per-leg fee: 997/1000 applied once on the spent leg, once on the
// received leg.
const (
	swapFeeNumerator   = 997
	swapFeeDenominator = 1000
)

// PoolKey is the canonical (low, high) asset pair a pool is stored under.
type PoolKey struct {
	Asset0 types.AssetId
	Asset1 types.AssetId
}

// NewPoolKey canonicalizes an unordered pair into its storage key.
func NewPoolKey(a, b types.AssetId) PoolKey {
	lo, hi := types.Canonicalize(a, b)
	return PoolKey{Asset0: lo, Asset1: hi}
}

// PoolState is a constant-product pool's reserves and outstanding LP token
// supply. CreationTxid is a sentinel: RevertMint deletes the pool entirely
// iff it matches the reverted mint's txid, otherwise the mint is a later
// contribution and reverts as a pure arithmetic inverse.
type PoolState struct {
	Reserve0            uint64
	Reserve1            uint64
	OutstandingLpTokens uint64
	CreationTxid        hash.Hash
}

// AmmPools is the pool store keyed by canonical asset pair.
type AmmPools struct {
	pools map[PoolKey]*PoolState

	poolTbl table
}

func NewAmmPools() *AmmPools {
	return &AmmPools{pools: make(map[PoolKey]*PoolState)}
}

// LoadAmmPools rebuilds the pool map from pebble and wires every subsequent
// mutation to write through to the amm_pools table.
func LoadAmmPools(s *store.Store) (*AmmPools, error) {
	p := NewAmmPools()
	p.poolTbl = tableOf(s, ammPoolTable)

	if err := s.Table(ammPoolTable).Iterate(func(key, value []byte) error {
		r := codec.NewReader(key)
		k := PoolKey{Asset0: types.DecodeAssetId(r), Asset1: types.DecodeAssetId(r)}
		state, err := decodePoolState(value)
		if err != nil {
			return fmt.Errorf("state: load amm pool: %w", err)
		}
		p.pools[k] = state
		return nil
	}); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AmmPools) Get(key PoolKey) (*PoolState, bool) {
	s, ok := p.pools[key]
	return s, ok
}

func (p *AmmPools) persist(key PoolKey, pool *PoolState) error {
	return p.poolTbl.set(poolKeyBytes(key), encodePoolState(pool))
}

// ApplyMint validates and applies a mint of (amount0, amount1) claiming
// lpTokenMint LP tokens, creating the pool on first mint. A mint into a
// fully drained pool (all LP tokens burned) re-applies the initial-mint
// square-root rule, since the proportional formula has no reserves to
// scale against.
func (p *AmmPools) ApplyMint(key PoolKey, amount0, amount1, lpTokenMint uint64, txid hash.Hash) error {
	pool, exists := p.pools[key]
	if !exists || pool.OutstandingLpTokens == 0 {
		want := isqrt(new(big.Int).Mul(big.NewInt(0).SetUint64(amount0), big.NewInt(0).SetUint64(amount1)))
		if want.Cmp(big.NewInt(0).SetUint64(lpTokenMint)) != 0 {
			return ErrInvalidMint
		}
		if !exists {
			pool = &PoolState{CreationTxid: txid}
			p.pools[key] = pool
		}
		pool.Reserve0 = amount0
		pool.Reserve1 = amount1
		pool.OutstandingLpTokens = lpTokenMint
		return p.persist(key, pool)
	}

	mint0 := mulDiv(pool.OutstandingLpTokens, amount0, pool.Reserve0)
	mint1 := mulDiv(pool.OutstandingLpTokens, amount1, pool.Reserve1)
	want := mint0
	if mint1.Cmp(want) < 0 {
		want = mint1
	}
	if want.Cmp(big.NewInt(0).SetUint64(lpTokenMint)) != 0 {
		return ErrInvalidMint
	}

	newL := pool.OutstandingLpTokens + lpTokenMint
	if newL < pool.OutstandingLpTokens {
		return ErrLpTokenOverflow
	}
	newR0 := pool.Reserve0 + amount0
	newR1 := pool.Reserve1 + amount1
	if newR0 < pool.Reserve0 || newR1 < pool.Reserve1 {
		return ErrAmountOverflow
	}
	pool.Reserve0 = newR0
	pool.Reserve1 = newR1
	pool.OutstandingLpTokens = newL
	return p.persist(key, pool)
}

// RevertMint undoes a mint: deletes the pool if txid created it, otherwise
// decrements reserves and supply as a pure inverse.
func (p *AmmPools) RevertMint(key PoolKey, amount0, amount1, lpTokenMint uint64, txid hash.Hash) error {
	pool, ok := p.pools[key]
	if !ok {
		return wrap(key.Asset0.String()+"/"+key.Asset1.String(), ErrMissingPoolState)
	}
	if pool.CreationTxid == txid {
		delete(p.pools, key)
		return p.poolTbl.delete(poolKeyBytes(key))
	}
	if pool.Reserve0 < amount0 || pool.Reserve1 < amount1 || pool.OutstandingLpTokens < lpTokenMint {
		return ErrRevertMint
	}
	pool.Reserve0 -= amount0
	pool.Reserve1 -= amount1
	pool.OutstandingLpTokens -= lpTokenMint
	return p.persist(key, pool)
}

// ApplyBurn validates and applies a burn of lpTokenBurn tokens, requiring
// the declared payouts to equal the pool formula's exact result.
func (p *AmmPools) ApplyBurn(key PoolKey, amount0, amount1, lpTokenBurn uint64) error {
	pool, ok := p.pools[key]
	if !ok {
		return wrap(key.Asset0.String()+"/"+key.Asset1.String(), ErrMissingPoolState)
	}
	if pool.OutstandingLpTokens == 0 {
		return ErrInsufficientLiquidity
	}
	if lpTokenBurn > pool.OutstandingLpTokens {
		return ErrLpTokenUnderflow
	}
	payout0 := mulDiv(pool.Reserve0, lpTokenBurn, pool.OutstandingLpTokens).Uint64()
	payout1 := mulDiv(pool.Reserve1, lpTokenBurn, pool.OutstandingLpTokens).Uint64()
	if payout0 != amount0 || payout1 != amount1 {
		return ErrInvalidBurn
	}
	pool.Reserve0 -= amount0
	pool.Reserve1 -= amount1
	pool.OutstandingLpTokens -= lpTokenBurn
	return p.persist(key, pool)
}

// RevertBurn is the pure inverse of ApplyBurn.
func (p *AmmPools) RevertBurn(key PoolKey, amount0, amount1, lpTokenBurn uint64) error {
	pool, ok := p.pools[key]
	if !ok {
		return wrap(key.Asset0.String()+"/"+key.Asset1.String(), ErrMissingPoolState)
	}
	pool.Reserve0 += amount0
	pool.Reserve1 += amount1
	pool.OutstandingLpTokens += lpTokenBurn
	return p.persist(key, pool)
}

// swapOut computes the constant-product swap's exact received amount after
// fees given reserves (spendReserve, receiveReserve) and the spent amount.
// Intermediate products are taken through big.Int; only the spend reserve
// growing past the 64-bit range is an error.
func swapOut(spendReserve, receiveReserve, amountSpend uint64) (uint64, error) {
	spendAfterFee := mulDiv(amountSpend, swapFeeNumerator, swapFeeDenominator).Uint64()
	effectiveSpendReserve := spendReserve + spendAfterFee
	if effectiveSpendReserve < spendReserve {
		return 0, ErrAmountOverflow
	}
	newReceiveReserveBeforeFee := mulDivCeil(
		new(big.Int).SetUint64(spendReserve),
		new(big.Int).SetUint64(receiveReserve),
		new(big.Int).SetUint64(effectiveSpendReserve),
	)
	amountReceiveBeforeFee := receiveReserve - newReceiveReserveBeforeFee.Uint64()
	return mulDiv(amountReceiveBeforeFee, swapFeeNumerator, swapFeeDenominator).Uint64(), nil
}

// ApplySwap0For1 validates and applies a swap of asset0 for asset1.
func (p *AmmPools) ApplySwap0For1(key PoolKey, amountSpend, amountReceive uint64) error {
	pool, ok := p.pools[key]
	if !ok {
		return wrap(key.Asset0.String()+"/"+key.Asset1.String(), ErrMissingPoolState)
	}
	if pool.Reserve0 == 0 || pool.Reserve1 == 0 {
		return ErrInsufficientLiquidity
	}
	want, err := swapOut(pool.Reserve0, pool.Reserve1, amountSpend)
	if err != nil {
		return err
	}
	if want != amountReceive {
		return ErrInvalidSwap
	}
	newR0 := pool.Reserve0 + amountSpend
	if newR0 < pool.Reserve0 {
		return ErrAmountOverflow
	}
	pool.Reserve0 = newR0
	pool.Reserve1 -= amountReceive
	return p.persist(key, pool)
}

// ApplySwap1For0 is the mirror of ApplySwap0For1 with reserves swapped.
func (p *AmmPools) ApplySwap1For0(key PoolKey, amountSpend, amountReceive uint64) error {
	pool, ok := p.pools[key]
	if !ok {
		return wrap(key.Asset0.String()+"/"+key.Asset1.String(), ErrMissingPoolState)
	}
	if pool.Reserve0 == 0 || pool.Reserve1 == 0 {
		return ErrInsufficientLiquidity
	}
	want, err := swapOut(pool.Reserve1, pool.Reserve0, amountSpend)
	if err != nil {
		return err
	}
	if want != amountReceive {
		return ErrInvalidSwap
	}
	newR1 := pool.Reserve1 + amountSpend
	if newR1 < pool.Reserve1 {
		return ErrAmountOverflow
	}
	pool.Reserve1 = newR1
	pool.Reserve0 -= amountReceive
	return p.persist(key, pool)
}

// RevertSwap0For1 is the pure inverse of ApplySwap0For1.
func (p *AmmPools) RevertSwap0For1(key PoolKey, amountSpend, amountReceive uint64) error {
	pool, ok := p.pools[key]
	if !ok {
		return wrap(key.Asset0.String()+"/"+key.Asset1.String(), ErrMissingPoolState)
	}
	if pool.Reserve0 < amountSpend {
		return ErrRevertSwap
	}
	pool.Reserve0 -= amountSpend
	pool.Reserve1 += amountReceive
	return p.persist(key, pool)
}

// RevertSwap1For0 is the pure inverse of ApplySwap1For0.
func (p *AmmPools) RevertSwap1For0(key PoolKey, amountSpend, amountReceive uint64) error {
	pool, ok := p.pools[key]
	if !ok {
		return wrap(key.Asset0.String()+"/"+key.Asset1.String(), ErrMissingPoolState)
	}
	if pool.Reserve1 < amountSpend {
		return ErrRevertSwap
	}
	pool.Reserve1 -= amountSpend
	pool.Reserve0 += amountReceive
	return p.persist(key, pool)
}

// mulDiv computes floor(a*b/c) with a big.Int intermediate, guarding
// against the 64-bit overflow a naive a*b/c would risk.
func mulDiv(a, b, c uint64) *big.Int {
	prod := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return prod.Div(prod, new(big.Int).SetUint64(c))
}

// mulDivCeil computes ceil(a*b/c).
func mulDivCeil(a, b, c *big.Int) *big.Int {
	prod := new(big.Int).Mul(a, b)
	num := new(big.Int).Add(prod, new(big.Int).Sub(c, big.NewInt(1)))
	return num.Div(num, c)
}

// isqrt computes the integer square root (floor) of a non-negative big.Int
// via Newton's method.
func isqrt(n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		return big.NewInt(0)
	}
	x := new(big.Int).Set(n)
	y := new(big.Int).Add(x, big.NewInt(1))
	y.Rsh(y, 1)
	for y.Cmp(x) < 0 {
		x.Set(y)
		y.Add(x, new(big.Int).Div(n, x))
		y.Rsh(y, 1)
	}
	return x
}
