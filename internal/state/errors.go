package state

import (
	"errors"
	"fmt"

	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// Amount errors.
var (
	ErrAmountOverflow  = errors.New("state: amount overflow")
	ErrAmountUnderflow = errors.New("state: amount underflow")
)

// Header/body errors.
var (
	ErrPrevSideHash       = errors.New("state: prev_side_hash does not match tip")
	ErrBlockHash          = errors.New("state: block hash mismatch")
	ErrMerkleRootMismatch = errors.New("state: merkle root mismatch")
)

// Fee and value errors.
var (
	ErrNotEnoughFees    = errors.New("state: coinbase value exceeds total fees")
	ErrNotEnoughValueIn = types.ErrNotEnoughValueIn
)

// UTXO errors.
var (
	ErrUtxoDoubleSpent = errors.New("state: utxo double spent")
	ErrNoUtxo          = errors.New("state: no such utxo")
	ErrNoStxo          = errors.New("state: no such stxo")
)

// Authorization errors.
var (
	ErrAuthorization         = errors.New("state: authorization failed")
	ErrWrongPubKeyForAddress = errors.New("state: verifying key does not match spent output's address")
)

// Fill/validation structural errors.
var (
	ErrBadCoinbaseOutputContent   = errors.New("state: coinbase output is not Bitcoin or Withdrawal")
	ErrFillTxOutputContentsFailed = types.ErrFillOutputsFailed
)

// BitAsset errors.
var (
	ErrBitAssetAlreadyRegistered  = errors.New("state: bitasset name already registered")
	ErrBitAssetMissingReservation = errors.New("state: no reservation matches the revealed nonce")
	ErrBitAssetMissing            = errors.New("state: no such bitasset")
	ErrNoBitAssetsToUpdate        = errors.New("state: no bitasset control coin spent to authorize update")
	ErrNoBitAssetsToMint          = errors.New("state: no bitasset control coin spent to authorize mint")
	ErrTotalSupplyOverflow        = errors.New("state: bitasset total supply overflow")
	ErrTotalSupplyUnderflow       = errors.New("state: bitasset total supply underflow")
)

// Balance-count errors.
var (
	ErrUnbalancedReservations      = errors.New("state: reservation input/output counts unbalanced")
	ErrUnbalancedBitAssets         = errors.New("state: bitasset input/output counts unbalanced")
	ErrUnbalancedBitAssetControls  = errors.New("state: bitasset control coin input/output counts unbalanced")
	ErrLastOutputNotControlCoin    = errors.New("state: registration's last output is not a control coin")
	ErrSecondLastOutputNotBitAsset = errors.New("state: registration with nonzero supply must place a bitasset output second-to-last")
)

// AMM errors.
var (
	ErrInvalidMint           = errors.New("state: declared lp token mint does not match pool formula")
	ErrInvalidBurn           = errors.New("state: declared payout does not match pool formula")
	ErrInvalidSwap           = errors.New("state: declared amount received does not match pool formula")
	ErrInsufficientLiquidity = errors.New("state: insufficient pool liquidity")
	ErrLpTokenOverflow       = errors.New("state: lp token supply overflow")
	ErrLpTokenUnderflow      = errors.New("state: lp token supply underflow")
	ErrMissingPoolState      = errors.New("state: no pool for asset pair")
	ErrRevertMint            = errors.New("state: cannot revert mint: pool state does not match")
	ErrRevertSwap            = errors.New("state: cannot revert swap: pool state does not match")
	ErrTooFewBitAssetsToMint = errors.New("state: amm mint requires at least two distinct bitassets spent")
)

// Dutch auction errors.
var (
	ErrAuctionNotStarted             = errors.New("state: auction has not started")
	ErrAuctionEnded                  = errors.New("state: auction has ended")
	ErrAuctionIncorrectSpendAsset    = errors.New("state: bid spend asset does not match auction quote asset")
	ErrAuctionIncorrectReceiveAsset  = errors.New("state: receive asset does not match the auction")
	ErrAuctionInvalidPrice           = errors.New("state: invalid price for auction bid")
	ErrAuctionQuantityTooLarge       = errors.New("state: bid order quantity exceeds base remaining")
	ErrAuctionMissing                = errors.New("state: no such auction")
	ErrAuctionExpired                = errors.New("state: auction start block is not in the future")
	ErrAuctionFinalPrice             = errors.New("state: final price exceeds initial price")
	ErrAuctionPriceMismatch          = errors.New("state: duration of one requires final price equal initial price")
	ErrAuctionZeroDuration           = errors.New("state: auction duration must be at least one block")
	ErrAuctionNotFinished            = errors.New("state: auction has not reached its end block")
	ErrAuctionIncorrectOfferedAsset  = errors.New("state: collect offered asset does not match auction base asset")
	ErrAuctionIncorrectOfferedAmount = errors.New("state: collect offered amount does not match remaining base")
	ErrAuctionIncorrectReceiveAmount = errors.New("state: collect receive amount does not match accrued quote")
	ErrAuctionRevert                 = errors.New("state: cannot revert auction op: state does not match")
)

// Withdrawal errors.
var ErrBundleTooHeavy = errors.New("state: withdrawal bundle exceeds standard transaction weight")

// ErrNoTip is returned by DisconnectTip when the chain has no connected
// blocks to disconnect.
var ErrNoTip = errors.New("state: no tip to disconnect")

// DisconnectTip header/body verification errors.
var (
	ErrDisconnectHeaderMismatch = errors.New("state: disconnect header does not hash to the current tip")
	ErrDisconnectHeightMismatch = errors.New("state: disconnect height does not match the current tip's height")
)

// wrap is a small helper for consistent "state: <context>: %w" messages.
func wrap(context string, err error) error {
	return fmt.Errorf("state: %s: %w", context, err)
}
