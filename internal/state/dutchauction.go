package state

import (
	"fmt"
	"math/big"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/rollback"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// DutchAuctionState is an auction's immutable creation parameters plus its
// five rollback-stamped mutable fields.
type DutchAuctionState struct {
	StartBlock        uint32
	Duration          uint32
	BaseAsset         types.AssetId
	InitialBaseAmount uint64
	QuoteAsset        types.AssetId
	InitialPrice      uint64
	InitialEndPrice   uint64

	MostRecentBidBlock         *rollback.RollBack[uint32]
	BaseAmountRemaining        *rollback.RollBack[uint64]
	QuoteAmount                *rollback.RollBack[uint64]
	PriceAfterMostRecentBid    *rollback.RollBack[uint64]
	EndPriceAfterMostRecentBid *rollback.RollBack[uint64]
}

// EndBlock is the height after which bids are no longer accepted.
func (s *DutchAuctionState) EndBlock() uint32 { return s.StartBlock + s.Duration }

// DutchAuctions is the auction store keyed by auction id (== creating txid).
type DutchAuctions struct {
	auctions map[hash.Hash]*DutchAuctionState

	auctionTbl table
}

func NewDutchAuctions() *DutchAuctions {
	return &DutchAuctions{auctions: make(map[hash.Hash]*DutchAuctionState)}
}

// LoadDutchAuctions rebuilds the auction map from pebble and wires every
// subsequent mutation to write through to the dutch_auctions table.
func LoadDutchAuctions(s *store.Store) (*DutchAuctions, error) {
	a := NewDutchAuctions()
	a.auctionTbl = tableOf(s, dutchAuctionTable)

	if err := s.Table(dutchAuctionTable).Iterate(func(key, value []byte) error {
		id, err := hash.FromBytes(key)
		if err != nil {
			return fmt.Errorf("state: load dutch auction: %w", err)
		}
		state, err := decodeDutchAuctionState(value)
		if err != nil {
			return fmt.Errorf("state: load dutch auction: %w", err)
		}
		a.auctions[id] = state
		return nil
	}); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *DutchAuctions) persist(id hash.Hash, s *DutchAuctionState) error {
	return a.auctionTbl.set(id[:], encodeDutchAuctionState(s))
}

func (a *DutchAuctions) Get(id hash.Hash) (*DutchAuctionState, bool) {
	s, ok := a.auctions[id]
	return s, ok
}

// ApplyCreate validates params against the current height and creates the
// auction keyed by txid.
func (a *DutchAuctions) ApplyCreate(txid hash.Hash, height uint32, params types.DutchAuctionParams) error {
	if params.StartBlock <= height {
		return ErrAuctionExpired
	}
	if params.FinalPrice > params.InitialPrice {
		return ErrAuctionFinalPrice
	}
	if params.Duration == 0 {
		return ErrAuctionZeroDuration
	}
	if params.Duration == 1 && params.FinalPrice != params.InitialPrice {
		return ErrAuctionPriceMismatch
	}

	s := &DutchAuctionState{
		StartBlock:        params.StartBlock,
		Duration:          params.Duration,
		BaseAsset:         params.BaseAsset,
		InitialBaseAmount: params.BaseAmount,
		QuoteAsset:        params.QuoteAsset,
		InitialPrice:      params.InitialPrice,
		InitialEndPrice:   params.FinalPrice,

		MostRecentBidBlock:         rollback.New(params.StartBlock, txid, height),
		BaseAmountRemaining:        rollback.New(params.BaseAmount, txid, height),
		QuoteAmount:                rollback.New[uint64](0, txid, height),
		PriceAfterMostRecentBid:    rollback.New(params.InitialPrice, txid, height),
		EndPriceAfterMostRecentBid: rollback.New(params.FinalPrice, txid, height),
	}
	a.auctions[txid] = s
	return a.persist(txid, s)
}

// RevertCreate deletes the auction outright — create has no prior state to
// restore.
func (a *DutchAuctions) RevertCreate(id hash.Hash) error {
	delete(a.auctions, id)
	return a.auctionTbl.delete(id[:])
}

// PriceAt computes the posted price at height h: linear decay between
// priceAfterMostRecentBid and endPriceAfterMostRecentBid over the blocks
// remaining until the auction's end block.
func (s *DutchAuctionState) PriceAt(h uint32) uint64 {
	lastBid, _ := s.MostRecentBidBlock.Latest()
	priceAfter, _ := s.PriceAfterMostRecentBid.Latest()
	endPriceAfter, _ := s.EndPriceAfterMostRecentBid.Latest()

	end := s.EndBlock()
	rem := end - lastBid.Value
	if rem == 0 {
		return priceAfter.Value
	}
	e := h - lastBid.Value
	decay := mulDiv(priceAfter.Value-endPriceAfter.Value, uint64(e), uint64(rem)).Uint64()
	return priceAfter.Value - decay
}

// ApplyBid validates and applies a bid of bidSize at height h, returning
// the computed order quantity.
func (a *DutchAuctions) ApplyBid(id hash.Hash, h uint32, bidSize uint64, spendAsset, receiveAsset types.AssetId, declaredQuantity uint64, txid hash.Hash) (uint64, error) {
	s, ok := a.auctions[id]
	if !ok {
		return 0, wrap(id.String(), ErrAuctionMissing)
	}
	if spendAsset != s.QuoteAsset {
		return 0, ErrAuctionIncorrectSpendAsset
	}
	if receiveAsset != s.BaseAsset {
		return 0, ErrAuctionIncorrectReceiveAsset
	}
	if h < s.StartBlock {
		return 0, ErrAuctionNotStarted
	}
	if h > s.EndBlock() {
		return 0, ErrAuctionEnded
	}
	price := s.PriceAt(h)
	if price == 0 {
		return 0, ErrAuctionInvalidPrice
	}

	remaining, _ := s.BaseAmountRemaining.Latest()
	orderQuantity := mulDivCeil(
		new(big.Int).SetUint64(bidSize),
		new(big.Int).SetUint64(remaining.Value),
		new(big.Int).SetUint64(price),
	).Uint64()
	if orderQuantity > remaining.Value {
		return 0, ErrAuctionQuantityTooLarge
	}
	if orderQuantity != declaredQuantity {
		return 0, ErrAuctionInvalidPrice
	}

	if bidSize > price {
		return 0, ErrAmountUnderflow
	}
	newRemaining := remaining.Value - orderQuantity

	quoteLatest, _ := s.QuoteAmount.Latest()
	if quoteLatest.Value+bidSize < quoteLatest.Value {
		return 0, ErrAmountOverflow
	}
	endPriceLatest, _ := s.EndPriceAfterMostRecentBid.Latest()

	// The new priceAfterMostRecentBid is the price posted at bid time
	// (the decayed price just computed), offset by the bid size — not the
	// previous priceAfterMostRecentBid, which may be stale by many blocks.
	newPrice := price - bidSize
	var newEndPrice uint64
	if newRemaining == 0 {
		newEndPrice = 0
	} else {
		newEndPrice = mulDivCeil(
			new(big.Int).SetUint64(endPriceLatest.Value),
			new(big.Int).SetUint64(newRemaining),
			new(big.Int).SetUint64(remaining.Value),
		).Uint64()
	}

	if err := s.BaseAmountRemaining.Push(newRemaining, txid, h); err != nil {
		return 0, err
	}
	if err := s.QuoteAmount.Push(quoteLatest.Value+bidSize, txid, h); err != nil {
		return 0, err
	}
	if err := s.PriceAfterMostRecentBid.Push(newPrice, txid, h); err != nil {
		return 0, err
	}
	if err := s.EndPriceAfterMostRecentBid.Push(newEndPrice, txid, h); err != nil {
		return 0, err
	}
	if err := s.MostRecentBidBlock.Push(h, txid, h); err != nil {
		return 0, err
	}
	if err := a.persist(id, s); err != nil {
		return 0, err
	}
	return orderQuantity, nil
}

// RevertBid pops the five entries a bid pushed, in reverse order.
func (a *DutchAuctions) RevertBid(id hash.Hash, txid hash.Hash) error {
	s, ok := a.auctions[id]
	if !ok {
		return wrap(id.String(), ErrAuctionMissing)
	}
	if _, err := rollback.PopAssertTxid(s.MostRecentBidBlock, txid); err != nil {
		return err
	}
	if _, err := rollback.PopAssertTxid(s.EndPriceAfterMostRecentBid, txid); err != nil {
		return err
	}
	if _, err := rollback.PopAssertTxid(s.PriceAfterMostRecentBid, txid); err != nil {
		return err
	}
	if _, err := rollback.PopAssertTxid(s.QuoteAmount, txid); err != nil {
		return err
	}
	if _, err := rollback.PopAssertTxid(s.BaseAmountRemaining, txid); err != nil {
		return err
	}
	return a.persist(id, s)
}

// ApplyCollect validates a collect at height h and pushes the sentinel-zero
// entries that mark the auction as fully collected.
func (a *DutchAuctions) ApplyCollect(id hash.Hash, h uint32, offeredAsset, receiveAsset types.AssetId, offeredRemaining, received uint64, txid hash.Hash) error {
	s, ok := a.auctions[id]
	if !ok {
		return wrap(id.String(), ErrAuctionMissing)
	}
	if h < s.StartBlock+s.Duration {
		return ErrAuctionNotFinished
	}
	if offeredAsset != s.BaseAsset {
		return ErrAuctionIncorrectOfferedAsset
	}
	if receiveAsset != s.QuoteAsset {
		return ErrAuctionIncorrectReceiveAsset
	}
	remaining, _ := s.BaseAmountRemaining.Latest()
	quote, _ := s.QuoteAmount.Latest()
	if offeredRemaining != remaining.Value {
		return ErrAuctionIncorrectOfferedAmount
	}
	if received != quote.Value {
		return ErrAuctionIncorrectReceiveAmount
	}
	if err := s.BaseAmountRemaining.Push(0, txid, h); err != nil {
		return err
	}
	if err := s.QuoteAmount.Push(0, txid, h); err != nil {
		return err
	}
	return a.persist(id, s)
}

// RevertCollect pops the two sentinel entries ApplyCollect pushed.
func (a *DutchAuctions) RevertCollect(id hash.Hash, txid hash.Hash) error {
	s, ok := a.auctions[id]
	if !ok {
		return wrap(id.String(), ErrAuctionMissing)
	}
	if _, err := rollback.PopAssertTxid(s.QuoteAmount, txid); err != nil {
		return err
	}
	if _, err := rollback.PopAssertTxid(s.BaseAmountRemaining, txid); err != nil {
		return err
	}
	return a.persist(id, s)
}
