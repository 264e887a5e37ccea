package state

import (
	"fmt"

	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// canonicalMintAmounts reorders (amount0, amount1) to match the pair's
// canonical (low, high) storage order.
func canonicalMintAmounts(a0, a1 types.AssetId, amt0, amt1 uint64) (PoolKey, uint64, uint64) {
	lo, hi := types.Canonicalize(a0, a1)
	if lo == a0 {
		return PoolKey{Asset0: lo, Asset1: hi}, amt0, amt1
	}
	return PoolKey{Asset0: lo, Asset1: hi}, amt1, amt0
}

// applyTxData dispatches a transaction's domain operation against the
// registry/pool/auction stores, given its already-filled view.
func (s *State) applyTxData(ftx *types.FilledTransaction, height uint32) error {
	tx := ftx.Transaction
	if tx.Data == nil {
		return nil
	}
	txid := tx.Txid()

	switch tx.Data.Kind {
	case types.TxDataBitAssetReservation:
		if err := s.Registry.PutReservation(tx.Data.ReservationCommitment, txid); err != nil {
			return err
		}

	case types.TxDataBitAssetRegistration:
		implied := types.ImpliedReservationCommitment(tx.Data.RegistrationNameHash, tx.Data.RegistrationRevealedNonce)
		if err := s.Registry.DeleteReservation(implied); err != nil {
			return err
		}
		id := types.BitAssetId(tx.Data.RegistrationNameHash)
		if _, err := s.Registry.Register(id, tx.Data.RegistrationData, tx.Data.RegistrationInitialSupply, txid, height); err != nil {
			return err
		}

	case types.TxDataBitAssetMint:
		id, ok := ftx.LastSpentBitAssetControlId()
		if !ok {
			return ErrNoBitAssetsToMint
		}
		if err := s.Registry.ApplyMint(id, tx.Data.MintAmount, txid, height); err != nil {
			return err
		}

	case types.TxDataBitAssetUpdate:
		id, ok := ftx.LastSpentBitAssetId()
		if !ok {
			return ErrNoBitAssetsToUpdate
		}
		if err := s.Registry.ApplyUpdates(id, tx.Data.Updates, txid, height); err != nil {
			return err
		}

	case types.TxDataAmmMint:
		key, amt0, amt1 := canonicalMintAmounts(tx.Data.AmmAsset0, tx.Data.AmmAsset1, tx.Data.AmmAmount0, tx.Data.AmmAmount1)
		if err := s.Pools.ApplyMint(key, amt0, amt1, tx.Data.AmmLpTokenMint, txid); err != nil {
			return err
		}

	case types.TxDataAmmBurn:
		key, amt0, amt1 := canonicalMintAmounts(tx.Data.AmmAsset0, tx.Data.AmmAsset1, tx.Data.AmmAmount0, tx.Data.AmmAmount1)
		if err := s.Pools.ApplyBurn(key, amt0, amt1, tx.Data.AmmLpTokenBurn); err != nil {
			return err
		}

	case types.TxDataAmmSwap:
		key := NewPoolKey(tx.Data.AmmAsset0, tx.Data.AmmAsset1)
		var err error
		if tx.Data.SwapZeroForOne {
			err = s.Pools.ApplySwap0For1(key, tx.Data.SwapAmountSpent, tx.Data.SwapAmountReceive)
		} else {
			err = s.Pools.ApplySwap1For0(key, tx.Data.SwapAmountSpent, tx.Data.SwapAmountReceive)
		}
		if err != nil {
			return err
		}

	case types.TxDataDutchAuctionCreate:
		if err := s.Auctions.ApplyCreate(txid, height, tx.Data.AuctionParams); err != nil {
			return err
		}

	case types.TxDataDutchAuctionBid:
		if _, err := s.Auctions.ApplyBid(tx.Data.AuctionId, height, tx.Data.AuctionBidSize, tx.Data.AuctionSpendAsset, tx.Data.AuctionReceiveAsset, tx.Data.AuctionQuantity, txid); err != nil {
			return err
		}

	case types.TxDataDutchAuctionCollect:
		if err := s.Auctions.ApplyCollect(tx.Data.AuctionId, height, tx.Data.CollectAssetOffered, tx.Data.CollectAssetReceive, tx.Data.CollectAmountOfferedRemaining, tx.Data.CollectAmountReceived, txid); err != nil {
			return err
		}
	}
	return nil
}

// ConnectBlock repeats validation, then mutates the UTXO set and domain
// stores and persists the new tip, all within one block batch. Inputs move
// to STXOs, outputs become UTXOs, then each transaction's TxData is applied,
// in body order. On any error the batch is discarded and the in-memory
// stores are rehydrated from the untouched keyspace, so no partial state
// ever becomes visible.
func (s *State) ConnectBlock(header *types.Header, body *types.Body, height uint32) error {
	if _, err := s.validateBlockNoAuth(header, body); err != nil {
		return err
	}

	if err := s.store.BeginBlock(); err != nil {
		return err
	}
	if err := s.connectBlockInner(header, body, height); err != nil {
		abortErr := s.store.AbortBlock()
		if reloadErr := s.reload(); reloadErr != nil {
			return fmt.Errorf("state: reload after aborted connect: %w (connect error: %w)", reloadErr, err)
		}
		if abortErr != nil {
			return fmt.Errorf("state: abort block: %w (connect error: %w)", abortErr, err)
		}
		return err
	}
	return s.store.CommitBlock()
}

func (s *State) connectBlockInner(header *types.Header, body *types.Body, height uint32) error {
	for _, tx := range body.Transactions {
		ftx, err := s.fillTransaction(tx)
		if err != nil {
			return err
		}
		txid := tx.Txid()
		for vin, op := range tx.Inputs {
			if err := s.Utxos.Spend(op, types.InPoint{Kind: types.InPointRegular, Txid: txid, Vin: uint32(vin)}); err != nil {
				return err
			}
		}
		filledOutputs, err := ftx.FilledOutputs()
		if err != nil {
			return err
		}
		for vout, fo := range filledOutputs {
			if err := s.Utxos.Put(types.OutPoint{Kind: types.OutPointRegular, Txid: txid, Vout: uint32(vout)}, fo); err != nil {
				return err
			}
		}
		if err := s.applyTxData(ftx, height); err != nil {
			return err
		}
	}

	for vout, o := range body.Coinbase {
		fc := types.FilledOutputContent{Kind: o.Content.Kind, BitcoinValue: o.Content.BitcoinValue, WithdrawalValue: o.Content.WithdrawalValue, WithdrawalMainFee: o.Content.WithdrawalMainFee, WithdrawalMainAddress: o.Content.WithdrawalMainAddress}
		if err := s.Utxos.Put(types.OutPoint{Kind: types.OutPointCoinbase, MerkleRoot: header.MerkleRoot, Vout: uint32(vout)}, types.FilledOutput{Address: o.Address, Content: fc}); err != nil {
			return err
		}
	}

	s.hasTip = true
	s.tip = header.Hash()
	s.height = height
	return s.persistTip()
}
