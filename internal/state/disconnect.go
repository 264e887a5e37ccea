package state

import (
	"fmt"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// revertTxData dispatches a transaction's domain operation's inverse,
// given its stxo-resolved filled view (see fillTransactionFromStxos).
func (s *State) revertTxData(ftx *types.FilledTransaction) error {
	tx := ftx.Transaction
	if tx.Data == nil {
		return nil
	}
	txid := tx.Txid()

	switch tx.Data.Kind {
	case types.TxDataBitAssetReservation:
		if err := s.Registry.DeleteReservation(tx.Data.ReservationCommitment); err != nil {
			return err
		}

	case types.TxDataBitAssetRegistration:
		id := types.BitAssetId(tx.Data.RegistrationNameHash)
		if err := s.Registry.RevertRegister(id); err != nil {
			return err
		}
		implied := types.ImpliedReservationCommitment(tx.Data.RegistrationNameHash, tx.Data.RegistrationRevealedNonce)
		for _, r := range ftx.SpentReservations() {
			if r.ReservationCommitment == implied {
				if err := s.Registry.PutReservation(implied, r.ReservationTxid); err != nil {
					return err
				}
				break
			}
		}

	case types.TxDataBitAssetMint:
		id, ok := ftx.LastSpentBitAssetControlId()
		if !ok {
			return ErrNoBitAssetsToMint
		}
		return s.Registry.RevertMint(id, txid)

	case types.TxDataBitAssetUpdate:
		id, ok := ftx.LastSpentBitAssetId()
		if !ok {
			return ErrNoBitAssetsToUpdate
		}
		return s.Registry.RevertUpdates(id, tx.Data.Updates, txid)

	case types.TxDataAmmMint:
		key, amt0, amt1 := canonicalMintAmounts(tx.Data.AmmAsset0, tx.Data.AmmAsset1, tx.Data.AmmAmount0, tx.Data.AmmAmount1)
		return s.Pools.RevertMint(key, amt0, amt1, tx.Data.AmmLpTokenMint, txid)

	case types.TxDataAmmBurn:
		key, amt0, amt1 := canonicalMintAmounts(tx.Data.AmmAsset0, tx.Data.AmmAsset1, tx.Data.AmmAmount0, tx.Data.AmmAmount1)
		return s.Pools.RevertBurn(key, amt0, amt1, tx.Data.AmmLpTokenBurn)

	case types.TxDataAmmSwap:
		key := NewPoolKey(tx.Data.AmmAsset0, tx.Data.AmmAsset1)
		if tx.Data.SwapZeroForOne {
			return s.Pools.RevertSwap0For1(key, tx.Data.SwapAmountSpent, tx.Data.SwapAmountReceive)
		}
		return s.Pools.RevertSwap1For0(key, tx.Data.SwapAmountSpent, tx.Data.SwapAmountReceive)

	case types.TxDataDutchAuctionCreate:
		return s.Auctions.RevertCreate(txid)

	case types.TxDataDutchAuctionBid:
		return s.Auctions.RevertBid(tx.Data.AuctionId, txid)

	case types.TxDataDutchAuctionCollect:
		return s.Auctions.RevertCollect(tx.Data.AuctionId, txid)
	}
	return nil
}

// DisconnectTip undoes the most recently connected block, given the same
// header and body that were passed to ConnectBlock. Block archival lives
// outside this package's scope; a caller holding block
// history supplies them back here. header and body are re-verified against
// the live tip before anything is mutated, so a caller passing the wrong
// pair fails closed instead of corrupting state.
func (s *State) DisconnectTip(header *types.Header, body *types.Body, height uint32) error {
	if !s.hasTip {
		return ErrNoTip
	}
	if header.Hash() != s.tip {
		return ErrDisconnectHeaderMismatch
	}
	if header.MerkleRoot != types.ComputeMerkleRoot(body) {
		return ErrMerkleRootMismatch
	}
	if height != s.height {
		return ErrDisconnectHeightMismatch
	}

	if err := s.store.BeginBlock(); err != nil {
		return err
	}
	if err := s.disconnectTipInner(header, body, height); err != nil {
		abortErr := s.store.AbortBlock()
		if reloadErr := s.reload(); reloadErr != nil {
			return fmt.Errorf("state: reload after aborted disconnect: %w (disconnect error: %w)", reloadErr, err)
		}
		if abortErr != nil {
			return fmt.Errorf("state: abort block: %w (disconnect error: %w)", abortErr, err)
		}
		return err
	}
	return s.store.CommitBlock()
}

func (s *State) disconnectTipInner(header *types.Header, body *types.Body, height uint32) error {
	for i := len(body.Transactions) - 1; i >= 0; i-- {
		tx := body.Transactions[i]
		txid := tx.Txid()

		ftx, err := s.fillTransactionFromStxos(tx)
		if err != nil {
			return err
		}

		if err := s.revertTxData(ftx); err != nil {
			return err
		}

		for vout := len(tx.Outputs) - 1; vout >= 0; vout-- {
			if err := s.Utxos.Delete(types.OutPoint{Kind: types.OutPointRegular, Txid: txid, Vout: uint32(vout)}); err != nil {
				return err
			}
		}

		for vin := len(tx.Inputs) - 1; vin >= 0; vin-- {
			if err := s.Utxos.Unspend(tx.Inputs[vin]); err != nil {
				return err
			}
		}
	}

	for vout := len(body.Coinbase) - 1; vout >= 0; vout-- {
		if err := s.Utxos.Delete(types.OutPoint{Kind: types.OutPointCoinbase, MerkleRoot: header.MerkleRoot, Vout: uint32(vout)}); err != nil {
			return err
		}
	}

	if header.PrevSideHash.IsZero() {
		s.hasTip = false
		s.tip = hash.Hash{}
		s.height = 0
	} else {
		s.tip = header.PrevSideHash
		s.height = height - 1
	}
	return s.persistTip()
}
