package types

import (
	"fmt"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
)

// FilledTransaction is a Transaction together with the resolved content of
// every output it spends, the form the validator and connector work with
// once inputs have been looked up against the UTXO set.
type FilledTransaction struct {
	Transaction  *Transaction
	SpentOutputs []FilledOutput
}

func (t *FilledTransaction) Txid() hash.Hash { return t.Transaction.Txid() }

// SpentBitAssets returns, in input order, the BitAsset ids of every spent
// BitAsset-balance output.
func (t *FilledTransaction) SpentBitAssets() []BitAssetId {
	var out []BitAssetId
	for _, o := range t.SpentOutputs {
		if o.Content.Kind == ContentBitAsset {
			out = append(out, o.Content.BitAssetId)
		}
	}
	return out
}

// SpentBitAssetControls returns, in input order, the BitAsset ids of every
// spent control-coin output.
func (t *FilledTransaction) SpentBitAssetControls() []BitAssetId {
	var out []BitAssetId
	for _, o := range t.SpentOutputs {
		if o.Content.Kind == ContentBitAssetControl {
			out = append(out, o.Content.BitAssetId)
		}
	}
	return out
}

// SpentReservations returns, in input order, the spent reservation outputs.
func (t *FilledTransaction) SpentReservations() []FilledOutputContent {
	var out []FilledOutputContent
	for _, o := range t.SpentOutputs {
		if o.Content.Kind == ContentBitAssetReservation {
			out = append(out, o.Content)
		}
	}
	return out
}

// LastSpentBitAssetId returns the id of the last spent BitAsset-balance
// output, if any — the identity a BitAssetUpdate acts on.
func (t *FilledTransaction) LastSpentBitAssetId() (BitAssetId, bool) {
	ids := t.SpentBitAssets()
	if len(ids) == 0 {
		return BitAssetId{}, false
	}
	return ids[len(ids)-1], true
}

// LastSpentBitAssetControlId returns the id of the last spent control-coin
// output, if any — the authority a BitAssetMint acts on.
func (t *FilledTransaction) LastSpentBitAssetControlId() (BitAssetId, bool) {
	ids := t.SpentBitAssetControls()
	if len(ids) == 0 {
		return BitAssetId{}, false
	}
	return ids[len(ids)-1], true
}

// ImpliedReservationCommitment recomputes the commitment a registration's
// revealed nonce and name hash must match: keyed_blake3(nonce, nameHash).
func ImpliedReservationCommitment(nameHash, revealedNonce hash.Hash) hash.Hash {
	return hash.Keyed(revealedNonce, nameHash[:])
}

// BitcoinFee returns the difference between spent and created Bitcoin-kind
// value: total value in minus total value out, across both plain Bitcoin
// outputs and withdrawal outputs (which debit the sidechain's Bitcoin
// balance by their value, independent of whether the bundle later succeeds).
func (t *FilledTransaction) BitcoinFee() (Amount, error) {
	var valueIn, valueOut uint64
	for _, o := range t.SpentOutputs {
		switch o.Content.Kind {
		case ContentBitcoin:
			valueIn += o.Content.BitcoinValue
		case ContentWithdrawal:
			valueIn += o.Content.WithdrawalValue
		}
	}
	for _, o := range t.Transaction.Outputs {
		switch o.Content.Kind {
		case ContentBitcoin:
			valueOut += o.Content.BitcoinValue
		case ContentWithdrawal:
			valueOut += o.Content.WithdrawalValue
		}
	}
	if valueOut > valueIn {
		return 0, fmt.Errorf("types: %w: value in %d < value out %d", ErrNotEnoughValueIn, valueIn, valueOut)
	}
	return valueIn - valueOut, nil
}

// ErrNotEnoughValueIn is returned by BitcoinFee when a transaction's
// declared outputs spend more Bitcoin value than its inputs provide.
var ErrNotEnoughValueIn = fmt.Errorf("not enough Bitcoin value in")

// pendingIdentity is either a resolved BitAsset id, carried forward from a
// spent input, or the registration in this very transaction.
type pendingIdentity struct {
	id BitAssetId
}

type pendingReservation struct {
	commitment hash.Hash
	txid       hash.Hash
}

// FilledOutputs resolves this transaction's declared outputs into UTXOs,
// threading identity through positionally: a BitAsset-kind output consumes
// the next not-yet-claimed BitAsset identity (from a spent BitAsset input,
// or from this transaction's own registration, in the order spent-then-new
// matches the original's flow), a control-coin output likewise consumes the
// next BitAssetControl identity, and a reservation-kind output consumes the
// next pending reservation. This mirrors spec.md's positional resolution
// rule: identity flows through a transaction by position, not by explicit
// reference.
func (t *FilledTransaction) FilledOutputs() ([]FilledOutput, error) {
	bitassets := make([]pendingIdentity, 0, len(t.SpentOutputs)+1)
	for _, id := range t.SpentBitAssets() {
		bitassets = append(bitassets, pendingIdentity{id: id})
	}

	controls := make([]pendingIdentity, 0, len(t.SpentOutputs)+1)
	for _, id := range t.SpentBitAssetControls() {
		controls = append(controls, pendingIdentity{id: id})
	}

	reservations := make([]pendingReservation, 0, len(t.SpentOutputs)+1)
	impliedCommitment := hash.Hash{}
	isRegistration := t.Transaction.Data != nil && t.Transaction.Data.Kind == TxDataBitAssetRegistration
	if isRegistration {
		d := t.Transaction.Data
		impliedCommitment = ImpliedReservationCommitment(d.RegistrationNameHash, d.RegistrationRevealedNonce)
	}
	consumedRegistrationReservation := false
	for _, r := range t.SpentReservations() {
		if isRegistration && !consumedRegistrationReservation && r.ReservationCommitment == impliedCommitment {
			consumedRegistrationReservation = true
			continue
		}
		reservations = append(reservations, pendingReservation{commitment: r.ReservationCommitment, txid: r.ReservationTxid})
	}

	if t.Transaction.Data != nil {
		switch t.Transaction.Data.Kind {
		case TxDataBitAssetReservation:
			reservations = append(reservations, pendingReservation{
				commitment: t.Transaction.Data.ReservationCommitment,
				txid:       t.Txid(),
			})
		case TxDataBitAssetRegistration:
			newId := BitAssetId(t.Transaction.Data.RegistrationNameHash)
			bitassets = append(bitassets, pendingIdentity{id: newId})
			controls = append(controls, pendingIdentity{id: newId})
		}
	}

	out := make([]FilledOutput, len(t.Transaction.Outputs))
	bi, ci, ri := 0, 0, 0
	for i, o := range t.Transaction.Outputs {
		fc := FilledOutputContent{
			Kind:                  o.Content.Kind,
			AmmLpTokenAmount:      o.Content.AmmLpTokenAmount,
			BitcoinValue:          o.Content.BitcoinValue,
			WithdrawalValue:       o.Content.WithdrawalValue,
			WithdrawalMainFee:     o.Content.WithdrawalMainFee,
			WithdrawalMainAddress: o.Content.WithdrawalMainAddress,
			BitAssetAmount:        o.Content.BitAssetAmount,
			ReservationCommitment: o.Content.ReservationCommitment,
		}
		switch o.Content.Kind {
		case ContentBitAsset:
			if bi >= len(bitassets) {
				return nil, fmt.Errorf("types: %w: output %d has no BitAsset identity to resolve", ErrFillOutputsFailed, i)
			}
			fc.BitAssetId = bitassets[bi].id
			bi++
		case ContentBitAssetControl:
			if ci >= len(controls) {
				return nil, fmt.Errorf("types: %w: output %d has no BitAssetControl identity to resolve", ErrFillOutputsFailed, i)
			}
			fc.BitAssetId = controls[ci].id
			ci++
		case ContentBitAssetReservation:
			if ri >= len(reservations) {
				return nil, fmt.Errorf("types: %w: output %d has no reservation to resolve", ErrFillOutputsFailed, i)
			}
			fc.ReservationCommitment = reservations[ri].commitment
			fc.ReservationTxid = reservations[ri].txid
			ri++
		}
		out[i] = FilledOutput{Address: o.Address, Content: fc}
	}
	return out, nil
}

// ErrFillOutputsFailed is returned by FilledOutputs when a transaction
// declares more identity-bearing outputs of some kind than it has spent or
// minted identities to assign them.
var ErrFillOutputsFailed = fmt.Errorf("failed to resolve output identities")
