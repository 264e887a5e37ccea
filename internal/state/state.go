// Package state implements the ledger's validated, rollback-capable
// transition function: transaction filling, per-kind validation, and
// block connect/disconnect over the UTXO set, BitAsset registry, AMM pool
// store, and Dutch auction book.
package state

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/LayerTwo-Labs/bitassetsd/internal/auth"
	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

var scalarKey = []byte("current")

// stateVersion is the persisted layout's version, written into the
// state_version sub-database on first open and checked on every reopen.
const stateVersion uint32 = 1

// ErrStateVersion is returned by New when the store was written by an
// incompatible persisted-layout version.
var ErrStateVersion = errors.New("state: incompatible state version")

// State is the ledger's in-memory working copy of every domain store,
// rehydrated from pebble at startup and written through on every mutation,
// plus the scalar tip/height pair.
type State struct {
	store    *store.Store
	log      *zap.Logger
	Utxos    *UtxoSet
	Registry *Registry
	Pools    *AmmPools
	Auctions *DutchAuctions

	tipTbl     table
	heightTbl  table
	versionTbl table

	hasTip bool
	tip    hash.Hash
	height uint32
}

// New constructs a State over an opened store, checking the persisted
// layout version and rehydrating every domain store.
func New(s *store.Store, log *zap.Logger) (*State, error) {
	st := &State{
		store:      s,
		log:        log,
		tipTbl:     tableOf(s, tipTable),
		heightTbl:  tableOf(s, heightTable),
		versionTbl: tableOf(s, stateVersionTable),
	}
	if err := st.checkVersion(); err != nil {
		return nil, err
	}
	if err := st.reload(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *State) checkVersion() error {
	v, err := s.store.Table(stateVersionTable).Get(scalarKey)
	if err == store.ErrNotFound {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], stateVersion)
		return s.versionTbl.set(scalarKey, b[:])
	}
	if err != nil {
		return fmt.Errorf("state: load version: %w", err)
	}
	if got := binary.LittleEndian.Uint32(v); got != stateVersion {
		return fmt.Errorf("state: %w: store has %d, this build expects %d", ErrStateVersion, got, stateVersion)
	}
	return nil
}

// reload rebuilds every in-memory working copy from the live keyspace. Run
// at startup, and again after an aborted block batch so the in-memory
// stores never drift from what pebble holds.
func (s *State) reload() error {
	utxos, err := LoadUtxoSet(s.store)
	if err != nil {
		return err
	}
	registry, err := LoadRegistry(s.store)
	if err != nil {
		return err
	}
	pools, err := LoadAmmPools(s.store)
	if err != nil {
		return err
	}
	auctions, err := LoadDutchAuctions(s.store)
	if err != nil {
		return err
	}
	s.Utxos = utxos
	s.Registry = registry
	s.Pools = pools
	s.Auctions = auctions

	s.hasTip = false
	s.tip = hash.Hash{}
	s.height = 0
	v, err := s.store.Table(tipTable).Get(scalarKey)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("state: load tip: %w", err)
	}
	tip, err := hash.FromBytes(v)
	if err != nil {
		return fmt.Errorf("state: load tip: %w", err)
	}
	hv, err := s.store.Table(heightTable).Get(scalarKey)
	if err != nil {
		return fmt.Errorf("state: load height: %w", err)
	}
	s.hasTip = true
	s.tip = tip
	s.height = binary.LittleEndian.Uint32(hv)
	return nil
}

// Tip returns the current sidechain tip hash and height, if any block has
// been connected.
func (s *State) Tip() (hash.Hash, uint32, bool) { return s.tip, s.height, s.hasTip }

func (s *State) persistTip() error {
	if !s.hasTip {
		if err := s.tipTbl.delete(scalarKey); err != nil {
			return err
		}
		return s.heightTbl.delete(scalarKey)
	}
	if err := s.tipTbl.set(scalarKey, s.tip[:]); err != nil {
		return err
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], s.height)
	return s.heightTbl.set(scalarKey, b[:])
}

// fillTransaction resolves a transaction's inputs against the live UTXO
// set, failing with ErrNoUtxo at the first unresolved input.
func (s *State) fillTransaction(tx *types.Transaction) (*types.FilledTransaction, error) {
	spent := make([]types.FilledOutput, len(tx.Inputs))
	for i, op := range tx.Inputs {
		o, ok := s.Utxos.Get(op)
		if !ok {
			return nil, fmt.Errorf("state: input %d: %w", i, ErrNoUtxo)
		}
		spent[i] = o
	}
	return &types.FilledTransaction{Transaction: tx, SpentOutputs: spent}, nil
}

// fillTransactionFromStxos is fillTransaction's disconnect-time counterpart:
// during DisconnectTip outputs have not yet been restored from the STXO
// set when a transaction's TxData is reverted, so inputs are looked up
// there instead.
func (s *State) fillTransactionFromStxos(tx *types.Transaction) (*types.FilledTransaction, error) {
	spent := make([]types.FilledOutput, len(tx.Inputs))
	for i, op := range tx.Inputs {
		so, ok := s.Utxos.GetStxo(op)
		if !ok {
			return nil, fmt.Errorf("state: input %d: %w", i, ErrNoStxo)
		}
		spent[i] = so.Output
	}
	return &types.FilledTransaction{Transaction: tx, SpentOutputs: spent}, nil
}

func countReservationOutputs(outputs []types.Output) int {
	n := 0
	for _, o := range outputs {
		if o.Content.Kind == types.ContentBitAssetReservation {
			n++
		}
	}
	return n
}

func countOutputsOfKind(outputs []types.Output, kind types.OutputContentKind) int {
	n := 0
	for _, o := range outputs {
		if o.Content.Kind == kind {
			n++
		}
	}
	return n
}

func uniqueCount(ids []types.BitAssetId) int {
	seen := make(map[types.BitAssetId]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// validateReservationBalance enforces spec.md §4.6 item 2.
func validateReservationBalance(ftx *types.FilledTransaction) error {
	in := len(ftx.SpentReservations())
	out := countReservationOutputs(ftx.Transaction.Outputs)
	isReservation := ftx.Transaction.Data != nil && ftx.Transaction.Data.Kind == types.TxDataBitAssetReservation
	isRegistration := ftx.Transaction.Data != nil && ftx.Transaction.Data.Kind == types.TxDataBitAssetRegistration

	want := in
	if isReservation {
		want++
	}
	if isRegistration {
		want--
	}
	if out != want {
		return ErrUnbalancedReservations
	}
	return nil
}

// validateBitAssetBalance enforces the per-tx-kind table in spec.md §4.6.
func validateBitAssetBalance(ftx *types.FilledTransaction) error {
	tx := ftx.Transaction
	controlIn := len(ftx.SpentBitAssetControls())
	controlOut := countOutputsOfKind(tx.Outputs, types.ContentBitAssetControl)
	O := countOutputsOfKind(tx.Outputs, types.ContentBitAsset)
	U := uniqueCount(ftx.SpentBitAssets())

	kind := types.TxDataNone
	if tx.Data != nil {
		kind = tx.Data.Kind
	}

	switch kind {
	case types.TxDataBitAssetRegistration:
		if controlOut != controlIn+1 {
			return ErrUnbalancedBitAssetControls
		}
		if len(tx.Outputs) == 0 || tx.Outputs[len(tx.Outputs)-1].Content.Kind != types.ContentBitAssetControl {
			return ErrLastOutputNotControlCoin
		}
		if tx.Data.RegistrationInitialSupply > 0 {
			if O < U+1 {
				return ErrUnbalancedBitAssets
			}
			if len(tx.Outputs) < 2 || tx.Outputs[len(tx.Outputs)-2].Content.Kind != types.ContentBitAsset {
				return ErrSecondLastOutputNotBitAsset
			}
		} else if O < U {
			return ErrUnbalancedBitAssets
		}

	case types.TxDataBitAssetUpdate:
		if controlIn < 1 {
			return ErrNoBitAssetsToUpdate
		}
		if controlOut < 1 {
			return ErrUnbalancedBitAssetControls
		}

	case types.TxDataBitAssetMint:
		if controlIn < 1 {
			return ErrNoBitAssetsToMint
		}
		if controlOut != controlIn {
			return ErrUnbalancedBitAssetControls
		}

	case types.TxDataAmmBurn:
		if controlOut != controlIn {
			return ErrUnbalancedBitAssetControls
		}
		if O < 2 || U > O || O > U+2 {
			return ErrUnbalancedBitAssets
		}

	case types.TxDataAmmMint:
		if controlOut != controlIn {
			return ErrUnbalancedBitAssetControls
		}
		if U < 2 {
			return ErrTooFewBitAssetsToMint
		}
		if O > U || U > O+2 {
			return ErrUnbalancedBitAssets
		}

	case types.TxDataAmmSwap, types.TxDataDutchAuctionBid:
		if controlOut != controlIn {
			return ErrUnbalancedBitAssetControls
		}
		if U < 1 {
			return ErrUnbalancedBitAssets
		}
		if O < U-1 || O > U+1 {
			return ErrUnbalancedBitAssets
		}

	case types.TxDataDutchAuctionCreate:
		if controlOut != controlIn {
			return ErrUnbalancedBitAssetControls
		}
		if U < 1 {
			return ErrUnbalancedBitAssets
		}
		if O > U || U > O+1 {
			return ErrUnbalancedBitAssets
		}

	case types.TxDataDutchAuctionCollect:
		if controlOut != controlIn {
			return ErrUnbalancedBitAssetControls
		}
		if O < 1 || U > O || O > U+2 {
			return ErrUnbalancedBitAssets
		}

	default:
		if controlOut != controlIn {
			return ErrUnbalancedBitAssetControls
		}
		if O < U {
			return ErrUnbalancedBitAssets
		}
	}
	return nil
}

// validateFilledTransaction runs every per-tx check and returns its
// contribution to the block's total fees.
func (s *State) validateFilledTransaction(ftx *types.FilledTransaction) (types.Amount, error) {
	if err := validateReservationBalance(ftx); err != nil {
		return 0, err
	}
	if err := validateBitAssetBalance(ftx); err != nil {
		return 0, err
	}
	if tx := ftx.Transaction; tx.Data != nil && tx.Data.Kind == types.TxDataBitAssetRegistration {
		if s.Registry.Exists(types.BitAssetId(tx.Data.RegistrationNameHash)) {
			return 0, ErrBitAssetAlreadyRegistered
		}
		implied := types.ImpliedReservationCommitment(tx.Data.RegistrationNameHash, tx.Data.RegistrationRevealedNonce)
		matched := false
		for _, r := range ftx.SpentReservations() {
			if r.ReservationCommitment == implied {
				matched = true
				break
			}
		}
		if !matched {
			return 0, ErrBitAssetMissingReservation
		}
	}
	fee, err := ftx.BitcoinFee()
	if err != nil {
		return 0, err
	}
	return fee, nil
}

// checkedAdd sums two amounts, failing with ErrAmountOverflow on wrap.
func checkedAdd(a, b types.Amount) (types.Amount, error) {
	sum := a + b
	if sum < a {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// validateBlockNoAuth runs every header, coinbase, and per-transaction
// check except signature verification, returning the block's total fee.
// ValidateBlock layers the authorization batch on top; ConnectBlock repeats
// this directly before mutating anything.
func (s *State) validateBlockNoAuth(header *types.Header, body *types.Body) (types.Amount, error) {
	if s.hasTip {
		if header.PrevSideHash != s.tip {
			return 0, ErrPrevSideHash
		}
	} else if !header.PrevSideHash.IsZero() {
		return 0, ErrPrevSideHash
	}
	if header.MerkleRoot != types.ComputeMerkleRoot(body) {
		return 0, ErrMerkleRootMismatch
	}

	for _, o := range body.Coinbase {
		if o.Content.Kind != types.ContentBitcoin && o.Content.Kind != types.ContentWithdrawal {
			return 0, ErrBadCoinbaseOutputContent
		}
	}

	spentInBlock := make(map[types.OutPoint]struct{})
	var totalFees types.Amount
	for _, tx := range body.Transactions {
		for _, op := range tx.Inputs {
			if _, dup := spentInBlock[op]; dup {
				return 0, ErrUtxoDoubleSpent
			}
			spentInBlock[op] = struct{}{}
		}
		ftx, err := s.fillTransaction(tx)
		if err != nil {
			return 0, err
		}
		fee, err := s.validateFilledTransaction(ftx)
		if err != nil {
			return 0, fmt.Errorf("state: tx %s: %w", tx.Txid(), err)
		}
		if totalFees, err = checkedAdd(totalFees, fee); err != nil {
			return 0, err
		}
	}

	var coinbaseValue types.Amount
	for _, o := range body.Coinbase {
		v := o.Content.BitcoinValue
		if o.Content.Kind == types.ContentWithdrawal {
			v = o.Content.WithdrawalValue
		}
		var err error
		if coinbaseValue, err = checkedAdd(coinbaseValue, v); err != nil {
			return 0, err
		}
	}
	if coinbaseValue > totalFees {
		return 0, ErrNotEnoughFees
	}

	return totalFees, nil
}

// ValidateBlock is the pure gate: it fills and validates every transaction
// without mutating any store, returning the block's total fee.
func (s *State) ValidateBlock(ctx context.Context, header *types.Header, body *types.Body) (types.Amount, error) {
	totalFees, err := s.validateBlockNoAuth(header, body)
	if err != nil {
		return 0, err
	}
	if err := s.verifyAuthorizations(ctx, body); err != nil {
		return 0, err
	}
	return totalFees, nil
}

// verifyAuthorizations checks that the flattened authorizations list,
// consumed len(tx.Inputs) entries at a time in body order, batch-verifies
// against each spent input's address.
func (s *State) verifyAuthorizations(ctx context.Context, body *types.Body) error {
	var messages [][]byte
	var auths []types.Authorization

	idx := 0
	for _, tx := range body.Transactions {
		msg := types.EncodeTransaction(tx)
		for range tx.Inputs {
			if idx >= len(body.Authorizations) {
				return fmt.Errorf("state: %w: not enough authorizations", ErrAuthorization)
			}
			a := body.Authorizations[idx]
			idx++
			messages = append(messages, msg)
			auths = append(auths, a)
		}
	}
	if idx != len(body.Authorizations) {
		return fmt.Errorf("state: %w: too many authorizations", ErrAuthorization)
	}

	inputIdx := 0
	for _, tx := range body.Transactions {
		for _, op := range tx.Inputs {
			o, ok := s.Utxos.Get(op)
			if !ok {
				return fmt.Errorf("state: input %s: %w", op.Txid, ErrNoUtxo)
			}
			if auth.Address(auths[inputIdx]) != o.Address {
				return ErrWrongPubKeyForAddress
			}
			inputIdx++
		}
	}

	if err := auth.VerifyBatch(ctx, messages, auths); err != nil {
		return fmt.Errorf("state: %w", err)
	}
	return nil
}
