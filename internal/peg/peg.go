// Package peg implements the two-way-peg integrator: mainchain deposit
// ingestion and withdrawal bundle assembly/confirmation/failure.
package peg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// WithdrawalBundleFailureGap resolves spec.md §9's open question (the
// source disagrees between 4 and 5 across modules): this implementation
// enforces 4.
const WithdrawalBundleFailureGap = 4

// maxStdTxWeight is Bitcoin's standard transaction weight limit.
const maxStdTxWeight = 400_000

// MaxBundleOutputs bounds how many aggregated withdrawal destinations one
// bundle transaction may carry.
const MaxBundleOutputs = (maxStdTxWeight - 504) / 128

// weightPerOutput approximates a destination output's marginal weight
// contribution for the bundle size check.
const weightPerOutput = 128

// bundleBaseWeight approximates the OP_FALSE input plus three OP_RETURN
// outputs every bundle carries regardless of destination count.
const bundleBaseWeight = 504

var ErrBundleTooHeavy = errors.New("peg: bundle exceeds standard transaction weight")

// UtxoSource is the slice of state.UtxoSet peg needs, kept as a narrow
// interface so this package never imports internal/state (which in turn
// would need to import peg to wire deposits/withdrawals, an import cycle
// spec.md's component graph does not call for — the host process wires
// both against one *state.UtxoSet instead).
type UtxoSource interface {
	Get(op types.OutPoint) (types.FilledOutput, bool)
	Put(op types.OutPoint, o types.FilledOutput) error
	Spend(op types.OutPoint, in types.InPoint) error
	Unspend(op types.OutPoint) error
}

// BundleInfoKind discriminates a withdrawal bundle's tri-state status.
type BundleInfoKind uint8

const (
	BundleUnconfirmed BundleInfoKind = iota
	BundleConfirmed
	BundleFailed
)

// BundleInfo is the persisted record of one assembled withdrawal bundle.
type BundleInfo struct {
	Kind            BundleInfoKind
	Outpoints       []types.OutPoint
	MainTxid        hash.Hash
	HeightAssembled uint32
}

// WithdrawalEntry is one aggregated withdrawal destination in a bundle.
type WithdrawalEntry struct {
	MainAddress string
	Value       types.Amount
	MainFee     types.Amount
	Outpoints   []types.OutPoint
}

// Ledger tracks deposit ingestion order and withdrawal bundle lifecycle
// against a shared UTXO set.
type Ledger struct {
	utxos UtxoSource

	depositBlocks     []hash.Hash
	pendingBundle     *BundleInfo
	lastFailureHeight uint32
	hasLastFailure    bool
	bundles           map[hash.Hash]*BundleInfo
	eventBlocks       []eventBlockEntry

	depositBlockTbl       table
	pendingBundleTbl      table
	latestFailedBundleTbl table
	withdrawalBundleTbl   table
	eventBlockTbl         table
}

func NewLedger(utxos UtxoSource) *Ledger {
	return &Ledger{utxos: utxos, bundles: make(map[hash.Hash]*BundleInfo)}
}

// LoadLedger rebuilds a Ledger's deposit/bundle state from pebble and wires
// every subsequent mutation to write through to its five tables.
func LoadLedger(utxos UtxoSource, s *store.Store) (*Ledger, error) {
	l := NewLedger(utxos)
	l.depositBlockTbl = tableOf(s, depositBlockTable)
	l.pendingBundleTbl = tableOf(s, pendingBundleTable)
	l.latestFailedBundleTbl = tableOf(s, latestFailedBundleTable)
	l.withdrawalBundleTbl = tableOf(s, withdrawalBundleTable)
	l.eventBlockTbl = tableOf(s, withdrawalBundleEventTable)

	if err := s.Table(depositBlockTable).Iterate(func(_, value []byte) error {
		h, err := hash.FromBytes(value)
		if err != nil {
			return fmt.Errorf("peg: load deposit block: %w", err)
		}
		l.depositBlocks = append(l.depositBlocks, h)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.Table(withdrawalBundleTable).Iterate(func(_, value []byte) error {
		info, err := decodeBundleInfo(value)
		if err != nil {
			return fmt.Errorf("peg: load bundle: %w", err)
		}
		l.bundles[info.MainTxid] = info
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.Table(pendingBundleTable).Iterate(func(_, value []byte) error {
		info, err := decodeBundleInfo(value)
		if err != nil {
			return fmt.Errorf("peg: load pending bundle: %w", err)
		}
		l.pendingBundle = info
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.Table(latestFailedBundleTable).Iterate(func(_, value []byte) error {
		l.lastFailureHeight = binary.LittleEndian.Uint32(value)
		l.hasLastFailure = true
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.Table(withdrawalBundleEventTable).Iterate(func(_, value []byte) error {
		e, err := decodeEventBlockEntry(value)
		if err != nil {
			return fmt.Errorf("peg: load event block: %w", err)
		}
		l.eventBlocks = append(l.eventBlocks, e)
		return nil
	}); err != nil {
		return nil, err
	}
	return l, nil
}

// ApplyDeposit creates a new Deposit UTXO and records the mainchain block
// the deposit was observed in.
func (l *Ledger) ApplyDeposit(outpoint types.BitcoinOutPoint, depositBlock hash.Hash, address hash.Address, value types.Amount) error {
	l.depositBlocks = append(l.depositBlocks, depositBlock)
	if err := l.depositBlockTbl.set(depositBlockKey(len(l.depositBlocks)-1), depositBlock[:]); err != nil {
		return err
	}
	op := types.OutPoint{Kind: types.OutPointDeposit, BitcoinOutpoint: outpoint}
	return l.utxos.Put(op, types.FilledOutput{
		Address: address,
		Content: types.FilledOutputContent{Kind: types.ContentBitcoin, BitcoinValue: value},
	})
}

// eligible reports whether a new bundle may be assembled at height h.
func (l *Ledger) eligible(h uint32) bool {
	if l.pendingBundle != nil {
		return false
	}
	if !l.hasLastFailure {
		return true
	}
	return (h+1)-l.lastFailureHeight > WithdrawalBundleFailureGap
}

// AssembleBundle groups live Withdrawal UTXOs by destination, sorts them,
// takes up to MaxBundleOutputs, and spends the contributing UTXOs to STXOs
// under a withdrawal InPoint. candidates enumerates the candidate withdrawal
// UTXOs (the host process tracks these separately since UtxoSource exposes
// no iteration).
func (l *Ledger) AssembleBundle(h uint32, candidates map[types.OutPoint]types.FilledOutput, mainTxid hash.Hash) (*BundleInfo, error) {
	if !l.eligible(h) {
		return nil, nil
	}

	grouped := make(map[string]*WithdrawalEntry)
	for op, o := range candidates {
		if o.Content.Kind != types.ContentWithdrawal {
			continue
		}
		e, ok := grouped[o.Content.WithdrawalMainAddress]
		if !ok {
			e = &WithdrawalEntry{MainAddress: o.Content.WithdrawalMainAddress}
			grouped[o.Content.WithdrawalMainAddress] = e
		}
		e.Value += o.Content.WithdrawalValue
		if o.Content.WithdrawalMainFee > e.MainFee {
			e.MainFee = o.Content.WithdrawalMainFee
		}
		e.Outpoints = append(e.Outpoints, op)
	}
	if len(grouped) == 0 {
		return nil, nil
	}

	entries := make([]*WithdrawalEntry, 0, len(grouped))
	for _, e := range grouped {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].MainFee != entries[j].MainFee {
			return entries[i].MainFee > entries[j].MainFee
		}
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].MainAddress > entries[j].MainAddress
	})

	if len(entries) > MaxBundleOutputs {
		entries = entries[:MaxBundleOutputs]
	}

	weight := bundleBaseWeight + weightPerOutput*len(entries)
	if weight > maxStdTxWeight {
		return nil, ErrBundleTooHeavy
	}

	var allOutpoints []types.OutPoint
	for _, e := range entries {
		allOutpoints = append(allOutpoints, e.Outpoints...)
	}
	sort.Slice(allOutpoints, func(i, j int) bool { return outpointLess(allOutpoints[i], allOutpoints[j]) })

	for _, op := range allOutpoints {
		if err := l.utxos.Spend(op, types.InPoint{Kind: types.InPointWithdrawal, BitcoinTxid: mainTxid}); err != nil {
			return nil, fmt.Errorf("peg: spend %v: %w", op, err)
		}
	}

	info := &BundleInfo{Kind: BundleUnconfirmed, Outpoints: allOutpoints, MainTxid: mainTxid, HeightAssembled: h}
	l.pendingBundle = info
	l.bundles[mainTxid] = info
	if err := l.withdrawalBundleTbl.set(mainTxid[:], encodeBundleInfo(info)); err != nil {
		return nil, err
	}
	if err := l.pendingBundleTbl.set(singletonKey, encodeBundleInfo(info)); err != nil {
		return nil, err
	}
	return info, nil
}

func outpointLess(a, b types.OutPoint) bool {
	if a.Txid != b.Txid {
		return string(a.Txid[:]) < string(b.Txid[:])
	}
	return a.Vout < b.Vout
}

// BuildBundleCommitment hashes the sorted contributing outpoints plus a
// height sentinel, the value committed in the bundle transaction's
// OP_RETURN output.
func BuildBundleCommitment(outpoints []types.OutPoint, height uint32) hash.Hash {
	w := make([]byte, 0, len(outpoints)*36+4)
	for _, op := range outpoints {
		w = append(w, op.Txid[:]...)
		var v [4]byte
		v[0] = byte(op.Vout)
		v[1] = byte(op.Vout >> 8)
		v[2] = byte(op.Vout >> 16)
		v[3] = byte(op.Vout >> 24)
		w = append(w, v[:]...)
	}
	var hv [4]byte
	hv[0] = byte(height)
	hv[1] = byte(height >> 8)
	hv[2] = byte(height >> 16)
	hv[3] = byte(height >> 24)
	w = append(w, hv[:]...)
	return hash.Sum(w)
}

// ConfirmBundle marks the pending bundle confirmed; its STXOs stay spent.
func (l *Ledger) ConfirmBundle(mainTxid hash.Hash, h uint32) error {
	info, ok := l.bundles[mainTxid]
	if !ok {
		return fmt.Errorf("peg: no such bundle %s", mainTxid)
	}
	info.Kind = BundleConfirmed
	if err := l.withdrawalBundleTbl.set(mainTxid[:], encodeBundleInfo(info)); err != nil {
		return err
	}
	if l.pendingBundle != nil && l.pendingBundle.MainTxid == mainTxid {
		l.pendingBundle = nil
		if err := l.pendingBundleTbl.delete(singletonKey); err != nil {
			return err
		}
	}
	return l.recordEvent(mainTxid, h, false)
}

// FailBundle restores every contributing STXO back to a UTXO and records
// the failure height so a new bundle is suppressed for the failure gap.
func (l *Ledger) FailBundle(mainTxid hash.Hash, h uint32) error {
	info, ok := l.bundles[mainTxid]
	if !ok {
		return fmt.Errorf("peg: no such bundle %s", mainTxid)
	}
	for _, op := range info.Outpoints {
		if err := l.utxos.Unspend(op); err != nil {
			return fmt.Errorf("peg: restore %v: %w", op, err)
		}
	}
	info.Kind = BundleFailed
	if err := l.withdrawalBundleTbl.set(mainTxid[:], encodeBundleInfo(info)); err != nil {
		return err
	}
	if l.pendingBundle != nil && l.pendingBundle.MainTxid == mainTxid {
		l.pendingBundle = nil
		if err := l.pendingBundleTbl.delete(singletonKey); err != nil {
			return err
		}
	}
	l.lastFailureHeight = h + 1
	l.hasLastFailure = true
	var heightBytes [4]byte
	binary.LittleEndian.PutUint32(heightBytes[:], l.lastFailureHeight)
	if err := l.latestFailedBundleTbl.set(singletonKey, heightBytes[:]); err != nil {
		return err
	}
	return l.recordEvent(mainTxid, h, true)
}

func (l *Ledger) recordEvent(mainTxid hash.Hash, h uint32, failed bool) error {
	e := eventBlockEntry{Height: h, MainTxid: mainTxid, Failed: failed}
	l.eventBlocks = append(l.eventBlocks, e)
	return l.eventBlockTbl.set(eventBlockKey(len(l.eventBlocks)-1), encodeEventBlockEntry(e))
}
