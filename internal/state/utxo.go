package state

import (
	"fmt"

	"github.com/LayerTwo-Labs/bitassetsd/internal/codec"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// SpentOutput is an STXO: a once-live output retained with a back-reference
// to whatever consumed it.
type SpentOutput struct {
	Output  types.FilledOutput
	InPoint types.InPoint
}

// UtxoSet holds the live and spent output maps. Both are logically
// "OutPoint → value" ordered maps; spec.md models them as two ordered maps
// rather than one map with a tombstone bit so STXOs remain queryable by
// their own right (withdrawal bundle failure restores from the STXO map).
type UtxoSet struct {
	utxos map[types.OutPoint]types.FilledOutput
	stxos map[types.OutPoint]SpentOutput

	utxoTbl table
	stxoTbl table
}

func NewUtxoSet() *UtxoSet {
	return &UtxoSet{
		utxos: make(map[types.OutPoint]types.FilledOutput),
		stxos: make(map[types.OutPoint]SpentOutput),
	}
}

// LoadUtxoSet rebuilds the live and spent output maps from pebble and wires
// every subsequent mutation to write through to the utxos/stxos tables.
func LoadUtxoSet(s *store.Store) (*UtxoSet, error) {
	u := NewUtxoSet()
	u.utxoTbl = tableOf(s, utxoTable)
	u.stxoTbl = tableOf(s, stxoTable)

	if err := s.Table(utxoTable).Iterate(func(key, value []byte) error {
		op := types.DecodeOutPoint(codec.NewReader(key))
		fo, err := decodeFilledOutput(value)
		if err != nil {
			return fmt.Errorf("state: load utxo: %w", err)
		}
		u.utxos[op] = fo
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.Table(stxoTable).Iterate(func(key, value []byte) error {
		op := types.DecodeOutPoint(codec.NewReader(key))
		so, err := decodeSpentOutput(value)
		if err != nil {
			return fmt.Errorf("state: load stxo: %w", err)
		}
		u.stxos[op] = so
		return nil
	}); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *UtxoSet) Get(op types.OutPoint) (types.FilledOutput, bool) {
	o, ok := u.utxos[op]
	return o, ok
}

func (u *UtxoSet) GetStxo(op types.OutPoint) (SpentOutput, bool) {
	s, ok := u.stxos[op]
	return s, ok
}

// Put creates a new UTXO. Callers are responsible for not overwriting a
// live outpoint; the entity lifecycle table guarantees outpoints are unique
// by construction (they embed a txid or merkle root).
func (u *UtxoSet) Put(op types.OutPoint, o types.FilledOutput) error {
	u.utxos[op] = o
	w := codec.NewWriter()
	types.EncodeFilledOutput(w, o)
	return u.utxoTbl.set(outPointKey(op), w.Bytes())
}

// Spend moves a live UTXO to the STXO set under the given InPoint, failing
// with ErrNoUtxo if it does not exist.
func (u *UtxoSet) Spend(op types.OutPoint, in types.InPoint) error {
	o, ok := u.utxos[op]
	if !ok {
		return wrap(op.Txid.String(), ErrNoUtxo)
	}
	delete(u.utxos, op)
	so := SpentOutput{Output: o, InPoint: in}
	u.stxos[op] = so
	if err := u.utxoTbl.delete(outPointKey(op)); err != nil {
		return err
	}
	return u.stxoTbl.set(outPointKey(op), encodeSpentOutput(so))
}

// Unspend moves a spent output back to the UTXO set — the inverse of
// Spend, used by disconnect and by withdrawal bundle failure.
func (u *UtxoSet) Unspend(op types.OutPoint) error {
	s, ok := u.stxos[op]
	if !ok {
		return wrap(op.Txid.String(), ErrNoStxo)
	}
	delete(u.stxos, op)
	u.utxos[op] = s.Output
	if err := u.stxoTbl.delete(outPointKey(op)); err != nil {
		return err
	}
	w := codec.NewWriter()
	types.EncodeFilledOutput(w, s.Output)
	return u.utxoTbl.set(outPointKey(op), w.Bytes())
}

// Delete removes a UTXO outright without creating an STXO, the operation
// disconnect_tip uses to undo an output's creation.
func (u *UtxoSet) Delete(op types.OutPoint) error {
	delete(u.utxos, op)
	return u.utxoTbl.delete(outPointKey(op))
}
