package state

import (
	"fmt"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/rollback"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// SeqId is the registry's sequence-number index: the order BitAssets were
// registered in, used only to give the bitasset_to_seq/seq_to_bitasset
// tables a deterministic inverse.
type SeqId uint64

// optionalBytes is a rollback-stamped optional byte field: nil means unset.
type optionalBytes = rollback.RollBack[[]byte]

// BitAssetData is the mutable record a registration creates: six
// independently rollback-stamped fields plus its registry sequence number.
type BitAssetData struct {
	Id SeqId

	Commitment       *optionalBytes
	SocketAddrV4     *optionalBytes
	SocketAddrV6     *optionalBytes
	EncryptionPubkey *optionalBytes
	SigningPubkey    *optionalBytes
	TotalSupply      *rollback.RollBack[uint64]
}

// Registry is the BitAsset subsystem: name-hash → data, commitment →
// reservation, and the sequence-number index, kept as mutual inverses.
type Registry struct {
	reservations map[hash.Hash]hash.Hash // commitment -> reservation txid
	bitassets    map[types.BitAssetId]*BitAssetData
	seqToId      map[SeqId]types.BitAssetId
	nextSeq      SeqId

	bitAssetTbl      table
	bitAssetToSeqTbl table
	seqToBitAssetTbl table
	reservationTbl   table
}

func NewRegistry() *Registry {
	return &Registry{
		reservations: make(map[hash.Hash]hash.Hash),
		bitassets:    make(map[types.BitAssetId]*BitAssetData),
		seqToId:      make(map[SeqId]types.BitAssetId),
	}
}

// LoadRegistry rebuilds the registry's maps from pebble and wires every
// subsequent mutation to write through to its four tables.
func LoadRegistry(s *store.Store) (*Registry, error) {
	r := NewRegistry()
	r.bitAssetTbl = tableOf(s, bitAssetTable)
	r.bitAssetToSeqTbl = tableOf(s, bitAssetToSeqTable)
	r.seqToBitAssetTbl = tableOf(s, seqToBitAssetTable)
	r.reservationTbl = tableOf(s, bitAssetReservationTable)

	if err := s.Table(bitAssetTable).Iterate(func(key, value []byte) error {
		id, err := hash.FromBytes(key)
		if err != nil {
			return fmt.Errorf("state: load bitasset: %w", err)
		}
		d, err := decodeBitAssetData(value)
		if err != nil {
			return fmt.Errorf("state: load bitasset: %w", err)
		}
		bid := types.BitAssetId(id)
		r.bitassets[bid] = d
		r.seqToId[d.Id] = bid
		if d.Id >= r.nextSeq {
			r.nextSeq = d.Id + 1
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.Table(bitAssetReservationTable).Iterate(func(key, value []byte) error {
		commitment, err := hash.FromBytes(key)
		if err != nil {
			return fmt.Errorf("state: load reservation: %w", err)
		}
		txid, err := hash.FromBytes(value)
		if err != nil {
			return fmt.Errorf("state: load reservation: %w", err)
		}
		r.reservations[commitment] = txid
		return nil
	}); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) persist(id types.BitAssetId, d *BitAssetData) error {
	idBytes := append([]byte{}, id[:]...)
	if err := r.bitAssetTbl.set(idBytes, encodeBitAssetData(d)); err != nil {
		return err
	}
	if err := r.bitAssetToSeqTbl.set(idBytes, seqKey(d.Id)); err != nil {
		return err
	}
	return r.seqToBitAssetTbl.set(seqKey(d.Id), idBytes)
}

// PutReservation records a new reservation commitment.
func (r *Registry) PutReservation(commitment, txid hash.Hash) error {
	r.reservations[commitment] = txid
	return r.reservationTbl.set(commitment[:], txid[:])
}

// DeleteReservation removes a reservation, the inverse of PutReservation.
func (r *Registry) DeleteReservation(commitment hash.Hash) error {
	delete(r.reservations, commitment)
	return r.reservationTbl.delete(commitment[:])
}

// FindReservation returns the txid that created the reservation with the
// given commitment, if live.
func (r *Registry) FindReservation(commitment hash.Hash) (hash.Hash, bool) {
	txid, ok := r.reservations[commitment]
	return txid, ok
}

func (r *Registry) Exists(id types.BitAssetId) bool {
	_, ok := r.bitassets[id]
	return ok
}

func (r *Registry) Get(id types.BitAssetId) (*BitAssetData, bool) {
	d, ok := r.bitassets[id]
	return d, ok
}

// Register creates a new BitAssetData record at the given height/txid and
// assigns it the next sequence number.
func (r *Registry) Register(id types.BitAssetId, init types.BitAssetDataInit, initialSupply uint64, txid hash.Hash, height uint32) (*BitAssetData, error) {
	seq := r.nextSeq
	r.nextSeq++

	d := &BitAssetData{
		Id:               seq,
		Commitment:       rollback.New(init.Commitment, txid, height),
		SocketAddrV4:     rollback.New(init.SocketAddrV4, txid, height),
		SocketAddrV6:     rollback.New(init.SocketAddrV6, txid, height),
		EncryptionPubkey: rollback.New(init.EncryptionPubkey, txid, height),
		SigningPubkey:    rollback.New(init.SigningPubkey, txid, height),
		TotalSupply:      rollback.New(initialSupply, txid, height),
	}
	r.bitassets[id] = d
	r.seqToId[seq] = id
	if err := r.persist(id, d); err != nil {
		return nil, err
	}
	return d, nil
}

// RevertRegister deletes a registration record entirely — the inverse of
// Register, used only when the registering tx itself is being disconnected.
func (r *Registry) RevertRegister(id types.BitAssetId) error {
	d, ok := r.bitassets[id]
	if !ok {
		return nil
	}
	delete(r.seqToId, d.Id)
	delete(r.bitassets, id)
	idBytes := id[:]
	if err := r.bitAssetTbl.delete(idBytes); err != nil {
		return err
	}
	if err := r.bitAssetToSeqTbl.delete(idBytes); err != nil {
		return err
	}
	return r.seqToBitAssetTbl.delete(seqKey(d.Id))
}

// ApplyMint pushes a new cumulative total supply, checked against overflow.
func (r *Registry) ApplyMint(id types.BitAssetId, amount uint64, txid hash.Hash, height uint32) error {
	d, ok := r.bitassets[id]
	if !ok {
		return wrap(id.String(), ErrBitAssetMissing)
	}
	latest, _ := d.TotalSupply.Latest()
	newSupply := latest.Value + amount
	if newSupply < latest.Value {
		return wrap(id.String(), ErrTotalSupplyOverflow)
	}
	if err := d.TotalSupply.Push(newSupply, txid, height); err != nil {
		return err
	}
	return r.persist(id, d)
}

// RevertMint pops the total-supply entry pushed by txid.
func (r *Registry) RevertMint(id types.BitAssetId, txid hash.Hash) error {
	d, ok := r.bitassets[id]
	if !ok {
		return wrap(id.String(), ErrBitAssetMissing)
	}
	if _, err := rollback.PopAssertTxid(d.TotalSupply, txid); err != nil {
		return err
	}
	return r.persist(id, d)
}

// ApplyUpdates applies each per-field update operation, pushing a new
// rollback entry only for Delete/Set; Retain leaves the stack untouched.
func (r *Registry) ApplyUpdates(id types.BitAssetId, updates types.BitAssetDataUpdates, txid hash.Hash, height uint32) error {
	d, ok := r.bitassets[id]
	if !ok {
		return wrap(id.String(), ErrBitAssetMissing)
	}
	fields := []struct {
		op    types.BytesUpdate
		stack *optionalBytes
	}{
		{updates.Commitment, d.Commitment},
		{updates.SocketAddrV4, d.SocketAddrV4},
		{updates.SocketAddrV6, d.SocketAddrV6},
		{updates.EncryptionPubkey, d.EncryptionPubkey},
		{updates.SigningPubkey, d.SigningPubkey},
	}
	for _, f := range fields {
		if err := applyBytesFieldUpdate(f.stack, f.op, txid, height); err != nil {
			return err
		}
	}
	return r.persist(id, d)
}

func applyBytesFieldUpdate(stack *optionalBytes, op types.BytesUpdate, txid hash.Hash, height uint32) error {
	switch op.Kind {
	case types.UpdateRetain:
		return nil
	case types.UpdateDelete:
		return stack.Push(nil, txid, height)
	case types.UpdateSet:
		return stack.Push(op.Value, txid, height)
	}
	return nil
}

// RevertUpdates pops each field's rollback entry iff the corresponding
// update op was Delete or Set, asserting it was pushed by txid.
func (r *Registry) RevertUpdates(id types.BitAssetId, updates types.BitAssetDataUpdates, txid hash.Hash) error {
	d, ok := r.bitassets[id]
	if !ok {
		return wrap(id.String(), ErrBitAssetMissing)
	}
	fields := []struct {
		op    types.BytesUpdate
		stack *optionalBytes
	}{
		{updates.Commitment, d.Commitment},
		{updates.SocketAddrV4, d.SocketAddrV4},
		{updates.SocketAddrV6, d.SocketAddrV6},
		{updates.EncryptionPubkey, d.EncryptionPubkey},
		{updates.SigningPubkey, d.SigningPubkey},
	}
	for _, f := range fields {
		if f.op.Kind == types.UpdateRetain {
			continue
		}
		if _, err := rollback.PopAssertTxid(f.stack, txid); err != nil {
			return err
		}
	}
	return r.persist(id, d)
}
