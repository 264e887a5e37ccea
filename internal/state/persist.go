package state

import (
	"encoding/binary"
	"fmt"

	"github.com/LayerTwo-Labs/bitassetsd/internal/codec"
	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/rollback"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// Named sub-databases, per spec.md §6.
const (
	tipTable                 = "tip"
	heightTable              = "height"
	stateVersionTable        = "state_version"
	utxoTable                = "utxos"
	stxoTable                = "stxos"
	ammPoolTable             = "amm_pools"
	bitAssetTable            = "bitassets"
	bitAssetToSeqTable       = "bitasset_to_seq"
	seqToBitAssetTable       = "seq_to_bitasset"
	bitAssetReservationTable = "bitasset_reservations"
	dutchAuctionTable        = "dutch_auctions"
)

func outPointKey(op types.OutPoint) []byte {
	w := codec.NewWriter()
	types.EncodeOutPoint(w, op)
	return w.Bytes()
}

// encodeSpentOutput/decodeSpentOutput persist an STXO: the filled output
// plus the InPoint that spent it.
func encodeSpentOutput(o SpentOutput) []byte {
	w := codec.NewWriter()
	types.EncodeFilledOutput(w, o.Output)
	types.EncodeInPoint(w, o.InPoint)
	return w.Bytes()
}

func decodeSpentOutput(b []byte) (SpentOutput, error) {
	r := codec.NewReader(b)
	out, err := types.DecodeFilledOutput(r)
	if err != nil {
		return SpentOutput{}, err
	}
	in := types.DecodeInPoint(r)
	if err := r.Done(); err != nil {
		return SpentOutput{}, fmt.Errorf("state: decode stxo: %w", err)
	}
	return SpentOutput{Output: out, InPoint: in}, nil
}

func decodeFilledOutput(b []byte) (types.FilledOutput, error) {
	r := codec.NewReader(b)
	o, err := types.DecodeFilledOutput(r)
	if err != nil {
		return o, err
	}
	return o, r.Done()
}

func seqKey(seq SeqId) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(seq))
	return b[:]
}

// encodeRollBackBytes/decodeRollBackBytes persist a *rollback.RollBack[[]byte].
func encodeRollBackBytes(w *codec.Writer, r *rollback.RollBack[[]byte]) {
	entries := r.Entries()
	w.WriteUint32(uint32(len(entries)))
	for _, e := range entries {
		w.WriteUint32(e.Height)
		w.WriteFixed(e.Txid[:])
		set := e.Value != nil
		w.WriteBool(set)
		if set {
			w.WriteBytes(e.Value)
		}
	}
}

func decodeRollBackBytes(r *codec.Reader) *rollback.RollBack[[]byte] {
	n := r.ReadUint32()
	entries := make([]rollback.TxidStamped[[]byte], n)
	for i := range entries {
		height := r.ReadUint32()
		txid, _ := hash.FromBytes(r.ReadFixed(hash.Size))
		var value []byte
		if r.ReadBool() {
			value = r.ReadBytes()
		}
		entries[i] = rollback.TxidStamped[[]byte]{Height: height, Txid: txid, Value: value}
	}
	return rollback.FromEntries(entries)
}

func encodeRollBackUint64(w *codec.Writer, r *rollback.RollBack[uint64]) {
	entries := r.Entries()
	w.WriteUint32(uint32(len(entries)))
	for _, e := range entries {
		w.WriteUint32(e.Height)
		w.WriteFixed(e.Txid[:])
		w.WriteUint64(e.Value)
	}
}

func decodeRollBackUint64(r *codec.Reader) *rollback.RollBack[uint64] {
	n := r.ReadUint32()
	entries := make([]rollback.TxidStamped[uint64], n)
	for i := range entries {
		height := r.ReadUint32()
		txid, _ := hash.FromBytes(r.ReadFixed(hash.Size))
		entries[i] = rollback.TxidStamped[uint64]{Height: height, Txid: txid, Value: r.ReadUint64()}
	}
	return rollback.FromEntries(entries)
}

func encodeRollBackUint32(w *codec.Writer, r *rollback.RollBack[uint32]) {
	entries := r.Entries()
	w.WriteUint32(uint32(len(entries)))
	for _, e := range entries {
		w.WriteUint32(e.Height)
		w.WriteFixed(e.Txid[:])
		w.WriteUint32(e.Value)
	}
}

func decodeRollBackUint32(r *codec.Reader) *rollback.RollBack[uint32] {
	n := r.ReadUint32()
	entries := make([]rollback.TxidStamped[uint32], n)
	for i := range entries {
		height := r.ReadUint32()
		txid, _ := hash.FromBytes(r.ReadFixed(hash.Size))
		entries[i] = rollback.TxidStamped[uint32]{Height: height, Txid: txid, Value: r.ReadUint32()}
	}
	return rollback.FromEntries(entries)
}

// encodeBitAssetData/decodeBitAssetData persist one registry record: the
// sequence number plus its six rollback-stamped fields.
func encodeBitAssetData(d *BitAssetData) []byte {
	w := codec.NewWriter()
	w.WriteUint64(uint64(d.Id))
	encodeRollBackBytes(w, d.Commitment)
	encodeRollBackBytes(w, d.SocketAddrV4)
	encodeRollBackBytes(w, d.SocketAddrV6)
	encodeRollBackBytes(w, d.EncryptionPubkey)
	encodeRollBackBytes(w, d.SigningPubkey)
	encodeRollBackUint64(w, d.TotalSupply)
	return w.Bytes()
}

func decodeBitAssetData(b []byte) (*BitAssetData, error) {
	r := codec.NewReader(b)
	d := &BitAssetData{Id: SeqId(r.ReadUint64())}
	d.Commitment = decodeRollBackBytes(r)
	d.SocketAddrV4 = decodeRollBackBytes(r)
	d.SocketAddrV6 = decodeRollBackBytes(r)
	d.EncryptionPubkey = decodeRollBackBytes(r)
	d.SigningPubkey = decodeRollBackBytes(r)
	d.TotalSupply = decodeRollBackUint64(r)
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("state: decode bitasset data: %w", err)
	}
	return d, nil
}

func poolKeyBytes(k PoolKey) []byte {
	w := codec.NewWriter()
	types.EncodeAssetId(w, k.Asset0)
	types.EncodeAssetId(w, k.Asset1)
	return w.Bytes()
}

func encodePoolState(p *PoolState) []byte {
	w := codec.NewWriter()
	w.WriteUint64(p.Reserve0)
	w.WriteUint64(p.Reserve1)
	w.WriteUint64(p.OutstandingLpTokens)
	w.WriteFixed(p.CreationTxid[:])
	return w.Bytes()
}

func decodePoolState(b []byte) (*PoolState, error) {
	r := codec.NewReader(b)
	p := &PoolState{
		Reserve0:            r.ReadUint64(),
		Reserve1:            r.ReadUint64(),
		OutstandingLpTokens: r.ReadUint64(),
	}
	txid, err := hash.FromBytes(r.ReadFixed(hash.Size))
	if err != nil {
		return nil, err
	}
	p.CreationTxid = txid
	return p, r.Done()
}

func encodeDutchAuctionState(s *DutchAuctionState) []byte {
	w := codec.NewWriter()
	w.WriteUint32(s.StartBlock)
	w.WriteUint32(s.Duration)
	types.EncodeAssetId(w, s.BaseAsset)
	w.WriteUint64(s.InitialBaseAmount)
	types.EncodeAssetId(w, s.QuoteAsset)
	w.WriteUint64(s.InitialPrice)
	w.WriteUint64(s.InitialEndPrice)
	encodeRollBackUint32(w, s.MostRecentBidBlock)
	encodeRollBackUint64(w, s.BaseAmountRemaining)
	encodeRollBackUint64(w, s.QuoteAmount)
	encodeRollBackUint64(w, s.PriceAfterMostRecentBid)
	encodeRollBackUint64(w, s.EndPriceAfterMostRecentBid)
	return w.Bytes()
}

func decodeDutchAuctionState(b []byte) (*DutchAuctionState, error) {
	r := codec.NewReader(b)
	s := &DutchAuctionState{
		StartBlock: r.ReadUint32(),
		Duration:   r.ReadUint32(),
	}
	s.BaseAsset = types.DecodeAssetId(r)
	s.InitialBaseAmount = r.ReadUint64()
	s.QuoteAsset = types.DecodeAssetId(r)
	s.InitialPrice = r.ReadUint64()
	s.InitialEndPrice = r.ReadUint64()
	s.MostRecentBidBlock = decodeRollBackUint32(r)
	s.BaseAmountRemaining = decodeRollBackUint64(r)
	s.QuoteAmount = decodeRollBackUint64(r)
	s.PriceAfterMostRecentBid = decodeRollBackUint64(r)
	s.EndPriceAfterMostRecentBid = decodeRollBackUint64(r)
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("state: decode dutch auction state: %w", err)
	}
	return s, nil
}

// table is a small convenience wrapper so the domain stores below can
// write through to pebble without importing cockroachdb/pebble directly.
type table struct {
	t  store.Table
	ok bool
}

func tableOf(s *store.Store, name string) table {
	if s == nil {
		return table{}
	}
	return table{t: s.Table(name), ok: true}
}

func (t table) set(key, value []byte) error {
	if !t.ok {
		return nil
	}
	return t.t.Set(key, value)
}

func (t table) delete(key []byte) error {
	if !t.ok {
		return nil
	}
	return t.t.Delete(key)
}
