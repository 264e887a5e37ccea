package peg

import (
	"encoding/binary"
	"fmt"

	"github.com/LayerTwo-Labs/bitassetsd/internal/codec"
	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// Named sub-databases, per spec.md §6.
const (
	depositBlockTable          = "deposit_blocks"
	pendingBundleTable         = "pending_withdrawal_bundle"
	latestFailedBundleTable    = "latest_failed_withdrawal_bundle"
	withdrawalBundleTable      = "withdrawal_bundles"
	withdrawalBundleEventTable = "withdrawal_bundle_event_blocks"
)

// table is a small convenience wrapper so Ledger can write through to
// pebble without importing cockroachdb/pebble directly.
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

// singletonKey is the one key used in pending_withdrawal_bundle and
// latest_failed_withdrawal_bundle, each of which ever holds at most one
// record.
var singletonKey = []byte("singleton")

func depositBlockKey(index int) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(index))
	return b[:]
}

func eventBlockKey(index int) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(index))
	return b[:]
}

// eventBlockEntry is one withdrawal_bundle_event_blocks record: the height
// and bundle a confirmation or failure was observed at.
type eventBlockEntry struct {
	Height   uint32
	MainTxid hash.Hash
	Failed   bool
}

func encodeEventBlockEntry(e eventBlockEntry) []byte {
	w := codec.NewWriter()
	w.WriteUint32(e.Height)
	w.WriteFixed(e.MainTxid[:])
	w.WriteBool(e.Failed)
	return w.Bytes()
}

func decodeEventBlockEntry(b []byte) (eventBlockEntry, error) {
	r := codec.NewReader(b)
	var e eventBlockEntry
	e.Height = r.ReadUint32()
	txid, err := hash.FromBytes(r.ReadFixed(hash.Size))
	if err != nil {
		return e, err
	}
	e.MainTxid = txid
	e.Failed = r.ReadBool()
	return e, r.Done()
}

func encodeBundleInfo(b *BundleInfo) []byte {
	w := codec.NewWriter()
	w.WriteTag(uint8(b.Kind))
	w.WriteUint32(uint32(len(b.Outpoints)))
	for _, op := range b.Outpoints {
		types.EncodeOutPoint(w, op)
	}
	w.WriteFixed(b.MainTxid[:])
	w.WriteUint32(b.HeightAssembled)
	return w.Bytes()
}

func decodeBundleInfo(b []byte) (*BundleInfo, error) {
	r := codec.NewReader(b)
	info := &BundleInfo{}
	info.Kind = BundleInfoKind(r.ReadTag())
	n := r.ReadUint32()
	info.Outpoints = make([]types.OutPoint, n)
	for i := range info.Outpoints {
		info.Outpoints[i] = types.DecodeOutPoint(r)
	}
	txid, err := hash.FromBytes(r.ReadFixed(hash.Size))
	if err != nil {
		return nil, fmt.Errorf("peg: decode bundle info: %w", err)
	}
	info.MainTxid = txid
	info.HeightAssembled = r.ReadUint32()
	return info, r.Done()
}
