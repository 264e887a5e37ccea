// Package mempool holds unconfirmed authorized transactions: an ordered
// transaction map, a spent-outpoint double-spend index, and an
// address→txids index for unconfirmed UTXO lookups, with cascading
// eviction of dependents. All three maps write through to their own
// sub-databases so a restarted node resumes with the same mempool.
package mempool

import (
	"errors"
	"fmt"

	"github.com/LayerTwo-Labs/bitassetsd/internal/codec"
	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
	"github.com/LayerTwo-Labs/bitassetsd/internal/watch"
)

// ErrUtxoDoubleSpent is returned by Put when a transaction's input is
// already spent by another mempool transaction.
var ErrUtxoDoubleSpent = errors.New("mempool: utxo double spent")

// ErrFull is returned by Put when the mempool has reached its configured
// maximum size.
var ErrFull = errors.New("mempool: at maximum size")

// Named sub-databases.
const (
	txTable        = "mempool_transactions"
	spentUtxoTable = "mempool_spent_utxos"
	addressTable   = "mempool_address_to_txs"
)

// Mempool is single-writer like the block connector: Put/Delete are
// expected to run under the caller's own serialization, typically one
// goroutine per node.
type Mempool struct {
	order        []hash.Hash
	transactions map[hash.Hash]*types.AuthorizedTransaction
	spentUtxos   map[types.OutPoint]types.InPoint
	addressToTxs map[hash.Address]map[hash.Hash]struct{}
	watch        *watch.Signal
	maxSize      int

	txTbl        table
	spentUtxoTbl table
	addressTbl   table
}

func New() *Mempool {
	return &Mempool{
		transactions: make(map[hash.Hash]*types.AuthorizedTransaction),
		spentUtxos:   make(map[types.OutPoint]types.InPoint),
		addressToTxs: make(map[hash.Address]map[hash.Hash]struct{}),
		watch:        watch.New(),
	}
}

// Load rebuilds a Mempool from its three sub-databases and wires every
// subsequent mutation to write through to them. Admission order is not
// persisted; reloaded transactions are re-admitted in txid order.
func Load(s *store.Store) (*Mempool, error) {
	m := New()
	m.txTbl = tableOf(s, txTable)
	m.spentUtxoTbl = tableOf(s, spentUtxoTable)
	m.addressTbl = tableOf(s, addressTable)

	if err := s.Table(txTable).Iterate(func(key, value []byte) error {
		txid, err := hash.FromBytes(key)
		if err != nil {
			return fmt.Errorf("mempool: load tx: %w", err)
		}
		tx, err := types.DecodeAuthorizedTransaction(value)
		if err != nil {
			return fmt.Errorf("mempool: load tx %s: %w", txid, err)
		}
		m.transactions[txid] = tx
		m.order = append(m.order, txid)
		for vin, op := range tx.Transaction.Inputs {
			m.spentUtxos[op] = types.InPoint{Kind: types.InPointRegular, Txid: txid, Vin: uint32(vin)}
		}
		for _, out := range tx.Transaction.Outputs {
			m.indexAddress(out.Address, txid)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// SetMaxSize caps how many transactions Put admits; zero means unbounded.
func (m *Mempool) SetMaxSize(n int) { m.maxSize = n }

// Watch returns the channel closed the next time Put or Delete mutates the
// mempool.
func (m *Mempool) Watch() <-chan struct{} { return m.watch.C() }

// Put admits a transaction, all-or-nothing: if any input is already spent
// by another mempool transaction, the whole insert fails.
func (m *Mempool) Put(tx *types.AuthorizedTransaction) error {
	if m.maxSize > 0 && len(m.transactions) >= m.maxSize {
		return ErrFull
	}
	txid := tx.Transaction.Txid()
	for _, op := range tx.Transaction.Inputs {
		if _, ok := m.spentUtxos[op]; ok {
			return ErrUtxoDoubleSpent
		}
	}
	for vin, op := range tx.Transaction.Inputs {
		in := types.InPoint{Kind: types.InPointRegular, Txid: txid, Vin: uint32(vin)}
		m.spentUtxos[op] = in
		if err := m.spentUtxoTbl.set(outPointKey(op), inPointBytes(in)); err != nil {
			return err
		}
	}
	m.transactions[txid] = tx
	m.order = append(m.order, txid)
	if err := m.txTbl.set(txid[:], types.EncodeAuthorizedTransaction(tx)); err != nil {
		return err
	}

	for _, out := range tx.Transaction.Outputs {
		m.indexAddress(out.Address, txid)
		if err := m.addressTbl.set(addressTxKey(out.Address, txid), nil); err != nil {
			return err
		}
	}

	m.watch.Notify()
	return nil
}

func (m *Mempool) indexAddress(addr hash.Address, txid hash.Hash) {
	set, ok := m.addressToTxs[addr]
	if !ok {
		set = make(map[hash.Hash]struct{})
		m.addressToTxs[addr] = set
	}
	set[txid] = struct{}{}
}

func (m *Mempool) deindexAddress(addr hash.Address, txid hash.Hash) {
	set, ok := m.addressToTxs[addr]
	if !ok {
		return
	}
	delete(set, txid)
	if len(set) == 0 {
		delete(m.addressToTxs, addr)
	}
}

// Delete removes txid and, transitively, every mempool transaction that
// spends one of its outputs.
func (m *Mempool) Delete(txid hash.Hash) error {
	queue := []hash.Hash{txid}
	removed := false
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		tx, ok := m.transactions[id]
		if !ok {
			continue
		}
		removed = true

		for _, op := range tx.Transaction.Inputs {
			delete(m.spentUtxos, op)
			if err := m.spentUtxoTbl.delete(outPointKey(op)); err != nil {
				return err
			}
		}
		for _, out := range tx.Transaction.Outputs {
			m.deindexAddress(out.Address, id)
			if err := m.addressTbl.delete(addressTxKey(out.Address, id)); err != nil {
				return err
			}
		}
		delete(m.transactions, id)
		m.removeFromOrder(id)
		if err := m.txTbl.delete(id[:]); err != nil {
			return err
		}

		for vout := range tx.Transaction.Outputs {
			childOp := types.OutPoint{Kind: types.OutPointRegular, Txid: id, Vout: uint32(vout)}
			if inpoint, ok := m.spentUtxos[childOp]; ok {
				queue = append(queue, inpoint.Txid)
			}
		}
	}
	if removed {
		m.watch.Notify()
	}
	return nil
}

func (m *Mempool) removeFromOrder(txid hash.Hash) {
	for i, id := range m.order {
		if id == txid {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// Take returns up to n transactions in admission order.
func (m *Mempool) Take(n int) []*types.AuthorizedTransaction {
	if n > len(m.order) {
		n = len(m.order)
	}
	out := make([]*types.AuthorizedTransaction, 0, n)
	for _, id := range m.order[:n] {
		out = append(out, m.transactions[id])
	}
	return out
}

// TakeAll returns every mempool transaction in admission order.
func (m *Mempool) TakeAll() []*types.AuthorizedTransaction { return m.Take(len(m.order)) }

// Get returns a single transaction by id.
func (m *Mempool) Get(txid hash.Hash) (*types.AuthorizedTransaction, bool) {
	tx, ok := m.transactions[txid]
	return tx, ok
}

// Len reports how many transactions are currently admitted.
func (m *Mempool) Len() int { return len(m.order) }

// UnconfirmedTxids returns the mempool transactions that pay addr, the
// lookup address_to_txs exists to serve.
func (m *Mempool) UnconfirmedTxids(addr hash.Address) []hash.Hash {
	set, ok := m.addressToTxs[addr]
	if !ok {
		return nil
	}
	out := make([]hash.Hash, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// table is a small convenience wrapper matching the one package state and
// package peg use for write-through; a zero table (no store) no-ops.
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

func outPointKey(op types.OutPoint) []byte {
	w := codec.NewWriter()
	types.EncodeOutPoint(w, op)
	return w.Bytes()
}

func inPointBytes(in types.InPoint) []byte {
	w := codec.NewWriter()
	types.EncodeInPoint(w, in)
	return w.Bytes()
}

func addressTxKey(addr hash.Address, txid hash.Hash) []byte {
	out := make([]byte, 0, hash.AddressSize+hash.Size)
	out = append(out, addr[:]...)
	return append(out, txid[:]...)
}
