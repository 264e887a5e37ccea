// Package rollback implements the generic per-field history stack used by
// the BitAsset registry and Dutch auction state: push on connect, pop on
// disconnect, with point-in-time lookup by block height.
package rollback

import (
	"errors"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
)

var (
	ErrHeightNotMonotone = errors.New("rollback: height must be >= latest entry height")
	ErrEmpty             = errors.New("rollback: stack is empty")
)

// HeightStamped pairs a value with the block height it was written at.
type HeightStamped[T any] struct {
	Height uint32
	Value  T
}

// TxidStamped additionally carries the originating transaction id, letting
// disconnect assert that the entry it pops was pushed by the tx it is
// reverting.
type TxidStamped[T any] struct {
	Height uint32
	Txid   hash.Hash
	Value  T
}

// RollBack is a non-empty ordered history stack; the most recent mutation is
// last. It is the Go analogue of the original's NonEmpty-backed stack.
type RollBack[T any] struct {
	entries []TxidStamped[T]
}

// New creates a stack with a single initial entry.
func New[T any](value T, txid hash.Hash, height uint32) *RollBack[T] {
	return &RollBack[T]{entries: []TxidStamped[T]{{Height: height, Txid: txid, Value: value}}}
}

// FromEntries rebuilds a stack from a previously persisted, oldest-first
// entry list. Used when reloading rollback-stamped state from storage.
func FromEntries[T any](entries []TxidStamped[T]) *RollBack[T] {
	return &RollBack[T]{entries: entries}
}

// Entries returns the stack's entries, oldest first, for persistence.
func (r *RollBack[T]) Entries() []TxidStamped[T] { return r.entries }

// Push appends a new entry. Height must be >= the latest entry's height.
func (r *RollBack[T]) Push(value T, txid hash.Hash, height uint32) error {
	if len(r.entries) > 0 && height < r.entries[len(r.entries)-1].Height {
		return ErrHeightNotMonotone
	}
	r.entries = append(r.entries, TxidStamped[T]{Height: height, Txid: txid, Value: value})
	return nil
}

// Pop removes and returns the most recent entry. Callers reverting a push
// that created the stack's only entry should prefer deleting the owning
// record instead of leaving an empty stack.
func (r *RollBack[T]) Pop() (TxidStamped[T], error) {
	if len(r.entries) == 0 {
		var zero TxidStamped[T]
		return zero, ErrEmpty
	}
	last := r.entries[len(r.entries)-1]
	r.entries = r.entries[:len(r.entries)-1]
	return last, nil
}

// Latest returns the most recent entry.
func (r *RollBack[T]) Latest() (TxidStamped[T], bool) {
	if len(r.entries) == 0 {
		var z TxidStamped[T]
		return z, false
	}
	return r.entries[len(r.entries)-1], true
}

// Earliest returns the oldest entry.
func (r *RollBack[T]) Earliest() (TxidStamped[T], bool) {
	if len(r.entries) == 0 {
		var z TxidStamped[T]
		return z, false
	}
	return r.entries[0], true
}

// Len reports how many entries remain.
func (r *RollBack[T]) Len() int { return len(r.entries) }

// AtBlockHeight returns the most recent entry with Height <= h.
func (r *RollBack[T]) AtBlockHeight(h uint32) (TxidStamped[T], bool) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Height <= h {
			return r.entries[i], true
		}
	}
	var z TxidStamped[T]
	return z, false
}

// ErrWrongTxid is returned by PopAssertTxid when the popped entry was not
// pushed by the transaction currently being reverted.
var ErrWrongTxid = errors.New("rollback: popped entry does not belong to the reverting transaction")

// PopAssertTxid pops the latest entry and verifies it was pushed by txid,
// the exact-reverse check disconnect_tip relies on.
func PopAssertTxid[T any](r *RollBack[T], txid hash.Hash) (T, error) {
	e, err := r.Pop()
	if err != nil {
		var z T
		return z, err
	}
	if e.Txid != txid {
		var z T
		return z, ErrWrongTxid
	}
	return e.Value, nil
}
