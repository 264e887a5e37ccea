package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDirectSetIsVisibleAndNotifies(t *testing.T) {
	s := openStore(t)
	watchCh := s.Watch()

	require.NoError(t, s.Table("tip").Set([]byte("current"), []byte("block-hash")))

	select {
	case <-watchCh:
	default:
		t.Fatal("set did not notify watchers")
	}

	v, err := s.Table("tip").Get([]byte("current"))
	require.NoError(t, err)
	require.Equal(t, []byte("block-hash"), v)

	_, err = s.Table("tip").Get([]byte("missing"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBlockBatchCommitsAtomically(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.BeginBlock())
	require.NoError(t, s.Table("utxos").Set([]byte("a"), []byte("1")))
	require.NoError(t, s.Table("utxos").Set([]byte("b"), []byte("2")))

	// Reads inside the batch see its own writes.
	v, err := s.Table("utxos").Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	watchCh := s.Watch()
	require.NoError(t, s.CommitBlock())
	select {
	case <-watchCh:
	default:
		t.Fatal("commit did not notify watchers")
	}

	v, err = s.Table("utxos").Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

func TestBlockBatchAbortDiscards(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.BeginBlock())
	require.NoError(t, s.Table("utxos").Set([]byte("a"), []byte("1")))
	require.NoError(t, s.AbortBlock())

	_, err := s.Table("utxos").Get([]byte("a"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSecondBeginBlockRejected(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.BeginBlock())
	require.ErrorIs(t, s.BeginBlock(), store.ErrBlockTxnOpen)
	require.NoError(t, s.AbortBlock())
}

func TestTablesAreDisjoint(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Table("utxos").Set([]byte("k"), []byte("u")))
	require.NoError(t, s.Table("stxos").Set([]byte("k"), []byte("s")))

	var keys int
	require.NoError(t, s.Table("utxos").Iterate(func(key, value []byte) error {
		keys++
		require.Equal(t, []byte("k"), key)
		require.Equal(t, []byte("u"), value)
		return nil
	}))
	require.Equal(t, 1, keys)
}
