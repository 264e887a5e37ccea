package state_test

import (
	"context"
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/state"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// reserveRegisterChain holds what connectReserveRegister returns after it
// builds and connects the two-block reserve-then-register sequence:
// everything later assertions need.
type reserveRegisterChain struct {
	header1, header2    *types.Header
	body1, body2        *types.Body
	reservationOutpoint types.OutPoint
	controlOutpoint     types.OutPoint
	id                  types.BitAssetId
}

func connectReserveRegister(t *testing.T, st *state.State) reserveRegisterChain {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	ownerAddr := hash.AddressFromVerifyingKey(pub)

	nameHash := hash.Sum([]byte("acme"))
	nonce := hash.Keyed(hash.Sum([]byte("owner-sk")), nameHash[:])
	commitment := types.ImpliedReservationCommitment(nameHash, nonce)

	reserveTx := &types.Transaction{
		Outputs: []types.Output{{Address: ownerAddr, Content: types.OutputContent{Kind: types.ContentBitAssetReservation, ReservationCommitment: commitment}}},
		Data:    &types.TxData{Kind: types.TxDataBitAssetReservation, ReservationCommitment: commitment},
	}
	body1 := &types.Body{Transactions: []*types.Transaction{reserveTx}}
	header1 := &types.Header{MerkleRoot: types.ComputeMerkleRoot(body1)}
	_, err = st.ValidateBlock(context.Background(), header1, body1)
	require.NoError(t, err)
	require.NoError(t, st.ConnectBlock(header1, body1, 1))

	reservationOutpoint := types.OutPoint{Kind: types.OutPointRegular, Txid: reserveTx.Txid(), Vout: 0}
	registerTx := &types.Transaction{
		Inputs:  []types.OutPoint{reservationOutpoint},
		Outputs: []types.Output{{Address: ownerAddr, Content: types.OutputContent{Kind: types.ContentBitAssetControl}}},
		Data: &types.TxData{
			Kind:                      types.TxDataBitAssetRegistration,
			RegistrationNameHash:      nameHash,
			RegistrationRevealedNonce: nonce,
		},
	}
	registerAuth := signedAuthorization(t, priv, registerTx)
	body2 := &types.Body{Transactions: []*types.Transaction{registerTx}, Authorizations: []types.Authorization{registerAuth}}
	header2 := &types.Header{MerkleRoot: types.ComputeMerkleRoot(body2), PrevSideHash: header1.Hash()}
	_, err = st.ValidateBlock(context.Background(), header2, body2)
	require.NoError(t, err)
	require.NoError(t, st.ConnectBlock(header2, body2, 2))

	return reserveRegisterChain{
		header1: header1, header2: header2,
		body1: body1, body2: body2,
		reservationOutpoint: reservationOutpoint,
		controlOutpoint:     types.OutPoint{Kind: types.OutPointRegular, Txid: registerTx.Txid(), Vout: 0},
		id:                  types.BitAssetId(nameHash),
	}
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	s, err := store.Open(dir)
	require.NoError(t, err)
	st, err := state.New(s, zap.NewNop())
	require.NoError(t, err)

	chain := connectReserveRegister(t, st)
	require.NoError(t, s.Close())

	s2, err := store.Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	st2, err := state.New(s2, zap.NewNop())
	require.NoError(t, err)

	tip, height, hasTip := st2.Tip()
	require.True(t, hasTip)
	require.Equal(t, chain.header2.Hash(), tip)
	require.Equal(t, uint32(2), height)

	require.True(t, st2.Registry.Exists(chain.id))
	_, reservationLive := st2.Utxos.Get(chain.reservationOutpoint)
	require.False(t, reservationLive)
	control, controlLive := st2.Utxos.Get(chain.controlOutpoint)
	require.True(t, controlLive)
	require.Equal(t, types.ContentBitAssetControl, control.Content.Kind)
	require.Equal(t, chain.id, control.Content.BitAssetId)
}

func TestConnectThenDisconnectRestoresPriorState(t *testing.T) {
	st := newTestState(t)
	chain := connectReserveRegister(t, st)

	require.NoError(t, st.DisconnectTip(chain.header2, chain.body2, 2))

	tip, height, hasTip := st.Tip()
	require.True(t, hasTip)
	require.Equal(t, chain.header1.Hash(), tip)
	require.Equal(t, uint32(1), height)

	require.False(t, st.Registry.Exists(chain.id))
	_, controlLive := st.Utxos.Get(chain.controlOutpoint)
	require.False(t, controlLive)
	reservation, reservationLive := st.Utxos.Get(chain.reservationOutpoint)
	require.True(t, reservationLive)
	require.Equal(t, types.ContentBitAssetReservation, reservation.Content.Kind)

	require.NoError(t, st.DisconnectTip(chain.header1, chain.body1, 1))
	_, _, hasTip = st.Tip()
	require.False(t, hasTip)
	_, reservationLive = st.Utxos.Get(chain.reservationOutpoint)
	require.False(t, reservationLive)
}

func TestConnectErrorLeavesStateUntouched(t *testing.T) {
	st := newTestState(t)
	chain := connectReserveRegister(t, st)

	// A block spending the control coin under a header with the wrong merkle
	// root is rejected, and the failed connect must leave both the keyspace
	// and the in-memory working copies exactly as they were.
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	ownerAddr := hash.AddressFromVerifyingKey(pub)
	_ = priv

	spendTx := &types.Transaction{
		Inputs:  []types.OutPoint{chain.controlOutpoint},
		Outputs: []types.Output{{Address: ownerAddr, Content: types.OutputContent{Kind: types.ContentBitAssetControl}}},
	}
	// Wrong merkle root: connect must fail before mutating anything.
	badHeader := &types.Header{MerkleRoot: hash.Sum([]byte("bogus")), PrevSideHash: chain.header2.Hash()}
	body := &types.Body{Transactions: []*types.Transaction{spendTx}}
	require.Error(t, st.ConnectBlock(badHeader, body, 3))

	tip, height, hasTip := st.Tip()
	require.True(t, hasTip)
	require.Equal(t, chain.header2.Hash(), tip)
	require.Equal(t, uint32(2), height)
	_, controlLive := st.Utxos.Get(chain.controlOutpoint)
	require.True(t, controlLive)
}
