package state_test

import (
	"context"
	"crypto/ed25519"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LayerTwo-Labs/bitassetsd/internal/auth"
	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/state"
	"github.com/LayerTwo-Labs/bitassetsd/internal/store"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

func newTestState(t *testing.T) *state.State {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	st, err := state.New(s, zap.NewNop())
	require.NoError(t, err)
	return st
}

func signedAuthorization(t *testing.T, priv ed25519.PrivateKey, tx *types.Transaction) types.Authorization {
	t.Helper()
	sig := ed25519.Sign(priv, types.EncodeTransaction(tx))
	var a types.Authorization
	copy(a.VerifyingKey[:], priv.Public().(ed25519.PublicKey))
	copy(a.Signature[:], sig)
	return a
}

func TestReserveThenRegisterEndToEnd(t *testing.T) {
	st := newTestState(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	ownerAddr := hash.AddressFromVerifyingKey(pub)

	nameHash := hash.Sum([]byte("acme"))
	ownerSk := hash.Sum([]byte("owner-signing-key-bytes"))
	nonce := hash.Keyed(ownerSk, nameHash[:])
	commitment := types.ImpliedReservationCommitment(nameHash, nonce)

	reserveTx := &types.Transaction{
		Outputs: []types.Output{
			{Address: ownerAddr, Content: types.OutputContent{Kind: types.ContentBitAssetReservation, ReservationCommitment: commitment}},
		},
		Data: &types.TxData{Kind: types.TxDataBitAssetReservation, ReservationCommitment: commitment},
	}
	coinbase1 := []types.Output{}
	body1 := &types.Body{Coinbase: coinbase1, Transactions: []*types.Transaction{reserveTx}}
	header1 := &types.Header{MerkleRoot: types.ComputeMerkleRoot(body1)}

	_, err = st.ValidateBlock(context.Background(), header1, body1)
	require.NoError(t, err)
	require.NoError(t, st.ConnectBlock(header1, body1, 1))

	reserveTxid := reserveTx.Txid()
	reservationOutpoint := types.OutPoint{Kind: types.OutPointRegular, Txid: reserveTxid, Vout: 0}

	registerTx := &types.Transaction{
		Inputs: []types.OutPoint{reservationOutpoint},
		Outputs: []types.Output{
			{Address: ownerAddr, Content: types.OutputContent{Kind: types.ContentBitAssetControl}},
		},
		Data: &types.TxData{
			Kind:                      types.TxDataBitAssetRegistration,
			RegistrationNameHash:      nameHash,
			RegistrationRevealedNonce: nonce,
			RegistrationInitialSupply: 0,
		},
	}
	registerAuth := signedAuthorization(t, priv, registerTx)
	body2 := &types.Body{Transactions: []*types.Transaction{registerTx}, Authorizations: []types.Authorization{registerAuth}}
	header2 := &types.Header{MerkleRoot: types.ComputeMerkleRoot(body2), PrevSideHash: header1.Hash()}

	_, err = st.ValidateBlock(context.Background(), header2, body2)
	require.NoError(t, err)
	require.NoError(t, st.ConnectBlock(header2, body2, 2))

	id := types.BitAssetId(nameHash)
	require.True(t, st.Registry.Exists(id))
	d, _ := st.Registry.Get(id)
	supply, _ := d.TotalSupply.Latest()
	require.Equal(t, uint64(0), supply.Value)

	_, stillLive := st.Utxos.Get(reservationOutpoint)
	require.False(t, stillLive)
}

func TestMintOverflowRejected(t *testing.T) {
	st := newTestState(t)
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	ownerAddr := hash.AddressFromVerifyingKey(pub)

	nameHash := hash.Sum([]byte("acme"))
	nonce := hash.Keyed(hash.Sum([]byte("sk")), nameHash[:])
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
		Inputs: []types.OutPoint{reservationOutpoint},
		Outputs: []types.Output{
			{Address: ownerAddr, Content: types.OutputContent{Kind: types.ContentBitAsset, BitAssetAmount: math.MaxUint64}},
			{Address: ownerAddr, Content: types.OutputContent{Kind: types.ContentBitAssetControl}},
		},
		Data: &types.TxData{
			Kind:                      types.TxDataBitAssetRegistration,
			RegistrationNameHash:      nameHash,
			RegistrationRevealedNonce: nonce,
			RegistrationInitialSupply: math.MaxUint64,
		},
	}
	registerAuth := signedAuthorization(t, priv, registerTx)
	body2 := &types.Body{Transactions: []*types.Transaction{registerTx}, Authorizations: []types.Authorization{registerAuth}}
	header2 := &types.Header{MerkleRoot: types.ComputeMerkleRoot(body2), PrevSideHash: header1.Hash()}
	_, err = st.ValidateBlock(context.Background(), header2, body2)
	require.NoError(t, err)
	require.NoError(t, st.ConnectBlock(header2, body2, 2))

	controlOutpoint := types.OutPoint{Kind: types.OutPointRegular, Txid: registerTx.Txid(), Vout: 1}
	mintTx := &types.Transaction{
		Inputs:  []types.OutPoint{controlOutpoint},
		Outputs: []types.Output{{Address: ownerAddr, Content: types.OutputContent{Kind: types.ContentBitAssetControl}}},
		Data:    &types.TxData{Kind: types.TxDataBitAssetMint, MintAmount: 1},
	}
	mintAuth := signedAuthorization(t, priv, mintTx)
	body3 := &types.Body{Transactions: []*types.Transaction{mintTx}, Authorizations: []types.Authorization{mintAuth}}
	header3 := &types.Header{MerkleRoot: types.ComputeMerkleRoot(body3), PrevSideHash: header2.Hash()}

	_, err = st.ValidateBlock(context.Background(), header3, body3)
	require.NoError(t, err)

	err = st.ConnectBlock(header3, body3, 3)
	require.ErrorIs(t, err, state.ErrTotalSupplyOverflow)
}

func TestWrongPubKeyForAddressRejected(t *testing.T) {
	st := newTestState(t)
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, wrongPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_ = priv

	ownerPub, ownerPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	ownerAddr := hash.AddressFromVerifyingKey(ownerPub)
	_ = ownerPriv

	nameHash := hash.Sum([]byte("acme"))
	nonce := hash.Keyed(hash.Sum([]byte("sk")), nameHash[:])
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
	badAuth := signedAuthorization(t, wrongPriv, registerTx)
	body2 := &types.Body{Transactions: []*types.Transaction{registerTx}, Authorizations: []types.Authorization{badAuth}}
	header2 := &types.Header{MerkleRoot: types.ComputeMerkleRoot(body2), PrevSideHash: header1.Hash()}

	_, err = st.ValidateBlock(context.Background(), header2, body2)
	require.ErrorIs(t, err, state.ErrWrongPubKeyForAddress)
}

func TestAuthAddressHelperNonZero(t *testing.T) {
	// Exercise auth.Address directly, apart from its use in the validator's
	// authorization check: a real key yields a non-zero address.
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var a types.Authorization
	copy(a.VerifyingKey[:], pub)
	require.False(t, auth.Address(a).IsZero())
}
