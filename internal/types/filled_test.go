package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

func TestFilledOutputsRegistrationAssignsNewIdentity(t *testing.T) {
	nameHash := hash.Sum([]byte("example.bit"))
	nonce := hash.Keyed(hash.Sum([]byte("owner-sk")), nameHash[:])
	commitment := types.ImpliedReservationCommitment(nameHash, nonce)

	ftx := &types.FilledTransaction{
		Transaction: &types.Transaction{
			Outputs: []types.Output{
				{Content: types.OutputContent{Kind: types.ContentBitAsset, BitAssetAmount: 1000}},
				{Content: types.OutputContent{Kind: types.ContentBitAssetControl}},
			},
			Data: &types.TxData{
				Kind:                      types.TxDataBitAssetRegistration,
				RegistrationNameHash:      nameHash,
				RegistrationRevealedNonce: nonce,
				RegistrationInitialSupply: 1000,
			},
		},
		SpentOutputs: []types.FilledOutput{
			{Content: types.FilledOutputContent{Kind: types.ContentBitAssetReservation, ReservationCommitment: commitment}},
		},
	}

	out, err := ftx.FilledOutputs()
	require.NoError(t, err)
	require.Len(t, out, 2)
	want := types.BitAssetId(nameHash)
	require.Equal(t, want, out[0].Content.BitAssetId)
	require.Equal(t, want, out[1].Content.BitAssetId)
}

func TestFilledOutputsCarriesForwardSpentBitAssetIdentity(t *testing.T) {
	existing := types.BitAssetId(hash.Sum([]byte("existing")))

	ftx := &types.FilledTransaction{
		Transaction: &types.Transaction{
			Outputs: []types.Output{
				{Content: types.OutputContent{Kind: types.ContentBitAsset, BitAssetAmount: 500}},
			},
			Data: &types.TxData{Kind: types.TxDataBitAssetUpdate},
		},
		SpentOutputs: []types.FilledOutput{
			{Content: types.FilledOutputContent{Kind: types.ContentBitAsset, BitAssetId: existing, BitAssetAmount: 500}},
		},
	}

	out, err := ftx.FilledOutputs()
	require.NoError(t, err)
	require.Equal(t, existing, out[0].Content.BitAssetId)
}

func TestFilledOutputsRejectsUnresolvableBitAsset(t *testing.T) {
	ftx := &types.FilledTransaction{
		Transaction: &types.Transaction{
			Outputs: []types.Output{
				{Content: types.OutputContent{Kind: types.ContentBitAsset, BitAssetAmount: 1}},
			},
		},
	}
	_, err := ftx.FilledOutputs()
	require.ErrorIs(t, err, types.ErrFillOutputsFailed)
}

func TestBitcoinFeeComputesDifference(t *testing.T) {
	ftx := &types.FilledTransaction{
		Transaction: &types.Transaction{
			Outputs: []types.Output{
				{Content: types.OutputContent{Kind: types.ContentBitcoin, BitcoinValue: 900}},
			},
		},
		SpentOutputs: []types.FilledOutput{
			{Content: types.FilledOutputContent{Kind: types.ContentBitcoin, BitcoinValue: 1000}},
		},
	}
	fee, err := ftx.BitcoinFee()
	require.NoError(t, err)
	require.Equal(t, types.Amount(100), fee)
}

func TestBitcoinFeeRejectsOverspend(t *testing.T) {
	ftx := &types.FilledTransaction{
		Transaction: &types.Transaction{
			Outputs: []types.Output{
				{Content: types.OutputContent{Kind: types.ContentBitcoin, BitcoinValue: 2000}},
			},
		},
		SpentOutputs: []types.FilledOutput{
			{Content: types.FilledOutputContent{Kind: types.ContentBitcoin, BitcoinValue: 1000}},
		},
	}
	_, err := ftx.BitcoinFee()
	require.ErrorIs(t, err, types.ErrNotEnoughValueIn)
}
