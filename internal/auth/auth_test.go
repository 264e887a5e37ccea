package auth_test

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LayerTwo-Labs/bitassetsd/internal/auth"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

func sign(t *testing.T, msg []byte) types.Authorization {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, msg)
	var a types.Authorization
	copy(a.VerifyingKey[:], pub)
	copy(a.Signature[:], sig)
	return a
}

func TestVerifyOne(t *testing.T) {
	msg := []byte("transaction body")
	a := sign(t, msg)
	require.True(t, auth.VerifyOne(a, msg))
	require.False(t, auth.VerifyOne(a, []byte("different body")))
}

func TestVerifyBatchAllValid(t *testing.T) {
	var messages [][]byte
	var auths []types.Authorization
	for i := 0; i < 40; i++ {
		msg := []byte{byte(i), byte(i + 1)}
		messages = append(messages, msg)
		auths = append(auths, sign(t, msg))
	}
	require.NoError(t, auth.VerifyBatch(context.Background(), messages, auths))
}

func TestVerifyBatchRejectsOneBadSignature(t *testing.T) {
	var messages [][]byte
	var auths []types.Authorization
	for i := 0; i < 10; i++ {
		msg := []byte{byte(i)}
		messages = append(messages, msg)
		auths = append(auths, sign(t, msg))
	}
	auths[5] = sign(t, []byte("wrong message entirely"))

	err := auth.VerifyBatch(context.Background(), messages, auths)
	require.ErrorIs(t, err, auth.ErrAuthorization)
}

func TestAddressDerivedFromVerifyingKey(t *testing.T) {
	a := sign(t, []byte("msg"))
	addr := auth.Address(a)
	require.False(t, addr.IsZero())
}

func TestDomainSeparatedMessagePrependsTag(t *testing.T) {
	tag := []byte("bitassetsd/wallet-message/v1")
	msg := []byte("hello")
	out := auth.DomainSeparatedMessage(tag, msg)
	require.Equal(t, append(append([]byte{}, tag...), msg...), out)
}
