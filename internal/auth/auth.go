// Package auth verifies the Ed25519 authorizations attached to
// transactions: one signature per spent input, over the canonical
// transaction serialization with no domain tag. Batch verification is
// parallelized across CPUs with golang.org/x/sync/errgroup.
package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
	"github.com/LayerTwo-Labs/bitassetsd/internal/types"
)

// ErrAuthorization is returned when a signature fails to verify against its
// claimed verifying key and message.
var ErrAuthorization = errors.New("auth: signature verification failed")

// DomainSeparatedMessage prepends tag to msg. Transaction authorizations
// never use this — they sign the bare canonical serialization — but the
// out-of-scope wallet helper that produces arbitrary-message signatures
// needs a domain tag of its own choosing, and this package is the natural
// owner of that primitive since it already owns signature verification.
func DomainSeparatedMessage(tag, msg []byte) []byte {
	out := make([]byte, 0, len(tag)+len(msg))
	out = append(out, tag...)
	return append(out, msg...)
}

// Address returns the sidechain address an authorization's verifying key
// derives, the address a UTXO spent by that authorization must be owned by.
func Address(a types.Authorization) hash.Address {
	return hash.AddressFromVerifyingKey(a.VerifyingKey[:])
}

// VerifyOne reports whether a single authorization's signature verifies
// over message, the bare canonical transaction serialization with no
// domain tag.
func VerifyOne(a types.Authorization, message []byte) bool {
	return ed25519.Verify(a.VerifyingKey[:], message, a.Signature[:])
}

// VerifyBatch verifies every (message, authorization) pair, short-circuiting
// and returning ErrAuthorization on the first failure. Work is partitioned
// across GOMAXPROCS goroutines; each verifies a contiguous slice so no
// result ordering bookkeeping is needed beyond the index itself.
func VerifyBatch(ctx context.Context, messages [][]byte, auths []types.Authorization) error {
	if len(messages) != len(auths) {
		return fmt.Errorf("auth: %d messages but %d authorizations", len(messages), len(auths))
	}
	if len(messages) == 0 {
		return nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(messages) {
		workers = len(messages)
	}
	chunk := (len(messages) + workers - 1) / workers

	g, _ := errgroup.WithContext(ctx)
	for start := 0; start < len(messages); start += chunk {
		start := start
		end := start + chunk
		if end > len(messages) {
			end = len(messages)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if !VerifyOne(auths[i], messages[i]) {
					return fmt.Errorf("auth: input %d: %w", i, ErrAuthorization)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
