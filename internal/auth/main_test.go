package auth_test

import (
	"testing"

	"go.uber.org/goleak"
)

// VerifyBatch fans out across worker goroutines; the whole package must
// leave none behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
