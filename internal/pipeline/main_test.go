package pipeline

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies the pipeline spawns no stray goroutines: every stage runs
// synchronously in the caller's goroutine.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
