package troupe

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

// quiet silences runtime logs in tests.
var quiet = WithLogger(zap.NewNop())

// waitDone fails the test if done is not closed within d.
func waitDone(t *testing.T, done <-chan struct{}, d time.Duration) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("run did not end within %s", d)
	}
}
