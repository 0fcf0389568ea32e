// Package testing switches the process into test mode. Test packages blank-import it so
// publishing and server startup stay side-effect free.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		if os.Getenv("BONDTRACK_TEST_MODE") == "" {
			_ = os.Setenv("BONDTRACK_TEST_MODE", "1")
		}
		if os.Getenv("LOG_FORMAT") == "" {
			_ = os.Setenv("LOG_FORMAT", "json")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
