package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("MYPE_TEST_MODE", "1")
		if os.Getenv("PLANNING_LABEL_CATEGORY_ID") == "" {
			_ = os.Setenv("PLANNING_LABEL_CATEGORY_ID", "1")
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
