package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CRUCIBLE_TEST_MODE") == "" {
			_ = os.Setenv("CRUCIBLE_TEST_MODE", "1")
		}
	})
}
