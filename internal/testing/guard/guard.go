// Package guard flips the process into test mode when imported, so binaries
// exercised from tests never dial Postgres or Redis at startup.
package guard

import "os"

const testModeEnv = "MARKETBASKET_TEST_MODE"

func init() {
	if os.Getenv(testModeEnv) == "" {
		_ = os.Setenv(testModeEnv, "1")
	}
}
