package common

import "os"

// IsCI reports whether the process runs under a CI runner, where scheduler
// jitter makes wall-clock timing bounds unreliable.
func IsCI() bool {
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}
