package constants

import (
	"runtime"
	"time"
)

// windowsSpawnMultiplier stretches spawn-sensitive timeouts on Windows,
// where language server startup is measurably slower than on Unix.
const windowsSpawnMultiplier = 1.5

// AdjustForPlatform multiplies a duration on Windows and returns it
// unchanged elsewhere.
func AdjustForPlatform(base time.Duration) time.Duration {
	if runtime.GOOS == "windows" {
		return time.Duration(float64(base) * windowsSpawnMultiplier)
	}
	return base
}
