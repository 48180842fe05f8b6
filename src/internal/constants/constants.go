package constants

import "time"

// Pool sizing and lifecycle defaults
const (
	// DefaultMaxConnections bounds the anonymous sub-pool only; workspace
	// connections are pinned per-project and not counted against it.
	DefaultMaxConnections = 10

	// DefaultAcquireTimeout caps anonymous acquisition waits when the caller
	// context carries no deadline of its own.
	DefaultAcquireTimeout = 5 * time.Second

	// DefaultMaxIdleTime is the idle threshold after which an unused
	// connection becomes eligible for cleanup.
	DefaultMaxIdleTime = 5 * time.Minute

	// DefaultCleanupInterval drives the background maintenance loop.
	DefaultCleanupInterval = 1 * time.Minute

	// ClientStopTimeout bounds how long the pool waits for evicted clients
	// to shut down.
	ClientStopTimeout = 5 * time.Second
)

// Timeout constants for LSP operations
const (
	// Request timeouts by language
	DefaultRequestTimeout = 30 * time.Second
	JavaRequestTimeout    = 60 * time.Second
	PythonRequestTimeout  = 30 * time.Second
	GoTSRequestTimeout    = 15 * time.Second

	// Initialize timeouts by language
	DefaultInitializeTimeout = 15 * time.Second
	JavaInitializeTimeout    = 60 * time.Second
	PythonInitializeTimeout  = 30 * time.Second
)

// Load-aware dispatch policy defaults
const (
	// DispatchMinHealthScore is the score at least one connection must
	// exceed before protocol work is attempted.
	DispatchMinHealthScore = 0.6

	// DispatchMaxMeanPending is the mean pending-request ceiling across
	// connections above which consumers degrade instead of dispatching.
	DispatchMaxMeanPending = 25.0
)

// GetRequestTimeout returns language-specific timeout for LSP requests
func GetRequestTimeout(language string) time.Duration {
	switch language {
	case "java":
		return JavaRequestTimeout
	case "python":
		return PythonRequestTimeout
	case "go", "javascript", "typescript":
		return GoTSRequestTimeout
	default:
		return DefaultRequestTimeout
	}
}

// GetInitializeTimeout returns language-specific timeout for connection
// creation, covering spawn plus handshake
func GetInitializeTimeout(language string) time.Duration {
	switch language {
	case "java":
		return AdjustForPlatform(JavaInitializeTimeout)
	case "python":
		return AdjustForPlatform(PythonInitializeTimeout)
	default:
		return AdjustForPlatform(DefaultInitializeTimeout)
	}
}
