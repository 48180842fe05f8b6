package types

import (
	"context"
	"encoding/json"
)

// LanguageClient defines the unified interface for a single language server
// session. The connection factory produces clients in a started, connected
// state; the pool owns their lifecycle from then on and forwards protocol
// traffic through them.
type LanguageClient interface {
	// Start initializes and starts the underlying language server session.
	// Returns an error if the session fails to start or is already running.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the language server session.
	// Returns an error if the shutdown process fails.
	Stop() error

	// SendRequest sends a JSON-RPC request to the language server and waits
	// for a response. The method parameter specifies the LSP method name,
	// params contains the request parameters, and returns the raw JSON
	// response or an error.
	SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

	// SendNotification sends a JSON-RPC notification without expecting a
	// response.
	SendNotification(ctx context.Context, method string, params interface{}) error

	// IsActive returns true if the language server session is currently
	// running and responsive.
	IsActive() bool

	// Supports checks if the language server supports a specific method.
	Supports(method string) bool
}
