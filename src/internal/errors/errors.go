package errors

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ConnectionNotFoundError reports an operation against a connection id the
// pool does not know (fabricated, already cleaned up, or dropped by ClearAll).
type ConnectionNotFoundError struct {
	ID string `json:"id"`
}

func (e *ConnectionNotFoundError) Error() string {
	return fmt.Sprintf("connection not found: %s", e.ID)
}

// AcquireTimeoutError reports an acquisition that gave up waiting, either for
// anonymous capacity or for an in-flight workspace connection creation.
type AcquireTimeoutError struct {
	Workspace string        `json:"workspace,omitempty"`
	Language  string        `json:"language,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	Cause     error         `json:"cause,omitempty"`
}

func (e *AcquireTimeoutError) Error() string {
	scope := "anonymous connection"
	if e.Workspace != "" {
		scope = fmt.Sprintf("workspace connection for %s", e.Workspace)
	}
	if e.Timeout > 0 {
		return fmt.Sprintf("timed out acquiring %s (language: %s, timeout: %v)", scope, orUnspecified(e.Language), e.Timeout)
	}
	return fmt.Sprintf("timed out acquiring %s (language: %s)", scope, orUnspecified(e.Language))
}

func (e *AcquireTimeoutError) Unwrap() error {
	return e.Cause
}

// FactoryError reports a connection factory failure (spawn or handshake).
type FactoryError struct {
	Workspace string `json:"workspace,omitempty"`
	Language  string `json:"language,omitempty"`
	Cause     error  `json:"cause,omitempty"`
}

func (e *FactoryError) Error() string {
	if e.Workspace != "" {
		return fmt.Sprintf("connection factory failed for workspace %s (language: %s): %v", e.Workspace, orUnspecified(e.Language), e.Cause)
	}
	return fmt.Sprintf("connection factory failed (language: %s): %v", orUnspecified(e.Language), e.Cause)
}

func (e *FactoryError) Unwrap() error {
	return e.Cause
}

// PoolClosedError reports an operation against a pool that has been closed.
type PoolClosedError struct{}

func (e *PoolClosedError) Error() string {
	return "connection pool is closed"
}

// Error constructors

// NewConnectionNotFound creates a not-found error for the given connection id
func NewConnectionNotFound(id string) *ConnectionNotFoundError {
	return &ConnectionNotFoundError{ID: id}
}

// NewAcquireTimeout creates a timeout error for a failed acquisition
func NewAcquireTimeout(workspace, language string, timeout time.Duration, cause error) *AcquireTimeoutError {
	return &AcquireTimeoutError{
		Workspace: workspace,
		Language:  language,
		Timeout:   timeout,
		Cause:     cause,
	}
}

// NewFactoryError creates a factory error with acquisition context
func NewFactoryError(workspace, language string, cause error) *FactoryError {
	return &FactoryError{
		Workspace: workspace,
		Language:  language,
		Cause:     cause,
	}
}

// NewPoolClosed creates a pool-closed error
func NewPoolClosed() *PoolClosedError {
	return &PoolClosedError{}
}

// Error classification functions

// IsNotFound checks if the error reports an unknown connection id
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(*ConnectionNotFoundError); ok {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "connection not found") ||
		strings.Contains(errMsg, "unknown connection")
}

// IsTimeout checks if the error is a timeout error
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(*AcquireTimeoutError); ok {
		return true
	}

	if err == context.DeadlineExceeded {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "timed out") ||
		strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded")
}

// IsFactoryFailed checks if the error reports a connection factory failure
func IsFactoryFailed(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(*FactoryError); ok {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "factory failed") ||
		strings.Contains(errMsg, "spawn failure") ||
		strings.Contains(errMsg, "handshake fail")
}

// IsPoolClosed checks if the error reports a closed pool
func IsPoolClosed(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(*PoolClosedError); ok {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "pool is closed")
}

// IsConnectionError checks if the error indicates the connection itself is
// broken, as opposed to a request-level failure the server reported
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "connection") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "unexpected eof") ||
		strings.Contains(errMsg, "not active") ||
		strings.Contains(errMsg, "process exited")
}

// IsCancellationError checks if the error is a cancellation error
func IsCancellationError(err error) bool {
	if err == nil {
		return false
	}

	if err == context.Canceled {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "canceled") ||
		strings.Contains(errMsg, "cancelled")
}

// Error wrapping utilities

// WrapWithContext wraps an error with operation context
func WrapWithContext(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func orUnspecified(language string) string {
	if language == "" {
		return "unspecified"
	}
	return language
}
