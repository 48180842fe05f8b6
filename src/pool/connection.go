// Package pool implements the language-server connection pool: workspace-scoped
// connections are shared by reference-counted checkout, anonymous connections
// are recycled through a capacity-bounded sub-pool, and unhealthy connections
// are replaced without ever being handed out again.
package pool

import (
	"time"

	"github.com/google/uuid"

	"lsp-pool/src/internal/types"
	"lsp-pool/src/workspace"
)

// HealthState reports whether a connection may be handed out.
type HealthState int

const (
	HealthStateHealthy HealthState = iota
	HealthStateUnhealthy
)

func (s HealthState) String() string {
	switch s {
	case HealthStateHealthy:
		return "healthy"
	case HealthStateUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Connection is a single logical handle to a running language-server session.
// The pool is the only place a Connection lives; callers hold ids, never the
// struct. All fields are guarded by the pool mutex.
type Connection struct {
	id           string
	workspaceKey string
	language     string
	client       types.LanguageClient

	createdAt     time.Time
	lastUsedAt    time.Time
	checkoutCount int
	health        HealthState

	// retired marks a replaced workspace connection that stays queryable
	// until its last checkout is returned, then is dropped.
	retired bool

	// Load tracking, fed by the request proxy and resource probes.
	pendingRequests int
	cpuUsagePercent float64
	responseTimeMs  float64
	healthScore     float64
	requestCount    int64
	errorCount      int64
}

func newConnection(client types.LanguageClient, workspaceKey, language string) *Connection {
	now := time.Now()
	return &Connection{
		id:           uuid.New().String(),
		workspaceKey: workspaceKey,
		language:     language,
		client:       client,
		createdAt:    now,
		lastUsedAt:   now,
		health:       HealthStateHealthy,
		healthScore:  1.0,
	}
}

// checkout records one more caller holding the connection.
func (c *Connection) checkout() {
	c.checkoutCount++
	c.lastUsedAt = time.Now()
}

// available reports whether the connection can be handed out or recycled:
// fully returned, healthy, and not retired.
func (c *Connection) available() bool {
	return c.checkoutCount == 0 && c.health == HealthStateHealthy && !c.retired
}

func (c *Connection) errorRate() float64 {
	if c.requestCount == 0 {
		return 0
	}
	return float64(c.errorCount) / float64(c.requestCount)
}

// ConnectionInfo is the diagnostic view of one pooled connection.
type ConnectionInfo struct {
	ID            string    `json:"id"`
	Workspace     string    `json:"workspace,omitempty"`
	Language      string    `json:"language,omitempty"`
	Health        string    `json:"health"`
	CheckoutCount int       `json:"checkout_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastUsedAt    time.Time `json:"last_used_at"`
	RequestCount  int64     `json:"request_count"`
	ErrorCount    int64     `json:"error_count"`
	HealthScore   float64   `json:"health_score"`
}

func (c *Connection) info() ConnectionInfo {
	return ConnectionInfo{
		ID:            c.id,
		Workspace:     workspace.KeyToPath(c.workspaceKey),
		Language:      c.language,
		Health:        c.health.String(),
		CheckoutCount: c.checkoutCount,
		CreatedAt:     c.createdAt,
		LastUsedAt:    c.lastUsedAt,
		RequestCount:  c.requestCount,
		ErrorCount:    c.errorCount,
		HealthScore:   c.healthScore,
	}
}
