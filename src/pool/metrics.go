package pool

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"lsp-pool/src/internal/common"
	"lsp-pool/src/internal/constants"
	"lsp-pool/src/internal/errors"
)

// LoadMetrics is the per-connection load sample exposed to schedulers.
// Reading it never checks the connection out.
type LoadMetrics struct {
	PendingRequests int     `json:"pending_requests"`
	CPUUsagePercent float64 `json:"cpu_usage_percent"`
	ResponseTimeMs  float64 `json:"response_time_ms"`
	HealthScore     float64 `json:"health_score"`
}

// ConnectionMetrics pairs a load sample with the connection identity.
type ConnectionMetrics struct {
	ID           string `json:"id"`
	WorkspaceKey string `json:"workspace_key,omitempty"`
	Language     string `json:"language,omitempty"`
	LoadMetrics
}

// Health score penalty thresholds, tuned for interactive editor traffic.
const (
	pendingBaseline       = 10
	pendingPenaltyPerUnit = 0.05

	cpuBaselinePercent = 80.0
	cpuPenaltyDivisor  = 20.0

	errorRateBaseline      = 0.1
	errorRatePenaltyFactor = 2.0

	responseTimeBaselineMs       = 1000.0
	responseTimePenaltyDivisorMs = 2000.0

	// Exponential smoothing weight for response time samples.
	responseTimeSmoothing = 0.2
)

// recomputeHealthScore derives the composite score in [0, 1] from the
// current load counters. Called with the pool mutex held.
func (c *Connection) recomputeHealthScore() {
	score := 1.0
	if c.pendingRequests > pendingBaseline {
		score -= float64(c.pendingRequests-pendingBaseline) * pendingPenaltyPerUnit
	}
	if c.cpuUsagePercent > cpuBaselinePercent {
		score -= (c.cpuUsagePercent - cpuBaselinePercent) / cpuPenaltyDivisor
	}
	if rate := c.errorRate(); rate > errorRateBaseline {
		score -= rate * errorRatePenaltyFactor
	}
	if c.responseTimeMs > responseTimeBaselineMs {
		score -= (c.responseTimeMs - responseTimeBaselineMs) / responseTimePenaltyDivisorMs
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	c.healthScore = score
}

func (c *Connection) loadMetrics() LoadMetrics {
	return LoadMetrics{
		PendingRequests: c.pendingRequests,
		CPUUsagePercent: c.cpuUsagePercent,
		ResponseTimeMs:  c.responseTimeMs,
		HealthScore:     c.healthScore,
	}
}

// RecordRequestStart counts a request as in flight on the connection.
func (p *ConnectionPool) RecordRequestStart(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.connections[id]
	if !ok {
		return errors.NewConnectionNotFound(id)
	}
	conn.pendingRequests++
	conn.recomputeHealthScore()
	return nil
}

// RecordRequestEnd completes an in-flight request and folds the latency
// sample into the smoothed response time.
func (p *ConnectionPool) RecordRequestEnd(id string, elapsed time.Duration, success bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.connections[id]
	if !ok {
		return errors.NewConnectionNotFound(id)
	}
	if conn.pendingRequests > 0 {
		conn.pendingRequests--
	}
	conn.requestCount++
	if !success {
		conn.errorCount++
	}
	sample := float64(elapsed) / float64(time.Millisecond)
	if conn.requestCount == 1 {
		conn.responseTimeMs = sample
	} else {
		conn.responseTimeMs = (1-responseTimeSmoothing)*conn.responseTimeMs + responseTimeSmoothing*sample
	}
	conn.recomputeHealthScore()
	return nil
}

// UpdateResourceUsage records an externally observed CPU sample for the
// connection's server process. Values are clamped to [0, 100].
func (p *ConnectionPool) UpdateResourceUsage(id string, cpuPercent float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.connections[id]
	if !ok {
		return errors.NewConnectionNotFound(id)
	}
	if cpuPercent < 0 {
		cpuPercent = 0
	}
	if cpuPercent > 100 {
		cpuPercent = 100
	}
	conn.cpuUsagePercent = cpuPercent
	conn.recomputeHealthScore()
	return nil
}

// GetMetrics returns the load sample for one connection.
func (p *ConnectionPool) GetMetrics(id string) (LoadMetrics, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.connections[id]
	if !ok {
		return LoadMetrics{}, errors.NewConnectionNotFound(id)
	}
	return conn.loadMetrics(), nil
}

// MetricsSnapshot returns a point-in-time load sample for every connection,
// ordered by id for stable output.
func (p *ConnectionPool) MetricsSnapshot() []ConnectionMetrics {
	p.mu.RLock()
	out := make([]ConnectionMetrics, 0, len(p.connections))
	for _, conn := range p.connections {
		out = append(out, ConnectionMetrics{
			ID:           conn.id,
			WorkspaceKey: conn.workspaceKey,
			Language:     conn.language,
			LoadMetrics:  conn.loadMetrics(),
		})
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConnectionInfos returns the diagnostic view of every connection, oldest
// first.
func (p *ConnectionPool) ConnectionInfos() []ConnectionInfo {
	p.mu.RLock()
	out := make([]ConnectionInfo, 0, len(p.connections))
	for _, conn := range p.connections {
		out = append(out, conn.info())
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SendRequest forwards an LSP request over a checked-out connection and
// feeds the latency and outcome into that connection's load metrics. The
// request inherits the language's default timeout when ctx has no deadline.
func (p *ConnectionPool) SendRequest(ctx context.Context, id, method string, params interface{}) (json.RawMessage, error) {
	p.mu.RLock()
	conn, ok := p.connections[id]
	if !ok {
		p.mu.RUnlock()
		return nil, errors.NewConnectionNotFound(id)
	}
	client := conn.client
	language := conn.language
	p.mu.RUnlock()

	if err := p.RecordRequestStart(id); err != nil {
		return nil, err
	}

	reqCtx, cancel := common.EnsureDeadline(ctx, constants.GetRequestTimeout(language))
	defer cancel()

	start := time.Now()
	result, err := client.SendRequest(reqCtx, method, params)
	if endErr := p.RecordRequestEnd(id, time.Since(start), err == nil); endErr != nil {
		// The connection was removed while the request was in flight;
		// nothing left to account against.
		common.PoolLogger.Debug("dropping request accounting for %s: %v", id, endErr)
	}
	if err != nil {
		return nil, errors.WrapWithContext(method, err)
	}
	return result, nil
}
