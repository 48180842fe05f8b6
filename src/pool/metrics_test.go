package pool

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errorspkg "lsp-pool/src/internal/errors"
	"lsp-pool/src/internal/types"
)

func acquireAnonymous(t *testing.T, p *ConnectionPool, language string) string {
	t.Helper()
	id, err := p.Get(context.Background(), "", language)
	require.NoError(t, err)
	return id
}

func TestHealthScore_StartsAtOne(t *testing.T) {
	p := NewConnectionPool(2, newMockFactory())
	id := acquireAnonymous(t, p, "go")

	m, err := p.GetMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, 0, m.PendingRequests)
	assert.Equal(t, 0.0, m.ResponseTimeMs)
	assert.Equal(t, 1.0, m.HealthScore)
}

func TestHealthScore_PendingBacklogPenalty(t *testing.T) {
	p := NewConnectionPool(2, newMockFactory())
	id := acquireAnonymous(t, p, "go")

	// Ten pending requests are free, each one past that costs 0.05.
	for i := 0; i < 10; i++ {
		require.NoError(t, p.RecordRequestStart(id))
	}
	m, err := p.GetMetrics(id)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.HealthScore, 1e-9)

	for i := 0; i < 10; i++ {
		require.NoError(t, p.RecordRequestStart(id))
	}
	m, err = p.GetMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, 20, m.PendingRequests)
	assert.InDelta(t, 0.5, m.HealthScore, 1e-9)
}

func TestHealthScore_CPUPenaltyAndClamping(t *testing.T) {
	p := NewConnectionPool(2, newMockFactory())
	id := acquireAnonymous(t, p, "go")

	require.NoError(t, p.UpdateResourceUsage(id, 90))
	m, err := p.GetMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, 90.0, m.CPUUsagePercent)
	assert.InDelta(t, 0.5, m.HealthScore, 1e-9)

	// Out-of-range samples clamp to [0, 100].
	require.NoError(t, p.UpdateResourceUsage(id, 150))
	m, err = p.GetMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, 100.0, m.CPUUsagePercent)
	assert.InDelta(t, 0.0, m.HealthScore, 1e-9)

	require.NoError(t, p.UpdateResourceUsage(id, -5))
	m, err = p.GetMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.CPUUsagePercent)
	assert.InDelta(t, 1.0, m.HealthScore, 1e-9)
}

func TestHealthScore_SlowResponsesPenalized(t *testing.T) {
	p := NewConnectionPool(2, newMockFactory())
	id := acquireAnonymous(t, p, "go")

	require.NoError(t, p.RecordRequestStart(id))
	require.NoError(t, p.RecordRequestEnd(id, 2*time.Second, true))

	m, err := p.GetMetrics(id)
	require.NoError(t, err)
	assert.InDelta(t, 2000.0, m.ResponseTimeMs, 1e-6, "the first sample seeds the average directly")
	assert.InDelta(t, 0.5, m.HealthScore, 1e-9)

	// Later samples are folded in with exponential smoothing.
	require.NoError(t, p.RecordRequestStart(id))
	require.NoError(t, p.RecordRequestEnd(id, time.Second, true))
	m, err = p.GetMetrics(id)
	require.NoError(t, err)
	assert.InDelta(t, 1800.0, m.ResponseTimeMs, 1e-6)
	assert.InDelta(t, 0.6, m.HealthScore, 1e-9)
}

func TestHealthScore_ErrorRatePenalty(t *testing.T) {
	p := NewConnectionPool(2, newMockFactory())
	id := acquireAnonymous(t, p, "go")

	// One failure out of two requests: error rate 0.5, penalty 1.0.
	require.NoError(t, p.RecordRequestStart(id))
	require.NoError(t, p.RecordRequestEnd(id, time.Millisecond, true))
	require.NoError(t, p.RecordRequestStart(id))
	require.NoError(t, p.RecordRequestEnd(id, time.Millisecond, false))

	m, err := p.GetMetrics(id)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, m.HealthScore, 1e-9)

	infos := p.ConnectionInfos()
	require.Len(t, infos, 1)
	assert.EqualValues(t, 2, infos[0].RequestCount)
	assert.EqualValues(t, 1, infos[0].ErrorCount)
}

func TestHealthScore_NeverNegative(t *testing.T) {
	p := NewConnectionPool(2, newMockFactory())
	id := acquireAnonymous(t, p, "go")

	for i := 0; i < 40; i++ {
		require.NoError(t, p.RecordRequestStart(id))
	}
	require.NoError(t, p.UpdateResourceUsage(id, 100))

	m, err := p.GetMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.HealthScore)
}

func TestRecordRequestEnd_ZeroPendingStaysZero(t *testing.T) {
	p := NewConnectionPool(2, newMockFactory())
	id := acquireAnonymous(t, p, "go")

	require.NoError(t, p.RecordRequestEnd(id, time.Millisecond, true))
	m, err := p.GetMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, 0, m.PendingRequests)
}

func TestMetricsOperations_UnknownIDReportNotFound(t *testing.T) {
	p := NewConnectionPool(2, newMockFactory())

	assert.True(t, errorspkg.IsNotFound(p.RecordRequestStart("no-such-connection")))
	assert.True(t, errorspkg.IsNotFound(p.RecordRequestEnd("no-such-connection", time.Millisecond, true)))
	assert.True(t, errorspkg.IsNotFound(p.UpdateResourceUsage("no-such-connection", 50)))
	_, err := p.GetMetrics("no-such-connection")
	assert.True(t, errorspkg.IsNotFound(err))
}

func TestSendRequest_FeedsMetrics(t *testing.T) {
	factory := newMockFactory()
	p := NewConnectionPool(2, factory)
	id := acquireAnonymous(t, p, "go")

	factory.clients[0].requestDelay = 5 * time.Millisecond

	result, err := p.SendRequest(context.Background(), id, types.MethodTextDocumentHover, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))

	m, err := p.GetMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, 0, m.PendingRequests, "the proxy must settle the pending count")
	assert.Greater(t, m.ResponseTimeMs, 0.0)

	infos := p.ConnectionInfos()
	require.Len(t, infos, 1)
	assert.EqualValues(t, 1, infos[0].RequestCount)
	assert.EqualValues(t, 0, infos[0].ErrorCount)
}

func TestSendRequest_FailureCountsAsError(t *testing.T) {
	factory := newMockFactory()
	p := NewConnectionPool(2, factory)
	id := acquireAnonymous(t, p, "go")

	factory.clients[0].failRequests = true

	_, err := p.SendRequest(context.Background(), id, types.MethodTextDocumentDefinition, nil)
	require.Error(t, err)

	infos := p.ConnectionInfos()
	require.Len(t, infos, 1)
	assert.EqualValues(t, 1, infos[0].ErrorCount)

	m, err := p.GetMetrics(id)
	require.NoError(t, err)
	assert.Less(t, m.HealthScore, 1.0, "failures must drag the health score down")
}

func TestSendRequest_UnknownIDReportsNotFound(t *testing.T) {
	p := NewConnectionPool(2, newMockFactory())

	_, err := p.SendRequest(context.Background(), "no-such-connection", types.MethodTextDocumentHover, nil)
	assert.True(t, errorspkg.IsNotFound(err))
}

func TestMetricsSnapshot_CoversAllConnections(t *testing.T) {
	p := NewConnectionPool(5, newMockFactory())

	anonID := acquireAnonymous(t, p, "go")
	wsID, err := p.Get(context.Background(), "/ws-metrics", "rust")
	require.NoError(t, err)

	snapshot := p.MetricsSnapshot()
	require.Len(t, snapshot, 2)
	assert.True(t, snapshot[0].ID < snapshot[1].ID, "snapshot order must be stable")

	byID := map[string]ConnectionMetrics{}
	for _, cm := range snapshot {
		byID[cm.ID] = cm
	}
	assert.Empty(t, byID[anonID].WorkspaceKey)
	assert.Equal(t, "go", byID[anonID].Language)
	assert.NotEmpty(t, byID[wsID].WorkspaceKey)
	assert.Equal(t, "rust", byID[wsID].Language)
	assert.Equal(t, 1.0, byID[wsID].HealthScore)
}

func TestConnectionInfos_ReflectCheckoutState(t *testing.T) {
	p := NewConnectionPool(5, newMockFactory())

	id, err := p.Get(context.Background(), "/ws-info", "go")
	require.NoError(t, err)

	infos := p.ConnectionInfos()
	require.Len(t, infos, 1)
	info := infos[0]
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "/ws-info", info.Workspace)
	assert.Equal(t, "go", info.Language)
	assert.Equal(t, "healthy", info.Health)
	assert.Equal(t, 1, info.CheckoutCount)
	assert.False(t, info.CreatedAt.IsZero())

	require.NoError(t, p.ReturnConnection(id))
	infos = p.ConnectionInfos()
	require.Len(t, infos, 1)
	assert.Equal(t, 0, infos[0].CheckoutCount)
}

func TestLoadMetrics_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(LoadMetrics{
		PendingRequests: 3,
		CPUUsagePercent: 42.5,
		ResponseTimeMs:  120,
		HealthScore:     0.9,
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"pending_requests", "cpu_usage_percent", "response_time_ms", "health_score"} {
		assert.Contains(t, decoded, key)
	}
}
