package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"lsp-pool/src/internal/common"
	"lsp-pool/src/internal/constants"
	"lsp-pool/src/internal/errors"
	"lsp-pool/src/internal/types"
	"lsp-pool/src/workspace"
)

// workspaceCreateAttempts bounds how often Get re-checks the index after a
// creation finished but the new connection was replaced before checkout.
const workspaceCreateAttempts = 3

// RegistryStatistics summarizes the pool at a point in time.
type RegistryStatistics struct {
	TotalConnections     int `json:"total_connections"`
	AvailableConnections int `json:"available_connections"`
	ActiveConnections    int `json:"active_connections"`
}

// ConnectionPool manages language-server connections under two policies.
// Workspace-scoped connections are keyed by canonical workspace and shared:
// every Get for the same workspace returns the same connection with one more
// checkout recorded. Anonymous connections form a bounded sub-pool: Get
// recycles an idle one, creates below maxConnections, and otherwise blocks
// until a return or the context deadline.
//
// All map and metadata mutations happen under mu, so the mutating operations
// are linearizable. Factory calls always run outside the lock.
type ConnectionPool struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	byWorkspace map[string]string

	factory        ConnectionFactory
	maxConnections int

	// pendingCreates reserves anonymous capacity for factory calls that
	// are still in flight, so concurrent Gets cannot over-allocate.
	pendingCreates int
	waiters        []*anonWaiter

	// createGroup deduplicates workspace connection creation per key.
	createGroup singleflight.Group

	closed      bool
	maintenance chan struct{}
}

// NewConnectionPool creates an empty pool. maxConnections bounds only the
// anonymous sub-pool; non-positive values fall back to the default.
func NewConnectionPool(maxConnections int, factory ConnectionFactory) *ConnectionPool {
	if maxConnections <= 0 {
		maxConnections = constants.DefaultMaxConnections
	}
	return &ConnectionPool{
		connections:    make(map[string]*Connection),
		byWorkspace:    make(map[string]string),
		factory:        factory,
		maxConnections: maxConnections,
	}
}

// Get acquires a connection and returns its id. A non-empty workspacePath
// selects the workspace policy: the path is canonicalized and all callers
// share one healthy connection per workspace, created on demand and replaced
// when unhealthy. An empty workspacePath selects the anonymous policy:
// recycle an available connection with a compatible language, create one
// while under capacity, or block until a return frees one.
//
// Blocked anonymous calls give up when ctx expires; a ctx without a deadline
// gets the default acquire timeout. Every returned id must be released with
// ReturnConnection.
func (p *ConnectionPool) Get(ctx context.Context, workspacePath, language string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if workspacePath != "" {
		return p.acquireWorkspace(ctx, workspacePath, language)
	}
	return p.acquireAnonymous(ctx, language)
}

func (p *ConnectionPool) acquireWorkspace(ctx context.Context, workspacePath, language string) (string, error) {
	key := workspace.CanonicalKey(workspacePath)

	for attempt := 0; attempt < workspaceCreateAttempts; attempt++ {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return "", errors.NewPoolClosed()
		}
		if id, ok := p.byWorkspace[key]; ok {
			conn := p.connections[id]
			if conn.health == HealthStateHealthy {
				conn.checkout()
				p.mu.Unlock()
				return id, nil
			}
		}
		p.mu.Unlock()

		// Create (or replace) outside the lock. The singleflight key keeps
		// concurrent callers for one workspace on a single factory call
		// while different workspaces create in parallel. The flight runs
		// detached from ctx so an impatient caller cannot abort a creation
		// other callers are waiting on.
		ch := p.createGroup.DoChan(key, func() (interface{}, error) {
			return p.buildWorkspaceConnection(key, workspacePath, language)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				return "", res.Err
			}
			// Loop to check the fresh connection out under the lock.
		case <-ctx.Done():
			return "", errors.NewAcquireTimeout(workspacePath, language, 0, ctx.Err())
		}
	}
	return "", errors.NewFactoryError(workspacePath, language,
		fmt.Errorf("connection was replaced during each of %d acquisition attempts", workspaceCreateAttempts))
}

// buildWorkspaceConnection is the singleflight body: create a client, then
// register it as the workspace's connection, retiring an unhealthy
// predecessor. If another flight won the key in between, its connection is
// reused and ours is stopped.
func (p *ConnectionPool) buildWorkspaceConnection(key, workspacePath, language string) (interface{}, error) {
	client, err := p.invokeFactory(context.Background(), workspacePath, language)
	if err != nil {
		return nil, errors.NewFactoryError(workspacePath, language, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.stopClientAsync(client)
		return nil, errors.NewPoolClosed()
	}
	if oldID, ok := p.byWorkspace[key]; ok {
		old := p.connections[oldID]
		if old.health == HealthStateHealthy {
			p.mu.Unlock()
			p.stopClientAsync(client)
			return oldID, nil
		}
		p.retireLocked(old)
	}
	conn := newConnection(client, key, language)
	p.connections[conn.id] = conn
	p.byWorkspace[key] = conn.id
	total := len(p.connections)
	p.mu.Unlock()

	common.PoolLogger.Info("created workspace connection %s (workspace: %s, language: %s, total: %d)",
		conn.id, workspacePath, orAny(language), total)
	return conn.id, nil
}

// retireLocked removes a replaced workspace connection from the index. With
// no outstanding checkouts it is dropped immediately; otherwise it lingers,
// queryable by id, until the last holder returns it.
func (p *ConnectionPool) retireLocked(conn *Connection) {
	delete(p.byWorkspace, conn.workspaceKey)
	if conn.checkoutCount == 0 {
		p.removeLocked(conn)
		return
	}
	conn.retired = true
	common.PoolLogger.Debug("retired connection %s with %d outstanding checkout(s)", conn.id, conn.checkoutCount)
}

func (p *ConnectionPool) acquireAnonymous(ctx context.Context, language string) (string, error) {
	waitCtx, cancel := common.EnsureDeadline(ctx, constants.DefaultAcquireTimeout)
	defer cancel()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return "", errors.NewPoolClosed()
		}
		if conn := p.recycleLocked(language); conn != nil {
			id := conn.id
			p.mu.Unlock()
			return id, nil
		}
		if p.anonymousTotalLocked() < p.maxConnections {
			p.pendingCreates++
			p.mu.Unlock()
			return p.buildAnonymousConnection(waitCtx, language)
		}
		w := newAnonWaiter(language)
		p.waiters = append(p.waiters, w)
		p.mu.Unlock()

		select {
		case id := <-w.ch:
			if id != "" {
				return id, nil
			}
			// Capacity may have opened; take another pass.
		case <-waitCtx.Done():
			return p.abandonWait(w, language, waitCtx)
		}
	}
}

// recycleLocked checks out an idle anonymous connection compatible with the
// requested language, if one exists.
func (p *ConnectionPool) recycleLocked(language string) *Connection {
	for _, conn := range p.connections {
		if conn.workspaceKey != "" || !conn.available() {
			continue
		}
		if !languageCompatible(conn.language, language) {
			continue
		}
		conn.checkout()
		return conn
	}
	return nil
}

// anonymousTotalLocked counts anonymous connections plus reserved in-flight
// creations. Unhealthy anonymous connections keep occupying capacity until a
// cleanup pass reclaims them.
func (p *ConnectionPool) anonymousTotalLocked() int {
	total := p.pendingCreates
	for _, conn := range p.connections {
		if conn.workspaceKey == "" {
			total++
		}
	}
	return total
}

// buildAnonymousConnection runs the factory for a reserved capacity slot and
// registers the result already checked out by the caller. On failure the
// slot is released and one waiter is woken to retry.
func (p *ConnectionPool) buildAnonymousConnection(ctx context.Context, language string) (string, error) {
	client, err := p.invokeFactory(ctx, "", language)

	p.mu.Lock()
	p.pendingCreates--
	if err != nil {
		p.signalWaiterLocked()
		p.mu.Unlock()
		if ctx.Err() != nil {
			return "", errors.NewAcquireTimeout("", language, 0, ctx.Err())
		}
		return "", errors.NewFactoryError("", language, err)
	}
	if p.closed {
		p.mu.Unlock()
		p.stopClientAsync(client)
		return "", errors.NewPoolClosed()
	}
	conn := newConnection(client, "", language)
	conn.checkout()
	p.connections[conn.id] = conn
	total := len(p.connections)
	p.mu.Unlock()

	common.PoolLogger.Info("created anonymous connection %s (language: %s, total: %d)",
		conn.id, orAny(language), total)
	return conn.id, nil
}

// abandonWait withdraws a waiter whose context expired. When the withdrawal
// loses the race against a committed handoff, the delivered connection is
// released again so no checkout leaks to a caller that already gave up.
func (p *ConnectionPool) abandonWait(w *anonWaiter, language string, ctx context.Context) (string, error) {
	p.mu.Lock()
	removed := p.removeWaiterLocked(w)
	p.mu.Unlock()

	if !removed {
		if id := <-w.ch; id != "" {
			if err := p.ReturnConnection(id); err != nil {
				common.PoolLogger.Warn("failed to release connection %s handed to an expired waiter: %v", id, err)
			} else {
				common.PoolLogger.Debug("released connection %s handed to an expired waiter", id)
			}
		}
	}
	return "", errors.NewAcquireTimeout("", language, 0, ctx.Err())
}

// ReturnConnection releases one checkout on the connection. At zero
// checkouts a retired connection is dropped, and an available anonymous
// connection is handed straight to the oldest compatible waiter. Returning
// a connection that is not checked out is a logged no-op.
func (p *ConnectionPool) ReturnConnection(id string) error {
	p.mu.Lock()
	conn, ok := p.connections[id]
	if !ok {
		p.mu.Unlock()
		return errors.NewConnectionNotFound(id)
	}
	if conn.checkoutCount == 0 {
		p.mu.Unlock()
		common.PoolLogger.Warn("ignoring return of connection %s with no outstanding checkout", id)
		return nil
	}
	conn.checkoutCount--
	conn.lastUsedAt = time.Now()
	if conn.checkoutCount == 0 {
		if conn.retired {
			p.removeLocked(conn)
			common.PoolLogger.Debug("dropped retired connection %s", id)
		} else if conn.workspaceKey == "" && conn.health == HealthStateHealthy {
			p.handOffLocked(conn)
		}
	}
	p.mu.Unlock()
	return nil
}

// MarkUnhealthy flags a connection so it is never handed out again. The
// connection itself stays registered: outstanding checkouts remain valid,
// a workspace connection is replaced on the next Get for its workspace, and
// an anonymous connection is reclaimed by the next cleanup pass once idle.
func (p *ConnectionPool) MarkUnhealthy(id string) error {
	p.mu.Lock()
	conn, ok := p.connections[id]
	if !ok {
		p.mu.Unlock()
		return errors.NewConnectionNotFound(id)
	}
	if conn.health == HealthStateUnhealthy {
		p.mu.Unlock()
		return nil
	}
	conn.health = HealthStateUnhealthy
	workspaceKey := conn.workspaceKey
	p.mu.Unlock()

	if workspaceKey != "" {
		common.PoolLogger.Warn("connection %s for workspace %s marked unhealthy, will be replaced on next acquisition",
			id, workspace.KeyToPath(workspaceKey))
	} else {
		common.PoolLogger.Warn("anonymous connection %s marked unhealthy, withdrawn from recycling", id)
	}
	return nil
}

// IsHealthy reports the health of a connection by id.
func (p *ConnectionPool) IsHealthy(id string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.connections[id]
	if !ok {
		return false, errors.NewConnectionNotFound(id)
	}
	return conn.health == HealthStateHealthy, nil
}

// CleanupStaleConnections removes connections with no outstanding checkouts
// that are unhealthy or have been idle longer than maxIdle, and returns how
// many were removed. Checked-out connections are never touched. A
// non-positive maxIdle disables the idle criterion, so only unhealthy
// connections are reclaimed.
func (p *ConnectionPool) CleanupStaleConnections(maxIdle time.Duration) int {
	now := time.Now()
	p.mu.Lock()
	removed := 0
	for _, conn := range p.connections {
		if conn.checkoutCount > 0 {
			continue
		}
		stale := maxIdle > 0 && now.Sub(conn.lastUsedAt) > maxIdle
		if conn.health == HealthStateUnhealthy || stale {
			p.removeLocked(conn)
			removed++
		}
	}
	p.mu.Unlock()

	if removed > 0 {
		common.PoolLogger.Info("cleanup removed %d stale connection(s)", removed)
	}
	return removed
}

// removeLocked unregisters the connection and schedules its client stop.
// Freed anonymous capacity wakes one waiter.
func (p *ConnectionPool) removeLocked(conn *Connection) {
	delete(p.connections, conn.id)
	if conn.workspaceKey != "" {
		if id, ok := p.byWorkspace[conn.workspaceKey]; ok && id == conn.id {
			delete(p.byWorkspace, conn.workspaceKey)
		}
	} else {
		p.signalWaiterLocked()
	}
	p.stopClientAsync(conn.client)
}

// Len returns the number of registered connections, including checked-out,
// retired, and unhealthy ones.
func (p *ConnectionPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connections)
}

// AvailableConnections returns the number of connections with no
// outstanding checkouts.
func (p *ConnectionPool) AvailableConnections() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	available := 0
	for _, conn := range p.connections {
		if conn.checkoutCount == 0 {
			available++
		}
	}
	return available
}

// GetStats returns the registry totals in one consistent snapshot.
func (p *ConnectionPool) GetStats() RegistryStatistics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	stats := RegistryStatistics{TotalConnections: len(p.connections)}
	for _, conn := range p.connections {
		if conn.checkoutCount == 0 {
			stats.AvailableConnections++
		}
		stats.ActiveConnections += conn.checkoutCount
	}
	return stats
}

// ClearAll drops every connection regardless of outstanding checkouts and
// stops their clients in the background. Ids handed out earlier turn stale:
// later operations on them report not found. Waiters are woken to retry
// against the emptied pool.
func (p *ConnectionPool) ClearAll() {
	p.mu.Lock()
	clients := make([]types.LanguageClient, 0, len(p.connections))
	for _, conn := range p.connections {
		clients = append(clients, conn.client)
	}
	dropped := len(p.connections)
	p.connections = make(map[string]*Connection)
	p.byWorkspace = make(map[string]string)
	p.signalAllWaitersLocked()
	p.mu.Unlock()

	if dropped > 0 {
		common.PoolLogger.Info("cleared %d connection(s)", dropped)
	}
	go p.stopClients(clients)
}

// Close shuts the pool down: the maintenance loop stops, waiters and new
// calls fail with a pool-closed error, and every client is stopped with a
// bounded wait. Close is idempotent.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.maintenance != nil {
		close(p.maintenance)
		p.maintenance = nil
	}
	clients := make([]types.LanguageClient, 0, len(p.connections))
	for _, conn := range p.connections {
		clients = append(clients, conn.client)
	}
	p.connections = make(map[string]*Connection)
	p.byWorkspace = make(map[string]string)
	p.signalAllWaitersLocked()
	p.mu.Unlock()

	p.stopClients(clients)
	common.PoolLogger.Info("connection pool closed")
	return nil
}

// StartMaintenance runs CleanupStaleConnections every interval until the
// pool is closed. Calling it again, or with a non-positive interval, does
// nothing.
func (p *ConnectionPool) StartMaintenance(interval, maxIdle time.Duration) {
	if interval <= 0 {
		return
	}
	p.mu.Lock()
	if p.closed || p.maintenance != nil {
		p.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	p.maintenance = stop
	p.mu.Unlock()

	common.PoolLogger.Debug("maintenance started (interval: %v, max idle: %v)", interval, maxIdle)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.CleanupStaleConnections(maxIdle)
			case <-stop:
				return
			}
		}
	}()
}

// stopClients stops clients in parallel and waits up to the stop timeout.
func (p *ConnectionPool) stopClients(clients []types.LanguageClient) {
	if len(clients) == 0 {
		return
	}
	var g errgroup.Group
	for _, client := range clients {
		client := client
		g.Go(func() error {
			if err := client.Stop(); err != nil {
				common.PoolLogger.Warn("client stop failed: %v", err)
			}
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(constants.ClientStopTimeout):
		common.PoolLogger.Warn("timed out waiting for %d client(s) to stop", len(clients))
	}
}

func (p *ConnectionPool) stopClientAsync(client types.LanguageClient) {
	if client == nil {
		return
	}
	go func() {
		if err := client.Stop(); err != nil {
			common.PoolLogger.Warn("client stop failed: %v", err)
		}
	}()
}
