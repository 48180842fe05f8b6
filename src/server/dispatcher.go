// Package server contains the request dispatcher that sits between editor
// backend features and the connection pool. It applies the load-admission
// policy, acquires and releases connections around each request, and keeps
// connection health bookkeeping out of feature code.
package server

import (
	"context"
	"encoding/json"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"lsp-pool/src/internal/common"
	"lsp-pool/src/internal/constants"
	"lsp-pool/src/internal/errors"
	"lsp-pool/src/internal/types"
	"lsp-pool/src/pool"
	"lsp-pool/src/workspace"
)

// DispatchPolicy decides when the pool is loaded enough that requests should
// be skipped instead of queued. Zero values fall back to the defaults.
type DispatchPolicy struct {
	// MinHealthScore is the score at least one connection must exceed.
	MinHealthScore float64
	// MaxMeanPending is the mean pending-request count across connections
	// above which new requests degrade.
	MaxMeanPending float64
}

func (p DispatchPolicy) withDefaults() DispatchPolicy {
	if p.MinHealthScore == 0 {
		p.MinHealthScore = constants.DispatchMinHealthScore
	}
	if p.MaxMeanPending == 0 {
		p.MaxMeanPending = constants.DispatchMaxMeanPending
	}
	return p
}

// Result is the outcome of one dispatched request. Degraded means the
// request was skipped so the caller should proceed without language-server
// data; Data is only set for requests that reached a server.
type Result struct {
	Degraded bool            `json:"degraded"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Dispatcher routes requests through pooled connections.
type Dispatcher struct {
	pool   *pool.ConnectionPool
	policy DispatchPolicy
}

func NewDispatcher(connectionPool *pool.ConnectionPool, policy DispatchPolicy) *Dispatcher {
	return &Dispatcher{
		pool:   connectionPool,
		policy: policy.withDefaults(),
	}
}

// shouldProceed applies the admission policy to the current load snapshot:
// at least one connection must be healthy enough to take the request and the
// pool-wide backlog must be below the threshold. An empty pool proceeds, new
// connections are created on demand.
func (d *Dispatcher) shouldProceed() bool {
	snapshot := d.pool.MetricsSnapshot()
	if len(snapshot) == 0 {
		return true
	}
	someHealthy := false
	totalPending := 0
	for _, cm := range snapshot {
		if cm.HealthScore > d.policy.MinHealthScore {
			someHealthy = true
		}
		totalPending += cm.PendingRequests
	}
	if !someHealthy {
		return false
	}
	meanPending := float64(totalPending) / float64(len(snapshot))
	return meanPending < d.policy.MaxMeanPending
}

// Dispatch acquires a connection for the workspace and language, sends the
// request over it, and releases the connection. A missing language is
// detected from the workspace contents. Overload and acquisition timeouts
// degrade instead of failing: editor features treat language-server data as
// optional. Request errors propagate after health bookkeeping.
func (d *Dispatcher) Dispatch(ctx context.Context, workspacePath, language, method string, params interface{}) (*Result, error) {
	if !d.shouldProceed() {
		common.ServerLogger.Warn("pool overloaded, degrading %s request", method)
		return &Result{Degraded: true}, nil
	}

	if language == "" && workspacePath != "" {
		if detected := workspace.DetectLanguage(workspacePath); detected != "" {
			common.ServerLogger.Debug("detected language %s for %s", detected, workspacePath)
			language = detected
		}
	}

	id, err := d.pool.Get(ctx, workspacePath, language)
	if err != nil {
		if errors.IsTimeout(err) || errors.IsFactoryFailed(err) {
			common.ServerLogger.Warn("no connection for %s request, degrading: %v", method, err)
			return &Result{Degraded: true}, nil
		}
		return nil, err
	}
	defer func() {
		if err := d.pool.ReturnConnection(id); err != nil {
			common.ServerLogger.Warn("failed to return connection %s: %v", id, err)
		}
	}()

	data, err := d.pool.SendRequest(ctx, id, method, params)
	if err != nil {
		// A caller that gave up tells us nothing about the connection.
		if errors.IsConnectionError(err) && !errors.IsCancellationError(err) {
			common.ServerLogger.Warn("connection %s failed during %s, marking unhealthy: %v", id, method, err)
			if markErr := d.pool.MarkUnhealthy(id); markErr != nil {
				common.ServerLogger.Debug("mark unhealthy for %s: %v", id, markErr)
			}
		}
		return nil, err
	}
	return &Result{Data: data}, nil
}

func positionParams(file string, line, character uint32) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(file)},
		Position:     protocol.Position{Line: line, Character: character},
	}
}

// Definition resolves the symbol definition at a file position.
func (d *Dispatcher) Definition(ctx context.Context, workspacePath, language, file string, line, character uint32) (*Result, error) {
	params := protocol.DefinitionParams{
		TextDocumentPositionParams: positionParams(file, line, character),
	}
	return d.Dispatch(ctx, workspacePath, language, types.MethodTextDocumentDefinition, params)
}

// References finds all references to the symbol at a file position.
func (d *Dispatcher) References(ctx context.Context, workspacePath, language, file string, line, character uint32, includeDeclaration bool) (*Result, error) {
	params := protocol.ReferenceParams{
		TextDocumentPositionParams: positionParams(file, line, character),
		Context:                    protocol.ReferenceContext{IncludeDeclaration: includeDeclaration},
	}
	return d.Dispatch(ctx, workspacePath, language, types.MethodTextDocumentReferences, params)
}

// Hover fetches hover documentation for the symbol at a file position.
func (d *Dispatcher) Hover(ctx context.Context, workspacePath, language, file string, line, character uint32) (*Result, error) {
	params := protocol.HoverParams{
		TextDocumentPositionParams: positionParams(file, line, character),
	}
	return d.Dispatch(ctx, workspacePath, language, types.MethodTextDocumentHover, params)
}

// Completion requests completion items at a file position.
func (d *Dispatcher) Completion(ctx context.Context, workspacePath, language, file string, line, character uint32) (*Result, error) {
	params := protocol.CompletionParams{
		TextDocumentPositionParams: positionParams(file, line, character),
	}
	return d.Dispatch(ctx, workspacePath, language, types.MethodTextDocumentCompletion, params)
}

// DocumentSymbols lists the symbols declared in a file.
func (d *Dispatcher) DocumentSymbols(ctx context.Context, workspacePath, language, file string) (*Result, error) {
	params := protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri.File(file)},
	}
	return d.Dispatch(ctx, workspacePath, language, types.MethodTextDocumentDocumentSymbol, params)
}

// WorkspaceSymbols searches symbols across the workspace.
func (d *Dispatcher) WorkspaceSymbols(ctx context.Context, workspacePath, language, query string) (*Result, error) {
	params := protocol.WorkspaceSymbolParams{Query: query}
	return d.Dispatch(ctx, workspacePath, language, types.MethodWorkspaceSymbol, params)
}
