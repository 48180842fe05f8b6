package pool

import (
	"context"
	"fmt"

	"lsp-pool/src/internal/common"
	"lsp-pool/src/internal/constants"
	"lsp-pool/src/internal/registry"
	"lsp-pool/src/internal/types"
)

// ConnectionFactory creates a ready-to-use language client for a workspace
// and language. Implementations spawn the server process and complete the
// initialize handshake before returning; the pool does not retry failures.
type ConnectionFactory interface {
	Create(ctx context.Context, workspace, language string) (types.LanguageClient, error)
}

// FactoryFunc adapts a plain function to the ConnectionFactory interface.
type FactoryFunc func(ctx context.Context, workspace, language string) (types.LanguageClient, error)

func (f FactoryFunc) Create(ctx context.Context, workspace, language string) (types.LanguageClient, error) {
	return f(ctx, workspace, language)
}

// invokeFactory runs the configured factory under the language's initialize
// timeout. Slow server startups (jdtls workspace imports, rust-analyzer
// index builds) get the longer per-language deadline from the registry.
func (p *ConnectionPool) invokeFactory(ctx context.Context, workspacePath, language string) (types.LanguageClient, error) {
	if p.factory == nil {
		return nil, fmt.Errorf("no connection factory configured")
	}

	timeout := constants.GetInitializeTimeout(language)
	if info, ok := registry.GetLanguageByName(language); ok {
		timeout = constants.AdjustForPlatform(info.InitializeTimeout)
	}
	createCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	common.FactoryLogger.Debug("creating connection (workspace: %q, language: %s, timeout: %v)",
		workspacePath, orAny(language), timeout)

	client, err := p.factory.Create(createCtx, workspacePath, language)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("factory returned no client")
	}
	return client, nil
}

func orAny(language string) string {
	if language == "" {
		return "any"
	}
	return language
}
