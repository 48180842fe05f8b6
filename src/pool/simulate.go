package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"lsp-pool/src/internal/types"
)

// SimulatedFactory produces in-memory language clients for load drills and
// tests, with configurable startup/request latency and failure injection.
// No real server process is spawned.
type SimulatedFactory struct {
	CreateDelay        time.Duration
	CreateFailureRate  float64
	RequestDelay       time.Duration
	RequestFailureRate float64

	mu      sync.Mutex
	rng     *rand.Rand
	created int
}

// NewSimulatedFactory seeds the failure-injection source so drills are
// reproducible.
func NewSimulatedFactory(seed int64) *SimulatedFactory {
	return &SimulatedFactory{rng: rand.New(rand.NewSource(seed))}
}

func (f *SimulatedFactory) Create(ctx context.Context, workspacePath, language string) (types.LanguageClient, error) {
	if f.CreateDelay > 0 {
		select {
		case <-time.After(f.CreateDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.roll() < f.CreateFailureRate {
		return nil, fmt.Errorf("simulated spawn failure for %s", orAny(language))
	}

	f.mu.Lock()
	f.created++
	f.mu.Unlock()

	return &simulatedClient{
		factory:   f,
		language:  language,
		workspace: workspacePath,
		active:    true,
	}, nil
}

// CreatedCount reports how many clients the factory has produced.
func (f *SimulatedFactory) CreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *SimulatedFactory) roll() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rng.Float64()
}

// simulatedClient answers every request with a canned payload. It starts
// active because the factory hands out connected clients.
type simulatedClient struct {
	factory   *SimulatedFactory
	language  string
	workspace string

	mu     sync.Mutex
	active bool
}

func (c *simulatedClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return fmt.Errorf("client already running")
	}
	c.active = true
	return nil
}

func (c *simulatedClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	return nil
}

func (c *simulatedClient) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if !c.IsActive() {
		return nil, fmt.Errorf("client is not active")
	}
	if c.factory.RequestDelay > 0 {
		select {
		case <-time.After(c.factory.RequestDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.factory.roll() < c.factory.RequestFailureRate {
		return nil, fmt.Errorf("simulated request failure for %s", method)
	}
	payload := map[string]interface{}{
		"method":    method,
		"language":  c.language,
		"workspace": c.workspace,
		"simulated": true,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (c *simulatedClient) SendNotification(ctx context.Context, method string, params interface{}) error {
	if !c.IsActive() {
		return fmt.Errorf("client is not active")
	}
	return nil
}

func (c *simulatedClient) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *simulatedClient) Supports(method string) bool {
	return true
}
