package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluxionhq/fluxion/pkg/models"
)

// CompletionRequest is a single prompt sent to an AI provider.
type CompletionRequest struct {
	Prompt      string
	System      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is the provider's answer.
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
	Cost       float64
}

// AIProvider is one backing model service.
type AIProvider interface {
	Name() string
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// pooledProvider pairs a provider with its daily quota.
type pooledProvider struct {
	provider   AIProvider
	dailyLimit int64 // 0 = unlimited
}

// ProviderPool routes completion requests by task type, enforces daily
// quotas through the shared counter, and falls back along per-task chains
// when a provider is exhausted or failing.
type ProviderPool struct {
	mu        sync.RWMutex
	providers map[string]*pooledProvider
	routes    map[string][]string
	fallback  []string
	quota     QuotaCounter
	now       func() time.Time
}

// NewProviderPool creates an empty pool. The quota counter is required; use
// a Redis-backed counter so the daily limits are shared across replicas.
func NewProviderPool(quota QuotaCounter) *ProviderPool {
	return &ProviderPool{
		providers: make(map[string]*pooledProvider),
		routes:    make(map[string][]string),
		quota:     quota,
		now:       time.Now,
	}
}

// Register adds a provider with its daily request limit (0 = unlimited).
func (p *ProviderPool) Register(provider AIProvider, dailyLimit int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providers[provider.Name()] = &pooledProvider{provider: provider, dailyLimit: dailyLimit}
	p.fallback = append(p.fallback, provider.Name())
}

// Route sets the provider fallback chain for a task type.
func (p *ProviderPool) Route(taskType string, chain ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[taskType] = chain
}

// ChainFor returns the provider chain for a task type, falling back to every
// registered provider in registration order.
func (p *ProviderPool) ChainFor(taskType string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if chain, ok := p.routes[taskType]; ok && len(chain) > 0 {
		return chain
	}
	return append([]string(nil), p.fallback...)
}

// Get returns a registered provider by name.
func (p *ProviderPool) Get(name string) (AIProvider, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pp, ok := p.providers[name]
	if !ok {
		return nil, false
	}
	return pp.provider, true
}

// Complete runs the request against the chain for taskType, skipping
// providers whose daily quota is exhausted and falling through on call
// failures. It returns the name of the provider that served the request.
// The returned error wraps models.ErrProviderUnavailable when the whole
// chain is exhausted.
func (p *ProviderPool) Complete(ctx context.Context, taskType string, req *CompletionRequest) (*CompletionResponse, string, error) {
	chain := p.ChainFor(taskType)
	if len(chain) == 0 {
		return nil, "", models.ErrProviderUnavailable
	}

	var lastErr error
	for _, name := range chain {
		resp, err := p.CompleteWith(ctx, name, req)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, name, nil
	}

	if lastErr == nil {
		lastErr = models.ErrProviderUnavailable
	}
	return nil, "", fmt.Errorf("%w: %v", models.ErrProviderUnavailable, lastErr)
}

// CompleteWith runs the request against one named provider, enforcing its
// daily quota.
func (p *ProviderPool) CompleteWith(ctx context.Context, name string, req *CompletionRequest) (*CompletionResponse, error) {
	p.mu.RLock()
	pp, ok := p.providers[name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown AI provider: %s", name)
	}

	if pp.dailyLimit > 0 {
		key := fmt.Sprintf("quota:%s:%s", name, p.now().UTC().Format("2006-01-02"))
		used, err := p.quota.Increment(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("quota check failed for %s: %w", name, err)
		}
		if used > pp.dailyLimit {
			return nil, fmt.Errorf("%w: %s", models.ErrQuotaExhausted, name)
		}
	}

	return pp.provider.Complete(ctx, req)
}
