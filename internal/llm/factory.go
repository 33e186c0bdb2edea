package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/nulzo/anthropic-gateway/internal/config"
	"github.com/nulzo/anthropic-gateway/internal/httpclient"
)

// Factory builds an adapter once at startup. The HTTP client is the shared
// outbound transport; adapters must not build their own.
type Factory func(ctx context.Context, cfg config.ProviderConfig, client httpclient.HTTPClient) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[Kind]Factory)
)

func Register(kind Kind, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", kind))
	}
	factories[kind] = f
}

func Get(kind Kind) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("provider factory not found for kind: %s", kind)
	}
	return f, nil
}

// New builds the provider selected by cfg.Kind.
func New(ctx context.Context, cfg config.ProviderConfig, client httpclient.HTTPClient) (Provider, error) {
	factoryFunc, err := Get(Kind(cfg.Kind))
	if err != nil {
		return nil, err
	}

	p, err := factoryFunc(ctx, cfg, client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", cfg.Kind, err)
	}
	return p, nil
}
