package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"horse.fit/portalerts/internal/config"
)

// DefaultProviderName is used when AI_PROVIDER is unset.
const DefaultProviderName = "gemini"

// Registry stores classifier providers and resolves a default provider.
type Registry struct {
	providers       map[string]Provider
	defaultProvider string
}

func NewRegistry(defaultProvider string) *Registry {
	normalizedDefault := normalizeProviderName(defaultProvider)
	if normalizedDefault == "" {
		normalizedDefault = DefaultProviderName
	}

	return &Registry{
		providers:       make(map[string]Provider),
		defaultProvider: normalizedDefault,
	}
}

// Register adds one provider.
func (r *Registry) Register(provider Provider) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if provider == nil {
		return fmt.Errorf("provider is nil")
	}
	name := normalizeProviderName(provider.Name())
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	r.providers[name] = provider
	return nil
}

// Provider resolves a provider by name. Empty names use the configured default provider.
func (r *Registry) Provider(name string) (Provider, error) {
	if r == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no classifier providers are registered")
	}

	resolvedName := normalizeProviderName(name)
	if resolvedName == "" {
		resolvedName = r.defaultProvider
	}
	provider, ok := r.providers[resolvedName]
	if ok {
		return provider, nil
	}

	return nil, fmt.Errorf("classifier provider %q is not registered (available: %s)", resolvedName, strings.Join(r.ProviderNames(), ", "))
}

func (r *Registry) DefaultProvider() string {
	if r == nil {
		return ""
	}
	return r.defaultProvider
}

// Fallback makes the first registered provider the default when the configured one is missing.
func (r *Registry) Fallback() {
	if r == nil {
		return
	}
	if _, exists := r.providers[r.defaultProvider]; exists {
		return
	}
	if names := r.ProviderNames(); len(names) > 0 {
		r.defaultProvider = names[0]
	}
}

func (r *Registry) ProviderNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeProviderName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NewRegistryFromConfig registers every provider whose API key is configured.
func NewRegistryFromConfig(ctx context.Context, cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	registry := NewRegistry(cfg.AIProvider)
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		provider, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "")
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, fmt.Errorf("register %s provider: %w", provider.Name(), err)
		}
	}
	if strings.TrimSpace(cfg.AnthropicAPIKey) != "" {
		provider, err := NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, fmt.Errorf("register %s provider: %w", provider.Name(), err)
		}
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		provider, err := NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, fmt.Errorf("register %s provider: %w", provider.Name(), err)
		}
	}

	registry.Fallback()
	return registry, nil
}
