package config

import "strings"

// ProviderType names an upstream backend family.
type ProviderType string

const (
	ProviderTypeGemini      ProviderType = "gemini"
	ProviderTypeAnthropic   ProviderType = "anthropic"
	ProviderTypeOpenAI      ProviderType = "openai"
	ProviderTypeOpenAIWeb   ProviderType = "openai-web"
	ProviderTypeAntigravity ProviderType = "antigravity"
)

// Provider is one configured upstream backend.
type Provider struct {
	// Type selects the dialect family.
	Type ProviderType `yaml:"type" json:"type"`

	// Name is a display name, needed when several providers share a type.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Enabled allows disabling a provider without removing it. Default: true.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// APIKey is the primary key; APIKeys allows several with per-key proxy.
	APIKey  string           `yaml:"api-key,omitempty" json:"api-key,omitempty"`
	APIKeys []ProviderAPIKey `yaml:"api-keys,omitempty" json:"api-keys,omitempty"`

	// BaseURL overrides the dialect's default endpoint. Required for
	// openai-type providers pointed at compatible backends.
	BaseURL string `yaml:"base-url,omitempty" json:"base-url,omitempty"`

	ProxyURL string            `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Project is the cloud project id, used by the antigravity envelope.
	Project string `yaml:"project,omitempty" json:"project,omitempty"`

	// Models seeds the catalog for providers without a listing endpoint.
	Models []ProviderModel `yaml:"models,omitempty" json:"models,omitempty"`

	// ExcludedModels hides models from this provider's catalog entries.
	ExcludedModels []string `yaml:"excluded-models,omitempty" json:"excluded-models,omitempty"`
}

// ProviderAPIKey is one key with optional per-key proxy.
type ProviderAPIKey struct {
	Key      string `yaml:"key" json:"key"`
	ProxyURL string `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`
}

// ProviderModel seeds one catalog entry.
type ProviderModel struct {
	Name  string `yaml:"name" json:"name"`
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`
}

// IsEnabled reports whether the provider is active (default true).
func (p *Provider) IsEnabled() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// GetAPIKeys returns all keys; a bare APIKey becomes a single entry.
func (p *Provider) GetAPIKeys() []ProviderAPIKey {
	if len(p.APIKeys) > 0 {
		return p.APIKeys
	}
	if p.APIKey != "" {
		return []ProviderAPIKey{{Key: p.APIKey, ProxyURL: p.ProxyURL}}
	}
	return nil
}

// GetDisplayName falls back to the type when no name is set.
func (p *Provider) GetDisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return string(p.Type)
}

// Validate checks the provider entry.
func (p *Provider) Validate() error {
	if p.Type == "" {
		return &ProviderValidationError{Field: "type", Message: "type is required"}
	}
	if p.APIKey == "" && len(p.APIKeys) == 0 {
		return &ProviderValidationError{Field: "api-key", Message: "api-key or api-keys is required"}
	}
	if p.Type == ProviderTypeOpenAI && p.BaseURL != "" && len(p.Models) == 0 {
		return &ProviderValidationError{Field: "models", Message: "models is required for openai providers with a custom base-url"}
	}
	return nil
}

// ProviderValidationError reports an invalid provider entry.
type ProviderValidationError struct {
	Field   string
	Message string
}

func (e *ProviderValidationError) Error() string {
	return "provider config error: " + e.Field + ": " + e.Message
}

// SanitizeProviders normalizes the list, dropping disabled, invalid, and
// duplicate entries.
func SanitizeProviders(providers []Provider) []Provider {
	if len(providers) == 0 {
		return nil
	}
	result := make([]Provider, 0, len(providers))
	seen := make(map[string]struct{})

	for i := range providers {
		p := &providers[i]
		if !p.IsEnabled() {
			continue
		}

		p.Type = ProviderType(strings.TrimSpace(strings.ToLower(string(p.Type))))
		p.Name = strings.TrimSpace(p.Name)
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		p.ProxyURL = strings.TrimSpace(p.ProxyURL)
		p.Project = strings.TrimSpace(p.Project)
		p.Headers = NormalizeHeaders(p.Headers)

		validKeys := make([]ProviderAPIKey, 0, len(p.APIKeys))
		for _, k := range p.APIKeys {
			k.Key = strings.TrimSpace(k.Key)
			k.ProxyURL = strings.TrimSpace(k.ProxyURL)
			if k.Key != "" {
				validKeys = append(validKeys, k)
			}
		}
		p.APIKeys = validKeys

		validModels := make([]ProviderModel, 0, len(p.Models))
		for _, m := range p.Models {
			m.Name = strings.TrimSpace(m.Name)
			m.Alias = strings.TrimSpace(m.Alias)
			if m.Name != "" {
				validModels = append(validModels, m)
			}
		}
		p.Models = validModels

		if err := p.Validate(); err != nil {
			continue
		}

		uniqueKey := string(p.Type) + "|" + p.Name + "|" + p.BaseURL
		if _, exists := seen[uniqueKey]; exists {
			continue
		}
		seen[uniqueKey] = struct{}{}
		result = append(result, *p)
	}
	return result
}

// GetProvidersByType returns all providers of the given type.
func (cfg *Config) GetProvidersByType(t ProviderType) []Provider {
	if cfg == nil {
		return nil
	}
	var result []Provider
	for _, p := range cfg.Providers {
		if p.Type == t {
			result = append(result, p)
		}
	}
	return result
}

// GetProviderByName returns a provider by display name.
func (cfg *Config) GetProviderByName(name string) *Provider {
	if cfg == nil {
		return nil
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].GetDisplayName() == name {
			return &cfg.Providers[i]
		}
	}
	return nil
}
