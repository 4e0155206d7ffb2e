// Package auth supplies credentials to the upstream client and the model
// catalog fetcher. The gateway never acquires credentials itself; they come
// from config or from the host through the CredentialProvider interface.
package auth

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/bridgekit/llm-bridge/internal/config"
	"github.com/bridgekit/llm-bridge/internal/provider"
)

// ErrNoCredentials means no configured credential matches the provider.
var ErrNoCredentials = errors.New("no credentials for provider")

// Credential is one usable upstream credential.
type Credential struct {
	Provider provider.Format
	Key      string
	BaseURL  string
	ProxyURL string
	Headers  map[string]string
	Project  string
}

// CredentialProvider is what the gateway core consumes. GetAccessToken
// returns a ready-to-use bearer value, refreshing behind the scenes when
// the credential is token-based.
type CredentialProvider interface {
	GetAllCredentials() []Credential
	GetAccessToken(ctx context.Context, p provider.Format) (string, error)
}

// ConfigCredentials serves credentials straight from the config file,
// rotating across multiple keys per provider. It also implements
// provider.CredentialChecker for the router.
type ConfigCredentials struct {
	creds  map[provider.Format][]Credential
	cursor map[provider.Format]*atomic.Uint64
}

// FromConfig builds a credential set from the sanitized provider list.
func FromConfig(cfg *config.Config) *ConfigCredentials {
	c := &ConfigCredentials{
		creds:  make(map[provider.Format][]Credential),
		cursor: make(map[provider.Format]*atomic.Uint64),
	}
	if cfg == nil {
		return c
	}
	for _, p := range cfg.Providers {
		format := formatForType(p.Type)
		if format == provider.FormatUnknown {
			continue
		}
		for _, key := range p.GetAPIKeys() {
			proxy := key.ProxyURL
			if proxy == "" {
				proxy = p.ProxyURL
			}
			c.creds[format] = append(c.creds[format], Credential{
				Provider: format,
				Key:      key.Key,
				BaseURL:  p.BaseURL,
				ProxyURL: proxy,
				Headers:  p.Headers,
				Project:  p.Project,
			})
		}
		if _, ok := c.cursor[format]; !ok {
			c.cursor[format] = &atomic.Uint64{}
		}
	}
	return c
}

func formatForType(t config.ProviderType) provider.Format {
	switch t {
	case config.ProviderTypeGemini:
		return provider.FormatGemini
	case config.ProviderTypeAnthropic:
		return provider.FormatClaude
	case config.ProviderTypeOpenAI:
		return provider.FormatOpenAI
	case config.ProviderTypeOpenAIWeb:
		return provider.FormatOpenAIWeb
	case config.ProviderTypeAntigravity:
		return provider.FormatAntigravity
	}
	return provider.FormatUnknown
}

// GetAllCredentials lists every configured credential.
func (c *ConfigCredentials) GetAllCredentials() []Credential {
	var out []Credential
	for _, list := range c.creds {
		out = append(out, list...)
	}
	return out
}

// Pick returns the next credential for p, round-robin across keys.
func (c *ConfigCredentials) Pick(p provider.Format) (Credential, error) {
	list := c.creds[p]
	if len(list) == 0 {
		return Credential{}, ErrNoCredentials
	}
	cursor := c.cursor[p]
	idx := cursor.Add(1) - 1
	return list[idx%uint64(len(list))], nil
}

// GetAccessToken returns the key for p. Config-file credentials are static;
// hosts with refreshable tokens wrap this with a TokenManager.
func (c *ConfigCredentials) GetAccessToken(_ context.Context, p provider.Format) (string, error) {
	cred, err := c.Pick(p)
	if err != nil {
		return "", err
	}
	return cred.Key, nil
}

// HasOpenAIWeb implements provider.CredentialChecker.
func (c *ConfigCredentials) HasOpenAIWeb() bool {
	return len(c.creds[provider.FormatOpenAIWeb]) > 0
}

// HasOpenAIKey implements provider.CredentialChecker.
func (c *ConfigCredentials) HasOpenAIKey() bool {
	return len(c.creds[provider.FormatOpenAI]) > 0
}
