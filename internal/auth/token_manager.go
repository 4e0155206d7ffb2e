package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/provider"
)

// ErrTokenNotReady means no valid token exists and a refresh is running.
var ErrTokenNotReady = errors.New("token not ready, refresh in progress")

// RefreshFunc exchanges a long-lived credential for a short-lived access
// token. Supplied by the host per token-based provider.
type RefreshFunc func(ctx context.Context, cred Credential) (token string, expiresIn time.Duration, err error)

// TokenManagerConfig tunes refresh scheduling.
type TokenManagerConfig struct {
	RefreshBuffer  time.Duration
	MinValidTime   time.Duration
	RefreshTimeout time.Duration
}

func DefaultTokenManagerConfig() TokenManagerConfig {
	return TokenManagerConfig{
		RefreshBuffer:  5 * time.Minute,
		MinValidTime:   30 * time.Second,
		RefreshTimeout: 10 * time.Second,
	}
}

type tokenEntry struct {
	token      string
	expiresAt  time.Time
	refreshAt  time.Time
	refreshing bool
	cred       Credential
}

func (e *tokenEntry) valid(minValid time.Duration) bool {
	return e.token != "" && time.Now().Add(minValid).Before(e.expiresAt)
}

func (e *tokenEntry) needsRefresh() bool {
	return !e.refreshing && time.Now().After(e.refreshAt)
}

// TokenManager wraps a CredentialProvider for providers whose credentials
// are refreshable OAuth tokens (openai-web, antigravity). Concurrent
// refreshes for one provider collapse into a single flight; a token close
// to expiry is refreshed in the background while the current one is still
// served.
type TokenManager struct {
	base    *ConfigCredentials
	refresh map[provider.Format]RefreshFunc
	config  TokenManagerConfig

	mu      sync.RWMutex
	entries map[provider.Format]*tokenEntry
	sf      singleflight.Group
}

// NewTokenManager layers token refresh over base. Providers without a
// RefreshFunc pass through to the static key.
func NewTokenManager(base *ConfigCredentials, refresh map[provider.Format]RefreshFunc, cfg TokenManagerConfig) *TokenManager {
	if cfg.RefreshBuffer == 0 {
		cfg.RefreshBuffer = 5 * time.Minute
	}
	if cfg.MinValidTime == 0 {
		cfg.MinValidTime = 30 * time.Second
	}
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = 10 * time.Second
	}
	return &TokenManager{
		base:    base,
		refresh: refresh,
		config:  cfg,
		entries: make(map[provider.Format]*tokenEntry),
	}
}

// GetAllCredentials delegates to the underlying set.
func (m *TokenManager) GetAllCredentials() []Credential {
	return m.base.GetAllCredentials()
}

// GetAccessToken returns a valid access token for p, refreshing when
// needed. Static-key providers return the key unchanged.
func (m *TokenManager) GetAccessToken(ctx context.Context, p provider.Format) (string, error) {
	refreshFn, tokenBased := m.refresh[p]
	if !tokenBased {
		return m.base.GetAccessToken(ctx, p)
	}

	m.mu.RLock()
	entry, exists := m.entries[p]
	m.mu.RUnlock()

	if exists && entry.valid(m.config.MinValidTime) {
		if entry.needsRefresh() {
			m.scheduleRefresh(p, refreshFn)
		}
		return entry.token, nil
	}
	return m.refreshSync(ctx, p, refreshFn)
}

func (m *TokenManager) refreshSync(ctx context.Context, p provider.Format, refreshFn RefreshFunc) (string, error) {
	result, err, _ := m.sf.Do(string(p), func() (any, error) {
		m.mu.RLock()
		entry, exists := m.entries[p]
		m.mu.RUnlock()
		if exists && entry.valid(m.config.MinValidTime) {
			return entry.token, nil
		}

		cred, err := m.base.Pick(p)
		if err != nil {
			return "", err
		}
		refreshCtx, cancel := context.WithTimeout(ctx, m.config.RefreshTimeout)
		defer cancel()

		start := time.Now()
		token, expiresIn, err := refreshFn(refreshCtx, cred)
		if err != nil {
			logging.Warnf("token refresh failed for %s after %v: %v", p, time.Since(start), err)
			return "", err
		}
		logging.Debugf("token refresh for %s took %v", p, time.Since(start))
		m.store(p, cred, token, expiresIn)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (m *TokenManager) store(p provider.Format, cred Credential, token string, expiresIn time.Duration) {
	if token == "" || expiresIn <= 0 {
		return
	}
	now := time.Now()
	expiresAt := now.Add(expiresIn)
	refreshAt := expiresAt.Add(-m.config.RefreshBuffer)
	// Never schedule the refresh before the token's half-life.
	if halfLife := now.Add(expiresIn / 2); refreshAt.Before(halfLife) {
		refreshAt = halfLife
	}
	if refreshAt.Before(now) {
		refreshAt = now.Add(time.Minute)
	}
	m.mu.Lock()
	m.entries[p] = &tokenEntry{token: token, expiresAt: expiresAt, refreshAt: refreshAt, cred: cred}
	m.mu.Unlock()
}

func (m *TokenManager) scheduleRefresh(p provider.Format, refreshFn RefreshFunc) {
	m.mu.Lock()
	entry, ok := m.entries[p]
	if !ok || entry.refreshing {
		m.mu.Unlock()
		return
	}
	entry.refreshing = true
	cred := entry.cred
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			if e, exists := m.entries[p]; exists {
				e.refreshing = false
			}
			m.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), m.config.RefreshTimeout)
		defer cancel()
		token, expiresIn, err := refreshFn(ctx, cred)
		if err != nil {
			logging.Warnf("background token refresh failed for %s: %v", p, err)
			return
		}
		m.store(p, cred, token, expiresIn)
	}()
}
