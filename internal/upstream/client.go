package upstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bridgekit/llm-bridge/internal/auth"
	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/resilience"
	"github.com/bridgekit/llm-bridge/internal/store"
)

// Default endpoints per provider family; a credential's BaseURL overrides.
const (
	defaultOpenAIBase      = "https://api.openai.com"
	defaultOpenAIWebBase   = "https://chatgpt.com/backend-api/codex"
	defaultClaudeBase      = "https://api.anthropic.com"
	defaultGeminiBase      = "https://generativelanguage.googleapis.com"
	defaultAntigravityBase = "https://cloudcode-pa.googleapis.com"

	anthropicVersion = "2023-06-01"

	defaultIdleTimeout = 3 * time.Minute
)

// Client performs upstream HTTP calls. One Client serves all providers;
// per-provider state (breakers) is created lazily.
type Client struct {
	creds  *auth.ConfigCredentials
	tokens auth.CredentialProvider

	budget *resilience.RetryBudget

	mu       sync.Mutex
	breakers map[provider.Format]*resilience.StreamingCircuitBreaker

	retryCfg    resilience.RetryConfig
	idleTimeout time.Duration

	// signatures pins antigravity sessions to their issuing credential.
	signatures *store.SignatureStore
}

// NewClient builds a client. tokens may be a TokenManager layered over
// creds; nil means creds serve tokens directly.
func NewClient(creds *auth.ConfigCredentials, tokens auth.CredentialProvider) *Client {
	if tokens == nil {
		tokens = creds
	}
	return &Client{
		creds:       creds,
		tokens:      tokens,
		budget:      resilience.NewRetryBudget(50),
		breakers:    make(map[provider.Format]*resilience.StreamingCircuitBreaker),
		retryCfg:    resilience.DefaultRetryConfig,
		idleTimeout: defaultIdleTimeout,
	}
}

func (c *Client) breaker(p provider.Format) *resilience.StreamingCircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[p]
	if !ok {
		cfg := resilience.DefaultBreakerConfig(string(p))
		cfg.IsSuccessful = func(err error) bool {
			if err == nil {
				return true
			}
			// Client-side errors must not trip the provider breaker.
			if se, ok := err.(*StatusError); ok {
				return se.StatusCode < 500 && se.StatusCode != 429
			}
			return false
		}
		b = resilience.NewStreamingCircuitBreaker(cfg)
		c.breakers[p] = b
	}
	return b
}

// endpoint builds the request URL for a provider call.
func endpoint(p provider.Format, base, model string, stream bool) string {
	switch p {
	case provider.FormatOpenAI:
		if base == "" {
			base = defaultOpenAIBase
		}
		return base + "/v1/chat/completions"
	case provider.FormatOpenAIResponses, provider.FormatOpenAIWeb:
		if base == "" {
			base = defaultOpenAIWebBase
		}
		return base + "/responses"
	case provider.FormatClaude:
		if base == "" {
			base = defaultClaudeBase
		}
		return base + "/v1/messages"
	case provider.FormatGemini:
		if base == "" {
			base = defaultGeminiBase
		}
		action := ":generateContent"
		if stream {
			action = ":streamGenerateContent?alt=sse"
		}
		return base + "/v1beta/models/" + model + action
	case provider.FormatAntigravity:
		if base == "" {
			base = defaultAntigravityBase
		}
		action := ":generateContent"
		if stream {
			action = ":streamGenerateContent?alt=sse"
		}
		return base + "/v1internal" + action
	}
	return base
}

func (c *Client) newRequest(ctx context.Context, p provider.Format, model string, body []byte, stream bool) (*http.Request, auth.Credential, error) {
	cred, pinned := c.pinCredential(p, body)
	if !pinned {
		var err error
		cred, err = c.creds.Pick(p)
		if err != nil {
			return nil, cred, err
		}
	}
	token, err := c.tokens.GetAccessToken(ctx, p)
	if err != nil {
		return nil, cred, err
	}
	if pinned {
		token = cred.Key
	}

	url := endpoint(p, cred.BaseURL, model, stream)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, cred, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", acceptEncoding)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	switch p {
	case provider.FormatClaude:
		req.Header.Set("x-api-key", token)
		req.Header.Set("anthropic-version", anthropicVersion)
	case provider.FormatGemini:
		if strings.HasPrefix(token, "ya29.") {
			req.Header.Set("Authorization", "Bearer "+token)
		} else {
			req.Header.Set("x-goog-api-key", token)
		}
	default:
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range cred.Headers {
		req.Header.Set(k, v)
	}
	return req, cred, nil
}

// Complete performs a non-streaming call with retry and backoff. The
// returned bytes are the decoded upstream response body.
func (c *Client) Complete(ctx context.Context, p provider.Format, model string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryCfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if !c.budget.TryAcquire() {
				logging.Warnf("%s: retry budget exhausted", p)
				break
			}
			delay := resilience.CalculateBackoff(attempt-1, c.retryCfg.BaseDelay, c.retryCfg.MaxDelay)
			budgetErr := resilience.WaitWithContext(ctx, delay)
			c.budget.Release()
			if budgetErr != nil {
				return nil, budgetErr
			}
		}
		data, err := c.completeOnce(ctx, p, model, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if se, ok := err.(*StatusError); ok && !se.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.Debugf("%s: attempt %d failed: %v", p, attempt+1, err)
	}
	return nil, lastErr
}

func (c *Client) completeOnce(ctx context.Context, p provider.Format, model string, body []byte) ([]byte, error) {
	req, cred, err := c.newRequest(ctx, p, model, body, false)
	if err != nil {
		return nil, err
	}
	client, err := resilience.NewHTTPClient(cred.ProxyURL, 0)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, handleHTTPError(resp, string(p))
	}
	decoded, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	defer decoded.Close()
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, err
	}
	c.recordSignatures(p, cred, data)
	return data, nil
}

// StreamHandle is one admitted upstream stream. Finish must be called
// exactly once with the stream's outcome; it records the breaker result
// and closes the body.
type StreamHandle struct {
	Body io.ReadCloser

	done     func(success bool)
	doneOnce sync.Once
}

// Finish records the outcome and releases the stream.
func (h *StreamHandle) Finish(success bool) {
	h.doneOnce.Do(func() {
		h.Body.Close()
		if h.done != nil {
			h.done(success)
		}
	})
}

// Stream opens a streaming call. The breaker may reject immediately when
// the provider is unhealthy.
func (c *Client) Stream(ctx context.Context, p provider.Format, model string, body []byte) (*StreamHandle, error) {
	done, err := c.breaker(p).Allow()
	if err != nil {
		return nil, NewStatusError(http.StatusServiceUnavailable, "provider circuit open: "+err.Error(), nil)
	}

	req, cred, reqErr := c.newRequest(ctx, p, model, body, true)
	if reqErr != nil {
		done(false)
		return nil, reqErr
	}
	client, clientErr := resilience.NewHTTPClient(cred.ProxyURL, 0)
	if clientErr != nil {
		done(false)
		return nil, clientErr
	}
	resp, doErr := client.Do(req)
	if doErr != nil {
		done(false)
		return nil, doErr
	}
	if resp.StatusCode >= 400 {
		statusErr := handleHTTPError(resp, string(p))
		resp.Body.Close()
		done(statusErr.StatusCode < 500 && statusErr.StatusCode != 429)
		return nil, statusErr
	}

	decoded, decErr := decodeBody(resp)
	if decErr != nil {
		resp.Body.Close()
		done(false)
		return nil, decErr
	}
	reader := NewStreamReader(ctx, decoded, c.idleTimeout, string(p))
	return &StreamHandle{Body: reader, done: done}, nil
}
