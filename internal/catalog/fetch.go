package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/resilience"
)

// Source is one upstream model-list endpoint.
type Source struct {
	Provider provider.Format
	Key      string
	BaseURL  string
}

const fetchTimeout = 15 * time.Second

var fetchRetry = resilience.RetryConfig{
	MaxRetries:  2,
	BaseDelay:   time.Second,
	MaxDelay:    5 * time.Second,
	JitterDelay: 250 * time.Millisecond,
}

// NewProviderFetcher aggregates static entries (declared in config) with
// live listings from each source. A failing source logs and contributes
// nothing; the fetch fails only when every source fails and no static
// entries exist.
func NewProviderFetcher(static []ModelInfo, sources []Source) Fetcher {
	return func(ctx context.Context) ([]ModelInfo, error) {
		models := make([]ModelInfo, 0, len(static))
		models = append(models, static...)

		var fetched, failed int
		for _, src := range sources {
			listed, err := fetchSource(ctx, src)
			if err != nil {
				logging.Warnf("model list from %s failed: %v", src.Provider, err)
				failed++
				continue
			}
			fetched++
			models = append(models, listed...)
		}
		if len(models) == 0 && failed > 0 {
			return nil, fmt.Errorf("all %d catalog sources failed", failed)
		}
		logging.Debugf("catalog fetch: %d models from %d sources (%d static)",
			len(models), fetched, len(static))
		return models, nil
	}
}

func fetchSource(ctx context.Context, src Source) ([]ModelInfo, error) {
	executor := resilience.NewExecutor[[]ModelInfo](fetchRetry, nil)
	return executor.Execute(ctx, func() ([]ModelInfo, error) {
		return fetchOnce(ctx, src)
	})
}

func fetchOnce(ctx context.Context, src Source) ([]ModelInfo, error) {
	url, decorate := listRequest(src)
	if url == "" {
		return nil, fmt.Errorf("no model list endpoint for %s", src.Provider)
	}

	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	decorate(req)

	client, err := resilience.NewHTTPClient("", fetchTimeout)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s model list returned %d", src.Provider, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	return parseListing(src.Provider, body), nil
}

func listRequest(src Source) (string, func(*http.Request)) {
	switch src.Provider {
	case provider.FormatOpenAI:
		base := src.BaseURL
		if base == "" {
			base = "https://api.openai.com"
		}
		return base + "/v1/models", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+src.Key)
		}
	case provider.FormatClaude:
		base := src.BaseURL
		if base == "" {
			base = "https://api.anthropic.com"
		}
		return base + "/v1/models", func(r *http.Request) {
			r.Header.Set("x-api-key", src.Key)
			r.Header.Set("anthropic-version", "2023-06-01")
		}
	case provider.FormatGemini:
		base := src.BaseURL
		if base == "" {
			base = "https://generativelanguage.googleapis.com"
		}
		return base + "/v1beta/models", func(r *http.Request) {
			r.Header.Set("x-goog-api-key", src.Key)
		}
	}
	return "", nil
}

// parseListing lifts each provider's listing shape into ModelInfo.
func parseListing(p provider.Format, body []byte) []ModelInfo {
	var out []ModelInfo
	switch p {
	case provider.FormatOpenAI:
		for _, m := range gjson.GetBytes(body, "data").Array() {
			out = append(out, ModelInfo{
				ID:       m.Get("id").String(),
				Provider: string(p),
				OwnedBy:  m.Get("owned_by").String(),
				Created:  m.Get("created").Int(),
			})
		}
	case provider.FormatClaude:
		for _, m := range gjson.GetBytes(body, "data").Array() {
			out = append(out, ModelInfo{
				ID:          m.Get("id").String(),
				Provider:    string(p),
				DisplayName: m.Get("display_name").String(),
				OwnedBy:     "anthropic",
			})
		}
	case provider.FormatGemini:
		for _, m := range gjson.GetBytes(body, "models").Array() {
			id := m.Get("name").String()
			if len(id) > 7 && id[:7] == "models/" {
				id = id[7:]
			}
			out = append(out, ModelInfo{
				ID:            id,
				Provider:      string(p),
				DisplayName:   m.Get("displayName").String(),
				OwnedBy:       "google",
				ContextLength: int(m.Get("inputTokenLimit").Int()),
				MaxTokens:     int(m.Get("outputTokenLimit").Int()),
			})
		}
	}
	return out
}
