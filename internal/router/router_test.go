package router

import (
	"context"
	"testing"

	"github.com/bridgekit/llm-bridge/internal/catalog"
	"github.com/bridgekit/llm-bridge/internal/provider"
)

func testCatalog(models ...catalog.ModelInfo) *catalog.Catalog {
	c := catalog.New(nil, "")
	c.Replace(models)
	return c
}

func TestResolveExplicitSuffix(t *testing.T) {
	r := New(Config{})
	res := r.Resolve(context.Background(), "my-tuned-model:anthropic")
	if res.Provider != provider.FormatClaude {
		t.Fatalf("provider = %q, want claude", res.Provider)
	}
	if res.Model != "my-tuned-model" {
		t.Fatalf("model = %q", res.Model)
	}
	if res.Source != "explicit" {
		t.Fatalf("source = %q", res.Source)
	}
}

func TestResolveExplicitSuffixUnknownProviderIgnored(t *testing.T) {
	r := New(Config{})
	res := r.Resolve(context.Background(), "llama3:70b")
	if res.Source == "explicit" {
		t.Fatal("unknown suffix should not match the explicit rule")
	}
	if res.Model != "llama3:70b" {
		t.Fatalf("model = %q, colon segment must stay part of the name", res.Model)
	}
}

func TestResolveStaticRouteWithFallbacks(t *testing.T) {
	r := New(Config{
		Routes: map[string]Route{
			"fast": {Target: "claude-haiku-4:anthropic", Fallbacks: []string{"gemini-2.5-flash"}},
		},
	})
	res := r.Resolve(context.Background(), "fast")
	if res.Source != "static" {
		t.Fatalf("source = %q", res.Source)
	}
	if res.Provider != provider.FormatClaude || res.Model != "claude-haiku-4" {
		t.Fatalf("primary = %s/%s", res.Provider, res.Model)
	}
	if len(res.Fallbacks) != 1 {
		t.Fatalf("fallbacks = %d", len(res.Fallbacks))
	}
	if res.Fallbacks[0].Provider != provider.FormatGemini {
		t.Fatalf("fallback provider = %q", res.Fallbacks[0].Provider)
	}
}

func TestResolveCatalogLookup(t *testing.T) {
	r := New(Config{
		Catalog: testCatalog(catalog.ModelInfo{ID: "grok-like-model", Provider: "openai"}),
	})
	res := r.Resolve(context.Background(), "grok-like-model")
	if res.Source != "lookup" || res.Provider != provider.FormatOpenAI {
		t.Fatalf("got %s via %q", res.Provider, res.Source)
	}
}

func TestResolveCatalogAmbiguityFallsThroughToInference(t *testing.T) {
	// Two providers share the prefix; the catalog must refuse to guess and
	// the router must fall through to the name-shape rules.
	r := New(Config{
		Catalog: testCatalog(
			catalog.ModelInfo{ID: "claude-sonnet-4-5", Provider: "claude"},
			catalog.ModelInfo{ID: "claude-sonnet-4-5-vertex", Provider: "gemini"},
		),
	})
	res := r.Resolve(context.Background(), "claude-sonnet")
	if res.Source != "inference" {
		t.Fatalf("source = %q, want inference", res.Source)
	}
	if res.Provider != provider.FormatClaude {
		t.Fatalf("provider = %q", res.Provider)
	}
}

func TestResolveSyncSkipsCatalog(t *testing.T) {
	r := New(Config{
		Catalog: testCatalog(catalog.ModelInfo{ID: "house-model", Provider: "gemini"}),
	})
	res := r.ResolveSync("house-model")
	if res.Source == "lookup" {
		t.Fatal("sync resolution must not consult the catalog")
	}
	if res.Provider != provider.FormatOpenAI || res.Source != "default" {
		t.Fatalf("got %s via %q, want openai default", res.Provider, res.Source)
	}
}

func TestInferencePatterns(t *testing.T) {
	r := New(Config{Credentials: provider.StaticCredentials{OpenAIKey: true}})
	cases := []struct {
		model string
		want  provider.Format
	}{
		{"claude-opus-4", provider.FormatClaude},
		{"gemini-claude-sonnet", provider.FormatAntigravity},
		{"gemini-3-pro", provider.FormatAntigravity},
		{"gemini-2.5-pro", provider.FormatGemini},
		{"gpt-5", provider.FormatOpenAI},
		{"o3-mini", provider.FormatOpenAI},
		{"codex-mini-latest", provider.FormatOpenAI},
	}
	for _, tc := range cases {
		res := r.ResolveSync(tc.model)
		if res.Provider != tc.want {
			t.Errorf("%s: provider = %q, want %q", tc.model, res.Provider, tc.want)
		}
		if res.Source != "inference" {
			t.Errorf("%s: source = %q", tc.model, res.Source)
		}
	}
}

func TestOpenAIWebDisambiguationAndFallback(t *testing.T) {
	r := New(Config{
		Credentials:    provider.StaticCredentials{OpenAIWeb: true, OpenAIKey: true},
		OpenAIFallback: true,
	})
	res := r.ResolveSync("gpt-5-codex")
	if res.Provider != provider.FormatOpenAIWeb {
		t.Fatalf("provider = %q, want openai-web", res.Provider)
	}
	if len(res.Fallbacks) != 1 || res.Fallbacks[0].Provider != provider.FormatOpenAI {
		t.Fatalf("fallbacks = %+v, want standard openai appended", res.Fallbacks)
	}
	if res.Fallbacks[0].Model != "gpt-5-codex" {
		t.Fatalf("fallback model = %q", res.Fallbacks[0].Model)
	}
}

func TestOpenAIWebNoFallbackWithoutKey(t *testing.T) {
	r := New(Config{
		Credentials:    provider.StaticCredentials{OpenAIWeb: true},
		OpenAIFallback: true,
	})
	res := r.ResolveSync("gpt-5")
	if res.Provider != provider.FormatOpenAIWeb {
		t.Fatalf("provider = %q", res.Provider)
	}
	if len(res.Fallbacks) != 0 {
		t.Fatalf("fallbacks = %+v, want none without a standard key", res.Fallbacks)
	}
}

func TestResolveDefault(t *testing.T) {
	r := New(Config{})
	res := r.Resolve(context.Background(), "totally-unknown-model")
	if res.Provider != provider.FormatOpenAI || res.Source != "default" {
		t.Fatalf("got %s via %q", res.Provider, res.Source)
	}
}
