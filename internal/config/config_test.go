package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
port: 9000
api-keys:
  - " key-1 "
  - ""
providers:
  - type: anthropic
    api-key: sk-ant-test
  - type: gemini
    enabled: false
    api-key: unused
model-routes:
  fast:
    target: "claude-haiku-4:anthropic"
    fallbacks: ["gemini-2.5-flash"]
openai-fallback: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("port = %d", cfg.Port)
	}
	if len(cfg.APIKeys) != 1 || cfg.APIKeys[0] != "key-1" {
		t.Fatalf("api keys = %v", cfg.APIKeys)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Type != ProviderTypeAnthropic {
		t.Fatalf("providers = %+v, disabled entry must be dropped", cfg.Providers)
	}
	route, ok := cfg.ModelRoutes["fast"]
	if !ok || route.Target != "claude-haiku-4:anthropic" || len(route.Fallbacks) != 1 {
		t.Fatalf("route = %+v", route)
	}
	if !cfg.OpenAIFallback {
		t.Fatal("openai-fallback not parsed")
	}
}

func TestLoadConfigJSONWithComments(t *testing.T) {
	path := writeFile(t, "config.json", `{
  // generated by the management UI
  "port": 8080,
  "providers": [
    {"type": "openai", "api-key": "sk-test"},
  ],
}`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || len(cfg.Providers) != 1 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigOptionalMissing(t *testing.T) {
	cfg, err := LoadConfigOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || cfg != nil {
		t.Fatalf("got %+v, %v", cfg, err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LLM_BRIDGE_PORT", "7777")
	t.Setenv("LLM_BRIDGE_API_KEYS", "a, b ,")
	t.Setenv("LLM_BRIDGE_DEBUG", "true")
	cfg := NewDefaultConfig()
	ApplyEnvOverrides(cfg)
	if cfg.Port != 7777 || !cfg.Debug {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[1] != "b" {
		t.Fatalf("api keys = %v", cfg.APIKeys)
	}
}

func TestProviderValidation(t *testing.T) {
	p := Provider{Type: ProviderTypeOpenAI, BaseURL: "https://example.com/v1", APIKey: "k"}
	if err := p.Validate(); err == nil {
		t.Fatal("custom base-url without models must fail validation")
	}
	p.Models = []ProviderModel{{Name: "m"}}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
}
