// Package config loads and watches the gateway configuration file. YAML is
// the primary format; JSON with comments is accepted for generated configs.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/logging"
)

// ModelRoute is one static routing entry: a requested model name mapped to
// a primary target plus fallbacks. Target strings may carry a ":provider"
// suffix.
type ModelRoute struct {
	Target    string   `yaml:"target" json:"target"`
	Fallbacks []string `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
}

// UsageConfig configures request accounting.
type UsageConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	DSN           string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	RetentionDays int    `yaml:"retention-days,omitempty" json:"retention-days,omitempty"`
}

// SignatureStoreConfig configures the Antigravity session-signature store.
type SignatureStoreConfig struct {
	Capacity int    `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	TTLHours int    `yaml:"ttl-hours,omitempty" json:"ttl-hours,omitempty"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Config is the root configuration.
type Config struct {
	Host          string   `yaml:"host,omitempty" json:"host,omitempty"`
	Port          int      `yaml:"port" json:"port"`
	Debug         bool     `yaml:"debug,omitempty" json:"debug,omitempty"`
	LoggingToFile bool     `yaml:"logging-to-file,omitempty" json:"logging-to-file,omitempty"`
	LogDir        string   `yaml:"log-dir,omitempty" json:"log-dir,omitempty"`
	APIKeys       []string `yaml:"api-keys,omitempty" json:"api-keys,omitempty"`
	DisableAuth   bool     `yaml:"disable-auth,omitempty" json:"disable-auth,omitempty"`
	ProxyURL      string   `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`

	Providers []Provider `yaml:"providers,omitempty" json:"providers,omitempty"`

	// ModelRoutes is consulted by the router after the explicit-suffix rule.
	ModelRoutes map[string]ModelRoute `yaml:"model-routes,omitempty" json:"model-routes,omitempty"`

	// OpenAIFallback appends a standard-openai fallback behind openai-web
	// primaries when both credential classes exist.
	OpenAIFallback bool `yaml:"openai-fallback,omitempty" json:"openai-fallback,omitempty"`

	CatalogCachePath string               `yaml:"catalog-cache,omitempty" json:"catalog-cache,omitempty"`
	SignatureStore   SignatureStoreConfig `yaml:"signature-store,omitempty" json:"signature-store,omitempty"`
	Usage            UsageConfig          `yaml:"usage,omitempty" json:"usage,omitempty"`

	RequestRetry     int `yaml:"request-retry,omitempty" json:"request-retry,omitempty"`
	MaxRetryInterval int `yaml:"max-retry-interval,omitempty" json:"max-retry-interval,omitempty"`
}

// NewDefaultConfig returns a config that serves on the default port with
// no providers.
func NewDefaultConfig() *Config {
	return &Config{
		Port:             8317,
		RequestRetry:     3,
		MaxRetryInterval: 30,
		Usage:            UsageConfig{Enabled: true, RetentionDays: 30},
	}
}

// LoadDotEnv loads a .env file next to the working directory if present.
func LoadDotEnv(dir string) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warnf("failed to load .env file: %v", err)
		}
	}
}

// LoadConfig reads and validates the config at path. A ".json" extension
// selects JWCC (JSON with comments and trailing commas); anything else is
// parsed as YAML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := NewDefaultConfig()
	if strings.HasSuffix(path, ".json") {
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(std, cfg); err != nil {
			return nil, err
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.sanitize()
	return cfg, nil
}

// LoadConfigOptional is LoadConfig that tolerates a missing file, returning
// nil in that case.
func LoadConfigOptional(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return cfg, err
}

func (cfg *Config) sanitize() {
	if cfg.Port <= 0 {
		cfg.Port = 8317
	}
	keys := cfg.APIKeys[:0]
	for _, k := range cfg.APIKeys {
		if trimmed := strings.TrimSpace(k); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	cfg.APIKeys = keys
	cfg.Providers = SanitizeProviders(cfg.Providers)
	for name, route := range cfg.ModelRoutes {
		route.Target = strings.TrimSpace(route.Target)
		if route.Target == "" {
			delete(cfg.ModelRoutes, name)
			continue
		}
		cfg.ModelRoutes[name] = route
	}
}

// ApplyEnvOverrides applies LLM_BRIDGE_* environment overrides, for
// deployments where the config file is baked into an image.
func ApplyEnvOverrides(cfg *Config) {
	if v, ok := lookupInt("LLM_BRIDGE_PORT"); ok {
		cfg.Port = v
	}
	if v, ok := lookupBool("LLM_BRIDGE_DEBUG"); ok {
		cfg.Debug = v
	}
	if v, ok := lookupBool("LLM_BRIDGE_DISABLE_AUTH"); ok {
		cfg.DisableAuth = v
	}
	if v, ok := os.LookupEnv("LLM_BRIDGE_API_KEYS"); ok {
		cfg.APIKeys = nil
		for _, k := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(k); trimmed != "" {
				cfg.APIKeys = append(cfg.APIKeys, trimmed)
			}
		}
	}
	if v, ok := os.LookupEnv("LLM_BRIDGE_PROXY_URL"); ok {
		cfg.ProxyURL = v
	}
	if v, ok := os.LookupEnv("LLM_BRIDGE_USAGE_DSN"); ok {
		cfg.Usage.DSN = v
	}
	if v, ok := lookupInt("LLM_BRIDGE_USAGE_RETENTION_DAYS"); ok {
		cfg.Usage.RetentionDays = v
	}
	if v, ok := lookupBool("LLM_BRIDGE_LOGGING_TO_FILE"); ok {
		cfg.LoggingToFile = v
	}
	if v, ok := lookupInt("LLM_BRIDGE_REQUEST_RETRY"); ok {
		cfg.RequestRetry = v
	}
	if v, ok := lookupInt("LLM_BRIDGE_MAX_RETRY_INTERVAL"); ok {
		cfg.MaxRetryInterval = v
	}
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}

// Watch reloads the config whenever the file changes and invokes onReload
// with the fresh config. Editor save patterns (rename, chmod bursts) are
// debounced. The watcher stops when stop is closed.
func Watch(path string, stop <-chan struct{}, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		var timer *time.Timer
		reload := func() {
			cfg, err := LoadConfig(path)
			if err != nil {
				logging.Warnf("config reload skipped: %v", err)
				return
			}
			ApplyEnvOverrides(cfg)
			onReload(cfg)
			logging.Infof("config reloaded from %s", path)
		}
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(200*time.Millisecond, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warnf("config watcher error: %v", err)
			}
		}
	}()
	return nil
}

// NormalizeHeaders trims header keys and values and drops empty pairs.
func NormalizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
