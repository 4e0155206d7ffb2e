// Package router resolves a requested model name to the upstream provider
// that should serve it, plus any fallback targets.
package router

import (
	"context"
	"strings"
	"time"

	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/provider"
)

// catalogTimeout bounds the catalog lookup step; on expiry resolution
// falls through to pattern inference.
const catalogTimeout = 10 * time.Second

// Catalog is the model catalog the router consults between static routes
// and pattern inference.
type Catalog interface {
	ResolveProvider(name string) (provider.Format, error)
	HasModel(name string) bool
	Refresh(ctx context.Context) error
}

// Target is one (provider, model) pair.
type Target struct {
	Provider provider.Format
	Model    string
}

// Resolution is the router's answer for one model name. Source records
// which rule matched: explicit, static, lookup, inference, or default.
type Resolution struct {
	Provider  provider.Format
	Model     string
	Fallbacks []Target
	Source    string
}

// Route is one user-configured static mapping. Target strings may carry a
// ":provider" suffix; without one the catalog or inference picks the
// provider.
type Route struct {
	Target    string
	Fallbacks []string
}

// Router resolves model names. Safe for concurrent use; the route table is
// fixed at construction.
type Router struct {
	routes  map[string]Route
	catalog Catalog
	creds   provider.CredentialChecker

	// openaiFallback appends a standard-openai fallback whenever the
	// primary resolves to openai-web and both credential classes exist.
	openaiFallback bool
}

// Config configures a Router. Catalog and Credentials may be nil; the
// corresponding steps are then skipped.
type Config struct {
	Routes         map[string]Route
	Catalog        Catalog
	Credentials    provider.CredentialChecker
	OpenAIFallback bool
}

func New(cfg Config) *Router {
	return &Router{
		routes:         cfg.Routes,
		catalog:        cfg.Catalog,
		creds:          cfg.Credentials,
		openaiFallback: cfg.OpenAIFallback,
	}
}

// Resolve maps model to an upstream target. Resolution order: explicit
// ":provider" suffix, static route table, catalog lookup, pattern
// inference, default openai.
func (r *Router) Resolve(ctx context.Context, model string) Resolution {
	return r.resolve(ctx, model, true)
}

// ResolveSync is Resolve without the catalog lookup step, for paths that
// cannot block on catalog I/O.
func (r *Router) ResolveSync(model string) Resolution {
	return r.resolve(context.Background(), model, false)
}

func (r *Router) resolve(ctx context.Context, model string, useCatalog bool) Resolution {
	if base, prov, ok := splitExplicit(model); ok {
		return r.finish(Resolution{Provider: prov, Model: base, Source: "explicit"})
	}

	if route, ok := r.routes[model]; ok {
		res := Resolution{Source: "static"}
		primary := r.resolveTarget(ctx, route.Target, useCatalog)
		res.Provider = primary.Provider
		res.Model = primary.Model
		for _, fb := range route.Fallbacks {
			res.Fallbacks = append(res.Fallbacks, r.resolveTarget(ctx, fb, useCatalog))
		}
		return r.finish(res)
	}

	if useCatalog {
		if prov := r.lookupCatalog(ctx, model); prov != provider.FormatUnknown {
			return r.finish(Resolution{Provider: prov, Model: model, Source: "lookup"})
		}
	}

	if prov, ok := r.infer(model); ok {
		return r.finish(Resolution{Provider: prov, Model: model, Source: "inference"})
	}

	return r.finish(Resolution{Provider: provider.FormatOpenAI, Model: model, Source: "default"})
}

// resolveTarget resolves one static-route target string through the same
// suffix/catalog/inference chain, minus the route table itself.
func (r *Router) resolveTarget(ctx context.Context, target string, useCatalog bool) Target {
	if base, prov, ok := splitExplicit(target); ok {
		return Target{Provider: prov, Model: base}
	}
	if useCatalog {
		if prov := r.lookupCatalog(ctx, target); prov != provider.FormatUnknown {
			return Target{Provider: prov, Model: target}
		}
	}
	if prov, ok := r.infer(target); ok {
		return Target{Provider: prov, Model: target}
	}
	return Target{Provider: provider.FormatOpenAI, Model: target}
}

func (r *Router) lookupCatalog(ctx context.Context, model string) provider.Format {
	if r.catalog == nil {
		return provider.FormatUnknown
	}
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	if err := r.catalog.Refresh(ctx); err != nil {
		logging.Debugf("catalog refresh during resolve failed: %v", err)
	}
	if ctx.Err() != nil {
		return provider.FormatUnknown
	}
	prov, err := r.catalog.ResolveProvider(model)
	if err != nil {
		// Ambiguity is not fatal; resolution falls through to inference.
		logging.Debugf("catalog lookup for %q: %v", model, err)
		return provider.FormatUnknown
	}
	return prov
}

// infer applies the name-shape rules. Order matters: the antigravity
// prefixes shadow the plain gemini prefix.
func (r *Router) infer(model string) (provider.Format, bool) {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gemini-claude-"), strings.HasPrefix(lower, "gemini-3-"):
		return provider.FormatAntigravity, true
	case strings.HasPrefix(lower, "claude-"), strings.Contains(lower, "claude"):
		return provider.FormatClaude, true
	case strings.HasPrefix(lower, "gemini-"):
		return provider.FormatGemini, true
	case strings.HasPrefix(lower, "gpt-"),
		strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"),
		strings.HasPrefix(lower, "o4"),
		strings.Contains(lower, "codex"):
		return r.openAIFamily(), true
	}
	return provider.FormatUnknown, false
}

// openAIFamily picks web vs standard for an OpenAI-shaped name based on
// which credentials exist.
func (r *Router) openAIFamily() provider.Format {
	if r.creds != nil && r.creds.HasOpenAIWeb() {
		return provider.FormatOpenAIWeb
	}
	return provider.FormatOpenAI
}

// finish applies the openai-web dual-credential fallback.
func (r *Router) finish(res Resolution) Resolution {
	if !r.openaiFallback || res.Provider != provider.FormatOpenAIWeb {
		return res
	}
	if r.creds == nil || !r.creds.HasOpenAIWeb() || !r.creds.HasOpenAIKey() {
		return res
	}
	for _, fb := range res.Fallbacks {
		if fb.Provider == provider.FormatOpenAI {
			return res
		}
	}
	res.Fallbacks = append(res.Fallbacks, Target{Provider: provider.FormatOpenAI, Model: res.Model})
	return res
}

// splitExplicit recognizes the "base:provider" form. The suffix is the
// last colon-separated segment and must name a known dialect; anything
// else is treated as part of the model name.
func splitExplicit(model string) (base string, prov provider.Format, ok bool) {
	idx := strings.LastIndexByte(model, ':')
	if idx <= 0 || idx == len(model)-1 {
		return "", provider.FormatUnknown, false
	}
	prov = provider.FromString(model[idx+1:])
	if prov == provider.FormatUnknown {
		return "", provider.FormatUnknown, false
	}
	return model[:idx], prov, true
}
