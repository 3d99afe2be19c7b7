// Package research gathers live web evidence about a lead's company from an
// ordered waterfall of providers (company website, search APIs).
package research

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/brave"
	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/jina"
	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/perplexity"
)

// Provider names accepted in the provider order.
const (
	ProviderWebsite    = "website"
	ProviderBrave      = "brave"
	ProviderJina       = "jina"
	ProviderPerplexity = "perplexity"
)

// DefaultTargetChars is the combined content size at which the waterfall stops.
const DefaultTargetChars = 2500

// DefaultProviderOrder is used when no valid order is configured.
var DefaultProviderOrder = []string{ProviderWebsite, ProviderBrave}

var knownProviders = map[string]bool{
	ProviderWebsite:    true,
	ProviderBrave:      true,
	ProviderJina:       true,
	ProviderPerplexity: true,
}

// ErrSkipped is returned by a provider that has nothing to do for a query,
// e.g. a missing API key or website.
var ErrSkipped = errors.New("research: provider skipped")

// Query identifies the company being researched.
type Query struct {
	CompanyName string
	Website     string // normalized, may be empty
}

// Finding is what a single provider contributed.
type Finding struct {
	WebsiteContent string
	SearchResults  string
	PagesFetched   int
	SourceURLs     []string
}

func (f *Finding) chars() int {
	if f == nil {
		return 0
	}
	return len(f.WebsiteContent) + len(f.SearchResults)
}

// Provider supplies web evidence for a company. A nil Finding with a nil
// error means the provider ran but found nothing.
type Provider interface {
	Name() string
	Gather(ctx context.Context, q Query) (*Finding, error)
}

// Registry holds the available providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry with the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if none is registered.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// ParseProviderOrder parses a comma-separated provider list. Names are
// trimmed and lower-cased; unknown names and repeats are dropped. An empty
// result falls back to DefaultProviderOrder.
func ParseProviderOrder(raw string) []string {
	var order []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if !knownProviders[name] || seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	if len(order) == 0 {
		return append([]string(nil), DefaultProviderOrder...)
	}
	return order
}

// NormalizeURL trims raw, defaults the scheme to https, and strips trailing
// slashes. Blank input stays blank.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(u), "http://") && !strings.HasPrefix(strings.ToLower(u), "https://") {
		u = "https://" + u
	}
	return strings.TrimRight(u, "/")
}

// Options configures the waterfall.
type Options struct {
	Order           []string
	TargetChars     int
	RunAllProviders bool
}

// Gatherer runs providers in order for each lead, stopping once enough
// content has been collected. One Gatherer serves a single pipeline run.
type Gatherer struct {
	registry *Registry
	opts     Options
}

// NewGatherer creates a Gatherer.
func NewGatherer(registry *Registry, opts Options) *Gatherer {
	if len(opts.Order) == 0 {
		opts.Order = append([]string(nil), DefaultProviderOrder...)
	}
	if opts.TargetChars <= 0 {
		opts.TargetChars = DefaultTargetChars
	}
	return &Gatherer{registry: registry, opts: opts}
}

// NewFromConfig builds a Gatherer with every provider wired from cfg.
// Providers without credentials are registered but skip at run time.
func NewFromConfig(cfg *config.Config) *Gatherer {
	rc := cfg.Research
	website := NewWebsiteProvider(WebsiteOptions{
		Timeout:     time.Duration(rc.TimeoutSecs) * time.Second,
		Delay:       time.Duration(rc.DelaySecs * float64(time.Second)),
		MaxPages:    rc.MaxPages,
		MaxRequests: rc.MaxRequests,
		UserAgent:   rc.UserAgent,
	})

	var (
		braveClient brave.Client
		jinaClient  jina.Client
		pplxClient  perplexity.Client
	)
	httpClient := &http.Client{Timeout: time.Duration(rc.TimeoutSecs) * time.Second}
	if cfg.Brave.Key != "" {
		braveClient = brave.NewClient(cfg.Brave.Key, brave.WithBaseURL(cfg.Brave.BaseURL), brave.WithHTTPClient(httpClient))
	}
	if cfg.Jina.Key != "" {
		jinaClient = jina.NewClient(cfg.Jina.Key, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	if cfg.Perplexity.Key != "" {
		pplxClient = perplexity.New(perplexity.Config{
			APIKey:     cfg.Perplexity.Key,
			BaseURL:    cfg.Perplexity.BaseURL,
			Model:      cfg.Perplexity.Model,
			HTTPClient: httpClient,
		})
	}

	registry := NewRegistry(
		website,
		NewBraveProvider(braveClient, cfg.Brave.Count),
		NewJinaProvider(jinaClient),
		NewPerplexityProvider(pplxClient),
	)
	return NewGatherer(registry, Options{
		Order:           ParseProviderOrder(rc.Providers),
		TargetChars:     rc.TargetChars,
		RunAllProviders: rc.RunAllProviders,
	})
}

// Research runs the provider waterfall for l. Provider failures are recorded
// in the result and never returned; only context cancellation is.
func (g *Gatherer) Research(ctx context.Context, l lead.Lead) (*Result, error) {
	q := Query{
		CompanyName: strings.TrimSpace(l.CompanyName),
		Website:     NormalizeURL(l.Website),
	}
	log := zap.L().With(zap.String("company", l.DisplayName()))
	res := &Result{}

	for _, name := range g.opts.Order {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "research: cancelled")
		}

		p := g.registry.Get(name)
		if p == nil {
			res.Trace = append(res.Trace, TraceEntry{Provider: name, Status: StatusSkipped, Detail: "not configured"})
			continue
		}

		f, err := p.Gather(ctx, q)
		switch {
		case errors.Is(err, ErrSkipped):
			res.Trace = append(res.Trace, TraceEntry{Provider: name, Status: StatusSkipped})
			continue
		case err != nil:
			log.Warn("research: provider failed", zap.String("provider", name), zap.Error(err))
			res.Trace = append(res.Trace, TraceEntry{Provider: name, Status: StatusError, Detail: err.Error()})
			res.Errors = append(res.Errors, name+": "+err.Error())
		case f.chars() == 0:
			res.Trace = append(res.Trace, TraceEntry{Provider: name, Status: StatusNoContent})
			res.PagesFetched += pagesOf(f)
		default:
			res.merge(f)
			res.Trace = append(res.Trace, TraceEntry{Provider: name, Status: StatusSuccess, Chars: f.chars()})
			log.Debug("research: provider returned content",
				zap.String("provider", name),
				zap.Int("chars", f.chars()),
			)
		}

		if !g.opts.RunAllProviders && res.Chars() >= g.opts.TargetChars {
			res.Trace = append(res.Trace, TraceEntry{Provider: waterfallTraceSource, Status: StatusStopThreshold, Chars: res.Chars()})
			break
		}
	}

	log.Info("research: gathered",
		zap.String("providers", res.TraceSummary()),
		zap.Int("chars", res.Chars()),
		zap.Int("pages", res.PagesFetched),
	)
	return res, nil
}

func pagesOf(f *Finding) int {
	if f == nil {
		return 0
	}
	return f.PagesFetched
}

func (r *Result) merge(f *Finding) {
	r.WebsiteContent = joinBlocks(r.WebsiteContent, f.WebsiteContent)
	r.SearchResults = joinBlocks(r.SearchResults, f.SearchResults)
	r.PagesFetched += f.PagesFetched
	r.addSources(f.SourceURLs)
}

func joinBlocks(a, b string) string {
	switch {
	case strings.TrimSpace(b) == "":
		return a
	case strings.TrimSpace(a) == "":
		return b
	default:
		return a + "\n\n" + b
	}
}
