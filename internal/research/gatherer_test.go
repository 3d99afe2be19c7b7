package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
)

type fakeProvider struct {
	name    string
	finding *Finding
	err     error
	calls   int
	query   Query
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Gather(_ context.Context, q Query) (*Finding, error) {
	f.calls++
	f.query = q
	return f.finding, f.err
}

func TestParseProviderOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"website,unknown,brave,website", []string{"website", "brave"}},
		{" Brave , WEBSITE ", []string{"brave", "website"}},
		{"jina,perplexity", []string{"jina", "perplexity"}},
		{"", []string{"website", "brave"}},
		{"nope,,", []string{"website", "brave"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseProviderOrder(tt.in), "input %q", tt.in)
	}

	// The default must not alias the package-level slice.
	got := ParseProviderOrder("")
	got[0] = "mutated"
	assert.Equal(t, ProviderWebsite, DefaultProviderOrder[0])
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                      "",
		"   ":                   "",
		"acmesaas.com":          "https://acmesaas.com",
		"  acmesaas.com/  ":     "https://acmesaas.com",
		"http://acme.io///":     "http://acme.io",
		"HTTPS://Acme.io/about": "HTTPS://Acme.io/about",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeURL(in), "input %q", in)
	}
}

func TestGatherer_StopsAtTargetChars(t *testing.T) {
	t.Parallel()

	website := &fakeProvider{name: ProviderWebsite, finding: &Finding{
		WebsiteContent: strings.Repeat("x", 3000),
		PagesFetched:   2,
		SourceURLs:     []string{"https://acme.io", "https://acme.io/about"},
	}}
	brave := &fakeProvider{name: ProviderBrave, finding: &Finding{SearchResults: "- hit"}}

	g := NewGatherer(NewRegistry(website, brave), Options{Order: []string{ProviderWebsite, ProviderBrave}})
	res, err := g.Research(context.Background(), lead.Lead{CompanyName: " Acme ", Website: "acme.io/"})
	require.NoError(t, err)

	assert.Equal(t, Query{CompanyName: "Acme", Website: "https://acme.io"}, website.query)
	assert.Zero(t, brave.calls)
	assert.Equal(t, []TraceEntry{
		{Provider: ProviderWebsite, Status: StatusSuccess, Chars: 3000},
		{Provider: "waterfall", Status: StatusStopThreshold, Chars: 3000},
	}, res.Trace)
	assert.Equal(t, 2, res.PagesFetched)
	assert.Equal(t, "website:success, waterfall:stop_threshold_reached", res.TraceSummary())
}

func TestGatherer_RunAllProviders(t *testing.T) {
	t.Parallel()

	website := &fakeProvider{name: ProviderWebsite, finding: &Finding{
		WebsiteContent: strings.Repeat("x", 3000),
		SourceURLs:     []string{"https://acme.io"},
	}}
	brave := &fakeProvider{name: ProviderBrave, finding: &Finding{
		SearchResults: "- Acme (https://acme.io)",
		SourceURLs:    []string{"https://acme.io", "https://news.example.com"},
	}}

	g := NewGatherer(NewRegistry(website, brave), Options{RunAllProviders: true})
	res, err := g.Research(context.Background(), lead.Lead{CompanyName: "Acme", Website: "acme.io"})
	require.NoError(t, err)

	assert.Equal(t, 1, brave.calls)
	assert.Equal(t, "website:success, brave:success", res.TraceSummary())
	assert.Equal(t, []string{"https://acme.io", "https://news.example.com"}, res.SourceURLs)
	assert.Equal(t, "- Acme (https://acme.io)", res.SearchResults)
}

func TestGatherer_MergesBelowTarget(t *testing.T) {
	t.Parallel()

	brave := &fakeProvider{name: ProviderBrave, finding: &Finding{SearchResults: "- one"}}
	jina := &fakeProvider{name: ProviderJina, finding: &Finding{SearchResults: "- two"}}

	g := NewGatherer(NewRegistry(brave, jina), Options{Order: []string{ProviderBrave, ProviderJina}})
	res, err := g.Research(context.Background(), lead.Lead{CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "- one\n\n- two", res.SearchResults)
	assert.True(t, res.HasContent())
}

func TestGatherer_ProviderOutcomes(t *testing.T) {
	t.Parallel()

	website := &fakeProvider{name: ProviderWebsite, err: ErrSkipped}
	brave := &fakeProvider{name: ProviderBrave, err: errors.New("brave: unexpected status 401")}
	jina := &fakeProvider{name: ProviderJina}
	pplx := &fakeProvider{name: ProviderPerplexity, finding: &Finding{}}

	order := []string{ProviderWebsite, ProviderBrave, ProviderJina, ProviderPerplexity, "unregistered"}
	g := NewGatherer(NewRegistry(website, brave, jina, pplx), Options{Order: order})
	res, err := g.Research(context.Background(), lead.Lead{CompanyName: "Acme"})
	require.NoError(t, err)

	assert.Equal(t, []TraceEntry{
		{Provider: ProviderWebsite, Status: StatusSkipped},
		{Provider: ProviderBrave, Status: StatusError, Detail: "brave: unexpected status 401"},
		{Provider: ProviderJina, Status: StatusNoContent},
		{Provider: ProviderPerplexity, Status: StatusNoContent},
		{Provider: "unregistered", Status: StatusSkipped, Detail: "not configured"},
	}, res.Trace)
	assert.Equal(t, []string{"brave: brave: unexpected status 401"}, res.Errors)
	assert.False(t, res.HasContent())
}

func TestGatherer_Cancelled(t *testing.T) {
	t.Parallel()

	website := &fakeProvider{name: ProviderWebsite}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewGatherer(NewRegistry(website), Options{}).Research(ctx, lead.Lead{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, res)
	assert.Zero(t, website.calls)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Research: config.ResearchConfig{Providers: "brave,perplexity,jina", TargetChars: 100, TimeoutSecs: 5},
		Brave:    config.BraveConfig{Key: "k"},
	}
	g := NewFromConfig(cfg)
	assert.Equal(t, []string{"brave", "perplexity", "jina"}, g.opts.Order)
	assert.Equal(t, 100, g.opts.TargetChars)
	for _, name := range []string{ProviderWebsite, ProviderBrave, ProviderJina, ProviderPerplexity} {
		assert.NotNil(t, g.registry.Get(name), name)
	}

	// Providers without keys skip.
	_, err := g.registry.Get(ProviderJina).Gather(context.Background(), Query{CompanyName: "Acme"})
	assert.ErrorIs(t, err, ErrSkipped)
}

func TestResult_PromptSection(t *testing.T) {
	t.Parallel()

	var empty *Result
	assert.Equal(t, "No web research data was available for this lead.", empty.PromptSection())
	assert.Empty(t, empty.TraceSummary())

	r := &Result{
		WebsiteContent: "[Homepage]\nAcme",
		SearchResults:  "- hit",
		SourceURLs:     []string{"https://acme.io"},
	}
	assert.Equal(t, "WEBSITE CONTENT:\n[Homepage]\nAcme\n\nSEARCH RESULTS:\n- hit\n\nSOURCES:\n- https://acme.io", r.PromptSection())
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, Dedupe([]string{"a", " ", "b", "a", ""}))
	assert.Nil(t, Dedupe(nil))
}
