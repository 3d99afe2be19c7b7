package research

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/brave"
	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/jina"
	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/perplexity"
)

const maxSnippetChars = 300

// BraveProvider runs a Brave web search on the company name.
type BraveProvider struct {
	client brave.Client
	count  int
}

// NewBraveProvider creates a BraveProvider. A nil client skips every query.
func NewBraveProvider(client brave.Client, count int) *BraveProvider {
	return &BraveProvider{client: client, count: count}
}

// Name implements Provider.
func (p *BraveProvider) Name() string { return ProviderBrave }

// Gather implements Provider.
func (p *BraveProvider) Gather(ctx context.Context, q Query) (*Finding, error) {
	if p.client == nil || q.CompanyName == "" {
		return nil, ErrSkipped
	}
	resp, err := p.client.Search(ctx, q.CompanyName, brave.WithCount(p.count))
	if err != nil {
		return nil, eris.Wrap(err, "brave search")
	}

	hits := make([]searchHit, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		hits = append(hits, searchHit{title: r.Title, snippet: r.Description, url: r.URL})
	}
	return hitsFinding(hits), nil
}

// JinaProvider runs a Jina search on the company name.
type JinaProvider struct {
	client jina.Client
}

// NewJinaProvider creates a JinaProvider. A nil client skips every query.
func NewJinaProvider(client jina.Client) *JinaProvider {
	return &JinaProvider{client: client}
}

// Name implements Provider.
func (p *JinaProvider) Name() string { return ProviderJina }

// Gather implements Provider.
func (p *JinaProvider) Gather(ctx context.Context, q Query) (*Finding, error) {
	if p.client == nil || q.CompanyName == "" {
		return nil, ErrSkipped
	}
	resp, err := p.client.Search(ctx, q.CompanyName)
	if err != nil {
		return nil, eris.Wrap(err, "jina search")
	}

	hits := make([]searchHit, 0, len(resp.Data))
	for _, r := range resp.Data {
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		hits = append(hits, searchHit{title: r.Title, snippet: snippet, url: r.URL})
	}
	return hitsFinding(hits), nil
}

// PerplexityProvider asks Perplexity for a sourced company overview.
type PerplexityProvider struct {
	client perplexity.Client
}

// NewPerplexityProvider creates a PerplexityProvider. A nil client skips
// every query.
func NewPerplexityProvider(client perplexity.Client) *PerplexityProvider {
	return &PerplexityProvider{client: client}
}

// Name implements Provider.
func (p *PerplexityProvider) Name() string { return ProviderPerplexity }

// Gather implements Provider.
func (p *PerplexityProvider) Gather(ctx context.Context, q Query) (*Finding, error) {
	if p.client == nil || q.CompanyName == "" {
		return nil, ErrSkipped
	}

	ov, err := p.client.Overview(ctx, q.CompanyName, q.Website)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity overview")
	}
	if ov.Text == "" {
		return nil, nil
	}
	return &Finding{
		SearchResults: "Overview: " + ov.Text,
		SourceURLs:    ov.Citations,
	}, nil
}

type searchHit struct {
	title, snippet, url string
}

// hitsFinding renders hits as "- title: snippet (url)" lines.
func hitsFinding(hits []searchHit) *Finding {
	var lines, urls []string
	for _, h := range hits {
		title := strings.TrimSpace(h.title)
		if title == "" && h.url == "" {
			continue
		}
		line := "- " + title
		if s := clip(strings.Join(strings.Fields(h.snippet), " "), maxSnippetChars); s != "" {
			line += ": " + s
		}
		if h.url != "" {
			line += " (" + h.url + ")"
			urls = append(urls, h.url)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil
	}
	return &Finding{SearchResults: strings.Join(lines, "\n"), SourceURLs: urls}
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
