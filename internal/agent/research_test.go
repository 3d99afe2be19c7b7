package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/llm"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/research"
)

func TestResearchAgent_WithWebResearch(t *testing.T) {
	t.Parallel()

	l := lead.Lead{
		CompanyName: "Acme SaaS Corp",
		Website:     "acmesaas.com/",
		Notes:       strings.Repeat("Series B, 200 employees, expanding sales team. ", 3),
	}
	web := &research.Result{
		WebsiteContent: "[Homepage]\nAcme builds workflow tools",
		SearchResults:  "- Acme raises Series B: funding news (https://news.example.com/acme)",
		PagesFetched:   2,
		SourceURLs:     []string{"https://acmesaas.com", "https://acmesaas.com/about", "https://news.example.com/acme"},
		Trace:          []research.TraceEntry{{Provider: "website", Status: research.StatusSuccess}, {Provider: "brave", Status: research.StatusSuccess}},
	}

	researcher := new(mockResearcher)
	researcher.On("Research", mock.Anything, l).Return(web, nil)
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return !req.Structured && req.System == researchSystemPrompt &&
			strings.Contains(req.Prompt, "WEBSITE CONTENT:") &&
			strings.Contains(req.Prompt, "Data quality: HIGH")
	})).Return("## Company Overview\nAcme builds workflow tools.\n", nil)

	c := lead.NewContext(l)
	require.NoError(t, NewResearchAgent(gen, researcher).Run(context.Background(), c))
	require.NotNil(t, c.Research)

	assert.Equal(t, lead.ConfidenceHigh, c.Research.Confidence)
	assert.Equal(t, []string{
		"https://acmesaas.com",
		"CRM Notes",
		"https://acmesaas.com/about",
		"https://news.example.com/acme",
	}, c.Research.Citations)
	assert.Equal(t, 4, c.Research.SourceCount)
	assert.Equal(t, "website:success, brave:success", c.Research.Providers)
	assert.True(t, strings.HasSuffix(c.Research.Brief,
		"\n\n## SOURCES\n- https://acmesaas.com\n- CRM Notes\n- https://acmesaas.com/about\n- https://news.example.com/acme"))
	gen.AssertExpectations(t)
	researcher.AssertExpectations(t)
}

func TestResearchAgent_EmptyLeadIsLowConfidence(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Prompt, "Based on available information...") &&
			strings.Contains(req.Prompt, "No web research data was available")
	})).Return("Speculative brief.", nil)

	res, err := NewResearchAgent(gen, nil).Brief(context.Background(), lead.Lead{})
	require.NoError(t, err)
	assert.Equal(t, lead.ConfidenceLow, res.Confidence)
	assert.Empty(t, res.Citations)
	assert.Zero(t, res.SourceCount)
	assert.Equal(t, "Speculative brief.", res.Brief)
	assert.Equal(t, "disabled", res.Providers)
}

func TestResearchAgent_WebFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	l := lead.Lead{CompanyName: "Acme", Website: "https://acme.io", Notes: "Met at conference."}
	researcher := new(mockResearcher)
	researcher.On("Research", mock.Anything, l).Return(nil, errors.New("dns failure"))
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, purpose("research")).Return("Brief.", nil)

	res, err := NewResearchAgent(gen, researcher).Brief(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, lead.ConfidenceMedium, res.Confidence)
	assert.Equal(t, []string{"https://acme.io", "CRM Notes"}, res.Citations)
}

func TestResearchAgent_GenerateErrorPropagates(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("boom"))

	_, err := NewResearchAgent(gen, nil).Brief(context.Background(), lead.Lead{CompanyName: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "research: generate")
}

func TestAssessDataQuality(t *testing.T) {
	t.Parallel()

	richNotes := strings.Repeat("n", 130)
	tests := []struct {
		name string
		lead lead.Lead
		web  research.Result
		want string
	}{
		{"nothing", lead.Lead{}, research.Result{}, lead.ConfidenceLow},
		{"name and website", lead.Lead{CompanyName: "A", Website: "a.com"}, research.Result{}, lead.ConfidenceLow},
		{"name website notes", lead.Lead{CompanyName: "A", Website: "a.com", Notes: "x"}, research.Result{}, lead.ConfidenceMedium},
		{"crm fields with rich notes", lead.Lead{CompanyName: "A", Website: "a.com", Notes: richNotes}, research.Result{}, lead.ConfidenceMedium},
		{"web content alone stays medium", lead.Lead{CompanyName: "A", Website: "a.com", Notes: "x"}, research.Result{WebsiteContent: "text"}, lead.ConfidenceMedium},
		{"web content and pages lift to high", lead.Lead{CompanyName: "A", Website: "a.com", Notes: "x"}, research.Result{WebsiteContent: "text", PagesFetched: 2}, lead.ConfidenceHigh},
		{"rich notes and web content", lead.Lead{CompanyName: "A", Website: "a.com", Notes: richNotes}, research.Result{WebsiteContent: "text"}, lead.ConfidenceHigh},
		{"multibyte notes count characters", lead.Lead{CompanyName: "A", Website: "a.com", Notes: strings.Repeat("é", 70)}, research.Result{WebsiteContent: "text"}, lead.ConfidenceMedium},
		{"search only", lead.Lead{CompanyName: "A"}, research.Result{SearchResults: "- r"}, lead.ConfidenceLow},
		{"search and pages", lead.Lead{CompanyName: "A", Website: "a.com"}, research.Result{WebsiteContent: "t", PagesFetched: 2, SearchResults: "- r"}, lead.ConfidenceHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, assessDataQuality(tt.lead, &tt.web))
		})
	}
}

func TestBuildCitations_Dedupes(t *testing.T) {
	t.Parallel()

	web := &research.Result{SourceURLs: []string{"https://a.com", "https://b.com", "https://a.com"}}
	got := buildCitations(lead.Lead{Website: "http://a.com/", Notes: "n"}, web)
	assert.Equal(t, []string{"http://a.com", "CRM Notes", "https://a.com", "https://b.com"}, got)
}
