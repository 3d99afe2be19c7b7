package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/llm"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/research"
)

const (
	researchSystemPrompt = "You are an expert market research analyst. Provide actionable insights."
	crmNotesCitation     = "CRM Notes"
	richNotesChars       = 120
	providersDisabled    = "disabled"
)

// Researcher gathers web evidence for a lead.
type Researcher interface {
	Research(ctx context.Context, l lead.Lead) (*research.Result, error)
}

// ResearchAgent writes a research brief grounded in CRM notes and, when a
// Researcher is configured, live web content.
type ResearchAgent struct {
	gen        llm.Generator
	researcher Researcher
}

// NewResearchAgent creates a ResearchAgent. researcher may be nil to disable
// web research.
func NewResearchAgent(gen llm.Generator, researcher Researcher) *ResearchAgent {
	return &ResearchAgent{gen: gen, researcher: researcher}
}

// Run produces the research brief and stores it on c.
func (a *ResearchAgent) Run(ctx context.Context, c *lead.Context) error {
	res, err := a.Brief(ctx, c.Lead)
	if err != nil {
		return err
	}
	c.Research = res
	return nil
}

// Brief gathers web evidence (best effort), grades the available data, and
// asks the generator for a free-form brief.
func (a *ResearchAgent) Brief(ctx context.Context, l lead.Lead) (*lead.ResearchResult, error) {
	log := zap.L().With(zap.String("company", l.DisplayName()))

	web := &research.Result{}
	providers := providersDisabled
	if a.researcher != nil {
		got, err := a.researcher.Research(ctx, l)
		switch {
		case err != nil:
			log.Warn("research: web research failed, continuing without it", zap.Error(err))
			providers = "error"
		case got != nil:
			web = got
			providers = web.TraceSummary()
		}
	}

	confidence := assessDataQuality(l, web)
	prompt, err := renderPrompt("research.tmpl", map[string]string{
		"CompanyName": orDefault(l.CompanyName, "N/A"),
		"Website":     orDefault(l.Website, "Not provided"),
		"Notes":       orDefault(l.Notes, "No notes available"),
		"WebResearch": web.PromptSection(),
		"QualityNote": qualityNote(l, web, confidence),
	})
	if err != nil {
		return nil, err
	}

	brief, err := a.gen.Generate(ctx, llm.Request{
		Prompt:  prompt,
		System:  researchSystemPrompt,
		Purpose: "research",
	})
	if err != nil {
		return nil, eris.Wrap(err, "research: generate")
	}

	citations := buildCitations(l, web)
	if len(citations) > 0 {
		brief = appendSources(brief, citations)
	}

	log.Info("research: brief generated",
		zap.String("confidence", confidence),
		zap.Int("sources", len(citations)),
		zap.String("providers", providers),
	)

	return &lead.ResearchResult{
		Brief:       brief,
		Confidence:  confidence,
		Citations:   citations,
		SourceCount: len(citations),
		Providers:   providers,
	}, nil
}

// assessDataQuality weighs the inputs available to the brief.
func assessDataQuality(l lead.Lead, web *research.Result) string {
	score := 0
	notes := strings.TrimSpace(l.Notes)
	if strings.TrimSpace(l.CompanyName) != "" {
		score++
	}
	if strings.TrimSpace(l.Website) != "" {
		score++
	}
	if notes != "" {
		score++
	}
	if utf8.RuneCountInString(notes) >= richNotesChars {
		score++
	}
	if strings.TrimSpace(web.WebsiteContent) != "" {
		score += 2
	}
	if web.PagesFetched >= 2 {
		score++
	}
	if strings.TrimSpace(web.SearchResults) != "" {
		score++
	}

	switch {
	case score >= 6:
		return lead.ConfidenceHigh
	case score >= 3:
		return lead.ConfidenceMedium
	default:
		return lead.ConfidenceLow
	}
}

func qualityNote(l lead.Lead, web *research.Result, confidence string) string {
	var missing []string
	if strings.TrimSpace(l.Website) == "" {
		missing = append(missing, "no website provided")
	}
	if strings.TrimSpace(l.Notes) == "" {
		missing = append(missing, "no notes/context provided")
	}
	if strings.TrimSpace(l.CompanyName) == "" {
		missing = append(missing, "company name is missing")
	}
	if !web.HasContent() {
		missing = append(missing, "no live web content retrieved")
	}

	if len(missing) == 0 {
		return fmt.Sprintf("Data quality: %s. Website, notes, company name, and live web content are all available.",
			strings.ToUpper(confidence))
	}
	return fmt.Sprintf("Data quality: %s. Missing: %s. Where data is unavailable, clearly state that you are "+
		"speculating and prefix those sections with 'Based on available information...'.",
		strings.ToUpper(confidence), strings.Join(missing, ", "))
}

func buildCitations(l lead.Lead, web *research.Result) []string {
	var cites []string
	if site := normalizeWebsite(l.Website); site != "" {
		cites = append(cites, site)
	}
	if strings.TrimSpace(l.Notes) != "" {
		cites = append(cites, crmNotesCitation)
	}
	cites = append(cites, web.SourceURLs...)
	return research.Dedupe(cites)
}

func appendSources(brief string, citations []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(brief, "\n"))
	b.WriteString("\n\n## SOURCES\n")
	for i, c := range citations {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(c)
	}
	return b.String()
}

// normalizeWebsite matches the URL form the website provider fetches so the
// homepage is not cited twice.
func normalizeWebsite(raw string) string {
	s := research.NormalizeURL(raw)
	if s == "" {
		return ""
	}
	if _, err := url.Parse(s); err != nil {
		return ""
	}
	return s
}
