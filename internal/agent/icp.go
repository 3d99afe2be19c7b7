package agent

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/llm"
)

const (
	icpSystemPrompt      = "You are an expert sales analyst specializing in ICP fit scoring. Always respond with valid JSON."
	icpParseFailure      = "Could not score: LLM response was not valid JSON."
	icpParseFailureGaps  = "Parse failure"
	maxICPReasoningChars = 1000
	maxDataGapsChars     = 500
	maxDimensionScore    = 20
)

// ICPAgent scores lead fit against the configured ideal customer profile.
type ICPAgent struct {
	gen      llm.Generator
	criteria string
}

// NewICPAgent creates an ICPAgent.
func NewICPAgent(gen llm.Generator, criteria string) *ICPAgent {
	return &ICPAgent{gen: gen, criteria: criteria}
}

// Run scores the lead and stores the result on c.
func (a *ICPAgent) Run(ctx context.Context, c *lead.Context) error {
	res, err := a.Score(ctx, c.Lead)
	if err != nil {
		return err
	}
	c.ICP = res
	return nil
}

// Score asks the generator for a rubric score. A response that is not JSON
// yields the -1 sentinel rather than an error.
func (a *ICPAgent) Score(ctx context.Context, l lead.Lead) (*lead.ICPResult, error) {
	prompt, err := renderPrompt("icp.tmpl", map[string]string{
		"CompanyName": orDefault(l.CompanyName, "N/A"),
		"Website":     orDefault(l.Website, "Not provided"),
		"Notes":       orDefault(l.Notes, "No notes available"),
		"Criteria":    a.criteria,
	})
	if err != nil {
		return nil, err
	}

	text, err := a.gen.Generate(ctx, llm.Request{
		Prompt:     prompt,
		System:     icpSystemPrompt,
		Structured: true,
		Purpose:    "icp",
	})
	if err != nil {
		return nil, eris.Wrap(err, "icp: generate")
	}

	res := parseICP(text)
	zap.L().Info("icp: scored",
		zap.String("company", l.DisplayName()),
		zap.Int("icp_score", res.Score),
		zap.Int("confidence", res.Confidence),
	)
	return res, nil
}

func parseICP(text string) *lead.ICPResult {
	obj, err := llm.ParseObject(text)
	if err != nil {
		zap.L().Warn("icp: response was not valid JSON")
		return &lead.ICPResult{
			Score:      -1,
			Confidence: 0,
			Reasoning:  icpParseFailure,
			DataGaps:   icpParseFailureGaps,
		}
	}

	dimObj, _ := llm.Object(obj, "dimension_scores")
	dims := make([]lead.DimensionScore, len(lead.Dimensions))
	total := 0
	for i, name := range lead.Dimensions {
		score, _ := llm.Int(dimObj, name)
		score = llm.Clamp(score, 0, maxDimensionScore)
		dims[i] = lead.DimensionScore{Name: name, Score: score}
		total += score
	}

	score, ok := llm.Int(obj, "icp_score")
	if !ok {
		score = total
	}
	confidence, _ := llm.Int(obj, "confidence_score")

	return &lead.ICPResult{
		Score:      llm.Clamp(score, 0, 100),
		Dimensions: dims,
		Confidence: llm.Clamp(confidence, 0, 100),
		Reasoning:  llm.Truncate(llm.String(obj, "icp_reasoning"), maxICPReasoningChars),
		DataGaps:   llm.Truncate(llm.String(obj, "data_gaps"), maxDataGapsChars),
	}
}
