package agent

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/llm"
)

const (
	actionSystemPrompt      = "You are a sales execution strategist. Always respond with valid JSON."
	actionParseFailure      = "Could not parse model output. Defaulting to data enrichment before taking action."
	actionDefaultReason     = "Determine next step from available lead context."
	maxActionReasoningChars = 1000
)

var validActions = map[string]bool{
	lead.ActionOutreachNow: true,
	lead.ActionReengage:    true,
	lead.ActionNurture:     true,
	lead.ActionEnrichData:  true,
	lead.ActionHold:        true,
}

var validConfidence = map[string]bool{
	lead.ConfidenceHigh:   true,
	lead.ConfidenceMedium: true,
	lead.ConfidenceLow:    true,
}

// ActionAgent recommends the next sales action from the priority result.
type ActionAgent struct {
	gen llm.Generator
}

// NewActionAgent creates an ActionAgent.
func NewActionAgent(gen llm.Generator) *ActionAgent {
	return &ActionAgent{gen: gen}
}

// Run decides the next action for the lead in c. It requires the priority
// stage to have run.
func (a *ActionAgent) Run(ctx context.Context, c *lead.Context) error {
	if c.Priority == nil {
		return eris.New("action: priority result missing")
	}

	res, err := a.decide(ctx, c)
	if err != nil {
		return err
	}

	zap.L().Info("action: recommended",
		zap.String("company", c.Lead.DisplayName()),
		zap.String("action", res.Action),
		zap.String("confidence", res.Confidence),
	)
	c.Action = res
	return nil
}

func (a *ActionAgent) decide(ctx context.Context, c *lead.Context) (*lead.ActionResult, error) {
	p := c.Priority
	switch {
	case p.Tier == lead.TierReview:
		return &lead.ActionResult{
			Action:     lead.ActionEnrichData,
			Reasoning:  "Insufficient signal to act confidently; gather more context first.",
			Confidence: lead.ConfidenceHigh,
		}, nil
	case p.Tier == lead.TierLow:
		return &lead.ActionResult{
			Action:     lead.ActionNurture,
			Reasoning:  "Low-priority lead; keep warm with low-touch nurture instead of immediate sales effort.",
			Confidence: lead.ConfidenceHigh,
		}, nil
	case p.Tier == lead.TierHigh && !p.Stale:
		return &lead.ActionResult{
			Action:     lead.ActionOutreachNow,
			Reasoning:  "High-priority lead with recent activity; immediate outreach has the best chance to convert.",
			Confidence: lead.ConfidenceHigh,
		}, nil
	case p.Tier == lead.TierHigh && p.Stale:
		return &lead.ActionResult{
			Action:     lead.ActionReengage,
			Reasoning:  "Strong fit but stale activity; run a re-engagement sequence before closing as inactive.",
			Confidence: lead.ConfidenceHigh,
		}, nil
	}
	return a.generate(ctx, c)
}

func (a *ActionAgent) generate(ctx context.Context, c *lead.Context) (*lead.ActionResult, error) {
	data := map[string]string{
		"CompanyName":        orDefault(c.Lead.CompanyName, "N/A"),
		"ICPScore":           "unknown",
		"PriorityTier":       c.Priority.Tier,
		"Stale":              strconv.FormatBool(c.Priority.Stale),
		"ResearchConfidence": lead.ConfidenceMedium,
		"SignalType":         "none",
		"SignalStrength":     "none",
		"Notes":              orDefault(c.Lead.Notes, "No notes available"),
	}
	if c.ICP != nil {
		data["ICPScore"] = strconv.Itoa(c.ICP.Score)
	}
	if c.Research != nil {
		data["ResearchConfidence"] = c.Research.Confidence
	}
	if c.Signal != nil {
		data["SignalType"] = c.Signal.Type
		data["SignalStrength"] = c.Signal.Strength
	}

	prompt, err := renderPrompt("action.tmpl", data)
	if err != nil {
		return nil, err
	}
	text, err := a.gen.Generate(ctx, llm.Request{
		Prompt:     prompt,
		System:     actionSystemPrompt,
		Structured: true,
		Purpose:    "action",
	})
	if err != nil {
		return nil, eris.Wrap(err, "action: generate")
	}

	obj, err := llm.ParseObject(text)
	if err != nil {
		zap.L().Warn("action: could not parse response, defaulting to enrich_data")
		return &lead.ActionResult{
			Action:     lead.ActionEnrichData,
			Reasoning:  actionParseFailure,
			Confidence: lead.ConfidenceLow,
		}, nil
	}

	action := strings.ToLower(llm.String(obj, "next_action"))
	if !validActions[action] {
		action = lead.ActionEnrichData
	}
	confidence := strings.ToLower(llm.String(obj, "action_confidence"))
	if !validConfidence[confidence] {
		confidence = lead.ConfidenceMedium
	}
	reasoning := orDefault(llm.String(obj, "action_reasoning"), actionDefaultReason)

	return &lead.ActionResult{
		Action:     action,
		Reasoning:  llm.Truncate(reasoning, maxActionReasoningChars),
		Confidence: confidence,
	}, nil
}
