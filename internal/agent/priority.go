package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/llm"
)

const (
	prioritySystemPrompt   = "You are a sales operations expert. Always respond with valid JSON."
	reviewReasoning        = "ICP score is unavailable; cannot prioritize without it."
	priorityParseFallback  = "Could not parse LLM response; defaulting to medium."
	priorityDefaultReason  = "Determined by AI analysis."
	signalStrengthHigh     = "high"
	unknownContactReminder = " Last contact date is unknown."
)

// PriorityAgent assigns a priority tier from ICP fit, contact recency, and
// detected signals. Clear-cut cases are decided by threshold rules; the
// generator only sees leads between the thresholds.
type PriorityAgent struct {
	gen        llm.Generator
	thresholds config.PriorityConfig
	now        func() time.Time
}

// NewPriorityAgent creates a PriorityAgent.
func NewPriorityAgent(gen llm.Generator, thresholds config.PriorityConfig) *PriorityAgent {
	return &PriorityAgent{gen: gen, thresholds: thresholds, now: time.Now}
}

// WithClock overrides the clock used for recency (tests).
func (a *PriorityAgent) WithClock(now func() time.Time) *PriorityAgent {
	a.now = now
	return a
}

// Run prioritizes the lead in c. A missing or negative ICP score always
// yields the review tier.
func (a *PriorityAgent) Run(ctx context.Context, c *lead.Context) error {
	days, known := DaysSinceContact(c.Lead.LastContacted, a.now())
	stale := days >= a.thresholds.StaleDaysThreshold
	log := zap.L().With(zap.String("company", c.Lead.DisplayName()))

	var score *int
	if c.ICP != nil {
		score = &c.ICP.Score
	}
	if !lead.ValidICPScore(score) {
		log.Info("priority: review (missing ICP score)")
		c.Priority = &lead.PriorityResult{
			Tier:             lead.TierReview,
			Reasoning:        reviewReasoning,
			Stale:            stale,
			DaysSinceContact: days,
			ContactKnown:     known,
		}
		return nil
	}

	tier, reasoning, err := a.decide(ctx, c, *score, days, known)
	if err != nil {
		return err
	}

	if tier == lead.TierMedium && c.Signal != nil && c.Signal.Strength == signalStrengthHigh &&
		*score > a.thresholds.LowICPMax {
		tier = lead.TierHigh
		reasoning = strings.TrimSpace(reasoning) +
			fmt.Sprintf(" Boosted from medium to high due to high-strength %s signal.", c.Signal.Type)
	}

	log.Info("priority: assigned",
		zap.String("tier", tier),
		zap.Int("icp_score", *score),
		zap.Int("days_since_contact", days),
		zap.Bool("stale", stale),
	)
	c.Priority = &lead.PriorityResult{
		Tier:             tier,
		Reasoning:        reasoning,
		Stale:            stale,
		DaysSinceContact: days,
		ContactKnown:     known,
	}
	return nil
}

func (a *PriorityAgent) decide(ctx context.Context, c *lead.Context, score, days int, known bool) (string, string, error) {
	t := a.thresholds
	if score >= t.HighICPMin && days <= t.HighRecencyMax {
		return lead.TierHigh, fmt.Sprintf("Strong ICP fit (%d) with recent contact (%dd ago).", score, days), nil
	}
	if score <= t.LowICPMax {
		reasoning := fmt.Sprintf("Low ICP fit (%d), at or below threshold of %d.", score, t.LowICPMax)
		if !known {
			reasoning += unknownContactReminder
		}
		return lead.TierLow, reasoning, nil
	}
	if days >= t.LowStaleDays {
		if !known {
			return lead.TierLow, fmt.Sprintf("Lead is treated as stale (no recorded contact, threshold: %dd).", t.LowStaleDays), nil
		}
		return lead.TierLow, fmt.Sprintf("Lead is stale (%dd since contact, threshold: %dd).", days, t.LowStaleDays), nil
	}
	return a.generate(ctx, c, score, days)
}

func (a *PriorityAgent) generate(ctx context.Context, c *lead.Context, score, days int) (string, string, error) {
	data := map[string]any{
		"CompanyName":        orDefault(c.Lead.CompanyName, "N/A"),
		"ICPScore":           score,
		"Status":             orDefault(c.Lead.Status, "N/A"),
		"DaysSinceContact":   days,
		"ResearchConfidence": "unknown",
		"SignalType":         "none",
		"SignalStrength":     "none",
	}
	if c.Research != nil {
		data["ResearchConfidence"] = c.Research.Confidence
	}
	if c.Signal != nil {
		data["SignalType"] = c.Signal.Type
		data["SignalStrength"] = c.Signal.Strength
	}

	prompt, err := renderPrompt("priority.tmpl", data)
	if err != nil {
		return "", "", err
	}
	text, err := a.gen.Generate(ctx, llm.Request{
		Prompt:     prompt,
		System:     prioritySystemPrompt,
		Structured: true,
		Purpose:    "priority",
	})
	if err != nil {
		return "", "", eris.Wrap(err, "priority: generate")
	}

	obj, err := llm.ParseObject(text)
	if err != nil {
		zap.L().Warn("priority: could not parse response, defaulting to medium")
		return lead.TierMedium, priorityParseFallback, nil
	}

	tier := strings.ToLower(llm.String(obj, "priority_tier"))
	switch tier {
	case lead.TierHigh, lead.TierMedium, lead.TierLow:
	default:
		tier = lead.TierMedium
	}
	return tier, orDefault(llm.String(obj, "priority_reasoning"), priorityDefaultReason), nil
}

// DaysSinceContact returns whole days between now and lastContacted, which
// may be RFC 3339 or a bare date. Missing or unparsable dates return
// lead.UnknownDaysSinceContact and known=false.
func DaysSinceContact(lastContacted string, now time.Time) (days int, known bool) {
	s := strings.TrimSpace(lastContacted)
	if s == "" {
		return lead.UnknownDaysSinceContact, false
	}

	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err = time.Parse(layout, s); err == nil {
			break
		}
	}
	if err != nil {
		if t, err = time.ParseInLocation(time.DateOnly, s, now.Location()); err != nil {
			return lead.UnknownDaysSinceContact, false
		}
	}

	return int(math.Floor(now.Sub(t).Hours() / 24)), true
}
