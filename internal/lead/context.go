package lead

import (
	"fmt"
	"strings"
)

// Canonical output field names written back to the lead store.
const (
	FieldICPScore            = "icp_score"
	FieldConfidenceScore     = "confidence_score"
	FieldICPReasoning        = "icp_reasoning"
	FieldDataGaps            = "data_gaps"
	FieldDimensionScores     = "dimension_scores"
	FieldResearchBrief       = "research_brief"
	FieldResearchConfidence  = "research_confidence"
	FieldResearchCitations   = "research_citations"
	FieldResearchSourceCount = "research_source_count"
	FieldResearchProviders   = "research_providers"
	FieldSignalType          = "signal_type"
	FieldSignalStrength      = "signal_strength"
	FieldSignalDate          = "signal_date"
	FieldSignalReasoning     = "signal_reasoning"
	FieldPriorityTier        = "priority_tier"
	FieldPriorityReasoning   = "priority_reasoning"
	FieldStaleFlag           = "stale_flag"
	FieldDaysSinceContact    = "days_since_contact"
	FieldNextAction          = "next_action"
	FieldActionReasoning     = "action_reasoning"
	FieldActionConfidence    = "action_confidence"
)

// OutputFields lists every canonical output field in write order.
var OutputFields = []string{
	FieldICPScore,
	FieldConfidenceScore,
	FieldICPReasoning,
	FieldDataGaps,
	FieldDimensionScores,
	FieldResearchBrief,
	FieldResearchConfidence,
	FieldResearchCitations,
	FieldResearchSourceCount,
	FieldResearchProviders,
	FieldSignalType,
	FieldSignalStrength,
	FieldSignalDate,
	FieldSignalReasoning,
	FieldPriorityTier,
	FieldPriorityReasoning,
	FieldStaleFlag,
	FieldDaysSinceContact,
	FieldNextAction,
	FieldActionReasoning,
	FieldActionConfidence,
}

// Context accumulates stage results for one lead as it moves through the
// pipeline. Each stage sets exactly one result pointer.
type Context struct {
	Lead     Lead
	ICP      *ICPResult
	Research *ResearchResult
	Signal   *SignalResult
	Priority *PriorityResult
	Action   *ActionResult
}

// NewContext starts an empty context for l.
func NewContext(l Lead) *Context {
	return &Context{Lead: l}
}

// Fields merges the populated stage results into the canonical field map.
func (c *Context) Fields() map[string]any {
	out := make(map[string]any, len(OutputFields))

	if c.ICP != nil {
		out[FieldICPScore] = c.ICP.Score
		out[FieldConfidenceScore] = c.ICP.Confidence
		out[FieldICPReasoning] = c.ICP.Reasoning
		out[FieldDataGaps] = c.ICP.DataGaps
		if len(c.ICP.Dimensions) > 0 {
			out[FieldDimensionScores] = FormatDimensions(c.ICP.Dimensions)
		}
	}

	if c.Research != nil {
		out[FieldResearchBrief] = c.Research.Brief
		out[FieldResearchConfidence] = c.Research.Confidence
		out[FieldResearchCitations] = strings.Join(c.Research.Citations, "\n")
		out[FieldResearchSourceCount] = c.Research.SourceCount
		if c.Research.Providers != "" {
			out[FieldResearchProviders] = c.Research.Providers
		}
	}

	if c.Signal != nil {
		out[FieldSignalType] = c.Signal.Type
		out[FieldSignalStrength] = c.Signal.Strength
		// Empty clears a date left by an earlier signal.
		out[FieldSignalDate] = c.Signal.Date
		out[FieldSignalReasoning] = c.Signal.Reasoning
	}

	if c.Priority != nil {
		out[FieldPriorityTier] = c.Priority.Tier
		out[FieldPriorityReasoning] = c.Priority.Reasoning
		out[FieldStaleFlag] = c.Priority.Stale
		out[FieldDaysSinceContact] = c.Priority.DaysSinceContact
	}

	if c.Action != nil {
		out[FieldNextAction] = c.Action.Action
		out[FieldActionReasoning] = c.Action.Reasoning
		out[FieldActionConfidence] = c.Action.Confidence
	}

	return out
}

// FormatDimensions renders dimension scores as "name: score" pairs.
func FormatDimensions(dims []DimensionScore) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprintf("%s: %d", d.Name, d.Score)
	}
	return strings.Join(parts, ", ")
}
