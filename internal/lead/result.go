package lead

// Confidence levels shared by the research and action stages.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Priority tiers.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
	TierReview = "review"
)

// Next actions.
const (
	ActionOutreachNow = "outreach_now"
	ActionReengage    = "reengage"
	ActionNurture     = "nurture"
	ActionEnrichData  = "enrich_data"
	ActionHold        = "hold"
)

// UnknownDaysSinceContact is written when the last contact date is missing or
// cannot be parsed.
const UnknownDaysSinceContact = 999

// Dimensions lists the ICP rubric dimensions in scoring order.
var Dimensions = []string{
	"company_size_stage",
	"market_industry_fit",
	"budget_buying_signals",
	"engagement_accessibility",
	"strategic_alignment",
}

// DimensionScore is one rubric dimension and its clamped score.
type DimensionScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// ICPResult is the output of the ICP scoring stage.
type ICPResult struct {
	Score      int              `json:"icp_score"`
	Dimensions []DimensionScore `json:"dimension_scores"`
	Confidence int              `json:"confidence_score"`
	Reasoning  string           `json:"icp_reasoning"`
	DataGaps   string           `json:"data_gaps"`
}

// Valid reports whether the ICP stage produced a usable score.
func (r *ICPResult) Valid() bool {
	if r == nil {
		return false
	}
	return ValidICPScore(&r.Score)
}

// ResearchResult is the output of the research stage.
type ResearchResult struct {
	Brief       string   `json:"research_brief"`
	Confidence  string   `json:"research_confidence"`
	Citations   []string `json:"research_citations"`
	SourceCount int      `json:"research_source_count"`
	Providers   string   `json:"research_providers"`
}

// SignalResult is the output of the signal detection stage.
type SignalResult struct {
	Type      string `json:"signal_type"`
	Strength  string `json:"signal_strength"`
	Date      string `json:"signal_date,omitempty"`
	Reasoning string `json:"signal_reasoning"`
}

// PriorityResult is the output of the priority stage.
type PriorityResult struct {
	Tier             string `json:"priority_tier"`
	Reasoning        string `json:"priority_reasoning"`
	Stale            bool   `json:"stale_flag"`
	DaysSinceContact int    `json:"days_since_contact"`
	ContactKnown     bool   `json:"-"`
}

// ActionResult is the output of the action stage.
type ActionResult struct {
	Action     string `json:"next_action"`
	Reasoning  string `json:"action_reasoning"`
	Confidence string `json:"action_confidence"`
}
