// Package lead defines the CRM lead record, the per-stage enrichment results,
// and the lead context aggregate that threads results through the pipeline.
package lead

import (
	"strings"
	"time"
)

// Lead is a single CRM record as read from the lead store.
type Lead struct {
	ID             string    `json:"id" yaml:"id"`
	CompanyName    string    `json:"company_name" yaml:"company_name"`
	Website        string    `json:"website" yaml:"website"`
	Notes          string    `json:"notes" yaml:"notes"`
	LastContacted  string    `json:"last_contacted,omitempty" yaml:"last_contacted"`
	Status         string    `json:"status" yaml:"status"`
	LastEditedTime time.Time `json:"last_edited_time" yaml:"-"`
	Existing       *Snapshot `json:"existing_results,omitempty" yaml:"-"`
}

// DisplayName returns the company name, or "Unknown" when it is blank.
func (l Lead) DisplayName() string {
	if name := strings.TrimSpace(l.CompanyName); name != "" {
		return name
	}
	return "Unknown"
}

// Snapshot holds the outputs a previous run wrote for a lead.
type Snapshot struct {
	ICPScore     *int   `json:"icp_score,omitempty"`
	PriorityTier string `json:"priority_tier,omitempty"`
	NextAction   string `json:"next_action,omitempty"`
}

// Complete reports whether the snapshot carries every required output.
func (s *Snapshot) Complete() bool {
	if s == nil {
		return false
	}
	return ValidICPScore(s.ICPScore) &&
		strings.TrimSpace(s.PriorityTier) != "" &&
		strings.TrimSpace(s.NextAction) != ""
}

// ValidICPScore reports whether score is a usable ICP score. A nil or negative
// score means the ICP stage did not produce a result.
func ValidICPScore(score *int) bool {
	return score != nil && *score >= 0
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
