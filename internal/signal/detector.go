// Package signal detects buying triggers (funding, hiring, leadership change,
// and similar) in lead notes and research text using fixed regex rules.
package signal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
)

// Signal types.
const (
	TypeBuyingIntent         = "buying_intent"
	TypeFunding              = "funding"
	TypeLeadershipChange     = "leadership_change"
	TypeHiring               = "hiring"
	TypeTechnologyInitiative = "technology_initiative"
	TypeNone                 = "none"
)

// Signal strengths.
const (
	StrengthHigh   = "high"
	StrengthMedium = "medium"
	StrengthLow    = "low"
	StrengthNone   = "none"
)

const (
	maxMatchedTextLen = 120
	noSignalReasoning = "No strong trigger signals detected from notes/research."
)

type rule struct {
	signalType string
	strength   string
	patterns   []*regexp.Regexp
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// rules are evaluated in order; a later rule only wins with a strictly higher
// strength.
var rules = []rule{
	{TypeBuyingIntent, StrengthHigh, compile(
		`\brequested demo\b`,
		`\brfp\b`,
		`\bevaluating vendors?\b`,
		`\bbudget approved\b`,
		`\bpilot program\b`,
		`\bactively searching\b`,
	)},
	{TypeFunding, StrengthHigh, compile(
		`\bseries [a-e]\b`,
		`\bseed round\b`,
		`\braised \$?\d`,
		`\bnew funding\b`,
		`\bventure[- ]backed\b`,
	)},
	{TypeLeadershipChange, StrengthHigh, compile(
		`\bnew (vp|head|chief|c[mo]{2})\b`,
		`\bnew ceo\b`,
		`\bnew cro\b`,
		`\bnew cmo\b`,
		`\bnew head of sales\b`,
	)},
	{TypeHiring, StrengthMedium, compile(
		`\bhiring\b`,
		`\bexpanding (sales|gtm|revenue) team\b`,
		`\bjob openings?\b`,
		`\bheadcount growth\b`,
	)},
	{TypeTechnologyInitiative, StrengthMedium, compile(
		`\bdigital transformation\b`,
		`\bautomation initiative\b`,
		`\bmigrating (to|from)\b`,
		`\breplatform(ing)?\b`,
		`\bmodernization\b`,
	)},
}

var strengthRank = map[string]int{
	StrengthNone:   0,
	StrengthLow:    1,
	StrengthMedium: 2,
	StrengthHigh:   3,
}

var isoDate = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

// Match is the strongest trigger found in a text.
type Match struct {
	Type     string
	Strength string
	Text     string
}

// Detector runs the signal rules. It holds no state.
type Detector struct{}

// NewDetector returns a Detector.
func NewDetector() *Detector { return &Detector{} }

// Detect returns the strongest matching rule in text. Within a rule only the
// first matching pattern counts.
func (d *Detector) Detect(text string) (Match, bool) {
	if strings.TrimSpace(text) == "" {
		return Match{}, false
	}
	haystack := strings.ToLower(text)

	var best Match
	bestRank := -1
	for _, r := range rules {
		for _, re := range r.patterns {
			m := re.FindString(haystack)
			if m == "" {
				continue
			}
			if rank := strengthRank[r.strength]; rank > bestRank {
				bestRank = rank
				best = Match{Type: r.signalType, Strength: r.strength, Text: truncate(m, maxMatchedTextLen)}
			}
			break
		}
	}
	return best, bestRank >= 0
}

// Run detects signals for the lead in c and stores the result. It reads the
// research brief when the research stage has run.
func (d *Detector) Run(_ context.Context, c *lead.Context) error {
	if c == nil {
		return eris.New("signal: nil lead context")
	}
	res := d.Evaluate(c.Lead, researchBrief(c))
	c.Signal = &res
	return nil
}

// Evaluate builds the signal result for a lead and optional research brief.
func (d *Detector) Evaluate(l lead.Lead, brief string) lead.SignalResult {
	date := signalDate(l)

	m, ok := d.Detect(contextText(l, brief))
	if !ok {
		return lead.SignalResult{
			Type:      TypeNone,
			Strength:  StrengthNone,
			Date:      date,
			Reasoning: noSignalReasoning,
		}
	}

	zap.L().Info("signal: detected",
		zap.String("company", l.DisplayName()),
		zap.String("signal_type", m.Type),
		zap.String("signal_strength", m.Strength),
	)
	return lead.SignalResult{
		Type:      m.Type,
		Strength:  m.Strength,
		Date:      date,
		Reasoning: fmt.Sprintf("Detected %s (%s) from phrase: '%s'.", m.Type, m.Strength, m.Text),
	}
}

func researchBrief(c *lead.Context) string {
	if c.Research == nil {
		return ""
	}
	return c.Research.Brief
}

func contextText(l lead.Lead, brief string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{l.CompanyName, l.Notes, brief, l.Status} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// signalDate prefers an ISO date written in the notes, then the record's last
// edit, then the last contact date.
func signalDate(l lead.Lead) string {
	if m := isoDate.FindString(l.Notes); m != "" {
		return m
	}
	if !l.LastEditedTime.IsZero() {
		return l.LastEditedTime.Format(time.DateOnly)
	}
	return coerceDate(l.LastContacted)
}

func coerceDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
