// Package notify posts pipeline run summaries to Slack.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
)

// maxErrors caps the errors listed in one message.
const maxErrors = 5

// topLeads is how many leads the summary highlights.
const topLeads = 3

// LeadSummary is the per-lead outcome shown in a run summary.
type LeadSummary struct {
	Company  string `json:"company"`
	ICPScore int    `json:"icp_score"`
	Tier     string `json:"priority_tier"`
	Stale    bool   `json:"stale"`
	Action   string `json:"next_action,omitempty"`
}

// Summary is what a notifier reports about one run.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Leads     []LeadSummary
	Errors    []string
	DryRun    bool
}

// Notifier delivers run summaries.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

var tierEmoji = []struct {
	tier  string
	emoji string
}{
	{lead.TierHigh, ":large_green_circle:"},
	{lead.TierMedium, ":large_yellow_circle:"},
	{lead.TierLow, ":red_circle:"},
	{lead.TierReview, ":white_circle:"},
}

func emojiFor(tier string) string {
	for _, te := range tierEmoji {
		if te.tier == tier {
			return te.emoji
		}
	}
	return ":white_circle:"
}

// Slack posts Block Kit messages to an incoming webhook.
type Slack struct {
	webhookURL string
	client     *http.Client
	title      cases.Caser
}

// NewSlack creates a Slack notifier for webhookURL.
func NewSlack(webhookURL string) (*Slack, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return nil, eris.New("notify: SLACK_WEBHOOK_URL is not set")
	}
	return &Slack{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		title:      cases.Title(language.English),
	}, nil
}

// Notify posts the summary. Failures are logged and returned; callers treat
// them as non-fatal.
func (s *Slack) Notify(ctx context.Context, sum Summary) error {
	payload, err := json.Marshal(map[string]any{"blocks": s.Blocks(sum)})
	if err != nil {
		return eris.Wrap(err, "notify: marshal blocks")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		zap.L().Warn("notify: slack notification failed", zap.Error(err))
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		zap.L().Warn("notify: slack returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}

	zap.L().Info("notify: slack notification sent")
	return nil
}

// Block is one Slack Block Kit block.
type Block map[string]any

func mrkdwn(text string) map[string]any {
	return map[string]any{"type": "mrkdwn", "text": text}
}

func section(text string) Block {
	return Block{"type": "section", "text": mrkdwn(text)}
}

var divider = Block{"type": "divider"}

// Blocks builds the Block Kit message for sum.
func (s *Slack) Blocks(sum Summary) []Block {
	total := sum.Succeeded + sum.Failed + sum.Skipped
	mode := ""
	if sum.DryRun {
		mode = " _(dry run)_"
	}

	counts := make(map[string]int, len(tierEmoji))
	stale := 0
	for _, l := range sum.Leads {
		counts[normalizeTier(l.Tier)]++
		if l.Stale {
			stale++
		}
	}

	blocks := []Block{
		{
			"type": "header",
			"text": map[string]any{
				"type":  "plain_text",
				"text":  ":bar_chart: CRM Pipeline Complete" + mode,
				"emoji": true,
			},
		},
		{
			"type": "section",
			"fields": []any{
				mrkdwn(fmt.Sprintf("*Processed:* %d/%d", sum.Succeeded, total)),
				mrkdwn(fmt.Sprintf("*Failed:* %d", sum.Failed)),
				mrkdwn(fmt.Sprintf("*Skipped:* %d", sum.Skipped)),
				mrkdwn(fmt.Sprintf("*Stale leads:* %d", stale)),
			},
		},
		divider,
	}

	dist := make([]string, 0, len(tierEmoji))
	for _, te := range tierEmoji {
		dist = append(dist, fmt.Sprintf("%s *%s:* %d", te.emoji, s.title.String(te.tier), counts[te.tier]))
	}
	blocks = append(blocks, section("*Priority Distribution*\n"+strings.Join(dist, "   ")))

	if top := topScored(sum.Leads); len(top) > 0 {
		lines := make([]string, 0, len(top))
		for _, l := range top {
			tier := normalizeTier(l.Tier)
			tag := ""
			if l.Stale {
				tag = "  :warning: _stale_"
			}
			lines = append(lines, fmt.Sprintf("%s *%s* — ICP: %d/100 | %s%s",
				emojiFor(tier), l.Company, l.ICPScore, s.title.String(tier), tag))
		}
		blocks = append(blocks, divider, section("*Top Leads*\n"+strings.Join(lines, "\n")))
	}

	if len(sum.Errors) > 0 {
		shown := sum.Errors
		if len(shown) > maxErrors {
			shown = shown[:maxErrors]
		}
		lines := make([]string, len(shown))
		for i, e := range shown {
			lines[i] = "• " + e
		}
		text := strings.Join(lines, "\n")
		if extra := len(sum.Errors) - maxErrors; extra > 0 {
			text += fmt.Sprintf("\n_...and %d more_", extra)
		}
		blocks = append(blocks, divider, section(":x: *Errors*\n"+text))
	}

	return blocks
}

func normalizeTier(tier string) string {
	if t := strings.ToLower(strings.TrimSpace(tier)); t != "" {
		return t
	}
	return lead.TierReview
}

// topScored returns the highest-ICP leads with a usable score, keeping
// input order among ties.
func topScored(leads []LeadSummary) []LeadSummary {
	var scored []LeadSummary
	for _, l := range leads {
		if l.ICPScore >= 0 {
			scored = append(scored, l)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].ICPScore > scored[j].ICPScore })
	if len(scored) > topLeads {
		scored = scored[:topLeads]
	}
	return scored
}
