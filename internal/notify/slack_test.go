package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockText(b Block) string {
	text, _ := b["text"].(map[string]any)
	s, _ := text["text"].(string)
	return s
}

func newTestSlack(t *testing.T, url string) *Slack {
	t.Helper()
	s, err := NewSlack(url)
	require.NoError(t, err)
	return s
}

func TestNewSlack_RequiresWebhook(t *testing.T) {
	t.Parallel()

	_, err := NewSlack("  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLACK_WEBHOOK_URL")
}

func TestBlocks_Layout(t *testing.T) {
	t.Parallel()

	s := newTestSlack(t, "https://hooks.slack.test/x")
	blocks := s.Blocks(Summary{
		Succeeded: 4,
		Failed:    1,
		Skipped:   2,
		Leads: []LeadSummary{
			{Company: "Acme", ICPScore: 88, Tier: "high"},
			{Company: "Globex", ICPScore: 55, Tier: "medium", Stale: true},
			{Company: "Initech", ICPScore: 30, Tier: "low", Stale: true},
			{Company: "Umbrella", ICPScore: -1, Tier: "review"},
			{Company: "Hooli", ICPScore: 71, Tier: ""},
		},
		Errors: []string{"Wayne: icp: generate: boom"},
	})

	require.Len(t, blocks, 8)
	assert.Equal(t, "header", blocks[0]["type"])
	assert.Equal(t, ":bar_chart: CRM Pipeline Complete", blockText(blocks[0]))

	fields := blocks[1]["fields"].([]any)
	require.Len(t, fields, 4)
	assert.Equal(t, "*Processed:* 4/7", fields[0].(map[string]any)["text"])
	assert.Equal(t, "*Failed:* 1", fields[1].(map[string]any)["text"])
	assert.Equal(t, "*Skipped:* 2", fields[2].(map[string]any)["text"])
	assert.Equal(t, "*Stale leads:* 2", fields[3].(map[string]any)["text"])

	assert.Equal(t, "divider", blocks[2]["type"])
	assert.Equal(t,
		"*Priority Distribution*\n"+
			":large_green_circle: *High:* 1   :large_yellow_circle: *Medium:* 1   :red_circle: *Low:* 1   :white_circle: *Review:* 2",
		blockText(blocks[3]))

	assert.Equal(t,
		"*Top Leads*\n"+
			":large_green_circle: *Acme* — ICP: 88/100 | High\n"+
			":white_circle: *Hooli* — ICP: 71/100 | Review\n"+
			":large_yellow_circle: *Globex* — ICP: 55/100 | Medium  :warning: _stale_",
		blockText(blocks[5]))

	assert.Equal(t, ":x: *Errors*\n• Wayne: icp: generate: boom", blockText(blocks[7]))
}

func TestBlocks_DryRunNoLeads(t *testing.T) {
	t.Parallel()

	blocks := newTestSlack(t, "https://hooks.slack.test/x").Blocks(Summary{DryRun: true})
	require.Len(t, blocks, 4)
	assert.Equal(t, ":bar_chart: CRM Pipeline Complete _(dry run)_", blockText(blocks[0]))
	assert.Contains(t, blockText(blocks[3]), "*High:* 0")
}

func TestBlocks_ErrorsCapped(t *testing.T) {
	t.Parallel()

	errs := make([]string, 8)
	for i := range errs {
		errs[i] = "lead failed"
	}
	blocks := newTestSlack(t, "https://hooks.slack.test/x").Blocks(Summary{Failed: 8, Errors: errs})

	text := blockText(blocks[len(blocks)-1])
	assert.Equal(t, 5, strings.Count(text, "• "))
	assert.True(t, strings.HasSuffix(text, "_...and 3 more_"))
}

func TestNotify_PostsBlocks(t *testing.T) {
	t.Parallel()

	var payload map[string][]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &payload))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	err := newTestSlack(t, srv.URL).Notify(context.Background(), Summary{Succeeded: 1})
	require.NoError(t, err)
	require.NotEmpty(t, payload["blocks"])
	assert.Equal(t, "header", payload["blocks"][0]["type"])
}

func TestNotify_ErrorStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestSlack(t, srv.URL).Notify(context.Background(), Summary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotify_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newTestSlack(t, url).Notify(context.Background(), Summary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify: webhook request")
}
