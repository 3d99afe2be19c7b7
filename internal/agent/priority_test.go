package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
)

var (
	fixedNow          = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	defaultThresholds = config.PriorityConfig{
		HighICPMin:         75,
		HighRecencyMax:     10,
		LowICPMax:          40,
		LowStaleDays:       45,
		StaleDaysThreshold: 14,
	}
)

func daysAgo(n int) string {
	return fixedNow.AddDate(0, 0, -n).Format(time.DateOnly)
}

func newPriorityAgent(gen *mockGenerator) *PriorityAgent {
	return NewPriorityAgent(gen, defaultThresholds).WithClock(func() time.Time { return fixedNow })
}

func priorityContext(score *int, lastContacted string, sig *lead.SignalResult) *lead.Context {
	c := lead.NewContext(lead.Lead{CompanyName: "Acme", LastContacted: lastContacted})
	if score != nil {
		c.ICP = &lead.ICPResult{Score: *score}
	}
	c.Signal = sig
	return c
}

func TestPriorityAgent_ReviewWhenICPMissingOrNegative(t *testing.T) {
	t.Parallel()

	for name, score := range map[string]*int{"missing": nil, "negative": lead.IntPtr(-1)} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			gen := new(mockGenerator)
			sig := &lead.SignalResult{Type: "funding", Strength: "high"}
			c := priorityContext(score, daysAgo(20), sig)

			require.NoError(t, newPriorityAgent(gen).Run(context.Background(), c))
			assert.Equal(t, lead.TierReview, c.Priority.Tier)
			assert.Equal(t, reviewReasoning, c.Priority.Reasoning)
			assert.True(t, c.Priority.Stale)
			assert.Equal(t, 20, c.Priority.DaysSinceContact)
			gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		})
	}
}

func TestPriorityAgent_Rules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		score     int
		contacted string
		wantTier  string
		wantStale bool
		wantDays  int
	}{
		{"strong fit recent", 80, daysAgo(5), lead.TierHigh, false, 5},
		{"strong fit at recency edge", 75, daysAgo(10), lead.TierHigh, false, 10},
		{"low fit", 40, daysAgo(1), lead.TierLow, false, 1},
		{"stale mid fit", 60, daysAgo(45), lead.TierLow, true, 45},
		{"unknown contact is stale", 60, "", lead.TierLow, true, lead.UnknownDaysSinceContact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gen := new(mockGenerator)
			c := priorityContext(lead.IntPtr(tt.score), tt.contacted, nil)

			require.NoError(t, newPriorityAgent(gen).Run(context.Background(), c))
			assert.Equal(t, tt.wantTier, c.Priority.Tier)
			assert.Equal(t, tt.wantStale, c.Priority.Stale)
			assert.Equal(t, tt.wantDays, c.Priority.DaysSinceContact)
			gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		})
	}
}

func TestPriorityAgent_UnknownContactReasoning(t *testing.T) {
	t.Parallel()

	c := priorityContext(lead.IntPtr(60), "not a date", nil)
	require.NoError(t, newPriorityAgent(new(mockGenerator)).Run(context.Background(), c))
	assert.False(t, c.Priority.ContactKnown)
	assert.Contains(t, c.Priority.Reasoning, "no recorded contact")
}

func TestPriorityAgent_DelegatesMiddleCases(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, purpose("priority")).
		Return(`{"priority_tier": "LOW", "priority_reasoning": "Lukewarm."}`, nil)

	c := priorityContext(lead.IntPtr(60), daysAgo(20), nil)
	require.NoError(t, newPriorityAgent(gen).Run(context.Background(), c))
	assert.Equal(t, lead.TierLow, c.Priority.Tier)
	assert.Equal(t, "Lukewarm.", c.Priority.Reasoning)
	assert.True(t, c.Priority.Stale)
}

func TestPriorityAgent_InvalidTierDefaultsMedium(t *testing.T) {
	t.Parallel()

	for _, resp := range []string{`{"priority_tier": "urgent"}`, "no json at all"} {
		gen := new(mockGenerator)
		gen.On("Generate", mock.Anything, mock.Anything).Return(resp, nil)

		c := priorityContext(lead.IntPtr(60), daysAgo(3), nil)
		require.NoError(t, newPriorityAgent(gen).Run(context.Background(), c))
		assert.Equal(t, lead.TierMedium, c.Priority.Tier, "response %q", resp)
	}
}

func TestPriorityAgent_SignalBoost(t *testing.T) {
	t.Parallel()

	high := &lead.SignalResult{Type: "funding", Strength: "high"}
	medium := &lead.SignalResult{Type: "hiring", Strength: "medium"}

	tests := []struct {
		name     string
		score    int
		signal   *lead.SignalResult
		llmTier  string
		wantTier string
		boosted  bool
	}{
		{"medium with high signal boosts", 60, high, "medium", lead.TierHigh, true},
		{"medium signal does not boost", 60, medium, "medium", lead.TierMedium, false},
		{"generated low is never boosted", 60, high, "low", lead.TierLow, false},
		{"no signal", 60, nil, "medium", lead.TierMedium, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gen := new(mockGenerator)
			gen.On("Generate", mock.Anything, mock.Anything).
				Return(`{"priority_tier": "`+tt.llmTier+`", "priority_reasoning": "Mixed fit."}`, nil)

			c := priorityContext(lead.IntPtr(tt.score), daysAgo(20), tt.signal)
			require.NoError(t, newPriorityAgent(gen).Run(context.Background(), c))
			assert.Equal(t, tt.wantTier, c.Priority.Tier)
			if tt.boosted {
				assert.Equal(t, "Mixed fit. Boosted from medium to high due to high-strength funding signal.", c.Priority.Reasoning)
			} else {
				assert.NotContains(t, c.Priority.Reasoning, "Boosted")
			}
		})
	}
}

func TestPriorityAgent_NoBoostAtLowICPBoundary(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	agent := newPriorityAgent(gen)

	c := priorityContext(lead.IntPtr(40), daysAgo(3), &lead.SignalResult{Type: "funding", Strength: "high"})
	require.NoError(t, agent.Run(context.Background(), c))
	assert.Equal(t, lead.TierLow, c.Priority.Tier)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

	// Just above the boundary the boost applies.
	gen.On("Generate", mock.Anything, mock.Anything).Return(`{"priority_tier": "medium"}`, nil)
	c = priorityContext(lead.IntPtr(41), daysAgo(3), &lead.SignalResult{Type: "funding", Strength: "high"})
	require.NoError(t, agent.Run(context.Background(), c))
	assert.Equal(t, lead.TierHigh, c.Priority.Tier)
}

func TestPriorityAgent_GenerateErrorPropagates(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("overloaded"))

	c := priorityContext(lead.IntPtr(60), daysAgo(3), nil)
	err := newPriorityAgent(gen).Run(context.Background(), c)
	require.Error(t, err)
	assert.Nil(t, c.Priority)
}

func TestDaysSinceContact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		wantDays  int
		wantKnown bool
	}{
		{"", lead.UnknownDaysSinceContact, false},
		{"garbage", lead.UnknownDaysSinceContact, false},
		{"2026-02-20", 9, true},
		{"2026-02-28T18:00:00Z", 0, true},
		{"2026-02-27T12:00:00+02:00", 2, true},
		{"2026-03-05", -4, true},
	}

	for _, tt := range tests {
		days, known := DaysSinceContact(tt.in, fixedNow)
		assert.Equal(t, tt.wantDays, days, "input %q", tt.in)
		assert.Equal(t, tt.wantKnown, known, "input %q", tt.in)
	}
}
