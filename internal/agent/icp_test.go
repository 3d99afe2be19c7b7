package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/llm"
)

func TestICPAgent_ParsesAndClamps(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Structured && req.System == icpSystemPrompt &&
			strings.Contains(req.Prompt, "Acme SaaS Corp") &&
			strings.Contains(req.Prompt, "B2B SaaS")
	})).Return("```json\n"+`{
		"icp_score": 150,
		"dimension_scores": {
			"company_size_stage": 999,
			"market_industry_fit": -4,
			"budget_buying_signals": "12",
			"engagement_accessibility": 15.4,
			"strategic_alignment": 10
		},
		"confidence_score": -20,
		"icp_reasoning": "Good fit.",
		"data_gaps": ""
	}`+"\n```", nil)

	c := lead.NewContext(lead.Lead{CompanyName: "Acme SaaS Corp"})
	require.NoError(t, NewICPAgent(gen, "B2B SaaS").Run(context.Background(), c))
	require.NotNil(t, c.ICP)

	assert.Equal(t, 100, c.ICP.Score)
	assert.Equal(t, 0, c.ICP.Confidence)
	assert.Equal(t, []lead.DimensionScore{
		{Name: "company_size_stage", Score: 20},
		{Name: "market_industry_fit", Score: 0},
		{Name: "budget_buying_signals", Score: 12},
		{Name: "engagement_accessibility", Score: 15},
		{Name: "strategic_alignment", Score: 10},
	}, c.ICP.Dimensions)
	assert.Equal(t, "Good fit.", c.ICP.Reasoning)
	gen.AssertExpectations(t)
}

func TestICPAgent_ClampsHugeValues(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(`{
		"icp_score": 1e300,
		"confidence_score": 1e20,
		"dimension_scores": {
			"company_size_stage": 1e19,
			"market_industry_fit": 999,
			"budget_buying_signals": -1e300,
			"engagement_accessibility": "1e40",
			"strategic_alignment": 5
		}
	}`, nil)

	res, err := NewICPAgent(gen, "").Score(context.Background(), lead.Lead{CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, 100, res.Confidence)
	assert.Equal(t, []lead.DimensionScore{
		{Name: "company_size_stage", Score: 20},
		{Name: "market_industry_fit", Score: 20},
		{Name: "budget_buying_signals", Score: 0},
		{Name: "engagement_accessibility", Score: 20},
		{Name: "strategic_alignment", Score: 5},
	}, res.Dimensions)
}

func TestICPAgent_SumsDimensionsWhenScoreMissing(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(`Here is the score:
{"dimension_scores": {"company_size_stage": 10, "market_industry_fit": 12, "budget_buying_signals": 8,
"engagement_accessibility": 5, "strategic_alignment": 7}, "confidence_score": 60}`, nil)

	res, err := NewICPAgent(gen, "").Score(context.Background(), lead.Lead{CompanyName: "X"})
	require.NoError(t, err)
	assert.Equal(t, 42, res.Score)
	assert.Equal(t, 60, res.Confidence)
}

func TestICPAgent_ParseFailureSentinel(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("I cannot score this lead.", nil)

	res, err := NewICPAgent(gen, "").Score(context.Background(), lead.Lead{})
	require.NoError(t, err)
	assert.Equal(t, -1, res.Score)
	assert.Equal(t, 0, res.Confidence)
	assert.Equal(t, icpParseFailure, res.Reasoning)
	assert.Equal(t, "Parse failure", res.DataGaps)
	assert.False(t, res.Valid())
}

func TestICPAgent_TruncatesText(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(
		`{"icp_score": 50, "icp_reasoning": "`+strings.Repeat("r", 1500)+`", "data_gaps": "`+strings.Repeat("g", 800)+`"}`, nil)

	res, err := NewICPAgent(gen, "").Score(context.Background(), lead.Lead{})
	require.NoError(t, err)
	assert.Len(t, res.Reasoning, 1000)
	assert.Len(t, res.DataGaps, 500)
}

func TestICPAgent_GenerateErrorPropagates(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("failed after 3 attempts"))

	c := lead.NewContext(lead.Lead{CompanyName: "X"})
	err := NewICPAgent(gen, "").Run(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "icp: generate")
	assert.Nil(t, c.ICP)
}

func TestICPPrompt_Defaults(t *testing.T) {
	t.Parallel()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Prompt, "WEBSITE: Not provided") &&
			strings.Contains(req.Prompt, "No notes available")
	})).Return(`{"icp_score": 10}`, nil)

	_, err := NewICPAgent(gen, "criteria").Score(context.Background(), lead.Lead{CompanyName: "X"})
	require.NoError(t, err)
	gen.AssertExpectations(t)
}
