package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/agent"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/crm"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/llm"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/notify"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/pipeline"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/research"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/state"
	anthropicpkg "github.com/whassan99/Notion-AI-CRM-Agents/pkg/anthropic"
	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/notion"
)

// runOptions are the per-invocation switches shared by the root command and
// the HTTP trigger.
type runOptions struct {
	Limit       int  `json:"limit"`
	DryRun      bool `json:"dry_run"`
	NoWeb       bool `json:"no_web"`
	FullRefresh bool `json:"full_refresh"`
	Slack       bool `json:"slack"`
}

func (o runOptions) pipelineOptions() pipeline.Options {
	return pipeline.Options{Limit: o.Limit, DryRun: o.DryRun, FullRefresh: o.FullRefresh}
}

// pipelineEnv holds the initialized collaborators for one run.
type pipelineEnv struct {
	State    state.Store
	CRM      *crm.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.State != nil {
		_ = pe.State.Close()
	}
}

// newCRMStore builds the Notion-backed lead store from cfg.
func newCRMStore() *crm.Store {
	client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
	return crm.New(client, cfg.Notion, cfg.Retry)
}

// initPipeline validates configuration and builds the pipeline. Callers should
// defer env.Close().
func initPipeline(ctx context.Context, opts runOptions) (*pipelineEnv, error) {
	if err := cfg.Validate(!opts.DryRun); err != nil {
		return nil, err
	}

	env := &pipelineEnv{}

	st, err := state.Open(ctx, cfg.State)
	if err != nil {
		zap.L().Warn("state store unavailable, running without incremental state", zap.Error(err))
	} else {
		env.State = st
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key,
		anthropicpkg.WithTimeout(time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second))
	gen := llm.NewAnthropicGenerator(anthropicClient, cfg.Anthropic, cfg.Retry)

	// Left as a nil interface when disabled so the research agent sees no researcher.
	var researcher agent.Researcher
	if cfg.Research.Enabled && !opts.NoWeb {
		researcher = research.NewFromConfig(cfg)
	} else {
		zap.L().Info("web research disabled for this run")
	}

	var leads pipeline.LeadStore
	if !opts.DryRun {
		env.CRM = newCRMStore()
		leads = env.CRM
	}

	p := pipeline.New(leads, env.State, pipeline.Stages(cfg, gen, researcher), cfg.Pipeline)

	if opts.Slack || cfg.Slack.Enabled {
		slack, err := notify.NewSlack(cfg.Slack.WebhookURL)
		if err != nil {
			zap.L().Warn("slack notifications disabled", zap.Error(err))
		} else {
			p.WithNotifier(slack)
		}
	}

	env.Pipeline = p
	return env, nil
}

// requireNotion checks the Notion credentials needed by commands that never
// call Claude.
func requireNotion() error {
	if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
		return eris.New("NOTION_API_KEY and NOTION_DATABASE_ID must be set (run `crm-copilot setup`)")
	}
	return nil
}
