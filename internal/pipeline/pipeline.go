// Package pipeline selects leads that need enrichment and runs them through
// the agent stages, writing results back to the lead store.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/agent"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/llm"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/notify"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/signal"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/state"
)

// Runner is one enrichment stage. It reads earlier results from c and sets
// its own.
type Runner interface {
	Run(ctx context.Context, c *lead.Context) error
}

// Stage is a named Runner.
type Stage struct {
	Name   string
	Runner Runner
}

// LeadStore reads leads and writes enrichment results.
type LeadStore interface {
	ValidateDatabase(ctx context.Context) error
	FetchLeads(ctx context.Context) ([]lead.Lead, error)
	UpdateLead(ctx context.Context, id string, fields map[string]any) error
}

// LeadSummary is the per-lead outcome reported after a run.
type LeadSummary = notify.LeadSummary

// Options control a single run.
type Options struct {
	// Limit caps the leads processed after selection; 0 means no cap.
	Limit int
	// DryRun processes the built-in sample leads and writes nothing.
	DryRun bool
	// FullRefresh processes every lead regardless of run state.
	FullRefresh bool
}

// Result summarizes a run.
type Result struct {
	RunID       string        `json:"run_id"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Errors      []string      `json:"errors"`
	Leads       []LeadSummary `json:"leads"`
	DryRun      bool          `json:"dry_run"`
	Interrupted bool          `json:"interrupted"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// Total is the number of leads the run looked at.
func (r *Result) Total() int {
	return r.Succeeded + r.Failed + r.Skipped
}

// Summary renders the one-line outcome, e.g. "3/5 leads processed, 1 failed, 1 skipped".
func (r *Result) Summary() string {
	s := fmt.Sprintf("%d/%d leads processed", r.Succeeded, r.Total())
	if r.Failed > 0 {
		s += fmt.Sprintf(", %d failed", r.Failed)
	}
	if r.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", r.Skipped)
	}
	return s
}

// ExitCode is 1 when every attempted lead failed, else 0.
func (r *Result) ExitCode() int {
	if r.Failed > 0 && r.Succeeded == 0 {
		return 1
	}
	return 0
}

func (r *Result) notifySummary() notify.Summary {
	return notify.Summary{
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Skipped:   r.Skipped,
		Leads:     r.Leads,
		Errors:    r.Errors,
		DryRun:    r.DryRun,
	}
}

// Stages builds the standard ICP → Research → Signal → Priority → Action
// chain. researcher may be nil to disable web research.
func Stages(cfg *config.Config, gen llm.Generator, researcher agent.Researcher) []Stage {
	return []Stage{
		{Name: "icp", Runner: agent.NewICPAgent(gen, cfg.ICP.Criteria)},
		{Name: "research", Runner: agent.NewResearchAgent(gen, researcher)},
		{Name: "signal", Runner: signal.NewDetector()},
		{Name: "priority", Runner: agent.NewPriorityAgent(gen, cfg.Priority)},
		{Name: "action", Runner: agent.NewActionAgent(gen)},
	}
}

// Pipeline runs leads through the stages sequentially.
type Pipeline struct {
	store    LeadStore
	state    state.Store
	stages   []Stage
	cfg      config.PipelineConfig
	notifier notify.Notifier
	now      func() time.Time
}

// New creates a Pipeline. st may be nil: there is then no last run, so
// incremental selection processes only leads with missing outputs, and no
// history is kept.
func New(store LeadStore, st state.Store, stages []Stage, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		store:  store,
		state:  st,
		stages: stages,
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithNotifier sends a summary after each run.
func (p *Pipeline) WithNotifier(n notify.Notifier) *Pipeline {
	p.notifier = n
	return p
}

// WithClock overrides the time source.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run executes one pipeline pass. Per-lead failures are collected in the
// result; only database validation and lead fetch errors are returned.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{
		RunID:     uuid.New().String(),
		DryRun:    opts.DryRun,
		StartedAt: p.now().UTC(),
	}
	log := zap.L().With(zap.String("run_id", res.RunID), zap.Bool("dry_run", opts.DryRun))

	leads, err := p.loadLeads(ctx, opts.DryRun)
	if err != nil {
		return nil, err
	}

	toProcess := leads
	if !p.bypassSelection(opts) {
		lastRun := p.lastRun(ctx)
		toProcess, res.Skipped = Select(leads, lastRun)
		log.Info("pipeline: incremental selection",
			zap.Int("fetched", len(leads)),
			zap.Int("selected", len(toProcess)),
			zap.Int("skipped", res.Skipped),
		)
	}
	if opts.Limit > 0 && len(toProcess) > opts.Limit {
		toProcess = toProcess[:opts.Limit]
	}

	log.Info("pipeline: starting", zap.Int("leads", len(toProcess)))
	for i, l := range toProcess {
		if ctx.Err() != nil {
			res.Interrupted = true
			log.Warn("pipeline: interrupted, not starting remaining leads",
				zap.Int("remaining", len(toProcess)-i))
			break
		}

		c, err := p.processLead(ctx, l, opts.DryRun)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", l.DisplayName(), err.Error()))
			continue
		}
		res.Succeeded++
		res.Leads = append(res.Leads, summarize(c))
	}
	res.FinishedAt = p.now().UTC()

	if !opts.DryRun && !res.Interrupted && res.Failed == 0 {
		p.markSuccess(ctx, res.FinishedAt)
	}
	p.recordRun(ctx, res)
	p.sendNotification(ctx, res)

	log.Info("pipeline: finished",
		zap.String("summary", res.Summary()),
		zap.Bool("interrupted", res.Interrupted),
		zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

func (p *Pipeline) loadLeads(ctx context.Context, dryRun bool) ([]lead.Lead, error) {
	if dryRun {
		leads, err := lead.SampleLeads()
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: load sample leads")
		}
		return leads, nil
	}

	if err := p.store.ValidateDatabase(ctx); err != nil {
		return nil, err
	}
	leads, err := p.store.FetchLeads(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch leads")
	}
	return leads, nil
}

func (p *Pipeline) bypassSelection(opts Options) bool {
	return opts.DryRun || opts.FullRefresh || !p.cfg.Incremental
}

// lastRun reads the last successful run time. Read failures are treated as
// no prior run.
func (p *Pipeline) lastRun(ctx context.Context) *time.Time {
	if p.state == nil {
		return nil
	}
	t, ok, err := p.state.LastSuccessfulRun(ctx)
	if err != nil {
		zap.L().Warn("pipeline: read run state failed, treating as first run", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return &t
}

func (p *Pipeline) processLead(ctx context.Context, l lead.Lead, dryRun bool) (*lead.Context, error) {
	log := zap.L().With(zap.String("company", l.DisplayName()), zap.String("lead_id", l.ID))
	start := p.now()

	c := lead.NewContext(l)
	for _, s := range p.stages {
		if err := s.Runner.Run(ctx, c); err != nil {
			log.Error("pipeline: stage failed", zap.String("stage", s.Name), zap.Error(err))
			return nil, err
		}
	}

	fields := c.Fields()
	if dryRun {
		log.Info("pipeline: DRY RUN, would write fields", zap.Any("fields", fields))
	} else if err := p.store.UpdateLead(ctx, l.ID, fields); err != nil {
		log.Error("pipeline: write failed", zap.Error(err))
		return nil, err
	}

	log.Info("pipeline: lead complete", zap.Duration("duration", p.now().Sub(start)))
	return c, nil
}

func summarize(c *lead.Context) LeadSummary {
	s := LeadSummary{Company: c.Lead.DisplayName(), ICPScore: -1}
	if c.ICP != nil {
		s.ICPScore = c.ICP.Score
	}
	if c.Priority != nil {
		s.Tier = c.Priority.Tier
		s.Stale = c.Priority.Stale
	}
	if c.Action != nil {
		s.Action = c.Action.Action
	}
	return s
}

func (p *Pipeline) markSuccess(ctx context.Context, at time.Time) {
	if p.state == nil {
		return
	}
	if err := p.state.SetLastSuccessfulRun(ctx, at); err != nil {
		zap.L().Warn("pipeline: failed to save run state", zap.Error(err))
	}
}

func (p *Pipeline) recordRun(ctx context.Context, res *Result) {
	if p.state == nil {
		return
	}
	run := state.Run{
		ID:          res.RunID,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Succeeded:   res.Succeeded,
		Failed:      res.Failed,
		Skipped:     res.Skipped,
		DryRun:      res.DryRun,
		Interrupted: res.Interrupted,
		Errors:      res.Errors,
	}
	// The run context may already be cancelled; history is still worth keeping.
	if err := p.state.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		zap.L().Warn("pipeline: failed to record run", zap.Error(err))
	}
}

func (p *Pipeline) sendNotification(ctx context.Context, res *Result) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(context.WithoutCancel(ctx), res.notifySummary()); err != nil {
		zap.L().Warn("pipeline: notification failed", zap.Error(err))
	}
}
