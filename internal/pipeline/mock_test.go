package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/notify"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/state"
)

// --- LeadStore Mock ---

type mockLeadStore struct {
	mock.Mock
}

func (m *mockLeadStore) ValidateDatabase(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockLeadStore) FetchLeads(ctx context.Context) ([]lead.Lead, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]lead.Lead), args.Error(1)
}

func (m *mockLeadStore) UpdateLead(ctx context.Context, id string, fields map[string]any) error {
	return m.Called(ctx, id, fields).Error(0)
}

// --- Notifier Mock ---

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, s notify.Summary) error {
	return m.Called(ctx, s).Error(0)
}

// --- In-memory run state ---

type memState struct {
	mu      sync.Mutex
	last    *time.Time
	readErr error
	runs    []state.Run
}

func (s *memState) LastSuccessfulRun(_ context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return time.Time{}, false, s.readErr
	}
	if s.last == nil {
		return time.Time{}, false, nil
	}
	return *s.last, true, nil
}

func (s *memState) SetLastSuccessfulRun(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &t
	return nil
}

func (s *memState) RecordRun(_ context.Context, run state.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append([]state.Run{run}, s.runs...)
	return nil
}

func (s *memState) ListRuns(_ context.Context, _ int) ([]state.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, nil
}

func (s *memState) Migrate(context.Context) error { return nil }
func (s *memState) Close() error                  { return nil }

// --- Stages ---

type stageFunc func(ctx context.Context, c *lead.Context) error

func (f stageFunc) Run(ctx context.Context, c *lead.Context) error { return f(ctx, c) }

// fakeStages fills every result. Companies named in fail make the ICP stage error.
func fakeStages(fail ...string) []Stage {
	failing := make(map[string]bool, len(fail))
	for _, name := range fail {
		failing[name] = true
	}
	return []Stage{
		{Name: "icp", Runner: stageFunc(func(_ context.Context, c *lead.Context) error {
			if failing[c.Lead.CompanyName] {
				return errBoom
			}
			c.ICP = &lead.ICPResult{Score: 80, Confidence: 70, Reasoning: "fit"}
			return nil
		})},
		{Name: "priority", Runner: stageFunc(func(_ context.Context, c *lead.Context) error {
			c.Priority = &lead.PriorityResult{Tier: lead.TierHigh, Reasoning: "hot", DaysSinceContact: 3, ContactKnown: true}
			return nil
		})},
		{Name: "action", Runner: stageFunc(func(_ context.Context, c *lead.Context) error {
			c.Action = &lead.ActionResult{Action: lead.ActionOutreachNow, Reasoning: "go", Confidence: lead.ConfidenceHigh}
			return nil
		})},
	}
}
