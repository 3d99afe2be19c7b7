package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/llm"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/research"
)

// --- Generator Mock ---

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// --- Researcher Mock ---

type mockResearcher struct {
	mock.Mock
}

func (m *mockResearcher) Research(ctx context.Context, l lead.Lead) (*research.Result, error) {
	args := m.Called(ctx, l)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*research.Result), args.Error(1)
}

func purpose(p string) any {
	return mock.MatchedBy(func(req llm.Request) bool { return req.Purpose == p })
}
