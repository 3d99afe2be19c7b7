package setup

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
)

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, msgs ...tea.Msg) model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(model)
		require.True(t, ok)
	}
	return m
}

func goodExisting() map[string]string {
	return map[string]string{
		KeyNotionAPIKey:     "secret_token",
		KeyNotionDatabaseID: "0123456789abcdef0123456789abcdef",
		KeyClaudeAPIKey:     "sk-ant-key",
	}
}

func TestModel_DefaultsModel(t *testing.T) {
	t.Parallel()

	m := newModel(map[string]string{})
	assert.Equal(t, config.DefaultModel, m.fields[3].input.Value())
	assert.True(t, m.bootstrap)
}

func TestModel_AcceptsExistingValues(t *testing.T) {
	t.Parallel()

	m := press(t, newModel(goodExisting()), keyEnter, keyEnter, keyEnter, keyEnter)
	assert.Equal(t, stepBootstrap, m.step)

	m = press(t, m, runes("n"))
	assert.Equal(t, stepDone, m.step)

	got, err := answersFrom(m)
	require.NoError(t, err)
	assert.False(t, got.Bootstrap)
	assert.Equal(t, "secret_token", got.Values[KeyNotionAPIKey])
	assert.Equal(t, config.DefaultModel, got.Values[KeyClaudeModel])
}

func TestModel_RequiresValue(t *testing.T) {
	t.Parallel()

	m := press(t, newModel(map[string]string{}), keyEnter)
	assert.Equal(t, stepFields, m.step)
	assert.Equal(t, 0, m.focus)
	assert.Equal(t, "NOTION_API_KEY is required.", m.problem)

	m = press(t, m, runes("secret_typed"), keyEnter)
	assert.Equal(t, 1, m.focus)
	assert.Empty(t, m.problem)
	assert.Equal(t, "secret_typed", m.fields[0].input.Value())
}

func TestModel_WarningsNeedConfirmation(t *testing.T) {
	t.Parallel()

	existing := goodExisting()
	existing[KeyClaudeAPIKey] = "not-a-claude-key"

	m := press(t, newModel(existing), keyEnter, keyEnter, keyEnter, keyEnter, keyEnter)
	require.Equal(t, stepWarnings, m.step)
	assert.Equal(t, []string{"CLAUDE_API_KEY does not match expected prefix (sk-ant-)."}, m.warnings)
	assert.Contains(t, m.View(), "Continue anyway? [y/N]")

	accepted := press(t, m, runes("y"))
	got, err := answersFrom(accepted)
	require.NoError(t, err)
	assert.True(t, got.Bootstrap)

	declined := press(t, m, keyEnter)
	_, err = answersFrom(declined)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestModel_EscCancels(t *testing.T) {
	t.Parallel()

	m := press(t, newModel(goodExisting()), keyEsc)
	assert.True(t, m.cancelled)
	_, err := answersFrom(m)
	assert.ErrorIs(t, err, ErrCancelled)
}
