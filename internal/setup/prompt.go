package setup

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
)

// ErrCancelled is returned when the user aborts the wizard.
var ErrCancelled = eris.New("setup: cancelled")

// Answers is what the user entered.
type Answers struct {
	Values    map[string]string
	Bootstrap bool
}

// Prompter collects answers, starting from the values already in .env.
type Prompter interface {
	Prompt(existing map[string]string) (*Answers, error)
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

type step int

const (
	stepFields step = iota
	stepBootstrap
	stepWarnings
	stepDone
)

type field struct {
	key   string
	input textinput.Model
}

type model struct {
	fields    []field
	focus     int
	step      step
	bootstrap bool
	warnings  []string
	problem   string
	cancelled bool
}

func newField(key, value string, secret bool) field {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 256
	in.Width = 60
	in.SetValue(value)
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return field{key: key, input: in}
}

func newModel(existing map[string]string) model {
	modelName := existing[KeyClaudeModel]
	if modelName == "" {
		modelName = config.DefaultModel
	}
	m := model{
		fields: []field{
			newField(KeyNotionAPIKey, existing[KeyNotionAPIKey], true),
			newField(KeyNotionDatabaseID, existing[KeyNotionDatabaseID], false),
			newField(KeyClaudeAPIKey, existing[KeyClaudeAPIKey], true),
			newField(KeyClaudeModel, modelName, false),
		},
		bootstrap: true,
	}
	m.fields[0].input.Focus()
	return m
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m.updateInput(msg)
	}
	switch key.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	}

	switch m.step {
	case stepFields:
		if key.Type != tea.KeyEnter {
			return m.updateInput(msg)
		}
		cur := &m.fields[m.focus]
		if strings.TrimSpace(cur.input.Value()) == "" {
			m.problem = cur.key + " is required."
			return m, nil
		}
		m.problem = ""
		cur.input.Blur()
		if m.focus < len(m.fields)-1 {
			m.focus++
			m.fields[m.focus].input.Focus()
			return m, textinput.Blink
		}
		m.step = stepBootstrap

	case stepBootstrap:
		switch strings.ToLower(key.String()) {
		case "y", "enter":
			m.bootstrap = true
		case "n":
			m.bootstrap = false
		default:
			return m, nil
		}
		if m.warnings = Warnings(m.values()); len(m.warnings) > 0 {
			m.step = stepWarnings
			return m, nil
		}
		m.step = stepDone
		return m, tea.Quit

	case stepWarnings:
		switch strings.ToLower(key.String()) {
		case "y":
			m.step = stepDone
		case "n", "enter":
			m.cancelled = true
		default:
			return m, nil
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.step != stepFields {
		return m, nil
	}
	var cmd tea.Cmd
	m.fields[m.focus].input, cmd = m.fields[m.focus].input.Update(msg)
	return m, cmd
}

func (m model) values() map[string]string {
	out := make(map[string]string, len(m.fields))
	for _, f := range m.fields {
		out[f.key] = strings.TrimSpace(f.input.Value())
	}
	return out
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Notion AI CRM setup wizard"))
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("Configuration is saved to .env and your Notion connection is verified."))
	b.WriteString("\n\n")

	for i, f := range m.fields {
		if i > m.focus && m.step == stepFields {
			break
		}
		b.WriteString(labelStyle.Render(f.key))
		b.WriteString("\n")
		b.WriteString(f.input.View())
		b.WriteString("\n")
	}
	if m.problem != "" {
		b.WriteString(errorStyle.Render(m.problem))
		b.WriteString("\n")
	}

	switch m.step {
	case stepBootstrap:
		b.WriteString("\nAuto-create missing output columns in your Notion database? [Y/n]\n")
	case stepWarnings:
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("Potential issues detected:"))
		b.WriteString("\n")
		for _, w := range m.warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("Continue anyway? [y/N]\n")
	case stepFields:
		b.WriteString(hintStyle.Render("\nenter: next • esc: cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

// TUI prompts interactively in the terminal.
type TUI struct {
	In  io.Reader
	Out io.Writer
}

// Prompt runs the interactive form.
func (t TUI) Prompt(existing map[string]string) (*Answers, error) {
	var opts []tea.ProgramOption
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}

	final, err := tea.NewProgram(newModel(existing), opts...).Run()
	if err != nil {
		return nil, eris.Wrap(err, "setup: run prompt")
	}
	return answersFrom(final.(model))
}

func answersFrom(m model) (*Answers, error) {
	if m.cancelled || m.step != stepDone {
		return nil, ErrCancelled
	}
	return &Answers{Values: m.values(), Bootstrap: m.bootstrap}, nil
}
