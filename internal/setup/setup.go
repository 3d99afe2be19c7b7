// Package setup implements the first-run wizard: it collects credentials,
// writes .env, verifies access, and optionally creates missing output columns.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultEnvPath is where the wizard reads and writes configuration.
const DefaultEnvPath = ".env"

// Database is the part of the lead store the wizard verifies.
type Database interface {
	ValidateDatabase(ctx context.Context) error
	BootstrapOutputProperties(ctx context.Context) ([]string, error)
}

// Wizard runs the setup flow.
type Wizard struct {
	EnvPath  string
	Out      io.Writer
	Prompter Prompter
	// Connect opens the lead database using the entered values.
	Connect func(values map[string]string) (Database, error)
	// CheckClaude verifies the Claude key and model; nil skips the check.
	CheckClaude func(ctx context.Context, key, model string) error
}

// Run executes the wizard and returns the process exit code.
func (w *Wizard) Run(ctx context.Context) int {
	path := w.EnvPath
	if path == "" {
		path = DefaultEnvPath
	}

	existing, err := ReadEnv(path)
	if err != nil {
		w.printf("%s\n", errorStyle.Render(err.Error()))
		return 1
	}

	answers, err := w.Prompter.Prompt(existing)
	if errors.Is(err, ErrCancelled) {
		w.printf("Setup cancelled.\n")
		return 1
	}
	if err != nil {
		w.printf("%s\n", errorStyle.Render(err.Error()))
		return 1
	}

	values := maps.Clone(existing)
	maps.Copy(values, answers.Values)
	if err := WriteEnv(path, values); err != nil {
		w.printf("%s\n", errorStyle.Render(err.Error()))
		return 1
	}
	for k, v := range answers.Values {
		_ = os.Setenv(k, v)
	}
	w.printf("\nSaved configuration to %s\n", path)

	db, err := w.Connect(values)
	if err != nil {
		w.printf("\n%s\n", errorStyle.Render("Setup failed during validation: "+err.Error()))
		return 1
	}
	if err := w.verify(ctx, db, values); err != nil {
		w.printf("\n%s\n", errorStyle.Render("Setup failed during validation: "+err.Error()))
		return 1
	}
	w.printf("%s\n", successStyle.Render("Notion access check: OK"))
	if w.CheckClaude != nil {
		w.printf("%s\n", successStyle.Render("Claude access check: OK"))
	}

	if answers.Bootstrap {
		created, err := db.BootstrapOutputProperties(ctx)
		if err != nil {
			w.printf("\n%s\n", errorStyle.Render("Setup failed creating output columns: "+err.Error()))
			return 1
		}
		if len(created) == 0 {
			w.printf("Output properties already present. No schema changes needed.\n")
		} else {
			w.printf("Created missing output properties:\n")
			for _, name := range created {
				w.printf("- %s\n", name)
			}
		}
	}

	w.printf("\nSetup complete. Next step: run `crm-copilot --dry-run`.\n")
	return 0
}

// verify checks Notion and Claude access concurrently.
func (w *Wizard) verify(ctx context.Context, db Database, values map[string]string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return db.ValidateDatabase(gctx)
	})
	if w.CheckClaude != nil {
		g.Go(func() error {
			return w.CheckClaude(gctx, values[KeyClaudeAPIKey], values[KeyClaudeModel])
		})
	}
	if err := g.Wait(); err != nil {
		zap.L().Debug("setup: credential check failed", zap.Error(err))
		return err
	}
	return nil
}

func (w *Wizard) printf(format string, args ...any) {
	out := w.Out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, format, args...)
}
