package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/crm"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/setup"
	anthropicpkg "github.com/whassan99/Notion-AI-CRM-Agents/pkg/anthropic"
	"github.com/whassan99/Notion-AI-CRM-Agents/pkg/notion"
)

var setupEnvPath string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive first-time configuration",
	Long:  "Prompts for credentials, writes .env, verifies Notion and Claude access, and can create missing output columns.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSetup(cmd)
	},
}

func runSetup(cmd *cobra.Command) error {
	w := &setup.Wizard{
		EnvPath:  setupEnvPath,
		Out:      cmd.OutOrStdout(),
		Prompter: setup.TUI{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()},
		Connect: func(values map[string]string) (setup.Database, error) {
			nc := cfg.Notion
			nc.Token = values[setup.KeyNotionAPIKey]
			nc.DatabaseID = values[setup.KeyNotionDatabaseID]
			client := notion.NewClient(nc.Token, notion.WithRateLimit(nc.RateLimit))
			return crm.New(client, nc, cfg.Retry), nil
		},
		CheckClaude: checkClaude,
	}
	exitCode = w.Run(cmd.Context())
	return nil
}

// checkClaude sends a one-token request to confirm the key and model work.
func checkClaude(ctx context.Context, key, model string) error {
	if model == "" {
		model = config.DefaultModel
	}
	_, err := anthropicpkg.NewClient(key).CreateMessage(ctx, anthropicpkg.MessageRequest{
		Model:     model,
		MaxTokens: 1,
		Messages:  []anthropicpkg.Message{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		return eris.Wrap(err, "claude access check")
	}
	return nil
}

func init() {
	setupCmd.Flags().StringVar(&setupEnvPath, "env-file", setup.DefaultEnvPath, "path of the .env file to read and write")
	rootCmd.Flags().StringVar(&setupEnvPath, "env-file", setup.DefaultEnvPath, "path of the .env file used by --setup")
	rootCmd.AddCommand(setupCmd)
}
