package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
)

var cfg *config.Config

// exitCode is set by commands that finish without an error but must still
// report failure, e.g. a run where every lead failed.
var exitCode int

var (
	flagLimit       int
	flagDryRun      bool
	flagNoWeb       bool
	flagFullRefresh bool
	flagSlack       bool
	flagSetup       bool
)

var rootCmd = &cobra.Command{
	Use:   "crm-copilot",
	Short: "AI enrichment pipeline for a Notion CRM",
	Long: "Reads leads from a Notion database, scores ICP fit, writes a research brief, " +
		"detects buying signals, assigns a priority tier, and recommends the next action.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagSetup {
			return runSetup(cmd)
		}
		return runPipeline(cmd, runOptions{
			Limit:       flagLimit,
			DryRun:      flagDryRun,
			NoWeb:       flagNoWeb,
			FullRefresh: flagFullRefresh,
			Slack:       flagSlack,
		})
	},
}

func init() {
	f := rootCmd.Flags()
	f.IntVar(&flagLimit, "limit", 0, "process at most N selected leads (0 = no limit)")
	f.BoolVar(&flagDryRun, "dry-run", false, "run on built-in sample leads without touching Notion")
	f.BoolVar(&flagNoWeb, "no-web", false, "disable live web research for this run")
	f.BoolVar(&flagFullRefresh, "full-refresh", false, "process every lead, ignoring incremental state")
	f.BoolVar(&flagSlack, "slack", false, "send a run summary to SLACK_WEBHOOK_URL")
	f.BoolVar(&flagSetup, "setup", false, "run the interactive setup wizard")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
