package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/pipeline"
)

// runPipeline executes one enrichment pass and sets exitCode from the result.
func runPipeline(cmd *cobra.Command, opts runOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initPipeline(ctx, opts)
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := env.Pipeline.Run(ctx, opts.pipelineOptions())
	if err != nil {
		return err
	}

	printResult(os.Stdout, res)
	exitCode = res.ExitCode()
	return nil
}

// printResult writes the human-readable run summary.
func printResult(out io.Writer, res *pipeline.Result) {
	mode := ""
	if res.DryRun {
		mode = " (dry run)"
	}
	_, _ = fmt.Fprintf(out, "\nRun %s%s: %s\n", truncateID(res.RunID), mode, res.Summary())
	if res.Interrupted {
		_, _ = fmt.Fprintln(out, "Interrupted: remaining leads were not started.")
	}
	for _, l := range res.Leads {
		_, _ = fmt.Fprintf(out, "  %-30s ICP %3d  %-7s %s\n", l.Company, l.ICPScore, l.Tier, l.Action)
	}
	if len(res.Errors) > 0 {
		_, _ = fmt.Fprintln(out, "Errors:")
		for _, e := range res.Errors {
			_, _ = fmt.Fprintf(out, "  - %s\n", e)
		}
	}
}
