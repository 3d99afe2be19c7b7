package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create missing output columns in the Notion database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireNotion(); err != nil {
			return err
		}
		ctx := cmd.Context()
		store := newCRMStore()

		if err := store.ValidateDatabase(ctx); err != nil {
			return err
		}
		created, err := store.BootstrapOutputProperties(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(created) == 0 {
			_, _ = fmt.Fprintln(out, "Output properties already present. No schema changes needed.")
			return nil
		}
		_, _ = fmt.Fprintln(out, "Created missing output properties:")
		for _, name := range created {
			_, _ = fmt.Fprintf(out, "- %s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}
