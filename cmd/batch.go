// File: cmd/batch.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/observability"
	"github.com/xkilldash9x/lancet-cli/internal/runner"
	"github.com/xkilldash9x/lancet-cli/internal/taskset"
)

// newBatchCmd creates the `batch` command for multi-task attack scenarios.
func newBatchCmd() *cobra.Command {
	var (
		file      string
		outputDir string
	)

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Runs a batch of attack tasks in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Load and validate eagerly; a bad document must fail before any
			// task touches the target.
			set, err := taskset.Load(file)
			if err != nil {
				return err
			}

			cfg := appConfig
			if cfg.SSH.Host == "" {
				cfg.SSH.Host = set.Target().Host
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			llm, err := buildLLMClient(cfg, logger)
			if err != nil {
				return err
			}
			defer closeQuietly(llm, logger)

			store, cleanup, err := buildStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			r := runner.New(cfg, llm, store, logger)
			result, err := r.RunBatch(ctx, set, outputDir)
			if err != nil {
				return err
			}

			summary := result.Summary
			logger.Info("Batch complete",
				zap.Int("total_tasks", summary.TotalTasks),
				zap.Int("completed_tasks", summary.CompletedTasks),
				zap.Float64("completion_rate", summary.CompletionRate),
				zap.Int("total_findings", summary.TotalFindings))

			fmt.Fprintf(cmd.OutOrStdout(), "Tasks: %d/%d completed (%.1f%%)\nFindings: %d\n",
				summary.CompletedTasks, summary.TotalTasks, summary.CompletionRate, summary.TotalFindings)
			for category, stats := range summary.Categories {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d/%d completed, %d findings\n",
					category, stats.Completed, stats.Total, stats.Findings)
			}
			if result.Error != "" {
				return fmt.Errorf("batch run interrupted: %s", result.Error)
			}
			return nil
		},
	}

	batchCmd.Flags().StringVarP(&file, "file", "f", "", "path to the batch task configuration file")
	batchCmd.Flags().StringVarP(&outputDir, "output", "o", "", "override the results output directory")
	_ = batchCmd.MarkFlagRequired("file")
	return batchCmd
}
