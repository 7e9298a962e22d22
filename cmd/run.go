// File: cmd/run.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/observability"
	"github.com/xkilldash9x/lancet-cli/internal/runner"
)

// defaultGoals is the built-in goal catalogue shown by --list-goals. Any
// free-form goal is accepted too; these are common starting points.
var defaultGoals = []string{
	"Enumerate all services running on the target system",
	"Find and extract sensitive files from the system",
	"Identify misconfigurations in system services",
	"Discover potential privilege escalation paths",
	"Establish a persistent backdoor in the system",
	"Enumerate all user accounts on the system",
	"Scan for vulnerable services and applications",
	"Extract database credentials and content",
}

// newRunCmd creates the `run` command for single ad hoc goals.
func newRunCmd() *cobra.Command {
	var (
		goal        string
		listGoals   bool
		extractMode string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a single attack goal against the configured target",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Flag overrides take precedence over config file and env values.
			if err := viper.BindPFlag("attack.max_steps", cmd.Flags().Lookup("max-steps")); err != nil {
				return err
			}
			return viper.BindPFlag("ssh.host", cmd.Flags().Lookup("target"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if listGoals {
				for i, g := range defaultGoals {
					fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s\n", i+1, g)
				}
				return nil
			}
			if goal == "" {
				return fmt.Errorf("--goal is required (use --list-goals to see the built-in catalogue)")
			}

			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := appConfig
			cfg.Attack.MaxSteps = viper.GetInt("attack.max_steps")
			cfg.SSH.Host = viper.GetString("ssh.host")
			if noSummarizer, _ := cmd.Flags().GetBool("no-summarizer"); noSummarizer {
				cfg.Attack.UseSummarizer = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			mode := runner.ExtractMode(extractMode)
			if mode != runner.ExtractLLM && mode != runner.ExtractScan {
				return fmt.Errorf("invalid --extract mode %q: must be %q or %q", extractMode, runner.ExtractLLM, runner.ExtractScan)
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
			report, err := r.RunGoal(ctx, goal, mode)
			if err != nil {
				return err
			}

			logger.Info("Run complete",
				zap.Bool("goal_reached", report.GoalReached),
				zap.Int("steps_executed", report.StepsExecuted),
				zap.Int("findings", len(report.Findings)))

			fmt.Fprintf(cmd.OutOrStdout(), "Goal reached: %t\nSteps executed: %d\nFindings: %d\n",
				report.GoalReached, report.StepsExecuted, len(report.Findings))
			if report.Summary != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", report.Summary)
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&goal, "goal", "g", "", "attack goal to pursue")
	runCmd.Flags().String("target", "", "target host (overrides ssh.host)")
	runCmd.Flags().Int("max-steps", 0, "maximum number of attack steps")
	runCmd.Flags().Bool("no-summarizer", false, "disable transcript condensation")
	runCmd.Flags().StringVar(&extractMode, "extract", string(runner.ExtractLLM), "findings extraction strategy: llm or scan")
	runCmd.Flags().BoolVar(&listGoals, "list-goals", false, "list the built-in attack goal catalogue and exit")
	return runCmd
}
