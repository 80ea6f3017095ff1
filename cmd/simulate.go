package cmd

import (
	"fmt"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/report"
	"github.com/learnsmart/tutor/internal/simulate"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <fixture.yaml>",
	Short: "Run synthetic learners through plan, assess and replan cycles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fx, err := catalog.Load(args[0])
		if err != nil {
			return err
		}
		cat, err := fx.Catalog()
		if err != nil {
			return err
		}

		rt, err := newRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		opts, err := strategyFlag(cmd, rt.cfg.Engine.DefaultStrategy)
		if err != nil {
			return err
		}
		sc := simulate.DefaultConfig()
		sc.Strategy = opts.Strategy
		sc.Learners, _ = cmd.Flags().GetInt("learners")
		sc.Rounds, _ = cmd.Flags().GetInt("rounds")
		sc.ReplanEvery, _ = cmd.Flags().GetInt("replan-every")
		sc.Parallel, _ = cmd.Flags().GetInt("parallel")
		sc.Seed, _ = cmd.Flags().GetUint64("seed")

		runner := simulate.New(rt.engine, rt.store.PlanRepo(), rt.store.LearnerEventRepo(), sc, rt.logger)
		outcomes, err := runner.Run(ctx, fx, cat)
		if err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		out := cmd.OutOrStdout()
		for _, o := range outcomes {
			fmt.Fprintln(out, report.Title.Render(o.UserID)+report.Subtitle.Render(
				fmt.Sprintf("  %d/%d correct, %d pending, %d replans", o.Correct, o.Answered, o.Pending, o.Replans())))
			report.Mastery(out, o.States, rt.cfg.Engine.Mastery)
			if verbose {
				for i, c := range o.Changes {
					fmt.Fprintln(out, report.Hint.Render(fmt.Sprintf("replan %d", i+1)))
					report.Changes(out, c)
				}
				report.Plan(out, o.Plan, cat)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	d := simulate.DefaultConfig()
	simulateCmd.Flags().StringP("strategy", "s", "", "heuristic or generative (default from engine.default_strategy)")
	simulateCmd.Flags().IntP("learners", "l", d.Learners, "Number of simulated learners")
	simulateCmd.Flags().IntP("rounds", "r", d.Rounds, "Items answered per learner")
	simulateCmd.Flags().Int("replan-every", d.ReplanEvery, "Replan after this many answers (0 disables)")
	simulateCmd.Flags().Int("parallel", d.Parallel, "Learners simulated concurrently")
	simulateCmd.Flags().Uint64("seed", d.Seed, "Random seed for learner abilities and answers")
	simulateCmd.Flags().BoolP("verbose", "v", false, "Print every replan diff and the final plan")
}
