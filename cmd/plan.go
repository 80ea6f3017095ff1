package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/learnsmart/tutor/internal/catalog"
	"github.com/learnsmart/tutor/internal/engine"
	"github.com/learnsmart/tutor/internal/model"
	"github.com/learnsmart/tutor/internal/report"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <fixture.yaml>",
	Short: "Generate a learning plan for a fixture scenario",
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
		res, err := rt.engine.GeneratePlan(ctx, engine.PlanRequest{
			CallOptions: opts,
			Profile:     fx.Profile,
			Goals:       fx.Goals,
			Constraints: fx.Constraints,
			Catalog:     cat,
		})
		if err != nil {
			return err
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			if err := rt.store.PlanRepo().Save(ctx, res.Plan); err != nil {
				return fmt.Errorf("save plan: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		report.Plan(out, res.Plan, cat)
		used := string(res.StrategyUsed)
		if res.FellBack {
			used += " (fell back)"
		}
		fmt.Fprintln(out, report.Hint.Render("strategy: "+used))
		if res.Log != "" {
			fmt.Fprintln(out, report.Hint.Render(res.Log))
		}
		return nil
	},
}

// strategyFlag reads --strategy, defaulting to the configured strategy.
func strategyFlag(cmd *cobra.Command, fallback model.Strategy) (engine.CallOptions, error) {
	raw, _ := cmd.Flags().GetString("strategy")
	s, err := model.ParseStrategy(raw, fallback)
	if err != nil {
		return engine.CallOptions{}, err
	}
	return engine.CallOptions{Strategy: s}, nil
}

func init() {
	planCmd.Flags().StringP("strategy", "s", "", "heuristic or generative (default from engine.default_strategy)")
	planCmd.Flags().Bool("save", false, "Store the plan so later replans can revise it")
	planCmd.Flags().Bool("json", false, "Print the result as JSON")
}
