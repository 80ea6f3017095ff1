package cmd

import (
	"fmt"
	"time"

	"github.com/learnsmart/tutor/internal/report"
	"github.com/learnsmart/tutor/internal/store"
	"github.com/spf13/cobra"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect the decision audit log",
}

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audited engine decisions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := store.DecisionQuery{}
		q.Limit, _ = cmd.Flags().GetInt("limit")
		q.Op, _ = cmd.Flags().GetString("op")
		q.UserID, _ = cmd.Flags().GetString("user")
		q.PlanID, _ = cmd.Flags().GetString("plan")
		if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
			q.From = time.Now().Add(-since)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		decisions, err := s.DecisionRepo().QueryDecisions(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("query decisions: %w", err)
		}
		if len(decisions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No decisions recorded.")
			return nil
		}
		report.Decisions(cmd.OutOrStdout(), decisions)
		return nil
	},
}

// openStore opens the database for read-only inspection commands.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

func init() {
	decisionsListCmd.Flags().IntP("limit", "n", 50, "Number of decisions to show")
	decisionsListCmd.Flags().String("op", "", "Filter by operation (generate_plan, replan, next_item, grade, update_mastery, generate_lessons)")
	decisionsListCmd.Flags().String("user", "", "Filter by learner id")
	decisionsListCmd.Flags().String("plan", "", "Filter by plan id; shows the plan's replan history")
	decisionsListCmd.Flags().Duration("since", 0, "Only decisions newer than this (e.g. 24h)")

	decisionsCmd.AddCommand(decisionsListCmd)
}
