package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/database"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/shieldforce/guard-dispatch/internal/services"
	"github.com/shieldforce/guard-dispatch/internal/utils"
	"github.com/shieldforce/guard-dispatch/pkg/jwt"
	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Poll every accepted shift that has started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := cli.openEngine()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			cli.logger.Info("[MANUAL] Running at-risk sweep")
			result, err := engine.Cron.RunSweepNow(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Checked %d shifts: %d welfare checks, %d escalated, %d errors\n",
				result.Checked, result.Welfare, result.Escalated, result.Errors)
			return nil
		},
	}
}

func autoAssignCmd() *cobra.Command {
	var opts services.AutoAssignOptions
	var preferred, excluded []string
	var maxDistance float64

	cmd := &cobra.Command{
		Use:   "auto-assign <booking_id>",
		Short: "Offer a booking's unfilled shifts to the best candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("booking_id must be a UUID: %w", err)
			}
			if opts.PreferredIDs, err = parseIDs(preferred); err != nil {
				return err
			}
			if opts.ExcludedIDs, err = parseIDs(excluded); err != nil {
				return err
			}
			if maxDistance > 0 {
				opts.MaxDistanceKm = &maxDistance
			}

			engine, err := cli.openEngine()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			result, err := engine.Planner.AutoAssignShifts(ctx, bookingID, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Assigned %d, unassigned %d\n", result.Assigned, result.Unassigned)
			return printJSON(result.Shifts)
		},
	}

	cmd.Flags().Float64Var(&opts.MinScore, "min-score", 0, "Minimum total score a candidate needs")
	cmd.Flags().BoolVar(&opts.PrioritizeShield, "prioritize-shield", false, "Weight Shield Score more heavily")
	cmd.Flags().BoolVar(&opts.PrioritizeDistance, "prioritize-distance", false, "Weight distance more heavily")
	cmd.Flags().BoolVar(&opts.PrioritizeSkill, "prioritize-skills", false, "Weight skill match more heavily")
	cmd.Flags().Float64Var(&maxDistance, "max-distance", 0, "Override every guard's travel radius (km)")
	cmd.Flags().StringSliceVar(&preferred, "prefer", nil, "Personnel IDs that get the preferred bonus")
	cmd.Flags().StringSliceVar(&excluded, "exclude", nil, "Personnel IDs to skip")

	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <shift_id>",
		Short: "Run one guard status check on an accepted shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shiftID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("shift_id must be a UUID: %w", err)
			}
			engine, err := cli.openEngine()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			result, err := engine.Dispatcher.CheckGuardStatus(ctx, shiftID, models.SystemActor)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func findReplacementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find-replacement <shift_id>",
		Short: "Send urgent offers for an at-risk shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shiftID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("shift_id must be a UUID: %w", err)
			}
			engine, err := cli.openEngine()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			result, err := engine.Dispatcher.FindReplacement(ctx, shiftID, models.SystemActor)
			if err != nil {
				return err
			}
			if !result.Success && result.Error != nil {
				return result.Error
			}
			fmt.Printf("Urgent offers sent to %d guards at %.2f/h\n", len(result.Candidates), result.SurgeRate)
			return printJSON(result.Candidates)
		},
	}
}

func scoreHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "score-history <personnel_id>",
		Short: "List a guard's Shield Score changes, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personnelID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("personnel_id must be a UUID: %w", err)
			}
			engine, err := cli.openEngine()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			history, err := engine.Scores.History(ctx, personnelID, limit)
			if err != nil {
				return err
			}
			return printJSON(history)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", services.DefaultHistoryLimit, "Maximum entries to print")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cli.openDB()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext()
			defer cancel()

			applied, err := database.RunMigrations(ctx, db.DB)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("Schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Println("Applied", name)
			}
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "token <user_id>",
		Short: "Mint an access token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("user_id must be a UUID: %w", err)
			}
			token, err := jwt.NewService(cli.cfg.JWT.Secret, cli.cfg.JWT.TokenExpiry).GenerateAccessToken(userID, roles)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&roles, "role", []string{"admin"}, "Roles to embed (venue, personnel, agency, admin)")
	return cmd
}

func secretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Print a random 256-bit value for JWT_SECRET",
		Args:  cobra.NoArgs,
		// Runs before config exists, so skip loading it
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		PersistentPostRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := utils.GenerateSecret(32)
			if err != nil {
				return err
			}
			fmt.Println(secret)
			return nil
		},
	}
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid personnel id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
