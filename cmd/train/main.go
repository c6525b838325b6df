package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/matchedge/internal/app"
	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/models"
	"github.com/yourusername/matchedge/internal/service"
)

var (
	configFile  string
	league      string
	matchesFile string
	startDate   string
	endDate     string
	retrainAll  bool

	cfg    *config.Config
	logger *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVarP(&league, "league", "l", "", "League to train")
	rootCmd.Flags().StringVarP(&matchesFile, "matches", "m", "", "JSON file of settled matches (default: database)")
	rootCmd.Flags().StringVar(&startDate, "start", "", "First kickoff date to train on (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&endDate, "end", "", "Last kickoff date to train on (YYYY-MM-DD)")
	rootCmd.Flags().BoolVar(&retrainAll, "all", false, "Retrain every configured league from the database")
}

var rootCmd = &cobra.Command{
	Use:   "train",
	Short: "Train and promote a league model",
	Long: `Fits the stacked ensemble for a league on settled history, registers the
artifact and promotes it when it beats the live artifact on the holdout.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = app.LoadConfig(cmd.Context(), configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = app.NewLogger(cfg)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !retrainAll && league == "" {
			return fmt.Errorf("--league or --all is required")
		}
		return run(cmd.Context())
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context) error {
	stack, err := app.Open(ctx, cfg, logger, app.Options{Database: matchesFile == "", Kafka: true})
	if err != nil {
		return err
	}
	defer stack.Close()

	var source service.MatchSource
	if stack.Repos != nil {
		source = stack.Repos.Match
	}
	trainer, err := service.NewTrainingService(stack.Registry, stack.Builder, cfg, source, logger)
	if err != nil {
		return err
	}

	if retrainAll {
		results, err := trainer.Retrain(ctx)
		for _, r := range results {
			printResult(r)
		}
		return err
	}

	matches, err := loadMatches(ctx, stack)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"league": league, "matches": len(matches)}).Info("Training league model")

	result, err := trainer.Train(ctx, league, matches)
	if err != nil {
		return err
	}
	printResult(result)
	return app.WriteJSON(os.Stdout, result)
}

func loadMatches(ctx context.Context, stack *app.Stack) ([]*models.HistoricalMatch, error) {
	if matchesFile != "" {
		matches, err := app.ReadMatches(matchesFile)
		if err != nil {
			return nil, err
		}
		filtered := matches[:0]
		for _, m := range matches {
			if m.Context.League == league {
				filtered = append(filtered, m)
			}
		}
		return filtered, nil
	}
	if stack.Repos == nil {
		return nil, fmt.Errorf("database is disabled; pass --matches")
	}

	start, end, err := dateRange()
	if err != nil {
		return nil, err
	}
	return stack.Repos.Match.ListByLeague(ctx, league, start, end)
}

func dateRange() (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := time.Time{}
	if cfg.Retraining.LookbackDays > 0 {
		start = end.AddDate(0, 0, -cfg.Retraining.LookbackDays)
	}
	var err error
	if startDate != "" {
		if start, err = time.Parse("2006-01-02", startDate); err != nil {
			return start, end, fmt.Errorf("invalid start date: %w", err)
		}
	}
	if endDate != "" {
		if end, err = time.Parse("2006-01-02", endDate); err != nil {
			return start, end, fmt.Errorf("invalid end date: %w", err)
		}
		end = end.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return start, end, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}

func printResult(r *service.TrainResult) {
	fmt.Fprintf(os.Stderr, "\n=== %s ===\n", r.League)
	if r.Version == "" {
		fmt.Fprintln(os.Stderr, "  no artifact produced")
		return
	}
	fmt.Fprintf(os.Stderr, "  Version:      %s\n", r.Version)
	fmt.Fprintf(os.Stderr, "  Train rows:   %d\n", r.TrainRows)
	fmt.Fprintf(os.Stderr, "  Holdout rows: %d\n", r.HoldoutRows)
	fmt.Fprintf(os.Stderr, "  Skipped:      %d\n", r.Skipped)
	if r.Unchanged {
		fmt.Fprintln(os.Stderr, "  Artifact already registered; promotion re-evaluated")
	}
	if d := r.Decision; d != nil {
		fmt.Fprintf(os.Stderr, "  Promoted:     %v (%s)\n", d.Promoted, d.Reason)
	}
}
