package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/matchedge/internal/app"
	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/models"
	"github.com/yourusername/matchedge/internal/oddsfeed"
	"github.com/yourusername/matchedge/internal/service"
)

var (
	configFile   string
	matchID      string
	contextFile  string
	bankroll     string
	includeAvoid bool

	cfg    *config.Config
	logger *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVar(&matchID, "match", "", "Match ID to fetch from the odds feed")
	rootCmd.Flags().StringVar(&contextFile, "context", "", "JSON file holding the match context")
	rootCmd.Flags().StringVarP(&bankroll, "bankroll", "b", "1000", "Bankroll to size stakes against")
	rootCmd.Flags().BoolVar(&includeAvoid, "include-avoid", false, "Include zero-stake recommendations")
}

var rootCmd = &cobra.Command{
	Use:   "predict",
	Short: "Price a single match",
	Long:  `Builds features for a match, serves the calibrated ensemble prediction and prints value bets and stakes as JSON.`,
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
		if (matchID == "") == (contextFile == "") {
			return fmt.Errorf("exactly one of --match or --context is required")
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
	funds, err := decimal.NewFromString(bankroll)
	if err != nil {
		return fmt.Errorf("invalid bankroll: %w", err)
	}

	req := service.PredictRequest{Bankroll: funds, IncludeAvoid: includeAvoid}
	if contextFile != "" {
		if req.Match, err = app.ReadMatchContext(contextFile); err != nil {
			return err
		}
	} else {
		if req.Match, req.Odds, req.Closing, err = fetch(ctx); err != nil {
			return err
		}
	}

	stack, err := app.Open(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer stack.Close()

	svc, err := service.NewPredictionService(stack.Registry, stack.Builder, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Predict(ctx, req)
	if err != nil {
		return err
	}
	return app.WriteJSON(os.Stdout, result)
}

func fetch(ctx context.Context) (*models.RawMatchContext, models.BookmakerOdds, *models.OutcomeOdds, error) {
	if cfg.OddsFeed.BaseURL == "" {
		return nil, nil, nil, fmt.Errorf("odds_feed.base_url is not configured")
	}
	client := oddsfeed.NewClient(cfg.OddsFeed, logger)
	defer client.Close()

	mc, err := client.FetchMatchContext(ctx, matchID)
	if err != nil {
		return nil, nil, nil, err
	}
	snap, err := client.FetchOdds(ctx, matchID)
	if err != nil {
		return nil, nil, nil, err
	}
	return mc, snap.Bookmakers, snap.Closing, nil
}
