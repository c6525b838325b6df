// Package main provides the entry point for the backtesting CLI tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchedge/internal/app"
	"github.com/yourusername/matchedge/internal/backtest"
	"github.com/yourusername/matchedge/internal/betting"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/models"
)

func main() {
	var (
		configPath  = flag.String("config", "config/config.yaml", "Path to config file")
		league      = flag.String("league", "", "League to replay")
		matchesFile = flag.String("matches", "", "JSON file of settled matches (default: database)")
		startDate   = flag.String("start-date", "", "First kickoff date (YYYY-MM-DD)")
		endDate     = flag.String("end-date", "", "Last kickoff date (YYYY-MM-DD)")
		bankroll    = flag.String("bankroll", "1000", "Initial bankroll")
		iterations  = flag.Int("monte-carlo", 1000, "Monte Carlo iterations, 0 to disable")
		seed        = flag.Int64("seed", 1, "Monte Carlo seed")
		output      = flag.String("output", "./output/backtest_results.json", "Output path for results")
	)
	flag.Parse()

	ctx := context.Background()
	cfg, err := app.LoadConfig(ctx, *configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := app.NewLogger(cfg)
	if *league == "" {
		*league = cfg.Serving.DefaultLeague
	}

	btConfig, err := buildBacktestConfig(*league, *startDate, *endDate, *bankroll, *iterations, *seed)
	if err != nil {
		log.Fatalf("Invalid backtest options: %v", err)
	}

	stack, err := app.Open(ctx, cfg, log, app.Options{Database: *matchesFile == ""})
	if err != nil {
		log.Fatalf("Failed to open backends: %v", err)
	}
	defer stack.Close()

	matches, err := loadMatches(ctx, stack, btConfig, *matchesFile)
	if err != nil {
		log.Fatalf("Failed to load matches: %v", err)
	}

	live, err := stack.Registry.Live(ctx, btConfig.League)
	if err != nil {
		log.Fatalf("No live artifact for %s: %v", btConfig.League, err)
	}

	engine, err := backtest.NewEngine(btConfig, live, stack.Builder,
		betting.NewEdgeDetector(cfg.Staking, log),
		betting.NewKellyStaker(cfg.Staking, logger.NewAuditLogger(log)),
		log)
	if err != nil {
		log.Fatalf("Failed to create backtest engine: %v", err)
	}

	log.WithFields(logrus.Fields{
		"league":  btConfig.League,
		"version": live.Version(),
		"matches": len(matches),
	}).Info("Starting backtest")

	report, err := engine.Run(ctx, matches)
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}
	report.Version = live.Version()

	fmt.Println(backtest.GenerateConsoleReport(report))
	if err := writeOutputs(report, *output); err != nil {
		log.Fatalf("Failed to export results: %v", err)
	}
	log.WithField("output", *output).Info("Backtest results exported")
}

func buildBacktestConfig(league, startDate, endDate, bankroll string, iterations int, seed int64) (backtest.Config, error) {
	btConfig := backtest.DefaultConfig(league)
	btConfig.MonteCarloIterations = iterations
	btConfig.Seed = seed

	initial, err := decimal.NewFromString(bankroll)
	if err != nil {
		return btConfig, fmt.Errorf("bankroll: %w", err)
	}
	btConfig.InitialBankroll = initial

	if startDate != "" {
		if btConfig.StartDate, err = time.Parse("2006-01-02", startDate); err != nil {
			return btConfig, fmt.Errorf("start date: %w", err)
		}
	}
	if endDate != "" {
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return btConfig, fmt.Errorf("end date: %w", err)
		}
		btConfig.EndDate = end.Add(24*time.Hour - time.Nanosecond)
	}
	return btConfig, btConfig.Validate()
}

func loadMatches(ctx context.Context, stack *app.Stack, btConfig backtest.Config, path string) ([]*models.HistoricalMatch, error) {
	if path != "" {
		all, err := app.ReadMatches(path)
		if err != nil {
			return nil, err
		}
		var out []*models.HistoricalMatch
		for _, m := range all {
			if m.Context.League == btConfig.League {
				out = append(out, m)
			}
		}
		return out, nil
	}
	if stack.Repos == nil {
		return nil, fmt.Errorf("database is disabled; pass -matches")
	}

	end := btConfig.EndDate
	if end.IsZero() {
		end = time.Now().UTC()
	} else {
		end = end.Add(time.Nanosecond)
	}
	return stack.Repos.Match.ListByLeague(ctx, btConfig.League, btConfig.StartDate, end)
}

func writeOutputs(report *backtest.Report, output string) error {
	if err := backtest.ExportToJSON(report, output); err != nil {
		return err
	}
	ext := filepath.Ext(output)
	return backtest.ExportEquityCSV(report, output[:len(output)-len(ext)]+"_equity.csv")
}
