// Package backtest replays historical matches through a trained artifact,
// the edge detector and the Kelly staker with a running bankroll.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchedge/internal/betting"
	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/metrics"
	"github.com/yourusername/matchedge/internal/models"
)

// Predictor produces calibrated probabilities for a feature vector.
type Predictor interface {
	Predict(vec *features.MatchFeatureVector) (calibrated, raw models.Probabilities, level1 []models.Level1Prediction, err error)
}

// Engine orchestrates backtesting runs
type Engine struct {
	config    Config
	predictor Predictor
	builder   *features.Builder
	detector  *betting.EdgeDetector
	staker    *betting.KellyStaker
	logger    *logrus.Logger
}

// NewEngine creates a new backtesting engine
func NewEngine(cfg Config, predictor Predictor, builder *features.Builder, detector *betting.EdgeDetector, staker *betting.KellyStaker, logger *logrus.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if predictor == nil {
		return nil, fmt.Errorf("predictor is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		config:    cfg,
		predictor: predictor,
		builder:   builder,
		detector:  detector,
		staker:    staker,
		logger:    logger,
	}, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() Config {
	return e.config
}

// Run replays matches and summarises the result.
func (e *Engine) Run(ctx context.Context, matches []*models.HistoricalMatch) (*Report, error) {
	started := time.Now()
	e.logger.WithFields(logrus.Fields{
		"league":  e.config.League,
		"matches": len(matches),
	}).Info("Starting backtest run")

	state, err := e.Replay(ctx, matches)
	if err != nil {
		metrics.RecordBacktestRun(e.config.League, "failure", time.Since(started).Seconds())
		return nil, err
	}

	report := &Report{
		League:  e.config.League,
		Metrics: CalculateMetrics(state, e.config),
		Equity:  state.EquityCurve,
		Bets:    state.Bets,
	}
	if e.config.MonteCarloIterations > 0 && len(state.Bets) > 0 {
		mc, err := RunMonteCarlo(ctx, state.Bets, MonteCarloConfig{
			Iterations:      e.config.MonteCarloIterations,
			Seed:            e.config.Seed,
			InitialBankroll: e.config.InitialBankroll.InexactFloat64(),
			RuinFraction:    e.config.RuinFraction,
		})
		if err != nil {
			metrics.RecordBacktestRun(e.config.League, "failure", time.Since(started).Seconds())
			return nil, err
		}
		report.MonteCarlo = &mc
	}

	metrics.RecordBacktestRun(e.config.League, "success", time.Since(started).Seconds())
	metrics.UpdateBacktestROI(e.config.League, report.Metrics.ROI)
	e.logger.WithFields(logrus.Fields{
		"league":       e.config.League,
		"bets":         report.Metrics.TotalBets,
		"roi":          report.Metrics.ROI,
		"max_drawdown": report.Metrics.MaxDrawdown,
	}).Info("Backtest complete")
	return report, nil
}

// Replay walks matches in kickoff order. Each match is priced against the
// bankroll before its kickoff and settled before the next one is priced.
func (e *Engine) Replay(ctx context.Context, matches []*models.HistoricalMatch) (*State, error) {
	ordered := make([]*models.HistoricalMatch, 0, len(matches))
	for _, m := range matches {
		if m != nil && e.config.inRange(m.Context.KickoffAt) {
			ordered = append(ordered, m)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Context.KickoffAt.Before(ordered[j].Context.KickoffAt)
	})

	start := e.config.StartDate
	if start.IsZero() && len(ordered) > 0 {
		start = ordered[0].Context.KickoffAt
	}
	state := NewState(e.config.InitialBankroll, start)

	for _, m := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !state.Bankroll.IsPositive() {
			e.logger.WithField("match_id", m.Context.MatchID).Warn("Bankroll exhausted, stopping replay")
			break
		}
		if err := e.processMatch(m, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (e *Engine) processMatch(m *models.HistoricalMatch, state *State) error {
	if !m.Result.Valid() {
		state.Skipped++
		return nil
	}
	raw := m.Context
	vec, err := e.builder.Build(&raw)
	if err != nil {
		var schemaErr *models.SchemaError
		if errors.As(err, &schemaErr) {
			state.Skipped++
			return nil
		}
		return err
	}

	calibrated, _, _, err := e.predictor.Predict(vec)
	if err != nil {
		return fmt.Errorf("predict %s: %w", raw.MatchID, err)
	}
	state.Matches++

	odds := m.Bookmakers
	if len(odds) == 0 && raw.MarketOdds != nil {
		odds = models.BookmakerOdds{"market": *raw.MarketOdds}
	}
	bets, err := e.detector.Detect(betting.DetectRequest{
		MatchID:    raw.MatchID,
		Fair:       calibrated,
		Confidence: calibrated.Max(),
		Odds:       odds,
		Closing:    m.ClosingOdds,
		Bankroll:   state.Bankroll,
	})
	if err != nil {
		return fmt.Errorf("detect %s: %w", raw.MatchID, err)
	}

	bankroll := state.Bankroll
	placed := false
	for _, bet := range bets {
		rec := e.staker.Stake(bet, bankroll)
		if rec.IsZero() {
			continue
		}
		state.Apply(Settle(bet, rec, m.Result, raw.KickoffAt))
		placed = true
	}
	if placed {
		state.RecordEquityPoint(raw.KickoffAt, state.Bankroll)
	}
	return nil
}

// Settle resolves a staked bet against the actual result.
func Settle(bet models.ValueBet, rec models.StakeRecommendation, actual models.Outcome, at time.Time) *SettledBet {
	won := bet.Outcome == actual
	pnl := rec.Stake.Neg()
	if won {
		pnl = rec.Stake.Mul(decimal.NewFromFloat(bet.Odds).Sub(decimal.NewFromInt(1))).Round(2)
	}
	return &SettledBet{
		MatchID:    bet.MatchID,
		KickoffAt:  at,
		Bet:        bet,
		Stake:      rec,
		Actual:     actual,
		Won:        won,
		ProfitLoss: pnl,
	}
}
