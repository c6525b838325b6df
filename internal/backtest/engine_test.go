package backtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/betting"
	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/models"
)

var firstKickoff = time.Date(2024, 8, 17, 15, 0, 0, 0, time.UTC)

type fixedPredictor struct {
	p     models.Probabilities
	calls int
}

func (f *fixedPredictor) Predict(vec *features.MatchFeatureVector) (models.Probabilities, models.Probabilities, []models.Level1Prediction, error) {
	f.calls++
	return f.p, f.p, nil, nil
}

func stakingConfig() config.StakingConfig {
	return config.StakingConfig{
		MinEdge:           0.04,
		ValueEdge:         0.08,
		PremiumEdge:       0.15,
		PremiumConfidence: 0.6,
		KellyFraction:     0.25,
		MaxStakePct:       0.05,
	}
}

func newTestEngine(t *testing.T, cfg Config, p Predictor) *Engine {
	t.Helper()
	log, _ := test.NewNullLogger()
	staking := stakingConfig()
	e, err := NewEngine(cfg, p, features.NewBuilder(log), betting.NewEdgeDetector(staking, log),
		betting.NewKellyStaker(staking, logger.NewAuditLogger(log)), log)
	require.NoError(t, err)
	return e
}

func match(i int, result models.Outcome) *models.HistoricalMatch {
	at := firstKickoff.AddDate(0, 0, 7*i)
	return &models.HistoricalMatch{
		Context: models.RawMatchContext{
			MatchID:   fmt.Sprintf("m-%d", i),
			League:    "EPL",
			HomeTeam:  "Home",
			AwayTeam:  "Away",
			KickoffAt: at,
			HomeRecent: []models.ResultRecord{
				{PlayedAt: at.AddDate(0, 0, -7), GoalsFor: 1, GoalsAgainst: 0},
			},
			MarketOdds: &models.OutcomeOdds{Home: 2.2, Draw: 3.4, Away: 3.8},
		},
		Result: result,
	}
}

func TestReplayCompoundsBankroll(t *testing.T) {
	cfg := DefaultConfig("EPL")
	cfg.MonteCarloIterations = 0
	e := newTestEngine(t, cfg, &fixedPredictor{p: models.Probabilities{0.6, 0.2, 0.2}})

	matches := []*models.HistoricalMatch{
		match(3, models.OutcomeAway),
		match(0, models.OutcomeHome),
		match(2, models.OutcomeHome),
		match(1, models.OutcomeAway),
	}
	matches[1].ClosingOdds = &models.OutcomeOdds{Home: 2.0, Draw: 3.5, Away: 4.0}

	report, err := e.Run(context.Background(), matches)
	require.NoError(t, err)

	m := report.Metrics
	assert.Equal(t, 4, m.Matches)
	assert.Equal(t, 4, m.TotalBets)
	assert.Equal(t, 2, m.WinningBets)
	assert.Equal(t, 0.5, m.HitRate)
	assert.InDelta(t, 1014.05, m.FinalBankroll, 1e-9)
	assert.InDelta(t, 206.72, m.TotalStaked, 1e-9)
	assert.InDelta(t, 14.05, m.NetProfit, 1e-9)
	assert.InDelta(t, 14.05/206.72, m.ROI, 1e-9)
	assert.InDelta(t, 0.05, m.MaxDrawdown, 1e-4)
	assert.InDelta(t, 0.1, m.AverageCLV, 1e-9)
	assert.Equal(t, 1, m.CLVBets)
	assert.Equal(t, 4, m.BetsByTier[string(models.TierPremium)])

	require.Len(t, report.Bets, 4)
	assert.Equal(t, "m-0", report.Bets[0].MatchID)
	assert.True(t, report.Bets[0].ProfitLoss.Equal(decimal.RequireFromString("60")))
	assert.True(t, report.Bets[1].Stake.Stake.Equal(decimal.RequireFromString("53")))
	assert.Len(t, report.Equity, 5)
	assert.Nil(t, report.MonteCarlo)
}

func TestReplaySkipsMalformedAndOutOfRange(t *testing.T) {
	cfg := DefaultConfig("EPL")
	cfg.MonteCarloIterations = 0
	cfg.StartDate = firstKickoff.AddDate(0, 0, 1)
	predictor := &fixedPredictor{p: models.Probabilities{0.44, 0.29, 0.27}}
	e := newTestEngine(t, cfg, predictor)

	bad := match(2, models.OutcomeHome)
	bad.Context.MarketOdds = nil
	unsettled := match(3, models.Outcome(5))

	state, err := e.Replay(context.Background(), []*models.HistoricalMatch{
		match(0, models.OutcomeHome), match(1, models.OutcomeDraw), bad, unsettled,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Matches)
	assert.Equal(t, 2, state.Skipped)
	assert.Equal(t, 1, predictor.calls)
	assert.Empty(t, state.Bets, "no edge against a fair market")
}

func TestReplayHonoursCancellation(t *testing.T) {
	e := newTestEngine(t, DefaultConfig("EPL"), &fixedPredictor{p: models.Probabilities{0.6, 0.2, 0.2}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Replay(ctx, []*models.HistoricalMatch{match(0, models.OutcomeHome)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunAddsMonteCarlo(t *testing.T) {
	cfg := DefaultConfig("EPL")
	cfg.MonteCarloIterations = 200
	cfg.Seed = 42
	e := newTestEngine(t, cfg, &fixedPredictor{p: models.Probabilities{0.6, 0.2, 0.2}})

	matches := make([]*models.HistoricalMatch, 0, 12)
	for i := 0; i < 12; i++ {
		result := models.OutcomeHome
		if i%3 == 2 {
			result = models.OutcomeDraw
		}
		matches = append(matches, match(i, result))
	}

	report, err := e.Run(context.Background(), matches)
	require.NoError(t, err)
	require.NotNil(t, report.MonteCarlo)
	assert.Equal(t, 200, report.MonteCarlo.Iterations)
	assert.Equal(t, 12, report.MonteCarlo.Bets)
	assert.Contains(t, GenerateConsoleReport(report), "Monte Carlo (200 paths)")
}

func TestSettle(t *testing.T) {
	bet := models.ValueBet{MatchID: "m", Outcome: models.OutcomeDraw, Odds: 3.25}
	rec := models.StakeRecommendation{Stake: decimal.RequireFromString("12.50")}

	won := Settle(bet, rec, models.OutcomeDraw, firstKickoff)
	assert.True(t, won.Won)
	assert.True(t, won.ProfitLoss.Equal(decimal.RequireFromString("28.13")), won.ProfitLoss.String())

	lost := Settle(bet, rec, models.OutcomeHome, firstKickoff)
	assert.False(t, lost.Won)
	assert.True(t, lost.ProfitLoss.Equal(decimal.RequireFromString("-12.5")))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig("EPL")
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.League = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.InitialBankroll = decimal.Zero
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.StartDate, bad.EndDate = firstKickoff, firstKickoff.AddDate(0, 0, -1)
	assert.Error(t, bad.Validate())
}
