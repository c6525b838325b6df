package betting

import (
	"github.com/shopspring/decimal"

	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/models"
)

// stakePlaces is the currency precision of recommended stakes.
const stakePlaces = 2

// FullKelly returns (b*p - q) / b with b = odds - 1.
func FullKelly(p, odds float64) float64 {
	b := odds - 1
	if b <= 0 {
		return 0
	}
	return (b*p - (1 - p)) / b
}

// KellyStaker sizes value bets with fractional Kelly and a hard bankroll cap.
type KellyStaker struct {
	kellyFraction float64
	maxStakePct   float64
	audit         *logger.AuditLogger
}

// NewKellyStaker creates a staker using the configured multiplier and cap.
func NewKellyStaker(cfg config.StakingConfig, audit *logger.AuditLogger) *KellyStaker {
	return &KellyStaker{
		kellyFraction: cfg.KellyFraction,
		maxStakePct:   cfg.MaxStakePct,
		audit:         audit,
	}
}

// Stake sizes bet with the configured multiplier and cap.
func (k *KellyStaker) Stake(bet models.ValueBet, bankroll decimal.Decimal) models.StakeRecommendation {
	return k.StakeWith(bet, bankroll, k.kellyFraction, k.maxStakePct)
}

// StakeWith sizes bet with an explicit multiplier and cap. A bet graded avoid
// or with a non-positive full Kelly yields a zero stake flagged avoid.
// Stakes are truncated to cents so the cap is never exceeded by rounding.
func (k *KellyStaker) StakeWith(bet models.ValueBet, bankroll decimal.Decimal, kellyFraction, maxStakePct float64) models.StakeRecommendation {
	rec := models.StakeRecommendation{
		MatchID:         bet.MatchID,
		Outcome:         bet.Outcome,
		Bookmaker:       bet.Bookmaker,
		Odds:            bet.Odds,
		Stake:           decimal.Zero,
		ExpectedProfit:  decimal.Zero,
		ExpectedValue:   Edge(bet.FairProbability, bet.Odds),
		FullKelly:       FullKelly(bet.FairProbability, bet.Odds),
		KellyMultiplier: kellyFraction,
		Tier:            bet.Tier,
	}

	if !bet.Actionable() || rec.FullKelly <= 0 || !bankroll.IsPositive() {
		rec.Tier = models.TierAvoid
		k.log(rec)
		return rec
	}

	applied := rec.FullKelly * kellyFraction
	stake := bankroll.Mul(decimal.NewFromFloat(applied))
	limit := bankroll.Mul(decimal.NewFromFloat(maxStakePct))
	if stake.GreaterThan(limit) {
		stake = limit
		rec.Capped = true
	}
	rec.Stake = stake.Truncate(stakePlaces)
	if !rec.Stake.IsPositive() {
		rec.Stake = decimal.Zero
	}
	rec.BankrollFraction, _ = rec.Stake.Div(bankroll).Float64()
	rec.ExpectedProfit = rec.Stake.Mul(decimal.NewFromFloat(rec.ExpectedValue)).Round(stakePlaces)

	k.log(rec)
	return rec
}

func (k *KellyStaker) log(rec models.StakeRecommendation) {
	if k.audit == nil {
		return
	}
	stake, _ := rec.Stake.Float64()
	k.audit.LogStakeRecommendation(rec.MatchID, rec.Outcome.String(), rec.Bookmaker, string(rec.Tier),
		rec.Odds, rec.ExpectedValue, stake, rec.BankrollFraction)
}
