package betting

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/models"
)

func newTestStaker(buf *bytes.Buffer) *KellyStaker {
	log := logrus.New()
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	return NewKellyStaker(testStakingConfig(), logger.NewAuditLogger(log))
}

func valueBet(p, odds float64, tier models.Tier) models.ValueBet {
	return models.ValueBet{
		MatchID:         "m-1",
		Outcome:         models.OutcomeHome,
		Bookmaker:       "alpha",
		Odds:            odds,
		FairProbability: p,
		Edge:            Edge(p, odds),
		Tier:            tier,
	}
}

func TestFullKelly(t *testing.T) {
	assert.InDelta(t, 0.140909, FullKelly(0.55, 2.10), 1e-6)
	assert.InDelta(t, 0.0, FullKelly(0.5, 2.0), 1e-12)
	assert.Less(t, FullKelly(0.3, 2.0), 0.0)
	assert.Equal(t, 0.0, FullKelly(0.9, 1.0))
}

func TestStakeWorkedExample(t *testing.T) {
	var buf bytes.Buffer
	k := newTestStaker(&buf)

	rec := k.Stake(valueBet(0.55, 2.10, models.TierPremium), decimal.NewFromInt(10000))

	assert.Equal(t, "176.13", rec.Stake.StringFixed(2))
	assert.InDelta(t, 0.0176, rec.BankrollFraction, 1e-4)
	assert.InDelta(t, 0.155, rec.ExpectedValue, 1e-12)
	assert.Equal(t, "27.30", rec.ExpectedProfit.StringFixed(2))
	assert.Equal(t, 0.125, rec.KellyMultiplier)
	assert.False(t, rec.Capped)
	assert.Equal(t, models.TierPremium, rec.Tier)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Stake recommendation issued", entry["msg"])
	assert.Equal(t, "premium", entry["tier"])
}

func TestStakeCappedAtMaxPct(t *testing.T) {
	var buf bytes.Buffer
	k := newTestStaker(&buf)
	bankroll := decimal.NewFromInt(10000)

	rec := k.StakeWith(valueBet(0.55, 2.10, models.TierPremium), bankroll, 1.0, 0.01)

	assert.True(t, rec.Capped)
	assert.True(t, rec.Stake.Equal(decimal.NewFromInt(100)))
	assert.True(t, rec.Stake.LessThanOrEqual(bankroll.Mul(decimal.NewFromFloat(0.01))))
}

func TestStakeZeroWhenKellyNonPositive(t *testing.T) {
	var buf bytes.Buffer
	k := newTestStaker(&buf)

	tests := []struct {
		name string
		p    float64
		odds float64
	}{
		{name: "break even", p: 0.5, odds: 2.0},
		{name: "negative edge", p: 0.30, odds: 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := k.Stake(valueBet(tt.p, tt.odds, models.TierValue), decimal.NewFromInt(10000))
			assert.True(t, rec.IsZero())
			assert.Equal(t, models.TierAvoid, rec.Tier)
			assert.LessOrEqual(t, rec.FullKelly, 0.0)
		})
	}
}

func TestStakeNeverExceedsCap(t *testing.T) {
	var buf bytes.Buffer
	k := newTestStaker(&buf)
	bankroll := decimal.NewFromFloat(1234.56)
	limit := bankroll.Mul(decimal.NewFromFloat(0.05))

	for p := 0.05; p < 1; p += 0.05 {
		for _, odds := range []float64{1.2, 1.8, 2.5, 4.0, 11.0} {
			rec := k.StakeWith(valueBet(p, odds, models.TierValue), bankroll, 0.5, 0.05)
			assert.True(t, rec.Stake.LessThanOrEqual(limit), "p=%v odds=%v stake=%s", p, odds, rec.Stake)
			if FullKelly(p, odds) <= 0 {
				assert.True(t, rec.IsZero())
			}
		}
	}
}

func TestStakeNonPositiveBankroll(t *testing.T) {
	var buf bytes.Buffer
	k := newTestStaker(&buf)
	rec := k.Stake(valueBet(0.55, 2.10, models.TierPremium), decimal.Zero)
	assert.True(t, rec.IsZero())
	assert.Equal(t, models.TierAvoid, rec.Tier)
}

func TestStakeZeroForAvoidTier(t *testing.T) {
	var buf bytes.Buffer
	k := newTestStaker(&buf)

	// Positive Kelly, but graded below the minimum edge.
	bet := valueBet(0.51, 2.0, models.TierAvoid)
	require.Greater(t, FullKelly(bet.FairProbability, bet.Odds), 0.0)

	rec := k.Stake(bet, decimal.NewFromInt(1000))
	assert.True(t, rec.IsZero())
	assert.Equal(t, models.TierAvoid, rec.Tier)
	assert.Equal(t, 0.0, rec.BankrollFraction)
}
