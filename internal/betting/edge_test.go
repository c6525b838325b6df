package betting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/models"
)

func testStakingConfig() config.StakingConfig {
	return config.StakingConfig{
		MinEdge:           0.04,
		ValueEdge:         0.07,
		PremiumEdge:       0.10,
		PremiumConfidence: 0.50,
		KellyFraction:     0.125,
		MaxStakePct:       0.05,
	}
}

func newTestDetector() *EdgeDetector {
	log, _ := test.NewNullLogger()
	return NewEdgeDetector(testStakingConfig(), log)
}

func TestEdgeWorkedExample(t *testing.T) {
	assert.InDelta(t, 0.155, Edge(0.55, 2.10), 1e-12)
	assert.InDelta(t, 0.05, CLV(2.10, 2.00), 1e-12)
}

func TestTierAssignment(t *testing.T) {
	d := newTestDetector()
	tests := []struct {
		name       string
		edge       float64
		confidence float64
		want       models.Tier
	}{
		{name: "premium", edge: 0.155, confidence: 0.55, want: models.TierPremium},
		{name: "high edge low confidence", edge: 0.155, confidence: 0.40, want: models.TierValue},
		{name: "value", edge: 0.08, confidence: 0.60, want: models.TierValue},
		{name: "marginal", edge: 0.045, confidence: 0.60, want: models.TierMarginal},
		{name: "threshold is inclusive", edge: 0.04, confidence: 0.60, want: models.TierMarginal},
		{name: "below threshold", edge: 0.039, confidence: 0.90, want: models.TierAvoid},
		{name: "negative", edge: -0.2, confidence: 0.90, want: models.TierAvoid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Tier(tt.edge, tt.confidence))
		})
	}
}

func TestDetectBestPriceAndDemargin(t *testing.T) {
	d := newTestDetector()
	closing := models.OutcomeOdds{Home: 2.00, Draw: 3.40, Away: 4.00}

	bets, err := d.Detect(DetectRequest{
		MatchID:    "m-1",
		Fair:       models.Probabilities{0.55, 0.25, 0.20},
		Confidence: 0.55,
		Odds: models.BookmakerOdds{
			"alpha": {Home: 2.05, Draw: 3.30, Away: 3.80},
			"bravo": {Home: 2.10, Draw: 3.20, Away: 3.90},
			"delta": {Home: 2.10, Draw: 3.10},
		},
		Closing:  &closing,
		Bankroll: decimal.NewFromInt(10000),
	})
	require.NoError(t, err)
	require.Len(t, bets, 1)

	bet := bets[0]
	assert.Equal(t, models.OutcomeHome, bet.Outcome)
	assert.Equal(t, "bravo", bet.Bookmaker)
	assert.Equal(t, 2.10, bet.Odds)
	assert.InDelta(t, 0.155, bet.Edge, 1e-12)
	assert.Equal(t, models.TierPremium, bet.Tier)

	implied, overround := models.OutcomeOdds{Home: 2.10, Draw: 3.20, Away: 3.90}.Implied()
	assert.InDelta(t, implied[models.OutcomeHome], bet.MarketProbability, 1e-12)
	assert.InDelta(t, overround, bet.Overround, 1e-12)

	require.NotNil(t, bet.CLV)
	assert.InDelta(t, 0.05, *bet.CLV, 1e-12)
	assert.Equal(t, 2.00, *bet.ClosingOdds)

	// Edge is recomputable from the stored fields.
	assert.InDelta(t, bet.Edge, Edge(bet.FairProbability, bet.Odds), 1e-15)
}

func TestDetectTieKeepsFirstBookmaker(t *testing.T) {
	d := newTestDetector()
	bets, err := d.Detect(DetectRequest{
		MatchID:    "m-1",
		Fair:       models.Probabilities{0.55, 0.25, 0.20},
		Confidence: 0.55,
		Odds: models.BookmakerOdds{
			"zulu":  {Home: 2.10, Draw: 3.20, Away: 3.90},
			"alpha": {Home: 2.10, Draw: 3.20, Away: 3.90},
		},
		Bankroll: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, "alpha", bets[0].Bookmaker)
}

func TestDetectIncludeAvoid(t *testing.T) {
	d := newTestDetector()
	bets, err := d.Detect(DetectRequest{
		MatchID:      "m-1",
		Fair:         models.Probabilities{0.55, 0.25, 0.20},
		Confidence:   0.55,
		Odds:         models.BookmakerOdds{"alpha": {Home: 2.10, Draw: 3.20, Away: 3.90}},
		Bankroll:     decimal.NewFromInt(100),
		IncludeAvoid: true,
	})
	require.NoError(t, err)
	require.Len(t, bets, 3)
	assert.Equal(t, models.TierPremium, bets[0].Tier)
	assert.Equal(t, models.TierAvoid, bets[1].Tier)
	assert.Equal(t, models.TierAvoid, bets[2].Tier)
	assert.Nil(t, bets[1].CLV)
}

func TestDetectNonPositiveBankroll(t *testing.T) {
	d := newTestDetector()
	for _, bankroll := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-50)} {
		bets, err := d.Detect(DetectRequest{
			Fair:     models.Probabilities{0.55, 0.25, 0.20},
			Odds:     models.BookmakerOdds{"alpha": {Home: 2.10, Draw: 3.20, Away: 3.90}},
			Bankroll: bankroll,
		})
		require.NoError(t, err)
		assert.Empty(t, bets)
	}
}

func TestDetectRejectsBadInput(t *testing.T) {
	d := newTestDetector()

	_, err := d.Detect(DetectRequest{
		Fair:     models.Probabilities{0.5, 0.5, 0.5},
		Bankroll: decimal.NewFromInt(100),
	})
	assert.True(t, models.IsSchemaError(err))

	_, err = d.Detect(DetectRequest{
		Fair:     models.Probabilities{0.55, 0.25, 0.20},
		Odds:     models.BookmakerOdds{"alpha": {Home: 0.95, Draw: 3.20, Away: 3.90}},
		Bankroll: decimal.NewFromInt(100),
	})
	assert.True(t, models.IsSchemaError(err))
}
