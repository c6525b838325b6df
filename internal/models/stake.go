package models

import "github.com/shopspring/decimal"

// StakeRecommendation sizes a value bet against a bankroll.
type StakeRecommendation struct {
	MatchID          string          `json:"match_id"`
	Outcome          Outcome         `json:"outcome"`
	Bookmaker        string          `json:"bookmaker"`
	Odds             float64         `json:"odds"`
	Stake            decimal.Decimal `json:"stake"`
	ExpectedProfit   decimal.Decimal `json:"expected_profit"`
	ExpectedValue    float64         `json:"expected_value"`
	FullKelly        float64         `json:"full_kelly"`
	BankrollFraction float64         `json:"bankroll_fraction"`
	KellyMultiplier  float64         `json:"kelly_multiplier"`
	Capped           bool            `json:"capped"`
	Tier             Tier            `json:"tier"`
}

// IsZero reports whether nothing should be staked.
func (s StakeRecommendation) IsZero() bool {
	return s.Stake.IsZero()
}
