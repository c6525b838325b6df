package models

// Tier grades the quality of a value bet.
type Tier string

const (
	TierPremium  Tier = "premium"
	TierValue    Tier = "value"
	TierMarginal Tier = "marginal"
	TierAvoid    Tier = "avoid"
)

// ValueBet is a priced opportunity on one outcome at one bookmaker.
type ValueBet struct {
	MatchID           string   `json:"match_id"`
	Outcome           Outcome  `json:"outcome"`
	Bookmaker         string   `json:"bookmaker"`
	Odds              float64  `json:"odds"`
	FairProbability   float64  `json:"fair_probability"`
	MarketProbability float64  `json:"market_probability"`
	Overround         float64  `json:"overround"`
	Edge              float64  `json:"edge"`
	Confidence        float64  `json:"confidence"`
	Tier              Tier     `json:"tier"`
	ClosingOdds       *float64 `json:"closing_odds,omitempty"`
	CLV               *float64 `json:"clv,omitempty"`
}

// Actionable reports whether the bet should be staked.
func (v ValueBet) Actionable() bool {
	return v.Tier != TierAvoid
}
