package models

import "time"

// ResultRecord is one completed match from a team's point of view.
type ResultRecord struct {
	PlayedAt      time.Time `json:"played_at" validate:"required"`
	Opponent      string    `json:"opponent"`
	Home          bool      `json:"home"`
	GoalsFor      int       `json:"goals_for" validate:"gte=0"`
	GoalsAgainst  int       `json:"goals_against" validate:"gte=0"`
	ExpectedGoals *float64  `json:"expected_goals,omitempty" validate:"omitempty,gte=0"`
}

// Points returns league points earned in the match.
func (r ResultRecord) Points() int {
	switch {
	case r.GoalsFor > r.GoalsAgainst:
		return 3
	case r.GoalsFor == r.GoalsAgainst:
		return 1
	default:
		return 0
	}
}

// HeadToHeadRecord is a previous meeting between the two teams, scored from the
// current home team's perspective.
type HeadToHeadRecord struct {
	PlayedAt  time.Time `json:"played_at" validate:"required"`
	HomeGoals int       `json:"home_goals" validate:"gte=0"`
	AwayGoals int       `json:"away_goals" validate:"gte=0"`
}

// OutcomeOdds holds decimal odds per outcome. A zero entry means not quoted.
type OutcomeOdds struct {
	Home float64 `json:"home,omitempty"`
	Draw float64 `json:"draw,omitempty"`
	Away float64 `json:"away,omitempty"`
}

// Get returns the odds quoted for o.
func (o OutcomeOdds) Get(outcome Outcome) float64 {
	switch outcome {
	case OutcomeHome:
		return o.Home
	case OutcomeDraw:
		return o.Draw
	case OutcomeAway:
		return o.Away
	}
	return 0
}

// Complete reports whether all three outcomes are quoted.
func (o OutcomeOdds) Complete() bool {
	return o.Home > 0 && o.Draw > 0 && o.Away > 0
}

// BookmakerOdds maps a bookmaker id to its quoted prices for one match.
type BookmakerOdds map[string]OutcomeOdds

// RawMatchContext is the per-match record supplied by data ingestion.
type RawMatchContext struct {
	MatchID      string             `json:"match_id" validate:"required"`
	League       string             `json:"league" validate:"required"`
	HomeTeam     string             `json:"home_team" validate:"required"`
	AwayTeam     string             `json:"away_team" validate:"required,nefield=HomeTeam"`
	KickoffAt    time.Time          `json:"kickoff_at" validate:"required"`
	HomeRecent   []ResultRecord     `json:"home_recent" validate:"dive"`
	AwayRecent   []ResultRecord     `json:"away_recent" validate:"dive"`
	HeadToHead   []HeadToHeadRecord `json:"head_to_head" validate:"dive"`
	MarketOdds   *OutcomeOdds       `json:"market_odds" validate:"required"`
	RestDaysHome *int               `json:"rest_days_home,omitempty" validate:"omitempty,gte=0"`
	RestDaysAway *int               `json:"rest_days_away,omitempty" validate:"omitempty,gte=0"`
}

// HistoricalMatch is a settled match used for training and backtesting.
type HistoricalMatch struct {
	Context     RawMatchContext `json:"context"`
	Result      Outcome         `json:"result"`
	Bookmakers  BookmakerOdds   `json:"bookmakers,omitempty"`
	ClosingOdds *OutcomeOdds    `json:"closing_odds,omitempty"`
}

// Implied returns the de-margined probabilities implied by complete odds and the
// bookmaker overround (sum of raw implied probabilities minus one).
func (o OutcomeOdds) Implied() (Probabilities, float64) {
	raw := Probabilities{inverse(o.Home), inverse(o.Draw), inverse(o.Away)}
	total := raw.Sum()
	if total <= 0 {
		return Probabilities{}, 0
	}
	var fair Probabilities
	for i, v := range raw {
		fair[i] = v / total
	}
	return fair, total - 1
}

func inverse(odds float64) float64 {
	if odds <= 0 {
		return 0
	}
	return 1 / odds
}
