package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/matchedge/internal/models"
)

// SettledBet is a replayed bet with its result.
type SettledBet struct {
	MatchID    string                     `json:"match_id"`
	KickoffAt  time.Time                  `json:"kickoff_at"`
	Bet        models.ValueBet            `json:"bet"`
	Stake      models.StakeRecommendation `json:"stake"`
	Actual     models.Outcome             `json:"actual"`
	Won        bool                       `json:"won"`
	ProfitLoss decimal.Decimal            `json:"profit_loss"`
	// Return is profit over the bankroll before the bet.
	Return float64 `json:"return"`
}

// State tracks current backtest state
type State struct {
	Bankroll     decimal.Decimal
	PeakBankroll decimal.Decimal
	Bets         []*SettledBet
	EquityCurve  EquityCurve
	DailyPnL     map[time.Time]float64
	Matches      int
	Skipped      int
}

// NewState initialises the replay at the starting bankroll.
func NewState(initial decimal.Decimal, start time.Time) *State {
	s := &State{
		Bankroll:     initial,
		PeakBankroll: initial,
		DailyPnL:     make(map[time.Time]float64),
	}
	s.RecordEquityPoint(start, initial)
	return s
}

// Apply books a settled bet against the bankroll.
func (s *State) Apply(bet *SettledBet) {
	before := s.Bankroll
	s.Bankroll = s.Bankroll.Add(bet.ProfitLoss)
	if s.Bankroll.GreaterThan(s.PeakBankroll) {
		s.PeakBankroll = s.Bankroll
	}
	if before.IsPositive() {
		bet.Return = bet.ProfitLoss.Div(before).InexactFloat64()
	}
	s.Bets = append(s.Bets, bet)

	k := bet.KickoffAt.UTC()
	day := time.Date(k.Year(), k.Month(), k.Day(), 0, 0, 0, 0, time.UTC)
	s.DailyPnL[day] += bet.ProfitLoss.InexactFloat64()
}

// Drawdown returns the current peak-to-trough drawdown.
func (s *State) Drawdown() float64 {
	if !s.PeakBankroll.IsPositive() {
		return 0
	}
	dd := s.PeakBankroll.Sub(s.Bankroll).Div(s.PeakBankroll).InexactFloat64()
	if dd < 0 {
		return 0
	}
	return dd
}

// RecordEquityPoint adds an equity point to the curve
func (s *State) RecordEquityPoint(t time.Time, value decimal.Decimal) {
	s.EquityCurve = append(s.EquityCurve, EquityPoint{
		Time:     t,
		Value:    value.InexactFloat64(),
		Drawdown: s.Drawdown(),
	})
}
