package backtest

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// maxProfitFactor stands in for a loss-free run; JSON cannot carry +Inf.
const maxProfitFactor = 999

// Metrics summarises a replay.
type Metrics struct {
	Matches       int            `json:"matches"`
	Skipped       int            `json:"skipped"`
	TotalBets     int            `json:"total_bets"`
	WinningBets   int            `json:"winning_bets"`
	LosingBets    int            `json:"losing_bets"`
	HitRate       float64        `json:"hit_rate"`
	TotalStaked   float64        `json:"total_staked"`
	NetProfit     float64        `json:"net_profit"`
	ROI           float64        `json:"roi"`
	TotalReturn   float64        `json:"total_return"`
	FinalBankroll float64        `json:"final_bankroll"`
	MaxDrawdown   float64        `json:"max_drawdown"`
	SharpeRatio   float64        `json:"sharpe_ratio"`
	SortinoRatio  float64        `json:"sortino_ratio"`
	ProfitFactor  float64        `json:"profit_factor"`
	AverageOdds   float64        `json:"average_odds"`
	AverageEdge   float64        `json:"average_edge"`
	AverageCLV    float64        `json:"average_clv"`
	CLVBets       int            `json:"clv_bets"`
	LargestWin    float64        `json:"largest_win"`
	LargestLoss   float64        `json:"largest_loss"`
	ValueAtRisk95 float64        `json:"var_95"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       time.Time      `json:"end_date"`
	BetsByTier    map[string]int `json:"bets_by_tier"`
}

// CalculateMetrics derives the replay summary. Sharpe and Sortino are per bet
// over bankroll returns, not annualised.
func CalculateMetrics(state *State, cfg Config) Metrics {
	m := Metrics{StartDate: cfg.StartDate, EndDate: cfg.EndDate, BetsByTier: map[string]int{}}
	if state == nil {
		return m
	}
	m.Matches, m.Skipped = state.Matches, state.Skipped
	m.FinalBankroll = state.Bankroll.InexactFloat64()
	initial := cfg.InitialBankroll
	if initial.IsPositive() {
		m.TotalReturn = state.Bankroll.Sub(initial).Div(initial).InexactFloat64()
	}
	m.MaxDrawdown = state.EquityCurve.MaxDrawdown()
	if len(state.Bets) == 0 {
		return m
	}
	if m.StartDate.IsZero() {
		m.StartDate = state.Bets[0].KickoffAt
	}
	if m.EndDate.IsZero() {
		m.EndDate = state.Bets[len(state.Bets)-1].KickoffAt
	}

	staked, net := decimal.Zero, decimal.Zero
	grossWin, grossLoss := 0.0, 0.0
	returns := make([]float64, 0, len(state.Bets))
	odds := make([]float64, 0, len(state.Bets))
	edges := make([]float64, 0, len(state.Bets))
	var clvs []float64
	for _, b := range state.Bets {
		staked = staked.Add(b.Stake.Stake)
		net = net.Add(b.ProfitLoss)
		pl := b.ProfitLoss.InexactFloat64()
		if b.Won {
			m.WinningBets++
			grossWin += pl
			m.LargestWin = math.Max(m.LargestWin, pl)
		} else {
			m.LosingBets++
			grossLoss -= pl
			m.LargestLoss = math.Min(m.LargestLoss, pl)
		}
		returns = append(returns, b.Return)
		odds = append(odds, b.Bet.Odds)
		edges = append(edges, b.Bet.Edge)
		if b.Bet.CLV != nil {
			clvs = append(clvs, *b.Bet.CLV)
		}
		m.BetsByTier[string(b.Stake.Tier)]++
	}

	m.TotalBets = len(state.Bets)
	m.HitRate = float64(m.WinningBets) / float64(m.TotalBets)
	m.TotalStaked = staked.InexactFloat64()
	m.NetProfit = net.InexactFloat64()
	if staked.IsPositive() {
		m.ROI = net.Div(staked).InexactFloat64()
	}
	m.AverageOdds = stat.Mean(odds, nil)
	m.AverageEdge = stat.Mean(edges, nil)
	if len(clvs) > 0 {
		m.AverageCLV = stat.Mean(clvs, nil)
		m.CLVBets = len(clvs)
	}
	m.ProfitFactor = profitFactor(grossWin, grossLoss)
	m.SharpeRatio = sharpe(returns, cfg.RiskFreeRate)
	m.SortinoRatio = sortino(returns, cfg.RiskFreeRate)
	m.ValueAtRisk95 = valueAtRisk(returns, 0.95)
	return m
}

// ToJSON exports metrics to JSON
func (m Metrics) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func sharpe(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return 0
	}
	return (mean - riskFree) / std
}

func sortino(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	downside := 0.0
	for _, r := range returns {
		if r < riskFree {
			downside += (r - riskFree) * (r - riskFree)
		}
	}
	if downside == 0 {
		return 0
	}
	return (stat.Mean(returns, nil) - riskFree) / math.Sqrt(downside/float64(len(returns)))
}

func profitFactor(grossWin, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossWin > 0 {
			return maxProfitFactor
		}
		return 0
	}
	return grossWin / grossLoss
}

// valueAtRisk returns the return at the (1-level) quantile.
func valueAtRisk(returns []float64, level float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	return stat.Quantile(1-level, stat.Empirical, sorted, nil)
}
