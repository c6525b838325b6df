package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MonteCarloConfig configures the bankroll bootstrap.
type MonteCarloConfig struct {
	Iterations      int
	Seed            int64
	InitialBankroll float64
	// RuinFraction is the share of the starting bankroll below which a path
	// counts as ruined.
	RuinFraction float64
}

// MonteCarloResult is the distribution of final bankrolls.
type MonteCarloResult struct {
	Iterations          int                   `json:"iterations"`
	Bets                int                   `json:"bets"`
	MeanReturn          float64               `json:"mean_return"`
	StdReturn           float64               `json:"std_return"`
	MedianFinal         float64               `json:"median_final"`
	VaR95               float64               `json:"var_95"`
	VaR99               float64               `json:"var_99"`
	ProbabilityOfProfit float64               `json:"probability_of_profit"`
	ProbabilityOfRuin   float64               `json:"probability_of_ruin"`
	MeanMaxDrawdown     float64               `json:"mean_max_drawdown"`
	ConfidenceIntervals map[string][2]float64 `json:"confidence_intervals"`
	Distribution        []float64             `json:"-"`
}

// RunMonteCarlo resamples the replay's per-bet bankroll returns with
// replacement and compounds them from the initial bankroll.
func RunMonteCarlo(ctx context.Context, bets []*SettledBet, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if len(bets) == 0 {
		return MonteCarloResult{}, fmt.Errorf("no bets to resample")
	}
	if cfg.InitialBankroll <= 0 {
		return MonteCarloResult{}, fmt.Errorf("initial bankroll must be positive")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	returns := make([]float64, len(bets))
	for i, b := range bets {
		returns[i] = b.Return
	}
	ruin := cfg.InitialBankroll * cfg.RuinFraction

	finals := make([]float64, cfg.Iterations)
	drawdowns := make([]float64, cfg.Iterations)
	ruined := 0
	for i := range finals {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return MonteCarloResult{}, err
			}
		}
		bankroll, peak, maxDD := cfg.InitialBankroll, cfg.InitialBankroll, 0.0
		hitRuin := false
		for range returns {
			bankroll *= 1 + returns[rng.Intn(len(returns))]
			if bankroll > peak {
				peak = bankroll
			}
			if dd := (peak - bankroll) / peak; dd > maxDD {
				maxDD = dd
			}
			if bankroll <= ruin {
				hitRuin = true
				if bankroll < 0 {
					bankroll = 0
				}
				break
			}
		}
		if hitRuin {
			ruined++
		}
		finals[i], drawdowns[i] = bankroll, maxDD
	}

	sorted := append([]float64(nil), finals...)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(finals, nil)
	initial := cfg.InitialBankroll

	return MonteCarloResult{
		Iterations:          cfg.Iterations,
		Bets:                len(bets),
		MeanReturn:          (mean - initial) / initial,
		StdReturn:           std / initial,
		MedianFinal:         stat.Quantile(0.5, stat.Empirical, sorted, nil),
		VaR95:               (stat.Quantile(0.05, stat.Empirical, sorted, nil) - initial) / initial,
		VaR99:               (stat.Quantile(0.01, stat.Empirical, sorted, nil) - initial) / initial,
		ProbabilityOfProfit: fractionAbove(sorted, initial),
		ProbabilityOfRuin:   float64(ruined) / float64(cfg.Iterations),
		MeanMaxDrawdown:     stat.Mean(drawdowns, nil),
		ConfidenceIntervals: ConfidenceIntervals(sorted, []float64{0.9, 0.95, 0.99}),
		Distribution:        finals,
	}, nil
}

// ConfidenceIntervals returns central intervals of a sorted distribution
// keyed by level, e.g. "95%".
func ConfidenceIntervals(sorted []float64, levels []float64) map[string][2]float64 {
	out := make(map[string][2]float64, len(levels))
	if len(sorted) == 0 {
		return out
	}
	for _, level := range levels {
		tail := (1 - level) / 2
		out[fmt.Sprintf("%.0f%%", level*100)] = [2]float64{
			stat.Quantile(tail, stat.Empirical, sorted, nil),
			stat.Quantile(1-tail, stat.Empirical, sorted, nil),
		}
	}
	return out
}

// ToJSON exports the result without the raw distribution.
func (m MonteCarloResult) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func fractionAbove(sorted []float64, threshold float64) float64 {
	i := sort.SearchFloat64s(sorted, threshold)
	for i < len(sorted) && sorted[i] <= threshold {
		i++
	}
	return float64(len(sorted)-i) / float64(len(sorted))
}
