package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Report is the full result of one run.
type Report struct {
	League     string            `json:"league"`
	Version    string            `json:"artifact_version,omitempty"`
	Metrics    Metrics           `json:"metrics"`
	MonteCarlo *MonteCarloResult `json:"monte_carlo,omitempty"`
	Equity     EquityCurve       `json:"equity_curve"`
	Bets       []*SettledBet     `json:"bets"`
}

// GenerateConsoleReport formats metrics for terminal output
func GenerateConsoleReport(r *Report) string {
	m := r.Metrics
	var b strings.Builder
	b.WriteString("Backtest Report\n")
	b.WriteString("================\n")
	fmt.Fprintf(&b, "League: %s\n", r.League)
	if r.Version != "" {
		fmt.Fprintf(&b, "Artifact: %s\n", r.Version)
	}
	fmt.Fprintf(&b, "Matches: %d (skipped %d)\n", m.Matches, m.Skipped)
	fmt.Fprintf(&b, "Bets: %d (hit rate %.2f%%)\n", m.TotalBets, m.HitRate*100)
	fmt.Fprintf(&b, "Staked: %.2f  Net: %.2f  ROI: %.2f%%\n", m.TotalStaked, m.NetProfit, m.ROI*100)
	fmt.Fprintf(&b, "Bankroll: %.2f (%.2f%%)\n", m.FinalBankroll, m.TotalReturn*100)
	fmt.Fprintf(&b, "Max Drawdown: %.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(&b, "Sharpe (per bet): %.3f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "Average Edge: %.2f%%\n", m.AverageEdge*100)
	if m.CLVBets > 0 {
		fmt.Fprintf(&b, "Average CLV: %.2f%% over %d bets\n", m.AverageCLV*100, m.CLVBets)
	}

	tiers := make([]string, 0, len(m.BetsByTier))
	for tier := range m.BetsByTier {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		fmt.Fprintf(&b, "  %s: %d\n", tier, m.BetsByTier[tier])
	}

	if mc := r.MonteCarlo; mc != nil {
		fmt.Fprintf(&b, "Monte Carlo (%d paths)\n", mc.Iterations)
		fmt.Fprintf(&b, "  Mean Return: %.2f%%\n", mc.MeanReturn*100)
		fmt.Fprintf(&b, "  P(profit): %.2f%%  P(ruin): %.2f%%\n", mc.ProbabilityOfProfit*100, mc.ProbabilityOfRuin*100)
		if ci, ok := mc.ConfidenceIntervals["95%"]; ok {
			fmt.Fprintf(&b, "  95%% final bankroll: [%.2f, %.2f]\n", ci[0], ci[1])
		}
	}
	return b.String()
}

// ExportToJSON writes the report to outputPath.
func ExportToJSON(r *Report, outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// ExportEquityCSV writes the equity curve for spreadsheets.
func ExportEquityCSV(r *Report, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte(r.Equity.ToCSV()), 0o644)
}
