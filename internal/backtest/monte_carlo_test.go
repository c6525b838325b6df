package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bets(returns ...float64) []*SettledBet {
	out := make([]*SettledBet, len(returns))
	for i, r := range returns {
		out[i] = &SettledBet{Return: r}
	}
	return out
}

func TestMonteCarloAllWinners(t *testing.T) {
	res, err := RunMonteCarlo(context.Background(), bets(0.01, 0.02, 0.03), MonteCarloConfig{
		Iterations:      50,
		Seed:            1,
		InitialBankroll: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.ProbabilityOfProfit)
	assert.Zero(t, res.ProbabilityOfRuin)
	assert.Zero(t, res.MeanMaxDrawdown)
	assert.Greater(t, res.MeanReturn, 0.03)
	ci := res.ConfidenceIntervals["95%"]
	assert.LessOrEqual(t, ci[0], ci[1])
}

func TestMonteCarloIsSeeded(t *testing.T) {
	cfg := MonteCarloConfig{Iterations: 100, Seed: 9, InitialBankroll: 1000, RuinFraction: 0.5}
	in := bets(0.05, -0.05, 0.1, -0.04, -0.05)

	a, err := RunMonteCarlo(context.Background(), in, cfg)
	require.NoError(t, err)
	b, err := RunMonteCarlo(context.Background(), in, cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Distribution, b.Distribution)
}

func TestMonteCarloRuin(t *testing.T) {
	res, err := RunMonteCarlo(context.Background(), bets(-0.6), MonteCarloConfig{
		Iterations:      10,
		Seed:            3,
		InitialBankroll: 100,
		RuinFraction:    0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.ProbabilityOfRuin)
	assert.Zero(t, res.ProbabilityOfProfit)
}

func TestMonteCarloRejectsEmpty(t *testing.T) {
	_, err := RunMonteCarlo(context.Background(), nil, MonteCarloConfig{InitialBankroll: 100})
	assert.Error(t, err)
}
