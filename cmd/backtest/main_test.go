package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBacktestConfig(t *testing.T) {
	cfg, err := buildBacktestConfig("EPL", "2023-08-01", "2024-05-31", "2500", 200, 7)
	require.NoError(t, err)

	assert.Equal(t, "EPL", cfg.League)
	assert.Equal(t, "2500", cfg.InitialBankroll.String())
	assert.Equal(t, 200, cfg.MonteCarloIterations)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.True(t, cfg.EndDate.After(time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC)))
	assert.True(t, cfg.EndDate.Before(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBuildBacktestConfigRejectsBadInput(t *testing.T) {
	tests := []struct {
		name      string
		league    string
		startDate string
		endDate   string
		bankroll  string
	}{
		{"bad bankroll", "EPL", "", "", "lots"},
		{"zero bankroll", "EPL", "", "", "0"},
		{"bad start date", "EPL", "01/08/2023", "", "1000"},
		{"reversed range", "EPL", "2024-05-31", "2023-08-01", "1000"},
		{"missing league", "", "", "", "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildBacktestConfig(tt.league, tt.startDate, tt.endDate, tt.bankroll, 100, 1)
			assert.Error(t, err)
		})
	}
}
