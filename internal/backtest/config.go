package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config controls one replay.
type Config struct {
	League               string
	StartDate            time.Time
	EndDate              time.Time
	InitialBankroll      decimal.Decimal
	MonteCarloIterations int
	Seed                 int64
	RiskFreeRate         float64
	RuinFraction         float64
}

// DefaultConfig returns a replay over all history with a 1000 unit bankroll.
func DefaultConfig(league string) Config {
	return Config{
		League:               league,
		InitialBankroll:      decimal.NewFromInt(1000),
		MonteCarloIterations: 1000,
		RuinFraction:         0.1,
	}
}

// Validate validates backtest config parameters
func (c Config) Validate() error {
	if c.League == "" {
		return fmt.Errorf("league is required")
	}
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.StartDate.After(c.EndDate) {
		return fmt.Errorf("start date must be before end date")
	}
	if !c.InitialBankroll.IsPositive() {
		return fmt.Errorf("initial bankroll must be positive")
	}
	if c.MonteCarloIterations < 0 {
		return fmt.Errorf("monte carlo iterations cannot be negative")
	}
	if c.RuinFraction < 0 || c.RuinFraction >= 1 {
		return fmt.Errorf("ruin fraction must be in [0, 1)")
	}
	return nil
}

func (c Config) inRange(t time.Time) bool {
	if !c.StartDate.IsZero() && t.Before(c.StartDate) {
		return false
	}
	if !c.EndDate.IsZero() && t.After(c.EndDate) {
		return false
	}
	return true
}
