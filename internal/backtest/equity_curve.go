package backtest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// EquityPoint is the bankroll after one settled match.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
}

// EquityCurve is the bankroll over the replay.
type EquityCurve []EquityPoint

// Returns gives the period-on-period returns of the curve.
func (e EquityCurve) Returns() []float64 {
	if len(e) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(e)-1)
	for i := 1; i < len(e); i++ {
		prev := e[i-1].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (e[i].Value-prev)/prev)
	}
	return returns
}

// MaxDrawdown is the largest peak-to-trough fall as a fraction of the peak.
func (e EquityCurve) MaxDrawdown() float64 {
	maxDD, peak := 0.0, 0.0
	for _, p := range e {
		if p.Value > peak {
			peak = p.Value
		}
		if peak == 0 {
			continue
		}
		if dd := (peak - p.Value) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// ToCSV exports equity curve to CSV string
func (e EquityCurve) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("time,value,drawdown\n")
	for _, point := range e {
		buf.WriteString(point.Time.Format(time.RFC3339))
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(point.Value, 'f', 2, 64))
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(point.Drawdown, 'f', 6, 64))
		buf.WriteString("\n")
	}
	return buf.String()
}

// ToJSON exports equity curve to JSON string
func (e EquityCurve) ToJSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}
