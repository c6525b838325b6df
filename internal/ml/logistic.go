package ml

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LogisticRegression is an L2-regularised multinomial logistic model fitted by
// full-batch gradient descent on standardised inputs.
type LogisticRegression struct {
	Classes    int         `json:"classes"`
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Mean       []float64   `json:"mean"`
	Scale      []float64   `json:"scale"`
	L2         float64     `json:"l2"`
	MaxIter    int         `json:"max_iter"`
	Tolerance  float64     `json:"tolerance"`
	Iterations int         `json:"iterations"`
}

// NewLogisticRegression creates an unfitted model.
func NewLogisticRegression(classes int, l2 float64) *LogisticRegression {
	return &LogisticRegression{
		Classes:   classes,
		L2:        l2,
		MaxIter:   2000,
		Tolerance: 1e-8,
	}
}

// Fit estimates weights for rows x with labels y in [0, Classes).
func (m *LogisticRegression) Fit(ctx context.Context, x [][]float64, y []int) error {
	n := len(x)
	if n == 0 {
		return ErrEmptyDataset
	}
	if len(y) != n {
		return fmt.Errorf("%w: %d rows, %d labels", ErrDimensionMismatch, n, len(y))
	}
	d := len(x[0])

	m.Mean = make([]float64, d)
	m.Scale = make([]float64, d)
	column := make([]float64, n)
	for j := 0; j < d; j++ {
		for i := range x {
			column[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if std < 1e-12 || math.IsNaN(std) {
			std = 1
		}
		m.Mean[j], m.Scale[j] = mean, std
	}
	z := make([][]float64, n)
	for i := range x {
		z[i] = m.standardize(x[i])
	}

	m.Weights = make([][]float64, m.Classes)
	for k := range m.Weights {
		m.Weights[k] = make([]float64, d)
	}
	m.Bias = make([]float64, m.Classes)

	// 1/L step for the averaged softmax loss on standardised, bias-augmented rows.
	step := 1 / (0.5*float64(d+1) + m.L2)
	gradW := make([][]float64, m.Classes)
	for k := range gradW {
		gradW[k] = make([]float64, d)
	}
	gradB := make([]float64, m.Classes)
	logits := make([]float64, m.Classes)

	prevLoss := math.Inf(1)
	for iter := 0; iter < m.MaxIter; iter++ {
		if iter%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for k := range gradW {
			for j := range gradW[k] {
				gradW[k][j] = 0
			}
			gradB[k] = 0
		}

		loss := 0.0
		for i, row := range z {
			p := m.probabilities(row, logits)
			loss -= math.Log(math.Max(p[y[i]], probabilityFloor))
			for k := 0; k < m.Classes; k++ {
				e := p[k]
				if k == y[i] {
					e--
				}
				floats.AddScaled(gradW[k], e, row)
				gradB[k] += e
			}
		}
		loss /= float64(n)
		for k := range m.Weights {
			loss += 0.5 * m.L2 * floats.Dot(m.Weights[k], m.Weights[k])
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return fmt.Errorf("%w: logistic loss is not finite at iteration %d", ErrNotConverged, iter)
		}

		for k := range m.Weights {
			floats.Scale(1/float64(n), gradW[k])
			floats.AddScaled(gradW[k], m.L2, m.Weights[k])
			floats.AddScaled(m.Weights[k], -step, gradW[k])
			m.Bias[k] -= step * gradB[k] / float64(n)
		}

		m.Iterations = iter + 1
		if prevLoss-loss < m.Tolerance*math.Max(1, math.Abs(loss)) && iter > 10 {
			break
		}
		prevLoss = loss
	}
	return nil
}

// Predict returns class probabilities for one row.
func (m *LogisticRegression) Predict(x []float64) ([]float64, error) {
	if len(m.Weights) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != len(m.Mean) {
		return nil, fmt.Errorf("%w: got %d inputs, model expects %d", ErrDimensionMismatch, len(x), len(m.Mean))
	}
	return m.probabilities(m.standardize(x), make([]float64, m.Classes)), nil
}

func (m *LogisticRegression) standardize(x []float64) []float64 {
	z := make([]float64, len(x))
	for j, v := range x {
		z[j] = (v - m.Mean[j]) / m.Scale[j]
	}
	return z
}

func (m *LogisticRegression) probabilities(z, logits []float64) []float64 {
	for k := range logits {
		logits[k] = floats.Dot(m.Weights[k], z) + m.Bias[k]
	}
	maxLogit := floats.Max(logits)
	p := make([]float64, len(logits))
	total := 0.0
	for k, v := range logits {
		p[k] = math.Exp(v - maxLogit)
		total += p[k]
	}
	floats.Scale(1/total, p)
	return p
}
