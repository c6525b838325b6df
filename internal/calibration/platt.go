package calibration

import (
	"errors"
	"math"
)

const (
	plattMaxIter = 100
	plattTol     = 1e-7
	minStep      = 1e-10
	probEpsilon  = 1e-6
	// plattRidge is a weak prior pulling the map towards the identity; it keeps
	// the Newton system solvable when a class probability never varies.
	plattRidge = 1e-3
)

var errDegenerateFit = errors.New("degenerate calibration fit")

// PlattMap is a logistic correction sigmoid(A*logit(p) + B). The zero-knowledge
// map is A=1, B=0.
type PlattMap struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Apply maps a raw class probability.
func (m PlattMap) Apply(p float64) float64 {
	return sigmoid(m.A*logit(p) + m.B)
}

// fitPlatt minimises cross-entropy with Newton steps and a backtracking line
// search. Targets are smoothed as in Platt's original scheme so a window with
// only hits or only misses still yields a finite fit.
func fitPlatt(p []float64, hit []bool) (PlattMap, error) {
	if len(p) == 0 || len(p) != len(hit) {
		return PlattMap{}, errDegenerateFit
	}
	var positives, negatives float64
	for _, h := range hit {
		if h {
			positives++
		} else {
			negatives++
		}
	}
	hiTarget := (positives + 1) / (positives + 2)
	loTarget := 1 / (negatives + 2)

	f := make([]float64, len(p))
	t := make([]float64, len(p))
	for i := range p {
		f[i] = logit(p[i])
		t[i] = loTarget
		if hit[i] {
			t[i] = hiTarget
		}
	}

	m := PlattMap{A: 1, B: 0}
	loss := plattLoss(m, f, t)
	for it := 0; it < plattMaxIter; it++ {
		var gA, gB, hAA, hAB, hBB float64
		for i := range f {
			q := sigmoid(m.A*f[i] + m.B)
			d := q - t[i]
			w := q * (1 - q)
			gA += d * f[i]
			gB += d
			hAA += w * f[i] * f[i]
			hAB += w * f[i]
			hBB += w
		}
		gA += plattRidge * (m.A - 1)
		gB += plattRidge * m.B
		if math.Abs(gA) < plattTol && math.Abs(gB) < plattTol {
			break
		}
		hAA += plattRidge
		hBB += plattRidge
		det := hAA*hBB - hAB*hAB
		if det <= 0 || math.IsNaN(det) {
			return PlattMap{}, errDegenerateFit
		}
		dA := -(hBB*gA - hAB*gB) / det
		dB := -(-hAB*gA + hAA*gB) / det

		step := 1.0
		for step >= minStep {
			next := PlattMap{A: m.A + step*dA, B: m.B + step*dB}
			nextLoss := plattLoss(next, f, t)
			if nextLoss < loss+1e-4*step*(gA*dA+gB*dB) {
				m, loss = next, nextLoss
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	if math.IsNaN(m.A) || math.IsNaN(m.B) || math.IsInf(m.A, 0) || math.IsInf(m.B, 0) {
		return PlattMap{}, errDegenerateFit
	}
	return m, nil
}

func plattLoss(m PlattMap, f, t []float64) float64 {
	loss := 0.0
	for i := range f {
		z := m.A*f[i] + m.B
		// log(1+exp(z)) - t*z, computed without overflow.
		if z >= 0 {
			loss += (1-t[i])*z + math.Log1p(math.Exp(-z))
		} else {
			loss += -t[i]*z + math.Log1p(math.Exp(z))
		}
	}
	return loss + 0.5*plattRidge*((m.A-1)*(m.A-1)+m.B*m.B)
}

func clampProb(p float64) float64 {
	return math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
}

func logit(p float64) float64 {
	p = clampProb(p)
	return math.Log(p / (1 - p))
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
