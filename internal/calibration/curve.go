// Package calibration corrects blended probabilities with per-class curves fitted
// on recently settled matches.
package calibration

import (
	"fmt"
	"time"

	"github.com/yourusername/matchedge/internal/ml"
	"github.com/yourusername/matchedge/internal/models"
)

// Method names the fitting technique behind a curve.
type Method string

const (
	MethodIdentity Method = "identity"
	MethodPlatt    Method = "platt"
	MethodIsotonic Method = "isotonic"
)

// ClassMap corrects the probability of one outcome. At most one map is set; an
// empty ClassMap is the identity.
type ClassMap struct {
	Platt    *PlattMap    `json:"platt,omitempty"`
	Isotonic *IsotonicMap `json:"isotonic,omitempty"`
}

// Apply maps a raw class probability.
func (c ClassMap) Apply(p float64) float64 {
	switch {
	case c.Isotonic != nil:
		return c.Isotonic.Apply(p)
	case c.Platt != nil:
		return c.Platt.Apply(p)
	}
	return p
}

// Curve is an immutable per-class correction. A new curve replaces the old one
// wholesale; nothing mutates a curve after it is published.
type Curve struct {
	Method   Method                       `json:"method"`
	Classes  [models.NumOutcomes]ClassMap `json:"classes"`
	Samples  int                          `json:"samples"`
	Before   ml.Scores                    `json:"before"`
	After    ml.Scores                    `json:"after"`
	FittedAt time.Time                    `json:"fitted_at"`
}

// Identity returns the curve every artifact starts with.
func Identity() *Curve {
	return &Curve{Method: MethodIdentity}
}

// Calibrate corrects a single class probability without renormalising.
func (c *Curve) Calibrate(raw float64, outcome models.Outcome) float64 {
	if c == nil || !outcome.Valid() {
		return raw
	}
	return c.Classes[outcome].Apply(raw)
}

// Apply corrects each class independently and renormalises the vector.
func (c *Curve) Apply(raw models.Probabilities) models.Probabilities {
	if c == nil || c.Method == MethodIdentity {
		return raw.Normalize()
	}
	var out models.Probabilities
	for _, o := range models.Outcomes {
		out[o] = c.Classes[o].Apply(raw[o])
	}
	return out.Normalize()
}

// Score evaluates the curve on samples.
func (c *Curve) Score(samples []Sample) ml.Scores {
	preds := make([]models.Probabilities, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		preds[i] = c.Apply(s.Raw)
		labels[i] = int(s.Actual)
	}
	return ml.Score(preds, labels)
}

// FitCurve fits one-vs-rest maps for every class with the given method.
func FitCurve(samples []Sample, method Method, now time.Time) (*Curve, error) {
	curve := &Curve{Method: method, Samples: len(samples), FittedAt: now}
	if method == MethodIdentity {
		return curve, nil
	}

	p := make([]float64, len(samples))
	hit := make([]bool, len(samples))
	for _, o := range models.Outcomes {
		for i, s := range samples {
			p[i] = s.Raw[o]
			hit[i] = s.Actual == o
		}
		switch method {
		case MethodPlatt:
			m, err := fitPlatt(p, hit)
			if err != nil {
				return nil, fmt.Errorf("platt %s: %w", o, err)
			}
			curve.Classes[o].Platt = &m
		case MethodIsotonic:
			m, err := fitIsotonic(p, hit)
			if err != nil {
				return nil, fmt.Errorf("isotonic %s: %w", o, err)
			}
			curve.Classes[o].Isotonic = &m
		default:
			return nil, fmt.Errorf("unknown calibration method %q", method)
		}
	}
	return curve, nil
}
