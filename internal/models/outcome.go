package models

import (
	"fmt"
	"math"
	"strings"
)

// Outcome is one of the three full-time results of a match.
type Outcome int

const (
	OutcomeHome Outcome = iota
	OutcomeDraw
	OutcomeAway
)

// NumOutcomes is the width of every probability vector.
const NumOutcomes = 3

// Outcomes lists all outcomes in vector order.
var Outcomes = [NumOutcomes]Outcome{OutcomeHome, OutcomeDraw, OutcomeAway}

// DefaultProbabilityTolerance bounds how far a distribution may drift from summing to 1.
const DefaultProbabilityTolerance = 1e-6

func (o Outcome) String() string {
	switch o {
	case OutcomeHome:
		return "home"
	case OutcomeDraw:
		return "draw"
	case OutcomeAway:
		return "away"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o >= OutcomeHome && o <= OutcomeAway
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid outcome %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutcome parses "home", "draw" or "away" (also H/D/A).
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home", "h", "1":
		return OutcomeHome, nil
	case "draw", "d", "x":
		return OutcomeDraw, nil
	case "away", "a", "2":
		return OutcomeAway, nil
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// Probabilities is a home/draw/away distribution.
type Probabilities [NumOutcomes]float64

// Sum returns the total mass.
func (p Probabilities) Sum() float64 {
	return p[0] + p[1] + p[2]
}

// Normalize rescales p to sum to 1. A vector with no usable mass becomes uniform.
func (p Probabilities) Normalize() Probabilities {
	var out Probabilities
	total := 0.0
	for i, v := range p {
		if math.IsNaN(v) || v < 0 {
			v = 0
		}
		out[i] = v
		total += v
	}
	if total <= 0 || math.IsInf(total, 0) {
		return Probabilities{1.0 / 3, 1.0 / 3, 1.0 / 3}
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// Max returns the largest class probability.
func (p Probabilities) Max() float64 {
	return p[p.ArgMax()]
}

// ArgMax returns the most likely outcome.
func (p Probabilities) ArgMax() Outcome {
	best := 0
	for i := 1; i < NumOutcomes; i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return Outcome(best)
}

// Get returns the probability of outcome o.
func (p Probabilities) Get(o Outcome) float64 {
	return p[o]
}

// Valid reports whether every entry is a finite probability and the total is 1 within tol.
func (p Probabilities) Valid(tol float64) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return false
		}
	}
	return math.Abs(p.Sum()-1) <= tol
}

// Slice returns a copy of p as a slice.
func (p Probabilities) Slice() []float64 {
	return []float64{p[0], p[1], p[2]}
}
