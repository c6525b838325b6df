package calibration

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/models"
)

func TestPlattRecoversShrinkage(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n := 4000
	p := make([]float64, n)
	hit := make([]bool, n)
	for i := range p {
		p[i] = 0.05 + 0.9*rng.Float64()
		truth := sigmoid(0.5 * logit(p[i]))
		hit[i] = rng.Float64() < truth
	}

	m, err := fitPlatt(p, hit)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.A, 0.1)
	assert.InDelta(t, 0.0, m.B, 0.1)
}

func TestPlattAllHitsStaysFinite(t *testing.T) {
	p := []float64{0.2, 0.4, 0.6, 0.8}
	m, err := fitPlatt(p, []bool{true, true, true, true})
	require.NoError(t, err)
	for _, v := range p {
		out := m.Apply(v)
		assert.False(t, math.IsNaN(out))
		assert.Less(t, out, 1.0)
		assert.Greater(t, out, 0.5)
	}
}

func TestIsotonicIsMonotone(t *testing.T) {
	p := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	hit := []bool{false, true, false, false, true, false, true, true}

	m, err := fitIsotonic(p, hit)
	require.NoError(t, err)
	require.Equal(t, len(m.X), len(m.Y))
	for i := 1; i < len(m.Y); i++ {
		assert.Greater(t, m.X[i], m.X[i-1])
		assert.GreaterOrEqual(t, m.Y[i], m.Y[i-1])
	}

	prev := 0.0
	for x := 0.0; x <= 1.0; x += 0.05 {
		v := m.Apply(x)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
	assert.Equal(t, clampProb(0), m.Apply(0.0))
	assert.Equal(t, clampProb(1), m.Apply(1.0))
}

func TestCurveApplyRenormalises(t *testing.T) {
	curve := &Curve{
		Method: MethodPlatt,
		Classes: [models.NumOutcomes]ClassMap{
			{Platt: &PlattMap{A: 0.5, B: 0.2}},
			{Platt: &PlattMap{A: 1.2, B: -0.1}},
			{Platt: &PlattMap{A: 0.8, B: 0}},
		},
	}

	for _, raw := range []models.Probabilities{{0.5, 0.3, 0.2}, {0.9, 0.05, 0.05}, {0.01, 0.01, 0.98}} {
		out := curve.Apply(raw)
		assert.InDelta(t, 1.0, out.Sum(), 1e-9)
		assert.True(t, out.Valid(models.DefaultProbabilityTolerance))
	}

	assert.InDelta(t, PlattMap{A: 0.5, B: 0.2}.Apply(0.5), curve.Calibrate(0.5, models.OutcomeHome), 1e-12)
}

func TestIdentityCurve(t *testing.T) {
	raw := models.Probabilities{0.46, 0.27, 0.27}
	assert.Equal(t, raw.Normalize(), Identity().Apply(raw))

	var nilCurve *Curve
	assert.Equal(t, 0.3, nilCurve.Calibrate(0.3, models.OutcomeDraw))
}

func TestFitCurveMethods(t *testing.T) {
	now := time.Now()
	samples := make([]Sample, 60)
	for i := range samples {
		samples[i] = Sample{
			Raw:        models.Probabilities{0.3 + float64(i%5)*0.05, 0.3, 0.4 - float64(i%5)*0.05}.Normalize(),
			Actual:     models.Outcome(i % 3),
			ObservedAt: now,
		}
	}

	platt, err := FitCurve(samples, MethodPlatt, now)
	require.NoError(t, err)
	for _, c := range platt.Classes {
		assert.NotNil(t, c.Platt)
		assert.Nil(t, c.Isotonic)
	}

	iso, err := FitCurve(samples, MethodIsotonic, now)
	require.NoError(t, err)
	for _, c := range iso.Classes {
		assert.NotNil(t, c.Isotonic)
	}
	assert.Equal(t, 60, iso.Samples)

	_, err = FitCurve(samples, Method("spline"), now)
	assert.Error(t, err)
}

func TestWindowOrderingAndBounds(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(24*time.Hour, 3)

	w.Add(Sample{MatchID: "b", ObservedAt: now.Add(-2 * time.Hour)})
	w.Add(Sample{MatchID: "a", ObservedAt: now.Add(-3 * time.Hour)})
	w.Add(Sample{MatchID: "c", ObservedAt: now.Add(-1 * time.Hour)})

	snap := w.Snapshot(now)
	require.Len(t, snap, 3)
	assert.Equal(t, "a", snap[0].MatchID)
	assert.Equal(t, "c", snap[2].MatchID)

	assert.Equal(t, 3, w.Add(Sample{MatchID: "d", ObservedAt: now}))
	snap = w.Snapshot(now)
	assert.Equal(t, "b", snap[0].MatchID)

	snap = w.Snapshot(now.Add(23*time.Hour + 30*time.Minute))
	require.Len(t, snap, 1)
	assert.Equal(t, "d", snap[0].MatchID)
}
