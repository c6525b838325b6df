package calibration

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/models"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.CalibrationConfig {
	return config.CalibrationConfig{
		RefitIntervalSeconds: 180,
		MinSamples:           20,
		IsotonicMinSamples:   1000,
		WindowHours:          24,
		MaxSamples:           2000,
		HoldoutFraction:      0.25,
		GuardrailMargin:      0.002,
	}
}

func newTestCalibrator(cfg config.CalibrationConfig) (*Calibrator, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	c := NewCalibrator("EPL", "abc123", cfg, nil, log)
	c.now = func() time.Time { return baseTime }
	return c, hook
}

// overconfidentSamples draws outcomes from a distribution flatter than the raw
// forecast, so a fitted curve must beat the identity.
func overconfidentSamples(n int, seed int64) []Sample {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Sample, n)
	for i := range out {
		raw := models.Probabilities{0.1 + 0.8*rng.Float64(), 0.05 + 0.2*rng.Float64(), 0.1 + 0.5*rng.Float64()}.Normalize()
		var truth models.Probabilities
		for c := range raw {
			truth[c] = math.Sqrt(raw[c])
		}
		truth = truth.Normalize()

		u := rng.Float64()
		actual := models.OutcomeAway
		if u < truth[0] {
			actual = models.OutcomeHome
		} else if u < truth[0]+truth[1] {
			actual = models.OutcomeDraw
		}
		out[i] = Sample{
			MatchID:    "m",
			Raw:        raw,
			Actual:     actual,
			ObservedAt: baseTime.Add(-time.Duration(n-i) * time.Minute),
		}
	}
	return out
}

func TestRunCycleInsufficientSamples(t *testing.T) {
	c, hook := newTestCalibrator(testConfig())
	for _, s := range overconfidentSamples(15, 1) {
		c.Observe(s)
	}
	require.Equal(t, StateCollecting, c.State())
	before := c.Current()

	res, err := c.RunCycle(context.Background())

	var rejected *models.CalibrationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, models.RejectInsufficientSamples, rejected.Reason)
	assert.Equal(t, []Transition{{From: StateCollecting, To: StateRejected}}, res.Transitions)
	assert.Equal(t, 15, res.Samples)
	assert.False(t, res.Deployed)
	assert.Equal(t, StateRejected, c.State())
	assert.Same(t, before, c.Current())

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "CalibrationRejected" {
			found = true
			assert.Equal(t, models.RejectInsufficientSamples, e.Data["reason"])
		}
	}
	assert.True(t, found)
}

func TestRunCycleDeploysPlatt(t *testing.T) {
	c, _ := newTestCalibrator(testConfig())
	for _, s := range overconfidentSamples(800, 2) {
		c.Observe(s)
	}
	before := c.Current()

	res, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Deployed)
	assert.Equal(t, MethodPlatt, res.Method)
	assert.Equal(t, 600, res.FitSamples)
	assert.Equal(t, 200, res.Holdout)
	assert.Equal(t, []Transition{
		{From: StateCollecting, To: StateFitting},
		{From: StateFitting, To: StateEvaluating},
		{From: StateEvaluating, To: StateDeployed},
	}, res.Transitions)
	assert.Less(t, res.Candidate.Brier, res.Current.Brier)

	after := c.Current()
	assert.NotSame(t, before, after)
	assert.Equal(t, MethodPlatt, after.Method)
	assert.Equal(t, res.Candidate, after.After)
	assert.Equal(t, StateDeployed, c.State())
	assert.Same(t, res, c.LastCycle())

	st := c.Status()
	assert.Equal(t, StateDeployed, st.State)
	assert.Equal(t, res.Candidate.Brier, st.Brier)
}

func TestRunCycleSwitchesToIsotonic(t *testing.T) {
	cfg := testConfig()
	cfg.IsotonicMinSamples = 200
	c, _ := newTestCalibrator(cfg)
	for _, s := range overconfidentSamples(800, 3) {
		c.Observe(s)
	}

	res, _ := c.RunCycle(context.Background())
	assert.Equal(t, MethodIsotonic, res.Method)
}

func TestRunCycleRejectsDegradedBrier(t *testing.T) {
	c, _ := newTestCalibrator(testConfig())
	// Fit slice: home always wins. Holdout slice: away always wins.
	for i := 0; i < 15; i++ {
		c.Observe(Sample{
			Raw:        models.Probabilities{0.3 + 0.01*float64(i), 0.3, 0.4 - 0.01*float64(i)},
			Actual:     models.OutcomeHome,
			ObservedAt: baseTime.Add(-time.Duration(60-i) * time.Minute),
		})
	}
	for i := 0; i < 5; i++ {
		c.Observe(Sample{
			Raw:        models.Probabilities{0.4, 0.3, 0.3},
			Actual:     models.OutcomeAway,
			ObservedAt: baseTime.Add(-time.Duration(10-i) * time.Minute),
		})
	}
	before := c.Current()

	res, err := c.RunCycle(context.Background())

	var rejected *models.CalibrationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, models.RejectDegradedBrier, rejected.Reason)
	assert.Equal(t, StateRejected, res.Transitions[len(res.Transitions)-1].To)
	assert.Greater(t, res.Candidate.Brier, res.Current.Brier)
	assert.Same(t, before, c.Current())
}

func TestObserveTriggersRun(t *testing.T) {
	c, _ := newTestCalibrator(testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, time.Hour) }()

	for _, s := range overconfidentSamples(20, 4) {
		c.Observe(s)
	}
	require.Eventually(t, func() bool { return c.LastCycle() != nil }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 20, c.LastCycle().Samples)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestApplyDuringCyclesIsConsistent(t *testing.T) {
	c, _ := newTestCalibrator(testConfig())
	for _, s := range overconfidentSamples(400, 5) {
		c.Observe(s)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				p := c.Apply(models.Probabilities{0.5, 0.3, 0.2})
				assert.InDelta(t, 1.0, p.Sum(), 1e-9)
			}
		}()
	}
	for i := 0; i < 3; i++ {
		_, _ = c.RunCycle(context.Background())
	}
	close(stop)
	wg.Wait()
}

func TestRestoreSeedsWindow(t *testing.T) {
	c, _ := newTestCalibrator(testConfig())
	c.Restore(overconfidentSamples(30, 6))

	assert.Equal(t, StateCollecting, c.State())
	assert.Len(t, c.Samples(), 30)
}
