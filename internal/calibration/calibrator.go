package calibration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/ml"
	"github.com/yourusername/matchedge/internal/models"
)

// State is a step of the calibration cycle.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateFitting    State = "fitting"
	StateEvaluating State = "evaluating"
	StateDeployed   State = "deployed"
	StateRejected   State = "rejected"
)

// Transition is one state change inside a cycle.
type Transition struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// CycleResult describes a completed refit attempt.
type CycleResult struct {
	Transitions []Transition  `json:"transitions"`
	Samples     int           `json:"samples"`
	FitSamples  int           `json:"fit_samples"`
	Holdout     int           `json:"holdout"`
	Method      Method        `json:"method,omitempty"`
	Current     ml.Scores     `json:"current"`
	Candidate   ml.Scores     `json:"candidate"`
	Deployed    bool          `json:"deployed"`
	Reason      string        `json:"reason,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Status is a read-only view for health reporting.
type Status struct {
	State       State     `json:"state"`
	Samples     int       `json:"samples"`
	Method      Method    `json:"method"`
	Brier       float64   `json:"brier,omitempty"`
	LogLoss     float64   `json:"log_loss,omitempty"`
	FittedAt    time.Time `json:"fitted_at,omitempty"`
	LastReason  string    `json:"last_reason,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at,omitempty"`
}

// Calibrator owns the live curve of one artifact. Readers call Apply without
// locking; a cycle builds a new curve aside and publishes it with one pointer swap.
type Calibrator struct {
	league  string
	version string
	cfg     config.CalibrationConfig
	logger  *logger.CalibrationLogger
	now     func() time.Time

	curve  atomic.Pointer[Curve]
	last   atomic.Pointer[CycleResult]
	window *Window

	stateMu sync.RWMutex
	state   State

	cycleMu sync.Mutex
	trigger chan struct{}
}

// NewCalibrator creates a calibrator starting from initial, or the identity curve.
func NewCalibrator(league, version string, cfg config.CalibrationConfig, initial *Curve, log *logrus.Logger) *Calibrator {
	if initial == nil {
		initial = Identity()
	}
	c := &Calibrator{
		league:  league,
		version: version,
		cfg:     cfg,
		logger:  logger.NewCalibrationLogger(log, league, version),
		now:     time.Now,
		window:  NewWindow(cfg.Window(), cfg.MaxSamples),
		state:   StateIdle,
		trigger: make(chan struct{}, 1),
	}
	c.curve.Store(initial)
	return c
}

// Version returns the artifact version the calibrator belongs to.
func (c *Calibrator) Version() string { return c.version }

// Current returns the live curve.
func (c *Calibrator) Current() *Curve { return c.curve.Load() }

// Apply calibrates a blended distribution with the live curve.
func (c *Calibrator) Apply(raw models.Probabilities) models.Probabilities {
	return c.curve.Load().Apply(raw)
}

// State returns the current state.
func (c *Calibrator) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// LastCycle returns the most recent cycle result, if any.
func (c *Calibrator) LastCycle() *CycleResult { return c.last.Load() }

// Status summarises the calibrator for health checks.
func (c *Calibrator) Status() Status {
	curve := c.curve.Load()
	st := Status{
		State:    c.State(),
		Samples:  c.window.Len(),
		Method:   curve.Method,
		FittedAt: curve.FittedAt,
	}
	if curve.Method != MethodIdentity {
		st.Brier, st.LogLoss = curve.After.Brier, curve.After.LogLoss
	}
	if last := c.last.Load(); last != nil {
		st.LastReason = last.Reason
		st.LastCycleAt = last.StartedAt
	}
	return st
}

// Observe adds a settled sample. Crossing the minimum sample count wakes Run.
func (c *Calibrator) Observe(s Sample) {
	before := c.window.Len()
	after := c.window.Add(s)
	WindowSamples.WithLabelValues(c.league).Set(float64(after))

	c.stateMu.Lock()
	if c.state == StateIdle || c.state == StateDeployed || c.state == StateRejected {
		c.state = StateCollecting
	}
	c.stateMu.Unlock()

	if before < c.cfg.MinSamples && after >= c.cfg.MinSamples {
		select {
		case c.trigger <- struct{}{}:
		default:
		}
	}
}

// Restore seeds the window, typically from a persisted mirror after a restart.
func (c *Calibrator) Restore(samples []Sample) {
	for _, s := range samples {
		c.window.Add(s)
	}
	if len(samples) > 0 {
		c.setState(StateCollecting)
	}
	WindowSamples.WithLabelValues(c.league).Set(float64(c.window.Len()))
}

// Samples returns the current window contents, oldest first.
func (c *Calibrator) Samples() []Sample {
	return c.window.Snapshot(c.now())
}

// Run executes a cycle every interval and whenever the window reaches the minimum
// sample count. It returns when ctx is cancelled.
func (c *Calibrator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = c.cfg.RefitInterval()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-c.trigger:
		}
		if _, err := c.RunCycle(ctx); err != nil {
			var rejected *models.CalibrationRejectedError
			if !errors.As(err, &rejected) {
				c.logger.WithError(err).Error("Calibration cycle failed")
			}
		}
	}
}

// RunCycle performs one collect, fit, evaluate pass. A rejected refit returns
// the result together with a *models.CalibrationRejectedError; the live curve
// is unchanged in that case.
func (c *Calibrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	res := &CycleResult{StartedAt: c.now()}
	defer func() {
		res.Duration = c.now().Sub(res.StartedAt)
		c.last.Store(res)
	}()

	samples := c.window.Snapshot(res.StartedAt)
	res.Samples = len(samples)
	WindowSamples.WithLabelValues(c.league).Set(float64(len(samples)))

	if c.State() != StateCollecting {
		c.transition(res, StateCollecting)
	}
	if len(samples) < c.cfg.MinSamples {
		return res, c.reject(res, models.RejectInsufficientSamples,
			fmt.Sprintf("%d samples, need %d", len(samples), c.cfg.MinSamples))
	}

	holdout := int(math.Round(float64(len(samples)) * c.cfg.HoldoutFraction))
	if holdout < 1 {
		holdout = 1
	}
	fitSet, evalSet := samples[:len(samples)-holdout], samples[len(samples)-holdout:]
	res.FitSamples, res.Holdout = len(fitSet), len(evalSet)
	if len(fitSet) < 2 {
		return res, c.reject(res, models.RejectInsufficientSamples,
			fmt.Sprintf("%d samples left for fitting", len(fitSet)))
	}

	c.transition(res, StateFitting)
	res.Method = MethodPlatt
	if len(fitSet) >= c.cfg.IsotonicMinSamples {
		res.Method = MethodIsotonic
	}
	candidate, err := FitCurve(fitSet, res.Method, res.StartedAt)
	if err != nil {
		return res, c.reject(res, models.RejectFitFailed, err.Error())
	}
	if err := ctx.Err(); err != nil {
		c.setState(StateCollecting)
		return res, err
	}

	c.transition(res, StateEvaluating)
	current := c.curve.Load()
	res.Current = current.Score(evalSet)
	res.Candidate = candidate.Score(evalSet)
	if math.IsNaN(res.Candidate.Brier) || res.Candidate.Brier > res.Current.Brier+c.cfg.GuardrailMargin {
		return res, c.reject(res, models.RejectDegradedBrier,
			fmt.Sprintf("brier %.5f vs live %.5f (margin %.4f)", res.Candidate.Brier, res.Current.Brier, c.cfg.GuardrailMargin))
	}

	candidate.Before, candidate.After = res.Current, res.Candidate
	c.curve.Store(candidate)
	res.Deployed = true
	c.transition(res, StateDeployed)

	CyclesTotal.WithLabelValues(c.league, "deployed").Inc()
	CurveBrier.WithLabelValues(c.league).Set(res.Candidate.Brier)
	c.logger.LogDeployed(string(res.Method), res.Samples, res.Current.Brier, res.Candidate.Brier, res.Current.LogLoss, res.Candidate.LogLoss)
	return res, nil
}

func (c *Calibrator) reject(res *CycleResult, reason, detail string) error {
	res.Reason = reason
	c.transition(res, StateRejected)
	CyclesTotal.WithLabelValues(c.league, reason).Inc()
	c.logger.LogRejected(reason, res.Samples, res.Current.Brier, res.Candidate.Brier)
	return &models.CalibrationRejectedError{Reason: reason, Detail: detail}
}

func (c *Calibrator) transition(res *CycleResult, to State) {
	c.stateMu.Lock()
	from := c.state
	c.state = to
	c.stateMu.Unlock()

	res.Transitions = append(res.Transitions, Transition{From: from, To: to})
	c.logger.LogTransition(string(from), string(to), res.Samples)
}

func (c *Calibrator) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}
