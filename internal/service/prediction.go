// Package service wires feature building, the model registry, calibration and
// staking into the prediction engine's request path.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchedge/internal/betting"
	"github.com/yourusername/matchedge/internal/calibration"
	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/metrics"
	"github.com/yourusername/matchedge/internal/ml"
	"github.com/yourusername/matchedge/internal/models"
	"github.com/yourusername/matchedge/internal/registry"
	"github.com/yourusername/matchedge/internal/tracing"
)

// restoreTimeout bounds reading a mirrored calibration window on activation.
const restoreTimeout = 5 * time.Second

// OutcomeSink receives every settled outcome.
type OutcomeSink interface {
	RecordOutcome(ctx context.Context, outcome *models.SettledOutcome) error
}

// WindowSource returns previously mirrored outcomes of one artifact.
type WindowSource interface {
	Load(ctx context.Context, league, version string) ([]*models.SettledOutcome, error)
}

// PredictRequest is one match to price.
type PredictRequest struct {
	Match        *models.RawMatchContext `json:"match"`
	Odds         models.BookmakerOdds    `json:"odds,omitempty"`
	Closing      *models.OutcomeOdds     `json:"closing,omitempty"`
	Bankroll     decimal.Decimal         `json:"bankroll"`
	IncludeAvoid bool                    `json:"include_avoid,omitempty"`
}

// PredictionResult is the served prediction with its priced bets.
type PredictionResult struct {
	Prediction *models.BlendedPrediction    `json:"prediction"`
	Level1     []models.Level1Prediction    `json:"level1,omitempty"`
	ValueBets  []models.ValueBet            `json:"value_bets"`
	Stakes     []models.StakeRecommendation `json:"stakes"`
}

// LeagueHealth describes one league held in memory.
type LeagueHealth struct {
	League      string             `json:"league"`
	Version     string             `json:"version,omitempty"`
	TrainedAt   time.Time          `json:"trained_at,omitempty"`
	Calibration calibration.Status `json:"calibration"`
	Baseline    bool               `json:"baseline"`
}

// HealthReport is the read-only engine status.
type HealthReport struct {
	Status            string               `json:"status"`
	Leagues           []LeagueHealth       `json:"leagues"`
	BaselineLeagues   []string             `json:"baseline_leagues,omitempty"`
	Baseline          models.Probabilities `json:"baseline"`
	CachedPredictions int                  `json:"cached_predictions"`
	CacheHitRatio     float64              `json:"cache_hit_ratio"`
	CheckedAt         time.Time            `json:"checked_at"`
}

// OnBaseline reports whether any league is currently served by the fallback.
func (h HealthReport) OnBaseline() bool {
	return len(h.BaselineLeagues) > 0
}

type namedSink struct {
	name string
	sink OutcomeSink
}

// Option configures a PredictionService.
type Option func(*PredictionService)

// WithOutcomeSink adds a settled-outcome destination labelled name in logs and metrics.
func WithOutcomeSink(name string, sink OutcomeSink) Option {
	return func(s *PredictionService) {
		s.sinks = append(s.sinks, namedSink{name: name, sink: sink})
	}
}

// WithWindowSource restores calibration windows when an artifact becomes live.
func WithWindowSource(src WindowSource) Option {
	return func(s *PredictionService) {
		s.window = src
	}
}

// PredictionService serves predictions and routes settled outcomes back to calibration.
type PredictionService struct {
	builder  *features.Builder
	registry *registry.Registry
	detector *betting.EdgeDetector
	staker   *betting.KellyStaker
	cache    *ml.PredictionCache
	serving  config.ServingConfig
	calCfg   config.CalibrationConfig
	baseline models.Probabilities
	sinks    []namedSink
	window   WindowSource
	logger   *logrus.Logger
	audit    *logger.AuditLogger
	now      func() time.Time
	infer    func(*registry.LiveModel, *features.MatchFeatureVector) (calibrated, raw models.Probabilities, level1 []models.Level1Prediction, err error)

	loopsMu sync.Mutex
	loops   map[*calibration.Calibrator]context.CancelFunc
	loopsWG sync.WaitGroup
	baseCtx context.Context
	stop    context.CancelFunc

	baselineMu sync.RWMutex
	onBaseline map[string]bool
}

// NewPredictionService creates the serving layer and subscribes to registry
// activations so each live artifact runs its own calibration loop.
func NewPredictionService(reg *registry.Registry, builder *features.Builder, cfg *config.Config, log *logrus.Logger, opts ...Option) (*PredictionService, error) {
	baseline, err := baselineFrom(cfg.Serving.Baseline)
	if err != nil {
		return nil, err
	}

	audit := logger.NewAuditLogger(log)
	ctx, cancel := context.WithCancel(context.Background())
	s := &PredictionService{
		builder:    builder,
		registry:   reg,
		detector:   betting.NewEdgeDetector(cfg.Staking, log),
		staker:     betting.NewKellyStaker(cfg.Staking, audit),
		cache:      ml.NewPredictionCache(cfg.Serving.PredictionCacheTTL(), 0),
		serving:    cfg.Serving,
		calCfg:     cfg.Calibration,
		baseline:   baseline,
		logger:     log,
		audit:      audit,
		now:        time.Now,
		infer:      (*registry.LiveModel).Predict,
		loops:      make(map[*calibration.Calibrator]context.CancelFunc),
		baseCtx:    ctx,
		stop:       cancel,
		onBaseline: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	reg.OnActivate(s.startCalibration)
	reg.OnDeactivate(s.stopCalibration)
	return s, nil
}

func baselineFrom(values []float64) (models.Probabilities, error) {
	if len(values) == 0 {
		return models.Probabilities{0.46, 0.27, 0.27}, nil
	}
	if len(values) != models.NumOutcomes {
		return models.Probabilities{}, fmt.Errorf("baseline needs %d values, got %d", models.NumOutcomes, len(values))
	}
	var p models.Probabilities
	copy(p[:], values)
	return p.Normalize(), nil
}

// Predict prices one match. It returns a *models.TimeoutError when the serving
// deadline passes, a *models.SchemaError for malformed input, and a labelled
// baseline prediction without bets when no artifact can be loaded.
func (s *PredictionService) Predict(ctx context.Context, req PredictRequest) (_ *PredictionResult, err error) {
	timeout := s.serving.RequestTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, seg := tracing.StartSegment(ctx, "predict")
	defer func() { seg.End(err) }()

	type result struct {
		res *PredictionResult
		err error
	}
	done := make(chan result, 1)
	start := s.now()
	go func() {
		res, err := s.predict(ctx, req)
		done <- result{res, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			s.recordError(r.err)
			return nil, r.err
		}
		metrics.RecordPrediction(r.res.Prediction.League, r.res.Prediction.IsBaseline, s.now().Sub(start).Seconds())
		seg.Annotate("league", r.res.Prediction.League)
		seg.Annotate("baseline", r.res.Prediction.IsBaseline)
		seg.Annotate("value_bets", len(r.res.ValueBets))
		return r.res, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.RecordPredictionError("timeout")
			return nil, &models.TimeoutError{Operation: "predict", Deadline: timeout}
		}
		metrics.RecordPredictionError("cancelled")
		return nil, ctx.Err()
	}
}

func (s *PredictionService) recordError(err error) {
	var schemaErr *models.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		metrics.RecordPredictionError("schema")
	default:
		metrics.RecordPredictionError("internal")
	}
}

func (s *PredictionService) predict(ctx context.Context, req PredictRequest) (*PredictionResult, error) {
	vec, err := s.builder.Build(req.Match)
	if err != nil {
		return nil, err
	}
	league := req.Match.League

	live, err := s.registry.Live(ctx, league)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var loadErr *models.ModelLoadError
		if !errors.As(err, &loadErr) {
			return nil, err
		}
		return s.fallback(league, req.Match.MatchID, err, false), nil
	}

	calibrated, raw, level1, err := s.infer(live, vec)
	if err == nil && !calibrated.Valid(models.DefaultProbabilityTolerance) {
		err = fmt.Errorf("artifact %s produced invalid probabilities %v", live.Version(), calibrated)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"league":   league,
			"version":  live.Version(),
			"match_id": req.Match.MatchID,
		}).Error("Inference failed; serving baseline")
		metrics.RecordPredictionError("inference")
		return s.fallback(league, req.Match.MatchID, err, true), nil
	}
	s.setBaseline(league, false)

	pred := &models.BlendedPrediction{
		ID:              uuid.New(),
		MatchID:         req.Match.MatchID,
		League:          league,
		Probabilities:   calibrated,
		Raw:             raw,
		Confidence:      calibrated.Max(),
		ArtifactVersion: live.Version(),
		PredictedAt:     s.now().UTC(),
	}
	s.cache.Set(pred)

	bets, stakes, err := s.price(pred, req)
	if err != nil {
		return nil, err
	}
	return &PredictionResult{Prediction: pred, Level1: level1, ValueBets: bets, Stakes: stakes}, nil
}

// fallback serves the labelled baseline without bets. degraded marks a live
// artifact that failed at inference rather than one that could not be loaded.
func (s *PredictionService) fallback(league, matchID string, cause error, degraded bool) *PredictionResult {
	s.audit.LogBaselineFallback(league, matchID, cause)
	s.setBaseline(league, true)
	pred := models.NewBaselinePrediction(matchID, league, s.baseline, s.now().UTC())
	pred.Degraded = degraded
	s.cache.Set(pred)
	return &PredictionResult{Prediction: pred}
}

// price finds value bets against the quoted odds and sizes them. Bets whose
// Kelly stake is zero are marked avoid on both the bet and the stake.
func (s *PredictionService) price(pred *models.BlendedPrediction, req PredictRequest) ([]models.ValueBet, []models.StakeRecommendation, error) {
	odds := req.Odds
	if len(odds) == 0 && req.Match.MarketOdds != nil {
		odds = models.BookmakerOdds{"market": *req.Match.MarketOdds}
	}

	candidates, err := s.detector.Detect(betting.DetectRequest{
		MatchID:      pred.MatchID,
		Fair:         pred.Probabilities,
		Confidence:   pred.Confidence,
		Odds:         odds,
		Closing:      req.Closing,
		Bankroll:     req.Bankroll,
		IncludeAvoid: req.IncludeAvoid,
	})
	if err != nil {
		return nil, nil, err
	}

	bets := make([]models.ValueBet, 0, len(candidates))
	stakes := make([]models.StakeRecommendation, 0, len(candidates))
	for _, bet := range candidates {
		rec := s.staker.Stake(bet, req.Bankroll)
		if rec.IsZero() {
			bet.Tier = models.TierAvoid
			rec.Tier = models.TierAvoid
			if !req.IncludeAvoid {
				continue
			}
		}
		metrics.RecordValueBet(string(bet.Tier))
		if !rec.IsZero() {
			metrics.RecordStake(rec.BankrollFraction)
		}
		bets = append(bets, bet)
		stakes = append(stakes, rec)
	}
	return bets, stakes, nil
}

// Settle records the actual result of a previously served match. The outcome
// feeds the calibrator only when the serving artifact is still live; it is
// always handed to the configured sinks. Sink failures are logged, not returned.
func (s *PredictionService) Settle(ctx context.Context, matchID string, actual models.Outcome) (*models.SettledOutcome, error) {
	if !actual.Valid() {
		return nil, models.NewSchemaError("outcome", "unknown outcome %d", int(actual))
	}
	pred, ok := s.cache.Get(matchID)
	if !ok {
		return nil, fmt.Errorf("no served prediction for match %s: %w", matchID, models.ErrNotFound)
	}
	s.cache.Delete(matchID)

	outcome := models.NewSettledOutcome(pred, actual, s.now().UTC())

	routed := false
	if !pred.IsBaseline {
		if live, ok := s.registry.Peek(pred.League); ok && live.Version() == pred.ArtifactVersion {
			live.Calibrator.Observe(calibration.SampleFromOutcome(outcome))
			routed = true
		}
	}
	metrics.RecordOutcomeSettled(pred.League, routed)

	s.fanOut(ctx, outcome)
	return outcome, nil
}

func (s *PredictionService) fanOut(ctx context.Context, outcome *models.SettledOutcome) {
	var wg sync.WaitGroup
	for _, ns := range s.sinks {
		wg.Add(1)
		go func(ns namedSink) {
			defer wg.Done()
			if err := ns.sink.RecordOutcome(ctx, outcome); err != nil {
				metrics.RecordSinkError(ns.name)
				s.logger.WithError(err).WithFields(logrus.Fields{
					"sink":     ns.name,
					"match_id": outcome.MatchID,
					"league":   outcome.League,
				}).Warn("Failed to record settled outcome")
			}
		}(ns)
	}
	wg.Wait()
}

// Warm loads the live artifact of each league so the first request does not
// pay the load. Leagues that fail to load are served by the baseline.
func (s *PredictionService) Warm(ctx context.Context, leagues ...string) {
	for _, league := range leagues {
		if _, err := s.registry.Live(ctx, league); err != nil {
			s.setBaseline(league, true)
			s.logger.WithError(err).WithField("league", league).Warn("No live artifact, serving baseline")
			continue
		}
		s.setBaseline(league, false)
	}
}

// Health reports the live artifacts held in memory, their calibration state
// and which leagues fall back to the baseline.
func (s *PredictionService) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:            "ok",
		Baseline:          s.baseline,
		CachedPredictions: s.cache.ItemCount(),
		CheckedAt:         s.now().UTC(),
	}
	_, _, report.CacheHitRatio = s.cache.Stats()

	seen := make(map[string]bool)
	for _, league := range s.registry.Cached() {
		live, ok := s.registry.Peek(league)
		if !ok {
			continue
		}
		seen[league] = true
		report.Leagues = append(report.Leagues, LeagueHealth{
			League:      league,
			Version:     live.Version(),
			TrainedAt:   live.Artifact.Metadata.TrainedAt,
			Calibration: live.Calibrator.Status(),
			Baseline:    s.isBaseline(league),
		})
	}

	s.baselineMu.RLock()
	for league, on := range s.onBaseline {
		if !on {
			continue
		}
		report.BaselineLeagues = append(report.BaselineLeagues, league)
		if !seen[league] {
			report.Leagues = append(report.Leagues, LeagueHealth{League: league, Baseline: true})
		}
	}
	s.baselineMu.RUnlock()

	sort.Strings(report.BaselineLeagues)
	sort.Slice(report.Leagues, func(i, j int) bool { return report.Leagues[i].League < report.Leagues[j].League })
	metrics.UpdateLiveArtifacts(len(seen))

	if report.OnBaseline() {
		report.Status = "degraded"
	}
	return report
}

func (s *PredictionService) setBaseline(league string, on bool) {
	s.baselineMu.Lock()
	defer s.baselineMu.Unlock()
	if on {
		s.onBaseline[league] = true
		return
	}
	delete(s.onBaseline, league)
}

func (s *PredictionService) isBaseline(league string) bool {
	s.baselineMu.RLock()
	defer s.baselineMu.RUnlock()
	return s.onBaseline[league]
}

// startCalibration runs the artifact's calibrator until it is deactivated.
// It is called under the registry's swap lock and must not block.
func (s *PredictionService) startCalibration(m *registry.LiveModel) {
	s.loopsMu.Lock()
	defer s.loopsMu.Unlock()

	if _, running := s.loops[m.Calibrator]; running || s.baseCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.loops[m.Calibrator] = cancel
	s.loopsWG.Add(1)

	go func() {
		defer s.loopsWG.Done()
		s.restoreWindow(ctx, m)

		err := m.Calibrator.Run(ctx, s.calCfg.RefitInterval())
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"league":  m.League,
				"version": m.Version(),
			}).Error("Calibration loop stopped")
		}
	}()
}

func (s *PredictionService) stopCalibration(m *registry.LiveModel) {
	s.loopsMu.Lock()
	defer s.loopsMu.Unlock()

	if cancel, ok := s.loops[m.Calibrator]; ok {
		cancel()
		delete(s.loops, m.Calibrator)
	}
}

func (s *PredictionService) restoreWindow(ctx context.Context, m *registry.LiveModel) {
	if s.window == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	outcomes, err := s.window.Load(ctx, m.League, m.Version())
	if err != nil {
		s.logger.WithError(err).WithField("league", m.League).Warn("Failed to restore calibration window")
		return
	}
	samples := make([]calibration.Sample, 0, len(outcomes))
	for _, o := range outcomes {
		if o.IsBaseline || o.ArtifactVersion != m.Version() {
			continue
		}
		samples = append(samples, calibration.SampleFromOutcome(o))
	}
	if len(samples) == 0 {
		return
	}
	m.Calibrator.Restore(samples)
	s.logger.WithFields(logrus.Fields{
		"league":  m.League,
		"version": m.Version(),
		"samples": len(samples),
	}).Info("Calibration window restored")
}

// Close stops every calibration loop and waits for them to exit.
func (s *PredictionService) Close() {
	s.stop()
	s.loopsMu.Lock()
	for c, cancel := range s.loops {
		cancel()
		delete(s.loops, c)
	}
	s.loopsMu.Unlock()
	s.loopsWG.Wait()
}
