package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/matchedge/internal/calibration"
	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/ml"
	"github.com/yourusername/matchedge/internal/models"
)

// LiveModel is an artifact together with its running calibrator. Requests borrow
// one LiveModel for their whole lifetime.
type LiveModel struct {
	League     string
	Artifact   *Artifact
	Calibrator *calibration.Calibrator
}

// Version returns the artifact version.
func (m *LiveModel) Version() string { return m.Artifact.Version }

// Predict returns the calibrated and raw blended distributions for vec.
func (m *LiveModel) Predict(vec *features.MatchFeatureVector) (calibrated, raw models.Probabilities, level1 []models.Level1Prediction, err error) {
	raw, level1, err = m.Artifact.Ensemble.Predict(vec)
	if err != nil {
		return models.Probabilities{}, models.Probabilities{}, nil, err
	}
	return m.Calibrator.Apply(raw), raw, level1, nil
}

// RecordSink receives artifact audit records, e.g. a database repository.
type RecordSink interface {
	SaveArtifactRecord(ctx context.Context, rec *models.ArtifactRecord) error
}

// PromotionDecision is the outcome of Promote.
type PromotionDecision struct {
	League          string    `json:"league"`
	Candidate       string    `json:"candidate"`
	Previous        string    `json:"previous,omitempty"`
	Promoted        bool      `json:"promoted"`
	Reason          string    `json:"reason"`
	CandidateScores ml.Scores `json:"candidate_scores"`
	LiveScores      ml.Scores `json:"live_scores"`
}

type slot struct {
	live atomic.Pointer[LiveModel]
}

// Registry owns the live artifact of every league. Live models are held in a
// bounded LRU; eviction only drops the registry's reference.
type Registry struct {
	store  Store
	cfg    config.CalibrationConfig
	log    *logrus.Logger
	audit  *logger.AuditLogger
	sinks  []RecordSink
	now    func() time.Time
	loads  singleflight.Group
	cache  *lru.Cache[string, *slot]
	writes sync.Mutex
	swaps  sync.Mutex

	hooksMu      sync.RWMutex
	onActivate   []func(*LiveModel)
	onDeactivate []func(*LiveModel)
}

// New creates a registry over store holding at most cacheSize leagues.
func New(store Store, cacheSize int, cfg config.CalibrationConfig, log *logrus.Logger, sinks ...RecordSink) (*Registry, error) {
	r := &Registry{
		store: store,
		cfg:   cfg,
		log:   log,
		audit: logger.NewAuditLogger(log),
		sinks: sinks,
		now:   time.Now,
	}
	cache, err := lru.NewWithEvict[string, *slot](cacheSize, func(league string, s *slot) {
		if m := s.live.Load(); m != nil {
			r.log.WithFields(logrus.Fields{"league": league, "version": m.Version()}).Debug("Live model evicted from cache")
			r.fire(false, m)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create league cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// OnActivate registers a hook run whenever a model becomes live in the cache.
func (r *Registry) OnActivate(fn func(*LiveModel)) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.onActivate = append(r.onActivate, fn)
}

// OnDeactivate registers a hook run when a model is replaced or evicted.
func (r *Registry) OnDeactivate(fn func(*LiveModel)) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.onDeactivate = append(r.onDeactivate, fn)
}

func (r *Registry) fire(activate bool, m *LiveModel) {
	r.hooksMu.RLock()
	hooks := r.onDeactivate
	if activate {
		hooks = r.onActivate
	}
	hooks = append([]func(*LiveModel){}, hooks...)
	r.hooksMu.RUnlock()
	for _, h := range hooks {
		h(m)
	}
}

// Live returns the live model of league, loading it on a cache miss. Failures
// are *models.ModelLoadError.
func (r *Registry) Live(ctx context.Context, league string) (*LiveModel, error) {
	if s, ok := r.cache.Get(league); ok {
		if m := s.live.Load(); m != nil {
			return m, nil
		}
	}

	v, err, _ := r.loads.Do(league, func() (interface{}, error) {
		if s, ok := r.cache.Get(league); ok {
			if m := s.live.Load(); m != nil {
				return m, nil
			}
		}
		version, err := r.store.LiveVersion(ctx, league)
		if err != nil {
			return nil, &models.ModelLoadError{League: league, Cause: err}
		}
		a, err := r.store.Load(ctx, league, version)
		if err != nil {
			return nil, err
		}
		m := r.newLiveModel(league, a)
		r.install(league, m)
		return m, nil
	})
	if err != nil {
		var loadErr *models.ModelLoadError
		if !errors.As(err, &loadErr) {
			err = &models.ModelLoadError{League: league, Cause: err}
		}
		ArtifactLoadFailuresTotal.WithLabelValues(league).Inc()
		return nil, err
	}
	return v.(*LiveModel), nil
}

// Peek returns the cached live model without loading or touching recency.
func (r *Registry) Peek(league string) (*LiveModel, bool) {
	s, ok := r.cache.Peek(league)
	if !ok {
		return nil, false
	}
	m := s.live.Load()
	return m, m != nil
}

// Cached lists the leagues currently held in memory.
func (r *Registry) Cached() []string {
	keys := r.cache.Keys()
	sort.Strings(keys)
	return keys
}

// Register stores a candidate artifact and its audit record.
func (r *Registry) Register(ctx context.Context, a *Artifact) (*models.ArtifactRecord, error) {
	r.writes.Lock()
	defer r.writes.Unlock()

	if err := a.Verify(); err != nil {
		return nil, err
	}
	if err := r.store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	rec, err := a.Record(models.ArtifactCandidate, r.now())
	if err != nil {
		return nil, err
	}
	if err := r.putRecord(ctx, rec); err != nil {
		return nil, err
	}
	r.audit.LogArtifactRegistered(a.Metadata.League, a.Version, a.Metadata.SchemaVersion, a.Metadata.SampleCount, a.ExcludedLearners())
	return rec, nil
}

// Promote makes version live if its calibrated Brier score on eval is strictly
// lower than the live model's score on the same rows. The first artifact of a
// league always promotes.
func (r *Registry) Promote(ctx context.Context, league, version string, eval *ml.Dataset) (*PromotionDecision, error) {
	r.writes.Lock()
	defer r.writes.Unlock()

	candidate, err := r.store.Load(ctx, league, version)
	if err != nil {
		return nil, err
	}
	decision := &PromotionDecision{League: league, Candidate: version}

	current, err := r.Live(ctx, league)
	var loadErr *models.ModelLoadError
	switch {
	case err == nil:
		decision.Previous = current.Version()
	case errors.As(err, &loadErr) && (errors.Is(err, models.ErrNoLiveArtifact) || errors.Is(err, models.ErrNotFound)):
		current = nil
	default:
		return nil, err
	}

	switch {
	case current == nil:
		decision.Promoted, decision.Reason = true, "first artifact for league"
	case current.Version() == version:
		return nil, fmt.Errorf("%s@%s is already live", league, version)
	default:
		if eval == nil || eval.Len() == 0 {
			return nil, fmt.Errorf("promotion of %s@%s: %w", league, version, ml.ErrEmptyDataset)
		}
		candModel := r.newLiveModel(league, candidate)
		if decision.CandidateScores, err = evaluate(candModel, eval); err != nil {
			return nil, fmt.Errorf("evaluate candidate: %w", err)
		}
		if decision.LiveScores, err = evaluate(current, eval); err != nil {
			return nil, fmt.Errorf("evaluate live: %w", err)
		}
		if decision.CandidateScores.Brier < decision.LiveScores.Brier {
			decision.Promoted, decision.Reason = true, "brier improved"
		} else {
			decision.Reason = fmt.Sprintf("brier %.5f not below live %.5f", decision.CandidateScores.Brier, decision.LiveScores.Brier)
		}
	}

	r.audit.LogPromotionDecision(league, version, decision.Previous, decision.Promoted,
		decision.CandidateScores.Brier, decision.LiveScores.Brier, decision.Reason)
	if !decision.Promoted {
		PromotionsTotal.WithLabelValues(league, "rejected").Inc()
		return decision, r.setStatus(ctx, candidate, models.ArtifactRejected)
	}

	if err := r.activate(ctx, league, candidate, current); err != nil {
		return nil, err
	}
	PromotionsTotal.WithLabelValues(league, "promoted").Inc()
	return decision, nil
}

// Rollback restores the most recently retired artifact of league.
func (r *Registry) Rollback(ctx context.Context, league string) (string, error) {
	r.writes.Lock()
	defer r.writes.Unlock()

	records, err := r.store.Records(ctx, league)
	if err != nil {
		return "", err
	}
	var target *models.ArtifactRecord
	for _, rec := range records {
		if rec.Status != models.ArtifactRetired || rec.RetiredAt == nil {
			continue
		}
		if target == nil || rec.RetiredAt.After(*target.RetiredAt) {
			target = rec
		}
	}
	if target == nil {
		return "", fmt.Errorf("rollback %s: no retired artifact: %w", league, models.ErrNotFound)
	}

	a, err := r.store.Load(ctx, league, target.Version)
	if err != nil {
		return "", err
	}
	current, err := r.Live(ctx, league)
	if err != nil {
		current = nil
	}
	if err := r.activate(ctx, league, a, current); err != nil {
		return "", err
	}
	from := ""
	if current != nil {
		from = current.Version()
	}
	r.audit.LogRollback(league, from, a.Version)
	return a.Version, nil
}

// Versions returns every registered artifact of league, oldest first.
func (r *Registry) Versions(ctx context.Context, league string) ([]*models.ArtifactRecord, error) {
	return r.store.Records(ctx, league)
}

// Close drops every cached model, running deactivation hooks.
func (r *Registry) Close() {
	r.cache.Purge()
}

// activate persists the live pointer, updates statuses and swaps the cached model.
func (r *Registry) activate(ctx context.Context, league string, next *Artifact, previous *LiveModel) error {
	if err := r.store.SetLive(ctx, league, next.Version); err != nil {
		return fmt.Errorf("set live pointer: %w", err)
	}
	if err := r.setStatus(ctx, next, models.ArtifactProduction); err != nil {
		return err
	}
	if previous != nil {
		if err := r.setStatus(ctx, previous.Artifact, models.ArtifactRetired); err != nil {
			return err
		}
	}
	r.install(league, r.newLiveModel(league, next))
	return nil
}

// install publishes m for league with a single pointer swap.
func (r *Registry) install(league string, m *LiveModel) {
	r.swaps.Lock()
	defer r.swaps.Unlock()

	s, ok := r.cache.Get(league)
	if !ok {
		s = &slot{}
		s.live.Store(m)
		r.cache.Add(league, s)
		r.fire(true, m)
		return
	}
	old := s.live.Swap(m)
	if old != nil {
		r.fire(false, old)
	}
	r.fire(true, m)
}

func (r *Registry) newLiveModel(league string, a *Artifact) *LiveModel {
	return &LiveModel{
		League:     league,
		Artifact:   a,
		Calibrator: calibration.NewCalibrator(league, a.Version, r.cfg, a.Calibration, r.log),
	}
}

func (r *Registry) setStatus(ctx context.Context, a *Artifact, status models.ArtifactStatus) error {
	records, err := r.store.Records(ctx, a.Metadata.League)
	if err != nil {
		return err
	}
	var rec *models.ArtifactRecord
	for _, existing := range records {
		if existing.Version == a.Version {
			rec = existing
			break
		}
	}
	if rec == nil {
		if rec, err = a.Record(status, r.now()); err != nil {
			return err
		}
	}
	now := r.now().UTC()
	rec.Status = status
	switch status {
	case models.ArtifactProduction:
		rec.PromotedAt = &now
		rec.RetiredAt = nil
	case models.ArtifactRetired:
		rec.RetiredAt = &now
	}
	return r.putRecord(ctx, rec)
}

func (r *Registry) putRecord(ctx context.Context, rec *models.ArtifactRecord) error {
	if err := r.store.PutRecord(ctx, rec); err != nil {
		return fmt.Errorf("write artifact record: %w", err)
	}
	for _, sink := range r.sinks {
		if err := sink.SaveArtifactRecord(ctx, rec); err != nil {
			r.log.WithError(err).WithField("version", rec.Version).Warn("Failed to mirror artifact record")
		}
	}
	return nil
}

// evaluate scores m's calibrated output on eval.
func evaluate(m *LiveModel, eval *ml.Dataset) (ml.Scores, error) {
	preds := make([]models.Probabilities, eval.Len())
	for i, x := range eval.X {
		raw, _, err := m.Artifact.Ensemble.PredictValues(x)
		if err != nil {
			return ml.Scores{}, err
		}
		preds[i] = m.Calibrator.Apply(raw)
	}
	return ml.Score(preds, eval.Y), nil
}
