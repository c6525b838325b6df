package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/metrics"
	"github.com/yourusername/matchedge/internal/ml"
	"github.com/yourusername/matchedge/internal/models"
	"github.com/yourusername/matchedge/internal/registry"
	"github.com/yourusername/matchedge/internal/tracing"
)

// MatchSource provides settled historical matches.
type MatchSource interface {
	ListByLeague(ctx context.Context, league string, start, end time.Time) ([]*models.HistoricalMatch, error)
	Leagues(ctx context.Context) ([]string, error)
}

// TrainResult summarises one training run.
type TrainResult struct {
	League      string                      `json:"league"`
	Version     string                      `json:"version,omitempty"`
	TrainRows   int                         `json:"train_rows"`
	HoldoutRows int                         `json:"holdout_rows"`
	Skipped     int                         `json:"skipped"`
	Unchanged   bool                        `json:"unchanged"`
	Report      *ml.TrainingReport          `json:"report,omitempty"`
	Decision    *registry.PromotionDecision `json:"decision,omitempty"`
	Artifact    *registry.Artifact          `json:"-"`
}

// TrainingService runs the offline stacking job and hands the result to the
// registry for promotion.
type TrainingService struct {
	trainer    *ml.Trainer
	builder    *features.Builder
	registry   *registry.Registry
	matches    MatchSource
	model      config.ModelConfig
	retraining config.RetrainingConfig
	logger     *logrus.Logger
	now        func() time.Time
}

// TrainerConfig maps model configuration onto the trainer.
func TrainerConfig(cfg config.ModelConfig) (ml.TrainerConfig, error) {
	kinds := make([]ml.Kind, 0, len(cfg.Learners))
	for _, name := range cfg.Learners {
		kind, err := ml.ParseKind(name)
		if err != nil {
			return ml.TrainerConfig{}, err
		}
		kinds = append(kinds, kind)
	}
	return ml.TrainerConfig{
		Folds:        cfg.OOFFolds,
		Seed:         cfg.Seed,
		MinLearners:  cfg.MinLearners,
		Parallelism:  cfg.Parallelism,
		Kinds:        kinds,
		IncludeRaw:   cfg.IncludeRawFeatures,
		SearchTrials: cfg.SearchTrials,
		SearchBudget: cfg.SearchBudget(),
	}, nil
}

// NewTrainingService creates the training job. matches may be nil when runs
// are only driven through Train.
func NewTrainingService(reg *registry.Registry, builder *features.Builder, cfg *config.Config, matches MatchSource, log *logrus.Logger) (*TrainingService, error) {
	trainerCfg, err := TrainerConfig(cfg.Model)
	if err != nil {
		return nil, err
	}
	return &TrainingService{
		trainer:    ml.NewTrainer(trainerCfg, logger.NewMLLogger(log)),
		builder:    builder,
		registry:   reg,
		matches:    matches,
		model:      cfg.Model,
		retraining: cfg.Retraining,
		logger:     log,
		now:        time.Now,
	}, nil
}

// BuildDataset converts matches into a design matrix in the given order.
// Matches with malformed context are skipped and counted.
func (t *TrainingService) BuildDataset(matches []*models.HistoricalMatch) (*ml.Dataset, int, error) {
	x := make([][]float64, 0, len(matches))
	y := make([]int, 0, len(matches))
	skipped := 0
	for _, m := range matches {
		if m == nil || !m.Result.Valid() {
			skipped++
			continue
		}
		ctx := m.Context
		vec, err := t.builder.Build(&ctx)
		if err != nil {
			var schemaErr *models.SchemaError
			if !errors.As(err, &schemaErr) {
				return nil, skipped, err
			}
			skipped++
			t.logger.WithError(err).WithField("match_id", ctx.MatchID).Debug("Skipping malformed training match")
			continue
		}
		x = append(x, vec.Values())
		y = append(y, int(m.Result))
	}
	if len(x) == 0 {
		return nil, skipped, ml.ErrEmptyDataset
	}
	ds, err := ml.NewDataset(x, y)
	return ds, skipped, err
}

// Train fits a new ensemble on the older part of matches, registers it and
// asks the registry to promote it using the most recent holdout slice.
func (t *TrainingService) Train(ctx context.Context, league string, matches []*models.HistoricalMatch) (_ *TrainResult, err error) {
	ctx, seg := tracing.StartSegment(ctx, "train")
	seg.Annotate("league", league)
	defer func() { seg.End(err) }()

	ordered := append([]*models.HistoricalMatch(nil), matches...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Context.KickoffAt.Before(ordered[j].Context.KickoffAt)
	})

	ds, skipped, err := t.BuildDataset(ordered)
	if err != nil {
		return nil, fmt.Errorf("build dataset for %s: %w", league, err)
	}
	train, eval := splitHoldout(ds, t.model.HoldoutFraction)
	result := &TrainResult{League: league, TrainRows: train.Len(), Skipped: skipped}
	if eval != nil {
		result.HoldoutRows = eval.Len()
	}

	ens, report, err := t.trainer.Train(ctx, league, t.builder.Schema(), train)
	if err != nil {
		return result, err
	}
	result.Report = report

	artifact, err := registry.NewArtifact(league, ens, report, t.now())
	if err != nil {
		return result, err
	}
	result.Artifact = artifact
	result.Version = artifact.Version
	seg.Annotate("version", artifact.Version)

	if _, err := t.registry.Register(ctx, artifact); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			result.Unchanged = true
			t.logger.WithFields(logrus.Fields{"league": league, "version": artifact.Version}).Info("Trained artifact already registered")
			return result, nil
		}
		return result, err
	}

	// Scoring on training rows would favour the candidate, so without a
	// holdout only a league's first artifact can go live.
	if eval == nil {
		if _, liveErr := t.registry.Live(ctx, league); liveErr == nil {
			result.Decision = &registry.PromotionDecision{
				League:    league,
				Candidate: artifact.Version,
				Reason:    "no holdout rows to compare against the live artifact",
			}
			t.logger.WithFields(logrus.Fields{"league": league, "version": artifact.Version}).Warn("Promotion skipped without holdout")
			return result, nil
		}
	}

	decision, err := t.registry.Promote(ctx, league, artifact.Version, eval)
	if err != nil {
		return result, err
	}
	result.Decision = decision
	return result, nil
}

// splitHoldout keeps the last fraction of rows for evaluation. Without a
// usable holdout all rows train and eval is nil.
func splitHoldout(ds *ml.Dataset, fraction float64) (*ml.Dataset, *ml.Dataset) {
	n := ds.Len()
	h := int(math.Round(float64(n) * fraction))
	if fraction <= 0 || h < 1 || n-h < 1 {
		return ds, nil
	}
	trainIdx := make([]int, n-h)
	for i := range trainIdx {
		trainIdx[i] = i
	}
	evalIdx := make([]int, h)
	for i := range evalIdx {
		evalIdx[i] = n - h + i
	}
	return ds.Subset(trainIdx), ds.Subset(evalIdx)
}

// Retrain runs Train for every configured league (or every league with
// history) over the lookback window. It keeps going when one league fails
// and returns the joined errors.
func (t *TrainingService) Retrain(ctx context.Context) ([]*TrainResult, error) {
	if t.matches == nil {
		return nil, errors.New("no match source configured")
	}

	leagues := t.retraining.Leagues
	if len(leagues) == 0 {
		var err error
		if leagues, err = t.matches.Leagues(ctx); err != nil {
			return nil, err
		}
	}

	end := t.now().UTC()
	start := end.Add(-t.retraining.Lookback())
	if t.retraining.LookbackDays == 0 {
		start = time.Time{}
	}

	var results []*TrainResult
	var errs []error
	for _, league := range leagues {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		matches, err := t.matches.ListByLeague(ctx, league, start, end)
		if err != nil {
			metrics.RecordRetrainingRun(league, "failed")
			errs = append(errs, fmt.Errorf("%s: %w", league, err))
			continue
		}

		res, err := t.Train(ctx, league, matches)
		switch {
		case err != nil:
			metrics.RecordRetrainingRun(league, "failed")
			errs = append(errs, fmt.Errorf("%s: %w", league, err))
			t.logger.WithError(err).WithField("league", league).Error("Retraining failed")
			continue
		case res.Unchanged:
			metrics.RecordRetrainingRun(league, "unchanged")
		case res.Decision != nil && res.Decision.Promoted:
			metrics.RecordRetrainingRun(league, "promoted")
		default:
			metrics.RecordRetrainingRun(league, "rejected")
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
