package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/models"
)

// Ensemble is the trained bank plus meta-learner for one feature schema.
type Ensemble struct {
	Schema features.Schema `json:"schema"`
	Bank   *ModelBank      `json:"bank"`
	Meta   *MetaLearner    `json:"meta"`
}

// Predict runs the bank and blends its outputs for one feature vector.
func (e *Ensemble) Predict(vec *features.MatchFeatureVector) (models.Probabilities, []models.Level1Prediction, error) {
	if err := e.Schema.Check(vec); err != nil {
		return models.Probabilities{}, nil, err
	}
	return e.PredictValues(vec.Values())
}

// PredictValues is Predict for an already validated row.
func (e *Ensemble) PredictValues(x []float64) (models.Probabilities, []models.Level1Prediction, error) {
	if e.Bank == nil || e.Meta == nil {
		return models.Probabilities{}, nil, ErrNotFitted
	}
	level1, err := e.Bank.Predict(x)
	if err != nil {
		return models.Probabilities{}, nil, err
	}
	probs := make([]models.Probabilities, len(level1))
	for i, l := range level1 {
		probs[i] = l.Probabilities
	}
	blended, err := e.Meta.Blend(probs, x)
	if err != nil {
		return models.Probabilities{}, nil, err
	}
	return blended, level1, nil
}

// TrainerConfig controls a full stacking run.
type TrainerConfig struct {
	Folds        int
	Seed         int64
	MinLearners  int
	Parallelism  int
	Kinds        []Kind
	Params       map[Kind]Params
	IncludeRaw   bool
	MetaL2       float64
	SearchTrials int
	SearchBudget time.Duration
	SearchFolds  int
	NewLearner   LearnerFactory
}

// LearnerReport summarises one surviving learner.
type LearnerReport struct {
	Kind   Kind   `json:"kind"`
	Params Params `json:"params"`
	OOF    Scores `json:"oof"`
}

// TrainingReport is the metadata recorded for a training run.
type TrainingReport struct {
	Samples  int                     `json:"samples"`
	Folds    int                     `json:"folds"`
	Learners []LearnerReport         `json:"learners"`
	Excluded []models.LearnerFailure `json:"excluded,omitempty"`
	Meta     Scores                  `json:"meta"`
	Search   []*SearchResult         `json:"search,omitempty"`
	Duration time.Duration           `json:"duration"`
}

// Trainer runs the offline stacking pipeline.
type Trainer struct {
	cfg    TrainerConfig
	logger *logger.MLLogger
}

// NewTrainer creates a trainer. Missing values fall back to K=5, two learners minimum
// and the default learner composition.
func NewTrainer(cfg TrainerConfig, log *logger.MLLogger) *Trainer {
	if cfg.Folds < 5 {
		cfg.Folds = 5
	}
	if cfg.MinLearners < 2 {
		cfg.MinLearners = 2
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = DefaultKinds
	}
	if cfg.MetaL2 <= 0 {
		cfg.MetaL2 = 1e-3
	}
	if cfg.NewLearner == nil {
		cfg.NewLearner = defaultFactory
	}
	return &Trainer{cfg: cfg, logger: log}
}

// Train fits the bank out-of-fold, estimates the meta-learner's held-out quality on
// the same folds, then fits the meta-learner on the full out-of-fold matrix.
func (t *Trainer) Train(ctx context.Context, league string, schema features.Schema, ds *Dataset) (*Ensemble, *TrainingReport, error) {
	start := time.Now()
	ensemble, report, err := t.train(ctx, league, schema, ds)
	TrainingDuration.Observe(time.Since(start).Seconds())

	var insufficient *models.InsufficientModelsError
	switch {
	case err == nil:
		TrainingRunsTotal.WithLabelValues("success").Inc()
	case errors.As(err, &insufficient):
		TrainingRunsTotal.WithLabelValues("insufficient_models").Inc()
		t.logger.LogTrainingFailed(league, err)
	default:
		TrainingRunsTotal.WithLabelValues("failure").Inc()
		t.logger.LogTrainingFailed(league, err)
	}
	if report != nil {
		report.Duration = time.Since(start)
	}
	return ensemble, report, err
}

func (t *Trainer) train(ctx context.Context, league string, schema features.Schema, ds *Dataset) (*Ensemble, *TrainingReport, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, nil, ErrEmptyDataset
	}
	if ds.Width() != schema.Len() {
		return nil, nil, models.NewSchemaError("features", "dataset has %d columns, schema %s has %d", ds.Width(), schema.Version, schema.Len())
	}

	kindNames := make([]string, len(t.cfg.Kinds))
	for i, k := range t.cfg.Kinds {
		kindNames[i] = string(k)
	}
	t.logger.LogTrainingStarted(league, ds.Len(), ds.Width(), t.cfg.Folds, kindNames)

	report := &TrainingReport{Samples: ds.Len(), Folds: t.cfg.Folds}
	specs := make([]LearnerSpec, 0, len(t.cfg.Kinds))
	for _, kind := range t.cfg.Kinds {
		spec := LearnerSpec{Kind: kind, Params: t.cfg.Params[kind]}
		if t.cfg.SearchTrials > 0 {
			res, err := RandomSearch(ctx, kind, ds, SearchConfig{
				Trials:     t.cfg.SearchTrials,
				Budget:     t.cfg.SearchBudget,
				Folds:      t.cfg.SearchFolds,
				Seed:       t.cfg.Seed,
				NewLearner: t.cfg.NewLearner,
			}, t.logger)
			if err != nil {
				return nil, nil, fmt.Errorf("search %s: %w", kind, err)
			}
			report.Search = append(report.Search, res)
			spec.Params = res.Best
		}
		specs = append(specs, spec)
	}

	oof, err := TrainBank(ctx, ds, BankConfig{
		Folds:       t.cfg.Folds,
		Seed:        t.cfg.Seed,
		MinLearners: t.cfg.MinLearners,
		Parallelism: t.cfg.Parallelism,
		Specs:       specs,
		NewLearner:  t.cfg.NewLearner,
	}, t.logger)
	if err != nil {
		return nil, nil, err
	}
	report.Excluded = oof.Bank.Excluded
	for _, m := range oof.Bank.Members {
		report.Learners = append(report.Learners, LearnerReport{Kind: m.Learner.Kind(), Params: m.Learner.Params(), OOF: m.OOF})
	}

	kinds := oof.Bank.Kinds()
	metaScores, err := t.crossValidateMeta(ctx, kinds, oof, ds)
	if err != nil {
		return nil, nil, fmt.Errorf("meta cross-validation: %w", err)
	}
	report.Meta = metaScores

	meta := NewMetaLearner(kinds, t.cfg.IncludeRaw, t.cfg.MetaL2)
	if err := meta.Fit(ctx, oof.OOF, ds.X, ds.Y); err != nil {
		return nil, nil, fmt.Errorf("meta fit: %w", err)
	}

	return &Ensemble{Schema: schema, Bank: oof.Bank, Meta: meta}, report, nil
}

// crossValidateMeta scores the meta-learner on the bank's folds so the reported
// figure is never an in-sample estimate.
func (t *Trainer) crossValidateMeta(ctx context.Context, kinds []Kind, oof *OOFResult, ds *Dataset) (Scores, error) {
	preds := make([]models.Probabilities, ds.Len())
	for _, fold := range oof.Folds {
		trainOOF := make([][]models.Probabilities, len(oof.OOF))
		for m := range oof.OOF {
			trainOOF[m] = make([]models.Probabilities, len(fold.Train))
			for j, i := range fold.Train {
				trainOOF[m][j] = oof.OOF[m][i]
			}
		}
		sub := ds.Subset(fold.Train)
		meta := NewMetaLearner(kinds, t.cfg.IncludeRaw, t.cfg.MetaL2)
		if err := meta.Fit(ctx, trainOOF, sub.X, sub.Y); err != nil {
			return Scores{}, err
		}
		level1 := make([]models.Probabilities, len(oof.OOF))
		for _, i := range fold.Test {
			for m := range oof.OOF {
				level1[m] = oof.OOF[m][i]
			}
			p, err := meta.Blend(level1, ds.X[i])
			if err != nil {
				return Scores{}, err
			}
			preds[i] = p
		}
	}
	return Score(preds, ds.Y), nil
}
