package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/models"
)

// LearnerSpec names a base learner and its hyperparameter overrides.
type LearnerSpec struct {
	Kind   Kind   `json:"kind"`
	Params Params `json:"params,omitempty"`
}

// LearnerFactory builds an unfitted learner for a spec.
type LearnerFactory func(spec LearnerSpec, seed int64) (Learner, error)

func defaultFactory(spec LearnerSpec, seed int64) (Learner, error) {
	return NewLearner(spec.Kind, spec.Params, seed)
}

// BankConfig controls out-of-fold training of the model bank.
type BankConfig struct {
	Folds       int
	Seed        int64
	MinLearners int
	Parallelism int
	Specs       []LearnerSpec
	NewLearner  LearnerFactory
}

// BankMember is a surviving base learner refitted on every training row.
type BankMember struct {
	Learner Learner
	OOF     Scores
}

// ModelBank is the fixed collection of base learners used at serving time.
type ModelBank struct {
	Members  []*BankMember
	Excluded []models.LearnerFailure
}

// OOFResult is the output of TrainBank. OOF[m][i] is member m's held-out
// prediction for row i.
type OOFResult struct {
	Bank  *ModelBank
	OOF   [][]models.Probabilities
	Folds []Fold
}

type learnerOutcome struct {
	member *BankMember
	oof    []models.Probabilities
	err    error
}

// TrainBank fits every spec with K-fold out-of-fold inference and then refits it on
// all rows. Learners that fail are excluded and recorded; fewer than MinLearners
// survivors is an InsufficientModelsError.
func TrainBank(ctx context.Context, ds *Dataset, cfg BankConfig, log *logger.MLLogger) (*OOFResult, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if cfg.Folds < 2 {
		return nil, fmt.Errorf("fold count must be at least 2, got %d", cfg.Folds)
	}
	if cfg.NewLearner == nil {
		cfg.NewLearner = defaultFactory
	}
	folds, err := StratifiedKFold(ds.Y, cfg.Folds, cfg.Seed)
	if err != nil {
		return nil, err
	}

	outcomes := make([]learnerOutcome, len(cfg.Specs))
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Parallelism > 0 {
		g.SetLimit(cfg.Parallelism)
	}
	var mu sync.Mutex
	for li, spec := range cfg.Specs {
		li, spec := li, spec
		g.Go(func() error {
			start := time.Now()
			out := trainOutOfFold(gctx, ds, folds, spec, cfg.Seed+int64(li)*1000, cfg.NewLearner)
			if errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded) {
				return out.err
			}
			mu.Lock()
			outcomes[li] = out
			mu.Unlock()
			if out.err == nil {
				log.LogLearnerOOF(string(spec.Kind), out.member.OOF.LogLoss, out.member.OOF.Brier, time.Since(start))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &OOFResult{Bank: &ModelBank{}, Folds: folds}
	for li, out := range outcomes {
		if out.err != nil {
			failure := models.LearnerFailure{Learner: string(cfg.Specs[li].Kind), Reason: out.err.Error()}
			result.Bank.Excluded = append(result.Bank.Excluded, failure)
			log.LogLearnerExcluded(failure.Learner, failure.Reason)
			LearnerExclusionsTotal.WithLabelValues(failure.Learner).Inc()
			continue
		}
		result.Bank.Members = append(result.Bank.Members, out.member)
		result.OOF = append(result.OOF, out.oof)
		OOFLogLoss.WithLabelValues(string(out.member.Learner.Kind())).Set(out.member.OOF.LogLoss)
	}

	required := cfg.MinLearners
	if required < 2 {
		required = 2
	}
	if len(result.Bank.Members) < required {
		return nil, &models.InsufficientModelsError{
			Survivors: len(result.Bank.Members),
			Required:  required,
			Failures:  result.Bank.Excluded,
		}
	}
	return result, nil
}

func trainOutOfFold(ctx context.Context, ds *Dataset, folds []Fold, spec LearnerSpec, seed int64, factory LearnerFactory) learnerOutcome {
	oof := make([]models.Probabilities, ds.Len())
	for f, fold := range folds {
		learner, err := factory(spec, seed+int64(f))
		if err != nil {
			return learnerOutcome{err: err}
		}
		if err := safeFit(ctx, learner, ds.Subset(fold.Train)); err != nil {
			return learnerOutcome{err: fmt.Errorf("fold %d: %w", f, err)}
		}
		for _, i := range fold.Test {
			p, err := safePredict(learner, ds.X[i])
			if err != nil {
				return learnerOutcome{err: fmt.Errorf("fold %d: %w", f, err)}
			}
			oof[i] = p
		}
	}

	full, err := factory(spec, seed+int64(len(folds)))
	if err != nil {
		return learnerOutcome{err: err}
	}
	if err := safeFit(ctx, full, ds); err != nil {
		return learnerOutcome{err: fmt.Errorf("full refit: %w", err)}
	}
	if _, err := safePredict(full, ds.X[0]); err != nil {
		return learnerOutcome{err: fmt.Errorf("full refit: %w", err)}
	}

	return learnerOutcome{
		member: &BankMember{Learner: full, OOF: Score(oof, ds.Y)},
		oof:    oof,
	}
}

// safeFit turns a panicking learner into a convergence failure.
func safeFit(ctx context.Context, l Learner, ds *Dataset) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic during fit: %v", ErrNotConverged, r)
		}
	}()
	return l.Fit(ctx, ds)
}

func safePredict(l Learner, x []float64) (p models.Probabilities, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic during predict: %v", ErrNotConverged, r)
		}
	}()
	p, err = l.PredictProba(x)
	if err != nil {
		return p, err
	}
	if !finite(p) {
		return p, fmt.Errorf("%w: non-finite probabilities %v", ErrNotConverged, p)
	}
	if math.Abs(p.Sum()-1) > 1e-6 {
		p = p.Normalize()
	}
	return p, nil
}

// Kinds lists the surviving learners in bank order.
func (b *ModelBank) Kinds() []Kind {
	kinds := make([]Kind, len(b.Members))
	for i, m := range b.Members {
		kinds[i] = m.Learner.Kind()
	}
	return kinds
}

// Predict runs every member on x.
func (b *ModelBank) Predict(x []float64) ([]models.Level1Prediction, error) {
	out := make([]models.Level1Prediction, len(b.Members))
	for i, m := range b.Members {
		p, err := safePredict(m.Learner, x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Learner.Kind(), err)
		}
		out[i] = models.Level1Prediction{Learner: string(m.Learner.Kind()), Probabilities: p}
	}
	return out, nil
}

type bankMemberJSON struct {
	Learner json.RawMessage `json:"learner"`
	OOF     Scores          `json:"oof"`
}

type bankJSON struct {
	Members  []bankMemberJSON        `json:"members"`
	Excluded []models.LearnerFailure `json:"excluded,omitempty"`
}

// MarshalJSON encodes members with their kind tags.
func (b *ModelBank) MarshalJSON() ([]byte, error) {
	out := bankJSON{Excluded: b.Excluded}
	for _, m := range b.Members {
		raw, err := MarshalLearner(m.Learner)
		if err != nil {
			return nil, err
		}
		out.Members = append(out.Members, bankMemberJSON{Learner: raw, OOF: m.OOF})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a bank produced by MarshalJSON.
func (b *ModelBank) UnmarshalJSON(data []byte) error {
	var in bankJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	b.Members = b.Members[:0]
	for _, m := range in.Members {
		l, err := UnmarshalLearner(m.Learner)
		if err != nil {
			return err
		}
		b.Members = append(b.Members, &BankMember{Learner: l, OOF: m.OOF})
	}
	b.Excluded = in.Excluded
	return nil
}
