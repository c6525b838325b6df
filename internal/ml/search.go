package ml

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/models"
)

// SearchConfig bounds a hyperparameter search by trial count and wall time.
type SearchConfig struct {
	Trials     int
	Budget     time.Duration
	Folds      int
	Seed       int64
	NewLearner LearnerFactory
}

// SearchResult is the best configuration found for one learner kind.
type SearchResult struct {
	Kind      Kind    `json:"kind"`
	Best      Params  `json:"best"`
	BestScore float64 `json:"best_score"`
	Trials    int     `json:"trials"`
}

// RandomSearch samples hyperparameters for kind and keeps the set with the lowest
// cross-validated log-loss. The first trial always evaluates the defaults.
func RandomSearch(ctx context.Context, kind Kind, ds *Dataset, cfg SearchConfig, log *logger.MLLogger) (*SearchResult, error) {
	defaults, err := DefaultParams(kind)
	if err != nil {
		return nil, err
	}
	if cfg.Folds < 2 {
		cfg.Folds = 3
	}
	if cfg.NewLearner == nil {
		cfg.NewLearner = defaultFactory
	}
	folds, err := StratifiedKFold(ds.Y, cfg.Folds, cfg.Seed)
	if err != nil {
		return nil, err
	}

	var deadline time.Time
	if cfg.Budget > 0 {
		deadline = time.Now().Add(cfg.Budget)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	space := searchSpace(kind)

	result := &SearchResult{Kind: kind, Best: defaults, BestScore: math.Inf(1)}
	for trial := 0; trial < cfg.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		params := defaults
		if trial > 0 {
			params = defaults.Merge(sampleParams(rng, space))
		}
		score := crossValidate(ctx, ds, folds, LearnerSpec{Kind: kind, Params: params}, cfg.Seed+int64(trial), cfg.NewLearner)
		result.Trials++
		SearchTrialsTotal.WithLabelValues(string(kind)).Inc()
		log.LogSearchTrial(string(kind), trial, score, params)

		if score < result.BestScore {
			result.Best, result.BestScore = params, score
		}
	}
	if result.Trials > 0 {
		log.LogSearchCompleted(string(kind), result.Trials, result.BestScore, result.Best)
	}
	return result, nil
}

// crossValidate returns the mean held-out log-loss, or +Inf when the learner fails.
func crossValidate(ctx context.Context, ds *Dataset, folds []Fold, spec LearnerSpec, seed int64, factory LearnerFactory) float64 {
	preds := make([]models.Probabilities, 0, ds.Len())
	labels := make([]int, 0, ds.Len())
	for f, fold := range folds {
		learner, err := factory(spec, seed+int64(f))
		if err != nil {
			return math.Inf(1)
		}
		if err := safeFit(ctx, learner, ds.Subset(fold.Train)); err != nil {
			return math.Inf(1)
		}
		for _, i := range fold.Test {
			p, err := safePredict(learner, ds.X[i])
			if err != nil {
				return math.Inf(1)
			}
			preds = append(preds, p)
			labels = append(labels, ds.Y[i])
		}
	}
	return LogLoss(preds, labels)
}

func sampleParams(rng *rand.Rand, space map[string]paramRange) Params {
	out := make(Params, len(space))
	// Iterate in sorted order so a seed always yields the same draw.
	for _, name := range sortedRangeKeys(space) {
		r := space[name]
		var v float64
		if r.log {
			v = math.Exp(math.Log(r.low) + rng.Float64()*(math.Log(r.high)-math.Log(r.low)))
		} else {
			v = r.low + rng.Float64()*(r.high-r.low)
		}
		if r.integer {
			v = math.Round(v)
		}
		out[name] = v
	}
	return out
}

func sortedRangeKeys(space map[string]paramRange) []string {
	p := make(Params, len(space))
	for k := range space {
		p[k] = 0
	}
	return sortedKeys(p)
}
