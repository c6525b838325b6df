package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/matchedge/internal/models"
)

// Kind tags a base learner variant.
type Kind string

const (
	KindRandomForest       Kind = "random_forest"
	KindGradientBoosting   Kind = "gradient_boosting"
	KindStochasticBoosting Kind = "stochastic_boosting"
	KindExtraTrees         Kind = "extra_trees"
)

// DefaultKinds is the standard composition of the model bank.
var DefaultKinds = []Kind{KindRandomForest, KindGradientBoosting, KindStochasticBoosting, KindExtraTrees}

// Params are numeric hyperparameters keyed by name.
type Params map[string]float64

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns base overlaid with override.
func (p Params) Merge(override Params) Params {
	out := p.Clone()
	for k, v := range override {
		out[k] = v
	}
	return out
}

func (p Params) intValue(name string) int {
	return int(math.Round(p[name]))
}

// Learner is the capability shared by every base learner in the bank.
type Learner interface {
	Kind() Kind
	Params() Params
	Fit(ctx context.Context, ds *Dataset) error
	PredictProba(x []float64) (models.Probabilities, error)
}

// DefaultParams returns the untuned hyperparameters of a learner kind.
func DefaultParams(kind Kind) (Params, error) {
	switch kind {
	case KindRandomForest:
		return Params{"n_trees": 100, "max_depth": 8, "min_leaf": 5, "max_features": 0}, nil
	case KindExtraTrees:
		return Params{"n_trees": 150, "max_depth": 10, "min_leaf": 3, "max_features": 0}, nil
	case KindGradientBoosting:
		return Params{"rounds": 100, "learning_rate": 0.1, "max_depth": 3, "min_leaf": 5, "lambda": 0.1}, nil
	case KindStochasticBoosting:
		return Params{
			"rounds": 150, "learning_rate": 0.05, "max_depth": 4, "min_leaf": 3, "lambda": 1.0,
			"min_child_weight": 1.0, "subsample": 0.8, "colsample": 0.8,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownLearner, kind)
}

// NewLearner builds an unfitted learner of the given kind. Params missing from
// override take their default values.
func NewLearner(kind Kind, override Params, seed int64) (Learner, error) {
	defaults, err := DefaultParams(kind)
	if err != nil {
		return nil, err
	}
	params := defaults.Merge(override)
	switch kind {
	case KindRandomForest, KindExtraTrees:
		return newForest(kind, params, seed), nil
	case KindGradientBoosting, KindStochasticBoosting:
		return newBooster(kind, params, seed), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownLearner, kind)
}

// ParseKind validates a learner name.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if _, err := DefaultParams(k); err != nil {
		return "", err
	}
	return k, nil
}

// paramRange is a search interval; integer ranges are rounded.
type paramRange struct {
	low, high float64
	integer   bool
	log       bool
}

// searchSpace returns the hyperparameter ranges explored for a kind.
func searchSpace(kind Kind) map[string]paramRange {
	switch kind {
	case KindRandomForest:
		return map[string]paramRange{
			"n_trees":   {low: 50, high: 300, integer: true},
			"max_depth": {low: 4, high: 14, integer: true},
			"min_leaf":  {low: 1, high: 20, integer: true},
		}
	case KindExtraTrees:
		return map[string]paramRange{
			"n_trees":   {low: 80, high: 400, integer: true},
			"max_depth": {low: 4, high: 16, integer: true},
			"min_leaf":  {low: 1, high: 15, integer: true},
		}
	case KindGradientBoosting:
		return map[string]paramRange{
			"rounds":        {low: 40, high: 250, integer: true},
			"learning_rate": {low: 0.02, high: 0.3, log: true},
			"max_depth":     {low: 2, high: 5, integer: true},
			"lambda":        {low: 0.01, high: 5, log: true},
		}
	case KindStochasticBoosting:
		return map[string]paramRange{
			"rounds":           {low: 60, high: 300, integer: true},
			"learning_rate":    {low: 0.01, high: 0.2, log: true},
			"max_depth":        {low: 2, high: 6, integer: true},
			"subsample":        {low: 0.5, high: 1.0},
			"colsample":        {low: 0.4, high: 1.0},
			"lambda":           {low: 0.1, high: 10, log: true},
			"min_child_weight": {low: 0.5, high: 5, log: true},
		}
	}
	return nil
}

type learnerEnvelope struct {
	Kind  Kind            `json:"kind"`
	Model json.RawMessage `json:"model"`
}

// MarshalLearner encodes a fitted learner together with its kind tag.
func MarshalLearner(l Learner) ([]byte, error) {
	model, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", l.Kind(), err)
	}
	return json.Marshal(learnerEnvelope{Kind: l.Kind(), Model: model})
}

// UnmarshalLearner decodes a learner produced by MarshalLearner.
func UnmarshalLearner(data []byte) (Learner, error) {
	var env learnerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode learner envelope: %w", err)
	}

	var l Learner
	switch env.Kind {
	case KindRandomForest, KindExtraTrees:
		l = &Forest{}
	case KindGradientBoosting, KindStochasticBoosting:
		l = &Booster{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownLearner, env.Kind)
	}
	if err := json.Unmarshal(env.Model, l); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	return l, nil
}

// sortedKeys keeps log output and hashing stable.
func sortedKeys(p Params) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
