package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/yourusername/matchedge/internal/models"
)

// forestSmoothing mixes a little uniform mass into averaged leaf frequencies so
// that no class is ever assigned exactly zero.
const forestSmoothing = 1e-3

// Forest is a bagged ensemble of gini trees. As KindRandomForest it bootstraps rows
// and searches thresholds; as KindExtraTrees it uses every row and random thresholds.
type Forest struct {
	Variant  Kind    `json:"kind"`
	Settings Params  `json:"params"`
	Seed     int64   `json:"seed"`
	Trees    []*Tree `json:"trees"`
}

func newForest(kind Kind, params Params, seed int64) *Forest {
	return &Forest{Variant: kind, Settings: params, Seed: seed}
}

// Kind implements Learner.
func (f *Forest) Kind() Kind { return f.Variant }

// Params implements Learner.
func (f *Forest) Params() Params { return f.Settings.Clone() }

// Fit implements Learner.
func (f *Forest) Fit(ctx context.Context, ds *Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return ErrEmptyDataset
	}
	rng := rand.New(rand.NewSource(f.Seed))
	n, d := ds.Len(), ds.Width()

	maxFeatures := f.Settings.intValue("max_features")
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Round(math.Sqrt(float64(d)))))
	}
	cfg := classifierConfig{
		maxDepth:     f.Settings.intValue("max_depth"),
		minLeaf:      f.Settings.intValue("min_leaf"),
		maxFeatures:  maxFeatures,
		randomSplits: f.Variant == KindExtraTrees,
	}
	count := f.Settings.intValue("n_trees")
	if count <= 0 {
		return fmt.Errorf("%s: n_trees must be positive", f.Variant)
	}

	f.Trees = make([]*Tree, 0, count)
	for t := 0; t < count; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx := make([]int, n)
		if f.Variant == KindExtraTrees {
			for i := range idx {
				idx[i] = i
			}
		} else {
			for i := range idx {
				idx[i] = rng.Intn(n)
			}
		}
		f.Trees = append(f.Trees, growClassifier(ds.X, ds.Y, idx, cfg, rng))
	}
	return nil
}

// PredictProba implements Learner.
func (f *Forest) PredictProba(x []float64) (models.Probabilities, error) {
	if len(f.Trees) == 0 {
		return models.Probabilities{}, ErrNotFitted
	}
	var p models.Probabilities
	for _, t := range f.Trees {
		leaf := t.Leaf(x)
		for k := range p {
			p[k] += leaf[k]
		}
	}
	n := float64(len(f.Trees))
	for k := range p {
		p[k] = (p[k]/n + forestSmoothing) / (1 + models.NumOutcomes*forestSmoothing)
	}
	return p, nil
}
