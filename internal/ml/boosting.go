package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/yourusername/matchedge/internal/models"
)

const (
	minHessian   = 1e-6
	maxLeafDelta = 4.0
)

// Booster is a softmax gradient-boosted tree ensemble with one regression tree per
// class per round. KindGradientBoosting fits every round on all rows and columns;
// KindStochasticBoosting subsamples rows and columns per round and regularises
// leaves more heavily.
type Booster struct {
	Variant      Kind                        `json:"kind"`
	Settings     Params                      `json:"params"`
	Seed         int64                       `json:"seed"`
	Base         [models.NumOutcomes]float64 `json:"base"`
	LearningRate float64                     `json:"learning_rate"`
	Rounds       [][models.NumOutcomes]*Tree `json:"rounds"`
}

func newBooster(kind Kind, params Params, seed int64) *Booster {
	return &Booster{Variant: kind, Settings: params, Seed: seed}
}

// Kind implements Learner.
func (b *Booster) Kind() Kind { return b.Variant }

// Params implements Learner.
func (b *Booster) Params() Params { return b.Settings.Clone() }

// Fit implements Learner.
func (b *Booster) Fit(ctx context.Context, ds *Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return ErrEmptyDataset
	}
	rng := rand.New(rand.NewSource(b.Seed))
	n, d := ds.Len(), ds.Width()

	rounds := b.Settings.intValue("rounds")
	if rounds <= 0 {
		return fmt.Errorf("%s: rounds must be positive", b.Variant)
	}
	b.LearningRate = b.Settings["learning_rate"]
	if b.LearningRate <= 0 {
		return fmt.Errorf("%s: learning_rate must be positive", b.Variant)
	}
	cfg := gradientConfig{
		maxDepth:       b.Settings.intValue("max_depth"),
		minLeaf:        b.Settings.intValue("min_leaf"),
		minChildWeight: b.Settings["min_child_weight"],
		lambda:         b.Settings["lambda"],
		maxDelta:       maxLeafDelta,
	}
	subsample, colsample := 1.0, 1.0
	if b.Variant == KindStochasticBoosting {
		subsample = clampFraction(b.Settings["subsample"])
		colsample = clampFraction(b.Settings["colsample"])
	}

	counts := ds.ClassCounts()
	for k := range b.Base {
		b.Base[k] = math.Log((float64(counts[k]) + 1) / (float64(n) + models.NumOutcomes))
	}

	scores := make([][models.NumOutcomes]float64, n)
	for i := range scores {
		scores[i] = b.Base
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	probs := make([]models.Probabilities, n)

	b.Rounds = make([][models.NumOutcomes]*Tree, 0, rounds)
	for r := 0; r < rounds; r++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range scores {
			probs[i] = softmax(scores[i][:])
		}

		rows := sampleRows(rng, n, subsample)
		cols := sampleFeatures(rng, d, int(math.Max(1, math.Round(colsample*float64(d)))))

		var round [models.NumOutcomes]*Tree
		for k := 0; k < models.NumOutcomes; k++ {
			for i := 0; i < n; i++ {
				target := 0.0
				if ds.Y[i] == k {
					target = 1
				}
				p := probs[i][k]
				grad[i] = p - target
				hess[i] = math.Max(p*(1-p), minHessian)
			}
			tree := growGradient(ds.X, grad, hess, rows, cols, cfg)
			for i := 0; i < n; i++ {
				scores[i][k] += b.LearningRate * tree.Leaf(ds.X[i])[0]
			}
			round[k] = tree
		}
		b.Rounds = append(b.Rounds, round)
	}
	return nil
}

// PredictProba implements Learner.
func (b *Booster) PredictProba(x []float64) (models.Probabilities, error) {
	if len(b.Rounds) == 0 {
		return models.Probabilities{}, ErrNotFitted
	}
	score := b.Base
	for _, round := range b.Rounds {
		for k, t := range round {
			score[k] += b.LearningRate * t.Leaf(x)[0]
		}
	}
	return softmax(score[:]), nil
}

func sampleRows(rng *rand.Rand, n int, fraction float64) []int {
	if fraction >= 1 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	m := int(math.Max(2, math.Round(fraction*float64(n))))
	if m > n {
		m = n
	}
	return rng.Perm(n)[:m]
}

func clampFraction(v float64) float64 {
	if v <= 0 || v > 1 {
		return 1
	}
	return v
}
