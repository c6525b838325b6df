package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/matchedge/internal/models"
)

// probabilityFloor keeps log-loss finite for confident misses.
const probabilityFloor = 1e-15

// Brier returns the multi-class Brier score: the mean over rows of the squared
// distance between the forecast and the one-hot outcome. Lower is better.
func Brier(pred []models.Probabilities, y []int) float64 {
	if len(pred) == 0 {
		return math.NaN()
	}
	scores := make([]float64, len(pred))
	for i, p := range pred {
		var onehot models.Probabilities
		onehot[y[i]] = 1
		diff := p.Slice()
		floats.Sub(diff, onehot.Slice())
		scores[i] = floats.Dot(diff, diff)
	}
	return stat.Mean(scores, nil)
}

// LogLoss returns the mean negative log-likelihood of the observed classes.
func LogLoss(pred []models.Probabilities, y []int) float64 {
	if len(pred) == 0 {
		return math.NaN()
	}
	losses := make([]float64, len(pred))
	for i, p := range pred {
		losses[i] = -math.Log(math.Max(p[y[i]], probabilityFloor))
	}
	return stat.Mean(losses, nil)
}

// Accuracy returns the share of rows whose most likely class was observed.
func Accuracy(pred []models.Probabilities, y []int) float64 {
	if len(pred) == 0 {
		return math.NaN()
	}
	hits := 0.0
	for i, p := range pred {
		if int(p.ArgMax()) == y[i] {
			hits++
		}
	}
	return hits / float64(len(pred))
}

// Scores bundles the evaluation metrics reported for a model.
type Scores struct {
	LogLoss  float64 `json:"log_loss"`
	Brier    float64 `json:"brier"`
	Accuracy float64 `json:"accuracy"`
	Samples  int     `json:"samples"`
}

// Score computes all metrics at once.
func Score(pred []models.Probabilities, y []int) Scores {
	return Scores{
		LogLoss:  LogLoss(pred, y),
		Brier:    Brier(pred, y),
		Accuracy: Accuracy(pred, y),
		Samples:  len(pred),
	}
}

// finite reports whether p is a usable distribution.
func finite(p models.Probabilities) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return p.Sum() > 0
}

func softmax(logits []float64) models.Probabilities {
	var out models.Probabilities
	maxLogit := floats.Max(logits)
	total := 0.0
	for i, z := range logits {
		out[i] = math.Exp(z - maxLogit)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}
