package ml

import (
	"context"
	"fmt"
	"math"

	"github.com/yourusername/matchedge/internal/models"
)

// metaFloor bounds log-probability inputs of the meta-learner.
const metaFloor = 1e-6

// MetaLearner blends base-learner distributions with a multinomial logistic model
// over their log-probabilities, optionally alongside the raw features.
type MetaLearner struct {
	Learners   []Kind              `json:"learners"`
	IncludeRaw bool                `json:"include_raw"`
	Model      *LogisticRegression `json:"model"`
}

// NewMetaLearner creates an unfitted meta-learner over the given bank members.
func NewMetaLearner(learners []Kind, includeRaw bool, l2 float64) *MetaLearner {
	return &MetaLearner{
		Learners:   append([]Kind(nil), learners...),
		IncludeRaw: includeRaw,
		Model:      NewLogisticRegression(models.NumOutcomes, l2),
	}
}

// Fit trains on the stacked out-of-fold matrix. oof[m][i] is member m's prediction
// for row i; raw is only read when IncludeRaw is set.
func (m *MetaLearner) Fit(ctx context.Context, oof [][]models.Probabilities, raw [][]float64, y []int) error {
	if len(oof) != len(m.Learners) {
		return fmt.Errorf("%w: %d prediction columns for %d learners", ErrDimensionMismatch, len(oof), len(m.Learners))
	}
	rows := make([][]float64, len(y))
	level1 := make([]models.Probabilities, len(m.Learners))
	for i := range y {
		for l := range oof {
			level1[l] = oof[l][i]
		}
		var r []float64
		if m.IncludeRaw {
			r = raw[i]
		}
		rows[i] = m.row(level1, r)
	}
	return m.Model.Fit(ctx, rows, y)
}

// Blend combines one match's level-1 predictions into a single distribution.
func (m *MetaLearner) Blend(level1 []models.Probabilities, raw []float64) (models.Probabilities, error) {
	if len(level1) != len(m.Learners) {
		return models.Probabilities{}, fmt.Errorf("%w: %d level-1 predictions for %d learners", ErrDimensionMismatch, len(level1), len(m.Learners))
	}
	p, err := m.Model.Predict(m.row(level1, raw))
	if err != nil {
		return models.Probabilities{}, err
	}
	out := models.Probabilities{p[0], p[1], p[2]}
	if !finite(out) {
		return models.Probabilities{}, fmt.Errorf("%w: meta output %v", ErrNotConverged, out)
	}
	return out.Normalize(), nil
}

func (m *MetaLearner) row(level1 []models.Probabilities, raw []float64) []float64 {
	width := len(level1) * models.NumOutcomes
	if m.IncludeRaw {
		width += len(raw)
	}
	row := make([]float64, 0, width)
	for _, p := range level1 {
		for _, v := range p {
			row = append(row, math.Log(math.Max(v, metaFloor)))
		}
	}
	if m.IncludeRaw {
		row = append(row, raw...)
	}
	return row
}
