package ml

import (
	"fmt"
	"math/rand"

	"github.com/yourusername/matchedge/internal/models"
)

// Dataset is a dense design matrix with 3-class labels.
type Dataset struct {
	X [][]float64
	Y []int
}

// NewDataset validates shapes and labels.
func NewDataset(x [][]float64, y []int) (*Dataset, error) {
	if len(x) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrDimensionMismatch, len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return nil, fmt.Errorf("%w: rows have no features", ErrDimensionMismatch)
	}
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, expected %d", ErrDimensionMismatch, i, len(row), width)
		}
		if y[i] < 0 || y[i] >= models.NumOutcomes {
			return nil, fmt.Errorf("%w: row %d label %d", ErrInvalidLabel, i, y[i])
		}
	}
	return &Dataset{X: x, Y: y}, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Y) }

// Width returns the number of features.
func (d *Dataset) Width() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// Subset returns the rows at idx. Rows are shared, not copied.
func (d *Dataset) Subset(idx []int) *Dataset {
	x := make([][]float64, len(idx))
	y := make([]int, len(idx))
	for i, j := range idx {
		x[i] = d.X[j]
		y[i] = d.Y[j]
	}
	return &Dataset{X: x, Y: y}
}

// ClassCounts returns the number of rows per class.
func (d *Dataset) ClassCounts() [models.NumOutcomes]int {
	var counts [models.NumOutcomes]int
	for _, c := range d.Y {
		counts[c]++
	}
	return counts
}

// Fold is one train/held-out split.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold assigns each row to exactly one held-out fold, keeping class
// proportions roughly equal across folds. The split is deterministic for a seed.
func StratifiedKFold(y []int, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("fold count must be at least 2, got %d", k)
	}
	if len(y) < k {
		return nil, fmt.Errorf("%w: %d rows for %d folds", ErrTooFewSamples, len(y), k)
	}

	rng := rand.New(rand.NewSource(seed))
	byClass := make([][]int, models.NumOutcomes)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}

	assignment := make([]int, len(y))
	next := 0
	for _, rows := range byClass {
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		for _, r := range rows {
			assignment[r] = next % k
			next++
		}
	}

	folds := make([]Fold, k)
	for i, f := range assignment {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	for j, f := range folds {
		if len(f.Test) == 0 || len(f.Train) == 0 {
			return nil, fmt.Errorf("%w: fold %d is empty", ErrTooFewSamples, j)
		}
	}
	return folds, nil
}
