package ml

import (
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/logger"
)

// syntheticDataset returns rows whose first column separates the three classes
// and whose remaining columns are noise.
func syntheticDataset(t *testing.T, n, width int, seed int64) *Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		c := i % 3
		row := make([]float64, width)
		row[0] = float64(c) + rng.NormFloat64()*0.15
		for j := 1; j < width; j++ {
			row[j] = rng.NormFloat64()
		}
		x[i] = row
		y[i] = c
	}
	ds, err := NewDataset(x, y)
	require.NoError(t, err)
	return ds
}

func testMLLogger() *logger.MLLogger {
	base, _ := test.NewNullLogger()
	return logger.NewMLLogger(base)
}

// smallParams keeps learners fast enough for unit tests.
var smallParams = map[Kind]Params{
	KindRandomForest:       {"n_trees": 15, "max_depth": 4},
	KindExtraTrees:         {"n_trees": 15, "max_depth": 4},
	KindGradientBoosting:   {"rounds": 20, "max_depth": 2},
	KindStochasticBoosting: {"rounds": 20, "max_depth": 2, "learning_rate": 0.1},
}
