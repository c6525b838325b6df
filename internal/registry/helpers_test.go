package registry

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/ml"
)

var trainedAt = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

func testCalibrationConfig() config.CalibrationConfig {
	return config.CalibrationConfig{
		RefitIntervalSeconds: 180,
		MinSamples:           20,
		IsotonicMinSamples:   200,
		WindowHours:          24,
		MaxSamples:           2000,
		HoldoutFraction:      0.25,
		GuardrailMargin:      0.002,
	}
}

// dataset builds rows whose first feature separates the classes. With noisy
// set, labels are random and the features carry no signal.
func dataset(t *testing.T, n int, seed int64, noisy bool) *ml.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	width := features.SchemaV1.Len()
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		c := i % 3
		row := make([]float64, width)
		row[0] = float64(c) + rng.NormFloat64()*0.2
		for j := 1; j < width; j++ {
			row[j] = rng.NormFloat64()
		}
		if noisy {
			c = rng.Intn(3)
		}
		x[i], y[i] = row, c
	}
	ds, err := ml.NewDataset(x, y)
	require.NoError(t, err)
	return ds
}

func trainArtifact(t *testing.T, league string, seed int64, noisy bool) *Artifact {
	t.Helper()
	log, _ := test.NewNullLogger()
	trainer := ml.NewTrainer(ml.TrainerConfig{
		Folds: 5,
		Seed:  seed,
		Kinds: []ml.Kind{ml.KindRandomForest, ml.KindExtraTrees},
		Params: map[ml.Kind]ml.Params{
			ml.KindRandomForest: {"n_trees": 8, "max_depth": 3},
			ml.KindExtraTrees:   {"n_trees": 8, "max_depth": 3},
		},
	}, logger.NewMLLogger(log))

	ens, report, err := trainer.Train(context.Background(), league, features.SchemaV1, dataset(t, 90, seed, noisy))
	require.NoError(t, err)
	a, err := NewArtifact(league, ens, report, trainedAt)
	require.NoError(t, err)
	return a
}
