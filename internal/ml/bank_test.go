package ml

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/models"
)

// failingLearner always refuses to converge.
type failingLearner struct {
	kind  Kind
	panic bool
}

func (f *failingLearner) Kind() Kind     { return f.kind }
func (f *failingLearner) Params() Params { return Params{} }
func (f *failingLearner) Fit(ctx context.Context, ds *Dataset) error {
	if f.panic {
		panic("singular matrix")
	}
	return errors.New("did not converge")
}
func (f *failingLearner) PredictProba(x []float64) (models.Probabilities, error) {
	return models.Probabilities{}, ErrNotFitted
}

// failingFactory builds real learners except for the kinds listed in fail.
func failingFactory(fail ...Kind) LearnerFactory {
	return func(spec LearnerSpec, seed int64) (Learner, error) {
		for i, k := range fail {
			if spec.Kind == k {
				return &failingLearner{kind: k, panic: i%2 == 1}, nil
			}
		}
		return NewLearner(spec.Kind, spec.Params, seed)
	}
}

func smallSpecs(kinds ...Kind) []LearnerSpec {
	specs := make([]LearnerSpec, len(kinds))
	for i, k := range kinds {
		specs[i] = LearnerSpec{Kind: k, Params: smallParams[k]}
	}
	return specs
}

func TestTrainBankProducesOutOfFoldPredictions(t *testing.T) {
	ds := syntheticDataset(t, 100, 3, 4)

	result, err := TrainBank(context.Background(), ds, BankConfig{
		Folds:       5,
		Seed:        1,
		MinLearners: 2,
		Parallelism: 2,
		Specs:       smallSpecs(KindRandomForest, KindGradientBoosting),
	}, testMLLogger())
	require.NoError(t, err)

	require.Len(t, result.Bank.Members, 2)
	require.Len(t, result.OOF, 2)
	assert.Len(t, result.Folds, 5)
	assert.Empty(t, result.Bank.Excluded)
	assert.Equal(t, []Kind{KindRandomForest, KindGradientBoosting}, result.Bank.Kinds())

	for m, preds := range result.OOF {
		require.Len(t, preds, ds.Len())
		for i, p := range preds {
			assert.True(t, p.Valid(models.DefaultProbabilityTolerance), "member %d row %d: %v", m, i, p)
		}
		assert.Equal(t, ds.Len(), result.Bank.Members[m].OOF.Samples)
	}

	level1, err := result.Bank.Predict(ds.X[0])
	require.NoError(t, err)
	require.Len(t, level1, 2)
	assert.Equal(t, "random_forest", level1[0].Learner)
}

func TestTrainBankExcludesFailedLearners(t *testing.T) {
	ds := syntheticDataset(t, 90, 3, 4)

	result, err := TrainBank(context.Background(), ds, BankConfig{
		Folds:       5,
		Seed:        1,
		MinLearners: 2,
		Specs:       smallSpecs(KindRandomForest, KindGradientBoosting, KindExtraTrees),
		NewLearner:  failingFactory(KindGradientBoosting),
	}, testMLLogger())
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindRandomForest, KindExtraTrees}, result.Bank.Kinds())
	require.Len(t, result.Bank.Excluded, 1)
	assert.Equal(t, "gradient_boosting", result.Bank.Excluded[0].Learner)
	assert.Contains(t, result.Bank.Excluded[0].Reason, "did not converge")
}

func TestTrainBankInsufficientModels(t *testing.T) {
	ds := syntheticDataset(t, 60, 3, 4)

	_, err := TrainBank(context.Background(), ds, BankConfig{
		Folds:       5,
		Seed:        1,
		MinLearners: 2,
		Specs:       smallSpecs(KindRandomForest, KindGradientBoosting, KindExtraTrees),
		NewLearner:  failingFactory(KindGradientBoosting, KindExtraTrees),
	}, testMLLogger())

	var insufficient *models.InsufficientModelsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 1, insufficient.Survivors)
	assert.Equal(t, 2, insufficient.Required)
	assert.Len(t, insufficient.Failures, 2)
}

func TestTrainBankMinimumIsTwo(t *testing.T) {
	ds := syntheticDataset(t, 60, 3, 4)

	_, err := TrainBank(context.Background(), ds, BankConfig{
		Folds:       5,
		MinLearners: 1,
		Specs:       smallSpecs(KindRandomForest),
	}, testMLLogger())

	var insufficient *models.InsufficientModelsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Required)
}

func TestTrainBankCancelled(t *testing.T) {
	ds := syntheticDataset(t, 60, 3, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TrainBank(ctx, ds, BankConfig{
		Folds: 5,
		Specs: smallSpecs(KindRandomForest, KindGradientBoosting),
	}, testMLLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModelBankJSONRoundTrip(t *testing.T) {
	ds := syntheticDataset(t, 60, 3, 4)
	result, err := TrainBank(context.Background(), ds, BankConfig{
		Folds: 5,
		Specs: smallSpecs(KindExtraTrees, KindStochasticBoosting),
	}, testMLLogger())
	require.NoError(t, err)

	data, err := result.Bank.MarshalJSON()
	require.NoError(t, err)

	var restored ModelBank
	require.NoError(t, restored.UnmarshalJSON(data))
	assert.Equal(t, result.Bank.Kinds(), restored.Kinds())

	want, err := result.Bank.Predict(ds.X[3])
	require.NoError(t, err)
	got, err := restored.Predict(ds.X[3])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
