package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/logger"
	"github.com/yourusername/matchedge/internal/ml"
	"github.com/yourusername/matchedge/internal/models"
	"github.com/yourusername/matchedge/internal/registry"
)

var kickoff = time.Date(2025, 3, 15, 15, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{Name: "matchedge", Environment: "development", LogLevel: "info"},
		Model: config.ModelConfig{
			OOFFolds:        5,
			Seed:            7,
			MinLearners:     2,
			Learners:        []string{"random_forest", "extra_trees"},
			HoldoutFraction: 0.2,
		},
		Calibration: config.CalibrationConfig{
			RefitIntervalSeconds: 180,
			MinSamples:           20,
			IsotonicMinSamples:   200,
			WindowHours:          24,
			MaxSamples:           2000,
			HoldoutFraction:      0.25,
			GuardrailMargin:      0.002,
		},
		Staking: config.StakingConfig{
			MinEdge:           0.04,
			ValueEdge:         0.08,
			PremiumEdge:       0.15,
			PremiumConfidence: 0.6,
			KellyFraction:     0.25,
			MaxStakePct:       0.05,
		},
		Serving: config.ServingConfig{
			RequestTimeoutSeconds:     10,
			LeagueCacheSize:           4,
			PredictionCacheTTLMinutes: 60,
			ArtifactDir:               t.TempDir(),
			Baseline:                  []float64{0.46, 0.27, 0.27},
		},
		Retraining: config.RetrainingConfig{LookbackDays: 0},
	}
}

func newNullLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func featuresBuilder() *features.Builder {
	return features.NewBuilder(newNullLogger())
}

func newFileRegistry(t *testing.T, cfg *config.Config, wrap func(registry.Store) registry.Store) *registry.Registry {
	t.Helper()
	store, err := registry.NewFileStore(cfg.Serving.ArtifactDir)
	require.NoError(t, err)
	var s registry.Store = store
	if wrap != nil {
		s = wrap(store)
	}
	reg, err := registry.New(s, cfg.Serving.LeagueCacheSize, cfg.Calibration, newNullLogger())
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	return reg
}

// trainedArtifact fits a small ensemble on synthetic rows of the production
// schema width.
func trainedArtifact(t *testing.T, league string, seed int64) *registry.Artifact {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	width := features.SchemaV1.Len()
	x := make([][]float64, 90)
	y := make([]int, 90)
	for i := range x {
		c := i % 3
		row := make([]float64, width)
		row[0] = float64(c) + rng.NormFloat64()*0.2
		for j := 1; j < width; j++ {
			row[j] = rng.NormFloat64()
		}
		x[i], y[i] = row, c
	}
	ds, err := ml.NewDataset(x, y)
	require.NoError(t, err)

	trainer := ml.NewTrainer(ml.TrainerConfig{
		Folds: 5,
		Seed:  seed,
		Kinds: []ml.Kind{ml.KindRandomForest, ml.KindExtraTrees},
		Params: map[ml.Kind]ml.Params{
			ml.KindRandomForest: {"n_trees": 8, "max_depth": 3},
			ml.KindExtraTrees:   {"n_trees": 8, "max_depth": 3},
		},
	}, logger.NewMLLogger(newNullLogger()))
	ens, report, err := trainer.Train(context.Background(), league, features.SchemaV1, ds)
	require.NoError(t, err)
	a, err := registry.NewArtifact(league, ens, report, kickoff)
	require.NoError(t, err)
	return a
}

func promote(t *testing.T, reg *registry.Registry, a *registry.Artifact) {
	t.Helper()
	ctx := context.Background()
	_, err := reg.Register(ctx, a)
	require.NoError(t, err)
	decision, err := reg.Promote(ctx, a.Metadata.League, a.Version, nil)
	require.NoError(t, err)
	require.True(t, decision.Promoted)
}

// matchContext has a winless home run of form, which the synthetic
// artifacts read as a strong home signal.
func matchContext(id, league string) *models.RawMatchContext {
	return &models.RawMatchContext{
		MatchID:   id,
		League:    league,
		HomeTeam:  "Arsenal",
		AwayTeam:  "Brentford",
		KickoffAt: kickoff,
		HomeRecent: []models.ResultRecord{
			{PlayedAt: kickoff.AddDate(0, 0, -14), GoalsFor: 0, GoalsAgainst: 2},
			{PlayedAt: kickoff.AddDate(0, 0, -7), GoalsFor: 0, GoalsAgainst: 1},
		},
		AwayRecent: []models.ResultRecord{
			{PlayedAt: kickoff.AddDate(0, 0, -13), GoalsFor: 1, GoalsAgainst: 3},
			{PlayedAt: kickoff.AddDate(0, 0, -6), GoalsFor: 0, GoalsAgainst: 2},
		},
		MarketOdds: &models.OutcomeOdds{Home: 1.80, Draw: 3.80, Away: 4.50},
	}
}

type mockSink struct {
	mu       sync.Mutex
	outcomes []*models.SettledOutcome
	err      error
}

func (m *mockSink) RecordOutcome(ctx context.Context, o *models.SettledOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return m.err
}

func (m *mockSink) recorded() []*models.SettledOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.SettledOutcome(nil), m.outcomes...)
}

// slowStore delays artifact loads past the serving deadline.
type slowStore struct {
	registry.Store
	delay time.Duration
}

func (s *slowStore) Load(ctx context.Context, league, version string) (*registry.Artifact, error) {
	time.Sleep(s.delay)
	return s.Store.Load(ctx, league, version)
}
