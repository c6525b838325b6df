package features

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/models"
)

var kickoff = time.Date(2024, 3, 16, 15, 0, 0, 0, time.UTC)

func float(v float64) *float64 { return &v }
func intPtr(v int) *int        { return &v }

func sampleContext() *models.RawMatchContext {
	return &models.RawMatchContext{
		MatchID:   "m-1",
		League:    "EPL",
		HomeTeam:  "Arsenal",
		AwayTeam:  "Brentford",
		KickoffAt: kickoff,
		HomeRecent: []models.ResultRecord{
			{PlayedAt: kickoff.AddDate(0, 0, -21), GoalsFor: 2, GoalsAgainst: 0, ExpectedGoals: float(1.9)},
			{PlayedAt: kickoff.AddDate(0, 0, -14), GoalsFor: 1, GoalsAgainst: 1, ExpectedGoals: float(1.4)},
			{PlayedAt: kickoff.AddDate(0, 0, -7), GoalsFor: 0, GoalsAgainst: 1, ExpectedGoals: float(1.1)},
		},
		AwayRecent: []models.ResultRecord{
			{PlayedAt: kickoff.AddDate(0, 0, -13), GoalsFor: 1, GoalsAgainst: 3},
			{PlayedAt: kickoff.AddDate(0, 0, -6), GoalsFor: 2, GoalsAgainst: 2},
		},
		HeadToHead: []models.HeadToHeadRecord{
			{PlayedAt: kickoff.AddDate(-1, 0, 0), HomeGoals: 3, AwayGoals: 1},
			{PlayedAt: kickoff.AddDate(0, -5, 0), HomeGoals: 0, AwayGoals: 0},
		},
		MarketOdds:   &models.OutcomeOdds{Home: 1.80, Draw: 3.80, Away: 4.50},
		RestDaysHome: intPtr(7),
		RestDaysAway: intPtr(4),
	}
}

func newTestBuilder() (*Builder, *test.Hook) {
	log, hook := test.NewNullLogger()
	return NewBuilder(log), hook
}

func TestBuildComputesFeatures(t *testing.T) {
	b, hook := newTestBuilder()

	vec, err := b.Build(sampleContext())
	require.NoError(t, err)
	require.NoError(t, SchemaV1.Check(vec))

	assert.Equal(t, "m-1", vec.MatchID())
	assert.Equal(t, SchemaVersion, vec.SchemaVersion())
	assert.Equal(t, SchemaV1.Len(), vec.Len())

	get := func(name string) float64 {
		v, ok := vec.Value(name)
		require.True(t, ok, name)
		return v
	}
	assert.InDelta(t, 4.0/3, get(HomeFormPPG), 1e-12)
	assert.InDelta(t, 0.5, get(AwayFormPPG), 1e-12)
	assert.InDelta(t, 4.0/3-0.5, get(FormPPGDelta), 1e-12)
	assert.InDelta(t, 1.0, get(HomeGoalsFor), 1e-12)
	assert.InDelta(t, 1.5, get(AwayGoalsFor), 1e-12)
	assert.InDelta(t, 4.4/3, get(HomeXG), 1e-12)
	// away side has no xG, so its goals-for average stands in
	assert.InDelta(t, 1.5, get(AwayXG), 1e-12)
	assert.InDelta(t, 0.5, get(H2HHomeWinRate), 1e-12)
	assert.InDelta(t, 0.5, get(H2HDrawRate), 1e-12)
	assert.InDelta(t, 3, get(RestDaysDelta), 1e-12)

	probs := get(MarketHomeProb) + get(MarketDrawProb) + get(MarketAwayProb)
	assert.InDelta(t, 1, probs, 1e-12)
	assert.Greater(t, get(MarketOverround), 0.0)

	assert.Equal(t, []string{AwayXG}, vec.Imputed())
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, AwayXG, hook.LastEntry().Data["feature"])
}

func TestBuildIsIdempotent(t *testing.T) {
	b, _ := newTestBuilder()
	raw := sampleContext()

	first, err := b.Build(raw)
	require.NoError(t, err)
	second, err := b.Build(raw)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, first.Values(), second.Values())
}

func TestBuildFillsDefaultsAndLogs(t *testing.T) {
	b, hook := newTestBuilder()
	raw := sampleContext()
	raw.HomeRecent = nil
	raw.AwayRecent = nil
	raw.HeadToHead = nil
	raw.RestDaysAway = nil

	vec, err := b.Build(raw)
	require.NoError(t, err)

	defaults := LeagueAverageDefaults()
	v, _ := vec.Value(HomeFormPPG)
	assert.Equal(t, defaults.FormPPG, v)
	v, _ = vec.Value(H2HHomeWinRate)
	assert.Equal(t, 0.46, v)
	v, _ = vec.Value(RestDaysDelta)
	assert.Equal(t, 0.0, v)

	imputed := vec.Imputed()
	assert.Contains(t, imputed, HomeFormPPG)
	assert.Contains(t, imputed, AwayXG)
	assert.Contains(t, imputed, H2HDrawRate)
	assert.Contains(t, imputed, RestDaysDelta)
	assert.Len(t, hook.Entries, len(imputed))
}

func TestBuildTruncatesRecentWindow(t *testing.T) {
	b, _ := newTestBuilder()
	raw := sampleContext()
	raw.HomeRecent = nil
	for i := 10; i > 0; i-- {
		goals := 0
		if i <= 6 {
			goals = 3
		}
		raw.HomeRecent = append(raw.HomeRecent, models.ResultRecord{
			PlayedAt: kickoff.AddDate(0, 0, -7*i), GoalsFor: goals, GoalsAgainst: 0, ExpectedGoals: float(1),
		})
	}

	vec, err := b.Build(raw)
	require.NoError(t, err)
	v, _ := vec.Value(HomeGoalsFor)
	assert.Equal(t, 3.0, v)
}

func TestBuildSchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.RawMatchContext)
		field  string
	}{
		{"missing home team", func(r *models.RawMatchContext) { r.HomeTeam = "" }, "home_team"},
		{"same teams", func(r *models.RawMatchContext) { r.AwayTeam = r.HomeTeam }, "away_team"},
		{"missing kickoff", func(r *models.RawMatchContext) { r.KickoffAt = time.Time{} }, "kickoff_at"},
		{"missing market odds", func(r *models.RawMatchContext) { r.MarketOdds = nil }, "market_odds"},
		{"incomplete market odds", func(r *models.RawMatchContext) { r.MarketOdds.Draw = 0 }, "market_odds"},
		{"odds not above one", func(r *models.RawMatchContext) { r.MarketOdds.Home = 1.0 }, "market_odds.home"},
		{"unordered window", func(r *models.RawMatchContext) {
			r.HomeRecent[0], r.HomeRecent[2] = r.HomeRecent[2], r.HomeRecent[0]
		}, "home_recent"},
		{"result after kickoff", func(r *models.RawMatchContext) {
			r.AwayRecent[1].PlayedAt = kickoff.Add(time.Hour)
		}, "away_recent"},
		{"negative goals", func(r *models.RawMatchContext) { r.AwayRecent[0].GoalsFor = -1 }, "away_recent[0].goals_for"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBuilder()
			raw := sampleContext()
			tt.mutate(raw)

			vec, err := b.Build(raw)
			require.Error(t, err)
			assert.Nil(t, vec)

			var schemaErr *models.SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.field, schemaErr.Field)
		})
	}
}

func TestSchemaCheckRejectsMismatch(t *testing.T) {
	b, _ := newTestBuilder()
	vec, err := b.Build(sampleContext())
	require.NoError(t, err)

	other := Schema{Version: "v2", Names: SchemaV1.Names}
	assert.True(t, models.IsSchemaError(other.Check(vec)))

	shorter := Schema{Version: SchemaVersion, Names: SchemaV1.Names[:5]}
	assert.True(t, models.IsSchemaError(shorter.Check(vec)))

	reordered := Schema{Version: SchemaVersion, Names: append([]string{AwayFormPPG, HomeFormPPG}, SchemaV1.Names[2:]...)}
	assert.True(t, models.IsSchemaError(reordered.Check(vec)))
}

func TestNewVectorValidatesLength(t *testing.T) {
	_, err := NewVector(SchemaV1, "m", []float64{1, 2})
	assert.True(t, models.IsSchemaError(err))

	values := make([]float64, SchemaV1.Len())
	vec, err := NewVector(SchemaV1, "m", values)
	require.NoError(t, err)
	values[0] = 99
	got, _ := vec.Value(HomeFormPPG)
	assert.Equal(t, 0.0, got)
}
