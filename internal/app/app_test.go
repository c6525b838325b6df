package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/models"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadMatches(t *testing.T) {
	path := writeFile(t, "matches.json", `[
  {
    "context": {
      "match_id": "m1",
      "league": "EPL",
      "home_team": "Arsenal",
      "away_team": "Chelsea",
      "kickoff_at": "2024-03-02T15:00:00Z",
      "market_odds": {"home": 2.1, "draw": 3.4, "away": 3.6}
    },
    "result": "draw",
    "closing_odds": {"home": 2.0, "draw": 3.5, "away": 3.8}
  }
]`)

	matches, err := ReadMatches(path)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "m1", matches[0].Context.MatchID)
	assert.Equal(t, models.OutcomeDraw, matches[0].Result)
	require.NotNil(t, matches[0].ClosingOdds)
	assert.Equal(t, 3.5, matches[0].ClosingOdds.Draw)
}

func TestReadMatchesRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "matches.json", `[{"context": {"match_id": "m1"}, "score": "1-1"}]`)

	_, err := ReadMatches(path)
	assert.Error(t, err)
}

func TestReadMatchContext(t *testing.T) {
	path := writeFile(t, "context.json", `{
  "match_id": "m2",
  "league": "EPL",
  "home_team": "Leeds",
  "away_team": "Hull",
  "kickoff_at": "2024-03-09T15:00:00Z",
  "market_odds": {"home": 1.9, "draw": 3.5, "away": 4.2}
}`)

	mc, err := ReadMatchContext(path)
	require.NoError(t, err)
	assert.Equal(t, "Hull", mc.AwayTeam)
	require.NotNil(t, mc.MarketOdds)
	assert.Equal(t, 4.2, mc.MarketOdds.Away)

	_, err = ReadMatchContext(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"bets": 3}))
	assert.Equal(t, "{\n  \"bets\": 3\n}\n", buf.String())
}

func TestOpenWithoutBackends(t *testing.T) {
	cfg, err := config.LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	cfg.Serving.ArtifactDir = t.TempDir()

	log, _ := test.NewNullLogger()
	stack, err := Open(context.Background(), cfg, log, AllBackends)
	require.NoError(t, err)
	defer stack.Close()

	assert.NotNil(t, stack.Registry)
	assert.NotNil(t, stack.Builder)
	assert.Nil(t, stack.DB)
	assert.Nil(t, stack.Repos)
	assert.Nil(t, stack.Mirror)
	assert.Nil(t, stack.Publisher)
	assert.Empty(t, stack.ServiceOptions())
	assert.Empty(t, stack.Checks())

	_, err = stack.Registry.Live(context.Background(), "EPL")
	var loadErr *models.ModelLoadError
	assert.ErrorAs(t, err, &loadErr)
}
