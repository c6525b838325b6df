package ml

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/matchedge/internal/models"
)

func testPrediction(matchID, version string) *models.BlendedPrediction {
	return &models.BlendedPrediction{
		ID:              uuid.New(),
		MatchID:         matchID,
		League:          "EPL",
		Probabilities:   models.Probabilities{0.5, 0.3, 0.2},
		Raw:             models.Probabilities{0.48, 0.3, 0.22},
		Confidence:      0.5,
		ArtifactVersion: version,
		PredictedAt:     time.Now(),
	}
}

func TestPredictionCacheBasic(t *testing.T) {
	cache := NewPredictionCache(time.Hour, 100)
	defer cache.Clear()

	pred := testPrediction("m-1", "abc")
	cache.Set(pred)

	retrieved, ok := cache.Get("m-1")
	require.True(t, ok)
	assert.Equal(t, pred.ID, retrieved.ID)
	assert.Equal(t, pred.Probabilities, retrieved.Probabilities)

	cache.Delete("m-1")
	_, ok = cache.Get("m-1")
	assert.False(t, ok)
}

func TestPredictionCacheReplacesMatch(t *testing.T) {
	cache := NewPredictionCache(time.Hour, 100)
	defer cache.Clear()

	first := testPrediction("m-1", "abc")
	second := testPrediction("m-1", "def")
	cache.Set(first)
	cache.Set(second)

	retrieved, ok := cache.Get("m-1")
	require.True(t, ok)
	assert.Equal(t, second.ID, retrieved.ID)
	assert.Equal(t, 1, cache.ItemCount())
}

func TestPredictionCacheExpiration(t *testing.T) {
	cache := NewPredictionCache(100*time.Millisecond, 100)
	defer cache.Clear()

	cache.Set(testPrediction("m-1", "abc"))

	_, ok := cache.Get("m-1")
	require.True(t, ok)

	time.Sleep(150 * time.Millisecond)

	_, ok = cache.Get("m-1")
	assert.False(t, ok)
}

func TestPredictionCacheInvalidateVersion(t *testing.T) {
	cache := NewPredictionCache(time.Hour, 100)
	defer cache.Clear()

	cache.Set(testPrediction("m-1", "old"))
	cache.Set(testPrediction("m-2", "old"))
	cache.Set(testPrediction("m-3", "new"))

	assert.Equal(t, 2, cache.InvalidateVersion("old"))

	_, ok := cache.Get("m-1")
	assert.False(t, ok)
	_, ok = cache.Get("m-2")
	assert.False(t, ok)
	_, ok = cache.Get("m-3")
	assert.True(t, ok)
}

func TestPredictionCacheStats(t *testing.T) {
	cache := NewPredictionCache(time.Hour, 100)
	defer cache.Clear()

	hits, misses, ratio := cache.Stats()
	assert.Equal(t, uint64(0), hits)
	assert.Equal(t, uint64(0), misses)
	assert.Equal(t, 0.0, ratio)

	_, _ = cache.Get("m-1")
	hits, misses, ratio = cache.Stats()
	assert.Equal(t, uint64(0), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Equal(t, 0.0, ratio)

	cache.Set(testPrediction("m-1", "abc"))
	_, _ = cache.Get("m-1")
	hits, misses, ratio = cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Equal(t, 0.5, ratio)
}
