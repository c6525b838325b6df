package ml

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/matchedge/internal/models"
)

// PredictionCache keeps recently served predictions so settlement can pair a result
// with exactly what was served. Entries expire after ttl.
type PredictionCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.Mutex
	hitCount  uint64
	missCount uint64
}

// NewPredictionCache creates a new prediction cache
func NewPredictionCache(ttl time.Duration, maxSize int) *PredictionCache {
	return &PredictionCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves the last prediction served for a match.
func (pc *PredictionCache) Get(matchID string) (*models.BlendedPrediction, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if result, found := pc.cache.Get(matchID); found {
		if pred, ok := result.(*models.BlendedPrediction); ok {
			pc.hitCount++
			pc.updateMetrics()
			return pred, true
		}
	}

	pc.missCount++
	pc.updateMetrics()
	return nil, false
}

// Set stores a prediction, replacing any earlier one for the same match.
func (pc *PredictionCache) Set(pred *models.BlendedPrediction) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.maxSize > 0 && pc.cache.ItemCount() >= pc.maxSize {
		pc.cache.DeleteExpired()
	}

	pc.cache.Set(pred.MatchID, pred, pc.ttl)
}

// Delete removes a settled match.
func (pc *PredictionCache) Delete(matchID string) {
	pc.cache.Delete(matchID)
}

// InvalidateVersion drops every prediction served by an artifact version.
func (pc *PredictionCache) InvalidateVersion(version string) int {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	removed := 0
	for k, item := range pc.cache.Items() {
		if pred, ok := item.Object.(*models.BlendedPrediction); ok && pred.ArtifactVersion == version {
			pc.cache.Delete(k)
			removed++
		}
	}
	return removed
}

// Clear flushes the entire cache
func (pc *PredictionCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.cache.Flush()
	pc.hitCount = 0
	pc.missCount = 0
}

// Stats returns cache statistics
func (pc *PredictionCache) Stats() (hits, misses uint64, ratio float64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.stats()
}

func (pc *PredictionCache) stats() (hits, misses uint64, ratio float64) {
	hits = pc.hitCount
	misses = pc.missCount
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// updateMetrics updates Prometheus metrics. Callers hold mu.
func (pc *PredictionCache) updateMetrics() {
	_, _, ratio := pc.stats()
	PredictionCacheHitRatio.Set(ratio)
}

// ItemCount returns the number of items in cache
func (pc *PredictionCache) ItemCount() int {
	return pc.cache.ItemCount()
}
