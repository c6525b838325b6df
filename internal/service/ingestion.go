package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/models"
	"github.com/yourusername/matchedge/internal/tracing"
)

const defaultIngestBatch = 100

// ResultFetcher pulls finished matches from the data provider.
type ResultFetcher interface {
	FetchResults(ctx context.Context, league string, start, end time.Time) ([]*models.HistoricalMatch, error)
}

// MatchWriter persists historical matches.
type MatchWriter interface {
	UpsertBatch(ctx context.Context, matches []*models.HistoricalMatch) error
}

// Settler settles a served prediction.
type Settler interface {
	Settle(ctx context.Context, matchID string, actual models.Outcome) (*models.SettledOutcome, error)
}

// IngestionService stores finished matches as training history and settles
// any prediction served for them.
type IngestionService struct {
	fetcher   ResultFetcher
	store     MatchWriter
	settler   Settler
	builder   *features.Builder
	logger    *logrus.Logger
	batchSize int
	now       func() time.Time
}

// NewIngestionService creates the results ingestion job. settler may be nil.
func NewIngestionService(fetcher ResultFetcher, store MatchWriter, settler Settler, builder *features.Builder, log *logrus.Logger, batchSize int) *IngestionService {
	if batchSize <= 0 {
		batchSize = defaultIngestBatch
	}
	return &IngestionService{
		fetcher:   fetcher,
		store:     store,
		settler:   settler,
		builder:   builder,
		logger:    log,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// IngestResults fetches results for every league between start and end.
// A failing league or batch is logged and counted; the run carries on.
func (s *IngestionService) IngestResults(ctx context.Context, leagues []string, start, end time.Time) (*IngestionStats, error) {
	ctx, seg := tracing.StartSegment(ctx, "ingest-results")
	stats := NewIngestionStats(s.now())
	var errs []error

	for _, league := range leagues {
		matches, err := s.fetcher.FetchResults(ctx, league, start, end)
		if err != nil {
			stats.recordError()
			errs = append(errs, fmt.Errorf("fetch %s: %w", league, err))
			s.logger.WithError(err).WithField("league", league).Error("Failed to fetch results")
			continue
		}
		stats.addFetched(len(matches))

		valid := s.filter(matches, stats)
		for i := 0; i < len(valid); i += s.batchSize {
			end := i + s.batchSize
			if end > len(valid) {
				end = len(valid)
			}
			batch := valid[i:end]
			if err := s.store.UpsertBatch(ctx, batch); err != nil {
				stats.recordError()
				errs = append(errs, fmt.Errorf("store %s: %w", league, err))
				s.logger.WithError(err).WithField("league", league).Error("Failed to store results batch")
				continue
			}
			stats.addStored(len(batch))
		}

		s.settle(ctx, valid, stats)
	}

	stats.finish(s.now())
	s.logger.WithField("stats", stats.String()).Info("Results ingestion complete")
	seg.Metadata("stats", stats.String())
	err := errors.Join(errs...)
	seg.End(err)
	return stats, err
}

// filter drops matches without a known result or with context the feature
// builder would reject.
func (s *IngestionService) filter(matches []*models.HistoricalMatch, stats *IngestionStats) []*models.HistoricalMatch {
	valid := make([]*models.HistoricalMatch, 0, len(matches))
	for _, m := range matches {
		if m == nil || !m.Result.Valid() {
			stats.recordValidationError()
			continue
		}
		ctx := m.Context
		if _, err := s.builder.Build(&ctx); err != nil {
			stats.recordValidationError()
			s.logger.WithError(err).WithField("match_id", m.Context.MatchID).Warn("Result failed validation")
			continue
		}
		valid = append(valid, m)
	}
	return valid
}

func (s *IngestionService) settle(ctx context.Context, matches []*models.HistoricalMatch, stats *IngestionStats) {
	if s.settler == nil {
		return
	}
	for _, m := range matches {
		_, err := s.settler.Settle(ctx, m.Context.MatchID, m.Result)
		switch {
		case err == nil:
			stats.recordSettled()
		case errors.Is(err, models.ErrNotFound):
			// never served
		default:
			stats.recordError()
			s.logger.WithError(err).WithField("match_id", m.Context.MatchID).Warn("Failed to settle prediction")
		}
	}
}
