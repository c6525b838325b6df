package repository

import (
	"context"
	"time"

	"github.com/yourusername/matchedge/internal/models"
)

// OutcomeRepository persists settled predictions. They feed calibration
// windows after a restart and the offline evaluation reports.
type OutcomeRepository interface {
	RecordOutcome(ctx context.Context, outcome *models.SettledOutcome) error
	RecordBatch(ctx context.Context, outcomes []*models.SettledOutcome) error
	ListSince(ctx context.Context, league string, since time.Time, limit int) ([]*models.SettledOutcome, error)
	CountByLeague(ctx context.Context, since time.Time) (map[string]int, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// ArtifactRepository keeps the audit trail of registered model artifacts.
type ArtifactRepository interface {
	SaveArtifactRecord(ctx context.Context, record *models.ArtifactRecord) error
	GetByVersion(ctx context.Context, league, version string) (*models.ArtifactRecord, error)
	ListByLeague(ctx context.Context, league string) ([]*models.ArtifactRecord, error)
	GetLive(ctx context.Context, league string) (*models.ArtifactRecord, error)
}

// MatchRepository stores settled historical matches for training and backtests.
type MatchRepository interface {
	Upsert(ctx context.Context, match *models.HistoricalMatch) error
	UpsertBatch(ctx context.Context, matches []*models.HistoricalMatch) error
	ListByLeague(ctx context.Context, league string, start, end time.Time) ([]*models.HistoricalMatch, error)
	Leagues(ctx context.Context) ([]string, error)
}
