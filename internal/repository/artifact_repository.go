package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/matchedge/internal/database"
	"github.com/yourusername/matchedge/internal/models"
)

// PostgresArtifactRepository implements ArtifactRepository for PostgreSQL
type PostgresArtifactRepository struct {
	db *database.DB
}

// NewPostgresArtifactRepository creates a new artifact audit repository
func NewPostgresArtifactRepository(db *database.DB) *PostgresArtifactRepository {
	return &PostgresArtifactRepository{db: db}
}

const artifactColumns = `id, league, version, status, schema_version, sample_count, learners, metrics, metadata, trained_at, promoted_at, retired_at, created_at`

// SaveArtifactRecord upserts the record for (league, version). Status and
// lifecycle timestamps follow the latest write.
func (r *PostgresArtifactRepository) SaveArtifactRecord(ctx context.Context, record *models.ArtifactRecord) error {
	query := `
		INSERT INTO artifact_records (id, league, version, status, schema_version, sample_count, learners, metrics, metadata, trained_at, promoted_at, retired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (league, version) DO UPDATE SET
			status = EXCLUDED.status,
			metrics = EXCLUDED.metrics,
			promoted_at = EXCLUDED.promoted_at,
			retired_at = EXCLUDED.retired_at
	`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.League, record.Version, string(record.Status), record.SchemaVersion,
		record.SampleCount, record.Learners, record.Metrics, record.Metadata,
		record.TrainedAt, record.PromotedAt, record.RetiredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact record: %w", err)
	}
	return nil
}

// GetByVersion retrieves the record for one artifact version
func (r *PostgresArtifactRepository) GetByVersion(ctx context.Context, league, version string) (*models.ArtifactRecord, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifact_records WHERE league = $1 AND version = $2`
	return scanArtifact(r.db.QueryRow(ctx, query, league, version))
}

// GetLive retrieves the league's production artifact record
func (r *PostgresArtifactRepository) GetLive(ctx context.Context, league string) (*models.ArtifactRecord, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifact_records
		WHERE league = $1 AND status = $2
		ORDER BY promoted_at DESC NULLS LAST
		LIMIT 1`
	return scanArtifact(r.db.QueryRow(ctx, query, league, string(models.ArtifactProduction)))
}

// ListByLeague returns every record of a league, newest first
func (r *PostgresArtifactRepository) ListByLeague(ctx context.Context, league string) ([]*models.ArtifactRecord, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifact_records WHERE league = $1 ORDER BY trained_at DESC`

	rows, err := r.db.Query(ctx, query, league)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact records: %w", err)
	}
	defer rows.Close()

	var records []*models.ArtifactRecord
	for rows.Next() {
		record, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanArtifact(row pgx.Row) (*models.ArtifactRecord, error) {
	record := &models.ArtifactRecord{}
	var status string
	err := row.Scan(
		&record.ID, &record.League, &record.Version, &status, &record.SchemaVersion,
		&record.SampleCount, &record.Learners, &record.Metrics, &record.Metadata,
		&record.TrainedAt, &record.PromotedAt, &record.RetiredAt, &record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artifact record: %w", err)
	}
	record.Status = models.ArtifactStatus(status)
	return record, nil
}
