package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/matchedge/internal/database"
	"github.com/yourusername/matchedge/internal/models"
)

// PostgresOutcomeRepository implements OutcomeRepository for PostgreSQL
type PostgresOutcomeRepository struct {
	db *database.DB
}

// NewPostgresOutcomeRepository creates a new settled outcome repository
func NewPostgresOutcomeRepository(db *database.DB) *PostgresOutcomeRepository {
	return &PostgresOutcomeRepository{db: db}
}

const insertOutcomeQuery = `
	INSERT INTO settled_outcomes (id, prediction_id, match_id, league, artifact_version, raw, calibrated, actual, is_baseline, settled_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (league, match_id) DO NOTHING
`

func outcomeArgs(o *models.SettledOutcome) []interface{} {
	return []interface{}{
		o.ID, o.PredictionID, o.MatchID, o.League, o.ArtifactVersion,
		o.Raw[:], o.Calibrated[:], o.Actual.String(), o.IsBaseline, o.SettledAt,
	}
}

// RecordOutcome inserts a settled outcome. A second settlement of the same
// match is reported as ErrDuplicateKey.
func (r *PostgresOutcomeRepository) RecordOutcome(ctx context.Context, outcome *models.SettledOutcome) error {
	tag, err := r.db.Exec(ctx, insertOutcomeQuery, outcomeArgs(outcome)...)
	if err != nil {
		return fmt.Errorf("failed to record settled outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match %s already settled: %w", outcome.MatchID, models.ErrDuplicateKey)
	}
	return nil
}

// RecordBatch inserts outcomes in one round trip, skipping already settled matches.
func (r *PostgresOutcomeRepository) RecordBatch(ctx context.Context, outcomes []*models.SettledOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range outcomes {
		batch.Queue(insertOutcomeQuery, outcomeArgs(o)...)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range outcomes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to record outcome %d in batch: %w", i, err)
		}
	}
	return nil
}

// ListSince returns a league's outcomes settled after since, newest first.
func (r *PostgresOutcomeRepository) ListSince(ctx context.Context, league string, since time.Time, limit int) ([]*models.SettledOutcome, error) {
	query := `
		SELECT id, prediction_id, match_id, league, artifact_version, raw, calibrated, actual, is_baseline, settled_at
		FROM settled_outcomes
		WHERE league = $1 AND settled_at >= $2
		ORDER BY settled_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, league, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query settled outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.SettledOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}

// CountByLeague returns how many outcomes each league settled after since.
func (r *PostgresOutcomeRepository) CountByLeague(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		"SELECT league, COUNT(*) FROM settled_outcomes WHERE settled_at >= $1 GROUP BY league", since)
	if err != nil {
		return nil, fmt.Errorf("failed to count settled outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var league string
		var n int
		if err := rows.Scan(&league, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[league] = n
	}
	return counts, rows.Err()
}

// Prune deletes outcomes settled before the cutoff and returns the number removed.
func (r *PostgresOutcomeRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM settled_outcomes WHERE settled_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune settled outcomes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOutcome(row pgx.Row) (*models.SettledOutcome, error) {
	o := &models.SettledOutcome{}
	var raw, calibrated []float64
	var actual string
	err := row.Scan(
		&o.ID, &o.PredictionID, &o.MatchID, &o.League, &o.ArtifactVersion,
		&raw, &calibrated, &actual, &o.IsBaseline, &o.SettledAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan settled outcome: %w", err)
	}
	if o.Raw, err = toProbabilities(raw); err != nil {
		return nil, err
	}
	if o.Calibrated, err = toProbabilities(calibrated); err != nil {
		return nil, err
	}
	if o.Actual, err = models.ParseOutcome(actual); err != nil {
		return nil, err
	}
	return o, nil
}

func toProbabilities(values []float64) (models.Probabilities, error) {
	var p models.Probabilities
	if len(values) != models.NumOutcomes {
		return p, fmt.Errorf("stored distribution has %d entries, want %d", len(values), models.NumOutcomes)
	}
	copy(p[:], values)
	return p, nil
}
