package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/matchedge/internal/database"
	"github.com/yourusername/matchedge/internal/models"
)

// PostgresMatchRepository implements MatchRepository for PostgreSQL
type PostgresMatchRepository struct {
	db *database.DB
}

// NewPostgresMatchRepository creates a new historical match repository
func NewPostgresMatchRepository(db *database.DB) *PostgresMatchRepository {
	return &PostgresMatchRepository{db: db}
}

const upsertMatchQuery = `
	INSERT INTO historical_matches (match_id, league, kickoff_at, result, context, bookmakers, closing_odds)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (match_id) DO UPDATE SET
		result = EXCLUDED.result,
		context = EXCLUDED.context,
		bookmakers = EXCLUDED.bookmakers,
		closing_odds = EXCLUDED.closing_odds
`

func matchArgs(m *models.HistoricalMatch) ([]interface{}, error) {
	ctxJSON, err := json.Marshal(m.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to encode match context: %w", err)
	}
	var books, closing []byte
	if len(m.Bookmakers) > 0 {
		if books, err = json.Marshal(m.Bookmakers); err != nil {
			return nil, fmt.Errorf("failed to encode bookmaker odds: %w", err)
		}
	}
	if m.ClosingOdds != nil {
		if closing, err = json.Marshal(m.ClosingOdds); err != nil {
			return nil, fmt.Errorf("failed to encode closing odds: %w", err)
		}
	}
	return []interface{}{
		m.Context.MatchID, m.Context.League, m.Context.KickoffAt, m.Result.String(),
		ctxJSON, books, closing,
	}, nil
}

// Upsert inserts or replaces one historical match
func (r *PostgresMatchRepository) Upsert(ctx context.Context, match *models.HistoricalMatch) error {
	args, err := matchArgs(match)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, upsertMatchQuery, args...); err != nil {
		return fmt.Errorf("failed to upsert match %s: %w", match.Context.MatchID, err)
	}
	return nil
}

// UpsertBatch writes matches in a single transaction
func (r *PostgresMatchRepository) UpsertBatch(ctx context.Context, matches []*models.HistoricalMatch) error {
	if len(matches) == 0 {
		return nil
	}

	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, m := range matches {
			args, err := matchArgs(m)
			if err != nil {
				return err
			}
			batch.Queue(upsertMatchQuery, args...)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range matches {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to upsert match %d in batch: %w", i, err)
			}
		}
		return results.Close()
	})
}

// ListByLeague returns a league's matches kicked off in [start, end), oldest first.
func (r *PostgresMatchRepository) ListByLeague(ctx context.Context, league string, start, end time.Time) ([]*models.HistoricalMatch, error) {
	query := `
		SELECT result, context, bookmakers, closing_odds
		FROM historical_matches
		WHERE league = $1 AND kickoff_at >= $2 AND kickoff_at < $3
		ORDER BY kickoff_at ASC, match_id ASC
	`

	rows, err := r.db.Query(ctx, query, league, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.HistoricalMatch
	for rows.Next() {
		var result string
		var ctxJSON, books, closing []byte
		if err := rows.Scan(&result, &ctxJSON, &books, &closing); err != nil {
			return nil, fmt.Errorf("failed to scan historical match: %w", err)
		}
		m, err := decodeMatch(result, ctxJSON, books, closing)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Leagues lists the leagues with stored history
func (r *PostgresMatchRepository) Leagues(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, "SELECT DISTINCT league FROM historical_matches ORDER BY league")
	if err != nil {
		return nil, fmt.Errorf("failed to query leagues: %w", err)
	}
	defer rows.Close()

	var leagues []string
	for rows.Next() {
		var league string
		if err := rows.Scan(&league); err != nil {
			return nil, fmt.Errorf("failed to scan league: %w", err)
		}
		leagues = append(leagues, league)
	}
	return leagues, rows.Err()
}

func decodeMatch(result string, ctxJSON, books, closing []byte) (*models.HistoricalMatch, error) {
	m := &models.HistoricalMatch{}
	var err error
	if m.Result, err = models.ParseOutcome(result); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ctxJSON, &m.Context); err != nil {
		return nil, fmt.Errorf("failed to decode match context: %w", err)
	}
	if len(books) > 0 {
		if err := json.Unmarshal(books, &m.Bookmakers); err != nil {
			return nil, fmt.Errorf("failed to decode bookmaker odds: %w", err)
		}
	}
	if len(closing) > 0 {
		m.ClosingOdds = &models.OutcomeOdds{}
		if err := json.Unmarshal(closing, m.ClosingOdds); err != nil {
			return nil, fmt.Errorf("failed to decode closing odds: %w", err)
		}
	}
	return m, nil
}
