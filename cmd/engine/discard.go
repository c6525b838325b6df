package main

import (
	"context"

	"github.com/yourusername/matchedge/internal/models"
)

// discardMatches stands in for the match store when no database is
// configured, so ingestion still settles served predictions.
type discardMatches struct{}

func (discardMatches) UpsertBatch(ctx context.Context, matches []*models.HistoricalMatch) error {
	return nil
}
