package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// OutcomePruner deletes settled outcomes older than a cutoff.
type OutcomePruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// PruneOutcomes removes settled outcomes older than retention. A zero
// retention keeps everything.
func PruneOutcomes(ctx context.Context, pruner OutcomePruner, retention time.Duration, now time.Time, log *logrus.Logger) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-retention)
	removed, err := pruner.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.WithFields(logrus.Fields{
		"removed": removed,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("Pruned settled outcomes")
	return removed, nil
}
