// Package logger provides audit logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogArtifactRegistered logs a newly registered candidate artifact.
func (al *AuditLogger) LogArtifactRegistered(league, version, schemaVersion string, sampleCount int, excluded []string) {
	al.WithFields(logrus.Fields{
		"league":            league,
		"version":           version,
		"schema_version":    schemaVersion,
		"sample_count":      sampleCount,
		"excluded_learners": excluded,
	}).Info("Model artifact registered")
}

// LogPromotionDecision logs whether a candidate replaced the live artifact.
func (al *AuditLogger) LogPromotionDecision(league, candidate, live string, promoted bool, candidateBrier, liveBrier float64, reason string) {
	entry := al.WithFields(logrus.Fields{
		"league":          league,
		"candidate":       candidate,
		"live":            live,
		"promoted":        promoted,
		"candidate_brier": candidateBrier,
		"live_brier":      liveBrier,
		"reason":          reason,
	})
	if promoted {
		entry.Info("Model artifact promoted")
		return
	}
	entry.Warn("Model artifact promotion rejected")
}

// LogRollback logs a manual rollback to a retired artifact.
func (al *AuditLogger) LogRollback(league, from, to string) {
	al.WithFields(logrus.Fields{
		"league": league,
		"from":   from,
		"to":     to,
	}).Warn("Model artifact rolled back")
}

// LogBaselineFallback logs a prediction served from the historical baseline.
func (al *AuditLogger) LogBaselineFallback(league, matchID string, cause error) {
	fields := logrus.Fields{
		"league":   league,
		"match_id": matchID,
	}
	if cause != nil {
		fields["cause"] = cause.Error()
	}
	al.WithFields(fields).Warn("Serving baseline prediction")
}

// LogStakeRecommendation logs a sized bet.
func (al *AuditLogger) LogStakeRecommendation(matchID, outcome, bookmaker, tier string, odds, edge, stake, bankrollFraction float64) {
	al.WithFields(logrus.Fields{
		"match_id":          matchID,
		"outcome":           outcome,
		"bookmaker":         bookmaker,
		"tier":              tier,
		"odds":              odds,
		"edge":              edge,
		"stake":             stake,
		"bankroll_fraction": bankrollFraction,
	}).Info("Stake recommendation issued")
}
