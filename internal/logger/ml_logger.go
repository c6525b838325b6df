// Package logger provides ML-specific logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// MLLogger provides dedicated logging for ensemble training.
type MLLogger struct {
	*logrus.Entry
}

// NewMLLogger creates a new ML logger.
func NewMLLogger(baseLogger *logrus.Logger) *MLLogger {
	return &MLLogger{
		Entry: baseLogger.WithField("component", "ml"),
	}
}

// LogTrainingStarted logs the start of a stacking training run.
func (ml *MLLogger) LogTrainingStarted(league string, samples, features, folds int, learners []string) {
	ml.WithFields(logrus.Fields{
		"league":   league,
		"samples":  samples,
		"features": features,
		"folds":    folds,
		"learners": learners,
	}).Info("Ensemble training started")
}

// LogLearnerOOF logs the out-of-fold score of a base learner.
func (ml *MLLogger) LogLearnerOOF(learner string, logLoss, brier float64, duration time.Duration) {
	ml.WithFields(logrus.Fields{
		"learner":     learner,
		"oof_logloss": logLoss,
		"oof_brier":   brier,
		"duration_ms": duration.Milliseconds(),
	}).Info("Base learner out-of-fold predictions complete")
}

// LogLearnerExcluded logs a base learner dropped from the bank.
func (ml *MLLogger) LogLearnerExcluded(learner, reason string) {
	ml.WithFields(logrus.Fields{
		"learner": learner,
		"reason":  reason,
	}).Warn("Base learner excluded from model bank")
}

// LogSearchTrial logs one hyperparameter search trial.
func (ml *MLLogger) LogSearchTrial(learner string, trial int, score float64, params map[string]float64) {
	ml.WithFields(logrus.Fields{
		"learner": learner,
		"trial":   trial,
		"score":   score,
		"params":  params,
	}).Debug("Hyperparameter trial evaluated")
}

// LogSearchCompleted logs the best parameters found for a learner.
func (ml *MLLogger) LogSearchCompleted(learner string, trials int, bestScore float64, best map[string]float64) {
	ml.WithFields(logrus.Fields{
		"learner":     learner,
		"trials":      trials,
		"best_score":  bestScore,
		"best_params": best,
	}).Info("Hyperparameter search completed")
}

// LogTrainingCompleted logs the outcome of a training run.
func (ml *MLLogger) LogTrainingCompleted(league, version string, survivors int, metaLogLoss, metaBrier float64, duration time.Duration) {
	ml.WithFields(logrus.Fields{
		"league":        league,
		"version":       version,
		"survivors":     survivors,
		"meta_logloss":  metaLogLoss,
		"meta_brier":    metaBrier,
		"duration_secs": duration.Seconds(),
	}).Info("Ensemble training completed")
}

// LogTrainingFailed logs an aborted training run.
func (ml *MLLogger) LogTrainingFailed(league string, err error) {
	ml.WithFields(logrus.Fields{
		"league": league,
		"error":  err.Error(),
	}).Error("Ensemble training failed")
}
