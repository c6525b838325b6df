// Package logger provides calibration logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// CalibrationLogger logs calibration cycles of a single artifact.
type CalibrationLogger struct {
	*logrus.Entry
}

// NewCalibrationLogger creates a calibration logger scoped to an artifact version.
func NewCalibrationLogger(baseLogger *logrus.Logger, league, version string) *CalibrationLogger {
	return &CalibrationLogger{
		Entry: baseLogger.WithFields(logrus.Fields{
			"component": "calibration",
			"league":    league,
			"version":   version,
		}),
	}
}

// LogTransition logs a state machine transition.
func (cl *CalibrationLogger) LogTransition(from, to string, samples int) {
	cl.WithFields(logrus.Fields{
		"from":    from,
		"to":      to,
		"samples": samples,
	}).Debug("Calibration state transition")
}

// LogDeployed logs a new curve going live.
func (cl *CalibrationLogger) LogDeployed(method string, samples int, currentBrier, newBrier, currentLogLoss, newLogLoss float64) {
	cl.WithFields(logrus.Fields{
		"method":          method,
		"samples":         samples,
		"current_brier":   currentBrier,
		"new_brier":       newBrier,
		"current_logloss": currentLogLoss,
		"new_logloss":     newLogLoss,
	}).Info("Calibration curve deployed")
}

// LogRejected logs a discarded refit together with its reason code.
func (cl *CalibrationLogger) LogRejected(reason string, samples int, currentBrier, newBrier float64) {
	cl.WithFields(logrus.Fields{
		"reason":        reason,
		"samples":       samples,
		"current_brier": currentBrier,
		"new_brier":     newBrier,
	}).Warn("CalibrationRejected")
}
