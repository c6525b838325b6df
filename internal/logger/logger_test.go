package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		return nil
	}
	return logEntry
}

func TestNewLoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newLogger(buf, "debug", "production")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = newLogger(buf, "nonsense", "development")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
	assert.Contains(t, buf.String(), "defaulting to info")
}

func TestMLLoggerLearnerExcluded(t *testing.T) {
	log, buf := setupTestLogger()
	NewMLLogger(log).LogLearnerExcluded("extra_trees", "non-finite probabilities")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "ml", logEntry["component"])
	assert.Equal(t, "extra_trees", logEntry["learner"])
	assert.Equal(t, "warning", logEntry["level"])
}

func TestMLLoggerTrainingCompleted(t *testing.T) {
	log, buf := setupTestLogger()
	NewMLLogger(log).LogTrainingCompleted("EPL", "abc123", 4, 0.98, 0.58, 2*time.Second)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "abc123", logEntry["version"])
	assert.Equal(t, float64(4), logEntry["survivors"])
	assert.Equal(t, float64(2), logEntry["duration_secs"])
}

func TestCalibrationLoggerRejected(t *testing.T) {
	log, buf := setupTestLogger()
	NewCalibrationLogger(log, "EPL", "v1").LogRejected("insufficient_samples", 15, 0.6, 0)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "calibration", logEntry["component"])
	assert.Equal(t, "CalibrationRejected", logEntry["msg"])
	assert.Equal(t, "insufficient_samples", logEntry["reason"])
	assert.Equal(t, "v1", logEntry["version"])
}

func TestAuditLoggerPromotion(t *testing.T) {
	log, buf := setupTestLogger()
	NewAuditLogger(log).LogPromotionDecision("EPL", "new", "old", false, 0.61, 0.60, "no improvement")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, false, logEntry["promoted"])
	assert.Equal(t, "Model artifact promotion rejected", logEntry["msg"])
}

func TestAuditLoggerBaselineFallback(t *testing.T) {
	log, buf := setupTestLogger()
	NewAuditLogger(log).LogBaselineFallback("EPL", "m1", errors.New("artifact missing"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "artifact missing", logEntry["cause"])
	assert.Equal(t, "m1", logEntry["match_id"])
}
