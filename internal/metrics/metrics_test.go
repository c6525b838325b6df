package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	return 0
}

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
	assert.Same(t, registry, InitRegistry())
}

func TestRecordPrediction(t *testing.T) {
	InitRegistry()

	before := value(t, PredictionsTotal.WithLabelValues("EPL", "baseline"))
	RecordPrediction("EPL", true, 0.01)
	RecordPrediction("EPL", false, 0.02)

	assert.Equal(t, before+1, value(t, PredictionsTotal.WithLabelValues("EPL", "baseline")))
}

func TestRecordOutcomeSettled(t *testing.T) {
	tests := []struct {
		name   string
		routed bool
		label  string
	}{
		{name: "routed to calibrator", routed: true, label: "true"},
		{name: "stale artifact", routed: false, label: "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := value(t, OutcomesSettledTotal.WithLabelValues("LaLiga", tt.label))
			RecordOutcomeSettled("LaLiga", tt.routed)
			assert.Equal(t, before+1, value(t, OutcomesSettledTotal.WithLabelValues("LaLiga", tt.label)))
		})
	}
}

func TestRecordHelpersDoNotPanic(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordPredictionError("timeout")
		RecordValueBet("premium")
		RecordStake(0.02)
		RecordSinkError("kafka")
		RecordRetrainingRun("EPL", "promoted")
		UpdateLiveArtifacts(3)
		RecordBacktestRun("EPL", "success", 1.2)
		UpdateBacktestROI("EPL", 0.04)
	})
	assert.Equal(t, 3.0, value(t, LiveArtifacts))
	assert.Equal(t, 0.04, value(t, BacktestROI.WithLabelValues("EPL")))
}

func TestHandler(t *testing.T) {
	InitRegistry()
	RecordValueBet("value")

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "matchedge_value_bets_total"))
}
