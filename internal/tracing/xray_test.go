package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledSegmentsAreNoops(t *testing.T) {
	log, _ := test.NewNullLogger()
	require.NoError(t, Initialize(Config{ServiceName: "matchedge"}, log))
	assert.False(t, Enabled())

	ctx := context.Background()
	traced, seg := StartSegment(ctx, "predict")
	assert.Nil(t, seg)
	assert.Equal(t, ctx, traced)

	assert.NotPanics(t, func() {
		seg.Annotate("league", "EPL")
		seg.Metadata("bets", 2)
		seg.End(errors.New("boom"))
	})
}

func TestInitializeRejectsSamplingRate(t *testing.T) {
	log, _ := test.NewNullLogger()
	err := Initialize(Config{Enabled: true, SamplingRate: 1.5}, log)
	assert.Error(t, err)
	assert.False(t, Enabled())
}

func TestSamplingRules(t *testing.T) {
	strategy, err := samplingRules(0.05)
	require.NoError(t, err)
	assert.NotNil(t, strategy)
}
