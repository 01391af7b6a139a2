package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSubmission(t *testing.T) {
	before := MetricsSnapshot()

	MetricsSubmission(3, 10)
	MetricsSubmission(3, 4)

	after := MetricsSnapshot()
	assert.Equal(t, uint32(3), after.DrawCommands)
	assert.Equal(t, uint64(4), after.Instances)
	assert.Equal(t, before.TotalSubmissions+2, after.TotalSubmissions)
	assert.Equal(t, before.TotalInstances+14, after.TotalInstances)
}

func TestMetricsFrameAverage(t *testing.T) {
	for i := uint8(0); i < AVG_COUNT; i++ {
		MetricsUpdate(0.004)
	}
	_, frameTime := MetricsFrame()
	assert.InDelta(t, 4.0, frameTime, 1e-9)
	assert.InDelta(t, 4.0, MetricsFrameTime(), 1e-9)
}
