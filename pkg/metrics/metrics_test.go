package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	InitMetrics()
	InitMetrics()

	before := testutil.ToFloat64(turnsTotal.WithLabelValues("completed"))
	RecordTurn("completed", 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(turnsTotal.WithLabelValues("completed")))

	RecordNodeFailure("useTool")
	assert.GreaterOrEqual(t, testutil.ToFloat64(nodeFailuresTotal.WithLabelValues("useTool")), 1.0)

	SetWaitingSessions(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(waitingSessions))
}
