package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RunsTotal.WithLabelValues("ok").Inc()
	a.RecordsComputed.Add(3)

	assert.InDelta(t, 1, testutil.ToFloat64(a.RunsTotal.WithLabelValues("ok")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(a.RecordsComputed), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.RecordsComputed), 0)
}

func TestNewUnregisteredMetrics_RepeatableAndCounting(t *testing.T) {
	a := NewUnregisteredMetrics()
	b := NewUnregisteredMetrics()

	a.RecordsComputed.Add(5)

	assert.InDelta(t, 5, testutil.ToFloat64(a.RecordsComputed), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.RecordsComputed), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(a.RecordsComputed))
}
