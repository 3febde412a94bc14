package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetPlanState(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetPlanState("loading")
	m.SetPlanState("loaded")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanState.WithLabelValues("loaded")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PlanState.WithLabelValues("loading")))
}

func TestCountersRegisterOnSeparateRegistries(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.PlanFetches.WithLabelValues(FetchLoaded).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.PlanFetches.WithLabelValues(FetchLoaded)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PlanFetches.WithLabelValues(FetchLoaded)))
}
