package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()
	require.NotNil(t, m)

	m.CounterAPIRequests.WithLabelValues("GET", "2xx").Inc()
	m.CounterAPIRequests.WithLabelValues("GET", "2xx").Inc()
	m.CounterSessionInvalidations.Inc()
	m.GaugeWatchers.Set(3)

	var metric dto.Metric
	require.NoError(t, m.CounterAPIRequests.WithLabelValues("GET", "2xx").Write(&metric))
	assert.Equal(t, 2.0, metric.GetCounter().GetValue())

	metric.Reset()
	require.NoError(t, m.CounterSessionInvalidations.Write(&metric))
	assert.Equal(t, 1.0, metric.GetCounter().GetValue())

	metric.Reset()
	require.NoError(t, m.GaugeWatchers.Write(&metric))
	assert.Equal(t, 3.0, metric.GetGauge().GetValue())

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["blogpanel_test_api_request"])
	assert.True(t, names["blogpanel_test_session_invalidations"])
}

func TestSetupPrometheus(t *testing.T) {
	reg := SetupPrometheus("blogpanel")
	require.NotNil(t, reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_build_info"])
	assert.True(t, names["go_goroutines"])

	// a second registry does not collide with the first
	assert.NotNil(t, SetupPrometheus("blogpanel"))
}
