package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := New(reg)
	m.CommandsExecuted.Inc()
	m.Throttled.WithLabelValues("user").Add(2)

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsExecuted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Throttled.WithLabelValues("user")))
}
