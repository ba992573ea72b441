package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatagramCounters(t *testing.T) {
	c := NewCollector("test")
	c.DatagramSent(11)
	c.DatagramSent(4)
	c.DatagramDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.datagramsSent))
	assert.Equal(t, 15.0, testutil.ToFloat64(c.bytesSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.datagramsDrop))
}

func TestModeGaugeIsOneHot(t *testing.T) {
	c := NewCollector("test")
	c.Reconfigured(true, "active")
	c.Reconfigured(false, "disabled")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.mode.WithLabelValues("disabled")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.mode.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reconfigurations.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reconfigurations.WithLabelValues("ok")))
}

func TestRegistryExposesNamespace(t *testing.T) {
	c := NewCollector("speechspy")
	c.Toggled("paused")
	c.Utterance("sent")

	expected := `
# HELP speechspy_toggles_total Toggle commands, by resulting mode.
# TYPE speechspy_toggles_total counter
speechspy_toggles_total{to="paused"} 1
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "speechspy_toggles_total"))

	// separate collectors do not collide
	require.NotPanics(t, func() { NewCollector("speechspy") })
}
