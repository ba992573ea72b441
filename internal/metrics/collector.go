// Package metrics exposes prometheus collectors for the broadcast path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Modes reported by the mode gauge.
var modes = []string{"disabled", "active", "paused"}

// Collector owns its registry so several instances can coexist in tests.
type Collector struct {
	reg *prometheus.Registry

	utterances       *prometheus.CounterVec
	datagramsSent    prometheus.Counter
	datagramsDrop    prometheus.Counter
	bytesSent        prometheus.Counter
	toggles          *prometheus.CounterVec
	reconfigurations *prometheus.CounterVec
	mode             *prometheus.GaugeVec
}

// NewCollector registers the speechspy collectors plus the Go runtime and
// process collectors under namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		reg: reg,
		utterances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Utterances seen by the interceptor, by outcome.",
		}, []string{"outcome"}),
		datagramsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Datagrams handed to the kernel.",
		}),
		datagramsDrop: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_dropped_total",
			Help:      "Datagrams dropped on a transmit error.",
		}),
		bytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_bytes_total",
			Help:      "Payload bytes sent.",
		}),
		toggles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggles_total",
			Help:      "Toggle commands, by resulting mode.",
		}, []string{"to"}),
		reconfigurations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconfigurations_total",
			Help:      "Config applications, by result.",
		}, []string{"result"}),
		mode: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "1 for the current broadcast mode, 0 otherwise.",
		}, []string{"mode"}),
	}
}

// Registry is the gatherer served on /metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) DatagramSent(bytes int) {
	c.datagramsSent.Inc()
	c.bytesSent.Add(float64(bytes))
}

func (c *Collector) DatagramDropped() { c.datagramsDrop.Inc() }

// Utterance records whether an utterance was broadcast or skipped.
func (c *Collector) Utterance(outcome string) { c.utterances.WithLabelValues(outcome).Inc() }

func (c *Collector) Toggled(to string) { c.toggles.WithLabelValues(to).Inc() }

// Reconfigured records an apply result and the mode it produced.
func (c *Collector) Reconfigured(ok bool, mode string) {
	result := "ok"
	if !ok {
		result = "invalid"
	}
	c.reconfigurations.WithLabelValues(result).Inc()
	c.SetMode(mode)
}

func (c *Collector) SetMode(mode string) {
	for _, m := range modes {
		v := 0.0
		if m == mode {
			v = 1
		}
		c.mode.WithLabelValues(m).Set(v)
	}
}
