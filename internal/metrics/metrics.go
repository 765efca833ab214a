// Package metrics exposes a nanny's events and flags to Prometheus.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/cachenanny/pkg/events"
	"github.com/bft-labs/cachenanny/pkg/nanny"
)

// Source is the part of a nanny.Manager the collector observes.
type Source interface {
	On(typ string, fn events.Handler) *events.Subscription
	IsCheckingForUpdates() bool
	HasNetworkError() bool
	HasUpdate() bool
}

// Collector counts nanny events and mirrors its flags as gauges.
type Collector struct {
	events       *prometheus.CounterVec
	checking     prometheus.Gauge
	networkError prometheus.Gauge
	updateReady  prometheus.Gauge
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cachenanny",
				Name:      "events_total",
				Help:      "Total number of events emitted by the nanny",
			},
			[]string{"event"},
		),
		checking: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cachenanny",
			Name:      "checking",
			Help:      "1 while the nanny polls for updates",
		}),
		networkError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cachenanny",
			Name:      "network_error",
			Help:      "1 while the manifest is unreachable",
		}),
		updateReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cachenanny",
			Name:      "update_ready",
			Help:      "1 once an update has been downloaded",
		}),
	}

	for _, col := range []prometheus.Collector{c.events, c.checking, c.networkError, c.updateReady} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

// Attach subscribes to every event src can emit. Handlers run wherever src
// emits, so the flags are read on the same goroutine that changes them.
func (c *Collector) Attach(src Source) []*events.Subscription {
	types := nanny.EventTypes()
	subs := make([]*events.Subscription, 0, len(types))
	for _, typ := range types {
		subs = append(subs, src.On(typ, func(ev events.Event) {
			c.events.WithLabelValues(ev.Type).Inc()
			c.sync(src)
		}))
	}
	c.sync(src)
	return subs
}

func (c *Collector) sync(src Source) {
	c.checking.Set(boolToFloat(src.IsCheckingForUpdates()))
	c.networkError.Set(boolToFloat(src.HasNetworkError()))
	c.updateReady.Set(boolToFloat(src.HasUpdate()))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
