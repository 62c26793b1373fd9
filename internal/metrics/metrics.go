// Package metrics counts what the network daemon does. Counters live on a
// private registry so tests can build as many as they like.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "p2p_chat"

// Daemon holds the network daemon counters. A nil *Daemon records nothing.
type Daemon struct {
	registry *prometheus.Registry

	commands        *prometheus.CounterVec
	published       prometheus.Counter
	publishFailures prometheus.Counter
	received        prometheus.Counter
	admitted        *prometheus.CounterVec
	expired         prometheus.Counter
	dropped         *prometheus.CounterVec
}

// NewDaemon creates the counters and registers them on a fresh registry.
func NewDaemon() *Daemon {
	d := &Daemon{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "commands_total",
			Help:      "Commands received from the UI, by kind.",
		}, []string{"kind"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "published_total",
			Help:      "Messages handed to the gossip overlay.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "publish_failures_total",
			Help:      "Publish attempts rejected by the overlay.",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "received_total",
			Help:      "Gossip messages forwarded to the UI.",
		}),
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "admitted_total",
			Help:      "Peers added to the explicit gossip set, by reason.",
		}, []string{"reason"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "expired_total",
			Help:      "Discovered peers removed after their discovery TTL.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "events_dropped_total",
			Help:      "Overlay events the daemon does not handle, by type.",
		}, []string{"type"}),
	}
	d.registry.MustRegister(
		d.commands,
		d.published,
		d.publishFailures,
		d.received,
		d.admitted,
		d.expired,
		d.dropped,
	)
	return d
}

// Registry exposes the private registry for scraping.
func (d *Daemon) Registry() *prometheus.Registry {
	if d == nil {
		return nil
	}
	return d.registry
}

func (d *Daemon) RecordCommand(kind string) {
	if d == nil {
		return
	}
	d.commands.WithLabelValues(kind).Inc()
}

func (d *Daemon) RecordPublish(err error) {
	if d == nil {
		return
	}
	if err != nil {
		d.publishFailures.Inc()
		return
	}
	d.published.Inc()
}

func (d *Daemon) RecordReceived() {
	if d == nil {
		return
	}
	d.received.Inc()
}

func (d *Daemon) RecordAdmitted(reason string) {
	if d == nil {
		return
	}
	d.admitted.WithLabelValues(reason).Inc()
}

func (d *Daemon) RecordExpired() {
	if d == nil {
		return
	}
	d.expired.Inc()
}

func (d *Daemon) RecordDropped(kind string) {
	if d == nil {
		return
	}
	d.dropped.WithLabelValues(kind).Inc()
}
