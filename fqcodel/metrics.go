// Copyright 2026 The Netqdisc Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fqcodel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type dropReason int

const (
	dropReasonOverlimit dropReason = iota
	dropReasonOvermemory
	dropReasonCodel
	dropReasonBypass
	dropReasonCollision
	dropReasonReconfig

	dropReasonCount
)

var dropReasonNames = [dropReasonCount]string{
	"overlimit", "overmemory", "codel", "bypass", "collision", "reconfig",
}

// Metrics defines the prometheus metrics of a scheduler. A nil *Metrics on
// the Config disables metric updates entirely.
type Metrics struct {
	EnqueuedPackets prometheus.Counter
	EnqueuedBytes   prometheus.Counter
	DequeuedPackets prometheus.Counter
	DequeuedBytes   prometheus.Counter
	DroppedPackets  *prometheus.CounterVec
	ECNMarks        prometheus.Counter
	CEMarks         prometheus.Counter
	NewFlows        prometheus.Counter
	QueueLength     prometheus.Gauge
	QueuedBytes     prometheus.Gauge
	MemoryUsage     prometheus.Gauge

	// drops holds the per-reason counters resolved once, to keep label
	// lookups off the packet path.
	drops [dropReasonCount]prometheus.Counter
}

// NewMetrics initializes the scheduler metrics and registers them with the
// given registerer, or the default registry if nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{
		EnqueuedPackets: factory.NewCounter(prometheus.CounterOpts{
			Name: "fqcodel_enqueued_pkts_total",
			Help: "Total number of packets accepted by the scheduler.",
		}),
		EnqueuedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "fqcodel_enqueued_bytes_total",
			Help: "Total number of bytes accepted by the scheduler.",
		}),
		DequeuedPackets: factory.NewCounter(prometheus.CounterOpts{
			Name: "fqcodel_dequeued_pkts_total",
			Help: "Total number of packets released by the scheduler.",
		}),
		DequeuedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "fqcodel_dequeued_bytes_total",
			Help: "Total number of bytes released by the scheduler.",
		}),
		DroppedPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fqcodel_dropped_pkts_total",
			Help: "Total number of packets dropped by the scheduler.",
		}, []string{"reason"}),
		ECNMarks: factory.NewCounter(prometheus.CounterOpts{
			Name: "fqcodel_ecn_marks_total",
			Help: "Total number of packets ECN-marked instead of dropped.",
		}),
		CEMarks: factory.NewCounter(prometheus.CounterOpts{
			Name: "fqcodel_ce_marks_total",
			Help: "Total number of packets marked by the CE threshold.",
		}),
		NewFlows: factory.NewCounter(prometheus.CounterOpts{
			Name: "fqcodel_new_flows_total",
			Help: "Total number of flow activations onto the new-flows list.",
		}),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fqcodel_queue_length_pkts",
			Help: "Packets currently queued.",
		}),
		QueuedBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fqcodel_queue_backlog_bytes",
			Help: "Bytes currently queued.",
		}),
		MemoryUsage: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fqcodel_memory_usage_bytes",
			Help: "Memory currently consumed by queued packets.",
		}),
	}
	for r := dropReason(0); r < dropReasonCount; r++ {
		m.drops[r] = m.DroppedPackets.WithLabelValues(dropReasonNames[r])
	}
	return m
}

// syncGauges publishes the occupancy gauges. Caller holds the mutex.
func (s *Sched) syncGauges() {
	s.metrics.QueueLength.Set(float64(s.qlen))
	s.metrics.QueuedBytes.Set(float64(s.backlog))
	s.metrics.MemoryUsage.Set(float64(s.memoryUsage))
}
