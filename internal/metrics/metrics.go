// Package metrics exposes Prometheus metrics for rooms, bets and the
// transcript classifier.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RoomsCreated   prometheus.Counter
	Joins          prometheus.Counter
	BetTransitions *prometheus.CounterVec
	Wagers         *prometheus.CounterVec
	PointsSettled  *prometheus.CounterVec
	Decisions      *prometheus.CounterVec
	Confidence     *prometheus.HistogramVec
	TxConflicts    *prometheus.CounterVec
	Fanout         *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smallbets_rooms_created_total",
			Help: "Rooms created",
		}),
		Joins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smallbets_joins_total",
			Help: "Participants that joined a room",
		}),
		BetTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smallbets_bet_transitions_total",
				Help: "Bet status changes by target status and actor",
			},
			[]string{"to", "actor"},
		),
		Wagers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smallbets_wagers_total",
				Help: "Wager attempts by outcome",
			},
			[]string{"outcome"},
		),
		PointsSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smallbets_points_settled_total",
				Help: "Points credited or reversed by settlement",
			},
			[]string{"kind"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smallbets_automation_decisions_total",
				Help: "Transcript classifier decisions",
			},
			[]string{"action", "review"},
		),
		Confidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smallbets_automation_confidence",
				Help:    "Classifier confidence (0-1)",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"action"},
		),
		TxConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smallbets_version_conflicts_total",
				Help: "Operations rejected with a version conflict",
			},
			[]string{"op"},
		),
		Fanout: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smallbets_fanout_events_total",
				Help: "Events published to connected clients",
			},
			[]string{"event"},
		),
	}

	registry.MustRegister(
		m.RoomsCreated,
		m.Joins,
		m.BetTransitions,
		m.Wagers,
		m.PointsSettled,
		m.Decisions,
		m.Confidence,
		m.TxConflicts,
		m.Fanout,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordTransition(to, actor string) {
	m.BetTransitions.WithLabelValues(to, actor).Inc()
}

func (m *Metrics) RecordWager(outcome string) {
	m.Wagers.WithLabelValues(outcome).Inc()
}

// RecordSettlement adds credited points, or reversed points on undo.
func (m *Metrics) RecordSettlement(kind string, points int) {
	if points > 0 {
		m.PointsSettled.WithLabelValues(kind).Add(float64(points))
	}
}

func (m *Metrics) RecordDecision(action string, review bool, confidence float64) {
	r := "false"
	if review {
		r = "true"
	}
	m.Decisions.WithLabelValues(action, r).Inc()
	m.Confidence.WithLabelValues(action).Observe(confidence)
}

func (m *Metrics) RecordConflict(op string) {
	m.TxConflicts.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordFanout(event string) {
	m.Fanout.WithLabelValues(event).Inc()
}
