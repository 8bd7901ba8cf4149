package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records board events in Prometheus metrics.
type PromSink struct {
	actions       *prometheus.CounterVec
	actionLatency *prometheus.HistogramVec
	writes        *prometheus.CounterVec
	reloads       *prometheus.CounterVec
	reloadLatency prometheus.Histogram
	cards         prometheus.Gauge
}

// NewPromSink registers board metrics on reg. A nil registerer defaults to the
// global Prometheus registerer. Collectors that are already registered are
// reused, so several sinks may share one registry.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_actions_total",
			Help: "Board actions by name and result",
		}, []string{"action", "result"}),
		actionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "board_action_duration_seconds",
			Help:    "Wall time of board actions including every store round trip",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_store_writes_total",
			Help: "Single-row store writes",
		}, []string{"op", "result"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_sync_reloads_total",
			Help: "Full week reloads triggered by change notifications",
		}, []string{"result"}),
		reloadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "board_sync_reload_duration_seconds",
			Help:    "Time spent re-fetching the week window",
			Buckets: prometheus.DefBuckets,
		}),
		cards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "board_week_cards",
			Help: "Cards in the last loaded week window",
		}),
	}

	var err error
	if s.actions, err = register(reg, s.actions); err != nil {
		return nil, err
	}
	if s.actionLatency, err = register(reg, s.actionLatency); err != nil {
		return nil, err
	}
	if s.writes, err = register(reg, s.writes); err != nil {
		return nil, err
	}
	if s.reloads, err = register(reg, s.reloads); err != nil {
		return nil, err
	}
	if s.reloadLatency, err = register(reg, s.reloadLatency); err != nil {
		return nil, err
	}
	if s.cards, err = register(reg, s.cards); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordAction(action, result string, took time.Duration) {
	s.actions.WithLabelValues(action, result).Inc()
	s.actionLatency.WithLabelValues(action).Observe(took.Seconds())
}

func (s *PromSink) RecordStoreWrite(op string, err error) {
	s.writes.WithLabelValues(op, resultOf(err)).Inc()
}

func (s *PromSink) RecordReload(cards int, err error, took time.Duration) {
	s.reloads.WithLabelValues(resultOf(err)).Inc()
	s.reloadLatency.Observe(took.Seconds())
	if err == nil {
		s.cards.Set(float64(cards))
	}
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
