package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Start results recorded on backendStarts.
const (
	ResultReady      = "ready"
	ResultTimeout    = "timeout"
	ResultSpawnError = "spawn_error"
	ResultCanceled   = "canceled"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	backendStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "menu2img",
			Subsystem: "backend",
			Name:      "starts_total",
			Help:      "Backend start attempts by outcome.",
		}, []string{"result"},
	)
	backendReady = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "menu2img",
			Subsystem: "backend",
			Name:      "ready_seconds",
			Help:      "Time from spawn until the backend was detected as ready.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 7.5, 10},
		},
	)
	backendStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "menu2img",
			Subsystem: "backend",
			Name:      "stops_total",
			Help:      "Termination signals sent to the backend.",
		},
	)
	backendExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "menu2img",
			Subsystem: "backend",
			Name:      "exits_total",
			Help:      "Backend exits by exit code.",
		}, []string{"code"},
	)
	backendState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "menu2img",
			Subsystem: "backend",
			Name:      "state",
			Help:      "Current supervisor state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	outputLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "menu2img",
			Subsystem: "backend",
			Name:      "output_lines_total",
			Help:      "Lines relayed from the backend output streams.",
		}, []string{"stream"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "menu2img",
			Subsystem: "backend",
			Name:      "state_transitions_total",
			Help:      "Number of supervisor state transitions.",
		}, []string{"from", "to"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{backendStarts, backendReady, backendStops, backendExits, backendState, outputLines, stateTransitions}
	cs = append(cs, resourceCollectors()...)
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics from a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(result string) {
	if regOK.Load() {
		backendStarts.WithLabelValues(result).Inc()
	}
}

func ObserveReady(seconds float64) {
	if regOK.Load() {
		backendReady.Observe(seconds)
	}
}

func IncStop() {
	if regOK.Load() {
		backendStops.Inc()
	}
}

func IncExit(code int) {
	if regOK.Load() {
		backendExits.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

func IncOutputLine(stream string) {
	if regOK.Load() {
		outputLines.WithLabelValues(stream).Inc()
	}
}

// RecordStateTransition moves the state gauge from one state to the other.
func RecordStateTransition(from, to string) {
	if !regOK.Load() {
		return
	}
	stateTransitions.WithLabelValues(from, to).Inc()
	backendState.WithLabelValues(from).Set(0)
	backendState.WithLabelValues(to).Set(1)
}
