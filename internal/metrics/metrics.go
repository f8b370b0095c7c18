// Package metrics exposes engine operations and the busy signal to
// Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger"

// Recorder owns a private registry so tests and multiple servers in one
// process do not collide on the default one.
type Recorder struct {
	registry *prometheus.Registry

	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	busy           prometheus.Gauge
	forcedReleases prometheus.Counter

	mu              sync.Mutex
	source          BusySource
	unsubscribeBusy func()
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Engine operations by name and outcome",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Engine operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy",
			Help:      "1 while any tracked request is open",
		}),
		forcedReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_releases_total",
			Help:      "Tracked requests cleared by the safety timeout",
		}),
	}

	inFlight := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "requests_in_flight",
		Help:      "Open tracked requests",
	}, r.inFlight)

	r.registry.MustRegister(
		r.operations,
		r.duration,
		r.busy,
		inFlight,
		r.forcedReleases,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveOperation implements ledger.Observer.
func (r *Recorder) ObserveOperation(op string, outcome string, elapsed time.Duration) {
	r.operations.WithLabelValues(op, outcome).Inc()
	r.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ForcedRelease counts a safety-timeout clear. It matches the tracking
// coordinator's timeout hook.
func (r *Recorder) ForcedRelease(string) {
	r.forcedReleases.Inc()
}

// BusySource is the part of the tracking coordinator the recorder follows.
type BusySource interface {
	Subscribe(fn func(busy bool)) (cancel func())
	InFlight() int
}

// Track mirrors src into the busy gauge and reads its in-flight count at
// scrape time, until Close.
func (r *Recorder) Track(src BusySource) {
	r.Close()

	cancel := src.Subscribe(func(busy bool) {
		if busy {
			r.busy.Set(1)
		} else {
			r.busy.Set(0)
		}
	})

	r.mu.Lock()
	r.source = src
	r.unsubscribeBusy = cancel
	r.mu.Unlock()
}

// Close stops following the busy source.
func (r *Recorder) Close() {
	r.mu.Lock()
	cancel := r.unsubscribeBusy
	r.source = nil
	r.unsubscribeBusy = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (r *Recorder) inFlight() float64 {
	r.mu.Lock()
	src := r.source
	r.mu.Unlock()

	if src == nil {
		return 0
	}
	return float64(src.InFlight())
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
