package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PROCESSING_TIME     = "layerProcessingTime"
	LAYERS_PEELED       = "layersPeeled"
	MESSAGES_SENT       = "messagesSent"
	MESSAGES_RECEIVED   = "messagesReceived"
	FORWARDING_FAILURES = "forwardingFailures"
	REGISTERED_NODES    = "registeredNodes"
)

var collectors = map[string]prometheus.Collector{
	PROCESSING_TIME: prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    PROCESSING_TIME,
		Help:    "Time taken by a relay to peel one layer, in seconds",
		Buckets: prometheus.DefBuckets,
	}),
	LAYERS_PEELED: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: LAYERS_PEELED,
			Help: "Number of layers handled by relays, by outcome",
		},
		[]string{"relay", "outcome"},
	),
	MESSAGES_SENT: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MESSAGES_SENT,
			Help: "Number of onions sent by users",
		},
		[]string{"user"},
	),
	MESSAGES_RECEIVED: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MESSAGES_RECEIVED,
			Help: "Number of final messages delivered to users",
		},
		[]string{"user"},
	),
	FORWARDING_FAILURES: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: FORWARDING_FAILURES,
			Help: "Number of sends whose next hop was unreachable or refused",
		},
		[]string{"from"},
	),
	REGISTERED_NODES: prometheus.NewGauge(prometheus.GaugeOpts{
		Name: REGISTERED_NODES,
		Help: "Number of nodes in the registry",
	}),
}

var (
	registry     = prometheus.NewRegistry()
	registerOnce sync.Once
)

func register() {
	registerOnce.Do(func() {
		for _, c := range collectors {
			registry.MustRegister(c)
		}
	})
}

// Observe records a value on a histogram.
func Observe(id string, value float64) {
	register()
	if collector, ok := collectors[id].(prometheus.Observer); ok {
		collector.Observe(value)
	} else {
		slog.Error("Failed to find histogram", "id", id)
	}
}

// Inc increments a counter, or a labelled counter when labels are given.
func Inc(id string, labels ...any) {
	register()
	if len(labels) == 0 {
		if collector, ok := collectors[id].(prometheus.Counter); ok {
			collector.Inc()
		} else {
			slog.Error("Failed to find counter", "id", id)
		}
		return
	}
	if collector, ok := collectors[id].(*prometheus.CounterVec); ok {
		values := make([]string, len(labels))
		for i, label := range labels {
			values[i] = fmt.Sprintf("%v", label)
		}
		collector.WithLabelValues(values...).Inc()
	} else {
		slog.Error("Failed to find counterVec", "id", id)
	}
}

// Set sets a gauge.
func Set(id string, value float64) {
	register()
	if collector, ok := collectors[id].(prometheus.Gauge); ok {
		collector.Set(value)
	} else {
		slog.Error("Failed to find gauge", "id", id)
	}
}

// Handler exposes the collectors in the Prometheus text format.
func Handler() http.Handler {
	register()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ServeMetrics starts a /metrics endpoint on prometheusPort and returns a function that stops it.
func ServeMetrics(prometheusPort int) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", prometheusPort),
		Handler: mux,
	}

	go func(server *http.Server) {
		slog.Info("Starting Prometheus server", "Addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start Prometheus server", "err", err)
		}
	}(server)

	return func() {
		slog.Info("Shutting down Prometheus server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Prometheus server forced to shutdown", "err", err)
		} else {
			slog.Info("Prometheus server gracefully stopped")
		}
	}
}
