package metrics

import (
    "fmt"
    "net/http"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/hamzaKhattat/cdr-reconciler/pkg/logger"
)

type PrometheusMetrics struct {
    counters   map[string]*prometheus.CounterVec
    histograms map[string]*prometheus.HistogramVec
    gauges     map[string]*prometheus.GaugeVec
}

func NewPrometheusMetrics() *PrometheusMetrics {
    pm := &PrometheusMetrics{
        counters:   make(map[string]*prometheus.CounterVec),
        histograms: make(map[string]*prometheus.HistogramVec),
        gauges:     make(map[string]*prometheus.GaugeVec),
    }

    // Register common metrics
    pm.registerMetrics()

    return pm
}

func (pm *PrometheusMetrics) registerMetrics() {
    // Counters
    pm.counters["jobs_processed"] = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "cdr_reconciler_jobs_processed_total",
            Help: "Total number of reconciliation jobs completed",
        },
        []string{"outcome"},
    )

    pm.counters["jobs_failed"] = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "cdr_reconciler_jobs_failed_total",
            Help: "Total number of failed reconciliation jobs",
        },
        []string{"error_code"},
    )

    pm.counters["rows_staged"] = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "cdr_reconciler_rows_staged_total",
            Help: "Total canonical rows inserted into the staging store",
        },
        []string{"side"},
    )

    pm.counters["discrepancies_found"] = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Name: "cdr_reconciler_discrepancies_found_total",
            Help: "Total discrepancies found, by type",
        },
        []string{"type"},
    )

    // Histograms
    pm.histograms["job_duration"] = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Name:    "cdr_reconciler_job_duration_seconds",
            Help:    "Wall-clock duration of a reconciliation job",
            Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
        },
        []string{},
    )

    pm.histograms["decode_duration"] = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Name:    "cdr_reconciler_decode_duration_seconds",
            Help:    "Duration of decoding and staging one input file",
            Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180},
        },
        []string{"side", "format"},
    )

    // Gauges
    pm.gauges["jobs_in_flight"] = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Name: "cdr_reconciler_jobs_in_flight",
            Help: "Current number of reconciliation jobs running",
        },
        []string{},
    )

    pm.gauges["monetary_impact"] = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Name: "cdr_reconciler_last_job_monetary_impact",
            Help: "Monetary impact of the most recently completed job",
        },
        []string{},
    )

    // Register all metrics
    for _, counter := range pm.counters {
        prometheus.MustRegister(counter)
    }
    for _, histogram := range pm.histograms {
        prometheus.MustRegister(histogram)
    }
    for _, gauge := range pm.gauges {
        prometheus.MustRegister(gauge)
    }
}

func (pm *PrometheusMetrics) IncrementCounter(name string, labels map[string]string) {
    if counter, exists := pm.counters[name]; exists {
        counter.With(prometheus.Labels(labels)).Inc()
    }
}

func (pm *PrometheusMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
    if histogram, exists := pm.histograms[name]; exists {
        histogram.With(prometheus.Labels(labels)).Observe(value)
    }
}

func (pm *PrometheusMetrics) SetGauge(name string, value float64, labels map[string]string) {
    if gauge, exists := pm.gauges[name]; exists {
        if labels == nil {
            labels = make(map[string]string)
        }
        gauge.With(prometheus.Labels(labels)).Set(value)
    }
}

func (pm *PrometheusMetrics) ServeHTTP(port int) error {
    http.Handle("/metrics", promhttp.Handler())
    addr := fmt.Sprintf(":%d", port)
    logger.WithField("addr", addr).Info("Metrics server started")
    return http.ListenAndServe(addr, nil)
}
