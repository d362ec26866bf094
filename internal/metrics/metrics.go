package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TrainRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tankai_train_runs_total",
		Help: "Total training pipeline runs",
	})
	TrainFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tankai_train_failures_total",
		Help: "Training runs that ended without artifacts",
	})
	Fallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tankai_fallbacks_total",
		Help: "Runs that trained on synthetic rows, by reason",
	}, []string{"reason"})
	PlaceholderExports = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tankai_placeholder_exports_total",
		Help: "Runs that exported the placeholder model",
	})
	RegistryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tankai_registry_failures_total",
		Help: "Artifact registry writes that failed",
	})
	PublishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tankai_publish_failures_total",
		Help: "Artifact uploads that failed",
	})
	TrainDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tankai_train_duration_seconds",
		Help:    "Model fitting duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	ArtifactBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tankai_artifact_bytes",
		Help: "Size of the last written artifact, by type",
	}, []string{"type"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tankai_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tankai_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(TrainRuns, TrainFailures, Fallbacks, PlaceholderExports,
		RegistryFailures, PublishFailures, TrainDuration, ArtifactBytes, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// WriteTextfile dumps the default registry for the node_exporter textfile collector.
// Batch runs exit before a scrape, so this is how their counters survive.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// ObserveTrainDuration records a fit duration.
func ObserveTrainDuration(start time.Time) {
	TrainDuration.Observe(time.Since(start).Seconds())
}

func IncFallback(reason string)          { Fallbacks.WithLabelValues(reason).Inc() }
func IncCommandRun(cmd string)           { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string)         { CommandErrors.WithLabelValues(cmd).Inc() }
func SetArtifactBytes(typ string, n int) { ArtifactBytes.WithLabelValues(typ).Set(float64(n)) }
