// Package metrics — Prometheus metrics for the sync engine.
//
// Endpoint: GET /metrics (configurable address, loopback by default).
// Format: Prometheus text exposition format (OpenMetrics compatible).
//
// Metric naming convention: blesync_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
//
// Cardinality control: deviceId is NOT used as a label on unbounded
// counters — per-device detail belongs in telemetry/logs, not metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/octorelay/blesync-engine/internal/ports"
)

// Metrics holds all Prometheus metric descriptors for the sync engine.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Sync progress ────────────────────────────────────────────────────────

	// EventsDeliveredTotal counts events handed to the app across all devices.
	EventsDeliveredTotal prometheus.Counter

	// SyncsCompletedTotal counts SyncCompleted events observed.
	SyncsCompletedTotal prometheus.Counter

	// SyncsFailedTotal counts SyncFailed events, by error kind.
	SyncsFailedTotal *prometheus.CounterVec

	// ActiveActors is the current number of running device actors.
	ActiveActors prometheus.Gauge

	// ─── Transport ────────────────────────────────────────────────────────────

	// DisconnectsTotal counts Disconnected events, by reason.
	DisconnectsTotal *prometheus.CounterVec

	// RetriesScheduledTotal counts ScheduleRetry commands executed.
	RetriesScheduledTotal prometheus.Counter

	// ReadsSkippedBackpressureTotal counts reads dropped by the backpressure guard.
	ReadsSkippedBackpressureTotal prometheus.Counter

	// BreakerOpenGauge tracks how many per-stage breakers are currently Open
	// across all actors. Labels: stage (bond, connect, read, deliver, ack).
	BreakerOpenGauge *prometheus.GaugeVec

	// ─── Page sizing ──────────────────────────────────────────────────────────

	// PageSizeHistogram records the page size used for each ReadEvents call.
	PageSizeHistogram prometheus.Histogram

	// ─── Storage ──────────────────────────────────────────────────────────────

	// SnapshotWritesTotal counts StateStorePort.Write calls.
	SnapshotWritesTotal prometheus.Counter

	// SnapshotWriteFailuresTotal counts failed StateStorePort.Write calls.
	SnapshotWriteFailuresTotal prometheus.Counter

	startTime time.Time
}

// NewMetrics creates and registers all sync-engine Prometheus metrics on
// a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		EventsDeliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blesync",
			Subsystem: "sync",
			Name:      "events_delivered_total",
			Help:      "Total events handed to the app across all devices.",
		}),

		SyncsCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blesync",
			Subsystem: "sync",
			Name:      "completed_total",
			Help:      "Total SyncCompleted events observed.",
		}),

		SyncsFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blesync",
			Subsystem: "sync",
			Name:      "failed_total",
			Help:      "Total SyncFailed events, by error kind.",
		}, []string{"kind"}),

		ActiveActors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blesync",
			Subsystem: "sync",
			Name:      "active_actors",
			Help:      "Current number of running device actors.",
		}),

		DisconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blesync",
			Subsystem: "transport",
			Name:      "disconnects_total",
			Help:      "Total Disconnected events, by reason.",
		}, []string{"reason"}),

		RetriesScheduledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blesync",
			Subsystem: "transport",
			Name:      "retries_scheduled_total",
			Help:      "Total ScheduleRetry commands executed.",
		}),

		ReadsSkippedBackpressureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blesync",
			Subsystem: "transport",
			Name:      "reads_skipped_backpressure_total",
			Help:      "Total ReadEvents commands dropped by the backpressure guard.",
		}),

		BreakerOpenGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "blesync",
			Subsystem: "transport",
			Name:      "breaker_open",
			Help:      "Number of the named stage's circuit breakers currently Open across all actors.",
		}, []string{"stage"}),

		PageSizeHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blesync",
			Subsystem: "paging",
			Name:      "page_size",
			Help:      "Distribution of page sizes used for ReadEvents calls.",
			Buckets:   []float64{10, 20, 50, 100, 150, 200, 300, 500},
		}),

		SnapshotWritesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blesync",
			Subsystem: "storage",
			Name:      "snapshot_writes_total",
			Help:      "Total StateStorePort.Write calls.",
		}),

		SnapshotWriteFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blesync",
			Subsystem: "storage",
			Name:      "snapshot_write_failures_total",
			Help:      "Total failed StateStorePort.Write calls.",
		}),
	}

	reg.MustRegister(
		m.EventsDeliveredTotal,
		m.SyncsCompletedTotal,
		m.SyncsFailedTotal,
		m.ActiveActors,
		m.DisconnectsTotal,
		m.RetriesScheduledTotal,
		m.ReadsSkippedBackpressureTotal,
		m.BreakerOpenGauge,
		m.PageSizeHistogram,
		m.SnapshotWritesTotal,
		m.SnapshotWriteFailuresTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on addr. Blocks
// until ctx is cancelled or the server fails.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

// TelemetryRecorder wraps a ports.TelemetryPort, feeding every emitted
// event into the matching Prometheus metric before forwarding it (the
// engine's telemetry vocabulary, spec §6.3, is the single source this
// recorder switches on).
type TelemetryRecorder struct {
	Next ports.TelemetryPort
	M    *Metrics
}

func (r TelemetryRecorder) Emit(e ports.TelemetryEvent) {
	switch e.Name {
	case "sync_failed":
		if e.Data["stage"] == "snapshot_write" {
			// The actor reports a failed StateStorePort.Write under this
			// name; it is a write failure, not a SyncFailed event.
			r.M.SnapshotWritesTotal.Inc()
			r.M.SnapshotWriteFailuresTotal.Inc()
		} else {
			r.M.SyncsFailedTotal.WithLabelValues(e.Data["kind"]).Inc()
		}
	case "retry_scheduled":
		r.M.RetriesScheduledTotal.Inc()
	case "read_skipped_backpressure":
		r.M.ReadsSkippedBackpressureTotal.Inc()
	case "snapshot_saved":
		r.M.SnapshotWritesTotal.Inc()
	}
	if r.Next != nil {
		r.Next.Emit(e)
	}
}
