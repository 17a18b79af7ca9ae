// Package metrics provides Prometheus metrics for directory scans.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan holds the collectors updated by the scanner. A nil *Scan records
// nothing, so callers never need to check.
type Scan struct {
	files    prometheus.Counter
	dirs     prometheus.Counter
	bytes    prometheus.Counter
	warnings prometheus.Counter
	active   prometheus.Gauge
	duration *prometheus.HistogramVec
}

// NewScan creates the scan collectors and registers them with reg.
func NewScan(reg prometheus.Registerer) *Scan {
	m := &Scan{
		files: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sizeview_scan_files_total",
			Help: "Total number of non-directory entries measured",
		}),
		dirs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sizeview_scan_dirs_total",
			Help: "Total number of directories listed",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sizeview_scan_bytes_total",
			Help: "Total bytes accounted by scans",
		}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sizeview_scan_warnings_total",
			Help: "Entries that could only be scanned partially",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sizeview_scan_active_tasks",
			Help: "Scan tasks currently running concurrently",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sizeview_scan_duration_seconds",
			Help:    "Time to scan a directory tree",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.files, m.dirs, m.bytes, m.warnings, m.active, m.duration)
	}
	return m
}

func (m *Scan) RecordFile(size uint64) {
	if m == nil {
		return
	}
	m.files.Inc()
	m.bytes.Add(float64(size))
}

func (m *Scan) RecordDir(size uint64) {
	if m == nil {
		return
	}
	m.dirs.Inc()
	m.bytes.Add(float64(size))
}

func (m *Scan) RecordWarning() {
	if m == nil {
		return
	}
	m.warnings.Inc()
}

func (m *Scan) TaskStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Scan) TaskDone() {
	if m == nil {
		return
	}
	m.active.Dec()
}

// RecordScan observes a finished scan.
func (m *Scan) RecordScan(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.duration.WithLabelValues(result).Observe(d.Seconds())
}

// Handler returns the metrics HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
