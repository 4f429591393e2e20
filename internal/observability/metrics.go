// Package observability exposes upload activity as Prometheus metrics.
package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"geminikit/internal/core"
	"geminikit/internal/upload"
)

const namespace = "geminikit"

// PrometheusHooks records upload metrics. It implements upload.Hooks.
type PrometheusHooks struct {
	UploadsStarted prometheus.Counter
	UploadsTotal   *prometheus.CounterVec
	UploadDuration prometheus.Histogram
	UploadedBytes  prometheus.Counter
	ChunksTotal    *prometheus.CounterVec
	ChunkDuration  prometheus.Histogram
}

var _ upload.Hooks = (*PrometheusHooks)(nil)

// NewPrometheusHooks registers the upload metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusHooks{
		UploadsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "started_total",
			Help:      "Uploads that passed file inspection",
		}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "finished_total",
			Help:      "Finished uploads by result; result is \"success\" or the error type",
		}, []string{"result"}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "duration_seconds",
			Help:      "Wall time of an upload from inspection to finalize",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		UploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "bytes_total",
			Help:      "Bytes acknowledged by the upload endpoint",
		}),
		ChunksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "chunks_total",
			Help:      "Acknowledged chunks by command",
		}, []string{"command"}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "chunk_duration_seconds",
			Help:      "Round trip time of one chunk request",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// UploadStarted implements upload.Hooks.
func (h *PrometheusHooks) UploadStarted(upload.Info) {
	h.UploadsStarted.Inc()
}

// ChunkSent implements upload.Hooks.
func (h *PrometheusHooks) ChunkSent(bytes int64, final bool, elapsed time.Duration) {
	command := "upload"
	if final {
		command = "finalize"
	}
	h.ChunksTotal.WithLabelValues(command).Inc()
	h.UploadedBytes.Add(float64(bytes))
	h.ChunkDuration.Observe(elapsed.Seconds())
}

// UploadFinished implements upload.Hooks.
func (h *PrometheusHooks) UploadFinished(err error, elapsed time.Duration) {
	h.UploadsTotal.WithLabelValues(resultLabel(err)).Inc()
	h.UploadDuration.Observe(elapsed.Seconds())
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	var e *core.Error
	if errors.As(err, &e) {
		return string(e.Type)
	}
	return "unknown"
}
