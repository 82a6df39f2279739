// ============================================================================
// procsim metrics - Prometheus instrumentation
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: count products and segments, time product generation
//
// Metrics:
//
//   1. Counters:
//      - procsim_products_generated_total{type,status}
//      - procsim_products_failed_total{type}
//      - procsim_segments_total{status}   segments planned, by edge status
//
//   2. Histogram:
//      - procsim_product_generation_seconds
//        buckets: prometheus.DefBuckets
//
//   3. Gauges:
//      - procsim_tasks_in_flight          product tasks currently executing
//      - procsim_last_run_duration_seconds
//
// Example queries:
//
//   # products per minute, by type
//   sum by (type) (rate(procsim_products_generated_total[1m]))
//
//   # share of merged edge segments
//   procsim_segments_total{status="MERGED"} / ignoring(status) sum(procsim_segments_total)
//
// HTTP:
//   Served on /metrics by Serve when metrics.enabled is set.
//
// ============================================================================

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ChuLiYu/procsim/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the simulator's Prometheus metrics
type Collector struct {
	productsGenerated *prometheus.CounterVec
	productsFailed    *prometheus.CounterVec
	segments          *prometheus.CounterVec

	generationTime prometheus.Histogram

	tasksInFlight   prometheus.Gauge
	lastRunDuration prometheus.Gauge
}

// NewCollector creates the metrics and registers them with reg, or with
// prometheus.DefaultRegisterer when reg is nil. Registering twice on the
// same registry panics.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		productsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procsim_products_generated_total",
			Help: "Total number of products written, by product type and segment status",
		}, []string{"type", "status"}),
		productsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procsim_products_failed_total",
			Help: "Total number of products whose generation failed",
		}, []string{"type"}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procsim_segments_total",
			Help: "Total number of segments planned, by status",
		}, []string{"status"}),
		generationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "procsim_product_generation_seconds",
			Help:    "Time spent generating one product",
			Buckets: prometheus.DefBuckets,
		}),
		tasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procsim_tasks_in_flight",
			Help: "Current number of product tasks executing",
		}),
		lastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procsim_last_run_duration_seconds",
			Help: "Wall time of the most recent job order run",
		}),
	}

	reg.MustRegister(
		c.productsGenerated,
		c.productsFailed,
		c.segments,
		c.generationTime,
		c.tasksInFlight,
		c.lastRunDuration,
	)
	return c
}

// RecordSegments counts planned segments by status
func (c *Collector) RecordSegments(segs []types.Segment) {
	for _, s := range segs {
		c.segments.WithLabelValues(string(s.Status)).Inc()
	}
}

// TaskStarted marks a product task as executing
func (c *Collector) TaskStarted() {
	c.tasksInFlight.Inc()
}

// RecordGenerated records a written product and its generation time
func (c *Collector) RecordGenerated(productType string, status types.Status, elapsed time.Duration) {
	c.tasksInFlight.Dec()
	c.productsGenerated.WithLabelValues(productType, string(status)).Inc()
	c.generationTime.Observe(elapsed.Seconds())
}

// RecordFailed records a product whose generation failed
func (c *Collector) RecordFailed(productType string) {
	c.tasksInFlight.Dec()
	c.productsFailed.WithLabelValues(productType).Inc()
}

// SetRunDuration records how long a job order took
func (c *Collector) SetRunDuration(d time.Duration) {
	c.lastRunDuration.Set(d.Seconds())
}

// Serve exposes /metrics for gatherer on port until ctx is cancelled
func Serve(ctx context.Context, port int, gatherer prometheus.Gatherer) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
