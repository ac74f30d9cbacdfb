// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics provides the OpenTelemetry-backed ObservabilityRecorder
// used by the routing package, exporting through a per-recorder Prometheus
// registry.
//
//	rec := metrics.MustNew(metrics.WithServiceName("api"))
//	r := routing.MustNew(routing.WithObservabilityRecorder(rec))
//	http.Handle("/metrics", rec.Handler())
//
// Recorded label sets use the matched route template, not the raw path, so
// cardinality stays bounded by the route table.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"rivaas.dev/routing"
)

// Recorder implements routing.ObservabilityRecorder over OpenTelemetry
// instruments with a Prometheus exporter. Each Recorder owns its registry,
// so multiple routers in one process never collide.
type Recorder struct {
	serviceName  string
	excludePaths map[string]bool

	registry      *promclient.Registry
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	handler       http.Handler

	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
	errorCount      metric.Int64Counter
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithServiceName sets the service.name attribute attached to every
// recorded measurement.
func WithServiceName(name string) Option {
	return func(r *Recorder) { r.serviceName = name }
}

// WithExcludePaths excludes exact request paths (typically /health and
// /metrics itself) from recording.
func WithExcludePaths(paths ...string) Option {
	return func(r *Recorder) {
		for _, p := range paths {
			r.excludePaths[p] = true
		}
	}
}

// New creates a Recorder with its own Prometheus registry and meter
// provider.
func New(opts ...Option) (*Recorder, error) {
	r := &Recorder{
		serviceName:  "routing",
		excludePaths: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.registry = promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(r.registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	r.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	r.meter = r.meterProvider.Meter("rivaas.dev/routing/metrics")
	r.handler = promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})

	if err := r.initInstruments(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNew is New but panics on error.
func MustNew(opts ...Option) *Recorder {
	r, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("metrics.MustNew: %v", err))
	}
	return r
}

func (r *Recorder) initInstruments() error {
	var err error
	r.requestCount, err = r.meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return fmt.Errorf("create request counter: %w", err)
	}
	r.requestDuration, err = r.meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create duration histogram: %w", err)
	}
	r.activeRequests, err = r.meter.Int64UpDownCounter(
		"http_requests_active",
		metric.WithDescription("Number of in-flight HTTP requests"),
	)
	if err != nil {
		return fmt.Errorf("create active gauge: %w", err)
	}
	r.errorCount, err = r.meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP responses with status >= 500"),
	)
	if err != nil {
		return fmt.Errorf("create error counter: %w", err)
	}
	return nil
}

// Handler returns the Prometheus scrape handler for this recorder's
// registry.
func (r *Recorder) Handler() http.Handler { return r.handler }

// Shutdown flushes and stops the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	return r.meterProvider.Shutdown(ctx)
}

// requestState travels from OnRequestStart to OnRequestEnd.
type requestState struct {
	start  time.Time
	method string
}

// OnRequestStart implements routing.ObservabilityRecorder. Excluded paths
// return a nil state and are not recorded.
func (r *Recorder) OnRequestStart(ctx context.Context, req *http.Request) (context.Context, any) {
	if r.excludePaths[req.URL.Path] {
		return ctx, nil
	}
	state := &requestState{start: time.Now(), method: req.Method}
	r.activeRequests.Add(ctx, 1, metric.WithAttributes(r.baseAttrs(state.method)...))
	return ctx, state
}

// WrapResponseWriter implements routing.ObservabilityRecorder.
func (r *Recorder) WrapResponseWriter(w http.ResponseWriter, state any) http.ResponseWriter {
	if state == nil {
		return w
	}
	return &responseWriter{ResponseWriter: w}
}

// OnRequestEnd implements routing.ObservabilityRecorder.
func (r *Recorder) OnRequestEnd(ctx context.Context, state any, writer http.ResponseWriter, routeTemplate string) {
	st, ok := state.(*requestState)
	if !ok {
		return
	}

	status := http.StatusOK
	if info, ok := writer.(routing.ResponseInfo); ok {
		status = info.StatusCode()
	}

	attrs := append(r.baseAttrs(st.method),
		attribute.String("http.route", routeTemplate),
		attribute.Int("http.status_code", status),
	)
	opt := metric.WithAttributes(attrs...)

	r.requestCount.Add(ctx, 1, opt)
	r.requestDuration.Record(ctx, time.Since(st.start).Seconds(), opt)
	r.activeRequests.Add(ctx, -1, metric.WithAttributes(r.baseAttrs(st.method)...))
	if status >= http.StatusInternalServerError {
		r.errorCount.Add(ctx, 1, opt)
	}
}

func (r *Recorder) baseAttrs(method string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", r.serviceName),
		attribute.String("http.method", method),
	}
}

// responseWriter captures status and size for OnRequestEnd.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int64
	written    bool
}

// WriteHeader records the status code; duplicate calls keep the first.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.ResponseWriter.WriteHeader(code)
		rw.written = true
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.written = true
	}
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

// StatusCode implements routing.ResponseInfo.
func (rw *responseWriter) StatusCode() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}
	return rw.statusCode
}

// Size implements routing.ResponseInfo.
func (rw *responseWriter) Size() int64 { return rw.size }
