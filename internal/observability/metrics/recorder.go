// Package metrics exposes the coordinator's Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	obserrors "github.com/target/graph-coordinator/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

const namespace = "graph_coordinator"

// Recorder owns a private Prometheus registry and the coordinator's instruments.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	jobTransitions *prometheus.CounterVec
	registryOps    *prometheus.CounterVec
	sweepPasses    *prometheus.CounterVec
	sweepEvictions prometheus.Counter
	sweepDuration  prometheus.Histogram
	liveServices   prometheus.Gauge
	reapPasses     *prometheus.CounterVec
	reapOps        *prometheus.CounterVec
	reapedJobs     *prometheus.CounterVec
	reapDuration   prometheus.Histogram
}

// RecorderOptions configures NewRecorder.
type RecorderOptions struct {
	// RuntimeCollectors adds the Go runtime and process collectors to the registry.
	RuntimeCollectors bool
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder(opts RecorderOptions) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		jobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Job lifecycle operations by transition and result.",
		}, []string{"transition", "result", "error_class"}),
		registryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_operations_total",
			Help:      "Service registry operations by operation and result.",
		}, []string{"operation", "result", "error_class"}),
		sweepPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_passes_total",
			Help:      "Eviction sweeper passes by result.",
		}, []string{"result"}),
		sweepEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_evictions_total",
			Help:      "Service records evicted by the sweeper.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweeper_pass_duration_seconds",
			Help:      "Duration of eviction sweeper passes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		liveServices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_live_services",
			Help:      "Live service records observed at the last listing or status check.",
		}),
		reapPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_reaper_passes_total",
			Help:      "Job reaper passes by result.",
		}, []string{"result", "error_class"}),
		reapOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_reaper_operations_total",
			Help:      "Job reaper steps by operation and result.",
		}, []string{"operation", "result", "error_class"}),
		reapedJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_reaper_jobs_total",
			Help:      "Jobs cancelled or deleted by the reaper.",
		}, []string{"operation"}),
		reapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_reaper_pass_duration_seconds",
			Help:      "Duration of job reaper passes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}

	r.registry.MustRegister(
		r.jobTransitions,
		r.registryOps,
		r.sweepPasses,
		r.sweepEvictions,
		r.sweepDuration,
		r.liveServices,
		r.reapPasses,
		r.reapOps,
		r.reapedJobs,
		r.reapDuration,
	)
	if opts.RuntimeCollectors {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	Transition string
	Result     string
	Err        error
}

// EmitJobLifecycle records one job lifecycle operation.
func (r *Recorder) EmitJobLifecycle(in JobMetric) {
	if r == nil {
		return
	}
	r.jobTransitions.WithLabelValues(in.Transition, in.Result, errorClass(in.Result, in.Err)).Inc()
}

// RegistryMetric captures one service registry operation.
type RegistryMetric struct {
	Operation string
	Result    string
	Err       error
}

// EmitRegistryOp records one service registry operation.
func (r *Recorder) EmitRegistryOp(in RegistryMetric) {
	if r == nil {
		return
	}
	r.registryOps.WithLabelValues(in.Operation, in.Result, errorClass(in.Result, in.Err)).Inc()
}

// ObserveSweep records the outcome of one eviction pass.
func (r *Recorder) ObserveSweep(evicted int, took time.Duration, err error) {
	if r == nil {
		return
	}
	result := ResultSuccess
	switch {
	case err != nil:
		result = ResultError
	case evicted == 0:
		result = ResultNoop
	}
	r.sweepPasses.WithLabelValues(result).Inc()
	r.sweepDuration.Observe(took.Seconds())
	if evicted > 0 {
		r.sweepEvictions.Add(float64(evicted))
	}
}

// SetLiveServices updates the live services gauge.
func (r *Recorder) SetLiveServices(n int) {
	if r == nil {
		return
	}
	r.liveServices.Set(float64(n))
}

// ReapOperationMetric captures one step of a job reaper pass.
type ReapOperationMetric struct {
	Operation string
	Count     int64
	Err       error
}

// EmitReapOperation records one reaper step and the jobs it touched.
func (r *Recorder) EmitReapOperation(in ReapOperationMetric) {
	if r == nil {
		return
	}
	result := resultFor(in.Count, in.Err)
	r.reapOps.WithLabelValues(in.Operation, result, errorClass(result, in.Err)).Inc()
	if in.Err == nil && in.Count > 0 {
		r.reapedJobs.WithLabelValues(in.Operation).Add(float64(in.Count))
	}
}

// ObserveReap records the outcome of one job reaper pass.
func (r *Recorder) ObserveReap(total int64, took time.Duration, err error) {
	if r == nil {
		return
	}
	result := resultFor(total, err)
	r.reapPasses.WithLabelValues(result, errorClass(result, err)).Inc()
	if took > 0 {
		r.reapDuration.Observe(took.Seconds())
	}
}

func resultFor(count int64, err error) string {
	switch {
	case err != nil:
		return ResultError
	case count == 0:
		return ResultNoop
	default:
		return ResultSuccess
	}
}

func errorClass(result string, err error) string {
	if err == nil || result != ResultError {
		return ""
	}
	return obserrors.Classify(err)
}
