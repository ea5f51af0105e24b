// Package metrics keeps the learning loop's performance counters and exports
// them to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/llm"
)

const metricsPath = "/metrics"

// Performance is the in-process summary of a run.
type Performance struct {
	Calls                int     `json:"total_calls"`
	Successes            int     `json:"successful_calls"`
	AverageEffectiveness float64 `json:"avg_effectiveness"`
	SuccessRate          float64 `json:"success_rate"`
	AverageTurns         float64 `json:"avg_turns"`
	Improvements         int     `json:"total_improvements"`
	Skipped              int     `json:"skipped_calls"`
}

// Recorder updates both the performance counters and the Prometheus series.
type Recorder struct {
	registry *prometheus.Registry

	calls         *prometheus.CounterVec
	skipped       prometheus.Counter
	fallbacks     *prometheus.CounterVec
	llmCalls      *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	effectiveness prometheus.Histogram
	scriptVersion prometheus.Gauge

	mu                 sync.Mutex
	perf               Performance
	effectivenessTotal float64
	turnsTotal         int
}

var (
	defaultRecorder *Recorder
	registryOnce    sync.Once
)

// Default returns the process-wide recorder.
func Default() *Recorder {
	registryOnce.Do(func() {
		defaultRecorder = New()
	})
	return defaultRecorder
}

// New builds a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callcoach_calls_total",
				Help: "Completed simulated calls by outcome",
			},
			[]string{"outcome"},
		),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callcoach_calls_skipped_total",
			Help: "Calls abandoned after a failure",
		}),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callcoach_fallbacks_total",
				Help: "Model results replaced by the rule-based path",
			},
			[]string{"stage"},
		),
		llmCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callcoach_llm_requests_total",
				Help: "Model completion requests by purpose and status",
			},
			[]string{"provider", "purpose", "status"},
		),
		llmLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callcoach_llm_request_seconds",
				Help:    "Model completion latency",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
			},
			[]string{"purpose"},
		),
		effectiveness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "callcoach_call_effectiveness",
			Help:    "Agent effectiveness score per call",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		scriptVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "callcoach_script_version",
			Help: "Version of the script currently in use",
		}),
	}
	r.registry.MustRegister(r.calls, r.skipped, r.fallbacks, r.llmCalls, r.llmLatency, r.effectiveness, r.scriptVersion)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveCall records a completed call.
func (r *Recorder) ObserveCall(a analysis.CallAnalysis, turns int) {
	r.calls.WithLabelValues(string(a.Outcome)).Inc()
	r.effectiveness.Observe(a.Effectiveness)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.perf.Calls++
	if a.Outcome == analysis.OutcomeSuccess {
		r.perf.Successes++
	}
	r.effectivenessTotal += a.Effectiveness
	r.turnsTotal += turns
}

// ObserveSkipped records a call that failed and was skipped.
func (r *Recorder) ObserveSkipped() {
	r.skipped.Inc()
	r.mu.Lock()
	r.perf.Skipped++
	r.mu.Unlock()
}

// ObserveFallback records a model result that was replaced by rules.
func (r *Recorder) ObserveFallback(stage string) {
	r.fallbacks.WithLabelValues(stage).Inc()
}

// ObserveImprovement records a script transition to version.
func (r *Recorder) ObserveImprovement(version int) {
	r.scriptVersion.Set(float64(version))
	r.mu.Lock()
	r.perf.Improvements++
	r.mu.Unlock()
}

// SetScriptVersion sets the version gauge without counting an improvement.
func (r *Recorder) SetScriptVersion(version int) {
	r.scriptVersion.Set(float64(version))
}

// Observer returns an llm.Observer feeding the model-call series.
func (r *Recorder) Observer() llm.Observer {
	return func(_ context.Context, ev llm.Event) {
		status := "ok"
		if ev.Err != nil {
			status = "error"
		}
		r.llmCalls.WithLabelValues(ev.Provider, ev.Purpose, status).Inc()
		r.llmLatency.WithLabelValues(ev.Purpose).Observe(ev.Duration.Seconds())
	}
}

// Performance returns a snapshot of the counters with derived averages.
func (r *Recorder) Performance() Performance {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.perf
	if p.Calls > 0 {
		p.AverageEffectiveness = r.effectivenessTotal / float64(p.Calls)
		p.SuccessRate = float64(p.Successes) / float64(p.Calls)
		p.AverageTurns = float64(r.turnsTotal) / float64(p.Calls)
	}
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPath, r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr, "path", metricsPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
