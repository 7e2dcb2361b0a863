package metrics

import (
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // SolveRuns counts finished solves by strategy and outcome (completed, unsolvable, invalid, failed)
    SolveRuns = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "pdp_solve_runs_total", Help: "Solve runs by strategy and outcome."},
        []string{"strategy", "outcome"},
    )
    // SolveDuration tracks wall time of successful solves
    SolveDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "pdp_solve_duration_seconds", Help: "Solve wall time in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}},
        []string{"strategy"},
    )
    // SolveIterations records search iterations per run
    SolveIterations = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "pdp_solve_iterations", Help: "Search iterations per run.", Buckets: prometheus.ExponentialBuckets(1, 4, 10)},
        []string{"strategy", "stop_reason"},
    )
    // Candidates counts evaluated neighbors by verdict
    Candidates = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "pdp_candidates_total", Help: "Evaluated neighbor solutions by verdict."},
        []string{"strategy", "verdict"},
    )
    // CostImprovement is the relative cost reduction of the best solution over the initial one
    CostImprovement = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "pdp_cost_improvement_ratio", Help: "1 - best/initial cost per run.", Buckets: prometheus.LinearBuckets(0, 0.1, 11)},
        []string{"strategy"},
    )
    // WebhookDeliveries counts callback delivery attempts by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
    // ActiveSolves is the number of solves in flight
    ActiveSolves = prometheus.NewGauge(prometheus.GaugeOpts{Name: "pdp_active_solves", Help: "Solves currently running."})
)

// Run is the subset of a finished search that is exported.
type Run struct {
    Strategy    string
    StopReason  string
    Iterations  int
    Candidates  int
    Infeasible  int
    Structural  int
    InitialCost float64
    BestCost    float64
    Elapsed     time.Duration
}

// ObserveRun records a successful solve.
func ObserveRun(r Run) {
    SolveRuns.WithLabelValues(r.Strategy, "completed").Inc()
    SolveDuration.WithLabelValues(r.Strategy).Observe(r.Elapsed.Seconds())
    SolveIterations.WithLabelValues(r.Strategy, r.StopReason).Observe(float64(r.Iterations))
    feasible := r.Candidates - r.Infeasible - r.Structural
    if feasible < 0 {
        feasible = 0
    }
    Candidates.WithLabelValues(r.Strategy, "feasible").Add(float64(feasible))
    Candidates.WithLabelValues(r.Strategy, "infeasible").Add(float64(r.Infeasible))
    Candidates.WithLabelValues(r.Strategy, "structural").Add(float64(r.Structural))
    if r.InitialCost > 0 {
        CostImprovement.WithLabelValues(r.Strategy).Observe(1 - r.BestCost/r.InitialCost)
    }
}

// ObserveFailure records a solve that did not produce a solution.
func ObserveFailure(strategy, outcome string) {
    SolveRuns.WithLabelValues(strategy, outcome).Inc()
}

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        Registry.MustRegister(SolveRuns, SolveDuration, SolveIterations, Candidates, CostImprovement, ActiveSolves)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
