package main

import (
    "bufio"
    "context"
    "errors"
    "fmt"
    "log/slog"
    "net"
    "net/http"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

    "pdproute/internal/api"
    "pdproute/internal/config"
    "pdproute/internal/metrics"
    "pdproute/internal/telemetry"
)

func main() {
    // .env is optional
    _ = godotenv.Load()

    cfg, err := config.Load(os.Getenv("PDP_CONFIG"))
    if err != nil {
        fmt.Fprintf(os.Stderr, "config: %v\n", err)
        os.Exit(1)
    }
    logger := cfg.Observability.Logger(os.Stdout)
    slog.SetDefault(logger)

    shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Observability.Tracing, cfg.Observability.ServiceName, os.Stderr)
    if err != nil {
        logger.Error("failed to init tracing", "err", err)
        os.Exit(1)
    }

    srvDeps, err := api.NewServer(cfg, logger)
    if err != nil {
        logger.Error("failed to init server", "err", err)
        os.Exit(1)
    }
    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // Solving
    mux.HandleFunc("/v1/solve", srvDeps.SolveHandler)
    mux.HandleFunc("/v1/solver/config", srvDeps.SolverConfigHandler)
    mux.HandleFunc("/v1/admin/solver/config", srvDeps.AdminSolverConfigHandler)
    mux.HandleFunc("/v1/admin/solver-metrics", srvDeps.SolverMetricsHandler)

    // Runs
    mux.HandleFunc("/v1/runs", srvDeps.RunsIndexHandler)
    mux.HandleFunc("/v1/runs/", srvDeps.RunByIDHandler) // includes /stream

    // Health
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
    mux.HandleFunc("/debug/info", srvDeps.DebugJSON)

    // Docs
    mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
    mux.HandleFunc("/openapi.json", srvDeps.OpenAPIHandler)
    mux.HandleFunc("/docs", srvDeps.DocsHandler)

    addr := ":" + strconv.Itoa(cfg.Server.Port)
    srv := &http.Server{
        Addr:              addr,
        Handler:           otelhttp.NewHandler(logMiddleware(logger, mux), "pdproute.http"),
        ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    go func() {
        logger.Info("API listening", "addr", addr, "strategy", cfg.Solver.Strategy)
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logger.Error("server error", "err", err)
            stop()
        }
    }()
    <-ctx.Done()

    logger.Info("shutting down")
    sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
    defer cancel()
    if err := srv.Shutdown(sctx); err != nil {
        logger.Error("http shutdown", "err", err)
    }
    if err := srvDeps.Shutdown(sctx); err != nil {
        logger.Error("solver shutdown", "err", err)
    }
    if err := shutdownTracing(sctx); err != nil {
        logger.Error("tracing shutdown", "err", err)
    }
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack is needed by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := r.ResponseWriter.(http.Hijacker)
    if !ok {
        return nil, nil, fmt.Errorf("response writer does not support hijacking")
    }
    r.status = http.StatusSwitchingProtocols
    return h.Hijack()
}

func logMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        dur := time.Since(start)
        path := routeLabel(r.URL.Path)
        status := strconv.Itoa(rec.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
        logger.Info("request", "remote", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", dur)
    })
}

// routeLabel collapses run ids so metric cardinality stays bounded.
func routeLabel(p string) string {
    if rest, ok := strings.CutPrefix(p, "/v1/runs/"); ok && rest != "" {
        if strings.HasSuffix(rest, "/stream") {
            return "/v1/runs/{id}/stream"
        }
        return "/v1/runs/{id}"
    }
    return p
}
