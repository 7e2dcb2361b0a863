package api

import (
    "context"
    "fmt"
    "io"
    "log/slog"
    "strings"
    "sync"

    "golang.org/x/time/rate"

    "pdproute/internal/config"
    "pdproute/internal/store"
    "pdproute/internal/topology"
    "pdproute/internal/webhooks"
)

type Server struct {
    Store  store.Store
    Broker EventBroker
    Cache  topology.MatrixCache
    Notify *webhooks.Notifier
    Config config.Config
    Logger *slog.Logger

    limiter *rate.Limiter
    // async solves run under base and are tracked by inflight
    base     context.Context
    cancel   context.CancelFunc
    inflight sync.WaitGroup
    closers  []io.Closer
}

// NewServer wires storage, the event broker and the distance matrix cache
// from cfg. Without a database URL runs are kept in memory; without a Redis
// URL events stay in process and matrices are not cached.
func NewServer(cfg config.Config, logger *slog.Logger) (*Server, error) {
    if logger == nil {
        logger = slog.Default()
    }
    s := &Server{Config: cfg, Logger: logger, Notify: webhooks.NewNotifier(cfg.Server.WebhookMaxAttempts, logger)}
    s.base, s.cancel = context.WithCancel(context.Background())

    if strings.TrimSpace(cfg.Storage.DatabaseURL) == "" {
        s.Store = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.Storage.DatabaseURL)
        if err != nil {
            return nil, fmt.Errorf("open postgres: %w", err)
        }
        if cfg.Storage.Migrate {
            if err := sp.Migrate(s.base); err != nil {
                _ = sp.Close()
                return nil, err
            }
        }
        s.Store = sp
        s.closers = append(s.closers, sp)
    }

    s.Broker = NewBroker()
    if url := cfg.Storage.RedisURL; url != "" {
        if rb, err := NewRedisBroker(url); err == nil {
            s.Broker = rb
            s.closers = append(s.closers, rb)
        } else {
            logger.Warn("redis broker unavailable, using in-process broker", "err", err)
        }
        if c, err := topology.NewRedisCacheFromURL(url, cfg.Storage.MatrixCacheTTL); err == nil {
            s.Cache = c
        } else {
            logger.Warn("matrix cache disabled", "err", err)
        }
    }

    burst := cfg.Server.RateBurst
    if burst <= 0 {
        burst = 1
    }
    limit := rate.Limit(cfg.Server.RateRPS)
    if cfg.Server.RateRPS <= 0 {
        limit = rate.Inf
    }
    s.limiter = rate.NewLimiter(limit, burst)
    return s, nil
}

// Shutdown cancels in-flight async solves, waits for them to persist their
// outcome, then releases backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
    s.cancel()
    done := make(chan struct{})
    go func() { s.inflight.Wait(); close(done) }()
    select {
    case <-done:
    case <-ctx.Done():
        return ctx.Err()
    }
    for _, c := range s.closers {
        _ = c.Close()
    }
    return nil
}
