package api

import (
    "encoding/json"
    "net/http"
    "time"

    "pdproute/internal/buildinfo"
)

// DebugJSON reports build info and the non-secret parts of the configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    cfg := s.Config
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "server":           cfg.Server,
            "solver":           cfg.Solver,
            "observability":    cfg.Observability,
            "has_database_url": cfg.Storage.DatabaseURL != "",
            "has_redis_url":    cfg.Storage.RedisURL != "",
            "matrix_cache_ttl": cfg.Storage.MatrixCacheTTL.String(),
        },
    }
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(info)
}
