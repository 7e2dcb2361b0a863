package main

import (
    "io"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "testing"
)

func TestRouteLabel(t *testing.T) {
    cases := map[string]string{
        "/v1/solve":                  "/v1/solve",
        "/v1/runs":                   "/v1/runs",
        "/v1/runs/0192-abc":          "/v1/runs/{id}",
        "/v1/runs/0192-abc/stream":   "/v1/runs/{id}/stream",
    }
    for in, want := range cases {
        if got := routeLabel(in); got != want { t.Fatalf("routeLabel(%q) = %q, want %q", in, got, want) }
    }
}

func TestLogMiddlewareRecordsStatus(t *testing.T) {
    h := logMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusTeapot)
    }))
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
    if rr.Code != http.StatusTeapot { t.Fatalf("got %d", rr.Code) }
}
