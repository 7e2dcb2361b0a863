// Package api implements HTTP handlers and helpers for the solver service.
package api

import (
    "net/http"
)

type Principal struct {
	Tenant string
	Role   string // admin, dispatcher, viewer
}

// getPrincipal extracts tenant and role from headers.
func (s *Server) getPrincipal(r *http.Request) Principal {
    tenant := r.Header.Get("X-Tenant-Id")
    role := r.Header.Get("X-Role")
    if tenant == "" {
        tenant = "t_demo"
    }
    if role == "" {
        role = "admin"
    }
    return Principal{Tenant: tenant, Role: role}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanSolve reports whether the principal may submit solves.
func (p Principal) CanSolve() bool { return p.IsAdmin() || p.Role == "dispatcher" }
