package api

import (
	"fmt"
	"net/url"

	"pdproute/internal/model"
)

// validateSolveRequest checks request limits and override ranges. Topology
// and referential checks happen when the problem is built.
func validateSolveRequest(req *model.SolveRequest, maxTasks int) error {
	if len(req.Network.Cities) == 0 {
		return fmt.Errorf("network.cities must not be empty")
	}
	if len(req.Vehicles) == 0 {
		return fmt.Errorf("vehicles must not be empty")
	}
	if maxTasks > 0 && len(req.Tasks) > maxTasks {
		return fmt.Errorf("too many tasks: %d (max %d)", len(req.Tasks), maxTasks)
	}
	if cb := req.Callback; cb != nil {
		if !req.Async {
			return fmt.Errorf("callback requires async")
		}
		u, err := url.Parse(cb.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("callback.url must be an absolute http(s) URL")
		}
	}
	if o := req.Solver; o != nil {
		if o.MaxIterations < 0 {
			return fmt.Errorf("solver.maxIterations must be >= 0")
		}
		if o.TimeBudgetMs < 0 {
			return fmt.Errorf("solver.timeBudgetMs must be >= 0")
		}
		if o.InitialTemp < 0 {
			return fmt.Errorf("solver.initialTemp must be >= 0")
		}
		if o.Workers < 0 {
			return fmt.Errorf("solver.workers must be >= 0")
		}
	}
	return nil
}
