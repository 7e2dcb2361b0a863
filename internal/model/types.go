package model

import "time"

// Network is the road network of a solve request. With no roads every pair
// of cities is connected by a straight line.
type Network struct {
	Cities []CityIn `json:"cities" yaml:"cities"`
	Roads  []RoadIn `json:"roads,omitempty" yaml:"roads,omitempty"`
}

type CityIn struct {
	Name string  `json:"name" yaml:"name"`
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
}

type RoadIn struct {
	From     string  `json:"from" yaml:"from"`
	To       string  `json:"to" yaml:"to"`
	Distance float64 `json:"distance,omitempty" yaml:"distance,omitempty"`
}

type VehicleIn struct {
	ID        string  `json:"id" yaml:"id"`
	Capacity  int     `json:"capacity" yaml:"capacity"`
	CostPerKm float64 `json:"costPerKm" yaml:"costPerKm"`
	Start     string  `json:"start" yaml:"start"`
}

type TaskIn struct {
	ID       string `json:"id" yaml:"id"`
	Pickup   string `json:"pickup" yaml:"pickup"`
	Delivery string `json:"delivery" yaml:"delivery"`
	Weight   int    `json:"weight" yaml:"weight"`
}

// SolverOverrides adjusts the configured solver defaults for one request.
// Zero values keep the default.
type SolverOverrides struct {
	Strategy       string  `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	InitPolicy     string  `json:"initPolicy,omitempty" yaml:"initPolicy,omitempty"`
	CapacityPolicy string  `json:"capacityPolicy,omitempty" yaml:"capacityPolicy,omitempty"`
	InitVehicle    *int    `json:"initVehicle,omitempty" yaml:"initVehicle,omitempty"`
	MaxIterations  int     `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`
	TimeBudgetMs   int     `json:"timeBudgetMs,omitempty" yaml:"timeBudgetMs,omitempty"`
	InitialTemp    float64 `json:"initialTemp,omitempty" yaml:"initialTemp,omitempty"`
	Seed           int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
	Workers        int     `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// SolveRequest is both the HTTP body of POST /v1/solve and the CLI instance
// file format.
type SolveRequest struct {
	TenantID string           `json:"tenantId,omitempty" yaml:"tenantId,omitempty"`
	Network  Network          `json:"network" yaml:"network"`
	Vehicles []VehicleIn      `json:"vehicles" yaml:"vehicles"`
	Tasks    []TaskIn         `json:"tasks" yaml:"tasks"`
	Solver   *SolverOverrides `json:"solver,omitempty" yaml:"solver,omitempty"`
	Async    bool             `json:"async,omitempty" yaml:"async,omitempty"`
	Callback *Callback        `json:"callback,omitempty" yaml:"callback,omitempty"`
}

// Callback is notified when an async run finishes. With a secret the body
// is signed with HMAC-SHA256 in X-Signature.
type Callback struct {
	URL    string `json:"url" yaml:"url"`
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`
}

// Plan step kinds.
const (
	StepMove    = "move"
	StepPickup  = "pickup"
	StepDeliver = "deliver"
)

type PlanStep struct {
	Kind   string `json:"kind"`
	City   string `json:"city"`
	TaskID string `json:"taskId,omitempty"`
}

// VehiclePlan is the materialised route of one vehicle.
type VehiclePlan struct {
	VehicleID string     `json:"vehicleId"`
	Start     string     `json:"start"`
	Steps     []PlanStep `json:"steps"`
	Distance  float64    `json:"distance"`
	Cost      float64    `json:"cost"`
	Load      int        `json:"load"`
}

type RunMetrics struct {
	Strategy      string  `json:"strategy"`
	Seed          int64   `json:"seed"`
	Iterations    int     `json:"iterations"`
	Accepted      int     `json:"accepted"`
	Improvements  int     `json:"improvements"`
	AcceptedWorse int     `json:"acceptedWorse"`
	Candidates    int     `json:"candidates"`
	Infeasible    int     `json:"infeasible"`
	Structural    int     `json:"structural"`
	InitialCost   float64 `json:"initialCost"`
	BestCost      float64 `json:"bestCost"`
	StopReason    string  `json:"stopReason"`
	ElapsedMs     int64   `json:"elapsedMs"`
}

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is a persisted solve.
type Run struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenantId"`
	Status      string        `json:"status"`
	Strategy    string        `json:"strategy"`
	Vehicles    int           `json:"vehicles"`
	Tasks       int           `json:"tasks"`
	InitialCost float64       `json:"initialCost"`
	Cost        float64       `json:"cost"`
	Plans       []VehiclePlan `json:"plans,omitempty"`
	Metrics     *RunMetrics   `json:"metrics,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	FinishedAt  *time.Time    `json:"finishedAt,omitempty"`
}
