// Command pdpsolve solves a pickup-and-delivery instance file offline and
// prints the per-vehicle plans as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pdproute/internal/buildinfo"
	"pdproute/internal/config"
	"pdproute/internal/model"
	"pdproute/internal/opt"
	"pdproute/internal/plan"
	"pdproute/internal/telemetry"
	"pdproute/internal/topology"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type solveFlags struct {
	instance   string
	configPath string
	strategy   string
	seed       int64
	iterations int
	timeBudget time.Duration
	workers    int
	initPolicy string
	capacity   string
	out        string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pdpsolve",
		Short:         "Capacitated pickup-and-delivery route solver",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newSolveCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(buildinfo.Info())
		},
	}
}

func newSolveCmd() *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve an instance file",
		Long: `Solve reads an instance (YAML or JSON, the same shape as the
POST /v1/solve body), builds the initial solution, improves it with local
search and prints the result.

Examples:
  pdpsolve solve --instance swiss.yaml
  pdpsolve solve --instance swiss.yaml --strategy anneal --iterations 20000 --seed 7
  pdpsolve solve --instance big.json --workers 8 --time-budget 10s --out plan.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSolve(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.instance, "instance", "i", "", "instance file (YAML or JSON)")
	fl.StringVar(&f.configPath, "config", os.Getenv("PDP_CONFIG"), "config file")
	fl.StringVar(&f.strategy, "strategy", "", "search strategy: steepest or anneal")
	fl.Int64Var(&f.seed, "seed", 0, "random seed (0 draws one from the clock)")
	fl.IntVar(&f.iterations, "iterations", 0, "iteration limit")
	fl.DurationVar(&f.timeBudget, "time-budget", 0, "wall time limit, e.g. 500ms")
	fl.IntVar(&f.workers, "workers", 0, "parallel neighbor evaluators")
	fl.StringVar(&f.initPolicy, "init", "", "initial packing: single or pack")
	fl.StringVar(&f.capacity, "capacity", "", "capacity policy: fallback or strict")
	fl.StringVarP(&f.out, "out", "o", "", "write the result here instead of stdout")
	_ = cmd.MarkFlagRequired("instance")
	return cmd
}

// result is the CLI output document.
type result struct {
	InitialCost float64             `json:"initialCost"`
	Cost        float64             `json:"cost"`
	Metrics     opt.Metrics         `json:"metrics"`
	Plans       []model.VehiclePlan `json:"plans"`
}

func runSolve(cmd *cobra.Command, f *solveFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	sc := cfg.Solver
	fl := cmd.Flags()
	if fl.Changed("strategy") {
		sc.Strategy = f.strategy
	}
	if fl.Changed("seed") {
		sc.Seed = f.seed
	}
	if fl.Changed("iterations") {
		sc.MaxIterations = f.iterations
	}
	if fl.Changed("time-budget") {
		sc.TimeBudget = f.timeBudget
	}
	if fl.Changed("workers") {
		sc.Workers = f.workers
	}
	if fl.Changed("init") {
		sc.InitPolicy = f.initPolicy
	}
	if fl.Changed("capacity") {
		sc.CapacityPolicy = f.capacity
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	req, err := readInstance(f.instance)
	if err != nil {
		return err
	}

	logger := cfg.Observability.Logger(cmd.ErrOrStderr())
	shutdown, err := telemetry.Setup(ctx, cfg.Observability.Tracing, cfg.Observability.ServiceName, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	var cache topology.MatrixCache
	if cfg.Storage.RedisURL != "" {
		if c, err := topology.NewRedisCacheFromURL(cfg.Storage.RedisURL, cfg.Storage.MatrixCacheTTL); err == nil {
			cache = c
		} else {
			logger.Warn("matrix cache disabled", "err", err)
		}
	}
	p, g, err := plan.Problem(ctx, req, cache)
	if err != nil {
		return err
	}
	o := sc.Options()
	o.Logger = logger
	res, err := opt.Solve(ctx, p, o)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if f.out != "" {
		file, err := os.Create(f.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}
	return writeResult(w, result{
		InitialCost: res.Metrics.InitialCost,
		Cost:        res.Solution.Cost(),
		Metrics:     res.Metrics,
		Plans:       plan.Build(res.Solution, g),
	})
}

// readInstance decodes a YAML or JSON instance; JSON is valid YAML.
func readInstance(path string) (model.SolveRequest, error) {
	var req model.SolveRequest
	b, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read instance: %w", err)
	}
	if err := yaml.Unmarshal(b, &req); err != nil {
		return req, fmt.Errorf("parse instance %s: %w", path, err)
	}
	return req, nil
}

func writeResult(w io.Writer, r result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
