package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flume/app"
	"github.com/pthm-cable/flume/compute"
	"github.com/pthm-cable/flume/config"
	"github.com/pthm-cable/flume/sim"
	"github.com/pthm-cable/flume/solver"
	"github.com/pthm-cable/flume/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	paramsPath := flag.String("p", "", "Path to parameter file (empty = defaults)")
	geomPath := flag.String("g", "", "Path to geometry file (empty = lid-driven cavity)")
	jsonPath := flag.String("j", "", "Write end-of-run perf report JSON to this path")
	backend := flag.String("backend", "", "Solver backend: opencl or cpu (empty = config)")
	headless := flag.Bool("headless", false, "Run without graphics")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs (empty = config)")
	maxSteps := flag.Int64("max-steps", 0, "Stop after N substeps (0 = run to tend)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *backend == "" {
		*backend = cfg.Compute.Backend
	}
	if *outputDir == "" {
		*outputDir = cfg.Telemetry.OutputDir
	}
	if *headless && *backend != "opencl" {
		// headless defaults to the CPU mirror unless a device was asked for
		*backend = "cpu"
	}

	if err := run(cfg, *paramsPath, *geomPath, *jsonPath, *backend, *outputDir, *headless, *maxSteps); err != nil {
		var verr *sim.ValidationError
		var berr *compute.BuildError
		switch {
		case errors.As(err, &verr):
			slog.Error("invalid configuration", "error", err)
			os.Exit(2)
		case errors.As(err, &berr):
			slog.Error("device program build failed", "device", berr.Device, "log", berr.Log)
			os.Exit(3)
		default:
			slog.Error("run failed", "error", err)
			os.Exit(1)
		}
	}
}

func run(cfg *config.Config, paramsPath, geomPath, jsonPath, backend, outputDir string, headless bool, maxSteps int64) error {
	params := sim.DefaultParameters()
	if paramsPath != "" {
		var err error
		if params, err = sim.LoadParameters(paramsPath); err != nil {
			return err
		}
	}

	var geom *sim.Geometry
	if geomPath != "" {
		var err error
		if geom, err = sim.LoadGeometry(geomPath); err != nil {
			return err
		}
	} else {
		geom = sim.LidDrivenCavity(sim.Extent{X: 128, Y: 128}, sim.Vec2{X: 1, Y: 1}, 1.0)
	}
	slog.Info("domain",
		"size_x", geom.Size().X,
		"size_y", geom.Size().Y,
		"fluid_cells", geom.NumFluidCells(),
		"re", params.Re,
		"tend", params.TEnd)

	output, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		return err
	}
	defer output.Close()

	if headless {
		solv, err := solver.New(backend, geom, params)
		if err != nil {
			return err
		}
		a := app.New(geom, params, solv, output)
		defer a.Close()

		slog.Info("starting headless run", "backend", solv.Name(), "max_steps", maxSteps)
		if err := a.RunHeadless(maxSteps); err != nil {
			return err
		}
		return writeReport(jsonPath, a)
	}

	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "flume")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	// Backend after the window so a future GL-sharing context can attach.
	solv, err := solver.New(backend, geom, params)
	if err != nil {
		return err
	}
	a := app.New(geom, params, solv, output)
	defer a.Close()
	a.InitGraphics()

	for !rl.WindowShouldClose() {
		a.HandleInput()
		if err := a.Update(); err != nil {
			return err
		}
		if err := a.Draw(); err != nil {
			return err
		}
		if maxSteps > 0 && a.StepCount() >= maxSteps {
			slog.Info("step limit reached", "steps", a.StepCount())
			break
		}
	}
	return writeReport(jsonPath, a)
}

func writeReport(path string, a *app.App) error {
	report := a.PerfReport()
	for _, p := range report {
		slog.Info("phase total",
			"phase", p.Phase,
			"executions", p.Executions,
			"total_ms", p.TotalMS,
			"avg_us", p.AvgUS)
	}
	if path == "" {
		return nil
	}
	return telemetry.WriteReport(path, report)
}
