// Package app wires the solver backend, telemetry and the raylib frontend
// into the update/draw loop. The same App drives headless runs; graphics
// are attached only when a window exists.
package app

import (
	"fmt"
	"image/color"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flume/camera"
	"github.com/pthm-cable/flume/config"
	"github.com/pthm-cable/flume/renderer"
	"github.com/pthm-cable/flume/sim"
	"github.com/pthm-cable/flume/solver"
	"github.com/pthm-cable/flume/telemetry"
	"github.com/pthm-cable/flume/ui"
)

// App owns the solver backend and the shared frame resources: the pixel
// buffer the backend writes and the renderer reads, strictly in that
// order within a frame.
type App struct {
	cfg    *config.Config
	geom   *sim.Geometry
	params sim.Parameters

	backend solver.Interface
	pixels  []color.RGBA
	field   solver.VisField

	perf   *telemetry.PerfCollector
	output *telemetry.OutputManager

	// graphics, nil when headless
	fieldView *renderer.FieldRenderer
	cam       *camera.Camera
	hud       *ui.HUD
	controls  *ui.ControlsPanel
	perfPanel *ui.PerfPanel
	settings  ui.Settings

	lastStats solver.StepStats
	lastRange solver.Range
	stepCount int64
	speed     int
	paused    bool
	finished  bool
	showPerf  bool
}

// New builds the headless core. InitGraphics attaches the window-bound
// parts afterwards.
func New(geom *sim.Geometry, params sim.Parameters, backend solver.Interface, output *telemetry.OutputManager) *App {
	cfg := config.Cfg()
	size := geom.Size()

	fieldNames := make([]string, solver.NumVisFields)
	for i := range fieldNames {
		fieldNames[i] = solver.VisField(i).String()
	}

	a := &App{
		cfg:     cfg,
		geom:    geom,
		params:  params,
		backend: backend,
		pixels:  make([]color.RGBA, size.X*size.Y),
		field:   fieldFromName(cfg.Display.Field),
		perf:    telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		output:  output,
		speed:   cfg.Compute.StepsPerFrame,
		settings: ui.Settings{
			FieldNames: fieldNames,
			Gain:       float32(cfg.Display.ColormapGain),
			Smooth:     cfg.Display.Smooth,
		},
	}
	a.settings.Field = int(a.field)
	return a
}

func fieldFromName(name string) solver.VisField {
	switch name {
	case "u":
		return solver.VisU
	case "v":
		return solver.VisV
	case "p", "pressure":
		return solver.VisP
	case "vorticity":
		return solver.VisVorticity
	case "cell_type":
		return solver.VisCellType
	}
	return solver.VisSpeed
}

// InitGraphics creates the window-bound resources. Must run after
// rl.InitWindow.
func (a *App) InitGraphics() {
	size := a.geom.Size()
	a.fieldView = renderer.NewFieldRenderer(size.X, size.Y)
	a.cam = camera.New(
		a.cfg.Derived.ScreenW32, a.cfg.Derived.ScreenH32,
		a.cfg.Derived.ScreenW32, a.cfg.Derived.ScreenH32)
	a.cam.MinZoom = float32(a.cfg.Display.ZoomMin)
	a.cam.MaxZoom = float32(a.cfg.Display.ZoomMax)
	a.hud = ui.NewHUD()
	a.controls = ui.NewControlsPanel(10, 130, 180)
	a.perfPanel = ui.NewPerfPanel(int32(a.cfg.Screen.Width)-230, 10)
}

// Update advances the solver by the configured number of substeps and
// records telemetry. The frame's perf tick is opened by HandleInput (or
// the headless loop) and closed by Draw.
func (a *App) Update() error {
	if !a.paused && !a.finished {
		a.perf.StartPhase(telemetry.PhaseStep)
		for i := 0; i < a.speed && !a.finished; i++ {
			if err := a.step(); err != nil {
				return err
			}
		}
	}

	a.perf.StartPhase(telemetry.PhaseTelemetry)
	if n := int64(a.cfg.Compute.StatsEverySteps); n > 0 && a.stepCount > 0 && a.stepCount%n == 0 {
		stats := a.perf.Stats()
		stats.LogStats()
		if err := a.output.WritePerf(stats, a.stepCount); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) step() error {
	stats, err := a.backend.Step()
	if err != nil {
		return fmt.Errorf("solver step %d: %w", a.stepCount, err)
	}
	a.lastStats = stats
	a.stepCount++

	if err := a.output.WriteStep(telemetry.StepRecord{
		Step:     a.stepCount,
		T:        stats.T,
		DT:       stats.DT,
		SORIters: stats.SORIters,
		Residual: stats.Residual,
		State:    stats.State.String(),
	}); err != nil {
		return err
	}

	if n := int64(a.cfg.Compute.LogEverySteps); n > 0 && a.stepCount%n == 0 {
		slog.Info("step",
			"n", a.stepCount,
			"t", stats.T,
			"dt", stats.DT,
			"sor_iters", stats.SORIters,
			"residual", stats.Residual,
			"state", stats.State.String())
	}

	if stats.T >= a.params.TEnd {
		a.finished = true
		slog.Info("simulation finished", "t", stats.T, "steps", a.stepCount)
	}
	return nil
}

// Draw renders one frame. The backend fills the pixel buffer first; only
// after RenderField returns does the texture upload read it.
func (a *App) Draw() error {
	a.perf.RecordFrame()

	a.perf.StartPhase(telemetry.PhaseVisualize)
	r, err := a.backend.RenderField(a.field, a.pixels)
	if err != nil {
		return err
	}
	a.lastRange = r

	a.perf.StartPhase(telemetry.PhaseTexture)
	a.fieldView.SetGain(a.settings.Gain)
	a.fieldView.SetSmooth(a.settings.Smooth)
	a.fieldView.Upload(a.pixels)

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)
	a.fieldView.Draw(a.cam)

	a.perf.StartPhase(telemetry.PhaseHUD)
	a.hud.Draw(ui.HUDData{
		Title:    "flume",
		Backend:  a.backend.Name(),
		Field:    a.field.String(),
		T:        a.lastStats.T,
		TEnd:     a.params.TEnd,
		DT:       a.lastStats.DT,
		SORIters: a.lastStats.SORIters,
		Residual: a.lastStats.Residual,
		Solved:   a.lastStats.State != solver.MaxIterExceeded,
		RangeMin: r.Min,
		RangeMax: r.Max,
		Speed:    a.speed,
		FPS:      rl.GetFPS(),
		Paused:   a.paused,
		Finished: a.finished,
	})
	a.hud.DrawControls(int32(a.cfg.Screen.Width), int32(a.cfg.Screen.Height),
		"[Space] pause  [1-6] field  [Tab] display  [F3] perf  [+/-] speed  [R] reset view  [drag/wheel] pan/zoom")

	a.controls.Draw(&a.settings)
	a.field = solver.VisField(a.settings.Field)

	if a.showPerf {
		stats := a.perf.Stats()
		a.perfPanel.Draw(ui.PerfPanelData{
			PhaseAvg: stats.PhaseAvg,
			PhasePct: stats.PhasePct,
			Total:    stats.AvgTickDuration,
		}, phaseOrder)
	}

	rl.EndDrawing()
	a.perf.EndTick()
	return nil
}

var phaseOrder = []string{
	telemetry.PhaseStep,
	telemetry.PhaseVisualize,
	telemetry.PhaseTexture,
	telemetry.PhaseHUD,
	telemetry.PhaseInput,
	telemetry.PhaseTelemetry,
}

// RunHeadless steps the solver to tend (or maxSteps if positive) without
// any rendering.
func (a *App) RunHeadless(maxSteps int64) error {
	for !a.finished {
		if maxSteps > 0 && a.stepCount >= maxSteps {
			slog.Info("step limit reached", "steps", a.stepCount, "t", a.lastStats.T)
			break
		}
		a.perf.StartTick()
		a.perf.StartPhase(telemetry.PhaseStep)
		if err := a.step(); err != nil {
			return err
		}
		a.perf.EndTick()
	}
	return nil
}

// Stats returns the most recent substep stats.
func (a *App) Stats() solver.StepStats { return a.lastStats }

// StepCount returns the number of completed substeps.
func (a *App) StepCount() int64 { return a.stepCount }

// Finished reports whether the simulation reached tend.
func (a *App) Finished() bool { return a.finished }

// PerfReport returns the whole-run phase totals.
func (a *App) PerfReport() []telemetry.PhaseTotal { return a.perf.Report() }

// Close releases the backend and graphics resources.
func (a *App) Close() error {
	if a.fieldView != nil {
		a.fieldView.Unload()
	}
	return a.backend.Close()
}
