package app

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flume/solver"
	"github.com/pthm-cable/flume/telemetry"
)

// HandleInput processes one frame of keyboard and mouse input. Runs
// before Update so pause/speed changes apply to the same frame.
func (a *App) HandleInput() {
	a.perf.StartTick()
	a.perf.StartPhase(telemetry.PhaseInput)

	if rl.IsKeyPressed(rl.KeySpace) {
		a.paused = !a.paused
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		a.controls.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyF3) {
		a.showPerf = !a.showPerf
	}
	if rl.IsKeyPressed(rl.KeyS) {
		a.settings.Smooth = !a.settings.Smooth
	}
	if rl.IsKeyPressed(rl.KeyR) {
		a.cam.Reset()
	}

	for key, field := range map[int32]solver.VisField{
		rl.KeyOne:   solver.VisU,
		rl.KeyTwo:   solver.VisV,
		rl.KeyThree: solver.VisP,
		rl.KeyFour:  solver.VisSpeed,
		rl.KeyFive:  solver.VisVorticity,
		rl.KeySix:   solver.VisCellType,
	} {
		if rl.IsKeyPressed(key) {
			a.settings.Field = int(field)
		}
	}

	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		if a.speed < 64 {
			a.speed *= 2
		}
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		if a.speed > 1 {
			a.speed /= 2
		}
	}

	// Drag pans, wheel zooms toward the cursor.
	if rl.IsMouseButtonDown(rl.MouseButtonRight) ||
		(rl.IsMouseButtonDown(rl.MouseButtonLeft) && !a.controls.IsVisible()) {
		delta := rl.GetMouseDelta()
		a.cam.Pan(-delta.X, -delta.Y)
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		mouse := rl.GetMousePosition()
		wx, wy := a.cam.ScreenToWorld(mouse.X, mouse.Y)

		factor := float32(1.1)
		if wheel < 0 {
			factor = 1 / factor
		}
		a.cam.ZoomBy(factor)

		// Keep the world point under the cursor fixed.
		nx, ny := a.cam.ScreenToWorld(mouse.X, mouse.Y)
		a.cam.Pan((wx-nx)*a.cam.Zoom, (wy-ny)*a.cam.Zoom)
	}
}
