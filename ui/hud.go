package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title    string
	Backend  string
	Field    string
	T        float32
	TEnd     float32
	DT       float32
	SORIters int
	Residual float32
	Solved   bool // last pressure solve converged
	RangeMin float32
	RangeMax float32
	Speed    int // solver substeps per frame
	FPS      int32
	Paused   bool
	Finished bool
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	rl.DrawText(
		fmt.Sprintf("%s | %s | range [%.3g, %.3g]", data.Backend, data.Field, data.RangeMin, data.RangeMax),
		10, 35, 16, rl.LightGray,
	)

	rl.DrawText(
		fmt.Sprintf("t: %.3f / %.1f | dt: %.4f | Speed: %dx | FPS: %d", data.T, data.TEnd, data.DT, data.Speed, data.FPS),
		10, 55, 16, rl.LightGray,
	)

	solveColor := rl.LightGray
	if !data.Solved {
		solveColor = rl.Orange
	}
	rl.DrawText(
		fmt.Sprintf("SOR: %d iters | residual: %.2e", data.SORIters, data.Residual),
		10, 75, 16, solveColor,
	)

	statusText := "Running"
	statusColor := rl.Yellow
	switch {
	case data.Finished:
		statusText = "FINISHED"
		statusColor = rl.Green
	case data.Paused:
		statusText = "PAUSED"
	}
	rl.DrawText(statusText, 10, 95, 16, statusColor)
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenWidth, screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}
