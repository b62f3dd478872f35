package ui

import (
	"fmt"
	"time"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// Settings is the mutable display state the controls panel edits in place.
type Settings struct {
	FieldNames []string
	Field      int
	Gain       float32
	Smooth     bool
}

// ControlsPanel renders the display settings panel: field selection
// buttons, colormap gain slider and the sampling toggle.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetVisible shows or hides the panel.
func (c *ControlsPanel) SetVisible(visible bool) {
	c.visible = visible
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool {
	return c.visible
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Draw renders the panel and applies widget interactions to s. Returns
// the y below the panel.
func (c *ControlsPanel) Draw(s *Settings) int32 {
	if !c.visible {
		return c.y
	}

	r := c.renderer
	padding := r.Theme.Padding
	lineHeight := r.Theme.LineHeight
	buttonHeight := lineHeight + 6
	innerW := float32(c.width - padding*2)

	panelHeight := int32(len(s.FieldNames))*buttonHeight +
		lineHeight*4 + buttonHeight + padding*3

	r.DrawPanel(c.x, c.y, c.width, panelHeight)

	y := c.y + padding
	rl.DrawText("Display", c.x+padding, y, 16, rl.White)
	y += lineHeight + 4

	rl.DrawText("Field", c.x+padding, y, r.Theme.HeaderFont, r.Theme.SectionHeader)
	y += lineHeight

	for i, name := range s.FieldNames {
		label := name
		if i == s.Field {
			label = "> " + name
		}
		bounds := rl.Rectangle{
			X:      float32(c.x + padding),
			Y:      float32(y),
			Width:  innerW,
			Height: float32(buttonHeight - 2),
		}
		if gui.Button(bounds, label) {
			s.Field = i
		}
		y += buttonHeight
	}

	y += 4
	rl.DrawText("Colormap", c.x+padding, y, r.Theme.HeaderFont, r.Theme.SectionHeader)
	y += lineHeight

	s.Gain = gui.SliderBar(rl.Rectangle{
		X:      float32(c.x + padding + 34),
		Y:      float32(y),
		Width:  innerW - 34,
		Height: float32(lineHeight - 2),
	}, "gain", fmt.Sprintf("%.1f", s.Gain), s.Gain, 0, 3)
	y += lineHeight + 4

	s.Smooth = gui.CheckBox(rl.Rectangle{
		X:      float32(c.x + padding),
		Y:      float32(y),
		Width:  float32(lineHeight - 2),
		Height: float32(lineHeight - 2),
	}, "smooth sampling", s.Smooth)
	y += buttonHeight

	return y
}

// PerfPanelData holds performance metrics for display.
type PerfPanelData struct {
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64
	Total    time.Duration
}

// PerfPanel renders the phase timing panel.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{renderer: NewRenderer(), x: x, y: y}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(data PerfPanelData, sortedNames []string) {
	x := p.x
	y := p.y

	rl.DrawText("Frame Phases", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Total: %s", data.Total.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16

	for i, name := range sortedNames {
		if i >= 12 {
			break
		}
		avg := data.PhaseAvg[name]
		pct := data.PhasePct[name]

		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = rl.Orange
		}

		rl.DrawText(
			fmt.Sprintf("%-16s %6s %5.1f%%", name, avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
