// Package solver implements the staggered-grid Navier-Stokes substep
// pipeline: boundary application, momentum prediction, the red-black SOR
// pressure solve and the divergence-free velocity projection. The same
// kernel sequence exists twice: once as OpenCL kernels dispatched on a
// compute device (opencl.go) and once as a pure-Go mirror (cpu.go) used
// headless, in tests and as a fallback when no device is available.
package solver

import (
	"image/color"
	"log/slog"

	"github.com/pthm-cable/flume/compute"
	"github.com/pthm-cable/flume/sim"
)

// State describes how a pressure solve for one substep ended. Both
// terminal states are non-fatal; non-convergence only bounds accuracy.
type State int

const (
	Iterating State = iota
	Converged
	MaxIterExceeded
)

func (s State) String() string {
	switch s {
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIterExceeded:
		return "iter-exceeded"
	}
	return "unknown"
}

// VisField selects the scalar quantity written to the visualization buffer.
type VisField int

const (
	VisU VisField = iota
	VisV
	VisP
	VisSpeed
	VisVorticity
	VisCellType

	NumVisFields
)

func (f VisField) String() string {
	switch f {
	case VisU:
		return "velocity-u"
	case VisV:
		return "velocity-v"
	case VisP:
		return "pressure"
	case VisSpeed:
		return "speed"
	case VisVorticity:
		return "vorticity"
	case VisCellType:
		return "cell-type"
	}
	return "unknown"
}

// Range is a visualization normalization range from a min/max reduction.
type Range struct {
	Min, Max float32
}

// StepStats reports one completed substep.
type StepStats struct {
	T        float32 // simulation time after the step
	DT       float32 // time step actually taken
	SORIters int     // pressure iterations performed
	Residual float32 // final normalized residual
	State    State   // Converged or MaxIterExceeded
}

// Interface is a solver backend. Step runs one full substep; RenderField
// writes the selected scalar field into the caller's pixel buffer and
// returns the normalization range. The pixel buffer is the shared frame
// resource: callers must not read it while a RenderField call is in
// flight, and backends must not touch it outside RenderField.
type Interface interface {
	Name() string
	Step() (StepStats, error)
	RenderField(field VisField, pixels []color.RGBA) (Range, error)
	Close() error
}

// New selects a backend. "cpu" forces the pure-Go mirror; anything else
// tries the OpenCL device first and falls back to the CPU mirror when no
// usable device exists. Device build failures are fatal, not a fallback:
// a present-but-broken driver should be fixed, not silently ignored.
func New(backend string, geom *sim.Geometry, params sim.Parameters) (Interface, error) {
	if backend == "cpu" {
		return NewCPU(geom, params), nil
	}
	dev, err := compute.Open()
	if err != nil {
		slog.Warn("no OpenCL device, using CPU backend", "error", err)
		return NewCPU(geom, params), nil
	}
	s, err := NewOpenCL(dev, geom, params)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return s, nil
}

// stableTimeStep computes the adaptive time step from the CFL-like
// stability bounds. The result never exceeds the configured maximum;
// tau <= 0 disables adaptation entirely.
func stableTimeStep(p sim.Parameters, mesh sim.Vec2, umax, vmax float32) float32 {
	if p.Tau <= 0 {
		return p.DT
	}
	dx2 := mesh.X * mesh.X
	dy2 := mesh.Y * mesh.Y

	dt := p.DT
	if diff := 0.5 * p.Re * dx2 * dy2 / (dx2 + dy2); diff < dt {
		dt = diff
	}
	if umax > 0 {
		if conv := mesh.X / umax; conv < dt {
			dt = conv
		}
	}
	if vmax > 0 {
		if conv := mesh.Y / vmax; conv < dt {
			dt = conv
		}
	}
	dt *= p.Tau
	if dt > p.DT {
		dt = p.DT
	}
	return dt
}
