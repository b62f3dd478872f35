package solver

import (
	"image/color"

	"github.com/pthm-cable/flume/sim"
)

// CPU is the pure-Go backend. It mirrors the device kernels loop for loop
// so both backends produce comparable trajectories; the sequential sweeps
// make it the reference implementation for tests.
type CPU struct {
	geom   *sim.Geometry
	params sim.Parameters

	w, h     int
	mask     []uint8
	mesh     sim.Vec2
	numFluid int

	u, v *sim.Field // face-centered velocity
	f, g *sim.Field // momentum predictions, same extents as u/v
	p    *sim.Field // cell-centered pressure
	rhs  *sim.Field // Poisson right-hand side, interior only
	res  *sim.Field // squared residual, interior only
	viz  *sim.Field // visualization scratch, mask extents

	t float32
}

// NewCPU builds a CPU solver over the given geometry and parameters. All
// fields start zeroed; the first Step applies boundary values before any
// interior update reads them.
func NewCPU(geom *sim.Geometry, params sim.Parameters) *CPU {
	size := geom.Size()
	return &CPU{
		geom:     geom,
		params:   params,
		w:        size.X,
		h:        size.Y,
		mask:     geom.Cells(),
		mesh:     geom.Mesh(),
		numFluid: geom.NumFluidCells(),
		u:        sim.NewField(sim.UExtent(size)),
		v:        sim.NewField(sim.VExtent(size)),
		f:        sim.NewField(sim.UExtent(size)),
		g:        sim.NewField(sim.VExtent(size)),
		p:        sim.NewField(sim.PExtent(size)),
		rhs:      sim.NewField(sim.InteriorExtent(size)),
		res:      sim.NewField(sim.InteriorExtent(size)),
		viz:      sim.NewField(sim.PExtent(size)),
	}
}

func (s *CPU) Name() string { return "cpu" }

// T returns the current simulation time.
func (s *CPU) T() float32 { return s.t }

// Step advances the simulation by one adaptively sized substep.
func (s *CPU) Step() (StepStats, error) {
	s.applyBoundaryU()
	s.applyBoundaryV()
	s.applyBoundaryP()

	umax := reduceMaxAbs(s.u.Data)
	vmax := reduceMaxAbs(s.v.Data)
	dt := stableTimeStep(s.params, s.mesh, umax, vmax)

	s.momentum(dt)
	s.applyBoundaryFG()
	s.poissonRHS(dt)

	iters, residual, state := s.solvePressure()

	s.velocityUpdate(dt)
	s.applyBoundaryU()
	s.applyBoundaryV()

	s.t += dt
	return StepStats{
		T:        s.t,
		DT:       dt,
		SORIters: iters,
		Residual: residual,
		State:    state,
	}, nil
}

// solvePressure runs red-black SOR sweeps until the normalized residual
// drops below eps or the iteration cap is hit. Non-convergence is not an
// error; the caller decides whether the residual is acceptable.
func (s *CPU) solvePressure() (iters int, residual float32, state State) {
	state = MaxIterExceeded
	for iters = 0; iters < s.params.IterMax; iters++ {
		s.sorSweep(true)
		s.sorSweep(false)
		s.applyBoundaryP()
		residual = s.residualNorm()
		if residual <= s.params.Eps {
			iters++
			state = Converged
			break
		}
	}
	return iters, residual, state
}

// RenderField evaluates the selected field into the visualization buffer,
// reduces its range and writes normalized grayscale pixels. The colormap
// itself is applied later by the display shader.
func (s *CPU) RenderField(field VisField, pixels []color.RGBA) (Range, error) {
	s.visualize(field)
	partials := reduceMinMaxPartials(s.viz.Data, numGroups(len(s.viz.Data)), reduceGroupSize)
	r := finishMinMax(partials)
	writePixels(s.viz.Data, r, pixels)
	return r, nil
}

func (s *CPU) Close() error { return nil }
