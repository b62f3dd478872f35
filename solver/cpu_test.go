package solver

import (
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/flume/sim"
)

func cavitySolver(n int, params sim.Parameters) *CPU {
	geom := sim.LidDrivenCavity(sim.Extent{X: n, Y: n}, sim.Vec2{X: 1, Y: 1}, 1.0)
	return NewCPU(geom, params)
}

// Boundary application must be a fixed point: applying the kernels to an
// already-consistent field changes nothing.
func TestBoundaryKernelsIdempotent(t *testing.T) {
	s := cavitySolver(16, sim.DefaultParameters())

	rng := rand.New(rand.NewSource(3))
	for _, f := range []*sim.Field{s.u, s.v, s.p} {
		for i := range f.Data {
			f.Data[i] = float32(rng.NormFloat64())
		}
	}

	s.applyBoundaryU()
	s.applyBoundaryV()
	s.applyBoundaryP()

	u := append([]float32(nil), s.u.Data...)
	v := append([]float32(nil), s.v.Data...)
	p := append([]float32(nil), s.p.Data...)

	s.applyBoundaryU()
	s.applyBoundaryV()
	s.applyBoundaryP()

	for i := range u {
		if s.u.Data[i] != u[i] {
			t.Fatalf("u[%d] changed on second application: %v -> %v", i, u[i], s.u.Data[i])
		}
	}
	for i := range v {
		if s.v.Data[i] != v[i] {
			t.Fatalf("v[%d] changed on second application: %v -> %v", i, v[i], s.v.Data[i])
		}
	}
	for i := range p {
		if s.p.Data[i] != p[i] {
			t.Fatalf("p[%d] changed on second application: %v -> %v", i, p[i], s.p.Data[i])
		}
	}
}

func TestBoundaryValuesCavity(t *testing.T) {
	s := cavitySolver(16, sim.DefaultParameters())
	s.applyBoundaryU()
	s.applyBoundaryV()

	h := s.h
	// Lid ghost faces: u = 2*lid - interior = 2 with a zero field.
	for x := 1; x < s.w-2; x++ {
		if got := s.u.At(x, h-1); got != 2 {
			t.Errorf("lid ghost u(%d,%d) = %v, want 2", x, h-1, got)
		}
	}
	// No-slip walls carry zero normal velocity.
	for y := 1; y < h-1; y++ {
		if got := s.u.At(0, y); got != 0 {
			t.Errorf("left wall u(0,%d) = %v, want 0", y, got)
		}
	}
	// v through the lid's bottom face is zero (no vertical inflow).
	for x := 1; x < s.w-1; x++ {
		if got := s.v.At(x, h-2); got != 0 {
			t.Errorf("lid face v(%d,%d) = %v, want 0", x, h-2, got)
		}
	}
}

// A constant pressure field with zero right-hand side is a steady state
// of the Poisson equation; SOR sweeps at omega=1 must not disturb it.
func TestSORSteadyStateIdempotent(t *testing.T) {
	params := sim.DefaultParameters()
	params.Omega = 1
	s := cavitySolver(12, params)

	s.p.Fill(3.5)

	s.sorSweep(true)
	s.sorSweep(false)
	s.applyBoundaryP()

	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			if got := s.p.At(x, y); math.Abs(float64(got-3.5)) > 1e-5 {
				t.Fatalf("p(%d,%d) = %v after sweep of steady state", x, y, got)
			}
		}
	}

	if res := s.residualNorm(); res > 1e-5 {
		t.Errorf("steady-state residual %v, want ~0", res)
	}
}

func TestStepLidDrivenCavity(t *testing.T) {
	params := sim.DefaultParameters()
	s := cavitySolver(34, params)

	stats, err := s.Step()
	if err != nil {
		t.Fatal(err)
	}

	if stats.DT <= 0 || stats.DT > params.DT {
		t.Errorf("dt %v out of (0, %v]", stats.DT, params.DT)
	}
	if stats.T != stats.DT {
		t.Errorf("t %v after first step, want %v", stats.T, stats.DT)
	}
	if stats.SORIters < 1 || stats.SORIters > params.IterMax {
		t.Errorf("sor iterations %d out of [1, %d]", stats.SORIters, params.IterMax)
	}
	if math.IsNaN(float64(stats.Residual)) || math.IsInf(float64(stats.Residual), 0) {
		t.Errorf("residual %v not finite", stats.Residual)
	}
	if stats.State != Converged && stats.State != MaxIterExceeded {
		t.Errorf("unexpected state %v", stats.State)
	}

	// The lid drags the fluid: the top interior row must be moving.
	var moving bool
	for x := 1; x < s.w-2; x++ {
		if s.u.At(x, s.h-2) != 0 {
			moving = true
			break
		}
	}
	if !moving {
		t.Error("top interior row has zero u after one step")
	}

	// Walls stay impermeable after the step.
	for y := 1; y < s.h-1; y++ {
		if got := s.u.At(0, y); got != 0 {
			t.Errorf("left wall leaks: u(0,%d) = %v", y, got)
		}
		if got := s.u.At(s.w-2, y); got != 0 {
			t.Errorf("right wall leaks: u(%d,%d) = %v", s.w-2, y, got)
		}
	}
	for x := 1; x < s.w-1; x++ {
		if got := s.v.At(x, 0); got != 0 {
			t.Errorf("bottom wall leaks: v(%d,0) = %v", x, got)
		}
	}
}

func TestStepStaysFinite(t *testing.T) {
	s := cavitySolver(18, sim.DefaultParameters())

	var prev float32
	for i := 0; i < 5; i++ {
		stats, err := s.Step()
		if err != nil {
			t.Fatal(err)
		}
		if stats.T <= prev {
			t.Fatalf("step %d: time did not advance (%v -> %v)", i, prev, stats.T)
		}
		prev = stats.T
	}

	for i, v := range s.u.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("u[%d] = %v after 5 steps", i, v)
		}
	}
	for i, v := range s.p.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("p[%d] = %v after 5 steps", i, v)
		}
	}
}

func TestRenderFieldCellType(t *testing.T) {
	s := cavitySolver(8, sim.DefaultParameters())
	pixels := make([]color.RGBA, s.w*s.h)

	r, err := s.RenderField(VisCellType, pixels)
	if err != nil {
		t.Fatal(err)
	}
	if r.Min != 0 {
		t.Errorf("range min %v, want 0 (fluid)", r.Min)
	}
	if r.Max != float32(sim.CellNoSlip) {
		t.Errorf("range max %v, want %v (no-slip)", r.Max, float32(sim.CellNoSlip))
	}

	// Interior fluid maps to black, the no-slip walls to white.
	if px := pixels[3*s.w+3]; px.R != 0 || px.A != 255 {
		t.Errorf("fluid pixel %+v, want black opaque", px)
	}
	if px := pixels[0]; px.R != 255 || px.A != 255 {
		t.Errorf("wall pixel %+v, want white opaque", px)
	}
}

func TestRenderFieldDegenerateRange(t *testing.T) {
	s := cavitySolver(8, sim.DefaultParameters())
	pixels := make([]color.RGBA, s.w*s.h)

	// Zero velocity everywhere: speed is constant, range degenerate.
	r, err := s.RenderField(VisSpeed, pixels)
	if err != nil {
		t.Fatal(err)
	}
	if r.Min != r.Max {
		t.Fatalf("expected degenerate range, got {%v %v}", r.Min, r.Max)
	}
	for i, px := range pixels {
		if px.R != 127 {
			t.Fatalf("pixel %d = %+v, want mid-gray for degenerate range", i, px)
		}
	}
}
