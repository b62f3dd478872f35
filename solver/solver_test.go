package solver

import (
	"testing"

	"github.com/pthm-cable/flume/sim"
)

func TestStableTimeStepNeverExceedsDT(t *testing.T) {
	p := sim.DefaultParameters()
	mesh := sim.Vec2{X: 1.0 / 128, Y: 1.0 / 128}

	for _, umax := range []float32{0, 0.001, 0.5, 1, 10, 1000} {
		dt := stableTimeStep(p, mesh, umax, umax)
		if dt <= 0 {
			t.Errorf("umax %v: dt %v not positive", umax, dt)
		}
		if dt > p.DT {
			t.Errorf("umax %v: dt %v exceeds maximum %v", umax, dt, p.DT)
		}
	}

	// A large safety factor must still not push past the maximum.
	p.Tau = 10
	if dt := stableTimeStep(p, mesh, 0.0001, 0.0001); dt > p.DT {
		t.Errorf("tau %v: dt %v exceeds maximum %v", p.Tau, dt, p.DT)
	}
}

func TestStableTimeStepDisabledByTau(t *testing.T) {
	p := sim.DefaultParameters()
	mesh := sim.Vec2{X: 1.0 / 64, Y: 1.0 / 64}

	for _, tau := range []float32{0, -1} {
		p.Tau = tau
		if dt := stableTimeStep(p, mesh, 100, 100); dt != p.DT {
			t.Errorf("tau %v: dt %v, want fixed %v", tau, dt, p.DT)
		}
	}
}

func TestStableTimeStepShrinksWithVelocity(t *testing.T) {
	p := sim.DefaultParameters()
	mesh := sim.Vec2{X: 1.0 / 128, Y: 1.0 / 128}

	prev := stableTimeStep(p, mesh, 0.5, 0)
	for _, umax := range []float32{1, 2, 8, 64} {
		dt := stableTimeStep(p, mesh, umax, 0)
		if dt > prev {
			t.Errorf("umax %v: dt grew from %v to %v", umax, prev, dt)
		}
		prev = dt
	}
}

func TestStableTimeStepDiffusionBound(t *testing.T) {
	p := sim.DefaultParameters()
	p.Re = 10 // diffusion-limited regime
	p.Tau = 1
	mesh := sim.Vec2{X: 0.1, Y: 0.1}

	dx2 := mesh.X * mesh.X
	want := 0.5 * p.Re * dx2 * dx2 / (dx2 + dx2)
	if dt := stableTimeStep(p, mesh, 0, 0); dt != want {
		t.Errorf("dt %v, want diffusion bound %v", dt, want)
	}
}

func TestVisFieldStrings(t *testing.T) {
	seen := map[string]bool{}
	for f := VisField(0); f < NumVisFields; f++ {
		name := f.String()
		if name == "" || name == "unknown" {
			t.Errorf("field %d has no name", f)
		}
		if seen[name] {
			t.Errorf("duplicate field name %q", name)
		}
		seen[name] = true
	}
}
