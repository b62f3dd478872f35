package solver

import (
	"image/color"
	"math"

	"github.com/pthm-cable/flume/sim"
)

// Sequential mirrors of the device kernels. Loop bounds, index arithmetic
// and guard conditions match the OpenCL sources in kernels.go one to one.

// applyBoundaryU sets u at every face that is not between two fluid cells.
// Faces against a wall take the wall condition of the non-fluid cell; faces
// fully inside boundary cells become ghost values reflecting the nearest
// interior face across the wall.
func (s *CPU) applyBoundaryU() {
	presc := s.geom.BoundaryVelocity().X
	uw := s.u.W
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w-1; x++ {
			self := s.mask[y*s.w+x]
			right := s.mask[y*s.w+x+1]
			selfFluid := sim.IsFluid(self)
			rightFluid := sim.IsFluid(right)
			i := y*uw + x

			switch {
			case selfFluid && rightFluid:
				// interior face, owned by momentum and projection
			case selfFluid:
				s.u.Data[i] = wallU(right, presc, s.u.Data[i-1])
			case rightFluid:
				s.u.Data[i] = wallU(self, presc, s.u.Data[i+1])
			case self&sim.MaskNeighborTop != 0:
				s.u.Data[i] = ghostU(self, presc, s.u.Data[i+uw])
			case self&sim.MaskNeighborBottom != 0:
				s.u.Data[i] = ghostU(self, presc, s.u.Data[i-uw])
			default:
				s.u.Data[i] = 0
			}
		}
	}
}

// wallU is the u condition on a face normal to a boundary cell: prescribed
// velocity for inflow, zero gradient for pressure-type conditions, zero
// otherwise. The horizontal flag gates whether the condition covers u at all.
func wallU(cell uint8, presc, interior float32) float32 {
	t := cell & sim.MaskSelf
	switch {
	case t&sim.FlagHoriz == 0:
		return 0
	case t&sim.FlagVelocity != 0:
		return presc
	case t&sim.FlagPressure != 0:
		return interior
	}
	return 0
}

// ghostU is the u ghost value inside a boundary cell, reflecting the
// interior face above or below: even reflection for zero-gradient walls,
// odd reflection around the prescribed (or zero) wall velocity otherwise.
func ghostU(cell uint8, presc, interior float32) float32 {
	t := cell & sim.MaskSelf
	if t&sim.FlagHoriz != 0 {
		if t&sim.FlagPressure != 0 {
			return interior
		}
		if t&sim.FlagVelocity != 0 {
			return 2*presc - interior
		}
	}
	return -interior
}

func (s *CPU) applyBoundaryV() {
	presc := s.geom.BoundaryVelocity().Y
	vw := s.v.W
	for y := 0; y < s.h-1; y++ {
		for x := 0; x < s.w; x++ {
			self := s.mask[y*s.w+x]
			top := s.mask[(y+1)*s.w+x]
			selfFluid := sim.IsFluid(self)
			topFluid := sim.IsFluid(top)
			i := y*vw + x

			switch {
			case selfFluid && topFluid:
			case selfFluid:
				s.v.Data[i] = wallV(top, presc, s.v.Data[i-vw])
			case topFluid:
				s.v.Data[i] = wallV(self, presc, s.v.Data[i+vw])
			case self&sim.MaskNeighborRight != 0:
				s.v.Data[i] = ghostV(self, presc, s.v.Data[i+1])
			case self&sim.MaskNeighborLeft != 0:
				s.v.Data[i] = ghostV(self, presc, s.v.Data[i-1])
			default:
				s.v.Data[i] = 0
			}
		}
	}
}

func wallV(cell uint8, presc, interior float32) float32 {
	t := cell & sim.MaskSelf
	switch {
	case t&sim.FlagVert == 0:
		return 0
	case t&sim.FlagVelocity != 0:
		return presc
	case t&sim.FlagPressure != 0:
		return interior
	}
	return 0
}

func ghostV(cell uint8, presc, interior float32) float32 {
	t := cell & sim.MaskSelf
	if t&sim.FlagVert != 0 {
		if t&sim.FlagPressure != 0 {
			return interior
		}
		if t&sim.FlagVelocity != 0 {
			return 2*presc - interior
		}
	}
	return -interior
}

// applyBoundaryP fills boundary-cell pressures from the average of their
// fluid neighbors. Outflow contributes a mirrored value around zero and
// slip walls around the prescribed pressure, but only along the wall's own
// axis; every other condition copies the neighbor (zero normal gradient).
func (s *CPU) applyBoundaryP() {
	presc := s.geom.BoundaryPressure()
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			cell := s.mask[y*s.w+x]
			if sim.IsFluid(cell) {
				continue
			}
			t := cell & sim.MaskSelf

			var sum float32
			n := 0
			add := func(pn float32, slipAxis bool) {
				switch {
				case t == uint8(sim.CellOutflow):
					sum += -pn
				case slipAxis:
					sum += 2*presc - pn
				default:
					sum += pn
				}
				n++
			}

			if cell&sim.MaskNeighborLeft != 0 {
				add(s.p.At(x-1, y), t == uint8(sim.CellSlipVert))
			}
			if cell&sim.MaskNeighborRight != 0 {
				add(s.p.At(x+1, y), t == uint8(sim.CellSlipVert))
			}
			if cell&sim.MaskNeighborBottom != 0 {
				add(s.p.At(x, y-1), t == uint8(sim.CellSlipHoriz))
			}
			if cell&sim.MaskNeighborTop != 0 {
				add(s.p.At(x, y+1), t == uint8(sim.CellSlipHoriz))
			}

			if n > 0 {
				s.p.Set(x, y, sum/float32(n))
			}
		}
	}
}

// applyBoundaryFG copies u into F and v into G at every non-interior face,
// so the Poisson right-hand side sees the boundary velocities unchanged.
func (s *CPU) applyBoundaryFG() {
	uw := s.u.W
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w-1; x++ {
			self := s.mask[y*s.w+x]
			if sim.IsFluid(self) && self&sim.MaskNeighborRight != 0 {
				continue
			}
			s.f.Data[y*uw+x] = s.u.Data[y*uw+x]
		}
	}
	vw := s.v.W
	for y := 0; y < s.h-1; y++ {
		for x := 0; x < s.w; x++ {
			self := s.mask[y*s.w+x]
			if sim.IsFluid(self) && self&sim.MaskNeighborTop != 0 {
				continue
			}
			s.g.Data[y*vw+x] = s.v.Data[y*vw+x]
		}
	}
}

// momentum computes the tentative velocities F and G from convection
// (donor-cell blended with central differencing by alpha) and diffusion,
// at fluid-to-fluid faces only.
func (s *CPU) momentum(dt float32) {
	re := s.params.Re
	alpha := s.params.Alpha
	dx, dy := s.mesh.X, s.mesh.Y
	dx2, dy2 := dx*dx, dy*dy
	uw, vw := s.u.W, s.v.W

	for y := 1; y < s.h-1; y++ {
		for x := 1; x < s.w-1; x++ {
			cell := s.mask[y*s.w+x]
			if !sim.IsFluid(cell) {
				continue
			}

			if cell&sim.MaskNeighborRight != 0 {
				i := y*uw + x
				uc := s.u.Data[i]
				ul := s.u.Data[i-1]
				ur := s.u.Data[i+1]
				ub := s.u.Data[i-uw]
				ut := s.u.Data[i+uw]
				vc := s.v.Data[y*vw+x]
				vr := s.v.Data[y*vw+x+1]
				vb := s.v.Data[(y-1)*vw+x]
				vbr := s.v.Data[(y-1)*vw+x+1]

				duudx := ((uc+ur)*(uc+ur)-(ul+uc)*(ul+uc))/(4*dx) +
					alpha*(abs32(uc+ur)*(uc-ur)-abs32(ul+uc)*(ul-uc))/(4*dx)
				duvdy := ((vc+vr)*(uc+ut)-(vb+vbr)*(ub+uc))/(4*dy) +
					alpha*(abs32(vc+vr)*(uc-ut)-abs32(vb+vbr)*(ub-uc))/(4*dy)
				lap := (ur-2*uc+ul)/dx2 + (ut-2*uc+ub)/dy2

				s.f.Data[i] = uc + dt*(lap/re-duudx-duvdy)
			}

			if cell&sim.MaskNeighborTop != 0 {
				i := y*vw + x
				vc := s.v.Data[i]
				vl := s.v.Data[i-1]
				vr := s.v.Data[i+1]
				vb := s.v.Data[i-vw]
				vt := s.v.Data[i+vw]
				uc := s.u.Data[y*uw+x]
				ut := s.u.Data[(y+1)*uw+x]
				ul := s.u.Data[y*uw+x-1]
				utl := s.u.Data[(y+1)*uw+x-1]

				dvvdy := ((vc+vt)*(vc+vt)-(vb+vc)*(vb+vc))/(4*dy) +
					alpha*(abs32(vc+vt)*(vc-vt)-abs32(vb+vc)*(vb-vc))/(4*dy)
				duvdx := ((uc+ut)*(vc+vr)-(ul+utl)*(vl+vc))/(4*dx) +
					alpha*(abs32(uc+ut)*(vc-vr)-abs32(ul+utl)*(vl-vc))/(4*dx)
				lap := (vr-2*vc+vl)/dx2 + (vt-2*vc+vb)/dy2

				s.g.Data[i] = vc + dt*(lap/re-dvvdy-duvdx)
			}
		}
	}
}

// poissonRHS builds the pressure equation right-hand side, the divergence
// of the tentative velocity divided by dt, over interior fluid cells.
func (s *CPU) poissonRHS(dt float32) {
	dx, dy := s.mesh.X, s.mesh.Y
	uw, vw := s.u.W, s.v.W
	iw := s.rhs.W

	for y := 1; y < s.h-1; y++ {
		for x := 1; x < s.w-1; x++ {
			i := (y-1)*iw + (x - 1)
			if !sim.IsFluid(s.mask[y*s.w+x]) {
				s.rhs.Data[i] = 0
				continue
			}
			div := (s.f.Data[y*uw+x]-s.f.Data[y*uw+x-1])/dx +
				(s.g.Data[y*vw+x]-s.g.Data[(y-1)*vw+x])/dy
			s.rhs.Data[i] = div / dt
		}
	}
}

// sorSweep relaxes one parity class of the red-black checkerboard. Red
// cells are those where x and y share parity; the two sweeps together
// touch every interior fluid cell exactly once.
func (s *CPU) sorSweep(red bool) {
	omg := s.params.Omega
	dx2 := s.mesh.X * s.mesh.X
	dy2 := s.mesh.Y * s.mesh.Y
	coeff := omg * dx2 * dy2 / (2 * (dx2 + dy2))
	iw := s.rhs.W

	for y := 1; y < s.h-1; y++ {
		for x := 1; x < s.w-1; x++ {
			if ((x^y)&1 == 0) != red {
				continue
			}
			if !sim.IsFluid(s.mask[y*s.w+x]) {
				continue
			}
			rhs := s.rhs.Data[(y-1)*iw+(x-1)]
			pc := s.p.At(x, y)
			s.p.Set(x, y, (1-omg)*pc+coeff*(
				(s.p.At(x-1, y)+s.p.At(x+1, y))/dx2+
					(s.p.At(x, y-1)+s.p.At(x, y+1))/dy2-rhs))
		}
	}
}

// residualNorm writes the squared pointwise Poisson residual over interior
// fluid cells and returns its root mean square, normalized by the fluid
// cell count.
func (s *CPU) residualNorm() float32 {
	dx2 := s.mesh.X * s.mesh.X
	dy2 := s.mesh.Y * s.mesh.Y
	iw := s.res.W

	for y := 1; y < s.h-1; y++ {
		for x := 1; x < s.w-1; x++ {
			i := (y-1)*iw + (x - 1)
			if !sim.IsFluid(s.mask[y*s.w+x]) {
				s.res.Data[i] = 0
				continue
			}
			pc := s.p.At(x, y)
			r := (s.p.At(x+1, y)-2*pc+s.p.At(x-1, y))/dx2 +
				(s.p.At(x, y+1)-2*pc+s.p.At(x, y-1))/dy2 -
				s.rhs.Data[i]
			s.res.Data[i] = r * r
		}
	}

	partials := reduceSumPartials(s.res.Data, numGroups(len(s.res.Data)), reduceGroupSize)
	sum := finishSum(partials)
	return float32(math.Sqrt(float64(sum) / float64(s.numFluid)))
}

// velocityUpdate projects the tentative velocities with the pressure
// gradient, restoring a divergence-free field at fluid-to-fluid faces.
func (s *CPU) velocityUpdate(dt float32) {
	dx, dy := s.mesh.X, s.mesh.Y
	uw, vw := s.u.W, s.v.W

	for y := 1; y < s.h-1; y++ {
		for x := 1; x < s.w-1; x++ {
			cell := s.mask[y*s.w+x]
			if !sim.IsFluid(cell) {
				continue
			}
			if cell&sim.MaskNeighborRight != 0 {
				i := y*uw + x
				s.u.Data[i] = s.f.Data[i] - dt/dx*(s.p.At(x+1, y)-s.p.At(x, y))
			}
			if cell&sim.MaskNeighborTop != 0 {
				i := y*vw + x
				s.v.Data[i] = s.g.Data[i] - dt/dy*(s.p.At(x, y+1)-s.p.At(x, y))
			}
		}
	}
}

// visualize evaluates the selected scalar per mask cell into the
// visualization buffer. Cell-centered values interpolate the face
// velocities; indices are clamped at the domain edge.
func (s *CPU) visualize(field VisField) {
	dx, dy := s.mesh.X, s.mesh.Y
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			xl := max(x-1, 0)
			yb := max(y-1, 0)
			xr := min(x+1, s.w-1)
			yt := min(y+1, s.h-1)

			var val float32
			switch field {
			case VisU:
				val = s.u.At(x, y)
			case VisV:
				val = s.v.At(x, y)
			case VisP:
				val = s.p.At(x, y)
			case VisSpeed:
				uc := 0.5 * (s.u.At(xl, y) + s.u.At(x, y))
				vc := 0.5 * (s.v.At(x, yb) + s.v.At(x, y))
				val = float32(math.Sqrt(float64(uc*uc + vc*vc)))
			case VisVorticity:
				val = (s.u.At(x, yt)-s.u.At(x, y))/dy - (s.v.At(xr, y)-s.v.At(x, y))/dx
			case VisCellType:
				val = float32(s.mask[y*s.w+x] & sim.MaskSelf)
			}
			s.viz.Set(x, y, val)
		}
	}
}

// writePixels normalizes the visualization buffer into grayscale RGBA.
// A degenerate range maps everything to mid-gray.
func writePixels(data []float32, r Range, pixels []color.RGBA) {
	span := r.Max - r.Min
	for i, v := range data {
		var b uint8 = 127
		if span > 0 {
			n := (v - r.Min) / span
			b = uint8(n*255 + 0.5)
		}
		pixels[i] = color.RGBA{R: b, G: b, B: b, A: 255}
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
