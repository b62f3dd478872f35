package solver

import (
	"fmt"
	"image/color"
	"math"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"github.com/pthm-cable/flume/compute"
	"github.com/pthm-cable/flume/sim"
)

// OpenCL is the device backend. All field buffers live on the device for
// the whole run; the host only reads back the small reduction partials
// each substep and the pixel buffer once per rendered frame. Dispatch
// ordering within a substep relies on the in-order command queue.
type OpenCL struct {
	dev    *compute.Device
	geom   *sim.Geometry
	params sim.Parameters

	w, h     int
	mesh     sim.Vec2
	numFluid int

	programs []*cl.Program
	kernels  []*cl.Kernel

	kZero      *cl.Kernel
	kBoundaryU *cl.Kernel
	kBoundaryV *cl.Kernel
	kBoundaryP *cl.Kernel
	kBoundaryF *cl.Kernel
	kBoundaryG *cl.Kernel
	kMomentum  *cl.Kernel
	kRHS       *cl.Kernel
	kSOR       *cl.Kernel
	kResidual  *cl.Kernel
	kVelocity  *cl.Kernel
	kMaxAbs    *cl.Kernel
	kSum       *cl.Kernel
	kMinMax    *cl.Kernel
	kVisualize *cl.Kernel
	kCopyImage *cl.Kernel

	bMask     *cl.MemObject
	bU, bV    *cl.MemObject
	bF, bG    *cl.MemObject
	bP        *cl.MemObject
	bRHS      *cl.MemObject
	bRes      *cl.MemObject
	bViz      *cl.MemObject
	bPartials *cl.MemObject
	bPixels   *cl.MemObject

	partials []float32

	t float32
}

const maxReduceGroups = 64

// NewOpenCL compiles the kernel programs, allocates the device buffers
// and uploads the boundary mask. The returned solver owns the device and
// releases it on Close.
func NewOpenCL(dev *compute.Device, geom *sim.Geometry, params sim.Parameters) (*OpenCL, error) {
	size := geom.Size()
	s := &OpenCL{
		dev:      dev,
		geom:     geom,
		params:   params,
		w:        size.X,
		h:        size.Y,
		mesh:     geom.Mesh(),
		numFluid: geom.NumFluidCells(),
		partials: make([]float32, 2*maxReduceGroups),
	}

	if err := s.buildKernels(); err != nil {
		s.release()
		return nil, err
	}
	if err := s.createBuffers(); err != nil {
		s.release()
		return nil, err
	}
	if err := s.initBuffers(); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *OpenCL) buildKernels() error {
	sources := []string{
		maskHeader + zeroSource,
		maskHeader + boundarySource,
		maskHeader + momentumSource,
		maskHeader + pressureSource,
		maskHeader + velocitySource,
		maskHeader + reduceSource,
		maskHeader + visualizeSource,
	}
	programs := make([]*cl.Program, 0, len(sources))
	for _, src := range sources {
		p, err := s.dev.BuildProgram(src)
		if err != nil {
			return err
		}
		programs = append(programs, p)
	}
	s.programs = programs

	kernel := func(p *cl.Program, name string, dst **cl.Kernel) error {
		k, err := p.CreateKernel(name)
		if err != nil {
			return fmt.Errorf("creating kernel %q: %w", name, err)
		}
		*dst = k
		s.kernels = append(s.kernels, k)
		return nil
	}

	for _, bind := range []struct {
		program int
		name    string
		dst     **cl.Kernel
	}{
		{0, "zero_init", &s.kZero},
		{1, "boundary_u", &s.kBoundaryU},
		{1, "boundary_v", &s.kBoundaryV},
		{1, "boundary_p", &s.kBoundaryP},
		{1, "boundary_f", &s.kBoundaryF},
		{1, "boundary_g", &s.kBoundaryG},
		{2, "momentum", &s.kMomentum},
		{2, "poisson_rhs", &s.kRHS},
		{3, "sor_sweep", &s.kSOR},
		{3, "residual", &s.kResidual},
		{4, "velocity_update", &s.kVelocity},
		{5, "reduce_max_abs", &s.kMaxAbs},
		{5, "reduce_sum", &s.kSum},
		{5, "reduce_min_max", &s.kMinMax},
		{6, "visualize", &s.kVisualize},
		{6, "copy_to_image", &s.kCopyImage},
	} {
		if err := kernel(programs[bind.program], bind.name, bind.dst); err != nil {
			return err
		}
	}
	return nil
}

func (s *OpenCL) createBuffers() error {
	ctx := s.dev.Context()
	size := s.geom.Size()
	nU := sim.UExtent(size)
	nV := sim.VExtent(size)
	nI := sim.InteriorExtent(size)

	alloc := func(bytes int, dst **cl.MemObject) error {
		if *dst != nil {
			return nil
		}
		b, err := ctx.CreateEmptyBuffer(cl.MemReadWrite, bytes)
		if err != nil {
			return fmt.Errorf("allocating %d byte buffer: %w", bytes, err)
		}
		*dst = b
		return nil
	}

	for _, a := range []struct {
		bytes int
		dst   **cl.MemObject
	}{
		{s.w * s.h, &s.bMask},
		{nU.X * nU.Y * 4, &s.bU},
		{nU.X * nU.Y * 4, &s.bF},
		{nV.X * nV.Y * 4, &s.bV},
		{nV.X * nV.Y * 4, &s.bG},
		{s.w * s.h * 4, &s.bP},
		{nI.X * nI.Y * 4, &s.bRHS},
		{nI.X * nI.Y * 4, &s.bRes},
		{s.w * s.h * 4, &s.bViz},
		{2 * maxReduceGroups * 4, &s.bPartials},
		{s.w * s.h * 4, &s.bPixels},
	} {
		if err := alloc(a.bytes, a.dst); err != nil {
			return err
		}
	}
	return nil
}

// initBuffers uploads the mask and zeroes every float field on the device.
func (s *OpenCL) initBuffers() error {
	mask := s.geom.Cells()
	queue := s.dev.Queue()
	if _, err := queue.EnqueueWriteBuffer(s.bMask, true, 0, len(mask), unsafe.Pointer(&mask[0]), nil); err != nil {
		return fmt.Errorf("uploading mask: %w", err)
	}

	size := s.geom.Size()
	nU := sim.UExtent(size)
	nV := sim.VExtent(size)
	nI := sim.InteriorExtent(size)
	for _, z := range []struct {
		buf *cl.MemObject
		n   int
	}{
		{s.bU, nU.X * nU.Y},
		{s.bF, nU.X * nU.Y},
		{s.bV, nV.X * nV.Y},
		{s.bG, nV.X * nV.Y},
		{s.bP, s.w * s.h},
		{s.bRHS, nI.X * nI.Y},
		{s.bRes, nI.X * nI.Y},
		{s.bViz, s.w * s.h},
	} {
		if err := s.kZero.SetArgs(z.buf, int32(z.n)); err != nil {
			return err
		}
		if _, err := queue.EnqueueNDRangeKernel(s.kZero, nil, []int{z.n}, nil, nil); err != nil {
			return fmt.Errorf("zeroing buffer: %w", err)
		}
	}
	return queue.Finish()
}

func (s *OpenCL) Name() string { return "opencl/" + s.dev.Name() }

// T returns the current simulation time.
func (s *OpenCL) T() float32 { return s.t }

func (s *OpenCL) run2D(k *cl.Kernel, gx, gy int) error {
	_, err := s.dev.Queue().EnqueueNDRangeKernel(k, nil, []int{gx, gy}, nil, nil)
	return err
}

func (s *OpenCL) dispatchBoundaryUVP() error {
	bvel := s.geom.BoundaryVelocity()
	w, h := int32(s.w), int32(s.h)

	if err := s.kBoundaryU.SetArgs(w, h, bvel.X, s.bMask, s.bU); err != nil {
		return err
	}
	if err := s.run2D(s.kBoundaryU, s.w-1, s.h); err != nil {
		return err
	}
	if err := s.kBoundaryV.SetArgs(w, h, bvel.Y, s.bMask, s.bV); err != nil {
		return err
	}
	if err := s.run2D(s.kBoundaryV, s.w, s.h-1); err != nil {
		return err
	}
	return s.dispatchBoundaryP()
}

func (s *OpenCL) dispatchBoundaryP() error {
	if err := s.kBoundaryP.SetArgs(int32(s.w), int32(s.h), s.geom.BoundaryPressure(), s.bMask, s.bP); err != nil {
		return err
	}
	return s.run2D(s.kBoundaryP, s.w, s.h)
}

// reduce dispatches a two-stage reduction kernel over n elements and
// finishes on the host. The partial readback blocks, which also fences
// every prior dispatch on the in-order queue.
func (s *OpenCL) reduce(k *cl.Kernel, buf *cl.MemObject, n int, minmax bool) ([]float32, error) {
	groups := numGroups(n)
	scratchFloats := reduceGroupSize
	partialCount := groups
	if minmax {
		scratchFloats *= 2
		partialCount *= 2
	}

	if err := k.SetArgBuffer(0, buf); err != nil {
		return nil, err
	}
	if err := k.SetArgInt32(1, int32(n)); err != nil {
		return nil, err
	}
	if err := k.SetArgUnsafe(2, scratchFloats*4, nil); err != nil {
		return nil, err
	}
	if err := k.SetArgBuffer(3, s.bPartials); err != nil {
		return nil, err
	}
	queue := s.dev.Queue()
	if _, err := queue.EnqueueNDRangeKernel(k, nil, []int{groups * reduceGroupSize}, []int{reduceGroupSize}, nil); err != nil {
		return nil, err
	}
	out := s.partials[:partialCount]
	if _, err := queue.EnqueueReadBufferFloat32(s.bPartials, true, 0, out, nil); err != nil {
		return nil, fmt.Errorf("reading reduction partials: %w", err)
	}
	return out, nil
}

// Step advances one substep. Mirrors CPU.Step; see cpu.go for the
// sequence rationale.
func (s *OpenCL) Step() (StepStats, error) {
	if err := s.dispatchBoundaryUVP(); err != nil {
		return StepStats{}, err
	}

	size := s.geom.Size()
	nU := sim.UExtent(size)
	nV := sim.VExtent(size)
	nI := sim.InteriorExtent(size)

	pu, err := s.reduce(s.kMaxAbs, s.bU, nU.X*nU.Y, false)
	if err != nil {
		return StepStats{}, err
	}
	umax := finishMax(pu)
	pv, err := s.reduce(s.kMaxAbs, s.bV, nV.X*nV.Y, false)
	if err != nil {
		return StepStats{}, err
	}
	vmax := finishMax(pv)
	dt := stableTimeStep(s.params, s.mesh, umax, vmax)

	w, h := int32(s.w), int32(s.h)
	dx, dy := s.mesh.X, s.mesh.Y

	if err := s.kMomentum.SetArgs(w, h, dx, dy, dt, s.params.Re, s.params.Alpha,
		s.bMask, s.bU, s.bV, s.bF, s.bG); err != nil {
		return StepStats{}, err
	}
	if err := s.run2D(s.kMomentum, s.w-2, s.h-2); err != nil {
		return StepStats{}, err
	}

	if err := s.kBoundaryF.SetArgs(w, h, s.bMask, s.bU, s.bF); err != nil {
		return StepStats{}, err
	}
	if err := s.run2D(s.kBoundaryF, s.w-1, s.h); err != nil {
		return StepStats{}, err
	}
	if err := s.kBoundaryG.SetArgs(w, h, s.bMask, s.bV, s.bG); err != nil {
		return StepStats{}, err
	}
	if err := s.run2D(s.kBoundaryG, s.w, s.h-1); err != nil {
		return StepStats{}, err
	}

	if err := s.kRHS.SetArgs(w, h, dx, dy, dt, s.bMask, s.bF, s.bG, s.bRHS); err != nil {
		return StepStats{}, err
	}
	if err := s.run2D(s.kRHS, s.w-2, s.h-2); err != nil {
		return StepStats{}, err
	}

	iters, residual, state, err := s.solvePressure(nI.X * nI.Y)
	if err != nil {
		return StepStats{}, err
	}

	if err := s.kVelocity.SetArgs(w, h, dx, dy, dt, s.bMask, s.bF, s.bG, s.bP, s.bU, s.bV); err != nil {
		return StepStats{}, err
	}
	if err := s.run2D(s.kVelocity, s.w-2, s.h-2); err != nil {
		return StepStats{}, err
	}
	if err := s.dispatchBoundaryUVP(); err != nil {
		return StepStats{}, err
	}
	if err := s.dev.Queue().Finish(); err != nil {
		return StepStats{}, err
	}

	s.t += dt
	return StepStats{
		T:        s.t,
		DT:       dt,
		SORIters: iters,
		Residual: residual,
		State:    state,
	}, nil
}

// solvePressure runs the red-black sweeps with a residual readback per
// iteration. The readback is the convergence check, so the round trip per
// iteration is unavoidable; its cost is why IterMax is a hard cap.
func (s *OpenCL) solvePressure(nInterior int) (iters int, residual float32, state State, err error) {
	w, h := int32(s.w), int32(s.h)
	dx, dy := s.mesh.X, s.mesh.Y
	omg := s.params.Omega

	state = MaxIterExceeded
	for iters = 0; iters < s.params.IterMax; iters++ {
		for _, red := range []int32{1, 0} {
			if err = s.kSOR.SetArgs(w, h, dx, dy, omg, red, s.bMask, s.bRHS, s.bP); err != nil {
				return
			}
			if err = s.run2D(s.kSOR, s.w-2, s.h-2); err != nil {
				return
			}
		}
		if err = s.dispatchBoundaryP(); err != nil {
			return
		}
		if err = s.kResidual.SetArgs(w, h, dx, dy, s.bMask, s.bRHS, s.bP, s.bRes); err != nil {
			return
		}
		if err = s.run2D(s.kResidual, s.w-2, s.h-2); err != nil {
			return
		}
		partials, rerr := s.reduce(s.kSum, s.bRes, nInterior, false)
		if rerr != nil {
			err = rerr
			return
		}
		residual = float32(math.Sqrt(float64(finishSum(partials)) / float64(s.numFluid)))
		if residual <= s.params.Eps {
			iters++
			state = Converged
			break
		}
	}
	return iters, residual, state, nil
}

// RenderField runs the visualization and min/max reduction on the device,
// normalizes into the pixel buffer there and reads it back. The final
// Finish marks the frame handoff to the renderer.
func (s *OpenCL) RenderField(field VisField, pixels []color.RGBA) (Range, error) {
	n := s.w * s.h
	if err := s.kVisualize.SetArgs(int32(s.w), int32(s.h), s.mesh.X, s.mesh.Y,
		int32(field), s.bMask, s.bU, s.bV, s.bP, s.bViz); err != nil {
		return Range{}, err
	}
	if err := s.run2D(s.kVisualize, s.w, s.h); err != nil {
		return Range{}, err
	}

	partials, err := s.reduce(s.kMinMax, s.bViz, n, true)
	if err != nil {
		return Range{}, err
	}
	r := finishMinMax(partials)

	if err := s.kCopyImage.SetArgs(int32(n), r.Min, r.Max, s.bViz, s.bPixels); err != nil {
		return Range{}, err
	}
	queue := s.dev.Queue()
	if _, err := queue.EnqueueNDRangeKernel(s.kCopyImage, nil, []int{n}, nil, nil); err != nil {
		return Range{}, err
	}
	if _, err := queue.EnqueueReadBuffer(s.bPixels, true, 0, n*4, unsafe.Pointer(&pixels[0]), nil); err != nil {
		return Range{}, fmt.Errorf("reading pixel buffer: %w", err)
	}
	if err := queue.Finish(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func (s *OpenCL) release() {
	for _, k := range s.kernels {
		k.Release()
	}
	for _, p := range s.programs {
		p.Release()
	}
	for _, b := range []*cl.MemObject{
		s.bMask, s.bU, s.bV, s.bF, s.bG, s.bP,
		s.bRHS, s.bRes, s.bViz, s.bPartials, s.bPixels,
	} {
		if b != nil {
			b.Release()
		}
	}
}

// Close releases all device resources including the device itself.
func (s *OpenCL) Close() error {
	s.release()
	return s.dev.Close()
}
