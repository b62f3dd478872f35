// Package compute wraps OpenCL platform discovery, context and queue
// setup, and program compilation. Solver backends own their buffers and
// kernels; this package only hands them a working device.
package compute

import (
	"fmt"
	"log/slog"

	"github.com/jgillich/go-opencl/cl"
)

// BuildError carries the compiler log of a failed device program build.
// These are surfaced verbatim: a kernel that does not compile on the
// user's driver is not something we can recover from at runtime.
type BuildError struct {
	Device string
	Log    string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building program on %q: %s", e.Device, e.Log)
}

// Device is an opened OpenCL device with its context and in-order
// command queue. Not safe for concurrent use; all solver dispatch goes
// through the single queue.
type Device struct {
	dev   *cl.Device
	ctx   *cl.Context
	queue *cl.CommandQueue
}

// Open selects an OpenCL device, preferring GPUs over CPU devices across
// all platforms, and creates a context and command queue on it.
func Open() (*Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, fmt.Errorf("listing OpenCL platforms: %w", err)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("no OpenCL platforms available")
	}

	dev := pickDevice(platforms, cl.DeviceTypeGPU)
	if dev == nil {
		dev = pickDevice(platforms, cl.DeviceTypeCPU)
	}
	if dev == nil {
		return nil, fmt.Errorf("no usable OpenCL device on %d platform(s)", len(platforms))
	}

	ctx, err := cl.CreateContext([]*cl.Device{dev})
	if err != nil {
		return nil, fmt.Errorf("creating context on %q: %w", dev.Name(), err)
	}
	queue, err := ctx.CreateCommandQueue(dev, 0)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("creating command queue on %q: %w", dev.Name(), err)
	}

	slog.Info("opened compute device",
		"name", dev.Name(),
		"vendor", dev.Vendor(),
		"version", dev.Version(),
		"compute_units", dev.MaxComputeUnits(),
		"global_mem_mb", dev.GlobalMemSize()/(1<<20))

	return &Device{dev: dev, ctx: ctx, queue: queue}, nil
}

func pickDevice(platforms []*cl.Platform, kind cl.DeviceType) *cl.Device {
	for _, p := range platforms {
		devices, err := p.GetDevices(kind)
		if err != nil || len(devices) == 0 {
			continue
		}
		return devices[0]
	}
	return nil
}

// Name returns the device name string reported by the driver.
func (d *Device) Name() string { return d.dev.Name() }

// Context returns the OpenCL context for buffer allocation.
func (d *Device) Context() *cl.Context { return d.ctx }

// Queue returns the device's in-order command queue.
func (d *Device) Queue() *cl.CommandQueue { return d.queue }

// BuildProgram compiles one program source for the device. Compiler
// failures come back as *BuildError with the driver's log attached.
func (d *Device) BuildProgram(source string) (*cl.Program, error) {
	program, err := d.ctx.CreateProgramWithSource([]string{source})
	if err != nil {
		return nil, fmt.Errorf("creating program: %w", err)
	}
	if err := program.BuildProgram([]*cl.Device{d.dev}, ""); err != nil {
		program.Release()
		return nil, &BuildError{Device: d.dev.Name(), Log: err.Error()}
	}
	return program, nil
}

// Close releases the queue and context. Buffers and kernels created from
// them must already be released.
func (d *Device) Close() error {
	d.queue.Release()
	d.ctx.Release()
	return nil
}
