// Package sim holds the simulation domain model: grid geometry, the
// per-cell boundary mask, simulation parameters and staggered field
// extents. Everything here is plain host-side data; the solver backends
// consume it read-only.
package sim

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// CellType is the low-nibble self type of a mask cell. The four bits are
// velocity (0b0001), pressure (0b0010), horizontal applicability (0b0100)
// and vertical applicability (0b1000). A cell with neither the velocity
// nor the pressure bit but with applicability flags is a no-slip wall.
type CellType uint8

const (
	CellFluid       CellType = 0b0000
	CellNoSlip      CellType = 0b1100
	CellInflow      CellType = 0b1101
	CellInflowHoriz CellType = 0b0101
	CellInflowVert  CellType = 0b1001
	CellSlipHoriz   CellType = 0b0110
	CellSlipVert    CellType = 0b1010
	CellOutflow     CellType = 0b1110
)

// Mask bit layout: high nibble carries "neighbor is fluid" flags, low
// nibble the self type.
const (
	MaskNeighborLeft   uint8 = 0b10000000
	MaskNeighborRight  uint8 = 0b01000000
	MaskNeighborBottom uint8 = 0b00100000
	MaskNeighborTop    uint8 = 0b00010000
	MaskSelf           uint8 = 0b00001111

	FlagVelocity uint8 = 0b0001
	FlagPressure uint8 = 0b0010
	FlagHoriz    uint8 = 0b0100
	FlagVert     uint8 = 0b1000
)

// IsFluid reports whether the self-type nibble of a mask byte is Fluid.
func IsFluid(cell uint8) bool {
	return cell&MaskSelf == uint8(CellFluid)
}

// Extent is a grid size in cells.
type Extent struct {
	X, Y int
}

// Vec2 is a two-component physical quantity (lengths, velocities).
type Vec2 struct {
	X, Y float32
}

// CellTypeFromChar maps a geometry-file character to a cell type.
func CellTypeFromChar(c byte) (CellType, error) {
	switch c {
	case ' ':
		return CellFluid, nil
	case '#':
		return CellNoSlip, nil
	case 'I':
		return CellInflow, nil
	case 'H':
		return CellInflowHoriz, nil
	case 'V':
		return CellInflowVert, nil
	case 'O':
		return CellOutflow, nil
	case '-':
		return CellSlipHoriz, nil
	case '|':
		return CellSlipVert, nil
	}
	return CellFluid, &ValidationError{
		Reason: fmt.Sprintf("character %q is not a valid cell type", c),
	}
}

// CellTypeToChar is the inverse of CellTypeFromChar over the eight valid types.
func CellTypeToChar(t CellType) (byte, error) {
	switch t {
	case CellFluid:
		return ' ', nil
	case CellNoSlip:
		return '#', nil
	case CellInflow:
		return 'I', nil
	case CellInflowHoriz:
		return 'H', nil
	case CellInflowVert:
		return 'V', nil
	case CellOutflow:
		return 'O', nil
	case CellSlipHoriz:
		return '-', nil
	case CellSlipVert:
		return '|', nil
	}
	return 0, &ValidationError{
		Reason: fmt.Sprintf("invalid cell type 0b%04b", uint8(t)),
	}
}

// ValidationError reports an invalid geometry or parameter configuration.
// Startup aborts on these; no partial state is retained.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "geometry: " + e.Reason
}

// Geometry describes the simulation domain: grid size (including the one-cell
// boundary ring), physical lengths, boundary conditions and the cell mask.
// Immutable after construction/load for the remainder of the run.
type Geometry struct {
	size   Extent
	length Vec2
	mesh   Vec2

	velocity Vec2    // prescribed boundary/inflow velocity
	pressure float32 // prescribed boundary pressure (slip walls)

	cells []uint8
}

// LidDrivenCavity builds the procedural default geometry: no-slip walls on
// the left, right and bottom edges and a horizontally moving lid on top.
func LidDrivenCavity(size Extent, length Vec2, u float32) *Geometry {
	g := &Geometry{
		size:     size,
		length:   length,
		mesh:     Vec2{length.X / float32(size.X), length.Y / float32(size.Y)},
		velocity: Vec2{X: u},
		pressure: 0,
		cells:    make([]uint8, size.X*size.Y),
	}
	g.makeLidDrivenCavity()
	return g
}

func (g *Geometry) makeLidDrivenCavity() {
	for i := range g.cells {
		g.cells[i] = uint8(CellFluid)
	}
	for y := 0; y < g.size.Y; y++ {
		g.cells[g.idx(0, y)] = uint8(CellNoSlip)
		g.cells[g.idx(g.size.X-1, y)] = uint8(CellNoSlip)
	}
	for x := 0; x < g.size.X; x++ {
		g.cells[g.idx(x, 0)] = uint8(CellNoSlip)
		g.cells[g.idx(x, g.size.Y-1)] = uint8(CellInflowHoriz)
	}
	setNeighborBits(g.size, g.cells)
}

func (g *Geometry) idx(x, y int) int {
	return y*g.size.X + x
}

// setNeighborBits recomputes the high-nibble neighbor-is-fluid flags by a
// full-grid scan of the four axis neighbors. Directions pointing outside
// the domain are never marked fluid.
func setNeighborBits(size Extent, cells []uint8) {
	fluid := func(x, y int) bool {
		return IsFluid(cells[y*size.X+x])
	}
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			var neighbors uint8
			if x != 0 && fluid(x-1, y) {
				neighbors |= MaskNeighborLeft
			}
			if x != size.X-1 && fluid(x+1, y) {
				neighbors |= MaskNeighborRight
			}
			if y != 0 && fluid(x, y-1) {
				neighbors |= MaskNeighborBottom
			}
			if y != size.Y-1 && fluid(x, y+1) {
				neighbors |= MaskNeighborTop
			}
			i := y*size.X + x
			cells[i] = cells[i]&MaskSelf | neighbors
		}
	}
}

// LoadGeometry reads a geometry description file. The file may override
// size, length, velocity and pressure, and optionally carries a free-form
// ASCII grid (`geometry = free` followed by size.Y rows of size.X cell
// characters, top row first). Without a free-form block the lid-driven
// cavity is generated at the configured size.
func LoadGeometry(path string) (*Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geometry file: %w", err)
	}
	defer f.Close()

	g := &Geometry{
		size:     Extent{128, 128},
		length:   Vec2{1, 1},
		velocity: Vec2{X: 1},
	}

	var freeform []byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, rest, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		fields := strings.Fields(rest)

		switch key {
		case "size":
			if len(fields) >= 2 {
				fmt.Sscan(fields[0], &g.size.X)
				fmt.Sscan(fields[1], &g.size.Y)
			}
		case "length":
			if len(fields) >= 2 {
				fmt.Sscan(fields[0], &g.length.X)
				fmt.Sscan(fields[1], &g.length.Y)
			}
		case "velocity":
			if len(fields) >= 2 {
				fmt.Sscan(fields[0], &g.velocity.X)
				fmt.Sscan(fields[1], &g.velocity.Y)
			}
		case "pressure":
			if len(fields) >= 1 {
				fmt.Sscan(fields[0], &g.pressure)
			}
		case "geometry":
			if len(fields) >= 1 && fields[0] == "free" {
				for i := 0; i < g.size.Y && scanner.Scan(); i++ {
					freeform = append(freeform, scanner.Text()...)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading geometry file: %w", err)
	}

	g.mesh = Vec2{g.length.X / float32(g.size.X), g.length.Y / float32(g.size.Y)}

	if len(freeform) == 0 {
		g.cells = make([]uint8, g.size.X*g.size.Y)
		g.makeLidDrivenCavity()
		return g, nil
	}
	if err := g.setFreeForm(freeform); err != nil {
		return nil, err
	}
	return g, nil
}

// setFreeForm converts a character grid (rows top-to-bottom) into the mask
// (rows stored bottom-to-top, matching the kernel coordinate convention).
func (g *Geometry) setFreeForm(chars []byte) error {
	if len(chars) != g.size.X*g.size.Y {
		return &ValidationError{
			Reason: fmt.Sprintf("free-form data has %d cells, size %dx%d requires %d",
				len(chars), g.size.X, g.size.Y, g.size.X*g.size.Y),
		}
	}
	cells := make([]uint8, g.size.X*g.size.Y)
	for y := 0; y < g.size.Y; y++ {
		for x := 0; x < g.size.X; x++ {
			c := chars[(g.size.Y-y-1)*g.size.X+x]
			t, err := CellTypeFromChar(c)
			if err != nil {
				return err
			}
			cells[y*g.size.X+x] = uint8(t)
		}
	}
	g.cells = cells
	setNeighborBits(g.size, g.cells)
	return nil
}

// Size returns the mask grid size, including the boundary ring.
func (g *Geometry) Size() Extent { return g.size }

// Mesh returns the mesh spacing per axis (length / size).
func (g *Geometry) Mesh() Vec2 { return g.mesh }

// Length returns the physical domain lengths.
func (g *Geometry) Length() Vec2 { return g.length }

// BoundaryVelocity returns the prescribed inflow velocity.
func (g *Geometry) BoundaryVelocity() Vec2 { return g.velocity }

// BoundaryPressure returns the prescribed pressure at slip boundaries.
func (g *Geometry) BoundaryPressure() float32 { return g.pressure }

// Cells returns the mask buffer, one byte per pressure-grid cell.
func (g *Geometry) Cells() []uint8 { return g.cells }

// At returns the mask byte at cell (x, y).
func (g *Geometry) At(x, y int) uint8 { return g.cells[g.idx(x, y)] }

// NumFluidCells counts the cells whose self type is Fluid.
func (g *Geometry) NumFluidCells() int {
	n := 0
	for _, c := range g.cells {
		if IsFluid(c) {
			n++
		}
	}
	return n
}
