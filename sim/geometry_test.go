package sim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLidDrivenCavityLayout(t *testing.T) {
	sizes := []Extent{{3, 3}, {8, 5}, {34, 34}}
	for _, size := range sizes {
		g := LidDrivenCavity(size, Vec2{X: 1, Y: 1}, 1.0)

		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				self := CellType(g.At(x, y) & MaskSelf)

				var want CellType
				switch {
				case y == size.Y-1:
					want = CellInflowHoriz
				case x == 0 || x == size.X-1 || y == 0:
					want = CellNoSlip
				default:
					want = CellFluid
				}
				if self != want {
					t.Errorf("size %v cell (%d,%d): type %04b, want %04b", size, x, y, self, want)
				}
			}
		}
	}
}

func TestLidDrivenCavityFluidCount(t *testing.T) {
	for _, size := range []Extent{{3, 3}, {10, 7}, {34, 34}, {128, 128}} {
		g := LidDrivenCavity(size, Vec2{X: 1, Y: 1}, 1.0)
		want := (size.X - 2) * (size.Y - 2)
		if got := g.NumFluidCells(); got != want {
			t.Errorf("size %v: %d fluid cells, want %d", size, got, want)
		}
	}
}

// Neighbor bits must only be set for in-domain fluid neighbors; cells on
// the outer ring must never point outside the grid.
func TestNeighborBitsStayInDomain(t *testing.T) {
	size := Extent{16, 12}
	g := LidDrivenCavity(size, Vec2{X: 1, Y: 1}, 1.0)

	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			cell := g.At(x, y)
			if x == 0 && cell&MaskNeighborLeft != 0 {
				t.Errorf("cell (0,%d) has left-neighbor bit", y)
			}
			if x == size.X-1 && cell&MaskNeighborRight != 0 {
				t.Errorf("cell (%d,%d) has right-neighbor bit", x, y)
			}
			if y == 0 && cell&MaskNeighborBottom != 0 {
				t.Errorf("cell (%d,0) has bottom-neighbor bit", x)
			}
			if y == size.Y-1 && cell&MaskNeighborTop != 0 {
				t.Errorf("cell (%d,%d) has top-neighbor bit", x, y)
			}

			if cell&MaskNeighborLeft != 0 && !IsFluid(g.At(x-1, y)) {
				t.Errorf("cell (%d,%d) marks non-fluid left neighbor", x, y)
			}
			if cell&MaskNeighborRight != 0 && !IsFluid(g.At(x+1, y)) {
				t.Errorf("cell (%d,%d) marks non-fluid right neighbor", x, y)
			}
		}
	}
}

func TestCellTypeCharRoundTrip(t *testing.T) {
	types := []CellType{
		CellFluid, CellNoSlip, CellInflow, CellInflowHoriz,
		CellInflowVert, CellSlipHoriz, CellSlipVert, CellOutflow,
	}
	for _, typ := range types {
		c, err := CellTypeToChar(typ)
		if err != nil {
			t.Fatalf("type %04b: %v", typ, err)
		}
		back, err := CellTypeFromChar(c)
		if err != nil {
			t.Fatalf("char %q: %v", c, err)
		}
		if back != typ {
			t.Errorf("round trip %04b -> %q -> %04b", typ, c, back)
		}
	}
}

func TestCellTypeFromCharInvalid(t *testing.T) {
	_, err := CellTypeFromChar('Z')
	if err == nil {
		t.Fatal("expected error for invalid cell character")
	}
	var verr *ValidationError
	if !asValidation(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !strings.Contains(err.Error(), "Z") {
		t.Errorf("error %q does not identify the offending character", err.Error())
	}
}

func asValidation(err error, target **ValidationError) bool {
	v, ok := err.(*ValidationError)
	if ok {
		*target = v
	}
	return ok
}

func TestLoadGeometryFreeForm(t *testing.T) {
	// 5x4 grid with an outflow column on the right and a pillar inside.
	content := strings.Join([]string{
		"size = 5 4",
		"length = 2.5 2.0",
		"velocity = 0.5 0",
		"pressure = 0.1",
		"geometry = free",
		"#HHH#",
		"#  #O",
		"#   O",
		"#####",
	}, "\n")

	path := filepath.Join(t.TempDir(), "geom.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	g, err := LoadGeometry(path)
	if err != nil {
		t.Fatalf("LoadGeometry: %v", err)
	}

	if g.Size() != (Extent{5, 4}) {
		t.Fatalf("size %v, want {5 4}", g.Size())
	}
	if g.Mesh().X != 0.5 || g.Mesh().Y != 0.5 {
		t.Errorf("mesh %v, want {0.5 0.5}", g.Mesh())
	}
	if g.BoundaryVelocity().X != 0.5 {
		t.Errorf("boundary velocity %v", g.BoundaryVelocity())
	}
	if g.BoundaryPressure() != 0.1 {
		t.Errorf("boundary pressure %v", g.BoundaryPressure())
	}

	// First file row is the top grid row (y = 3).
	if got := CellType(g.At(1, 3) & MaskSelf); got != CellInflowHoriz {
		t.Errorf("cell (1,3): %04b, want inflow-horiz", got)
	}
	// The pillar cell from row "#  #O" sits at (3,2).
	if got := CellType(g.At(3, 2) & MaskSelf); got != CellNoSlip {
		t.Errorf("cell (3,2): %04b, want no-slip", got)
	}
	if got := CellType(g.At(4, 1) & MaskSelf); got != CellOutflow {
		t.Errorf("cell (4,1): %04b, want outflow", got)
	}
	// Fluid next to the pillar should carry the matching neighbor bits.
	if cell := g.At(2, 2); cell&MaskNeighborRight != 0 {
		t.Errorf("cell (2,2) marks the pillar as fluid: %08b", cell)
	}
	if cell := g.At(2, 1); cell&MaskNeighborLeft == 0 {
		t.Errorf("cell (2,1) misses fluid left neighbor: %08b", cell)
	}
}

func TestLoadGeometryNoFreeFormFallsBack(t *testing.T) {
	content := "size = 6 6\nlength = 1 1\nvelocity = 2 0\n"
	path := filepath.Join(t.TempDir(), "geom.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	g, err := LoadGeometry(path)
	if err != nil {
		t.Fatalf("LoadGeometry: %v", err)
	}
	if got := g.NumFluidCells(); got != 16 {
		t.Errorf("fluid cells %d, want 16", got)
	}
	if got := CellType(g.At(2, 5) & MaskSelf); got != CellInflowHoriz {
		t.Errorf("top row cell: %04b, want inflow-horiz", got)
	}
}

func TestSetFreeFormSizeMismatch(t *testing.T) {
	g := &Geometry{size: Extent{4, 4}}
	err := g.setFreeForm([]byte("####"))
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
	var verr *ValidationError
	if !asValidation(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}
