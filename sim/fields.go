package sim

// Staggered field extents, derived from the mask grid size. The velocity
// components live on cell faces (MAC layout): u carries one extra column,
// v one extra row. rhs and residual cover the interior only.

// UExtent returns the extent of the u/F buffers: (w+1) x h.
func UExtent(size Extent) Extent { return Extent{size.X + 1, size.Y} }

// VExtent returns the extent of the v/G buffers: w x (h+1).
func VExtent(size Extent) Extent { return Extent{size.X, size.Y + 1} }

// PExtent returns the extent of the pressure / visualization buffers.
func PExtent(size Extent) Extent { return size }

// InteriorExtent returns the extent of the rhs/residual buffers.
func InteriorExtent(size Extent) Extent { return Extent{size.X - 2, size.Y - 2} }

// Field is a dense row-major float32 grid.
type Field struct {
	W, H int
	Data []float32
}

// NewField allocates a zeroed field of the given extent.
func NewField(e Extent) *Field {
	return &Field{W: e.X, H: e.Y, Data: make([]float32, e.X*e.Y)}
}

// At returns the value at (x, y).
func (f *Field) At(x, y int) float32 { return f.Data[y*f.W+x] }

// Set stores v at (x, y).
func (f *Field) Set(x, y int, v float32) { f.Data[y*f.W+x] = v }

// Fill sets every element to v.
func (f *Field) Fill(v float32) {
	for i := range f.Data {
		f.Data[i] = v
	}
}
