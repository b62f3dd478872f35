package camera

import "testing"

func TestScreenWorldRoundTrip(t *testing.T) {
	c := New(800, 600, 1600, 1200)
	c.SetZoom(2)
	c.Pan(120, -45)

	cases := []struct{ sx, sy float32 }{
		{0, 0}, {400, 300}, {799, 599}, {13, 577},
	}
	for _, tc := range cases {
		wx, wy := c.ScreenToWorld(tc.sx, tc.sy)
		sx, sy := c.WorldToScreen(wx, wy)
		if absf(sx-tc.sx) > 0.001 || absf(sy-tc.sy) > 0.001 {
			t.Errorf("round trip (%v,%v) -> (%v,%v)", tc.sx, tc.sy, sx, sy)
		}
	}
}

func TestPanClampsToWorld(t *testing.T) {
	c := New(800, 600, 1600, 1200)

	c.Pan(-1e6, -1e6)
	minX, minY, _, _ := c.VisibleWorldBounds()
	if minX < 0 || minY < 0 {
		t.Errorf("view escaped world at top-left: bounds start (%v,%v)", minX, minY)
	}

	c.Pan(1e6, 1e6)
	_, _, maxX, maxY := c.VisibleWorldBounds()
	if maxX > c.WorldW || maxY > c.WorldH {
		t.Errorf("view escaped world at bottom-right: bounds end (%v,%v)", maxX, maxY)
	}
}

func TestZoomClamped(t *testing.T) {
	c := New(800, 600, 1600, 1200)

	c.SetZoom(1000)
	if c.Zoom != c.MaxZoom {
		t.Errorf("zoom %v, want clamped to %v", c.Zoom, c.MaxZoom)
	}

	c.SetZoom(0.0001)
	if c.Zoom != c.MinZoom {
		t.Errorf("zoom %v, want clamped to %v", c.Zoom, c.MinZoom)
	}
	// At minimum zoom the full world must still cover the viewport.
	minX, minY, maxX, maxY := c.VisibleWorldBounds()
	if minX < -0.001 || minY < -0.001 || maxX > c.WorldW+0.001 || maxY > c.WorldH+0.001 {
		t.Errorf("min-zoom view exceeds world: (%v,%v)-(%v,%v)", minX, minY, maxX, maxY)
	}
}

func TestViewWiderThanWorldCenters(t *testing.T) {
	// World smaller than viewport on both axes.
	c := New(800, 600, 400, 300)
	c.MinZoom = 0.5
	c.SetZoom(0.5)

	c.Pan(500, 500)
	if c.X != 200 || c.Y != 150 {
		t.Errorf("camera (%v,%v), want centered (200,150)", c.X, c.Y)
	}
}

func TestReset(t *testing.T) {
	c := New(800, 600, 1600, 1200)
	c.SetZoom(3)
	c.Pan(300, 200)

	c.Reset()
	if c.X != 800 || c.Y != 600 {
		t.Errorf("reset position (%v,%v), want world center", c.X, c.Y)
	}
	if c.Zoom != 1 {
		t.Errorf("reset zoom %v, want 1", c.Zoom)
	}
}

func TestIsVisible(t *testing.T) {
	c := New(800, 600, 1600, 1200)
	// Camera starts at world center (800, 600), zoom 1: visible x in [400,1200].
	if !c.IsVisible(800, 600, 0) {
		t.Error("world center should be visible")
	}
	if c.IsVisible(100, 600, 10) {
		t.Error("far-left point should be culled")
	}
	if !c.IsVisible(390, 600, 20) {
		t.Error("point just outside should be visible with radius margin")
	}
}
