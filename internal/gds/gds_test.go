package gds

import (
	"bytes"
	"math"
	"testing"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSegmentGeometry(t *testing.T) {
	p := NewPath(2, Point{0, 0}, 0)
	if err := p.Segment(10, "+x"); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if got := p.Position(); !almost(got.X, 10) || !almost(got.Y, 0) {
		t.Fatalf("position = %v, want (10, 0)", got)
	}

	polys := p.Polygons()
	if len(polys) != 1 {
		t.Fatalf("got %d polygons, want 1", len(polys))
	}
	pts := polys[0].Points
	want := []Point{{0, 1}, {0, -1}, {10, -1}, {10, 1}}
	if len(pts) != 4 {
		t.Fatalf("got %d vertices, want 4", len(pts))
	}
	for i := range want {
		if !almost(pts[i].X, want[i].X) || !almost(pts[i].Y, want[i].Y) {
			t.Errorf("vertex %d = %v, want %v", i, pts[i], want[i])
		}
	}
}

func TestSegmentKeepsHeading(t *testing.T) {
	p := NewPath(1, Point{0, 0}, 0)
	if err := p.Segment(5, "+y"); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if err := p.Segment(5, ""); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if got := p.Position(); !almost(got.X, 0) || !almost(got.Y, 10) {
		t.Fatalf("position = %v, want (0, 10)", got)
	}
	if err := p.Segment(5, "+z"); err == nil {
		t.Fatal("want error for unknown direction")
	}
}

func TestTurnGeometry(t *testing.T) {
	cases := []struct {
		turn     string
		pos      Point
		dir      float64
	}{
		{"l", Point{10, 10}, math.Pi / 2},
		{"r", Point{10, -10}, -math.Pi / 2},
		{"ll", Point{0, 20}, math.Pi},
		{"rr", Point{0, -20}, -math.Pi},
	}
	for _, c := range cases {
		p := NewPath(2, Point{0, 0}, 0)
		if err := p.Turn(10, c.turn); err != nil {
			t.Fatalf("Turn(%q): %v", c.turn, err)
		}
		got := p.Position()
		if !almost(got.X, c.pos.X) || !almost(got.Y, c.pos.Y) {
			t.Errorf("Turn(%q) position = %v, want %v", c.turn, got, c.pos)
		}
		if !almost(p.Direction(), c.dir) {
			t.Errorf("Turn(%q) direction = %g, want %g", c.turn, p.Direction(), c.dir)
		}
	}
}

func TestTurnRadiusTooSmall(t *testing.T) {
	p := NewPath(4, Point{0, 0}, 0)
	if err := p.Turn(2, "l"); err == nil {
		t.Fatal("want error for radius <= width/2")
	}
}

func TestTurnArcWidth(t *testing.T) {
	p := NewPath(2, Point{0, 0}, 0)
	if err := p.Turn(10, "l"); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	poly := p.Polygons()[0]
	// Every arc vertex sits on the inner or outer radius around (0, 10).
	for _, pt := range poly.Points {
		r := math.Hypot(pt.X, pt.Y-10)
		if !almost(r, 9) && !almost(r, 11) {
			t.Errorf("vertex %v at radius %g, want 9 or 11", pt, r)
		}
	}
}

func TestRoundAndContains(t *testing.T) {
	c := Round(Point{5, 5}, 2, 32, 0)
	if len(c.Points) != 32 {
		t.Fatalf("got %d vertices, want 32", len(c.Points))
	}
	if !c.Contains(Point{5, 5}) {
		t.Error("center not contained")
	}
	if c.Contains(Point{9, 5}) {
		t.Error("point outside radius contained")
	}
}

func TestPathTranslateRotate(t *testing.T) {
	p := NewPath(1, Point{0, 0}, 0)
	if err := p.Segment(10, "+x"); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	p.Rotate(math.Pi/2, Point{0, 0})
	p.Translate(3, 0)
	if got := p.Position(); !almost(got.X, 3) || !almost(got.Y, 10) {
		t.Fatalf("position = %v, want (3, 10)", got)
	}
	if !almost(p.Direction(), math.Pi/2) {
		t.Fatalf("direction = %g, want pi/2", p.Direction())
	}
}

func TestReal8RoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1, -1, 1e-3, 1e-9, 0.25, 1234.5, -6.25e-7} {
		got := decodeReal8(encodeReal8(v))
		if math.Abs(got-v) > math.Abs(v)*1e-12 {
			t.Errorf("real8 round trip of %g gave %g", v, got)
		}
	}
	// The database unit encoding used by every GDSII header.
	if bits := encodeReal8(1e-3); decodeReal8(bits) != 1e-3 {
		t.Errorf("1e-3 not exact: %x", bits)
	}
}

func TestLibraryRoundTrip(t *testing.T) {
	lib := NewLibrary("resonators")
	cell := lib.NewCell("chip")
	cell.Add(Box(0, Point{0, 0}, Point{100, 50}))
	cell.Add(Round(Point{20, 20}, 2.5, 16, 1))
	p := NewPath(2, Point{0, 0}, 1)
	if err := p.Segment(30, "+x"); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if err := p.Turn(8, "l"); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	cell.AddPath(p)

	var buf bytes.Buffer
	if err := lib.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadLibrary(&buf)
	if err != nil {
		t.Fatalf("ReadLibrary: %v", err)
	}
	if got.Name != "resonators" {
		t.Errorf("library name = %q", got.Name)
	}
	if !almost(got.Unit, 1e-6) || !almost(got.Precision, 1e-9) {
		t.Errorf("units = %g/%g, want 1e-6/1e-9", got.Unit, got.Precision)
	}
	if len(got.Cells) != 1 || got.Cells[0].Name != "chip" {
		t.Fatalf("cells = %+v", got.Cells)
	}
	polys := got.Cells[0].Polygons
	if len(polys) != 4 {
		t.Fatalf("got %d polygons, want 4", len(polys))
	}
	if polys[0].Layer != 0 || polys[1].Layer != 1 {
		t.Errorf("layers = %d, %d", polys[0].Layer, polys[1].Layer)
	}
	// Coordinates survive at database resolution (1 nm).
	box := polys[0].Points
	if len(box) != 4 {
		t.Fatalf("box has %d vertices after dropping the closing one", len(box))
	}
	if !almost(box[2].X, 100) || !almost(box[2].Y, 50) {
		t.Errorf("box corner = %v, want (100, 50)", box[2])
	}
	circle := polys[1].Points
	if len(circle) != 16 {
		t.Errorf("circle has %d vertices, want 16", len(circle))
	}
}

func TestWriteRejectsDegeneratePolygon(t *testing.T) {
	lib := NewLibrary("bad")
	lib.NewCell("c").Add(NewPolygon(0, Point{0, 0}, Point{1, 1}))
	if err := lib.Write(&bytes.Buffer{}); err == nil {
		t.Fatal("want error for polygon with fewer than 3 points")
	}
}
