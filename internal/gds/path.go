package gds

import (
	"fmt"
	"math"
)

// DefaultArcPoints is the vertex count of turn polygons when none is
// configured.
const DefaultArcPoints = 43

// Path draws a constant-width track as a sequence of straight segments
// and circular turns, each appended as its own polygon. The drawing
// direction starts along +x.
type Path struct {
	width     float64
	layer     int
	arcPoints int

	pos   Point
	dir   float64
	polys []*Polygon
}

// NewPath starts a path of the given width at start.
func NewPath(width float64, start Point, layer int) *Path {
	return &Path{
		width:     width,
		layer:     layer,
		arcPoints: DefaultArcPoints,
		pos:       start,
	}
}

// SetArcPoints sets the vertex count used for turn polygons.
func (p *Path) SetArcPoints(n int) {
	if n >= 4 {
		p.arcPoints = n
	}
}

// Position returns the current drawing position.
func (p *Path) Position() Point { return p.pos }

// Direction returns the current drawing direction in radians.
func (p *Path) Direction() float64 { return p.dir }

// Width returns the track width.
func (p *Path) Width() float64 { return p.width }

// Polygons returns the polygons drawn so far.
func (p *Path) Polygons() []*Polygon { return p.polys }

// Segment draws a straight section of the given length. Direction is
// one of "+x", "-x", "+y", "-y", or empty to keep the current heading.
// The polygon's first two vertices are the left and right corners at the
// segment start, the last two the corners at its end.
func (p *Path) Segment(length float64, direction string) error {
	switch direction {
	case "":
	case "+x":
		p.dir = 0
	case "-x":
		p.dir = math.Pi
	case "+y":
		p.dir = math.Pi / 2
	case "-y":
		p.dir = -math.Pi / 2
	default:
		return fmt.Errorf("gds: unknown direction %q", direction)
	}

	left := unit(p.dir + math.Pi/2).scale(p.width / 2)
	right := left.scale(-1)
	end := p.pos.add(unit(p.dir).scale(length))

	p.polys = append(p.polys, NewPolygon(p.layer,
		p.pos.add(left),
		p.pos.add(right),
		end.add(right),
		end.add(left),
	))
	p.pos = end
	return nil
}

// Turn draws a circular turn of the given centerline radius. The turn
// spec is "l" or "r" for a quarter turn and "ll" or "rr" for a half
// turn, matching the left/right sense of the current heading.
func (p *Path) Turn(radius float64, turn string) error {
	var sweep float64
	switch turn {
	case "l":
		sweep = math.Pi / 2
	case "r":
		sweep = -math.Pi / 2
	case "ll":
		sweep = math.Pi
	case "rr":
		sweep = -math.Pi
	default:
		return fmt.Errorf("gds: unknown turn %q", turn)
	}
	if radius <= p.width/2 {
		return fmt.Errorf("gds: turn radius %g too small for width %g", radius, p.width)
	}

	side := 1.0
	if sweep < 0 {
		side = -1
	}
	center := p.pos.add(unit(p.dir + side*math.Pi/2).scale(radius))
	startAngle := p.dir - side*math.Pi/2

	outerN := (p.arcPoints + 1) / 2
	innerN := p.arcPoints - outerN
	if outerN < 2 {
		outerN = 2
	}
	if innerN < 2 {
		innerN = 2
	}

	outerR := radius + p.width/2
	innerR := radius - p.width/2
	pts := make([]Point, 0, outerN+innerN)
	for i := 0; i < outerN; i++ {
		a := startAngle + sweep*float64(i)/float64(outerN-1)
		pts = append(pts, center.add(unit(a).scale(outerR)))
	}
	for i := innerN - 1; i >= 0; i-- {
		a := startAngle + sweep*float64(i)/float64(innerN-1)
		pts = append(pts, center.add(unit(a).scale(innerR)))
	}
	p.polys = append(p.polys, &Polygon{Layer: p.layer, Points: pts})

	p.pos = center.add(unit(startAngle + sweep).scale(radius))
	p.dir += sweep
	return nil
}

// Translate shifts the whole path, including its drawing position.
func (p *Path) Translate(dx, dy float64) {
	for _, poly := range p.polys {
		poly.Translate(dx, dy)
	}
	p.pos.X += dx
	p.pos.Y += dy
}

// Rotate rotates the whole path about center.
func (p *Path) Rotate(angle float64, center Point) {
	for _, poly := range p.polys {
		poly.Rotate(angle, center)
	}
	sin, cos := math.Sincos(angle)
	x := p.pos.X - center.X
	y := p.pos.Y - center.Y
	p.pos = Point{X: center.X + x*cos - y*sin, Y: center.Y + x*sin + y*cos}
	p.dir += angle
}

// Bounds returns the bounding box of the path's polygons.
func (p *Path) Bounds() (min, max Point) {
	return BoundsOf(p.polys)
}
