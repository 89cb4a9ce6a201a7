// Package gds builds planar geometry and serializes it as binary GDSII.
//
// Coordinates are in user units, microns by default. A Library holds
// named cells of polygons; Path offers the segment/turn construction
// style used for meandered coplanar waveguides.
package gds

import "math"

// Point is a 2D coordinate in user units.
type Point struct {
	X, Y float64
}

func unit(angle float64) Point {
	return Point{X: math.Cos(angle), Y: math.Sin(angle)}
}

func (p Point) add(q Point) Point              { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) scale(f float64) Point          { return Point{p.X * f, p.Y * f} }

// Polygon is a closed boundary on a layer. Points are stored without the
// closing vertex.
type Polygon struct {
	Layer    int
	Datatype int
	Points   []Point
}

// NewPolygon creates a polygon on the given layer.
func NewPolygon(layer int, points ...Point) *Polygon {
	return &Polygon{Layer: layer, Points: points}
}

// Box creates a rectangle from two opposite corners.
func Box(layer int, min, max Point) *Polygon {
	return NewPolygon(layer,
		Point{min.X, min.Y},
		Point{max.X, min.Y},
		Point{max.X, max.Y},
		Point{min.X, max.Y},
	)
}

// Round creates a circle approximated by the given number of vertices.
func Round(center Point, radius float64, points, layer int) *Polygon {
	if points < 3 {
		points = 3
	}
	pts := make([]Point, points)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(points)
		pts[i] = center.add(unit(a).scale(radius))
	}
	return &Polygon{Layer: layer, Points: pts}
}

// Translate shifts the polygon by (dx, dy).
func (p *Polygon) Translate(dx, dy float64) {
	for i := range p.Points {
		p.Points[i].X += dx
		p.Points[i].Y += dy
	}
}

// Rotate rotates the polygon by angle radians about center.
func (p *Polygon) Rotate(angle float64, center Point) {
	sin, cos := math.Sincos(angle)
	for i := range p.Points {
		x := p.Points[i].X - center.X
		y := p.Points[i].Y - center.Y
		p.Points[i].X = center.X + x*cos - y*sin
		p.Points[i].Y = center.Y + x*sin + y*cos
	}
}

// Bounds returns the polygon's bounding box.
func (p *Polygon) Bounds() (min, max Point) {
	if len(p.Points) == 0 {
		return Point{}, Point{}
	}
	min, max = p.Points[0], p.Points[0]
	for _, pt := range p.Points[1:] {
		min.X = math.Min(min.X, pt.X)
		min.Y = math.Min(min.Y, pt.Y)
		max.X = math.Max(max.X, pt.X)
		max.Y = math.Max(max.Y, pt.Y)
	}
	return min, max
}

// Contains reports whether pt lies inside the polygon.
func (p *Polygon) Contains(pt Point) bool {
	inside := false
	n := len(p.Points)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.Points[i], p.Points[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// BoundsOf returns the joint bounding box of the polygons.
func BoundsOf(polys []*Polygon) (min, max Point) {
	first := true
	for _, p := range polys {
		if len(p.Points) == 0 {
			continue
		}
		pmin, pmax := p.Bounds()
		if first {
			min, max = pmin, pmax
			first = false
			continue
		}
		min.X = math.Min(min.X, pmin.X)
		min.Y = math.Min(min.Y, pmin.Y)
		max.X = math.Max(max.X, pmax.X)
		max.Y = math.Max(max.Y, pmax.Y)
	}
	return min, max
}
