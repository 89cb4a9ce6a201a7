package layout

import (
	"math"

	"github.com/quenchlab/labkit/internal/gds"
)

const holeVertices = 32

// fieldSpec carries the parameters of one hole grid.
type fieldSpec struct {
	gap, pathWidth, innerRadius float64
	radius                      float64
	layer                       int
	xMin, xMax, yMin, yMax      int
}

// holeField fills the bounds with a square grid of circles whose period
// follows the meander pitch, row positions aligned to the first loop of
// the two track paths. Circles overlapping any envelope polygon are
// dropped so the grid never touches the resonator clearance.
func holeField(spec fieldSpec, path1, path2 *gds.Path, envelopes [][]*gds.Polygon) []*gds.Polygon {
	period := int(0.5*(spec.gap+spec.pathWidth) + spec.innerRadius)
	if period <= 0 {
		return nil
	}

	q1 := secondQuad(path1)
	q2 := secondQuad(path2)
	if q1 == nil || q2 == nil {
		return nil
	}
	var firstLoopY float64
	for i := 0; i < 4; i++ {
		firstLoopY += q1.Points[i].Y + q2.Points[i].Y
	}
	firstLoopY /= 8

	// Shift the row origin so one row lands exactly on the first loop.
	rows := int(math.Abs(float64(spec.yMin)-firstLoopY) / float64(period))
	yStart := int(firstLoopY - float64(rows*period))

	var holes []*gds.Polygon
	for x := spec.xMin; x < spec.xMax; x += period {
		for y := yStart; y < spec.yMax; y += period {
			c := gds.Point{X: float64(x), Y: float64(y)}
			if overlapsAny(c, spec.radius, envelopes) {
				continue
			}
			holes = append(holes, gds.Round(c, spec.radius, holeVertices, spec.layer))
		}
	}
	return holes
}

// HolesInBox fills a plain rectangle with a hole grid of the given
// period, dropping circles that overlap any of the keepout polygons.
// Used for ground areas with no meander to align to.
func HolesInBox(xMin, xMax, yMin, yMax int, radius float64, period int, keepout []*gds.Polygon, layer int) []*gds.Polygon {
	if period <= 0 {
		return nil
	}
	var holes []*gds.Polygon
	for x := xMin; x < xMax; x += period {
		for y := yMin; y < yMax; y += period {
			c := gds.Point{X: float64(x), Y: float64(y)}
			if overlapsAny(c, radius, [][]*gds.Polygon{keepout}) {
				continue
			}
			holes = append(holes, gds.Round(c, radius, holeVertices, layer))
		}
	}
	return holes
}

// secondQuad returns the second 4-vertex polygon of the path, the first
// straight run of the meander body.
func secondQuad(p *gds.Path) *gds.Polygon {
	n := 0
	for _, poly := range p.Polygons() {
		if len(poly.Points) == 4 {
			if n == 1 {
				return poly
			}
			n++
		}
	}
	return nil
}

func overlapsAny(c gds.Point, r float64, envelopes [][]*gds.Polygon) bool {
	for _, env := range envelopes {
		for _, poly := range env {
			if circleOverlaps(c, r, poly) {
				return true
			}
		}
	}
	return false
}

// circleOverlaps reports whether the circle at c with radius r has
// interior overlap with the polygon.
func circleOverlaps(c gds.Point, r float64, poly *gds.Polygon) bool {
	if poly.Contains(c) {
		return true
	}
	n := len(poly.Points)
	for i := 0; i < n; i++ {
		a := poly.Points[i]
		b := poly.Points[(i+1)%n]
		if distToSegment(c, a, b) < r {
			return true
		}
	}
	return false
}

func distToSegment(p, a, b gds.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
