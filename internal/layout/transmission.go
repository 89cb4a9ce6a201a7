package layout

import "github.com/quenchlab/labkit/internal/gds"

// BuildTransmission draws a transmission resonator: 40-unit leads on
// both ends, the meander between them, and optionally touch pads and a
// hole field clipped to a write-area box.
func BuildTransmission(cfg TransmissionConfig, holeCfg *HoleConfig) (*Transmission, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	outer := cfg.OuterRadius()
	avg := (cfg.InnerRadius + outer) / 2
	center := gds.Point{X: cfg.X, Y: cfg.Y}

	p1 := gds.NewPath(cfg.PathWidth, gds.Point{X: 0, Y: 0}, cfg.Layers[0])
	p2 := gds.NewPath(cfg.PathWidth, gds.Point{X: cfg.PathWidth + cfg.Gap, Y: 0}, cfg.Layers[0])
	p3 := gds.NewPath(cfg.EnvelopeWidth, gds.Point{X: (cfg.PathWidth + cfg.Gap) / 2, Y: -cfg.Padding}, cfg.Layers[1])
	p1.SetArcPoints(cfg.ArcPoints)
	p2.SetArcPoints(cfg.ArcPoints)

	b1 := &pathBuilder{p: p1}
	b1.seg(40, "+y")
	b1.turn(outer, "r")
	b1.body(cfg.FirstSegLength, cfg.SegmentLength, cfg.LastSegLength, cfg.TotalLoops, cfg.InnerRadius, outer)
	b1.turn(outer, "r")
	b1.seg(40, "+y")

	b2 := &pathBuilder{p: p2}
	b2.seg(40, "+y")
	b2.turn(cfg.InnerRadius, "r")
	b2.body(cfg.FirstSegLength, cfg.SegmentLength, cfg.LastSegLength, cfg.TotalLoops, outer, cfg.InnerRadius)
	b2.turn(cfg.InnerRadius, "r")
	b2.seg(40, "+y")

	b3 := &pathBuilder{p: p3}
	b3.seg(cfg.Padding+40, "+y")
	b3.turn(avg, "r")
	b3.body(cfg.FirstSegLength, cfg.SegmentLength, cfg.LastSegLength, cfg.TotalLoops, avg, avg)
	b3.turn(avg, "r")
	b3.seg(cfg.Padding+40, "+y")

	for _, b := range []*pathBuilder{b1, b2, b3} {
		if b.err != nil {
			return nil, b.err
		}
	}

	t := &Transmission{Meander: Meander{Path1: p1, Path2: p2, Envelope: p3}}

	// Pad exclusion masks keep their pre-rotation footprint, only the
	// pads themselves rotate with the resonator.
	var mask1, mask2 *gds.Polygon
	if cfg.TouchPads {
		pad1 := transmissionPad(p1, p2, "+y")
		pad2 := transmissionPad(p1, p2, "-y")
		mask1 = paddedBounds(pad1.Points, cfg.Padding, cfg.Layers[1])
		mask2 = paddedBounds(pad2.Points, cfg.Padding, cfg.Layers[1])
		pad1.Rotate(cfg.Rotation, center)
		pad2.Rotate(cfg.Rotation, center)
		t.Pads = []*gds.Polygon{pad1, pad2}
	}

	p1.Rotate(cfg.Rotation, center)
	p2.Rotate(cfg.Rotation, center)
	p3.Rotate(cfg.Rotation, center)

	if holeCfg != nil {
		holeCfg.normalize()
		envMin, envMax := p3.Bounds()
		xMin, xMax := int(envMin.X), int(envMax.X)
		yMin, yMax := int(envMin.Y), int(envMax.Y)
		envelopes := [][]*gds.Polygon{p3.Polygons()}
		if cfg.TouchPads {
			m1Min, _ := mask1.Bounds()
			_, m2Max := mask2.Bounds()
			yMin = int(m1Min.Y + cfg.Padding)
			yMax = int(m2Max.Y - cfg.Padding)
			envelopes = append(envelopes, []*gds.Polygon{mask1}, []*gds.Polygon{mask2})
		}
		if holeCfg.XMin != nil {
			xMin = *holeCfg.XMin
		}
		if holeCfg.XMax != nil {
			xMax = *holeCfg.XMax
		}
		if holeCfg.YMin != nil {
			yMin = *holeCfg.YMin
		}
		if holeCfg.YMax != nil {
			yMax = *holeCfg.YMax
		}
		t.Holes = holeField(fieldSpec{
			gap:         cfg.Gap,
			pathWidth:   cfg.PathWidth,
			innerRadius: cfg.InnerRadius,
			radius:      holeCfg.Radius,
			layer:       cfg.Layers[1],
			xMin:        xMin, xMax: xMax, yMin: yMin, yMax: yMax,
		}, p1, p2, envelopes)
		t.WriteArea = gds.Box(cfg.Layers[0],
			gds.Point{X: float64(xMin), Y: float64(yMin)},
			gds.Point{X: float64(xMax), Y: float64(yMax)})
	}

	return t, nil
}

// Touch pad geometry constants, offsets from the lead corners to the
// pad funnel.
const (
	padFunnelX = 95
	padFunnelY = 75
)

func off(p gds.Point, dx, dy float64) gds.Point {
	return gds.Point{X: p.X + dx, Y: p.Y + dy}
}

// transmissionPad builds the funnel-shaped launch pad joining the two
// track leads. Direction "+y" attaches at the lower lead, "-y" at the
// upper one.
func transmissionPad(path1, path2 *gds.Path, direction string) *gds.Polygon {
	xc, yc := float64(padFunnelX), float64(padFunnelY)
	L, W, T := float64(padLength), float64(padWidth), float64(padThickness)

	if direction == "+y" {
		q1 := path1.Polygons()[0].Points
		q2 := path2.Polygons()[0].Points
		diff := T - (abs(q1[0].X) + abs(q1[1].X))
		return gds.NewPolygon(0,
			q1[1], q1[0],
			off(q1[0], -(xc+diff), -yc),
			off(q1[0], -(xc+diff), -(yc+L+T)),
			off(q2[1], xc+diff, -(yc+L+T)),
			off(q2[1], xc+diff, -yc),
			q2[1], q2[0],
			off(q2[0], xc, -yc),
			off(q2[0], xc, -(yc+L)),
			off(q1[1], -xc, -(yc+L)),
			off(q1[1], -xc, -yc),
		)
	}

	polys1 := path1.Polygons()
	polys2 := path2.Polygons()
	q1 := polys1[len(polys1)-1].Points
	q2 := polys2[len(polys2)-1].Points
	diff := T - (abs(q1[3].X) + abs(q1[2].X))
	return gds.NewPolygon(0,
		q1[2], q1[3],
		off(q1[3], -(xc+diff), yc),
		off(q1[3], -(xc+diff), yc+L+T),
		off(q2[2], xc+diff, yc+L+T),
		off(q2[2], xc+diff, yc),
		q2[2], q2[3],
		off(q2[3], xc, yc),
		off(q2[3], xc, yc+W),
		off(q1[2], -xc, yc+W),
		off(q1[2], -xc, yc),
	)
}

func paddedBounds(pts []gds.Point, pad float64, layer int) *gds.Polygon {
	poly := &gds.Polygon{Points: pts}
	min, max := poly.Bounds()
	return gds.Box(layer,
		gds.Point{X: min.X - pad, Y: min.Y - pad},
		gds.Point{X: max.X + pad, Y: max.Y + pad})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
