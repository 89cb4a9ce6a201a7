package layout

import (
	"math"

	"github.com/quenchlab/labkit/internal/gds"
)

// BuildHanger draws a single hanger resonator: the meander, the coupler
// run, and the short turn that opens the coupler end toward the
// feedline. With cfg.Feedline set it also draws the feedline pair next
// to the coupler.
func BuildHanger(cfg HangerConfig) (*Hanger, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	outer := cfg.OuterRadius()
	avg := (cfg.InnerRadius + outer) / 2
	center := gds.Point{X: cfg.X, Y: cfg.Y}
	couplerGap := cfg.CouplerGap - cfg.FeedlinePathWidth - cfg.PathWidth

	p1 := gds.NewPath(cfg.PathWidth, gds.Point{X: 0, Y: cfg.PathWidth + cfg.Gap}, cfg.Layers[0])
	p2 := gds.NewPath(cfg.PathWidth, gds.Point{X: 0, Y: 0}, cfg.Layers[0])
	p3 := gds.NewPath(cfg.EnvelopeWidth, gds.Point{X: -cfg.Padding, Y: (cfg.PathWidth + cfg.Gap) / 2}, cfg.Layers[1])
	p1.SetArcPoints(cfg.ArcPoints)
	p2.SetArcPoints(cfg.ArcPoints)

	b1 := &pathBuilder{p: p1}
	b1.body(cfg.FirstSegLength, cfg.SegmentLength, cfg.CouplerLength, cfg.TotalLoops, cfg.InnerRadius, outer)
	b1.turn((cfg.Gap+cfg.PathWidth)/2, "rr")

	b2 := &pathBuilder{p: p2}
	b2.body(cfg.FirstSegLength, cfg.SegmentLength, cfg.CouplerLength, cfg.TotalLoops, outer, cfg.InnerRadius)

	b3 := &pathBuilder{p: p3}
	b3.body(cfg.FirstSegLength+cfg.Padding, cfg.SegmentLength,
		cfg.CouplerLength+(cfg.PathWidth+cfg.Gap)/2+cfg.Padding,
		cfg.TotalLoops, avg, avg)

	for _, b := range []*pathBuilder{b1, b2, b3} {
		if b.err != nil {
			return nil, b.err
		}
	}

	h := &Hanger{Meander: Meander{Path1: p1, Path2: p2, Envelope: p3}}

	if cfg.Feedline {
		polys := p2.Polygons()
		cMin, cMax := polys[len(polys)-1].Bounds()
		h.Feedlines = feedlinePair(cMin.X, cMax.X, cMax.Y+couplerGap,
			cfg.FeedlineExtend, cfg.FeedlineWidth, cfg.FeedlinePathWidth)

		p1.Translate(cfg.X, cfg.Y)
		p2.Translate(cfg.X, cfg.Y)
		p3.Translate(cfg.X, cfg.Y)
		for _, f := range h.Feedlines {
			f.Translate(cfg.X, cfg.Y)
		}
		p1.Rotate(cfg.Rotation, center)
		p2.Rotate(cfg.Rotation, center)
		p3.Rotate(cfg.Rotation, center)
		for _, f := range h.Feedlines {
			f.Rotate(cfg.Rotation, center)
		}
		return h, nil
	}

	p1.Rotate(cfg.Rotation, center)
	p2.Rotate(cfg.Rotation, center)
	p3.Rotate(cfg.Rotation, center)
	return h, nil
}

// feedlinePair draws the two ground-gap tracks of a feedline whose
// lower gap edge sits at y, spanning [xMin, xMax] extended on both
// ends.
func feedlinePair(xMin, xMax, y, extend, width, pathWidth float64) []*gds.Polygon {
	lower := gds.Box(0,
		gds.Point{X: xMin - extend, Y: y},
		gds.Point{X: xMax + extend, Y: y + pathWidth})
	upper := gds.Box(0,
		gds.Point{X: xMin - extend, Y: y + pathWidth + width},
		gds.Point{X: xMax + extend, Y: y + pathWidth + width + pathWidth})
	return []*gds.Polygon{lower, upper}
}

// BuildHangerArray places the configured resonators along a shared
// feedline: the bottom row couples from below at a common feedline
// height, the top row is lifted above the feedline by the first bottom
// resonator's height. Hole fields and write masks are produced per
// resonator when holeCfg is given.
func BuildHangerArray(cfg HangerArrayConfig, holeCfg *HoleConfig) (*HangerArray, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	arr := &HangerArray{}
	wantHoles := holeCfg != nil
	if wantHoles {
		holeCfg.normalize()
	}

	// The x advance of resonator i accumulates the widths of the first
	// i built resonators, bottom widths feeding the top row placement
	// as well.
	var widths []float64
	var couplerGap, feedY float64

	for i, rcfg := range cfg.Bottom {
		rcfg.FeedlinePathWidth = cfg.FeedlinePathWidth
		h, err := BuildHanger(rcfg)
		if err != nil {
			return nil, err
		}

		_, p2Max := h.Path2.Bounds()
		p1Min, _ := h.Path1.Bounds()
		widths = append(widths, abs(p2Max.X)+abs(p1Min.X))

		if i == 0 {
			couplerGap = cfg.Bottom[0].CouplerGap - cfg.FeedlinePathWidth - rcfg.PathWidth
			polys := h.Path2.Polygons()
			_, last := polys[len(polys)-1].Bounds()
			feedY = last.Y
		} else {
			dx := sum(widths[:i]) + cfg.MeanderSpacing*float64(i)
			dy := cfg.Bottom[0].CouplerGap - cfg.Bottom[i].CouplerGap
			h.Path1.Translate(dx, dy)
			h.Path2.Translate(dx, dy)
			h.Envelope.Translate(dx, dy)
		}

		arr.Resonators = append(arr.Resonators, &h.Meander)
		if wantHoles {
			arr.appendHoles(&rcfg, holeCfg, &h.Meander)
		}
	}

	// Height and right edge of the first bottom resonator anchor the
	// top row.
	bMin, bMax := arr.Resonators[0].Path2.Bounds()
	height := bMax.Y - bMin.Y
	topRefX := bMax.X

	for i, rcfg := range cfg.Top {
		rcfg.FeedlinePathWidth = cfg.FeedlinePathWidth
		h, err := BuildHanger(rcfg)
		if err != nil {
			return nil, err
		}

		p1Min, _ := h.Path1.Bounds()
		widths = append(widths, topRefX-p1Min.X)

		dy := height + cfg.Bottom[0].CouplerGap + cfg.Top[i].CouplerGap -
			2*rcfg.PathWidth + cfg.FeedlineWidth
		dx := 0.0
		if i != 0 {
			dx = sum(widths[:i]) + cfg.MeanderSpacing*float64(i)
		}
		h.Path1.Translate(dx, dy)
		h.Path2.Translate(dx, dy)
		h.Envelope.Translate(dx, dy)

		arr.Resonators = append(arr.Resonators, &h.Meander)
		if wantHoles {
			arr.appendHoles(&rcfg, holeCfg, &h.Meander)
		}
	}

	// Shared feedline spans the x extent of every resonator's coupler
	// side, extended on both ends, with a launch pad at each end.
	xMin, xMax := math.Inf(1), math.Inf(-1)
	for _, m := range arr.Resonators {
		pMin, pMax := m.Path2.Bounds()
		xMin = math.Min(xMin, pMin.X)
		xMax = math.Max(xMax, pMax.X)
	}
	arr.Feedlines = feedlinePair(xMin, xMax, feedY+couplerGap,
		cfg.FeedlineExtend, cfg.FeedlineWidth, cfg.FeedlinePathWidth)

	left := feedlinePad(arr.Feedlines[0], arr.Feedlines[1], "l", cfg.PadOffset)
	right := feedlinePad(arr.Feedlines[0], arr.Feedlines[1], "r", cfg.PadOffset)
	arr.Pads = []*gds.Polygon{left, right}

	var all []gds.Point
	for _, p := range append(append([]*gds.Polygon{}, arr.Feedlines...), arr.Pads...) {
		all = append(all, p.Points...)
	}
	arr.Masks = append(arr.Masks, paddedBounds(all, 40, 1))

	return arr, nil
}

func (a *HangerArray) appendHoles(rcfg *HangerConfig, holeCfg *HoleConfig, m *Meander) {
	envMin, envMax := m.Envelope.Bounds()
	xMin, xMax := int(envMin.X), int(envMax.X)
	yMin, yMax := int(envMin.Y), int(envMax.Y)

	a.Masks = append(a.Masks, gds.Box(1,
		gds.Point{X: float64(xMin), Y: float64(yMin)},
		gds.Point{X: float64(xMax), Y: float64(yMax)}))

	a.Holes = append(a.Holes, holeField(fieldSpec{
		gap:         rcfg.Gap,
		pathWidth:   rcfg.PathWidth,
		innerRadius: rcfg.InnerRadius,
		radius:      holeCfg.Radius,
		layer:       rcfg.Layers[1],
		xMin:        xMin, xMax: xMax, yMin: yMin, yMax: yMax,
	}, m.Path1, m.Path2, [][]*gds.Polygon{m.Envelope.Polygons()}))
}

// feedlinePad draws the launch pad at one end of the feedline pair,
// funneling the gap tracks out to a square bond pad.
func feedlinePad(lower, upper *gds.Polygon, side string, offset float64) *gds.Polygon {
	L, W, T := float64(padLength), float64(padWidth), float64(padThickness)

	loMin, loMax := lower.Bounds()
	hiMin, hiMax := upper.Bounds()
	mid := (hiMin.Y + loMax.Y) / 2

	innerHi := mid + W/2
	innerLo := mid - W/2
	outerLo := innerLo - T
	outerHi := innerHi + T

	if side == "r" {
		x := loMax.X
		return gds.NewPolygon(0,
			gds.Point{X: x, Y: loMax.Y},
			gds.Point{X: x, Y: loMin.Y},
			gds.Point{X: x + offset, Y: outerLo},
			gds.Point{X: x + offset + L + T, Y: outerLo},
			gds.Point{X: x + offset + L + T, Y: outerHi},
			gds.Point{X: x + offset, Y: outerHi},
			gds.Point{X: x, Y: hiMax.Y},
			gds.Point{X: x, Y: hiMin.Y},
			gds.Point{X: x + offset, Y: innerHi},
			gds.Point{X: x + offset + L, Y: innerHi},
			gds.Point{X: x + offset + L, Y: innerLo},
			gds.Point{X: x + offset, Y: innerLo},
		)
	}

	x := loMin.X
	return gds.NewPolygon(0,
		gds.Point{X: x, Y: loMax.Y},
		gds.Point{X: x, Y: loMin.Y},
		gds.Point{X: x - offset, Y: outerLo},
		gds.Point{X: x - offset - L - T, Y: outerLo},
		gds.Point{X: x - offset - L - T, Y: outerHi},
		gds.Point{X: x - offset, Y: outerHi},
		gds.Point{X: x, Y: hiMax.Y},
		gds.Point{X: x, Y: hiMin.Y},
		gds.Point{X: x - offset, Y: innerHi},
		gds.Point{X: x - offset - L, Y: innerHi},
		gds.Point{X: x - offset - L, Y: innerLo},
		gds.Point{X: x - offset, Y: innerLo},
	)
}

func sum(vs []float64) float64 {
	var t float64
	for _, v := range vs {
		t += v
	}
	return t
}
