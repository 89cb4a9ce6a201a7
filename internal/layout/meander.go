package layout

import "github.com/quenchlab/labkit/internal/gds"

// pathBuilder chains segment/turn calls and keeps the first error.
type pathBuilder struct {
	p   *gds.Path
	err error
}

func (b *pathBuilder) seg(length float64, dir string) {
	if b.err == nil {
		b.err = b.p.Segment(length, dir)
	}
}

func (b *pathBuilder) turn(radius float64, spec string) {
	if b.err == nil {
		b.err = b.p.Turn(radius, spec)
	}
}

// body draws the meander core: a first run of firstSeg, hairpins of
// segment length back and forth, and a final run of lastSeg. The two
// radii alternate between the left (ll) and right (rr) hairpins.
func (b *pathBuilder) body(firstSeg, segment, lastSeg float64, loops int, llRadius, rrRadius float64) {
	b.seg(firstSeg, "+x")
	b.turn(llRadius, "ll")
	b.seg(segment, "-x")
	b.turn(rrRadius, "rr")
	for i := 0; i < loops-2; i++ {
		b.seg(segment, "+x")
		b.turn(llRadius, "ll")
		b.seg(segment, "-x")
		b.turn(rrRadius, "rr")
	}
	b.seg(segment, "+x")
	b.turn(llRadius, "ll")
	b.seg(lastSeg, "-x")
}
