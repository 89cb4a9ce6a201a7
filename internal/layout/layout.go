// Package layout generates coplanar-waveguide meander resonator
// geometry: transmission resonators, hanger resonators coupled to a
// shared feedline, touch pads, and hole fields for flux trapping.
// Dimensions are in microns.
package layout

import (
	"fmt"

	"github.com/quenchlab/labkit/internal/gds"
)

// Defaults applied by the config normalizers.
const (
	DefaultPadding   = 40
	DefaultArcPoints = 43

	// Feedline touch pad dimensions.
	padLength    = 200
	padWidth     = 200
	padThickness = 50
)

// TransmissionConfig describes a transmission-style meander resonator:
// two parallel tracks snaking through TotalLoops hairpin loops, plus an
// envelope track used for hole exclusion.
type TransmissionConfig struct {
	PathWidth     float64 `json:"path_width"`
	EnvelopeWidth float64 `json:"envelope_width"`
	Gap           float64 `json:"gap"`
	InnerRadius   float64 `json:"inner_radius"`
	SegmentLength float64 `json:"segment_length"`
	TotalLoops    int     `json:"total_loops"`

	Padding   float64 `json:"padding,omitempty"`    // 0 means 40
	Rotation  float64 `json:"rotation,omitempty"`   // radians, about (X, Y)
	Layers    [2]int  `json:"layers,omitempty"`     // zero value means {0, 1}
	ArcPoints int     `json:"arc_points,omitempty"` // 0 means 43
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`

	FirstSegLength float64 `json:"first_seg_length,omitempty"` // 0 means 0.8 * SegmentLength
	LastSegLength  float64 `json:"last_seg_length,omitempty"`  // 0 means 0.8 * SegmentLength
	TouchPads      bool    `json:"touch_pads,omitempty"`
}

func (c *TransmissionConfig) normalize() error {
	if c.TotalLoops < 2 {
		return fmt.Errorf("layout: need at least 2 loops, got %d", c.TotalLoops)
	}
	if c.Padding == 0 {
		c.Padding = DefaultPadding
	}
	if c.ArcPoints == 0 {
		c.ArcPoints = DefaultArcPoints
	}
	if c.Layers == [2]int{} {
		c.Layers = [2]int{0, 1}
	}
	if c.FirstSegLength == 0 {
		c.FirstSegLength = 0.8 * c.SegmentLength
	}
	if c.LastSegLength == 0 {
		c.LastSegLength = 0.8 * c.SegmentLength
	}
	return nil
}

// OuterRadius is the hairpin radius on the wide side of the meander.
func (c *TransmissionConfig) OuterRadius() float64 {
	return c.InnerRadius + c.Gap + c.PathWidth
}

// HangerConfig describes a quarter-wave hanger resonator whose coupler
// section runs parallel to a feedline.
type HangerConfig struct {
	PathWidth     float64 `json:"path_width"`
	EnvelopeWidth float64 `json:"envelope_width"`
	Gap           float64 `json:"gap"`
	InnerRadius   float64 `json:"inner_radius"`
	SegmentLength float64 `json:"segment_length"`
	TotalLoops    int     `json:"total_loops"`

	Padding   float64 `json:"padding,omitempty"`
	Rotation  float64 `json:"rotation,omitempty"`
	Layers    [2]int  `json:"layers,omitempty"`
	ArcPoints int     `json:"arc_points,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`

	FirstSegLength float64 `json:"first_seg_length,omitempty"` // 0 means 0.95 * SegmentLength
	CouplerLength  float64 `json:"coupler_length,omitempty"`   // 0 means 0.95 * SegmentLength

	// CouplerGap is the coupler-to-feedline spacing before the
	// feedline track and resonator track widths are subtracted.
	CouplerGap float64 `json:"coupler_gap"`

	// Feedline adds a feedline pair next to the coupler. Must stay
	// false for configs passed to BuildHangerArray, which draws its
	// own shared feedline.
	Feedline          bool    `json:"feedline,omitempty"`
	FeedlineExtend    float64 `json:"feedline_extend,omitempty"`
	FeedlineWidth     float64 `json:"feedline_width,omitempty"`
	FeedlinePathWidth float64 `json:"feedline_path_width,omitempty"`
}

func (c *HangerConfig) normalize() error {
	if c.TotalLoops < 2 {
		return fmt.Errorf("layout: need at least 2 loops, got %d", c.TotalLoops)
	}
	if c.Padding == 0 {
		c.Padding = DefaultPadding
	}
	if c.ArcPoints == 0 {
		c.ArcPoints = DefaultArcPoints
	}
	if c.Layers == [2]int{} {
		c.Layers = [2]int{0, 1}
	}
	if c.FirstSegLength == 0 {
		c.FirstSegLength = 0.95 * c.SegmentLength
	}
	if c.CouplerLength == 0 {
		c.CouplerLength = 0.95 * c.SegmentLength
	}
	return nil
}

// OuterRadius is the hairpin radius on the wide side of the meander.
func (c *HangerConfig) OuterRadius() float64 {
	return c.InnerRadius + c.Gap + c.PathWidth
}

// HangerArrayConfig places hanger resonators along both sides of a
// shared feedline, bottom row coupling from below and top row from
// above.
type HangerArrayConfig struct {
	Bottom []HangerConfig `json:"bottom"`
	Top    []HangerConfig `json:"top"`

	MeanderSpacing    float64 `json:"meander_spacing,omitempty"`     // 0 means 100
	FeedlineWidth     float64 `json:"feedline_width,omitempty"`      // 0 means 50
	FeedlinePathWidth float64 `json:"feedline_path_width,omitempty"` // 0 means 15
	FeedlineExtend    float64 `json:"feedline_extend,omitempty"`     // 0 means 100
	PadOffset         float64 `json:"pad_offset,omitempty"`          // pad distance from the feedline end, 0 means 100
}

func (c *HangerArrayConfig) normalize() error {
	if len(c.Bottom) == 0 {
		return fmt.Errorf("layout: hanger array needs at least one bottom resonator")
	}
	for _, cfg := range append(append([]HangerConfig{}, c.Bottom...), c.Top...) {
		if cfg.Feedline {
			return fmt.Errorf("layout: array resonators cannot request their own feedline")
		}
	}
	if c.MeanderSpacing == 0 {
		c.MeanderSpacing = 100
	}
	if c.FeedlineWidth == 0 {
		c.FeedlineWidth = 50
	}
	if c.FeedlinePathWidth == 0 {
		c.FeedlinePathWidth = 15
	}
	if c.FeedlineExtend == 0 {
		c.FeedlineExtend = 100
	}
	if c.PadOffset == 0 {
		c.PadOffset = 100
	}
	return nil
}

// HoleConfig describes the flux-trapping hole grid drawn around a
// meander. Nil bound fields default to the meander envelope's bounding
// box.
type HoleConfig struct {
	Radius float64 `json:"radius,omitempty"` // 0 means 5
	XMin   *int    `json:"x_min,omitempty"`
	XMax   *int    `json:"x_max,omitempty"`
	YMin   *int    `json:"y_min,omitempty"`
	YMax   *int    `json:"y_max,omitempty"`
}

func (c *HoleConfig) normalize() {
	if c.Radius == 0 {
		c.Radius = 5
	}
}

// Meander is the drawn geometry of one resonator: the two track paths
// and the wider envelope path around them.
type Meander struct {
	Path1    *gds.Path
	Path2    *gds.Path
	Envelope *gds.Path
}

// Polygons returns all polygons of the meander's three paths.
func (m *Meander) Polygons() []*gds.Polygon {
	var out []*gds.Polygon
	out = append(out, m.Path1.Polygons()...)
	out = append(out, m.Path2.Polygons()...)
	out = append(out, m.Envelope.Polygons()...)
	return out
}

// Transmission is a built transmission resonator.
type Transmission struct {
	Meander
	Pads      []*gds.Polygon
	Holes     []*gds.Polygon
	WriteArea *gds.Polygon
}

// Polygons returns every polygon of the transmission resonator.
func (t *Transmission) Polygons() []*gds.Polygon {
	out := t.Meander.Polygons()
	out = append(out, t.Pads...)
	out = append(out, t.Holes...)
	if t.WriteArea != nil {
		out = append(out, t.WriteArea)
	}
	return out
}

// Hanger is a built hanger resonator.
type Hanger struct {
	Meander
	Feedlines []*gds.Polygon
}

// Polygons returns every polygon of the hanger.
func (h *Hanger) Polygons() []*gds.Polygon {
	return append(h.Meander.Polygons(), h.Feedlines...)
}

// HangerArray is a built hanger array: resonators in bottom-then-top
// order, the shared feedline pair, its two touch pads, per-resonator
// and feedline masks, and per-resonator hole fields.
type HangerArray struct {
	Resonators []*Meander
	Feedlines  []*gds.Polygon
	Pads       []*gds.Polygon
	Masks      []*gds.Polygon
	Holes      [][]*gds.Polygon
}

// Polygons returns every polygon of the array.
func (a *HangerArray) Polygons() []*gds.Polygon {
	var out []*gds.Polygon
	for _, m := range a.Resonators {
		out = append(out, m.Polygons()...)
	}
	out = append(out, a.Feedlines...)
	out = append(out, a.Pads...)
	out = append(out, a.Masks...)
	for _, h := range a.Holes {
		out = append(out, h...)
	}
	return out
}
