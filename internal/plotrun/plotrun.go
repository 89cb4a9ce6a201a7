// Package plotrun renders measurement run data to PNG images.
//
// A Plotter accumulates rows as a run progresses and draws one subplot
// per registered column pair, four subplots to a row. Sweeps with a slow
// axis start a fresh polyline per slow setpoint so traces don't connect
// across the retrace.
package plotrun

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	tileSize    = 4 * vg.Inch
	tilesPerRow = 4
)

type spec struct {
	x, y, z string
}

// Plotter accumulates run data for a set of registered plots.
type Plotter struct {
	mu    sync.Mutex
	specs []spec
	cols  map[string]int

	// lines holds, per spec, the polylines accumulated so far. The last
	// polyline is the one being extended.
	lines [][]plotter.XYs

	// points holds, per spec, flat XYZ data for color-mapped plots.
	points []plotter.XYZs
}

// NewPlotter creates an empty Plotter.
func NewPlotter() *Plotter {
	return &Plotter{cols: make(map[string]int)}
}

// Plot registers an XY line plot of column y against column x.
func (p *Plotter) Plot(x, y string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addSpec(spec{x: x, y: y})
}

// PlotGrid registers a color-mapped scatter of column z over the (x, y)
// plane.
func (p *Plotter) PlotGrid(x, y, z string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addSpec(spec{x: x, y: y, z: z})
}

func (p *Plotter) addSpec(s spec) {
	p.specs = append(p.specs, s)
	p.lines = append(p.lines, []plotter.XYs{nil})
	p.points = append(p.points, nil)
}

// Reset discards all registered plots and accumulated data.
func (p *Plotter) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.specs = nil
	p.lines = nil
	p.points = nil
	p.cols = make(map[string]int)
}

// SetColumns declares the column names of subsequent AddPoint rows.
// Accumulated data is cleared, the registered plots stay.
func (p *Plotter) SetColumns(cols []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cols = make(map[string]int, len(cols))
	for i, c := range cols {
		p.cols[c] = i
	}
	for i := range p.specs {
		p.lines[i] = []plotter.XYs{nil}
		p.points[i] = nil
	}
}

// AddPoint extends every plot whose columns appear in the row.
func (p *Plotter) AddPoint(row []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(row, false)
}

// AddPointNewLine is AddPoint, but line plots start a fresh polyline
// before the point is added.
func (p *Plotter) AddPointNewLine(row []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(row, true)
}

func (p *Plotter) add(row []float64, newLine bool) {
	for i, s := range p.specs {
		xi, okX := p.cols[s.x]
		yi, okY := p.cols[s.y]
		if !okX || !okY || xi >= len(row) || yi >= len(row) {
			continue
		}
		if s.z == "" {
			if newLine {
				p.lines[i] = append(p.lines[i], nil)
			}
			last := len(p.lines[i]) - 1
			p.lines[i][last] = append(p.lines[i][last], plotter.XY{X: row[xi], Y: row[yi]})
			continue
		}
		zi, okZ := p.cols[s.z]
		if !okZ || zi >= len(row) {
			continue
		}
		p.points[i] = append(p.points[i], plotter.XYZ{X: row[xi], Y: row[yi], Z: row[zi]})
	}
}

// HasPlots reports whether any plot has been registered.
func (p *Plotter) HasPlots() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.specs) > 0
}

// RenderPNG draws the registered plots into a single PNG, four subplots
// per row. It returns nil bytes when no plots are registered.
func (p *Plotter) RenderPNG() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.specs) == 0 {
		return nil, nil
	}

	cols := len(p.specs)
	if cols > tilesPerRow {
		cols = tilesPerRow
	}
	rows := (len(p.specs) + tilesPerRow - 1) / tilesPerRow

	grid := make([][]*plot.Plot, rows)
	for r := range grid {
		grid[r] = make([]*plot.Plot, cols)
	}
	for i, s := range p.specs {
		pl, err := p.drawSpec(i, s)
		if err != nil {
			return nil, err
		}
		grid[i/tilesPerRow][i%tilesPerRow] = pl
	}

	img := vgimg.New(vg.Length(cols)*tileSize, vg.Length(rows)*tileSize)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows,
		Cols: cols,
		PadX: vg.Millimeter * 2,
		PadY: vg.Millimeter * 2,
	}
	canvases := plot.Align(grid, tiles, dc)
	for r := range grid {
		for c := range grid[r] {
			if grid[r][c] != nil {
				grid[r][c].Draw(canvases[r][c])
			}
		}
	}

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Plotter) drawSpec(i int, s spec) (*plot.Plot, error) {
	pl := plot.New()
	pl.X.Label.Text = s.x
	pl.Y.Label.Text = s.y

	if s.z != "" {
		return pl, p.drawScatter(pl, i, s)
	}

	colors := lineColors(len(p.lines[i]))
	for j, pts := range p.lines[i] {
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = colors[j]
		line.Width = vg.Points(1)
		pl.Add(line)
	}
	return pl, nil
}

func (p *Plotter) drawScatter(pl *plot.Plot, i int, s spec) error {
	pts := p.points[i]
	if len(pts) == 0 {
		return nil
	}
	zmin, zmax := pts[0].Z, pts[0].Z
	for _, pt := range pts {
		if pt.Z < zmin {
			zmin = pt.Z
		}
		if pt.Z > zmax {
			zmax = pt.Z
		}
	}

	sc, err := plotter.NewScatter(xyzAsXY(pts))
	if err != nil {
		return err
	}
	sc.GlyphStyleFunc = func(j int) draw.GlyphStyle {
		frac := 0.0
		if zmax > zmin {
			frac = (pts[j].Z - zmin) / (zmax - zmin)
		}
		return draw.GlyphStyle{
			Color:  zColor(frac),
			Radius: vg.Points(2),
			Shape:  draw.BoxGlyph{},
		}
	}
	pl.Add(sc)
	pl.Title.Text = fmt.Sprintf("%s [%g, %g]", s.z, zmin, zmax)
	return nil
}

type xyzAsXY plotter.XYZs

func (d xyzAsXY) Len() int { return len(d) }

func (d xyzAsXY) XY(i int) (float64, float64) { return d[i].X, d[i].Y }

// lineColors spreads n hues around the color wheel.
func lineColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	out := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

// zColor maps a normalized value onto a blue-to-red ramp.
func zColor(frac float64) color.Color {
	r, g, b := hslToRGB(0.7*(1-frac), 0.8, 0.5)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
