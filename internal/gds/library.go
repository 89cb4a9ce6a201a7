package gds

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// GDSII record identifiers, record type in the high byte and data type
// in the low byte.
const (
	recHeader   = 0x0002
	recBgnLib   = 0x0102
	recLibName  = 0x0206
	recUnits    = 0x0305
	recEndLib   = 0x0400
	recBgnStr   = 0x0502
	recStrName  = 0x0606
	recEndStr   = 0x0700
	recBoundary = 0x0800
	recLayer    = 0x0d02
	recDatatype = 0x0e02
	recXY       = 0x1003
	recEndEl    = 0x1100
)

const gdsVersion = 600

// Cell is a named collection of polygons.
type Cell struct {
	Name     string
	Polygons []*Polygon
}

// Add appends polygons to the cell.
func (c *Cell) Add(polys ...*Polygon) {
	c.Polygons = append(c.Polygons, polys...)
}

// AddPath appends all polygons drawn by a path.
func (c *Cell) AddPath(paths ...*Path) {
	for _, p := range paths {
		c.Polygons = append(c.Polygons, p.Polygons()...)
	}
}

// Library is a GDSII library of cells.
type Library struct {
	Name string

	// Unit is the user unit in meters, Precision the database unit.
	// The defaults are microns with nanometer resolution.
	Unit      float64
	Precision float64

	Cells []*Cell
}

// NewLibrary creates a library in micron units.
func NewLibrary(name string) *Library {
	return &Library{Name: name, Unit: 1e-6, Precision: 1e-9}
}

// NewCell adds an empty cell to the library.
func (l *Library) NewCell(name string) *Cell {
	c := &Cell{Name: name}
	l.Cells = append(l.Cells, c)
	return c
}

// Write serializes the library as binary GDSII.
func (l *Library) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	now := time.Now()
	scale := l.Unit / l.Precision

	if err := writeRecord(bw, recHeader, i16(gdsVersion)); err != nil {
		return err
	}
	if err := writeRecord(bw, recBgnLib, timestamp(now)); err != nil {
		return err
	}
	if err := writeRecord(bw, recLibName, padName(l.Name)); err != nil {
		return err
	}
	units := make([]byte, 16)
	binary.BigEndian.PutUint64(units[:8], encodeReal8(l.Precision/l.Unit))
	binary.BigEndian.PutUint64(units[8:], encodeReal8(l.Precision))
	if err := writeRecord(bw, recUnits, units); err != nil {
		return err
	}

	for _, cell := range l.Cells {
		if err := writeRecord(bw, recBgnStr, timestamp(now)); err != nil {
			return err
		}
		if err := writeRecord(bw, recStrName, padName(cell.Name)); err != nil {
			return err
		}
		for _, poly := range cell.Polygons {
			if len(poly.Points) < 3 {
				return fmt.Errorf("gds: cell %s: polygon with %d points", cell.Name, len(poly.Points))
			}
			if err := writeRecord(bw, recBoundary, nil); err != nil {
				return err
			}
			if err := writeRecord(bw, recLayer, i16(poly.Layer)); err != nil {
				return err
			}
			if err := writeRecord(bw, recDatatype, i16(poly.Datatype)); err != nil {
				return err
			}
			xy := make([]byte, 8*(len(poly.Points)+1))
			for i, pt := range poly.Points {
				putCoord(xy[8*i:], pt, scale)
			}
			// GDSII closes boundaries explicitly.
			putCoord(xy[8*len(poly.Points):], poly.Points[0], scale)
			if err := writeRecord(bw, recXY, xy); err != nil {
				return err
			}
			if err := writeRecord(bw, recEndEl, nil); err != nil {
				return err
			}
		}
		if err := writeRecord(bw, recEndStr, nil); err != nil {
			return err
		}
	}

	if err := writeRecord(bw, recEndLib, nil); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile serializes the library to a file.
func (l *Library) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := l.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func putCoord(b []byte, pt Point, scale float64) {
	binary.BigEndian.PutUint32(b[:4], uint32(int32(math.Round(pt.X*scale))))
	binary.BigEndian.PutUint32(b[4:8], uint32(int32(math.Round(pt.Y*scale))))
}

func i16(v int) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func padName(name string) []byte {
	b := []byte(name)
	if len(b)%2 != 0 {
		b = append(b, 0)
	}
	return b
}

// timestamp packs a modification and access time as twelve int16s.
func timestamp(t time.Time) []byte {
	b := make([]byte, 0, 24)
	for i := 0; i < 2; i++ {
		for _, v := range []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second()} {
			b = append(b, byte(v>>8), byte(v))
		}
	}
	return b
}

func writeRecord(w io.Writer, rec uint16, data []byte) error {
	if len(data)+4 > 0xffff {
		return fmt.Errorf("gds: record 0x%04x too long (%d bytes)", rec, len(data))
	}
	hdr := []byte{
		byte((len(data) + 4) >> 8), byte(len(data) + 4),
		byte(rec >> 8), byte(rec),
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// encodeReal8 packs a float64 as a GDSII 8-byte real: a sign bit, a
// base-16 exponent in excess-64 form, and a 56-bit mantissa in [1/16, 1).
func encodeReal8(v float64) uint64 {
	if v == 0 {
		return 0
	}
	var sign uint64
	if v < 0 {
		sign = 1 << 63
		v = -v
	}
	exp := 64
	for v >= 1 && exp < 127 {
		v /= 16
		exp++
	}
	for v < 1.0/16.0 && exp > 0 {
		v *= 16
		exp--
	}
	mant := uint64(v * (1 << 56))
	if mant >= 1<<56 {
		mant = 1<<56 - 1
	}
	return sign | uint64(exp)<<56 | mant
}

// decodeReal8 is the inverse of encodeReal8.
func decodeReal8(bits uint64) float64 {
	if bits == 0 {
		return 0
	}
	sign := 1.0
	if bits&(1<<63) != 0 {
		sign = -1
	}
	exp := int((bits >> 56) & 0x7f)
	mant := float64(bits&(1<<56-1)) / (1 << 56)
	return sign * mant * math.Pow(16, float64(exp-64))
}
