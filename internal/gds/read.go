package gds

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// ReadLibrary parses a binary GDSII stream back into a Library.
func ReadLibrary(r io.Reader) (*Library, error) {
	br := bufio.NewReader(r)
	lib := &Library{}

	var cell *Cell
	var poly *Polygon
	scale := 0.0

	for {
		rec, data, err := readRecord(br)
		if err == io.EOF {
			return nil, fmt.Errorf("gds: stream ends before ENDLIB")
		}
		if err != nil {
			return nil, err
		}

		switch rec {
		case recHeader, recBgnLib, recBgnStr, recBoundary:
			// Version, timestamps and element starts carry no state we keep.
		case recLibName:
			lib.Name = string(bytes.TrimRight(data, "\x00"))
		case recUnits:
			if len(data) != 16 {
				return nil, fmt.Errorf("gds: UNITS record of %d bytes", len(data))
			}
			ratio := decodeReal8(binary.BigEndian.Uint64(data[:8]))
			lib.Precision = decodeReal8(binary.BigEndian.Uint64(data[8:]))
			lib.Unit = lib.Precision / ratio
			scale = lib.Precision / lib.Unit
		case recStrName:
			cell = &Cell{Name: string(bytes.TrimRight(data, "\x00"))}
			lib.Cells = append(lib.Cells, cell)
		case recLayer:
			if poly == nil {
				poly = &Polygon{}
			}
			poly.Layer = int(int16(binary.BigEndian.Uint16(data)))
		case recDatatype:
			if poly == nil {
				poly = &Polygon{}
			}
			poly.Datatype = int(int16(binary.BigEndian.Uint16(data)))
		case recXY:
			if poly == nil {
				poly = &Polygon{}
			}
			if scale == 0 {
				return nil, fmt.Errorf("gds: XY record before UNITS")
			}
			n := len(data) / 8
			for i := 0; i < n; i++ {
				x := int32(binary.BigEndian.Uint32(data[8*i:]))
				y := int32(binary.BigEndian.Uint32(data[8*i+4:]))
				poly.Points = append(poly.Points, Point{float64(x) * scale, float64(y) * scale})
			}
			// Drop the explicit closing vertex.
			if n := len(poly.Points); n > 1 && poly.Points[0] == poly.Points[n-1] {
				poly.Points = poly.Points[:n-1]
			}
		case recEndEl:
			if cell == nil || poly == nil {
				return nil, fmt.Errorf("gds: ENDEL outside of an element")
			}
			cell.Polygons = append(cell.Polygons, poly)
			poly = nil
		case recEndStr:
			cell = nil
		case recEndLib:
			return lib, nil
		default:
			// Skip records we do not model (paths, texts, references).
		}
	}
}

// ReadFile parses a GDSII file.
func ReadFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLibrary(f)
}

func readRecord(r io.Reader) (uint16, []byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	size := int(binary.BigEndian.Uint16(hdr[:2]))
	rec := binary.BigEndian.Uint16(hdr[2:])
	if size < 4 {
		return 0, nil, fmt.Errorf("gds: record 0x%04x with size %d", rec, size)
	}
	data := make([]byte, size-4)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, err
	}
	return rec, data, nil
}
