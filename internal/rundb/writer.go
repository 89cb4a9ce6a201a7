// Package rundb stores measurement runs in a simple directory structure.
//
// Each run lives in a numbered subdirectory of a base directory, holding a
// gzipped TSV data file, a JSON metadata file, and any number of named
// blobs. A sqlite catalog indexes runs across base directories.
package rundb

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	dataName     = "data.tsv"
	dataGzName   = "data.tsv.gz"
	metadataName = "metadata.json"
)

const (
	// DefaultMaxID bounds the search for a free run directory.
	DefaultMaxID = 1000000

	// DefaultFsyncEvery is how many rows may accumulate before the data
	// file is flushed and synced.
	DefaultFsyncEvery = 10
)

// WriterOptions tunes a Writer. The zero value selects the defaults.
type WriterOptions struct {
	MaxID      int
	FsyncEvery int
}

func (o WriterOptions) normalize() WriterOptions {
	if o.MaxID == 0 {
		o.MaxID = DefaultMaxID
	}
	if o.FsyncEvery == 0 {
		o.FsyncEvery = DefaultFsyncEvery
	}
	return o
}

// Writer records one run. It claims the lowest free integer subdirectory
// of the base directory, streams rows into data.tsv, and on Close writes
// metadata.json and compresses the data file to data.tsv.gz, verifying
// the compressed copy before removing the original.
type Writer struct {
	// Metadata is serialized to metadata.json on Close. Callers add
	// keys freely before closing.
	Metadata map[string]any

	id       int
	dir      string
	datapath string

	file *os.File
	buf  *bufio.Writer

	fsyncEvery int
	sinceSync  int
	closed     bool
}

// NewWriter claims a run directory under basedir and opens its data file.
func NewWriter(basedir string, opts WriterOptions) (*Writer, error) {
	opts = opts.normalize()
	basedir = expandHome(basedir)
	if err := os.MkdirAll(basedir, 0o755); err != nil {
		return nil, fmt.Errorf("rundb: create base directory: %w", err)
	}

	// Linear scan for the lowest free id. Fine at lab scale.
	id := 0
	for ; id <= opts.MaxID; id++ {
		err := os.Mkdir(filepath.Join(basedir, strconv.Itoa(id)), 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("rundb: claim run directory: %w", err)
		}
	}
	if id > opts.MaxID {
		return nil, fmt.Errorf("rundb: no free run id at or below %d", opts.MaxID)
	}

	dir := filepath.Join(basedir, strconv.Itoa(id))
	datapath := filepath.Join(dir, dataName)
	file, err := os.Create(datapath)
	if err != nil {
		return nil, fmt.Errorf("rundb: create data file: %w", err)
	}

	return &Writer{
		Metadata:   make(map[string]any),
		id:         id,
		dir:        dir,
		datapath:   datapath,
		file:       file,
		buf:        bufio.NewWriter(file),
		fsyncEvery: opts.FsyncEvery,
	}, nil
}

// ID returns the integer run id.
func (w *Writer) ID() int { return w.id }

// Dir returns the run directory.
func (w *Writer) Dir() string { return w.dir }

// DataPath returns the current data file path. It points at the
// compressed file after Close.
func (w *Writer) DataPath() string { return w.datapath }

// MetadataPath returns the path metadata.json will be written to.
func (w *Writer) MetadataPath() string { return filepath.Join(w.dir, metadataName) }

// AddPoint appends one row to the data file. Fields must not contain
// tabs or newlines.
func (w *Writer) AddPoint(point []string) error {
	return w.AddPoints([][]string{point})
}

// AddPoints appends rows to the data file, syncing to disk every
// FsyncEvery rows.
func (w *Writer) AddPoints(points [][]string) error {
	if w.closed {
		return errors.New("rundb: writer is closed")
	}
	for _, point := range points {
		if _, err := w.buf.WriteString(strings.Join(point, "\t")); err != nil {
			return err
		}
		if _, err := w.buf.WriteString("\r\n"); err != nil {
			return err
		}
	}
	w.sinceSync += len(points)
	if w.sinceSync >= w.fsyncEvery {
		w.sinceSync = 0
		if err := w.buf.Flush(); err != nil {
			return err
		}
		if err := w.file.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// AddBlob saves named bytes alongside the data file and returns the
// blob's path. The data and metadata file names are reserved.
func (w *Writer) AddBlob(name string, data []byte) (string, error) {
	switch name {
	case dataName, dataGzName, metadataName:
		return "", fmt.Errorf("rundb: blob name %q is reserved", name)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Close writes the metadata, then compresses the data file and verifies
// the compressed copy against the original before removing it. If
// verification fails both files are left in place.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	meta, err := json.MarshalIndent(w.Metadata, "", "    ")
	if err != nil {
		return fmt.Errorf("rundb: encode metadata: %w", err)
	}
	if err := os.WriteFile(w.MetadataPath(), meta, 0o644); err != nil {
		return fmt.Errorf("rundb: write metadata: %w", err)
	}

	if err := w.buf.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}

	gzpath := w.datapath + ".gz"
	if err := compressFile(w.datapath, gzpath); err != nil {
		return fmt.Errorf("rundb: compress data: %w", err)
	}
	equal, err := filesEqual(w.datapath, gzpath)
	if err != nil {
		return fmt.Errorf("rundb: verify compressed data: %w", err)
	}
	if !equal {
		return fmt.Errorf("rundb: compressed %s does not match %s, leaving both", gzpath, w.datapath)
	}
	// Removal can fail if another program holds the file open. The
	// compressed copy is already verified, so don't fail the close.
	os.Remove(w.datapath)
	w.datapath = gzpath
	return nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// filesEqual compares the MD5 of an uncompressed file against the MD5 of
// a gzip file's decompressed contents.
func filesEqual(uncompressed, compressed string) (bool, error) {
	plain := md5.New()
	fu, err := os.Open(uncompressed)
	if err != nil {
		return false, err
	}
	defer fu.Close()
	if _, err := io.Copy(plain, fu); err != nil {
		return false, err
	}

	unzipped := md5.New()
	fc, err := os.Open(compressed)
	if err != nil {
		return false, err
	}
	defer fc.Close()
	zr, err := gzip.NewReader(fc)
	if err != nil {
		return false, err
	}
	defer zr.Close()
	if _, err := io.Copy(unzipped, zr); err != nil {
		return false, err
	}

	return bytes.Equal(plain.Sum(nil), unzipped.Sum(nil)), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
