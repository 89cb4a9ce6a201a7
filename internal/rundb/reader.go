package rundb

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Reader reads a run written by a Writer. Field values stay strings;
// callers convert using the column and type information the sweep layer
// records in the metadata.
type Reader struct {
	// Metadata holds the decoded metadata.json contents.
	Metadata map[string]any

	dir      string
	datapath string
}

// NewReader opens the run with the given id under basedir and loads its
// metadata.
func NewReader(basedir string, id int) (*Reader, error) {
	dir := filepath.Join(expandHome(basedir), strconv.Itoa(id))
	datapath := filepath.Join(dir, dataGzName)
	if _, err := os.Stat(datapath); err != nil {
		return nil, fmt.Errorf("rundb: open run %d: %w", id, err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, metadataName))
	if err != nil {
		return nil, fmt.Errorf("rundb: read metadata: %w", err)
	}
	metadata := make(map[string]any)
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("rundb: decode metadata: %w", err)
	}

	return &Reader{Metadata: metadata, dir: dir, datapath: datapath}, nil
}

// Dir returns the run directory.
func (r *Reader) Dir() string { return r.dir }

// DataPath returns the path of the compressed data file.
func (r *Reader) DataPath() string { return r.datapath }

// AllData decompresses and returns every data row.
func (r *Reader) AllData() ([][]string, error) {
	f, err := os.Open(r.datapath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("rundb: decompress %s: %w", r.datapath, err)
	}
	defer zr.Close()

	var rows [][]string
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		rows = append(rows, strings.Split(line, "\t"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Blob returns the contents of a named blob in the run directory.
func (r *Reader) Blob(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.dir, name))
}
