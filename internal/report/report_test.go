package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quenchlab/labkit/internal/rundb"
)

func writeRun(t *testing.T, dir string) int {
	t.Helper()
	w, err := rundb.NewWriter(dir, rundb.WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	w.Metadata["type"] = "1D"
	w.Metadata["columns"] = []string{"time", "bias", "current"}
	for i := 0; i < 5; i++ {
		point := []string{"0", "1", "2"}
		point[0] = string(rune('0' + i))
		if err := w.AddPoint(point); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return w.ID()
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	id := writeRun(t, dir)

	r, err := rundb.NewReader(dir, id)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Render(r, id, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "echarts") {
		t.Error("output does not embed echarts")
	}
	if !strings.Contains(html, "current") {
		t.Error("measured column missing from report")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	id := writeRun(t, dir)

	out := filepath.Join(dir, "report.html")
	if err := WriteFile(dir, id, out); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat report: %v", err)
	}
	if info.Size() == 0 {
		t.Error("report file is empty")
	}
}

func TestRenderNoColumns(t *testing.T) {
	dir := t.TempDir()
	w, err := rundb.NewWriter(dir, rundb.WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddPoint([]string{"1"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := rundb.NewReader(dir, w.ID())
	if err != nil {
		t.Fatal(err)
	}
	if err := Render(r, w.ID(), &bytes.Buffer{}); err == nil {
		t.Error("expected error for run without column metadata")
	}
}
