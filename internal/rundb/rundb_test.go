package rundb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, WriterOptions{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.AddPoint([]string{"0"}); err != nil {
		t.Fatalf("AddPoint: %v", err)
	}
	if err := w.AddPoint([]string{"1", "foo"}); err != nil {
		t.Fatalf("AddPoint: %v", err)
	}
	w.Metadata["foo"] = "bar"
	if _, err := w.AddBlob("foo.dat", []byte("bar")); err != nil {
		t.Fatalf("AddBlob: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(dir, w.ID())
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	// Twice to make sure AllData rewinds.
	for i := 0; i < 2; i++ {
		rows, err := r.AllData()
		if err != nil {
			t.Fatalf("AllData: %v", err)
		}
		want := [][]string{{"0"}, {"1", "foo"}}
		if diff := cmp.Diff(want, rows); diff != "" {
			t.Errorf("AllData mismatch (-want +got):\n%s", diff)
		}
	}

	if r.Metadata["foo"] != "bar" {
		t.Errorf("metadata foo = %v", r.Metadata["foo"])
	}
	blob, err := r.Blob("foo.dat")
	if err != nil || string(blob) != "bar" {
		t.Errorf("blob = %q, %v", blob, err)
	}
}

func TestWriterClaimsLowestFreeID(t *testing.T) {
	dir := t.TempDir()

	w0, err := NewWriter(dir, WriterOptions{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w0.AddPoint([]string{"0"}); err != nil {
		t.Fatal(err)
	}
	if err := w0.Close(); err != nil {
		t.Fatal(err)
	}
	if w0.ID() != 0 {
		t.Errorf("first id = %d, want 0", w0.ID())
	}

	w1, err := NewWriter(dir, WriterOptions{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w1.AddPoint([]string{"1", ""}); err != nil {
		t.Fatal(err)
	}
	if err := w1.Close(); err != nil {
		t.Fatal(err)
	}
	if w1.ID() != 1 {
		t.Errorf("second id = %d, want 1", w1.ID())
	}

	// Both slots taken, so a writer capped at id 1 has nowhere to go.
	if _, err := NewWriter(dir, WriterOptions{MaxID: 1}); err == nil {
		t.Error("expected error when all ids below MaxID are taken")
	}

	for _, id := range []string{"0", "1"} {
		info, err := os.Stat(filepath.Join(dir, id))
		if err != nil || !info.IsDir() {
			t.Errorf("run directory %s missing", id)
		}
	}

	r0, err := NewReader(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := r0.AllData()
	if err != nil || len(rows) != 1 || rows[0][0] != "0" {
		t.Errorf("run 0 data = %v, %v", rows, err)
	}

	r1, err := NewReader(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	rows, err = r1.AllData()
	if err != nil || len(rows) != 1 || len(rows[0]) != 2 || rows[0][1] != "" {
		t.Errorf("run 1 data = %v, %v", rows, err)
	}
}

func TestWriterCompressRemovesOriginal(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddPoint([]string{"1", "2", "3"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(w.Dir(), "data.tsv")); !os.IsNotExist(err) {
		t.Error("uncompressed data file still present after close")
	}
	if _, err := os.Stat(w.DataPath()); err != nil {
		t.Errorf("compressed data file missing: %v", err)
	}
	if filepath.Base(w.DataPath()) != "data.tsv.gz" {
		t.Errorf("datapath = %s", w.DataPath())
	}
}

func TestAddBlobRejectsReservedNames(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	for _, name := range []string{"data.tsv", "data.tsv.gz", "metadata.json"} {
		if _, err := w.AddBlob(name, []byte("x")); err == nil {
			t.Errorf("blob name %q accepted", name)
		}
	}

	path, err := w.AddBlob("notes.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("AddBlob: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "hello" {
		t.Errorf("blob contents = %q, %v", got, err)
	}
}

func TestCatalog(t *testing.T) {
	c, err := NewCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	defer c.Close()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	runs := []Run{
		{Basedir: "/data", RunID: 0, Name: "sweep", Started: base, Finished: base.Add(time.Minute), Notes: "cooldown 12"},
		{Basedir: "/data", RunID: 1, Name: "watch", Started: base.Add(time.Hour), Finished: base.Add(2 * time.Hour), Interrupted: true, Notes: "aborted early"},
	}
	for _, r := range runs {
		if err := c.RecordRun(r); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	listed, err := c.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d runs", len(listed))
	}
	if listed[0].RunID != 1 || !listed[0].Interrupted {
		t.Errorf("newest run = %+v", listed[0])
	}
	if listed[1].Name != "sweep" || listed[1].Interrupted {
		t.Errorf("oldest run = %+v", listed[1])
	}

	matched, err := c.RunsMatching("cooldown")
	if err != nil {
		t.Fatalf("RunsMatching: %v", err)
	}
	if len(matched) != 1 || matched[0].RunID != 0 {
		t.Errorf("matched = %+v", matched)
	}
}
