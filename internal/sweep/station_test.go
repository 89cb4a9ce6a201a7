package sweep

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/quenchlab/labkit/internal/instrument"
	"github.com/quenchlab/labkit/internal/rundb"
)

func constParam(name string, v float64) *instrument.Func {
	return &instrument.Func{
		Name:      name,
		MeasureFn: func(ctx context.Context) (float64, error) { return v, nil },
	}
}

func sinkParam(name string) (*instrument.Func, *[]float64) {
	var got []float64
	f := &instrument.Func{
		Name: name,
		SetFn: func(ctx context.Context, v float64) error {
			got = append(got, v)
			return nil
		},
	}
	return f, &got
}

type fakeTrace struct {
	inst, channel, name, sparam string

	is, qs []float64
	freqs  []float64

	activations int
}

func (t *fakeTrace) TraceName() string                       { return t.name }
func (t *fakeTrace) ChannelName() string                     { return t.channel }
func (t *fakeTrace) SParam() string                          { return t.sparam }
func (t *fakeTrace) InstrumentName() string                  { return t.inst }
func (t *fakeTrace) SetActive(ctx context.Context) error     { t.activations++; return nil }
func (t *fakeTrace) IQTrace(ctx context.Context) (i, q []float64, err error) {
	return t.is, t.qs, nil
}
func (t *fakeTrace) FreqSetpoints(ctx context.Context) ([]float64, error) {
	return t.freqs, nil
}

func TestMeasure(t *testing.T) {
	s := NewStation(t.TempDir())
	s.Verbose = false
	s.FollowParam(constParam("p2", 1.0), 1).FollowParam(constParam("p3", 2.0), 1)

	res, err := s.Measure(context.Background())
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	r, err := rundb.NewReader(res.Basedir, res.ID)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Metadata["type"] != "0D" {
		t.Errorf("type = %v", r.Metadata["type"])
	}
	cols := r.Metadata["columns"].([]any)
	if cols[0] != "time" || cols[1] != "p2" || cols[2] != "p3" {
		t.Errorf("columns = %v", cols)
	}
	rows, err := r.AllData()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0][1] != "1" || rows[0][2] != "2" {
		t.Errorf("rows = %v", rows)
	}
}

func TestSweep(t *testing.T) {
	s := NewStation(t.TempDir())
	s.Verbose = false
	s.FollowParam(constParam("p2", 1.0), 1).FollowParam(constParam("p3", 2.0), 1)

	p1, set := sinkParam("p1")
	setpoints := RangeSpec{Min: 0, Max: 99, Step: 1}.Setpoints()
	res, err := s.Sweep(context.Background(), p1, setpoints, 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(*set) != 100 {
		t.Errorf("param set %d times", len(*set))
	}

	r, err := rundb.NewReader(res.Basedir, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Metadata["type"] != "1D" || r.Metadata["param"] != "p1" {
		t.Errorf("metadata = %v, %v", r.Metadata["type"], r.Metadata["param"])
	}
	cols := r.Metadata["columns"].([]any)
	want := []string{"time", "p1", "p2", "p3"}
	for i, c := range want {
		if cols[i] != c {
			t.Errorf("column %d = %v, want %s", i, cols[i], c)
		}
	}
	if r.Metadata["interrupted"] != false {
		t.Errorf("interrupted = %v", r.Metadata["interrupted"])
	}
	rows, err := r.AllData()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 100 {
		t.Errorf("rows = %d", len(rows))
	}
}

func TestSweepPlot(t *testing.T) {
	s := NewStation(t.TempDir())
	s.Verbose = false
	s.FollowParam(constParam("p2", 1.0), 1)
	s.Plot("p1", "p2")

	p1, _ := sinkParam("p1")
	res, err := s.Sweep(context.Background(), p1, RangeSpec{Min: 0, Max: 9, Step: 1}.Setpoints(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	r, err := rundb.NewReader(res.Basedir, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	img, err := r.Blob("plot.png")
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	if len(img) == 0 {
		t.Error("plot.png is empty")
	}
}

func TestSweepInterrupted(t *testing.T) {
	s := NewStation(t.TempDir())
	s.Verbose = false

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	s.FollowParam(&instrument.Func{
		Name: "p2",
		MeasureFn: func(ctx context.Context) (float64, error) {
			calls++
			if calls == 3 {
				cancel()
			}
			return float64(calls), nil
		},
	}, 1)

	p1, _ := sinkParam("p1")
	res, err := s.Sweep(ctx, p1, RangeSpec{Min: 0, Max: 99, Step: 1}.Setpoints(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	r, err := rundb.NewReader(res.Basedir, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Metadata["interrupted"] != true {
		t.Error("run not marked interrupted")
	}
	rows, err := r.AllData()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3 (point recorded before the cancel check)", len(rows))
	}
}

func TestWatch(t *testing.T) {
	s := NewStation(t.TempDir())
	s.Verbose = false
	s.FollowParam(constParam("p2", 1.0), 1)

	res, err := s.Watch(context.Background(), time.Millisecond, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	r, err := rundb.NewReader(res.Basedir, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Metadata["type"] != "1D" {
		t.Errorf("type = %v", r.Metadata["type"])
	}
	rows, err := r.AllData()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) == 0 {
		t.Error("no rows recorded")
	}
}

func TestMegasweep(t *testing.T) {
	s := NewStation(t.TempDir())
	s.Verbose = false
	s.FollowParam(constParam("p3", 2.0), 1)

	slow, slowSet := sinkParam("slow")
	fast, fastSet := sinkParam("fast")
	res, err := s.Megasweep(context.Background(),
		slow, []float64{0, 1},
		fast, []float64{10, 20, 30},
		0, 0)
	if err != nil {
		t.Fatalf("Megasweep: %v", err)
	}
	if len(*slowSet) != 2 || len(*fastSet) != 6 {
		t.Errorf("setpoint calls = %d slow, %d fast", len(*slowSet), len(*fastSet))
	}

	r, err := rundb.NewReader(res.Basedir, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Metadata["type"] != "2D" {
		t.Errorf("type = %v", r.Metadata["type"])
	}
	if r.Metadata["slow_param"] != "slow" || r.Metadata["fast_param"] != "fast" {
		t.Errorf("params = %v, %v", r.Metadata["slow_param"], r.Metadata["fast_param"])
	}
	rows, err := r.AllData()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Errorf("rows = %d, want 6", len(rows))
	}
	if rows[0][1] != "0" || rows[0][2] != "10" || rows[5][1] != "1" || rows[5][2] != "30" {
		t.Errorf("setpoint columns wrong: %v", rows)
	}
}

func TestSweepVNA1D(t *testing.T) {
	s := NewStation(t.TempDir())
	s.Verbose = false
	s.FollowParam(constParam("p2", 5.0), 1)

	trace := &fakeTrace{
		inst:    "znle",
		channel: "Ch1",
		name:    "Trc1",
		sparam:  "S21",
		is:      []float64{1, 0, 2},
		qs:      []float64{0, 1, 0},
		freqs:   []float64{1e9, 2e9, 3e9},
	}
	s.FollowTrace(trace, 1)

	res, err := s.SweepVNA1D(context.Background(), 0)
	if err != nil {
		t.Fatalf("SweepVNA1D: %v", err)
	}
	if trace.activations != 1 {
		t.Errorf("trace activated %d times", trace.activations)
	}

	r, err := rundb.NewReader(res.Basedir, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Metadata["type"] != "1D_VNA_Sweep" {
		t.Errorf("type = %v", r.Metadata["type"])
	}

	cols := r.Metadata["columns"].([]any)
	want := []string{"time", "znle_frequency", "p2", "znle.ch1.trc1_i", "znle.ch1.trc1_q", "znle.ch1.trc1"}
	if len(cols) != len(want) {
		t.Fatalf("columns = %v", cols)
	}
	for i, c := range want {
		if cols[i] != c {
			t.Errorf("column %d = %v, want %s", i, cols[i], c)
		}
	}

	info := r.Metadata["trace_information"].(map[string]any)
	if info["Trc1"] != "S21" {
		t.Errorf("trace_information = %v", info)
	}

	rows, err := r.AllData()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	// First point: I=1, Q=0, so power is 0 dB.
	if rows[0][2] != "5" || rows[0][3] != "1" || rows[0][4] != "0" || rows[0][5] != "0" {
		t.Errorf("first row = %v", rows[0])
	}
	if rows[0][1] != "1e+09" {
		t.Errorf("frequency column = %v", rows[0][1])
	}
}

func TestSweepVNA2D(t *testing.T) {
	s := NewStation(t.TempDir())
	s.Verbose = false

	trace := &fakeTrace{
		inst:    "znle",
		channel: "Ch1",
		name:    "Trc1",
		sparam:  "S11",
		is:      []float64{1, 1},
		qs:      []float64{0, 0},
		freqs:   []float64{1e9, 2e9},
	}
	s.FollowTrace(trace, 1)

	slow, slowSet := sinkParam("gate")
	res, err := s.SweepVNA2D(context.Background(), slow, []float64{-1, 0, 1}, 0)
	if err != nil {
		t.Fatalf("SweepVNA2D: %v", err)
	}
	if len(*slowSet) != 3 {
		t.Errorf("slow param set %d times", len(*slowSet))
	}
	if trace.activations != 3 {
		t.Errorf("trace activated %d times", trace.activations)
	}

	r, err := rundb.NewReader(res.Basedir, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Metadata["type"] != "2D_VNA_Sweep" {
		t.Errorf("type = %v", r.Metadata["type"])
	}
	rows, err := r.AllData()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Errorf("rows = %d, want 6", len(rows))
	}
}

func TestSweepRecordsToCatalog(t *testing.T) {
	dir := t.TempDir()

	c, err := rundb.NewCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	s := NewStation(dir)
	s.Verbose = false
	s.FollowParam(constParam("p2", 1.0), 1)
	s.AddNotes("catalog test")
	s.SetCatalog(c)

	p1, _ := sinkParam("p1")
	if _, err := s.Sweep(context.Background(), p1, []float64{0, 1, 2}, 0); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	runs, err := c.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Name != "1D" || runs[0].Notes != "catalog test" {
		t.Errorf("catalog runs = %+v", runs)
	}
}

func TestParseRangeSpec(t *testing.T) {
	spec, err := ParseRangeSpec("0:1:0.25")
	if err != nil {
		t.Fatalf("ParseRangeSpec: %v", err)
	}
	got := spec.Setpoints()
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	if len(got) != len(want) {
		t.Fatalf("setpoints = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("setpoint %d = %v, want %v", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"1:2", "a:b:c", "0:1:0", "0:1:-1"} {
		if _, err := ParseRangeSpec(bad); err == nil {
			t.Errorf("ParseRangeSpec(%q) accepted", bad)
		}
	}
}

func TestParseSetpoints(t *testing.T) {
	got, err := ParseSetpoints("1.5, 2, -3")
	if err != nil {
		t.Fatalf("ParseSetpoints: %v", err)
	}
	want := []float64{1.5, 2, -3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %v", i, got[i])
		}
	}

	got, err = ParseSetpoints("0:10:5")
	if err != nil || len(got) != 3 {
		t.Errorf("range form = %v, %v", got, err)
	}

	if _, err := ParseSetpoints("1,x"); err == nil {
		t.Error("bad list accepted")
	}
}
