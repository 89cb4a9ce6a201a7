// Package sweep runs measurements against a set of followed instrument
// parameters and records them as numbered runs.
//
// A Station does 0D (Measure), 1D (Sweep), and 2D (Megasweep) sweeps,
// time series with Watch, and frequency-axis sweeps against VNA traces
// with SweepVNA1D and SweepVNA2D. Cancel the context to stop a run
// early; the run is closed out normally and marked interrupted in its
// metadata.
package sweep

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quenchlab/labkit/internal/instrument"
	"github.com/quenchlab/labkit/internal/monitoring"
	"github.com/quenchlab/labkit/internal/plotrun"
	"github.com/quenchlab/labkit/internal/rundb"
)

const timeLayout = "2006-01-02 15:04:05"

// TraceSource is a VNA trace the station can follow. The znle driver's
// Trace satisfies it.
type TraceSource interface {
	TraceName() string
	ChannelName() string
	SParam() string
	InstrumentName() string
	SetActive(ctx context.Context) error
	IQTrace(ctx context.Context) (i, q []float64, err error)
	FreqSetpoints(ctx context.Context) ([]float64, error)
}

// Result identifies a completed run.
type Result struct {
	Basedir  string
	ID       int
	Metadata map[string]any
	DataPath string
}

type followedParam struct {
	param instrument.Measurable
	gain  float64
}

type followedTrace struct {
	trace TraceSource
	gain  float64
}

// Station is a collection of parameters and traces that can be measured
// together.
type Station struct {
	// Verbose controls run progress logging.
	Verbose bool

	basedir   string
	params    []followedParam
	traces    []followedTrace
	traceCols []string
	providers []instrument.MetadataProvider
	plotter   *plotrun.Plotter
	notes     string
	catalog   *rundb.Catalog
}

// NewStation creates a Station recording runs under basedir. An empty
// basedir means the current directory.
func NewStation(basedir string) *Station {
	if basedir == "" {
		if wd, err := os.Getwd(); err == nil {
			basedir = wd
		}
	}
	return &Station{
		Verbose: true,
		basedir: basedir,
		plotter: plotrun.NewPlotter(),
	}
}

// FollowParam adds a parameter to measure on every point. Readings are
// divided by gain; a zero gain means unity.
func (s *Station) FollowParam(p instrument.Measurable, gain float64) *Station {
	if gain == 0 {
		gain = 1
	}
	s.params = append(s.params, followedParam{param: p, gain: gain})
	return s
}

// FollowTrace adds a VNA trace to read during VNA sweeps. Each trace
// contributes an I, a Q, and a power column named after the instrument,
// channel, and trace.
func (s *Station) FollowTrace(t TraceSource, gain float64) *Station {
	if gain == 0 {
		gain = 1
	}
	s.traces = append(s.traces, followedTrace{trace: t, gain: gain})
	prefix := fmt.Sprintf("%s.%s.%s",
		strings.ToLower(t.InstrumentName()),
		strings.ToLower(t.ChannelName()),
		strings.ToLower(t.TraceName()))
	s.traceCols = append(s.traceCols, prefix+"_i", prefix+"_q", prefix)
	return s
}

// AddInstrument registers a driver whose settings are captured into
// every run's metadata.
func (s *Station) AddInstrument(p instrument.MetadataProvider) *Station {
	s.providers = append(s.providers, p)
	return s
}

// AddNotes attaches free-form notes recorded in run metadata.
func (s *Station) AddNotes(note string) *Station {
	s.notes = note
	return s
}

// SetCatalog registers a catalog that completed runs are indexed into.
func (s *Station) SetCatalog(c *rundb.Catalog) *Station {
	s.catalog = c
	return s
}

// Plot registers a live plot of column y against column x, rendered to
// plot.png when a run completes.
func (s *Station) Plot(x, y string) { s.plotter.Plot(x, y) }

// PlotGrid registers a color-mapped plot of column z over (x, y).
func (s *Station) PlotGrid(x, y, z string) { s.plotter.PlotGrid(x, y, z) }

// ResetPlots discards all registered plots.
func (s *Station) ResetPlots() { s.plotter.Reset() }

func (s *Station) printf(format string, args ...any) {
	if s.Verbose {
		monitoring.Logf(format, args...)
	}
}

func (s *Station) measure(ctx context.Context) ([]float64, error) {
	out := make([]float64, 0, len(s.params))
	for _, fp := range s.params {
		v, err := fp.param.Measure(ctx)
		if err != nil {
			return nil, fmt.Errorf("measure %s: %w", fp.param.FullName(), err)
		}
		out = append(out, v/fp.gain)
	}
	return out, nil
}

func (s *Station) colNames() []string {
	cols := make([]string, 0, len(s.params)+len(s.traceCols))
	for _, fp := range s.params {
		cols = append(cols, fp.param.FullName())
	}
	return append(cols, s.traceCols...)
}

// instrumentsUsed lists the distinct instruments behind the followed
// parameters and traces, in follow order.
func (s *Station) instrumentsUsed() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, fp := range s.params {
		if b, ok := fp.param.(instrument.InstrumentBound); ok {
			add(b.Instrument().Name())
		}
	}
	for _, ft := range s.traces {
		add(ft.trace.InstrumentName())
	}
	return names
}

// writeHeader fills the metadata shared by every sweep type.
func (s *Station) writeHeader(ctx context.Context, w *rundb.Writer, runType string, columns []string) error {
	if s.notes != "" {
		w.Metadata["notes"] = s.notes
	}
	if host, err := os.Hostname(); err == nil {
		w.Metadata["computer used"] = host
	}
	if exe, err := os.Executable(); err == nil {
		w.Metadata["measurement code ran from file"] = exe
	}
	w.Metadata["instruments used"] = s.instrumentsUsed()
	w.Metadata["type"] = runType
	w.Metadata["columns"] = columns
	for _, p := range s.providers {
		summary, err := p.MetadataSummary(ctx)
		if err != nil {
			return fmt.Errorf("metadata for %s: %w", p.Name(), err)
		}
		for k, v := range summary {
			w.Metadata[fmt.Sprintf("%s (%s)", k, p.Name())] = v
		}
	}
	s.plotter.SetColumns(columns)
	return nil
}

func (s *Station) markStart(w *rundb.Writer) time.Time {
	now := time.Now()
	w.Metadata["interrupted"] = false
	w.Metadata["start_time"] = unixSeconds(now)
	w.Metadata["human_readable start time"] = now.Format(timeLayout)
	return now
}

// completeRun stamps the end-time metadata, saves the plot image if any,
// closes the writer, and indexes the run in the catalog.
func (s *Station) completeRun(w *rundb.Writer, runType string, start time.Time, interrupted bool) (*Result, error) {
	end := time.Now()
	w.Metadata["end_time"] = unixSeconds(end)
	w.Metadata["human_readable end time"] = end.Format(timeLayout)
	duration := end.Sub(start)
	w.Metadata["time taken"] = secToStr(duration)
	if interrupted {
		w.Metadata["interrupted"] = true
	}

	if s.plotter.HasPlots() {
		img, err := s.plotter.RenderPNG()
		if err != nil {
			monitoring.Logf("render run plot: %v", err)
		} else if img != nil {
			if _, err := w.AddBlob("plot.png", img); err != nil {
				monitoring.Logf("save run plot: %v", err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	if s.catalog != nil {
		err := s.catalog.RecordRun(rundb.Run{
			Basedir:     s.basedir,
			RunID:       w.ID(),
			Name:        runType,
			Started:     start,
			Finished:    end,
			Interrupted: interrupted,
			Notes:       s.notes,
		})
		if err != nil {
			monitoring.Logf("catalog run %d: %v", w.ID(), err)
		}
	}

	s.printf("Completed in %s", secToStr(duration))
	s.printf("Data saved in %s", w.DataPath())
	return &Result{Basedir: s.basedir, ID: w.ID(), Metadata: w.Metadata, DataPath: w.DataPath()}, nil
}

// abortRun closes the writer after a mid-run failure, keeping whatever
// data was already recorded.
func (s *Station) abortRun(w *rundb.Writer, cause error) error {
	if err := w.Close(); err != nil {
		monitoring.Logf("close aborted run %d: %v", w.ID(), err)
	}
	return cause
}

// Measure records a single reading of every followed parameter.
func (s *Station) Measure(ctx context.Context) (*Result, error) {
	w, err := rundb.NewWriter(s.basedir, rundb.WriterOptions{})
	if err != nil {
		return nil, err
	}
	now := time.Now()
	w.Metadata["type"] = "0D"
	w.Metadata["columns"] = append([]string{"time"}, s.colNames()...)
	w.Metadata["time"] = unixSeconds(now)

	vals, err := s.measure(ctx)
	if err != nil {
		return nil, s.abortRun(w, err)
	}
	row := append([]float64{unixSeconds(now)}, vals...)
	if err := w.AddPoint(formatRow(row)); err != nil {
		return nil, s.abortRun(w, err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	s.printf("Data saved in %s", w.DataPath())
	return &Result{Basedir: s.basedir, ID: w.ID(), Metadata: w.Metadata, DataPath: w.DataPath()}, nil
}

// Watch measures the followed parameters repeatedly until the context is
// canceled or maxDuration elapses. A zero maxDuration watches until
// canceled.
func (s *Station) Watch(ctx context.Context, delay, maxDuration time.Duration) (*Result, error) {
	w, err := rundb.NewWriter(s.basedir, rundb.WriterOptions{})
	if err != nil {
		return nil, err
	}
	s.printf("Starting run with ID %d", w.ID())

	columns := append([]string{"time"}, s.colNames()...)
	if err := s.writeHeader(ctx, w, "1D", columns); err != nil {
		return nil, s.abortRun(w, err)
	}
	w.Metadata["delay"] = delay.Seconds()
	if maxDuration > 0 {
		w.Metadata["max_duration"] = maxDuration.Seconds()
	} else {
		w.Metadata["max_duration"] = nil
	}
	start := s.markStart(w)

	interrupted := false
	for maxDuration == 0 || time.Since(start) < maxDuration {
		sleep(ctx, delay)
		vals, err := s.measure(ctx)
		if err != nil {
			return nil, s.abortRun(w, err)
		}
		row := append([]float64{unixSeconds(time.Now())}, vals...)
		if err := w.AddPoint(formatRow(row)); err != nil {
			return nil, s.abortRun(w, err)
		}
		s.plotter.AddPoint(row)
		if ctx.Err() != nil {
			interrupted = true
			break
		}
	}
	return s.completeRun(w, "1D", start, interrupted)
}

// Sweep drives param through the setpoints, measuring the followed
// parameters at each one.
func (s *Station) Sweep(ctx context.Context, param instrument.Settable, setpoints []float64, delay time.Duration) (*Result, error) {
	w, err := rundb.NewWriter(s.basedir, rundb.WriterOptions{})
	if err != nil {
		return nil, err
	}
	s.printf("Starting run with ID %d", w.ID())
	s.printf("Minimum duration %s", secToStr(time.Duration(len(setpoints))*delay))

	columns := append([]string{"time", param.FullName()}, s.colNames()...)
	if err := s.writeHeader(ctx, w, "1D", columns); err != nil {
		return nil, s.abortRun(w, err)
	}
	w.Metadata["delay"] = delay.Seconds()
	w.Metadata["param"] = param.FullName()
	w.Metadata["setpoints"] = setpoints
	start := s.markStart(w)

	interrupted := false
	for _, sp := range setpoints {
		if err := param.SetValue(ctx, sp); err != nil {
			return nil, s.abortRun(w, err)
		}
		sleep(ctx, delay)
		vals, err := s.measure(ctx)
		if err != nil {
			return nil, s.abortRun(w, err)
		}
		row := append([]float64{unixSeconds(time.Now()), sp}, vals...)
		if err := w.AddPoint(formatRow(row)); err != nil {
			return nil, s.abortRun(w, err)
		}
		s.plotter.AddPoint(row)
		if ctx.Err() != nil {
			interrupted = true
			break
		}
	}
	return s.completeRun(w, "1D", start, interrupted)
}

// Megasweep drives the slow parameter through slowV and, at each slow
// setpoint, the fast parameter through fastV.
func (s *Station) Megasweep(ctx context.Context, slow instrument.Settable, slowV []float64, fast instrument.Settable, fastV []float64, slowDelay, fastDelay time.Duration) (*Result, error) {
	w, err := rundb.NewWriter(s.basedir, rundb.WriterOptions{})
	if err != nil {
		return nil, err
	}
	s.printf("Starting run with ID %d", w.ID())
	minDuration := time.Duration(len(slowV)*len(fastV))*fastDelay + time.Duration(len(slowV))*slowDelay
	s.printf("Minimum duration %s", secToStr(minDuration))

	columns := append([]string{"time", slow.FullName(), fast.FullName()}, s.colNames()...)
	if err := s.writeHeader(ctx, w, "2D", columns); err != nil {
		return nil, s.abortRun(w, err)
	}
	w.Metadata["slow_delay"] = slowDelay.Seconds()
	w.Metadata["fast_delay"] = fastDelay.Seconds()
	w.Metadata["slow_param"] = slow.FullName()
	w.Metadata["fast_param"] = fast.FullName()
	w.Metadata["slow_setpoints"] = slowV
	w.Metadata["fast_setpoints"] = fastV
	start := s.markStart(w)

	interrupted := false
outer:
	for _, ov := range slowV {
		if err := slow.SetValue(ctx, ov); err != nil {
			return nil, s.abortRun(w, err)
		}
		sleep(ctx, slowDelay)
		for j, iv := range fastV {
			if err := fast.SetValue(ctx, iv); err != nil {
				return nil, s.abortRun(w, err)
			}
			sleep(ctx, fastDelay)
			vals, err := s.measure(ctx)
			if err != nil {
				return nil, s.abortRun(w, err)
			}
			row := append([]float64{unixSeconds(time.Now()), ov, iv}, vals...)
			if err := w.AddPoint(formatRow(row)); err != nil {
				return nil, s.abortRun(w, err)
			}
			if j == 0 {
				s.plotter.AddPointNewLine(row)
			} else {
				s.plotter.AddPoint(row)
			}
			if ctx.Err() != nil {
				interrupted = true
				break outer
			}
		}
	}
	return s.completeRun(w, "2D", start, interrupted)
}

// readTraces reads every followed trace and returns, per frequency
// point, the concatenated (I, Q, power) triplets of all traces.
func (s *Station) readTraces(ctx context.Context, delay time.Duration) ([][]float64, error) {
	var points [][]float64
	for _, ft := range s.traces {
		if err := ft.trace.SetActive(ctx); err != nil {
			return nil, err
		}
		is, qs, err := ft.trace.IQTrace(ctx)
		if err != nil {
			return nil, err
		}
		if points == nil {
			points = make([][]float64, len(is))
		}
		if len(is) != len(points) {
			return nil, fmt.Errorf("trace %s: %d points, expected %d", ft.trace.TraceName(), len(is), len(points))
		}
		for k := range is {
			power := 10 * math.Log10(is[k]*is[k]+qs[k]*qs[k])
			points[k] = append(points[k], is[k], qs[k], power)
		}
		sleep(ctx, delay)
	}
	return points, nil
}

func (s *Station) traceInformation() map[string]string {
	infos := make(map[string]string, len(s.traces))
	for _, ft := range s.traces {
		infos[ft.trace.TraceName()] = ft.trace.SParam()
	}
	return infos
}

// SweepVNA1D records one frequency sweep of every followed trace,
// alongside the followed parameters.
func (s *Station) SweepVNA1D(ctx context.Context, delay time.Duration) (*Result, error) {
	if len(s.traces) == 0 {
		return nil, fmt.Errorf("sweep: no traces followed")
	}
	first := s.traces[0].trace
	fastName := first.InstrumentName() + "_frequency"
	fastV, err := first.FreqSetpoints(ctx)
	if err != nil {
		return nil, err
	}

	w, err := rundb.NewWriter(s.basedir, rundb.WriterOptions{})
	if err != nil {
		return nil, err
	}
	s.printf("Starting run with ID %d", w.ID())
	s.printf("Minimum duration %s", secToStr(time.Duration(len(s.traces))*(time.Second+delay)))

	columns := append([]string{"time", fastName}, s.colNames()...)
	if err := s.writeHeader(ctx, w, "1D_VNA_Sweep", columns); err != nil {
		return nil, s.abortRun(w, err)
	}
	w.Metadata["delay"] = delay.Seconds()
	w.Metadata["trace_information"] = s.traceInformation()
	w.Metadata[first.InstrumentName()+"_freq_setpoints"] = fastV
	start := s.markStart(w)

	tracePoints, err := s.readTraces(ctx, delay)
	if err != nil {
		return nil, s.abortRun(w, err)
	}
	if len(tracePoints) != len(fastV) {
		return nil, s.abortRun(w, fmt.Errorf("sweep: %d trace points for %d frequency setpoints", len(tracePoints), len(fastV)))
	}

	interrupted := false
	for j, pt := range tracePoints {
		vals, err := s.measure(ctx)
		if err != nil {
			return nil, s.abortRun(w, err)
		}
		row := append([]float64{unixSeconds(time.Now()), fastV[j]}, vals...)
		row = append(row, pt...)
		if err := w.AddPoint(formatRow(row)); err != nil {
			return nil, s.abortRun(w, err)
		}
		s.plotter.AddPoint(row)
		if ctx.Err() != nil {
			interrupted = true
			break
		}
	}
	return s.completeRun(w, "1D_VNA_Sweep", start, interrupted)
}

// SweepVNA2D drives the slow parameter through slowV and records a full
// frequency sweep of every followed trace at each slow setpoint.
func (s *Station) SweepVNA2D(ctx context.Context, slow instrument.Settable, slowV []float64, slowDelay time.Duration) (*Result, error) {
	if len(s.traces) == 0 {
		return nil, fmt.Errorf("sweep: no traces followed")
	}
	first := s.traces[0].trace
	fastName := first.InstrumentName() + "_frequency"
	fastV, err := first.FreqSetpoints(ctx)
	if err != nil {
		return nil, err
	}

	w, err := rundb.NewWriter(s.basedir, rundb.WriterOptions{})
	if err != nil {
		return nil, err
	}
	s.printf("Starting run with ID %d", w.ID())
	s.printf("Minimum duration %s", secToStr(time.Duration(len(slowV))*slowDelay))

	columns := append([]string{"time", slow.FullName(), fastName}, s.colNames()...)
	if err := s.writeHeader(ctx, w, "2D_VNA_Sweep", columns); err != nil {
		return nil, s.abortRun(w, err)
	}
	w.Metadata["slow_delay"] = slowDelay.Seconds()
	w.Metadata["fast_delay"] = 0.0
	w.Metadata["slow_param"] = slow.FullName()
	w.Metadata["fast_param"] = fastName
	w.Metadata["trace_information"] = s.traceInformation()
	w.Metadata["slow_setpoints"] = slowV
	w.Metadata["fast_setpoints"] = fastV
	start := s.markStart(w)

	interrupted := false
outer:
	for _, ov := range slowV {
		if err := slow.SetValue(ctx, ov); err != nil {
			return nil, s.abortRun(w, err)
		}
		sleep(ctx, slowDelay)

		vals, err := s.measure(ctx)
		if err != nil {
			return nil, s.abortRun(w, err)
		}
		tracePoints, err := s.readTraces(ctx, 0)
		if err != nil {
			return nil, s.abortRun(w, err)
		}
		if len(tracePoints) != len(fastV) {
			return nil, s.abortRun(w, fmt.Errorf("sweep: %d trace points for %d frequency setpoints", len(tracePoints), len(fastV)))
		}

		for j, pt := range tracePoints {
			row := append([]float64{unixSeconds(time.Now()), ov, fastV[j]}, vals...)
			row = append(row, pt...)
			if err := w.AddPoint(formatRow(row)); err != nil {
				return nil, s.abortRun(w, err)
			}
			if j == 0 {
				s.plotter.AddPointNewLine(row)
			} else {
				s.plotter.AddPoint(row)
			}
			if ctx.Err() != nil {
				interrupted = true
				break outer
			}
		}
	}
	return s.completeRun(w, "2D_VNA_Sweep", start, interrupted)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func formatRow(row []float64) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

func secToStr(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, sec)
}

// sleep waits for d or until the context is canceled.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
