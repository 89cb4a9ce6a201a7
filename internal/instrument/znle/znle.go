// Package znle drives the Rohde & Schwarz ZNLE14 vector network analyzer.
//
// The analyzer organizes measurements into channels holding traces; the
// driver discovers existing channels and traces from the instrument's
// catalog queries and exposes IQ trace data per trace.
package znle

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/quenchlab/labkit/internal/instrument"
)

// ZNLE is the root VNA driver. Call Init after construction to discover
// the instrument's channels, traces, and display windows.
type ZNLE struct {
	*instrument.Instrument

	Params  *Params
	Display *Display

	channels map[int]*Channel
}

// New creates a ZNLE driver over the session.
func New(name string, session instrument.Session) *ZNLE {
	z := &ZNLE{channels: make(map[int]*Channel)}
	z.Instrument = instrument.New(name, session)
	z.Params = newParams(z)
	z.Display = newDisplay(z)
	return z
}

// Init connects and discovers the instrument's current configuration.
func (z *ZNLE) Init(ctx context.Context) error {
	if err := z.Connect(ctx); err != nil {
		return err
	}
	return z.discover(ctx)
}

// Reset issues *rst and rediscovers channels and traces.
func (z *ZNLE) Reset(ctx context.Context) error {
	if err := z.Write("*rst"); err != nil {
		return err
	}
	z.channels = make(map[int]*Channel)
	return z.discover(ctx)
}

func (z *ZNLE) discover(ctx context.Context) error {
	channels, err := z.AllChannels(ctx)
	if err != nil {
		return err
	}
	for num := range channels {
		ch := &Channel{vna: z, num: num, name: fmt.Sprintf("Ch%d", num), traces: make(map[int]*Trace)}
		z.channels[num] = ch
		traces, err := ch.TraceCatalog(ctx)
		if err != nil {
			return err
		}
		for traceNum, traceName := range traces {
			// S-parameter of pre-existing traces is not reported by the
			// catalog; S21 is the instrument default.
			ch.traces[traceNum] = &Trace{channel: ch, num: traceNum, name: traceName, sParam: "S21"}
		}
	}
	if err := z.Display.discover(ctx); err != nil {
		return err
	}
	return nil
}

// parseCatalog splits a "1,'Trc1',2,'Trc2'" style catalog reply into a
// number-to-name map.
func parseCatalog(reply string) (map[int]string, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return map[int]string{}, nil
	}
	fields := strings.Split(reply, ",")
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("catalog reply %q has odd field count", reply)
	}
	out := make(map[int]string, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		num, err := strconv.Atoi(strings.Trim(fields[i], "' "))
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", fields[i], err)
		}
		out[num] = strings.Trim(fields[i+1], "' ")
	}
	return out, nil
}

// AllChannels queries the instrument's channel catalog.
func (z *ZNLE) AllChannels(ctx context.Context) (map[int]string, error) {
	reply, err := z.Ask(ctx, "conf:chan:cat?")
	if err != nil {
		return nil, err
	}
	return parseCatalog(reply)
}

// AllTraces queries the instrument's trace catalog across all channels.
func (z *ZNLE) AllTraces(ctx context.Context) (map[int]string, error) {
	reply, err := z.Ask(ctx, "conf:trac:cat?")
	if err != nil {
		return nil, err
	}
	return parseCatalog(reply)
}

// Channel returns the discovered channel with the given number.
func (z *ZNLE) Channel(num int) (*Channel, bool) {
	ch, ok := z.channels[num]
	return ch, ok
}

// Channels returns all discovered channels in number order.
func (z *ZNLE) Channels() []*Channel {
	nums := make([]int, 0, len(z.channels))
	for num := range z.channels {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	out := make([]*Channel, 0, len(nums))
	for _, num := range nums {
		out = append(out, z.channels[num])
	}
	return out
}

// CreateChannel registers a new channel on the instrument.
func (z *ZNLE) CreateChannel(ctx context.Context, num int) (*Channel, error) {
	existing, err := z.AllChannels(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := existing[num]; ok {
		return nil, fmt.Errorf("%s: channel %d already exists", z.Name(), num)
	}
	ch := &Channel{vna: z, num: num, name: fmt.Sprintf("Ch%d", num), traces: make(map[int]*Trace)}
	z.channels[num] = ch
	return ch, nil
}

// parseIQ splits the comma-separated interleaved I/Q data of an "sdat"
// reply into separate slices.
func parseIQ(reply string) (i, q []float64, err error) {
	fields := strings.Split(strings.TrimSpace(reply), ",")
	if len(fields)%2 != 0 {
		return nil, nil, fmt.Errorf("IQ data has odd value count %d", len(fields))
	}
	i = make([]float64, 0, len(fields)/2)
	q = make([]float64, 0, len(fields)/2)
	for idx, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("IQ value %d %q: %w", idx, f, err)
		}
		if idx%2 == 0 {
			i = append(i, v)
		} else {
			q = append(q, v)
		}
	}
	return i, q, nil
}

// NoisePowerDB converts paired I/Q samples into power in dB,
// 10*log10(i^2+q^2) per point.
func NoisePowerDB(i, q []float64) []float64 {
	n := len(i)
	if len(q) < n {
		n = len(q)
	}
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		out[k] = 10 * math.Log10(i[k]*i[k]+q[k]*q[k])
	}
	return out
}

// IQAllTraces reads the IQ data of every trace on the instrument, chunked
// into per-trace slices of the configured sweep point count.
func (z *ZNLE) IQAllTraces(ctx context.Context) (is, qs [][]float64, err error) {
	reply, err := z.Ask(ctx, "calc:data:all? sdat")
	if err != nil {
		return nil, nil, err
	}
	iAll, qAll, err := parseIQ(reply)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", z.Name(), err)
	}
	points, err := z.Params.SweepPoints.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	if points <= 0 {
		return nil, nil, fmt.Errorf("%s: invalid sweep point count %d", z.Name(), points)
	}
	chunk := func(all []float64) [][]float64 {
		var out [][]float64
		for start := 0; start < len(all); start += points {
			end := start + points
			if end > len(all) {
				end = len(all)
			}
			out = append(out, all[start:end])
		}
		return out
	}
	return chunk(iAll), chunk(qAll), nil
}
