package znle

import (
	"context"
	"fmt"
	"sort"
)

// Channel is one measurement channel on the analyzer.
type Channel struct {
	vna    *ZNLE
	num    int
	name   string
	traces map[int]*Trace
}

func (c *Channel) Number() int  { return c.num }
func (c *Channel) Name() string { return c.name }

// TraceCatalog queries the traces configured in this channel.
func (c *Channel) TraceCatalog(ctx context.Context) (map[int]string, error) {
	reply, err := c.vna.Ask(ctx, fmt.Sprintf("conf:chan%d:trac:cat?", c.num))
	if err != nil {
		return nil, err
	}
	return parseCatalog(reply)
}

// Trace returns the known trace with the given number.
func (c *Channel) Trace(num int) (*Trace, bool) {
	t, ok := c.traces[num]
	return t, ok
}

// Traces returns the channel's known traces in number order.
func (c *Channel) Traces() []*Trace {
	nums := make([]int, 0, len(c.traces))
	for num := range c.traces {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	out := make([]*Trace, 0, len(nums))
	for _, num := range nums {
		out = append(out, c.traces[num])
	}
	return out
}

// CreateTrace defines a new trace measuring the given S-parameter.
func (c *Channel) CreateTrace(ctx context.Context, num int, sParam string) (*Trace, error) {
	existing, err := c.vna.AllTraces(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := existing[num]; ok {
		return nil, fmt.Errorf("%s: trace %d already exists", c.vna.Name(), num)
	}
	name := fmt.Sprintf("Trc%d", num)
	if err := c.vna.Write(fmt.Sprintf("calc%d:par:sdef \"%s\", \"%s\"", c.num, name, sParam)); err != nil {
		return nil, err
	}
	t := &Trace{channel: c, num: num, name: name, sParam: sParam}
	c.traces[num] = t
	return t, nil
}

// IQAllChannelTraces reads the IQ data of every trace in this channel,
// chunked by sweep point count.
func (c *Channel) IQAllChannelTraces(ctx context.Context) (is, qs [][]float64, err error) {
	reply, err := c.vna.Ask(ctx, fmt.Sprintf("calc%d:data:chan:dall? sdat", c.num))
	if err != nil {
		return nil, nil, err
	}
	iAll, qAll, err := parseIQ(reply)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c.vna.Name(), err)
	}
	points, err := c.vna.Params.SweepPoints.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	if points <= 0 {
		return nil, nil, fmt.Errorf("%s: invalid sweep point count %d", c.vna.Name(), points)
	}
	for start := 0; start < len(iAll); start += points {
		end := start + points
		if end > len(iAll) {
			end = len(iAll)
		}
		is = append(is, iAll[start:end])
		qs = append(qs, qAll[start:end])
	}
	return is, qs, nil
}

// Trace is a single trace within a channel.
type Trace struct {
	channel *Channel
	num     int
	name    string
	sParam  string
}

func (t *Trace) Number() int { return t.num }

// TraceName returns the instrument-side trace name ("Trc1", ...).
func (t *Trace) TraceName() string { return t.name }

// ChannelName returns the owning channel's name ("Ch1", ...).
func (t *Trace) ChannelName() string { return t.channel.name }

// SParam returns the S-parameter this trace measures.
func (t *Trace) SParam() string { return t.sParam }

// InstrumentName returns the driver's instrument name.
func (t *Trace) InstrumentName() string { return t.channel.vna.Name() }

// SetActive selects this trace as the channel's active trace.
func (t *Trace) SetActive(ctx context.Context) error {
	return t.channel.vna.Write(fmt.Sprintf("calc%d:par:sel %s", t.channel.num, t.name))
}

// Delete removes the trace from the instrument.
func (t *Trace) Delete(ctx context.Context) error {
	if err := t.channel.vna.Write(fmt.Sprintf(":calc:par:del '%s'", t.name)); err != nil {
		return err
	}
	delete(t.channel.traces, t.num)
	return nil
}

// IQTrace reads the trace's I and Q samples.
func (t *Trace) IQTrace(ctx context.Context) (i, q []float64, err error) {
	reply, err := t.channel.vna.Ask(ctx, fmt.Sprintf("calc:data:trac? '%s', sdat", t.name))
	if err != nil {
		return nil, nil, err
	}
	i, q, err = parseIQ(reply)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: trace %s: %w", t.channel.vna.Name(), t.name, err)
	}
	return i, q, nil
}

// IQPoint reads the trace and averages it to a single I/Q pair.
func (t *Trace) IQPoint(ctx context.Context) (i, q float64, err error) {
	is, qs, err := t.IQTrace(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(is) == 0 {
		return 0, 0, fmt.Errorf("%s: trace %s returned no data", t.channel.vna.Name(), t.name)
	}
	for _, v := range is {
		i += v
	}
	for _, v := range qs {
		q += v
	}
	return i / float64(len(is)), q / float64(len(qs)), nil
}

// FreqSetpoints returns the analyzer's frequency axis for this trace.
func (t *Trace) FreqSetpoints(ctx context.Context) ([]float64, error) {
	return t.channel.vna.Params.FreqSetpoints(ctx)
}
