package znle

import (
	"context"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/quenchlab/labkit/internal/instrument"
)

// sweepTypes enumerates the sweep types the driver accepts.
var sweepTypes = map[string]string{
	"LIN": "Linear",
	"LOG": "Logarithmic",
	"CW":  "Time Sweep",
}

// Params groups the analyzer's stimulus and acquisition settings.
type Params struct {
	vna *ZNLE

	FreqCenter *instrument.FloatParam
	FreqSpan   *instrument.FloatParam
	FreqStart  *instrument.FloatParam
	FreqStop   *instrument.FloatParam

	SweepPoints *instrument.IntParam
	SweepType   *instrument.StringParam

	AverState *instrument.BoolParam
	AverCount *instrument.IntParam

	Bandwidth *instrument.FloatParam
	Power     *instrument.FloatParam
}

func newParams(z *ZNLE) *Params {
	base := z.Instrument
	return &Params{
		vna: z,

		FreqCenter: instrument.NewFloat(base, "freq_center", "Center of Frequency Range", "Hz",
			"freq:cent?", "freq:cent %s"),
		FreqSpan: instrument.NewFloat(base, "freq_span", "Span of Frequency Range", "Hz",
			"freq:span?", "freq:span %s"),
		FreqStart: instrument.NewFloat(base, "freq_start", "Start of Frequency Range", "Hz",
			"freq:star?", "freq:star %s"),
		FreqStop: instrument.NewFloat(base, "freq_stop", "Stop of Frequency Range", "Hz",
			"freq:stop?", "freq:stop %s"),

		SweepPoints: instrument.NewInt(base, "sweep_points", "Number of Points in a Sweep", "",
			"swe:poin?", "swe:poin %s"),
		SweepType: instrument.NewString(base, "sweep_type", "Type of the Sweep",
			"swe:type?", "swe:type %s"),

		AverState: instrument.NewBool(base, "aver_state", "Averaging On or Off",
			"aver:stat?", "aver:stat %s"),
		AverCount: instrument.NewInt(base, "aver_count", "Averaging Counts", "",
			"aver:coun?", "aver:coun %s"),

		Bandwidth: instrument.NewFloat(base, "bandwidth", "Analyzer IF Bandwidth", "Hz",
			"band?", "band %s"),
		Power: instrument.NewFloat(base, "power", "Source Power", "dBm",
			":sour:pow?", ":sour:pow %s"),
	}
}

// SetSweepType validates and sets the sweep type (LIN, LOG, or CW).
func (p *Params) SetSweepType(ctx context.Context, sweepType string) error {
	key := strings.ToUpper(strings.TrimSpace(sweepType))
	if _, ok := sweepTypes[key]; !ok {
		return fmt.Errorf("%s: sweep type %q not in %v", p.vna.Name(), sweepType, sweepTypeKeys())
	}
	return p.SweepType.Set(ctx, key)
}

func sweepTypeKeys() []string {
	keys := make([]string, 0, len(sweepTypes))
	for k := range sweepTypes {
		keys = append(keys, k)
	}
	return keys
}

// FreqSetpoints computes the frequency axis the analyzer sweeps over, from
// its start/stop frequencies, point count, and sweep type.
func (p *Params) FreqSetpoints(ctx context.Context) ([]float64, error) {
	start, err := p.FreqStart.Get(ctx)
	if err != nil {
		return nil, err
	}
	stop, err := p.FreqStop.Get(ctx)
	if err != nil {
		return nil, err
	}
	points, err := p.SweepPoints.Get(ctx)
	if err != nil {
		return nil, err
	}
	if points <= 1 {
		return nil, fmt.Errorf("%s: sweep point count %d too small", p.vna.Name(), points)
	}
	sweepType, err := p.SweepType.Get(ctx)
	if err != nil {
		return nil, err
	}

	setpoints := make([]float64, points)
	switch strings.ToUpper(strings.TrimSpace(sweepType)) {
	case "LIN":
		floats.Span(setpoints, start, stop)
	case "LOG":
		floats.LogSpan(setpoints, start, stop)
	default:
		return nil, fmt.Errorf("%s: no frequency axis for sweep type %q", p.vna.Name(), sweepType)
	}
	return setpoints, nil
}
