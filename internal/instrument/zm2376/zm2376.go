// Package zm2376 drives the NF ZM2376 LCR meter over a SCPI session.
//
// The meter reports measurements through a combined ":fetch?" reply of the
// form "<status>,<primary>,<secondary>"; status 0 is success and nonzero
// values map to fixed error conditions.
package zm2376

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/quenchlab/labkit/internal/instrument"
)

// Default correction frequency limits used by the correction routines.
const (
	DefaultCorrectionLower = 0.02
	DefaultCorrectionUpper = 5.5e6
)

// errStatements maps nonzero :fetch? status codes to error conditions.
var errStatements = map[int]string{
	1: "measurement error: ERR",
	2: "measurement error: NC or LoC",
	3: "measurement error: other errors",
}

// ZM2376 exposes the meter's parameters and correction routines.
type ZM2376 struct {
	*instrument.Instrument

	// Primary and Secondary report the two displayed measurement values,
	// both served from a single :fetch? exchange.
	Primary   *instrument.FloatParam
	Secondary *instrument.FloatParam

	Frequency *instrument.FloatParam

	CorrectionLowerLimit *instrument.FloatParam
	CorrectionUpperLimit *instrument.FloatParam
	ShortCorrectionState *instrument.BoolParam
	OpenCorrectionState  *instrument.BoolParam
	LoadCorrectionState  *instrument.BoolParam

	// PrimaryVar and SecondaryVar select which quantities the meter
	// computes (Cp, D, Rs, ...).
	PrimaryVar   *instrument.StringParam
	SecondaryVar *instrument.StringParam

	DCBias      *instrument.FloatParam
	DCBiasState *instrument.BoolParam

	AverageCount      *instrument.FloatParam
	AverageCountState *instrument.BoolParam

	MeasurementVoltageLevel *instrument.FloatParam
}

// New creates a ZM2376 driver over the session. Call Connect before use.
func New(name string, session instrument.Session) *ZM2376 {
	base := instrument.New(name, session)
	z := &ZM2376{Instrument: base}

	z.Primary = instrument.NewFloatFunc(base, "primary", "Primary Parameter", "",
		func(ctx context.Context) (float64, error) { return z.fetchValue(ctx, 1) }, "")
	z.Secondary = instrument.NewFloatFunc(base, "secondary", "Secondary Parameter", "",
		func(ctx context.Context) (float64, error) { return z.fetchValue(ctx, 2) }, "")

	z.Frequency = instrument.NewFloat(base, "frequency", "Frequency", "Hz",
		":sour:freq?", ":sour:freq %s")

	z.CorrectionLowerLimit = instrument.NewFloat(base, "correction_lower_limit",
		"Correction Lower Limit Frequency", "Hz", ":corr:lim:low?", ":corr:lim:low %s")
	z.CorrectionUpperLimit = instrument.NewFloat(base, "correction_upper_limit",
		"Correction Upper Limit Frequency", "Hz", ":corr:lim:upp?", ":corr:lim:upp %s")

	z.ShortCorrectionState = instrument.NewBool(base, "short_correction_state",
		"Short Correction State", ":corr:shor?", ":corr:shor %s")
	z.OpenCorrectionState = instrument.NewBool(base, "open_correction_state",
		"Open Correction State", ":corr:open?", ":corr:open %s")
	z.LoadCorrectionState = instrument.NewBool(base, "load_correction_state",
		"Load Correction State", ":corr:load?", ":corr:load %s")

	z.PrimaryVar = instrument.NewString(base, "primary_var",
		"Primary Parameter Variable", ":calc1:form?", ":calc1:form %s")
	z.SecondaryVar = instrument.NewString(base, "secondary_var",
		"Secondary Parameter Variable", ":calc2:form?", ":calc2:form %s")

	z.DCBias = instrument.NewFloat(base, "dc_bias", "DC Bias", "V",
		":sour:volt:offs?", ":sour:volt:offs %s")
	z.DCBiasState = instrument.NewBool(base, "dc_bias_state", "DC Bias State",
		":sour:volt:offs:stat?", ":sour:volt:offs:stat %s")

	z.AverageCount = instrument.NewFloat(base, "aver_count", "Averaging Count", "",
		":aver:coun?", "aver:coun %s")
	z.AverageCountState = instrument.NewBool(base, "aver_count_state",
		"Averaging Count State", ":aver?", "aver %s")

	z.MeasurementVoltageLevel = instrument.NewFloat(base, "measurement_voltage_level",
		"Measurement Voltage Level", "V", ":sour:volt?", ":sour:volt %s")

	return z
}

// Fetch queries ":fetch?" and returns the raw reply after checking the
// status field.
func (z *ZM2376) Fetch(ctx context.Context) (string, error) {
	reply, err := z.Ask(ctx, ":fetch?")
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	fields := strings.Split(reply, ",")
	status, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return "", fmt.Errorf("%s: malformed fetch status in %q: %w", z.Name(), reply, err)
	}
	if status != 0 {
		msg, ok := errStatements[status]
		if !ok {
			msg = fmt.Sprintf("measurement error: unknown status %d", status)
		}
		return "", fmt.Errorf("%s: %s", z.Name(), msg)
	}
	return reply, nil
}

// fetchValue returns the indexed field of a successful fetch reply.
func (z *ZM2376) fetchValue(ctx context.Context, index int) (float64, error) {
	reply, err := z.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	fields := strings.Split(reply, ",")
	if index >= len(fields) {
		return 0, fmt.Errorf("%s: fetch reply %q has no field %d", z.Name(), reply, index)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(fields[index]), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: parse fetch field %d of %q: %w", z.Name(), index, reply, err)
	}
	return v, nil
}

// ChangeCorrectionLimits sets the lower and upper correction frequencies.
func (z *ZM2376) ChangeCorrectionLimits(ctx context.Context, lower, upper float64) error {
	if err := z.CorrectionLowerLimit.Set(ctx, lower); err != nil {
		return err
	}
	return z.CorrectionUpperLimit.Set(ctx, upper)
}

// OpenCorrection performs open circuit correction over the given limits.
func (z *ZM2376) OpenCorrection(ctx context.Context, lower, upper float64) error {
	if err := z.ChangeCorrectionLimits(ctx, lower, upper); err != nil {
		return err
	}
	return z.Write("corr:coll stan1")
}

// ShortCorrection performs short circuit correction over the given limits.
func (z *ZM2376) ShortCorrection(ctx context.Context, lower, upper float64) error {
	if err := z.ChangeCorrectionLimits(ctx, lower, upper); err != nil {
		return err
	}
	return z.Write("corr:coll stan2")
}

// LoadCorrection performs load correction.
func (z *ZM2376) LoadCorrection(ctx context.Context) error {
	return z.Write("corr:coll stan3")
}

// MetadataSummary reports the correction states and selected measurement
// variables for inclusion in sweep run metadata.
func (z *ZM2376) MetadataSummary(ctx context.Context) (map[string]any, error) {
	short, err := z.ShortCorrectionState.Get(ctx)
	if err != nil {
		return nil, err
	}
	open, err := z.OpenCorrectionState.Get(ctx)
	if err != nil {
		return nil, err
	}
	load, err := z.LoadCorrectionState.Get(ctx)
	if err != nil {
		return nil, err
	}
	primary, err := z.PrimaryVar.Get(ctx)
	if err != nil {
		return nil, err
	}
	secondary, err := z.SecondaryVar.Get(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"calibrations": []string{
			fmt.Sprintf("Short Correction State: %t", short),
			fmt.Sprintf("Open Correction State: %t", open),
			fmt.Sprintf("Load Correction State: %t", load),
		},
		"variables": []string{
			fmt.Sprintf("Primary Parameter: %s", strings.TrimSpace(primary)),
			fmt.Sprintf("Secondary Parameter: %s", strings.TrimSpace(secondary)),
		},
	}, nil
}
