package instrument

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Param is a typed instrument parameter bound to SCPI get/set commands.
// The set command is a fmt template with a single verb; parameters without
// a get (or set) command leave the corresponding field empty.
type Param[T any] struct {
	inst   *Instrument
	name   string
	label  string
	unit   string
	getCmd string
	setCmd string

	parse  func(string) (T, error)
	format func(T) string

	// getOverride, when set, replaces the getCmd query entirely. Drivers
	// use it for parameters derived from a shared fetch.
	getOverride func(ctx context.Context) (T, error)
}

func (p *Param[T]) Name() string            { return p.name }
func (p *Param[T]) Label() string           { return p.label }
func (p *Param[T]) Unit() string            { return p.unit }
func (p *Param[T]) Instrument() *Instrument { return p.inst }

// FullName qualifies the parameter name with its instrument name,
// matching the column naming recorded in run metadata.
func (p *Param[T]) FullName() string {
	return p.inst.Name() + "_" + p.name
}

// Get queries the instrument and parses the reply.
func (p *Param[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if p.getOverride != nil {
		return p.getOverride(ctx)
	}
	if p.getCmd == "" {
		return zero, fmt.Errorf("%s: parameter %s is not readable", p.inst.Name(), p.name)
	}
	reply, err := p.inst.Ask(ctx, p.getCmd)
	if err != nil {
		return zero, err
	}
	v, err := p.parse(strings.TrimSpace(reply))
	if err != nil {
		return zero, fmt.Errorf("%s: parse %s reply %q: %w", p.inst.Name(), p.name, reply, err)
	}
	return v, nil
}

// Set formats the value into the set command and writes it.
func (p *Param[T]) Set(ctx context.Context, v T) error {
	if p.setCmd == "" {
		return fmt.Errorf("%s: parameter %s is not writable", p.inst.Name(), p.name)
	}
	return p.inst.Write(fmt.Sprintf(p.setCmd, p.format(v)))
}

// FloatParam is a float64 parameter. It satisfies Measurable and Settable.
type FloatParam struct{ Param[float64] }

// NewFloat creates a float parameter. Pass "" for getCmd or setCmd when the
// direction is unsupported.
func NewFloat(inst *Instrument, name, label, unit, getCmd, setCmd string) *FloatParam {
	return &FloatParam{Param[float64]{
		inst: inst, name: name, label: label, unit: unit,
		getCmd: getCmd, setCmd: setCmd,
		parse:  func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
		format: func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
	}}
}

// NewFloatFunc creates a float parameter whose reads are served by fn
// instead of a direct query. Used for values derived from a shared fetch.
func NewFloatFunc(inst *Instrument, name, label, unit string, fn func(ctx context.Context) (float64, error), setCmd string) *FloatParam {
	p := &FloatParam{Param[float64]{
		inst: inst, name: name, label: label, unit: unit,
		setCmd: setCmd,
		format: func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
	}}
	p.getOverride = fn
	return p
}

// Measure implements Measurable.
func (p *FloatParam) Measure(ctx context.Context) (float64, error) { return p.Get(ctx) }

// SetValue implements Settable.
func (p *FloatParam) SetValue(ctx context.Context, v float64) error { return p.Set(ctx, v) }

// IntParam is an integer parameter.
type IntParam struct{ Param[int] }

func NewInt(inst *Instrument, name, label, unit, getCmd, setCmd string) *IntParam {
	return &IntParam{Param[int]{
		inst: inst, name: name, label: label, unit: unit,
		getCmd: getCmd, setCmd: setCmd,
		parse: func(s string) (int, error) {
			// Instruments report integers in NR1 or NR3 form; accept both.
			if v, err := strconv.Atoi(s); err == nil {
				return v, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, err
			}
			return int(f), nil
		},
		format: strconv.Itoa,
	}}
}

// BoolParam is an on/off state parameter using SCPI 0/1 encoding.
type BoolParam struct{ Param[bool] }

func NewBool(inst *Instrument, name, label, getCmd, setCmd string) *BoolParam {
	return &BoolParam{Param[bool]{
		inst: inst, name: name, label: label,
		getCmd: getCmd, setCmd: setCmd,
		// Any reply containing a zero digit is off; everything else is on.
		parse:  func(s string) (bool, error) { return !strings.Contains(s, "0"), nil },
		format: func(v bool) string { return map[bool]string{true: "1", false: "0"}[v] },
	}}
}

// StringParam is a raw string parameter.
type StringParam struct{ Param[string] }

func NewString(inst *Instrument, name, label, getCmd, setCmd string) *StringParam {
	return &StringParam{Param[string]{
		inst: inst, name: name, label: label,
		getCmd: getCmd, setCmd: setCmd,
		parse:  func(s string) (string, error) { return s, nil },
		format: func(v string) string { return v },
	}}
}
