package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RangeSpec defines a setpoint range for sweeping.
type RangeSpec struct {
	Min  float64
	Max  float64
	Step float64
}

// ParseRangeSpec parses a "min:max:step" string into a RangeSpec.
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid min value %q: %w", parts[0], err)
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid max value %q: %w", parts[1], err)
	}
	step, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid step value %q: %w", parts[2], err)
	}
	if step <= 0 {
		return RangeSpec{}, fmt.Errorf("step must be positive, got %f", step)
	}

	return RangeSpec{Min: min, Max: max, Step: step}, nil
}

// Setpoints generates the setpoints from Min to Max inclusive, stepping
// by Step. The count is capped to keep a bad spec from allocating an
// enormous sweep.
func (r RangeSpec) Setpoints() []float64 {
	if r.Step <= 0 || r.Min > r.Max {
		return nil
	}

	const maxValues = 1000000
	expected := int((r.Max-r.Min)/r.Step) + 1
	if expected > maxValues || expected < 0 {
		return nil
	}

	var result []float64
	for v := r.Min; v <= r.Max+r.Step/1000; v += r.Step {
		if len(result) >= maxValues {
			break
		}
		// Round away floating point accumulation error.
		rounded := math.Round(v*1e9) / 1e9
		if rounded <= r.Max {
			result = append(result, rounded)
		}
	}
	return result
}

// ParseSetpoints parses either a "min:max:step" range or a
// comma-separated list of values.
func ParseSetpoints(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}

	if strings.Contains(s, ":") {
		spec, err := ParseRangeSpec(s)
		if err != nil {
			return nil, err
		}
		return spec.Setpoints(), nil
	}

	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid setpoint %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
