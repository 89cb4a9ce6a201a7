// Package instrument provides the parameter framework shared by the lab's
// SCPI instrument drivers. A driver binds typed parameters to get/set
// command templates; the sweep station consumes parameters through the
// Measurable and Settable interfaces without knowing the instrument behind
// them.
package instrument

import (
	"context"
	"fmt"
	"strings"

	"github.com/quenchlab/labkit/internal/monitoring"
)

// Session is the transport a driver speaks through. The scpimux.Mux
// satisfies it; tests use ScriptSession.
type Session interface {
	// Query sends a command and returns the instrument's reply line.
	Query(ctx context.Context, command string) (string, error)
	// Send writes a command that produces no reply.
	Send(command string) error
}

// Instrument is the base embedded by concrete drivers. It carries the
// instrument name used to qualify parameter names and the session used for
// all traffic.
type Instrument struct {
	name    string
	session Session
	idn     string
}

// New creates an Instrument with the given name over the session.
func New(name string, session Session) *Instrument {
	return &Instrument{name: name, session: session}
}

func (i *Instrument) Name() string { return i.name }

// Identity returns the *IDN? reply captured by Connect, if any.
func (i *Instrument) Identity() string { return i.idn }

// Connect issues *IDN? and logs the identification line. Drivers call it
// once after opening the session.
func (i *Instrument) Connect(ctx context.Context) error {
	idn, err := i.Ask(ctx, "*IDN?")
	if err != nil {
		return fmt.Errorf("connect %s: %w", i.name, err)
	}
	i.idn = strings.TrimSpace(idn)
	monitoring.Logf("connected to %s: %s", i.name, i.idn)
	return nil
}

// Ask sends a query and returns the trimmed reply.
func (i *Instrument) Ask(ctx context.Context, command string) (string, error) {
	reply, err := i.session.Query(ctx, command)
	if err != nil {
		return "", fmt.Errorf("%s: ask %q: %w", i.name, command, err)
	}
	return reply, nil
}

// Write sends a command that produces no reply.
func (i *Instrument) Write(command string) error {
	if err := i.session.Send(command); err != nil {
		return fmt.Errorf("%s: write %q: %w", i.name, command, err)
	}
	return nil
}

// Measurable is a readable quantity the sweep station can follow.
type Measurable interface {
	FullName() string
	Measure(ctx context.Context) (float64, error)
}

// Settable is a quantity the sweep station can drive through setpoints.
type Settable interface {
	FullName() string
	SetValue(ctx context.Context, v float64) error
}

// InstrumentBound is implemented by parameters that belong to an
// instrument; the station uses it to group metadata per instrument.
type InstrumentBound interface {
	Instrument() *Instrument
}

// MetadataProvider lets a driver contribute settings (calibration states,
// source levels) into sweep run metadata.
type MetadataProvider interface {
	Name() string
	MetadataSummary(ctx context.Context) (map[string]any, error)
}
