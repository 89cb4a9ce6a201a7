// Command lcr runs one-shot operations against the NF ZM2376 LCR
// meter: read the displayed values, get or set a parameter, or run the
// open/short/load correction routines.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quenchlab/labkit/internal/config"
	"github.com/quenchlab/labkit/internal/instrument"
	"github.com/quenchlab/labkit/internal/instrument/zm2376"
	"github.com/quenchlab/labkit/internal/scpimux"
)

var (
	devMode    = flag.Bool("dev", false, "Run against a scripted mock port")
	configPath = flag.String("config", "", "Station config JSON")
	portPath   = flag.String("port", "", "Serial device path (overrides config)")

	fetch   = flag.Bool("fetch", false, "Read the primary and secondary values")
	get     = flag.String("get", "", "Read a parameter (frequency, dc_bias, voltage, primary_var, secondary_var)")
	set     = flag.String("set", "", "Set a parameter, e.g. 'frequency=1e3'")
	correct = flag.String("correct", "", "Run a correction: open, short, or load")
	lower   = flag.Float64("lower", 100, "Correction lower limit frequency in Hz")
	upper   = flag.Float64("upper", 1e5, "Correction upper limit frequency in Hz")
)

var mockReplies = map[string]string{
	"*IDN?":        "NF Corporation,ZM2376,9999999,1.00",
	":fetch?":      "0,+1.000000E-12,+2.000000E-03",
	":sour:freq?":  "+1.000000E+03",
	":calc1:form?": "CP",
	":calc2:form?": "D",
}

func main() {
	flag.Parse()

	cfg := config.EmptyStationConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadStationConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	instCfg := cfg.Instrument("zm2376")

	var m scpimux.MuxInterface
	if *devMode {
		m = scpimux.NewMux(scpimux.NewScriptedPort(mockReplies), scpimux.PortOptions{})
	} else {
		path := instCfg.GetPort()
		if *portPath != "" {
			path = *portPath
		}
		if path == "" {
			log.Fatal("no serial port configured; use -port, -config, or -dev")
		}
		var err error
		m, err = scpimux.Open(path, instCfg.GetSerial())
		if err != nil {
			log.Fatalf("failed to open instrument port: %v", err)
		}
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go m.Monitor(ctx)

	meter := zm2376.New("zm2376", m)
	if err := meter.Connect(ctx); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}

	if err := dispatch(ctx, meter); err != nil {
		log.Fatal(err)
	}
}

func dispatch(ctx context.Context, meter *zm2376.ZM2376) error {
	switch {
	case *fetch:
		primary, err := meter.Primary.Get(ctx)
		if err != nil {
			return err
		}
		secondary, err := meter.Secondary.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("primary\t%g\nsecondary\t%g\n", primary, secondary)
		return nil

	case *get != "":
		return getParam(ctx, meter, *get)

	case *set != "":
		name, value, ok := strings.Cut(*set, "=")
		if !ok {
			return fmt.Errorf("-set wants 'name=value', got %q", *set)
		}
		return setParam(ctx, meter, name, value)

	case *correct != "":
		switch *correct {
		case "open":
			return meter.OpenCorrection(ctx, *lower, *upper)
		case "short":
			return meter.ShortCorrection(ctx, *lower, *upper)
		case "load":
			return meter.LoadCorrection(ctx)
		default:
			return fmt.Errorf("unknown correction %q (open, short, load)", *correct)
		}

	default:
		flag.Usage()
		os.Exit(2)
		return nil
	}
}

func floatParam(meter *zm2376.ZM2376, name string) (*instrument.FloatParam, bool) {
	switch name {
	case "frequency":
		return meter.Frequency, true
	case "dc_bias":
		return meter.DCBias, true
	case "voltage":
		return meter.MeasurementVoltageLevel, true
	case "aver_count":
		return meter.AverageCount, true
	}
	return nil, false
}

func stringParam(meter *zm2376.ZM2376, name string) (*instrument.StringParam, bool) {
	switch name {
	case "primary_var":
		return meter.PrimaryVar, true
	case "secondary_var":
		return meter.SecondaryVar, true
	}
	return nil, false
}

func getParam(ctx context.Context, meter *zm2376.ZM2376, name string) error {
	if p, ok := floatParam(meter, name); ok {
		v, err := p.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%g\n", name, v)
		return nil
	}
	if p, ok := stringParam(meter, name); ok {
		v, err := p.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", name, strings.TrimSpace(v))
		return nil
	}
	return fmt.Errorf("unknown parameter %q", name)
}

func setParam(ctx context.Context, meter *zm2376.ZM2376, name, value string) error {
	if p, ok := floatParam(meter, name); ok {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", name, err)
		}
		return p.Set(ctx, v)
	}
	if p, ok := stringParam(meter, name); ok {
		return p.Set(ctx, value)
	}
	return fmt.Errorf("unknown parameter %q", name)
}
