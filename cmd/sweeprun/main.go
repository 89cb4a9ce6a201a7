// Command sweeprun records a measurement run with the ZM2376 LCR meter:
// a single point, a timed watch, a 1D sweep, or a 2D megasweep. Each run
// lands in a numbered directory with data, metadata, a plot, and
// optionally an HTML report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/quenchlab/labkit/internal/config"
	"github.com/quenchlab/labkit/internal/instrument"
	"github.com/quenchlab/labkit/internal/instrument/zm2376"
	"github.com/quenchlab/labkit/internal/report"
	"github.com/quenchlab/labkit/internal/rundb"
	"github.com/quenchlab/labkit/internal/scpimux"
	"github.com/quenchlab/labkit/internal/sweep"
)

var (
	devMode    = flag.Bool("dev", false, "Run against a scripted mock port")
	configPath = flag.String("config", "", "Station config JSON")
	portPath   = flag.String("port", "", "Serial device path (overrides config)")
	basedir    = flag.String("basedir", "", "Run directory base (overrides config)")
	notes      = flag.String("notes", "", "Notes recorded in run metadata")

	runType   = flag.String("type", "1d", "Run type: 0d, watch, 1d, or 2d")
	paramName = flag.String("param", "frequency", "Swept parameter (1d/2d fast axis)")
	setpoints = flag.String("setpoints", "", "Setpoints: 'min:max:step' or comma-separated values")
	delay     = flag.String("delay", "100ms", "Settling delay per point")

	param2    = flag.String("param2", "", "2D slow axis parameter")
	setpoint2 = flag.String("setpoints2", "", "2D slow axis setpoints")
	delay2    = flag.String("delay2", "1s", "2D slow axis settling delay")

	maxDuration = flag.String("max-duration", "0s", "Watch duration, 0 for unbounded")
	reportPath  = flag.String("report", "", "Write an HTML report of the run to this path")
)

// mockReplies stands in for a ZM2376 in dev mode.
var mockReplies = map[string]string{
	"*IDN?":       "NF Corporation,ZM2376,9999999,1.00",
	":fetch?":     "0,+1.000000E-12,+2.000000E-03",
	":sour:freq?": "+1.000000E+03",
	":sour:volt?": "+1.000000E+00",
	":calc1:form?": "CP",
	":calc2:form?": "D",
	":corr:shor?": "1",
	":corr:open?": "1",
	":corr:load?": "0",
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go m.Monitor(ctx)

	meter := zm2376.New("zm2376", m)
	if err := meter.Connect(ctx); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}

	dir := cfg.GetBaseDir()
	if *basedir != "" {
		dir = *basedir
	}

	station := sweep.NewStation(dir)
	station.Verbose = cfg.GetVerbose()
	station.AddInstrument(meter)
	station.FollowParam(meter.Primary, 1)
	station.FollowParam(meter.Secondary, 1)
	if *notes != "" {
		station.AddNotes(*notes)
	}
	if path := cfg.GetCatalogPath(); path != "" {
		catalog, err := rundb.NewCatalog(path)
		if err != nil {
			log.Fatalf("failed to open run catalog: %v", err)
		}
		defer catalog.Close()
		station.SetCatalog(catalog)
	}

	result, err := run(ctx, station, meter)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	if *reportPath != "" {
		if err := reportRun(result, *reportPath); err != nil {
			log.Fatalf("failed to write report: %v", err)
		}
		log.Printf("report written to %s", *reportPath)
	}
}

func run(ctx context.Context, station *sweep.Station, meter *zm2376.ZM2376) (*sweep.Result, error) {
	fastDelay, err := time.ParseDuration(*delay)
	if err != nil {
		return nil, fmt.Errorf("invalid -delay: %w", err)
	}

	switch *runType {
	case "0d":
		return station.Measure(ctx)

	case "watch":
		maxDur, err := time.ParseDuration(*maxDuration)
		if err != nil {
			return nil, fmt.Errorf("invalid -max-duration: %w", err)
		}
		station.Plot("time", meter.Primary.FullName())
		return station.Watch(ctx, fastDelay, maxDur)

	case "1d":
		fast, err := settable(meter, *paramName)
		if err != nil {
			return nil, err
		}
		fastV, err := sweep.ParseSetpoints(*setpoints)
		if err != nil {
			return nil, fmt.Errorf("invalid -setpoints: %w", err)
		}
		station.Plot(fast.FullName(), meter.Primary.FullName())
		return station.Sweep(ctx, fast, fastV, fastDelay)

	case "2d":
		fast, err := settable(meter, *paramName)
		if err != nil {
			return nil, err
		}
		fastV, err := sweep.ParseSetpoints(*setpoints)
		if err != nil {
			return nil, fmt.Errorf("invalid -setpoints: %w", err)
		}
		slow, err := settable(meter, *param2)
		if err != nil {
			return nil, err
		}
		slowV, err := sweep.ParseSetpoints(*setpoint2)
		if err != nil {
			return nil, fmt.Errorf("invalid -setpoints2: %w", err)
		}
		slowDelay, err := time.ParseDuration(*delay2)
		if err != nil {
			return nil, fmt.Errorf("invalid -delay2: %w", err)
		}
		station.PlotGrid(fast.FullName(), slow.FullName(), meter.Primary.FullName())
		return station.Megasweep(ctx, slow, slowV, fast, fastV, slowDelay, fastDelay)

	default:
		return nil, fmt.Errorf("unknown run type %q", *runType)
	}
}

// settable maps a flag name onto one of the meter's drivable parameters.
func settable(meter *zm2376.ZM2376, name string) (instrument.Settable, error) {
	switch name {
	case "frequency":
		return meter.Frequency, nil
	case "dc_bias":
		return meter.DCBias, nil
	case "voltage":
		return meter.MeasurementVoltageLevel, nil
	case "":
		return nil, fmt.Errorf("missing parameter name")
	default:
		return nil, fmt.Errorf("unknown parameter %q (frequency, dc_bias, voltage)", name)
	}
}

func reportRun(result *sweep.Result, path string) error {
	return report.WriteFile(result.Basedir, result.ID, path)
}
