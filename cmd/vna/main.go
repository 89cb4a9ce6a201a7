// Command vna runs one-shot operations against the R&S ZNLE14 vector
// network analyzer: list the sweep axis, configure the sweep, or dump
// every trace's I/Q data as TSV.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/quenchlab/labkit/internal/config"
	"github.com/quenchlab/labkit/internal/instrument/znle"
	"github.com/quenchlab/labkit/internal/scpimux"
)

var (
	devMode    = flag.Bool("dev", false, "Run against a scripted mock port")
	configPath = flag.String("config", "", "Station config JSON")
	portPath   = flag.String("port", "", "Serial device path (overrides config)")

	listSetpoints = flag.Bool("setpoints", false, "Print the frequency axis")
	dump          = flag.Bool("dump", false, "Dump all traces as TSV (freq, then i/q/power per trace)")
	sweepType     = flag.String("sweep-type", "", "Set the sweep type (LIN, LOG, CW)")
	createTrace   = flag.String("create-trace", "", "Create a trace, e.g. '2=S11' on channel 1")
)

var mockReplies = map[string]string{
	"*IDN?":                "Rohde-Schwarz,ZNLE14-2Port,1234567,1.30",
	"conf:chan:cat?":       "1,'Ch1'",
	"conf:chan1:trac:cat?": "1,'Trc1'",
	"conf:trac:cat?":       "1,'Trc1'",
	"disp:wind:cat?":       "1,'1'",
	"freq:star?":           "1000000000",
	"freq:stop?":           "2000000000",
	"swe:poin?":            "3",
	"swe:type?":            "LIN",
	"calc:data:trac? 'Trc1', sdat": "1e-3,2e-3,1.1e-3,2.1e-3,1.2e-3,2.2e-3",
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
	instCfg := cfg.Instrument("znle")

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

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	go m.Monitor(ctx)

	vna := znle.New("znle", m)
	if err := vna.Init(ctx); err != nil {
		log.Fatalf("failed to initialize analyzer: %v", err)
	}

	if err := dispatch(ctx, vna); err != nil {
		log.Fatal(err)
	}
}

func dispatch(ctx context.Context, vna *znle.ZNLE) error {
	switch {
	case *listSetpoints:
		freqs, err := vna.Params.FreqSetpoints(ctx)
		if err != nil {
			return err
		}
		for _, f := range freqs {
			fmt.Println(strconv.FormatFloat(f, 'g', -1, 64))
		}
		return nil

	case *sweepType != "":
		return vna.Params.SetSweepType(ctx, *sweepType)

	case *createTrace != "":
		return makeTrace(ctx, vna, *createTrace)

	case *dump:
		return dumpTraces(ctx, vna, os.Stdout)

	default:
		flag.Usage()
		os.Exit(2)
		return nil
	}
}

func makeTrace(ctx context.Context, vna *znle.ZNLE, spec string) error {
	var num int
	var sParam string
	if _, err := fmt.Sscanf(spec, "%d=%s", &num, &sParam); err != nil {
		return fmt.Errorf("-create-trace wants 'num=SPARAM', got %q", spec)
	}
	channels := vna.Channels()
	if len(channels) == 0 {
		return fmt.Errorf("analyzer has no channels")
	}
	trace, err := channels[0].CreateTrace(ctx, num, sParam)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%s) on %s\n", trace.TraceName(), trace.SParam(), trace.ChannelName())
	return nil
}

// dumpTraces writes one row per sweep point: the frequency followed by
// i, q, and noise power columns for every trace.
func dumpTraces(ctx context.Context, vna *znle.ZNLE, out *os.File) error {
	freqs, err := vna.Params.FreqSetpoints(ctx)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	defer w.Flush()

	header := []string{"frequency"}
	var is, qs, powers [][]float64
	for _, ch := range vna.Channels() {
		for _, trace := range ch.Traces() {
			i, q, err := trace.IQTrace(ctx)
			if err != nil {
				return err
			}
			if len(i) != len(freqs) {
				return fmt.Errorf("trace %s has %d points for %d frequencies",
					trace.TraceName(), len(i), len(freqs))
			}
			is = append(is, i)
			qs = append(qs, q)
			powers = append(powers, znle.NoisePowerDB(i, q))
			name := trace.TraceName()
			header = append(header, name+"_i", name+"_q", name+"_power")
		}
	}

	for i, col := range header {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)

	for p, f := range freqs {
		fmt.Fprint(w, strconv.FormatFloat(f, 'g', -1, 64))
		for t := range is {
			fmt.Fprintf(w, "\t%s\t%s\t%s",
				strconv.FormatFloat(is[t][p], 'g', -1, 64),
				strconv.FormatFloat(qs[t][p], 'g', -1, 64),
				strconv.FormatFloat(powers[t][p], 'g', -1, 64))
		}
		fmt.Fprintln(w)
	}
	return nil
}
