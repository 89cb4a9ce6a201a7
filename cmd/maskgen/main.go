// Command maskgen turns a resonator layout description (JSON) into a
// GDSII mask file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/quenchlab/labkit/internal/gds"
	"github.com/quenchlab/labkit/internal/layout"
)

var (
	configPath = flag.String("config", "", "Layout config JSON (required)")
	outPath    = flag.String("out", "chip.gds", "Output GDSII file")
	verify     = flag.Bool("verify", true, "Read the written file back and check the polygon count")
)

// MaskConfig is the maskgen input file: target library/cell names, the
// kind of resonator to build, and the matching layout configuration.
type MaskConfig struct {
	Library string `json:"library,omitempty"`
	Cell    string `json:"cell,omitempty"`

	// Type selects which of the sections below is built:
	// "transmission", "hanger", or "hanger_array".
	Type string `json:"type"`

	Transmission *layout.TransmissionConfig `json:"transmission,omitempty"`
	Hanger       *layout.HangerConfig       `json:"hanger,omitempty"`
	HangerArray  *layout.HangerArrayConfig  `json:"hanger_array,omitempty"`

	Holes *layout.HoleConfig `json:"holes,omitempty"`
}

func main() {
	flag.Parse()
	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*configPath)
	if err != nil {
		log.Fatalf("failed to read config: %v", err)
	}
	var cfg MaskConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	if cfg.Library == "" {
		cfg.Library = "resonators"
	}
	if cfg.Cell == "" {
		cfg.Cell = "chip"
	}

	polys, err := build(&cfg)
	if err != nil {
		log.Fatalf("failed to build layout: %v", err)
	}

	lib := gds.NewLibrary(cfg.Library)
	lib.NewCell(cfg.Cell).Add(polys...)
	if err := lib.WriteFile(*outPath); err != nil {
		log.Fatalf("failed to write %s: %v", *outPath, err)
	}
	log.Printf("wrote %d polygons to %s", len(polys), *outPath)

	if *verify {
		read, err := gds.ReadFile(*outPath)
		if err != nil {
			log.Fatalf("verification read failed: %v", err)
		}
		if got := len(read.Cells[0].Polygons); got != len(polys) {
			log.Fatalf("verification failed: %d polygons read back, want %d", got, len(polys))
		}
	}
}

func build(cfg *MaskConfig) ([]*gds.Polygon, error) {
	switch cfg.Type {
	case "transmission":
		if cfg.Transmission == nil {
			return nil, fmt.Errorf("type transmission needs a 'transmission' section")
		}
		t, err := layout.BuildTransmission(*cfg.Transmission, cfg.Holes)
		if err != nil {
			return nil, err
		}
		return t.Polygons(), nil

	case "hanger":
		if cfg.Hanger == nil {
			return nil, fmt.Errorf("type hanger needs a 'hanger' section")
		}
		h, err := layout.BuildHanger(*cfg.Hanger)
		if err != nil {
			return nil, err
		}
		return h.Polygons(), nil

	case "hanger_array":
		if cfg.HangerArray == nil {
			return nil, fmt.Errorf("type hanger_array needs a 'hanger_array' section")
		}
		a, err := layout.BuildHangerArray(*cfg.HangerArray, cfg.Holes)
		if err != nil {
			return nil, err
		}
		return a.Polygons(), nil

	default:
		return nil, fmt.Errorf("unknown layout type %q (transmission, hanger, hanger_array)", cfg.Type)
	}
}
