package main

import (
	"testing"

	"github.com/quenchlab/labkit/internal/layout"
)

func TestBuildTransmission(t *testing.T) {
	cfg := &MaskConfig{
		Type: "transmission",
		Transmission: &layout.TransmissionConfig{
			PathWidth:     15,
			EnvelopeWidth: 95,
			Gap:           10,
			InnerRadius:   50,
			SegmentLength: 700,
			TotalLoops:    4,
		},
	}
	polys, err := build(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(polys) == 0 {
		t.Fatal("no polygons built")
	}
}

func TestBuildRejectsMismatchedSections(t *testing.T) {
	if _, err := build(&MaskConfig{Type: "hanger"}); err == nil {
		t.Error("want error for missing hanger section")
	}
	if _, err := build(&MaskConfig{Type: "spiral"}); err == nil {
		t.Error("want error for unknown type")
	}
}
