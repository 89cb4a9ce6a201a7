package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quenchlab/labkit/internal/scpimux"
)

// StationConfig is the root configuration for a measurement station.
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* methods supply defaults for everything else.
type StationConfig struct {
	// BaseDir is where run directories are created.
	BaseDir *string `json:"base_dir,omitempty"`

	// CatalogPath points at the SQLite run catalog. Empty disables
	// cataloging.
	CatalogPath *string `json:"catalog_path,omitempty"`

	Verbose *bool `json:"verbose,omitempty"`

	// Instruments maps an instrument name ("zm2376", "znle") to its
	// connection settings.
	Instruments map[string]*InstrumentConfig `json:"instruments,omitempty"`
}

// InstrumentConfig describes how to reach one instrument.
type InstrumentConfig struct {
	Port    *string              `json:"port,omitempty"`
	Timeout *string              `json:"timeout,omitempty"` // duration string like "2s"
	Serial  *scpimux.PortOptions `json:"serial,omitempty"`
}

// EmptyStationConfig returns a StationConfig with all fields unset.
func EmptyStationConfig() *StationConfig {
	return &StationConfig{}
}

// LoadStationConfig loads a StationConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max
// file size. Fields omitted from the JSON keep their defaults, so
// partial configs are safe.
func LoadStationConfig(path string) (*StationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyStationConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *StationConfig) Validate() error {
	if c.BaseDir != nil && *c.BaseDir == "" {
		return fmt.Errorf("base_dir must not be empty when set")
	}
	for name, inst := range c.Instruments {
		if inst == nil {
			continue
		}
		if inst.Timeout != nil && *inst.Timeout != "" {
			if _, err := time.ParseDuration(*inst.Timeout); err != nil {
				return fmt.Errorf("instrument %s: invalid timeout '%s': %w", name, *inst.Timeout, err)
			}
		}
		if inst.Serial != nil {
			if _, err := inst.Serial.Normalize(); err != nil {
				return fmt.Errorf("instrument %s: %w", name, err)
			}
		}
	}
	return nil
}

// GetBaseDir returns the run base directory or the default.
func (c *StationConfig) GetBaseDir() string {
	if c.BaseDir == nil {
		return "data"
	}
	return *c.BaseDir
}

// GetCatalogPath returns the catalog path, empty when cataloging is
// disabled.
func (c *StationConfig) GetCatalogPath() string {
	if c.CatalogPath == nil {
		return ""
	}
	return *c.CatalogPath
}

// GetVerbose returns the verbose flag or the default.
func (c *StationConfig) GetVerbose() bool {
	if c.Verbose == nil {
		return true
	}
	return *c.Verbose
}

// Instrument returns the named instrument's config, never nil.
func (c *StationConfig) Instrument(name string) *InstrumentConfig {
	if inst, ok := c.Instruments[name]; ok && inst != nil {
		return inst
	}
	return &InstrumentConfig{}
}

// GetPort returns the serial device path, empty when unset.
func (i *InstrumentConfig) GetPort() string {
	if i.Port == nil {
		return ""
	}
	return *i.Port
}

// GetTimeout parses and returns the command timeout.
func (i *InstrumentConfig) GetTimeout() time.Duration {
	if i.Timeout == nil || *i.Timeout == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*i.Timeout)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetSerial returns the serial port options, zero value when unset.
func (i *InstrumentConfig) GetSerial() scpimux.PortOptions {
	if i.Serial == nil {
		return scpimux.PortOptions{}
	}
	return *i.Serial
}
