package w25q

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// Config describes how a chip is wired and how it should be driven.
//
//	bus: ftdi        # "ftdi" or a periph.io SPI port name such as "/dev/spidev0.0"
//	cs: D4           # chip select GPIO; empty when the SPI port drives it
//	hold: D7         # optional GPIO held low while the flash is in use
//	clock: 30MHz
//	mode: 0
//	debug: false
//	timing:
//	  pollInterval: 1ms
//	  chipErase: 200s
type Config struct {
	Bus    string `yaml:"bus"`
	CS     string `yaml:"cs"`
	Hold   string `yaml:"hold"`
	Clock  string `yaml:"clock"`
	Mode   int    `yaml:"mode"`
	Debug  bool   `yaml:"debug"`
	Timing Timing `yaml:"timing"`
}

// DefaultConfig targets an FT2232H board with the flash on ADBUS and an
// FPGA whose reset line must be held low while the host owns the bus
// (iCEBreaker, iCEstick).
func DefaultConfig() Config {
	return Config{
		Bus:   "ftdi",
		CS:    "D4",
		Hold:  "D7",
		Clock: "30MHz", // [FTDI-AN_135|3.2.1 Divisors]
		Mode:  0,       // [FTDI-AN_114|1.2] MPSSE supports mode 0 and 2 only
	}
}

// LoadConfig reads a YAML configuration. Keys missing from the file keep
// their DefaultConfig values; unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields that can be checked without touching hardware.
func (c Config) Validate() error {
	if c.Bus == "" {
		return fmt.Errorf("bus is required")
	}
	if _, err := c.Frequency(); err != nil {
		return err
	}
	if c.Mode < 0 || c.Mode > 3 {
		return fmt.Errorf("SPI mode %d out of range [0, 3]", c.Mode)
	}
	return nil
}

// Frequency parses Clock.
func (c Config) Frequency() (physic.Frequency, error) {
	var f physic.Frequency
	if err := f.Set(c.Clock); err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", c.Clock, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("invalid clock %q", c.Clock)
	}
	return f, nil
}

// Options returns driver options using log for debug output.
func (c Config) Options(log *slog.Logger) Options {
	return Options{
		Logger: log,
		Timing: c.Timing,
	}
}
