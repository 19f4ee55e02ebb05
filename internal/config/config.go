// Package config loads the irrelay configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
	"libdb.so/irrelay"
)

// Config is the irrelay configuration file.
type Config struct {
	Serial  Serial  `yaml:"serial"`
	Storage Storage `yaml:"storage"`
	HTTP    HTTP    `yaml:"http"`
	Capture Capture `yaml:"capture"`
	// Relays maps the relay key slots to the relay names understood by the
	// microcontroller.
	Relays map[irrelay.Slot]string `yaml:"relays"`
}

type Serial struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type Storage struct {
	Keys        string `yaml:"keys"`
	Credentials string `yaml:"credentials"`
}

type HTTP struct {
	// Addr is the provisioning listen address. An empty address disables
	// provisioning.
	Addr           string   `yaml:"addr"`
	OriginPatterns []string `yaml:"origin_patterns"`
}

type Capture struct {
	MicrosPerTick int `yaml:"micros_per_tick"`
	// MarkExcess in microseconds. A negative value disables the correction.
	MarkExcess  int    `yaml:"mark_excess"`
	RawCapacity int    `yaml:"raw_capacity"`
	Overflow    string `yaml:"overflow"`
	CarrierKHz  int    `yaml:"carrier_khz"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Serial: Serial{
			Port: "/dev/ttyUSB0",
			Baud: 115200,
		},
		Storage: Storage{
			Keys:        "keys.json",
			Credentials: "config.json",
		},
		HTTP: HTTP{
			Addr: ":8080",
		},
		Capture: Capture{
			MicrosPerTick: irrelay.DefaultMicrosPerTick,
			MarkExcess:    irrelay.DefaultMarkExcess,
			RawCapacity:   irrelay.DefaultRawCapacity,
			Overflow:      irrelay.Truncate.String(),
			CarrierKHz:    irrelay.DefaultCarrierKHz,
		},
		Relays: map[irrelay.Slot]string{
			irrelay.RelayA: "A",
			irrelay.RelayB: "B",
			irrelay.RelayC: "C",
			irrelay.RelayD: "D",
		},
	}
}

// Load reads the configuration at path on top of the defaults. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("cannot parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that have no sensible fallback.
func (c Config) Validate() error {
	if _, err := irrelay.ParseOverflowPolicy(c.Capture.Overflow); err != nil {
		return err
	}
	for slot := range c.Relays {
		if _, err := irrelay.ParseSlot(string(slot)); err != nil {
			return err
		}
	}
	if c.Serial.Baud < 0 {
		return fmt.Errorf("negative baud rate %d", c.Serial.Baud)
	}
	return nil
}

// CaptureConfig converts the capture section.
func (c Config) CaptureConfig() irrelay.CaptureConfig {
	overflow, _ := irrelay.ParseOverflowPolicy(c.Capture.Overflow)
	return irrelay.CaptureConfig{
		MicrosPerTick: c.Capture.MicrosPerTick,
		MarkExcess:    c.Capture.MarkExcess,
		RawCapacity:   c.Capture.RawCapacity,
		Overflow:      overflow,
		CarrierKHz:    c.Capture.CarrierKHz,
	}
}
