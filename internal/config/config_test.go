package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"libdb.so/irrelay"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "irrelay.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "irrelay.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmpty(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeFile(t, `
serial:
  port: /dev/ttyACM1
storage:
  keys: /var/lib/irrelay/keys.json
capture:
  mark_excess: -1
  raw_capacity: 200
  overflow: reject
relays:
  relayb: K2
`))
	assert.NoError(t, err)

	assert.Equal(t, Serial{Port: "/dev/ttyACM1", Baud: 115200}, cfg.Serial)
	assert.Equal(t, "/var/lib/irrelay/keys.json", cfg.Storage.Keys)
	assert.Equal(t, "config.json", cfg.Storage.Credentials)
	assert.Equal(t, "K2", cfg.Relays[irrelay.RelayB])
	assert.Equal(t, "A", cfg.Relays[irrelay.RelayA])

	assert.Equal(t, irrelay.CaptureConfig{
		MicrosPerTick: 50,
		MarkExcess:    -1,
		RawCapacity:   200,
		Overflow:      irrelay.Reject,
		CarrierKHz:    38,
	}, cfg.CaptureConfig())
}

func TestLoadInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"syntax":        "serial: [",
		"unknown field": "serial:\n  parity: odd\n",
		"overflow":      "capture:\n  overflow: wrap\n",
		"relay slot":    "relays:\n  relaye: E\n",
		"baud":          "serial:\n  baud: -9600\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, content))
			assert.Error(t, err)
		})
	}
}
