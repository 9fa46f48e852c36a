// Package modecfg persists each mode's last-confirmed configuration as a
// small JSON-shaped file (spec.md §6: "Each mode owns a small JSON-shaped
// key/value file on the FatFs volume").
//
// Reading is grounded on services/config.ConfigService's use of
// github.com/andreyvit/tinyjson: decode into a dynamic map via
// tinyjson.Raw(bytes).Value() rather than a reflection-based struct
// unmarshal, the same shape the teacher uses to turn an embedded config
// blob into bus messages. Writing back uses encoding/json instead:
// tinyjson's surface (here and in its own package docs) is decode-only,
// aimed at avoiding reflection on the read path; it has no struct
// encoder to ground a writer on, so the round-trip's write half falls
// back to the standard library.
package modecfg

import (
	"encoding/json"
	"fmt"

	"github.com/andreyvit/tinyjson"

	"buspirate-go/types"
	"buspirate-go/x/strx"
)

// Store loads and saves mode configuration blobs keyed by mode name
// (e.g. "uart" -> bpuart.bp). The Volume it's built over is a narrow
// filesystem seam so tests don't need a real FatFs mount.
type Store struct {
	vol Volume
}

// Volume is the narrow filesystem surface modecfg needs.
type Volume interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// New builds a Store over vol.
func New(vol Volume) *Store {
	return &Store{vol: vol}
}

// fileName coalesces an empty mode name to "default" so a caller that
// hasn't switched modes yet still resolves to a stable file.
func fileName(mode string) string { return "bp" + strx.Coalesce(mode, "default") + ".bp" }

// LoadUART reads the persisted UART config for a mode, falling back to
// types.DefaultUARTConfig() if no file exists yet.
func (s *Store) LoadUART(mode string) (types.UARTConfig, error) {
	cfg := types.DefaultUARTConfig()
	raw, err := s.vol.ReadFile(fileName(mode))
	if err != nil || len(raw) == 0 {
		return cfg, nil
	}
	m, err := decodeObject(raw)
	if err != nil {
		return cfg, err
	}
	if v, ok := m["baud"].(float64); ok {
		cfg.Baud = uint32(v)
	}
	if v, ok := m["data_bits"].(float64); ok {
		cfg.DataBits = uint8(v)
	}
	if v, ok := m["stop_bits"].(float64); ok {
		cfg.StopBits = uint8(v)
	}
	if v, ok := m["parity"].(float64); ok {
		cfg.Parity = types.Parity(v)
	}
	if v, ok := m["flow_control"].(float64); ok {
		cfg.Flow = types.FlowControl(v)
	}
	if v, ok := m["invert"].(float64); ok {
		cfg.Invert = types.Invert(v)
	}
	if v, ok := m["async_print"].(bool); ok {
		cfg.AsyncPrint = v
	}
	return cfg, nil
}

// SaveUART persists cfg for mode.
func (s *Store) SaveUART(mode string, cfg types.UARTConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.vol.WriteFile(fileName(mode), data)
}

// LoadI2C reads the persisted I2C config for a mode.
func (s *Store) LoadI2C(mode string) (types.I2CConfig, error) {
	cfg := types.DefaultI2CConfig()
	raw, err := s.vol.ReadFile(fileName(mode))
	if err != nil || len(raw) == 0 {
		return cfg, nil
	}
	m, err := decodeObject(raw)
	if err != nil {
		return cfg, err
	}
	if v, ok := m["clock_hz"].(float64); ok {
		cfg.ClockHz = uint32(v)
	}
	if v, ok := m["address_ten_bit"].(bool); ok {
		cfg.AddressTen = v
	}
	return cfg, nil
}

// SaveI2C persists cfg for mode.
func (s *Store) SaveI2C(mode string, cfg types.I2CConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.vol.WriteFile(fileName(mode), data)
}

// LoadOneWire reads the persisted 1-Wire config for a mode.
func (s *Store) LoadOneWire(mode string) (types.OneWireConfig, error) {
	cfg := types.DefaultOneWireConfig()
	raw, err := s.vol.ReadFile(fileName(mode))
	if err != nil || len(raw) == 0 {
		return cfg, nil
	}
	m, err := decodeObject(raw)
	if err != nil {
		return cfg, err
	}
	if v, ok := m["strong_pullup"].(bool); ok {
		cfg.StrongPullup = v
	}
	return cfg, nil
}

// SaveOneWire persists cfg for mode.
func (s *Store) SaveOneWire(mode string, cfg types.OneWireConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.vol.WriteFile(fileName(mode), data)
}

// decodeObject mirrors services/config.ConfigService.publishConfig's
// tinyjson.Raw(...).Value() decode, asserting the top level is an
// object.
func decodeObject(raw []byte) (map[string]any, error) {
	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()
	m, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("modecfg: expected a JSON object, got %T", val)
	}
	return m, nil
}
