package modecfg

import (
	"errors"

	"testing"

	"buspirate-go/types"
)

type memVolume struct {
	files map[string][]byte
}

func newMemVolume() *memVolume { return &memVolume{files: map[string][]byte{}} }

func (v *memVolume) ReadFile(name string) ([]byte, error) {
	data, ok := v.files[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (v *memVolume) WriteFile(name string, data []byte) error {
	v.files[name] = data
	return nil
}

func TestUARTConfigRoundTrip(t *testing.T) {
	vol := newMemVolume()
	s := New(vol)

	cfg := types.DefaultUARTConfig()
	cfg.Baud = 9600
	cfg.Parity = types.ParityEven
	if err := s.SaveUART("uart", cfg); err != nil {
		t.Fatalf("SaveUART: %v", err)
	}

	got, err := s.LoadUART("uart")
	if err != nil {
		t.Fatalf("LoadUART: %v", err)
	}
	if got.Baud != 9600 || got.Parity != types.ParityEven {
		t.Fatalf("LoadUART = %+v, want Baud=9600 Parity=Even", got)
	}
}

func TestLoadUARTWithoutFileReturnsDefault(t *testing.T) {
	s := New(newMemVolume())
	got, err := s.LoadUART("uart")
	if err != nil {
		t.Fatalf("LoadUART: %v", err)
	}
	if got != types.DefaultUARTConfig() {
		t.Fatalf("LoadUART = %+v, want default", got)
	}
}

func TestI2CConfigRoundTrip(t *testing.T) {
	vol := newMemVolume()
	s := New(vol)

	cfg := types.I2CConfig{ClockHz: 400_000, AddressTen: true}
	if err := s.SaveI2C("i2c", cfg); err != nil {
		t.Fatalf("SaveI2C: %v", err)
	}

	got, err := s.LoadI2C("i2c")
	if err != nil {
		t.Fatalf("LoadI2C: %v", err)
	}
	if got != cfg {
		t.Fatalf("LoadI2C = %+v, want %+v", got, cfg)
	}
}
