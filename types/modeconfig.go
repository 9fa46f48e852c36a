package types

// Parity mirrors the teacher's serial Parity enum. It has no JSON
// marshaller of its own, so modecfg's documents store it as a number.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

// FlowControl is the UART family's flow-control setting.
type FlowControl uint8

const (
	FlowOff FlowControl = iota
	FlowRTS
)

// Invert selects normal or inverted line logic (open-drain half-duplex etc).
type Invert uint8

const (
	InvertNormal Invert = iota
	InvertInvert
)

// UARTConfig is the persisted configuration for modes/uart and modes/hduart
// (spec.md §4.4). Bounds: Baud in [1, 7372800], DataBits in [5,8], StopBits
// in {1,2}.
type UARTConfig struct {
	Baud       uint32      `json:"baud"`
	DataBits   uint8       `json:"data_bits"`
	Parity     Parity      `json:"parity"`
	StopBits   uint8       `json:"stop_bits"`
	Flow       FlowControl `json:"flow_control"`
	Invert     Invert      `json:"invert"`
	AsyncPrint bool        `json:"async_print"`
}

// DefaultUARTConfig matches the firmware's out-of-box 8N1 serial terminal.
func DefaultUARTConfig() UARTConfig {
	return UARTConfig{
		Baud:     115200,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: 1,
		Flow:     FlowOff,
		Invert:   InvertNormal,
	}
}

// I2CConfig is the persisted configuration for modes/i2c.
type I2CConfig struct {
	ClockHz    uint32 `json:"clock_hz"`
	AddressTen bool   `json:"address_ten_bit"`
}

func DefaultI2CConfig() I2CConfig {
	return I2CConfig{ClockHz: 100_000}
}

// IRProtocol selects the carrier framing modes/ir drives.
type IRProtocol uint8

const (
	IRProtocolNEC IRProtocol = iota
	IRProtocolRC5
)

// IRConfig is the persisted configuration for modes/ir.
type IRConfig struct {
	Protocol     IRProtocol `json:"protocol"`
	CarrierHz    uint32     `json:"carrier_hz"`
	DutyPercent  uint8      `json:"duty_percent"`
}

func DefaultIRConfig() IRConfig {
	return IRConfig{Protocol: IRProtocolNEC, CarrierHz: 38_000, DutyPercent: 33}
}

// OneWireConfig is the persisted configuration for modes/onewire.
type OneWireConfig struct {
	StrongPullup bool `json:"strong_pullup"`
}

// DefaultOneWireConfig matches the firmware's out-of-box behaviour: no
// strong pull-up drive until a script turns it on for a parasite-powered
// conversion.
func DefaultOneWireConfig() OneWireConfig {
	return OneWireConfig{}
}
