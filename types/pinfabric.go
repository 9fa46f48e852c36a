package types

// Direction is a buffered IO pin's drive direction.
type Direction uint8

const (
	DirInput Direction = iota
	DirOutput
	DirAltFunction
)

func (d Direction) String() string {
	switch d {
	case DirOutput:
		return "out"
	case DirAltFunction:
		return "af"
	default:
		return "in"
	}
}

// Pull is a GPIO's pull resistor state.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
)

// NumPins is the count of buffered IO lines on the front panel.
const NumPins = 8

// PinPurpose labels why a pin is currently claimed.
type PinPurpose string

// PinState is the per-pin bookkeeping the pin fabric owns (spec.md §3).
type PinState struct {
	Direction Direction
	Output    bool
	Pullup    bool
	Claimed   bool
	Purpose   PinPurpose
	Label     string // human name shown on the status bar
}

// VregState is the three-state Vcc/Vpp rail model (spec.md §4.1).
type VregState uint8

const (
	RegOff VregState = iota
	RegLogic
	RegHigh
)

func (v VregState) String() string {
	switch v {
	case RegLogic:
		return "logic"
	case RegHigh:
		return "high"
	default:
		return "off"
	}
}

// AnalogChannel indexes one of the shared ADC mux's sense lines.
type AnalogChannel int

// AnalogSample is one converted reading, stored by the full sweep.
type AnalogSample struct {
	Raw        uint16
	Millivolts int32
}
