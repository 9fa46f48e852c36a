// Package pinfabric implements spec.md §4.1: buffered IO direction, pull-
// ups, the shared analog mux, and the Vcc/Vpp voltage rails.
//
// Grounded on the teacher's GPIO abstraction (services/hal/internal/
// halcore.GPIOPin / Pull / Edge) and the claim bookkeeping of
// services/hal/internal/registry.ClaimPin/ReleasePin: a pin is acquired
// atomically for a purpose and must be released by whoever claimed it.
package pinfabric

import (
	"buspirate-go/errcode"
	"buspirate-go/types"
	"buspirate-go/x/mathx"
	"buspirate-go/x/ramp"
	"sync"
	"time"
)

// GPIOPin is the hardware view a platform injects per buffered IO line,
// mirroring halcore.GPIOPin's narrow surface.
type GPIOPin interface {
	ConfigureInput(pull types.Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// AnalogMux is the shared shift-register-driven mux feeding one ADC.
type AnalogMux interface {
	// Select routes channel ch onto the ADC input.
	Select(ch types.AnalogChannel) error
	// SampleRaw takes one conversion after the mux has settled.
	SampleRaw() (uint16, error)
	// Scale returns the channel's millivolt scaling factor (1 or 2 for
	// divided lines).
	Scale(ch types.AnalogChannel) int32
	NumChannels() int
}

// VregDriver drives the Vcc/Vpp rail hardware: the on/off pin plus
// whatever register selects logic vs. high.
type VregDriver interface {
	SetState(types.VregState) error
}

const settleDwell = 1 * time.Microsecond
const railDwell = 2 * time.Millisecond

// Fabric owns the eight buffered IO lines, the analog mux and the two
// voltage rails.
type Fabric struct {
	mu sync.Mutex

	pins  [types.NumPins]GPIOPin
	state [types.NumPins]types.PinState

	mux     AnalogMux
	samples []types.AnalogSample

	vcc, vpp       VregDriver
	vccSt, vppSt   types.VregState
	overCurrentLat bool

	sleep func(time.Duration) // injected for tests; defaults to time.Sleep
}

// New builds a Fabric over the given per-pin hardware handles. Entries may
// be nil for pins not wired on a given board revision.
func New(pins [types.NumPins]GPIOPin, mux AnalogMux, vcc, vpp VregDriver) *Fabric {
	f := &Fabric{pins: pins, mux: mux, vcc: vcc, vpp: vpp, sleep: time.Sleep}
	if mux != nil {
		f.samples = make([]types.AnalogSample, mux.NumChannels())
	}
	for i := range f.state {
		f.state[i] = types.PinState{Direction: types.DirInput, Label: "-"}
	}
	return f
}

// Claim acquires pin for purpose, failing with PinBusy if another purpose
// already holds it.
func (f *Fabric) Claim(pin int, purpose types.PinPurpose, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkPin(pin); err != nil {
		return err
	}
	st := &f.state[pin]
	if st.Claimed && st.Purpose != purpose {
		return errcode.PinBusy
	}
	st.Claimed = true
	st.Purpose = purpose
	st.Label = label
	return nil
}

// Release frees a pin and returns it to high-Z input.
func (f *Fabric) Release(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkPin(pin); err != nil {
		return err
	}
	st := &f.state[pin]
	st.Claimed = false
	st.Purpose = ""
	st.Label = "-"
	return f.setDirectionLocked(pin, types.DirInput)
}

// SetDirection sets pin's drive direction. It does not consult claims:
// any caller may change the direction of any valid pin, claimed or not,
// and it never returns PinBusy; the only errors are an invalid pin number
// or a failure from the underlying GPIO handle.
func (f *Fabric) SetDirection(pin int, dir types.Direction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setDirectionLocked(pin, dir)
}

func (f *Fabric) setDirectionLocked(pin int, dir types.Direction) error {
	if err := f.checkPin(pin); err != nil {
		return err
	}
	st := &f.state[pin]
	st.Direction = dir
	if h := f.pins[pin]; h != nil {
		switch dir {
		case types.DirOutput:
			return h.ConfigureOutput(st.Output)
		default:
			pull := types.PullNone
			if st.Pullup {
				pull = types.PullUp
			}
			return h.ConfigureInput(pull)
		}
	}
	return nil
}

// SetOutput drives pin high or low. The pin must already be an output;
// callers that want to flip direction first call SetDirection.
func (f *Fabric) SetOutput(pin int, level bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkPin(pin); err != nil {
		return err
	}
	st := &f.state[pin]
	st.Output = level
	if h := f.pins[pin]; h != nil {
		h.Set(level)
	}
	return nil
}

// SetPullup enables or disables the pin's pull-up. Only meaningful while
// the pin is an input.
func (f *Fabric) SetPullup(pin int, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkPin(pin); err != nil {
		return err
	}
	st := &f.state[pin]
	st.Pullup = on
	if st.Direction == types.DirInput {
		return f.setDirectionLocked(pin, types.DirInput)
	}
	return nil
}

// ReadInput samples the current logic level of pin.
func (f *Fabric) ReadInput(pin int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkPin(pin); err != nil {
		return false, err
	}
	if h := f.pins[pin]; h != nil {
		return h.Get(), nil
	}
	return false, nil
}

// State returns a copy of pin's bookkeeping (for the status bar).
func (f *Fabric) State(pin int) (types.PinState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkPin(pin); err != nil {
		return types.PinState{}, err
	}
	return f.state[pin], nil
}

func (f *Fabric) checkPin(pin int) error {
	if pin < 0 || pin >= types.NumPins {
		return errcode.UnknownPin
	}
	return nil
}

// ---- Analog mux (spec.md §4.1 "full sweep") ----

// ReadVoltage selects ch, waits the settle time, samples, and scales the
// result to millivolts. It also records the reading into the shared
// sweep array addressable by channel.
func (f *Fabric) ReadVoltage(ch types.AnalogChannel) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readVoltageLocked(ch)
}

func (f *Fabric) readVoltageLocked(ch types.AnalogChannel) (int32, error) {
	if f.mux == nil {
		return 0, errcode.Unsupported
	}
	if err := f.mux.Select(ch); err != nil {
		return 0, err
	}
	f.sleep(settleDwell)
	raw, err := f.mux.SampleRaw()
	if err != nil {
		return 0, err
	}
	mv := int32(raw) * f.mux.Scale(ch)
	if int(ch) >= 0 && int(ch) < len(f.samples) {
		f.samples[ch] = types.AnalogSample{Raw: raw, Millivolts: mv}
	}
	return mv, nil
}

// Sweep reads every channel in order and returns the shared sample array.
// The returned slice aliases internal storage; callers must not retain it
// across the next Sweep/ReadVoltage call.
func (f *Fabric) Sweep() ([]types.AnalogSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mux == nil {
		return nil, errcode.Unsupported
	}
	for ch := 0; ch < f.mux.NumChannels(); ch++ {
		if _, err := f.readVoltageLocked(types.AnalogChannel(ch)); err != nil {
			return nil, err
		}
	}
	return f.samples, nil
}

// OverCurrent reports (and, if clear is true, clears) the latched
// over-current flag set by an asynchronous WARN (spec.md §4.1).
func (f *Fabric) OverCurrent(clear bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.overCurrentLat
	if clear {
		f.overCurrentLat = false
	}
	return v
}

// LatchOverCurrent is called by the platform's over-current comparator
// ISR-equivalent; it only ever sets the flag, never clears it.
func (f *Fabric) LatchOverCurrent() {
	f.mu.Lock()
	f.overCurrentLat = true
	f.mu.Unlock()
}

// ---- Voltage rails ----

// SetVreg transitions Vcc through off/logic/high, dwelling briefly after
// any transition out of off before returning, so a mode's setup_exc can
// start driving the bus immediately after. The dwell step shape is
// grounded on x/ramp.StartLinear's tick-driven contract, narrowed from a
// multi-step ramp to a single settle step.
func (f *Fabric) SetVreg(st types.VregState) error {
	return f.setRail(&f.vccSt, f.vcc, st)
}

// SetVpp mirrors SetVreg for the programming-voltage rail.
func (f *Fabric) SetVpp(st types.VregState) error {
	return f.setRail(&f.vppSt, f.vpp, st)
}

func (f *Fabric) setRail(cur *types.VregState, drv VregDriver, to types.VregState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if drv == nil {
		return errcode.Unsupported
	}
	from := *cur
	if err := drv.SetState(to); err != nil {
		return err
	}
	*cur = to
	if from == types.RegOff && to != types.RegOff {
		// StartLinear ticks steps-1 times, each durationMs/steps long, so
		// two steps over twice railDwell give exactly one railDwell tick.
		ramp.StartLinear(0, 1, 1, uint32(2*railDwell/time.Millisecond), 2,
			func(d time.Duration) bool { f.sleep(d); return true },
			func(uint16) {})
	}
	return nil
}

// VregState/VppState report the last commanded rail state.
func (f *Fabric) VregState() types.VregState { f.mu.Lock(); defer f.mu.Unlock(); return f.vccSt }
func (f *Fabric) VppState() types.VregState  { f.mu.Lock(); defer f.mu.Unlock(); return f.vppSt }

// ClampBits enforces spec.md §4.3.c: bits outside [1,32] clamp to range,
// returning whether a clamp occurred so the caller can attach a WARN.
func ClampBits(bits uint32) (uint32, bool) {
	clamped := mathx.Clamp(bits, types.MinBits, types.MaxBits)
	return clamped, clamped != bits
}
