// Package modes defines the capability-table contract every protocol mode
// implements, and the registry modes are looked up by name through.
//
// The Builder/RegisterBuilder/Lookup shape is grounded directly on
// services/hal/internal/registry.Builder: a package-level map guarded by
// a RWMutex, registration panics on a duplicate name (a programming
// error, caught at init time), and lookup is a plain ok-bool. Exactly one
// Driver is ever active; switching modes runs the old driver's Cleanup
// before the new one's Setup, per spec.md §5's mode lifecycle.
package modes

import (
	"fmt"
	"sync"

	"buspirate-go/errcode"
	"buspirate-go/periodic"
	"buspirate-go/pinfabric"
	"buspirate-go/types"
)

// Capability is one bytecode op kind a mode driver can execute.
type Capability uint8

const (
	CapWrite Capability = 1 << iota
	CapWriteRead
	CapRead
	CapStart
	CapStop
	CapAuxOut
	CapAuxIn
	CapADC
)

// Has reports whether set includes cap.
func (set Capability) Has(cap Capability) bool { return set&cap != 0 }

func capabilityFor(k types.OpKind) Capability {
	switch k {
	case types.OpWrite:
		return CapWrite
	case types.OpWriteRead:
		return CapWriteRead
	case types.OpRead:
		return CapRead
	case types.OpStart:
		return CapStart
	case types.OpStop:
		return CapStop
	case types.OpAuxOut:
		return CapAuxOut
	case types.OpAuxIn:
		return CapAuxIn
	case types.OpADC:
		return CapADC
	default:
		return 0
	}
}

// Driver is the fixed surface every mode (uart, i2c, onewire, ir, hiz...)
// implements. Exactly one Driver is active on the bus at a time.
type Driver interface {
	// Name is the mode's identifier, as typed by the user and persisted
	// in modecfg (e.g. "uart", "i2c").
	Name() string

	// Capabilities reports which op kinds this mode can execute.
	Capabilities() Capability

	// Setup claims pins and brings up any software state that does not
	// touch hardware registers yet (spec.md §5).
	Setup(pins *pinfabric.Fabric) error

	// SetupExc brings up the hardware itself (baud rate, bus speed,
	// PIO program load). A failure here is Fatal: the mode transition
	// is aborted and the user stays on the previous mode.
	SetupExc() error

	// Cleanup tears down hardware state and releases every pin this
	// mode claimed. It must be idempotent and must always leave claimed
	// pins high-Z, even after a partial Setup/SetupExc failure.
	Cleanup(pins *pinfabric.Fabric)

	// Execute runs one op and appends its result(s) to out, returning
	// the updated slice. Called once per (possibly repeated) op by the
	// executor; Execute itself loops Repeat times, for every op kind,
	// appending one result per iteration and carrying on after a failed
	// iteration.
	Execute(op types.Op, out []types.Result) []types.Result

	// DefaultBits is the bit width used when an op's HasBits is false.
	DefaultBits() uint32

	// Periodic submits at most one bounded unit of this mode's background
	// work to svc (spec.md §4.5), e.g. UART's async-print poll or IR's
	// decoded-frame poll. A mode with no background work is a no-op.
	// Called once per foreground loop iteration, never during Execute.
	Periodic(svc *periodic.Service)
}

// Builder constructs a fresh Driver instance bound to the given config,
// mirroring registry.Builder's build-from-config shape.
type Builder interface {
	Build() (Driver, error)
}

var (
	mu       sync.RWMutex
	builders = map[string]Builder{}
)

// RegisterBuilder adds b under name. It panics on a duplicate name,
// exactly as registry.RegisterBuilder does: two mode packages claiming
// the same name is a programming error, not a runtime condition.
func RegisterBuilder(name string, b Builder) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := builders[name]; exists {
		panic(fmt.Sprintf("modes: builder already registered for %q", name))
	}
	builders[name] = b
}

// Lookup returns the builder registered under name, if any.
func Lookup(name string) (Builder, bool) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := builders[name]
	return b, ok
}

// Names returns every registered mode name, for CLI help and tab-completion.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(builders))
	for n := range builders {
		out = append(out, n)
	}
	return out
}

// Switcher owns the single active Driver and performs the cleanup-then-
// setup lifecycle transition of spec.md §5.
type Switcher struct {
	pins   *pinfabric.Fabric
	active Driver
}

// NewSwitcher starts with no active mode (equivalent to "hiz").
func NewSwitcher(pins *pinfabric.Fabric) *Switcher {
	return &Switcher{pins: pins}
}

// Active returns the currently active driver, or nil before the first
// switch.
func (s *Switcher) Active() Driver { return s.active }

// SwitchTo tears down the current mode and brings up name. On SetupExc
// failure the transition is aborted and the previous mode remains active,
// per spec.md §7's Fatal case.
func (s *Switcher) SwitchTo(name string) error {
	b, ok := Lookup(name)
	if !ok {
		return errcode.Unsupported
	}
	next, err := b.Build()
	if err != nil {
		return err
	}

	prev := s.active
	if prev != nil {
		prev.Cleanup(s.pins)
	}

	if err := next.Setup(s.pins); err != nil {
		if prev != nil {
			s.reinstate(prev)
		}
		return err
	}
	if err := next.SetupExc(); err != nil {
		next.Cleanup(s.pins)
		if prev != nil {
			s.reinstate(prev)
		}
		return errcode.SetupFailed
	}

	s.active = next
	return nil
}

// reinstate brings a previously-cleaned-up driver back after a failed
// switch, so the user is never left with no mode active.
func (s *Switcher) reinstate(prev Driver) {
	if err := prev.Setup(s.pins); err != nil {
		return
	}
	if err := prev.SetupExc(); err != nil {
		prev.Cleanup(s.pins)
		return
	}
	s.active = prev
}

// RequiresCapability checks whether the active mode supports op.Kind,
// surfacing NotSupportedInMode (spec.md §8: "a read on a mode with no
// read capability produces an ERROR result, never silently succeeds").
func RequiresCapability(d Driver, k types.OpKind) error {
	if !d.Capabilities().Has(capabilityFor(k)) {
		return errcode.NotSupportedInMode
	}
	return nil
}
