// Command buspirate runs the Bus Pirate core loop: read a line from the
// active LineSource, compile it to a tape, execute it against whatever mode
// is currently switched in, and echo results back over the transport.
//
// The select-loop shape (foreground line processing plus a ticked
// background drain) is grounded on main.go's own top-level select over
// bus subscriptions and a single ticker; this core has no HAL to wait on,
// so it drops straight into that loop once the transport pump is started.
package main

import (
	"context"
	"time"

	"buspirate-go/bus"
	"buspirate-go/executor"
	"buspirate-go/modecfg"
	"buspirate-go/modes"
	"buspirate-go/modes/hduart"
	"buspirate-go/modes/i2c"
	"buspirate-go/modes/ir"
	"buspirate-go/modes/onewire"
	"buspirate-go/modes/uart"
	"buspirate-go/periodic"
	"buspirate-go/pinfabric"
	"buspirate-go/syntax"
	"buspirate-go/transport"
	"buspirate-go/types"
	"buspirate-go/x/conv"
	"buspirate-go/x/fmtx"

	_ "buspirate-go/modes/hiz"
)

// tickInterval paces how often the foreground drains one periodic task
// while idle, mirroring the teacher's rampTicker cadence but much faster
// since this loop has no LED/thermal state machine of its own.
const tickInterval = 20 * time.Millisecond

// LineSource is the external line-editor/script-loader boundary (spec.md
// §6 "Script/macro files" — named out, kept swappable like the teacher's
// EmbeddedConfigLookup function variable). A FatFs-backed script loader or
// an interactive line editor both implement this.
type LineSource interface {
	NextLine() (string, bool)
}

func main() {
	b := bus.NewBus(4)
	port := newStdioPort()
	xport := transport.New(port, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	xport.Start(ctx)
	defer xport.Stop()

	var pins [types.NumPins]pinfabric.GPIOPin
	fabric := pinfabric.New(pins, nil, nil, nil)
	switcher := modes.NewSwitcher(fabric)

	store := modecfg.New(newMemVolume())
	svc := periodic.New(32)

	registerHardwareModes(store)

	if err := switcher.SwitchTo("hiz"); err != nil {
		fmtx.Printf("[buspirate] initial mode switch failed: %v\n", err)
		return
	}

	run(switcher, svc, store, newTransportLines(xport))
}

// run drives the foreground loop: for every line the source yields,
// either switch mode or compile-and-execute it against the active driver,
// ticking the periodic service once per line and once per idle pause
// (never mid-tape, per spec.md §5).
func run(switcher *modes.Switcher, svc *periodic.Service, store *modecfg.Store, src LineSource) {
	sleep := time.Sleep
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		line, ok := src.NextLine()
		if !ok {
			<-ticker.C
			switcher.Active().Periodic(svc)
			svc.Tick()
			continue
		}

		if name, isSwitch := modeSwitchTarget(line); isSwitch {
			if err := switcher.SwitchTo(name); err != nil {
				fmtx.Printf("[buspirate] mode switch to %q failed: %v\n", name, err)
			} else {
				persistActiveConfig(store, name)
			}
			switcher.Active().Periodic(svc)
			svc.Tick()
			continue
		}

		tape, err := syntax.Compile(line)
		if err != nil {
			fmtx.Printf("[buspirate] syntax error: %v\n", err)
			switcher.Active().Periodic(svc)
			svc.Tick()
			continue
		}

		out := executor.Run(switcher.Active(), tape, sleep)
		reportResults(out)
		switcher.Active().Periodic(svc)
		svc.Tick()
	}
}

// modeSwitchTarget recognises the "m <name>" front-end convention for
// changing the active mode driver; any other line is bytecode for the
// active driver. This sits one layer above the syntax grammar, which has
// no mode-switch token of its own (spec.md §9 "mode switches are
// serialized by the dispatcher").
func modeSwitchTarget(line string) (string, bool) {
	args, err := syntax.SplitScriptArgs(line)
	if err != nil || len(args) != 2 || args[0] != "m" {
		return "", false
	}
	return args[1], true
}

// registerHardwareModes registers the mode drivers whose Builder needs a
// concrete port/bus/carrier binding. hiz needs nothing beyond the pin
// fabric and self-registers via blank import; these five bind a starting
// config (from modecfg for uart, hduart, i2c and onewire; ir takes
// types.DefaultIRConfig) and a host loopback stand-in for the
// peripheral a real board would wire in (SPEC_FULL.md §6's "whatever sits
// below the transport is injected").
func registerHardwareModes(store *modecfg.Store) {
	uartCfg, _ := store.LoadUART("uart")
	modes.RegisterBuilder("uart", uart.Builder{Port: &loopbackSerial{}, Cfg: uartCfg})

	hduartCfg, _ := store.LoadUART("hduart")
	modes.RegisterBuilder("hduart", hduart.Builder{Port: &loopbackSerial{}, Cfg: hduartCfg})

	i2cCfg, _ := store.LoadI2C("i2c")
	modes.RegisterBuilder("i2c", i2c.Builder{Bus: loopbackI2CBus{}, Cfg: i2cCfg})

	irLoop := &loopbackIR{}
	modes.RegisterBuilder("ir", ir.Builder{Tx: irLoop, Rx: irLoop, Cfg: types.DefaultIRConfig()})

	onewireCfg, _ := store.LoadOneWire("onewire")
	modes.RegisterBuilder("onewire", onewire.Builder{Cfg: onewireCfg})
}

// persistActiveConfig re-saves the mode's last-loaded config file on a
// successful switch, confirming it as the one modecfg will hand back next
// boot (spec.md §6: "written back when configuration is confirmed").
func persistActiveConfig(store *modecfg.Store, name string) {
	switch name {
	case "uart", "hduart":
		cfg, err := store.LoadUART(name)
		if err == nil {
			_ = store.SaveUART(name, cfg)
		}
	case "i2c":
		cfg, err := store.LoadI2C(name)
		if err == nil {
			_ = store.SaveI2C(name, cfg)
		}
	case "onewire":
		cfg, err := store.LoadOneWire(name)
		if err == nil {
			_ = store.SaveOneWire(name, cfg)
		}
	}
}

// reportResults echoes one line per result the way the bus pirate
// terminal does: read values as zero-padded hex, anything above INFO
// severity tagged with its level. Hex formatting goes through x/conv's
// allocation-free U32Hex rather than fmt, the same no-alloc discipline
// the teacher's Logger uses for its own numeric fields.
func reportResults(out executor.Outcome) {
	var hexBuf [8]byte
	for _, r := range out.Results {
		switch {
		case r.Severity >= types.SevWarn:
			fmtx.Printf("[%s] %s\n", r.Severity, r.Message)
		case r.DataMessage != "":
			fmtx.Printf("%s\n", r.DataMessage)
		case r.InData != 0:
			fmtx.Printf("READ: 0x%s\n", conv.U32Hex(hexBuf[:], r.InData))
		}
	}
}
