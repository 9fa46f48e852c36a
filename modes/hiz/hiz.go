// Package hiz implements the idle "high impedance" mode: no pin is
// claimed, no op is supported, every line either no-ops (delays) or
// comes back as an ERROR result. This is the mode the firmware starts in
// and returns to whenever a mode fails to enter.
package hiz

import (
	"buspirate-go/modes"
	"buspirate-go/periodic"
	"buspirate-go/pinfabric"
	"buspirate-go/types"
)

type driver struct{}

func init() {
	modes.RegisterBuilder("hiz", builder{})
}

type builder struct{}

func (builder) Build() (modes.Driver, error) { return &driver{}, nil }

func (d *driver) Name() string                 { return "hiz" }
func (d *driver) Capabilities() modes.Capability { return 0 }
func (d *driver) DefaultBits() uint32          { return 8 }
func (d *driver) Setup(*pinfabric.Fabric) error { return nil }
func (d *driver) SetupExc() error               { return nil }
func (d *driver) Cleanup(*pinfabric.Fabric)     {}
func (d *driver) Periodic(*periodic.Service)    {}

func (d *driver) Execute(op types.Op, out []types.Result) []types.Result {
	return append(out, types.Result{Severity: types.SevError, Message: "hiz supports no ops"})
}
