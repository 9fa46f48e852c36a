//go:build rp2040 || rp2350

package i2c

import (
	"machine"

	"tinygo.org/x/drivers"
)

// NewBus configures hw as an I2C controller at hz and returns it as the
// drivers.I2C-shaped Bus this mode transacts through, grounded on
// rp2_resources.go's NewResourceRegistry I2C setup (machine.I2C0/I2C1
// configured with SDA/SCL/Frequency, then handed out through the
// tinygo.org/x/drivers.I2C interface).
func NewBus(hw *machine.I2C, sda, scl machine.Pin, hz uint32) Bus {
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	hw.Configure(machine.I2CConfig{SCL: scl, SDA: sda, Frequency: hz})
	var bus drivers.I2C = hw
	return bus
}
