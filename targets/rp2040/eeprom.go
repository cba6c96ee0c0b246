//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/at24cx"

	"busnode/core"
)

// eepromBase is where the node configuration lives in the EEPROM
const eepromBase = 0

// newEEPROMStore opens the node configuration on an AT24C EEPROM
func newEEPROMStore(i2c *machine.I2C, sda, scl machine.Pin) (core.ConfigStore, error) {
	err := i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       sda,
		SCL:       scl,
	})
	if err != nil {
		return nil, err
	}

	eeprom := at24cx.New(i2c)
	eeprom.Configure(at24cx.Config{})

	return core.NewNVMStore(&eeprom, eepromBase)
}
