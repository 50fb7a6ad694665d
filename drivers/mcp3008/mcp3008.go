// Package mcp3008 is a minimal driver for the MCP3008 10-bit SPI ADC.
// Only single-ended reads are implemented; that is all the voltage monitor
// needs behind its muxes.
package mcp3008

import (
	"tinygo.org/x/drivers"
)

// Device talks to one MCP3008 over an already-configured SPI bus.
type Device struct {
	bus drivers.SPI
}

func New(bus drivers.SPI) *Device {
	return &Device{bus: bus}
}

// Read samples channel ch (0..7) single-ended and returns the 10-bit count.
func (d *Device) Read(ch uint8) (uint16, error) {
	tx := [3]byte{
		0x01,                  // start bit
		(0x08 | ch&0x07) << 4, // single-ended, channel select
		0x00,                  // clocks out the low bits
	}
	var rx [3]byte
	if err := d.bus.Tx(tx[:], rx[:]); err != nil {
		return 0, err
	}
	return uint16(rx[1]&0x03)<<8 | uint16(rx[2]), nil
}

// Input pins one channel as the pipeline's raw-sample capability: the muxes
// route the selected pack cell onto this ADC input.
type Input struct {
	dev *Device
	ch  uint8
}

func (d *Device) Input(ch uint8) *Input { return &Input{dev: d, ch: ch} }

func (in *Input) ReadRaw() (uint16, error) { return in.dev.Read(in.ch) }
