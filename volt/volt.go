// Package volt converts raw ADC counts into centivolt readings using the
// board's reference voltage and input divider. All arithmetic is integer
// with truncating division; intermediates are widened so no configuration
// within uint32 range can overflow.
package volt

import "math"

// Converter models the two-stage transform: counts to reference-scaled
// centivolts, then divider correction back to the pack-side voltage.
type Converter struct {
	RefCV     uint32 // ADC reference voltage in centivolts
	FullScale uint32 // ADC full-scale count (e.g. 1024 for 10-bit)
	R1        uint32 // divider top resistor, ohms
	R2        uint32 // divider bottom resistor, ohms
}

// Default matches the monitored pack hardware: 3.3 V reference on a 10-bit
// converter behind a 240k/10k divider.
func Default() Converter {
	return Converter{RefCV: 330, FullScale: 1024, R1: 240000, R2: 10000}
}

// Scaled maps a raw count to pack-side centivolts. A model that would push
// the result past the field width saturates at math.MaxUint16 rather than
// wrapping.
func (c Converter) Scaled(raw uint16) uint16 {
	if c.FullScale == 0 || c.R2 == 0 {
		return 0
	}
	vADC := uint64(raw) * uint64(c.RefCV) / uint64(c.FullScale)
	vIn := vADC * (uint64(c.R1) + uint64(c.R2)) / uint64(c.R2)
	if vIn > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(vIn)
}
