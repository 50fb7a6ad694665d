// Package scan sweeps the multiplexed channel space and produces one
// scaled reading per logical channel.
package scan

import (
	"time"

	"batmon-go/errcode"
	"batmon-go/types"
	"batmon-go/volt"
)

// Scanner drives the channel-select capability across the 2-bank × PerBank
// address space. Logical channel = bank*PerBank + index; the sweep is always
// bank-major, index-minor, and that order is the order of the output slice.
type Scanner struct {
	Sel     types.ChannelSelector
	ADC     types.RawSampler
	Conv    volt.Converter
	PerBank int
	Settle  time.Duration // wait after select before the reading is trusted
}

// Channels returns the total logical channel count.
func (s *Scanner) Channels() int { return types.NumBanks * s.PerBank }

// ScanAll performs one full sweep into dst, which must hold Channels()
// readings. The first raw-read failure aborts the sweep: no partial record
// ever reaches the caller. The mux is left on the last selected channel.
func (s *Scanner) ScanAll(dst []uint16) error {
	if len(dst) < s.Channels() {
		return &errcode.E{C: errcode.AcquisitionFailed, Op: "scan", Msg: "short destination"}
	}
	for bank := 0; bank < types.NumBanks; bank++ {
		for idx := 0; idx < s.PerBank; idx++ {
			s.Sel.Select(types.Bank(bank), uint8(idx))
			if s.Settle > 0 {
				time.Sleep(s.Settle) // mux/ADC input capacitance settling
			}
			raw, err := s.ADC.ReadRaw()
			if err != nil {
				return &errcode.E{C: errcode.AcquisitionFailed, Op: "scan", Err: err}
			}
			dst[bank*s.PerBank+idx] = s.Conv.Scaled(raw)
		}
	}
	return nil
}
