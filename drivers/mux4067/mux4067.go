// Package mux4067 drives CD74HC4067-style analog multiplexers through their
// binary select lines. Two muxes share the ADC input on the monitored board;
// BankSelector exposes them as the pipeline's channel-select capability.
package mux4067

import (
	"batmon-go/types"
)

// Pin is the one GPIO operation a select line needs.
type Pin interface {
	Set(level bool)
}

// Mux is a single multiplexer with up to four select lines, LSB first.
type Mux struct {
	pins []Pin
}

func New(pins ...Pin) *Mux {
	return &Mux{pins: pins}
}

// Select latches channel onto the select lines, bit i to pin i.
func (m *Mux) Select(channel uint8) {
	for i, p := range m.pins {
		p.Set((channel>>i)&1 == 1)
	}
}

// BankSelector implements types.ChannelSelector over the two bank muxes.
type BankSelector struct {
	banks [types.NumBanks]*Mux
}

func NewBankSelector(a, b *Mux) *BankSelector {
	return &BankSelector{banks: [types.NumBanks]*Mux{a, b}}
}

func (s *BankSelector) Select(bank types.Bank, index uint8) {
	if int(bank) >= len(s.banks) {
		return
	}
	s.banks[bank].Select(index)
}
