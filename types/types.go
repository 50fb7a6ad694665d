package types

// ------------------------
// Consumed capabilities
// ------------------------

// Bank selects one of the two multiplexer banks feeding the ADC input.
type Bank uint8

const (
	BankA Bank = 0
	BankB Bank = 1
)

// NumBanks is fixed by the board: two muxes share the single ADC input.
const NumBanks = 2

// ChannelSelector drives the external channel-select hardware.
// Best effort; callers must not assume channel state after a scan
// without reselecting.
type ChannelSelector interface {
	Select(bank Bank, index uint8)
}

// RawSampler reads one raw sample from the most recently selected channel.
type RawSampler interface {
	ReadRaw() (uint16, error)
}

// Notifier is the wireless delivery primitive. Send succeeds only while a
// peer is subscribed; Ready reports that precondition without side effects.
type Notifier interface {
	Ready() bool
	Send(p []byte) error
}

// ------------------------
// Pipeline status (retained on the bus)
// ------------------------

type PipelineStatus struct {
	Cycles    uint32 `json:"cycles"`
	Flushes   uint32 `json:"flushes"`
	Dropped   uint32 `json:"dropped"`   // appends rejected with buffer_full
	Recovered int    `json:"recovered"` // records reloaded from the log at boot
	LastError string `json:"last_error,omitempty"`
	TsMs      int64  `json:"ts_ms"`
}
