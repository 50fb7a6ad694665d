package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Uptime timestamps records in whole seconds since boot, matching the
// resolution the CSV export carries on the wire.
type Uptime struct {
	boot time.Time
}

// NewUptime anchors the uptime clock at the current instant.
func NewUptime() *Uptime { return &Uptime{boot: time.Now()} }

// Seconds returns whole seconds elapsed since boot (truncating).
func (u *Uptime) Seconds() int64 {
	return int64(time.Since(u.boot) / time.Second)
}
