// Package transport slices a serialized payload into link-sized chunks and
// paces them so the receiver's notification queue is never overrun.
package transport

import (
	"time"

	"batmon-go/errcode"
	"batmon-go/types"
	"batmon-go/x/mathx"
)

const (
	// DefaultChunkSize leaves headroom under a typical BLE notification MTU.
	DefaultChunkSize = 180
	// DefaultPacing is the inter-chunk delay.
	DefaultPacing = 20 * time.Millisecond
)

// Chunker sends payloads over a Notifier in fixed-size pieces.
// Delivery is prefix-safe, not atomic: on a mid-send failure the receiver
// must be assumed to have seen every chunk before the failing one.
type Chunker struct {
	Link      types.Notifier
	ChunkSize int
	Pacing    time.Duration
}

// NewChunker applies defaults for unset fields.
func NewChunker(link types.Notifier, chunkSize int, pacing time.Duration) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if pacing < 0 {
		pacing = DefaultPacing
	}
	return &Chunker{Link: link, ChunkSize: chunkSize, Pacing: pacing}
}

// Chunks returns how many notifications a payload of length n needs.
func (c *Chunker) Chunks(n int) int { return mathx.CeilDiv(n, c.ChunkSize) }

// Send transmits payload in order. It returns errcode.NotReady without
// touching the link when no peer is subscribed, and errcode.PartialSend if
// any chunk fails; no chunk after a failed one is attempted.
func (c *Chunker) Send(payload []byte) error {
	if !c.Link.Ready() {
		return errcode.NotReady
	}
	for off := 0; off < len(payload); off += c.ChunkSize {
		end := off + c.ChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		if off > 0 && c.Pacing > 0 {
			time.Sleep(c.Pacing) // receiver-side queue drain time
		}
		if err := c.Link.Send(payload[off:end]); err != nil {
			return &errcode.E{C: errcode.PartialSend, Op: "notify", Err: err}
		}
	}
	return nil
}
