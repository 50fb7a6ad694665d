package record

import (
	"batmon-go/errcode"
)

// Record is one timestamped sweep of every logical channel, in scan order
// (bank-major, index-minor). Immutable once appended; the buffer owns it
// until drained.
type Record struct {
	Timestamp int64 // whole seconds since boot
	Values    []uint16
}

// clone copies r so the buffer never aliases caller-owned slices.
func (r Record) clone() Record {
	v := make([]uint16, len(r.Values))
	copy(v, r.Values)
	return Record{Timestamp: r.Timestamp, Values: v}
}

// Buffer is a fixed-capacity store of records with an explicit write index.
// Writes beyond capacity are rejected, never wrapped: overflow is an
// observable condition, not data loss. Not safe for concurrent use; callers
// hold their own exclusion around append-or-drain (see services/pipeline).
type Buffer struct {
	records []Record
	widx    int
}

// NewBuffer allocates a buffer for up to capacity records.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{records: make([]Record, capacity)}
}

func (b *Buffer) Cap() int { return len(b.records) }
func (b *Buffer) Len() int { return b.widx }

// Append stores a copy of r at the write index.
// Returns errcode.BufferFull when the buffer is at capacity; the write index
// is left unchanged and the caller decides whether to force a flush.
func (b *Buffer) Append(r Record) error {
	if b.widx >= len(b.records) {
		return errcode.BufferFull
	}
	b.records[b.widx] = r.clone()
	b.widx++
	return nil
}

// At returns the record at position i, 0 <= i < Len().
func (b *Buffer) At(i int) Record {
	if i < 0 || i >= b.widx {
		panic("record: index out of range")
	}
	return b.records[i]
}

// Reset empties the buffer. Called only after a confirmed successful drain.
func (b *Buffer) Reset() { b.widx = 0 }

// DropFirst discards the oldest n records, keeping the rest in order.
// Used after a truncated flush delivered only a prefix of the buffer.
func (b *Buffer) DropFirst(n int) {
	if n <= 0 {
		return
	}
	if n >= b.widx {
		b.widx = 0
		return
	}
	copy(b.records, b.records[n:b.widx])
	b.widx -= n
}
