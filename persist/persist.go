// Package persist write-throughs buffered records to the slot log and
// reloads them after a restart. A storage fault disables persistence for
// the rest of the session; acquisition is never blocked by it.
package persist

import (
	"batmon-go/errcode"
	"batmon-go/record"
	"batmon-go/store"
)

// Adapter mirrors buffer slots 1:1 into a key-indexed log. Slot ids equal
// the buffer position at capture time, so recovery scanning keys from 0
// until a miss reconstructs the buffer in append order.
type Adapter struct {
	kv       store.KV
	disabled bool
}

// New wires a slot log. A nil kv yields a permanently disabled adapter
// (memory-only mode).
func New(kv store.KV) *Adapter {
	return &Adapter{kv: kv, disabled: kv == nil}
}

// Enabled reports whether write-through is still active this session.
func (a *Adapter) Enabled() bool { return !a.disabled }

// StoreSlot persists r at its buffer position. The first write failure
// disables the adapter for the session and is reported once; later calls
// are cheap no-ops.
func (a *Adapter) StoreSlot(slot int, r record.Record) error {
	if a.disabled {
		return nil
	}
	if err := a.kv.Write(uint16(slot), record.Encode(nil, r)); err != nil {
		a.disabled = true
		return &errcode.E{C: errcode.PersistenceFailed, Op: "write_through", Err: err}
	}
	return nil
}

// Rewrite re-mirrors the buffer into slots 0..Len()-1 after a partial drain
// compacted it, then seals slot Len() with an empty entry so recovery stops
// before the stale tail. Persistence forces the single-task topology, so
// this never races a write-through.
func (a *Adapter) Rewrite(buf *record.Buffer) error {
	if a.disabled {
		return nil
	}
	for i := 0; i < buf.Len(); i++ {
		if err := a.kv.Write(uint16(i), record.Encode(nil, buf.At(i))); err != nil {
			a.disabled = true
			return &errcode.E{C: errcode.PersistenceFailed, Op: "rewrite", Err: err}
		}
	}
	if err := a.kv.Write(uint16(buf.Len()), nil); err != nil {
		a.disabled = true
		return &errcode.E{C: errcode.PersistenceFailed, Op: "rewrite", Err: err}
	}
	return nil
}

// Recover reloads the buffer from slots 0,1,2,… stopping at the first read
// miss, the first corrupt entry, or the buffer's capacity. Returns the
// number of records recovered. Called once at startup, before the
// acquisition loop begins.
func (a *Adapter) Recover(buf *record.Buffer) int {
	if a.disabled {
		return 0
	}
	n := 0
	for ; n < buf.Cap(); n++ {
		raw, err := a.kv.Read(uint16(n))
		if errcode.Is(err, errcode.NotFound) {
			break
		}
		if err != nil {
			a.disabled = true
			break
		}
		r, err := record.Decode(raw)
		if err != nil {
			// Torn write from a crash mid-store; everything before it is good.
			break
		}
		if buf.Append(r) != nil {
			break
		}
	}
	return n
}
