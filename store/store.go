// Package store defines the key-indexed persistent log consumed by the
// persistence adapter. Implementations: memlog (RAM, tests and
// persistence-off deployments), badgerlog (host deployments).
package store

// KV is a slot-keyed append/read store. Read returns errcode.NotFound when
// no entry exists at the key; any other error is a storage fault.
type KV interface {
	Write(key uint16, val []byte) error
	Read(key uint16) ([]byte, error)
	Close() error
}
