// Package badgerlog backs the slot log with BadgerDB for host deployments,
// where "flash" is a directory rather than an NVS partition.
package badgerlog

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"batmon-go/errcode"
)

// Config holds BadgerDB configuration.
type Config struct {
	Path     string
	InMemory bool // for tests
}

type Log struct {
	db *badger.DB
}

// Open mounts the log. The option set is trimmed for a tiny, append-mostly
// working set: one memtable, shallow LSM, no compression worth the CPU.
func Open(cfg Config) (*Log, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithNumVersionsToKeep(1).
		WithMemTableSize(1 << 20).
		WithNumMemtables(2).
		WithMaxLevels(3).
		WithValueLogFileSize(4 << 20).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &errcode.E{C: errcode.PersistenceFailed, Op: "mount", Err: err}
	}
	return &Log{db: db}, nil
}

func slotKey(key uint16) []byte {
	k := make([]byte, 0, 6)
	k = append(k, "slot"...)
	return binary.BigEndian.AppendUint16(k, key)
}

func (l *Log) Write(key uint16, val []byte) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(slotKey(key), val)
	})
	if err != nil {
		return &errcode.E{C: errcode.PersistenceFailed, Op: "write", Msg: fmt.Sprintf("slot %d", key), Err: err}
	}
	return nil
}

func (l *Log) Read(key uint16) ([]byte, error) {
	var out []byte
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(slotKey(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, errcode.NotFound
	}
	if err != nil {
		return nil, &errcode.E{C: errcode.PersistenceFailed, Op: "read", Err: err}
	}
	return out, nil
}

func (l *Log) Close() error { return l.db.Close() }
