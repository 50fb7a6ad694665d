// Package memlog is the RAM-backed slot log used in tests.
package memlog

import (
	"sync"

	"batmon-go/errcode"
)

type Log struct {
	mu    sync.Mutex
	slots map[uint16][]byte
}

func New() *Log {
	return &Log{slots: map[uint16][]byte{}}
}

func (l *Log) Write(key uint16, val []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slots[key] = append([]byte(nil), val...)
	return nil
}

func (l *Log) Read(key uint16) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.slots[key]
	if !ok {
		return nil, errcode.NotFound
	}
	return append([]byte(nil), v...), nil
}

func (l *Log) Close() error { return nil }
