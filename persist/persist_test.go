package persist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"batmon-go/errcode"
	"batmon-go/record"
	"batmon-go/store/memlog"
)

func sample(i int) record.Record {
	return record.Record{Timestamp: int64(100 + i), Values: []uint16{uint16(i), uint16(i * 2)}}
}

func TestRecoverAfterRestart(t *testing.T) {
	kv := memlog.New()
	a := New(kv)
	for i := 0; i < 5; i++ {
		require.NoError(t, a.StoreSlot(i, sample(i)))
	}

	// Simulated restart: a fresh adapter over the same log.
	buf := record.NewBuffer(128)
	n := New(kv).Recover(buf)

	require.Equal(t, 5, n)
	require.Equal(t, 5, buf.Len())
	for i := 0; i < 5; i++ {
		require.Equal(t, sample(i), buf.At(i))
	}
}

func TestRecoverStopsAtCorruptSlot(t *testing.T) {
	kv := memlog.New()
	a := New(kv)
	for i := 0; i < 4; i++ {
		require.NoError(t, a.StoreSlot(i, sample(i)))
	}
	// Torn write at slot 2.
	require.NoError(t, kv.Write(2, []byte{0xde, 0xad}))

	buf := record.NewBuffer(128)
	require.Equal(t, 2, New(kv).Recover(buf))
	require.Equal(t, 2, buf.Len())
}

func TestRecoverBoundedByCapacity(t *testing.T) {
	kv := memlog.New()
	a := New(kv)
	for i := 0; i < 10; i++ {
		require.NoError(t, a.StoreSlot(i, sample(i)))
	}

	buf := record.NewBuffer(4)
	require.Equal(t, 4, New(kv).Recover(buf))
	require.Equal(t, 4, buf.Len())
}

func TestRewriteRealignsSlotsAfterCompaction(t *testing.T) {
	kv := memlog.New()
	a := New(kv)
	for i := 0; i < 4; i++ {
		require.NoError(t, a.StoreSlot(i, sample(i)))
	}

	// The buffer dropped its first two records; mirror the survivors back
	// to slots 0 and 1.
	buf := record.NewBuffer(8)
	require.NoError(t, buf.Append(sample(2)))
	require.NoError(t, buf.Append(sample(3)))
	require.NoError(t, a.Rewrite(buf))

	out := record.NewBuffer(8)
	require.Equal(t, 2, New(kv).Recover(out), "recovery stops at the seal, not the stale tail")
	require.Equal(t, sample(2), out.At(0))
	require.Equal(t, sample(3), out.At(1))
}

type faultyKV struct{ memlog.Log }

func (f *faultyKV) Write(key uint16, val []byte) error { return errors.New("flash full") }

func TestWriteFailureDisablesSession(t *testing.T) {
	a := New(&faultyKV{})

	err := a.StoreSlot(0, sample(0))
	require.Equal(t, errcode.PersistenceFailed, errcode.Of(err))
	require.False(t, a.Enabled())

	// Later stores are silent no-ops; acquisition keeps running.
	require.NoError(t, a.StoreSlot(1, sample(1)))
}

func TestNilStoreIsMemoryOnly(t *testing.T) {
	a := New(nil)
	require.False(t, a.Enabled())
	require.NoError(t, a.StoreSlot(0, sample(0)))
	require.Zero(t, a.Recover(record.NewBuffer(4)))
}
