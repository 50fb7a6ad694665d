package record

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"batmon-go/errcode"
)

// Wire layout of a persisted record:
//
//	[0:8)   timestamp, little-endian int64
//	[8:10)  channel count, little-endian uint16
//	[10:..) channel values, little-endian uint16 each
//	[..+8)  xxhash64 of everything before it
//
// The checksum lets recovery distinguish a torn flash write from a valid
// entry; recovery stops at the first corrupt slot.

const (
	headerSize = 10
	sumSize    = 8
)

// EncodedSize returns the persisted size of a record with n channels.
func EncodedSize(n int) int { return headerSize + 2*n + sumSize }

// Encode appends the wire form of r to dst and returns the extended slice.
func Encode(dst []byte, r Record) []byte {
	start := len(dst)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(r.Timestamp))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(r.Values)))
	for _, v := range r.Values {
		dst = binary.LittleEndian.AppendUint16(dst, v)
	}
	sum := xxhash.Sum64(dst[start:])
	return binary.LittleEndian.AppendUint64(dst, sum)
}

// Decode parses one persisted record.
// Returns errcode.CorruptEntry on a short buffer or checksum mismatch.
func Decode(p []byte) (Record, error) {
	if len(p) < headerSize+sumSize {
		return Record{}, errcode.CorruptEntry
	}
	body := p[:len(p)-sumSize]
	want := binary.LittleEndian.Uint64(p[len(p)-sumSize:])
	if xxhash.Sum64(body) != want {
		return Record{}, errcode.CorruptEntry
	}
	n := int(binary.LittleEndian.Uint16(body[8:10]))
	if len(body) != headerSize+2*n {
		return Record{}, errcode.CorruptEntry
	}
	r := Record{
		Timestamp: int64(binary.LittleEndian.Uint64(body[0:8])),
		Values:    make([]uint16, n),
	}
	for i := 0; i < n; i++ {
		r.Values[i] = binary.LittleEndian.Uint16(body[headerSize+2*i:])
	}
	return r, nil
}
