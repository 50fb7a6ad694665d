package record

import (
	"testing"

	"github.com/stretchr/testify/require"

	"batmon-go/errcode"
)

func TestCodecRoundTrip(t *testing.T) {
	in := Record{Timestamp: 3712, Values: []uint16{1250, 1248, 0, 65535, 833, 840, 839, 841}}

	p := Encode(nil, in)
	require.Len(t, p, EncodedSize(len(in.Values)))

	out, err := Decode(p)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	p := Encode(nil, Record{Timestamp: 7, Values: []uint16{100, 200}})

	flipped := append([]byte(nil), p...)
	flipped[3] ^= 0x40
	_, err := Decode(flipped)
	require.Equal(t, errcode.CorruptEntry, errcode.Of(err))

	_, err = Decode(p[:len(p)-1]) // torn write
	require.Equal(t, errcode.CorruptEntry, errcode.Of(err))

	_, err = Decode(nil)
	require.Equal(t, errcode.CorruptEntry, errcode.Of(err))
}
