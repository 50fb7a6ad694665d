// Package csvenc renders a record buffer into a bounded CSV block.
//
// The output is the only wire-level text contract this device owns: a header
// row "Timestamp,B1,...,B2N" followed by one row per record. Rows are
// committed whole or not at all — a caller never sees a partially written
// row, and truncation is reported, never silent.
package csvenc

import (
	"strconv"

	"batmon-go/errcode"
	"batmon-go/record"
)

// DefaultLabels returns the stock channel labels B1..Bn.
func DefaultLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = "B" + strconv.Itoa(i+1)
	}
	return labels
}

// Write serializes buf into out. It returns the number of bytes written and
// the number of data rows committed. When a row (header included) would
// exceed cap(out's remainder), serialization stops at the last complete row
// and the error is errcode.Truncated. out is never written past len(out).
func Write(buf *record.Buffer, labels []string, out []byte) (n, rows int, err error) {
	scratch := make([]byte, 0, 64)

	scratch = append(scratch, "Timestamp"...)
	for _, l := range labels {
		scratch = append(scratch, ',')
		scratch = append(scratch, l...)
	}
	scratch = append(scratch, '\n')
	if len(scratch) > len(out) {
		return 0, 0, &errcode.E{C: errcode.Truncated, Op: "csv", Msg: "header"}
	}
	n = copy(out, scratch)

	for i := 0; i < buf.Len(); i++ {
		r := buf.At(i)
		scratch = scratch[:0]
		scratch = strconv.AppendInt(scratch, r.Timestamp, 10)
		for _, v := range r.Values {
			scratch = append(scratch, ',')
			scratch = strconv.AppendUint(scratch, uint64(v), 10)
		}
		scratch = append(scratch, '\n')
		if n+len(scratch) > len(out) {
			return n, rows, &errcode.E{C: errcode.Truncated, Op: "csv"}
		}
		n += copy(out[n:], scratch)
		rows++
	}
	return n, rows, nil
}
