package errcode

// Code is a stable error identifier for pipeline results.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Acquisition path.
	AcquisitionFailed Code = "acquisition_failed" // raw read failed, cycle aborted
	BufferFull        Code = "buffer_full"        // append rejected, sample dropped

	// Persistence path.
	PersistenceFailed Code = "persistence_failed" // log write/mount failed
	NotFound          Code = "not_found"          // no entry at key
	CorruptEntry      Code = "corrupt_entry"      // checksum mismatch on read

	// Drain path.
	Truncated   Code = "truncated"    // CSV output capacity exceeded
	NotReady    Code = "not_ready"    // no subscriber on the notify link
	PartialSend Code = "partial_send" // mid-send failure, receiver saw a prefix

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Is reports whether err carries the given code.
func Is(err error, c Code) bool { return Of(err) == c }
