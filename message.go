package irrelay

import "errors"

// RawEvent is a single decode result handed over by the IR receiver.
type RawEvent struct {
	// Protocol is the protocol tag the decoder assigned to the signal.
	Protocol Protocol
	// Value is the decoded value. For UNKNOWN signals decoders usually put a
	// hash of the timings here.
	Value uint64
	// Bits is the number of bits the decoder consumed.
	Bits int
	// Ticks holds the raw receive buffer in timer ticks. The first entry is
	// the gap preceding the signal.
	Ticks []uint16
	// Samples is the number of valid entries in Ticks, gap included. Zero
	// means len(Ticks).
	Samples int
}

// Code is the canonical learned signal.
type Code struct {
	Protocol Protocol `json:"protocol"`
	Value    uint64   `json:"value"`
	// Bits is the bit length for protocol codes and the number of timings
	// for raw codes.
	Bits int `json:"bits"`
	// Timings holds mark/space durations in microseconds. It is only set
	// when Protocol is Unknown.
	Timings []int `json:"timings,omitempty"`
}

// IsRaw returns true if the code is a raw timing capture.
func (c Code) IsRaw() bool {
	return c.Protocol == Unknown && len(c.Timings) > 0
}

// Capture is emitted by a Session every time an event was captured.
type Capture struct {
	Code Code `json:"code"`
	// New is false when the event was a repeat of the current code.
	New bool `json:"new"`
}

var (
	// ErrUnsupported is returned when a protocol cannot be decoded or
	// encoded. It is never fatal: the code is kept as UNKNOWN or sent using
	// the fallback encoding.
	ErrUnsupported = errors.New("irrelay: unsupported protocol")
	// ErrNullCode is returned when replaying the value 0.
	ErrNullCode = errors.New("irrelay: null key code")
	// ErrMalformedRecord is returned when the persisted key set cannot be
	// parsed. All keys are reset to zero.
	ErrMalformedRecord = errors.New("irrelay: malformed key record")
	// ErrTruncated is returned when a raw capture has more samples than the
	// raw buffer can hold.
	ErrTruncated = errors.New("irrelay: raw capture truncated")
)
