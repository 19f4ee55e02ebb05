package irrelay

import (
	"context"
	"strconv"
	"strings"
)

// Command describes a single hardware transmit action.
type Command interface {
	// EncodeCommand encodes the command and arguments as a slice of strings.
	EncodeCommand() []string
}

// Transmitter drives the IR LED and relays. Transmit blocks for as long as
// the physical waveform takes to send.
type Transmitter interface {
	Transmit(ctx context.Context, cmd Command) error
}

// Decoder hands out decode events buffered by the IR receiver. Poll returns
// false if no event is pending.
type Decoder interface {
	Poll() (RawEvent, bool)
}

// SendCode sends value using the given protocol's encoder. Bits is ignored
// for protocols whose send primitive takes only a value, and always sent for
// the others, even when zero.
type SendCode struct {
	Protocol Protocol
	Value    uint64
	Bits     int
}

// EncodeCommand implements the [Command] interface.
func (s SendCode) EncodeCommand() []string {
	value := "0x" + strings.ToUpper(strconv.FormatUint(s.Value, 16))
	if isValueOnly(s.Protocol) {
		return []string{"SEND", s.Protocol.String(), value}
	}
	return []string{"SEND", s.Protocol.String(), value, strconv.Itoa(s.Bits)}
}

// SendRepeat sends the protocol's repeat sentinel frame, telling the
// receiver to repeat the last code it saw. Only NEC has one.
type SendRepeat struct {
	Protocol Protocol
	Bits     int
}

// EncodeCommand implements the [Command] interface.
func (s SendRepeat) EncodeCommand() []string {
	return []string{"SEND_REPEAT", s.Protocol.String(), strconv.Itoa(s.Bits)}
}

// SendRaw sends mark/space timings in microseconds, modulated at CarrierKHz.
type SendRaw struct {
	Timings    []int
	CarrierKHz int
}

// EncodeCommand implements the [Command] interface.
func (s SendRaw) EncodeCommand() []string {
	words := make([]string, 0, 3+len(s.Timings))
	words = append(words, "SEND_RAW", strconv.Itoa(s.CarrierKHz), strconv.Itoa(len(s.Timings)))
	for _, t := range s.Timings {
		words = append(words, strconv.Itoa(t))
	}
	return words
}

// ToggleRelay flips the output of the named relay.
type ToggleRelay struct {
	Relay string
}

// EncodeCommand implements the [Command] interface.
func (t ToggleRelay) EncodeCommand() []string {
	return []string{"RELAY_TOGGLE", strings.ToUpper(t.Relay)}
}
