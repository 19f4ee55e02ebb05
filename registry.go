package irrelay

import (
	"fmt"
	"sort"
)

// MaxFallbackBits is the longest code the NEC fallback encoder can send.
const MaxFallbackBits = 32

// NECRepeat is the value NEC decoders report for a repeat frame.
const NECRepeat uint64 = 0xFFFFFFFF

// Frame is what an encoder turns into a transmit command.
type Frame struct {
	Value uint64
	Bits  int
	// Repeat asks for a repeat of the previous transmission.
	Repeat bool
	// Toggle is the toggle bit to splice into the code for protocols that
	// use one.
	Toggle bool
}

// Codec is the normalization and encoding policy of a single protocol.
type Codec struct {
	Protocol Protocol
	// Partial codecs can decode but not encode. Their Encode always fails
	// with ErrUnsupported.
	Partial bool
	// UsesToggleBit is set for protocols that flip their most significant
	// bit on every new key press.
	UsesToggleBit bool
	// HasRepeatSentinel is set for protocols with a dedicated repeat frame,
	// which decodes to Sentinel.
	HasRepeatSentinel bool
	Sentinel          uint64

	Normalize func(ev RawEvent) (value uint64, bits int)
	Encode    func(f Frame) (Command, error)
}

var codecs = map[Protocol]Codec{}

func register(c Codec) {
	if c.Normalize == nil {
		c.Normalize = verbatim
	}
	if c.Partial {
		c.Encode = func(Frame) (Command, error) {
			return nil, fmt.Errorf("%w: %v is decode-only", ErrUnsupported, c.Protocol)
		}
	}
	codecs[c.Protocol] = c
}

func init() {
	register(Codec{
		Protocol:          NEC,
		HasRepeatSentinel: true,
		Sentinel:          NECRepeat,
		Encode: func(f Frame) (Command, error) {
			if f.Repeat {
				return SendRepeat{Protocol: NEC, Bits: f.Bits}, nil
			}
			return SendCode{Protocol: NEC, Value: f.Value, Bits: f.Bits}, nil
		},
	})

	for _, p := range []Protocol{RC5, RC6} {
		p := p
		register(Codec{
			Protocol:      p,
			UsesToggleBit: true,
			Encode: func(f Frame) (Command, error) {
				value := spliceToggle(f.Value, f.Bits, f.Toggle)
				return SendCode{Protocol: p, Value: value, Bits: f.Bits}, nil
			},
		})
	}

	for _, p := range []Protocol{
		Sony, Samsung, Panasonic, JVC, Whynter, LG,
		Sharp, SharpAlt, Denon, MagiQuest,
	} {
		register(Codec{Protocol: p, Encode: withBits(p)})
	}

	for _, p := range valueOnlyProtocols {
		register(Codec{Protocol: p, Encode: valueOnly(p)})
	}

	for _, p := range []Protocol{Sanyo, Mitsubishi, Dish, LegoPF} {
		register(Codec{Protocol: p, Partial: true})
	}
}

// valueOnlyProtocols have senders that take the value only. The bit count is
// implied by the protocol.
var valueOnlyProtocols = []Protocol{AiwaRCT501, BoseWave}

func isValueOnly(p Protocol) bool {
	for _, v := range valueOnlyProtocols {
		if p == v {
			return true
		}
	}
	return false
}

func verbatim(ev RawEvent) (uint64, int) {
	return ev.Value, ev.Bits
}

func withBits(p Protocol) func(Frame) (Command, error) {
	return func(f Frame) (Command, error) {
		return SendCode{Protocol: p, Value: f.Value, Bits: f.Bits}, nil
	}
}

func valueOnly(p Protocol) func(Frame) (Command, error) {
	return func(f Frame) (Command, error) {
		return SendCode{Protocol: p, Value: f.Value}, nil
	}
}

// spliceToggle replaces the most significant bit of a bits-long value with
// the toggle bit.
func spliceToggle(value uint64, bits int, toggle bool) uint64 {
	if bits <= 0 || bits > 64 {
		return value
	}
	mask := uint64(1) << (bits - 1)
	value &^= mask
	if toggle {
		value |= mask
	}
	return value
}

// fallbackEncode sends a frame as NEC. It is used for protocols that have no
// encoder of their own.
func fallbackEncode(f Frame) Command {
	return SendCode{Protocol: NEC, Value: f.Value, Bits: min(f.Bits, MaxFallbackBits)}
}

// LookupCodec returns the codec registered for p.
func LookupCodec(p Protocol) (Codec, bool) {
	c, ok := codecs[p]
	return c, ok
}

// Codecs returns all registered codecs ordered by protocol.
func Codecs() []Codec {
	list := make([]Codec, 0, len(codecs))
	for _, c := range codecs {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Protocol < list[j].Protocol })
	return list
}
