package irrelay

import (
	"context"
	"fmt"
)

// Replay transmits value using the protocol and bit length of the current
// code. repeat asks for a held-button repeat rather than a new key press: NEC
// sends its repeat frame, RC5 and RC6 keep their toggle bit, and raw codes
// ignore it.
//
// Replaying zero sends nothing and returns ErrNullCode. Protocols without an
// encoder are sent as NEC with at most 32 bits.
func (s *Session) Replay(ctx context.Context, value uint64, repeat bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replay(ctx, value, repeat)
}

func (s *Session) replay(ctx context.Context, value uint64, repeat bool) error {
	if value == 0 {
		s.logger.Warn("trying to send null key code")
		return ErrNullCode
	}

	code := s.current
	logger := s.logger.With("protocol", code.Protocol)

	cmd := s.encode(code, value, repeat)
	if err := s.tx.Transmit(ctx, cmd); err != nil {
		logger.Error(
			"cannot transmit code",
			"value", hexValue(value),
			"err", err)
		return fmt.Errorf("cannot transmit %v code: %w", code.Protocol, err)
	}

	logger.Debug(
		"sent code",
		"command", cmd.EncodeCommand()[0],
		"value", hexValue(value),
		"repeat", repeat)
	return nil
}

func (s *Session) encode(code Code, value uint64, repeat bool) Command {
	if code.IsRaw() {
		return SendRaw{Timings: code.Timings, CarrierKHz: s.config.CarrierKHz}
	}

	f := Frame{Value: value, Bits: code.Bits, Repeat: repeat}

	codec, ok := codecs[code.Protocol]
	if !ok {
		s.logger.Debug(
			"no encoder for protocol, sending as NEC",
			"protocol", code.Protocol)
		return fallbackEncode(f)
	}

	if codec.UsesToggleBit {
		if !repeat {
			s.toggle = !s.toggle
		}
		f.Toggle = s.toggle
	}

	cmd, err := codec.Encode(f)
	if err != nil {
		s.logger.Debug(
			"cannot encode, sending as NEC",
			"protocol", code.Protocol,
			"err", err)
		return fallbackEncode(f)
	}
	return cmd
}
