package irrelay_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"libdb.so/irrelay"
)

func TestReplayNullCode(t *testing.T) {
	s, tx := newSession(t, irrelay.CaptureConfig{})
	s.Capture(irrelay.RawEvent{Protocol: irrelay.RC5, Value: 0x1A, Bits: 13})

	for _, repeat := range []bool{false, true} {
		err := s.Replay(context.Background(), 0, repeat)
		assert.IsError(t, err, irrelay.ErrNullCode)
	}
	assert.Equal(t, 0, len(tx.commands))
	assert.False(t, s.Toggle(), "null code must not flip the toggle bit")
}

func TestReplayNECRepeat(t *testing.T) {
	s, tx := newSession(t, irrelay.CaptureConfig{})
	ctx := context.Background()
	s.Capture(irrelay.RawEvent{Protocol: irrelay.NEC, Value: 0x20DF10EF, Bits: 32})

	assert.NoError(t, s.Replay(ctx, 0x20DF10EF, false))
	assert.NoError(t, s.Replay(ctx, 0x20DF10EF, true))

	assert.Equal(t, []irrelay.Command{
		irrelay.SendCode{Protocol: irrelay.NEC, Value: 0x20DF10EF, Bits: 32},
		irrelay.SendRepeat{Protocol: irrelay.NEC, Bits: 32},
	}, tx.commands)
}

func TestReplayToggle(t *testing.T) {
	s, tx := newSession(t, irrelay.CaptureConfig{})
	ctx := context.Background()
	s.Capture(irrelay.RawEvent{Protocol: irrelay.RC5, Value: 0x1A, Bits: 13})

	assert.False(t, s.Toggle())

	assert.NoError(t, s.Replay(ctx, 0x1A, false))
	assert.True(t, s.Toggle())
	assert.Equal[irrelay.Command](t, irrelay.SendCode{Protocol: irrelay.RC5, Value: 0x101A, Bits: 13}, tx.last(t))

	assert.NoError(t, s.Replay(ctx, 0x1A, true))
	assert.True(t, s.Toggle())
	assert.Equal[irrelay.Command](t, irrelay.SendCode{Protocol: irrelay.RC5, Value: 0x101A, Bits: 13}, tx.last(t))

	assert.NoError(t, s.Replay(ctx, 0x101A, false))
	assert.False(t, s.Toggle())
	assert.Equal[irrelay.Command](t, irrelay.SendCode{Protocol: irrelay.RC5, Value: 0x1A, Bits: 13}, tx.last(t))
}

func TestReplayToggleSharedByRC5AndRC6(t *testing.T) {
	s, tx := newSession(t, irrelay.CaptureConfig{})
	ctx := context.Background()

	s.Capture(irrelay.RawEvent{Protocol: irrelay.RC5, Value: 0x1A, Bits: 13})
	assert.NoError(t, s.Replay(ctx, 0x1A, false))
	assert.True(t, s.Toggle())

	s.Capture(irrelay.RawEvent{Protocol: irrelay.RC6, Value: 0x8000C, Bits: 20})
	assert.True(t, s.Toggle(), "capturing must not touch the toggle bit")

	assert.NoError(t, s.Replay(ctx, 0x8000C, false))
	assert.False(t, s.Toggle())
	assert.Equal[irrelay.Command](t, irrelay.SendCode{Protocol: irrelay.RC6, Value: 0xC, Bits: 20}, tx.last(t))

	assert.NoError(t, s.Replay(ctx, 0x8000C, true))
	assert.False(t, s.Toggle())
	assert.Equal[irrelay.Command](t, irrelay.SendCode{Protocol: irrelay.RC6, Value: 0xC, Bits: 20}, tx.last(t))

	s.Capture(irrelay.RawEvent{Protocol: irrelay.RC5, Value: 0x1A, Bits: 13})
	assert.NoError(t, s.Replay(ctx, 0x1A, false))
	assert.True(t, s.Toggle())

	// Other protocols leave it alone.
	s.Capture(irrelay.RawEvent{Protocol: irrelay.Sony, Value: 0xA90, Bits: 12})
	assert.NoError(t, s.Replay(ctx, 0xA90, false))
	assert.True(t, s.Toggle())
}

func TestReplayRaw(t *testing.T) {
	s, tx := newSession(t, irrelay.CaptureConfig{CarrierKHz: 40})
	ctx := context.Background()
	s.Capture(irrelay.RawEvent{
		Protocol: irrelay.Unknown,
		Value:    0x1234,
		Ticks:    []uint16{0, 10, 20, 30, 40},
	})

	assert.NoError(t, s.Replay(ctx, 0x1234, false))
	assert.NoError(t, s.Replay(ctx, 0x1234, true))

	raw := irrelay.SendRaw{Timings: []int{400, 1100, 1400, 2100}, CarrierKHz: 40}
	assert.Equal(t, []irrelay.Command{raw, raw}, tx.commands)
}

func TestReplayFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("unregistered protocol", func(t *testing.T) {
		s, tx := newSession(t, irrelay.CaptureConfig{})
		assert.NoError(t, s.Restore(&memStore{keys: irrelay.KeySet{CodeType: irrelay.Protocol(42), CodeLen: 48}}))

		assert.NoError(t, s.Replay(ctx, 0xABCDEF, false))
		assert.Equal[irrelay.Command](t, irrelay.SendCode{Protocol: irrelay.NEC, Value: 0xABCDEF, Bits: 32}, tx.last(t))
	})

	t.Run("partial protocol", func(t *testing.T) {
		s, tx := newSession(t, irrelay.CaptureConfig{})
		s.Capture(irrelay.RawEvent{Protocol: irrelay.Mitsubishi, Value: 0xE240, Bits: 16})

		assert.NoError(t, s.Replay(ctx, 0xE240, false))
		assert.Equal[irrelay.Command](t, irrelay.SendCode{Protocol: irrelay.NEC, Value: 0xE240, Bits: 16}, tx.last(t))
	})

	t.Run("restored raw", func(t *testing.T) {
		s, tx := newSession(t, irrelay.CaptureConfig{})
		assert.NoError(t, s.Restore(&memStore{keys: irrelay.KeySet{RelayA: 0x99, CodeType: irrelay.Unknown, CodeLen: 67}}))

		assert.NoError(t, s.Fire(ctx, irrelay.RelayA, false))
		assert.Equal[irrelay.Command](t, irrelay.SendCode{Protocol: irrelay.NEC, Value: 0x99, Bits: 32}, tx.last(t))
	})

	t.Run("after unrecognized capture", func(t *testing.T) {
		s, tx := newSession(t, irrelay.CaptureConfig{})
		_, err := s.Learn(irrelay.RelayA, irrelay.RawEvent{Protocol: irrelay.NEC, Value: 0x20DF10EF, Bits: 32})
		assert.NoError(t, err)

		_, _, err = s.Capture(irrelay.RawEvent{Protocol: irrelay.Protocol(42), Value: 7, Bits: 8})
		assert.IsError(t, err, irrelay.ErrUnsupported)

		assert.NoError(t, s.Fire(ctx, irrelay.RelayA, false))
		assert.Equal(t, "SEND NEC 0x20DF10EF 0", strings.Join(tx.last(t).EncodeCommand(), " "))
	})
}

func TestReplayTransmitError(t *testing.T) {
	s, tx := newSession(t, irrelay.CaptureConfig{})
	tx.err = errors.New("device gone")
	s.Capture(irrelay.RawEvent{Protocol: irrelay.Denon, Value: 0x2A4C, Bits: 15})

	err := s.Replay(context.Background(), 0x2A4C, false)
	assert.IsError(t, err, tx.err)
}
