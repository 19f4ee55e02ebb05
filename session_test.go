package irrelay_test

import (
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/neilotoole/slogt"
	"libdb.so/irrelay"
)

// recorder is a Transmitter that remembers every command.
type recorder struct {
	commands []irrelay.Command
	err      error
}

func (r *recorder) Transmit(_ context.Context, cmd irrelay.Command) error {
	r.commands = append(r.commands, cmd)
	return r.err
}

func (r *recorder) last(t *testing.T) irrelay.Command {
	t.Helper()
	assert.NotEqual(t, 0, len(r.commands), "no command transmitted")
	return r.commands[len(r.commands)-1]
}

// memStore is an in-memory KeyStore.
type memStore struct {
	keys    irrelay.KeySet
	err     error
	removed bool
}

func (m *memStore) Load() (irrelay.KeySet, error) { return m.keys, m.err }

func (m *memStore) Save(keys irrelay.KeySet) error {
	m.keys = keys
	m.removed = false
	return nil
}

func (m *memStore) Remove() error {
	m.keys = irrelay.KeySet{}
	m.removed = true
	return nil
}

func newSession(t *testing.T, config irrelay.CaptureConfig) (*irrelay.Session, *recorder) {
	tx := &recorder{}
	logger := slogt.New(t).With("module", "irrelay")
	return irrelay.NewSession(tx, config, logger), tx
}

func TestLearnAndFire(t *testing.T) {
	s, tx := newSession(t, irrelay.CaptureConfig{})
	ctx := context.Background()

	code, err := s.Learn(irrelay.RelayA, irrelay.RawEvent{Protocol: irrelay.NEC, Value: 0x20DF10EF, Bits: 32})
	assert.NoError(t, err)
	assert.Equal(t, irrelay.Code{Protocol: irrelay.NEC, Value: 0x20DF10EF, Bits: 32}, code)
	assert.Equal(t, uint64(0x20DF10EF), s.Keys().RelayA)

	// A repeat frame must not overwrite the learned key.
	_, err = s.Learn(irrelay.RelayB, irrelay.RawEvent{Protocol: irrelay.NEC, Value: irrelay.NECRepeat, Bits: 0})
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), s.Keys().RelayB)

	assert.NoError(t, s.Fire(ctx, irrelay.RelayA, false))
	assert.Equal[irrelay.Command](t,
		irrelay.SendCode{Protocol: irrelay.NEC, Value: 0x20DF10EF, Bits: 32},
		tx.last(t))

	// Nothing learned for relay B.
	assert.IsError(t, s.Fire(ctx, irrelay.RelayB, false), irrelay.ErrNullCode)
	assert.Equal(t, 1, len(tx.commands))

	assert.Error(t, s.Fire(ctx, irrelay.Slot("relayz"), false))
}

func TestLearnUnknownSlot(t *testing.T) {
	s, _ := newSession(t, irrelay.CaptureConfig{})

	_, err := s.Learn(irrelay.RelayA, irrelay.RawEvent{Protocol: irrelay.NEC, Value: 0x20DF10EF, Bits: 32})
	assert.NoError(t, err)

	var captures int
	s.OnCapture(func(irrelay.Capture) { captures++ })

	current, keys := s.Current(), s.Keys()

	code, err := s.Learn(irrelay.Slot("relayz"), irrelay.RawEvent{Protocol: irrelay.Sony, Value: 0xA90, Bits: 12})
	assert.Error(t, err)
	assert.Equal(t, current, code)
	assert.Equal(t, current, s.Current())
	assert.Equal(t, keys, s.Keys())
	assert.Equal(t, 0, captures)
}

func TestLearnUnrecognizedKeepsSlot(t *testing.T) {
	s, _ := newSession(t, irrelay.CaptureConfig{})

	_, err := s.Learn(irrelay.DeviceE, irrelay.RawEvent{Protocol: irrelay.Sony, Value: 0xA90, Bits: 12})
	assert.NoError(t, err)

	_, err = s.Learn(irrelay.DeviceE, irrelay.RawEvent{Protocol: irrelay.Protocol(77), Value: 5, Bits: 8})
	assert.IsError(t, err, irrelay.ErrUnsupported)
	assert.Equal(t, uint64(0xA90), s.Keys().DeviceE)
}

func TestPersistenceRoundTrip(t *testing.T) {
	store := &memStore{}

	s, _ := newSession(t, irrelay.CaptureConfig{})
	events := map[irrelay.Slot]uint64{
		irrelay.RelayA:     0x10,
		irrelay.RelayB:     0x20,
		irrelay.RelayC:     0x30,
		irrelay.RelayD:     0x40,
		irrelay.DeviceE:    0x50,
		irrelay.DeviceFOn:  0x60,
		irrelay.DeviceFOff: 0x70,
		irrelay.ResetKey:   0x80,
	}
	for _, slot := range irrelay.Slots {
		_, err := s.Learn(slot, irrelay.RawEvent{Protocol: irrelay.Samsung, Value: events[slot], Bits: 32})
		assert.NoError(t, err)
	}
	assert.NoError(t, s.Save(store))

	want := irrelay.KeySet{
		RelayA: 0x10, RelayB: 0x20, RelayC: 0x30, RelayD: 0x40,
		DeviceE: 0x50, DeviceFOn: 0x60, DeviceFOff: 0x70,
		Reset:    0x80,
		CodeType: irrelay.Samsung,
		CodeLen:  32,
	}
	assert.Equal(t, want, store.keys)

	restored, tx := newSession(t, irrelay.CaptureConfig{})
	assert.NoError(t, restored.Restore(store))
	assert.Equal(t, want, restored.Keys())
	assert.Equal(t, irrelay.Code{Protocol: irrelay.Samsung, Bits: 32}, restored.Current())

	assert.NoError(t, restored.Fire(context.Background(), irrelay.DeviceFOff, false))
	assert.Equal[irrelay.Command](t,
		irrelay.SendCode{Protocol: irrelay.Samsung, Value: 0x70, Bits: 32},
		tx.last(t))
}

func TestRestoreMalformed(t *testing.T) {
	s, _ := newSession(t, irrelay.CaptureConfig{})

	_, err := s.Learn(irrelay.RelayC, irrelay.RawEvent{Protocol: irrelay.JVC, Value: 0xC5E8, Bits: 16})
	assert.NoError(t, err)

	store := &memStore{
		keys: irrelay.KeySet{RelayA: 1, CodeType: irrelay.NEC, CodeLen: 32},
		err:  irrelay.ErrMalformedRecord,
	}
	assert.IsError(t, s.Restore(store), irrelay.ErrMalformedRecord)
	assert.Zero(t, s.Keys())
	assert.Zero(t, s.Current())
}

func TestForget(t *testing.T) {
	store := &memStore{}
	s, tx := newSession(t, irrelay.CaptureConfig{})

	_, err := s.Learn(irrelay.RelayD, irrelay.RawEvent{Protocol: irrelay.LG, Value: 0x88C0051, Bits: 28})
	assert.NoError(t, err)
	assert.NoError(t, s.Save(store))

	assert.NoError(t, s.Forget(store))
	assert.True(t, store.removed)
	assert.Zero(t, s.Keys())
	assert.Zero(t, s.Current())

	assert.IsError(t, s.Fire(context.Background(), irrelay.RelayD, false), irrelay.ErrNullCode)
	assert.Equal(t, 0, len(tx.commands))
}

func TestOnCapture(t *testing.T) {
	s, _ := newSession(t, irrelay.CaptureConfig{})

	var captures []irrelay.Capture
	s.OnCapture(func(c irrelay.Capture) {
		// Hooks run outside the session lock.
		_ = s.Current()
		captures = append(captures, c)
	})

	s.Capture(irrelay.RawEvent{Protocol: irrelay.NEC, Value: 0x00FF00FF, Bits: 32})
	s.Capture(irrelay.RawEvent{Protocol: irrelay.NEC, Value: irrelay.NECRepeat})

	code := irrelay.Code{Protocol: irrelay.NEC, Value: 0x00FF00FF, Bits: 32}
	assert.Equal(t, []irrelay.Capture{
		{Code: code, New: true},
		{Code: code, New: false},
	}, captures)
}
