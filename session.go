package irrelay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const (
	// DefaultMicrosPerTick is the receiver timer resolution in microseconds.
	DefaultMicrosPerTick = 50
	// DefaultMarkExcess is the mark stretch of typical IR receivers in
	// microseconds.
	DefaultMarkExcess = 100
	// DefaultRawCapacity is the number of raw timings kept per capture.
	DefaultRawCapacity = 100
	// DefaultCarrierKHz is the carrier raw codes are replayed at.
	DefaultCarrierKHz = 38
)

// OverflowPolicy decides what happens to raw captures longer than the raw
// buffer.
type OverflowPolicy int

const (
	// Truncate keeps the first RawCapacity samples.
	Truncate OverflowPolicy = iota
	// Reject drops the capture and keeps the current code.
	Reject
)

// ParseOverflowPolicy parses "truncate" or "reject".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(s) {
	case "", "truncate":
		return Truncate, nil
	case "reject":
		return Reject, nil
	default:
		return Truncate, fmt.Errorf("irrelay: unknown overflow policy %q", s)
	}
}

func (p OverflowPolicy) String() string {
	if p == Reject {
		return "reject"
	}
	return "truncate"
}

// CaptureConfig tunes raw capture and replay. Zero fields take the defaults.
type CaptureConfig struct {
	// MicrosPerTick is the duration of one receiver timer tick.
	MicrosPerTick int
	// MarkExcess is subtracted from marks and added to spaces to cancel out
	// the receiver stretching marks.
	MarkExcess int
	// RawCapacity is the maximum number of raw timings kept, gap excluded.
	RawCapacity int
	Overflow    OverflowPolicy
	// CarrierKHz is the carrier frequency raw codes are replayed at.
	CarrierKHz int
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.MicrosPerTick <= 0 {
		c.MicrosPerTick = DefaultMicrosPerTick
	}
	if c.MarkExcess < 0 {
		c.MarkExcess = 0
	} else if c.MarkExcess == 0 {
		c.MarkExcess = DefaultMarkExcess
	}
	if c.RawCapacity <= 0 {
		c.RawCapacity = DefaultRawCapacity
	}
	if c.CarrierKHz <= 0 {
		c.CarrierKHz = DefaultCarrierKHz
	}
	return c
}

// Session owns the current code slot, the RC5/RC6 toggle bit and the learned
// key set. A Session serializes captures and replays: one runs to completion
// before the next starts.
type Session struct {
	mu      sync.Mutex
	tx      Transmitter
	config  CaptureConfig
	logger  *slog.Logger
	current Code
	toggle  bool
	keys    KeySet
	hooks   []func(Capture)
}

// NewSession creates a session that transmits through tx. A negative
// MarkExcess in config disables the mark/space correction.
func NewSession(tx Transmitter, config CaptureConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		tx:     tx,
		config: config.withDefaults(),
		logger: logger,
	}
}

// OnCapture registers f to be called after every capture. f is called
// outside the session lock and may call back into the session.
func (s *Session) OnCapture(f func(Capture)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, f)
}

func (s *Session) notify(c Capture) {
	s.mu.Lock()
	hooks := s.hooks
	s.mu.Unlock()

	for _, f := range hooks {
		f(c)
	}
}

// Current returns the current code.
func (s *Session) Current() Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Toggle returns the current RC5/RC6 toggle bit.
func (s *Session) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toggle
}

// Keys returns a copy of the learned key set.
func (s *Session) Keys() KeySet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys
}

// Learn captures ev and stores the resulting value into slot. Repeat frames
// and failed captures leave the slot untouched. An unknown slot is rejected
// before anything is captured.
func (s *Session) Learn(slot Slot, ev RawEvent) (Code, error) {
	s.mu.Lock()
	if _, ok := s.keys.Get(slot); !ok {
		code := s.current
		s.mu.Unlock()
		return code, fmt.Errorf("irrelay: unknown key slot %q", slot)
	}

	value, isNew, err := s.capture(ev)
	code := s.current
	learned := isNew && value != 0
	if learned {
		s.keys.Set(slot, value)
	}
	s.mu.Unlock()

	s.notify(Capture{Code: code, New: isNew})

	if learned {
		s.logger.Info(
			"learned key",
			"slot", slot,
			"protocol", code.Protocol,
			"value", hexValue(value),
			"bits", code.Bits)
	}
	return code, err
}

// Fire replays the code learned for slot.
func (s *Session) Fire(ctx context.Context, slot Slot, repeat bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.keys.Get(slot)
	if !ok {
		return fmt.Errorf("irrelay: unknown key slot %q", slot)
	}
	return s.replay(ctx, value, repeat)
}

// Restore loads the key set from store. The protocol and bit length of the
// last learned code become the current code. On failure every key is reset
// to zero and the session behaves as if nothing was learned.
func (s *Session) Restore(store KeyStore) error {
	keys, err := store.Load()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.keys = KeySet{}
		s.current = Code{}
		s.logger.Warn(
			"cannot restore keys, starting with none",
			"err", err)
		return err
	}

	s.keys = keys
	s.current = Code{Protocol: keys.CodeType, Bits: keys.CodeLen}
	s.logger.Info(
		"restored keys",
		"protocol", keys.CodeType,
		"bits", keys.CodeLen)
	return nil
}

// Save persists the key set together with the protocol and bit length of the
// current code.
func (s *Session) Save(store KeyStore) error {
	s.mu.Lock()
	keys := s.keys
	s.mu.Unlock()

	if err := store.Save(keys); err != nil {
		return fmt.Errorf("cannot save keys: %w", err)
	}
	s.logger.Debug("stored keys")
	return nil
}

// Forget zeroes every learned key and the current code and removes the
// persisted record.
func (s *Session) Forget(store KeyStore) error {
	s.mu.Lock()
	s.keys = KeySet{}
	s.current = Code{}
	s.mu.Unlock()

	s.logger.Info("removing keys")
	if err := store.Remove(); err != nil {
		return fmt.Errorf("cannot remove keys: %w", err)
	}
	return nil
}

func hexValue(v uint64) string {
	return fmt.Sprintf("0x%08X", v)
}
