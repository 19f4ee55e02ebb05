package irrelay

import "fmt"

// FNV-1 parameters used to hash raw timings.
const (
	fnvPrime32 = 16777619
	fnvBasis32 = 2166136261
)

// Capture converts a decode event into the current code. It returns the
// value of the code and whether the current code was replaced.
//
// A repeat frame leaves the current code untouched and returns its value.
// Errors are informational: ErrUnsupported means the event was stored as
// UNKNOWN or cannot be replayed with its own protocol, and ErrTruncated means
// a raw capture did not fit the raw buffer.
func (s *Session) Capture(ev RawEvent) (value uint64, isNew bool, err error) {
	s.mu.Lock()
	value, isNew, err = s.capture(ev)
	code := s.current
	s.mu.Unlock()

	s.notify(Capture{Code: code, New: isNew})
	return value, isNew, err
}

func (s *Session) capture(ev RawEvent) (uint64, bool, error) {
	logger := s.logger.With("protocol", ev.Protocol)

	if ev.Protocol == Unknown {
		return s.captureRaw(ev)
	}

	codec, ok := codecs[ev.Protocol]
	if !ok {
		logger.Warn(
			"received unknown code type, storing as UNKNOWN",
			"value", hexValue(ev.Value))
		s.store(Code{Protocol: Unknown})
		return 0, true, fmt.Errorf("%w: decoder tag %d", ErrUnsupported, int(ev.Protocol))
	}

	if codec.HasRepeatSentinel && ev.Value == codec.Sentinel {
		logger.Debug(
			"received repeat, ignoring",
			"last", hexValue(s.current.Value))
		return s.current.Value, false, nil
	}

	value, bits := codec.Normalize(ev)
	s.store(Code{Protocol: ev.Protocol, Value: value, Bits: bits})

	if codec.Partial {
		logger.Warn(
			"received code of partially implemented protocol, replay will use NEC",
			"value", hexValue(value),
			"bits", bits)
		return value, true, fmt.Errorf("%w: %v is decode-only", ErrUnsupported, ev.Protocol)
	}

	logger.Debug(
		"received code",
		"value", hexValue(value),
		"bits", bits)
	return value, true, nil
}

func (s *Session) captureRaw(ev RawEvent) (uint64, bool, error) {
	samples := ev.Samples
	if samples <= 0 || samples > len(ev.Ticks) {
		samples = len(ev.Ticks)
	}

	if samples < 2 {
		s.logger.Warn("received empty raw code")
		s.store(Code{Protocol: Unknown})
		return 0, true, fmt.Errorf("%w: no raw timings", ErrUnsupported)
	}

	var err error
	// The first sample is the gap before the signal.
	ticks := ev.Ticks[1:samples]
	if len(ticks) > s.config.RawCapacity {
		err = fmt.Errorf("%w: %d samples, capacity %d", ErrTruncated, len(ticks), s.config.RawCapacity)
		if s.config.Overflow == Reject {
			s.logger.Warn(
				"raw code does not fit, keeping current code",
				"samples", len(ticks),
				"capacity", s.config.RawCapacity)
			return s.current.Value, false, err
		}
		s.logger.Warn(
			"raw code does not fit, truncating",
			"samples", len(ticks),
			"capacity", s.config.RawCapacity)
		ticks = ticks[:s.config.RawCapacity]
	}

	timings := correctTimings(ticks, s.config.MicrosPerTick, s.config.MarkExcess)

	value := ev.Value
	if value == 0 {
		value = hashTimings(timings)
	}

	s.store(Code{Protocol: Unknown, Value: value, Bits: len(timings), Timings: timings})
	s.logger.Debug(
		"received unknown code, saved as raw",
		"value", hexValue(value),
		"timings", len(timings))
	return value, true, err
}

// store replaces the current code and mirrors it into the key set.
func (s *Session) store(code Code) {
	s.current = code
	s.keys.CodeType = code.Protocol
	s.keys.CodeLen = code.Bits
	s.keys.CodeRepeat = false
}

// correctTimings converts ticks to microseconds. Marks (odd positions,
// counting from one) are shortened by excess and spaces lengthened by it.
func correctTimings(ticks []uint16, microsPerTick, excess int) []int {
	timings := make([]int, len(ticks))
	for i, t := range ticks {
		us := int(t) * microsPerTick
		if (i+1)%2 == 1 {
			us -= excess
		} else {
			us += excess
		}
		timings[i] = us
	}
	return timings
}

// hashTimings reduces raw timings to a 32-bit value by hashing whether each
// duration is shorter, equal or longer than the one two positions later.
func hashTimings(timings []int) uint64 {
	hash := uint32(fnvBasis32)
	for i := 0; i+2 < len(timings); i++ {
		hash = hash*fnvPrime32 ^ compareTimings(timings[i], timings[i+2])
	}
	return uint64(hash)
}

// compareTimings returns 0, 1 or 2 for shorter, roughly equal or longer,
// using a 20% margin.
func compareTimings(prev, next int) uint32 {
	switch {
	case next*10 < prev*8:
		return 0
	case prev*10 < next*8:
		return 2
	default:
		return 1
	}
}
