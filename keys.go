package irrelay

import "fmt"

// Slot names a learned key.
type Slot string

const (
	RelayA     Slot = "relaya"
	RelayB     Slot = "relayb"
	RelayC     Slot = "relayc"
	RelayD     Slot = "relayd"
	DeviceE    Slot = "deve"
	DeviceFOn  Slot = "devfon"
	DeviceFOff Slot = "devfoff"
	ResetKey   Slot = "reset"
)

// Slots lists every key slot in storage order.
var Slots = []Slot{
	RelayA, RelayB, RelayC, RelayD,
	DeviceE, DeviceFOn, DeviceFOff,
	ResetKey,
}

// ParseSlot validates a slot name.
func ParseSlot(name string) (Slot, error) {
	for _, s := range Slots {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("irrelay: unknown key slot %q", name)
}

// KeySet is the persisted set of learned keys. All keys share the protocol
// and bit length of the last learned code.
type KeySet struct {
	RelayA, RelayB, RelayC, RelayD uint64

	DeviceE    uint64
	DeviceFOn  uint64
	DeviceFOff uint64

	Reset uint64

	CodeType   Protocol
	CodeLen    int
	CodeRepeat bool
}

func (k *KeySet) field(s Slot) *uint64 {
	switch s {
	case RelayA:
		return &k.RelayA
	case RelayB:
		return &k.RelayB
	case RelayC:
		return &k.RelayC
	case RelayD:
		return &k.RelayD
	case DeviceE:
		return &k.DeviceE
	case DeviceFOn:
		return &k.DeviceFOn
	case DeviceFOff:
		return &k.DeviceFOff
	case ResetKey:
		return &k.Reset
	default:
		return nil
	}
}

// Get returns the value learned for slot s.
func (k KeySet) Get(s Slot) (uint64, bool) {
	f := k.field(s)
	if f == nil {
		return 0, false
	}
	return *f, true
}

// Set stores v into slot s. It returns false for unknown slots.
func (k *KeySet) Set(s Slot, v uint64) bool {
	f := k.field(s)
	if f == nil {
		return false
	}
	*f = v
	return true
}

// Match returns the slots holding value. Zero never matches.
func (k KeySet) Match(value uint64) []Slot {
	if value == 0 {
		return nil
	}
	var slots []Slot
	for _, s := range Slots {
		if v, _ := k.Get(s); v == value {
			slots = append(slots, s)
		}
	}
	return slots
}

// KeyStore persists a KeySet as a whole record.
type KeyStore interface {
	// Load returns the stored key set. A store that has nothing saved returns
	// a zero KeySet. Unparseable records yield ErrMalformedRecord.
	Load() (KeySet, error)
	Save(KeySet) error
	Remove() error
}
