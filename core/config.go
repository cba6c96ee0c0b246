package core

// DefaultAddress is the bus address of a node that was never programmed
const DefaultAddress = 1

// BusBaudRate is the nominal bus speed
const BusBaudRate = 9600

// ConfigStore is the node's persisted configuration: one address byte and
// one signed clock calibration byte. Implementations read the backing
// storage once when created and write through on every Set.
type ConfigStore interface {
	Address() uint8
	SetAddress(addr uint8) error
	ClockCal() int8
	SetClockCal(cal int8) error
}

// MemoryStore is a ConfigStore that forgets everything on reset
type MemoryStore struct {
	addr uint8
	cal  int8
}

// NewMemoryStore creates a store holding the given values
func NewMemoryStore(addr uint8, cal int8) *MemoryStore {
	return &MemoryStore{addr: addr, cal: cal}
}

func (s *MemoryStore) Address() uint8 {
	return s.addr
}

func (s *MemoryStore) SetAddress(addr uint8) error {
	s.addr = addr
	return nil
}

func (s *MemoryStore) ClockCal() int8 {
	return s.cal
}

func (s *MemoryStore) SetClockCal(cal int8) error {
	s.cal = cal
	return nil
}

// CalibratedBaud applies the clock calibration factor to a nominal baud
// rate. Each step trims the rate by 1/1024, compensating for an oscillator
// that runs fast (positive factor) or slow (negative factor).
func CalibratedBaud(baud uint32, cal int8) uint32 {
	return uint32(uint64(baud) * 1024 / uint64(1024+int64(cal)))
}
