package core

// ByteMemory is byte-addressable non-volatile memory, such as an I2C EEPROM
type ByteMemory interface {
	ReadByte(addr uint16) (uint8, error)
	WriteByte(addr uint16, value uint8) error
}

// NVM layout
const (
	nvmMagicAddr    = 0
	nvmAddressAddr  = 1
	nvmClockCalAddr = 2

	nvmMagic = 0xB5
)

// NVMStore is a ConfigStore backed by ByteMemory. Values are cached in RAM
// and a byte is only written when its value changes.
type NVMStore struct {
	mem  ByteMemory
	base uint16
	addr uint8
	cal  int8
}

// NewNVMStore loads the configuration stored at base. Blank memory is
// initialized with DefaultAddress and a zero calibration factor.
func NewNVMStore(mem ByteMemory, base uint16) (*NVMStore, error) {
	s := &NVMStore{mem: mem, base: base}

	magic, err := mem.ReadByte(base + nvmMagicAddr)
	if err != nil {
		return nil, err
	}
	if magic != nvmMagic {
		DebugPrintln("[NVM] blank, writing defaults")
		if err := mem.WriteByte(base+nvmAddressAddr, DefaultAddress); err != nil {
			return nil, err
		}
		if err := mem.WriteByte(base+nvmClockCalAddr, 0); err != nil {
			return nil, err
		}
		if err := mem.WriteByte(base+nvmMagicAddr, nvmMagic); err != nil {
			return nil, err
		}
		s.addr = DefaultAddress
		return s, nil
	}

	addr, err := mem.ReadByte(base + nvmAddressAddr)
	if err != nil {
		return nil, err
	}
	cal, err := mem.ReadByte(base + nvmClockCalAddr)
	if err != nil {
		return nil, err
	}
	s.addr = addr
	s.cal = int8(cal)
	return s, nil
}

func (s *NVMStore) Address() uint8 {
	return s.addr
}

func (s *NVMStore) SetAddress(addr uint8) error {
	if addr == s.addr {
		return nil
	}
	if err := s.mem.WriteByte(s.base+nvmAddressAddr, addr); err != nil {
		return err
	}
	s.addr = addr
	return nil
}

func (s *NVMStore) ClockCal() int8 {
	return s.cal
}

func (s *NVMStore) SetClockCal(cal int8) error {
	if cal == s.cal {
		return nil
	}
	if err := s.mem.WriteByte(s.base+nvmClockCalAddr, uint8(cal)); err != nil {
		return err
	}
	s.cal = cal
	return nil
}
