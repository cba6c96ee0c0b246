package core

import "testing"

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(DefaultAddress, 0)
	if s.Address() != DefaultAddress {
		t.Errorf("Expected address %d, got %d", DefaultAddress, s.Address())
	}

	if err := s.SetAddress(42); err != nil {
		t.Fatal(err)
	}
	if err := s.SetClockCal(-3); err != nil {
		t.Fatal(err)
	}
	if s.Address() != 42 || s.ClockCal() != -3 {
		t.Errorf("Store holds addr=%d cal=%d", s.Address(), s.ClockCal())
	}
}

func TestCalibratedBaud(t *testing.T) {
	tests := []struct {
		cal  int8
		want uint32
	}{
		{0, 9600},
		{1, 9590},
		{-1, 9609},
		{10, 9507},
		{-128, 10971},
		{127, 8540},
	}

	for _, tt := range tests {
		if got := CalibratedBaud(BusBaudRate, tt.cal); got != tt.want {
			t.Errorf("CalibratedBaud(%d, %d) = %d, want %d", BusBaudRate, tt.cal, got, tt.want)
		}
	}
}
