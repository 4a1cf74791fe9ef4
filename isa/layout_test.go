package isa

import "testing"

func TestDataArea(t *testing.T) {
	tests := []struct {
		addr int
		want string
	}{
		{0, "program and variables"},
		{16384, "program and variables"},
		{16385, "static data"},
		{24576, "static data"},
		{24577, "dynamic data"},
		{30681, "dynamic data"},
		{30682, "system call"},
		{30683, "stack top gap"},
		{30689, "stack top gap"},
		{30690, "stack"},
		{32738, "stack"},
		{32739, "stack bottom gap"},
		{32745, "stack bottom gap"},
		{32746, "rx"},
		{32747, "tx"},
		{32748, "timer"},
		{32749, "argument slots"},
		{32758, "argument slots"},
		{32759, "return slot"},
		{32760, "unmapped"},
		{-1, "unmapped"},
	}

	for _, tt := range tests {
		if got := DataArea(tt.addr); got != tt.want {
			t.Errorf("DataArea(%d) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestColorEncoding(t *testing.T) {
	tests := []struct {
		value uint16
		index int
		char  uint16
	}{
		{ColorWhite + 'A', 0, 'A'},
		{ColorBrown + 'z', 1, 'z'},
		{ColorRed + 37, 9, 37},
		{ColorBlue + 37, 12, 37},
		{ColorBlack + 0xFF, 15, 0xFF},
	}

	for _, tt := range tests {
		if got := ColorIndex(tt.value); got != tt.index {
			t.Errorf("ColorIndex(%d) = %d, want %d", tt.value, got, tt.index)
		}
		if got := CharCode(tt.value); got != tt.char {
			t.Errorf("CharCode(%d) = %d, want %d", tt.value, got, tt.char)
		}
	}
}
