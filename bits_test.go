package zone

import (
	"testing"
)

func TestRoundUp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		size  int
		align int
		want  int
	}{
		{"roundUp(0)", 0, 16, 0},
		{"roundUp(1)", 1, 16, 16},
		{"roundUp(15)", 15, 16, 16},
		{"roundUp(16)", 16, 16, 16},
		{"roundUp(17)", 17, 16, 32},
		{"roundUp(31)", 31, 16, 32},
		{"roundUp(32)", 32, 16, 32},
		{"roundUp(33)", 33, 16, 48},
		{"roundUp(1024)", 1024, 16, 1024},
		{"roundUp(1, 8)", 1, 8, 8},
		{"roundUp(33, 64)", 33, 64, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roundUp(tt.size, tt.align); got != tt.want {
				t.Errorf("roundUp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		input    int
		expected bool
	}{
		{-16, false},
		{0, false},
		{1, true},
		{2, true},
		{3, false},
		{8, true},
		{12, false},
		{16, true},
		{4096, true},
		{4097, false},
	}

	for _, test := range tests {
		if got := isPowerOfTwo(test.input); got != test.expected {
			t.Errorf("isPowerOfTwo(%d) = %v; want %v", test.input, got, test.expected)
		}
	}
}

func TestHeaderSizeFor(t *testing.T) {
	tests := []struct {
		align int
		want  int
	}{
		{8, 32},
		{16, 32},
		{32, 32},
		{64, 64},
		{256, 256},
	}

	for _, test := range tests {
		if got := headerSizeFor(test.align); got != test.want {
			t.Errorf("headerSizeFor(%d) = %d; want %d", test.align, got, test.want)
		}
		if !isAligned(headerSizeFor(test.align), test.align) {
			t.Errorf("headerSizeFor(%d) breaks payload alignment", test.align)
		}
	}
}
