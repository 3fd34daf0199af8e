package binary

import (
	"math"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestGetPut(t *testing.T) {
	if got := Get[uint16](LittleEndian, []byte{0x01, 0x02}); got != 0x0201 {
		t.Errorf("TestGetPut(uint16 little): got %#x, want %#x", got, 0x0201)
	}
	if got := Get[uint16](BigEndian, []byte{0x01, 0x02}); got != 0x0102 {
		t.Errorf("TestGetPut(uint16 big): got %#x, want %#x", got, 0x0102)
	}
	if got := Get[int8](LittleEndian, []byte{0xff}); got != -1 {
		t.Errorf("TestGetPut(int8): got %d, want -1", got)
	}
	if got := Get[int32](BigEndian, []byte{0xff, 0xff, 0xff, 0xfe}); got != -2 {
		t.Errorf("TestGetPut(int32 big): got %d, want -2", got)
	}

	if diff := pretty.Compare([]byte{0x00, 0x00, 0x00, 0x2a}, Bytes[uint32](BigEndian, 42)); diff != "" {
		t.Errorf("TestGetPut(Bytes uint32 big): -want/+got:\n%s", diff)
	}
	if diff := pretty.Compare([]byte{0x2a, 0x00}, Bytes[int16](LittleEndian, 42)); diff != "" {
		t.Errorf("TestGetPut(Bytes int16 little): -want/+got:\n%s", diff)
	}

	b := Bytes[int64](LittleEndian, math.MinInt64)
	if got := Get[int64](LittleEndian, b); got != math.MinInt64 {
		t.Errorf("TestGetPut(int64 roundtrip): got %d, want %d", got, int64(math.MinInt64))
	}
	b = Bytes[uint64](BigEndian, math.MaxUint64)
	if got := Get[uint64](BigEndian, b); got != math.MaxUint64 {
		t.Errorf("TestGetPut(uint64 roundtrip): got %d, want %d", got, uint64(math.MaxUint64))
	}
}

func TestWidth(t *testing.T) {
	tests := []struct {
		got  int
		want int
	}{
		{Width[uint8](), 1},
		{Width[int16](), 2},
		{Width[uint32](), 4},
		{Width[int64](), 8},
	}
	for i, test := range tests {
		if test.got != test.want {
			t.Errorf("TestWidth(%d): got %d, want %d", i, test.got, test.want)
		}
	}
}
