package utils

import "testing"

func TestAlignTo(t *testing.T) {
	cases := []struct {
		val, align, want uint64
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{5, 0, 5},
		{0x200000, 4096, 0x200000},
		{0x200001, 4096, 0x201000},
	}
	for _, c := range cases {
		if got := AlignTo(c.val, c.align); got != c.want {
			t.Errorf("AlignTo(%#x, %#x) = %#x, want %#x", c.val, c.align, got, c.want)
		}
	}
}

func TestRemovePrefix(t *testing.T) {
	if s, ok := RemovePrefix("-static", "-"); !ok || s != "static" {
		t.Errorf("RemovePrefix(-static, -) = %q, %v", s, ok)
	}
	if s, ok := RemovePrefix("static", "-"); ok || s != "static" {
		t.Errorf("RemovePrefix(static, -) = %q, %v, want unchanged/false", s, ok)
	}
}

func TestRemoveIf(t *testing.T) {
	elems := []int{1, 2, 3, 4, 5, 6}
	got := RemoveIf(elems, func(v int) bool { return v%2 == 0 })
	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("RemoveIf length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RemoveIf[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAllZeros(t *testing.T) {
	if !AllZeros([]byte{0, 0, 0}) {
		t.Error("AllZeros([0,0,0]) = false, want true")
	}
	if !AllZeros(nil) {
		t.Error("AllZeros(nil) = false, want true")
	}
	if AllZeros([]byte{0, 1, 0}) {
		t.Error("AllZeros([0,1,0]) = true, want false")
	}
}

func TestBitAndBits(t *testing.T) {
	v := uint64(0b1011_0100)
	if got := Bit(v, 2); got != 1 {
		t.Errorf("Bit(v,2) = %d, want 1", got)
	}
	if got := Bit(v, 0); got != 0 {
		t.Errorf("Bit(v,0) = %d, want 0", got)
	}
	if got := Bits(v, 7, 4); got != 0b1011 {
		t.Errorf("Bits(v,7,4) = %#b, want %#b", got, 0b1011)
	}
}

func TestSignExtend(t *testing.T) {
	// bit 7 set in an 8-bit field (0xff) sign-extends to -1.
	if got := SignExtend(0xff, 7); got != ^uint64(0) {
		t.Errorf("SignExtend(0xff,7) = %#x, want -1", got)
	}
	// bit 7 clear: positive value is unchanged.
	if got := SignExtend(0x7f, 7); got != 0x7f {
		t.Errorf("SignExtend(0x7f,7) = %#x, want 0x7f", got)
	}
}

func TestMapSet(t *testing.T) {
	s := NewMapSet[string]()
	if s.Has("a") {
		t.Fatal("fresh MapSet already has \"a\"")
	}
	s.Add("a")
	if !s.Has("a") {
		t.Fatal("MapSet missing \"a\" after Add")
	}
	if s.Has("b") {
		t.Fatal("MapSet reports \"b\" present without Add")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	Write[uint64](buf, 0x0102030405060708)
	if got := Read[uint64](buf); got != 0x0102030405060708 {
		t.Errorf("Read after Write = %#x, want %#x", got, 0x0102030405060708)
	}
	if buf[0] != 0x08 || buf[7] != 0x01 {
		t.Errorf("Write did not encode little-endian: %x", buf)
	}
}

func TestReadSlice(t *testing.T) {
	buf := make([]byte, 16)
	Write[uint32](buf[0:4], 1)
	Write[uint32](buf[4:8], 2)
	Write[uint32](buf[8:12], 3)
	Write[uint32](buf[12:16], 4)
	got := ReadSlice[uint32](buf, 4)
	want := []uint32{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("ReadSlice length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ReadSlice[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
