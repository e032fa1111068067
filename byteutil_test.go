package kvrows

import (
	"reflect"
	"testing"
)

func TestBytesBuilder_Basics(t *testing.T) {
	var bb bytesBuilder
	_, _ = bb.Write([]byte{1, 2})
	_ = bb.WriteByte(3)
	if !reflect.DeepEqual(bb.Buf, []byte{1, 2, 3}) {
		t.Fatalf("bb.Buf = %x, wanted 010203", bb.Buf)
	}

	big := make([]byte, 100)
	_, _ = bb.Write(big)
	if len(bb.Buf) != 103 || cap(bb.Buf) < 103 {
		t.Fatalf("len/cap = %d/%d, wanted 103/>=103", len(bb.Buf), cap(bb.Buf))
	}
}

func TestByteUtil_AppendHelpers(t *testing.T) {
	src := []byte{0xAA, 0xBB, 0xCC}
	buf := appendRaw(nil, src)
	if !reflect.DeepEqual(buf, src) {
		t.Fatalf("appendRaw = %x, wanted %x", buf, src)
	}

	buf = ensureCapacity([]byte{1}, 40)
	if cap(buf) < 40 || !reflect.DeepEqual(buf, []byte{1}) {
		t.Fatalf("ensureCapacity = %x (cap %d), wanted 01 with cap >= 40", buf, cap(buf))
	}
}

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		prefix, want []byte
	}{
		{[]byte("data/a/"), []byte("data/a0")},
		{x("01 ff"), x("02")},
		{x("ff ff"), nil},
		{nil, nil},
	}
	for _, tt := range tests {
		got := prefixUpperBound(tt.prefix)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("prefixUpperBound(%x) = %x, wanted %x", tt.prefix, got, tt.want)
		}
	}

	p := []byte("ab")
	prefixUpperBound(p)
	if string(p) != "ab" {
		t.Errorf("prefixUpperBound modified its argument: %q", p)
	}
}
