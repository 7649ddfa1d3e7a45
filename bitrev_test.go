package v2495

import (
	"bytes"
	"testing"
)

func TestReverseBits(t *testing.T) {
	b := []byte{0x01, 0x80, 0x0F, 0xA0, 0x00, 0xFF}
	ReverseBits(b)
	if want := []byte{0x80, 0x01, 0xF0, 0x05, 0x00, 0xFF}; !bytes.Equal(b, want) {
		t.Errorf("ReverseBits = % x, want % x", b, want)
	}

	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	twice := bytes.Clone(all)
	ReverseBits(twice)
	ReverseBits(twice)
	if !bytes.Equal(twice, all) {
		t.Error("reversing twice is not the identity")
	}
}
