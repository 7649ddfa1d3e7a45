package v2495

import "math/bits"

// ReverseBits reverses the bit order of every byte of b in place. The FPGA
// bitstream stores the most significant bit first, the flash the least.
func ReverseBits(b []byte) {
	for i, v := range b {
		b[i] = bits.Reverse8(v)
	}
}
