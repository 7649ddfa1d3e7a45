package reg

import (
	"fmt"
	"strings"
)

// Status is the word read back from the opcode register.
//
//	Bits  | Meaning
//	------+-------------------------------------------------------
//	15:10 | flash block protect field (last READ_STATUS)
//	9     | flash write enable latch
//	8     | flash write in progress
//	7:1   | controller busy
//	0     | reserved
type Status uint32

// ControllerBusy reports whether the controller still executes an opcode.
func (s Status) ControllerBusy() bool { return s&0xFE != 0 }

// FlashBusy reports the flash write-in-progress bit.
func (s Status) FlashBusy() bool { return s&(1<<8) != 0 }

// WriteEnabled reports the flash write enable latch.
func (s Status) WriteEnabled() bool { return s&(1<<9) != 0 }

// Flash returns the flash status byte.
func (s Status) Flash() uint32 { return uint32(s) >> 8 & 0xFF }

// ProtectField returns the block protect bits in place (bits 7:2 of the
// flash status byte), comparable with a shifted protection code.
func (s Status) ProtectField() uint32 { return uint32(s) >> 8 & 0xFC }

// Protection returns the block protect code, unshifted.
func (s Status) Protection() uint32 { return uint32(s) >> 10 & 0x3F }

func (s Status) String() string {
	b := fmt.Sprintf("%016b", uint16(s))
	f := []string{}
	if s.ControllerBusy() {
		f = append(f, "CBUSY")
	}
	if s.FlashBusy() {
		f = append(f, "WIP")
	}
	if s.WriteEnabled() {
		f = append(f, "WEL")
	}
	if p := s.Protection(); p != 0 {
		f = append(f, fmt.Sprintf("BP=%#02x", p))
	}
	if len(f) == 0 {
		return b
	}
	return b + " " + strings.Join(f, ",")
}
