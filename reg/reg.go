// Package reg describes the register window of the V2495 flash controller
// and the transport used to reach it.
//
// All offsets are relative to the controller base (0x8500 for the main
// controller, 0x8700 for the user controller). The transport addresses are
// absolute: base + offset.
package reg

// Register offsets.
//
//	Offset | Register
//	-------+-----------------------------------------------
//	0x000  | opcode (write) / status (read)
//	0x004  | flash address
//	0x008  | payload length minus one
//	0x00C  | reboot
//	0x010  | reboot address
//	0x014  | unlock
//	0x018  | FPGA access (0 = FPGA unconfigured, 1 = restart)
//	0x01C  | flash access (0 = tristate, 1 = driven)
//	0x0F0  | ID code
//	0x100  | staging window, 64 words
const (
	Opcode        uint32 = 0x00
	Address       uint32 = 0x04
	Payload       uint32 = 0x08
	Reboot        uint32 = 0x0C
	RebootAddress uint32 = 0x10
	Unlock        uint32 = 0x14
	FPGAAccess    uint32 = 0x18
	FlashAccess   uint32 = 0x1C
	IDCode        uint32 = 0xF0
	Staging       uint32 = 0x100
)

// StagingWords is the size of the staging window in 32-bit words.
const StagingWords = 64

// Controller opcodes.
const (
	OpReset       uint32 = 0
	OpWriteEnable uint32 = 1
	OpReadStatus  uint32 = 2
	OpSectorErase uint32 = 3
	OpWritePage   uint32 = 4
	OpReadPage    uint32 = 5
	OpWriteStatus uint32 = 6
	OpNop         uint32 = 15
)

const (
	// UnlockKey is written to Unlock once per session.
	UnlockKey uint32 = 0xABBA5511

	// ID is the value read from IDCode when the controller is mapped.
	ID uint32 = 0xCAEF2495
)

// Block protection codes written to the flash status register. The field
// sits at bits 7:2 of the flash status byte, so codes are shifted left by two
// before being written.
const (
	ProtectSectors0to63  uint32 = 0x0F
	ProtectSectors0to127 uint32 = 0x18
	UnprotectAll         uint32 = 0x08
)

// StagingAddrs fills addrs with the absolute staging window addresses of the
// controller at base.
func StagingAddrs(base uint32, addrs *[StagingWords]uint32) {
	for i := range addrs {
		addrs[i] = base + Staging + 4*uint32(i)
	}
}
