// Package regsim simulates a V2495 flash controller and the NOR flash behind
// it. Controller implements reg.Transport and is used by the package tests
// and by the "sim" link of the command line tools.
//
// The flash behaves like a serial NOR: erased bytes read 0xFF, programming
// can only clear bits, erase, program and status writes need a preceding
// write enable and are refused on block protected sectors. The controller
// rejects opcodes until flash access is enabled and the unlock key written.
package regsim

import (
	"errors"
	"fmt"

	"github.com/gentam/v2495/reg"
)

// Geometry of the simulated flash.
const (
	PageSize   = 256
	SectorSize = 64 << 10
	// DefaultSize is the 256Mbit flash fitted on the board.
	DefaultSize = 512 * SectorSize
)

var (
	ErrLocked   = errors.New("regsim: flash access not enabled")
	ErrAddress  = errors.New("regsim: address out of range")
	ErrRegister = errors.New("regsim: no register at address")
	ErrClosed   = errors.New("regsim: closed")
)

// flash status byte bits
const (
	statusWIP = 1 << 0
	statusWEL = 1 << 1
	statusBP  = 0xFC
)

// controller status bit reported while an opcode is being processed
const controllerBusy = 1 << 1

// OpKind is a flash side operation recorded in the log.
type OpKind int

const (
	OpErase OpKind = iota
	OpProgram
	OpRead
	OpWriteStatus
	OpRejected // erase or program refused on a protected sector or without write enable
)

func (k OpKind) String() string {
	switch k {
	case OpErase:
		return "erase"
	case OpProgram:
		return "program"
	case OpRead:
		return "read"
	case OpWriteStatus:
		return "write-status"
	case OpRejected:
		return "rejected"
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Op is an entry of the operation log.
type Op struct {
	Kind OpKind
	Addr uint32
}

func (o Op) String() string { return fmt.Sprintf("%v@%#08x", o.Kind, o.Addr) }

// Access describes a register access passed to a fault hook.
type Access struct {
	Write bool
	Addr  uint32
	Val   uint32
	// Seq counts the register accesses since the controller was created,
	// starting at 1.
	Seq int
}

// Controller is a simulated controller. It is not safe for concurrent use.
type Controller struct {
	// Fault, if set, is called before every register access. A non-nil
	// return fails the access without side effects.
	Fault func(Access) error
	// StatusHook, if set, rewrites every value read from the status
	// register.
	StatusHook func(uint32) uint32

	base      uint32
	id        uint32
	size      int
	busyPolls int
	wipPolls  int

	sectors map[uint32]*[SectorSize]byte // nil entries are erased

	addr, payload           uint32
	reboot, rebootAddr      uint32
	fpgaAccess, flashAccess uint32
	unlocked                bool
	staging                 [reg.StagingWords]uint32

	flashStatus uint8 // WEL and BP bits; WIP is derived from wip
	latched     uint32
	busy, wip   int
	seq         int
	ops         []Op
	closed      bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithID sets the value of the ID code register.
func WithID(id uint32) Option {
	return func(c *Controller) { c.id = id }
}

// WithSize sets the flash size in bytes, rounded up to whole sectors.
func WithSize(n int) Option {
	return func(c *Controller) {
		c.size = (n + SectorSize - 1) / SectorSize * SectorSize
	}
}

// WithBusyPolls makes the controller report busy for n status reads after
// every opcode. A negative n never clears.
func WithBusyPolls(n int) Option {
	return func(c *Controller) { c.busyPolls = n }
}

// WithWIPPolls makes the flash report write in progress for n status
// refreshes after every erase, program or status write. A negative n never
// clears.
func WithWIPPolls(n int) Option {
	return func(c *Controller) { c.wipPolls = n }
}

// WithProtection sets the initial block protect code.
func WithProtection(code uint32) Option {
	return func(c *Controller) { c.flashStatus = uint8(code<<2) & statusBP }
}

// New returns a controller at base with an erased flash.
func New(base uint32, opts ...Option) *Controller {
	c := &Controller{
		base:       base,
		id:         reg.ID,
		size:       DefaultSize,
		sectors:    make(map[uint32]*[SectorSize]byte),
		fpgaAccess: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) access(write bool, addr, val uint32) error {
	if c.closed {
		return ErrClosed
	}
	c.seq++
	if c.Fault != nil {
		if err := c.Fault(Access{Write: write, Addr: addr, Val: val, Seq: c.seq}); err != nil {
			return err
		}
	}
	if addr < c.base || addr >= c.base+reg.Staging+4*reg.StagingWords || addr%4 != 0 {
		return fmt.Errorf("%w %#x", ErrRegister, addr)
	}
	return nil
}

// Read32 implements reg.Transport.
func (c *Controller) Read32(addr uint32) (uint32, error) {
	if err := c.access(false, addr, 0); err != nil {
		return 0, err
	}
	off := addr - c.base
	switch {
	case off >= reg.Staging:
		return c.staging[(off-reg.Staging)/4], nil
	case off == reg.Opcode:
		return c.readStatus(), nil
	case off == reg.Address:
		return c.addr, nil
	case off == reg.Payload:
		return c.payload, nil
	case off == reg.Reboot:
		return c.reboot, nil
	case off == reg.RebootAddress:
		return c.rebootAddr, nil
	case off == reg.FPGAAccess:
		return c.fpgaAccess, nil
	case off == reg.FlashAccess:
		return c.flashAccess, nil
	case off == reg.IDCode:
		return c.id, nil
	}
	return 0, nil
}

// Write32 implements reg.Transport.
func (c *Controller) Write32(addr, val uint32) error {
	if err := c.access(true, addr, val); err != nil {
		return err
	}
	off := addr - c.base
	switch {
	case off >= reg.Staging:
		c.staging[(off-reg.Staging)/4] = val
	case off == reg.Opcode:
		return c.exec(val)
	case off == reg.Address:
		c.addr = val
	case off == reg.Payload:
		c.payload = val
	case off == reg.Reboot:
		c.reboot = val
	case off == reg.RebootAddress:
		c.rebootAddr = val
	case off == reg.Unlock:
		c.unlocked = val == reg.UnlockKey
	case off == reg.FPGAAccess:
		c.fpgaAccess = val
	case off == reg.FlashAccess:
		c.flashAccess = val
	}
	return nil
}

// MultiRead32 implements reg.Transport. Failing entries are reported in a
// *reg.BatchError; the other entries are still read.
func (c *Controller) MultiRead32(addrs, vals []uint32) error {
	if len(addrs) != len(vals) {
		return fmt.Errorf("regsim: %d addresses, %d values", len(addrs), len(vals))
	}
	be := &reg.BatchError{}
	for i, a := range addrs {
		v, err := c.Read32(a)
		if err != nil {
			be.Add(i, a, err)
			continue
		}
		vals[i] = v
	}
	return be.Err()
}

// MultiWrite32 implements reg.Transport.
func (c *Controller) MultiWrite32(addrs, vals []uint32) error {
	if len(addrs) != len(vals) {
		return fmt.Errorf("regsim: %d addresses, %d values", len(addrs), len(vals))
	}
	be := &reg.BatchError{Write: true}
	for i, a := range addrs {
		if err := c.Write32(a, vals[i]); err != nil {
			be.Add(i, a, err)
		}
	}
	return be.Err()
}

// Close marks the controller closed. Later accesses fail with ErrClosed.
func (c *Controller) Close() error {
	c.closed = true
	return nil
}

func (c *Controller) readStatus() uint32 {
	s := c.latched &^ 0xFF
	if c.busy != 0 {
		s |= controllerBusy
		if c.busy > 0 {
			c.busy--
		}
	}
	if c.StatusHook != nil {
		s = c.StatusHook(s)
	}
	return s
}

func (c *Controller) enabled() bool {
	return c.unlocked && c.flashAccess == 1 && c.fpgaAccess == 0
}

func (c *Controller) exec(op uint32) error {
	if !c.enabled() {
		return ErrLocked
	}
	c.busy = c.busyPolls

	switch op {
	case reg.OpReset, reg.OpNop:
	case reg.OpWriteEnable:
		c.flashStatus |= statusWEL
	case reg.OpReadStatus:
		s := c.flashStatus
		if c.wip != 0 {
			s |= statusWIP
			if c.wip > 0 {
				c.wip--
			}
		}
		c.latched = uint32(s) << 8
	case reg.OpSectorErase:
		return c.erase(c.addr)
	case reg.OpWritePage:
		return c.program(c.addr)
	case reg.OpReadPage:
		return c.readPage(c.addr)
	case reg.OpWriteStatus:
		if !c.writeEnabled() {
			c.log(OpRejected, c.addr)
			return nil
		}
		c.flashStatus = uint8(c.addr) & statusBP
		c.startWIP()
		c.log(OpWriteStatus, c.addr)
	default:
		return fmt.Errorf("regsim: unknown opcode %d", op)
	}
	return nil
}

// writeEnabled consumes the write enable latch.
func (c *Controller) writeEnabled() bool {
	ok := c.flashStatus&statusWEL != 0
	c.flashStatus &^= statusWEL
	return ok
}

func (c *Controller) startWIP() {
	c.wip = c.wipPolls
}

func (c *Controller) log(k OpKind, addr uint32) {
	c.ops = append(c.ops, Op{Kind: k, Addr: addr})
}

// protectedSectors returns the number of sectors from 0 covered by the
// block protect field.
func (c *Controller) protectedSectors() uint32 {
	switch uint32(c.flashStatus&statusBP) >> 2 {
	case reg.ProtectSectors0to63:
		return 64
	case reg.ProtectSectors0to127:
		return 128
	}
	return 0
}

func (c *Controller) checkAddr(addr uint32) error {
	if int(addr) >= c.size {
		return fmt.Errorf("%w %#x", ErrAddress, addr)
	}
	return nil
}

func (c *Controller) erase(addr uint32) error {
	if err := c.checkAddr(addr); err != nil {
		return err
	}
	if !c.writeEnabled() || addr/SectorSize < c.protectedSectors() {
		c.log(OpRejected, addr)
		return nil
	}
	delete(c.sectors, addr/SectorSize)
	c.startWIP()
	c.log(OpErase, addr&^(SectorSize-1))
	return nil
}

func (c *Controller) sector(addr uint32) *[SectorSize]byte {
	s, ok := c.sectors[addr/SectorSize]
	if !ok {
		s = new([SectorSize]byte)
		for i := range s {
			s[i] = 0xFF
		}
		c.sectors[addr/SectorSize] = s
	}
	return s
}

func (c *Controller) program(addr uint32) error {
	if err := c.checkAddr(addr); err != nil {
		return err
	}
	if !c.writeEnabled() || addr/SectorSize < c.protectedSectors() {
		c.log(OpRejected, addr)
		return nil
	}
	s := c.sector(addr)
	page := addr &^ (PageSize - 1) % SectorSize
	n := int(c.payload&0xFF) + 1
	for i := 0; i < n; i++ {
		b := byte(c.staging[i/4] >> (8 * (i % 4)))
		// wraps within the page like the flash does
		s[page+(addr+uint32(i))%PageSize] &= b
	}
	c.startWIP()
	c.log(OpProgram, addr)
	return nil
}

func (c *Controller) readPage(addr uint32) error {
	if err := c.checkAddr(addr); err != nil {
		return err
	}
	n := int(c.payload&0xFF) + 1
	buf := c.Read(addr, n)
	for i := range c.staging {
		c.staging[i] = 0
	}
	for i, b := range buf {
		c.staging[i/4] |= uint32(b) << (8 * (i % 4))
	}
	c.log(OpRead, addr)
	return nil
}

// Read returns n bytes of flash content at addr.
func (c *Controller) Read(addr uint32, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		a := addr + uint32(i)
		if s, ok := c.sectors[a/SectorSize]; ok {
			buf[i] = s[a%SectorSize]
		} else {
			buf[i] = 0xFF
		}
	}
	return buf
}

// Load writes data to the flash at addr, bypassing the controller.
func (c *Controller) Load(addr uint32, data []byte) {
	for i, b := range data {
		a := addr + uint32(i)
		c.sector(a)[a%SectorSize] = b
	}
}

// Protection returns the current block protect code.
func (c *Controller) Protection() uint32 { return uint32(c.flashStatus&statusBP) >> 2 }

// SetProtection sets the block protect code, bypassing the controller.
func (c *Controller) SetProtection(code uint32) {
	c.flashStatus = c.flashStatus&^statusBP | uint8(code<<2)&statusBP
}

// AccessEnabled reports whether the flash is driven by the controller and
// the FPGA is held unconfigured.
func (c *Controller) AccessEnabled() bool {
	return c.flashAccess == 1 && c.fpgaAccess == 0
}

// Unlocked reports whether the unlock key was written.
func (c *Controller) Unlocked() bool { return c.unlocked }

// Closed reports whether Close was called.
func (c *Controller) Closed() bool { return c.closed }

// Ops returns the operation log.
func (c *Controller) Ops() []Op { return c.ops }

// ResetOps clears the operation log.
func (c *Controller) ResetOps() { c.ops = nil }

// Accesses returns the number of register accesses so far.
func (c *Controller) Accesses() int { return c.seq }
