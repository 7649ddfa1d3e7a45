package v2495

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/gentam/v2495/reg"
)

// Flash drives the NOR flash through the controller register window.
// A Flash is not safe for concurrent use.
type Flash struct {
	t       reg.Transport
	base    uint32
	protect uint32 // block protect code of the profile
	present bool
	cfg     *Config
	log     *zap.Logger

	// staging window transfer buffers
	addrs [reg.StagingWords]uint32
	words [reg.StagingWords]uint32
}

func newFlash(t reg.Transport, p Profile, present bool, cfg *Config) *Flash {
	f := &Flash{
		t:       t,
		base:    p.Base,
		protect: p.ProtectCode,
		present: present,
		cfg:     cfg,
		log:     cfg.Logger,
	}
	reg.StagingAddrs(p.Base, &f.addrs)
	return f
}

// Present reports whether the controller answered the ID probe.
func (f *Flash) Present() bool { return f.present }

func (f *Flash) check(op string) error {
	if !f.present {
		return newError(KindControllerNotPresent, op, nil)
	}
	return nil
}

// comm classifies a transport failure. Errors that already carry a Kind
// are passed through.
func comm(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(KindCommunication, op, err)
}

func (f *Flash) write(op string, off, val uint32) error {
	if err := f.t.Write32(f.base+off, val); err != nil {
		return comm(op, fmt.Errorf("write %#x=%#x: %w", f.base+off, val, err))
	}
	return nil
}

func (f *Flash) read(op string, off uint32) (uint32, error) {
	v, err := f.t.Read32(f.base + off)
	if err != nil {
		return 0, comm(op, fmt.Errorf("read %#x: %w", f.base+off, err))
	}
	return v, nil
}

func (f *Flash) command(op string, opcode uint32) error {
	return f.write(op, reg.Opcode, opcode)
}

func (f *Flash) status(op string) (reg.Status, error) {
	v, err := f.read(op, reg.Opcode)
	return reg.Status(v), err
}

// busyWait calls ready until it reports true. The wait gives up after
// MaxPolls calls or once WaitTimeout elapsed on the configured clock.
func (f *Flash) busyWait(op string, ready func() (bool, error)) error {
	clk := f.cfg.Clock
	start := clk.Now()
	b := backoff.Backoff{
		Min:    f.cfg.PollInterval,
		Max:    f.cfg.MaxPollInterval,
		Factor: 2,
	}
	for n := 1; ; n++ {
		ok, err := ready()
		if err != nil {
			return err
		}
		if ok {
			f.cfg.Metrics.waited(n, false)
			return nil
		}
		elapsed := clk.Now().Sub(start)
		if (f.cfg.MaxPolls > 0 && n >= f.cfg.MaxPolls) || elapsed >= f.cfg.WaitTimeout {
			f.cfg.Metrics.waited(n, true)
			f.log.Warn("busy wait gave up", zap.String("op", op), zap.Int("polls", n), zap.Duration("elapsed", elapsed))
			return newError(KindUnresponsive, op, fmt.Errorf("still busy after %d polls in %v", n, elapsed))
		}
		if f.cfg.PollInterval > 0 {
			clk.Sleep(b.Duration())
		}
	}
}

// waitController waits until the controller accepts a new opcode.
func (f *Flash) waitController(op string) error {
	return f.busyWait(op, func() (bool, error) {
		s, err := f.status(op)
		return err == nil && !s.ControllerBusy(), err
	})
}

// waitFlash waits until the flash finished an erase, program or status
// register write.
func (f *Flash) waitFlash(op string) error {
	return f.busyWait(op, func() (bool, error) {
		if err := f.waitController(op); err != nil {
			return false, err
		}
		if err := f.command(op, reg.OpReadStatus); err != nil {
			return false, err
		}
		s, err := f.status(op)
		return err == nil && !s.FlashBusy(), err
	})
}

// ControllerStatus returns the raw opcode/status register.
func (f *Flash) ControllerStatus() (reg.Status, error) {
	const op = "controller status"
	if err := f.check(op); err != nil {
		return 0, err
	}
	return f.status(op)
}

// FlashStatus issues READ_STATUS and returns the refreshed status word.
func (f *Flash) FlashStatus() (reg.Status, error) {
	const op = "flash status"
	if err := f.check(op); err != nil {
		return 0, err
	}
	if err := f.command(op, reg.OpReadStatus); err != nil {
		return 0, err
	}
	return f.status(op)
}

func (f *Flash) setup(op string, addr uint32) error {
	if err := f.write(op, reg.Address, addr); err != nil {
		return err
	}
	return f.write(op, reg.Payload, PageSize-1)
}

// WritePage programs one 256-byte page. addr must be page aligned and the
// page must have been erased.
func (f *Flash) WritePage(addr uint32, buf *[PageSize]byte) error {
	const op = "write page"
	if err := f.check(op); err != nil {
		return err
	}
	if !PageAligned(addr) {
		return newError(KindInvalidAddress, op, fmt.Errorf("%#x is not page aligned", addr))
	}
	if err := f.setup(op, addr); err != nil {
		return err
	}

	for i := range f.words {
		f.words[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	if err := f.t.MultiWrite32(f.addrs[:], f.words[:]); err != nil {
		return comm(op, fmt.Errorf("page %#x staging: %w", addr, err))
	}

	if err := f.command(op, reg.OpWriteEnable); err != nil {
		return err
	}
	if err := f.command(op, reg.OpWritePage); err != nil {
		return err
	}
	if err := f.waitFlash(op); err != nil {
		return err
	}
	f.cfg.Metrics.pageWritten()
	return nil
}

// ReadPage reads one 256-byte page. addr must be page aligned.
func (f *Flash) ReadPage(addr uint32, buf *[PageSize]byte) error {
	const op = "read page"
	if err := f.check(op); err != nil {
		return err
	}
	if !PageAligned(addr) {
		return newError(KindInvalidAddress, op, fmt.Errorf("%#x is not page aligned", addr))
	}
	if err := f.setup(op, addr); err != nil {
		return err
	}
	if err := f.command(op, reg.OpReadPage); err != nil {
		return err
	}
	if err := f.waitController(op); err != nil {
		return err
	}

	if err := f.t.MultiRead32(f.addrs[:], f.words[:]); err != nil {
		return comm(op, fmt.Errorf("page %#x staging: %w", addr, err))
	}
	for i, w := range f.words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	f.cfg.Metrics.pageRead()
	return nil
}

// SectorErase erases the 64KB sector starting at addr. The controller
// ignores the low 16 bits; callers pass a sector aligned address.
func (f *Flash) SectorErase(addr uint32) error {
	const op = "sector erase"
	if err := f.check(op); err != nil {
		return err
	}
	if err := f.write(op, reg.Address, addr); err != nil {
		return err
	}
	if err := f.command(op, reg.OpWriteEnable); err != nil {
		return err
	}
	if err := f.command(op, reg.OpSectorErase); err != nil {
		return err
	}
	if err := f.waitFlash(op); err != nil {
		return err
	}
	f.cfg.Metrics.sectorErased()
	f.log.Debug("sector erased", zap.Uint32("addr", addr))
	return nil
}

func sectorPage(buf *[SectorSize]byte, i int) *[PageSize]byte {
	return (*[PageSize]byte)(buf[i*PageSize : (i+1)*PageSize])
}

// ReadSector reads the sector containing addr. addr is truncated to the
// sector start.
func (f *Flash) ReadSector(addr uint32, buf *[SectorSize]byte) error {
	base := SectorBase(addr)
	for i := 0; i < PagesPerSector; i++ {
		if err := f.ReadPage(base+uint32(i*PageSize), sectorPage(buf, i)); err != nil {
			return err
		}
	}
	return nil
}

// WriteSector programs the sector containing addr. addr is truncated to the
// sector start. The sector is not erased first.
func (f *Flash) WriteSector(addr uint32, buf *[SectorSize]byte) error {
	base := SectorBase(addr)
	for i := 0; i < PagesPerSector; i++ {
		if err := f.WritePage(base+uint32(i*PageSize), sectorPage(buf, i)); err != nil {
			return err
		}
	}
	return nil
}

// PageErase erases the page containing addr. The flash has no page erase,
// so the sector is read, erased and written back with the page set to 0xFF.
// An interruption between the erase and the end of the write back loses
// the other pages of the sector.
func (f *Flash) PageErase(addr uint32) error {
	const op = "page erase"
	if err := f.check(op); err != nil {
		return err
	}
	base := SectorBase(addr)
	off := (addr - base) &^ (PageSize - 1)

	buf := new([SectorSize]byte)
	if err := f.ReadSector(base, buf); err != nil {
		return err
	}
	if err := f.SectorErase(base); err != nil {
		return err
	}
	for i := off; i < off+PageSize; i++ {
		buf[i] = 0xFF
	}
	return f.WriteSector(base, buf)
}
