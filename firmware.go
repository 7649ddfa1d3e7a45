package v2495

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ProgramOptions tune ProgramFirmware.
type ProgramOptions struct {
	// Verify reads every page back right after programming it.
	Verify bool
	// NoBitReverse writes the image bytes as they are. By default the bit
	// order of every byte is reversed.
	NoBitReverse bool
	// SkipErase programs without erasing the region first.
	SkipErase bool
}

// ProgramFirmware writes the image from src into region r.
//
// Sectors are erased lowest first and programmed highest first, pages within
// a sector highest first, so that an interrupted upgrade never leaves a
// region that looks complete. The boot region is unprotected for the
// duration of the call and protected again on every exit.
func (d *Device) ProgramFirmware(r Region, src ImageSource, opts ProgramOptions) (err error) {
	const op = "program firmware"
	start, err := d.prepare(op, r, src)
	if err != nil {
		return err
	}
	defer d.finish(op, r, &err)
	if r == Boot {
		defer d.reprotect(r, &err)
		if err := d.unprotect(r); err != nil {
			return err
		}
	}

	if !opts.SkipErase {
		if err := d.eraseRegion(r, start); err != nil {
			return err
		}
	} else {
		d.log.Info("erase skipped", zap.Stringer("region", r))
	}

	var (
		reverse = !opts.NoBitReverse
		page    = new([PageSize]byte)
		back    = new([PageSize]byte)
		size    = len(d.bitstream)
		sectors = sectorsFor(size)
		f       = d.Flash
	)
	d.counter.reset()
	d.report(PhaseProgramming, r, 0, sectors)
	for s := sectors - 1; s >= 0; s-- {
		for p := PagesPerSector - 1; p >= 0; p-- {
			off := s*SectorSize + p*PageSize
			if off >= size {
				continue
			}
			addr := start + uint32(off)
			n := d.pageImage(off, page, reverse)
			if err := f.WritePage(addr, page); err != nil {
				return err
			}
			if opts.Verify {
				if err := f.ReadPage(addr, back); err != nil {
					return err
				}
				if err := d.compare(op, addr, page, back, n); err != nil {
					return err
				}
			}
			d.counter.add(n)
		}
		d.log.Debug("sector programmed", zap.Int("sector", s), zap.Uint32("addr", start+uint32(s*SectorSize)))
		d.report(PhaseProgramming, r, sectors-s, sectors)
	}
	return nil
}

// VerifyFirmware compares region r against the image from src. The first
// differing byte fails with InvalidFirmware.
func (d *Device) VerifyFirmware(r Region, src ImageSource, noBitReverse bool) (err error) {
	const op = "verify firmware"
	start, err := d.prepare(op, r, src)
	if err != nil {
		return err
	}
	defer d.finish(op, r, &err)

	var (
		want    = new([PageSize]byte)
		got     = new([PageSize]byte)
		size    = len(d.bitstream)
		sectors = sectorsFor(size)
	)
	d.counter.reset()
	d.report(PhaseVerifying, r, 0, sectors)
	for s := 0; s < sectors; s++ {
		for p := 0; p < PagesPerSector; p++ {
			off := s*SectorSize + p*PageSize
			if off >= size {
				break
			}
			addr := start + uint32(off)
			n := d.pageImage(off, want, !noBitReverse)
			if err := d.Flash.ReadPage(addr, got); err != nil {
				return err
			}
			if err := d.compare(op, addr, want, got, n); err != nil {
				return err
			}
			d.counter.add(n)
		}
		d.report(PhaseVerifying, r, s+1, sectors)
	}
	return nil
}

// EraseFirmware erases every sector of region r.
func (d *Device) EraseFirmware(r Region) (err error) {
	const op = "erase firmware"
	start, err := d.resolve(op, r)
	if err != nil {
		return err
	}
	d.begin(op, r)
	defer d.finish(op, r, &err)
	if r == Boot {
		defer d.reprotect(r, &err)
		if err := d.unprotect(r); err != nil {
			return err
		}
	}
	return d.eraseRegion(r, start)
}

// DumpFirmware reads a bitstream length image from region r and writes it
// to w. Unless noBitReverse is set the bit order of every byte is restored,
// so the dump of a region programmed from an image equals that image.
func (d *Device) DumpFirmware(r Region, w io.Writer, noBitReverse bool) (err error) {
	const op = "dump firmware"
	start, err := d.resolve(op, r)
	if err != nil {
		return err
	}
	d.begin(op, r)
	defer d.finish(op, r, &err)

	var (
		page    = new([PageSize]byte)
		size    = d.profile.Bitstream
		sectors = sectorsFor(size)
	)
	d.counter.reset()
	d.report(PhaseReading, r, 0, sectors)
	for s := 0; s < sectors; s++ {
		for p := 0; p < PagesPerSector; p++ {
			off := s*SectorSize + p*PageSize
			if off >= size {
				break
			}
			if err := d.Flash.ReadPage(start+uint32(off), page); err != nil {
				return err
			}
			n := min(PageSize, size-off)
			if !noBitReverse {
				ReverseBits(page[:n])
			}
			if _, err := w.Write(page[:n]); err != nil {
				return newError(KindFileOpen, op, fmt.Errorf("write dump: %w", err))
			}
			d.counter.add(n)
		}
		d.report(PhaseReading, r, s+1, sectors)
	}
	return nil
}

// resolve checks the region and the controller presence.
func (d *Device) resolve(op string, r Region) (uint32, error) {
	start, err := d.profile.RegionStart(r)
	if err != nil {
		return 0, err
	}
	if err := d.Flash.check(op); err != nil {
		return 0, err
	}
	return start, nil
}

// prepare resolves r and loads the image. Nothing is written to the
// controller before the image is complete.
func (d *Device) prepare(op string, r Region, src ImageSource) (uint32, error) {
	start, err := d.profile.RegionStart(r)
	if err != nil {
		return 0, err
	}
	d.begin(op, r)
	d.report(PhaseLoading, r, 0, 1)
	if err := d.load(src); err != nil {
		d.fail(op, r, err)
		return 0, err
	}
	if err := d.Flash.check(op); err != nil {
		d.fail(op, r, err)
		return 0, err
	}
	d.report(PhaseLoading, r, 1, 1)
	return start, nil
}

func (d *Device) load(src ImageSource) error {
	if src == nil {
		return newError(KindFileOpen, "load image", fmt.Errorf("no image"))
	}
	if len(d.bitstream) != d.profile.Bitstream {
		d.bitstream = make([]byte, d.profile.Bitstream)
	}
	if err := src.ReadImage(d.bitstream); err != nil {
		if KindOf(err) == KindCommunication {
			return newError(KindInvalidFile, "load image", err)
		}
		return err
	}
	return nil
}

// pageImage fills page with the image bytes at off, zero padded, and
// returns the number of image bytes in the page.
func (d *Device) pageImage(off int, page *[PageSize]byte, reverse bool) int {
	n := copy(page[:], d.bitstream[off:])
	clear(page[n:])
	if reverse {
		ReverseBits(page[:n])
	}
	return n
}

func (d *Device) compare(op string, addr uint32, want, got *[PageSize]byte, n int) error {
	for i := 0; i < n; i++ {
		if want[i] != got[i] {
			d.cfg.Metrics.mismatch()
			return newError(KindInvalidFirmware, op, &VerifyMismatchError{
				Addr: addr, Offset: i, Want: want[i], Got: got[i],
			})
		}
	}
	return nil
}

func (d *Device) eraseRegion(r Region, start uint32) error {
	n := d.profile.Sectors
	d.report(PhaseErasing, r, 0, n)
	for s := 0; s < n; s++ {
		if err := d.Flash.SectorErase(start + uint32(s*SectorSize)); err != nil {
			return err
		}
		d.report(PhaseErasing, r, s+1, n)
	}
	return nil
}

func (d *Device) unprotect(r Region) error {
	d.report(PhaseUnprotecting, r, 0, 1)
	return d.Flash.WriteUnprotect()
}

// reprotect restores the boot protection and adds its failure to *err.
func (d *Device) reprotect(r Region, err *error) {
	d.report(PhaseReprotecting, r, 0, 1)
	if perr := d.Flash.WriteProtect(); perr != nil {
		d.log.Error("re-protect failed", zap.Stringer("region", r), zap.Error(perr))
		*err = multierr.Append(*err, perr)
	}
}

func (d *Device) begin(op string, r Region) {
	d.counter.reset()
	d.log.Info(op, zap.Stringer("region", r), zap.Stringer("controller", d.ctrl))
}

func (d *Device) finish(op string, r Region, err *error) {
	if *err != nil {
		d.fail(op, r, *err)
		return
	}
	d.report(PhaseDone, r, 1, 1)
	d.log.Info(op+" done", zap.Stringer("region", r))
}

func (d *Device) fail(op string, r Region, err error) {
	d.counter.fail(err)
	d.report(PhaseFailed, r, 0, 0)
	d.log.Error(op+" failed", zap.Stringer("region", r), zap.Error(err))
}

func (d *Device) report(ph Phase, r Region, done, total int) {
	if done == 0 {
		d.log.Debug("phase", zap.String("phase", string(ph)), zap.Stringer("region", r))
	}
	if d.cfg.Progress != nil {
		d.cfg.Progress(Progress{Phase: ph, Region: r, Done: done, Total: total})
	}
}

func sectorsFor(size int) int {
	return (size + SectorSize - 1) / SectorSize
}
