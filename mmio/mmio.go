//go:build unix

// Package mmio reaches the controller registers through a memory mapping of
// the bus window, typically /dev/mem on the host of a VME or PCIe bridge.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/gentam/v2495/reg"
)

// DefaultSize covers the register windows of both controllers.
const DefaultSize = 0x10000

// Mem is a mapped register window. Register address 0 is the start of the
// mapping. Accesses are single 32-bit loads and stores.
type Mem struct {
	f   *os.File
	mem []byte
}

var _ reg.Transport = (*Mem)(nil)

// Open maps size bytes of path at offset phys. phys must be page aligned.
func Open(path string, phys int64, size int) (*Mem, error) {
	if phys%int64(unix.Getpagesize()) != 0 {
		return nil, fmt.Errorf("mmio: offset %#x is not page aligned", phys)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	mem, err := unix.Mmap(int(f.Fd()), phys, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmio: mmap %s at %#x: %w", path, phys, err)
	}
	return &Mem{f: f, mem: mem}, nil
}

func (m *Mem) word(addr uint32) (*uint32, error) {
	if m.mem == nil {
		return nil, os.ErrClosed
	}
	if addr%4 != 0 || int(addr)+4 > len(m.mem) {
		return nil, fmt.Errorf("mmio: address %#x outside the %#x byte window", addr, len(m.mem))
	}
	return (*uint32)(unsafe.Pointer(&m.mem[addr])), nil
}

// Read32 implements reg.Transport.
func (m *Mem) Read32(addr uint32) (uint32, error) {
	p, err := m.word(addr)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

// Write32 implements reg.Transport.
func (m *Mem) Write32(addr, val uint32) error {
	p, err := m.word(addr)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, val)
	return nil
}

// MultiRead32 implements reg.Transport.
func (m *Mem) MultiRead32(addrs, vals []uint32) error {
	if len(addrs) != len(vals) {
		return fmt.Errorf("mmio: %d addresses, %d values", len(addrs), len(vals))
	}
	be := &reg.BatchError{}
	for i, a := range addrs {
		v, err := m.Read32(a)
		if err != nil {
			be.Add(i, a, err)
			continue
		}
		vals[i] = v
	}
	return be.Err()
}

// MultiWrite32 implements reg.Transport.
func (m *Mem) MultiWrite32(addrs, vals []uint32) error {
	if len(addrs) != len(vals) {
		return fmt.Errorf("mmio: %d addresses, %d values", len(addrs), len(vals))
	}
	be := &reg.BatchError{Write: true}
	for i, a := range addrs {
		if err := m.Write32(a, vals[i]); err != nil {
			be.Add(i, a, err)
		}
	}
	return be.Err()
}

// Close unmaps the window and closes the file.
func (m *Mem) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	return multierr.Append(err, m.f.Close())
}
