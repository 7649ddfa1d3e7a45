// Package bridge reaches the controller registers through a byte link to a
// register bridge, either SPI through a FT232H or a serial port.
//
// Every register access is one request frame followed by one response frame:
//
//	request:  cmd(1) | addr(4, big endian) | data(4, big endian)
//	response: status(1) | data(4, big endian)
//
// A zero status is success. For writes the response data is ignored.
package bridge

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gentam/v2495/reg"
)

const (
	cmdRead  = 0x01
	cmdWrite = 0x02

	statusOK = 0x00

	reqLen  = 9
	respLen = 5
)

// Link exchanges one request frame for one response frame.
type Link interface {
	Exchange(req, resp []byte) error
}

// StatusError is a non-zero status returned by the bridge.
type StatusError struct {
	Addr   uint32
	Status byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bridge: status %#02x at %#x", e.Status, e.Addr)
}

// Bridge implements reg.Transport over a Link.
type Bridge struct {
	link Link
	req  [reqLen]byte
	resp [respLen]byte
}

var _ reg.Transport = (*Bridge)(nil)

// New returns a Bridge on l. Close closes l if it is an io.Closer.
func New(l Link) *Bridge {
	return &Bridge{link: l}
}

func (b *Bridge) exchange(cmd byte, addr, val uint32) (uint32, error) {
	b.req[0] = cmd
	binary.BigEndian.PutUint32(b.req[1:], addr)
	binary.BigEndian.PutUint32(b.req[5:], val)
	clear(b.resp[:])
	if err := b.link.Exchange(b.req[:], b.resp[:]); err != nil {
		return 0, err
	}
	if b.resp[0] != statusOK {
		return 0, &StatusError{Addr: addr, Status: b.resp[0]}
	}
	return binary.BigEndian.Uint32(b.resp[1:]), nil
}

// Read32 implements reg.Transport.
func (b *Bridge) Read32(addr uint32) (uint32, error) {
	return b.exchange(cmdRead, addr, 0)
}

// Write32 implements reg.Transport.
func (b *Bridge) Write32(addr, val uint32) error {
	_, err := b.exchange(cmdWrite, addr, val)
	return err
}

// MultiRead32 implements reg.Transport. A bridge status error fails only its
// entry; a link error ends the batch.
func (b *Bridge) MultiRead32(addrs, vals []uint32) error {
	if len(addrs) != len(vals) {
		return fmt.Errorf("bridge: %d addresses, %d values", len(addrs), len(vals))
	}
	be := &reg.BatchError{}
	for i, a := range addrs {
		v, err := b.Read32(a)
		if _, ok := err.(*StatusError); ok {
			be.Add(i, a, err)
			continue
		}
		if err != nil {
			return err
		}
		vals[i] = v
	}
	return be.Err()
}

// MultiWrite32 implements reg.Transport.
func (b *Bridge) MultiWrite32(addrs, vals []uint32) error {
	if len(addrs) != len(vals) {
		return fmt.Errorf("bridge: %d addresses, %d values", len(addrs), len(vals))
	}
	be := &reg.BatchError{Write: true}
	for i, a := range addrs {
		err := b.Write32(a, vals[i])
		if _, ok := err.(*StatusError); ok {
			be.Add(i, a, err)
			continue
		}
		if err != nil {
			return err
		}
	}
	return be.Err()
}

// Close closes the link.
func (b *Bridge) Close() error {
	if c, ok := b.link.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
