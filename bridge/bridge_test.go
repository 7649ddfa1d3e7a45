package bridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/gentam/v2495/reg"
	"github.com/gentam/v2495/regsim"
)

const base = 0x8500

// target decodes request frames and answers them from a simulated
// controller. Addresses in fail get a 0x55 status.
type target struct {
	sim  *regsim.Controller
	fail map[uint32]bool
	resp [respLen]byte
	n    int
}

func (s *target) handle(req []byte) error {
	if len(req) != reqLen {
		return fmt.Errorf("request of %d bytes", len(req))
	}
	s.n++
	addr := binary.BigEndian.Uint32(req[1:])
	val := binary.BigEndian.Uint32(req[5:])
	clear(s.resp[:])
	if s.fail[addr] {
		s.resp[0] = 0x55
		return nil
	}
	var err error
	switch req[0] {
	case cmdRead:
		val, err = s.sim.Read32(addr)
		binary.BigEndian.PutUint32(s.resp[1:], val)
	case cmdWrite:
		err = s.sim.Write32(addr, val)
	default:
		err = fmt.Errorf("command %#x", req[0])
	}
	if err != nil {
		s.resp[0] = 0xEE
	}
	return nil
}

// Exchange implements Link.
func (s *target) Exchange(req, resp []byte) error {
	if err := s.handle(req); err != nil {
		return err
	}
	copy(resp, s.resp[:])
	return nil
}

// spiTarget plays the bridge on a SPI bus: even transactions are requests,
// odd ones clock out the response.
type spiTarget struct {
	target
	cs  *gpiotest.Pin
	txs int
}

func (s *spiTarget) Tx(w, r []byte) error {
	if s.cs.Read() != gpio.Low {
		return errors.New("chip select not asserted")
	}
	s.txs++
	if s.txs%2 == 1 {
		return s.handle(w)
	}
	copy(r, s.resp[:])
	return nil
}

// stream plays the bridge on a byte stream.
type stream struct {
	target
	out bytes.Buffer
}

func (s *stream) Write(p []byte) (int, error) {
	if err := s.handle(p); err != nil {
		return 0, err
	}
	s.out.Write(s.resp[:])
	return len(p), nil
}

func (s *stream) Read(p []byte) (int, error) { return s.out.Read(p) }

func testTransport(t *testing.T, tr reg.Transport, sim *regsim.Controller) {
	t.Helper()
	id, err := tr.Read32(base + reg.IDCode)
	if err != nil || id != reg.ID {
		t.Fatalf("Read32(ID) = %#x, %v", id, err)
	}
	if err := tr.Write32(base+reg.FlashAccess, 1); err != nil {
		t.Fatal(err)
	}

	var addrs [reg.StagingWords]uint32
	reg.StagingAddrs(base, &addrs)
	vals := make([]uint32, len(addrs))
	for i := range vals {
		vals[i] = 0x01010101 * uint32(i)
	}
	if err := tr.MultiWrite32(addrs[:], vals); err != nil {
		t.Fatal(err)
	}
	got := make([]uint32, len(addrs))
	if err := tr.MultiRead32(addrs[:], got); err != nil {
		t.Fatal(err)
	}
	for i := range got {
		if got[i] != vals[i] {
			t.Fatalf("staging[%d] = %#x, want %#x", i, got[i], vals[i])
		}
	}
}

func TestBridge(t *testing.T) {
	sim := regsim.New(base)
	tgt := &target{sim: sim}
	testTransport(t, New(tgt), sim)
	if want := 2 + 2*reg.StagingWords; tgt.n != want {
		t.Errorf("%d frames, want %d", tgt.n, want)
	}
}

func TestSPILink(t *testing.T) {
	sim := regsim.New(base)
	cs := &gpiotest.Pin{N: "CS", Num: 4, L: gpio.High}
	tgt := &spiTarget{target: target{sim: sim}, cs: cs}
	b := New(NewSPILink(tgt, cs))
	testTransport(t, b, sim)
	if cs.Read() != gpio.High {
		t.Error("chip select left asserted")
	}
	if tgt.txs != 2*tgt.n {
		t.Errorf("%d transactions for %d frames", tgt.txs, tgt.n)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestStreamLink(t *testing.T) {
	sim := regsim.New(base)
	testTransport(t, New(NewStreamLink(&stream{target: target{sim: sim}})), sim)
}

type mute struct{}

func (mute) Write(p []byte) (int, error) { return len(p), nil }
func (mute) Read(p []byte) (int, error)  { return 0, io.EOF }

func TestStreamNoResponse(t *testing.T) {
	b := New(NewStreamLink(mute{}))
	if _, err := b.Read32(base); !errors.Is(err, io.EOF) {
		t.Errorf("Read32 without a response = %v, want EOF", err)
	}
}

func TestBatchStatus(t *testing.T) {
	sim := regsim.New(base)
	fail := map[uint32]bool{base + reg.Staging + 4: true, base + reg.Staging + 16: true}
	b := New(&target{sim: sim, fail: fail})

	var addrs [8]uint32
	for i := range addrs {
		addrs[i] = base + reg.Staging + 4*uint32(i)
	}
	err := b.MultiWrite32(addrs[:], make([]uint32, len(addrs)))
	var be *reg.BatchError
	if !errors.As(err, &be) {
		t.Fatalf("MultiWrite32 = %v, want *reg.BatchError", err)
	}
	if len(be.Entries) != 2 || be.Entries[0].Index != 1 || be.Entries[1].Index != 4 {
		t.Errorf("failed entries = %+v, want 1 and 4", be.Entries)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != 0x55 {
		t.Errorf("MultiWrite32 = %v, want a 0x55 status", err)
	}
}

func TestLinkError(t *testing.T) {
	b := New(&target{sim: regsim.New(base)})
	b.link = linkFunc(func(req, resp []byte) error { return errors.New("unplugged") })
	addrs := []uint32{base + reg.Staging, base + reg.Staging + 4}
	err := b.MultiRead32(addrs, make([]uint32, 2))
	var be *reg.BatchError
	if err == nil || errors.As(err, &be) {
		t.Errorf("MultiRead32 = %v, want the link error", err)
	}
}

type linkFunc func(req, resp []byte) error

func (f linkFunc) Exchange(req, resp []byte) error { return f(req, resp) }
