// Package cli holds the pieces shared by the command line tools: link
// selection and the console logger.
package cli

import (
	"flag"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/gentam/v2495/bridge"
	"github.com/gentam/v2495/reg"
	"github.com/gentam/v2495/regsim"
)

// LinkFlags selects and configures the register link.
type LinkFlags struct {
	Kind     string
	Port     string
	Baud     int
	Mem      string
	MMIOBase uint64
	Clock    uint64 // SPI clock in Hz
}

// Register adds the link flags to fs.
func (l *LinkFlags) Register(fs *flag.FlagSet) {
	fs.StringVar(&l.Kind, "link", "ftdi", "register link: ftdi, serial, mmio or sim")
	fs.StringVar(&l.Port, "port", "/dev/ttyUSB0", "serial port of the serial link")
	fs.IntVar(&l.Baud, "baud", 115200, "baud rate of the serial link")
	fs.StringVar(&l.Mem, "mem", "/dev/mem", "memory device of the mmio link")
	fs.Uint64Var(&l.MMIOBase, "mmio-base", 0, "physical address of the register window (mmio link)")
	fs.Uint64Var(&l.Clock, "spi-clock", uint64(bridge.DefaultClock/physic.Hertz), "SPI clock in Hz (ftdi link)")
}

// serialTimeout bounds a single serial exchange.
const serialTimeout = time.Second

// Open opens the selected link. base is the register base of the controller
// the simulated link serves.
func (l *LinkFlags) Open(base uint32) (reg.Transport, error) {
	switch l.Kind {
	case "ftdi":
		link, err := bridge.OpenFT232H(physic.Frequency(l.Clock) * physic.Hertz)
		if err != nil {
			return nil, err
		}
		return bridge.New(link), nil
	case "serial":
		link, err := bridge.OpenSerial(l.Port, l.Baud, serialTimeout)
		if err != nil {
			return nil, err
		}
		return bridge.New(link), nil
	case "mmio":
		return openMMIO(l.Mem, int64(l.MMIOBase))
	case "sim":
		return regsim.New(base), nil
	}
	return nil, fmt.Errorf("unknown link %q", l.Kind)
}
