package bridge

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// DefaultClock is the highest SPI clock of the FT232H MPSSE engine.
const DefaultClock = 30 * physic.MegaHertz // [AN_135 3.2.1 Divisors]

// Tx is the half of spi.Conn used by SPILink.
type Tx interface {
	Tx(w, r []byte) error
}

// SPILink is a Link over a SPI connection with a GPIO driven chip select.
// The request and the response are two transactions.
type SPILink struct {
	conn Tx
	cs   gpio.PinOut
	port spi.PortCloser
}

// NewSPILink returns a link on conn selecting the bridge with cs.
func NewSPILink(conn Tx, cs gpio.PinOut) *SPILink {
	return &SPILink{conn: conn, cs: cs}
}

// tx wraps SPI transaction with CS assertion.
func (l *SPILink) tx(buf []byte) (err error) {
	if err = l.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := l.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = l.conn.Tx(buf, buf)
	return
}

// Exchange implements Link.
func (l *SPILink) Exchange(req, resp []byte) error {
	if err := l.tx(req); err != nil {
		return fmt.Errorf("spi request: %w", err)
	}
	if err := l.tx(resp); err != nil {
		return fmt.Errorf("spi response: %w", err)
	}
	return nil
}

// Close releases the SPI port opened by OpenFT232H.
func (l *SPILink) Close() error {
	if l.port == nil {
		return nil
	}
	return l.port.Close()
}

var hostInitialized atomic.Bool

// OpenFT232H finds the FT2232H and opens its MPSSE SPI port at clk.
func OpenFT232H(clk physic.Frequency) (*SPILink, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}

	ft, err := findFT2232H()
	if err != nil {
		return nil, err
	}
	port, err := ft.SPI()
	if err != nil {
		return nil, fmt.Errorf("failed to get SPI port: %w", err)
	}

	// [FTDI AN_114|1.2]> FTDI device can only support mode 0 and mode 2 due to the limitation of MPSSE engine
	conn, err := port.Connect(clk, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("SPI connection failed: %w", err)
	}

	// ADBUS0 | SCK
	// ADBUS1 | MOSI
	// ADBUS2 | MISO
	// ADBUS4 | CS
	l := NewSPILink(conn, ft.D4)
	l.port = port
	return l, nil
}

func findFT2232H() (*ftdi.FT232H, error) {
	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			return ft, nil
		}
	}
	return nil, errors.New("FT2232H not found")
}
