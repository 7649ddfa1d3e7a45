package bridge

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// StreamLink is a Link over a byte stream such as a serial port.
type StreamLink struct {
	rw io.ReadWriter
}

// NewStreamLink returns a link on rw. Close closes rw if it is an io.Closer.
func NewStreamLink(rw io.ReadWriter) *StreamLink {
	return &StreamLink{rw: rw}
}

// Exchange implements Link.
func (l *StreamLink) Exchange(req, resp []byte) error {
	if _, err := l.rw.Write(req); err != nil {
		return fmt.Errorf("serial request: %w", err)
	}
	if _, err := io.ReadFull(l.rw, resp); err != nil {
		return fmt.Errorf("serial response: %w", err)
	}
	return nil
}

func (l *StreamLink) Close() error {
	if c, ok := l.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// OpenSerial opens the serial port name. A response not complete within
// timeout fails the access.
func OpenSerial(name string, baud int, timeout time.Duration) (*StreamLink, error) {
	c := &serial.Config{Name: name, Baud: baud, ReadTimeout: timeout}
	s, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("serial.OpenPort: %w", err)
	}
	if err := s.Flush(); err != nil {
		s.Close()
		return nil, fmt.Errorf("serial flush: %w", err)
	}
	return NewStreamLink(s), nil
}
