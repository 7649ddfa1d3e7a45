package v2495

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gentam/v2495/reg"
)

// Device is a session with one flash controller. It owns the register
// transport and the bitstream buffer. Flash access is enabled by Open and
// disabled by Close; callers must Close the device on every path.
type Device struct {
	Flash *Flash

	t         reg.Transport
	ctrl      Controller
	profile   Profile
	cfg       Config
	log       *zap.Logger
	present   bool
	enabled   bool
	closed    bool
	bitstream []byte
	counter   Counter
}

// Open starts a session on controller c over t. The controller ID is probed
// once; when it does not match, the device is still returned and every
// flash operation fails with ControllerNotPresent.
//
// t is closed by Close when it implements io.Closer, also when Open fails.
func Open(t reg.Transport, c Controller, opts ...Option) (d *Device, err error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	d = &Device{
		t:    t,
		ctrl: c,
		cfg:  cfg,
		log:  cfg.Logger.With(zap.Stringer("controller", c)),
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, d.Close())
			d = nil
		}
	}()

	if cfg.Profile != nil {
		d.profile = *cfg.Profile
	} else if d.profile, err = c.Profile(); err != nil {
		return d, err
	}
	if err := d.profile.Validate(); err != nil {
		return d, newError(KindInvalidController, "open", err)
	}

	id, err := t.Read32(d.profile.Base + reg.IDCode)
	if err != nil {
		return d, newError(KindCommunication, "open", fmt.Errorf("read id: %w", err))
	}
	d.present = id == reg.ID
	if !d.present {
		d.log.Warn("controller not present", zap.Uint32("id", id), zap.Uint32("want", reg.ID))
	}

	d.Flash = newFlash(t, d.profile, d.present, &d.cfg)
	if d.present {
		if err := d.enableAccess(); err != nil {
			return d, err
		}
	}
	d.log.Debug("session opened", zap.Bool("present", d.present), zap.String("flash", n25q256.name))
	return d, nil
}

func (d *Device) enableAccess() error {
	const op = "enable flash access"
	d.enabled = true
	if err := d.Flash.write(op, reg.FPGAAccess, 0); err != nil {
		return err
	}
	if err := d.Flash.write(op, reg.FlashAccess, 1); err != nil {
		return err
	}
	return d.Flash.write(op, reg.Unlock, reg.UnlockKey)
}

// disableAccess hands the flash back to the FPGA. Both writes are attempted.
func (d *Device) disableAccess() error {
	const op = "disable flash access"
	return multierr.Combine(
		d.Flash.write(op, reg.FlashAccess, 0),
		d.Flash.write(op, reg.FPGAAccess, 1),
	)
}

// Close disables flash access and closes the transport. Close is idempotent.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var err error
	if d.enabled {
		d.enabled = false
		err = d.disableAccess()
	}
	if c, ok := d.t.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	if err != nil {
		d.log.Error("session close", zap.Error(err))
	} else {
		d.log.Debug("session closed")
	}
	return err
}

// Session runs fn and closes d afterwards, also when fn panics. The close
// error is combined with the error of fn.
func (d *Device) Session(fn func(*Device) error) (err error) {
	defer func() {
		err = multierr.Append(err, d.Close())
	}()
	return fn(d)
}

// Present reports whether the controller answered the ID probe.
func (d *Device) Present() bool { return d.present }

// Controller returns the controller of the session.
func (d *Device) Controller() Controller { return d.ctrl }

// Profile returns the flash profile in use.
func (d *Device) Profile() Profile { return d.profile }

// Counter returns the byte counter of the running firmware operation.
func (d *Device) Counter() *Counter { return &d.counter }
