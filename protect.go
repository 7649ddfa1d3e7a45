package v2495

import (
	"go.uber.org/zap"

	"github.com/gentam/v2495/reg"
)

// setProtection writes code into the block protect field of the flash
// status register and reads it back.
func (f *Flash) setProtection(op string, code uint32) error {
	if err := f.check(op); err != nil {
		return err
	}
	field := code << 2
	if err := f.command(op, reg.OpWriteEnable); err != nil {
		return err
	}
	if err := f.write(op, reg.Address, field); err != nil {
		return err
	}
	if err := f.command(op, reg.OpWriteStatus); err != nil {
		return err
	}
	if err := f.waitFlash(op); err != nil {
		return err
	}

	if err := f.command(op, reg.OpReadStatus); err != nil {
		return err
	}
	s, err := f.status(op)
	if err != nil {
		return err
	}
	if s.ProtectField() != field {
		return newError(KindWrite, op, &ProtectionMismatchError{Want: code, Got: s.Protection()})
	}
	f.log.Debug("protection set", zap.String("op", op), zap.Uint32("code", code))
	return nil
}

// WriteProtect protects the factory sectors of the controller's flash.
func (f *Flash) WriteProtect() error {
	return f.setProtection("write protect", f.protect)
}

// WriteUnprotect removes the protection of all sectors.
func (f *Flash) WriteUnprotect() error {
	return f.setProtection("write unprotect", reg.UnprotectAll)
}

// ProtectionStatus returns the block protect code currently set in the
// flash status register.
func (f *Flash) ProtectionStatus() (uint32, error) {
	s, err := f.FlashStatus()
	if err != nil {
		return 0, err
	}
	return s.Protection(), nil
}

// ProtectCode returns the code written by WriteProtect.
func (f *Flash) ProtectCode() uint32 { return f.protect }
