package v2495

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Its value is the process exit code used by
// cvupgrade.
type Kind int

const (
	KindNone                 Kind = 0
	KindUsage                Kind = -1
	KindOpen                 Kind = -2
	KindMemory               Kind = -3
	KindCommunication        Kind = -4
	KindFileOpen             Kind = -5
	KindInvalidFile          Kind = -6
	KindInvalidRegion        Kind = -7
	KindInvalidController    Kind = -8
	KindControllerNotPresent Kind = -9
	KindInvalidFirmware      Kind = -10
	KindWrite                Kind = -11
	KindUnresponsive         Kind = -17
	KindInvalidAddress       Kind = -18
)

var kindNames = map[Kind]string{
	KindNone:                 "success",
	KindUsage:                "usage error",
	KindOpen:                 "device open failed",
	KindMemory:               "memory allocation failed",
	KindCommunication:        "communication error",
	KindFileOpen:             "cannot open file",
	KindInvalidFile:          "invalid file",
	KindInvalidRegion:        "invalid region",
	KindInvalidController:    "invalid controller",
	KindControllerNotPresent: "controller not present",
	KindInvalidFirmware:      "invalid firmware",
	KindWrite:                "write failed",
	KindUnresponsive:         "device unresponsive",
	KindInvalidAddress:       "invalid address",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("error %d", int(k))
}

// Error implements error so that a Kind can be used as a target of
// errors.Is.
func (k Kind) Error() string { return k.String() }

// Sentinels for errors.Is.
var (
	ErrUsage                error = KindUsage
	ErrOpen                 error = KindOpen
	ErrMemory               error = KindMemory
	ErrCommunication        error = KindCommunication
	ErrFileOpen             error = KindFileOpen
	ErrInvalidFile          error = KindInvalidFile
	ErrInvalidRegion        error = KindInvalidRegion
	ErrInvalidController    error = KindInvalidController
	ErrControllerNotPresent error = KindControllerNotPresent
	ErrInvalidFirmware      error = KindInvalidFirmware
	ErrWrite                error = KindWrite
	ErrUnresponsive         error = KindUnresponsive
	ErrInvalidAddress       error = KindInvalidAddress
)

// Error is a failure of an operation, classified by Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a Kind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func newError(k Kind, op string, err error) error {
	return &Error{Kind: k, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
// A nil error is KindNone; an unclassified error is KindCommunication.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return KindCommunication
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	return int(KindOf(err))
}

// VerifyMismatchError reports the first byte that differed between the
// expected image and the flash contents.
type VerifyMismatchError struct {
	Addr   uint32 // flash address of the page
	Offset int    // byte offset within the page
	Want   byte
	Got    byte
}

func (e *VerifyMismatchError) Error() string {
	return fmt.Sprintf("verify mismatch at %#08x: want %#02x, got %#02x",
		e.Addr+uint32(e.Offset), e.Want, e.Got)
}

// ProtectionMismatchError reports a protection field that did not read back
// as written.
type ProtectionMismatchError struct {
	Want uint32
	Got  uint32
}

func (e *ProtectionMismatchError) Error() string {
	return fmt.Sprintf("protection readback mismatch: wrote %#02x, read %#02x", e.Want, e.Got)
}
