package reg

import (
	"fmt"
	"strings"
)

// Transport performs register accesses against the module. Addresses are
// absolute (controller base + register offset).
//
// MultiRead32 and MultiWrite32 take parallel slices. When the transport
// reports per-entry status, a failing entry is returned as a *BatchError.
type Transport interface {
	Read32(addr uint32) (uint32, error)
	Write32(addr, val uint32) error
	MultiRead32(addrs, vals []uint32) error
	MultiWrite32(addrs, vals []uint32) error
}

// EntryError is the failure of one entry of a batched access.
type EntryError struct {
	Index int
	Addr  uint32
	Err   error
}

// BatchError lists the entries of a batched access that failed.
type BatchError struct {
	Write   bool
	Entries []EntryError
}

func (e *BatchError) Error() string {
	op := "read"
	if e.Write {
		op = "write"
	}
	s := make([]string, 0, len(e.Entries))
	for _, ent := range e.Entries {
		s = append(s, fmt.Sprintf("[%d]%#x: %v", ent.Index, ent.Addr, ent.Err))
	}
	return fmt.Sprintf("multi %s: %d entries failed: %s", op, len(e.Entries), strings.Join(s, "; "))
}

// Unwrap returns the per-entry errors.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Entries))
	for i, ent := range e.Entries {
		errs[i] = ent.Err
	}
	return errs
}

// Add records a failing entry.
func (e *BatchError) Add(i int, addr uint32, err error) {
	e.Entries = append(e.Entries, EntryError{Index: i, Addr: addr, Err: err})
}

// Err returns e if any entry failed and nil otherwise.
func (e *BatchError) Err() error {
	if e == nil || len(e.Entries) == 0 {
		return nil
	}
	return e
}
