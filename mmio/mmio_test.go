//go:build unix

package mmio

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gentam/v2495/reg"
)

func mapFile(t *testing.T) (*Mem, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "window")
	if err := os.WriteFile(path, make([]byte, DefaultSize), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := Open(path, 0, DefaultSize)
	if err != nil {
		t.Fatal(err)
	}
	return m, path
}

func TestReadWrite(t *testing.T) {
	m, path := mapFile(t)

	const addr = 0x8700 + reg.IDCode
	if err := m.Write32(addr, reg.ID); err != nil {
		t.Fatal(err)
	}
	if v, err := m.Read32(addr); err != nil || v != reg.ID {
		t.Errorf("Read32 = %#x, %v; want %#x", v, err, reg.ID)
	}

	var addrs [reg.StagingWords]uint32
	reg.StagingAddrs(0x8500, &addrs)
	vals := make([]uint32, len(addrs))
	for i := range vals {
		vals[i] = uint32(i) << 16
	}
	if err := m.MultiWrite32(addrs[:], vals); err != nil {
		t.Fatal(err)
	}
	got := make([]uint32, len(addrs))
	if err := m.MultiRead32(addrs[:], got); err != nil {
		t.Fatal(err)
	}
	for i := range got {
		if got[i] != vals[i] {
			t.Fatalf("word %d = %#x, want %#x", i, got[i], vals[i])
		}
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if v := binary.NativeEndian.Uint32(data[addr:]); v != reg.ID {
		t.Errorf("file word at %#x = %#x after unmap", addr, v)
	}
	if _, err := m.Read32(addr); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Read32 after Close = %v", err)
	}
}

func TestBounds(t *testing.T) {
	m, _ := mapFile(t)
	defer m.Close()
	for _, a := range []uint32{2, DefaultSize - 2, DefaultSize} {
		if _, err := m.Read32(a); err == nil {
			t.Errorf("Read32(%#x) succeeded", a)
		}
	}
	err := m.MultiWrite32([]uint32{0, DefaultSize}, []uint32{1, 2})
	var be *reg.BatchError
	if !errors.As(err, &be) || len(be.Entries) != 1 || be.Entries[0].Index != 1 {
		t.Errorf("MultiWrite32 = %v, want entry 1 failed", err)
	}
	if _, err := Open("/nonexistent/mem", 1, DefaultSize); err == nil {
		t.Error("unaligned Open succeeded")
	}
}
