package v2495

import (
	"errors"
	"testing"

	"github.com/gentam/v2495/reg"
	"github.com/gentam/v2495/regsim"
)

func TestWriteProtectSequence(t *testing.T) {
	m := fakeRegisters(t)
	f := testFlash(m, Main, true)

	m.ExpectWrite32(mainBase+reg.Opcode, reg.OpWriteEnable)
	m.ExpectWrite32(mainBase+reg.Address, 0x0F<<2)
	m.ExpectWrite32(mainBase+reg.Opcode, reg.OpWriteStatus)
	expectWaitFlash(m, mainBase)
	m.ExpectWrite32(mainBase+reg.Opcode, reg.OpReadStatus)
	m.FakeRead32(mainBase+reg.Opcode, 0x0F<<10)

	if err := f.WriteProtect(); err != nil {
		t.Fatal(err)
	}
	m.Done()
}

func TestProtectRoundTrip(t *testing.T) {
	for _, tt := range []struct {
		ctrl Controller
		code uint32
	}{
		{Main, reg.ProtectSectors0to63},
		{User, reg.ProtectSectors0to127},
	} {
		t.Run(tt.ctrl.String(), func(t *testing.T) {
			sim := unlockedSim(t, uint32(tt.ctrl), regsim.WithWIPPolls(3))
			f := testFlash(sim, tt.ctrl, true)

			if err := f.WriteUnprotect(); err != nil {
				t.Fatal(err)
			}
			if got, err := f.ProtectionStatus(); err != nil || got != reg.UnprotectAll {
				t.Errorf("after WriteUnprotect: ProtectionStatus = %#x, %v; want %#x", got, err, reg.UnprotectAll)
			}

			if err := f.WriteProtect(); err != nil {
				t.Fatal(err)
			}
			if got, err := f.ProtectionStatus(); err != nil || got != tt.code {
				t.Errorf("after WriteProtect: ProtectionStatus = %#x, %v; want %#x", got, err, tt.code)
			}
			if f.ProtectCode() != tt.code {
				t.Errorf("ProtectCode = %#x, want %#x", f.ProtectCode(), tt.code)
			}
			if sim.Protection() != tt.code {
				t.Errorf("flash protection = %#x, want %#x", sim.Protection(), tt.code)
			}
		})
	}
}

func TestProtectMismatch(t *testing.T) {
	sim := unlockedSim(t, mainBase)
	// lowest bit of the protect field stuck at zero
	sim.StatusHook = func(s uint32) uint32 { return s &^ (1 << 10) }
	f := testFlash(sim, Main, true)

	err := f.WriteProtect()
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("WriteProtect = %v, want %v", err, ErrWrite)
	}
	if ExitCode(err) != -11 {
		t.Errorf("ExitCode = %d, want -11", ExitCode(err))
	}
	var pm *ProtectionMismatchError
	if !errors.As(err, &pm) {
		t.Fatalf("WriteProtect = %v, want a *ProtectionMismatchError", err)
	}
	if pm.Want != 0x0F || pm.Got != 0x0E {
		t.Errorf("mismatch want/got = %#x/%#x, want 0xf/0xe", pm.Want, pm.Got)
	}
}
