package vm

import (
	"errors"
	"testing"

	"github.com/lookbusy1344/icmc-emulator/isa"
)

func TestMemoryAccess(t *testing.T) {
	m := New()

	if v, err := m.Mem(0); err != nil || v != 0 {
		t.Fatalf("Mem(0) = %d, %v", v, err)
	}
	if err := m.SetMem(0, 0x1); err != nil {
		t.Fatalf("SetMem: %v", err)
	}
	if v, _ := m.Mem(0); v != 0x1 {
		t.Fatalf("Mem(0) = %d after SetMem", v)
	}

	if v, err := m.Mem(MemorySize - 1); err != nil || v != 0 {
		t.Fatalf("Mem(32767) = %d, %v", v, err)
	}
	if err := m.SetMem(MemorySize-1, 42); err != nil {
		t.Fatalf("SetMem(32767): %v", err)
	}

	_, err := m.Mem(MemorySize)
	var memErr *InvalidMemoryIndexError
	if !errors.As(err, &memErr) {
		t.Fatalf("Mem(32768) error = %v, want InvalidMemoryIndexError", err)
	}
	if memErr.Index != MemorySize {
		t.Errorf("error index = %d", memErr.Index)
	}
	if err := m.SetMem(MemorySize, 1); !errors.As(err, &memErr) {
		t.Fatalf("SetMem(32768) error = %v", err)
	}
	if _, err := m.Mem(-1); !errors.As(err, &memErr) {
		t.Fatalf("Mem(-1) error = %v", err)
	}
}

func TestRegisterAccess(t *testing.T) {
	m := New()

	for n := 0; n < NumRegisters; n++ {
		if err := m.SetReg(n, uint16(n+10)); err != nil {
			t.Fatalf("SetReg(%d): %v", n, err)
		}
		if v, err := m.Reg(n); err != nil || v != uint16(n+10) {
			t.Fatalf("Reg(%d) = %d, %v", n, v, err)
		}
	}

	var regErr *InvalidRegisterError
	if _, err := m.Reg(8); !errors.As(err, &regErr) {
		t.Fatalf("Reg(8) error = %v", err)
	}
	if err := m.SetReg(-1, 0); !errors.As(err, &regErr) {
		t.Fatalf("SetReg(-1) error = %v", err)
	}
}

func TestFlagAccess(t *testing.T) {
	m := New()

	if err := m.SetFlag(isa.FlagCarry, true); err != nil {
		t.Fatalf("SetFlag: %v", err)
	}
	if v, err := m.Flag(isa.FlagCarry); err != nil || !v {
		t.Fatalf("Flag(carry) = %v, %v", v, err)
	}

	var flagErr *InvalidFlagError
	if _, err := m.Flag(16); !errors.As(err, &flagErr) {
		t.Fatalf("Flag(16) error = %v", err)
	}
	if err := m.SetFlag(-1, true); !errors.As(err, &flagErr) {
		t.Fatalf("SetFlag(-1) error = %v", err)
	}
}

func TestIncPCBoundary(t *testing.T) {
	m := New()

	if err := m.IncPC(MemorySize); err != nil {
		t.Fatalf("IncPC to 32768: %v", err)
	}
	if m.PC() != MemorySize {
		t.Fatalf("PC = %d", m.PC())
	}

	var maxErr *MaximumMemoryReachedError
	if err := m.IncPC(1); !errors.As(err, &maxErr) {
		t.Fatalf("IncPC past end error = %v", err)
	}
	if m.PC() != MemorySize {
		t.Fatalf("PC changed on failed IncPC: %d", m.PC())
	}
}

func TestSetSPBoundary(t *testing.T) {
	m := New()

	if err := m.SetSP(MemorySize); err != nil {
		t.Fatalf("SetSP(32768): %v", err)
	}
	var maxErr *MaximumMemoryReachedError
	if err := m.SetSP(MemorySize + 1); !errors.As(err, &maxErr) {
		t.Fatalf("SetSP(32769) error = %v", err)
	}
}

func TestNewMachineState(t *testing.T) {
	m := New()

	if m.State() != StateRunning {
		t.Errorf("new machine state = %v", m.State())
	}
	if m.SP() != isa.RegionStack.High {
		t.Errorf("new machine SP = %d, want %d", m.SP(), isa.RegionStack.High)
	}
	if m.PC() != 0 || m.IR() != 0 {
		t.Errorf("new machine PC/IR = %d/%d", m.PC(), m.IR())
	}
}

func TestPauseResume(t *testing.T) {
	m := New()

	m.Pause()
	if m.State() != StatePaused {
		t.Fatalf("state after Pause = %v", m.State())
	}
	// Paused machine: Step is a no-op.
	if err := m.SetMem(0, isa.LOADN.BaseWord()); err != nil {
		t.Fatal(err)
	}
	if err := m.Step(); err != nil {
		t.Fatalf("paused Step: %v", err)
	}
	if m.PC() != 0 {
		t.Fatalf("paused Step moved PC to %d", m.PC())
	}

	m.Resume()
	if m.State() != StateRunning {
		t.Fatalf("state after Resume = %v", m.State())
	}
}

func TestReset(t *testing.T) {
	m := New()
	_ = m.SetMem(100, 7)
	_ = m.SetReg(3, 9)
	_ = m.SetPC(50)
	m.Pause()

	m.Reset()

	if v, _ := m.Mem(100); v != 0 {
		t.Errorf("memory survived reset: %d", v)
	}
	if v, _ := m.Reg(3); v != 0 {
		t.Errorf("register survived reset: %d", v)
	}
	if m.PC() != 0 || m.SP() != isa.RegionStack.High || m.State() != StateRunning {
		t.Errorf("reset state: PC=%d SP=%d state=%v", m.PC(), m.SP(), m.State())
	}
}

func TestSnapshot(t *testing.T) {
	m := New()
	_ = m.SetReg(0, 11)
	_ = m.SetReg(7, 22)
	_ = m.SetPC(5)
	_ = m.SetFlag(isa.FlagZero, true)

	snap := m.Snapshot()
	if snap.Registers[0] != 11 || snap.Registers[7] != 22 {
		t.Errorf("snapshot registers = %v", snap.Registers)
	}
	if snap.PC != 5 || snap.SP != isa.RegionStack.High {
		t.Errorf("snapshot PC/SP = %d/%d", snap.PC, snap.SP)
	}
	if !snap.Flags[isa.FlagZero] {
		t.Error("snapshot flags missing zero bit")
	}

	// Snapshot is a copy; mutating the machine afterwards must not change it.
	_ = m.SetReg(0, 99)
	if snap.Registers[0] != 11 {
		t.Error("snapshot aliases machine state")
	}
}

func TestStepAtEndOfMemory(t *testing.T) {
	m := New()
	if err := m.SetPC(MemorySize); err != nil {
		t.Fatal(err)
	}
	err := m.Step()
	var memErr *InvalidMemoryIndexError
	if !errors.As(err, &memErr) {
		t.Fatalf("Step at PC=32768 error = %v", err)
	}
}
