// Package vm implements the ICMC processor: a 32,768-word RAM, eight general
// registers, the PC/SP/IR/FR special registers and the fetch-decode-execute
// step over the instruction set defined in package isa.
package vm

import (
	"fmt"

	"github.com/lookbusy1344/icmc-emulator/isa"
)

// MemorySize is the number of 16-bit cells in processor RAM.
const MemorySize = 32768

// NumRegisters is the number of general-purpose registers.
const NumRegisters = 8

// State is the host-visible execution mode of the machine.
type State int

const (
	// StateRunning means Step executes instructions.
	StateRunning State = iota
	// StatePaused means Step is a no-op until the host resumes. Entered by
	// executing BREAKP.
	StatePaused
	// StateHalted means the program executed HALT.
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateHalted:
		return "halted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Machine is an ICMC processor. It exclusively owns its RAM; hosts observe
// and mutate it only through the accessor methods. Machine is not safe for
// concurrent use; a host that runs it on a worker goroutine must own it
// exclusively there (see package service).
type Machine struct {
	mem  [MemorySize]uint16
	regs [NumRegisters]uint16

	pc int
	sp int
	ir uint16
	fr Flags

	// Operand register indices extracted from the current IR.
	rx, ry, rz int

	state State
	dev   Device
}

// New returns a machine with zeroed memory and registers, SP at the bottom of
// the stack region and the no-op peripheral device attached.
func New() *Machine {
	return &Machine{
		sp:  isa.RegionStack.High,
		dev: NullDevice{},
	}
}

// SetDevice attaches the peripheral device used by the I/O instructions.
// A nil device restores the no-op default.
func (m *Machine) SetDevice(dev Device) {
	if dev == nil {
		dev = NullDevice{}
	}
	m.dev = dev
}

// Reset zeroes memory, registers and flags and returns the machine to the
// running state with SP at the bottom of the stack region.
func (m *Machine) Reset() {
	*m = Machine{sp: isa.RegionStack.High, dev: m.dev}
}

// Mem returns the cell at address i.
func (m *Machine) Mem(i int) (uint16, error) {
	if i < 0 || i >= MemorySize {
		return 0, &InvalidMemoryIndexError{Index: i}
	}
	return m.mem[i], nil
}

// SetMem writes v to the cell at address i.
func (m *Machine) SetMem(i int, v uint16) error {
	if i < 0 || i >= MemorySize {
		return &InvalidMemoryIndexError{Index: i}
	}
	m.mem[i] = v
	return nil
}

// Reg returns the value of general register n.
func (m *Machine) Reg(n int) (uint16, error) {
	if n < 0 || n >= NumRegisters {
		return 0, &InvalidRegisterError{Register: n}
	}
	return m.regs[n], nil
}

// SetReg sets general register n to v.
func (m *Machine) SetReg(n int, v uint16) error {
	if n < 0 || n >= NumRegisters {
		return &InvalidRegisterError{Register: n}
	}
	m.regs[n] = v
	return nil
}

// Flag returns the flag register bit at index bit.
func (m *Machine) Flag(bit int) (bool, error) {
	if bit < 0 || bit >= isa.NumFlags {
		return false, &InvalidFlagError{Bit: bit}
	}
	return m.fr[bit], nil
}

// SetFlag sets the flag register bit at index bit.
func (m *Machine) SetFlag(bit int, v bool) error {
	if bit < 0 || bit >= isa.NumFlags {
		return &InvalidFlagError{Bit: bit}
	}
	m.fr[bit] = v
	return nil
}

// PC returns the program counter.
func (m *Machine) PC() int { return m.pc }

// SP returns the stack pointer.
func (m *Machine) SP() int { return m.sp }

// IR returns the instruction register latched by the last fetch.
func (m *Machine) IR() uint16 { return m.ir }

// State returns the execution mode.
func (m *Machine) State() State { return m.state }

// Resume returns a paused machine to the running state. Halted machines stay
// halted until Reset.
func (m *Machine) Resume() {
	if m.state == StatePaused {
		m.state = StateRunning
	}
}

// Pause moves a running machine to the paused state.
func (m *Machine) Pause() {
	if m.state == StateRunning {
		m.state = StatePaused
	}
}

// SetSP sets the stack pointer. Values past the end of memory are rejected
// with MaximumMemoryReachedError.
func (m *Machine) SetSP(v int) error {
	if v < 0 || v > MemorySize {
		return &MaximumMemoryReachedError{}
	}
	m.sp = v
	return nil
}

// IncPC advances the program counter by k cells. If the result would pass the
// end of memory the counter is left unchanged and MaximumMemoryReachedError
// is returned.
func (m *Machine) IncPC(k int) error {
	if m.pc+k > MemorySize {
		return &MaximumMemoryReachedError{}
	}
	m.pc += k
	return nil
}

// SetPC sets the program counter, subject to the same bound as IncPC.
func (m *Machine) SetPC(v int) error {
	if v < 0 || v > MemorySize {
		return &MaximumMemoryReachedError{}
	}
	m.pc = v
	return nil
}

// Snapshot is an observable copy of the machine's register state.
type Snapshot struct {
	Registers [NumRegisters]uint16
	PC        int
	SP        int
	IR        uint16
	Flags     Flags
	State     State
}

// Snapshot returns a copy of the register state for host display.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Registers: m.regs,
		PC:        m.pc,
		SP:        m.sp,
		IR:        m.ir,
		Flags:     m.fr,
		State:     m.state,
	}
}

// Step runs one fetch-decode-execute cycle. In the paused or halted states it
// does nothing. Errors are returned by value and leave the machine state
// observable at the point of failure; nothing is retried or corrected.
func (m *Machine) Step() error {
	if m.state != StateRunning {
		return nil
	}

	// Fetch.
	ir, err := m.Mem(m.pc)
	if err != nil {
		return err
	}
	m.ir = ir
	if err := m.IncPC(1); err != nil {
		return err
	}

	// Decode.
	m.rx = isa.Rx(m.ir)
	m.ry = isa.Ry(m.ir)
	m.rz = isa.Rz(m.ir)
	inst, err := isa.Decode(m.ir)
	if err != nil {
		return err
	}

	// Execute.
	return m.execute(inst)
}
