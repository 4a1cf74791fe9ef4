package vm

import "github.com/lookbusy1344/icmc-emulator/isa"

// Flags is the processor flag register: named condition bits at fixed
// indices, addressable individually and convertible to a memory word for
// PUSH FR / POP FR.
type Flags [isa.NumFlags]bool

// ToWord packs the flag bits into a 16-bit word, bit i holding flag i.
func (f *Flags) ToWord() uint16 {
	var w uint16
	for i, set := range f {
		if set {
			w |= 1 << i
		}
	}
	return w
}

// FromWord unpacks a 16-bit word into the flag bits.
func (f *Flags) FromWord(w uint16) {
	for i := range f {
		f[i] = w&(1<<i) != 0
	}
}

// updateZN sets the ZERO and NEGATIVE flags from an operation result.
func (f *Flags) updateZN(result uint16) {
	f[isa.FlagZero] = result == 0
	f[isa.FlagNegative] = result&0x8000 != 0
}

// addCarry reports unsigned overflow of a 16-bit addition. The wide sum is
// computed in 32 bits by the caller.
func addCarry(sum uint32) bool {
	return sum > isa.MaxWord
}

// addOverflow reports signed overflow of a 16-bit addition: both operands
// share a sign bit that differs from the result's.
func addOverflow(a, b, result uint16) bool {
	return (a^b)&0x8000 == 0 && (a^result)&0x8000 != 0
}

// subOverflow reports signed overflow of a 16-bit subtraction.
func subOverflow(a, b, result uint16) bool {
	return (a^b)&0x8000 != 0 && (a^result)&0x8000 != 0
}

// condition evaluates the predicate of a jump or call instruction over the
// flag register. JMP and CALL are unconditional.
func (f *Flags) condition(inst isa.Instruction) bool {
	switch inst {
	case isa.JMP, isa.CALL:
		return true
	case isa.JEQ, isa.CEQ:
		return f[isa.FlagEqual]
	case isa.JNE, isa.CNE:
		return !f[isa.FlagEqual]
	case isa.JZ, isa.CZ:
		return f[isa.FlagZero]
	case isa.JNZ, isa.CNZ:
		return !f[isa.FlagZero]
	case isa.JC, isa.CC:
		return f[isa.FlagCarry]
	case isa.JNC, isa.CNC:
		return !f[isa.FlagCarry]
	case isa.JGR, isa.CGR:
		return f[isa.FlagGreater]
	case isa.JLE, isa.CLE:
		return f[isa.FlagLesser]
	case isa.JEG, isa.CEG:
		return f[isa.FlagEqual] || f[isa.FlagGreater]
	case isa.JEL, isa.CEL:
		return f[isa.FlagEqual] || f[isa.FlagLesser]
	case isa.JOV, isa.COV:
		return f[isa.FlagOverflow]
	case isa.JNO, isa.CNO:
		return !f[isa.FlagOverflow]
	case isa.JDZ, isa.CDZ:
		return f[isa.FlagDivByZero]
	case isa.JN, isa.CN:
		return f[isa.FlagNegative]
	}
	return false
}
