package isa

import "fmt"

// Disassemble renders the instruction starting at words[0] back to assembly
// text, reading immediate operands from the following slots. It returns the
// text and the number of words consumed. An unmatched word renders as a raw
// hex literal and consumes one slot.
func Disassemble(words []uint16) (string, int) {
	if len(words) == 0 {
		return "", 0
	}
	w := words[0]
	inst, err := Decode(w)
	if err != nil {
		return fmt.Sprintf("0x%04X", w), 1
	}

	size := inst.WordCount()
	op := func(n int) uint16 {
		if n < len(words) {
			return words[n]
		}
		return 0
	}

	switch inst {
	case LOAD:
		return fmt.Sprintf("LOAD R%d, %d", Rx(w), op(1)), size
	case LOADN:
		return fmt.Sprintf("LOADN R%d, #%d", Rx(w), op(1)), size
	case STORE:
		return fmt.Sprintf("STORE %d, R%d", op(1), Rx(w)), size
	case STOREN:
		return fmt.Sprintf("STOREN %d, #%d", op(1), op(2)), size
	case LOADI, STOREI, CMP, OUTCHAR, NOT, INPUT, OUTPUT:
		return fmt.Sprintf("%s R%d, R%d", inst, Rx(w), Ry(w)), size
	case MOV:
		switch Bits(w, 0, 1) {
		case 0:
			return fmt.Sprintf("MOV R%d, R%d", Rx(w), Ry(w)), size
		case 1:
			return fmt.Sprintf("MOV R%d, SP", Rx(w)), size
		default:
			return fmt.Sprintf("MOV SP, R%d", Rx(w)), size
		}
	case ADD, ADDC, SUB, SUBC, MUL, DIV, MOD, AND, OR, XOR:
		return fmt.Sprintf("%s R%d, R%d, R%d", inst, Rx(w), Ry(w), Rz(w)), size
	case INC, DEC:
		return fmt.Sprintf("%s R%d", inst, Rx(w)), size
	case SHIFTL0, SHIFTL1, SHIFTR0, SHIFTR1, ROTL, ROTR:
		return fmt.Sprintf("%s R%d, %d", inst, Rx(w), Bits(w, 0, 3)), size
	case INCHAR, SOUND:
		return fmt.Sprintf("%s R%d", inst, Rx(w)), size
	case PUSH, POP:
		if Bits(w, 6, 6) == 1 {
			return fmt.Sprintf("%s FR", inst), size
		}
		return fmt.Sprintf("%s R%d", inst, Rx(w)), size
	default:
		if inst.IsJump() || inst.IsCall() {
			return fmt.Sprintf("%s %d", inst, op(1)), size
		}
		// RTS, RTI, NOP, HALT, CLEARC, SETC, BREAKP
		return inst.String(), size
	}
}
