// Package encoder is the second assembly pass: it turns parsed statements
// into the 16-bit word stream loaded into processor RAM, packing operand
// fields into the don't-care slots of each instruction mask and resolving
// identifiers through the program's label table.
package encoder

import (
	"fmt"

	"github.com/lookbusy1344/icmc-emulator/isa"
	"github.com/lookbusy1344/icmc-emulator/parser"
)

// frBit marks the FR form of PUSH and POP in the instruction word.
const frBit = 1 << 6

// MOV sub-operation selectors in the low two bits of the instruction word.
const (
	movRegReg = 0
	movRegSP  = 1
	movSPReg  = 3
)

// EncodeProgram emits the word stream for a parsed program. The returned
// slice is positioned so that words[st.Addr] is the first word of each
// statement.
func EncodeProgram(prog *parser.Program) ([]uint16, error) {
	var words []uint16
	for _, st := range prog.Statements {
		w, err := EncodeStatement(st, prog.Symbols)
		if err != nil {
			return nil, err
		}
		words = append(words, w...)
	}
	return words, nil
}

// EncodeStatement emits the words of a single statement.
func EncodeStatement(st *parser.Statement, symbols *parser.SymbolTable) ([]uint16, error) {
	switch st.Kind {
	case parser.StmtVar:
		return make([]uint16, st.Count), nil
	case parser.StmtString:
		words := make([]uint16, len(st.Text))
		for i := 0; i < len(st.Text); i++ {
			words[i] = uint16(st.Text[i])
		}
		return words, nil
	case parser.StmtInstruction:
		return encodeInstruction(st, symbols)
	}
	return nil, fmt.Errorf("unknown statement kind %d", st.Kind)
}

// encodeInstruction packs operand fields into the instruction's base word and
// appends immediate operand words.
func encodeInstruction(st *parser.Statement, symbols *parser.SymbolTable) ([]uint16, error) {
	inst := st.Inst
	base := inst.BaseWord()
	ops := st.Operands

	switch inst {
	case isa.LOAD, isa.LOADN: // R, value-word
		addr, err := resolve(ops[1], symbols)
		if err != nil {
			return nil, err
		}
		return []uint16{base | rx(ops[0]), addr}, nil

	case isa.STORE: // value-word, R
		addr, err := resolve(ops[0], symbols)
		if err != nil {
			return nil, err
		}
		return []uint16{base | rx(ops[1]), addr}, nil

	case isa.STOREN: // addr-word, value-word
		addr, err := resolve(ops[0], symbols)
		if err != nil {
			return nil, err
		}
		value, err := resolve(ops[1], symbols)
		if err != nil {
			return nil, err
		}
		return []uint16{base, addr, value}, nil

	case isa.LOADI, isa.STOREI, isa.CMP, isa.NOT,
		isa.OUTCHAR, isa.INPUT, isa.OUTPUT:
		return []uint16{base | rx(ops[0]) | ry(ops[1])}, nil

	case isa.MOV:
		return []uint16{encodeMov(base, ops)}, nil

	case isa.ADD, isa.ADDC, isa.SUB, isa.SUBC, isa.MUL, isa.DIV,
		isa.MOD, isa.AND, isa.OR, isa.XOR:
		return []uint16{base | rx(ops[0]) | ry(ops[1]) | rz(ops[2])}, nil

	case isa.INC, isa.DEC, isa.INCHAR, isa.SOUND:
		return []uint16{base | rx(ops[0])}, nil

	case isa.SHIFTL0, isa.SHIFTL1, isa.SHIFTR0, isa.SHIFTR1,
		isa.ROTL, isa.ROTR:
		return []uint16{base | rx(ops[0]) | ops[1].Value}, nil

	case isa.PUSH, isa.POP:
		if ops[0].Keyword == parser.KwFR {
			return []uint16{base | frBit}, nil
		}
		return []uint16{base | rx(ops[0])}, nil

	default:
		if inst.IsJump() || inst.IsCall() {
			target, err := resolve(ops[0], symbols)
			if err != nil {
				return nil, err
			}
			return []uint16{base, target}, nil
		}
		// RTS, RTI, NOP, HALT, CLEARC, SETC, BREAKP
		return []uint16{base}, nil
	}
}

// encodeMov selects the MOV sub-operation from the operand forms.
func encodeMov(base uint16, ops []parser.Token) uint16 {
	first, second := ops[0], ops[1]
	if first.Keyword == parser.KwSP {
		return base | rx(second) | movSPReg
	}
	if second.Keyword == parser.KwSP {
		return base | rx(first) | movRegSP
	}
	return base | rx(first) | ry(second) | movRegReg
}

// resolve returns the 16-bit value of an address or immediate operand token,
// looking identifiers up in the label table.
func resolve(tok parser.Token, symbols *parser.SymbolTable) (uint16, error) {
	if tok.Type == parser.TokenIdentifier {
		addr, ok := symbols.Get(tok.Text)
		if !ok {
			return 0, &parser.UndefinedLabelError{Name: tok.Text, Pos: tok.Pos}
		}
		return addr, nil
	}
	return tok.Value, nil
}

// rx packs a register operand token into the Rx field.
func rx(tok parser.Token) uint16 {
	n, _ := tok.IsRegister()
	return uint16(n) << isa.RxLow
}

// ry packs a register operand token into the Ry field.
func ry(tok parser.Token) uint16 {
	n, _ := tok.IsRegister()
	return uint16(n) << isa.RyLow
}

// rz packs a register operand token into the Rz field.
func rz(tok parser.Token) uint16 {
	n, _ := tok.IsRegister()
	return uint16(n) << isa.RzLow
}

// Assemble runs both assembly passes over source text, returning the word
// stream and the parsed program.
func Assemble(src, filename string) ([]uint16, *parser.Program, error) {
	prog, err := parser.Parse(src, filename)
	if err != nil {
		return nil, nil, err
	}
	words, err := EncodeProgram(prog)
	if err != nil {
		return nil, nil, err
	}
	return words, prog, nil
}
