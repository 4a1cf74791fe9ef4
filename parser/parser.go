package parser

import (
	"fmt"

	"github.com/lookbusy1344/icmc-emulator/isa"
)

// maxProgramWords bounds the emitted word stream to the processor's RAM.
const maxProgramWords = 32768

// StatementKind distinguishes the statement forms of a source line.
type StatementKind int

const (
	// StmtInstruction is an ISA mnemonic with its operands.
	StmtInstruction StatementKind = iota
	// StmtVar reserves a number of zeroed words.
	StmtVar
	// StmtString emits the character codes of a string literal.
	StmtString
)

// Statement is one parsed statement with its assigned address.
type Statement struct {
	Kind     StatementKind
	Inst     isa.Instruction // valid for StmtInstruction
	Operands []Token         // operand tokens in syntax order
	Text     string          // string payload for StmtString
	Count    int             // reserved word count for StmtVar
	Size     int             // words occupied
	Addr     uint16
	Pos      Position
}

// Program is the result of the first assembly pass: sized, addressed
// statements and the label table. Word emission is the second pass
// (package encoder).
type Program struct {
	Statements []*Statement
	Symbols    *SymbolTable
}

// Parser validates the token stream against the per-instruction operand
// grammars and assigns label addresses.
type Parser struct {
	lex  *Lexer
	tok  Token
	errs *ErrorList
	addr int
	prog *Program
}

// Parse runs the first assembly pass over src. On failure it returns an
// *ErrorList holding every error found.
func Parse(src, filename string) (*Program, error) {
	p := &Parser{
		lex:  NewLexer(src, filename),
		errs: &ErrorList{},
		prog: &Program{Symbols: NewSymbolTable()},
	}
	p.next()

	for p.tok.Type != TokenEOF {
		p.parseStatement()
	}

	if p.addr > maxProgramWords {
		p.errs.Add(fmt.Errorf("program occupies %d words, exceeding the %d-word memory", p.addr, maxProgramWords))
	}
	if p.errs.HasErrors() {
		return nil, p.errs
	}
	return p.prog, nil
}

// next advances the lookahead token. Lexer errors are collected and the
// offending text skipped.
func (p *Parser) next() {
	for {
		tok, err := p.lex.NextToken()
		if err != nil {
			p.errs.Add(err)
			continue
		}
		p.tok = tok
		return
	}
}

// sync skips tokens until one that can start a statement, so one bad line
// does not cascade.
func (p *Parser) sync() {
	for {
		switch p.tok.Type {
		case TokenEOF, TokenInstruction, TokenIdentifier:
			return
		case TokenKeyword:
			if p.tok.Keyword == KwVar || p.tok.Keyword == KwString {
				return
			}
		}
		p.next()
	}
}

// fail records err and resynchronizes.
func (p *Parser) fail(err error) {
	p.errs.Add(err)
	p.sync()
}

// emit appends a sized statement at the current address.
func (p *Parser) emit(st *Statement) {
	st.Addr = uint16(p.addr)
	p.addr += st.Size
	p.prog.Statements = append(p.prog.Statements, st)
}

func (p *Parser) parseStatement() {
	switch p.tok.Type {
	case TokenIdentifier:
		p.parseLabel()
	case TokenKeyword:
		switch p.tok.Keyword {
		case KwVar:
			p.parseVar()
		case KwString:
			p.parseString()
		default:
			p.fail(&InvalidRuleError{Token: p.tok})
		}
	case TokenInstruction:
		p.parseInstruction()
	default:
		p.fail(&InvalidRuleError{Token: p.tok})
	}
}

// parseLabel consumes `name:` and records the label at the current address.
func (p *Parser) parseLabel() {
	name := p.tok
	p.next()
	if p.tok.Type != TokenColon {
		p.fail(&UnexpectedTokenError{Expected: "\":\" after label name", Received: p.tok})
		return
	}
	p.next()
	if err := p.prog.Symbols.Define(name.Text, uint16(p.addr), name.Pos); err != nil {
		p.errs.Add(err)
	}
}

// parseVar consumes `var #N`, reserving N words.
func (p *Parser) parseVar() {
	pos := p.tok.Pos
	p.next()
	if p.tok.Type != TokenHash {
		p.fail(&UnexpectedTokenError{Expected: "\"#\" after var", Received: p.tok})
		return
	}
	p.next()
	if !p.tok.Type.IsNumber() {
		p.fail(&UnexpectedTokenError{Expected: "word count", Received: p.tok})
		return
	}
	count := int(p.tok.Value)
	p.next()
	p.emit(&Statement{Kind: StmtVar, Count: count, Size: count, Pos: pos})
}

// parseString consumes `string "..."`, emitting one word per character.
func (p *Parser) parseString() {
	pos := p.tok.Pos
	p.next()
	if p.tok.Type != TokenStringLit {
		p.fail(&UnexpectedTokenError{Expected: "string literal", Received: p.tok})
		return
	}
	text := p.tok.Text
	p.next()
	p.emit(&Statement{Kind: StmtString, Text: text, Size: len(text), Pos: pos})
}

// parseInstruction validates the operand grammar of the mnemonic at the
// lookahead and emits its statement.
func (p *Parser) parseInstruction() {
	inst := p.tok.Inst
	pos := p.tok.Pos
	p.next()

	ops, ok := p.parseOperands(inst)
	if !ok {
		return
	}
	p.emit(&Statement{
		Kind:     StmtInstruction,
		Inst:     inst,
		Operands: ops,
		Size:     inst.WordCount(),
		Pos:      pos,
	})
}

// parseOperands enforces the exact operand grammar of each mnemonic.
func (p *Parser) parseOperands(inst isa.Instruction) ([]Token, bool) {
	switch inst {
	case isa.LOAD: // LOAD R, END
		return p.sequence(p.register, p.comma, p.address)

	case isa.LOADN: // LOADN R, #NR
		return p.sequence(p.register, p.comma, p.hash, p.immediate)

	case isa.LOADI, isa.STOREI, isa.CMP, isa.NOT,
		isa.OUTCHAR, isa.INPUT, isa.OUTPUT: // two registers
		return p.sequence(p.register, p.comma, p.register)

	case isa.STORE: // STORE END, R
		return p.sequence(p.address, p.comma, p.register)

	case isa.STOREN: // STOREN END, #NR
		return p.sequence(p.address, p.comma, p.hash, p.immediate)

	case isa.MOV: // MOV R,R | MOV R,SP | MOV SP,R
		return p.parseMovOperands()

	case isa.ADD, isa.ADDC, isa.SUB, isa.SUBC, isa.MUL, isa.DIV,
		isa.MOD, isa.AND, isa.OR, isa.XOR: // three registers
		return p.sequence(p.register, p.comma, p.register, p.comma, p.register)

	case isa.INC, isa.DEC, isa.INCHAR, isa.SOUND: // single register
		return p.sequence(p.register)

	case isa.SHIFTL0, isa.SHIFTL1, isa.SHIFTR0, isa.SHIFTR1,
		isa.ROTL, isa.ROTR: // R, count
		return p.sequence(p.register, p.comma, p.shiftCount)

	case isa.PUSH, isa.POP: // register or FR
		return p.parseStackOperand()

	case isa.RTS, isa.RTI, isa.NOP, isa.HALT,
		isa.CLEARC, isa.SETC, isa.BREAKP: // no operands
		return nil, true

	default:
		if inst.IsJump() || inst.IsCall() {
			return p.sequence(p.address)
		}
		p.fail(&InvalidRuleError{Token: p.tok})
		return nil, false
	}
}

// operandFn consumes one grammar element, returning its token (or none for
// pure punctuation) and whether it matched.
type operandFn func() (Token, bool, bool)

// sequence runs grammar elements in order, collecting operand tokens.
func (p *Parser) sequence(fns ...operandFn) ([]Token, bool) {
	var ops []Token
	for _, fn := range fns {
		tok, keep, ok := fn()
		if !ok {
			return nil, false
		}
		if keep {
			ops = append(ops, tok)
		}
	}
	return ops, true
}

func (p *Parser) register() (Token, bool, bool) {
	if _, ok := p.tok.IsRegister(); !ok {
		p.fail(&UnexpectedTokenError{Expected: "register R0..R7", Received: p.tok})
		return Token{}, false, false
	}
	tok := p.tok
	p.next()
	return tok, true, true
}

func (p *Parser) comma() (Token, bool, bool) {
	if p.tok.Type != TokenComma {
		p.fail(&UnexpectedTokenError{Expected: "\",\"", Received: p.tok})
		return Token{}, false, false
	}
	p.next()
	return Token{}, false, true
}

func (p *Parser) hash() (Token, bool, bool) {
	if p.tok.Type != TokenHash {
		p.fail(&UnexpectedTokenError{Expected: "\"#\"", Received: p.tok})
		return Token{}, false, false
	}
	p.next()
	return Token{}, false, true
}

// address accepts a numeric literal or an identifier resolving to an address.
func (p *Parser) address() (Token, bool, bool) {
	if !p.tok.Type.IsNumber() && p.tok.Type != TokenIdentifier {
		p.fail(&UnexpectedTokenError{Expected: "address or label", Received: p.tok})
		return Token{}, false, false
	}
	tok := p.tok
	p.next()
	return tok, true, true
}

// immediate accepts a numeric literal, a character literal or an identifier.
func (p *Parser) immediate() (Token, bool, bool) {
	if !p.tok.Type.IsNumber() && p.tok.Type != TokenCharLit && p.tok.Type != TokenIdentifier {
		p.fail(&UnexpectedTokenError{Expected: "number, character or label", Received: p.tok})
		return Token{}, false, false
	}
	tok := p.tok
	p.next()
	return tok, true, true
}

// shiftCount accepts a numeric literal that fits the 4-bit count field.
func (p *Parser) shiftCount() (Token, bool, bool) {
	if !p.tok.Type.IsNumber() {
		p.fail(&UnexpectedTokenError{Expected: "shift count", Received: p.tok})
		return Token{}, false, false
	}
	if p.tok.Value > 15 {
		p.fail(&InvalidRuleError{Token: p.tok})
		return Token{}, false, false
	}
	tok := p.tok
	p.next()
	return tok, true, true
}

// parseMovOperands accepts the three MOV forms: R,R; R,SP; SP,R.
func (p *Parser) parseMovOperands() ([]Token, bool) {
	first := p.tok
	_, firstIsReg := first.IsRegister()
	firstIsSP := first.Type == TokenKeyword && first.Keyword == KwSP
	if !firstIsReg && !firstIsSP {
		p.fail(&UnexpectedTokenError{Expected: "register or SP", Received: p.tok})
		return nil, false
	}
	p.next()
	if _, _, ok := p.comma(); !ok {
		return nil, false
	}

	second := p.tok
	_, secondIsReg := second.IsRegister()
	secondIsSP := second.Type == TokenKeyword && second.Keyword == KwSP
	switch {
	case firstIsReg && (secondIsReg || secondIsSP):
	case firstIsSP && secondIsReg:
	default:
		p.fail(&UnexpectedTokenError{Expected: "register or SP", Received: p.tok})
		return nil, false
	}
	p.next()
	return []Token{first, second}, true
}

// parseStackOperand accepts a general register or FR for PUSH and POP.
func (p *Parser) parseStackOperand() ([]Token, bool) {
	_, isReg := p.tok.IsRegister()
	isFR := p.tok.Type == TokenKeyword && p.tok.Keyword == KwFR
	if !isReg && !isFR {
		p.fail(&UnexpectedTokenError{Expected: "register or FR", Received: p.tok})
		return nil, false
	}
	tok := p.tok
	p.next()
	return []Token{tok}, true
}
