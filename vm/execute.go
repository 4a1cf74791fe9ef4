package vm

import "github.com/lookbusy1344/icmc-emulator/isa"

// execute dispatches one decoded instruction. The operand register indices
// rx/ry/rz were extracted during decode; PC points at the word after the
// opcode, where immediate operands live.
func (m *Machine) execute(inst isa.Instruction) error {
	switch inst {
	case isa.LOAD:
		addr, err := m.Mem(m.pc)
		if err != nil {
			return err
		}
		v, err := m.Mem(int(addr))
		if err != nil {
			return err
		}
		if err := m.SetReg(m.rx, v); err != nil {
			return err
		}
		return m.IncPC(1)

	case isa.LOADN:
		v, err := m.Mem(m.pc)
		if err != nil {
			return err
		}
		if err := m.SetReg(m.rx, v); err != nil {
			return err
		}
		return m.IncPC(1)

	case isa.LOADI:
		addr, err := m.Reg(m.ry)
		if err != nil {
			return err
		}
		v, err := m.Mem(int(addr))
		if err != nil {
			return err
		}
		return m.SetReg(m.rx, v)

	case isa.STORE:
		addr, err := m.Mem(m.pc)
		if err != nil {
			return err
		}
		v, err := m.Reg(m.rx)
		if err != nil {
			return err
		}
		if err := m.SetMem(int(addr), v); err != nil {
			return err
		}
		return m.IncPC(1)

	case isa.STOREN:
		addr, err := m.Mem(m.pc)
		if err != nil {
			return err
		}
		v, err := m.Mem(m.pc + 1)
		if err != nil {
			return err
		}
		if err := m.SetMem(int(addr), v); err != nil {
			return err
		}
		return m.IncPC(2)

	case isa.STOREI:
		addr, err := m.Reg(m.rx)
		if err != nil {
			return err
		}
		v, err := m.Reg(m.ry)
		if err != nil {
			return err
		}
		return m.SetMem(int(addr), v)

	case isa.MOV:
		switch isa.Bits(m.ir, 0, 1) {
		case 0:
			v, err := m.Reg(m.ry)
			if err != nil {
				return err
			}
			return m.SetReg(m.rx, v)
		case 1:
			return m.SetReg(m.rx, uint16(m.sp))
		default:
			v, err := m.Reg(m.rx)
			if err != nil {
				return err
			}
			return m.SetSP(int(v))
		}

	case isa.ADD, isa.ADDC:
		return m.arithmetic(inst)
	case isa.SUB, isa.SUBC:
		return m.arithmetic(inst)
	case isa.MUL, isa.DIV, isa.MOD:
		return m.arithmetic(inst)

	case isa.INC, isa.DEC:
		a, err := m.Reg(m.rx)
		if err != nil {
			return err
		}
		if inst == isa.INC {
			sum := uint32(a) + 1
			result := uint16(sum)
			m.fr[isa.FlagCarry] = addCarry(sum)
			m.fr[isa.FlagOverflow] = addOverflow(a, 1, result)
			m.fr.updateZN(result)
			return m.SetReg(m.rx, result)
		}
		result := a - 1
		m.fr[isa.FlagCarry] = a < 1
		m.fr[isa.FlagOverflow] = subOverflow(a, 1, result)
		m.fr.updateZN(result)
		return m.SetReg(m.rx, result)

	case isa.AND, isa.OR, isa.XOR:
		a, err := m.Reg(m.ry)
		if err != nil {
			return err
		}
		b, err := m.Reg(m.rz)
		if err != nil {
			return err
		}
		var result uint16
		switch inst {
		case isa.AND:
			result = a & b
		case isa.OR:
			result = a | b
		case isa.XOR:
			result = a ^ b
		}
		m.fr.updateZN(result)
		return m.SetReg(m.rx, result)

	case isa.NOT:
		a, err := m.Reg(m.ry)
		if err != nil {
			return err
		}
		result := ^a
		m.fr.updateZN(result)
		return m.SetReg(m.rx, result)

	case isa.SHIFTL0, isa.SHIFTL1, isa.SHIFTR0, isa.SHIFTR1, isa.ROTL, isa.ROTR:
		return m.shift(inst)

	case isa.CMP:
		a, err := m.Reg(m.rx)
		if err != nil {
			return err
		}
		b, err := m.Reg(m.ry)
		if err != nil {
			return err
		}
		m.fr[isa.FlagGreater] = a > b
		m.fr[isa.FlagLesser] = a < b
		m.fr[isa.FlagEqual] = a == b
		m.fr[isa.FlagZero] = a == b
		return nil

	case isa.RTS, isa.RTI:
		v, err := m.pop()
		if err != nil {
			return err
		}
		ret := int(v)
		if inst == isa.RTS {
			ret++
		}
		return m.SetPC(ret)

	case isa.PUSH:
		v, err := m.stackSource()
		if err != nil {
			return err
		}
		return m.push(v)

	case isa.POP:
		v, err := m.pop()
		if err != nil {
			return err
		}
		if isa.Bits(m.ir, 6, 6) == 1 {
			m.fr.FromWord(v)
			return nil
		}
		return m.SetReg(m.rx, v)

	case isa.INPUT:
		port, err := m.Reg(m.ry)
		if err != nil {
			return err
		}
		return m.SetReg(m.rx, m.dev.ReadPort(port))

	case isa.OUTPUT:
		port, err := m.Reg(m.ry)
		if err != nil {
			return err
		}
		v, err := m.Reg(m.rx)
		if err != nil {
			return err
		}
		m.dev.WritePort(port, v)
		return nil

	case isa.OUTCHAR:
		code, err := m.Reg(m.rx)
		if err != nil {
			return err
		}
		pos, err := m.Reg(m.ry)
		if err != nil {
			return err
		}
		m.dev.WriteChar(code, pos)
		return nil

	case isa.INCHAR:
		return m.SetReg(m.rx, m.dev.ReadChar())

	case isa.SOUND:
		v, err := m.Reg(m.rx)
		if err != nil {
			return err
		}
		m.dev.EmitSound(v)
		return nil

	case isa.NOP:
		return nil

	case isa.HALT:
		m.state = StateHalted
		return nil

	case isa.BREAKP:
		m.state = StatePaused
		return nil

	case isa.CLEARC:
		m.fr[isa.FlagCarry] = false
		return nil

	case isa.SETC:
		m.fr[isa.FlagCarry] = true
		return nil

	default:
		if inst.IsJump() {
			return m.jump(inst)
		}
		if inst.IsCall() {
			return m.call(inst)
		}
		return &isa.InvalidInstructionError{Word: m.ir}
	}
}

// arithmetic performs the three-register ALU operations with their flag
// updates. DIV and MOD by zero set the DIV_BY_ZERO flag and leave the
// destination unchanged.
func (m *Machine) arithmetic(inst isa.Instruction) error {
	a, err := m.Reg(m.ry)
	if err != nil {
		return err
	}
	b, err := m.Reg(m.rz)
	if err != nil {
		return err
	}

	var result uint16
	switch inst {
	case isa.ADD, isa.ADDC:
		sum := uint32(a) + uint32(b)
		if inst == isa.ADDC && m.fr[isa.FlagCarry] {
			sum++
		}
		result = uint16(sum)
		m.fr[isa.FlagCarry] = addCarry(sum)
		m.fr[isa.FlagOverflow] = addOverflow(a, b, result)

	case isa.SUB, isa.SUBC:
		result = a - b
		if inst == isa.SUBC && m.fr[isa.FlagCarry] {
			result++
		}
		m.fr[isa.FlagCarry] = a < b
		m.fr[isa.FlagOverflow] = subOverflow(a, b, result)

	case isa.MUL:
		product := uint32(a) * uint32(b)
		result = uint16(product)
		m.fr[isa.FlagCarry] = product > isa.MaxWord
		signed := int32(int16(a)) * int32(int16(b))
		m.fr[isa.FlagOverflow] = signed < -32768 || signed > 32767

	case isa.DIV, isa.MOD:
		m.fr[isa.FlagDivByZero] = b == 0
		if b == 0 {
			return nil
		}
		if inst == isa.DIV {
			result = a / b
		} else {
			result = a % b
		}
	}

	m.fr.updateZN(result)
	return m.SetReg(m.rx, result)
}

// shift performs the shift and rotate instructions. The count lives in the
// low four bits of the instruction word; rotates wrap modulo 16.
func (m *Machine) shift(inst isa.Instruction) error {
	a, err := m.Reg(m.rx)
	if err != nil {
		return err
	}
	n := uint(isa.Bits(m.ir, 0, 3))

	var result uint16
	switch inst {
	case isa.SHIFTL0:
		result = a << n
	case isa.SHIFTL1:
		result = ^(^a << n)
	case isa.SHIFTR0:
		result = a >> n
	case isa.SHIFTR1:
		result = ^(^a >> n)
	case isa.ROTL:
		n %= isa.BitsPerWord
		result = a<<n | a>>(isa.BitsPerWord-n)
	case isa.ROTR:
		n %= isa.BitsPerWord
		result = a>>n | a<<(isa.BitsPerWord-n)
	}

	m.fr.updateZN(result)
	return m.SetReg(m.rx, result)
}

// jump reads the target from the operand word and takes it when the
// instruction's predicate over FR holds; otherwise it skips the operand.
func (m *Machine) jump(inst isa.Instruction) error {
	target, err := m.Mem(m.pc)
	if err != nil {
		return err
	}
	if !m.fr.condition(inst) {
		return m.IncPC(1)
	}
	return m.SetPC(int(target))
}

// call pushes the current PC (the operand word's address; RTS compensates
// with +1) and jumps when the predicate holds.
func (m *Machine) call(inst isa.Instruction) error {
	target, err := m.Mem(m.pc)
	if err != nil {
		return err
	}
	if !m.fr.condition(inst) {
		return m.IncPC(1)
	}
	if err := m.push(uint16(m.pc)); err != nil {
		return err
	}
	return m.SetPC(int(target))
}

// stackSource selects the value PUSH writes: FR when bit 6 of the
// instruction word is set, otherwise register rx.
func (m *Machine) stackSource() (uint16, error) {
	if isa.Bits(m.ir, 6, 6) == 1 {
		return m.fr.ToWord(), nil
	}
	return m.Reg(m.rx)
}

// push writes v at SP and moves SP one cell down. Pushing while SP is already
// below the stack region's lowest address sets STACK_UNDERFLOW and fails.
func (m *Machine) push(v uint16) error {
	if m.sp < isa.RegionStack.Low {
		m.fr[isa.FlagStackUnderflow] = true
		return &StackUnderflowError{Addr: m.sp}
	}
	if err := m.SetMem(m.sp, v); err != nil {
		return err
	}
	m.sp--
	return nil
}

// pop moves SP one cell up and reads the value there. Moving SP above the
// stack region's highest address sets STACK_OVERFLOW and fails.
func (m *Machine) pop() (uint16, error) {
	if m.sp+1 > isa.RegionStack.High {
		m.fr[isa.FlagStackOverflow] = true
		return 0, &StackOverflowError{Addr: m.sp}
	}
	m.sp++
	return m.Mem(m.sp)
}
