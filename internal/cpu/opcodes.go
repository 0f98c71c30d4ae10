package cpu

// initOpcodes populates the 256-entry opcode table: name (for diagnostics
// only), instruction length in bytes, base cycle cost, addressing mode, and
// whether indexed/indirect reads in that slot pay the page-cross penalty.
func (c *CPU) initOpcodes() {
	set := func(op uint8, name string, bytes, cycles uint8, mode AddressingMode, pageCrossOK bool) {
		c.opcodes[op] = instruction{name, bytes, cycles, mode, pageCrossOK}
	}

	// Load/Store
	set(0xA9, "LDA", 2, 2, Immediate, false)
	set(0xA5, "LDA", 2, 3, ZeroPage, false)
	set(0xB5, "LDA", 2, 4, ZeroPageX, false)
	set(0xAD, "LDA", 3, 4, Absolute, false)
	set(0xBD, "LDA", 3, 4, AbsoluteX, true)
	set(0xB9, "LDA", 3, 4, AbsoluteY, true)
	set(0xA1, "LDA", 2, 6, IndexedIndirect, false)
	set(0xB1, "LDA", 2, 5, IndirectIndexed, true)

	set(0xA2, "LDX", 2, 2, Immediate, false)
	set(0xA6, "LDX", 2, 3, ZeroPage, false)
	set(0xB6, "LDX", 2, 4, ZeroPageY, false)
	set(0xAE, "LDX", 3, 4, Absolute, false)
	set(0xBE, "LDX", 3, 4, AbsoluteY, true)

	set(0xA0, "LDY", 2, 2, Immediate, false)
	set(0xA4, "LDY", 2, 3, ZeroPage, false)
	set(0xB4, "LDY", 2, 4, ZeroPageX, false)
	set(0xAC, "LDY", 3, 4, Absolute, false)
	set(0xBC, "LDY", 3, 4, AbsoluteX, true)

	set(0x85, "STA", 2, 3, ZeroPage, false)
	set(0x95, "STA", 2, 4, ZeroPageX, false)
	set(0x8D, "STA", 3, 4, Absolute, false)
	set(0x9D, "STA", 3, 5, AbsoluteX, false)
	set(0x99, "STA", 3, 5, AbsoluteY, false)
	set(0x81, "STA", 2, 6, IndexedIndirect, false)
	set(0x91, "STA", 2, 6, IndirectIndexed, false)

	set(0x86, "STX", 2, 3, ZeroPage, false)
	set(0x96, "STX", 2, 4, ZeroPageY, false)
	set(0x8E, "STX", 3, 4, Absolute, false)

	set(0x84, "STY", 2, 3, ZeroPage, false)
	set(0x94, "STY", 2, 4, ZeroPageX, false)
	set(0x8C, "STY", 3, 4, Absolute, false)

	// Arithmetic
	set(0x69, "ADC", 2, 2, Immediate, false)
	set(0x65, "ADC", 2, 3, ZeroPage, false)
	set(0x75, "ADC", 2, 4, ZeroPageX, false)
	set(0x6D, "ADC", 3, 4, Absolute, false)
	set(0x7D, "ADC", 3, 4, AbsoluteX, true)
	set(0x79, "ADC", 3, 4, AbsoluteY, true)
	set(0x61, "ADC", 2, 6, IndexedIndirect, false)
	set(0x71, "ADC", 2, 5, IndirectIndexed, true)

	set(0xE9, "SBC", 2, 2, Immediate, false)
	set(0xE5, "SBC", 2, 3, ZeroPage, false)
	set(0xF5, "SBC", 2, 4, ZeroPageX, false)
	set(0xED, "SBC", 3, 4, Absolute, false)
	set(0xFD, "SBC", 3, 4, AbsoluteX, true)
	set(0xF9, "SBC", 3, 4, AbsoluteY, true)
	set(0xE1, "SBC", 2, 6, IndexedIndirect, false)
	set(0xF1, "SBC", 2, 5, IndirectIndexed, true)

	// Logical
	set(0x29, "AND", 2, 2, Immediate, false)
	set(0x25, "AND", 2, 3, ZeroPage, false)
	set(0x35, "AND", 2, 4, ZeroPageX, false)
	set(0x2D, "AND", 3, 4, Absolute, false)
	set(0x3D, "AND", 3, 4, AbsoluteX, true)
	set(0x39, "AND", 3, 4, AbsoluteY, true)
	set(0x21, "AND", 2, 6, IndexedIndirect, false)
	set(0x31, "AND", 2, 5, IndirectIndexed, true)

	set(0x09, "ORA", 2, 2, Immediate, false)
	set(0x05, "ORA", 2, 3, ZeroPage, false)
	set(0x15, "ORA", 2, 4, ZeroPageX, false)
	set(0x0D, "ORA", 3, 4, Absolute, false)
	set(0x1D, "ORA", 3, 4, AbsoluteX, true)
	set(0x19, "ORA", 3, 4, AbsoluteY, true)
	set(0x01, "ORA", 2, 6, IndexedIndirect, false)
	set(0x11, "ORA", 2, 5, IndirectIndexed, true)

	set(0x49, "EOR", 2, 2, Immediate, false)
	set(0x45, "EOR", 2, 3, ZeroPage, false)
	set(0x55, "EOR", 2, 4, ZeroPageX, false)
	set(0x4D, "EOR", 3, 4, Absolute, false)
	set(0x5D, "EOR", 3, 4, AbsoluteX, true)
	set(0x59, "EOR", 3, 4, AbsoluteY, true)
	set(0x41, "EOR", 2, 6, IndexedIndirect, false)
	set(0x51, "EOR", 2, 5, IndirectIndexed, true)

	// Shift/Rotate
	set(0x0A, "ASL", 1, 2, Accumulator, false)
	set(0x06, "ASL", 2, 5, ZeroPage, false)
	set(0x16, "ASL", 2, 6, ZeroPageX, false)
	set(0x0E, "ASL", 3, 6, Absolute, false)
	set(0x1E, "ASL", 3, 7, AbsoluteX, false)

	set(0x4A, "LSR", 1, 2, Accumulator, false)
	set(0x46, "LSR", 2, 5, ZeroPage, false)
	set(0x56, "LSR", 2, 6, ZeroPageX, false)
	set(0x4E, "LSR", 3, 6, Absolute, false)
	set(0x5E, "LSR", 3, 7, AbsoluteX, false)

	set(0x2A, "ROL", 1, 2, Accumulator, false)
	set(0x26, "ROL", 2, 5, ZeroPage, false)
	set(0x36, "ROL", 2, 6, ZeroPageX, false)
	set(0x2E, "ROL", 3, 6, Absolute, false)
	set(0x3E, "ROL", 3, 7, AbsoluteX, false)

	set(0x6A, "ROR", 1, 2, Accumulator, false)
	set(0x66, "ROR", 2, 5, ZeroPage, false)
	set(0x76, "ROR", 2, 6, ZeroPageX, false)
	set(0x6E, "ROR", 3, 6, Absolute, false)
	set(0x7E, "ROR", 3, 7, AbsoluteX, false)

	// Compare
	set(0xC9, "CMP", 2, 2, Immediate, false)
	set(0xC5, "CMP", 2, 3, ZeroPage, false)
	set(0xD5, "CMP", 2, 4, ZeroPageX, false)
	set(0xCD, "CMP", 3, 4, Absolute, false)
	set(0xDD, "CMP", 3, 4, AbsoluteX, true)
	set(0xD9, "CMP", 3, 4, AbsoluteY, true)
	set(0xC1, "CMP", 2, 6, IndexedIndirect, false)
	set(0xD1, "CMP", 2, 5, IndirectIndexed, true)

	set(0xE0, "CPX", 2, 2, Immediate, false)
	set(0xE4, "CPX", 2, 3, ZeroPage, false)
	set(0xEC, "CPX", 3, 4, Absolute, false)

	set(0xC0, "CPY", 2, 2, Immediate, false)
	set(0xC4, "CPY", 2, 3, ZeroPage, false)
	set(0xCC, "CPY", 3, 4, Absolute, false)

	// Inc/Dec
	set(0xE6, "INC", 2, 5, ZeroPage, false)
	set(0xF6, "INC", 2, 6, ZeroPageX, false)
	set(0xEE, "INC", 3, 6, Absolute, false)
	set(0xFE, "INC", 3, 7, AbsoluteX, false)

	set(0xC6, "DEC", 2, 5, ZeroPage, false)
	set(0xD6, "DEC", 2, 6, ZeroPageX, false)
	set(0xCE, "DEC", 3, 6, Absolute, false)
	set(0xDE, "DEC", 3, 7, AbsoluteX, false)

	set(0xE8, "INX", 1, 2, Implied, false)
	set(0xCA, "DEX", 1, 2, Implied, false)
	set(0xC8, "INY", 1, 2, Implied, false)
	set(0x88, "DEY", 1, 2, Implied, false)

	// Transfer
	set(0xAA, "TAX", 1, 2, Implied, false)
	set(0x8A, "TXA", 1, 2, Implied, false)
	set(0xA8, "TAY", 1, 2, Implied, false)
	set(0x98, "TYA", 1, 2, Implied, false)
	set(0xBA, "TSX", 1, 2, Implied, false)
	set(0x9A, "TXS", 1, 2, Implied, false)

	// Stack
	set(0x48, "PHA", 1, 3, Implied, false)
	set(0x68, "PLA", 1, 4, Implied, false)
	set(0x08, "PHP", 1, 3, Implied, false)
	set(0x28, "PLP", 1, 4, Implied, false)

	// Flags
	set(0x18, "CLC", 1, 2, Implied, false)
	set(0x38, "SEC", 1, 2, Implied, false)
	set(0x58, "CLI", 1, 2, Implied, false)
	set(0x78, "SEI", 1, 2, Implied, false)
	set(0xB8, "CLV", 1, 2, Implied, false)
	set(0xD8, "CLD", 1, 2, Implied, false)
	set(0xF8, "SED", 1, 2, Implied, false)

	// Control flow
	set(0x4C, "JMP", 3, 3, Absolute, false)
	set(0x6C, "JMP", 3, 5, Indirect, false)
	set(0x20, "JSR", 3, 6, Absolute, false)
	set(0x60, "RTS", 1, 6, Implied, false)
	set(0x40, "RTI", 1, 6, Implied, false)

	// Branches
	set(0x90, "BCC", 2, 2, Relative, false)
	set(0xB0, "BCS", 2, 2, Relative, false)
	set(0xD0, "BNE", 2, 2, Relative, false)
	set(0xF0, "BEQ", 2, 2, Relative, false)
	set(0x10, "BPL", 2, 2, Relative, false)
	set(0x30, "BMI", 2, 2, Relative, false)
	set(0x50, "BVC", 2, 2, Relative, false)
	set(0x70, "BVS", 2, 2, Relative, false)

	// Misc
	set(0x24, "BIT", 2, 3, ZeroPage, false)
	set(0x2C, "BIT", 3, 4, Absolute, false)
	set(0xEA, "NOP", 1, 2, Implied, false)
	set(0x00, "BRK", 1, 7, Implied, false)

	// Every other opcode slot is left zero-valued (cycles == 0), which
	// Step() treats as an illegal-opcode fault. Only the documented 6502
	// instruction set is emulated; unofficial/undocumented opcodes (LAX,
	// SAX, DCP, ISB, SLO, RLA, SRE, RRA, unofficial NOPs/SBC, ...) halt the
	// CPU rather than running with invented semantics.
}

// execute dispatches one decoded instruction. It returns the extra cycles
// owed beyond the opcode table's base cost (branches taken, RMW quirks are
// already folded into the table). address/pageCrossed are meaningless for
// Implied/Accumulator-mode opcodes.
func (c *CPU) execute(opcode uint8, address uint16, pageCrossed bool) uint8 {
	switch opcode {
	case 0xA9, 0xA5, 0xB5, 0xAD, 0xBD, 0xB9, 0xA1, 0xB1:
		c.A = c.memory.Read(address)
		c.setZN(c.A)
	case 0xA2, 0xA6, 0xB6, 0xAE, 0xBE:
		c.X = c.memory.Read(address)
		c.setZN(c.X)
	case 0xA0, 0xA4, 0xB4, 0xAC, 0xBC:
		c.Y = c.memory.Read(address)
		c.setZN(c.Y)
	case 0x85, 0x95, 0x8D, 0x9D, 0x99, 0x81, 0x91:
		c.memory.Write(address, c.A)
	case 0x86, 0x96, 0x8E:
		c.memory.Write(address, c.X)
	case 0x84, 0x94, 0x8C:
		c.memory.Write(address, c.Y)

	case 0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71:
		c.adc(c.memory.Read(address))
	case 0xE9, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1:
		c.sbc(c.memory.Read(address))

	case 0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31:
		c.A &= c.memory.Read(address)
		c.setZN(c.A)
	case 0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11:
		c.A |= c.memory.Read(address)
		c.setZN(c.A)
	case 0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51:
		c.A ^= c.memory.Read(address)
		c.setZN(c.A)

	case 0x0A:
		c.A = c.asl(c.A)
	case 0x06, 0x16, 0x0E, 0x1E:
		c.memory.Write(address, c.asl(c.memory.Read(address)))
	case 0x4A:
		c.A = c.lsr(c.A)
	case 0x46, 0x56, 0x4E, 0x5E:
		c.memory.Write(address, c.lsr(c.memory.Read(address)))
	case 0x2A:
		c.A = c.rol(c.A)
	case 0x26, 0x36, 0x2E, 0x3E:
		c.memory.Write(address, c.rol(c.memory.Read(address)))
	case 0x6A:
		c.A = c.ror(c.A)
	case 0x66, 0x76, 0x6E, 0x7E:
		c.memory.Write(address, c.ror(c.memory.Read(address)))

	case 0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1:
		c.compare(c.A, c.memory.Read(address))
	case 0xE0, 0xE4, 0xEC:
		c.compare(c.X, c.memory.Read(address))
	case 0xC0, 0xC4, 0xCC:
		c.compare(c.Y, c.memory.Read(address))

	case 0xE6, 0xF6, 0xEE, 0xFE:
		v := c.memory.Read(address) + 1
		c.memory.Write(address, v)
		c.setZN(v)
	case 0xC6, 0xD6, 0xCE, 0xDE:
		v := c.memory.Read(address) - 1
		c.memory.Write(address, v)
		c.setZN(v)
	case 0xE8:
		c.X++
		c.setZN(c.X)
	case 0xCA:
		c.X--
		c.setZN(c.X)
	case 0xC8:
		c.Y++
		c.setZN(c.Y)
	case 0x88:
		c.Y--
		c.setZN(c.Y)

	case 0xAA:
		c.X = c.A
		c.setZN(c.X)
	case 0x8A:
		c.A = c.X
		c.setZN(c.A)
	case 0xA8:
		c.Y = c.A
		c.setZN(c.Y)
	case 0x98:
		c.A = c.Y
		c.setZN(c.A)
	case 0xBA:
		c.X = c.SP
		c.setZN(c.X)
	case 0x9A:
		c.SP = c.X

	case 0x48:
		c.push(c.A)
	case 0x68:
		c.A = c.pop()
		c.setZN(c.A)
	case 0x08:
		c.push(c.GetStatusByte() | bFlagMask)
	case 0x28:
		c.SetStatusByte(c.pop())

	case 0x18:
		c.C = false
	case 0x38:
		c.C = true
	case 0x58:
		c.I = false
	case 0x78:
		c.I = true
	case 0xB8:
		c.V = false
	case 0xD8:
		c.D = false
	case 0xF8:
		c.D = true

	case 0x4C, 0x6C:
		c.PC = address
	case 0x20:
		c.push16(c.PC - 1)
		c.PC = address
	case 0x60:
		c.PC = c.pop16() + 1
	case 0x40:
		c.SetStatusByte(c.pop())
		c.PC = c.pop16()

	case 0x90:
		return c.branch(!c.C, address, pageCrossed)
	case 0xB0:
		return c.branch(c.C, address, pageCrossed)
	case 0xD0:
		return c.branch(!c.Z, address, pageCrossed)
	case 0xF0:
		return c.branch(c.Z, address, pageCrossed)
	case 0x10:
		return c.branch(!c.N, address, pageCrossed)
	case 0x30:
		return c.branch(c.N, address, pageCrossed)
	case 0x50:
		return c.branch(!c.V, address, pageCrossed)
	case 0x70:
		return c.branch(c.V, address, pageCrossed)

	case 0x24, 0x2C:
		v := c.memory.Read(address)
		c.Z = (c.A & v) == 0
		c.N = v&nFlagMask != 0
		c.V = v&vFlagMask != 0

	case 0xEA:
		// NOP: no operation

	case 0x00:
		c.PC++ // BRK's signature byte is skipped
		c.serviceInterrupt(irqVector, true)
	}
	return 0
}

func (c *CPU) adc(operand uint8) {
	sum := uint16(c.A) + uint16(operand)
	if c.C {
		sum++
	}
	result := uint8(sum)
	c.C = sum > 0xFF
	c.V = ((c.A^operand)&0x80 == 0) && ((c.A^result)&0x80 != 0)
	c.A = result
	c.setZN(c.A)
}

func (c *CPU) sbc(operand uint8) {
	c.adc(operand ^ 0xFF)
}

func (c *CPU) asl(v uint8) uint8 {
	c.C = v&0x80 != 0
	r := v << 1
	c.setZN(r)
	return r
}

func (c *CPU) lsr(v uint8) uint8 {
	c.C = v&0x01 != 0
	r := v >> 1
	c.setZN(r)
	return r
}

func (c *CPU) rol(v uint8) uint8 {
	oldCarry := c.C
	c.C = v&0x80 != 0
	r := v << 1
	if oldCarry {
		r |= 0x01
	}
	c.setZN(r)
	return r
}

func (c *CPU) ror(v uint8) uint8 {
	oldCarry := c.C
	c.C = v&0x01 != 0
	r := v >> 1
	if oldCarry {
		r |= 0x80
	}
	c.setZN(r)
	return r
}

func (c *CPU) compare(reg, operand uint8) {
	c.C = reg >= operand
	c.setZN(reg - operand)
}

// branch applies the Relative-mode jump when take is true, returning the
// extra cycle(s): +1 for a taken branch, +1 more if that branch crosses a
// page boundary.
func (c *CPU) branch(take bool, target uint16, pageCrossed bool) uint8 {
	if !take {
		return 0
	}
	c.PC = target
	if pageCrossed {
		return 2
	}
	return 1
}
