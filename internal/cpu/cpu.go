// Package cpu implements the 6502 CPU emulation for the NES.
package cpu

import (
	"encoding/binary"
	"fmt"
	"io"
)

// AddressingMode identifies how an instruction's operand address is formed.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// Interrupt is the CPU's single pending-interrupt slot.
type Interrupt int

const (
	InterruptNone Interrupt = iota
	InterruptNMI
	InterruptIRQ
	InterruptDelayedNMI
)

// Memory is the CPU's view of the address space (its bus collaborator).
type Memory interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// instruction is a single opcode table entry: fixed cost, addressing mode,
// and whether it is eligible for the +1 page-cross penalty.
type instruction struct {
	name        string
	bytes       uint8
	cycles      uint8
	mode        AddressingMode
	pageCrossOK bool // indexed reads / branches that take +1 on page cross
}

// CPU represents the 6502 processor used in the NES.
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	C, Z, I, D, B, V, N bool

	memory Memory

	// cycles is the number of bus ticks still owed for the instruction or
	// interrupt sequence currently in flight. Step computes this cost up
	// front; Tick decrements it and re-enters Step at zero.
	cycles uint64

	pending    Interrupt
	nmiDelayed bool // true while a DelayedNMI is waiting one more boundary

	irqLine bool // level-held IRQ request line, asserted by APU/mapper sources

	halted bool // set on an illegal opcode fault
	fault  error

	opcodes [256]instruction
}

// New creates a CPU bound to the given memory view.
func New(memory Memory) *CPU {
	c := &CPU{memory: memory}
	c.initOpcodes()
	return c
}

// Powerup sets the CPU to its NES power-on state.
func (c *CPU) Powerup() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0xFD
	c.SetStatusByte(0x34)
	c.PC = c.readWord(resetVector)
	c.cycles = 2
	c.pending = InterruptNone
	c.nmiDelayed = false
	c.irqLine = false
	c.halted = false
	c.fault = nil
}

// Reset restores PC from the reset vector and re-asserts the I flag,
// matching the 6502's reset sequence (SP is decremented by 3, not reset).
func (c *CPU) Reset() {
	c.SP -= 3
	c.I = true
	c.PC = c.readWord(resetVector)
	c.cycles = 7
	c.pending = InterruptNone
	c.nmiDelayed = false
}

// Halted reports whether the CPU has faulted on an illegal opcode.
func (c *CPU) Halted() bool { return c.halted }

// Fault returns the diagnostic for a halted CPU, or nil.
func (c *CPU) Fault() error { return c.fault }

// Cycles reports the number of ticks still owed for the in-flight
// instruction or interrupt sequence.
func (c *CPU) Cycles() uint64 { return c.cycles }

// Tick decrements the owed-cycle counter by one; invoked by the bus once
// per CPU cycle. When the counter reaches zero it calls Step to fetch and
// execute (or service an interrupt for) the next instruction.
func (c *CPU) Tick() {
	if c.halted {
		return
	}
	if c.cycles > 0 {
		c.cycles--
		return
	}
	c.Step()
}

// TriggerNMI arms the pending-interrupt slot for immediate servicing at the
// next instruction boundary.
func (c *CPU) TriggerNMI() {
	c.pending = InterruptNMI
	c.nmiDelayed = false
}

// TriggerDelayedNMI arms an NMI that must not fire until one more
// instruction has executed past the current boundary.
func (c *CPU) TriggerDelayedNMI() {
	c.pending = InterruptDelayedNMI
	c.nmiDelayed = true
}

// SuppressNMI cancels a pending (non-delayed) NMI request, used when a
// $2000 write clears NMI-enable in the same window an NMI was requested.
func (c *CPU) SuppressNMI() {
	if c.pending == InterruptNMI {
		c.pending = InterruptNone
	}
}

// TriggerIRQ asserts or clears the level-held IRQ line. Sources (APU frame
// IRQ, DMC IRQ, mapper IRQ) call this with true while asserting and false
// once acknowledged/cleared.
func (c *CPU) TriggerIRQ(asserted bool) {
	c.irqLine = asserted
}

// Step executes one pending interrupt (if any) or one instruction, setting
// the owed-cycle counter for Tick to drain.
func (c *CPU) Step() {
	if c.halted {
		return
	}

	if c.pending == InterruptDelayedNMI {
		// One more instruction boundary must pass before this fires; the
		// instruction at this boundary still executes normally.
		c.pending = InterruptNMI
	} else if c.pending == InterruptNMI {
		c.pending = InterruptNone
		c.nmiDelayed = false
		c.serviceInterrupt(nmiVector, false)
		return
	} else if c.irqLine && !c.I {
		c.serviceInterrupt(irqVector, false)
		return
	}

	opcode := c.memory.Read(c.PC)
	op := c.opcodes[opcode]
	if op.cycles == 0 {
		c.halted = true
		c.fault = fmt.Errorf("cpu: illegal opcode $%02X at $%04X", opcode, c.PC)
		return
	}

	address, pageCrossed := c.operandAddress(op.mode)
	extra := c.execute(opcode, address, pageCrossed)
	if pageCrossed && op.pageCrossOK {
		extra++
	}

	c.cycles = uint64(op.cycles+extra) - 1
}

// serviceInterrupt pushes PC and status and jumps through vector. brk
// distinguishes a software BRK (bFlagMask set in the pushed status, PC
// already advanced past the signature byte) from a hardware NMI/IRQ.
func (c *CPU) serviceInterrupt(vector uint16, brk bool) {
	c.push16(c.PC)
	status := c.GetStatusByte() &^ uint8(bFlagMask)
	status |= unusedMask
	if brk {
		status |= bFlagMask
	}
	c.push(status)
	c.I = true
	c.PC = c.readWord(vector)
	c.cycles = 7 - 1
}

func (c *CPU) readWord(addr uint16) uint16 {
	lo := uint16(c.memory.Read(addr))
	hi := uint16(c.memory.Read(addr + 1))
	return hi<<8 | lo
}

// operandAddress resolves the effective address for mode, advancing PC past
// the instruction's operand bytes, and reports whether indexing crossed a
// page boundary.
func (c *CPU) operandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		c.PC++
		return 0, false

	case Immediate:
		addr := c.PC + 1
		c.PC += 2
		return addr, false

	case ZeroPage:
		addr := uint16(c.memory.Read(c.PC + 1))
		c.PC += 2
		return addr, false

	case ZeroPageX:
		base := c.memory.Read(c.PC + 1)
		addr := uint16((base + c.X) & zeroPageMask)
		c.PC += 2
		return addr, false

	case ZeroPageY:
		base := c.memory.Read(c.PC + 1)
		addr := uint16((base + c.Y) & zeroPageMask)
		c.PC += 2
		return addr, false

	case Relative:
		offset := int8(c.memory.Read(c.PC + 1))
		oldPC := c.PC + 2
		newPC := uint16(int32(oldPC) + int32(offset))
		c.PC = oldPC
		return newPC, (oldPC & pageMask) != (newPC & pageMask)

	case Absolute:
		addr := c.readWord(c.PC + 1)
		c.PC += 3
		return addr, false

	case AbsoluteX:
		base := c.readWord(c.PC + 1)
		addr := base + uint16(c.X)
		c.PC += 3
		return addr, (base & pageMask) != (addr & pageMask)

	case AbsoluteY:
		base := c.readWord(c.PC + 1)
		addr := base + uint16(c.Y)
		c.PC += 3
		return addr, (base & pageMask) != (addr & pageMask)

	case Indirect: // JMP only; reproduces the page-wrap bug
		ptr := c.readWord(c.PC + 1)
		var addr uint16
		if ptr&zeroPageMask == zeroPageMask {
			lo := uint16(c.memory.Read(ptr))
			hi := uint16(c.memory.Read(ptr & pageMask))
			addr = hi<<8 | lo
		} else {
			addr = c.readWord(ptr)
		}
		c.PC += 3
		return addr, false

	case IndexedIndirect: // (zp,X)
		base := c.memory.Read(c.PC + 1)
		ptr := (base + c.X) & zeroPageMask
		lo := uint16(c.memory.Read(uint16(ptr)))
		hi := uint16(c.memory.Read(uint16((ptr + 1) & zeroPageMask)))
		c.PC += 2
		return hi<<8 | lo, false

	case IndirectIndexed: // (zp),Y
		ptr := uint16(c.memory.Read(c.PC + 1))
		lo := uint16(c.memory.Read(ptr))
		hi := uint16(c.memory.Read((ptr + 1) & zeroPageMask))
		base := hi<<8 | lo
		addr := base + uint16(c.Y)
		c.PC += 2
		return addr, (base & pageMask) != (addr & pageMask)

	default:
		return 0, false
	}
}

func (c *CPU) push(value uint8) {
	c.memory.Write(stackBase+uint16(c.SP), value)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.memory.Read(stackBase + uint16(c.SP))
}

func (c *CPU) push16(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) pop16() uint16 {
	lo := uint16(c.pop())
	hi := uint16(c.pop())
	return hi<<8 | lo
}

func (c *CPU) setZN(v uint8) {
	c.Z = v == 0
	c.N = v&nFlagMask != 0
}

// GetStatusByte packs the flag bits into the 6502 status register layout.
func (c *CPU) GetStatusByte() uint8 {
	var s uint8
	if c.N {
		s |= nFlagMask
	}
	if c.V {
		s |= vFlagMask
	}
	s |= unusedMask
	if c.B {
		s |= bFlagMask
	}
	if c.D {
		s |= dFlagMask
	}
	if c.I {
		s |= iFlagMask
	}
	if c.Z {
		s |= zFlagMask
	}
	if c.C {
		s |= cFlagMask
	}
	return s
}

// SetStatusByte unpacks a status byte into the flag fields.
func (c *CPU) SetStatusByte(s uint8) {
	c.N = s&nFlagMask != 0
	c.V = s&vFlagMask != 0
	c.B = s&bFlagMask != 0
	c.D = s&dFlagMask != 0
	c.I = s&iFlagMask != 0
	c.Z = s&zFlagMask != 0
	c.C = s&cFlagMask != 0
}

// Save writes a deterministic, field-by-field snapshot of CPU state.
func (c *CPU) Save(w io.Writer) error {
	fields := []any{
		c.A, c.X, c.Y, c.SP, c.PC,
		c.GetStatusByte(),
		c.cycles,
		int32(c.pending),
		c.nmiDelayed,
		c.irqLine,
		c.halted,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// Load restores CPU state written by Save.
func (c *CPU) Load(r io.Reader) error {
	var status uint8
	var pending int32
	targets := []any{
		&c.A, &c.X, &c.Y, &c.SP, &c.PC,
		&status,
		&c.cycles,
		&pending,
		&c.nmiDelayed,
		&c.irqLine,
		&c.halted,
	}
	for _, t := range targets {
		if err := binary.Read(r, binary.LittleEndian, t); err != nil {
			return err
		}
	}
	c.SetStatusByte(status)
	c.pending = Interrupt(pending)
	c.fault = nil
	return nil
}
