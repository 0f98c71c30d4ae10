package cpu

import (
	"bytes"
	"testing"
)

// mockMemory is a flat 64KB address space, matching the teacher's
// MockMemory style: a plain byte array with no mirroring logic, since the
// CPU package tests its own decode/execute behavior in isolation from the
// real bus.
type mockMemory struct {
	ram [0x10000]uint8
}

func (m *mockMemory) Read(address uint16) uint8  { return m.ram[address] }
func (m *mockMemory) Write(address uint16, value uint8) { m.ram[address] = value }

func newTestCPU() (*CPU, *mockMemory) {
	mem := &mockMemory{}
	mem.ram[resetVector] = 0x00
	mem.ram[resetVector+1] = 0x80
	c := New(mem)
	c.Powerup()
	return c, mem
}

// runToCompletion drives Step/Tick until the in-flight instruction's owed
// cycles are drained, so tests can assert post-instruction state without
// hand-counting ticks.
func runToCompletion(c *CPU) {
	for c.cycles > 0 {
		c.Tick()
	}
}

func TestPowerupState(t *testing.T) {
	c, _ := newTestCPU()
	if c.SP != 0xFD {
		t.Errorf("SP = %#x, want 0xFD", c.SP)
	}
	if c.PC != 0x8000 {
		t.Errorf("PC = %#x, want 0x8000", c.PC)
	}
	if !c.I {
		t.Error("I flag should be set at powerup")
	}
}

func TestLDAImmediateSetsFlags(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[0x8000] = 0xA9 // LDA #$00
	mem.ram[0x8001] = 0x00
	c.Step()
	runToCompletion(c)
	if !c.Z {
		t.Error("Z should be set after loading zero")
	}
	if c.N {
		t.Error("N should be clear after loading zero")
	}

	mem.ram[0x8002] = 0xA9 // LDA #$80
	mem.ram[0x8003] = 0x80
	c.Step()
	runToCompletion(c)
	if c.A != 0x80 {
		t.Errorf("A = %#x, want 0x80", c.A)
	}
	if !c.N {
		t.Error("N should be set for a negative load")
	}
}

func TestAbsoluteXPageCrossPenalty(t *testing.T) {
	c, mem := newTestCPU()
	c.X = 0xFF
	mem.ram[0x8000] = 0xBD // LDA $8001,X -> crosses into page $81
	mem.ram[0x8001] = 0x01
	mem.ram[0x8002] = 0x80
	mem.ram[0x8100] = 0x42

	c.Step()
	if c.cycles != 4 { // base 4 + 1 page-cross, minus the cycle Step already charges
		t.Errorf("cycles owed = %d, want 4 (base 4 + 1 cross - 1 consumed)", c.cycles)
	}
	runToCompletion(c)
	if c.A != 0x42 {
		t.Errorf("A = %#x, want 0x42", c.A)
	}
}

func TestJMPIndirectPageWrapBug(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[0x8000] = 0x6C // JMP ($90FF)
	mem.ram[0x8001] = 0xFF
	mem.ram[0x8002] = 0x90
	mem.ram[0x90FF] = 0x34 // pointer low byte
	mem.ram[0x9100] = 0x12 // would be the "correct" high byte; hardware ignores it
	mem.ram[0x9000] = 0x56 // high byte hardware actually reads, from $9000 not $9100

	c.Step()
	runToCompletion(c)
	want := uint16(0x56)<<8 | uint16(0x34)
	if c.PC != want {
		t.Errorf("PC = %#x, want %#x (page-wrap bug)", c.PC, want)
	}
}

func TestBRKPushesBFlagAndJumpsThroughIRQVector(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[irqVector] = 0x00
	mem.ram[irqVector+1] = 0x90
	mem.ram[0x8000] = 0x00 // BRK

	c.Step()
	runToCompletion(c)

	if c.PC != 0x9000 {
		t.Errorf("PC = %#x, want 0x9000", c.PC)
	}
	status := mem.ram[stackBase+uint16(c.SP)+1]
	if status&bFlagMask == 0 {
		t.Error("pushed status should have B flag set for software BRK")
	}
	if !c.I {
		t.Error("I flag should be set after servicing BRK")
	}
}

func TestNMITriggersBeforeNextInstruction(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[nmiVector] = 0x00
	mem.ram[nmiVector+1] = 0xA0
	mem.ram[0x8000] = 0xEA // NOP, never reached

	c.TriggerNMI()
	c.Step()
	runToCompletion(c)

	if c.PC != 0xA000 {
		t.Errorf("PC = %#x, want 0xA000 (NMI vector)", c.PC)
	}
}

func TestDelayedNMIWaitsOneBoundary(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[nmiVector] = 0x00
	mem.ram[nmiVector+1] = 0xA0
	mem.ram[0x8000] = 0xEA // NOP, executes first
	mem.ram[0x8001] = 0xEA // NOP, would execute second if NMI didn't intervene

	c.TriggerDelayedNMI()
	c.Step() // services the NOP at $8000, not the NMI yet
	runToCompletion(c)
	if c.PC == 0xA000 {
		t.Fatal("delayed NMI fired one boundary too early")
	}

	c.Step() // now the NMI should fire
	runToCompletion(c)
	if c.PC != 0xA000 {
		t.Errorf("PC = %#x, want 0xA000 after the delayed NMI's boundary elapsed", c.PC)
	}
}

func TestSuppressNMICancelsPending(t *testing.T) {
	c, _ := newTestCPU()
	c.TriggerNMI()
	c.SuppressNMI()
	if c.pending != InterruptNone {
		t.Errorf("pending = %v, want InterruptNone after suppress", c.pending)
	}
}

func TestIRQHeldWhileIFlagSet(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[0x8000] = 0xEA // NOP
	c.I = true
	c.TriggerIRQ(true)

	c.Step()
	runToCompletion(c)
	if c.PC != 0x8001 {
		t.Fatalf("PC = %#x, want 0x8001: IRQ should be masked while I flag is set, so the NOP runs", c.PC)
	}
}

func TestADCOverflowFlag(t *testing.T) {
	c, _ := newTestCPU()
	c.A = 0x7F // +127
	c.adc(0x01)
	if !c.V {
		t.Error("V should be set on signed overflow (127 + 1)")
	}
	if c.A != 0x80 {
		t.Errorf("A = %#x, want 0x80", c.A)
	}
}

func TestSBCBorrow(t *testing.T) {
	c, _ := newTestCPU()
	c.A = 0x00
	c.C = false // borrow in
	c.sbc(0x01)
	if c.A != 0xFE {
		t.Errorf("A = %#x, want 0xFE", c.A)
	}
	if c.C {
		t.Error("C should be clear (borrow occurred)")
	}
}

func TestIllegalOpcodeHalts(t *testing.T) {
	c, mem := newTestCPU()
	mem.ram[0x8000] = 0x02 // unimplemented opcode
	c.Step()
	if !c.Halted() {
		t.Fatal("CPU should halt on an illegal opcode")
	}
	if c.Fault() == nil {
		t.Error("Fault() should report a diagnostic once halted")
	}

	before := c.PC
	c.Tick()
	if c.PC != before {
		t.Error("a halted CPU should not advance on further ticks")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c, _ := newTestCPU()
	c.A, c.X, c.Y = 0x11, 0x22, 0x33
	c.SP = 0xF0
	c.PC = 0xBEEF
	c.C, c.Z, c.N = true, false, true
	c.TriggerDelayedNMI()

	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored, _ := newTestCPU()
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if restored.A != c.A || restored.X != c.X || restored.Y != c.Y {
		t.Errorf("registers did not round-trip: got A=%#x X=%#x Y=%#x", restored.A, restored.X, restored.Y)
	}
	if restored.SP != c.SP || restored.PC != c.PC {
		t.Errorf("SP/PC did not round-trip: got SP=%#x PC=%#x", restored.SP, restored.PC)
	}
	if restored.GetStatusByte() != c.GetStatusByte() {
		t.Error("status byte did not round-trip")
	}
	if restored.pending != c.pending {
		t.Errorf("pending interrupt state did not round-trip: got %v want %v", restored.pending, c.pending)
	}
}
