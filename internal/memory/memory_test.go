package memory

import "testing"

type stubPPU struct {
	lastReadAddr  uint16
	lastWriteAddr uint16
	lastWriteVal  uint8
	readValue     uint8
}

func (s *stubPPU) ReadRegister(address uint16) uint8 {
	s.lastReadAddr = address
	return s.readValue
}

func (s *stubPPU) WriteRegister(address uint16, value uint8) {
	s.lastWriteAddr = address
	s.lastWriteVal = value
}

type stubAPU struct {
	lastWriteAddr uint16
	lastWriteVal  uint8
	status        uint8
}

func (s *stubAPU) WriteRegister(address uint16, value uint8) {
	s.lastWriteAddr = address
	s.lastWriteVal = value
}

func (s *stubAPU) ReadStatus() uint8 { return s.status }

type stubCartridge struct {
	prg [0x10000]uint8
	chr [0x2000]uint8
}

func (c *stubCartridge) ReadPRG(address uint16) uint8         { return c.prg[address] }
func (c *stubCartridge) WritePRG(address uint16, value uint8) { c.prg[address] = value }
func (c *stubCartridge) ReadCHR(address uint16) uint8         { return c.chr[address] }
func (c *stubCartridge) WriteCHR(address uint16, value uint8) { c.chr[address] = value }
func (c *stubCartridge) TickMapper() bool                     { return false }

func TestInternalRAMMirroring(t *testing.T) {
	mem := New(&stubPPU{}, &stubAPU{}, &stubCartridge{})
	mem.Write(0x0000, 0x42)

	for _, mirror := range []uint16{0x0800, 0x1000, 0x1800} {
		if got := mem.Read(mirror); got != 0x42 {
			t.Errorf("address 0x%04X: expected mirrored value 0x42, got 0x%02X", mirror, got)
		}
	}
}

func TestPPURegisterMirroring(t *testing.T) {
	ppu := &stubPPU{}
	mem := New(ppu, &stubAPU{}, &stubCartridge{})

	mem.Write(0x2001, 0x55)
	if ppu.lastWriteAddr != 0x2001 || ppu.lastWriteVal != 0x55 {
		t.Fatalf("expected write to forward to PPU register 0x2001=0x55, got 0x%04X=0x%02X", ppu.lastWriteAddr, ppu.lastWriteVal)
	}

	mem.Write(0x3FF9, 0x66) // mirrors to 0x2001 ($2000-$2007 repeated every 8 bytes up to $3FFF)
	if ppu.lastWriteAddr != 0x2001 || ppu.lastWriteVal != 0x66 {
		t.Errorf("expected 0x3FF9 to mirror to register 0x2001, got 0x%04X", ppu.lastWriteAddr)
	}
}

func TestOAMDMATransfersFullPage(t *testing.T) {
	ppu := &stubPPU{}
	mem := New(ppu, &stubAPU{}, &stubCartridge{})
	mem.Write(0x02FF, 0xAB) // last byte of the source page

	mem.Write(0x4014, 0x02) // DMA from page 2 ($0200-$02FF), 256 bytes
	if ppu.lastWriteAddr != 0x2004 || ppu.lastWriteVal != 0xAB {
		t.Errorf("expected OAM DMA's final byte (0xAB) written to $2004, got 0x%02X", ppu.lastWriteVal)
	}
}

func TestDMACallbackOverridesDefaultDMA(t *testing.T) {
	ppu := &stubPPU{}
	mem := New(ppu, &stubAPU{}, &stubCartridge{})

	var triggeredPage uint8
	triggered := false
	mem.SetDMACallback(func(page uint8) {
		triggered = true
		triggeredPage = page
	})

	mem.Write(0x4014, 0x07)
	if !triggered || triggeredPage != 0x07 {
		t.Fatal("expected DMA callback to be invoked with the written page instead of performing DMA directly")
	}
}

func TestAPUStatusReadAndRegisterWrite(t *testing.T) {
	apu := &stubAPU{status: 0x1F}
	mem := New(&stubPPU{}, apu, &stubCartridge{})

	if got := mem.Read(0x4015); got != 0x1F {
		t.Errorf("expected $4015 read to return APU status, got 0x%02X", got)
	}

	mem.Write(0x4000, 0x30)
	if apu.lastWriteAddr != 0x4000 || apu.lastWriteVal != 0x30 {
		t.Error("expected $4000 write to forward to APU register")
	}
}

func TestCartridgePRGReadWrite(t *testing.T) {
	cart := &stubCartridge{}
	mem := New(&stubPPU{}, &stubAPU{}, cart)

	mem.Write(0x6000, 0x99) // SRAM region
	if cart.prg[0x6000] != 0x99 {
		t.Fatal("expected SRAM write to reach the cartridge")
	}
	if got := mem.Read(0x6000); got != 0x99 {
		t.Errorf("expected SRAM read-back of 0x99, got 0x%02X", got)
	}

	cart.prg[0x8000] = 0x77
	if got := mem.Read(0x8000); got != 0x77 {
		t.Errorf("expected PRG ROM read at $8000 to reach cartridge, got 0x%02X", got)
	}
}

func TestOpenBusRetainsLastReadValue(t *testing.T) {
	cart := &stubCartridge{}
	mem := New(&stubPPU{}, &stubAPU{}, cart)
	cart.prg[0x8000] = 0xEE

	mem.Read(0x8000)               // populates the open bus latch
	got := mem.Read(0x4018)        // unmapped APU/IO test register
	if got != 0xEE {
		t.Errorf("expected unmapped read to return last open-bus value 0xEE, got 0x%02X", got)
	}
}

func TestSaveLoadRoundTripsWorkRAM(t *testing.T) {
	mem := New(&stubPPU{}, &stubAPU{}, &stubCartridge{})
	mem.Write(0x0010, 0xAA)
	mem.Write(0x0123, 0x5A)

	var buf writerBuffer
	if err := mem.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := New(&stubPPU{}, &stubAPU{}, &stubCartridge{})
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := restored.Read(0x0010); got != 0xAA {
		t.Errorf("expected restored RAM[0x10]=0xAA, got 0x%02X", got)
	}
	if got := restored.Read(0x0123); got != 0x5A {
		t.Errorf("expected restored RAM[0x123]=0x5A, got 0x%02X", got)
	}
}

func TestPPUMemoryHorizontalMirroring(t *testing.T) {
	cart := &stubCartridge{}
	pm := NewPPUMemory(cart, MirrorHorizontal)

	pm.Write(0x2000, 0x11)
	if got := pm.Read(0x2400); got != 0x11 {
		t.Error("horizontal mirroring should mirror nametable 0 into nametable 1")
	}
	pm.Write(0x2800, 0x22)
	if got := pm.Read(0x2C00); got != 0x22 {
		t.Error("horizontal mirroring should mirror nametable 2 into nametable 3")
	}
}

func TestPPUMemoryVerticalMirroring(t *testing.T) {
	cart := &stubCartridge{}
	pm := NewPPUMemory(cart, MirrorVertical)

	pm.Write(0x2000, 0x33)
	if got := pm.Read(0x2800); got != 0x33 {
		t.Error("vertical mirroring should mirror nametable 0 into nametable 2")
	}
}

func TestPPUMemoryPaletteMirroring(t *testing.T) {
	cart := &stubCartridge{}
	pm := NewPPUMemory(cart, MirrorHorizontal)

	pm.Write(0x3F00, 0x0F)
	pm.Write(0x3F10, 0x01) // backdrop mirror: $3F10 mirrors $3F00
	if got := pm.Read(0x3F00); got != 0x01 {
		t.Errorf("expected $3F10 write to mirror into $3F00, got 0x%02X", got)
	}
}

func TestPPUMemorySaveLoadRoundTrip(t *testing.T) {
	cart := &stubCartridge{}
	pm := NewPPUMemory(cart, MirrorVertical)
	pm.Write(0x2005, 0x77)
	pm.Write(0x3F01, 0x20)

	var buf writerBuffer
	if err := pm.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := NewPPUMemory(cart, MirrorHorizontal)
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := restored.Read(0x2005); got != 0x77 {
		t.Errorf("expected restored VRAM[0x2005]=0x77, got 0x%02X", got)
	}
	if got := restored.Read(0x3F01); got != 0x20 {
		t.Errorf("expected restored palette[1]=0x20, got 0x%02X", got)
	}
	if restored.mirroring != MirrorVertical {
		t.Error("expected Load to restore the saved mirroring mode, overriding the constructor's")
	}
}

// writerBuffer is a minimal io.ReadWriter backed by a growing byte slice,
// avoiding a bytes.Buffer import just for these round-trip tests.
type writerBuffer struct {
	data []byte
	pos  int
}

func (b *writerBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *writerBuffer) Read(p []byte) (int, error) {
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}
