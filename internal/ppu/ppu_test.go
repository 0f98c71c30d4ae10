package ppu

import (
	"gones/internal/memory"
	"testing"
)

type stubCartridge struct {
	chr [0x2000]uint8
}

func (c *stubCartridge) ReadPRG(address uint16) uint8         { return 0 }
func (c *stubCartridge) WritePRG(address uint16, value uint8) {}
func (c *stubCartridge) ReadCHR(address uint16) uint8         { return c.chr[address] }
func (c *stubCartridge) WriteCHR(address uint16, value uint8) { c.chr[address] = value }
func (c *stubCartridge) TickMapper() bool                     { return false }

type stubSink struct {
	pixels     map[[2]int]uint8
	renders    int
}

func newStubSink() *stubSink {
	return &stubSink{pixels: make(map[[2]int]uint8)}
}

func (s *stubSink) Put(x, y int, colorIndex uint8) { s.pixels[[2]int{x, y}] = colorIndex }
func (s *stubSink) Render()                        { s.renders++ }

func newTestPPU() (*PPU, *memory.PPUMemory, *stubCartridge) {
	cart := &stubCartridge{}
	mem := memory.NewPPUMemory(cart, memory.MirrorHorizontal)
	p := New()
	p.SetMemory(mem)
	return p, mem, cart
}

func TestVBlankFlagSetAtScanline241Cycle1(t *testing.T) {
	p, _, _ := newTestPPU()

	for !p.IsVBlank() {
		p.Tick()
	}
	if p.Scanline() != 241 || p.Cycle() != 2 {
		t.Errorf("expected VBlank to set at scanline 241, cycle 1 (observed at cycle 2 post-tick), got scanline=%d cycle=%d", p.Scanline(), p.Cycle())
	}
}

func TestReadingStatusClearsVBlankAndWriteToggle(t *testing.T) {
	p, _, _ := newTestPPU()
	for !p.IsVBlank() {
		p.Tick()
	}

	p.WriteRegister(0x2006, 0x20) // first write sets w=true
	status := p.ReadRegister(0x2002)
	if status&0x80 == 0 {
		t.Fatal("expected status read to report VBlank set")
	}
	if p.IsVBlank() {
		t.Error("reading $2002 should clear the VBlank flag")
	}

	// write toggle should have been reset, so this is treated as the first
	// of the two $2006 writes again
	p.WriteRegister(0x2006, 0x00)
	p.WriteRegister(0x2006, 0x00)
	if p.v != 0 {
		t.Error("expected write toggle reset by $2002 read to require two more writes to fully set the address")
	}
}

func TestPPUDataReadIsBufferedExceptPalette(t *testing.T) {
	p, mem, _ := newTestPPU()
	mem.Write(0x2000, 0xAB)

	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00) // v = 0x2000

	first := p.ReadRegister(0x2007)
	if first != 0 {
		t.Errorf("expected first post-address-set read to return stale buffer (0), got 0x%02X", first)
	}
	second := p.ReadRegister(0x2007)
	if second != 0xAB {
		t.Errorf("expected second read to return the buffered value 0xAB, got 0x%02X", second)
	}

	p.WriteRegister(0x2006, 0x3F)
	p.WriteRegister(0x2006, 0x00) // v = 0x3F00 (palette)
	mem.Write(0x3F00, 0x15)
	direct := p.ReadRegister(0x2007)
	if direct != 0x15 {
		t.Errorf("expected palette reads to bypass the read buffer, got 0x%02X want 0x15", direct)
	}
}

func TestPPUDataAddressIncrementRespectsCtrlBit(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteRegister(0x2000, 0x04) // increment by 32
	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00) // v = 0x2000
	p.ReadRegister(0x2007)
	if p.v != 0x2020 {
		t.Errorf("expected VRAM address to advance by 32, got 0x%04X", p.v)
	}
}

func TestNMIFiresWhenEnabledDuringVBlank(t *testing.T) {
	p, _, _ := newTestPPU()
	fired := false
	p.SetNMICallback(func() { fired = true })
	p.WriteRegister(0x2000, 0x80) // enable NMI generation

	for !p.IsVBlank() {
		p.Tick()
	}
	if !fired {
		t.Fatal("expected NMI callback to fire once VBlank begins with NMI enabled in $2000")
	}
}

func TestSpriteZeroHitRequiresOpaqueBackgroundAndSprite(t *testing.T) {
	p, mem, cart := newTestPPU()
	cart.chr[0] = 0xFF // pattern 0, plane 0 all set -> opaque pixels everywhere
	mem.Write(0x3F00, 0x0F)
	mem.Write(0x3F01, 0x20)
	mem.Write(0x3F11, 0x21)

	// bits 0x02/0x04 show background/sprites in the leftmost 8 pixels too,
	// so sprite 0 at x=0 isn't clipped.
	p.WriteRegister(0x2001, 0x1E)
	p.oam[0] = 0 // sprite Y=0 displays starting scanline 1 (sY+1)
	p.oam[1] = 0 // tile 0
	p.oam[2] = 0 // attributes
	p.oam[3] = 0 // x=0

	p.sink = newStubSink()

	// Run past the pre-render line, scanline 0 (where sprite evaluation for
	// scanline 1 happens), and into scanline 1's first visible pixel.
	for i := 0; i < 1000; i++ {
		p.Tick()
	}

	if !p.sprite0Hit {
		t.Error("expected sprite 0 hit once an opaque sprite overlaps an opaque background pixel")
	}
}

func TestNESColorToRGBMasksAlphaAndRejectsOutOfRange(t *testing.T) {
	rgb := NESColorToRGB(0x00)
	if rgb&0xFF000000 != 0 {
		t.Error("expected NESColorToRGB to strip the alpha byte")
	}
	if NESColorToRGB(64) != 0 {
		t.Error("expected out-of-range palette index to return 0")
	}
}

func TestSaveLoadRoundTripsRegistersAndPosition(t *testing.T) {
	p, _, _ := newTestPPU()
	p.WriteRegister(0x2000, 0x90)
	p.WriteRegister(0x2001, 0x18)
	p.oam[10] = 0x42
	for i := 0; i < 50; i++ {
		p.Tick()
	}

	var buf writerBuffer
	if err := p.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := New()
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if restored.ppuCtrl != p.ppuCtrl || restored.ppuMask != p.ppuMask {
		t.Error("expected restored control/mask registers to match")
	}
	if restored.scanline != p.scanline || restored.cycle != p.cycle {
		t.Errorf("expected restored position to match: got scanline=%d cycle=%d, want scanline=%d cycle=%d",
			restored.scanline, restored.cycle, p.scanline, p.cycle)
	}
	if restored.oam[10] != 0x42 {
		t.Error("expected restored OAM contents to match")
	}
}

// writerBuffer is a minimal io.ReadWriter backed by a growing byte slice.
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
