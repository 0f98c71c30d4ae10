// Package ppu implements the Picture Processing Unit for the NES.
package ppu

import (
	"encoding/binary"
	"io"

	"gones/internal/memory"
)

// VideoSink receives pixels as the PPU renders them and is told when a
// frame is complete. colorIndex is a raw NES palette index (0-63); RGB
// conversion is the sink's concern, not the core's.
type VideoSink interface {
	Put(x, y int, colorIndex uint8)
	Render()
}

// spriteSlot holds one sprite's pre-fetched, already-flipped pattern data
// for the scanline currently being rendered.
type spriteSlot struct {
	x                        int
	patternLow, patternHigh  uint8
	attributes               uint8
	isSprite0                bool
	active                   bool
}

// PPU represents the NES Picture Processing Unit (2C02).
type PPU struct {
	ppuCtrl   uint8
	ppuMask   uint8
	ppuStatus uint8
	oamAddr   uint8

	v uint16 // current VRAM address (15 bits)
	t uint16 // temporary VRAM address / address latch
	x uint8  // fine X scroll (3 bits)
	w bool   // write toggle

	readBuffer uint8

	memory *memory.PPUMemory

	scanline   int // -1 (pre-render) .. 260
	cycle      int // 0..340
	frameCount uint64
	oddFrame   bool
	cycleCount uint64

	oam [256]uint8

	pendingSecondaryOAM  [32]uint8
	pendingSpriteIndices [8]uint8
	pendingSpriteCount   uint8

	activeSprites [8]spriteSlot

	sprite0Hit     bool
	spriteOverflow bool

	// Background pipeline: bgQueue packs 16 pixels, 4 bits each (2 color
	// bits, 2 palette-attribute bits), MSB nibble is the next pixel out.
	bgQueue        uint64
	tileCycle      int
	pendingTileBits uint32

	backgroundEnabled bool
	spritesEnabled    bool
	renderingEnabled  bool

	nmiCallback func()
	a12Hook     func()
	sink        VideoSink
}

// New creates a new PPU instance.
func New() *PPU {
	p := &PPU{scanline: -1}
	return p
}

// Reset restores the PPU to its post-power-up state.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0xA0
	p.oamAddr = 0
	p.v, p.t = 0, 0
	p.x = 0
	p.w = false
	p.readBuffer = 0

	p.scanline = -1
	p.cycle = 0
	p.frameCount = 0
	p.oddFrame = false
	p.cycleCount = 0

	p.sprite0Hit = false
	p.spriteOverflow = false
	p.pendingSpriteCount = 0
	for i := range p.activeSprites {
		p.activeSprites[i] = spriteSlot{}
	}

	p.bgQueue = 0
	p.tileCycle = 0
	p.pendingTileBits = 0

	p.backgroundEnabled = false
	p.spritesEnabled = false
	p.renderingEnabled = false

	for i := range p.oam {
		p.oam[i] = 0
	}
}

// SetMemory sets the PPU's memory view.
func (p *PPU) SetMemory(mem *memory.PPUMemory) { p.memory = mem }

// SetNMICallback sets the function invoked when the PPU requests an NMI.
func (p *PPU) SetNMICallback(callback func()) { p.nmiCallback = callback }

// SetA12Hook sets the function invoked once per rendering scanline at the
// dot the mapper's A12 line rises (used by MMC3's scanline IRQ counter).
func (p *PPU) SetA12Hook(callback func()) { p.a12Hook = callback }

// SetVideoSink sets the frame's pixel destination.
func (p *PPU) SetVideoSink(sink VideoSink) { p.sink = sink }

// Scanline and Cycle expose current position for bus-level instrumentation.
func (p *PPU) Scanline() int { return p.scanline }
func (p *PPU) Cycle() int    { return p.cycle }

// FrameCount returns the number of frames completed.
func (p *PPU) FrameCount() uint64 { return p.frameCount }

// IsVBlank reports whether the vertical blank flag is set.
func (p *PPU) IsVBlank() bool { return p.ppuStatus&0x80 != 0 }

// ReadRegister reads from a PPU register ($2000-$2007, mirrored to $3FFF
// by the CPU memory map before reaching here).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002:
		status := p.ppuStatus
		p.ppuStatus &= 0x7F // clear VBL (bit7) on read; sprite0 hit/overflow persist until pre-render
		p.w = false
		return status
	case 0x2004:
		return p.oam[p.oamAddr]
	case 0x2007:
		return p.readPPUData()
	default:
		return p.ppuStatus & 0x1F
	}
}

// WriteRegister writes to a PPU register.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x2000:
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
		p.updateRenderingFlags()
		p.checkNMI()
	case 0x2001:
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2002:
		// read only
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		p.writePPUScroll(value)
	case 0x2006:
		p.writePPUAddr(value)
	case 0x2007:
		p.writePPUData(value)
	}
}

// WriteOAM writes directly into OAM, used by the bus's OAM DMA transfer.
func (p *PPU) WriteOAM(address uint8, value uint8) { p.oam[address] = value }

func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = p.ppuMask&0x08 != 0
	p.spritesEnabled = p.ppuMask&0x10 != 0
	p.renderingEnabled = p.backgroundEnabled || p.spritesEnabled
}

func (p *PPU) checkNMI() {
	if p.ppuCtrl&0x80 != 0 && p.ppuStatus&0x80 != 0 && p.nmiCallback != nil {
		p.nmiCallback()
	}
}

func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
		p.w = true
	} else {
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
		p.w = false
	}
}

func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

func (p *PPU) readPPUData() uint8 {
	var data uint8
	if p.memory != nil {
		if p.v >= 0x3F00 {
			data = p.memory.Read(p.v)
			p.readBuffer = p.memory.Read(p.v & 0x2FFF)
		} else {
			data = p.readBuffer
			p.readBuffer = p.memory.Read(p.v)
		}
	}
	p.advanceVRAMAddress()
	return data
}

func (p *PPU) writePPUData(value uint8) {
	if p.memory != nil {
		p.memory.Write(p.v, value)
	}
	p.advanceVRAMAddress()
}

func (p *PPU) advanceVRAMAddress() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

// Tick advances the PPU by exactly one dot. The bus calls this three times
// per CPU cycle.
func (p *PPU) Tick() {
	p.cycleCount++

	isRenderScanline := p.scanline == -1 || (p.scanline >= 0 && p.scanline < 240)

	if isRenderScanline {
		p.renderTick()
	}

	if p.scanline >= 0 && p.scanline < 240 && p.cycle == 65 && p.spritesEnabled {
		target := p.scanline + 1
		p.evaluateSprites(target)
	}
	if isRenderScanline && p.cycle == 257 {
		p.fetchSpritePatterns()
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.ppuStatus |= 0x80
		if p.sink != nil {
			p.sink.Render()
		}
		p.checkNMI()
	}
	if p.scanline == -1 && p.cycle == 1 {
		p.ppuStatus &= 0x1F // clear VBL, sprite0 hit, and sprite overflow
		p.sprite0Hit = false
		p.spriteOverflow = false
	}
	if p.scanline == -1 && p.cycle >= 280 && p.cycle <= 304 && p.renderingEnabled {
		p.copyY()
	}
	if p.cycle == 260 && p.renderingEnabled && isRenderScanline && p.a12Hook != nil {
		p.a12Hook()
	}

	maxCycle := 340
	if p.scanline == -1 && p.oddFrame && p.renderingEnabled {
		maxCycle = 339
	}
	p.cycle++
	if p.cycle > maxCycle {
		p.cycle = 0
		p.scanline++
		if p.scanline > 260 {
			p.scanline = -1
			p.frameCount++
			p.oddFrame = !p.oddFrame
		}
	}
}

// renderTick drives the background shift queue: popping a pixel for output
// on visible dots, and fetching/appending tiles every 8 dots across both
// the visible fetch window (1-256) and the next-scanline prefetch window
// (321-336).
func (p *PPU) renderTick() {
	inFetchWindow := (p.cycle >= 1 && p.cycle <= 256) || (p.cycle >= 321 && p.cycle <= 336)
	if !inFetchWindow {
		return
	}

	var bgNibble uint8
	visibleOutput := p.scanline >= 0 && p.scanline < 240 && p.cycle <= 256
	if p.cycle <= 256 {
		bgNibble = uint8((p.bgQueue >> 60) & 0xF)
		p.bgQueue <<= 4
	}
	if visibleOutput {
		p.outputPixel(p.cycle-1, p.scanline, bgNibble)
	}

	p.tileCycle++
	if p.tileCycle == 8 {
		p.tileCycle = 0
		p.bgQueue |= uint64(p.pendingTileBits)
		if p.renderingEnabled {
			p.incrementX()
		}
		if p.memory != nil {
			p.pendingTileBits = p.fetchBackgroundTile()
		}
	}

	if p.cycle == 256 && p.renderingEnabled {
		p.incrementY()
	}
	if p.cycle == 257 && p.renderingEnabled {
		p.copyX()
	}
}

// fetchBackgroundTile reads the nametable/attribute/pattern bytes for the
// tile at the current v register and packs its 8 pixels into 32 bits.
func (p *PPU) fetchBackgroundTile() uint32 {
	nametableAddr := 0x2000 | (p.v & 0x0FFF)
	tileID := p.memory.Read(nametableAddr)

	attributeAddr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
	attributeByte := p.memory.Read(attributeAddr)
	shift := ((p.getCoarseY() & 2) << 1) | (p.getCoarseX() & 2)
	attrBits := (attributeByte >> uint(shift)) & 0x03

	var patternBase uint16
	if p.ppuCtrl&0x10 != 0 {
		patternBase = 0x1000
	}
	patternAddr := patternBase + uint16(tileID)*16 + uint16(p.getFineY())
	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 8)

	return packTileBits(attrBits, patternLow, patternHigh)
}

func packTileBits(attrBits, patternLow, patternHigh uint8) uint32 {
	var bits uint32
	for i := 0; i < 8; i++ {
		bitPos := uint(7 - i)
		lo := (patternLow >> bitPos) & 1
		hi := (patternHigh >> bitPos) & 1
		colorIndex := (hi << 1) | lo
		nibble := (colorIndex << 2) | attrBits
		bits |= uint32(nibble) << uint(28-i*4)
	}
	return bits
}

// evaluateSprites finds sprites visible on targetScanline (the scanline
// that will be rendered next) and stages them for fetchSpritePatterns.
func (p *PPU) evaluateSprites(targetScanline int) {
	height := 8
	if p.ppuCtrl&0x20 != 0 {
		height = 16
	}

	found := 0
	for i := 0; i < 64; i++ {
		oamIdx := i * 4
		sY := int(p.oam[oamIdx])
		if targetScanline >= sY+1 && targetScanline < sY+1+height {
			if found < 8 {
				copy(p.pendingSecondaryOAM[found*4:found*4+4], p.oam[oamIdx:oamIdx+4])
				p.pendingSpriteIndices[found] = uint8(i)
				found++
			} else {
				p.spriteOverflow = true
				p.ppuStatus |= 0x20
				break
			}
		}
	}
	p.pendingSpriteCount = uint8(found)
	for k := found; k < 8; k++ {
		p.pendingSpriteIndices[k] = 0xFF
	}
}

// fetchSpritePatterns builds activeSprites for the scanline about to start,
// from the staging evaluated at dot 65 of the current scanline.
func (p *PPU) fetchSpritePatterns() {
	targetLine := p.scanline + 1
	height := 8
	if p.ppuCtrl&0x20 != 0 {
		height = 16
	}

	for i := 0; i < 8; i++ {
		if uint8(i) >= p.pendingSpriteCount {
			p.activeSprites[i].active = false
			continue
		}
		base := i * 4
		sY := int(p.pendingSecondaryOAM[base])
		tileIndex := p.pendingSecondaryOAM[base+1]
		attr := p.pendingSecondaryOAM[base+2]
		sX := int(p.pendingSecondaryOAM[base+3])

		row := targetLine - (sY + 1)
		if row < 0 {
			row = 0
		}
		if attr&0x80 != 0 {
			row = height - 1 - row
		}

		var patternBase uint16
		effectiveTile := tileIndex
		if height == 16 {
			if tileIndex&0x01 != 0 {
				patternBase = 0x1000
			}
			effectiveTile &= 0xFE
			if row >= 8 {
				effectiveTile++
				row -= 8
			}
		} else if p.ppuCtrl&0x08 != 0 {
			patternBase = 0x1000
		}

		var patternLow, patternHigh uint8
		if p.memory != nil {
			addr := patternBase + uint16(effectiveTile)*16 + uint16(row)
			patternLow = p.memory.Read(addr)
			patternHigh = p.memory.Read(addr + 8)
		}
		if attr&0x40 != 0 {
			patternLow = reverseBits8(patternLow)
			patternHigh = reverseBits8(patternHigh)
		}

		p.activeSprites[i] = spriteSlot{
			x:           sX,
			patternLow:  patternLow,
			patternHigh: patternHigh,
			attributes:  attr,
			isSprite0:   p.pendingSpriteIndices[i] == 0,
			active:      true,
		}
	}
}

func reverseBits8(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

// outputPixel composites background and sprite pixels at (x,y), resolves
// sprite-zero hit, and forwards the final NES palette index to the sink.
func (p *PPU) outputPixel(x, y int, bgNibble uint8) {
	bgColorIndex := (bgNibble >> 2) & 0x03
	bgPalette := bgNibble & 0x03
	bgOpaque := p.backgroundEnabled && bgColorIndex != 0 && !(x < 8 && p.ppuMask&0x02 == 0)

	var spriteColorIndex, spritePalette uint8
	var spritePriorityBehind, isSprite0, spriteOpaque bool
	if p.spritesEnabled && !(x < 8 && p.ppuMask&0x04 == 0) {
		for i := range p.activeSprites {
			s := &p.activeSprites[i]
			if !s.active || x < s.x || x >= s.x+8 {
				continue
			}
			bit := uint(7 - (x - s.x))
			lo := (s.patternLow >> bit) & 1
			hi := (s.patternHigh >> bit) & 1
			ci := (hi << 1) | lo
			if ci == 0 {
				continue
			}
			spriteColorIndex = ci
			spritePalette = s.attributes & 0x03
			spritePriorityBehind = s.attributes&0x20 != 0
			isSprite0 = s.isSprite0
			spriteOpaque = true
			break
		}
	}

	if isSprite0 && bgOpaque && spriteOpaque && x != 255 {
		p.sprite0Hit = true
		p.ppuStatus |= 0x40
	}

	var nesIndex uint8
	if p.memory != nil {
		switch {
		case !bgOpaque && !spriteOpaque:
			nesIndex = p.memory.Read(0x3F00)
		case !bgOpaque:
			nesIndex = p.memory.Read(0x3F10 + uint16(spritePalette)*4 + uint16(spriteColorIndex))
		case !spriteOpaque:
			nesIndex = p.memory.Read(0x3F00 + uint16(bgPalette)*4 + uint16(bgColorIndex))
		case spritePriorityBehind:
			nesIndex = p.memory.Read(0x3F00 + uint16(bgPalette)*4 + uint16(bgColorIndex))
		default:
			nesIndex = p.memory.Read(0x3F10 + uint16(spritePalette)*4 + uint16(spriteColorIndex))
		}
	}

	if p.sink != nil {
		p.sink.Put(x, y, nesIndex)
	}
}

// Scroll helper methods for VRAM address manipulation (loopy registers).

func (p *PPU) getCoarseX() int { return int(p.v & 0x001F) }
func (p *PPU) getCoarseY() int { return int((p.v >> 5) & 0x001F) }
func (p *PPU) getFineY() int   { return int((p.v >> 12) & 0x0007) }

func (p *PPU) incrementX() {
	if (p.v & 0x001F) == 31 {
		p.v &= ^uint16(0x001F)
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementY() {
	if (p.v & 0x7000) != 0x7000 {
		p.v += 0x1000
	} else {
		p.v &= ^uint16(0x7000)
		y := (p.v & 0x03E0) >> 5
		switch y {
		case 29:
			y = 0
			p.v ^= 0x0800
		case 31:
			y = 0
		default:
			y++
		}
		p.v = (p.v & ^uint16(0x03E0)) | (y << 5)
	}
}

func (p *PPU) copyX() { p.v = (p.v & 0xFBE0) | (p.t & 0x041F) }
func (p *PPU) copyY() { p.v = (p.v & 0x841F) | (p.t & 0x7BE0) }

// nesColorPalette is the NES 2C02 NTSC palette.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a NES palette index (0-63) to an RGB value.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}

// Save writes a deterministic snapshot of PPU state.
func (p *PPU) Save(w io.Writer) error {
	fields := []any{
		p.ppuCtrl, p.ppuMask, p.ppuStatus, p.oamAddr,
		p.v, p.t, p.x, p.w,
		p.readBuffer,
		int32(p.scanline), int32(p.cycle), p.frameCount, p.oddFrame, p.cycleCount,
		p.oam,
		p.pendingSecondaryOAM, p.pendingSpriteIndices, p.pendingSpriteCount,
		p.sprite0Hit, p.spriteOverflow,
		p.bgQueue, int32(p.tileCycle), p.pendingTileBits,
		p.backgroundEnabled, p.spritesEnabled, p.renderingEnabled,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	for _, s := range p.activeSprites {
		if err := binary.Write(w, binary.LittleEndian, int32(s.x)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, [3]uint8{s.patternLow, s.patternHigh, s.attributes}); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, [2]bool{s.isSprite0, s.active}); err != nil {
			return err
		}
	}
	return nil
}

// Load restores PPU state written by Save.
func (p *PPU) Load(r io.Reader) error {
	var scanline, cycle, tileCycle int32
	targets := []any{
		&p.ppuCtrl, &p.ppuMask, &p.ppuStatus, &p.oamAddr,
		&p.v, &p.t, &p.x, &p.w,
		&p.readBuffer,
		&scanline, &cycle, &p.frameCount, &p.oddFrame, &p.cycleCount,
		&p.oam,
		&p.pendingSecondaryOAM, &p.pendingSpriteIndices, &p.pendingSpriteCount,
		&p.sprite0Hit, &p.spriteOverflow,
		&p.bgQueue, &tileCycle, &p.pendingTileBits,
		&p.backgroundEnabled, &p.spritesEnabled, &p.renderingEnabled,
	}
	for _, t := range targets {
		if err := binary.Read(r, binary.LittleEndian, t); err != nil {
			return err
		}
	}
	p.scanline = int(scanline)
	p.cycle = int(cycle)
	p.tileCycle = int(tileCycle)

	for i := range p.activeSprites {
		var x int32
		var bytes [3]uint8
		var bools [2]bool
		if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &bytes); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &bools); err != nil {
			return err
		}
		p.activeSprites[i] = spriteSlot{
			x: int(x), patternLow: bytes[0], patternHigh: bytes[1], attributes: bytes[2],
			isSprite0: bools[0], active: bools[1],
		}
	}
	return nil
}
