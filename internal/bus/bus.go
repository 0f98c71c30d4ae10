// Package bus implements the system bus tying the CPU, PPU, APU, memory
// maps, cartridge, and input together under a single-threaded, per-cycle
// interleave.
package bus

import (
	"io"

	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/input"
	"gones/internal/memory"
	"gones/internal/ppu"
)

// dotsPerFrame is the NTSC PPU dot count per frame (341 cycles/scanline *
// 262 scanlines), used only for the bus's own 60Hz presentation pacing,
// deliberately independent of the PPU's internal frame/odd-frame bookkeeping.
const dotsPerFrame = 89342

// Bus wires all NES components together and drives them one CPU cycle at a
// time: CPU tick, APU tick, PPU tick x3, mapper A12 hook, then the combined
// IRQ line is re-evaluated.
type Bus struct {
	CPU       *cpu.CPU
	PPU       *ppu.PPU
	APU       *apu.APU
	Memory    *memory.Memory
	Input     *input.InputState
	Cartridge *cartridge.Cartridge

	cpuCycles uint64

	// stallCycles counts CPU ticks to skip for an in-flight OAM or DMC DMA
	// transfer; both share one pool since they can never overlap in a way
	// that matters to the CPU (it is simply not ticking either way).
	stallCycles int
	dmaPage     int // -1 when no OAM DMA copy is pending this cycle

	// dotAccumulator paces the bus's own 60Hz frame-complete signal,
	// separate from the PPU's internal (241,1) sink.Render() call.
	dotAccumulator int
	frameComplete  bool
	frameCount     uint64
}

// New creates a system bus with no cartridge loaded.
func New() *Bus {
	b := &Bus{dmaPage: -1}

	b.PPU = ppu.New()
	b.APU = apu.New()
	b.Input = input.NewInputState()
	b.Memory = memory.New(b.PPU, b.APU, nil)
	b.Memory.SetInputSystem(b.Input)
	b.Memory.SetDMACallback(b.triggerOAMDMA)
	b.CPU = cpu.New(b.Memory)
	b.APU.SetMemory(b.Memory)

	b.PPU.SetNMICallback(b.triggerNMI)

	b.Reset()
	return b
}

// Reset restores all components to their power-up state.
func (b *Bus) Reset() {
	b.CPU.Powerup()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.cpuCycles = 0
	b.stallCycles = 0
	b.dmaPage = -1
	b.dotAccumulator = 0
	b.frameComplete = false
	b.frameCount = 0
}

// LoadCartridge installs a cartridge, rebuilding the CPU and PPU memory
// maps around it and wiring the mapper's A12 hook and IRQ line.
func (b *Bus) LoadCartridge(cart *cartridge.Cartridge) {
	b.Cartridge = cart

	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.Memory.SetDMACallback(b.triggerOAMDMA)
	b.CPU = cpu.New(b.Memory)
	b.APU.SetMemory(b.Memory)

	ppuMemory := memory.NewPPUMemory(cart, toMirrorMode(cart.GetMirrorMode()))
	b.PPU.SetMemory(ppuMemory)
	b.PPU.SetNMICallback(b.triggerNMI)
	b.PPU.SetA12Hook(func() { cart.TickMapper() })

	b.CPU.Powerup()
}

func toMirrorMode(m cartridge.MirrorMode) memory.MirrorMode {
	switch m {
	case cartridge.MirrorVertical:
		return memory.MirrorVertical
	case cartridge.MirrorSingleScreen0:
		return memory.MirrorSingleScreen0
	case cartridge.MirrorSingleScreen1:
		return memory.MirrorSingleScreen1
	case cartridge.MirrorFourScreen:
		return memory.MirrorFourScreen
	default:
		return memory.MirrorHorizontal
	}
}

// SetVideoSink binds the PPU's pixel/frame destination.
func (b *Bus) SetVideoSink(sink ppu.VideoSink) { b.PPU.SetVideoSink(sink) }

// SetAudioSink binds the APU's sample destination.
func (b *Bus) SetAudioSink(sink apu.AudioSink) { b.APU.SetAudioSink(sink) }

func (b *Bus) triggerNMI() { b.CPU.TriggerNMI() }

// triggerOAMDMA is installed as the memory package's $4014 DMA callback. It
// charges the CPU the standard 513/514-cycle stall (514 when the transfer
// starts on an odd CPU cycle) and defers the actual 256-byte copy so it
// happens spread across the stalled cycles, one tick loop below.
func (b *Bus) triggerOAMDMA(page uint8) {
	cycles := 513
	if b.cpuCycles%2 == 1 {
		cycles = 514
	}
	b.stallCycles += cycles
	b.dmaPage = int(page)
}

// tick advances the system by exactly one CPU cycle: CPU, then APU, then
// the PPU three times, in that order, per the NES's 1:1:3 clock ratio.
func (b *Bus) tick() {
	if b.stallCycles > 0 {
		b.stallCycles--
		if b.dmaPage >= 0 {
			b.copyOAMDMAByte()
		}
	} else {
		b.CPU.Tick()
	}

	if stall := b.APU.Tick(); stall > 0 {
		b.stallCycles += stall
	}

	for i := 0; i < 3; i++ {
		b.PPU.Tick()
	}

	b.CPU.TriggerIRQ(b.cartridgeIRQPending() || b.APU.IRQAsserted())

	b.cpuCycles++
	b.dotAccumulator += 3
	if b.dotAccumulator >= dotsPerFrame {
		b.dotAccumulator -= dotsPerFrame
		b.frameComplete = true
		b.frameCount++
	}
}

// copyOAMDMAByte copies one byte of the 256-byte OAM DMA transfer per
// stalled cycle, completing the transfer over the last 256 of the charged
// stall cycles (real hardware performs the read/write pair every other
// cycle; this collapses that into the read-then-write per stalled tick,
// which is all that is externally observable).
func (b *Bus) copyOAMDMAByte() {
	index := 255 - b.stallCycles
	if index < 0 || index >= 256 {
		if b.stallCycles == 0 {
			b.dmaPage = -1
		}
		return
	}
	source := uint16(b.dmaPage)<<8 + uint16(index)
	b.PPU.WriteOAM(uint8(index), b.Memory.Read(source))
	if b.stallCycles == 0 {
		b.dmaPage = -1
	}
}

func (b *Bus) cartridgeIRQPending() bool {
	if b.Cartridge == nil {
		return false
	}
	return b.Cartridge.IRQPending()
}

// RunFrame ticks the bus until one 89342-dot NTSC frame has elapsed,
// independent of the PPU's own internal frame bookkeeping.
func (b *Bus) RunFrame() {
	b.frameComplete = false
	for !b.frameComplete {
		b.tick()
	}
}

// RunCycles ticks the bus for an exact number of CPU cycles, e.g. for
// deterministic test fixtures.
func (b *Bus) RunCycles(cycles uint64) {
	for i := uint64(0); i < cycles; i++ {
		b.tick()
	}
}

// CycleCount returns the total number of CPU cycles elapsed since reset.
func (b *Bus) CycleCount() uint64 { return b.cpuCycles }

// FrameCount returns the bus's own 60Hz frame counter.
func (b *Bus) FrameCount() uint64 { return b.frameCount }

// SetControllerButton sets one button's state on a 1-indexed controller.
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

// SetControllerButtons sets all eight button states at once on a 1-indexed
// controller.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// SaveSRAM writes the cartridge's battery-backed PRG RAM, independent of a
// full save-state, for the host to persist alongside the ROM file. It is a
// no-op when no cartridge is loaded or the cartridge has no battery.
func (b *Bus) SaveSRAM(w io.Writer) error {
	if b.Cartridge == nil || !b.Cartridge.HasBattery() {
		return nil
	}
	return b.Cartridge.SaveSRAM(w)
}

// LoadSRAM restores battery-backed PRG RAM written by SaveSRAM.
func (b *Bus) LoadSRAM(r io.Reader) error {
	if b.Cartridge == nil || !b.Cartridge.HasBattery() {
		return nil
	}
	return b.Cartridge.LoadSRAM(r)
}

// Save writes a deterministic snapshot of every component, in a fixed
// order: CPU, PPU, APU, work RAM/PPU memory, input, cartridge
// (mapper + SRAM), then the bus's own timing state.
func (b *Bus) Save(w io.Writer) error {
	savers := []func(io.Writer) error{
		b.CPU.Save,
		b.PPU.Save,
		b.APU.Save,
		b.Memory.Save,
		b.Input.Save,
	}
	if b.Cartridge != nil {
		savers = append(savers, b.Cartridge.Save)
	}
	for _, save := range savers {
		if err := save(w); err != nil {
			return err
		}
	}
	return saveBusState(w, b)
}

// Load restores a snapshot written by Save, in the same fixed order.
func (b *Bus) Load(r io.Reader) error {
	loaders := []func(io.Reader) error{
		b.CPU.Load,
		b.PPU.Load,
		b.APU.Load,
		b.Memory.Load,
		b.Input.Load,
	}
	if b.Cartridge != nil {
		loaders = append(loaders, b.Cartridge.Load)
	}
	for _, load := range loaders {
		if err := load(r); err != nil {
			return err
		}
	}
	return loadBusState(r, b)
}
