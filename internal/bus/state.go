package bus

import (
	"encoding/binary"
	"io"
)

// saveBusState persists the bus's own timing state: the CPU cycle count,
// pending DMA stall/page, the 60Hz dot accumulator, and frame counter. Save
// ordering of components is fixed by Bus.Save; this always runs last.
func saveBusState(w io.Writer, b *Bus) error {
	fields := []any{
		b.cpuCycles,
		int64(b.stallCycles),
		int64(b.dmaPage),
		int64(b.dotAccumulator),
		b.frameCount,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// loadBusState restores state written by saveBusState.
func loadBusState(r io.Reader, b *Bus) error {
	var stallCycles, dmaPage, dotAccumulator int64
	targets := []any{
		&b.cpuCycles,
		&stallCycles,
		&dmaPage,
		&dotAccumulator,
		&b.frameCount,
	}
	for _, t := range targets {
		if err := binary.Read(r, binary.LittleEndian, t); err != nil {
			return err
		}
	}
	b.stallCycles = int(stallCycles)
	b.dmaPage = int(dmaPage)
	b.dotAccumulator = int(dotAccumulator)
	b.frameComplete = false
	return nil
}
