// Command headless runs the NES core for a fixed number of frames with no
// window, dumping PPM screenshots for scripted testing and golden-frame
// comparison.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gones/internal/app"
)

func main() {
	var (
		romFile   = flag.String("rom", "", "Path to NES ROM file (required)")
		frames    = flag.Int("frames", 120, "Number of frames to run")
		outDir    = flag.String("out", ".", "Directory to write PPM screenshots into")
		savestate = flag.String("savestate", "", "Save a state snapshot to this path after running")
	)
	flag.Parse()

	if *romFile == "" {
		fmt.Println("usage: headless -rom game.nes [-frames N] [-out dir] [-savestate path]")
		os.Exit(2)
	}

	application, err := app.NewApplicationWithMode("", true)
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			log.Printf("cleanup error: %v", err)
		}
	}()

	if err := application.LoadROM(*romFile); err != nil {
		log.Fatalf("failed to load ROM: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	fmt.Printf("Running %d frames...\n", *frames)
	for frame := 0; frame < *frames; frame++ {
		if err := application.RunFrames(1); err != nil {
			log.Fatalf("frame %d failed: %v", frame, err)
		}

		if frame == 29 || frame == 59 || frame == *frames-1 {
			frameBuffer := application.GetFrameSink().FrameBuffer()
			name := filepath.Join(*outDir, fmt.Sprintf("frame_%03d.ppm", frame+1))
			if err := saveFrameAsPPM(frameBuffer, name); err != nil {
				fmt.Printf("failed to write %s: %v\n", name, err)
				continue
			}
			analyzeFrame(frameBuffer, frame+1)
		}
	}

	if *savestate != "" {
		states := app.NewStateManager(filepath.Dir(*savestate))
		if err := states.ExportState(application.GetBus(), *savestate, application.GetROMPath()); err != nil {
			log.Printf("savestate failed: %v", err)
		} else {
			fmt.Printf("Saved state to %s\n", *savestate)
		}
	}

	fmt.Printf("Completed %d frames\n", application.GetFrameCount())
}

// saveFrameAsPPM writes a 0x00RRGGBB-packed frame buffer out as a plain PPM (P3)
// image, viewable with any image tool without extra dependencies.
func saveFrameAsPPM(frameBuffer [256 * 240]uint32, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "P3\n256 240\n255\n")
	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			pixel := frameBuffer[y*256+x]
			r := (pixel >> 16) & 0xFF
			g := (pixel >> 8) & 0xFF
			b := pixel & 0xFF
			fmt.Fprintf(file, "%d %d %d ", r, g, b)
		}
		fmt.Fprintf(file, "\n")
	}
	return nil
}

// analyzeFrame prints a quick color histogram summary, useful for spotting a
// blank/garbage frame without opening the PPM.
func analyzeFrame(frameBuffer [256 * 240]uint32, frame int) {
	colorCounts := make(map[uint32]int)
	for _, pixel := range frameBuffer {
		colorCounts[pixel]++
	}

	nonBlack := 0
	for color, count := range colorCounts {
		if color != 0x000000 {
			nonBlack += count
		}
	}

	fmt.Printf("  frame %d: %d distinct colors, %d non-black pixels (%.1f%%)\n",
		frame, len(colorCounts), nonBlack, float64(nonBlack)/float64(256*240)*100)
}
