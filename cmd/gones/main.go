// Package main implements the gones NES emulator executable.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gones/internal/app"
	"gones/internal/version"
)

func main() {
	var (
		romFile    = flag.String("rom", "", "Path to NES ROM file (optional for GUI mode)")
		configFile = flag.String("config", "", "Path to configuration file")
		debug      = flag.Bool("debug", false, "Enable debug mode")
		nogui      = flag.Bool("nogui", false, "Run without GUI (headless mode)")
		help       = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}
	if *showVer {
		version.PrintBuildInfo()
		os.Exit(0)
	}

	setupGracefulShutdown()

	fmt.Println("gones - Go NES Emulator starting...")

	configPath := *configFile
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}

	application, err := app.NewApplicationWithMode(configPath, *nogui)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if *nogui {
		application.GetConfig().Video.Backend = "headless"
		fmt.Println("Headless mode requested")
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			log.Printf("Application cleanup error: %v", err)
		}
	}()

	if *debug {
		application.GetConfig().UpdateDebug(true, true, true)
		application.ApplyDebugSettings()
	}

	if *romFile != "" {
		fmt.Printf("Loading ROM: %s\n", *romFile)
		if err := application.LoadROM(*romFile); err != nil {
			log.Fatalf("Failed to load ROM: %v", err)
		}
		fmt.Println("ROM loaded successfully")
		if *debug {
			application.ApplyDebugSettings()
		}
	}

	if *nogui {
		if *romFile == "" {
			log.Fatal("ROM file required for headless mode")
		}
		fmt.Println("Running in headless mode (120 frames)...")
		if err := application.RunFrames(120); err != nil {
			log.Fatalf("Headless run failed: %v", err)
		}
		fmt.Printf("Completed %d frames\n", application.GetFrameCount())
	} else {
		fmt.Println("Starting GUI mode...")
		if err := runGUIMode(application); err != nil {
			log.Fatalf("GUI mode failed: %v", err)
		}
	}

	fmt.Println("Emulator shutting down...")
}

func runGUIMode(application *app.Application) error {
	config := application.GetConfig()
	windowWidth, windowHeight := config.GetWindowResolution()
	fmt.Printf("  Window: %dx%d (scale %dx)\n", windowWidth, windowHeight, config.Window.Scale)
	fmt.Printf("  Audio: %s (%d Hz, %.0f%% volume)\n",
		enabledString(config.Audio.Enabled), config.Audio.SampleRate, config.Audio.Volume*100)
	fmt.Printf("  Video: %s, %s, VSync: %s\n",
		config.Video.Filter, config.Video.AspectRatio, enabledString(config.Video.VSync))

	if err := application.Run(); err != nil {
		return fmt.Errorf("application run failed: %v", err)
	}

	fmt.Printf("Session statistics:\n")
	fmt.Printf("  Frames rendered: %d\n", application.GetFrameCount())
	fmt.Printf("  Session time: %v\n", application.GetUptime())
	fmt.Printf("  Average FPS: %.1f\n", application.GetFPS())

	return nil
}

func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Println("\nInterrupt received, shutting down gracefully...")
		os.Exit(0)
	}()
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func printUsage() {
	fmt.Println("gones - Go NES Emulator")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  gones [options]                    # Start GUI mode without ROM")
	fmt.Println("  gones -rom <file> [options]        # Start with ROM loaded")
	fmt.Println("  gones -nogui -rom <file> [options] # Run headless mode")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("CONTROLS (Default):")
	fmt.Println("  Player 1: Arrow Keys/WASD D-Pad, J=A, K=B, Enter=Start, Space=Select")
	fmt.Println("  Player 2: 1234=D-Pad, 5=A, 6=B, 7=Start, 8=Select")
	fmt.Println("  Escape (2x within 3s) - Quit")
	fmt.Println("  F1-F10               - Save state")
	fmt.Println("  Shift+F1-F10         - Load state")
	fmt.Println()
	fmt.Println("SUPPORTED FORMATS: iNES (.nes), NES 2.0")
}
