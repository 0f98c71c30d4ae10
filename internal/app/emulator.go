// Package app provides emulator integration for the main application.
package app

import (
	"fmt"
	"time"

	"gones/internal/bus"
)

// Emulator drives the bus one frame per Update call, at whatever pace the
// host (Ebitengine's 60Hz callback, or the plain polling loop) calls it.
type Emulator struct {
	bus    *bus.Bus
	config *Config

	targetFrameTime time.Duration

	actualFrameTime  time.Duration
	emulationTime    time.Duration
	averageFrameTime time.Duration

	isRunning     bool
	lastResetTime time.Time
}

// NewEmulator creates an emulator bound to bus, targeting 60 FPS.
func NewEmulator(b *bus.Bus, config *Config) *Emulator {
	e := &Emulator{
		bus:             b,
		config:          config,
		targetFrameTime: time.Second / 60,
	}
	e.Reset()
	return e
}

// Reset clears timing state; it does not reset the bus itself.
func (e *Emulator) Reset() {
	e.actualFrameTime = 0
	e.emulationTime = 0
	e.averageFrameTime = 0
	e.lastResetTime = time.Now()
}

// Start marks the emulator as running.
func (e *Emulator) Start() {
	e.isRunning = true
}

// Stop marks the emulator as not running.
func (e *Emulator) Stop() {
	e.isRunning = false
}

// Update runs exactly one frame of emulation through the bus.
func (e *Emulator) Update() error {
	if !e.isRunning {
		return nil
	}
	if e.bus == nil {
		return fmt.Errorf("bus not initialized")
	}

	frameStart := time.Now()
	e.bus.RunFrame()
	e.emulationTime = time.Since(frameStart)
	e.actualFrameTime = e.emulationTime

	if e.averageFrameTime == 0 {
		e.averageFrameTime = e.actualFrameTime
	} else {
		e.averageFrameTime = time.Duration(
			float64(e.averageFrameTime)*0.95 + float64(e.actualFrameTime)*0.05,
		)
	}

	return nil
}

// StepFrame runs one frame of emulation regardless of running state, for
// headless/tooling callers that drive the bus directly.
func (e *Emulator) StepFrame() error {
	if e.bus == nil {
		return fmt.Errorf("bus not initialized")
	}
	e.bus.RunFrame()
	return nil
}

// GetFrameCount returns the bus's own frame counter.
func (e *Emulator) GetFrameCount() uint64 {
	if e.bus == nil {
		return 0
	}
	return e.bus.FrameCount()
}

// GetCycleCount returns the bus's own CPU cycle counter.
func (e *Emulator) GetCycleCount() uint64 {
	if e.bus == nil {
		return 0
	}
	return e.bus.CycleCount()
}

// GetEmulationTime returns the time spent emulating the last frame.
func (e *Emulator) GetEmulationTime() time.Duration { return e.emulationTime }

// GetActualFrameTime returns the wall-clock time the last Update call took.
func (e *Emulator) GetActualFrameTime() time.Duration { return e.actualFrameTime }

// GetAverageFrameTime returns an exponential moving average of frame time.
func (e *Emulator) GetAverageFrameTime() time.Duration { return e.averageFrameTime }

// GetTargetFrameTime returns the target frame time (60 FPS).
func (e *Emulator) GetTargetFrameTime() time.Duration { return e.targetFrameTime }

// GetEmulationSpeed returns emulation speed as a percentage of real-time.
func (e *Emulator) GetEmulationSpeed() float64 {
	if e.actualFrameTime == 0 {
		return 0
	}
	return float64(e.targetFrameTime) / float64(e.actualFrameTime) * 100.0
}

// IsRunning returns whether the emulator is running.
func (e *Emulator) IsRunning() bool { return e.isRunning }

// GetUptime returns the time since the emulator was last reset.
func (e *Emulator) GetUptime() time.Duration { return time.Since(e.lastResetTime) }

// SetTargetFrameRate sets the target frame rate used for speed reporting.
func (e *Emulator) SetTargetFrameRate(fps int) {
	if fps > 0 {
		e.targetFrameTime = time.Second / time.Duration(fps)
	}
}

// EmulatorStats summarizes emulator timing for display/debug purposes.
type EmulatorStats struct {
	FrameCount       uint64
	CycleCount       uint64
	EmulationTime    time.Duration
	ActualFrameTime  time.Duration
	AverageFrameTime time.Duration
	TargetFrameTime  time.Duration
	EmulationSpeed   float64
	Uptime           time.Duration
	IsRunning        bool
}

// GetPerformanceStats returns a snapshot of emulator timing statistics.
func (e *Emulator) GetPerformanceStats() EmulatorStats {
	return EmulatorStats{
		FrameCount:       e.GetFrameCount(),
		CycleCount:       e.GetCycleCount(),
		EmulationTime:    e.emulationTime,
		ActualFrameTime:  e.actualFrameTime,
		AverageFrameTime: e.averageFrameTime,
		TargetFrameTime:  e.targetFrameTime,
		EmulationSpeed:   e.GetEmulationSpeed(),
		Uptime:           e.GetUptime(),
		IsRunning:        e.isRunning,
	}
}

// Cleanup releases emulator resources.
func (e *Emulator) Cleanup() error {
	e.Stop()
	return nil
}
