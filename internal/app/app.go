// Package app implements the main NES emulator application with GUI support.
package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gones/internal/audio"
	"gones/internal/bus"
	"gones/internal/cartridge"
	"gones/internal/graphics"
	"gones/internal/input"
)

// Application represents the main NES emulator application.
type Application struct {
	bus *bus.Bus

	graphicsBackend graphics.Backend
	window          graphics.Window
	videoProcessor  *graphics.VideoProcessor
	frameSink       *graphics.FrameSink

	audioSink   *audio.Sink
	audioPlayer *audio.Player

	config   *Config
	emulator *Emulator
	states   *StateManager

	running     bool
	paused      bool
	showMenu    bool
	initialized bool
	headless    bool

	frameCount  uint64
	startTime   time.Time
	lastFPSTime time.Time
	currentFPS  float64

	romPath   string
	cartridge *cartridge.Cartridge

	lastESCTime time.Time

	lastController1State  [8]bool
	lastController2State  [8]bool
	inputStateInitialized bool
}

// ApplicationError represents application-specific errors.
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("Application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

// NewApplication creates a new NES emulator application.
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode creates a new NES emulator application with
// optional headless mode.
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	app := &Application{
		config:      NewConfig(),
		headless:    headless,
		startTime:   time.Now(),
		lastFPSTime: time.Now(),
	}

	if configPath != "" {
		if err := app.config.LoadFromFile(configPath); err != nil {
			fmt.Printf("[APP_WARNING] Could not load config from %s, using defaults: %v\n", configPath, err)
		}
	}

	if err := app.initializeComponents(headless); err != nil {
		return nil, &ApplicationError{
			Component: "initialization",
			Operation: "component setup",
			Err:       err,
		}
	}

	return app, nil
}

// initializeComponents initializes all application components.
func (app *Application) initializeComponents(headless bool) error {
	app.bus = bus.New()

	app.frameSink = graphics.NewFrameSink()
	app.bus.SetVideoSink(app.frameSink)

	if app.config.Audio.Enabled {
		app.audioSink = audio.NewSink()
		app.bus.SetAudioSink(app.audioSink)

		player, err := audio.NewPlayer(app.audioSink)
		if err != nil {
			fmt.Printf("[APP_WARNING] Could not start audio player: %v\n", err)
		} else {
			player.SetVolume(float64(app.config.Audio.Volume))
			app.audioPlayer = player
		}
	}

	if err := app.initializeGraphicsBackend(headless); err != nil {
		return fmt.Errorf("failed to initialize graphics backend: %v", err)
	}

	app.emulator = NewEmulator(app.bus, app.config)
	app.states = NewStateManager(app.config.Paths.SaveStates)

	app.initialized = true
	return nil
}

// initializeGraphicsBackend initializes the graphics backend based on configuration.
func (app *Application) initializeGraphicsBackend(headless bool) error {
	var backendType graphics.BackendType
	if headless {
		backendType = graphics.BackendHeadless
	} else {
		switch app.config.Video.Backend {
		case "ebitengine":
			backendType = graphics.BackendEbitengine
		case "headless":
			backendType = graphics.BackendHeadless
		case "terminal":
			backendType = graphics.BackendTerminal
		default:
			backendType = graphics.BackendEbitengine
		}
	}

	var err error
	app.graphicsBackend, err = graphics.CreateBackend(backendType)
	if err != nil {
		return fmt.Errorf("failed to create graphics backend: %v", err)
	}

	graphicsConfig := graphics.Config{
		WindowTitle:  "gones - Go NES Emulator",
		WindowWidth:  app.config.Window.Width,
		WindowHeight: app.config.Window.Height,
		Fullscreen:   app.config.Window.Fullscreen,
		VSync:        app.config.Video.VSync,
		Filter:       app.config.Video.Filter,
		AspectRatio:  app.config.Video.AspectRatio,
		Headless:     headless,
		Debug:        app.config.Debug.EnableLogging,
	}

	if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
		if backendType == graphics.BackendEbitengine {
			fmt.Printf("[APP_WARNING] Ebitengine backend failed (%v), falling back to headless mode\n", err)
			app.graphicsBackend, err = graphics.CreateBackend(graphics.BackendHeadless)
			if err != nil {
				return fmt.Errorf("failed to create fallback headless backend: %v", err)
			}
			graphicsConfig.Headless = true
			if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
				return fmt.Errorf("failed to initialize fallback headless backend: %v", err)
			}
		} else {
			return fmt.Errorf("failed to initialize graphics backend: %v", err)
		}
	}

	if !headless && !app.graphicsBackend.IsHeadless() {
		app.window, err = app.graphicsBackend.CreateWindow(
			graphicsConfig.WindowTitle,
			graphicsConfig.WindowWidth,
			graphicsConfig.WindowHeight,
		)
		if err != nil {
			return fmt.Errorf("failed to create window: %v", err)
		}
	}

	app.videoProcessor = graphics.NewVideoProcessor(
		app.config.Video.Brightness,
		app.config.Video.Contrast,
		app.config.Video.Saturation,
	)

	return nil
}

// LoadROM loads a ROM file into the emulator.
func (app *Application) LoadROM(romPath string) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		return &ApplicationError{
			Component: "cartridge",
			Operation: "load ROM",
			Err:       err,
		}
	}

	app.cartridge = cart
	app.romPath = romPath

	app.bus.LoadCartridge(cart)
	app.bus.Reset()

	if app.window != nil {
		romName := filepath.Base(romPath)
		app.window.SetTitle(fmt.Sprintf("gones - %s", romName))
	}

	app.emulator.Start()

	return nil
}

// Run starts the main application loop.
func (app *Application) Run() error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	app.running = true
	app.startTime = time.Now()
	app.lastFPSTime = time.Now()

	if app.config.Debug.EnableLogging {
		fmt.Printf("[APP_DEBUG] Starting emulator with %s backend...\n", app.graphicsBackend.GetName())
	}

	if app.graphicsBackend.GetName() == "Ebitengine" && app.window != nil {
		if ebitengineWindow, ok := graphics.AsEbitengineWindow(app.window); ok {
			ebitengineWindow.SetEmulatorUpdateFunc(func() error {
				if err := app.processInput(); err != nil && app.config.Debug.EnableLogging {
					fmt.Printf("[APP_ERROR] Input processing error: %v\n", err)
				}
				if err := app.updateEmulator(); err != nil {
					return err
				}
				if err := app.render(); err != nil {
					return err
				}
				app.updateFPS()

				if app.window != nil && app.window.ShouldClose() {
					app.Stop()
				}
				return nil
			})
			return ebitengineWindow.Run()
		}
	}

	for app.running {
		if err := app.processInput(); err != nil && app.config.Debug.EnableLogging {
			fmt.Printf("[APP_ERROR] Input processing error: %v\n", err)
		}

		if err := app.updateEmulator(); err != nil && app.config.Debug.EnableLogging {
			fmt.Printf("[APP_DEBUG] Emulator update error: %v\n", err)
		}

		if err := app.render(); err != nil && app.config.Debug.EnableLogging {
			fmt.Printf("[APP_ERROR] Render error: %v\n", err)
		}

		app.updateFPS()

		if app.window != nil && app.window.ShouldClose() {
			app.Stop()
		}

		time.Sleep(16 * time.Millisecond) // ~60 FPS
	}

	if app.config.Debug.EnableLogging {
		fmt.Println("[APP_DEBUG] Emulator main loop ended")
	}
	return nil
}

// updateEmulator updates the emulator state.
func (app *Application) updateEmulator() error {
	if !app.paused && app.cartridge != nil {
		return app.emulator.Update()
	}
	return nil
}

// updateFPS maintains a simple once-per-second FPS estimate.
func (app *Application) updateFPS() {
	app.frameCount++
	now := time.Now()
	if elapsed := now.Sub(app.lastFPSTime); elapsed >= time.Second {
		app.currentFPS = float64(app.frameCount) / app.GetUptime().Seconds()
		app.lastFPSTime = now
	}
}

// processInput processes input events from the graphics backend.
func (app *Application) processInput() error {
	if app.window == nil {
		return nil
	}

	events := app.window.PollEvents()
	if len(events) == 0 {
		return nil
	}

	var controller1Changed, controller2Changed bool
	controller1Buttons := app.lastController1State
	controller2Buttons := app.lastController2State

	if !app.inputStateInitialized && app.bus != nil && app.cartridge != nil {
		app.lastController1State = readControllerState(app.bus.Input.Controller1)
		app.lastController2State = readControllerState(app.bus.Input.Controller2)
		controller1Buttons = app.lastController1State
		controller2Buttons = app.lastController2State
		app.inputStateInitialized = true
	}

	for _, event := range events {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.Stop()
			return nil

		case graphics.InputEventTypeButton:
			if app.handleSpecialInput(event) {
				continue
			}

			if app.cartridge == nil {
				continue
			}

			if is2PButton(event.Button) {
				if idx := get2PButtonIndex(event.Button); idx >= 0 {
					controller2Buttons[idx] = event.Pressed
					controller2Changed = true
				}
				continue
			}

			if idx := buttonIndex(graphicsButtonToInputButton(event.Button)); idx >= 0 {
				controller1Buttons[idx] = event.Pressed
				controller1Changed = true
			}

		case graphics.InputEventTypeKey:
			if app.handleSpecialInput(event) {
				continue
			}
			app.handleKeyInput(event)
		}
	}

	if controller1Changed && app.bus != nil && app.cartridge != nil && controller1Buttons != app.lastController1State {
		app.bus.SetControllerButtons(1, controller1Buttons)
		app.lastController1State = controller1Buttons
	}
	if controller2Changed && app.bus != nil && app.cartridge != nil && controller2Buttons != app.lastController2State {
		app.bus.SetControllerButtons(2, controller2Buttons)
		app.lastController2State = controller2Buttons
	}

	return nil
}

// readControllerState reads the current pressed state of all eight buttons
// in NES shift-register order (A, B, Select, Start, Up, Down, Left, Right).
func readControllerState(c *input.Controller) [8]bool {
	return [8]bool{
		c.IsPressed(input.ButtonA),
		c.IsPressed(input.ButtonB),
		c.IsPressed(input.ButtonSelect),
		c.IsPressed(input.ButtonStart),
		c.IsPressed(input.ButtonUp),
		c.IsPressed(input.ButtonDown),
		c.IsPressed(input.ButtonLeft),
		c.IsPressed(input.ButtonRight),
	}
}

// buttonIndex maps a Button to its NES shift-register order index.
func buttonIndex(b input.Button) int {
	switch b {
	case input.ButtonA:
		return 0
	case input.ButtonB:
		return 1
	case input.ButtonSelect:
		return 2
	case input.ButtonStart:
		return 3
	case input.ButtonUp:
		return 4
	case input.ButtonDown:
		return 5
	case input.ButtonLeft:
		return 6
	case input.ButtonRight:
		return 7
	default:
		return -1
	}
}

// handleSpecialInput handles special input combinations (quit, save states).
func (app *Application) handleSpecialInput(event graphics.InputEvent) bool {
	if !event.Pressed {
		return false
	}

	if event.Type == graphics.InputEventTypeKey && event.Key == graphics.KeyEscape {
		now := time.Now()
		if !app.lastESCTime.IsZero() && now.Sub(app.lastESCTime) < 3*time.Second {
			fmt.Println("ESC double-tap confirmed - shutting down emulator")
			app.Stop()
			return true
		}
		fmt.Println("ESC pressed - press ESC again within 3 seconds to quit")
		app.lastESCTime = now
		return true
	}

	if event.Type == graphics.InputEventTypeKey && event.Key != graphics.KeyEscape {
		app.lastESCTime = time.Time{}
	}

	if event.Type == graphics.InputEventTypeKey {
		switch event.Key {
		case graphics.KeyF1, graphics.KeyF2, graphics.KeyF3, graphics.KeyF4, graphics.KeyF5,
			graphics.KeyF6, graphics.KeyF7, graphics.KeyF8, graphics.KeyF9, graphics.KeyF10:
			slot := int(event.Key - graphics.KeyF1)
			if event.Modifiers&graphics.ModifierShift != 0 {
				if err := app.LoadState(slot); err != nil {
					fmt.Printf("Failed to load state %d: %v\n", slot, err)
				}
			} else {
				if err := app.SaveState(slot); err != nil {
					fmt.Printf("Failed to save state %d: %v\n", slot, err)
				}
			}
			return true
		}
	}

	return false
}

// handleKeyInput handles remaining key input events.
func (app *Application) handleKeyInput(event graphics.InputEvent) bool {
	return false
}

// graphicsButtonToInputButton converts graphics.Button to input.Button.
func graphicsButtonToInputButton(gButton graphics.Button) input.Button {
	switch gButton {
	case graphics.ButtonA:
		return input.ButtonA
	case graphics.ButtonB:
		return input.ButtonB
	case graphics.ButtonSelect:
		return input.ButtonSelect
	case graphics.ButtonStart:
		return input.ButtonStart
	case graphics.ButtonUp:
		return input.ButtonUp
	case graphics.ButtonDown:
		return input.ButtonDown
	case graphics.ButtonLeft:
		return input.ButtonLeft
	case graphics.ButtonRight:
		return input.ButtonRight
	default:
		return input.ButtonA
	}
}

// is2PButton reports whether the button belongs to the 2P controller.
func is2PButton(gButton graphics.Button) bool {
	switch gButton {
	case graphics.Button2A, graphics.Button2B, graphics.Button2Select, graphics.Button2Start,
		graphics.Button2Up, graphics.Button2Down, graphics.Button2Left, graphics.Button2Right:
		return true
	default:
		return false
	}
}

// get2PButtonIndex returns the array index for 2P controller buttons.
func get2PButtonIndex(gButton graphics.Button) int {
	switch gButton {
	case graphics.Button2A:
		return 0
	case graphics.Button2B:
		return 1
	case graphics.Button2Select:
		return 2
	case graphics.Button2Start:
		return 3
	case graphics.Button2Up:
		return 4
	case graphics.Button2Down:
		return 5
	case graphics.Button2Left:
		return 6
	case graphics.Button2Right:
		return 7
	default:
		return -1
	}
}

// SetControllerButtons sets all button states at once on a 1-indexed controller.
func (app *Application) SetControllerButtons(controller int, buttons [8]bool) {
	if app.bus != nil {
		app.bus.SetControllerButtons(controller, buttons)
	}
}

// GetBus returns the bus for direct access (useful for testing and advanced control).
func (app *Application) GetBus() *bus.Bus {
	return app.bus
}

// GetFrameSink returns the video frame sink, for headless tooling that wants
// to inspect or dump rendered frames without a window.
func (app *Application) GetFrameSink() *graphics.FrameSink {
	return app.frameSink
}

// RunFrames advances emulation by exactly n frames, ignoring pause state.
// Intended for headless/scripted callers that drive frames directly rather
// than through the windowed Run loop.
func (app *Application) RunFrames(n int) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}
	for i := 0; i < n; i++ {
		if err := app.emulator.StepFrame(); err != nil {
			return err
		}
		app.updateFPS()
	}
	return nil
}

// render presents the most recently completed frame to the window.
func (app *Application) render() error {
	if app.window == nil {
		return nil
	}

	if app.cartridge != nil {
		if err := app.frameSink.Present(app.window, app.videoProcessor); err != nil {
			return fmt.Errorf("failed to render NES frame: %v", err)
		}
	}

	app.window.SwapBuffers()
	return nil
}

// Stop stops the application.
func (app *Application) Stop() {
	app.running = false
}

// Pause pauses the emulator.
func (app *Application) Pause() {
	app.paused = true
}

// Resume resumes the emulator.
func (app *Application) Resume() {
	app.paused = false
}

// TogglePause toggles pause state.
func (app *Application) TogglePause() {
	app.paused = !app.paused
}

// ShowMenu shows the menu.
func (app *Application) ShowMenu() {
	app.showMenu = true
	app.paused = true
}

// HideMenu hides the menu.
func (app *Application) HideMenu() {
	app.showMenu = false
	app.paused = false
}

// ToggleMenu toggles menu visibility.
func (app *Application) ToggleMenu() {
	if app.showMenu {
		app.HideMenu()
	} else {
		app.ShowMenu()
	}
}

// SaveState saves the current emulator state.
func (app *Application) SaveState(slot int) error {
	if app.cartridge == nil {
		return errors.New("no ROM loaded")
	}
	return app.states.SaveState(app.bus, slot, app.romPath)
}

// LoadState loads a saved emulator state.
func (app *Application) LoadState(slot int) error {
	if app.cartridge == nil {
		return errors.New("no ROM loaded")
	}
	return app.states.LoadState(app.bus, slot, app.romPath)
}

// Reset resets the emulator.
func (app *Application) Reset() {
	if app.bus != nil {
		app.bus.Reset()
	}
}

// IsRunning returns whether the application is running.
func (app *Application) IsRunning() bool { return app.running }

// IsPaused returns whether the emulator is paused.
func (app *Application) IsPaused() bool { return app.paused }

// IsMenuVisible returns whether the menu is visible.
func (app *Application) IsMenuVisible() bool { return app.showMenu }

// GetFPS returns the current FPS estimate.
func (app *Application) GetFPS() float64 { return app.currentFPS }

// GetFrameCount returns the total frame count.
func (app *Application) GetFrameCount() uint64 { return app.frameCount }

// GetUptime returns the application uptime.
func (app *Application) GetUptime() time.Duration { return time.Since(app.startTime) }

// GetROMPath returns the currently loaded ROM path.
func (app *Application) GetROMPath() string { return app.romPath }

// GetConfig returns the application configuration.
func (app *Application) GetConfig() *Config { return app.config }

// ApplyDebugSettings applies debug settings to components that support them.
func (app *Application) ApplyDebugSettings() {
	if app.config == nil || !app.config.Debug.EnableLogging {
		return
	}
	fmt.Println("[APP_DEBUG] Debug logging enabled")
}

// Cleanup releases all resources and shuts down the application.
func (app *Application) Cleanup() error {
	if app.config != nil && app.config.Debug.EnableLogging {
		fmt.Println("[APP_DEBUG] Cleaning up application resources...")
	}

	var lastErr error

	if app.audioPlayer != nil {
		if err := app.audioPlayer.Close(); err != nil {
			lastErr = err
			fmt.Printf("[APP_ERROR] Audio player cleanup error: %v\n", err)
		}
	}

	if app.states != nil {
		if err := app.states.Cleanup(); err != nil {
			lastErr = err
			fmt.Printf("[APP_ERROR] State manager cleanup error: %v\n", err)
		}
	}

	if app.emulator != nil {
		if err := app.emulator.Cleanup(); err != nil {
			lastErr = err
			fmt.Printf("[APP_ERROR] Emulator cleanup error: %v\n", err)
		}
	}

	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			lastErr = err
			fmt.Printf("[APP_ERROR] Window cleanup error: %v\n", err)
		}
	}

	if app.graphicsBackend != nil {
		if err := app.graphicsBackend.Cleanup(); err != nil {
			lastErr = err
			fmt.Printf("[APP_ERROR] Graphics backend cleanup error: %v\n", err)
		}
	}

	app.initialized = false
	if app.config != nil && app.config.Debug.EnableLogging {
		fmt.Println("[APP_DEBUG] Application cleanup complete")
	}

	return lastErr
}
