// Package input implements controller handling for the NES.
package input

import (
	"encoding/binary"
	"io"
)

// Button represents NES controller buttons.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Poller is the collaborator the bus reads controller state through; a host
// binds it to a keyboard/gamepad backend and the bus calls Poll() once per
// strobe-driven snapshot.
type Poller interface {
	Poll() uint8
}

// Controller represents a single NES controller: an 8-bit parallel-load
// shift register fed by SetButton/SetButtons and drained serially through
// Read, gated by the strobe latch written through Write.
type Controller struct {
	buttons uint8

	shiftRegister uint8
	strobe        bool
}

// New creates a new Controller instance.
func New() *Controller {
	return &Controller{}
}

// SetButton sets the state of a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons sets all eight button states at once, in A,B,Select,Start,
// Up,Down,Left,Right order.
func (c *Controller) SetButtons(buttons [8]bool) {
	var b uint8
	for i, pressed := range buttons {
		if pressed {
			b |= 1 << uint(i)
		}
	}
	c.buttons = b
}

// IsPressed returns true if the button is currently pressed.
func (c *Controller) IsPressed(button Button) bool {
	return (c.buttons & uint8(button)) != 0
}

// Write handles writes to the controller strobe register ($4016). While
// strobe is held high the shift register continuously reloads from the
// live button state; releasing it latches the register for serial read.
func (c *Controller) Write(value uint8) {
	c.strobe = value&1 != 0
	if c.strobe {
		c.shiftRegister = c.buttons
	}
}

// Read shifts out the next button bit (A first), following real hardware:
// reads repeat bit 0 while strobe is held high, and read past the eighth
// bit return 1 on the open bus.
func (c *Controller) Read() uint8 {
	if c.strobe {
		return c.buttons & 1
	}
	result := c.shiftRegister & 1
	c.shiftRegister = (c.shiftRegister >> 1) | 0x80
	return result
}

// Reset clears the controller to its power-up state.
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
}

// Save writes the controller's serial-read state.
func (c *Controller) Save(w io.Writer) error {
	fields := []any{c.buttons, c.shiftRegister, c.strobe}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// Load restores controller state written by Save.
func (c *Controller) Load(r io.Reader) error {
	targets := []any{&c.buttons, &c.shiftRegister, &c.strobe}
	for _, t := range targets {
		if err := binary.Read(r, binary.LittleEndian, t); err != nil {
			return err
		}
	}
	return nil
}

// InputState represents the state of all input devices: two controller
// shift registers addressed at $4016/$4017, each optionally backed by a
// host Poller that supplies live button state once per strobe cycle.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller

	Poller1 Poller
	Poller2 Poller
}

// NewInputState creates a new input state with two controllers.
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Reset resets all input devices.
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// SetButtons1 sets all button states for controller 1.
func (is *InputState) SetButtons1(buttons [8]bool) {
	is.Controller1.SetButtons(buttons)
}

// SetButtons2 sets all button states for controller 2.
func (is *InputState) SetButtons2(buttons [8]bool) {
	is.Controller2.SetButtons(buttons)
}

// Poll refreshes each controller's button state from its bound Poller, if
// any. Write calls this on every strobe-high write to $4016, before the
// controllers latch their shift registers.
func (is *InputState) Poll() {
	if is.Poller1 != nil {
		is.Controller1.buttons = is.Poller1.Poll()
	}
	if is.Poller2 != nil {
		is.Controller2.buttons = is.Poller2.Poll()
	}
}

// Read reads from controller ports $4016/$4017. Controller 2's reads carry
// bit 6 set, matching NES open-bus behavior on that port.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write writes to controller ports; both controllers share the $4016
// strobe line.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		if value&1 != 0 {
			is.Poll()
		}
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}

// Save writes both controllers' state.
func (is *InputState) Save(w io.Writer) error {
	if err := is.Controller1.Save(w); err != nil {
		return err
	}
	return is.Controller2.Save(w)
}

// Load restores both controllers' state written by Save.
func (is *InputState) Load(r io.Reader) error {
	if err := is.Controller1.Load(r); err != nil {
		return err
	}
	return is.Controller2.Load(r)
}
