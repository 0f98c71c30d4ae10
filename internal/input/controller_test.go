package input

import "testing"

func TestControllerSerialRead(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, false, true, false, false, false, false, true})
	// A, Select, Right pressed -> bits: A=1,B=0,Sel=1,Start=0,Up=0,Down=0,Left=0,Right=1
	c.Write(1) // strobe high
	c.Write(0) // strobe low, latches shift register

	want := []uint8{1, 0, 1, 0, 0, 0, 0, 1}
	for i, w := range want {
		if got := c.Read(); got != w {
			t.Fatalf("bit %d = %d, want %d", i, got, w)
		}
	}
	// Reads past the eighth bit return 1 (open bus pull-up).
	if got := c.Read(); got != 1 {
		t.Errorf("9th read = %d, want 1", got)
	}
}

func TestControllerStrobeHighRepeatsBitZero(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	c.Write(1)
	if got := c.Read(); got != 1 {
		t.Errorf("read while strobed = %d, want 1", got)
	}
	if got := c.Read(); got != 1 {
		t.Errorf("second read while strobed = %d, want 1 (repeats bit 0)", got)
	}
}

func TestInputStateController2OpenBus(t *testing.T) {
	is := NewInputState()
	if got := is.Read(0x4017); got&0x40 == 0 {
		t.Error("controller 2 reads should carry bit 6 set")
	}
}

func TestInputStateSharedStrobe(t *testing.T) {
	is := NewInputState()
	is.SetButtons1([8]bool{true})
	is.SetButtons2([8]bool{false, true})
	is.Write(0x4016, 1)
	is.Write(0x4016, 0)

	if got := is.Read(0x4016) & 1; got != 1 {
		t.Errorf("controller1 bit0 = %d, want 1", got)
	}
	if got := is.Read(0x4017) & 1; got != 0 {
		t.Errorf("controller2 bit0 = %d, want 0", got)
	}
}
