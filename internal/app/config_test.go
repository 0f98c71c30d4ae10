package app

import (
	"path/filepath"
	"testing"
)

func TestLoadFromFileWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gones.json")
	c := NewConfig()

	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	c2 := NewConfig()
	if err := c2.LoadFromFile(path); err != nil {
		t.Fatalf("second LoadFromFile failed: %v", err)
	}
	if c2.Window.Scale != c.Window.Scale {
		t.Errorf("expected the written default config to round-trip scale %d, got %d", c.Window.Scale, c2.Window.Scale)
	}
}

func TestSaveToFileThenLoadFromFileRoundTripsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gones.json")
	c := NewConfig()
	c.Window.Scale = 4
	c.Audio.Volume = 0.5

	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded := NewConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Window.Scale != 4 {
		t.Errorf("expected loaded scale 4, got %d", loaded.Window.Scale)
	}
	if loaded.Audio.Volume != 0.5 {
		t.Errorf("expected loaded volume 0.5, got %f", loaded.Audio.Volume)
	}
}

func TestValidateClampsOutOfRangeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gones.json")
	c := NewConfig()
	c.Window.Scale = -1
	c.Audio.Volume = 5.0
	c.Audio.SampleRate = 0
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded := NewConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Window.Scale != 1 {
		t.Errorf("expected negative scale clamped to 1, got %d", loaded.Window.Scale)
	}
	if loaded.Audio.Volume != 0.8 {
		t.Errorf("expected out-of-range volume clamped to default 0.8, got %f", loaded.Audio.Volume)
	}
	if loaded.Audio.SampleRate != 44100 {
		t.Errorf("expected zero sample rate clamped to 44100, got %d", loaded.Audio.SampleRate)
	}
}

func TestGetWindowResolutionScalesNESResolution(t *testing.T) {
	c := NewConfig()
	c.Window.Scale = 3
	w, h := c.GetWindowResolution()
	if w != 768 || h != 720 {
		t.Errorf("expected 768x720 at scale 3, got %dx%d", w, h)
	}
}

func TestGetAspectRatioKnownValues(t *testing.T) {
	c := NewConfig()
	c.Video.AspectRatio = "16:9"
	if got := c.GetAspectRatio(); got < 1.77 || got > 1.78 {
		t.Errorf("expected ~1.777 for 16:9, got %f", got)
	}

	c.Video.AspectRatio = "original"
	if got := c.GetAspectRatio(); got < 1.06 || got > 1.07 {
		t.Errorf("expected ~1.0667 (256/240) for original, got %f", got)
	}
}

func TestUpdateDebugSetsAllThreeFlags(t *testing.T) {
	c := NewConfig()
	c.UpdateDebug(true, true, true)
	if !c.Debug.ShowFPS || !c.Debug.ShowDebugInfo || !c.Debug.EnableLogging {
		t.Error("expected UpdateDebug to set all three debug flags")
	}
}
