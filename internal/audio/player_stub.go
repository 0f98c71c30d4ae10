//go:build headless
// +build headless

package audio

// Player stub for headless builds, where there is no audio device to drive.
type Player struct{}

// NewPlayer is a no-op in headless builds; the sink still accumulates
// samples, they are simply never drained.
func NewPlayer(sink *Sink) (*Player, error) {
	return &Player{}, nil
}

// SetVolume is a no-op in headless builds.
func (p *Player) SetVolume(volume float64) {}

// Close is a no-op in headless builds.
func (p *Player) Close() error { return nil }
