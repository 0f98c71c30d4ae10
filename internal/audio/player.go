//go:build !headless
// +build !headless

package audio

import "github.com/hajimehoshi/ebiten/v2/audio"

// Player drives a Sink through Ebitengine's audio context, the same
// dependency the graphics backend uses for video presentation.
type Player struct {
	sink   *Sink
	player *audio.Player
}

// NewPlayer creates an audio context at the sink's sample rate and starts
// streaming from it immediately.
func NewPlayer(sink *Sink) (*Player, error) {
	ctx := audio.NewContext(sampleRate)
	p, err := ctx.NewPlayer(sink)
	if err != nil {
		return nil, err
	}
	p.Play()
	return &Player{sink: sink, player: p}, nil
}

// SetVolume sets playback volume in [0, 1].
func (p *Player) SetVolume(volume float64) {
	if p.player != nil {
		p.player.SetVolume(volume)
	}
}

// Close stops playback.
func (p *Player) Close() error {
	if p.player != nil {
		return p.player.Close()
	}
	return nil
}
