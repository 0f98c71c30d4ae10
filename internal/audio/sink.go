// Package audio bridges the APU's sample stream to Ebitengine's audio
// player, the same library the graphics backend already uses for video.
package audio

import "sync"

// sampleRate matches apu.audioSampleFreq; duplicated here since the APU
// package has no reason to export it and audio has no reason to import apu
// just for a constant.
const sampleRate = 44100

// channels is fixed at 2 (stereo) to match Ebitengine's audio.Context,
// with the mono NES output duplicated across both channels.
const channels = 2

// ringSamples bounds queue latency: at 44.1kHz this is about 185ms, enough
// to absorb emulation/render jitter without perceptible lag.
const ringSamples = 8192

// Sink implements apu.AudioSink with a small ring buffer, read out as PCM
// bytes by a streaming Ebitengine audio.Player. Queue drops the oldest
// sample on overflow rather than blocking the emulation thread.
type Sink struct {
	mu     sync.Mutex
	ring   [ringSamples]int16
	read   int
	write  int
	filled int
}

// NewSink creates an empty audio sink.
func NewSink() *Sink {
	return &Sink{}
}

// Queue implements apu.AudioSink.
func (s *Sink) Queue(sample int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.write] = sample
	s.write = (s.write + 1) % ringSamples
	if s.filled < ringSamples {
		s.filled++
	} else {
		// Buffer is full: advance read past the sample we just overwrote.
		s.read = (s.read + 1) % ringSamples
	}
}

// Read implements io.Reader, producing interleaved 16-bit stereo PCM for an
// Ebitengine audio.Player. Starved reads emit silence rather than blocking,
// since the player pulls on its own goroutine independent of emulation speed.
func (s *Sink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / (2 * channels)
	for i := 0; i < frames; i++ {
		var sample int16
		if s.filled > 0 {
			sample = s.ring[s.read]
			s.read = (s.read + 1) % ringSamples
			s.filled--
		}
		lo := byte(sample)
		hi := byte(sample >> 8)
		off := i * 2 * channels
		for c := 0; c < channels; c++ {
			p[off+c*2] = lo
			p[off+c*2+1] = hi
		}
	}
	return frames * 2 * channels, nil
}

// SampleRate returns the fixed output sample rate this sink produces.
func SampleRate() int { return sampleRate }
