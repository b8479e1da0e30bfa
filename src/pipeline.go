package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// audioPipeline is one decoded track wired to the audio output. The
// playback engine owns at most one; during a crossfade the scheduler is
// granted a second one for the ramp window only.
type audioPipeline interface {
	// Play starts audible output. Called at most once per pipeline.
	Play() error
	// SetPaused pauses or resumes output without releasing resources.
	SetPaused(paused bool)
	// Stop retires the pipeline and releases its decoder.
	Stop()
	// SetGain scales output volume linearly in [0, 1].
	SetGain(gain float64)
	Gain() float64
	Position() time.Duration
	Duration() time.Duration
	Seek(to time.Duration) error
	// Done is closed when the stream drains naturally. It also fires
	// after Stop; callers distinguish the two with their own request
	// tokens.
	Done() <-chan struct{}
}

// pipelineFactory builds a pipeline from raw audio bytes. The player
// takes a factory so tests can substitute a fake that needs no speaker.
type pipelineFactory func(data []byte, filename string) (audioPipeline, error)

const speakerSampleRate = beep.SampleRate(44100)

var speakerOnce sync.Once

// ensureSpeaker initializes the shared audio output once per process.
func ensureSpeaker() error {
	var err error
	speakerOnce.Do(func() {
		err = speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10))
	})
	return err
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }

// decodeAudio picks a decoder from the filename extension. The beep
// decoders cover mp3, wav, ogg/vorbis, and flac; anything else in the
// import allow-list (m4a, aac, …) imports fine but fails here with an
// unsupported-codec error at playback time.
func decodeAudio(data []byte, filename string) (beep.StreamSeekCloser, beep.Format, error) {
	r := nopCloser{bytes.NewReader(data)}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return mp3.Decode(r)
	case ".wav", ".aiff":
		return wav.Decode(r)
	case ".ogg", ".opus":
		return vorbis.Decode(r)
	case ".flac", ".alac":
		return flac.Decode(r)
	default:
		// Unknown extension: most files that reach here are mp3 with an
		// odd name, so try that before giving up.
		s, format, err := mp3.Decode(r)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("unsupported codec for %s: %w", filename, err)
		}
		return s, format, nil
	}
}

// beepPipeline plays one decoded track through the shared speaker.
type beepPipeline struct {
	mu sync.Mutex

	streamer beep.StreamSeekCloser
	format   beep.Format
	gain     *gainStreamer
	ctrl     *beep.Ctrl
	done     chan struct{}

	started bool
	stopped bool
}

// newBeepPipeline decodes data and primes it for output at gain 1.
func newBeepPipeline(data []byte, filename string) (audioPipeline, error) {
	streamer, format, err := decodeAudio(data, filename)
	if err != nil {
		return nil, err
	}

	if err := ensureSpeaker(); err != nil {
		streamer.Close()
		return nil, fmt.Errorf("audio output init: %w", err)
	}

	resampled := beep.Resample(4, format.SampleRate, speakerSampleRate, streamer)
	gain := &gainStreamer{streamer: resampled, gain: 1}

	p := &beepPipeline{
		streamer: streamer,
		format:   format,
		gain:     gain,
		ctrl:     &beep.Ctrl{Streamer: gain},
		done:     make(chan struct{}),
	}
	return p, nil
}

func (p *beepPipeline) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return nil
	}
	p.started = true

	done := p.done
	speaker.Play(beep.Seq(p.ctrl, beep.Callback(func() {
		close(done)
	})))
	return nil
}

func (p *beepPipeline) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = paused
	speaker.Unlock()
}

// Stop detaches the pipeline from the speaker and closes the decoder.
// Detaching lets the enclosing Seq drain, so Done fires afterwards; the
// player's request tokens make that harmless.
func (p *beepPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true

	speaker.Lock()
	p.ctrl.Streamer = nil
	p.ctrl.Paused = false
	speaker.Unlock()

	p.streamer.Close()

	// A started pipeline drains through the Seq callback, which closes
	// done. An unstarted one has no callback coming, so close it here.
	if !p.started {
		close(p.done)
	}
}

func (p *beepPipeline) SetGain(gain float64) {
	speaker.Lock()
	p.gain.gain = clampUnit(gain)
	speaker.Unlock()
}

func (p *beepPipeline) Gain() float64 {
	speaker.Lock()
	g := p.gain.gain
	speaker.Unlock()
	return g
}

func (p *beepPipeline) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0
	}
	speaker.Lock()
	pos := p.streamer.Position()
	speaker.Unlock()
	return p.format.SampleRate.D(pos)
}

func (p *beepPipeline) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0
	}
	return p.format.SampleRate.D(p.streamer.Len())
}

func (p *beepPipeline) Seek(to time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrNoTrackLoaded
	}
	speaker.Lock()
	defer speaker.Unlock()
	return p.streamer.Seek(p.format.SampleRate.N(to))
}

func (p *beepPipeline) Done() <-chan struct{} {
	return p.done
}

// gainStreamer scales samples by a linear factor. beep's effects package
// works in exponential volume space; crossfade ramps want straight linear
// gain, so this stays a plain multiplier. Accessed under the speaker lock.
type gainStreamer struct {
	streamer beep.Streamer
	gain     float64
}

func (g *gainStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = g.streamer.Stream(samples)
	for i := range samples[:n] {
		samples[i][0] *= g.gain
		samples[i][1] *= g.gain
	}
	return n, ok
}

func (g *gainStreamer) Err() error {
	return g.streamer.Err()
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
