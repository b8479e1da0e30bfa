package main

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// Progress callback cadence while a track is playing.
	PROGRESS_TICK = 500 * time.Millisecond

	// Previous-track presses past this position restart the current track
	// instead of moving back.
	PREV_RESTART_AFTER = 3 * time.Second
)

// Player is the playback engine. It owns at most one active pipeline plus,
// during a crossfade, the outgoing one for the ramp window. Every track
// load carries a request token (loadSeq); async completions compare their
// token against the latest and discard themselves when superseded, so
// rapid selections can never resurrect an older track.
type Player struct {
	mu sync.Mutex

	library *Library
	queue   *PlaybackQueue
	events  *PlayerEvents

	newPipeline  pipelineFactory
	prefs        Preferences
	settingsPath string

	state    PlayState
	current  *Song
	pipeline audioPipeline
	fade     *crossfade

	loadSeq     uint64
	pendingPlay bool
	fadePending bool
	pollStop    chan struct{}
}

// NewPlayer builds the engine over an initialized library, restoring
// persisted preferences and seeding the queue's shuffle and repeat state
// from them.
func NewPlayer(library *Library, settingsPath string, events *PlayerEvents) *Player {
	prefs := loadPreferences(settingsPath)

	p := &Player{
		library:      library,
		queue:        library.Queue(),
		events:       events,
		newPipeline:  newBeepPipeline,
		prefs:        prefs,
		settingsPath: settingsPath,
		state:        StateIdle,
	}
	p.queue.SetRepeat(prefs.Repeat)
	p.queue.SetShuffle(prefs.Shuffle, library.SortedIDs())
	return p
}

// --- Track selection ---

// Select loads a track while keeping the current play intent: selecting
// while playing starts the new track, selecting while paused or idle loads
// it paused. Superseding a load that was headed for playback keeps that
// intent.
func (p *Player) Select(id string) {
	p.mu.Lock()
	autoplay := p.playIntentLocked()
	p.mu.Unlock()
	p.loadTrack(id, autoplay)
}

// playIntentLocked reports whether the engine is playing or an in-flight
// load will start playing once it lands.
func (p *Player) playIntentLocked() bool {
	return p.state == StatePlaying || (p.state == StateLoading && p.pendingPlay)
}

// Play loads a track and starts it regardless of prior state.
func (p *Player) Play(id string) {
	p.loadTrack(id, true)
}

// loadTrack retires whatever is active and resolves the new track's audio
// off the calling goroutine. The token taken here decides, at completion
// time, whether this load is still the one the user wants.
func (p *Player) loadTrack(id string, autoplay bool) {
	p.mu.Lock()
	song, ok := p.library.Song(id)
	if !ok {
		p.mu.Unlock()
		p.events.error(fmt.Sprintf("unknown song: %s", id))
		return
	}

	p.loadSeq++
	seq := p.loadSeq
	p.stopCurrentLocked()
	p.state = StateLoading
	p.pendingPlay = autoplay
	p.current = song
	p.mu.Unlock()

	p.events.trackChanged(song)

	go func() {
		blob, err := p.library.ResolveSong(context.Background(), id)
		if err != nil {
			p.failLoad(seq, fmt.Sprintf("resolve %q: %v", song.Title, err))
			return
		}

		pipe, err := p.newPipeline(blob, song.FileName)
		if err != nil {
			p.failLoad(seq, fmt.Sprintf("decode %q: %v", song.Title, err))
			return
		}

		p.install(seq, pipe, autoplay)
	}()
}

// install attaches a freshly built pipeline, unless a newer load has
// superseded this one in the meantime.
func (p *Player) install(seq uint64, pipe audioPipeline, autoplay bool) {
	p.mu.Lock()
	if seq != p.loadSeq {
		p.mu.Unlock()
		pipe.Stop()
		return
	}

	p.pipeline = pipe
	pipe.SetGain(p.effectiveGainLocked())

	if autoplay {
		if err := pipe.Play(); err != nil {
			p.pipeline = nil
			p.state = StateIdle
			p.mu.Unlock()
			pipe.Stop()
			p.events.error(fmt.Sprintf("audio output: %v", err))
			return
		}
		pipe.SetPaused(false)
		p.state = StatePlaying
	} else {
		p.state = StatePaused
	}
	p.startWatchersLocked(seq, pipe)
	p.mu.Unlock()

	p.events.stateChanged(autoplay)
}

// failLoad surfaces a resolution or decode failure. The engine stays put:
// a broken track never triggers an automatic advance.
func (p *Player) failLoad(seq uint64, msg string) {
	logMsg("ERROR: " + msg)
	p.mu.Lock()
	if seq == p.loadSeq && p.state == StateLoading {
		p.state = StateIdle
	}
	p.mu.Unlock()
	p.events.error(msg)
}

// --- Transport ---

// PlayPause toggles between playing and paused. Idle and loading have
// nothing to toggle, so it does nothing there; starting playback goes
// through Play or Select.
func (p *Player) PlayPause() error {
	p.mu.Lock()
	switch p.state {
	case StatePlaying:
		pipe := p.pipeline
		p.state = StatePaused
		p.mu.Unlock()
		if pipe != nil {
			pipe.SetPaused(true)
		}
		p.events.stateChanged(false)
		return nil

	case StatePaused:
		pipe := p.pipeline
		p.state = StatePlaying
		p.mu.Unlock()
		if pipe != nil {
			if err := pipe.Play(); err != nil {
				p.mu.Lock()
				p.state = StatePaused
				p.mu.Unlock()
				return fmt.Errorf("audio output: %w", err)
			}
			pipe.SetPaused(false)
		}
		p.events.stateChanged(true)
		return nil

	default: // idle or loading
		p.mu.Unlock()
		return nil
	}
}

// Seek moves the current track to the given position in seconds, clamped
// to the track bounds.
func (p *Player) Seek(seconds float64) error {
	p.mu.Lock()
	pipe := p.pipeline
	p.mu.Unlock()
	if pipe == nil {
		return ErrNoTrackLoaded
	}

	to := time.Duration(seconds * float64(time.Second))
	if to < 0 {
		to = 0
	}
	if d := pipe.Duration(); d > 0 && to > d {
		to = d
	}
	return pipe.Seek(to)
}

// Skip moves to the adjacent queue entry. Manual skips wrap at both ends
// regardless of repeat mode. A previous-press more than a few seconds into
// the track restarts it instead. Skipping mid-crossfade abandons the fade
// and jumps straight to the new pick.
func (p *Player) Skip(dir Direction) {
	p.mu.Lock()
	if dir == DirPrevious && p.fade == nil && p.pipeline != nil &&
		p.pipeline.Position() > PREV_RESTART_AFTER {
		pipe := p.pipeline
		p.mu.Unlock()
		if err := pipe.Seek(0); err != nil {
			logMsg(fmt.Sprintf("WARNING: Restart seek failed: %v", err))
		}
		return
	}

	var currentID string
	if p.current != nil {
		currentID = p.current.ID
	}
	wasPlaying := p.playIntentLocked()
	fadeActive := p.fade != nil
	if fadeActive {
		// Invalidate the incoming pipeline's done watcher before Cancel
		// closes its Done channel, or the cancel would read as a natural
		// track end.
		p.loadSeq++
		p.fade.Cancel()
		p.fade = nil
		p.pipeline = nil
		p.stopPollerLocked()
	}
	useFade := p.prefs.Crossfade && wasPlaying && !fadeActive && p.pipeline != nil
	p.mu.Unlock()

	next, ok := p.queue.Advance(currentID, dir)
	if !ok {
		return
	}
	if useFade {
		p.crossfadeTo(next)
		return
	}
	p.loadTrack(next, wasPlaying || fadeActive)
}

// Stop tears playback down completely and clears the selection.
func (p *Player) Stop() {
	p.mu.Lock()
	p.loadSeq++
	p.stopCurrentLocked()
	p.state = StateIdle
	p.current = nil
	p.mu.Unlock()
	p.events.stateChanged(false)
}

// --- Crossfade transitions ---

// crossfadeTo hands the output to a new track through the fade scheduler.
// If the incoming track cannot be resolved, decoded, or started, the
// transition is abandoned and the outgoing track keeps playing untouched.
func (p *Player) crossfadeTo(id string) {
	p.mu.Lock()
	if p.fade != nil || p.fadePending || p.state != StatePlaying || p.pipeline == nil {
		p.mu.Unlock()
		return
	}
	p.fadePending = true
	out := p.pipeline
	outSeq := p.loadSeq
	target := p.effectiveGainLocked()
	p.mu.Unlock()

	song, ok := p.library.Song(id)
	if !ok {
		p.clearFadePending()
		return
	}
	blob, err := p.library.ResolveSong(context.Background(), id)
	if err != nil {
		logMsg(fmt.Sprintf("ERROR: Crossfade resolve %q: %v", song.Title, err))
		p.clearFadePending()
		p.events.error(fmt.Sprintf("resolve %q: %v", song.Title, err))
		return
	}
	in, err := p.newPipeline(blob, song.FileName)
	if err != nil {
		logMsg(fmt.Sprintf("ERROR: Crossfade decode %q: %v", song.Title, err))
		p.clearFadePending()
		p.events.error(fmt.Sprintf("decode %q: %v", song.Title, err))
		return
	}

	p.mu.Lock()
	if outSeq != p.loadSeq || p.state != StatePlaying {
		p.mu.Unlock()
		in.Stop()
		p.clearFadePending()
		return
	}

	p.loadSeq++
	seq := p.loadSeq
	fade, err := startCrossfade(out, in, target, CROSSFADE_DURATION, func() { p.onFadeDone(seq) })
	if err != nil {
		p.loadSeq--
		p.fadePending = false
		p.mu.Unlock()
		in.Stop()
		p.events.error(err.Error())
		return
	}

	p.fade = fade
	p.fadePending = false
	p.pipeline = in
	p.current = song
	p.stopPollerLocked()
	p.startWatchersLocked(seq, in)
	p.mu.Unlock()

	p.events.trackChanged(song)
}

func (p *Player) clearFadePending() {
	p.mu.Lock()
	p.fadePending = false
	p.mu.Unlock()
}

func (p *Player) onFadeDone(seq uint64) {
	p.mu.Lock()
	if seq == p.loadSeq {
		p.fade = nil
	}
	p.mu.Unlock()
}

// --- Track end ---

// onTrackEnded handles a natural drain. Repeat-one restarts the same
// track; otherwise the queue decides between advancing and stopping —
// finishing the last entry with repeat off stops rather than wrapping.
func (p *Player) onTrackEnded(seq uint64) {
	p.mu.Lock()
	if seq != p.loadSeq || p.current == nil {
		p.mu.Unlock()
		return
	}
	currentID := p.current.ID
	p.mu.Unlock()

	if p.queue.Repeat() == RepeatOne {
		p.loadTrack(currentID, true)
		return
	}

	if next, ok := p.queue.NextAfterEnd(currentID); ok {
		p.loadTrack(next, true)
		return
	}

	p.mu.Lock()
	if seq != p.loadSeq {
		p.mu.Unlock()
		return
	}
	p.loadSeq++
	p.stopCurrentLocked()
	p.state = StateIdle
	p.mu.Unlock()

	p.events.stateChanged(false)
	p.events.progress(0, 0)
}

// --- Watchers ---

// startWatchersLocked spawns the done watcher and the progress poller for
// a newly installed pipeline.
func (p *Player) startWatchersLocked(seq uint64, pipe audioPipeline) {
	stop := make(chan struct{})
	p.pollStop = stop
	go p.watchDone(seq, pipe)
	go p.poll(seq, pipe, stop)
}

func (p *Player) watchDone(seq uint64, pipe audioPipeline) {
	<-pipe.Done()
	p.onTrackEnded(seq)
}

func (p *Player) poll(seq uint64, pipe audioPipeline, stop chan struct{}) {
	ticker := time.NewTicker(PROGRESS_TICK)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick(seq, pipe)
		}
	}
}

// tick emits a progress event and, near the end of the track, pre-rolls
// the crossfade so the incoming track ramps in before the outgoing one
// drains.
func (p *Player) tick(seq uint64, pipe audioPipeline) {
	p.mu.Lock()
	if seq != p.loadSeq || p.state != StatePlaying {
		p.mu.Unlock()
		return
	}

	pos := pipe.Position()
	dur := pipe.Duration()

	var preRollID string
	if p.prefs.Crossfade && p.fade == nil && !p.fadePending &&
		dur > 0 && dur-pos <= CROSSFADE_DURATION &&
		p.queue.Repeat() != RepeatOne && p.current != nil {
		if next, ok := p.queue.NextAfterEnd(p.current.ID); ok {
			preRollID = next
		}
	}
	p.mu.Unlock()

	p.events.progress(pos.Seconds(), dur.Seconds())

	if preRollID != "" {
		p.crossfadeTo(preRollID)
	}
}

// stopCurrentLocked abandons any fade, retires the active pipeline, and
// stops the poller. Callers bump loadSeq first so in-flight watchers see
// themselves superseded.
func (p *Player) stopCurrentLocked() {
	if p.fade != nil {
		p.fade.Cancel()
		p.fade = nil
	}
	if p.pipeline != nil {
		p.pipeline.Stop()
		p.pipeline = nil
	}
	p.stopPollerLocked()
}

func (p *Player) stopPollerLocked() {
	if p.pollStop != nil {
		close(p.pollStop)
		p.pollStop = nil
	}
}

// --- Preferences ---

func (p *Player) effectiveGainLocked() float64 {
	if p.prefs.Muted {
		return 0
	}
	return p.prefs.Volume
}

// applyGainLocked pushes the effective gain to the active pipeline. During
// a fade the scheduler owns both gains; the new value takes effect when
// the ramp finishes.
func (p *Player) applyGainLocked() {
	if p.pipeline != nil && p.fade == nil {
		p.pipeline.SetGain(p.effectiveGainLocked())
	}
}

func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	p.prefs.Volume = clampUnit(v)
	p.applyGainLocked()
	prefs := p.prefs
	p.mu.Unlock()
	savePreferences(p.settingsPath, prefs)
}

func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	p.prefs.Muted = muted
	p.applyGainLocked()
	prefs := p.prefs
	p.mu.Unlock()
	savePreferences(p.settingsPath, prefs)
}

func (p *Player) ToggleMute() {
	p.mu.Lock()
	muted := p.prefs.Muted
	p.mu.Unlock()
	p.SetMuted(!muted)
}

func (p *Player) SetShuffle(on bool) {
	p.queue.SetShuffle(on, p.library.SortedIDs())
	p.mu.Lock()
	p.prefs.Shuffle = on
	prefs := p.prefs
	p.mu.Unlock()
	savePreferences(p.settingsPath, prefs)
}

func (p *Player) SetRepeat(mode RepeatMode) {
	p.queue.SetRepeat(mode)
	p.mu.Lock()
	p.prefs.Repeat = mode
	prefs := p.prefs
	p.mu.Unlock()
	savePreferences(p.settingsPath, prefs)
}

func (p *Player) SetCrossfade(on bool) {
	p.mu.Lock()
	p.prefs.Crossfade = on
	prefs := p.prefs
	p.mu.Unlock()
	savePreferences(p.settingsPath, prefs)
}

func (p *Player) SetTheme(theme string) {
	if theme != "dark" {
		theme = "light"
	}
	p.mu.Lock()
	p.prefs.Theme = theme
	prefs := p.prefs
	p.mu.Unlock()
	savePreferences(p.settingsPath, prefs)
}

// --- Introspection ---

func (p *Player) State() PlayState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Current() *Song {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Player) Position() float64 {
	p.mu.Lock()
	pipe := p.pipeline
	p.mu.Unlock()
	if pipe == nil {
		return 0
	}
	return pipe.Position().Seconds()
}

func (p *Player) Duration() float64 {
	p.mu.Lock()
	pipe := p.pipeline
	p.mu.Unlock()
	if pipe == nil {
		return 0
	}
	return pipe.Duration().Seconds()
}

func (p *Player) Prefs() Preferences {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefs
}
