package main

import (
	"sync"
	"time"
)

// fakePipeline implements audioPipeline without touching the audio device.
type fakePipeline struct {
	mu sync.Mutex

	gain    float64
	playErr error

	started    bool
	paused     bool
	stopped    bool
	seekedTo   time.Duration
	seeked     bool
	pos, dur   time.Duration
	done       chan struct{}
	doneClosed bool
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		gain: 1,
		dur:  3 * time.Minute,
		done: make(chan struct{}),
	}
}

func (f *fakePipeline) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.started = true
	return nil
}

func (f *fakePipeline) SetPaused(paused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
}

func (f *fakePipeline) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.stopped = true
	f.closeDoneLocked()
}

func (f *fakePipeline) SetGain(gain float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gain = gain
}

func (f *fakePipeline) Gain() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gain
}

func (f *fakePipeline) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fakePipeline) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dur
}

func (f *fakePipeline) Seek(to time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = to
	f.seekedTo = to
	f.seeked = true
	return nil
}

func (f *fakePipeline) Done() <-chan struct{} {
	return f.done
}

// finish simulates the stream draining naturally.
func (f *fakePipeline) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeDoneLocked()
}

func (f *fakePipeline) closeDoneLocked() {
	if !f.doneClosed {
		f.doneClosed = true
		close(f.done)
	}
}

func (f *fakePipeline) setPosition(pos time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = pos
}

func (f *fakePipeline) isStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakePipeline) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakePipeline) isPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

// fakeFactory builds fakePipelines and remembers them in creation order.
// An optional gate keyed by filename blocks that file's build until the
// gate is closed, and err fails every build.
type fakeFactory struct {
	mu    sync.Mutex
	pipes []*fakePipeline
	names []string
	gates map[string]chan struct{}
	err   error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{gates: make(map[string]chan struct{})}
}

func (ff *fakeFactory) new(data []byte, filename string) (audioPipeline, error) {
	ff.mu.Lock()
	gate := ff.gates[filename]
	err := ff.err
	ff.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	p := newFakePipeline()
	ff.mu.Lock()
	ff.pipes = append(ff.pipes, p)
	ff.names = append(ff.names, filename)
	ff.mu.Unlock()
	return p, nil
}

func (ff *fakeFactory) gateFile(filename string) chan struct{} {
	gate := make(chan struct{})
	ff.mu.Lock()
	ff.gates[filename] = gate
	ff.mu.Unlock()
	return gate
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.pipes)
}

func (ff *fakeFactory) pipe(i int) *fakePipeline {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if i < 0 || i >= len(ff.pipes) {
		return nil
	}
	return ff.pipes[i]
}

func (ff *fakeFactory) pipeFor(filename string) *fakePipeline {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	for i, name := range ff.names {
		if name == filename {
			return ff.pipes[i]
		}
	}
	return nil
}

func (ff *fakeFactory) last() *fakePipeline {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if len(ff.pipes) == 0 {
		return nil
	}
	return ff.pipes[len(ff.pipes)-1]
}
