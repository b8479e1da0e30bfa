package main

import (
	"fmt"
	"sync"
	"time"
)

// crossfade runs two concurrent linear gain ramps: outgoing target→0,
// incoming 0→target. Both ramps share one monotonic start instant, so they
// finish at the same wall-clock moment no matter how much the tick
// callbacks jitter.
type crossfade struct {
	out, in  audioPipeline
	target   float64
	duration time.Duration

	mu        sync.Mutex
	cancelled bool
	completed bool

	doneCh chan struct{}
}

// startCrossfade primes the incoming pipeline at gain 0, starts it
// audibly, and begins the ramp. onDone fires exactly once, after the ramp
// completes and the outgoing pipeline is fully stopped; it never fires on
// cancel. If the incoming pipeline fails to start, no ramp begins and the
// outgoing pipeline is left untouched at its prior gain.
func startCrossfade(out, in audioPipeline, target float64, duration time.Duration, onDone func()) (*crossfade, error) {
	in.SetGain(0)
	if err := in.Play(); err != nil {
		return nil, fmt.Errorf("crossfade: incoming track failed to start: %w", err)
	}

	cf := &crossfade{
		out:      out,
		in:       in,
		target:   target,
		duration: duration,
		doneCh:   make(chan struct{}),
	}
	go cf.run(onDone)
	return cf, nil
}

func (cf *crossfade) run(onDone func()) {
	defer close(cf.doneCh)

	start := time.Now()
	ticker := time.NewTicker(CROSSFADE_TICK)
	defer ticker.Stop()

	for range ticker.C {
		progress := float64(time.Since(start)) / float64(cf.duration)

		cf.mu.Lock()
		if cf.cancelled {
			cf.mu.Unlock()
			return
		}
		if progress >= 1 {
			cf.completed = true
			cf.mu.Unlock()
			cf.out.SetGain(0)
			cf.in.SetGain(cf.target)
			cf.out.Stop()
			onDone()
			return
		}
		cf.mu.Unlock()

		cf.out.SetGain(cf.target * (1 - progress))
		cf.in.SetGain(cf.target * progress)
	}
}

// Cancel aborts the ramp immediately and stops both pipelines without
// completing the fade. A no-op once the ramp has completed (the incoming
// pipeline is the current track by then and must keep playing).
func (cf *crossfade) Cancel() {
	cf.mu.Lock()
	if cf.completed || cf.cancelled {
		cf.mu.Unlock()
		return
	}
	cf.cancelled = true
	cf.mu.Unlock()

	cf.out.Stop()
	cf.in.Stop()
}

// Wait blocks until the ramp goroutine has exited.
func (cf *crossfade) Wait() {
	<-cf.doneCh
}
