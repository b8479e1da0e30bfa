package main

import (
	"math/rand"
	"sync"
)

// PlaybackQueue is the session-scoped ordered view of song ids driving
// playback. It is distinct from any playlist: seeded from the library or
// a playlist, reordered in place by shuffle toggling, and never persisted.
type PlaybackQueue struct {
	mu      sync.RWMutex
	ids     []string
	shuffle bool
	repeat  RepeatMode
	rng     *rand.Rand
}

func newPlaybackQueue(seed int64) *PlaybackQueue {
	return &PlaybackQueue{rng: rand.New(rand.NewSource(seed))}
}

// SetIDs replaces the queue contents.
func (q *PlaybackQueue) SetIDs(ids []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append([]string(nil), ids...)
	if q.shuffle {
		q.shuffleLocked()
	}
}

// Append adds ids to the end of the queue.
func (q *PlaybackQueue) Append(ids ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, ids...)
}

// Remove drops an id from the queue if present.
func (q *PlaybackQueue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, v := range q.ids {
		if v == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			return
		}
	}
}

// IDs returns a copy of the current queue order, for "up next" style
// consumers that iterate the queue directly.
func (q *PlaybackQueue) IDs() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]string(nil), q.ids...)
}

func (q *PlaybackQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.ids)
}

func (q *PlaybackQueue) Repeat() RepeatMode {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.repeat
}

func (q *PlaybackQueue) SetRepeat(mode RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = mode
}

func (q *PlaybackQueue) Shuffle() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.shuffle
}

// SetShuffle toggles shuffle. Turning it on randomizes the queue order in
// place; turning it off restores the deterministic order given by
// restored (usually the library's title-sorted ids).
func (q *PlaybackQueue) SetShuffle(on bool, restored []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shuffle == on {
		return
	}
	q.shuffle = on
	if on {
		q.shuffleLocked()
		return
	}
	if restored != nil {
		present := make(map[string]bool, len(q.ids))
		for _, id := range q.ids {
			present[id] = true
		}
		ordered := make([]string, 0, len(q.ids))
		for _, id := range restored {
			if present[id] {
				ordered = append(ordered, id)
			}
		}
		if len(ordered) == len(q.ids) {
			q.ids = ordered
		}
	}
}

// shuffleLocked is a Fisher–Yates pass over the queue.
func (q *PlaybackQueue) shuffleLocked() {
	for i := len(q.ids) - 1; i > 0; i-- {
		j := q.rng.Intn(i + 1)
		q.ids[i], q.ids[j] = q.ids[j], q.ids[i]
	}
}

func (q *PlaybackQueue) indexOf(id string) int {
	for i, v := range q.ids {
		if v == id {
			return i
		}
	}
	return -1
}

// Advance picks the next or previous song id for a manual skip. Index
// arithmetic wraps at both ends regardless of repeat mode; whether a wrap
// should play at all is the natural-end handler's decision, not this one.
// With shuffle on the pick is uniform over the queue excluding the current
// index, so progress is guaranteed whenever an alternative exists.
func (q *PlaybackQueue) Advance(currentID string, dir Direction) (string, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	n := len(q.ids)
	if n == 0 {
		return "", false
	}

	idx := q.indexOf(currentID)
	if idx < 0 {
		return q.ids[0], true
	}

	if q.shuffle && n > 1 {
		next := idx
		for next == idx {
			next = q.rng.Intn(n)
		}
		return q.ids[next], true
	}

	switch dir {
	case DirPrevious:
		idx--
		if idx < 0 {
			idx = n - 1
		}
	default:
		idx = (idx + 1) % n
	}
	return q.ids[idx], true
}

// NextAfterEnd picks the follow-up track for a natural track end, or
// reports that playback should stop. Repeat-one is handled by the caller
// (restart, not advance). With repeat off, finishing the last queue slot
// stops instead of wrapping; a single-track queue therefore always stops.
func (q *PlaybackQueue) NextAfterEnd(currentID string) (string, bool) {
	q.mu.RLock()
	n := len(q.ids)
	idx := q.indexOf(currentID)
	repeat := q.repeat
	q.mu.RUnlock()

	if n == 0 {
		return "", false
	}
	if repeat == RepeatOff && (idx == n-1 || idx < 0) {
		return "", false
	}
	return q.Advance(currentID, DirNext)
}
