package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(ids ...string) *PlaybackQueue {
	q := newPlaybackQueue(1)
	q.SetIDs(ids)
	return q
}

func TestAdvanceWrapsBothEnds(t *testing.T) {
	q := newTestQueue("a", "b", "c")

	next, ok := q.Advance("c", DirNext)
	require.True(t, ok)
	assert.Equal(t, "a", next, "skipping forward from the last entry wraps to the first")

	prev, ok := q.Advance("a", DirPrevious)
	require.True(t, ok)
	assert.Equal(t, "c", prev, "skipping back from the first entry wraps to the last")
}

func TestAdvanceSequential(t *testing.T) {
	q := newTestQueue("a", "b", "c")

	next, ok := q.Advance("a", DirNext)
	require.True(t, ok)
	assert.Equal(t, "b", next)

	prev, ok := q.Advance("b", DirPrevious)
	require.True(t, ok)
	assert.Equal(t, "a", prev)
}

func TestAdvanceEmptyQueue(t *testing.T) {
	q := newTestQueue()
	_, ok := q.Advance("a", DirNext)
	assert.False(t, ok)
}

func TestAdvanceUnknownCurrentStartsAtFirst(t *testing.T) {
	q := newTestQueue("a", "b", "c")
	next, ok := q.Advance("ghost", DirNext)
	require.True(t, ok)
	assert.Equal(t, "a", next)
}

func TestNaturalEndStopsAtLastWithRepeatOff(t *testing.T) {
	q := newTestQueue("a", "b", "c")

	next, ok := q.NextAfterEnd("b")
	require.True(t, ok)
	assert.Equal(t, "c", next)

	_, ok = q.NextAfterEnd("c")
	assert.False(t, ok, "finishing the last entry with repeat off must stop, not wrap")
}

func TestNaturalEndWrapsWithRepeatAll(t *testing.T) {
	q := newTestQueue("a", "b", "c")
	q.SetRepeat(RepeatAll)

	next, ok := q.NextAfterEnd("c")
	require.True(t, ok)
	assert.Equal(t, "a", next)
}

func TestNaturalEndSingleTrackRepeatOffStops(t *testing.T) {
	q := newTestQueue("a")
	_, ok := q.NextAfterEnd("a")
	assert.False(t, ok)
}

func TestShuffleNeverSelectsCurrent(t *testing.T) {
	q := newTestQueue("a", "b", "c", "d")
	q.SetShuffle(true, nil)

	for i := 0; i < 1000; i++ {
		next, ok := q.Advance("b", DirNext)
		require.True(t, ok)
		require.NotEqual(t, "b", next, "shuffle must not repick the current track when alternatives exist")
	}
}

func TestShuffleSingleTrackStillAdvances(t *testing.T) {
	q := newTestQueue("a")
	q.SetShuffle(true, nil)

	next, ok := q.Advance("a", DirNext)
	require.True(t, ok)
	assert.Equal(t, "a", next)
}

func TestShuffleOffRestoresOrder(t *testing.T) {
	q := newTestQueue("a", "b", "c", "d", "e")

	q.SetShuffle(true, nil)
	q.SetShuffle(false, []string{"a", "b", "c", "d", "e"})
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, q.IDs())
}

func TestShuffleOnRandomizesInPlace(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	q := newTestQueue(ids...)
	q.SetShuffle(true, nil)

	got := q.IDs()
	assert.ElementsMatch(t, ids, got)
}

func TestRemove(t *testing.T) {
	q := newTestQueue("a", "b", "c")
	q.Remove("b")
	assert.Equal(t, []string{"a", "c"}, q.IDs())

	q.Remove("ghost")
	assert.Equal(t, []string{"a", "c"}, q.IDs())
}
