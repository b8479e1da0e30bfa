package main

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossfadeCompletes(t *testing.T) {
	out := newFakePipeline()
	in := newFakePipeline()

	var doneCount atomic.Int32
	cf, err := startCrossfade(out, in, 0.8, 200*time.Millisecond, func() {
		doneCount.Add(1)
	})
	require.NoError(t, err)

	assert.True(t, in.isStarted(), "incoming must start audibly when the fade begins")

	cf.Wait()

	assert.Equal(t, int32(1), doneCount.Load(), "completion fires exactly once")
	assert.True(t, out.isStopped(), "outgoing is fully stopped at completion")
	assert.Equal(t, 0.0, out.Gain())
	assert.Equal(t, 0.8, in.Gain(), "incoming lands exactly on the target gain")
	assert.False(t, in.isStopped())
}

func TestCrossfadeRampsAreComplementary(t *testing.T) {
	out := newFakePipeline()
	in := newFakePipeline()

	cf, err := startCrossfade(out, in, 1.0, 400*time.Millisecond, func() {})
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	outGain := out.Gain()
	inGain := in.Gain()
	cf.Wait()

	if !out.isStopped() || outGain > 0 {
		assert.InDelta(t, 1.0, outGain+inGain, 0.2, "ramps share one clock, so the gains stay complementary")
		assert.Greater(t, inGain, 0.0, "incoming has started ramping up by the midpoint")
	}
}

func TestCrossfadeCancelStopsBothWithoutCompletion(t *testing.T) {
	out := newFakePipeline()
	in := newFakePipeline()

	var doneCount atomic.Int32
	cf, err := startCrossfade(out, in, 1.0, 5*time.Second, func() {
		doneCount.Add(1)
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	cf.Cancel()
	cf.Wait()

	assert.True(t, out.isStopped())
	assert.True(t, in.isStopped())
	assert.Equal(t, int32(0), doneCount.Load(), "a cancelled fade never reports completion")
}

func TestCrossfadeCancelAfterCompletionIsNoOp(t *testing.T) {
	out := newFakePipeline()
	in := newFakePipeline()

	cf, err := startCrossfade(out, in, 1.0, 50*time.Millisecond, func() {})
	require.NoError(t, err)
	cf.Wait()

	cf.Cancel()
	assert.False(t, in.isStopped(), "the incoming track is current by completion time and must keep playing")
}

func TestCrossfadeIncomingStartFailureLeavesOutgoingUntouched(t *testing.T) {
	out := newFakePipeline()
	out.SetGain(0.7)
	in := newFakePipeline()
	in.playErr = assert.AnError

	_, err := startCrossfade(out, in, 0.7, time.Second, func() {
		t.Fatal("completion must not fire for a fade that never started")
	})
	require.Error(t, err)

	assert.False(t, out.isStopped())
	assert.Equal(t, 0.7, out.Gain(), "outgoing gain is untouched by an aborted fade")
}
