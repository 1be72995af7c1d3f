package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayWindowFreshNonces(t *testing.T) {
	w := &replayWindow{}

	for n := uint64(0); n < 10; n++ {
		require.NoError(t, w.check(n))
		w.mark(n)
	}
}

func TestReplayWindowDuplicate(t *testing.T) {
	w := &replayWindow{}

	require.NoError(t, w.check(5))
	w.mark(5)

	err := w.check(5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReplayDetected)
}

func TestReplayWindowOutOfOrder(t *testing.T) {
	w := &replayWindow{}

	w.mark(100)
	// Earlier nonces inside the window are still acceptable once.
	require.NoError(t, w.check(42))
	w.mark(42)

	err := w.check(42)
	assert.ErrorIs(t, err, ErrReplayDetected)
}

func TestReplayWindowFloor(t *testing.T) {
	w := &replayWindow{}

	w.mark(ReplayWindowSize + 10)

	// Exactly at the floor is still acceptable.
	require.NoError(t, w.check(11))

	// One below the floor is stale.
	err := w.check(10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReplayDetected)
}

func TestReplayWindowLargeJumpInvalidatesOldBits(t *testing.T) {
	w := &replayWindow{}

	w.mark(3)

	// Jump far beyond the window: the old bit for nonce 3 must not leak
	// into the new window position 3 + k*ReplayWindowSize.
	jump := uint64(5 * ReplayWindowSize)
	w.mark(jump)

	require.NoError(t, w.check(jump-ReplayWindowSize+1))
	assert.ErrorIs(t, w.check(3), ErrReplayDetected)

	recent := jump - 5
	require.NoError(t, w.check(recent))
	w.mark(recent)
	assert.ErrorIs(t, w.check(recent), ErrReplayDetected)
}

func TestReplayWindowSlideClearsSkippedBits(t *testing.T) {
	w := &replayWindow{}

	w.mark(0)
	w.mark(64) // crosses a word boundary, clearing 1..64 on the way

	for n := uint64(1); n < 64; n++ {
		require.NoError(t, w.check(n), "nonce %d was never accepted", n)
	}
}
