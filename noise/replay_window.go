package noise

import "fmt"

// ReplayWindowSize is the number of most-recent nonces tracked for
// out-of-order transport messages. Messages older than the window floor
// are rejected as stale.
const ReplayWindowSize = 1024

const windowWords = ReplayWindowSize / 64

// replayWindow is a fixed-size sliding bitmap over the most recent
// ReplayWindowSize nonces. Memory use is constant regardless of traffic
// volume: bits are indexed by nonce modulo the window size and invalidated
// as the window slides forward.
type replayWindow struct {
	bitmap  [windowWords]uint64
	highest uint64
	seeded  bool
}

// check reports whether nonce may be accepted. It does not record the
// nonce; callers must verify the AEAD tag first and then call mark, so a
// forged frame can never poison the window.
func (w *replayWindow) check(nonce uint64) error {
	if !w.seeded || nonce > w.highest {
		return nil
	}
	if w.highest-nonce >= ReplayWindowSize {
		return fmt.Errorf("%w: nonce %d below window floor %d", ErrReplayDetected, nonce, w.highest-ReplayWindowSize+1)
	}
	if w.isSet(nonce) {
		return fmt.Errorf("%w: nonce %d already seen", ErrReplayDetected, nonce)
	}
	return nil
}

// mark records nonce as seen, sliding the window forward as needed.
func (w *replayWindow) mark(nonce uint64) {
	switch {
	case !w.seeded:
		w.seeded = true
		w.highest = nonce
	case nonce > w.highest:
		if nonce-w.highest >= ReplayWindowSize {
			w.bitmap = [windowWords]uint64{}
		} else {
			for n := w.highest + 1; n <= nonce; n++ {
				w.clear(n)
			}
		}
		w.highest = nonce
	}
	w.set(nonce)
}

func (w *replayWindow) isSet(nonce uint64) bool {
	word := (nonce / 64) % windowWords
	return w.bitmap[word]&(1<<(nonce%64)) != 0
}

func (w *replayWindow) set(nonce uint64) {
	word := (nonce / 64) % windowWords
	w.bitmap[word] |= 1 << (nonce % 64)
}

func (w *replayWindow) clear(nonce uint64) {
	word := (nonce / 64) % windowWords
	w.bitmap[word] &^= 1 << (nonce % 64)
}
