package noise

import "errors"

var (
	// ErrInvalidMessage indicates a handshake buffer is shorter than the
	// current message pattern requires.
	ErrInvalidMessage = errors.New("handshake message too short for pattern")
	// ErrAuthenticationFailure indicates an AEAD tag mismatch. Corruption
	// and active tampering are deliberately indistinguishable.
	ErrAuthenticationFailure = errors.New("message authentication failed")
	// ErrReplayDetected indicates a transport nonce outside or already
	// inside the replay window.
	ErrReplayDetected = errors.New("replayed or stale nonce")
	// ErrInvalidState indicates an operation was called out of sequence,
	// such as encrypting before the handshake is established or writing a
	// handshake message after completion.
	ErrInvalidState = errors.New("operation invalid in current state")
	// ErrNonceExhausted indicates the nonce counter reached its maximum.
	// The session must be rekeyed with a fresh handshake.
	ErrNonceExhausted = errors.New("nonce counter exhausted")
)
