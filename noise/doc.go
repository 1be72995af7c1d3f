// Package noise implements the Noise XX handshake pattern and transport
// encryption from scratch over the Curve25519 / ChaCha20-Poly1305 / SHA-256
// ciphersuite.
//
// The engine is a pure state machine over byte buffers: it performs no
// network I/O, keeps no persistent state, and implements exactly one
// pattern. The protocol name fed into the initial handshake hash is
//
//	Noise_XX_25519_ChaChaPoly_SHA256
//
// # XX Pattern
//
// XX provides mutual authentication when neither party knows the other's
// static public key in advance. Static keys are exchanged, encrypted and
// authenticated, inside the handshake itself.
//
// Message flow:
//
//	Initiator                              Responder
//	─────────                              ─────────
//	-> e           (ephemeral only)
//	                                       <- e, ee, s, es
//	-> s, se       (static exchange)
//	[session established]
//
// The three messages must be produced and consumed in this fixed order;
// any deviation fails with ErrInvalidState rather than being retried.
//
// Example:
//
//	ini, _ := noise.NewHandshakeState(initiatorKeys, noise.Initiator)
//	rsp, _ := noise.NewHandshakeState(responderKeys, noise.Responder)
//
//	m1, _ := ini.WriteMessage(nil)
//	rsp.ReadMessage(m1)
//	m2, _ := rsp.WriteMessage(nil)
//	ini.ReadMessage(m2)
//	m3, _ := ini.WriteMessage(nil)
//	rsp.ReadMessage(m3)
//
//	send, recv, _ := ini.TransportCiphers(true)
//
// # Transport Framing
//
// After the split, each direction is protected by its own CipherState. In
// extracted-nonce mode every transport frame is
//
//	4-byte big-endian counter ‖ ciphertext ‖ 16-byte tag
//
// so frames may arrive out of order over an unreliable link. A sliding
// 1024-entry replay window rejects duplicates and frames older than the
// window floor. Without extracted nonces the counters stay implicit and
// frames must be processed in order.
//
// # Channel Binding
//
// Both sides of a completed handshake hold an identical 32-byte handshake
// hash covering the full transcript. Comparing it out of band detects any
// man-in-the-middle, because the hash binds to the exact ciphertext bytes
// exchanged.
//
// # Error Handling
//
// All failures are typed sentinel errors checkable with errors.Is:
// ErrInvalidMessage, ErrAuthenticationFailure, ErrReplayDetected,
// ErrInvalidState, ErrNonceExhausted, plus crypto.ErrInvalidKey and
// crypto.ErrInvalidSeed from the key utilities. Every error aborts only
// the call that raised it; a handshake that has failed must be restarted
// from scratch with fresh ephemeral material, never resumed.
//
// # Thread Safety
//
// HandshakeState and CipherState are not safe for concurrent use. The
// session package serializes access per peer; the handshake protocol
// requires sequential message processing anyway.
package noise
