// Package session provides the per-peer secure-channel lifecycle on top of
// the noise handshake engine.
//
// A NoiseSession walks one peer through the states
//
//	Uninitialized → Handshaking → Established
//
// with a terminal Failed state on fatal handshake errors. The initiator
// calls StartHandshake to produce message 1; both sides then feed every
// received handshake message through ProcessHandshakeMessage, transmitting
// whatever it returns, until it returns nil. Once Established, Encrypt and
// Decrypt protect application payloads with the session's directional
// transport ciphers in extracted-nonce framing, so frames tolerate
// out-of-order delivery within a 1024-message window.
//
// The NoiseSessionManager is the entry point for calling code: a
// concurrency-safe registry mapping peer identifiers to sessions, all
// sharing one long-term static key pair. Sessions are not persisted; the
// registry's lifetime is tied to the application's networking subsystem.
//
// Example:
//
//	mgr, _ := session.NewNoiseSessionManager(localKeys)
//	s, _ := mgr.GetOrCreateSession("peer-a", noise.Initiator)
//	msg1, _ := s.StartHandshake()
//	// transmit msg1; feed replies through s.ProcessHandshakeMessage...
//	// once s.IsEstablished():
//	frame, _ := s.Encrypt([]byte("hello"))
//
// Neither sessions nor the manager perform network I/O or own timers. A
// handshake left in Handshaking holds memory until the caller resets or
// removes the session; handshake timeouts are the transport layer's
// responsibility.
package session
