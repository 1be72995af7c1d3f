package session

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/noisechannel/crypto"
	"github.com/opd-ai/noisechannel/noise"
)

// State is the lifecycle phase of a NoiseSession. Illegal combinations
// (such as Established without transport ciphers) are unrepresentable:
// the ciphers exist exactly while the state is StateEstablished.
type State uint8

const (
	// StateUninitialized means no handshake has started.
	StateUninitialized State = iota
	// StateHandshaking means the XX message exchange is in progress.
	StateHandshaking
	// StateEstablished means transport ciphers are live.
	StateEstablished
	// StateFailed is terminal after a fatal handshake error; only Reset
	// leaves it.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// NoiseSession is the per-peer secure-channel state machine. It wraps one
// HandshakeState while handshaking and, once established, one cipher per
// direction in extracted-nonce mode so transport frames tolerate
// out-of-order delivery.
//
// A mutex serializes all operations; the handshake protocol requires the
// caller to process messages for one peer in order regardless.
type NoiseSession struct {
	mu          sync.Mutex
	peerID      string
	role        noise.HandshakeRole
	localStatic *crypto.KeyPair
	state       State

	handshake  *noise.HandshakeState
	sendCipher *noise.CipherState
	recvCipher *noise.CipherState

	// Retained after establishment for identity checks and channel binding.
	remoteStatic  []byte
	handshakeHash []byte
}

// NewNoiseSession creates a session for peerID in the given role. The
// local static key pair stays owned by the caller and is shared across
// sessions; it is never wiped by the session.
func NewNoiseSession(peerID string, localStatic *crypto.KeyPair, role noise.HandshakeRole) (*NoiseSession, error) {
	if localStatic == nil {
		return nil, fmt.Errorf("%w: local static key pair required", crypto.ErrInvalidKey)
	}
	return &NoiseSession{
		peerID:      peerID,
		role:        role,
		localStatic: localStatic,
		state:       StateUninitialized,
	}, nil
}

// PeerID returns the peer identifier this session is keyed by.
func (ns *NoiseSession) PeerID() string {
	return ns.peerID
}

// Role returns the session's handshake role.
func (ns *NoiseSession) Role() noise.HandshakeRole {
	return ns.role
}

// State returns the current lifecycle state.
func (ns *NoiseSession) State() State {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.state
}

// IsEstablished reports whether transport encryption is available.
func (ns *NoiseSession) IsEstablished() bool {
	return ns.State() == StateEstablished
}

// StartHandshake begins the handshake and returns message 1 for the
// transport to deliver. Initiator-only; fails with ErrInvalidState for
// responders or if the session is not Uninitialized.
func (ns *NoiseSession) StartHandshake() ([]byte, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.role != noise.Initiator {
		return nil, fmt.Errorf("%w: only the initiator starts a handshake", noise.ErrInvalidState)
	}
	if ns.state != StateUninitialized {
		return nil, fmt.Errorf("%w: session is %s", noise.ErrInvalidState, ns.state)
	}

	handshake, err := noise.NewHandshakeState(ns.localStatic, ns.role)
	if err != nil {
		return nil, ns.failLocked(fmt.Errorf("failed to create handshake state: %w", err))
	}

	message, err := handshake.WriteMessage(nil)
	if err != nil {
		handshake.Wipe()
		return nil, ns.failLocked(fmt.Errorf("failed to write handshake message 1: %w", err))
	}

	ns.handshake = handshake
	ns.state = StateHandshaking

	logrus.WithFields(logrus.Fields{
		"function": "StartHandshake",
		"peer_id":  ns.peerID,
		"msg_len":  len(message),
	}).Debug("Handshake initiated")

	return message, nil
}

// ProcessHandshakeMessage consumes a received handshake message and, if a
// message remains for this role to send, produces it. It returns nil once
// this side has nothing further to transmit. The session transitions to
// Established exactly when the underlying handshake completes: after
// producing message 3 for the initiator, after consuming it for the
// responder. Any handshake failure drives the session to Failed and the
// caller must Reset and restart from scratch.
func (ns *NoiseSession) ProcessHandshakeMessage(message []byte) ([]byte, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	switch ns.state {
	case StateHandshaking:
		// In progress.
	case StateUninitialized:
		if ns.role != noise.Responder {
			return nil, fmt.Errorf("%w: initiator must call StartHandshake first", noise.ErrInvalidState)
		}
		handshake, err := noise.NewHandshakeState(ns.localStatic, ns.role)
		if err != nil {
			return nil, ns.failLocked(fmt.Errorf("failed to create handshake state: %w", err))
		}
		ns.handshake = handshake
		ns.state = StateHandshaking
	default:
		return nil, fmt.Errorf("%w: session is %s", noise.ErrInvalidState, ns.state)
	}

	if _, err := ns.handshake.ReadMessage(message); err != nil {
		return nil, ns.failLocked(fmt.Errorf("handshake read failed: %w", err))
	}

	var reply []byte
	if !ns.handshake.IsComplete() {
		var err error
		reply, err = ns.handshake.WriteMessage(nil)
		if err != nil {
			return nil, ns.failLocked(fmt.Errorf("handshake write failed: %w", err))
		}
	}

	if ns.handshake.IsComplete() {
		if err := ns.establishLocked(); err != nil {
			return nil, ns.failLocked(err)
		}
	}

	return reply, nil
}

// establishLocked splits the completed handshake into transport ciphers
// and caches the channel-binding material. Caller holds ns.mu.
func (ns *NoiseSession) establishLocked() error {
	remoteStatic, err := ns.handshake.RemoteStaticPublicKey()
	if err != nil {
		return fmt.Errorf("remote static key unavailable: %w", err)
	}

	handshakeHash := ns.handshake.HandshakeHash()

	send, recv, err := ns.handshake.TransportCiphers(true)
	if err != nil {
		return fmt.Errorf("failed to derive transport ciphers: %w", err)
	}

	ns.handshake.Wipe()
	ns.handshake = nil
	ns.sendCipher = send
	ns.recvCipher = recv
	ns.remoteStatic = remoteStatic
	ns.handshakeHash = handshakeHash
	ns.state = StateEstablished

	logrus.WithFields(logrus.Fields{
		"function":          "ProcessHandshakeMessage",
		"peer_id":           ns.peerID,
		"role":              ns.role.String(),
		"remote_key_prefix": fmt.Sprintf("%x", remoteStatic[:8]),
	}).Info("Noise session established")

	return nil
}

// failLocked wipes all session key material and parks the session in the
// terminal Failed state. Caller holds ns.mu. Returns err for convenience.
func (ns *NoiseSession) failLocked(err error) error {
	ns.wipeLocked()
	ns.state = StateFailed

	logrus.WithFields(logrus.Fields{
		"peer_id": ns.peerID,
		"error":   err.Error(),
	}).Warn("Noise session failed")

	return err
}

// Encrypt protects plaintext with the session's send cipher. Requires
// StateEstablished.
func (ns *NoiseSession) Encrypt(plaintext []byte) ([]byte, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.state != StateEstablished {
		return nil, fmt.Errorf("%w: cannot encrypt while %s", noise.ErrInvalidState, ns.state)
	}
	return ns.sendCipher.Encrypt(plaintext, nil)
}

// Decrypt authenticates and decrypts a received transport frame with the
// session's receive cipher. Requires StateEstablished. Replay and
// authentication failures abort only the single call; the session stays
// Established.
func (ns *NoiseSession) Decrypt(ciphertext []byte) ([]byte, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.state != StateEstablished {
		return nil, fmt.Errorf("%w: cannot decrypt while %s", noise.ErrInvalidState, ns.state)
	}
	return ns.recvCipher.Decrypt(ciphertext, nil)
}

// RemoteStaticPublicKey returns the peer's authenticated static public
// key. Available once the session is Established.
func (ns *NoiseSession) RemoteStaticPublicKey() ([]byte, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.remoteStatic == nil {
		return nil, fmt.Errorf("%w: remote static key not yet known", noise.ErrInvalidState)
	}
	out := make([]byte, len(ns.remoteStatic))
	copy(out, ns.remoteStatic)
	return out, nil
}

// HandshakeHash returns the channel-binding hash of the completed
// handshake. Both peers hold the identical value.
func (ns *NoiseSession) HandshakeHash() ([]byte, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.handshakeHash == nil {
		return nil, fmt.Errorf("%w: handshake not complete", noise.ErrInvalidState)
	}
	out := make([]byte, len(ns.handshakeHash))
	copy(out, ns.handshakeHash)
	return out, nil
}

// Reset wipes all key material and returns the session to Uninitialized,
// ready for a fresh handshake. Valid from any state, including Failed.
func (ns *NoiseSession) Reset() {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.wipeLocked()
	ns.state = StateUninitialized

	logrus.WithFields(logrus.Fields{
		"function": "Reset",
		"peer_id":  ns.peerID,
	}).Debug("Noise session reset")
}

// wipeLocked zeroes and discards handshake state and both transport
// ciphers. Caller holds ns.mu.
func (ns *NoiseSession) wipeLocked() {
	if ns.handshake != nil {
		ns.handshake.Wipe()
		ns.handshake = nil
	}
	if ns.sendCipher != nil {
		ns.sendCipher.Clear()
		ns.sendCipher = nil
	}
	if ns.recvCipher != nil {
		ns.recvCipher.Clear()
		ns.recvCipher = nil
	}
	if ns.handshakeHash != nil {
		crypto.ZeroBytes(ns.handshakeHash)
		ns.handshakeHash = nil
	}
	ns.remoteStatic = nil
}
