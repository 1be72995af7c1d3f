package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/noisechannel/crypto"
	"github.com/opd-ai/noisechannel/noise"
)

// NoiseSessionManager is the process-scoped registry mapping peer
// identifiers to their NoiseSession. The registry is safe for concurrent
// use; operations on an individual session are serialized by the session
// itself.
type NoiseSessionManager struct {
	mu          sync.RWMutex
	localStatic *crypto.KeyPair
	sessions    map[string]*NoiseSession
}

// NewNoiseSessionManager creates a registry whose sessions all share the
// given long-term static key pair.
func NewNoiseSessionManager(localStatic *crypto.KeyPair) (*NoiseSessionManager, error) {
	if localStatic == nil {
		return nil, fmt.Errorf("%w: local static key pair required", crypto.ErrInvalidKey)
	}
	if !crypto.ValidatePublicKey(localStatic.Public[:]) {
		return nil, fmt.Errorf("%w: local static public key is degenerate", crypto.ErrInvalidKey)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewNoiseSessionManager",
		"public_key": fmt.Sprintf("%x", localStatic.Public[:8]),
	}).Info("Session manager created")

	return &NoiseSessionManager{
		localStatic: localStatic,
		sessions:    make(map[string]*NoiseSession),
	}, nil
}

// GetOrCreateSession returns the session for peerID, creating it in the
// given role if none exists. The call is idempotent per peerID: a second
// call returns the existing session unchanged, regardless of the role
// argument.
func (m *NoiseSessionManager) GetOrCreateSession(peerID string, role noise.HandshakeRole) (*NoiseSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[peerID]; ok {
		if existing.Role() != role {
			logrus.WithFields(logrus.Fields{
				"function":       "GetOrCreateSession",
				"peer_id":        peerID,
				"existing_role":  existing.Role().String(),
				"requested_role": role.String(),
			}).Debug("Returning existing session despite differing role")
		}
		return existing, nil
	}

	session, err := NewNoiseSession(peerID, m.localStatic, role)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %q: %w", peerID, err)
	}
	m.sessions[peerID] = session

	logrus.WithFields(logrus.Fields{
		"function":      "GetOrCreateSession",
		"peer_id":       peerID,
		"role":          role.String(),
		"session_count": len(m.sessions),
	}).Debug("Session created")

	return session, nil
}

// GetSession returns the session for peerID, if any.
func (m *NoiseSessionManager) GetSession(peerID string) (*NoiseSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[peerID]
	return session, ok
}

// RemoveSession wipes the session's key material and drops it from the
// registry. Removing an unknown peer is a no-op.
func (m *NoiseSessionManager) RemoveSession(peerID string) {
	m.mu.Lock()
	session, ok := m.sessions[peerID]
	if ok {
		delete(m.sessions, peerID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	session.Reset()

	logrus.WithFields(logrus.Fields{
		"function": "RemoveSession",
		"peer_id":  peerID,
	}).Debug("Session removed")
}

// ResetSession wipes the session's key material and returns it to
// Uninitialized while keeping it registered. Returns an error if the peer
// is unknown.
func (m *NoiseSessionManager) ResetSession(peerID string) error {
	session, ok := m.GetSession(peerID)
	if !ok {
		return fmt.Errorf("%w: no session for peer %q", noise.ErrInvalidState, peerID)
	}
	session.Reset()
	return nil
}

// ClearAll wipes every session's key material and empties the registry.
func (m *NoiseSessionManager) ClearAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*NoiseSession)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Reset()
	}

	logrus.WithFields(logrus.Fields{
		"function":      "ClearAll",
		"cleared_count": len(sessions),
	}).Info("All sessions cleared")
}

// Len returns the number of registered sessions.
func (m *NoiseSessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Peers returns the registered peer identifiers in sorted order.
func (m *NoiseSessionManager) Peers() []string {
	m.mu.RLock()
	peers := make([]string, 0, len(m.sessions))
	for peerID := range m.sessions {
		peers = append(peers, peerID)
	}
	m.mu.RUnlock()

	sort.Strings(peers)
	return peers
}
