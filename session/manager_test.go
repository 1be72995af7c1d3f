package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/noisechannel/crypto"
	"github.com/opd-ai/noisechannel/noise"
)

func newManager(t *testing.T) *NoiseSessionManager {
	t.Helper()
	keys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	mgr, err := NewNoiseSessionManager(keys)
	require.NoError(t, err)
	return mgr
}

func TestManagerGetOrCreateIdempotent(t *testing.T) {
	mgr := newManager(t)

	first, err := mgr.GetOrCreateSession("peerA", noise.Initiator)
	require.NoError(t, err)

	// Same peer, even with a different role, returns the same instance.
	second, err := mgr.GetOrCreateSession("peerA", noise.Responder)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, noise.Initiator, second.Role())
	assert.Equal(t, 1, mgr.Len())
}

func TestManagerGetSessionMissing(t *testing.T) {
	mgr := newManager(t)

	_, ok := mgr.GetSession("nobody")
	assert.False(t, ok)
}

func TestManagerRemoveSession(t *testing.T) {
	mgr := newManager(t)

	_, err := mgr.GetOrCreateSession("peerA", noise.Initiator)
	require.NoError(t, err)

	mgr.RemoveSession("peerA")
	_, ok := mgr.GetSession("peerA")
	assert.False(t, ok)
	assert.Equal(t, 0, mgr.Len())

	// Removing an unknown peer is a no-op.
	mgr.RemoveSession("peerA")
}

func TestManagerRemoveWipesEstablishedSession(t *testing.T) {
	mgr := newManager(t)

	rspKeys, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	rsp, err := NewNoiseSession("us", rspKeys, noise.Responder)
	require.NoError(t, err)

	ini, err := mgr.GetOrCreateSession("peerA", noise.Initiator)
	require.NoError(t, err)
	establish(t, ini, rsp)
	require.True(t, ini.IsEstablished())

	mgr.RemoveSession("peerA")
	assert.Equal(t, StateUninitialized, ini.State(), "removal wipes key material")
	_, err = ini.Encrypt([]byte("dead"))
	assert.ErrorIs(t, err, noise.ErrInvalidState)
}

func TestManagerResetSession(t *testing.T) {
	mgr := newManager(t)

	session, err := mgr.GetOrCreateSession("peerA", noise.Initiator)
	require.NoError(t, err)
	_, err = session.StartHandshake()
	require.NoError(t, err)
	require.Equal(t, StateHandshaking, session.State())

	require.NoError(t, mgr.ResetSession("peerA"))
	assert.Equal(t, StateUninitialized, session.State())

	// Still registered after a reset.
	got, ok := mgr.GetSession("peerA")
	require.True(t, ok)
	assert.Same(t, session, got)

	err = mgr.ResetSession("stranger")
	require.Error(t, err)
	assert.ErrorIs(t, err, noise.ErrInvalidState)
}

func TestManagerClearAll(t *testing.T) {
	mgr := newManager(t)

	for i := 0; i < 5; i++ {
		_, err := mgr.GetOrCreateSession(fmt.Sprintf("peer%d", i), noise.Initiator)
		require.NoError(t, err)
	}
	require.Equal(t, 5, mgr.Len())

	mgr.ClearAll()
	assert.Equal(t, 0, mgr.Len())
	assert.Empty(t, mgr.Peers())
}

func TestManagerPeersSorted(t *testing.T) {
	mgr := newManager(t)

	for _, peer := range []string{"charlie", "alice", "bob"} {
		_, err := mgr.GetOrCreateSession(peer, noise.Responder)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"alice", "bob", "charlie"}, mgr.Peers())
}

func TestManagerConcurrentGetOrCreate(t *testing.T) {
	mgr := newManager(t)

	const goroutines = 32
	sessions := make([]*NoiseSession, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			s, err := mgr.GetOrCreateSession("contended", noise.Initiator)
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, mgr.Len())
	for i := 1; i < goroutines; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestManagerEndToEnd(t *testing.T) {
	iniMgr := newManager(t)
	rspMgr := newManager(t)

	ini, err := iniMgr.GetOrCreateSession("responder", noise.Initiator)
	require.NoError(t, err)
	rsp, err := rspMgr.GetOrCreateSession("initiator", noise.Responder)
	require.NoError(t, err)

	m1, err := ini.StartHandshake()
	require.NoError(t, err)
	m2, err := rsp.ProcessHandshakeMessage(m1)
	require.NoError(t, err)
	m3, err := ini.ProcessHandshakeMessage(m2)
	require.NoError(t, err)
	final, err := rsp.ProcessHandshakeMessage(m3)
	require.NoError(t, err)
	require.Nil(t, final)

	frame, err := rsp.Encrypt([]byte("manager to manager"))
	require.NoError(t, err)
	got, err := ini.Decrypt(frame)
	require.NoError(t, err)
	assert.Equal(t, []byte("manager to manager"), got)
}

func TestNewManagerRequiresKeys(t *testing.T) {
	_, err := NewNoiseSessionManager(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)
}
