package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSharedSecretAgreement(t *testing.T) {
	alice, err := GenerateKeyPair()
	require.NoError(t, err)
	bob, err := GenerateKeyPair()
	require.NoError(t, err)

	ab, err := ComputeSharedSecret(alice.Private, bob.Public)
	require.NoError(t, err)
	ba, err := ComputeSharedSecret(bob.Private, alice.Public)
	require.NoError(t, err)

	assert.Equal(t, ab, ba, "both directions must agree on the shared secret")
	assert.NotEqual(t, [KeySize]byte{}, ab, "shared secret must not be all zeros")
}

func TestComputeSharedSecretRejectsDegeneratePeer(t *testing.T) {
	alice, err := GenerateKeyPair()
	require.NoError(t, err)

	var zero [KeySize]byte
	_, err = ComputeSharedSecret(alice.Private, zero)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
