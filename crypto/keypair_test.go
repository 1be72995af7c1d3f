package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	require.NotNil(t, kp)

	assert.True(t, ValidatePublicKey(kp.Public[:]), "generated public key should validate")
	assert.NotEqual(t, [KeySize]byte{}, kp.Private, "private key should not be all zeros")
}

func TestGenerateKeyPairUniqueness(t *testing.T) {
	seen := make(map[[KeySize]byte]bool)
	for i := 0; i < 64; i++ {
		kp, err := GenerateKeyPair()
		require.NoError(t, err)
		require.False(t, seen[kp.Public], "duplicate public key on iteration %d", i)
		seen[kp.Public] = true
	}
}

func TestFromSecretKeyDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, KeySize)

	kp1, err := FromSecretKey(seed)
	require.NoError(t, err)
	kp2, err := FromSecretKey(seed)
	require.NoError(t, err)

	assert.Equal(t, kp1.Public, kp2.Public, "same seed must yield identical public key")
	assert.Equal(t, kp1.Private, kp2.Private, "same seed must yield identical private key")
}

func TestFromSecretKeyRejectsBadSeedLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		_, err := FromSecretKey(make([]byte, n))
		require.Error(t, err, "seed length %d should be rejected", n)
		assert.ErrorIs(t, err, ErrInvalidSeed)
	}
}

func TestValidatePublicKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	lowOrder, err := hex.DecodeString("e0eb7a7c3b41b8ae1656e3faf19fc46ada098deb9c32b1fd866205165f49b800")
	require.NoError(t, err)

	tests := []struct {
		name string
		key  []byte
		want bool
	}{
		{"fresh key", kp.Public[:], true},
		{"16 bytes", make([]byte, 16), false},
		{"64 bytes", make([]byte, 64), false},
		{"all zeros", make([]byte, KeySize), false},
		{"all 0xFF", bytes.Repeat([]byte{0xFF}, KeySize), false},
		{"point one", append([]byte{0x01}, make([]byte, KeySize-1)...), false},
		{"low-order point", lowOrder, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidatePublicKey(tt.key))
		})
	}
}
