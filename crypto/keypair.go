package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

// KeySize is the length in bytes of Curve25519 public and private keys.
const KeySize = 32

var (
	// ErrInvalidSeed indicates a deterministic key derivation was given a
	// seed of the wrong length.
	ErrInvalidSeed = errors.New("seed must be exactly 32 bytes")
	// ErrInvalidKey indicates a public key of the wrong length or a
	// degenerate (low-order) curve point.
	ErrInvalidKey = errors.New("invalid public key")
)

// KeyPair represents a Curve25519 key pair. The pair is immutable once
// created; callers own the key material and are responsible for calling
// WipeKeyPair when it is no longer needed.
type KeyPair struct {
	Public  [KeySize]byte
	Private [KeySize]byte
}

// GenerateKeyPair creates a new random Curve25519 key pair from a
// cryptographically secure entropy source.
func GenerateKeyPair() (*KeyPair, error) {
	var seed [KeySize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("failed to read entropy: %w", err)
	}

	keyPair, err := FromSecretKey(seed[:])
	ZeroBytes(seed[:])
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "GenerateKeyPair",
		"public_key": fmt.Sprintf("%x", keyPair.Public[:8]),
	}).Debug("Generated new Curve25519 key pair")

	return keyPair, nil
}

// FromSecretKey deterministically derives a key pair from an existing
// 32-byte private key. The same seed always yields the same pair.
// Returns ErrInvalidSeed if the seed is not exactly 32 bytes.
func FromSecretKey(secret []byte) (*KeyPair, error) {
	if len(secret) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSeed, len(secret))
	}

	public, err := curve25519.X25519(secret, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	keyPair := &KeyPair{}
	copy(keyPair.Private[:], secret)
	copy(keyPair.Public[:], public)
	return keyPair, nil
}

// blacklistedPoints is the fixed set of known low-order Curve25519 points.
// Mixing any of these into a Diffie-Hellman exchange confines the shared
// secret to a small subgroup, so they are rejected outright.
var blacklistedPoints = mustDecodePoints(
	"0000000000000000000000000000000000000000000000000000000000000000",
	"0100000000000000000000000000000000000000000000000000000000000000",
	"e0eb7a7c3b41b8ae1656e3faf19fc46ada098deb9c32b1fd866205165f49b800",
	"5f9c95bcca9992f7799a4d18eb9de834966acd3f9746c5f589e729f62a8aabff",
	"ecffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff7f",
	"edffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff7f",
	"eeffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff7f",
	"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
)

func mustDecodePoints(points ...string) [][KeySize]byte {
	decoded := make([][KeySize]byte, len(points))
	for i, p := range points {
		b, err := hex.DecodeString(p)
		if err != nil || len(b) != KeySize {
			panic("crypto: malformed blacklist point")
		}
		copy(decoded[i][:], b)
	}
	return decoded
}

// ValidatePublicKey reports whether publicKey is acceptable for use in a
// handshake. It returns false for keys of the wrong length, the all-zero
// key, and known low-order curve points.
func ValidatePublicKey(publicKey []byte) bool {
	if len(publicKey) != KeySize {
		return false
	}
	for i := range blacklistedPoints {
		if subtle.ConstantTimeCompare(publicKey, blacklistedPoints[i][:]) == 1 {
			return false
		}
	}
	return true
}
