package crypto

import (
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// ComputeSharedSecret computes a Diffie-Hellman shared secret between our
// private key and a peer's public key using X25519.
//
// The peer key must pass ValidatePublicKey; X25519 additionally rejects
// inputs that would produce an all-zero shared secret, so a low-order point
// can never contribute key material to a handshake.
func ComputeSharedSecret(privateKey [KeySize]byte, peerPublicKey [KeySize]byte) ([KeySize]byte, error) {
	var result [KeySize]byte

	if !ValidatePublicKey(peerPublicKey[:]) {
		return result, fmt.Errorf("%w: degenerate peer key", ErrInvalidKey)
	}

	shared, err := curve25519.X25519(privateKey[:], peerPublicKey[:])
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	copy(result[:], shared)
	ZeroBytes(shared)
	return result, nil
}
