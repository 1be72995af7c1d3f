package noise

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/opd-ai/noisechannel/crypto"
)

// HashSize is the output length of the handshake hash function (SHA-256).
const HashSize = sha256.Size

// SymmetricState accumulates the running handshake hash and chaining key
// during a handshake. It exists only for the duration of the handshake and
// is consumed by Split once the payload exchange completes.
type SymmetricState struct {
	chainingKey   [HashSize]byte
	handshakeHash [HashSize]byte
	cipher        *CipherState
}

// NewSymmetricState seeds a SymmetricState from a protocol name. Names no
// longer than the hash length are zero-padded; longer names are hashed.
// The result seeds both the chaining key and the handshake hash.
func NewSymmetricState(protocolName string) *SymmetricState {
	ss := &SymmetricState{}
	if len(protocolName) <= HashSize {
		copy(ss.handshakeHash[:], protocolName)
	} else {
		ss.handshakeHash = sha256.Sum256([]byte(protocolName))
	}
	ss.chainingKey = ss.handshakeHash
	return ss
}

// MixHash absorbs data into the running handshake hash:
// h = HASH(h || data).
func (ss *SymmetricState) MixHash(data []byte) {
	h := sha256.New()
	h.Write(ss.handshakeHash[:])
	h.Write(data)
	h.Sum(ss.handshakeHash[:0])
}

// MixKey mixes input key material (a Diffie-Hellman output) into the
// chaining key and installs a fresh handshake cipher keyed by the second
// HKDF output, with its nonce counter reset to zero.
func (ss *SymmetricState) MixKey(inputKeyMaterial []byte) error {
	var newCK, cipherKey [crypto.KeySize]byte
	reader := hkdf.New(sha256.New, inputKeyMaterial, ss.chainingKey[:], nil)
	if _, err := io.ReadFull(reader, newCK[:]); err != nil {
		return fmt.Errorf("key derivation failed: %w", err)
	}
	if _, err := io.ReadFull(reader, cipherKey[:]); err != nil {
		return fmt.Errorf("key derivation failed: %w", err)
	}

	ss.chainingKey = newCK
	cipher, err := NewCipherState(cipherKey, false)
	if err != nil {
		return err
	}
	ss.cipher = cipher

	crypto.ZeroBytes(newCK[:])
	crypto.ZeroBytes(cipherKey[:])
	return nil
}

// HasKey reports whether a handshake cipher key has been established yet.
// Before the first MixKey, EncryptAndHash and DecryptAndHash pass bytes
// through unchanged.
func (ss *SymmetricState) HasKey() bool {
	return ss.cipher != nil && ss.cipher.HasKey()
}

// EncryptAndHash encrypts plaintext with the handshake cipher using the
// current handshake hash as associated data, then absorbs the ciphertext
// into the hash so the transcript binds to what was actually transmitted.
// With no cipher key set, the plaintext passes through unencrypted.
func (ss *SymmetricState) EncryptAndHash(plaintext []byte) ([]byte, error) {
	if !ss.HasKey() {
		out := append([]byte(nil), plaintext...)
		ss.MixHash(out)
		return out, nil
	}

	ciphertext, err := ss.cipher.Encrypt(plaintext, ss.handshakeHash[:])
	if err != nil {
		return nil, err
	}
	ss.MixHash(ciphertext)
	return ciphertext, nil
}

// DecryptAndHash authenticates and decrypts ciphertext with the handshake
// cipher using the current handshake hash as associated data, then absorbs
// the ciphertext into the hash. With no cipher key set, the bytes pass
// through unchanged.
func (ss *SymmetricState) DecryptAndHash(ciphertext []byte) ([]byte, error) {
	if !ss.HasKey() {
		out := append([]byte(nil), ciphertext...)
		ss.MixHash(ciphertext)
		return out, nil
	}

	plaintext, err := ss.cipher.Decrypt(ciphertext, ss.handshakeHash[:])
	if err != nil {
		return nil, err
	}
	ss.MixHash(ciphertext)
	return plaintext, nil
}

// Split derives the two directional transport ciphers from the chaining
// key. The first cipher returned is keyed by the first HKDF output and
// carries initiator-to-responder traffic; the second carries the reverse
// direction. The SymmetricState's key material is wiped afterward.
func (ss *SymmetricState) Split(extractedNonce bool) (*CipherState, *CipherState, error) {
	var k1, k2 [crypto.KeySize]byte
	reader := hkdf.New(sha256.New, nil, ss.chainingKey[:], nil)
	if _, err := io.ReadFull(reader, k1[:]); err != nil {
		return nil, nil, fmt.Errorf("key derivation failed: %w", err)
	}
	if _, err := io.ReadFull(reader, k2[:]); err != nil {
		return nil, nil, fmt.Errorf("key derivation failed: %w", err)
	}

	c1, err := NewCipherState(k1, extractedNonce)
	if err != nil {
		return nil, nil, err
	}
	c2, err := NewCipherState(k2, extractedNonce)
	if err != nil {
		return nil, nil, err
	}

	crypto.ZeroBytes(k1[:])
	crypto.ZeroBytes(k2[:])
	ss.wipe()
	return c1, c2, nil
}

// HandshakeHash returns a copy of the current handshake hash for
// out-of-band channel binding.
func (ss *SymmetricState) HandshakeHash() []byte {
	out := make([]byte, HashSize)
	copy(out, ss.handshakeHash[:])
	return out
}

// wipe zeroes the chaining key and any handshake cipher key.
func (ss *SymmetricState) wipe() {
	crypto.ZeroBytes(ss.chainingKey[:])
	if ss.cipher != nil {
		ss.cipher.Clear()
		ss.cipher = nil
	}
}
