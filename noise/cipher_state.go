package noise

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/opd-ai/noisechannel/crypto"
)

const (
	// TagSize is the length of the ChaCha20-Poly1305 authentication tag.
	TagSize = chacha20poly1305.Overhead
	// NoncePrefixSize is the length of the wire counter prepended to
	// transport messages in extracted-nonce mode.
	NoncePrefixSize = 4

	// MaxNonce is the largest usable nonce counter value.
	MaxNonce = math.MaxUint64 - 1
	// maxWireNonce bounds the counter in extracted-nonce mode, where only
	// four bytes travel on the wire.
	maxWireNonce = math.MaxUint32
)

// CipherState provides AEAD encryption for one direction of a channel with
// a monotonically increasing nonce counter.
//
// In the default mode nonces are implicit: both ends count messages and
// frames must be processed in order. In extracted-nonce mode the sender
// prepends its 4-byte counter to every frame so the receiver can decrypt
// messages delivered out of order over an unreliable link; duplicates and
// stale frames are rejected by a sliding replay window. A CipherState
// decrypts successfully at most once per nonce.
type CipherState struct {
	key            [crypto.KeySize]byte
	aead           cipher.AEAD
	nonce          uint64
	extractedNonce bool
	window         *replayWindow
	hasKey         bool
}

// NewCipherState creates a CipherState from a 32-byte key. The nonce
// counter starts at zero. When extractedNonce is true the state frames
// transport messages with a 4-byte counter prefix and tracks a replay
// window on decryption.
func NewCipherState(key [crypto.KeySize]byte, extractedNonce bool) (*CipherState, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}

	cs := &CipherState{
		aead:           aead,
		extractedNonce: extractedNonce,
		hasKey:         true,
	}
	copy(cs.key[:], key[:])
	if extractedNonce {
		cs.window = &replayWindow{}
	}
	return cs, nil
}

// aeadNonce builds the 12-byte ChaCha20-Poly1305 nonce for a counter
// value: four zero bytes followed by the little-endian counter.
func aeadNonce(counter uint64) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	binary.LittleEndian.PutUint64(nonce[4:], counter)
	return nonce
}

// Encrypt encrypts plaintext under the current nonce counter and
// increments it. The output is ciphertext followed by a 16-byte tag; in
// extracted-nonce mode a 4-byte big-endian counter is prepended so the
// receiver can recover the nonce without tracking sender state.
func (cs *CipherState) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	if !cs.hasKey {
		return nil, fmt.Errorf("%w: cipher key cleared", ErrInvalidState)
	}
	if cs.nonce > MaxNonce {
		return nil, ErrNonceExhausted
	}
	if cs.extractedNonce && cs.nonce > maxWireNonce {
		return nil, fmt.Errorf("%w: wire counter limit reached", ErrNonceExhausted)
	}

	nonce := aeadNonce(cs.nonce)

	var out []byte
	if cs.extractedNonce {
		out = make([]byte, NoncePrefixSize, NoncePrefixSize+len(plaintext)+TagSize)
		binary.BigEndian.PutUint32(out[:NoncePrefixSize], uint32(cs.nonce))
	}
	out = cs.aead.Seal(out, nonce[:], plaintext, associatedData)

	cs.nonce++
	return out, nil
}

// Decrypt authenticates and decrypts ciphertext. In extracted-nonce mode
// the 4-byte prefix names the message's nonce, which must pass the replay
// window; otherwise the local counter is used and incremented on success.
// Tag mismatch and replay both abort with no partial output and no state
// change.
func (cs *CipherState) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	if !cs.hasKey {
		return nil, fmt.Errorf("%w: cipher key cleared", ErrInvalidState)
	}

	if cs.extractedNonce {
		return cs.decryptExtracted(ciphertext, associatedData)
	}

	if cs.nonce > MaxNonce {
		return nil, ErrNonceExhausted
	}
	nonce := aeadNonce(cs.nonce)
	plaintext, err := cs.aead.Open(nil, nonce[:], ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}
	cs.nonce++
	return plaintext, nil
}

// decryptExtracted handles extracted-nonce frames: recover the counter
// from the wire, consult the replay window, authenticate, then commit.
func (cs *CipherState) decryptExtracted(ciphertext, associatedData []byte) ([]byte, error) {
	if len(ciphertext) < NoncePrefixSize+TagSize {
		return nil, fmt.Errorf("%w: %d bytes is below the transport frame minimum", ErrInvalidMessage, len(ciphertext))
	}

	counter := uint64(binary.BigEndian.Uint32(ciphertext[:NoncePrefixSize]))
	if err := cs.window.check(counter); err != nil {
		return nil, err
	}

	nonce := aeadNonce(counter)
	plaintext, err := cs.aead.Open(nil, nonce[:], ciphertext[NoncePrefixSize:], associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailure, err)
	}

	// Only authenticated frames may advance the window.
	cs.window.mark(counter)
	return plaintext, nil
}

// HasKey reports whether the cipher still holds usable key material.
func (cs *CipherState) HasKey() bool {
	return cs.hasKey
}

// Nonce returns the current counter value. Callers can use it to decide
// when a session should be rekeyed before the counter is exhausted.
func (cs *CipherState) Nonce() uint64 {
	return cs.nonce
}

// Clear zeroes the key material and renders the CipherState unusable.
// All subsequent Encrypt and Decrypt calls fail with ErrInvalidState.
func (cs *CipherState) Clear() {
	crypto.ZeroBytes(cs.key[:])
	cs.aead = nil
	cs.window = nil
	cs.hasKey = false
}
