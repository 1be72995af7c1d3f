package noise

import (
	"fmt"

	"github.com/opd-ai/noisechannel/crypto"
)

// ProtocolName is the Noise protocol name fed into the initial handshake
// hash. It fixes the pattern and ciphersuite this engine speaks.
const ProtocolName = "Noise_XX_25519_ChaChaPoly_SHA256"

// HandshakeRole defines whether we initiate or respond to a handshake.
type HandshakeRole uint8

const (
	// Initiator starts the handshake by sending message 1.
	Initiator HandshakeRole = iota
	// Responder waits for message 1 and replies with message 2.
	Responder
)

// String returns a human-readable role name.
func (r HandshakeRole) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// token is a single step of a Noise message pattern.
type token uint8

const (
	tokenE  token = iota // transmit ephemeral public key
	tokenS               // transmit (encrypted) static public key
	tokenEE              // DH(ephemeral, ephemeral)
	tokenES              // DH(ephemeral, static) from the initiator's view
	tokenSE              // DH(static, ephemeral) from the initiator's view
)

// xxMessageCount is the number of messages in the XX handshake.
const xxMessageCount = 3

// xxPatterns is the fixed XX message pattern table. Message 1 is written
// by the initiator, message 2 by the responder, message 3 by the
// initiator. Any deviation from this order is a protocol error.
var xxPatterns = [xxMessageCount][]token{
	{tokenE},
	{tokenE, tokenEE, tokenS, tokenES},
	{tokenS, tokenSE},
}

// xxWriter returns the role that writes the handshake message at index.
func xxWriter(index int) HandshakeRole {
	if index%2 == 0 {
		return Initiator
	}
	return Responder
}

// HandshakeState drives the three-message Noise XX handshake for one role.
// It produces and consumes the exact wire messages of the pattern and, at
// completion, splits the chaining key into the two transport ciphers.
// A HandshakeState is single-use: once the third message has been
// processed it becomes inert apart from its read-only queries.
type HandshakeState struct {
	role            HandshakeRole
	ss              *SymmetricState
	localStatic     *crypto.KeyPair
	localEphemeral  *crypto.KeyPair
	remoteStatic    [crypto.KeySize]byte
	hasRemoteStatic bool
	remoteEphemeral [crypto.KeySize]byte
	hasRemoteEph    bool
	messageIndex    int
	wiped           bool
	split           bool
}

// NewHandshakeState creates a handshake for the given role using the
// caller's long-term static key pair. The static key pair remains owned by
// the caller and is never wiped by this package.
func NewHandshakeState(localStatic *crypto.KeyPair, role HandshakeRole) (*HandshakeState, error) {
	return newHandshakeState(localStatic, role, nil)
}

// newHandshakeState optionally accepts a predetermined ephemeral key pair
// for reproducible test vectors. The hook is deliberately unexported:
// production callers go through NewHandshakeState and always get a fresh
// random ephemeral.
func newHandshakeState(localStatic *crypto.KeyPair, role HandshakeRole, ephemeral *crypto.KeyPair) (*HandshakeState, error) {
	if localStatic == nil {
		return nil, fmt.Errorf("%w: local static key pair required", crypto.ErrInvalidKey)
	}
	if !crypto.ValidatePublicKey(localStatic.Public[:]) {
		return nil, fmt.Errorf("%w: local static public key is degenerate", crypto.ErrInvalidKey)
	}

	hs := &HandshakeState{
		role:           role,
		ss:             NewSymmetricState(ProtocolName),
		localStatic:    localStatic,
		localEphemeral: ephemeral,
	}
	// Empty prologue; mixed unconditionally per the Noise spec.
	hs.ss.MixHash(nil)
	return hs, nil
}

// WriteMessage executes the next message pattern for this role, returning
// the wire message carrying the pattern's public keys and the optional
// encrypted payload. It fails with ErrInvalidState if it is not this
// role's turn to write or the handshake is already complete.
func (hs *HandshakeState) WriteMessage(payload []byte) ([]byte, error) {
	if hs.wiped {
		return nil, fmt.Errorf("%w: handshake wiped", ErrInvalidState)
	}
	if hs.messageIndex >= xxMessageCount {
		return nil, fmt.Errorf("%w: handshake already complete", ErrInvalidState)
	}
	if xxWriter(hs.messageIndex) != hs.role {
		return nil, fmt.Errorf("%w: not %s's turn to write message %d", ErrInvalidState, hs.role, hs.messageIndex+1)
	}

	var out []byte
	for _, tok := range xxPatterns[hs.messageIndex] {
		var err error
		out, err = hs.writeToken(tok, out)
		if err != nil {
			return nil, err
		}
	}

	encrypted, err := hs.ss.EncryptAndHash(payload)
	if err != nil {
		return nil, err
	}
	out = append(out, encrypted...)

	hs.messageIndex++
	return out, nil
}

func (hs *HandshakeState) writeToken(tok token, out []byte) ([]byte, error) {
	switch tok {
	case tokenE:
		if hs.localEphemeral == nil {
			ephemeral, err := crypto.GenerateKeyPair()
			if err != nil {
				return nil, fmt.Errorf("ephemeral generation failed: %w", err)
			}
			hs.localEphemeral = ephemeral
		}
		out = append(out, hs.localEphemeral.Public[:]...)
		hs.ss.MixHash(hs.localEphemeral.Public[:])
		return out, nil
	case tokenS:
		encrypted, err := hs.ss.EncryptAndHash(hs.localStatic.Public[:])
		if err != nil {
			return nil, err
		}
		return append(out, encrypted...), nil
	default:
		return out, hs.mixDH(tok)
	}
}

// ReadMessage parses and consumes the next expected handshake message,
// validating every received public key, performing the pattern's DH mixes,
// and decrypting any trailing static key and payload. The decrypted
// payload is returned.
func (hs *HandshakeState) ReadMessage(message []byte) ([]byte, error) {
	if hs.wiped {
		return nil, fmt.Errorf("%w: handshake wiped", ErrInvalidState)
	}
	if hs.messageIndex >= xxMessageCount {
		return nil, fmt.Errorf("%w: handshake already complete", ErrInvalidState)
	}
	if xxWriter(hs.messageIndex) == hs.role {
		return nil, fmt.Errorf("%w: %s writes message %d, cannot read it", ErrInvalidState, hs.role, hs.messageIndex+1)
	}

	rest := message
	for _, tok := range xxPatterns[hs.messageIndex] {
		var err error
		rest, err = hs.readToken(tok, rest)
		if err != nil {
			return nil, err
		}
	}

	if hs.ss.HasKey() && len(rest) < TagSize {
		return nil, fmt.Errorf("%w: %d bytes left for payload, need at least %d", ErrInvalidMessage, len(rest), TagSize)
	}
	payload, err := hs.ss.DecryptAndHash(rest)
	if err != nil {
		return nil, err
	}

	hs.messageIndex++
	return payload, nil
}

func (hs *HandshakeState) readToken(tok token, rest []byte) ([]byte, error) {
	switch tok {
	case tokenE:
		if len(rest) < crypto.KeySize {
			return nil, fmt.Errorf("%w: %d bytes left for ephemeral key", ErrInvalidMessage, len(rest))
		}
		if !crypto.ValidatePublicKey(rest[:crypto.KeySize]) {
			return nil, fmt.Errorf("%w: remote ephemeral rejected", crypto.ErrInvalidKey)
		}
		copy(hs.remoteEphemeral[:], rest[:crypto.KeySize])
		hs.hasRemoteEph = true
		hs.ss.MixHash(rest[:crypto.KeySize])
		return rest[crypto.KeySize:], nil
	case tokenS:
		n := crypto.KeySize
		if hs.ss.HasKey() {
			n += TagSize
		}
		if len(rest) < n {
			return nil, fmt.Errorf("%w: %d bytes left for static key", ErrInvalidMessage, len(rest))
		}
		static, err := hs.ss.DecryptAndHash(rest[:n])
		if err != nil {
			return nil, err
		}
		if !crypto.ValidatePublicKey(static) {
			return nil, fmt.Errorf("%w: remote static rejected", crypto.ErrInvalidKey)
		}
		copy(hs.remoteStatic[:], static)
		hs.hasRemoteStatic = true
		return rest[n:], nil
	default:
		return rest, hs.mixDH(tok)
	}
}

// mixDH performs the Diffie-Hellman operation named by tok and mixes the
// shared secret into the symmetric state. The es and se tokens name the
// initiator's keys first, so the two roles pick opposite local keys.
func (hs *HandshakeState) mixDH(tok token) error {
	var localPriv [crypto.KeySize]byte
	var remotePub [crypto.KeySize]byte

	switch tok {
	case tokenEE:
		if hs.localEphemeral == nil || !hs.hasRemoteEph {
			return fmt.Errorf("%w: ee before ephemeral exchange", ErrInvalidState)
		}
		localPriv = hs.localEphemeral.Private
		remotePub = hs.remoteEphemeral
	case tokenES:
		if hs.role == Initiator {
			if hs.localEphemeral == nil || !hs.hasRemoteStatic {
				return fmt.Errorf("%w: es before required keys", ErrInvalidState)
			}
			localPriv = hs.localEphemeral.Private
			remotePub = hs.remoteStatic
		} else {
			if !hs.hasRemoteEph {
				return fmt.Errorf("%w: es before required keys", ErrInvalidState)
			}
			localPriv = hs.localStatic.Private
			remotePub = hs.remoteEphemeral
		}
	case tokenSE:
		if hs.role == Initiator {
			if !hs.hasRemoteEph {
				return fmt.Errorf("%w: se before required keys", ErrInvalidState)
			}
			localPriv = hs.localStatic.Private
			remotePub = hs.remoteEphemeral
		} else {
			if hs.localEphemeral == nil || !hs.hasRemoteStatic {
				return fmt.Errorf("%w: se before required keys", ErrInvalidState)
			}
			localPriv = hs.localEphemeral.Private
			remotePub = hs.remoteStatic
		}
	default:
		return fmt.Errorf("%w: unexpected pattern token", ErrInvalidState)
	}

	shared, err := crypto.ComputeSharedSecret(localPriv, remotePub)
	if err != nil {
		return err
	}
	err = hs.ss.MixKey(shared[:])
	crypto.ZeroBytes(shared[:])
	crypto.ZeroBytes(localPriv[:])
	return err
}

// IsComplete reports whether all three handshake messages have been
// processed by this side.
func (hs *HandshakeState) IsComplete() bool {
	return hs.messageIndex >= xxMessageCount
}

// RemoteStaticPublicKey returns the peer's authenticated static public key
// once it has been received (after message 2 for the initiator, message 3
// for the responder).
func (hs *HandshakeState) RemoteStaticPublicKey() ([]byte, error) {
	if !hs.hasRemoteStatic {
		return nil, fmt.Errorf("%w: remote static key not yet received", ErrInvalidState)
	}
	out := make([]byte, crypto.KeySize)
	copy(out, hs.remoteStatic[:])
	return out, nil
}

// HandshakeHash returns the running handshake hash. After completion both
// sides hold the identical value, suitable for out-of-band channel
// binding.
func (hs *HandshakeState) HandshakeHash() []byte {
	return hs.ss.HandshakeHash()
}

// TransportCiphers splits the chaining key into the two directional
// transport ciphers and returns them as (send, receive) for this role.
// The cipher derived first always carries initiator-to-responder traffic,
// so the two sides' pairs line up. Valid only after completion; the
// handshake's symmetric key material is wiped by the split.
func (hs *HandshakeState) TransportCiphers(extractedNonce bool) (*CipherState, *CipherState, error) {
	if hs.wiped {
		return nil, nil, fmt.Errorf("%w: handshake wiped", ErrInvalidState)
	}
	if hs.split {
		return nil, nil, fmt.Errorf("%w: transport ciphers already issued", ErrInvalidState)
	}
	if !hs.IsComplete() {
		return nil, nil, fmt.Errorf("%w: handshake not complete", ErrInvalidState)
	}

	c1, c2, err := hs.ss.Split(extractedNonce)
	if err != nil {
		return nil, nil, err
	}
	hs.split = true
	if hs.role == Initiator {
		return c1, c2, nil
	}
	return c2, c1, nil
}

// Wipe zeroes the handshake's ephemeral private key and symmetric state.
// The caller-owned static key pair is untouched. Safe to call at any
// point; the handshake is unusable afterward.
func (hs *HandshakeState) Wipe() {
	if hs.localEphemeral != nil {
		crypto.ZeroBytes(hs.localEphemeral.Private[:])
	}
	hs.ss.wipe()
	hs.wiped = true
}
