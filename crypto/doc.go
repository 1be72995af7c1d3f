// Package crypto implements the Curve25519 key utilities used by the
// noisechannel secure-channel engine.
//
// This package handles key pair generation, deterministic derivation from
// seeds, public key validation, and Diffie-Hellman shared secret computation
// using Go's x/crypto packages.
//
// Example:
//
//	keys, err := crypto.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Public key:", hex.EncodeToString(keys.Public[:]))
//	defer crypto.WipeKeyPair(keys)
//
// # Public Key Validation
//
// ValidatePublicKey rejects keys of the wrong length, the all-zero key, and
// a fixed blacklist of known low-order Curve25519 points. Accepting a
// low-order point during a handshake would let an attacker force the
// Diffie-Hellman output into a small subgroup and fake key confirmation,
// so every received public key must pass validation before it is mixed
// into a handshake.
//
// # Secure Memory
//
// Private key material should be wiped with SecureWipe, ZeroBytes, or
// WipeKeyPair as soon as it is no longer needed. The garbage collector makes
// no promises about zeroing freed memory, so explicit wiping is the only way
// to bound the lifetime of key bytes.
package crypto
