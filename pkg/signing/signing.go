// Package signing provides helpers for signing arbitrary messages and
// recovering the signer's address, using the standard Ethereum signed-message
// envelope so that signatures are compatible with eth_sign / personal_sign.
package signing

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// messagePrefix is the envelope prepended before hashing. Prefixing makes the
// resulting signature unusable as a transaction signature.
const messagePrefix = "\x19Ethereum Signed Message:\n%d"

var (
	// ErrInvalidSignatureLength indicates the signature is not 65 bytes ([R || S || V]).
	ErrInvalidSignatureLength = errors.New("invalid signature length")

	// ErrInvalidRecoveryID indicates the V byte is neither 0/1 nor the legacy 27/28.
	ErrInvalidRecoveryID = errors.New("invalid recovery id")
)

// HashMessage returns the keccak256 hash of the message wrapped in the
// signed-message envelope.
func HashMessage(message []byte) []byte {
	prefix := fmt.Appendf(nil, messagePrefix, len(message))
	return crypto.Keccak256(prefix, message)
}

// SignMessage signs the enveloped hash of message with the given private key.
// The returned signature is 65 bytes in [R || S || V] format with V in {0, 1}.
func SignMessage(message []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(HashMessage(message), key)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return sig, nil
}

// RecoverSigner recovers the address that produced the given signed-message
// signature. Both V in {0, 1} and the legacy {27, 28} encoding are accepted.
func RecoverSigner(message, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf(
			"%w: got %d bytes, want %d",
			ErrInvalidSignatureLength, len(signature), crypto.SignatureLength,
		)
	}

	v := signature[crypto.RecoveryIDOffset]
	if v >= 27 {
		v -= 27
	}
	if v != 0 && v != 1 {
		return common.Address{}, fmt.Errorf("%w: %d", ErrInvalidRecoveryID, signature[crypto.RecoveryIDOffset])
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	sig[crypto.RecoveryIDOffset] = v

	pub, err := crypto.SigToPub(HashMessage(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySigner reports whether the signature over message was produced by want.
func VerifySigner(message, signature []byte, want common.Address) (bool, error) {
	got, err := RecoverSigner(message, signature)
	if err != nil {
		return false, err
	}
	return got == want, nil
}
