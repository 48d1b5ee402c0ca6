package ledger

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/docvault/docvault/interfaces"
)

// PrivateKeySigner is a signing principal backed by a secp256k1 private
// key held in memory.
type PrivateKeySigner struct {
	key      *ecdsa.PrivateKey
	identity interfaces.Identity
}

var _ interfaces.Signer = (*PrivateKeySigner)(nil)

// NewPrivateKeySigner wraps an existing private key.
func NewPrivateKeySigner(key *ecdsa.PrivateKey) *PrivateKeySigner {
	return &PrivateKeySigner{
		key:      key,
		identity: interfaces.Identity(crypto.PubkeyToAddress(key.PublicKey)),
	}
}

// NewPrivateKeySignerFromHex parses a hex-encoded private key, with or
// without a 0x prefix.
func NewPrivateKeySignerFromHex(keyHex string) (*PrivateKeySigner, error) {
	clean := strings.TrimPrefix(keyHex, "0x")
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return NewPrivateKeySigner(key), nil
}

// GenerateSigner creates a signer with a fresh random key, for tests and
// local development.
func GenerateSigner() (*PrivateKeySigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewPrivateKeySigner(key), nil
}

// PublicIdentity returns the ledger address derived from the public key.
func (s *PrivateKeySigner) PublicIdentity() interfaces.Identity {
	return s.identity
}

// Authorize signs a 32-byte payload digest and returns the recoverable
// signature.
func (s *PrivateKeySigner) Authorize(digest [32]byte) ([]byte, error) {
	return crypto.Sign(digest[:], s.key)
}
