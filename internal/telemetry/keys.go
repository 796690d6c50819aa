package telemetry

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

// decodePublicKey parses a worker's registered public key, stored as a hex
// string, into an ed25519.PublicKey.
func decodePublicKey(hexKey string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
