package near

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const ed25519Prefix = "ed25519:"

// ParsePrivateKey decodes a key in the "ed25519:<base58>" form used by NEAR
// credential files. Both the 64-byte expanded key and a 32-byte seed are
// accepted.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	if !strings.HasPrefix(s, ed25519Prefix) {
		return nil, fmt.Errorf("unsupported key type in %q", truncateKey(s))
	}
	raw, err := base58.Decode(strings.TrimPrefix(s, ed25519Prefix))
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("invalid ed25519 key length %d", len(raw))
	}
}

// PublicKeyString renders pub in the "ed25519:<base58>" form.
func PublicKeyString(pub ed25519.PublicKey) string {
	return ed25519Prefix + base58.Encode(pub)
}

func truncateKey(s string) string {
	if len(s) > 12 {
		return s[:12] + "..."
	}
	return s
}
