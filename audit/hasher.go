package audit

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// KeySize is the BLAKE3 key length.
const KeySize = 32

// Hasher produces stable digests of email addresses for audit records.
type Hasher struct {
	key []byte
}

// NewHasher returns a keyed hasher. An empty key yields unkeyed BLAKE3
// digests, which are stable but guessable for known addresses.
func NewHasher(key []byte) (*Hasher, error) {
	if len(key) != 0 && len(key) != KeySize {
		return nil, fmt.Errorf("audit: hash key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}, nil
}

// NewHasherFromHex decodes a hex key and returns a hasher over it.
func NewHasherFromHex(hexKey string) (*Hasher, error) {
	if hexKey == "" {
		return NewHasher(nil)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("audit: decode hash key: %w", err)
	}
	return NewHasher(key)
}

// HashEmail digests the trimmed, lowercased email.
func (h *Hasher) HashEmail(email string) string {
	normalized := []byte(strings.ToLower(strings.TrimSpace(email)))
	if len(h.key) == 0 {
		sum := blake3.Sum256(normalized)
		return hex.EncodeToString(sum[:])
	}

	hasher, err := blake3.NewKeyed(h.key)
	if err != nil {
		// key length is checked in NewHasher
		panic(err)
	}
	_, _ = hasher.Write(normalized)
	return hex.EncodeToString(hasher.Sum(nil))
}
