// Package auth issues and verifies the bearer tokens accepted by the REST
// surface. Identity itself is established elsewhere; a token only carries the
// user id and profile the identity provider vouched for.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// KeyFile is the name of the key file inside the key directory.
const KeyFile = "token.key"

// PASETO v4.local keys are 32 bytes, stored hex-encoded.
const (
	keySize    = 32
	keyHexSize = keySize * 2
)

// DecodeKey parses a hex-encoded symmetric key.
func DecodeKey(keyHex string) ([]byte, error) {
	keyHex = strings.TrimSpace(keyHex)
	if len(keyHex) != keyHexSize {
		return nil, fmt.Errorf("token key must be %d hex characters, got %d", keyHexSize, len(keyHex))
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("token key is not valid hex: %w", err)
	}
	return key, nil
}

// LoadOrGenerateKey reads dir/token.key, creating it with a fresh random key
// when it does not exist.
func LoadOrGenerateKey(dir string) ([]byte, error) {
	path := filepath.Join(dir, KeyFile)

	//#nosec G304 -- path is built from the configured key directory
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		return DecodeKey(string(raw))
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read token key: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate token key: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("save token key: %w", err)
	}
	return key, nil
}
