// Package crypto provides sealed-secret storage for configuration values and
// HMAC signing for outbound webhooks.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// SealedPrefix marks a configuration value as a sealed secret.
const SealedPrefix = "enc:"

const (
	kdfRounds     = 480_000
	saltSize      = 16
	keySize       = 32 // AES-256
	sealedVersion = 1
)

var errNoPassphrase = errors.New("crypto: passphrase must not be empty")

// envelope is JSON-encoded then wrapped in URL-safe base64. Byte slices are
// emitted as standard base64 by encoding/json.
type envelope struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal encrypts plaintext under passphrase (PBKDF2-SHA256 into AES-256-GCM)
// and returns a value safe to paste into TOML or an environment variable.
func Seal(plaintext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", errNoPassphrase
	}
	env := envelope{Version: sealedVersion, Salt: make([]byte, saltSize)}
	if _, err := rand.Read(env.Salt); err != nil {
		return "", fmt.Errorf("crypto: salt: %w", err)
	}
	aead, err := deriveAEAD(passphrase, env.Salt)
	if err != nil {
		return "", err
	}
	env.Nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(env.Nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	env.Ciphertext = aead.Seal(nil, env.Nonce, []byte(plaintext), nil)

	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("crypto: encode envelope: %w", err)
	}
	return SealedPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// Open reverses Seal. Values without SealedPrefix are returned as-is.
func Open(value, passphrase string) (string, error) {
	body, ok := strings.CutPrefix(value, SealedPrefix)
	if !ok {
		return value, nil
	}
	if passphrase == "" {
		return "", fmt.Errorf("crypto: sealed value needs a passphrase: %w", errNoPassphrase)
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("crypto: decode sealed value: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("crypto: parse envelope: %w", err)
	}
	if env.Version != sealedVersion {
		return "", fmt.Errorf("crypto: unsupported envelope version %d", env.Version)
	}

	aead, err := deriveAEAD(passphrase, env.Salt)
	if err != nil {
		return "", err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return "", fmt.Errorf("crypto: nonce is %d bytes, want %d", len(env.Nonce), aead.NonceSize())
	}
	plain, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: wrong passphrase or corrupted value: %w", err)
	}
	return string(plain), nil
}

// IsSealed reports whether value carries SealedPrefix.
func IsSealed(value string) bool { return strings.HasPrefix(value, SealedPrefix) }

func deriveAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(pbkdf2.Key([]byte(passphrase), salt, kdfRounds, keySize, sha256.New))
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return aead, nil
}
