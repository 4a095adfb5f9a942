package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// associatedData binds every ciphertext to its purpose so records cannot be
// replayed across contexts.
const associatedData = "partner-credentials"

const keySize = 32 // AES-256

var (
	ErrMissingKey = errors.New("credential master key is not configured")
	ErrEncryption = errors.New("failed to encrypt secret")
	ErrDecryption = errors.New("failed to decrypt secret")
)

// Record is an encrypted secret at rest. The auth tag is kept separate from
// the ciphertext so tampering with either is detectable on its own.
type Record struct {
	Ciphertext string
	IV         string
	AuthTag    string
}

// Vault performs authenticated symmetric encryption of secrets at rest.
type Vault struct {
	aead cipher.AEAD
}

// New derives the AES-256 key from the configured master secret via
// HKDF-SHA256 and prepares the GCM cipher. An absent or short secret is a
// fatal condition for every dependent component.
func New(masterSecret string) (*Vault, error) {
	if masterSecret == "" {
		return nil, ErrMissingKey
	}
	if len(masterSecret) < 16 {
		return nil, fmt.Errorf("credential master key too short: %w", ErrMissingKey)
	}

	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte(associatedData))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals a plaintext secret into a Record.
func (v *Vault) Encrypt(plaintext string) (Record, error) {
	iv := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	sealed := v.aead.Seal(nil, iv, []byte(plaintext), []byte(associatedData))

	// GCM appends the tag to the ciphertext; split it back out.
	tagStart := len(sealed) - v.aead.Overhead()
	return Record{
		Ciphertext: hex.EncodeToString(sealed[:tagStart]),
		IV:         hex.EncodeToString(iv),
		AuthTag:    hex.EncodeToString(sealed[tagStart:]),
	}, nil
}

// Decrypt opens a Record. Any corruption of ciphertext, IV, or tag fails with
// ErrDecryption; wrong plaintext is never returned silently.
func (v *Vault) Decrypt(record Record) (string, error) {
	ciphertext, err := hex.DecodeString(record.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrDecryption)
	}
	iv, err := hex.DecodeString(record.IV)
	if err != nil {
		return "", fmt.Errorf("%w: malformed IV", ErrDecryption)
	}
	tag, err := hex.DecodeString(record.AuthTag)
	if err != nil {
		return "", fmt.Errorf("%w: malformed auth tag", ErrDecryption)
	}
	if len(iv) != v.aead.NonceSize() || len(tag) != v.aead.Overhead() {
		return "", fmt.Errorf("%w: wrong IV or tag length", ErrDecryption)
	}

	plaintext, err := v.aead.Open(nil, iv, append(ciphertext, tag...), []byte(associatedData))
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}
	return string(plaintext), nil
}
