// Package vault provides authenticated encryption for stored secrets and
// the generators for API keys, PostgreSQL credentials, and reset tokens.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"vibedb/internal/domain"
)

const (
	// KeySize is the size of the derived AES key.
	KeySize = 32

	// APIKeyPrefix is the fixed prefix of every issued API key.
	APIKeyPrefix = "vibe"

	// APIKeyRandomLen is the number of URL-safe random characters in a key.
	APIKeyRandomLen = 32

	// KeyPrefixLen is how much of the plaintext is persisted for operator
	// identification.
	KeyPrefixLen = 14

	// PGUsernameSuffixLen is the number of random characters after the
	// vibe_user_ prefix.
	PGUsernameSuffixLen = 12

	// PGPasswordLen is the length of minted PostgreSQL passwords.
	PGPasswordLen = 32
)

// Vault performs symmetric encryption of connection strings and secrets and
// hashes API keys for digest lookup. One Vault is created at startup from
// the process-wide encryption key and API-key salt.
type Vault struct {
	aead cipher.AEAD
	salt string
}

// New derives an AES-256-GCM key from the configured encryption key using
// HKDF-SHA256 and returns a ready Vault.
func New(encryptionKey, apiKeySalt string) (*Vault, error) {
	if len(encryptionKey) < 16 {
		return nil, fmt.Errorf("encryption key too short: need at least 16 bytes")
	}

	// Info binds the derived key to this purpose so the configured key can
	// never be reused for something else by accident.
	info := []byte("vibedb-vault-encryption-v1")
	salt := []byte("vibedb-static-salt-v1")

	hkdfReader := hkdf.New(sha256.New, []byte(encryptionKey), salt, info)
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{aead: aead, salt: apiKeySalt}, nil
}

// Encrypt encrypts plaintext and returns an opaque base64 string suitable
// for storage in a text column.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any failure is reported as
// domain.ErrCredentialUnreadable so operators know to re-enter the secret
// rather than chase a generic server error.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", domain.ErrCredentialUnreadable
	}

	nonceSize := v.aead.NonceSize()
	if len(data) < nonceSize {
		return "", domain.ErrCredentialUnreadable
	}

	plaintext, err := v.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", domain.ErrCredentialUnreadable
	}

	return string(plaintext), nil
}

// HashAPIKey returns the hex SHA-256 digest of plaintext concatenated with
// the process-wide salt. Deterministic so keys can be looked up by digest.
func (v *Vault) HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext + v.salt))
	return hex.EncodeToString(sum[:])
}

// HashPassword hashes a user password with the same salted digest used for
// API keys.
func (v *Vault) HashPassword(password string) string {
	return v.HashAPIKey(password)
}

// VerifyPassword reports whether password hashes to hash.
func (v *Vault) VerifyPassword(password, hash string) bool {
	return v.HashPassword(password) == hash
}

// NewAPIKey mints an API key for the given environment. It returns the
// plaintext (shown once), the storage digest, and the persisted prefix.
func (v *Vault) NewAPIKey(environment string) (plaintext, digest, prefix string, err error) {
	random, err := randomURLSafe(APIKeyRandomLen)
	if err != nil {
		return "", "", "", err
	}

	plaintext = fmt.Sprintf("%s_%s_%s", APIKeyPrefix, environment, random)
	digest = v.HashAPIKey(plaintext)
	prefix = plaintext
	if len(prefix) > KeyPrefixLen {
		prefix = prefix[:KeyPrefixLen]
	}
	return plaintext, digest, prefix, nil
}

// NewPGCredentials mints a PostgreSQL username and password. The username
// uses only lowercase alphanumerics so it never needs quoting games on any
// PostgreSQL version.
func NewPGCredentials() (username, password string, err error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	suffix := make([]byte, PGUsernameSuffixLen)
	if _, err := io.ReadFull(rand.Reader, suffix); err != nil {
		return "", "", fmt.Errorf("failed to generate username: %w", err)
	}
	for i := range suffix {
		suffix[i] = alphabet[int(suffix[i])%len(alphabet)]
	}

	password, err = randomURLSafe(PGPasswordLen)
	if err != nil {
		return "", "", err
	}

	return "vibe_user_" + string(suffix), password, nil
}

// NewPGPassword mints a fresh PostgreSQL password for rotation.
func NewPGPassword() (string, error) {
	return randomURLSafe(PGPasswordLen)
}

// NewResetToken mints a password-reset token and its hex SHA-256 digest.
// Only the digest is stored; the plaintext goes into the outbound email.
func NewResetToken() (plaintext, digest string, err error) {
	plaintext, err = randomURLSafe(43) // 32 random bytes, base64url
	if err != nil {
		return "", "", err
	}
	sum := sha256.Sum256([]byte(plaintext))
	return plaintext, hex.EncodeToString(sum[:]), nil
}

// HashResetToken returns the storage digest of a reset token plaintext.
func HashResetToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// randomURLSafe returns n characters of the URL-safe base64 alphabet.
func randomURLSafe(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	s := base64.RawURLEncoding.EncodeToString(raw)
	return s[:n], nil
}
