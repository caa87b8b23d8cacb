package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrDecryptionFailed   = errors.New("decryption failed")
)

// KeyParams configures the Argon2id key derivation.
type KeyParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
}

// DefaultKeyParams returns recommended Argon2id parameters for deriving
// an encryption key from a passphrase.
func DefaultKeyParams() KeyParams {
	return KeyParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
	}
}

// Cipher encrypts small payloads (token bundles) at rest. Each
// encryption derives a fresh key from the secret with a random salt, so
// ciphertexts are self-contained: salt || nonce || sealed.
type Cipher struct {
	secret []byte
	params KeyParams
}

// NewCipher creates a Cipher from a passphrase secret.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("cipher secret must not be empty")
	}
	return &Cipher{secret: []byte(secret), params: DefaultKeyParams()}, nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(c.secret, salt, c.params.Iterations, c.params.Memory, c.params.Parallelism, chacha20poly1305.KeySize)
	return chacha20poly1305.NewX(key)
}

// Encrypt seals plaintext under a key derived from the secret.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, c.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	aead, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, 0, len(salt)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	saltLen := int(c.params.SaltLength)
	if len(ciphertext) < saltLen {
		return nil, ErrCiphertextTooShort
	}
	salt := ciphertext[:saltLen]

	aead, err := c.aead(salt)
	if err != nil {
		return nil, err
	}

	rest := ciphertext[saltLen:]
	if len(rest) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
