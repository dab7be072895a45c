package backup

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Encrypted backups are laid out as
//
//	magic (5) | salt (16) | nonce (24) | XChaCha20-Poly1305 ciphertext
//
// The magic doubles as additional data, so a payload cannot be relabelled.
var magic = []byte("E2DB\x01")

const (
	saltSize  = 16
	nonceSize = chacha20poly1305.NonceSizeX
	keySize   = chacha20poly1305.KeySize
	headerLen = 5 + saltSize + nonceSize

	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// ErrDecrypt means the passphrase is wrong or the payload was altered.
var ErrDecrypt = errors.New("decrypt backup: wrong passphrase or corrupted data")

// IsEncrypted reports whether data starts with the encrypted backup header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches passphrase with Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keySize)
}

func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	out := make([]byte, headerLen, headerLen+len(plaintext)+aead.Overhead())
	copy(out, magic)
	copy(out[len(magic):], salt)
	nonce := out[len(magic)+saltSize : headerLen]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(out, nonce, plaintext, magic), nil
}

func Decrypt(data []byte, passphrase string) ([]byte, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("encrypted payload too small")
	}
	if !IsEncrypted(data) {
		return nil, fmt.Errorf("%w: missing header", ErrDecrypt)
	}
	salt := data[len(magic) : len(magic)+saltSize]
	nonce := data[len(magic)+saltSize : headerLen]

	aead, err := chacha20poly1305.NewX(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, data[headerLen:], magic)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
