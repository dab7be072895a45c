package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key := DeriveKey("tontine", salt)
	if len(key) != keySize {
		t.Errorf("key length = %d, want %d", len(key), keySize)
	}
	if !bytes.Equal(key, DeriveKey("tontine", salt)) {
		t.Error("same passphrase and salt should give the same key")
	}
	if bytes.Equal(key, DeriveKey("other", salt)) {
		t.Error("different passphrases should give different keys")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"document", []byte(`{"version":1,"tables":{"members":[]}}`)},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := Encrypt(tt.plaintext, "phrase-secrete")
			if err != nil {
				t.Fatalf("encrypt: %v", err)
			}
			if !IsEncrypted(sealed) {
				t.Error("sealed payload should carry the header")
			}
			if len(tt.plaintext) > 0 && bytes.Contains(sealed, tt.plaintext) {
				t.Error("sealed payload leaks the plaintext")
			}

			opened, err := Decrypt(sealed, "phrase-secrete")
			if err != nil {
				t.Fatalf("decrypt: %v", err)
			}
			if !bytes.Equal(opened, tt.plaintext) && len(opened)+len(tt.plaintext) > 0 {
				t.Errorf("opened = %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	a, _ := Encrypt([]byte("same"), "pw")
	b, _ := Encrypt([]byte("same"), "pw")
	if bytes.Equal(a[:headerLen], b[:headerLen]) {
		t.Error("two payloads should not share salt and nonce")
	}
}

func TestDecryptFailures(t *testing.T) {
	sealed, err := Encrypt([]byte("cotisations de mars"), "correct")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := Decrypt(sealed, "wrong"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("wrong passphrase err = %v, want ErrDecrypt", err)
	}

	tampered := bytes.Clone(sealed)
	tampered[headerLen+1] ^= 0xFF
	if _, err := Decrypt(tampered, "correct"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("tampered err = %v, want ErrDecrypt", err)
	}

	relabelled := bytes.Clone(sealed)
	relabelled[0] = 'X'
	if _, err := Decrypt(relabelled, "correct"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("bad header err = %v, want ErrDecrypt", err)
	}

	if _, err := Decrypt([]byte("too short"), "correct"); err == nil {
		t.Error("expected error for a truncated payload")
	}
	if IsEncrypted([]byte(`{"version":1}`)) {
		t.Error("plain JSON reported as encrypted")
	}
}
