// Package cryptox implements the authenticated-encryption layer: PIN-based key
// derivation, AES-256-GCM field encryption and salt generation.
//
// Ciphertext produced by Encrypt is base64(nonce || ciphertext || tag) with a
// fresh 96-bit nonce per call. Decryption failures of any kind (wrong key,
// tampered data, malformed input) are reported as ErrDecrypt so callers can
// tell an expected authentication failure from a system error.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KDFIterations is the PBKDF2-HMAC-SHA256 work factor.
	KDFIterations = 210_000
	// KeySize is the AES-256 key length.
	KeySize = 32
	// SaltSize is the length of salts produced by GenerateSalt.
	SaltSize = 16
	// NonceSize is the AES-GCM nonce length.
	NonceSize = 12
)

var (
	// ErrDecrypt is returned for any failed authenticated decryption.
	ErrDecrypt = errors.New("decryption failed")
	// ErrKeyUnavailable is returned when the key is nil or already destroyed.
	ErrKeyUnavailable = errors.New("key unavailable")
)

// DeriveKey stretches pin with salt into a session key. The same (pin, salt)
// always yields the same key.
func DeriveKey(pin []byte, salt []byte) (*Key, error) {
	raw := pbkdf2.Key(pin, salt, KDFIterations, KeySize, sha256.New)
	return NewKey(raw)
}

// GenerateSalt returns SaltSize bytes from crypto/rand.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Encrypt seals plaintext under key and returns the storage encoding.
func Encrypt(plaintext []byte, key *Key) (string, error) {
	sealed, err := EncryptBytes(plaintext, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// EncryptString is Encrypt for string values.
func EncryptString(plaintext string, key *Key) (string, error) {
	return Encrypt([]byte(plaintext), key)
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(blob string, key *Key) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed encoding", ErrDecrypt)
	}
	return DecryptBytes(sealed, key)
}

// DecryptString is Decrypt returning a string.
func DecryptString(blob string, key *Key) (string, error) {
	b, err := Decrypt(blob, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncryptBytes returns nonce || ciphertext || tag without text encoding.
func EncryptBytes(plaintext []byte, key *Key) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptBytes opens the output of EncryptBytes.
func DecryptBytes(sealed []byte, key *Key) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < NonceSize+gcm.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// SealJSON serializes v to JSON and encrypts it.
func SealJSON(v any, key *Key) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return Encrypt(plaintext, key)
}

// OpenJSON decrypts blob and unmarshals it into v. A JSON error after a
// successful decryption is reported as-is, not as ErrDecrypt.
func OpenJSON(blob string, key *Key, v any) error {
	plaintext, err := Decrypt(blob, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

func newGCM(key *Key) (cipher.AEAD, error) {
	if !key.Alive() {
		return nil, ErrKeyUnavailable
	}

	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}
