package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize     = 16     // Salt size in bytes
	KeySize      = 32     // Derived key size
	DefaultIters = 210000 // Default PBKDF2 iterations (OWASP minimum)

	hashScheme = "pbkdf2-sha256"
)

var (
	ErrMalformedHash = errors.New("malformed passcode hash")
)

// KDF handles key derivation from passcodes
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a new KDF with a random salt
func NewKDF() (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &KDF{
		Salt:       salt,
		Iterations: DefaultIters,
	}, nil
}

// DeriveKey derives a key from a passcode
func (k *KDF) DeriveKey(passcode []byte) []byte {
	return pbkdf2.Key(passcode, k.Salt, k.Iterations, KeySize, sha256.New)
}

// HashPasscode derives a key with a fresh salt and encodes scheme, iterations,
// salt and key into a single string suitable for the keyring.
func HashPasscode(passcode []byte) (string, error) {
	kdf, err := NewKDF()
	if err != nil {
		return "", err
	}
	return kdf.Encode(passcode), nil
}

// Encode derives the key for passcode and returns the encoded hash
func (k *KDF) Encode(passcode []byte) string {
	key := k.DeriveKey(passcode)
	defer ClearBytes(key)

	return strings.Join([]string{
		hashScheme,
		strconv.Itoa(k.Iterations),
		base64.RawStdEncoding.EncodeToString(k.Salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$")
}

// VerifyPasscode checks passcode against a hash produced by HashPasscode
func VerifyPasscode(encoded string, passcode []byte) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != hashScheme {
		return false, ErrMalformedHash
	}

	iters, err := strconv.Atoi(parts[1])
	if err != nil || iters <= 0 {
		return false, fmt.Errorf("%w: iterations", ErrMalformedHash)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, fmt.Errorf("%w: key", ErrMalformedHash)
	}

	kdf := &KDF{Salt: salt, Iterations: iters}
	got := kdf.DeriveKey(passcode)
	defer ClearBytes(got)

	return ConstantTimeCompare(got, want), nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
