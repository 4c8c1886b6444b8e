package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. Changing these invalidates no stored hashes: the salt and
// derived key lengths are recovered from the stored value, and the iteration
// count is fixed for the lifetime of the scheme.
const (
	pbkdf2Iterations = 120_000
	saltLength       = 32
	keyLength        = 64
)

// HashPassword derives a salted PBKDF2-SHA512 hash of the plaintext. The
// output encodes salt and derived key together as hex(salt):hex(key), so
// verification needs no external state.
func HashPassword(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(plaintext), salt, pbkdf2Iterations, keyLength, sha512.New)

	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key), nil
}

// VerifyPassword re-derives the key with the stored salt and compares in
// constant time. A malformed stored hash fails closed (returns false) rather
// than erroring, so a corrupted row can never authenticate.
func VerifyPassword(plaintext, stored string) bool {
	salt, key, ok := decodeHash(stored)
	if !ok {
		return false
	}

	derived := pbkdf2.Key([]byte(plaintext), salt, pbkdf2Iterations, len(key), sha512.New)

	return subtle.ConstantTimeCompare(derived, key) == 1
}

// decodeHash splits a stored hash back into its salt and derived key.
func decodeHash(stored string) (salt, key []byte, ok bool) {
	parts := strings.SplitN(stored, ":", 2)
	if len(parts) != 2 {
		return nil, nil, false
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) == 0 {
		return nil, nil, false
	}

	key, err = hex.DecodeString(parts[1])
	if err != nil || len(key) == 0 {
		return nil, nil, false
	}

	return salt, key, true
}
