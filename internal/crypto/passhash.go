// Package crypto hashes and verifies principal credentials with argon2id.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Params are the argon2id cost settings.
type Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams are tuned for server-side hashing.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hash returns the argon2id hash of secret with salt.
func (p Params) Hash(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// Verify compares secret against an expected hash in constant time.
func (p Params) Verify(secret, salt, expected []byte) bool {
	if len(expected) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(p.Hash(secret, salt), expected) == 1
}

// NewCredential salts and hashes secret for storage.
func (p Params) NewCredential(secret []byte) (hash, salt []byte, err error) {
	salt, err = RandBytes(p.SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return p.Hash(secret, salt), salt, nil
}
