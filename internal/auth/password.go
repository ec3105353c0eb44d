package auth

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher wraps bcrypt. Each digest carries its own salt and cost,
// so equal plaintexts hash to different digests.
//
// bcrypt rejects inputs over 72 bytes, so the plaintext is pre-hashed with
// SHA-256 before bcrypt sees it: passwords of any length hash and verify,
// and bytes past the 72nd still count.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{cost: bcrypt.DefaultCost}
}

func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(prehash(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. The comparison inside
// bcrypt is constant-time; a malformed digest is just a mismatch, never an
// error, so callers cannot tell why verification failed.
func (h *PasswordHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), prehash(plaintext)) == nil
}

// base64 keeps the pre-hash free of NUL bytes, which bcrypt treats as
// terminators.
func prehash(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}
