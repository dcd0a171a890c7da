package collab

import (
	"crypto/md5"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// VerifyPassword checks a client-submitted plaintext password against a
// stored bcrypt hash. The client already sends an md5 hex digest of the
// plaintext; the server bcrypt-verifies over that digest rather than
// the raw password, matching the stored hash's input shape.
func VerifyPassword(plaintextPasswordMD5Hex, storedBcrypt string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedBcrypt), []byte(plaintextPasswordMD5Hex)) == nil
}

// HashPassword produces the bcrypt hash to store for a given client-side
// md5 password digest, for use by account provisioning tooling.
func HashPassword(plaintextPasswordMD5Hex string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintextPasswordMD5Hex), bcrypt.DefaultCost)
	return string(h), err
}

// MD5Hex hashes a raw plaintext password the way the osu! client does
// before it ever reaches the wire, for tooling that starts from a raw
// password rather than the client's own digest.
func MD5Hex(plaintext string) string {
	sum := md5.Sum([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
