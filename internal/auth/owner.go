// Package auth derives stable owner identities and enforces them on
// HTTP requests.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrEmptyUsername indicates a missing or blank username.
var ErrEmptyUsername = errors.New("username is empty")

// DeriveOwnerID maps a username to a stable opaque owner id. The hash
// keeps raw usernames out of the store and the vector index payloads.
func DeriveOwnerID(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrEmptyUsername
	}
	sum := sha256.Sum256([]byte(username))
	return hex.EncodeToString(sum[:]), nil
}
