package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// addressBytes is the length of the raw account identifier.
const addressBytes = 20

// Account represents a token holder known to the gateway.
type Account struct {
	Address      string    `json:"address"`
	PasswordHash string    `json:"-"` // Argon2id, used for self-service cash-out unlock
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAddress generates a fresh 0x-prefixed account address.
func NewAddress() (string, error) {
	raw := make([]byte, addressBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating address: %w", err)
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// NormalizeAddress lower-cases an address so lookups are case-insensitive.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ValidAddress reports whether s looks like a gateway account address.
func ValidAddress(s string) bool {
	s = NormalizeAddress(s)
	if len(s) != 2+2*addressBytes || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}
