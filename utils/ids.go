package utils

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var (
	uuidRegex = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	// Opaque user-account ids: alphanumeric, 20+ chars.
	authIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]{20,}$`)
)

// NewID returns a UUID-v4 string, the id format for domain entities.
func NewID() string {
	return uuid.NewString()
}

const authIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewAuthID returns a 32-char alphanumeric id for user accounts.
func NewAuthID() string {
	b := make([]byte, 32)
	max := big.NewInt(int64(len(authIDAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			return uuid.NewString()
		}
		b[i] = authIDAlphabet[n.Int64()]
	}
	return string(b)
}

// IsValidUUID reports whether s looks like a UUID (any version, case-insensitive).
func IsValidUUID(s string) bool {
	return uuidRegex.MatchString(s)
}

// IsValidUserID accepts both standard UUIDs and the opaque alphanumeric
// id format used for user accounts.
func IsValidUserID(s string) bool {
	return IsValidUUID(s) || authIDRegex.MatchString(s)
}

// isoLayouts are the accepted timestamp forms. The zone suffix is
// optional; zone-less values are read as UTC.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
}

// ParseISOTimestamp parses an ISO-8601/RFC3339 timestamp.
func ParseISOTimestamp(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
