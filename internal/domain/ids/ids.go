// Package ids mints and validates entity identifiers. Users and tenants
// use UUIDs; workspace entities (projects, tasks, channels) use ULIDs so
// their public ids sort by creation time.
package ids

import (
	"crypto/rand"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oklog/ulid/v2"
)

var (
	ulidRegex = regexp.MustCompile(`(?i)^[0-9A-HJKMNP-TV-Z]{26}$`)

	ErrInvalidULID = errors.New("invalid ULID")
	ErrInvalidUUID = errors.New("invalid UUID")
)

// NewULID generates a new ULID string.
func NewULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsULID returns true when value is a valid ULID (case-insensitive Crockford Base32).
func IsULID(value string) bool {
	return ulidRegex.MatchString(strings.TrimSpace(value))
}

// ValidateULID validates a ULID string.
func ValidateULID(value string) error {
	if !IsULID(value) {
		return ErrInvalidULID
	}
	return nil
}

// NewUUID mints a random v4 UUID string.
func NewUUID() string {
	return uuid.NewString()
}

// ValidateUUID validates a UUID string.
func ValidateUUID(value string) error {
	if _, err := uuid.Parse(strings.TrimSpace(value)); err != nil {
		return ErrInvalidUUID
	}
	return nil
}

// UUIDToString converts a pgtype.UUID to a properly formatted UUID string.
// Returns an empty string if the UUID is not valid.
func UUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	parsedUUID, err := uuid.FromBytes(u.Bytes[:])
	if err != nil {
		return ""
	}
	return parsedUUID.String()
}
