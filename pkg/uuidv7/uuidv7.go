// Package uuidv7 mints the time-ordered IDs used for declarations, payments
// and their audit events. UUIDv7 (RFC 9562) embeds Unix milliseconds in the
// high bits, so freshly minted IDs sort by creation time in index scans.
package uuidv7

import "github.com/google/uuid"

func New() (uuid.UUID, error) {
	return uuid.NewV7()
}

// NewString returns a UUIDv7 in canonical string form.
func NewString() (string, error) {
	u, err := New()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
