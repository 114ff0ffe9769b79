package uuidx

import "github.com/google/uuid"

// New generates a version 7 UUID. It panics if the UUID generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a version 7 UUID and returns its string form.
func NewString() string {
	return New().String()
}

// Prefixed returns id prefixed with prefix and a dash, the shape used for
// workflow ids that must stay readable in a UI.
func Prefixed(prefix, id string) string {
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
