// Package idgen generates the short, URL-safe session and request IDs used
// to correlate logs and audit records, backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes of the IDs the assistant hands out.
const (
	RequestPrefix = "req-"
	SessionPrefix = "ses-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Request returns a new query request ID. A failure of the random source
// yields the bare prefix rather than an error: request IDs only correlate
// log lines.
func Request() string {
	id, err := GenerateWithPrefix(RequestPrefix)
	if err != nil {
		return RequestPrefix
	}
	return id
}

// Session returns a new session ID.
func Session() (string, error) {
	return GenerateWithPrefix(SessionPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
